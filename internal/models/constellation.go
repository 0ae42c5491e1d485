package models

import "time"

// Constellation is a user-authored mind-map graph. ConstellationData holds
// the graph as serialized JSON and is stored as text.
type Constellation struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"not null;index" json:"user_id"`
	Name              string    `gorm:"type:varchar(255);not null" json:"name"`
	ConstellationData RawJSON   `gorm:"type:longtext" json:"constellation_data"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
}
