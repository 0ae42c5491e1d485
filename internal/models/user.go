package models

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"type:varchar(255);not null" json:"username"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password     string    `gorm:"type:varchar(255);not null" json:"-"`
	Confirmed    bool      `gorm:"not null;default:false" json:"confirmed"`
	ProfileImage *string   `gorm:"column:profileImage;type:varchar(512)" json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	// Relationships
	Reports        []Report        `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Constellations []Constellation `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
