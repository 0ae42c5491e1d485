package models

import "time"

// Report is append-only: rows are inserted and never updated or deleted here.
type Report struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	ReportContent string    `gorm:"type:text;not null" json:"report_content"`
	CreatedAt     time.Time `json:"created_at"`
}
