package models

import "time"

// DeliveryRecord is one per-recipient push outcome (PostgreSQL)
type DeliveryRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	BatchID   string    `json:"batch_id" gorm:"size:36;index"`
	Tag       string    `json:"tag" gorm:"size:30;index"` // new-event, event-cancelled, activity-comment, ...
	EventID   string    `json:"event_id" gorm:"index"`
	Token     string    `json:"-" gorm:"index"`
	Success   bool      `json:"success"`
	ErrorCode string    `json:"error_code,omitempty" gorm:"size:30"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
