package models

import "time"

// Message is a direct message between two users. Only the persistence shape
// and minimal send/list endpoints exist; read receipts and threading are not
// implemented.
type Message struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SenderEmail   string    `gorm:"size:120;not null;index" json:"sender_email"`
	ReceiverEmail string    `gorm:"size:120;not null;index" json:"receiver_email"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	IsRead        bool      `gorm:"default:false" json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
