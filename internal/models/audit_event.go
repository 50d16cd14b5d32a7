package models

import "time"

type AuditEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Action     string    `gorm:"type:varchar(64);not null;index" json:"action"`
	UserID     uint      `gorm:"index" json:"user_id"`
	Result     string    `gorm:"type:varchar(16);not null" json:"result"`
	IPAddress  string    `gorm:"type:varchar(64)" json:"ip_address"`
	UserAgent  string    `gorm:"type:text" json:"user_agent"`
	Metadata   string    `gorm:"type:jsonb" json:"metadata"`
	OccurredAt time.Time `gorm:"not null;index" json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}
