package models

import "time"

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "PENDING"
	PayoutPaid    PayoutStatus = "PAID"
	PayoutFailed  PayoutStatus = "FAILED"
)

type Payout struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	ExternalID     string       `gorm:"type:varchar(12);uniqueIndex;not null" json:"external_id"`
	DriverID       uint         `gorm:"not null;uniqueIndex:idx_payout_driver_period" json:"driver_id"`
	Period         string       `gorm:"type:varchar(7);not null;uniqueIndex:idx_payout_driver_period;index" json:"period"`
	Amount         float64      `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency       string       `gorm:"type:varchar(3);not null" json:"currency"`
	Status         PayoutStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	GatewayBatchID *string      `gorm:"type:varchar(64)" json:"gateway_batch_id,omitempty"`
	Attempts       int          `gorm:"not null;default:0" json:"attempts"`
	LastError      *string      `gorm:"type:text" json:"last_error,omitempty"`
	PaidAt         *time.Time   `json:"paid_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
