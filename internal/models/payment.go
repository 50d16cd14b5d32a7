package models

import "time"

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentReversed PaymentStatus = "REVERSED"
)

type Payment struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	ExternalID       string        `gorm:"type:varchar(12);uniqueIndex;not null" json:"external_id"`
	BookingID        uint          `gorm:"not null;uniqueIndex" json:"booking_id"`
	Amount           float64       `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency         string        `gorm:"type:varchar(3);not null" json:"currency"`
	Method           PaymentMethod `gorm:"type:varchar(20);not null" json:"method"`
	Status           PaymentStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	GatewayOrderID   *string       `gorm:"type:varchar(64);uniqueIndex" json:"gateway_order_id,omitempty"`
	GatewayCaptureID *string       `gorm:"type:varchar(64)" json:"gateway_capture_id,omitempty"`
	FailureReason    *string       `gorm:"type:text" json:"failure_reason,omitempty"`
	PayoutID         *uint         `gorm:"index" json:"payout_id,omitempty"`
	PaidAt           *time.Time    `gorm:"index" json:"paid_at,omitempty"`
	ReversedAt       *time.Time    `json:"reversed_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`

	Booking *Booking `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
}
