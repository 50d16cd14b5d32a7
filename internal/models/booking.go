package models

import "time"

type BookingState string

const (
	BookingConfirmed BookingState = "CONFIRMED"
	BookingCompleted BookingState = "COMPLETED"
	BookingCancelled BookingState = "CANCELLED"
	BookingNoShow    BookingState = "NO_SHOW"
)

// Terminal reports whether no further transition is allowed.
func (s BookingState) Terminal() bool {
	return s != BookingConfirmed
}

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "CASH"
	MethodPayPal PaymentMethod = "PAYPAL"
)

// Digital reports whether the method settles through the payment gateway.
func (m PaymentMethod) Digital() bool {
	return m == MethodPayPal
}

func (m PaymentMethod) Valid() bool {
	return m == MethodCash || m == MethodPayPal
}

type Booking struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	ExternalID      string        `gorm:"type:varchar(12);uniqueIndex;not null" json:"external_id"`
	RouteID         uint          `gorm:"not null;uniqueIndex:idx_booking_route_passenger" json:"route_id"`
	PassengerID     uint          `gorm:"not null;uniqueIndex:idx_booking_route_passenger;index" json:"passenger_id"`
	State           BookingState  `gorm:"type:varchar(20);not null;default:'CONFIRMED';index" json:"state"`
	OTP             string        `gorm:"type:varchar(6);not null" json:"-"`
	OTPUsed         bool          `gorm:"not null;default:false" json:"otp_used"`
	PaymentMethod   PaymentMethod `gorm:"type:varchar(20);not null" json:"payment_method"`
	PickupStopID    *uint         `json:"pickup_stop_id,omitempty"`
	DebtOutstanding bool          `gorm:"not null;default:false" json:"debt_outstanding"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	NoShowAt        *time.Time    `json:"no_show_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`

	Route *Route `gorm:"foreignKey:RouteID" json:"route,omitempty"`
}
