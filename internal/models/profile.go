package models

import "time"

type DriverStatus string

const (
	DriverPending  DriverStatus = "PENDING"
	DriverApproved DriverStatus = "APPROVED"
	DriverBlocked  DriverStatus = "BLOCKED"
)

type DriverProfile struct {
	UserID     uint         `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	FullName   string       `json:"full_name"`
	Email      string       `json:"email"`
	PayeeEmail string       `json:"payee_email"`
	Status     DriverStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Rating     float64      `gorm:"not null;default:5" json:"rating"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type Vehicle struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DriverID  uint      `gorm:"not null;index" json:"driver_id"`
	Plate     string    `json:"plate"`
	Seats     int       `gorm:"not null" json:"seats"`
	Active    bool      `gorm:"not null;default:false" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PassengerProfile struct {
	UserID      uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	Rating      float64   `gorm:"not null;default:0" json:"rating"`
	RatingCount int       `gorm:"not null;default:0" json:"rating_count"`
	Blocked     bool      `gorm:"not null;default:false" json:"blocked"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RatingBlocked reports whether the passenger may no longer book rides.
// Unrated passengers are never blocked by rating.
func (p *PassengerProfile) RatingBlocked(minRating float64) bool {
	if p.Blocked {
		return true
	}
	return p.RatingCount > 0 && p.Rating < minRating
}
