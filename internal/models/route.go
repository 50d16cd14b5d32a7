package models

import "time"

type RouteState string

const (
	RouteActive    RouteState = "ACTIVE"
	RouteCancelled RouteState = "CANCELLED"
	RouteFinalized RouteState = "FINALIZED"
)

type Route struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ExternalID     string     `gorm:"type:varchar(12);uniqueIndex;not null" json:"external_id"`
	DriverID       *uint      `gorm:"index" json:"driver_id"`
	OriginCampus   string     `gorm:"not null" json:"origin_campus"`
	Destination    string     `gorm:"not null" json:"destination"`
	DepartureAt    time.Time  `gorm:"not null;index" json:"departure_at"`
	SeatsTotal     int        `gorm:"not null" json:"seats_total"`
	SeatsAvailable int        `gorm:"not null" json:"seats_available"`
	PricePerSeat   float64    `gorm:"type:numeric(10,2);not null" json:"price_per_seat"`
	State          RouteState `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"state"`
	FinalizedAt    *time.Time `json:"finalized_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Stops []Stop `gorm:"foreignKey:RouteID;constraint:OnDelete:CASCADE" json:"stops,omitempty"`
}

// Date is the calendar day of departure in the route's own location.
func (r *Route) Date() string {
	return r.DepartureAt.Format(time.DateOnly)
}

func (r *Route) OwnedBy(driverID uint) bool {
	return r.DriverID != nil && *r.DriverID == driverID
}

// Stop is one point of a route; Order is 1-based and contiguous.
type Stop struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RouteID   uint      `gorm:"not null;index" json:"route_id"`
	Lat       float64   `gorm:"not null" json:"lat"`
	Lng       float64   `gorm:"not null" json:"lng"`
	Address   string    `gorm:"not null" json:"address"`
	Order     int       `gorm:"column:stop_order;not null" json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
