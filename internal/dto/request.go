package dto

import (
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/service"
)

type StopRequest struct {
	Lat     *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lng     *float64 `json:"lng" validate:"omitempty,gte=-180,lte=180"`
	Address string   `json:"address" validate:"omitempty,max=255"`
}

type CreateRouteRequest struct {
	OriginCampus string        `json:"origin_campus" validate:"required,max=120"`
	Destination  string        `json:"destination" validate:"required,max=255"`
	DepartureAt  time.Time     `json:"departure_at" validate:"required"`
	SeatsTotal   int           `json:"seats_total" validate:"required,gt=0"`
	PricePerSeat float64       `json:"price_per_seat" validate:"required,gt=0"`
	Stops        []StopRequest `json:"stops" validate:"omitempty,dive"`
}

// CreateBookingRequest carries an optional pickup point; a partial one is
// rejected by the booking service.
type CreateBookingRequest struct {
	PaymentMethod string       `json:"payment_method" validate:"required,oneof=CASH PAYPAL"`
	Pickup        *StopRequest `json:"pickup" validate:"omitempty"`
}

type VerifyOTPRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type CreatePaymentRequest struct {
	BookingID string `json:"booking_id" validate:"required"`
	Method    string `json:"method" validate:"required,oneof=CASH PAYPAL"`
}

type CaptureOrderRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

type GeneratePayoutsRequest struct {
	Period string `json:"period" validate:"required"`
}

type FailPayoutRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (r StopRequest) Input() service.StopInput {
	return service.StopInput{Lat: r.Lat, Lng: r.Lng, Address: r.Address}
}
