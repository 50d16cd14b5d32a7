package dto

import (
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/models"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/service"
)

type StopResponse struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
	Order   int     `json:"order"`
}

type RouteResponse struct {
	ID             string            `json:"id"`
	DriverID       *uint             `json:"driver_id"`
	OriginCampus   string            `json:"origin_campus"`
	Destination    string            `json:"destination"`
	DepartureAt    time.Time         `json:"departure_at"`
	SeatsTotal     int               `json:"seats_total"`
	SeatsAvailable int               `json:"seats_available"`
	PricePerSeat   float64           `json:"price_per_seat"`
	State          models.RouteState `json:"state"`
	Stops          []StopResponse    `json:"stops,omitempty"`
	FinalizedAt    *time.Time        `json:"finalized_at,omitempty"`
	CancelledAt    *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

type CancelRouteResponse struct {
	Route             RouteResponse `json:"route"`
	BookingsCancelled int           `json:"bookings_cancelled"`
	Refunded          int           `json:"refunded"`
	RefundFailed      int           `json:"refund_failed"`
	Voided            int           `json:"voided"`
}

type BookingResponse struct {
	ID              string               `json:"id"`
	RouteID         string               `json:"route_id,omitempty"`
	PassengerID     uint                 `json:"passenger_id"`
	State           models.BookingState  `json:"state"`
	PaymentMethod   models.PaymentMethod `json:"payment_method"`
	OTPUsed         bool                 `json:"otp_used"`
	DebtOutstanding bool                 `json:"debt_outstanding"`
	CancelledAt     *time.Time           `json:"cancelled_at,omitempty"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
	NoShowAt        *time.Time           `json:"no_show_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// CreateBookingResponse is the only response that ever carries the OTP.
type CreateBookingResponse struct {
	Booking BookingResponse `json:"booking"`
	OTP     string          `json:"otp"`
}

type CancelBookingResponse struct {
	Booking BookingResponse `json:"booking"`
	Refund  string          `json:"refund"`
}

type PaymentResponse struct {
	ID            string               `json:"id"`
	BookingID     string               `json:"booking_id,omitempty"`
	Amount        float64              `json:"amount"`
	Currency      string               `json:"currency"`
	Method        models.PaymentMethod `json:"method"`
	Status        models.PaymentStatus `json:"status"`
	FailureReason *string              `json:"failure_reason,omitempty"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`
	ReversedAt    *time.Time           `json:"reversed_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

type GatewayOrderResponse struct {
	Payment     PaymentResponse `json:"payment"`
	OrderID     string          `json:"order_id"`
	ApprovalURL string          `json:"approval_url"`
}

type PayoutResponse struct {
	ID        string              `json:"id"`
	DriverID  uint                `json:"driver_id"`
	Period    string              `json:"period"`
	Amount    float64             `json:"amount"`
	Currency  string              `json:"currency"`
	Status    models.PayoutStatus `json:"status"`
	Attempts  int                 `json:"attempts"`
	LastError *string             `json:"last_error,omitempty"`
	PaidAt    *time.Time          `json:"paid_at,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func ToRouteResponse(r *models.Route) RouteResponse {
	resp := RouteResponse{
		ID:             r.ExternalID,
		DriverID:       r.DriverID,
		OriginCampus:   r.OriginCampus,
		Destination:    r.Destination,
		DepartureAt:    r.DepartureAt,
		SeatsTotal:     r.SeatsTotal,
		SeatsAvailable: r.SeatsAvailable,
		PricePerSeat:   r.PricePerSeat,
		State:          r.State,
		FinalizedAt:    r.FinalizedAt,
		CancelledAt:    r.CancelledAt,
		CreatedAt:      r.CreatedAt,
	}
	for _, st := range r.Stops {
		resp.Stops = append(resp.Stops, StopResponse{Lat: st.Lat, Lng: st.Lng, Address: st.Address, Order: st.Order})
	}
	return resp
}

func ToRouteResponses(routes []models.Route) []RouteResponse {
	out := make([]RouteResponse, 0, len(routes))
	for i := range routes {
		out = append(out, ToRouteResponse(&routes[i]))
	}
	return out
}

func ToCancelRouteResponse(res *service.CancelRouteResult) CancelRouteResponse {
	return CancelRouteResponse{
		Route:             ToRouteResponse(res.Route),
		BookingsCancelled: res.BookingsCancelled,
		Refunded:          res.Refunded,
		RefundFailed:      res.RefundFailed,
		Voided:            res.Voided,
	}
}

func ToBookingResponse(b *models.Booking) BookingResponse {
	resp := BookingResponse{
		ID:              b.ExternalID,
		PassengerID:     b.PassengerID,
		State:           b.State,
		PaymentMethod:   b.PaymentMethod,
		OTPUsed:         b.OTPUsed,
		DebtOutstanding: b.DebtOutstanding,
		CancelledAt:     b.CancelledAt,
		CompletedAt:     b.CompletedAt,
		NoShowAt:        b.NoShowAt,
		CreatedAt:       b.CreatedAt,
	}
	if b.Route != nil {
		resp.RouteID = b.Route.ExternalID
	}
	return resp
}

func ToBookingResponses(bookings []models.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, ToBookingResponse(&bookings[i]))
	}
	return out
}

func ToPaymentResponse(p *models.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:            p.ExternalID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Method:        p.Method,
		Status:        p.Status,
		FailureReason: p.FailureReason,
		PaidAt:        p.PaidAt,
		ReversedAt:    p.ReversedAt,
		CreatedAt:     p.CreatedAt,
	}
	if p.Booking != nil {
		resp.BookingID = p.Booking.ExternalID
	}
	return resp
}

func ToPayoutResponse(p *models.Payout) PayoutResponse {
	return PayoutResponse{
		ID:        p.ExternalID,
		DriverID:  p.DriverID,
		Period:    p.Period,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Status:    p.Status,
		Attempts:  p.Attempts,
		LastError: p.LastError,
		PaidAt:    p.PaidAt,
		CreatedAt: p.CreatedAt,
	}
}

func ToPayoutResponses(payouts []models.Payout) []PayoutResponse {
	out := make([]PayoutResponse, 0, len(payouts))
	for i := range payouts {
		out = append(out, ToPayoutResponse(&payouts[i]))
	}
	return out
}
