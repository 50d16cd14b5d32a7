package service

import "github.com/Eursukkul/booking-microservice/carpool-service/internal/apperr"

var (
	ErrRouteNotFound     = &apperr.NotFoundError{Resource: "route"}
	ErrBookingNotFound   = &apperr.NotFoundError{Resource: "booking"}
	ErrPaymentNotFound   = &apperr.NotFoundError{Resource: "payment"}
	ErrPayoutNotFound    = &apperr.NotFoundError{Resource: "payout"}
	ErrVehicleNotFound   = &apperr.NotFoundError{Resource: "active vehicle"}
	ErrPassengerNotFound = &apperr.NotFoundError{Resource: "passenger profile"}
	ErrDriverNotFound    = &apperr.NotFoundError{Resource: "driver profile"}

	ErrDriverNotApproved  = &apperr.ForbiddenError{Msg: "driver is not approved"}
	ErrDriverRatingTooLow = &apperr.ForbiddenError{Msg: "driver rating is below the minimum"}
	ErrNotRouteOwner      = &apperr.ForbiddenError{Msg: "route belongs to another driver"}
	ErrNotBookingOwner    = &apperr.ForbiddenError{Msg: "booking belongs to another passenger"}
	ErrPassengerBlocked   = &apperr.ForbiddenError{Msg: "passenger is blocked from booking"}
	ErrCashDebt           = &apperr.ForbiddenError{Msg: "passenger has an unpaid cash booking"}

	ErrInvalidSeats         = &apperr.ValidationError{Field: "seats_total", Msg: "must be greater than zero"}
	ErrInsufficientCapacity = &apperr.ValidationError{Field: "seats_total", Msg: "exceeds vehicle capacity"}
	ErrInvalidPrice         = &apperr.ValidationError{Field: "price_per_seat", Msg: "must be greater than zero"}
	ErrIncompletePickup     = &apperr.ValidationError{Field: "pickup", Msg: "lat, lng and address are all required"}
	ErrInvalidCoordinates   = &apperr.ValidationError{Field: "pickup", Msg: "coordinates out of range"}
	ErrInvalidMethod        = &apperr.ValidationError{Field: "method", Msg: "unsupported payment method"}
	ErrMethodMismatch       = &apperr.ValidationError{Field: "method", Msg: "does not match the booking"}
	ErrNotDigital           = &apperr.ValidationError{Field: "method", Msg: "payment does not use the gateway"}
	ErrOTPAlreadyUsed       = &apperr.ValidationError{Field: "otp", Msg: "already used"}
	ErrOTPMismatch          = &apperr.ValidationError{Field: "otp", Msg: "does not match"}
	ErrOrderMismatch        = &apperr.ValidationError{Field: "order_id", Msg: "does not match the payment"}
	ErrCaptureIncomplete    = &apperr.ValidationError{Field: "order_id", Msg: "capture was not completed by the provider"}
	ErrInvalidPeriod        = &apperr.ValidationError{Field: "period", Msg: "must be YYYY-MM"}
	ErrPayoutBelowMinimum   = &apperr.ValidationError{Field: "amount", Msg: "below the minimum payout"}
	ErrInvalidPayee         = &apperr.ValidationError{Field: "payee_email", Msg: "driver has no valid payee address"}
	ErrReasonRequired       = &apperr.ValidationError{Field: "reason", Msg: "is required"}

	ErrRouteFull           = &apperr.ConflictError{Resource: "route", Msg: "route full"}
	ErrRouteNotActive      = &apperr.ConflictError{Resource: "route", Msg: "route is not active"}
	ErrRouteDeparted       = &apperr.ConflictError{Resource: "route", Msg: "route already departed"}
	ErrRouteUnpriced       = &apperr.ConflictError{Resource: "route", Msg: "route has no price"}
	ErrRouteHasPending     = &apperr.ConflictError{Resource: "route", Msg: "route still has pending bookings"}
	ErrAlreadyBooked       = &apperr.ConflictError{Resource: "booking", Msg: "passenger already booked this route"}
	ErrBookingNotConfirmed = &apperr.ConflictError{Resource: "booking", Msg: "booking is not confirmed"}
	ErrOTPNotVerified      = &apperr.ConflictError{Resource: "booking", Msg: "otp has not been verified"}
	ErrNoShowTooEarly      = &apperr.ConflictError{Resource: "booking", Msg: "no-show grace period has not elapsed"}
	ErrTripStarted         = &apperr.ConflictError{Resource: "booking", Msg: "trip already started"}
	ErrNoDebt              = &apperr.ConflictError{Resource: "booking", Msg: "booking has no outstanding debt"}
	ErrPaymentExists       = &apperr.ConflictError{Resource: "payment", Msg: "payment already exists"}
	ErrPaymentNotPending   = &apperr.ConflictError{Resource: "payment", Msg: "payment is not pending"}
	ErrPaymentNotPaid      = &apperr.ConflictError{Resource: "payment", Msg: "payment is not paid"}
	ErrNoGatewayOrder      = &apperr.ConflictError{Resource: "payment", Msg: "no gateway order was created"}
	ErrPayoutNotPending    = &apperr.ConflictError{Resource: "payout", Msg: "payout is not pending"}
)
