package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/middleware"
	"rentacar/internal/app/queries"
	"rentacar/internal/domain/availability"
	"rentacar/internal/domain/customer"
	"rentacar/internal/domain/pricing"
	"rentacar/internal/domain/reservation"
	"rentacar/internal/domain/shared/money"
	"rentacar/internal/domain/shared/period"
	"rentacar/internal/domain/shared/search"
	"rentacar/internal/domain/vehicle"
)

// Error codes returned in the "code" field.
const (
	CodeBadRequest         = "bad_request"
	CodeInvalidArgument    = "invalid_argument"
	CodeInvalidPeriod      = "invalid_period"
	CodeUnknownSortField   = "unknown_sort_field"
	CodeNotFound           = "not_found"
	CodeInvalidTransition  = "invalid_transition"
	CodeConflict           = "concurrency_conflict"
	CodeRequestInFlight    = "request_in_flight"
	CodeAlreadyBooked      = "vehicle_already_booked"
	CodeNotRentable        = "vehicle_not_rentable"
	CodeNoPricingPolicy    = "no_pricing_policy"
	CodeCurrencyMismatch   = "currency_mismatch"
	CodeServiceUnavailable = "service_unavailable"
	CodeInternal           = "internal"
)

type errorClass struct {
	status int
	code   string
}

// classify maps error classes to HTTP status and code. Order matters only for
// errors that wrap more than one class.
func classify(err error) errorClass {
	switch {
	case errors.Is(err, period.ErrInvalidPeriod):
		return errorClass{http.StatusBadRequest, CodeInvalidPeriod}
	case errors.Is(err, search.ErrUnknownSortField):
		return errorClass{http.StatusBadRequest, CodeUnknownSortField}
	case errors.Is(err, reservation.ErrInvalidArgument),
		errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, money.ErrInvalidVATRate):
		return errorClass{http.StatusBadRequest, CodeInvalidArgument}
	case errors.Is(err, reservation.ErrNotFound),
		errors.Is(err, vehicle.ErrNotFound),
		errors.Is(err, customer.ErrNotFound):
		return errorClass{http.StatusNotFound, CodeNotFound}
	case errors.Is(err, availability.ErrVehicleAlreadyBooked):
		return errorClass{http.StatusConflict, CodeAlreadyBooked}
	case errors.Is(err, reservation.ErrInvalidTransition):
		return errorClass{http.StatusConflict, CodeInvalidTransition}
	case errors.Is(err, reservation.ErrConcurrencyConflict):
		return errorClass{http.StatusConflict, CodeConflict}
	case errors.Is(err, middleware.ErrRequestInFlight):
		return errorClass{http.StatusConflict, CodeRequestInFlight}
	case errors.Is(err, vehicle.ErrNotRentable):
		return errorClass{http.StatusConflict, CodeNotRentable}
	case errors.Is(err, pricing.ErrNoPricingPolicyFound):
		return errorClass{http.StatusUnprocessableEntity, CodeNoPricingPolicy}
	case errors.Is(err, money.ErrCurrencyMismatch),
		errors.Is(err, money.ErrVATRateMismatch):
		return errorClass{http.StatusUnprocessableEntity, CodeCurrencyMismatch}
	case errors.Is(err, commands.ErrNilBus), errors.Is(err, queries.ErrNilBus):
		return errorClass{http.StatusServiceUnavailable, CodeServiceUnavailable}
	}
	return errorClass{http.StatusInternalServerError, CodeInternal}
}

// errorBody adds the structured fields of the typed errors it recognizes.
func errorBody(err error, code string) gin.H {
	body := gin.H{"error": err.Error(), "code": code}
	var (
		argErr      *reservation.ArgumentError
		transErr    *reservation.TransitionError
		bookedErr   *availability.VehicleBookedError
		conflictErr *reservation.ConflictError
		policyErr   *pricing.NoPolicyError
		periodErr   *period.InvalidPeriodError
		sortErr     *search.UnknownSortFieldError
	)
	switch {
	case errors.As(err, &argErr):
		body["field"] = argErr.Field
	case errors.As(err, &transErr):
		body["reservation_id"] = string(transErr.ReservationID)
		body["status"] = string(transErr.Status)
		body["operation"] = transErr.Operation
	case errors.As(err, &bookedErr):
		body["vehicle_id"] = bookedErr.VehicleID
		body["reservation_ids"] = bookedErr.ReservationIDs
	case errors.As(err, &conflictErr):
		body["reservation_id"] = string(conflictErr.ReservationID)
	case errors.As(err, &policyErr):
		body["category_code"] = policyErr.CategoryCode
		body["location_code"] = policyErr.LocationCode
	case errors.As(err, &periodErr):
		body["reason"] = periodErr.Reason
	case errors.As(err, &sortErr):
		body["allowed"] = sortErr.Allowed
	}
	return body
}

// respondError writes the mapped error. Server-side failures hide their message.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	class := classify(err)
	body := errorBody(err, class.code)
	if class.status >= http.StatusInternalServerError {
		body = gin.H{"error": http.StatusText(class.status), "code": class.code}
		if logger != nil {
			logger.ErrorContext(c.Request.Context(), "request failed",
				slog.String("path", c.FullPath()),
				slog.Int("status", class.status),
				slog.Any("err", err),
			)
		}
	}
	c.AbortWithStatusJSON(class.status, body)
}

func respondBadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": CodeBadRequest})
}
