package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"freight/internal/repository"
	"freight/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status
// code. Infrastructure failures are masked behind a generic message so
// storage detail never leaks to callers.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)

	var rateErr *service.RateLimitError
	if errors.As(err, &rateErr) {
		seconds := int(rateErr.RetryAfter.Round(time.Second).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
	}

	message := err.Error()
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "internal error"
	}

	c.JSON(code, ErrorResponse{Error: message})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	var invalidTransition *service.InvalidTransitionError
	var phaseErr *service.TripPhaseError

	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Authentication / authorization
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrTrackingNotStarted):
		return http.StatusForbidden

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidTripID),
		errors.Is(err, service.ErrInvalidLoadID),
		errors.Is(err, service.ErrInvalidCoordinates),
		errors.Is(err, service.ErrInvalidSpeed),
		errors.Is(err, service.ErrInvalidHeading),
		errors.Is(err, service.ErrInvalidAccuracy),
		errors.Is(err, service.ErrClockDrift),
		errors.Is(err, service.ErrCancelReasonRequired),
		errors.Is(err, service.ErrCancelReasonTooLong):
		return http.StatusBadRequest

	// Rate limiting
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests

	// State machine and guard conflicts
	case errors.As(err, &invalidTransition),
		errors.As(err, &phaseErr),
		errors.Is(err, service.ErrTripStateChanged),
		errors.Is(err, service.ErrTripExistsForLoad),
		errors.Is(err, service.ErrLoadNotAssigned),
		errors.Is(err, service.ErrPODRequired),
		errors.Is(err, service.ErrPODUnverified),
		errors.Is(err, service.ErrDeliveryNotReady),
		errors.Is(err, service.ErrDeliveryAlreadyConfirmed),
		errors.Is(err, service.ErrTrackingDisabled):
		return http.StatusConflict

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
