package dto

import (
	"net/http"
	"strings"

	"github.com/dormitory/backend/internal/domain/shared"
)

// Codes raised by the HTTP layer itself. Domain codes (shared.Code*) are
// passed through unchanged.
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRouteNotFound   = "ROUTE_NOT_FOUND"
	ErrCodeUnavailable     = "SERVICE_UNAVAILABLE"
)

// Domain codes that are not in shared
const (
	ErrCodeHasPayments          = "HAS_PAYMENTS"
	ErrCodeGatewayNotConfigured = "GATEWAY_NOT_CONFIGURED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeBadRequest:       http.StatusBadRequest,
	shared.CodeInvalidInput: http.StatusBadRequest,

	shared.CodeNotFound:  http.StatusNotFound,
	ErrCodeRouteNotFound: http.StatusNotFound,

	shared.CodeAlreadyExists:       http.StatusConflict,
	shared.CodeConflict:            http.StatusConflict,
	shared.CodeConcurrencyConflict: http.StatusConflict,
	shared.CodeInvalidState:        http.StatusConflict,
	ErrCodeHasPayments:             http.StatusConflict,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,

	ErrCodeGatewayNotConfigured: http.StatusServiceUnavailable,
	ErrCodeUnavailable:          http.StatusServiceUnavailable,

	shared.CodeInternal: http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unlisted INVALID_* codes are field validation failures (400); anything
// else unknown is a 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
