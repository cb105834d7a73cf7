package dto

import "net/http"

// General error codes
const (
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeBadRequest = "BAD_REQUEST"
)

// Resource error codes
const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
)

// Availability error codes
const (
	ErrCodeStorageUnavailable = "STORAGE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. Domain errors
// carry their own codes; anything not listed here falls back to 500.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,

	ErrCodeNotFound: http.StatusNotFound,

	// Duplicate deliveries are not failures. The handler still responds
	// with the canonical result body alongside this status.
	ErrCodeAlreadyExists: http.StatusConflict,

	ErrCodeStorageUnavailable: http.StatusServiceUnavailable,

	// Payload problems the sender must fix before retrying
	"INVALID_INPUT":    http.StatusBadRequest,
	"INVALID_PAYLOAD":  http.StatusBadRequest,
	"INVALID_KIND":     http.StatusBadRequest,
	"INVALID_KEY":      http.StatusBadRequest,
	"INVALID_SALE":     http.StatusBadRequest,
	"INVALID_RETURN":   http.StatusBadRequest,
	"INVALID_LINE":     http.StatusBadRequest,
	"INVALID_PRODUCT":  http.StatusBadRequest,
	"INVALID_QUANTITY": http.StatusBadRequest,
	"INVALID_PRICE":    http.StatusBadRequest,
	"INVALID_AMOUNT":   http.StatusBadRequest,
	"INVALID_REASON":   http.StatusBadRequest,

	// References to records the receiving side has never seen
	"UNKNOWN_SALE":      http.StatusUnprocessableEntity,
	"UNKNOWN_SALE_LINE": http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not mapped.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
