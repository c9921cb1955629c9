package dto

import "net/http"

// Error codes returned in ErrorInfo.Code.
// Format: ERR_<CATEGORY>_<DESCRIPTION>

const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input errors
const (
	// ErrCodeValidation is returned for rejected user input
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when the body cannot be decoded
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeBodyTooLarge is used when the body exceeds the configured limit
	ErrCodeBodyTooLarge = "ERR_BODY_TOO_LARGE"
)

// Document errors
const (
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConcurrencyConflict is returned when the client saved a stale copy
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeInvalidState is used when a transition is not allowed from the current status
	ErrCodeInvalidState = "ERR_INVALID_STATE"
)

// Commerce errors
const (
	// ErrCodeAllocationOverrun rejects a payment above the target debt
	ErrCodeAllocationOverrun = "ERR_ALLOCATION_OVERRUN"
	// ErrCodePriceAborted is returned when a not-covered item was declined
	ErrCodePriceAborted = "ERR_PRICE_ABORTED"
	// ErrCodeExternalLookup is returned when a collaborator could not be reached
	ErrCodeExternalLookup = "ERR_EXTERNAL_LOOKUP"
	// ErrCodePartialCompletion means a payment committed but the document
	// update did not. The response carries the ids needed to reconcile.
	ErrCodePartialCompletion = "ERR_PARTIAL_COMPLETION"
)

const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeBodyTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,

	ErrCodeAllocationOverrun: http.StatusUnprocessableEntity,
	ErrCodePriceAborted:      http.StatusUnprocessableEntity,
	ErrCodeExternalLookup:    http.StatusBadGateway,
	ErrCodePartialCompletion: http.StatusInternalServerError,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":              ErrCodeNotFound,
	"INVALID_INPUT":          ErrCodeValidation,
	"INVALID_STATE":          ErrCodeInvalidState,
	"VALIDATION_ERROR":       ErrCodeValidation,
	"CONCURRENCY_CONFLICT":   ErrCodeConcurrencyConflict,
	"EXTERNAL_LOOKUP_FAILED": ErrCodeExternalLookup,
	"PARTIAL_COMPLETION":     ErrCodePartialCompletion,
	"ALLOCATION_OVERRUN":     ErrCodeAllocationOverrun,
	"PRICE_ABORTED":          ErrCodePriceAborted,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in API format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
