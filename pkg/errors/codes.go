package errors

import "net/http"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	CodeInternal           ErrorCode = "COMMON_001"
	CodeInvalidParam       ErrorCode = "COMMON_002"
	CodeUnauthorized       ErrorCode = "COMMON_003"
	CodeForbidden          ErrorCode = "COMMON_004"
	CodeNotFound           ErrorCode = "COMMON_005"
	CodeConflict           ErrorCode = "COMMON_006"
	CodeTooManyRequests    ErrorCode = "COMMON_007"
	CodeServiceUnavailable ErrorCode = "COMMON_008"
	CodeTimeout            ErrorCode = "COMMON_009"
	CodeValidation         ErrorCode = "COMMON_010"
	CodeSerialization      ErrorCode = "COMMON_011"
	CodeDatabaseError      ErrorCode = "COMMON_012"
	CodeCacheError         ErrorCode = "COMMON_013"
	CodeMessageQueueError  ErrorCode = "COMMON_014"

	CodeUnknown ErrorCode = "UNKNOWN"
	CodeOK      ErrorCode = "OK"
)

// Geometry error codes.  All of these classify as validation failures and are
// rejected synchronously, before any transaction starts.
const (
	CodeGeometryInvalid   ErrorCode = "GEO_001" // self-intersecting, unclosed, or degenerate rings
	CodeGeometryMalformed ErrorCode = "GEO_002" // unparseable GeoJSON input
	CodeGeometryNotSubset ErrorCode = "GEO_003" // sponsorship geometry escapes its territory
)

// Territory error codes.
const (
	CodeTerritoryNotFound  ErrorCode = "TER_001"
	CodeTerritoryNotOwned  ErrorCode = "TER_002"
	CodeTerritoryNameEmpty ErrorCode = "TER_003"
)

// Sponsorship / allocation error codes.
const (
	CodeAllocationConflict      ErrorCode = "SPN_001" // remainder sold out or lost the commit race
	CodeSponsorshipNotFound     ErrorCode = "SPN_002"
	CodeSponsorshipStateInvalid ErrorCode = "SPN_003" // illegal lifecycle transition
	CodeIdempotencyKeyMissing   ErrorCode = "SPN_004"
)

// Pricing / policy error codes.
const (
	CodePolicyViolation  ErrorCode = "PRC_001"
	CodeSlotUnknown      ErrorCode = "PRC_002"
	CodeAreaBelowMinimum ErrorCode = "PRC_003"
)

// Payment error codes.  These arrive asynchronously from the gateway
// confirmation path and are handled by cleanup, not the original caller.
const (
	CodePaymentFailed    ErrorCode = "PAY_001"
	CodePaymentDuplicate ErrorCode = "PAY_002"
)

// errorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var errorCodeHTTPStatus = map[ErrorCode]int{
	CodeInternal:           http.StatusInternalServerError,
	CodeInvalidParam:       http.StatusBadRequest,
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeForbidden:          http.StatusForbidden,
	CodeNotFound:           http.StatusNotFound,
	CodeConflict:           http.StatusConflict,
	CodeTooManyRequests:    http.StatusTooManyRequests,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
	CodeTimeout:            http.StatusGatewayTimeout,
	CodeValidation:         http.StatusUnprocessableEntity,
	CodeSerialization:      http.StatusInternalServerError,
	CodeDatabaseError:      http.StatusInternalServerError,
	CodeCacheError:         http.StatusInternalServerError,
	CodeMessageQueueError:  http.StatusInternalServerError,

	CodeGeometryInvalid:   http.StatusBadRequest,
	CodeGeometryMalformed: http.StatusBadRequest,
	CodeGeometryNotSubset: http.StatusBadRequest,

	CodeTerritoryNotFound:  http.StatusNotFound,
	CodeTerritoryNotOwned:  http.StatusForbidden,
	CodeTerritoryNameEmpty: http.StatusBadRequest,

	CodeAllocationConflict:      http.StatusConflict,
	CodeSponsorshipNotFound:     http.StatusNotFound,
	CodeSponsorshipStateInvalid: http.StatusConflict,
	CodeIdempotencyKeyMissing:   http.StatusBadRequest,

	CodePolicyViolation:  http.StatusBadRequest,
	CodeSlotUnknown:      http.StatusBadRequest,
	CodeAreaBelowMinimum: http.StatusBadRequest,

	CodePaymentFailed:    http.StatusBadGateway,
	CodePaymentDuplicate: http.StatusConflict,
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}
