package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Sentinel pseudo-codes.
const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
)

// Recognition Module Error Codes
const (
	ErrCodeConfiguration  ErrorCode = "REC_001"
	ErrCodeInvalidInput   ErrorCode = "REC_002"
	ErrCodeEngineNotReady ErrorCode = "REC_003"
)

// Corpus Module Error Codes
const (
	ErrCodeCorpusFetchFailed ErrorCode = "CORPUS_001"
	ErrCodeCorpusParseFailed ErrorCode = "CORPUS_002"
	ErrCodeCorpusNotFound    ErrorCode = "CORPUS_003"
	ErrCodeCorpusUnsupported ErrorCode = "CORPUS_004"
)

// Deck Module Error Codes
const (
	ErrCodeDeckParseFailed ErrorCode = "DECK_001"
	ErrCodeDeckMismatch    ErrorCode = "DECK_002"
)

// Messaging Module Error Codes
const (
	ErrCodePublishFailed  ErrorCode = "MQ_001"
	ErrCodeConsumerClosed ErrorCode = "MQ_002"
	ErrCodeProducerClosed ErrorCode = "MQ_003"
)

// Storage Module Error Codes
const (
	ErrCodeStorageError   ErrorCode = "STORE_001"
	ErrCodeObjectNotFound ErrorCode = "STORE_002"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,

	ErrCodeConfiguration:  http.StatusInternalServerError,
	ErrCodeInvalidInput:   http.StatusBadRequest,
	ErrCodeEngineNotReady: http.StatusServiceUnavailable,

	ErrCodeCorpusFetchFailed: http.StatusBadGateway,
	ErrCodeCorpusParseFailed: http.StatusUnprocessableEntity,
	ErrCodeCorpusNotFound:    http.StatusNotFound,
	ErrCodeCorpusUnsupported: http.StatusBadRequest,

	ErrCodeDeckParseFailed: http.StatusBadRequest,
	ErrCodeDeckMismatch:    http.StatusUnprocessableEntity,

	ErrCodePublishFailed:  http.StatusInternalServerError,
	ErrCodeConsumerClosed: http.StatusInternalServerError,
	ErrCodeProducerClosed: http.StatusInternalServerError,

	ErrCodeStorageError:   http.StatusInternalServerError,
	ErrCodeObjectNotFound: http.StatusNotFound,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",

	ErrCodeConfiguration:  "recognizer configuration invalid",
	ErrCodeInvalidInput:   "invalid scan input",
	ErrCodeEngineNotReady: "recognizer not ready",

	ErrCodeCorpusFetchFailed: "failed to fetch corpus",
	ErrCodeCorpusParseFailed: "failed to parse corpus",
	ErrCodeCorpusNotFound:    "corpus not found",
	ErrCodeCorpusUnsupported: "unsupported corpus location or format",

	ErrCodeDeckParseFailed: "failed to parse deck list",
	ErrCodeDeckMismatch:    "deck differs from the expected list",

	ErrCodePublishFailed:  "publish failed",
	ErrCodeConsumerClosed: "consumer closed",
	ErrCodeProducerClosed: "producer closed",

	ErrCodeStorageError:   "object storage error",
	ErrCodeObjectNotFound: "object not found",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
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

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
