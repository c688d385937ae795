package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Standard sentinel errors for comparison using errors.Is()
// These identify the error kind; APIError wraps them with context.
var (
	// ErrTransport marks network/socket/timeout failures and use of a
	// closed transport.
	ErrTransport = errors.New("transport error")

	// ErrClientClosed marks use of a client after Close.
	ErrClientClosed = errors.New("client closed")

	// ErrValidation marks rejected input, body STATUS 400, checkpoint
	// fingerprint mismatches, and local cap breaches.
	ErrValidation = errors.New("validation error")

	// ErrServer marks body STATUS 500 or HTTP >= 500 without a body status.
	ErrServer = errors.New("server error")

	// ErrUnavailable marks body STATUS 503 or HTTP 503 without a body status.
	ErrUnavailable = errors.New("service unavailable")

	// ErrProtocol marks response shape or HTTP/body status inconsistency.
	ErrProtocol = errors.New("protocol error")

	// ErrPartialResult marks a failure after partial progress was collected.
	ErrPartialResult = errors.New("partial result")
)

// CauseServerTransient tags errors the transport may retry.
const CauseServerTransient = "server_transient"

// APIError provides structured error information with status context.
// It implements the error interface and supports error wrapping;
// errors.Is matches against the sentinel in Kind.
type APIError struct {
	Kind       error  // Sentinel identifying the error kind
	Message    string // Human-readable message
	Status     int    // Body STATUS, 0 when absent
	MessageID  string // Body MESSAGEID, empty when absent
	HTTPStatus int    // HTTP status code, 0 when absent
	Cause      string // Failure cause tag (e.g. "server_transient", "network")
	Err        error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "api error"
}

// Is reports whether target matches this error's kind
func (e *APIError) Is(target error) bool {
	return target != nil && target == e.Kind
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *APIError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation APIError with a formatted message
func NewValidationError(format string, args ...interface{}) *APIError {
	return &APIError{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// NewProtocolError creates a protocol APIError with a formatted message
func NewProtocolError(format string, args ...interface{}) *APIError {
	return &APIError{Kind: ErrProtocol, Message: fmt.Sprintf(format, args...)}
}

// ExtractStatus reads the body STATUS field. Accepted encodings are
// integers, integral JSON numbers, and non-empty digit strings.
// ok is false when the field is absent or unreadable; an explicit
// STATUS of 0 is a present (unknown) status, not a missing one.
func ExtractStatus(payload map[string]interface{}) (status int, ok bool) {
	if payload == nil {
		return 0, false
	}
	return toInt(payload["STATUS"])
}

// ExtractMessageID reads the body MESSAGEID field, empty when absent.
func ExtractMessageID(payload map[string]interface{}) string {
	return stringField(payload, "MESSAGEID")
}

// ExtractMessage reads the body MESSAGE field, empty when absent.
func ExtractMessage(payload map[string]interface{}) string {
	return stringField(payload, "MESSAGE")
}

func stringField(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	if text, ok := value.(string); ok {
		return text
	}
	return fmt.Sprint(value)
}

func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
		return 0, false
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return 0, false
		}
		parsed, err := strconv.Atoi(text)
		if err != nil || parsed < 0 {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// ClassifyAPIError maps the HTTP status and body STATUS pair onto the
// error taxonomy. A nil return means success (both statuses are 200).
// The body status takes precedence when present; when it is missing the
// HTTP status bands decide; anything else is a protocol inconsistency.
func ClassifyAPIError(payload map[string]interface{}, httpStatus int) *APIError {
	status, hasStatus := ExtractStatus(payload)
	messageID := ExtractMessageID(payload)
	message := ExtractMessage(payload)
	if message == "" {
		message = "stat-search API request failed"
	}

	if hasStatus && status == 200 && httpStatus == 200 {
		return nil
	}

	switch status {
	case 400:
		return &APIError{
			Kind:       ErrValidation,
			Message:    message,
			Status:     status,
			MessageID:  messageID,
			HTTPStatus: httpStatus,
		}
	case 500:
		return &APIError{
			Kind:       ErrServer,
			Message:    message,
			Status:     status,
			MessageID:  messageID,
			HTTPStatus: httpStatus,
			Cause:      CauseServerTransient,
		}
	case 503:
		return &APIError{
			Kind:       ErrUnavailable,
			Message:    message,
			Status:     status,
			MessageID:  messageID,
			HTTPStatus: httpStatus,
			Cause:      CauseServerTransient,
		}
	}

	if hasStatus && status == 200 && httpStatus >= 400 {
		return &APIError{
			Kind:       ErrProtocol,
			Message:    "HTTP status and body STATUS are inconsistent",
			Status:     status,
			MessageID:  messageID,
			HTTPStatus: httpStatus,
		}
	}

	if !hasStatus {
		switch {
		case httpStatus == 0:
			return &APIError{Kind: ErrProtocol, Message: "missing both HTTP and body status"}
		case httpStatus == 503:
			return &APIError{Kind: ErrUnavailable, Message: message, HTTPStatus: httpStatus}
		case httpStatus >= 500:
			return &APIError{Kind: ErrServer, Message: message, HTTPStatus: httpStatus}
		case httpStatus >= 400:
			return &APIError{Kind: ErrValidation, Message: message, HTTPStatus: httpStatus}
		default:
			return &APIError{
				Kind:       ErrProtocol,
				Message:    "body STATUS is missing in successful HTTP response",
				HTTPStatus: httpStatus,
			}
		}
	}

	return &APIError{
		Kind:       ErrProtocol,
		Message:    "unknown STATUS in stat-search response",
		Status:     status,
		MessageID:  messageID,
		HTTPStatus: httpStatus,
	}
}

// JSONParseError maps a non-JSON response body onto the taxonomy by
// the HTTP status band.
func JSONParseError(httpStatus int) *APIError {
	const message = "response body is not valid JSON"
	switch {
	case httpStatus == 503:
		return &APIError{Kind: ErrUnavailable, Message: message, HTTPStatus: httpStatus, Cause: CauseServerTransient}
	case httpStatus >= 500:
		return &APIError{Kind: ErrServer, Message: message, HTTPStatus: httpStatus, Cause: CauseServerTransient}
	case httpStatus >= 400:
		return &APIError{Kind: ErrValidation, Message: message, HTTPStatus: httpStatus}
	default:
		return &APIError{Kind: ErrProtocol, Message: message, HTTPStatus: httpStatus}
	}
}
