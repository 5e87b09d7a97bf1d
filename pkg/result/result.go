// Package result provides the uniform response envelope every reconciliation
// operation returns. Callers branch on OK; failures carry an ErrorKind so the
// route layer and tests do not have to parse messages.
package result

import "net/http"

// ErrorKind classifies a failed operation.
type ErrorKind string

const (
	KindNone ErrorKind = ""

	// KindSourceNotFound means a requested order is absent upstream.
	KindSourceNotFound ErrorKind = "source_not_found"

	// KindSourceTransport means a non-2xx or malformed upstream response.
	KindSourceTransport ErrorKind = "source_transport"

	// KindTargetRejected means the CRM reported a nonzero error code.
	KindTargetRejected ErrorKind = "target_rejected"

	// KindLinkInconsistency means the order/customer link could not be
	// persisted after successful creates and needs manual repair.
	KindLinkInconsistency ErrorKind = "link_inconsistency"

	// KindConsistencyTimeout means a created record never became visible
	// to reads within the confirmation window.
	KindConsistencyTimeout ErrorKind = "consistency_timeout"

	// KindJobNotFound means a polled job id is unknown to the queue.
	KindJobNotFound ErrorKind = "job_not_found"
)

// Result is the envelope returned by every gateway, client and engine
// operation. Value is only meaningful when OK is true.
type Result[T any] struct {
	OK         bool      `json:"ok"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Kind       ErrorKind `json:"error_kind,omitempty"`
	Value      T         `json:"result"`
}

// Ok builds a successful envelope.
func Ok[T any](value T, message string) Result[T] {
	return Result[T]{
		OK:         true,
		Message:    message,
		StatusCode: http.StatusOK,
		Value:      value,
	}
}

// Fail builds a failed envelope with a zero Value.
func Fail[T any](kind ErrorKind, statusCode int, message string) Result[T] {
	return Result[T]{
		OK:         false,
		Message:    message,
		StatusCode: statusCode,
		Kind:       kind,
	}
}

// FailFrom copies the failure fields of another envelope, discarding its
// payload type. Used to propagate a failed step verbatim.
func FailFrom[T, U any](other Result[U]) Result[T] {
	return Result[T]{
		OK:         false,
		Message:    other.Message,
		StatusCode: other.StatusCode,
		Kind:       other.Kind,
	}
}

// NormalizeStatus maps a business error observed over a successful transport
// to 500, preserving real transport error codes. Both remote systems report
// business errors inside 200 responses.
func NormalizeStatus(transportStatus int) int {
	if transportStatus == http.StatusOK {
		return http.StatusInternalServerError
	}
	return transportStatus
}
