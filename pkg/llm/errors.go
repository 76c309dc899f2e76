package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind is the closed set of canonical failure kinds. New kinds are added
// here; values outside this set are rejected by ParseErrorKind.
type ErrorKind string

const (
	ErrorKindInvalidCredentials    ErrorKind = "invalid_credentials"
	ErrorKindQuotaExceeded         ErrorKind = "quota_exceeded"
	ErrorKindInsufficientQuota     ErrorKind = "insufficient_quota"
	ErrorKindModelNotFound         ErrorKind = "model_not_found"
	ErrorKindPermissionDenied      ErrorKind = "permission_denied"
	ErrorKindContextWindowExceeded ErrorKind = "context_window_exceeded"
	ErrorKindRequestMalformed      ErrorKind = "request_malformed"
	ErrorKindProviderUnavailable   ErrorKind = "provider_unavailable"
	ErrorKindStreamDecode          ErrorKind = "stream_decode"
	ErrorKindCanceled              ErrorKind = "canceled"
	ErrorKindCallbackFailed        ErrorKind = "callback_failed"
	ErrorKindProviderBusiness      ErrorKind = "provider_business"
)

var errorKinds = []ErrorKind{
	ErrorKindInvalidCredentials,
	ErrorKindQuotaExceeded,
	ErrorKindInsufficientQuota,
	ErrorKindModelNotFound,
	ErrorKindPermissionDenied,
	ErrorKindContextWindowExceeded,
	ErrorKindRequestMalformed,
	ErrorKindProviderUnavailable,
	ErrorKindStreamDecode,
	ErrorKindCanceled,
	ErrorKindCallbackFailed,
	ErrorKindProviderBusiness,
}

// ErrorKinds returns every canonical error kind.
func ErrorKinds() []ErrorKind {
	out := make([]ErrorKind, len(errorKinds))
	copy(out, errorKinds)
	return out
}

// ParseErrorKind converts a configured kind name into an ErrorKind.
func ParseErrorKind(s string) (ErrorKind, error) {
	k := ErrorKind(strings.TrimSpace(strings.ToLower(s)))
	if k.Valid() {
		return k, nil
	}
	return "", fmt.Errorf("unknown error kind: %q", s)
}

// Valid reports whether k belongs to the canonical taxonomy.
func (k ErrorKind) Valid() bool {
	for _, known := range errorKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Retryable reports whether repeating the same request later may succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindQuotaExceeded, ErrorKindProviderUnavailable:
		return true
	default:
		return false
	}
}

// Error is the canonical error. It is the only error shape that crosses the
// pipeline boundary and the router.
type Error struct {
	Kind ErrorKind `json:"kind"`

	// Provider is the logical provider (or dialect) name the failure came from.
	Provider string `json:"provider"`

	Message string `json:"message,omitempty"`

	// Exhausted is set by the router when every candidate was tried.
	Exhausted bool `json:"exhausted,omitempty"`
	Attempts  int  `json:"attempts,omitempty"`

	// ProviderRaw is the original error, kept for diagnostics.
	ProviderRaw error `json:"-"`
}

// NewError builds a canonical error. The message defaults to the raw error text.
func NewError(kind ErrorKind, provider string, raw error) *Error {
	e := &Error{Kind: kind, Provider: provider, ProviderRaw: raw}
	if raw != nil {
		e.Message = raw.Error()
	}
	return e
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Provider != "" {
		sb.WriteString(e.Provider)
		sb.WriteString(": ")
	}
	sb.WriteString(string(e.Kind))
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Exhausted {
		fmt.Fprintf(&sb, " (all %d candidates tried)", e.Attempts)
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.ProviderRaw
}

// Retryable is derived from the kind.
func (e *Error) Retryable() bool {
	return e.Kind.Retryable()
}

// ErrorPayload is the wire shape handed to HTTP route handlers.
type ErrorPayload struct {
	ErrorType string `json:"errorType"`
	Error     string `json:"error"`
	Provider  string `json:"provider"`
}

// Payload renders e for an outbound error response.
func (e *Error) Payload() ErrorPayload {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Exhausted {
		msg = fmt.Sprintf("%s (all %d candidates tried)", msg, e.Attempts)
	}
	return ErrorPayload{
		ErrorType: string(e.Kind),
		Error:     msg,
		Provider:  e.Provider,
	}
}

// HTTPStatus suggests the status code a route handler should answer with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case ErrorKindInvalidCredentials:
		return http.StatusUnauthorized
	case ErrorKindPermissionDenied:
		return http.StatusForbidden
	case ErrorKindModelNotFound:
		return http.StatusNotFound
	case ErrorKindQuotaExceeded:
		return http.StatusTooManyRequests
	case ErrorKindInsufficientQuota:
		return http.StatusPaymentRequired
	case ErrorKindContextWindowExceeded, ErrorKindRequestMalformed:
		return http.StatusBadRequest
	case ErrorKindProviderUnavailable:
		return http.StatusServiceUnavailable
	case ErrorKindCanceled:
		return 499
	default:
		return http.StatusBadGateway
	}
}

// AsError returns the canonical error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ContextError maps context cancellation and deadline errors. ok is false for
// any other error.
func ContextError(provider string, err error) (*Error, bool) {
	switch {
	case errors.Is(err, context.Canceled):
		return NewError(ErrorKindCanceled, provider, err), true
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrorKindProviderUnavailable, provider, err), true
	default:
		return nil, false
	}
}

// HTTPError is the raw error produced for a non-2xx upstream response.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	if body == "" {
		return fmt.Sprintf("upstream returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, body)
}
