// Package errmap holds the classification rules shared by the dialect error
// mappers. Every function here is pure and total: unknown input classifies as
// a provider business error.
package errmap

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/switchboard/pkg/llm"
)

// Inspector lets a dialect classify the body of a failed HTTP response. It
// returns ok=false when the body carries nothing dialect specific.
type Inspector func(status int, body []byte) (kind llm.ErrorKind, message string, ok bool)

// Map converts any raw error into a canonical error. Canonical errors pass
// through (their provider is filled when missing), context errors map to
// canceled/unavailable, HTTP errors go through inspect and then the status
// table, and everything else is classified from its text.
func Map(raw error, provider string, inspect Inspector) *llm.Error {
	if raw == nil {
		return &llm.Error{Kind: llm.ErrorKindProviderBusiness, Provider: provider, Message: "unknown error"}
	}

	if e, ok := llm.AsError(raw); ok {
		if e.Provider == "" {
			e.Provider = provider
		}
		return e
	}

	if e, ok := llm.ContextError(provider, raw); ok {
		return e
	}

	var httpErr *llm.HTTPError
	if errors.As(raw, &httpErr) {
		return FromHTTP(raw, httpErr.StatusCode, httpErr.Body, provider, inspect)
	}

	var netErr net.Error
	if errors.As(raw, &netErr) {
		return llm.NewError(llm.ErrorKindProviderUnavailable, provider, raw)
	}

	e := llm.NewError(llm.ErrorKindProviderBusiness, provider, raw)
	if kind, ok := ClassifyMessage(raw.Error()); ok {
		e.Kind = kind
	}
	return e
}

// FromHTTP classifies a failed HTTP exchange.
func FromHTTP(raw error, status int, body []byte, provider string, inspect Inspector) *llm.Error {
	e := llm.NewError(ClassifyStatus(status), provider, raw)

	msg := Message(body)
	if msg != "" {
		e.Message = msg
	}

	if inspect != nil {
		if kind, m, ok := inspect(status, body); ok {
			e.Kind = kind
			if m != "" {
				e.Message = m
			}
			return e
		}
	}

	// Status codes are coarse; bodies often say more (a 400 that is really a
	// context overflow, a 429 that is really an empty balance).
	if kind, ok := ClassifyMessage(msg); ok && refinable(e.Kind) {
		e.Kind = kind
	}
	return e
}

// refinable reports whether a status-derived kind may be replaced by one
// derived from the message.
func refinable(fromStatus llm.ErrorKind) bool {
	switch fromStatus {
	case llm.ErrorKindRequestMalformed, llm.ErrorKindProviderBusiness,
		llm.ErrorKindQuotaExceeded, llm.ErrorKindModelNotFound:
		return true
	default:
		return false
	}
}

// ClassifyStatus maps an HTTP status code onto a canonical kind.
func ClassifyStatus(status int) llm.ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return llm.ErrorKindInvalidCredentials
	case http.StatusPaymentRequired:
		return llm.ErrorKindInsufficientQuota
	case http.StatusForbidden:
		return llm.ErrorKindPermissionDenied
	case http.StatusNotFound:
		return llm.ErrorKindModelNotFound
	case http.StatusRequestEntityTooLarge:
		return llm.ErrorKindContextWindowExceeded
	case http.StatusTooManyRequests:
		return llm.ErrorKindQuotaExceeded
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusMethodNotAllowed:
		return llm.ErrorKindRequestMalformed
	case http.StatusRequestTimeout, http.StatusBadGateway, http.StatusServiceUnavailable,
		http.StatusGatewayTimeout, 529:
		return llm.ErrorKindProviderUnavailable
	default:
		if status >= 500 {
			return llm.ErrorKindProviderUnavailable
		}
		return llm.ErrorKindProviderBusiness
	}
}

// ClassifyCode maps the well known error codes and types providers put in
// their error bodies.
func ClassifyCode(code string) (llm.ErrorKind, bool) {
	switch strings.ToLower(code) {
	case "invalid_api_key", "authentication_error", "unauthenticated", "invalid_authentication",
		"unrecognizedclientexception", "incomplete_signature", "invalidsignatureexception":
		return llm.ErrorKindInvalidCredentials, true
	case "rate_limit_exceeded", "rate_limit_error", "resource_exhausted", "throttlingexception",
		"too_many_requests", "servicequotaexceededexception":
		return llm.ErrorKindQuotaExceeded, true
	case "insufficient_quota", "billing_hard_limit_reached", "billing_error", "insufficient_balance":
		return llm.ErrorKindInsufficientQuota, true
	case "model_not_found", "not_found_error", "not_found", "resourcenotfoundexception":
		return llm.ErrorKindModelNotFound, true
	case "permission_error", "permission_denied", "accessdeniedexception":
		return llm.ErrorKindPermissionDenied, true
	case "context_length_exceeded", "string_above_max_length", "request_too_large":
		return llm.ErrorKindContextWindowExceeded, true
	case "invalid_request_error", "invalid_argument", "validationexception", "invalid_request":
		return llm.ErrorKindRequestMalformed, true
	case "overloaded_error", "api_error", "server_error", "unavailable", "internal",
		"serviceunavailableexception", "internalserverexception", "modelnotreadyexception",
		"modeltimeoutexception", "deadline_exceeded":
		return llm.ErrorKindProviderUnavailable, true
	default:
		return "", false
	}
}

var messageRules = []struct {
	kind    llm.ErrorKind
	needles []string
}{
	{llm.ErrorKindContextWindowExceeded, []string{
		"context length", "context window", "maximum context", "prompt is too long",
		"too many tokens", "input is too long", "exceeds the maximum number of tokens",
	}},
	{llm.ErrorKindInsufficientQuota, []string{
		"insufficient_quota", "insufficient balance", "exceeded your current quota", "credit balance is too low",
	}},
	{llm.ErrorKindInvalidCredentials, []string{
		"invalid api key", "incorrect api key", "invalid x-api-key", "api key not valid", "invalid_api_key",
	}},
	{llm.ErrorKindModelNotFound, []string{
		"model not found", "model_not_found", "does not exist", "unknown model", "no such model",
	}},
	{llm.ErrorKindQuotaExceeded, []string{
		"rate limit", "too many requests", "rate_limit",
	}},
	{llm.ErrorKindProviderUnavailable, []string{
		"overloaded", "temporarily unavailable", "service unavailable", "connection refused",
		"connection reset", "no such host", "i/o timeout",
	}},
}

// ClassifyMessage looks for well known phrases in an error message.
func ClassifyMessage(msg string) (llm.ErrorKind, bool) {
	if msg == "" {
		return "", false
	}
	lower := strings.ToLower(msg)
	for _, rule := range messageRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.kind, true
			}
		}
	}
	return "", false
}

// Message extracts a human readable message from the common error body
// envelopes: {"error":{"message":...}}, {"error":"..."}, {"message":...}.
func Message(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	for _, path := range []string{"error.message", "error", "message", "Message", "detail"} {
		r := gjson.GetBytes(body, path)
		if r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

// Code extracts the provider error code or type from a JSON error body.
func Code(body []byte, paths ...string) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range paths {
		r := gjson.GetBytes(body, path)
		if r.Exists() && r.String() != "" {
			return r.String()
		}
	}
	return ""
}

// CodeInspector builds an Inspector that classifies by the first error code
// found at paths.
func CodeInspector(paths ...string) Inspector {
	return func(_ int, body []byte) (llm.ErrorKind, string, bool) {
		kind, ok := ClassifyCode(Code(body, paths...))
		return kind, "", ok
	}
}
