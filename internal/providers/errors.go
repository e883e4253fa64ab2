package providers

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a provider error for the failover chain (spec.md
// §4.5). Order of the classification rules matters: ContextWindow is
// checked first because some of its substrings ("request too large")
// overlap with RateLimit-adjacent wording from certain providers.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrContextWindow
	ErrRateLimit
	ErrAuthError
	ErrBillingExhausted
	ErrServerError
	ErrInvalidRequest
)

func (k ErrorKind) String() string {
	switch k {
	case ErrContextWindow:
		return "context_window"
	case ErrRateLimit:
		return "rate_limit"
	case ErrAuthError:
		return "auth_error"
	case ErrBillingExhausted:
		return "billing_exhausted"
	case ErrServerError:
		return "server_error"
	case ErrInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// ShouldFailover reports whether the failover chain should try the next
// provider for this error kind. ContextWindow and InvalidRequest are not
// failover-eligible: retrying the same request against a different backend
// will not fix a request that is malformed or too large.
func (k ErrorKind) ShouldFailover() bool {
	switch k {
	case ErrContextWindow, ErrInvalidRequest:
		return false
	default:
		return true
	}
}

var classificationOrder = []struct {
	kind     ErrorKind
	matchers []string
}{
	{ErrContextWindow, []string{
		"context_length_exceeded", "max_tokens", "too many tokens", "request too large",
		"maximum context length", "context window", "token limit", "content_too_large",
		"request_too_large",
	}},
	{ErrRateLimit, []string{
		"429", "rate limit", "rate_limit", "too many requests",
	}},
	{ErrAuthError, []string{
		"401", "403", "unauthorized", "forbidden", "invalid api key", "invalid_api_key",
		"authentication",
	}},
	{ErrBillingExhausted, []string{
		"billing", "quota", "insufficient_quota", "usage limit", "credit",
	}},
	{ErrServerError, []string{
		"500", "502", "503", "504", "internal server error", "bad gateway",
		"service unavailable", "overloaded",
	}},
	{ErrInvalidRequest, []string{
		"400", "bad request", "invalid_request",
	}},
}

// Classify inspects an error's message and returns its ErrorKind. An error
// matching none of the known substrings classifies as ErrUnknown, which is
// failover-eligible: an unrecognized failure is assumed transient rather
// than assumed fatal.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrUnknown
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Kind
	}

	reason := strings.ToLower(err.Error())
	for _, rule := range classificationOrder {
		for _, substr := range rule.matchers {
			if strings.Contains(reason, substr) {
				return rule.kind
			}
		}
	}
	return ErrUnknown
}

// ProviderError wraps a raw transport failure with the provider/model
// context the failover chain and telemetry need. Classify prefers a
// pre-classified ProviderError's Kind over re-deriving it from the message,
// since providers can classify from a structured API error code that a bare
// string match would miss.
type ProviderError struct {
	Provider string
	Model    string
	Kind     ErrorKind
	Cause    error
}

// NewProviderError wraps cause, classifying it from its message unless the
// caller already knows the kind (e.g. from an HTTP status code).
func NewProviderError(provider, model string, cause error) *ProviderError {
	e := &ProviderError{Provider: provider, Model: model, Cause: cause}
	if cause != nil {
		e.Kind = classifyMessage(cause.Error())
	}
	return e
}

func classifyMessage(msg string) ErrorKind {
	reason := strings.ToLower(msg)
	for _, rule := range classificationOrder {
		for _, substr := range rule.matchers {
			if strings.Contains(reason, substr) {
				return rule.kind
			}
		}
	}
	return ErrUnknown
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s[%s]: %s", e.Provider, e.Kind, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// ErrorKind exposes the classification as a string so callers that cannot
// import this package (e.g. the agent loop, to avoid a cycle) can still
// recognize a context-window failure via errors.As against a small
// interface shape.
func (e *ProviderError) ErrorKind() string {
	return e.Kind.String()
}
