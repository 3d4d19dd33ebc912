// Package chaterrors defines the structured error value the chat runtime
// surfaces to hosts, along with the HTTP-status classification used before a
// stream has started.
package chaterrors

import (
	"errors"
	"fmt"
)

// ErrorType classifies a chat failure into a closed set suitable for retry
// and UX decisions. It intentionally mirrors the shape of a model provider's
// error classification rather than introducing a second taxonomy.
type ErrorType string

const (
	// ErrorTypeAuthentication indicates the platform or provider rejected
	// credentials.
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypePermission indicates the caller is not authorized for the
	// requested operation.
	ErrorTypePermission ErrorType = "permission_error"
	// ErrorTypeValidation indicates the request was malformed.
	ErrorTypeValidation ErrorType = "validation_error"
	// ErrorTypeNotFound indicates a referenced resource does not exist.
	ErrorTypeNotFound ErrorType = "not_found_error"
	// ErrorTypeRateLimit indicates the platform or provider is throttling.
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypeQuotaExceeded indicates an account-level quota was exhausted.
	ErrorTypeQuotaExceeded ErrorType = "quota_exceeded_error"
	// ErrorTypeProvider indicates an unclassified model-provider failure.
	ErrorTypeProvider ErrorType = "provider_error"
	// ErrorTypeProviderOverloaded indicates the provider is temporarily
	// overloaded (maps from HTTP 503).
	ErrorTypeProviderOverloaded ErrorType = "provider_overloaded"
	// ErrorTypeProviderTimeout indicates the provider did not respond in
	// time (maps from HTTP 504).
	ErrorTypeProviderTimeout ErrorType = "provider_timeout"
	// ErrorTypeExecution indicates a protocol block failed to execute.
	ErrorTypeExecution ErrorType = "execution_error"
	// ErrorTypeTool indicates a tool call failed.
	ErrorTypeTool ErrorType = "tool_error"
	// ErrorTypeProtocol indicates the wire protocol was violated.
	ErrorTypeProtocol ErrorType = "protocol_error"
	// ErrorTypeInternal indicates an unclassified runtime-side failure.
	ErrorTypeInternal ErrorType = "internal_error"
	// ErrorTypeUnknown is the fallback when nothing else applies.
	ErrorTypeUnknown ErrorType = "unknown_error"
)

// Source identifies which layer raised the error.
type Source string

const (
	// SourcePlatform indicates the hosting platform raised the error.
	SourcePlatform Source = "platform"
	// SourceProvider indicates the model provider raised the error.
	SourceProvider Source = "provider"
	// SourceTool indicates a tool call raised the error.
	SourceTool Source = "tool"
	// SourceClient indicates the runtime itself raised the error (transport,
	// protocol, or reducer failure).
	SourceClient Source = "client"
)

type (
	// ProviderInfo carries provider-specific detail attached to an Error.
	ProviderInfo struct {
		Name       string
		Model      string
		StatusCode int
		ErrorType  string
		RequestID  string
	}

	// ToolInfo identifies the failing tool call when Source is SourceTool.
	ToolInfo struct {
		Name   string
		CallID string
	}
)

// Error is the structured failure value raised by the chat runtime. It is
// intended to cross the host boundary, so all fields are exported; the
// accessor-heavy style the teacher uses for model.ProviderError is not
// needed here since there is no invariant to protect behind getters.
type Error struct {
	ErrorType  ErrorType
	Message    string
	Source     Source
	Retryable  bool
	RetryAfter int // seconds; 0 when not applicable
	Code       string
	Provider   *ProviderInfo
	Tool       *ToolInfo

	cause error
}

// New constructs an Error. An empty errType defaults to ErrorTypeUnknown, an
// empty source to SourceClient, and an empty message to "chat error".
func New(errType ErrorType, source Source, message string) *Error {
	if errType == "" {
		errType = ErrorTypeUnknown
	}
	if source == "" {
		source = SourceClient
	}
	if message == "" {
		message = "chat error"
	}
	return &Error{ErrorType: errType, Source: source, Message: message}
}

// Wrap constructs an Error that preserves cause in its chain.
func Wrap(errType ErrorType, source Source, message string, cause error) *Error {
	e := New(errType, source, message)
	e.cause = cause
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	code := ""
	if e.Code != "" {
		code = " (" + e.Code + ")"
	}
	msg := e.Message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	return fmt.Sprintf("%s %s%s: %s", e.Source, e.ErrorType, code, msg)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// AsChatError returns the first *Error in err's chain, if any.
func AsChatError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsRateLimitError reports whether err is (or wraps) a rate-limit Error.
func IsRateLimitError(err error) bool {
	ce, ok := AsChatError(err)
	return ok && ce.ErrorType == ErrorTypeRateLimit
}

// FromHTTPStatus classifies a pre-stream HTTP failure into an Error. It is
// used by transports when the initial request fails before any event is
// ever parsed.
func FromHTTPStatus(status int, message string) *Error {
	var (
		errType   ErrorType
		retryable bool
	)
	switch {
	case status == 400:
		errType = ErrorTypeValidation
	case status == 401:
		errType = ErrorTypeAuthentication
	case status == 403:
		errType = ErrorTypePermission
	case status == 404:
		errType = ErrorTypeNotFound
	case status == 429:
		errType = ErrorTypeRateLimit
		retryable = true
	case status == 503:
		errType = ErrorTypeProviderOverloaded
		retryable = true
	case status == 504:
		errType = ErrorTypeProviderTimeout
		retryable = true
	case status >= 500:
		errType = ErrorTypeInternal
		retryable = true
	default:
		errType = ErrorTypeUnknown
	}
	e := New(errType, SourcePlatform, message)
	e.Retryable = retryable
	e.Provider = &ProviderInfo{StatusCode: status}
	return e
}
