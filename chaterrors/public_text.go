package chaterrors

// This file defines the user-facing error messages emitted by the runtime.
//
// Callers may override these variables at process startup (before any chat
// is started) to customize UX text without forking the runtime.
//
// Contract:
// - These messages are intended to be rendered directly in UIs.
// - Do not mutate these values concurrently with an active Send.
var (
	// PublicTextTimeout is used when a run fails due to a timeout.
	PublicTextTimeout = "The request timed out. Please retry."

	// PublicTextInternal is used when a run fails for an unclassified reason.
	PublicTextInternal = "The request failed. Please retry."

	// PublicTextProviderRateLimited is used when the model provider is
	// throttling requests.
	PublicTextProviderRateLimited = "The AI provider is rate-limiting requests. Please wait a moment and retry."

	// PublicTextProviderOverloaded is used when the model provider is
	// temporarily overloaded.
	PublicTextProviderOverloaded = "The AI provider is temporarily unavailable. Please retry."

	// PublicTextProviderInvalidRequest is used when the provider rejects the
	// request as invalid.
	PublicTextProviderInvalidRequest = "The AI provider rejected the request."

	// PublicTextAuthentication is used when authentication or authorization
	// fails.
	PublicTextAuthentication = "Authentication with the AI provider failed."

	// PublicTextToolFailed is used when a tool call fails without a
	// provider-supplied message.
	PublicTextToolFailed = "A tool call failed. Please retry."

	// PublicTextDefault is used for unclassified failures.
	PublicTextDefault = "Something went wrong. Please retry."
)

// PublicText returns the overridable user-facing text for e. Hosts that
// want bespoke copy should prefer overriding the PublicText* variables over
// inspecting e.ErrorType directly, since the mapping here may grow more
// specific over time without becoming a breaking API change.
func PublicText(e *Error) string {
	if e == nil {
		return PublicTextDefault
	}
	switch e.ErrorType {
	case ErrorTypeProviderTimeout:
		return PublicTextTimeout
	case ErrorTypeRateLimit:
		return PublicTextProviderRateLimited
	case ErrorTypeProviderOverloaded:
		return PublicTextProviderOverloaded
	case ErrorTypeValidation:
		return PublicTextProviderInvalidRequest
	case ErrorTypeAuthentication, ErrorTypePermission:
		return PublicTextAuthentication
	case ErrorTypeTool:
		return PublicTextToolFailed
	case ErrorTypeInternal:
		return PublicTextInternal
	default:
		return PublicTextDefault
	}
}
