// Package chatevent declares the closed set of wire events the chat runtime
// consumes from a transport, and the validator that turns untrusted JSON
// into a typed discriminated union.
//
// The event union is intentionally a flat set of concrete structs behind a
// marker interface rather than a class hierarchy — the same shape
// runtime/agent/model.Part and runtime/agent/stream.Event use for their own
// tagged unions.
package chatevent

import "encoding/json"

// EventType is the wire-level discriminant carried by every event's "type"
// field.
type EventType string

// The closed set of event types the reducer understands. Any other value
// fails validation and is dropped.
const (
	EventStart               EventType = "start"
	EventFinish              EventType = "finish"
	EventError               EventType = "error"
	EventTextStart           EventType = "text-start"
	EventTextDelta           EventType = "text-delta"
	EventTextEnd             EventType = "text-end"
	EventReasoningStart      EventType = "reasoning-start"
	EventReasoningDelta      EventType = "reasoning-delta"
	EventReasoningEnd        EventType = "reasoning-end"
	EventToolInputStart      EventType = "tool-input-start"
	EventToolInputDelta      EventType = "tool-input-delta"
	EventToolInputEnd        EventType = "tool-input-end"
	EventToolInputAvailable  EventType = "tool-input-available"
	EventToolOutputAvailable EventType = "tool-output-available"
	EventToolOutputError     EventType = "tool-output-error"
	EventSource              EventType = "source"
	EventBlockStart          EventType = "block-start"
	EventBlockEnd            EventType = "block-end"
	EventResourceUpdate      EventType = "resource-update"
	EventToolRequest         EventType = "tool-request"
	EventClientToolRequest   EventType = "client-tool-request"
	EventFileAvailable       EventType = "file-available"
)

// FinishReason classifies why a finish event was emitted.
type FinishReason string

// The closed set of finish reasons.
const (
	FinishStop            FinishReason = "stop"
	FinishToolCalls       FinishReason = "tool-calls"
	FinishClientToolCalls FinishReason = "client-tool-calls"
	FinishLength          FinishReason = "length"
	FinishContentFilter   FinishReason = "content-filter"
	FinishError           FinishReason = "error"
	FinishOther           FinishReason = "other"
)

// Display controls how a block surfaces to the chat UI.
type Display string

// The closed set of block display modes.
const (
	DisplayHidden      Display = "hidden"
	DisplayName        Display = "name"
	DisplayDescription Display = "description"
	DisplayStream      Display = "stream"
)

// SourceType discriminates the two source-citation shapes.
type SourceType string

// The two source citation kinds.
const (
	SourceTypeURL      SourceType = "url"
	SourceTypeDocument SourceType = "document"
)

// Event is the marker interface every wire event implements. It carries no
// behavior beyond its type discriminant: all mutation happens in the
// reducer, not the event itself.
type Event interface {
	isEvent()
	// Kind returns the event's wire-level type discriminant.
	Kind() EventType
}

// base supplies the Kind accessor shared by every concrete event, mirroring
// runtime/agent/stream.Base's role for that package's Event union.
type base struct {
	kind EventType
}

func (b base) Kind() EventType { return b.kind }
func (base) isEvent()          {}

func newBase(t EventType) base { return base{kind: t} }

type (
	// StartEvent marks the beginning of a stream. It carries no state; the
	// reducer treats it as a no-op (§4.E.2).
	StartEvent struct {
		base
		ExecutionID string
	}

	// FinishEvent ends a stream (or a continuation round).
	FinishEvent struct {
		base
		FinishReason FinishReason
	}

	// ErrorEvent carries a structured failure raised mid-stream. Fields
	// mirror the wire shape from §7; chatreduce converts this into a
	// *chaterrors.Error.
	ErrorEvent struct {
		base
		ErrorType      string
		Message        string
		Source         string
		Retryable      bool
		RetryAfter     int
		Code           string
		ProviderName   string
		ProviderModel  string
		ProviderStatus int
		ToolName       string
		ToolCallID     string
	}

	// TextStartEvent opens a text or object part. ResponseType, when set,
	// switches the opened part to an ObjectPart (§4.E.2).
	TextStartEvent struct {
		base
		ID           string
		ResponseType string
	}

	// TextDeltaEvent appends to the text or accumulated-JSON buffer of the
	// part opened by the matching TextStartEvent.
	TextDeltaEvent struct {
		base
		ID    string
		Delta string
	}

	// TextEndEvent closes the part opened by the matching TextStartEvent.
	TextEndEvent struct {
		base
		ID string
	}

	// ReasoningStartEvent opens a reasoning part.
	ReasoningStartEvent struct {
		base
		ID string
	}

	// ReasoningDeltaEvent appends to the reasoning part's accumulator.
	ReasoningDeltaEvent struct {
		base
		ID    string
		Delta string
	}

	// ReasoningEndEvent closes the reasoning part.
	ReasoningEndEvent struct {
		base
		ID string
	}

	// ToolInputStartEvent opens a tool-call part in pending status.
	ToolInputStartEvent struct {
		base
		ToolCallID string
		ToolName   string
		Title      string
	}

	// ToolInputDeltaEvent carries a full snapshot of the tool call's
	// in-progress argument JSON (not an incremental patch — §9 open
	// question 2 preserves this verbatim).
	ToolInputDeltaEvent struct {
		base
		ToolCallID string
		ArgsText   string
	}

	// ToolInputEndEvent signals the tool call's arguments finished
	// streaming; it causes no visible state change (§4.E.2).
	ToolInputEndEvent struct {
		base
		ToolCallID string
	}

	// ToolInputAvailableEvent carries the authoritative parsed arguments
	// and transitions the tool call to running.
	ToolInputAvailableEvent struct {
		base
		ToolCallID string
		ToolName   string
		Input      json.RawMessage
	}

	// ToolOutputAvailableEvent carries a tool call's successful result.
	ToolOutputAvailableEvent struct {
		base
		ToolCallID string
		Output     json.RawMessage
	}

	// ToolOutputErrorEvent carries a tool call's failure.
	ToolOutputErrorEvent struct {
		base
		ToolCallID string
		ErrorText  string
	}

	// SourceEvent is a citation, discriminated by SourceType.
	SourceEvent struct {
		base
		SourceType SourceType
		ID         string
		URL        string
		Title      string
		MediaType  string
		Filename   string
	}

	// BlockStartEvent opens a protocol block.
	BlockStartEvent struct {
		base
		BlockID      string
		BlockName    string
		BlockType    string
		Display      Display
		Description  string
		OutputToChat *bool
		Thread       string
	}

	// BlockEndEvent closes a protocol block.
	BlockEndEvent struct {
		base
		BlockID string
	}

	// ResourceUpdateEvent notifies the host of a resource change. It never
	// produces a visible part (§8 invariant 6).
	ResourceUpdateEvent struct {
		base
		Name  string
		Value json.RawMessage
	}

	// ToolRequestEvent is server-SDK-only; the client core ignores it if
	// seen (§4.E.2).
	ToolRequestEvent struct {
		base
	}

	// ClientToolCall describes one tool call delegated to the host.
	ClientToolCall struct {
		ToolCallID string
		ToolName   string
		Args       json.RawMessage
	}

	// ClientToolRequestEvent hands a batch of tool calls to the client-tool
	// mediator (§4.F).
	ClientToolRequestEvent struct {
		base
		ToolCalls []ClientToolCall
	}

	// FileAvailableEvent announces a generated or referenced file.
	FileAvailableEvent struct {
		base
		ID         string
		MediaType  string
		URL        string
		Filename   string
		Size       int64
		ToolCallID string
	}
)

// NewStartEvent constructs a StartEvent.
func NewStartEvent(executionID string) StartEvent {
	return StartEvent{base: newBase(EventStart), ExecutionID: executionID}
}

// NewFinishEvent constructs a FinishEvent.
func NewFinishEvent(reason FinishReason) FinishEvent {
	return FinishEvent{base: newBase(EventFinish), FinishReason: reason}
}

// NewTextStartEvent constructs a TextStartEvent.
func NewTextStartEvent(id, responseType string) TextStartEvent {
	return TextStartEvent{base: newBase(EventTextStart), ID: id, ResponseType: responseType}
}

// NewTextDeltaEvent constructs a TextDeltaEvent.
func NewTextDeltaEvent(id, delta string) TextDeltaEvent {
	return TextDeltaEvent{base: newBase(EventTextDelta), ID: id, Delta: delta}
}

// NewTextEndEvent constructs a TextEndEvent.
func NewTextEndEvent(id string) TextEndEvent {
	return TextEndEvent{base: newBase(EventTextEnd), ID: id}
}

// NewToolOutputAvailableEvent constructs a ToolOutputAvailableEvent, for
// synthesizing a result event from a client-tool handler's return value
// (§4.F).
func NewToolOutputAvailableEvent(toolCallID string, output json.RawMessage) ToolOutputAvailableEvent {
	return ToolOutputAvailableEvent{base: newBase(EventToolOutputAvailable), ToolCallID: toolCallID, Output: output}
}

// NewToolOutputErrorEvent constructs a ToolOutputErrorEvent, for
// synthesizing a failure event from a client-tool handler's error (§4.F).
func NewToolOutputErrorEvent(toolCallID, errorText string) ToolOutputErrorEvent {
	return ToolOutputErrorEvent{base: newBase(EventToolOutputError), ToolCallID: toolCallID, ErrorText: errorText}
}
