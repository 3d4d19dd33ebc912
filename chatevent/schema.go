package chatevent

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// eventSchemaJSON declares the closed shape every wire event must satisfy:
// a "type" field drawn from the known set, plus (for "source" events) a
// "sourceType" discriminant. Per-type field shapes are intentionally loose
// here — jsonschema rejects structurally bogus payloads cheaply (wrong
// "type", missing discriminant); the decode step below is what actually
// binds fields to a concrete Go type, and unknown/extra fields are ignored
// there rather than rejected here.
const eventSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["type"],
	"properties": {
		"type": {
			"enum": [
				"start", "finish", "error",
				"text-start", "text-delta", "text-end",
				"reasoning-start", "reasoning-delta", "reasoning-end",
				"tool-input-start", "tool-input-delta", "tool-input-end", "tool-input-available",
				"tool-output-available", "tool-output-error",
				"source", "block-start", "block-end",
				"resource-update", "tool-request", "client-tool-request",
				"file-available"
			]
		}
	},
	"if": { "properties": { "type": { "const": "source" } } },
	"then": { "required": ["type", "sourceType"] }
}`

var eventSchema = compileEventSchema()

func compileEventSchema() *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(eventSchemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("chatevent: invalid embedded schema: %v", err))
	}
	const resourceURI = "event.schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceURI, doc); err != nil {
		panic(fmt.Sprintf("chatevent: cannot register schema: %v", err))
	}
	sch, err := c.Compile(resourceURI)
	if err != nil {
		panic(fmt.Sprintf("chatevent: cannot compile schema: %v", err))
	}
	return sch
}

// wireEvent is the flat superset of fields any event type may carry on the
// wire. Parse validates the raw bytes against eventSchema, decodes into
// wireEvent, then narrows into the concrete Event named by Type.
type wireEvent struct {
	Type EventType `json:"type"`

	ExecutionID string `json:"executionId,omitempty"`

	FinishReason FinishReason `json:"finishReason,omitempty"`

	ErrorType      string `json:"errorType,omitempty"`
	Message        string `json:"message,omitempty"`
	Source         string `json:"source,omitempty"`
	Retryable      bool   `json:"retryable,omitempty"`
	RetryAfter     int    `json:"retryAfter,omitempty"`
	Code           string `json:"code,omitempty"`
	ProviderName   string `json:"providerName,omitempty"`
	ProviderModel  string `json:"providerModel,omitempty"`
	ProviderStatus int    `json:"providerStatusCode,omitempty"`

	ID           string `json:"id,omitempty"`
	ResponseType string `json:"responseType,omitempty"`
	Delta        string `json:"delta,omitempty"`

	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Title      string          `json:"title,omitempty"`
	ArgsText   string          `json:"argsText,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"error,omitempty"`

	SourceType SourceType `json:"sourceType,omitempty"`
	URL        string     `json:"url,omitempty"`
	MediaType  string     `json:"mediaType,omitempty"`
	Filename   string     `json:"filename,omitempty"`
	Size       int64      `json:"size,omitempty"`

	BlockID      string  `json:"blockId,omitempty"`
	BlockName    string  `json:"blockName,omitempty"`
	BlockType    string  `json:"blockType,omitempty"`
	Display      Display `json:"display,omitempty"`
	Description  string  `json:"description,omitempty"`
	OutputToChat *bool   `json:"outputToChat,omitempty"`
	Thread       string  `json:"thread,omitempty"`

	Name  string          `json:"name,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`

	ToolCalls []ClientToolCall `json:"toolCalls,omitempty"`
}

// Parse validates raw against the closed event schema and, on success,
// narrows it into a concrete Event. Malformed JSON and unknown/invalid
// shapes return ok=false; the caller (the transport's frame reader) must
// silently drop these rather than surface them (§4.A, §7 propagation
// policy).
func Parse(raw []byte) (event Event, ok bool) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, false
	}
	if err := eventSchema.Validate(generic); err != nil {
		return nil, false
	}
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, false
	}
	return narrow(w)
}

func narrow(w wireEvent) (Event, bool) {
	switch w.Type {
	case EventStart:
		return StartEvent{base: newBase(EventStart), ExecutionID: w.ExecutionID}, true
	case EventFinish:
		return FinishEvent{base: newBase(EventFinish), FinishReason: w.FinishReason}, true
	case EventError:
		return ErrorEvent{
			base:           newBase(EventError),
			ErrorType:      w.ErrorType,
			Message:        w.Message,
			Source:         w.Source,
			Retryable:      w.Retryable,
			RetryAfter:     w.RetryAfter,
			Code:           w.Code,
			ProviderName:   w.ProviderName,
			ProviderModel:  w.ProviderModel,
			ProviderStatus: w.ProviderStatus,
			ToolName:       w.ToolName,
			ToolCallID:     w.ToolCallID,
		}, true
	case EventTextStart:
		return TextStartEvent{base: newBase(EventTextStart), ID: w.ID, ResponseType: w.ResponseType}, true
	case EventTextDelta:
		return TextDeltaEvent{base: newBase(EventTextDelta), ID: w.ID, Delta: w.Delta}, true
	case EventTextEnd:
		return TextEndEvent{base: newBase(EventTextEnd), ID: w.ID}, true
	case EventReasoningStart:
		return ReasoningStartEvent{base: newBase(EventReasoningStart), ID: w.ID}, true
	case EventReasoningDelta:
		return ReasoningDeltaEvent{base: newBase(EventReasoningDelta), ID: w.ID, Delta: w.Delta}, true
	case EventReasoningEnd:
		return ReasoningEndEvent{base: newBase(EventReasoningEnd), ID: w.ID}, true
	case EventToolInputStart:
		return ToolInputStartEvent{base: newBase(EventToolInputStart), ToolCallID: w.ToolCallID, ToolName: w.ToolName, Title: w.Title}, true
	case EventToolInputDelta:
		return ToolInputDeltaEvent{base: newBase(EventToolInputDelta), ToolCallID: w.ToolCallID, ArgsText: w.ArgsText}, true
	case EventToolInputEnd:
		return ToolInputEndEvent{base: newBase(EventToolInputEnd), ToolCallID: w.ToolCallID}, true
	case EventToolInputAvailable:
		return ToolInputAvailableEvent{base: newBase(EventToolInputAvailable), ToolCallID: w.ToolCallID, ToolName: w.ToolName, Input: w.Input}, true
	case EventToolOutputAvailable:
		return ToolOutputAvailableEvent{base: newBase(EventToolOutputAvailable), ToolCallID: w.ToolCallID, Output: w.Output}, true
	case EventToolOutputError:
		return ToolOutputErrorEvent{base: newBase(EventToolOutputError), ToolCallID: w.ToolCallID, ErrorText: w.ErrorText}, true
	case EventSource:
		if w.SourceType != SourceTypeURL && w.SourceType != SourceTypeDocument {
			return nil, false
		}
		return SourceEvent{
			base:       newBase(EventSource),
			SourceType: w.SourceType,
			ID:         w.ID,
			URL:        w.URL,
			Title:      w.Title,
			MediaType:  w.MediaType,
			Filename:   w.Filename,
		}, true
	case EventBlockStart:
		return BlockStartEvent{
			base:         newBase(EventBlockStart),
			BlockID:      w.BlockID,
			BlockName:    w.BlockName,
			BlockType:    w.BlockType,
			Display:      w.Display,
			Description:  w.Description,
			OutputToChat: w.OutputToChat,
			Thread:       w.Thread,
		}, true
	case EventBlockEnd:
		return BlockEndEvent{base: newBase(EventBlockEnd), BlockID: w.BlockID}, true
	case EventResourceUpdate:
		return ResourceUpdateEvent{base: newBase(EventResourceUpdate), Name: w.Name, Value: w.Value}, true
	case EventToolRequest:
		return ToolRequestEvent{base: newBase(EventToolRequest)}, true
	case EventClientToolRequest:
		return ClientToolRequestEvent{base: newBase(EventClientToolRequest), ToolCalls: w.ToolCalls}, true
	case EventFileAvailable:
		return FileAvailableEvent{
			base:       newBase(EventFileAvailable),
			ID:         w.ID,
			MediaType:  w.MediaType,
			URL:        w.URL,
			Filename:   w.Filename,
			Size:       w.Size,
			ToolCallID: w.ToolCallID,
		}, true
	default:
		return nil, false
	}
}
