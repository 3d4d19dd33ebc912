// Package chatmodel defines the client-visible message and part types the
// stream reducer builds and mutates: UIMessage, the UIMessagePart union, and
// the ephemeral state the reducer keeps between events (§3).
package chatmodel

// PartStatus is the lifecycle status of a streaming-capable part.
type PartStatus string

const (
	PartStatusStreaming PartStatus = "streaming"
	PartStatusDone      PartStatus = "done"
	PartStatusError     PartStatus = "error"
	PartStatusPending   PartStatus = "pending"
	PartStatusRunning   PartStatus = "running"
	PartStatusCancelled PartStatus = "cancelled"
)

// SourceKind identifies whether a SourcePart cites a URL or a document.
type SourceKind string

const (
	SourceKindURL      SourceKind = "url"
	SourceKindDocument SourceKind = "document"
)

type (
	// UIMessagePart is implemented by all seven part shapes a UIMessage can
	// hold. It is a closed union: new variants are added here, never by
	// external packages (§3, grounded on model.Part/isPart()).
	UIMessagePart interface {
		isUIMessagePart()
	}

	// TextPart is a plain-text content block, streamed incrementally via
	// text-delta events and closed by text-end.
	TextPart struct {
		Text   string
		Status PartStatus
		Thread string
	}

	// ReasoningPart mirrors TextPart for provider-issued reasoning content.
	ReasoningPart struct {
		Text   string
		Status PartStatus
		Thread string
	}

	// ToolCallPart tracks a single tool invocation from request through
	// result, whether the tool runs automatically or interactively on the
	// client.
	ToolCallPart struct {
		ToolCallID  string
		ToolName    string
		DisplayName string
		Args        any
		Result      any
		Err         string
		Status      PartStatus
		Thread      string
	}

	// OperationPart represents a non-LLM protocol operation such as
	// set-resource, serialize-thread, or generate-image.
	OperationPart struct {
		OperationID   string
		Name          string
		OperationType string
		Status        PartStatus
		Thread        string
	}

	// SourcePart cites a URL or document the assistant consulted.
	SourcePart struct {
		ID        string
		Kind      SourceKind
		URL       string
		Title     string
		MediaType string
		Filename  string
		Thread    string
	}

	// FilePart references a file the assistant made available, optionally
	// produced by a tool call.
	FilePart struct {
		ID         string
		MediaType  string
		URL        string
		Filename   string
		Size       int64
		ToolCallID string
		Thread     string
	}

	// ObjectPart carries a structured-output value that may still be
	// mid-stream: Partial holds the best-effort partial-JSON parse while
	// Status is streaming, Object holds the final decoded value once done.
	ObjectPart struct {
		ID       string
		TypeName string
		Partial  any
		Object   any
		Status   PartStatus
		Err      string
		Thread   string
	}
)

func (TextPart) isUIMessagePart()      {}
func (ReasoningPart) isUIMessagePart() {}
func (ToolCallPart) isUIMessagePart()  {}
func (OperationPart) isUIMessagePart() {}
func (SourcePart) isUIMessagePart()    {}
func (FilePart) isUIMessagePart()      {}
func (ObjectPart) isUIMessagePart()    {}
