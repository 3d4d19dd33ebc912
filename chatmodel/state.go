package chatmodel

import "github.com/octavus-ai/chat-runtime-go/chatevent"

// ToolSource identifies whether a pending client tool call was requested by
// the model directly or by a protocol block.
type ToolSource string

const (
	ToolSourceLLM   ToolSource = "llm"
	ToolSourceBlock ToolSource = "block"
)

// BlockState is the reducer-local bookkeeping kept for each currently open
// protocol block (between block-start and block-end). It is never exposed to
// subscribers directly; the reducer projects it into OperationPart/TextPart/
// ReasoningPart entries on the message being built.
type BlockState struct {
	BlockID      string
	BlockName    string
	BlockType    string
	Display      chatevent.Display
	Description  string
	OutputToChat bool
	Thread       string

	ReasoningText string
	Text          string

	// OpenToolCalls records the tool-call IDs opened while this block is
	// active. The reducer's block-end handling does not consult it.
	OpenToolCalls map[string]struct{}
}

// NewBlockState seeds a BlockState from a block-start event, defaulting
// OutputToChat to true per §3.
func NewBlockState(blockID, name, blockType string, display chatevent.Display, description string, outputToChat *bool, thread string) *BlockState {
	out := true
	if outputToChat != nil {
		out = *outputToChat
	}
	return &BlockState{
		BlockID:       blockID,
		BlockName:     name,
		BlockType:     blockType,
		Display:       display,
		Description:   description,
		OutputToChat:  out,
		Thread:        thread,
		OpenToolCalls: make(map[string]struct{}),
	}
}

// StreamingState is the reducer-local state for the assistant message
// currently being built. It is discarded once the message reaches
// MessageStatusDone.
type StreamingState struct {
	AssistantMessageID string

	// Parts mirrors the UIMessage.Parts slice under construction; the
	// reducer mutates it directly and copies it into a UIMessage snapshot
	// for subscribers.
	Parts []UIMessagePart

	ActiveBlockID string
	Blocks        map[string]*BlockState

	// TextPartIndex/ReasoningPartIndex/ObjectPartIndex locate, by Parts
	// index, the part currently receiving deltas, whatever its thread. They
	// are reset to -1 when no such part is open.
	TextPartIndex      int
	ReasoningPartIndex int
	ObjectPartIndex    int

	// AccumulatedJSON holds the raw partial-object text seen so far for the
	// part at ObjectPartIndex, so each delta can be re-repaired
	// from the complete accumulated text rather than just the latest chunk.
	AccumulatedJSON string
}

// NewStreamingState returns an empty StreamingState for a new assistant
// message, with no part indices open.
func NewStreamingState(assistantMessageID string) *StreamingState {
	return &StreamingState{
		AssistantMessageID: assistantMessageID,
		Blocks:             make(map[string]*BlockState),
		TextPartIndex:      -1,
		ReasoningPartIndex: -1,
		ObjectPartIndex:    -1,
	}
}

// PendingClientTool is a tool call awaiting a result supplied by the host via
// SubmitClientToolResult, retained until a result or cancellation arrives
// (§3).
type PendingClientTool struct {
	ToolCallID     string
	ToolName       string
	Args           any
	Source         ToolSource
	OutputVariable string
	BlockIndex     int
}

// ToolResult is the host-supplied outcome of a pending client tool call.
// Exactly one of Result or Err should be set.
type ToolResult struct {
	ToolCallID     string
	ToolName       string
	Result         any
	Err            string
	OutputVariable string
	BlockIndex     int
}
