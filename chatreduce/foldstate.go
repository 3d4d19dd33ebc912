package chatreduce

import (
	"github.com/octavus-ai/chat-runtime-go/chatmodel"
)

// foldState is the reducer-local bookkeeping for the assistant message
// currently being built, wrapping chatmodel.StreamingState with the index
// maps the event fold needs for O(1) part lookups (§3).
type foldState struct {
	*chatmodel.StreamingState

	// toolCallIndex maps a tool call id to its ToolCallPart's position in
	// Parts.
	toolCallIndex map[string]int

	// operationIndex maps a block id to its OperationPart's position in
	// Parts, when that block produced one.
	operationIndex map[string]int
}

func newFoldState(assistantMessageID string) *foldState {
	return &foldState{
		StreamingState: chatmodel.NewStreamingState(assistantMessageID),
		toolCallIndex:  make(map[string]int),
		operationIndex: make(map[string]int),
	}
}

// activeBlock returns the BlockState for the currently open block, or nil if
// no block is open.
func (f *foldState) activeBlock() *chatmodel.BlockState {
	if f.ActiveBlockID == "" {
		return nil
	}
	return f.Blocks[f.ActiveBlockID]
}

// threadOf resolves the "store-as-absent-for-main" rule: the active block's
// thread tag, or "" when there is no active block or it is the main thread.
func (f *foldState) threadOf() string {
	if b := f.activeBlock(); b != nil && b.Thread != "main" {
		return b.Thread
	}
	return ""
}

// outputToChat reports whether parts should be appended to the visible
// message for the current active block. Non-main threads always produce
// parts regardless of OutputToChat (§4.E.2).
func (f *foldState) outputToChat() bool {
	b := f.activeBlock()
	if b == nil {
		return true
	}
	if f.threadOf() != "" {
		return true
	}
	return b.OutputToChat
}

func (f *foldState) snapshotParts() []chatmodel.UIMessagePart {
	out := make([]chatmodel.UIMessagePart, len(f.Parts))
	copy(out, f.Parts)
	return out
}

// finalizeInFlight transitions every still-open part to its terminal state,
// used both by a normal finish and by Stop()/error unwind (§4.E.2, §5).
func (f *foldState) finalizeInFlight(cancelled bool) {
	terminalText := chatmodel.PartStatusDone
	terminalTool := chatmodel.PartStatusDone
	terminalOp := chatmodel.PartStatusDone
	if cancelled {
		terminalTool = chatmodel.PartStatusCancelled
		terminalOp = chatmodel.PartStatusCancelled
	}

	for i, p := range f.Parts {
		switch v := p.(type) {
		case chatmodel.TextPart:
			if v.Status == chatmodel.PartStatusStreaming {
				v.Status = terminalText
				f.Parts[i] = v
			}
		case chatmodel.ReasoningPart:
			if v.Status == chatmodel.PartStatusStreaming {
				v.Status = terminalText
				f.Parts[i] = v
			}
		case chatmodel.ObjectPart:
			if v.Status == chatmodel.PartStatusStreaming {
				v.Status = terminalText
				f.Parts[i] = v
			}
		case chatmodel.ToolCallPart:
			if v.Status == chatmodel.PartStatusPending || v.Status == chatmodel.PartStatusRunning {
				v.Status = terminalTool
				f.Parts[i] = v
			}
		case chatmodel.OperationPart:
			if v.Status == chatmodel.PartStatusRunning {
				v.Status = terminalOp
				f.Parts[i] = v
			}
		}
	}
}

// appendPart appends p to Parts and returns its index.
func (f *foldState) appendPart(p chatmodel.UIMessagePart) int {
	f.Parts = append(f.Parts, p)
	return len(f.Parts) - 1
}
