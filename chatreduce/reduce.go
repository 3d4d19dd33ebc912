package chatreduce

import (
	"encoding/json"

	"github.com/octavus-ai/chat-runtime-go/chatevent"
	"github.com/octavus-ai/chat-runtime-go/chatmodel"
	"github.com/octavus-ai/chat-runtime-go/partialjson"
)

// blockOperationTypes is the set of block types that render as an
// OperationPart when their block is not hidden (§4.E.2).
var blockOperationTypes = map[string]bool{
	"set-resource":     true,
	"serialize-thread": true,
	"generate-image":   true,
}

// applyEvent folds one event into f, the in-progress assistant message's
// reducer-local state. It handles every event type the reducer owns
// directly; finish, error, and client-tool-request are control events the
// Send loop intercepts itself (§4.E.2).
func applyEvent(f *foldState, ev chatevent.Event, onResourceUpdate func(name string, value json.RawMessage)) {
	switch e := ev.(type) {
	case chatevent.StartEvent:
		// no-op: the snapshot continues to carry the pre-existing streaming
		// message id, if any.

	case chatevent.BlockStartEvent:
		bs := chatmodel.NewBlockState(e.BlockID, e.BlockName, e.BlockType, e.Display, e.Description, e.OutputToChat, e.Thread)
		f.Blocks[e.BlockID] = bs
		f.ActiveBlockID = e.BlockID
		f.TextPartIndex = -1
		f.ReasoningPartIndex = -1

		if blockOperationTypes[e.BlockType] && e.Display != chatevent.DisplayHidden {
			name := e.Description
			if name == "" {
				name = e.BlockName
			}
			idx := f.appendPart(chatmodel.OperationPart{
				OperationID:   e.BlockID,
				Name:          name,
				OperationType: e.BlockType,
				Status:        chatmodel.PartStatusRunning,
				Thread:        e.Thread,
			})
			f.operationIndex[e.BlockID] = idx
		}

	case chatevent.BlockEndEvent:
		if idx, ok := f.operationIndex[e.BlockID]; ok {
			if op, ok := f.Parts[idx].(chatmodel.OperationPart); ok {
				op.Status = chatmodel.PartStatusDone
				f.Parts[idx] = op
			}
		}
		if f.ActiveBlockID == e.BlockID {
			f.ActiveBlockID = ""
		}

	case chatevent.ReasoningStartEvent:
		if !f.outputToChat() {
			break
		}
		idx := f.appendPart(chatmodel.ReasoningPart{Status: chatmodel.PartStatusStreaming, Thread: f.threadOf()})
		f.ReasoningPartIndex = idx

	case chatevent.ReasoningDeltaEvent:
		if f.ReasoningPartIndex < 0 {
			break
		}
		if b := f.activeBlock(); b != nil {
			b.ReasoningText += e.Delta
		}
		p := f.Parts[f.ReasoningPartIndex].(chatmodel.ReasoningPart)
		p.Text += e.Delta
		f.Parts[f.ReasoningPartIndex] = p

	case chatevent.ReasoningEndEvent:
		if f.ReasoningPartIndex < 0 {
			break
		}
		p := f.Parts[f.ReasoningPartIndex].(chatmodel.ReasoningPart)
		p.Status = chatmodel.PartStatusDone
		f.Parts[f.ReasoningPartIndex] = p
		f.ReasoningPartIndex = -1

	case chatevent.TextStartEvent:
		if !f.outputToChat() {
			break
		}
		if e.ResponseType != "" {
			f.AccumulatedJSON = ""
			idx := f.appendPart(chatmodel.ObjectPart{TypeName: e.ResponseType, Status: chatmodel.PartStatusStreaming, Thread: f.threadOf()})
			f.ObjectPartIndex = idx
			break
		}
		idx := f.appendPart(chatmodel.TextPart{Status: chatmodel.PartStatusStreaming, Thread: f.threadOf()})
		f.TextPartIndex = idx

	case chatevent.TextDeltaEvent:
		switch {
		case f.ObjectPartIndex >= 0:
			f.AccumulatedJSON += e.Delta
			p := f.Parts[f.ObjectPartIndex].(chatmodel.ObjectPart)
			if v, ok := partialjson.Parse(f.AccumulatedJSON); ok {
				p.Partial = v
			}
			f.Parts[f.ObjectPartIndex] = p
		case f.TextPartIndex >= 0:
			p := f.Parts[f.TextPartIndex].(chatmodel.TextPart)
			p.Text += e.Delta
			f.Parts[f.TextPartIndex] = p
		}

	case chatevent.TextEndEvent:
		switch {
		case f.ObjectPartIndex >= 0:
			p := f.Parts[f.ObjectPartIndex].(chatmodel.ObjectPart)
			var final any
			if jsonErr := json.Unmarshal([]byte(f.AccumulatedJSON), &final); jsonErr == nil {
				p.Object = final
				p.Partial = final
				p.Status = chatmodel.PartStatusDone
			} else {
				p.Status = chatmodel.PartStatusError
				p.Err = "failed to parse response as JSON"
			}
			f.Parts[f.ObjectPartIndex] = p
			f.ObjectPartIndex = -1
		case f.TextPartIndex >= 0:
			p := f.Parts[f.TextPartIndex].(chatmodel.TextPart)
			p.Status = chatmodel.PartStatusDone
			f.Parts[f.TextPartIndex] = p
			f.TextPartIndex = -1
		}

	case chatevent.ToolInputStartEvent:
		idx := f.appendPart(chatmodel.ToolCallPart{
			ToolCallID:  e.ToolCallID,
			ToolName:    e.ToolName,
			DisplayName: e.Title,
			Args:        map[string]any{},
			Status:      chatmodel.PartStatusPending,
			Thread:      f.threadOf(),
		})
		f.toolCallIndex[e.ToolCallID] = idx
		if b := f.activeBlock(); b != nil {
			b.OpenToolCalls[e.ToolCallID] = struct{}{}
		}

	case chatevent.ToolInputDeltaEvent:
		idx, ok := f.toolCallIndex[e.ToolCallID]
		if !ok {
			break
		}
		var args any
		if jsonErr := json.Unmarshal([]byte(e.ArgsText), &args); jsonErr == nil {
			p := f.Parts[idx].(chatmodel.ToolCallPart)
			p.Args = args
			f.Parts[idx] = p
		}

	case chatevent.ToolInputEndEvent:
		// no visible state change.

	case chatevent.ToolInputAvailableEvent:
		idx, ok := f.toolCallIndex[e.ToolCallID]
		if !ok {
			break
		}
		var args any
		_ = json.Unmarshal(e.Input, &args)
		p := f.Parts[idx].(chatmodel.ToolCallPart)
		p.Args = args
		p.Status = chatmodel.PartStatusRunning
		f.Parts[idx] = p

	case chatevent.ToolOutputAvailableEvent:
		idx, ok := f.toolCallIndex[e.ToolCallID]
		if !ok {
			break
		}
		var result any
		_ = json.Unmarshal(e.Output, &result)
		p := f.Parts[idx].(chatmodel.ToolCallPart)
		p.Result = result
		p.Status = chatmodel.PartStatusDone
		f.Parts[idx] = p

	case chatevent.ToolOutputErrorEvent:
		idx, ok := f.toolCallIndex[e.ToolCallID]
		if !ok {
			break
		}
		p := f.Parts[idx].(chatmodel.ToolCallPart)
		p.Err = e.ErrorText
		p.Status = chatmodel.PartStatusError
		f.Parts[idx] = p

	case chatevent.SourceEvent:
		kind := chatmodel.SourceKindURL
		if e.SourceType == chatevent.SourceTypeDocument {
			kind = chatmodel.SourceKindDocument
		}
		f.appendPart(chatmodel.SourcePart{
			ID:        e.ID,
			Kind:      kind,
			URL:       e.URL,
			Title:     e.Title,
			MediaType: e.MediaType,
			Filename:  e.Filename,
			Thread:    f.threadOf(),
		})

	case chatevent.FileAvailableEvent:
		f.appendPart(chatmodel.FilePart{
			ID:         e.ID,
			MediaType:  e.MediaType,
			URL:        e.URL,
			Filename:   e.Filename,
			Size:       e.Size,
			ToolCallID: e.ToolCallID,
			Thread:     f.threadOf(),
		})

	case chatevent.ResourceUpdateEvent:
		if onResourceUpdate != nil {
			onResourceUpdate(e.Name, e.Value)
		}

	case chatevent.ToolRequestEvent:
		// server-SDK-only; never observed by the client core.
	}
}
