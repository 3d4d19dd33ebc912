package chatmodel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/octavus-ai/chat-runtime-go/chatevent"
	"github.com/octavus-ai/chat-runtime-go/chatmodel"
)

func TestUIMessage_CloneIsIndependent(t *testing.T) {
	msg := chatmodel.UIMessage{
		ID:     "m1",
		Role:   chatmodel.RoleAssistant,
		Status: chatmodel.MessageStatusStreaming,
		Parts: []chatmodel.UIMessagePart{
			chatmodel.TextPart{Text: "hi", Status: chatmodel.PartStatusStreaming},
		},
	}
	clone := msg.Clone()
	clone.Parts[0] = chatmodel.TextPart{Text: "mutated", Status: chatmodel.PartStatusDone}

	orig := msg.Parts[0].(chatmodel.TextPart)
	assert.Equal(t, "hi", orig.Text)

	got := clone.Parts[0].(chatmodel.TextPart)
	assert.Equal(t, "mutated", got.Text)
}

func TestNewBlockState_DefaultsOutputToChatTrue(t *testing.T) {
	bs := chatmodel.NewBlockState("b1", "summarize", "generate-image", chatevent.DisplayName, "desc", nil, "")
	assert.True(t, bs.OutputToChat)
	assert.NotNil(t, bs.OpenToolCalls)
}

func TestNewBlockState_RespectsExplicitOutputToChat(t *testing.T) {
	no := false
	bs := chatmodel.NewBlockState("b1", "summarize", "generate-image", chatevent.DisplayHidden, "", &no, "summary")
	assert.False(t, bs.OutputToChat)
	assert.Equal(t, "summary", bs.Thread)
}

func TestNewStreamingState_PartIndicesStartUnset(t *testing.T) {
	ss := chatmodel.NewStreamingState("m1")
	assert.Equal(t, -1, ss.TextPartIndex)
	assert.Equal(t, -1, ss.ReasoningPartIndex)
	assert.Equal(t, -1, ss.ObjectPartIndex)
	assert.Empty(t, ss.Blocks)
}

func TestUIMessagePart_Variants(t *testing.T) {
	var parts []chatmodel.UIMessagePart
	parts = append(parts,
		chatmodel.TextPart{Text: "hi"},
		chatmodel.ReasoningPart{Text: "thinking"},
		chatmodel.ToolCallPart{ToolCallID: "t1", ToolName: "lookup"},
		chatmodel.OperationPart{OperationID: "o1", Name: "serialize-thread"},
		chatmodel.SourcePart{ID: "s1", Kind: chatmodel.SourceKindURL},
		chatmodel.FilePart{ID: "f1", MediaType: "image/png"},
		chatmodel.ObjectPart{ID: "obj1", TypeName: "Invoice"},
	)
	assert.Len(t, parts, 7)
}
