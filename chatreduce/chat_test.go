package chatreduce_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octavus-ai/chat-runtime-go/chaterrors"
	"github.com/octavus-ai/chat-runtime-go/chatevent"
	"github.com/octavus-ai/chat-runtime-go/chatmodel"
	"github.com/octavus-ai/chat-runtime-go/chatreduce"
	"github.com/octavus-ai/chat-runtime-go/clienttools"
	"github.com/octavus-ai/chat-runtime-go/transport"
)

// scriptedTransport replays pre-recorded event batches, one per Trigger
// call, for deterministic reducer tests.
type scriptedTransport struct {
	mu      sync.Mutex
	batches [][]chatevent.Event
	stopped bool
}

func newScriptedTransport(batches ...[]chatevent.Event) *scriptedTransport {
	return &scriptedTransport{batches: batches}
}

func (s *scriptedTransport) Trigger(ctx context.Context, triggerName string, input any, opts transport.TriggerOptions) (<-chan chatevent.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil, errors.New("scriptedTransport: no more batches")
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	ch := make(chan chatevent.Event, len(batch))
	for _, ev := range batch {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (s *scriptedTransport) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

func textPart(t *testing.T, msg chatmodel.UIMessage, idx int) chatmodel.TextPart {
	t.Helper()
	p, ok := msg.Parts[idx].(chatmodel.TextPart)
	require.True(t, ok)
	return p
}

// TestSend_PlainText is scenario S1: a start/text-start/text-delta*/text-end/
// finish sequence produces one assistant message with one done TextPart.
func TestSend_PlainText(t *testing.T) {
	tr := newScriptedTransport([]chatevent.Event{
		chatevent.NewStartEvent("exec-1"),
		chatevent.NewTextStartEvent("t1", ""),
		chatevent.NewTextDeltaEvent("t1", "Hel"),
		chatevent.NewTextDeltaEvent("t1", "lo"),
		chatevent.NewTextEndEvent("t1"),
		chatevent.NewFinishEvent(chatevent.FinishStop),
	})
	c, err := chatreduce.New(chatreduce.Options{Transport: tr})
	require.NoError(t, err)

	var notifications int
	unsub := c.Subscribe(func() { notifications++ })
	defer unsub()

	err = c.Send(context.Background(), "chat", chatreduce.SendInput{Content: "hi"}, chatreduce.SendOptions{})
	require.NoError(t, err)

	assert.Equal(t, chatreduce.StatusIdle, c.Status())
	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chatmodel.RoleUser, msgs[0].Role)
	assert.Equal(t, chatmodel.RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].Parts, 1)
	p := textPart(t, msgs[1], 0)
	assert.Equal(t, "Hello", p.Text)
	assert.Equal(t, chatmodel.PartStatusDone, p.Status)
	assert.Greater(t, notifications, 0)
}

// TestSend_StructuredObject is scenario S2: a responseType-bearing
// text-start streams partial JSON that becomes authoritative on text-end.
func TestSend_StructuredObject(t *testing.T) {
	tr := newScriptedTransport([]chatevent.Event{
		chatevent.NewStartEvent("exec-1"),
		chatevent.NewTextStartEvent("o1", "Invoice"),
		chatevent.NewTextDeltaEvent("o1", `{"total":`),
		chatevent.NewTextDeltaEvent("o1", `42}`),
		chatevent.NewTextEndEvent("o1"),
		chatevent.NewFinishEvent(chatevent.FinishStop),
	})
	c, err := chatreduce.New(chatreduce.Options{Transport: tr})
	require.NoError(t, err)

	require.NoError(t, c.Send(context.Background(), "chat", chatreduce.SendInput{Content: "invoice please"}, chatreduce.SendOptions{}))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	obj, ok := msgs[1].Parts[0].(chatmodel.ObjectPart)
	require.True(t, ok)
	assert.Equal(t, "Invoice", obj.TypeName)
	assert.Equal(t, chatmodel.PartStatusDone, obj.Status)
	assert.Equal(t, map[string]any{"total": float64(42)}, obj.Object)
}

// TestSend_StructuredObject_UnparsableEndsInError covers the text-end
// strict-parse failure branch.
func TestSend_StructuredObject_UnparsableEndsInError(t *testing.T) {
	tr := newScriptedTransport([]chatevent.Event{
		chatevent.NewTextStartEvent("o1", "Invoice"),
		chatevent.NewTextDeltaEvent("o1", `{"total":`),
		chatevent.NewTextEndEvent("o1"),
		chatevent.NewFinishEvent(chatevent.FinishStop),
	})
	c, err := chatreduce.New(chatreduce.Options{Transport: tr})
	require.NoError(t, err)
	require.NoError(t, c.Send(context.Background(), "chat", chatreduce.SendInput{Content: "x"}, chatreduce.SendOptions{}))

	msgs := c.Messages()
	obj := msgs[1].Parts[0].(chatmodel.ObjectPart)
	assert.Equal(t, chatmodel.PartStatusError, obj.Status)
	assert.Equal(t, "failed to parse response as JSON", obj.Err)
}

// TestSend_OperationBlockAndResourceUpdate is scenario S4: a visible
// generate-image block surfaces as an OperationPart, and resource-update
// notifies the host without producing a part.
func TestSend_OperationBlockAndResourceUpdate(t *testing.T) {
	outputToChat := true
	tr := newScriptedTransport([]chatevent.Event{
		chatevent.BlockStartEvent{BlockID: "b1", BlockName: "cover", BlockType: "generate-image", Display: chatevent.DisplayName, OutputToChat: &outputToChat},
		chatevent.ResourceUpdateEvent{Name: "progress", Value: json.RawMessage(`50`)},
		chatevent.BlockEndEvent{BlockID: "b1"},
		chatevent.NewFinishEvent(chatevent.FinishStop),
	})

	var gotName string
	var gotValue json.RawMessage
	c, err := chatreduce.New(chatreduce.Options{
		Transport:        tr,
		OnResourceUpdate: func(name string, value json.RawMessage) { gotName = name; gotValue = value },
	})
	require.NoError(t, err)
	require.NoError(t, c.Send(context.Background(), "chat", chatreduce.SendInput{Content: "make a cover"}, chatreduce.SendOptions{}))

	assert.Equal(t, "progress", gotName)
	assert.JSONEq(t, "50", string(gotValue))

	msgs := c.Messages()
	op, ok := msgs[1].Parts[0].(chatmodel.OperationPart)
	require.True(t, ok)
	assert.Equal(t, chatmodel.PartStatusDone, op.Status)
	assert.Equal(t, "generate-image", op.OperationType)
}

// TestSend_ServerError is scenario S6: a wire error event converts to a
// chaterrors.Error and finalizes in-progress parts as done/cancelled.
func TestSend_ServerError(t *testing.T) {
	tr := newScriptedTransport([]chatevent.Event{
		chatevent.NewTextStartEvent("t1", ""),
		chatevent.NewTextDeltaEvent("t1", "partial"),
		chatevent.ErrorEvent{ErrorType: string(chaterrors.ErrorTypeProviderOverloaded), Message: "provider overloaded", Source: string(chaterrors.SourceProvider), Retryable: true},
	})
	c, err := chatreduce.New(chatreduce.Options{Transport: tr})
	require.NoError(t, err)

	sendErr := c.Send(context.Background(), "chat", chatreduce.SendInput{Content: "x"}, chatreduce.SendOptions{})
	require.Error(t, sendErr)
	assert.Equal(t, chatreduce.StatusError, c.Status())

	chatErr := c.Err()
	require.NotNil(t, chatErr)
	assert.Equal(t, chaterrors.ErrorTypeProviderOverloaded, chatErr.ErrorType)
	assert.True(t, chatErr.Retryable)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	p := textPart(t, msgs[1], 0)
	assert.Equal(t, chatmodel.PartStatusDone, p.Status)
}

// blockingTransport yields one event, then blocks until the test signals it
// may continue (or never continues, simulating an in-progress stream that
// Stop() must interrupt).
type blockingTransport struct {
	first   chatevent.Event
	release chan struct{}
}

func (b *blockingTransport) Trigger(ctx context.Context, triggerName string, input any, opts transport.TriggerOptions) (<-chan chatevent.Event, error) {
	ch := make(chan chatevent.Event)
	go func() {
		defer close(ch)
		ch <- b.first
		select {
		case <-b.release:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

func (b *blockingTransport) Stop() {}

// TestStop_MidStream is scenario S5 (stop mid-stream) with a tool call: Stop()
// while the call is still pending transitions it to cancelled and returns
// Chat to idle.
func TestStop_MidStream(t *testing.T) {
	tr := &blockingTransport{
		first:   chatevent.ToolInputStartEvent{ToolCallID: "c1", ToolName: "search"},
		release: make(chan struct{}),
	}
	c, err := chatreduce.New(chatreduce.Options{Transport: tr})
	require.NoError(t, err)

	var notified sync.WaitGroup
	notified.Add(1)
	var once sync.Once
	unsub := c.Subscribe(func() {
		if len(c.Messages()) == 2 {
			once.Do(notified.Done)
		}
	})
	defer unsub()

	done := make(chan error, 1)
	go func() {
		done <- c.Send(context.Background(), "chat", chatreduce.SendInput{Content: "find it"}, chatreduce.SendOptions{})
	}()

	waitTimeout(t, &notified, time.Second)
	c.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send did not return after Stop")
	}

	assert.Equal(t, chatreduce.StatusIdle, c.Status())
	msgs := c.Messages()
	require.Len(t, msgs, 2)
	tool, ok := msgs[1].Parts[0].(chatmodel.ToolCallPart)
	require.True(t, ok)
	assert.Equal(t, chatmodel.PartStatusCancelled, tool.Status)
}

// TestSend_InteractiveClientToolAwaitsSubmitResult is scenario S3 end to end:
// a client-tool-request naming an Interactive tool suspends Send at
// StatusAwaitingInput, and SubmitClientToolResult both resolves the pending
// call and drives the continuation round to completion.
func TestSend_InteractiveClientToolAwaitsSubmitResult(t *testing.T) {
	tr := newScriptedTransport(
		[]chatevent.Event{
			chatevent.ClientToolRequestEvent{ToolCalls: []chatevent.ClientToolCall{
				{ToolCallID: "c1", ToolName: "ask-name", Args: json.RawMessage(`{}`)},
			}},
			chatevent.NewFinishEvent(chatevent.FinishClientToolCalls),
		},
		[]chatevent.Event{
			chatevent.NewTextStartEvent("t1", ""),
			chatevent.NewTextDeltaEvent("t1", "Hi Ada"),
			chatevent.NewTextEndEvent("t1"),
			chatevent.NewFinishEvent(chatevent.FinishStop),
		},
	)
	c, err := chatreduce.New(chatreduce.Options{
		Transport:   tr,
		ClientTools: map[string]clienttools.Handler{"ask-name": clienttools.Interactive},
	})
	require.NoError(t, err)

	require.NoError(t, c.Send(context.Background(), "chat", chatreduce.SendInput{Content: "hi"}, chatreduce.SendOptions{}))
	assert.Equal(t, chatreduce.StatusAwaitingInput, c.Status())
	pending := c.PendingClientTools()
	require.Len(t, pending, 1)
	assert.Equal(t, "c1", pending[0].ToolCallID)
	assert.Equal(t, "ask-name", pending[0].ToolName)

	var notified sync.WaitGroup
	notified.Add(1)
	var once sync.Once
	unsub := c.Subscribe(func() {
		if c.Status() == chatreduce.StatusIdle {
			once.Do(notified.Done)
		}
	})
	defer unsub()

	c.SubmitClientToolResult(context.Background(), "c1", "Ada", nil)
	waitTimeout(t, &notified, time.Second)

	assert.Equal(t, chatreduce.StatusIdle, c.Status())
	assert.Empty(t, c.PendingClientTools())
	msgs := c.Messages()
	require.Len(t, msgs, 2)
	p := textPart(t, msgs[1], 0)
	assert.Equal(t, "Hi Ada", p.Text)
	assert.Equal(t, chatmodel.PartStatusDone, p.Status)
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for condition")
	}
}
