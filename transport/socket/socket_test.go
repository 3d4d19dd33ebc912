package socket_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	"github.com/octavus-ai/chat-runtime-go/chatevent"
	"github.com/octavus-ai/chat-runtime-go/chatmodel"
	"github.com/octavus-ai/chat-runtime-go/transport"
	"github.com/octavus-ai/chat-runtime-go/transport/socket"
)

// mockPulseClient is an in-memory double for socket.PulseClient, grounded
// on the registry package's mockPulseClient/mockPulseStream/mockPulseSink
// test doubles (no real Redis needed).
type mockPulseClient struct {
	mu           sync.Mutex
	streams      map[string]*mockPulseStream
	failAttempts int // Stream calls fail and decrement this while it's > 0
}

func newMockPulseClient() *mockPulseClient {
	return &mockPulseClient{streams: make(map[string]*mockPulseStream)}
}

func (c *mockPulseClient) Stream(name string, _ ...streamopts.Stream) (socket.PulseStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAttempts > 0 {
		c.failAttempts--
		return nil, errors.New("connect refused")
	}
	if s, ok := c.streams[name]; ok {
		return s, nil
	}
	s := &mockPulseStream{name: name, events: make(chan *streaming.Event, 16)}
	c.streams[name] = s
	return s, nil
}

func (c *mockPulseClient) published(name string) []*streaming.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams[name]
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*streaming.Event(nil), s.added...)
}

type mockPulseStream struct {
	name   string
	events chan *streaming.Event

	mu    sync.Mutex
	added []*streaming.Event
}

func (s *mockPulseStream) Add(ctx context.Context, event string, payload []byte) (string, error) {
	s.mu.Lock()
	s.added = append(s.added, &streaming.Event{EventName: event, Payload: payload})
	s.mu.Unlock()
	return "0-0", nil
}

func (s *mockPulseStream) NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (socket.PulseSink, error) {
	return &mockPulseSink{stream: s}, nil
}

func (s *mockPulseStream) deliver(ev *streaming.Event) {
	s.events <- ev
}

type mockPulseSink struct {
	stream *mockPulseStream
}

func (s *mockPulseSink) Subscribe() <-chan *streaming.Event { return s.stream.events }
func (s *mockPulseSink) Ack(ctx context.Context, ev *streaming.Event) error { return nil }
func (s *mockPulseSink) Close(ctx context.Context) error                   { return nil }

func eventPayload(t *testing.T, v map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestTrigger_PublishesControlFrameAndConsumesEvents(t *testing.T) {
	client := newMockPulseClient()
	tr := socket.New(socket.Options{
		Client:        client,
		ControlStream: "control",
		EventStream:   "events",
	})

	var states []transport.ConnectionState
	unsub := tr.OnConnectionStateChange(func(s transport.ConnectionState) { states = append(states, s) })
	defer unsub()

	eventsStream, err := client.Stream("events")
	require.NoError(t, err)
	mockEvents := eventsStream.(*mockPulseStream)

	ch, err := tr.Trigger(context.Background(), "chat", map[string]any{"content": "hi"}, transport.TriggerOptions{})
	require.NoError(t, err)

	mockEvents.deliver(&streaming.Event{EventName: "text-start", Payload: eventPayload(t, map[string]any{"type": "text-start", "id": "t1"})})
	mockEvents.deliver(&streaming.Event{EventName: "finish", Payload: eventPayload(t, map[string]any{"type": "finish", "finishReason": "stop"})})

	var got []chatevent.Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	_, ok := got[0].(chatevent.TextStartEvent)
	assert.True(t, ok)
	_, ok = got[1].(chatevent.FinishEvent)
	assert.True(t, ok)

	assert.Equal(t, transport.ConnectionConnected, tr.ConnectionState())
	assert.Contains(t, states, transport.ConnectionConnecting)
	assert.Contains(t, states, transport.ConnectionConnected)

	published := client.published("control")
	require.Len(t, published, 1)
	var frame struct {
		Type        string `json:"type"`
		TriggerName string `json:"triggerName"`
	}
	require.NoError(t, json.Unmarshal(published[0].Payload, &frame))
	assert.Equal(t, "trigger", frame.Type)
	assert.Equal(t, "chat", frame.TriggerName)
}

func TestSendClientToolResults_PublishesContinueFrame(t *testing.T) {
	client := newMockPulseClient()
	tr := socket.New(socket.Options{Client: client, ControlStream: "control", EventStream: "events"})

	err := tr.SendClientToolResults(context.Background(), []chatmodel.ToolResult{
		{ToolCallID: "c1", ToolName: "search", Result: "ok"},
	})
	require.NoError(t, err)

	published := client.published("control")
	require.Len(t, published, 1)
	var frame struct {
		Type        string                 `json:"type"`
		ToolResults []chatmodel.ToolResult `json:"toolResults"`
	}
	require.NoError(t, json.Unmarshal(published[0].Payload, &frame))
	assert.Equal(t, "continue", frame.Type)
	require.Len(t, frame.ToolResults, 1)
	assert.Equal(t, "c1", frame.ToolResults[0].ToolCallID)
}

func TestStop_EndsForwardLoopAndPublishesStopFrame(t *testing.T) {
	client := newMockPulseClient()
	tr := socket.New(socket.Options{Client: client, ControlStream: "control", EventStream: "events"})

	ch, err := tr.Trigger(context.Background(), "chat", nil, transport.TriggerOptions{})
	require.NoError(t, err)

	tr.Stop()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("forward channel did not close after Stop")
	}

	published := client.published("control")
	require.Len(t, published, 2)
	var frame struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(published[len(published)-1].Payload, &frame))
	assert.Equal(t, "stop", frame.Type)
}

func TestEnsureConnected_ConcurrentCallsShareOneAttempt(t *testing.T) {
	client := newMockPulseClient()
	tr := socket.New(socket.Options{Client: client, ControlStream: "control", EventStream: "events"})

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = tr.Connect(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, transport.ConnectionConnected, tr.ConnectionState())
}

func TestEnsureConnected_RetriesWithBackoffUntilSuccess(t *testing.T) {
	client := newMockPulseClient()
	client.failAttempts = 2

	tr := socket.New(socket.Options{
		Client:              client,
		ControlStream:       "control",
		EventStream:         "events",
		ReconnectBackoffMin: 2 * time.Millisecond,
		ReconnectBackoffMax: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Connect(ctx))
	assert.Equal(t, transport.ConnectionConnected, tr.ConnectionState())
}

func TestEnsureConnected_NoBackoffFailsImmediately(t *testing.T) {
	client := newMockPulseClient()
	client.failAttempts = 1

	tr := socket.New(socket.Options{Client: client, ControlStream: "control", EventStream: "events"})

	err := tr.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, transport.ConnectionError, tr.ConnectionState())
}
