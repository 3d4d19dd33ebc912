// Package socket implements the persistent-connection flavor of
// transport.Transport (§4.C). The connection is realized as a pair of
// goa.design/pulse/streaming streams scoped to one chat: the host's server
// publishes the event stream, and this transport publishes client→server
// control frames (trigger/continue/stop) to a second stream, consuming its
// own events through a dedicated Pulse sink (consumer group).
package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/octavus-ai/chat-runtime-go/chatevent"
	"github.com/octavus-ai/chat-runtime-go/chatmodel"
	"github.com/octavus-ai/chat-runtime-go/telemetry"
	"github.com/octavus-ai/chat-runtime-go/transport"
)

// controlFrame is one client→server message (§4.C "Socket transport
// protocol frames"). This transport never sets ExecutionID, so its continue
// frames are published without an executionId.
type controlFrame struct {
	Type        string                 `json:"type"`
	TriggerName string                 `json:"triggerName,omitempty"`
	Input       any                    `json:"input,omitempty"`
	ExecutionID string                 `json:"executionId,omitempty"`
	ToolResults []chatmodel.ToolResult `json:"toolResults,omitempty"`
}

const (
	controlTrigger  = "trigger"
	controlContinue = "continue"
	controlStop     = "stop"
)

// Options configures a socket Transport.
type Options struct {
	// Client publishes control frames and consumes events. Required; use
	// &RedisPulseClient{Redis: ...} in production.
	Client PulseClient

	// ControlStream names the stream this transport publishes
	// trigger/continue/stop frames to. Required.
	ControlStream string
	// EventStream names the stream the host's server publishes chat events
	// to. Required.
	EventStream string
	// SinkName identifies this connection's consumer group on EventStream.
	// Defaults to "chat-runtime-go".
	SinkName string
	// QueueCapacity bounds the number of decoded events buffered between the
	// sink-consuming goroutine and the forward loop before producers block.
	// Defaults to 64; pair with chatconfig.Config.SocketQueueCapacity.
	QueueCapacity int

	// Logger records dropped/malformed events and connection-lifecycle
	// decisions (§1A). Defaults to a no-op logger when left unset.
	Logger telemetry.Logger

	// ReconnectBackoffMin enables a reconnect-with-backoff loop inside
	// ensureConnected: a failed connect is retried starting at this delay,
	// doubling on each further failure up to ReconnectBackoffMax, until it
	// succeeds or ctx ends. Zero (the default) disables retrying: a failed
	// connect surfaces immediately, as a single attempt always did. Pair
	// with chatconfig.Config.ReconnectBackoffMin/Max.
	ReconnectBackoffMin time.Duration
	ReconnectBackoffMax time.Duration
}

// Transport is the persistent-socket flavor of transport.Transport and
// transport.SocketTransport.
type Transport struct {
	opts Options

	mu           sync.Mutex
	state        transport.ConnectionState
	control      PulseStream
	sink         PulseSink
	queue        *eventQueue
	connecting   chan struct{}
	connectErr   error
	sinkCancel   context.CancelFunc
	activeCancel context.CancelFunc // cancels the current Trigger/ContinuationEvents forward loop

	listenersMu    sync.RWMutex
	listeners      map[int]func(transport.ConnectionState)
	nextListenerID int
}

var (
	_ transport.Transport       = (*Transport)(nil)
	_ transport.SocketTransport = (*Transport)(nil)
)

// New constructs a socket Transport. opts.Client, opts.ControlStream, and
// opts.EventStream are required.
func New(opts Options) *Transport {
	if opts.SinkName == "" {
		opts.SinkName = "chat-runtime-go"
	}
	return &Transport{
		opts:      opts,
		state:     transport.ConnectionDisconnected,
		listeners: make(map[int]func(transport.ConnectionState)),
	}
}

func (t *Transport) logger() telemetry.Logger {
	if t.opts.Logger != nil {
		return t.opts.Logger
	}
	return telemetry.NewNoopLogger()
}

// ConnectionState returns the current connection lifecycle state.
func (t *Transport) ConnectionState() transport.ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// OnConnectionStateChange registers listener, which fires immediately with
// the current state and again on every subsequent change (§4.C), until the
// returned func is called.
func (t *Transport) OnConnectionStateChange(listener func(transport.ConnectionState)) (unsubscribe func()) {
	t.listenersMu.Lock()
	id := t.nextListenerID
	t.nextListenerID++
	t.listeners[id] = listener
	t.listenersMu.Unlock()

	listener(t.ConnectionState())

	var once sync.Once
	return func() {
		once.Do(func() {
			t.listenersMu.Lock()
			delete(t.listeners, id)
			t.listenersMu.Unlock()
		})
	}
}

func (t *Transport) setState(s transport.ConnectionState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()

	t.listenersMu.RLock()
	listeners := make([]func(transport.ConnectionState), 0, len(t.listeners))
	for _, l := range t.listeners {
		listeners = append(listeners, l)
	}
	t.listenersMu.RUnlock()
	for _, l := range listeners {
		l(s)
	}
}

// Connect eagerly establishes the connection. Trigger calls it lazily if
// the caller hasn't already.
func (t *Transport) Connect(ctx context.Context) error {
	return t.ensureConnected(ctx)
}

// ensureConnected is idempotent and shares one in-flight attempt across
// concurrent callers (§4.C step 2), grounded on interrupt.Controller's
// single-resolver-per-signal idiom generalized to connection setup.
func (t *Transport) ensureConnected(ctx context.Context) error {
	t.mu.Lock()
	if t.state == transport.ConnectionConnected {
		t.mu.Unlock()
		return nil
	}
	if t.connecting != nil {
		ch := t.connecting
		t.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		t.mu.Lock()
		err := t.connectErr
		t.mu.Unlock()
		return err
	}
	ch := make(chan struct{})
	t.connecting = ch
	t.mu.Unlock()
	t.setState(transport.ConnectionConnecting)
	t.logger().Debug(ctx, "socket: connecting", "control_stream", t.opts.ControlStream, "event_stream", t.opts.EventStream)

	err := t.connectWithBackoff(ctx)

	t.mu.Lock()
	t.connectErr = err
	close(ch)
	t.connecting = nil
	t.mu.Unlock()

	if err != nil {
		t.setState(transport.ConnectionError)
		t.logger().Error(ctx, "socket: connect failed", "error", err.Error())
	} else {
		t.setState(transport.ConnectionConnected)
		t.logger().Debug(ctx, "socket: connected")
	}
	return err
}

// connectWithBackoff calls connect, retrying on failure with exponential
// backoff bounded by Options.ReconnectBackoffMin/Max until it succeeds or ctx
// ends. A zero ReconnectBackoffMin makes this exactly one attempt, the
// behavior before a reconnect loop existed.
func (t *Transport) connectWithBackoff(ctx context.Context) error {
	backoff := t.opts.ReconnectBackoffMin
	for {
		err := t.connect(ctx)
		if err == nil || backoff <= 0 {
			return err
		}

		t.logger().Debug(ctx, "socket: reconnect backoff", "delay", backoff.String(), "error", err.Error())
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return err
		}

		backoff *= 2
		if max := t.opts.ReconnectBackoffMax; max > 0 && backoff > max {
			backoff = max
		}
	}
}

func (t *Transport) connect(ctx context.Context) error {
	if t.opts.Client == nil {
		return fmt.Errorf("socket: Options.Client is required")
	}
	if t.opts.ControlStream == "" || t.opts.EventStream == "" {
		return fmt.Errorf("socket: Options.ControlStream and Options.EventStream are required")
	}

	control, err := t.opts.Client.Stream(t.opts.ControlStream)
	if err != nil {
		return fmt.Errorf("socket: open control stream: %w", err)
	}
	events, err := t.opts.Client.Stream(t.opts.EventStream)
	if err != nil {
		return fmt.Errorf("socket: open event stream: %w", err)
	}
	sink, err := events.NewSink(ctx, t.opts.SinkName)
	if err != nil {
		return fmt.Errorf("socket: open event sink: %w", err)
	}

	queue := newEventQueue(t.opts.QueueCapacity)
	sinkCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.control = control
	t.sink = sink
	t.queue = queue
	t.sinkCancel = cancel
	t.mu.Unlock()

	go t.consumeSink(sinkCtx, sink, queue)
	return nil
}

// consumeSink decodes events arriving on the Pulse sink and hands them to
// the queue, acking each one after it is queued (mirrors the teacher's
// Pulse subscriber consume loop). Malformed payloads are dropped and
// acked, same policy as every other transport boundary (§4.A).
func (t *Transport) consumeSink(ctx context.Context, sink PulseSink, queue *eventQueue) {
	ch := sink.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				queue.close()
				return
			}
			if ev, ok := chatevent.Parse(evt.Payload); ok {
				queue.push(ev)
			} else {
				t.logger().Debug(ctx, "socket: dropped malformed sink event", "event_name", evt.EventName)
			}
			_ = sink.Ack(ctx, evt)
		}
	}
}

// Disconnect tears down the sink and control stream and returns to
// disconnected. Safe to call when not connected.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	cancel := t.sinkCancel
	sink := t.sink
	queue := t.queue
	t.sinkCancel = nil
	t.sink = nil
	t.control = nil
	t.queue = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if queue != nil {
		queue.close()
	}
	if sink != nil {
		_ = sink.Close(context.Background())
	}
	t.setState(transport.ConnectionDisconnected)
}

// Trigger publishes a trigger (or, when opts.ClientToolResults is set, a
// continue) control frame and forwards queued events until a finish/error
// event, the queue closes, or ctx is cancelled.
func (t *Transport) Trigger(ctx context.Context, triggerName string, input any, opts transport.TriggerOptions) (<-chan chatevent.Event, error) {
	if err := t.ensureConnected(ctx); err != nil {
		return nil, err
	}

	frame := controlFrame{Type: controlTrigger, TriggerName: triggerName, Input: input}
	if len(opts.ClientToolResults) > 0 {
		frame = controlFrame{Type: controlContinue, ToolResults: opts.ClientToolResults}
	}
	if err := t.publish(ctx, frame); err != nil {
		return nil, err
	}

	return t.forward(ctx), nil
}

// ContinuationEvents consumes the live queue without publishing a new
// control frame, for use after SendClientToolResults (§4.C, §4.F).
func (t *Transport) ContinuationEvents() <-chan chatevent.Event {
	return t.forward(context.Background())
}

// SendClientToolResults publishes a continue control frame carrying
// results; the caller consumes ContinuationEvents afterward.
func (t *Transport) SendClientToolResults(ctx context.Context, results []chatmodel.ToolResult) error {
	if err := t.ensureConnected(ctx); err != nil {
		return err
	}
	return t.publish(ctx, controlFrame{Type: controlContinue, ToolResults: results})
}

func (t *Transport) publish(ctx context.Context, frame controlFrame) error {
	t.mu.Lock()
	control := t.control
	t.mu.Unlock()
	if control == nil {
		return fmt.Errorf("socket: not connected")
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("socket: marshal control frame: %w", err)
	}
	_, err = control.Add(ctx, frame.Type, payload)
	return err
}

// forward starts (or restarts) a goroutine draining the connection's queue
// into a fresh channel, stopping after a finish or error event, on ctx
// cancellation, or when the queue closes. Only one forward loop is active
// at a time; starting a new one cancels the previous.
func (t *Transport) forward(ctx context.Context) <-chan chatevent.Event {
	forwardCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	if t.activeCancel != nil {
		t.activeCancel()
	}
	t.activeCancel = cancel
	queue := t.queue
	t.mu.Unlock()

	ch := make(chan chatevent.Event)
	go func() {
		defer close(ch)
		defer cancel()
		if queue == nil {
			return
		}
		for {
			ev, ok := queue.pop(forwardCtx)
			if !ok {
				return
			}
			select {
			case ch <- ev:
			case <-forwardCtx.Done():
				return
			}
			switch ev.(type) {
			case chatevent.FinishEvent, chatevent.ErrorEvent:
				return
			}
		}
	}()
	return ch
}

// Stop cancels the active forward loop and best-effort notifies the server
// side via a stop control frame. Idempotent.
func (t *Transport) Stop() {
	t.mu.Lock()
	cancel := t.activeCancel
	control := t.control
	t.activeCancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if control != nil {
		payload, err := json.Marshal(controlFrame{Type: controlStop})
		if err == nil {
			_, _ = control.Add(context.Background(), controlStop, payload)
		}
	}
}
