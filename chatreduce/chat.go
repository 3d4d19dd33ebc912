// Package chatreduce implements the stream reducer / chat state machine
// (§4.E): the Chat object that folds transport events into UIMessage
// snapshots, builds optimistic user messages, and mediates client-tool
// continuation.
package chatreduce

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/octavus-ai/chat-runtime-go/chaterrors"
	"github.com/octavus-ai/chat-runtime-go/chatevent"
	"github.com/octavus-ai/chat-runtime-go/chatmodel"
	"github.com/octavus-ai/chat-runtime-go/clienttools"
	"github.com/octavus-ai/chat-runtime-go/telemetry"
	"github.com/octavus-ai/chat-runtime-go/transport"
	"github.com/octavus-ai/chat-runtime-go/upload"
)

// SendOptions carries per-call overrides for Send. The zero value uses
// Chat's defaults.
type SendOptions struct{}

// Chat owns the message list, the in-progress streaming state, and the
// pending-client-tool map exclusively; subscribers observe snapshots and
// must never mutate them (§3 Ownership).
type Chat struct {
	opts Options

	mu         sync.RWMutex
	messages   []chatmodel.UIMessage
	status     ChatStatus
	err        *chaterrors.Error
	streaming  *foldState
	streamIdx  int // index into messages of the in-progress message, -1 if none
	generation int // bumped by Stop(); a consumeEvents loop checks this to short-circuit

	cancel      context.CancelFunc
	lastTrigger string
	lastInput   any

	mediator    *clienttools.Mediator
	subscribers map[int]func()
	nextSubID   int

	log     telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer
}

// New builds a Chat from host-supplied Options. Transport is required.
func New(opts Options) (*Chat, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("chatreduce: Options.Transport is required")
	}
	log := opts.Logger
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}

	c := &Chat{
		opts:        opts,
		messages:    append([]chatmodel.UIMessage(nil), opts.InitialMessages...),
		status:      StatusIdle,
		streamIdx:   -1,
		mediator:    clienttools.NewMediator(opts.ClientTools, opts.ClientToolSpecs),
		subscribers: make(map[int]func()),
		log:         log,
		metrics:     metrics,
		tracer:      tracer,
	}
	return c, nil
}

// Messages returns a snapshot of the current message list. Safe to call
// concurrently with Send.
func (c *Chat) Messages() []chatmodel.UIMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]chatmodel.UIMessage, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Clone()
	}
	return out
}

// Status returns the current lifecycle status.
func (c *Chat) Status() ChatStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Err returns the error that drove the current StatusError, or nil.
func (c *Chat) Err() *chaterrors.Error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// PendingClientTools returns a snapshot of tool calls awaiting a
// host-supplied result.
func (c *Chat) PendingClientTools() []chatmodel.PendingClientTool {
	return c.mediator.Pending()
}

// Subscribe registers listener to be invoked, synchronously and in
// registration order, after any observable mutation. The returned func
// unregisters it; calling it more than once is a no-op (§4.E, grounded on
// hooks.Bus's Register/Subscription idiom).
func (c *Chat) Subscribe(listener func()) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = listener
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
		})
	}
}

func (c *Chat) notify() {
	c.mu.RLock()
	ids := make([]int, 0, len(c.subscribers))
	for id := range c.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]func(), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, c.subscribers[id])
	}
	c.mu.RUnlock()
	for _, l := range listeners {
		l()
	}
}

func (c *Chat) setStatus(s ChatStatus) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Send optimistically appends a user message, starts triggerName via the
// transport, and runs the reducer until the stream ends or suspends
// awaiting client-tool input (§4.E).
func (c *Chat) Send(ctx context.Context, triggerName string, in SendInput, _ SendOptions) error {
	c.mu.RLock()
	busy := c.status == StatusStreaming || c.status == StatusAwaitingInput
	c.mu.RUnlock()
	if busy {
		return fmt.Errorf("chatreduce: Send called while a stream is already in progress")
	}

	var uploadOpts *upload.Options
	if c.opts.RequestUploadURLs != nil {
		uploadOpts = &upload.Options{RequestUploadURLs: c.opts.RequestUploadURLs, Concurrency: c.opts.UploadConcurrency}
	}
	userMsg, err := buildUserMessage(ctx, in, uploadOpts)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.messages = append(c.messages, userMsg)
	c.status = StatusStreaming
	c.err = nil
	c.streaming = newFoldState(uuid.NewString())
	c.streamIdx = -1
	c.lastTrigger = triggerName
	c.lastInput = in
	c.generation++
	gen := c.generation
	var sendCtx context.Context
	var cancel context.CancelFunc
	if c.opts.TriggerTimeout > 0 {
		sendCtx, cancel = context.WithTimeout(ctx, c.opts.TriggerTimeout)
	} else {
		sendCtx, cancel = context.WithCancel(ctx)
	}
	c.cancel = cancel
	c.mu.Unlock()
	c.notify()

	spanCtx, span := c.tracer.Start(sendCtx, "chatreduce.Send")
	defer span.End()
	c.log.Debug(spanCtx, "chatreduce: send", "trigger", triggerName)
	start := nowFunc()
	c.metrics.IncCounter("chatreduce.send.count", 1, "trigger", triggerName)

	events, err := c.opts.Transport.Trigger(spanCtx, triggerName, in, transport.TriggerOptions{})
	if err != nil {
		chatErr := c.wrapTransportError(err)
		span.RecordError(chatErr)
		c.failStream(spanCtx, chatErr)
		return chatErr
	}

	err = c.consumeEvents(spanCtx, gen, events)
	c.metrics.RecordTimer("chatreduce.send.duration", nowFunc().Sub(start), "trigger", triggerName)
	return err
}

// nowFunc is a seam for timing measurements (§1A); a host never overrides it,
// it exists so every duration call site shares one clock.
var nowFunc = time.Now

// consumeEvents drains events into the reducer until the stream ends,
// suspends awaiting client-tool input, or errors. gen pins the Chat
// generation this loop belongs to; if Stop() bumps the generation, further
// events are dropped rather than mutating state that no longer represents
// the current stream (§5 cancellation).
func (c *Chat) consumeEvents(ctx context.Context, gen int, events <-chan chatevent.Event) error {
	for ev := range events {
		c.mu.RLock()
		stale := c.generation != gen
		c.mu.RUnlock()
		if stale {
			return nil
		}

		switch e := ev.(type) {
		case chatevent.FinishEvent:
			if e.FinishReason == chatevent.FinishClientToolCalls {
				if len(c.mediator.Pending()) > 0 {
					c.setStatus(StatusAwaitingInput)
					c.notify()
				}
				return nil
			}
			c.finishStream(ctx)
			return nil

		case chatevent.ErrorEvent:
			chatErr := errorEventToChatError(e)
			c.failStream(ctx, chatErr)
			return chatErr

		case chatevent.ClientToolRequestEvent:
			toolCtx, span := c.tracer.Start(ctx, "chatreduce.handle_client_tools")
			toolCtx, cancel := context.WithCancel(toolCtx)
			results, awaiting := c.mediator.HandleRequest(toolCtx, cancel, e.ToolCalls, func(ev chatevent.Event) { c.emitAndNotify(ev) })
			span.End()
			c.syncMessage()
			c.notify()
			if awaiting {
				continue
			}
			nextEvents, err := c.continueWithResults(ctx, results)
			if err != nil {
				chatErr := c.wrapTransportError(err)
				c.failStream(ctx, chatErr)
				return chatErr
			}
			events = nextEvents

		default:
			c.emitAndNotify(ev)
		}
	}
	return nil
}

func (c *Chat) emitAndNotify(ev chatevent.Event) {
	applyEvent(c.streaming, ev, c.onResourceUpdate)
	c.syncMessage()
	c.notify()
}

func (c *Chat) onResourceUpdate(name string, value json.RawMessage) {
	if c.opts.OnResourceUpdate != nil {
		c.opts.OnResourceUpdate(name, value)
	}
}

// syncMessage projects the in-progress foldState into the message list,
// lazily creating the assistant message on its first part-producing event
// (§3 Lifecycle).
func (c *Chat) syncMessage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming == nil || len(c.streaming.Parts) == 0 {
		return
	}
	msg := chatmodel.UIMessage{
		ID:     c.streaming.AssistantMessageID,
		Role:   chatmodel.RoleAssistant,
		Parts:  c.streaming.snapshotParts(),
		Status: chatmodel.MessageStatusStreaming,
	}
	if c.streamIdx < 0 {
		c.streamIdx = len(c.messages)
		c.messages = append(c.messages, msg)
		return
	}
	c.messages[c.streamIdx] = msg
}

// finishStream finalizes the in-progress message as done and fires
// OnFinish (§4.E.2 finish, non-client-tool-calls branch).
func (c *Chat) finishStream(ctx context.Context) {
	c.log.Debug(ctx, "chatreduce: stream finished")
	c.metrics.IncCounter("chatreduce.finish.count", 1)
	c.mu.Lock()
	if c.streaming != nil {
		c.streaming.finalizeInFlight(false)
		if len(c.streaming.Parts) > 0 {
			msg := chatmodel.UIMessage{
				ID:     c.streaming.AssistantMessageID,
				Role:   chatmodel.RoleAssistant,
				Parts:  c.streaming.snapshotParts(),
				Status: chatmodel.MessageStatusDone,
			}
			if c.streamIdx >= 0 {
				c.messages[c.streamIdx] = msg
			} else {
				c.messages = append(c.messages, msg)
			}
		}
	}
	c.streaming = nil
	c.streamIdx = -1
	c.status = StatusIdle
	c.mu.Unlock()
	c.notify()
	if c.opts.OnFinish != nil {
		c.opts.OnFinish()
	}
}

// failStream finalizes the in-progress message like Stop(), records err,
// and fires OnError (§4.E.2 error unwind).
func (c *Chat) failStream(ctx context.Context, chatErr *chaterrors.Error) {
	c.log.Error(ctx, "chatreduce: stream failed", "error_type", string(chatErr.ErrorType), "source", string(chatErr.Source), "message", chatErr.Message)
	c.metrics.IncCounter("chatreduce.error.count", 1, "error_type", string(chatErr.ErrorType))
	c.mu.Lock()
	if c.streaming != nil {
		c.streaming.finalizeInFlight(true)
		if len(c.streaming.Parts) > 0 {
			msg := chatmodel.UIMessage{
				ID:     c.streaming.AssistantMessageID,
				Role:   chatmodel.RoleAssistant,
				Parts:  c.streaming.snapshotParts(),
				Status: chatmodel.MessageStatusDone,
			}
			if c.streamIdx >= 0 {
				c.messages[c.streamIdx] = msg
			} else {
				c.messages = append(c.messages, msg)
			}
		}
	}
	c.streaming = nil
	c.streamIdx = -1
	c.status = StatusError
	c.err = chatErr
	c.mu.Unlock()
	c.notify()
	if c.opts.OnError != nil {
		c.opts.OnError(chatErr)
	}
}

// Stop cancels the transport, finalizes the in-progress message (streaming
// text/reasoning/object -> done; pending/running tool-calls and operations
// -> cancelled), clears any pending client-tool state, and returns Chat to
// idle. Idempotent (§4.E, §5).
func (c *Chat) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.generation++
	streaming := c.streaming
	streamIdx := c.streamIdx
	hadStreaming := streaming != nil
	if hadStreaming {
		streaming.finalizeInFlight(true)
		if len(streaming.Parts) > 0 {
			msg := chatmodel.UIMessage{
				ID:     streaming.AssistantMessageID,
				Role:   chatmodel.RoleAssistant,
				Parts:  streaming.snapshotParts(),
				Status: chatmodel.MessageStatusDone,
			}
			if streamIdx >= 0 {
				c.messages[streamIdx] = msg
			} else {
				c.messages = append(c.messages, msg)
			}
		}
	}
	c.streaming = nil
	c.streamIdx = -1
	c.status = StatusIdle
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.opts.Transport.Stop()
	c.mediator.Abort()

	c.notify()
	if hadStreaming && c.opts.OnStop != nil {
		c.opts.OnStop()
	}
}

// SubmitClientToolResult resolves one pending interactive tool call. When it
// is the last one pending, continuation is started automatically (§4.F).
func (c *Chat) SubmitClientToolResult(ctx context.Context, toolCallID string, result any, toolErr error) {
	results, stillAwaiting := c.mediator.SubmitResult(toolCallID, result, toolErr, func(ev chatevent.Event) { c.emitAndNotify(ev) })
	if stillAwaiting {
		return
	}

	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	nextEvents, err := c.continueWithResults(ctx, results)
	if err != nil {
		c.failStream(ctx, c.wrapTransportError(err))
		return
	}
	c.setStatus(StatusStreaming)
	c.notify()
	go func() { _ = c.consumeEvents(ctx, gen, nextEvents) }()
}

// UploadFiles is a pass-through to the upload package using this Chat's
// configured upload callback (§4.D).
func (c *Chat) UploadFiles(ctx context.Context, files []upload.FileSpec, onProgress func(index, percent int)) ([]upload.FileReference, error) {
	if c.opts.RequestUploadURLs == nil {
		return nil, fmt.Errorf("chatreduce: UploadFiles called without a RequestUploadURLs callback configured")
	}
	return upload.UploadFiles(ctx, files, upload.Options{
		RequestUploadURLs: c.opts.RequestUploadURLs,
		OnProgress:        onProgress,
		Concurrency:       c.opts.UploadConcurrency,
	})
}

func (c *Chat) continueWithResults(ctx context.Context, results []chatmodel.ToolResult) (<-chan chatevent.Event, error) {
	if st, ok := c.opts.Transport.(transport.SocketTransport); ok {
		if err := st.SendClientToolResults(ctx, results); err != nil {
			return nil, err
		}
		return st.ContinuationEvents(), nil
	}
	c.mu.RLock()
	triggerName, input := c.lastTrigger, c.lastInput
	c.mu.RUnlock()
	return c.opts.Transport.Trigger(ctx, triggerName, input, transport.TriggerOptions{ClientToolResults: results})
}

func (c *Chat) wrapTransportError(err error) *chaterrors.Error {
	if chatErr, ok := chaterrors.AsChatError(err); ok {
		return chatErr
	}
	return chaterrors.Wrap(chaterrors.ErrorTypeProtocol, chaterrors.SourceClient, "transport trigger failed", err)
}

func errorEventToChatError(e chatevent.ErrorEvent) *chaterrors.Error {
	errType := chaterrors.ErrorType(e.ErrorType)
	if errType == "" {
		errType = chaterrors.ErrorTypeUnknown
	}
	source := chaterrors.Source(e.Source)
	if source == "" {
		source = chaterrors.SourceProvider
	}
	chatErr := chaterrors.New(errType, source, e.Message)
	chatErr.Retryable = e.Retryable
	chatErr.RetryAfter = e.RetryAfter
	chatErr.Code = e.Code
	if e.ProviderName != "" || e.ProviderModel != "" || e.ProviderStatus != 0 {
		chatErr.Provider = &chaterrors.ProviderInfo{
			Name:       e.ProviderName,
			Model:      e.ProviderModel,
			StatusCode: e.ProviderStatus,
		}
	}
	if e.ToolName != "" || e.ToolCallID != "" {
		chatErr.Tool = &chaterrors.ToolInfo{Name: e.ToolName, CallID: e.ToolCallID}
	}
	return chatErr
}
