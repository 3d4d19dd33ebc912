// Package clienttools mediates client-tool-request events: dispatching
// automatic handlers, parking interactive ones until the host supplies a
// result, and assembling the continuation batch (§4.F, §4.G).
package clienttools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/octavus-ai/chat-runtime-go/chatevent"
	"github.com/octavus-ai/chat-runtime-go/chatmodel"
)

// Handler executes a client tool call. Implementations suspend arbitrarily
// (host code); the reducer does not hold any exclusive resource while a
// handler runs (§5).
type Handler interface {
	Handle(ctx context.Context, args any, toolCallID, toolName string) (any, error)
}

// HandlerFunc adapts a plain function to Handler, mirroring the
// net/http.HandlerFunc idiom.
type HandlerFunc func(ctx context.Context, args any, toolCallID, toolName string) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, args any, toolCallID, toolName string) (any, error) {
	return f(ctx, args, toolCallID, toolName)
}

type interactiveHandler struct{}

func (interactiveHandler) Handle(context.Context, any, string, string) (any, error) {
	panic("clienttools: Interactive is a sentinel and must never be invoked directly")
}

// Interactive marks a tool name as host-answered rather than
// function-answered: the mediator parks the call until SubmitResult is
// called for its toolCallID, rather than invoking a handler.
var Interactive Handler = interactiveHandler{}

type pendingEntry struct {
	toolName       string
	args           any
	blockIndex     int
	outputVariable string
}

// Mediator partitions a client-tool-request batch into automatic,
// interactive, and unhandled calls, and tracks interactive calls awaiting a
// host-supplied result (§4.F). A Mediator is not safe for concurrent use by
// more than one in-flight batch; chatreduce.Chat owns exactly one at a time.
type Mediator struct {
	handlers map[string]Handler
	specs    map[Ident]ToolSpec

	mu      sync.Mutex
	pending map[string]pendingEntry
	results []chatmodel.ToolResult
	cancel  context.CancelFunc

	// history caches the last successful result for each conversation-scoped
	// idempotent call, keyed by historyKey(toolName, args), so a repeated
	// call with identical arguments is answered from cache instead of
	// re-invoking (or re-parking) its handler (§4.G).
	history map[string]chatmodel.ToolResult
}

// NewMediator builds a Mediator from a host-supplied name -> Handler
// registry and an optional name -> ToolSpec catalog. A nil or missing
// handler entry for a requested tool name synthesizes an unhandled-tool
// error result rather than panicking. specs may be nil; a Mediator with no
// specs behaves exactly as if §4.G did not exist.
func NewMediator(handlers map[string]Handler, specs map[Ident]ToolSpec) *Mediator {
	return &Mediator{
		handlers: handlers,
		specs:    specs,
		pending:  make(map[string]pendingEntry),
		history:  make(map[string]chatmodel.ToolResult),
	}
}

// historyKey identifies a call by tool name and (canonicalized via
// json.Marshal) arguments for idempotency-cache lookups.
func historyKey(toolName string, args any) string {
	b, _ := json.Marshal(args)
	return toolName + "\x00" + string(b)
}

// cachedResult returns the cached result for toolName/args if toolName
// declares IdempotencyScopeConversation and a prior call with identical
// arguments already resolved successfully.
func (m *Mediator) cachedResult(toolName string, args any) (chatmodel.ToolResult, bool) {
	scope, found, err := IdempotencyScopeFromTags(m.specs[Ident(toolName)].Tags)
	if err != nil || !found || scope != IdempotencyScopeConversation {
		return chatmodel.ToolResult{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cached, ok := m.history[historyKey(toolName, args)]
	return cached, ok
}

// replayResult resolves a call from a cached prior result without invoking
// a handler, recording it in the continuation batch the same as a freshly
// resolved call.
func (m *Mediator) replayResult(toolCallID string, cached chatmodel.ToolResult, emit func(chatevent.Event)) {
	m.mu.Lock()
	m.results = append(m.results, chatmodel.ToolResult{
		ToolCallID: toolCallID,
		ToolName:   cached.ToolName,
		Result:     cached.Result,
		Err:        cached.Err,
	})
	m.mu.Unlock()

	if cached.Err != "" {
		emit(chatevent.NewToolOutputErrorEvent(toolCallID, cached.Err))
		return
	}
	payload, _ := json.Marshal(cached.Result)
	emit(chatevent.NewToolOutputAvailableEvent(toolCallID, payload))
}

// Pending returns a snapshot of tool calls awaiting a host-supplied result.
func (m *Mediator) Pending() []chatmodel.PendingClientTool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chatmodel.PendingClientTool, 0, len(m.pending))
	for id, p := range m.pending {
		out = append(out, chatmodel.PendingClientTool{
			ToolCallID:     id,
			ToolName:       p.toolName,
			Args:           p.args,
			Source:         chatmodel.ToolSourceLLM,
			OutputVariable: p.outputVariable,
			BlockIndex:     p.blockIndex,
		})
	}
	return out
}

// HandleRequest dispatches every call in a client-tool-request batch: an
// automatic Handler runs synchronously against ctx and its outcome is
// emitted immediately; Interactive calls are parked in the pending map;
// calls with no registered handler synthesize an error result. emit is
// called once per resolved call, in request order, with the corresponding
// synthetic tool-output-available/tool-output-error event.
//
// When every call in the batch resolved automatically, results holds the
// full continuation batch and awaitingInput is false. Otherwise results is
// nil and awaitingInput is true; the caller must wait for SubmitResult calls
// to drain the pending map.
func (m *Mediator) HandleRequest(ctx context.Context, cancel context.CancelFunc, calls []chatevent.ClientToolCall, emit func(chatevent.Event)) (results []chatmodel.ToolResult, awaitingInput bool) {
	m.mu.Lock()
	m.results = nil
	m.cancel = cancel
	m.mu.Unlock()

	for _, call := range calls {
		var args any
		_ = json.Unmarshal(call.Args, &args)

		if cached, ok := m.cachedResult(call.ToolName, args); ok {
			m.replayResult(call.ToolCallID, cached, emit)
			continue
		}

		handler, ok := m.handlers[call.ToolName]
		switch {
		case !ok:
			m.recordResult(call.ToolCallID, call.ToolName, args, nil, fmt.Sprintf("no client handler for tool: %s", call.ToolName), emit)
		case handler == Interactive:
			m.mu.Lock()
			m.pending[call.ToolCallID] = pendingEntry{toolName: call.ToolName, args: args}
			m.mu.Unlock()
		default:
			out, err := handler.Handle(ctx, args, call.ToolCallID, call.ToolName)
			if err != nil {
				m.recordResult(call.ToolCallID, call.ToolName, args, nil, err.Error(), emit)
			} else {
				m.recordResult(call.ToolCallID, call.ToolName, args, out, "", emit)
			}
		}
	}

	return m.drainIfComplete()
}

// SubmitResult resolves one pending interactive tool call. When it is the
// last pending call in the batch, results holds the full continuation batch
// and stillAwaiting is false.
func (m *Mediator) SubmitResult(toolCallID string, result any, toolErr error, emit func(chatevent.Event)) (results []chatmodel.ToolResult, stillAwaiting bool) {
	m.mu.Lock()
	entry, ok := m.pending[toolCallID]
	if ok {
		delete(m.pending, toolCallID)
	}
	m.mu.Unlock()
	if !ok {
		// Unknown id: no-op (§8 round-trip property).
		return nil, len(m.Pending()) > 0
	}

	errText := ""
	if toolErr != nil {
		errText = toolErr.Error()
	}
	m.recordResult(toolCallID, entry.toolName, entry.args, result, errText, emit)

	out, complete := m.drainIfComplete()
	return out, !complete
}

// Abort cancels the shared context for the in-flight batch (if any) and
// clears the pending map, used by Chat.Stop while awaiting input.
func (m *Mediator) Abort() {
	m.mu.Lock()
	cancel := m.cancel
	m.pending = make(map[string]pendingEntry)
	m.results = nil
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Mediator) recordResult(toolCallID, toolName string, args any, result any, errText string, emit func(chatevent.Event)) {
	m.mu.Lock()
	m.results = append(m.results, chatmodel.ToolResult{
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Result:     result,
		Err:        errText,
	})
	if errText == "" {
		if scope, found, err := IdempotencyScopeFromTags(m.specs[Ident(toolName)].Tags); err == nil && found && scope == IdempotencyScopeConversation {
			m.history[historyKey(toolName, args)] = chatmodel.ToolResult{ToolCallID: toolCallID, ToolName: toolName, Result: result}
		}
	}
	m.mu.Unlock()

	if errText != "" {
		emit(chatevent.NewToolOutputErrorEvent(toolCallID, errText))
		return
	}
	payload, _ := json.Marshal(result)
	emit(chatevent.NewToolOutputAvailableEvent(toolCallID, payload))
}

// drainIfComplete returns (results, true) and clears internal state if no
// calls remain pending, else (nil, false).
func (m *Mediator) drainIfComplete() ([]chatmodel.ToolResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) > 0 {
		return nil, false
	}
	out := m.results
	m.results = nil
	m.cancel = nil
	return out, true
}
