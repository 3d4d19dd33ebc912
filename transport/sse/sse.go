// Package sse implements the request/stream flavor of transport.Transport
// (§4.C): no persistent connection, one host-issued request per trigger (and
// one more per continuation), with the response body read as a
// line-delimited Server-Sent-Events stream.
package sse

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/octavus-ai/chat-runtime-go/chatevent"
	"github.com/octavus-ai/chat-runtime-go/chatmodel"
	"github.com/octavus-ai/chat-runtime-go/telemetry"
	"github.com/octavus-ai/chat-runtime-go/transport"
)

// TriggerRequest issues the host request backing one Trigger call (or, when
// clientToolResults is non-empty, a continuation round) and returns the
// response body to parse as an SSE stream. The transport closes the
// returned ReadCloser once the stream ends.
type TriggerRequest func(ctx context.Context, triggerName string, input any, clientToolResults []chatmodel.ToolResult) (io.ReadCloser, error)

// Transport is the request/stream transport. It holds no connection state
// between calls; each Trigger issues a fresh request through the host
// callback.
type Transport struct {
	request TriggerRequest

	// Logger records dropped/malformed frames (§1A). Defaults to a no-op
	// logger when left unset.
	Logger telemetry.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New constructs a request/stream Transport. request is required and is
// invoked once per Trigger call.
func New(request TriggerRequest) *Transport {
	return &Transport{request: request}
}

func (t *Transport) logger() telemetry.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return telemetry.NewNoopLogger()
}

var _ transport.Transport = (*Transport)(nil)

// doneSentinel is the frame that marks a clean end of stream; it carries no
// event and is dropped rather than parsed (§6.1).
const doneSentinel = "[DONE]"

// Trigger issues one request via the host callback and decodes its response
// body as an SSE stream, delivering one chatevent.Event per well-formed
// frame until the body is exhausted or ctx is cancelled.
func (t *Transport) Trigger(ctx context.Context, triggerName string, input any, opts transport.TriggerOptions) (<-chan chatevent.Event, error) {
	ctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	body, err := t.request(ctx, triggerName, input, opts.ClientToolResults)
	if err != nil {
		cancel()
		return nil, err
	}

	ch := make(chan chatevent.Event)
	go func() {
		defer cancel()
		defer body.Close()
		defer close(ch)
		readFrames(ctx, body, ch, t.logger())
	}()
	return ch, nil
}

// Stop cancels the in-progress request, if any. Idempotent; a Stop with no
// request in flight is a no-op.
func (t *Transport) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// readFrames accumulates "data: "-prefixed lines into frames delimited by a
// blank line, decodes each frame as a chatevent and sends it on ch, and
// drops malformed frames and the [DONE] sentinel silently (§4.A, §6.1).
// Read errors, including context cancellation, end the scan without
// surfacing anything further — the caller has no error path once Trigger
// has returned its channel.
func readFrames(ctx context.Context, body io.Reader, ch chan<- chatevent.Event, log telemetry.Logger) {
	reader := bufio.NewReader(body)
	var data strings.Builder

	flush := func() bool {
		if data.Len() == 0 {
			return true
		}
		raw := data.String()
		data.Reset()
		if raw == doneSentinel {
			return false
		}
		ev, ok := chatevent.Parse([]byte(raw))
		if !ok {
			log.Debug(ctx, "sse: dropped malformed frame", "bytes", len(raw))
			return true
		}
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if !flush() {
				return
			}
		case strings.HasPrefix(line, ":"):
			// comment or heartbeat, ignored
		case strings.HasPrefix(line, "data:"):
			chunk := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(chunk)
		default:
			// other SSE fields (event:, id:, retry:) carry no information
			// this protocol needs; every frame's discriminant lives in its
			// JSON "type" field.
		}

		if err != nil {
			flush()
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}
