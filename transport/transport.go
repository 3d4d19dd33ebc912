// Package transport declares the Transport abstraction the chat reducer
// drives: a trigger/event-stream contract common to both the request/stream
// (SSE) and persistent-socket transports (§4.C).
package transport

import (
	"context"

	"github.com/octavus-ai/chat-runtime-go/chatevent"
	"github.com/octavus-ai/chat-runtime-go/chatmodel"
)

// TriggerOptions carries the per-call inputs a Trigger needs beyond the
// trigger name and input payload.
type TriggerOptions struct {
	// ClientToolResults, when non-empty, asks the transport to fold a
	// continuation round into the same call: the request/stream transport
	// forwards them to its host callback, and the socket transport publishes
	// them in a continue control frame instead of a trigger frame.
	ClientToolResults []chatmodel.ToolResult
}

// Transport is the common contract both transport implementations satisfy.
// Trigger's returned channel yields events in wire order until a finish or
// error event, then closes; it must honor ctx cancellation promptly.
type Transport interface {
	Trigger(ctx context.Context, triggerName string, input any, opts TriggerOptions) (<-chan chatevent.Event, error)

	// Stop cancels any in-progress trigger. Idempotent.
	Stop()
}

// ConnectionState is the lifecycle state of a socket transport's underlying
// connection.
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionError        ConnectionState = "error"
)

// SocketTransport extends Transport with explicit connection lifecycle and
// in-band continuation, backed by a persistent connection (§4.C).
type SocketTransport interface {
	Transport

	ConnectionState() ConnectionState
	// OnConnectionStateChange fires immediately with the current state, then
	// on every subsequent change, until the returned func is called.
	OnConnectionStateChange(listener func(ConnectionState)) (unsubscribe func())

	Connect(ctx context.Context) error
	Disconnect()

	SendClientToolResults(ctx context.Context, results []chatmodel.ToolResult) error
	ContinuationEvents() <-chan chatevent.Event
}
