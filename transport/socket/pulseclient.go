package socket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"
)

// PulseClient is the subset of goa.design/pulse/streaming this transport
// needs to publish control frames and consume server-published events,
// abstracted so tests can substitute an in-memory double (mirrors the
// teacher's clientspulse.Client split between the real Redis-backed
// implementation and test doubles).
type PulseClient interface {
	Stream(name string, opts ...streamopts.Stream) (PulseStream, error)
}

// PulseStream publishes frames to, and opens consumer sinks on, one named
// Pulse stream.
type PulseStream interface {
	Add(ctx context.Context, event string, payload []byte) (string, error)
	NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (PulseSink, error)
}

// PulseSink is a consumer group reading from a Pulse stream.
type PulseSink interface {
	Subscribe() <-chan *streaming.Event
	Ack(ctx context.Context, event *streaming.Event) error
	Close(ctx context.Context) error
}

// RedisPulseClient is the production PulseClient: it opens
// goa.design/pulse/streaming streams directly against a caller-owned Redis
// connection, the same layering the teacher's Pulse sink/subscriber use
// (build a Redis client, hand it to a thin Stream-opening wrapper).
type RedisPulseClient struct {
	Redis *redis.Client

	// StreamMaxLen bounds entries kept per stream; zero uses Pulse defaults.
	StreamMaxLen int
	// OperationTimeout bounds individual Add calls; zero means no timeout.
	OperationTimeout time.Duration
}

var _ PulseClient = (*RedisPulseClient)(nil)

// Stream opens (creating if needed) the named Pulse stream.
func (c *RedisPulseClient) Stream(name string, opts ...streamopts.Stream) (PulseStream, error) {
	if name == "" {
		return nil, errors.New("socket: stream name is required")
	}
	var streamOptions []streamopts.Stream
	if c.StreamMaxLen > 0 {
		streamOptions = append(streamOptions, streamopts.WithStreamMaxLen(c.StreamMaxLen))
	}
	streamOptions = append(streamOptions, opts...)
	str, err := streaming.NewStream(name, c.Redis, streamOptions...)
	if err != nil {
		return nil, fmt.Errorf("socket: create pulse stream %q: %w", name, err)
	}
	return &pulseStreamHandle{stream: str, timeout: c.OperationTimeout}, nil
}

type pulseStreamHandle struct {
	stream  *streaming.Stream
	timeout time.Duration
}

func (h *pulseStreamHandle) Add(ctx context.Context, event string, payload []byte) (string, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	id, err := h.stream.Add(ctx, event, payload)
	if err != nil {
		return "", fmt.Errorf("socket: pulse add: %w", err)
	}
	return id, nil
}

func (h *pulseStreamHandle) NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (PulseSink, error) {
	sink, err := h.stream.NewSink(ctx, name, opts...)
	if err != nil {
		return nil, fmt.Errorf("socket: pulse new sink: %w", err)
	}
	return sink, nil
}
