package sse_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octavus-ai/chat-runtime-go/chatevent"
	"github.com/octavus-ai/chat-runtime-go/chatmodel"
	"github.com/octavus-ai/chat-runtime-go/transport"
	"github.com/octavus-ai/chat-runtime-go/transport/sse"
)

func getRequest(url string) sse.TriggerRequest {
	return func(ctx context.Context, triggerName string, input any, results []chatmodel.ToolResult) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	}
}

func TestTrigger_DecodesFramesInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"type":"text-start","id":"t1"}`,
			`{"type":"text-delta","id":"t1","delta":"Hi"}`,
			`{"type":"text-end","id":"t1"}`,
			`{"type":"finish","finishReason":"stop"}`,
		}
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	tr := sse.New(getRequest(srv.URL))
	ch, err := tr.Trigger(context.Background(), "chat", nil, transport.TriggerOptions{})
	require.NoError(t, err)

	var got []chatevent.Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 4)
	start, ok := got[0].(chatevent.TextStartEvent)
	require.True(t, ok)
	assert.Equal(t, "t1", start.ID)
	delta := got[1].(chatevent.TextDeltaEvent)
	assert.Equal(t, "Hi", delta.Delta)
	_ = got[2].(chatevent.TextEndEvent)
	finish := got[3].(chatevent.FinishEvent)
	assert.Equal(t, chatevent.FinishStop, finish.FinishReason)
}

func TestTrigger_DropsMalformedFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: not json at all\n\n")
		fmt.Fprint(w, `data: {"type":"bogus-event-type"}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"finish","finishReason":"stop"}`+"\n\n")
	}))
	defer srv.Close()

	tr := sse.New(getRequest(srv.URL))
	ch, err := tr.Trigger(context.Background(), "chat", nil, transport.TriggerOptions{})
	require.NoError(t, err)

	var got []chatevent.Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	_, ok := got[0].(chatevent.FinishEvent)
	assert.True(t, ok)
}

func TestTrigger_ForwardsClientToolResults(t *testing.T) {
	var received []chatmodel.ToolResult
	request := func(ctx context.Context, triggerName string, input any, results []chatmodel.ToolResult) (io.ReadCloser, error) {
		received = results
		return io.NopCloser(strings.NewReader("")), nil
	}

	tr := sse.New(request)
	ch, err := tr.Trigger(context.Background(), "chat", nil, transport.TriggerOptions{
		ClientToolResults: []chatmodel.ToolResult{
			{ToolCallID: "c1", ToolName: "search", Result: "ok"},
		},
	})
	require.NoError(t, err)
	for range ch {
	}

	require.Len(t, received, 1)
	assert.Equal(t, "c1", received[0].ToolCallID)
}

func TestStop_EndsInFlightRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `data: {"type":"tool-input-start","toolCallId":"c1","toolName":"search"}`+"\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tr := sse.New(getRequest(srv.URL))
	ch, err := tr.Trigger(context.Background(), "chat", nil, transport.TriggerOptions{})
	require.NoError(t, err)

	first, ok := <-ch
	require.True(t, ok)
	_, isToolStart := first.(chatevent.ToolInputStartEvent)
	assert.True(t, isToolStart)

	tr.Stop()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after Stop")
	}
}
