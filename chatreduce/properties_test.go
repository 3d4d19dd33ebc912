package chatreduce_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/octavus-ai/chat-runtime-go/chatevent"
	"github.com/octavus-ai/chat-runtime-go/chatmodel"
	"github.com/octavus-ai/chat-runtime-go/chatreduce"
)

// TestProperty_ToolCallsAlwaysEndTerminal is §8 invariant 3: whatever mix of
// tool calls are left pending, running, or resolved when finish arrives, no
// ToolCallPart survives in {pending, running}. The Stop()-mid-stream half of
// the invariant is covered deterministically by TestStop_MidStream.
func TestProperty_ToolCallsAlwaysEndTerminal(t *testing.T) {
	params := gopter.DefaultTestParameters()
	props := gopter.NewProperties(params)

	// Each element is how far a given tool call advances before finish
	// arrives: 0 = left at tool-input-start, 1 = tool-input-available only,
	// 2 = resolved with output, 3 = resolved with an error.
	stagesGen := gen.SliceOfN(5, gen.IntRange(0, 3))

	props.Property("every tool call ends terminal after finish", prop.ForAll(
		func(stages []int) bool {
			var events []chatevent.Event
			for i, stage := range stages {
				id := fmt.Sprintf("c%d", i)
				events = append(events, chatevent.ToolInputStartEvent{ToolCallID: id, ToolName: "search"})
				if stage == 0 {
					continue
				}
				events = append(events, chatevent.ToolInputAvailableEvent{ToolCallID: id, ToolName: "search", Input: []byte(`{}`)})
				switch stage {
				case 2:
					events = append(events, chatevent.NewToolOutputAvailableEvent(id, []byte(`{"ok":true}`)))
				case 3:
					events = append(events, chatevent.NewToolOutputErrorEvent(id, "boom"))
				}
			}
			events = append(events, chatevent.NewFinishEvent(chatevent.FinishStop))

			tr := newScriptedTransport(events)
			c, err := chatreduce.New(chatreduce.Options{Transport: tr})
			require.NoError(t, err)

			if sendErr := c.Send(context.Background(), "chat", chatreduce.SendInput{Content: "go"}, chatreduce.SendOptions{}); sendErr != nil {
				return false
			}

			msgs := c.Messages()
			if len(msgs) < 2 {
				return len(stages) == 0
			}
			for _, p := range msgs[1].Parts {
				tc, ok := p.(chatmodel.ToolCallPart)
				if !ok {
					continue
				}
				if tc.Status == chatmodel.PartStatusPending || tc.Status == chatmodel.PartStatusRunning {
					return false
				}
			}
			return true
		},
		stagesGen,
	))

	props.TestingRun(t)
}

// TestProperty_StopTwiceIsIdempotent covers the round-trip property that
// calling Stop() a second time has no further effect.
func TestProperty_StopTwiceIsIdempotent(t *testing.T) {
	tr := &blockingTransport{
		first:   chatevent.ToolInputStartEvent{ToolCallID: "c1", ToolName: "search"},
		release: make(chan struct{}),
	}
	c, err := chatreduce.New(chatreduce.Options{Transport: tr})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = c.Send(context.Background(), "chat", chatreduce.SendInput{Content: "go"}, chatreduce.SendOptions{})
		close(done)
	}()

	// Give the goroutine a chance to observe the first event before Stop.
	waitUntilHasMessages(t, c, 2)
	c.Stop()
	<-done

	before := c.Messages()
	beforeStatus := c.Status()

	c.Stop()

	require.Equal(t, beforeStatus, c.Status())
	require.Equal(t, before, c.Messages())
}

func waitUntilHasMessages(t *testing.T, c *chatreduce.Chat, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(c.Messages()) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for message count")
}
