// Command chatdemo is a minimal terminal host for a Chat: it reads lines
// from stdin, sends each as a user message over the SSE transport, and
// prints the assistant's text as it streams in.
//
// # Configuration
//
// Environment variables:
//
//	CHATDEMO_ENDPOINT  - trigger endpoint URL (default: "http://localhost:8080/chat")
//	CHATDEMO_CONFIG    - optional YAML file overlaying chatconfig defaults
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	cluelog "goa.design/clue/log"

	"github.com/octavus-ai/chat-runtime-go/chatconfig"
	"github.com/octavus-ai/chat-runtime-go/chatmodel"
	"github.com/octavus-ai/chat-runtime-go/chatreduce"
	"github.com/octavus-ai/chat-runtime-go/telemetry"
	"github.com/octavus-ai/chat-runtime-go/transport/sse"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// configOverlay is the subset of chatconfig.Config a host may want to tune
// from a file rather than code; the values it loads are applied as
// functional options on top of New's defaults.
type configOverlay struct {
	SocketQueueCapacity int           `yaml:"socketQueueCapacity"`
	UploadConcurrency   int           `yaml:"uploadConcurrency"`
	TriggerTimeout      time.Duration `yaml:"triggerTimeout"`
}

func loadConfig(path string) (*chatconfig.Config, error) {
	if path == "" {
		return chatconfig.New(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var overlay configOverlay
	if err := yaml.NewDecoder(f).Decode(&overlay); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	var opts []chatconfig.Option
	if overlay.SocketQueueCapacity > 0 {
		opts = append(opts, chatconfig.WithSocketQueueCapacity(overlay.SocketQueueCapacity))
	}
	if overlay.UploadConcurrency > 0 {
		opts = append(opts, chatconfig.WithUploadConcurrency(overlay.UploadConcurrency))
	}
	if overlay.TriggerTimeout > 0 {
		opts = append(opts, chatconfig.WithTriggerTimeout(overlay.TriggerTimeout))
	}
	return chatconfig.New(opts...), nil
}

func run() error {
	cfg, err := loadConfig(os.Getenv("CHATDEMO_CONFIG"))
	if err != nil {
		return err
	}

	logCtx := cluelog.Context(context.Background(), cluelog.WithFormat(cluelog.FormatTerminal))
	if envOr("CHATDEMO_DEBUG", "") != "" {
		logCtx = cluelog.Context(logCtx, cluelog.WithDebug())
	}
	chatLogger := telemetry.NewClueLogger()

	endpoint := envOr("CHATDEMO_ENDPOINT", "http://localhost:8080/chat")
	httpClient := &http.Client{Timeout: cfg.TriggerTimeout}

	request := func(ctx context.Context, triggerName string, input any, clientToolResults []chatmodel.ToolResult) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("X-Trigger-Name", triggerName)
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", triggerName, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("%s: unexpected status %s", triggerName, resp.Status)
		}
		return resp.Body, nil
	}

	transport := sse.New(request)
	transport.Logger = chatLogger

	chat, err := chatreduce.New(chatreduce.Options{
		Transport:         transport,
		UploadConcurrency: cfg.UploadConcurrency,
		TriggerTimeout:    cfg.TriggerTimeout,
		OnError:           func(err error) { fmt.Fprintln(os.Stderr, "error:", err) },
		OnFinish:          func() { fmt.Println() },
		Logger:            chatLogger,
		Metrics:           telemetry.NewClueMetrics(),
		Tracer:            telemetry.NewClueTracer(),
	})
	if err != nil {
		return fmt.Errorf("build chat: %w", err)
	}

	printed := make(map[int]int) // message index -> bytes of its text already printed
	unsub := chat.Subscribe(func() { printDelta(chat, printed) })
	defer unsub()

	fmt.Println("chatdemo: type a message and press enter; Ctrl-D to quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := chat.Send(logCtx, "chat", chatreduce.SendInput{Content: line}, chatreduce.SendOptions{}); err != nil {
			fmt.Fprintln(os.Stderr, "send:", err)
		}
	}
	return scanner.Err()
}

// printDelta prints any newly-streamed text in the most recent assistant
// message. printed tracks how much of each message's concatenated text has
// already been written to stdout.
func printDelta(chat *chatreduce.Chat, printed map[int]int) {
	messages := chat.Messages()
	if len(messages) == 0 {
		return
	}
	idx := len(messages) - 1
	msg := messages[idx]
	if msg.Role != chatmodel.RoleAssistant {
		return
	}
	var text string
	for _, part := range msg.Parts {
		if tp, ok := part.(chatmodel.TextPart); ok {
			text += tp.Text
		}
	}
	if already := printed[idx]; already < len(text) {
		fmt.Print(text[already:])
		printed[idx] = len(text)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
