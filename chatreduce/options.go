package chatreduce

import (
	"context"
	"encoding/json"
	"time"

	"github.com/octavus-ai/chat-runtime-go/chatmodel"
	"github.com/octavus-ai/chat-runtime-go/clienttools"
	"github.com/octavus-ai/chat-runtime-go/telemetry"
	"github.com/octavus-ai/chat-runtime-go/transport"
	"github.com/octavus-ai/chat-runtime-go/upload"
)

// Options configures a Chat. Transport is the only required field; the
// ambient Logger/Metrics/Tracer default to no-op implementations when
// omitted (§6.5).
type Options struct {
	Transport transport.Transport

	// RequestUploadURLs enables automatic upload of raw message files
	// (§4.D). Required only when a Send call's SendInput carries
	// FilesToUpload.
	RequestUploadURLs func(ctx context.Context, files []upload.FileSpec) ([]upload.UploadTarget, error)
	UploadConcurrency int

	// TriggerTimeout bounds how long a single Send call, including any
	// client-tool continuation rounds it starts, may run before its context
	// is cancelled. Zero (the default) disables the timeout. Pair with
	// chatconfig.Config.TriggerTimeout.
	TriggerTimeout time.Duration

	ClientTools map[string]clienttools.Handler

	// ClientToolSpecs declares catalog metadata (idempotency scope,
	// artifacts mode) for entries in ClientTools (§4.G). Optional; a tool
	// with no entry here behaves exactly as if §4.G did not exist.
	ClientToolSpecs map[clienttools.Ident]clienttools.ToolSpec

	InitialMessages []chatmodel.UIMessage

	OnError          func(err error)
	OnFinish         func()
	OnStop           func()
	OnResourceUpdate func(name string, value json.RawMessage)

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}
