package clienttools

import (
	"fmt"
	"strings"
)

// ArtifactsMode controls whether UI artifacts are produced for a tool call's
// result, adapted from the teacher's reserved `artifacts` payload field
// convention (§4.G).
type ArtifactsMode string

const (
	ArtifactsModeAuto ArtifactsMode = "auto"
	ArtifactsModeOn   ArtifactsMode = "on"
	ArtifactsModeOff  ArtifactsMode = "off"
)

// ParseArtifactsMode normalizes s to an ArtifactsMode, returning the zero
// value when s is not recognized.
func ParseArtifactsMode(s string) ArtifactsMode {
	switch strings.ToLower(s) {
	case string(ArtifactsModeAuto):
		return ArtifactsModeAuto
	case string(ArtifactsModeOn):
		return ArtifactsModeOn
	case string(ArtifactsModeOff):
		return ArtifactsModeOff
	default:
		return ""
	}
}

// Valid reports whether m is a recognized non-zero artifacts mode.
func (m ArtifactsMode) Valid() bool {
	switch m {
	case ArtifactsModeAuto, ArtifactsModeOn, ArtifactsModeOff:
		return true
	default:
		return false
	}
}

// IdempotencyScope declares the semantic scope in which a client tool call is
// considered idempotent, allowing a host to skip re-invoking an interactive
// handler for a call already answered in this conversation.
type IdempotencyScope string

// IdempotencyScopeConversation indicates a call is idempotent for the
// lifetime of the conversation: once answered, a repeated call with
// identical arguments may be satisfied from the cached result rather than
// prompting the user again.
const IdempotencyScopeConversation IdempotencyScope = "conversation"

// TagIdempotencyConversation is the ToolSpec.Tags value that declares
// IdempotencyScopeConversation.
const TagIdempotencyConversation = "chat.idempotency=conversation"

const idempotencyTagPrefix = "chat.idempotency="

// IdempotencyScopeFromTags returns the idempotency scope declared in tags,
// erroring if more than one idempotency tag is present or an unknown scope
// is named.
func IdempotencyScopeFromTags(tags []string) (IdempotencyScope, bool, error) {
	var (
		scope IdempotencyScope
		found bool
	)
	for _, tag := range tags {
		if !strings.HasPrefix(tag, idempotencyTagPrefix) {
			continue
		}
		if found {
			return "", false, fmt.Errorf("clienttools: multiple idempotency tags (first=%q, second=%q)", string(scope), tag)
		}
		raw := strings.TrimPrefix(tag, idempotencyTagPrefix)
		switch raw {
		case string(IdempotencyScopeConversation):
			scope = IdempotencyScopeConversation
			found = true
		default:
			return "", false, fmt.Errorf("clienttools: unknown idempotency scope %q", raw)
		}
	}
	return scope, found, nil
}

// FieldIssue describes a single validation issue found in a tool's arguments,
// for handlers that want to report structured validation failures instead of
// a flat error string.
type FieldIssue struct {
	Field      string
	Constraint string
	Allowed    []string
	Pattern    string
}

// ToolSpec declares the metadata a host registers for a client tool
// alongside its Handler: catalog information the UI and policy layers can
// use without inspecting the handler itself (§4.G).
type ToolSpec struct {
	// Name is the tool identifier as it appears on the wire.
	Name Ident

	// Description is shown to the user when a tool is awaiting input.
	Description string

	// Tags carries optional metadata labels, including idempotency tags.
	Tags []string

	// Artifacts controls whether the tool's result is rendered as a UI
	// artifact when the host supports artifact rendering.
	Artifacts ArtifactsMode
}
