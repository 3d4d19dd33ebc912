package partialjson_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octavus-ai/chat-runtime-go/partialjson"
)

func TestParse_CompleteValue(t *testing.T) {
	v, ok := partialjson.Parse(`{"msg":"hi"}`)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"msg": "hi"}, v)
}

func TestParse_OpenObject(t *testing.T) {
	v, ok := partialjson.Parse(`{"msg":"hi"`)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"msg": "hi"}, v)
}

func TestParse_OpenString(t *testing.T) {
	v, ok := partialjson.Parse(`{"msg":"h`)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"msg": "h"}, v)
}

func TestParse_OpenArray(t *testing.T) {
	v, ok := partialjson.Parse(`{"items":["a","b"`)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"items": []any{"a", "b"}}, v)
}

func TestParse_EscapedQuoteInsideString(t *testing.T) {
	v, ok := partialjson.Parse(`{"msg":"say \"hi`)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"msg": `say "hi`}, v)
}

func TestParse_Unrepairable(t *testing.T) {
	_, ok := partialjson.Parse(``)
	assert.False(t, ok)

	_, ok = partialjson.Parse(`nul`)
	assert.False(t, ok)
}

func TestParse_S2Scenario(t *testing.T) {
	v, ok := partialjson.Parse(`{"msg":"hi"`)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"msg": "hi"}, v)

	full, ok := partialjson.Parse(`{"msg":"hi"}`)
	require.True(t, ok)
	assert.Equal(t, v, full)
}
