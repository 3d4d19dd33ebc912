package clienttools_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/octavus-ai/chat-runtime-go/clienttools"
)

func TestParseArtifactsMode(t *testing.T) {
	assert.Equal(t, clienttools.ArtifactsModeOn, clienttools.ParseArtifactsMode("ON"))
	assert.Equal(t, clienttools.ArtifactsMode(""), clienttools.ParseArtifactsMode("bogus"))
	assert.True(t, clienttools.ArtifactsModeAuto.Valid())
	assert.False(t, clienttools.ArtifactsMode("bogus").Valid())
}

func TestIdempotencyScopeFromTags(t *testing.T) {
	scope, found, err := clienttools.IdempotencyScopeFromTags([]string{"chat.idempotency=conversation", "other=tag"})
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, clienttools.IdempotencyScopeConversation, scope)

	_, _, err = clienttools.IdempotencyScopeFromTags([]string{"chat.idempotency=bogus"})
	assert.Error(t, err)

	_, found, err = clienttools.IdempotencyScopeFromTags(nil)
	assert.NoError(t, err)
	assert.False(t, found)
}
