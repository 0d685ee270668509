package redisbus

import (
	"testing"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus"
	"github.com/stretchr/testify/assert"
)

func TestGlobPattern(t *testing.T) {
	b := New(nil, "")

	assert.Equal(t, "collab-editor-exchange:session.operations", b.globPattern(bus.RoutingOperations))
	assert.Equal(t, "collab-editor-exchange:session.participant.*", b.globPattern("session.participant.*"))
	assert.Equal(t, "collab-editor-exchange:session.*", b.globPattern("session.#"))
	assert.Equal(t, "collab-editor-exchange:session.participant.left", b.channel(bus.RoutingParticipantLeft))
}
