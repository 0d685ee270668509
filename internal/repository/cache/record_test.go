package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/ot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_PreservesAggregate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	content, err := domain.ContentFrom("Hello")
	require.NoError(t, err)
	s, err := domain.NewEditSession(domain.NewSessionID(), content, domain.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	alice := domain.NewParticipantID()
	require.NoError(t, s.AddParticipant(alice, "Alice"))

	ins, err := domain.NewInsert(5, " world", 0, alice)
	require.NoError(t, err)
	_, err = s.ApplyOperation(ins, ot.NewPositional())
	require.NoError(t, err)
	del, err := domain.NewDelete(0, 1, 1, alice)
	require.NoError(t, err)
	_, err = s.ApplyOperation(del, ot.NewPositional())
	require.NoError(t, err)

	b, err := json.Marshal(fromSession(s))
	require.NoError(t, err)
	var rec record
	require.NoError(t, json.Unmarshal(b, &rec))
	got, err := rec.toSession()
	require.NoError(t, err)

	assert.Equal(t, s.ID(), got.ID())
	assert.Equal(t, "ello world", got.Content().Text())
	assert.Equal(t, 2, got.Version())
	assert.False(t, got.IsClosed())
	assert.True(t, got.CreatedAt().Equal(s.CreatedAt()))
	assert.Empty(t, got.DomainEvents())

	p, ok := got.Participant(alice)
	require.True(t, ok)
	assert.Equal(t, "Alice", p.Name)

	require.Len(t, got.History(), 2)
	for i, op := range s.History() {
		assert.Equal(t, op.String(), got.History()[i].String())
		assert.Equal(t, op.AuthorID(), got.History()[i].AuthorID())
	}
}

func TestRecord_RejectsCorruptHistory(t *testing.T) {
	rec := record{
		ID:      domain.NewSessionID().UUID(),
		Content: "abc",
		History: []operationRecord{{Type: "upsert", AuthorID: domain.NewParticipantID().UUID()}},
	}
	_, err := rec.toSession()
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}
