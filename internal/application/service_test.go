package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/lock"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/ot"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPublisher is a mock for the bus.Publisher interface
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, msg any) error {
	return m.Called(ctx, routingKey, msg).Error(0)
}

// recordingPublisher keeps every published message in order.
type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	msgs []any
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, msg any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	p.msgs = append(p.msgs, msg)
	return nil
}

func newTestService() (*Service, *memory.Repository, *recordingPublisher) {
	repo := memory.New()
	pub := &recordingPublisher{}
	writer := NewSessionWriter(repo, NewBusDispatcher(pub, repo))
	return New(repo, writer, lock.NewSessions(), ot.NewPositional()), repo, pub
}

func createWithMembers(t *testing.T, svc *Service, content string, names ...string) (domain.SessionID, []domain.ParticipantID) {
	t.Helper()
	ctx := context.Background()
	id, err := svc.CreateSession(ctx, CreateSessionCommand{InitialContent: content})
	require.NoError(t, err)

	var ids []domain.ParticipantID
	for _, n := range names {
		pid := domain.NewParticipantID()
		_, err := svc.JoinSession(ctx, JoinSessionCommand{SessionID: id, ParticipantID: pid, Name: n})
		require.NoError(t, err)
		ids = append(ids, pid)
	}
	return id, ids
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService()

	id, err := svc.CreateSession(ctx, CreateSessionCommand{InitialContent: "Hello"})
	require.NoError(t, err)

	dto, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Hello", dto.Content)
	assert.Equal(t, 0, dto.Version)
	assert.Empty(t, dto.Participants)
	assert.Empty(t, pub.keys, "creating a session raises no events")
}

func TestGetSession_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.GetSession(context.Background(), domain.NewSessionID())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestJoinSession(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService()
	id, members := createWithMembers(t, svc, "abc", "Alice")

	t.Run("Publishes joined with full snapshot", func(t *testing.T) {
		require.Len(t, pub.keys, 1)
		assert.Equal(t, bus.RoutingParticipantJoined, pub.keys[0])
		msg := pub.msgs[0].(ParticipantJoinedMessage)
		assert.Equal(t, id.String(), msg.SessionID)
		assert.Equal(t, members[0].String(), msg.ParticipantID)
		assert.Equal(t, "Alice", msg.ParticipantName)
		assert.Equal(t, "abc", msg.Session.Content)
		require.Len(t, msg.Session.Participants, 1)
	})

	t.Run("Duplicate join", func(t *testing.T) {
		_, err := svc.JoinSession(ctx, JoinSessionCommand{SessionID: id, ParticipantID: members[0], Name: "Alice"})
		assert.ErrorIs(t, err, domain.ErrParticipantAlreadyJoined)
		assert.Len(t, pub.keys, 1)
	})

	t.Run("Unknown session", func(t *testing.T) {
		_, err := svc.JoinSession(ctx, JoinSessionCommand{SessionID: domain.NewSessionID(), ParticipantID: domain.NewParticipantID(), Name: "Bob"})
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Invalid name", func(t *testing.T) {
		_, err := svc.JoinSession(ctx, JoinSessionCommand{SessionID: id, ParticipantID: domain.NewParticipantID(), Name: "  "})
		assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
	})
}

func TestLeaveSession_LastLeaveCloses(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService()
	id, members := createWithMembers(t, svc, "", "Alice", "Bob")

	require.NoError(t, svc.LeaveSession(ctx, LeaveSessionCommand{SessionID: id, ParticipantID: members[0]}))
	dto, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.False(t, dto.IsClosed)

	require.NoError(t, svc.LeaveSession(ctx, LeaveSessionCommand{SessionID: id, ParticipantID: members[1]}))
	dto, err = svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.True(t, dto.IsClosed)

	last := pub.msgs[len(pub.msgs)-1].(ParticipantLeftMessage)
	assert.Equal(t, 0, last.RemainingParticipants)

	_, err = svc.ApplyOperation(ctx, ApplyOperationCommand{
		SessionID: id, Type: "insert", Position: 0, Text: "x", Version: 0, AuthorID: members[0],
	})
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestLeaveSession_NonMemberIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService()
	id, _ := createWithMembers(t, svc, "", "Alice")
	published := len(pub.keys)

	require.NoError(t, svc.LeaveSession(ctx, LeaveSessionCommand{SessionID: id, ParticipantID: domain.NewParticipantID()}))
	assert.Len(t, pub.keys, published)
}

func TestApplyOperation(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService()
	id, members := createWithMembers(t, svc, "Hello", "Alice", "Bob")

	res, err := svc.ApplyOperation(ctx, ApplyOperationCommand{
		SessionID: id, Type: "insert", Position: 5, Text: " World", Version: 0, AuthorID: members[0],
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello World", res.Content.Text())
	assert.Equal(t, 1, res.Version)

	msg := pub.msgs[len(pub.msgs)-1].(OperationMessage)
	assert.Equal(t, bus.RoutingOperations, pub.keys[len(pub.keys)-1])
	assert.Equal(t, "Hello World", msg.ResultingContent)
	assert.Equal(t, 1, msg.NewVersion)
	require.NotNil(t, msg.Operation.Text)
	assert.Equal(t, " World", *msg.Operation.Text)
	assert.Nil(t, msg.Operation.Length)

	t.Run("Concurrent delete is transformed", func(t *testing.T) {
		res, err := svc.ApplyOperation(ctx, ApplyOperationCommand{
			SessionID: id, Type: "delete", Position: 0, Length: 5, Version: 0, AuthorID: members[1],
		})
		require.NoError(t, err)
		assert.Equal(t, " World", res.Content.Text())
		assert.Equal(t, 2, res.Version)
	})

	t.Run("Non member", func(t *testing.T) {
		_, err := svc.ApplyOperation(ctx, ApplyOperationCommand{
			SessionID: id, Type: "insert", Position: 0, Text: "x", Version: 2, AuthorID: domain.NewParticipantID(),
		})
		assert.ErrorIs(t, err, domain.ErrParticipantNotInSession)
	})

	t.Run("Unknown type", func(t *testing.T) {
		_, err := svc.ApplyOperation(ctx, ApplyOperationCommand{
			SessionID: id, Type: "replace", Position: 0, Version: 2, AuthorID: members[0],
		})
		assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	})

	t.Run("Out of range", func(t *testing.T) {
		_, err := svc.ApplyOperation(ctx, ApplyOperationCommand{
			SessionID: id, Type: "delete", Position: 100, Length: 1, Version: 2, AuthorID: members[0],
		})
		assert.Equal(t, domain.CodeInvalidOperation, domain.CodeOf(err))

		dto, err := svc.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 2, dto.Version)
	})
}

func TestApplyOperation_ConcurrentWritersSerialize(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	id, members := createWithMembers(t, svc, "", "Alice", "Bob")

	const perAuthor = 20
	var wg sync.WaitGroup
	for _, author := range members {
		wg.Add(1)
		go func(author domain.ParticipantID) {
			defer wg.Done()
			for i := 0; i < perAuthor; i++ {
				_, err := svc.ApplyOperation(ctx, ApplyOperationCommand{
					SessionID: id, Type: "insert", Position: 0, Text: "x", Version: 0, AuthorID: author,
				})
				assert.NoError(t, err)
			}
		}(author)
	}
	wg.Wait()

	dto, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2*perAuthor, dto.Version)
	assert.Len(t, dto.Content, 2*perAuthor)
}

func TestCloseAndReopen(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	id, members := createWithMembers(t, svc, "", "Alice")

	require.NoError(t, svc.CloseSession(ctx, id))
	active, err := svc.ListActiveSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, svc.ReopenSession(ctx, id))
	active, err = svc.ListActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.False(t, active[0].Participants[0].IsActive, "reopen keeps participants inactive")

	require.NoError(t, svc.TouchParticipant(ctx, TouchParticipantCommand{SessionID: id, ParticipantID: members[0]}))
	dto, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.True(t, dto.Participants[0].IsActive)

	err = svc.TouchParticipant(ctx, TouchParticipantCommand{SessionID: id, ParticipantID: domain.NewParticipantID()})
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
}

func TestDispatchFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, bus.RoutingParticipantJoined, mock.Anything).
		Return(errors.New("broker down")).Once()

	svc := New(repo, NewSessionWriter(repo, NewBusDispatcher(pub, repo)), lock.NewSessions(), ot.NewPositional())
	id, err := svc.CreateSession(ctx, CreateSessionCommand{})
	require.NoError(t, err)

	_, err = svc.JoinSession(ctx, JoinSessionCommand{SessionID: id, ParticipantID: domain.NewParticipantID(), Name: "Alice"})
	require.NoError(t, err)

	dto, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Len(t, dto.Participants, 1)
	pub.AssertExpectations(t)
}
