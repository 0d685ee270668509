package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/google/uuid"
)

type Repository struct {
	DB *sql.DB
	Tx Transactor
}

func New(db *sql.DB) *Repository {
	return &Repository{DB: db, Tx: &TxManager{DB: db}}
}

type queryable interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *Repository) getter(tx *sql.Tx) queryable {
	if tx != nil {
		return tx
	}
	return r.DB
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

func (r *Repository) GetByID(ctx context.Context, id domain.SessionID) (*domain.EditSession, error) {
	s, err := r.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repository) Add(ctx context.Context, s *domain.EditSession) error {
	snap := s.Snapshot()
	err := r.Tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO edit_sessions (id, content, version, is_closed, created_at, last_modified_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, snap.ID.UUID(), snap.Content.Text(), snap.Version, snap.IsClosed, snap.CreatedAt, snap.LastModifiedAt)
		if err != nil {
			if pqCode(err) == uniqueViolation {
				return fmt.Errorf("session %s: %w", snap.ID, domain.ErrSessionAlreadyExists)
			}
			return err
		}
		if err := r.replaceParticipants(ctx, tx, snap); err != nil {
			return err
		}
		return r.appendOperations(ctx, tx, snap)
	})
	return wrap(err, "failed to add session")
}

func (r *Repository) Update(ctx context.Context, s *domain.EditSession) error {
	snap := s.Snapshot()
	err := r.Tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE edit_sessions
			SET content = $2, version = $3, is_closed = $4, last_modified_at = $5
			WHERE id = $1
		`, snap.ID.UUID(), snap.Content.Text(), snap.Version, snap.IsClosed, snap.LastModifiedAt)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("session %s: %w", snap.ID, domain.ErrSessionNotFound)
		}
		if err := r.replaceParticipants(ctx, tx, snap); err != nil {
			return err
		}
		return r.appendOperations(ctx, tx, snap)
	})
	return wrap(err, "failed to update session")
}

func (r *Repository) Delete(ctx context.Context, id domain.SessionID) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM edit_sessions WHERE id = $1`, id.UUID())
	return wrap(err, "failed to delete session")
}

func (r *Repository) Exists(ctx context.Context, id domain.SessionID) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM edit_sessions WHERE id = $1)
	`, id.UUID()).Scan(&exists)
	return exists, wrap(err, "failed to check session")
}

func (r *Repository) GetActiveSessions(ctx context.Context) ([]*domain.EditSession, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id FROM edit_sessions
		WHERE NOT is_closed
		ORDER BY created_at
	`)
	if err != nil {
		return nil, wrap(err, "failed to list sessions")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, wrap(err, "failed to scan session id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "failed to list sessions")
	}

	out := make([]*domain.EditSession, 0, len(ids))
	for _, raw := range ids {
		id, err := domain.SessionIDFrom(raw)
		if err != nil {
			return nil, err
		}
		s, err := r.load(ctx, nil, id)
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Repository) load(ctx context.Context, tx *sql.Tx, id domain.SessionID) (*domain.EditSession, error) {
	q := r.getter(tx)

	var (
		text string
		snap = domain.Snapshot{ID: id}
	)
	err := q.QueryRowContext(ctx, `
		SELECT content, version, is_closed, created_at, last_modified_at
		FROM edit_sessions
		WHERE id = $1
	`, id.UUID()).Scan(&text, &snap.Version, &snap.IsClosed, &snap.CreatedAt, &snap.LastModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	if err != nil {
		return nil, wrap(err, "failed to load session")
	}

	if snap.Content, err = domain.ContentFrom(text); err != nil {
		return nil, err
	}
	if snap.Participants, err = r.loadParticipants(ctx, q, id); err != nil {
		return nil, err
	}
	if snap.History, err = r.loadOperations(ctx, q, id); err != nil {
		return nil, err
	}
	return domain.Restore(snap)
}

func (r *Repository) loadParticipants(ctx context.Context, q queryable, id domain.SessionID) ([]domain.Participant, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT participant_id, name, joined_at, last_active_at, is_active
		FROM session_participants
		WHERE session_id = $1
		ORDER BY joined_at, participant_id
	`, id.UUID())
	if err != nil {
		return nil, wrap(err, "failed to load participants")
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var (
			raw uuid.UUID
			p   domain.Participant
		)
		if err := rows.Scan(&raw, &p.Name, &p.JoinedAt, &p.LastActiveAt, &p.IsActive); err != nil {
			return nil, wrap(err, "failed to scan participant")
		}
		if p.ID, err = domain.ParticipantIDFrom(raw); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, wrap(rows.Err(), "failed to load participants")
}

func (r *Repository) loadOperations(ctx context.Context, q queryable, id domain.SessionID) ([]domain.TextOperation, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT version, op_type, position, text, length, author_id, applied_at
		FROM session_operations
		WHERE session_id = $1
		ORDER BY version
	`, id.UUID())
	if err != nil {
		return nil, wrap(err, "failed to load operations")
	}
	defer rows.Close()

	var out []domain.TextOperation
	for rows.Next() {
		var (
			version, position, length int
			typ, text                 string
			author                    uuid.UUID
			appliedAt                 time.Time
		)
		if err := rows.Scan(&version, &typ, &position, &text, &length, &author, &appliedAt); err != nil {
			return nil, wrap(err, "failed to scan operation")
		}
		authorID, err := domain.ParticipantIDFrom(author)
		if err != nil {
			return nil, err
		}
		op, err := domain.RestoreOperation(domain.OperationType(typ), position, text, length, version, authorID, appliedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, wrap(rows.Err(), "failed to load operations")
}

func (r *Repository) replaceParticipants(ctx context.Context, tx *sql.Tx, snap domain.Snapshot) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_participants WHERE session_id = $1`, snap.ID.UUID()); err != nil {
		return err
	}
	for _, p := range snap.Participants {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_participants (session_id, participant_id, name, joined_at, last_active_at, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, snap.ID.UUID(), p.ID.UUID(), p.Name, p.JoinedAt, p.LastActiveAt, p.IsActive)
		if err != nil {
			return err
		}
	}
	return nil
}

// appendOperations relies on history being append-only: rows already stored
// are skipped by the primary key.
func (r *Repository) appendOperations(ctx context.Context, tx *sql.Tx, snap domain.Snapshot) error {
	var stored int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM session_operations WHERE session_id = $1
	`, snap.ID.UUID()).Scan(&stored); err != nil {
		return err
	}
	for _, op := range snap.History[min(stored, len(snap.History)):] {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_operations (session_id, version, op_type, position, text, length, author_id, applied_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (session_id, version) DO NOTHING
		`, snap.ID.UUID(), op.Version(), string(op.Type()), op.Position(), op.Text(), op.Length(), op.AuthorID().UUID(), op.Timestamp())
		if err != nil {
			return err
		}
	}
	return nil
}

// wrap tags infrastructure failures as repository errors and leaves domain
// errors untouched.
func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", msg, domain.ErrRepository, err)
}
