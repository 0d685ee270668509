package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

func NewDB(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	return db, db.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS edit_sessions (
	id               UUID PRIMARY KEY,
	content          TEXT        NOT NULL DEFAULT '',
	version          INTEGER     NOT NULL DEFAULT 0,
	is_closed        BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL,
	last_modified_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS session_participants (
	session_id     UUID        NOT NULL REFERENCES edit_sessions(id) ON DELETE CASCADE,
	participant_id UUID        NOT NULL,
	name           VARCHAR(100) NOT NULL,
	joined_at      TIMESTAMPTZ NOT NULL,
	last_active_at TIMESTAMPTZ NOT NULL,
	is_active      BOOLEAN     NOT NULL,
	PRIMARY KEY (session_id, participant_id)
);

CREATE TABLE IF NOT EXISTS session_operations (
	session_id UUID        NOT NULL REFERENCES edit_sessions(id) ON DELETE CASCADE,
	version    INTEGER     NOT NULL,
	op_type    TEXT        NOT NULL,
	position   INTEGER     NOT NULL,
	text       TEXT        NOT NULL DEFAULT '',
	length     INTEGER     NOT NULL,
	author_id  UUID        NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, version)
);

CREATE INDEX IF NOT EXISTS idx_edit_sessions_open ON edit_sessions (created_at) WHERE NOT is_closed;
`

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
