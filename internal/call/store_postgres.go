package call

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"callbridge/pkg/utils"
)

// PostgresStore is the durable Store implementation. Active calls are
// mirrored in active_calls (idempotent upsert keyed by call_id, so replayed
// writes after a crash are harmless) and terminal snapshots land in the
// append-only call_history table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they do not exist. The bot owns its schema;
// there is no separate migration tooling at this scale.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS active_calls (
	call_id             TEXT PRIMARY KEY,
	caller_id           BIGINT NOT NULL,
	receiver_id         BIGINT NOT NULL,
	caller_address      TEXT NOT NULL,
	receiver_address    TEXT NOT NULL,
	status              TEXT NOT NULL,
	started_at          TIMESTAMPTZ NOT NULL,
	answered_at         TIMESTAMPTZ,
	caller_chat_id      BIGINT NOT NULL DEFAULT 0,
	caller_message_id   INT NOT NULL DEFAULT 0,
	receiver_chat_id    BIGINT NOT NULL DEFAULT 0,
	receiver_message_id INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS call_history (
	id               TEXT PRIMARY KEY,
	call_id          TEXT NOT NULL,
	caller_id        BIGINT NOT NULL,
	receiver_id      BIGINT NOT NULL,
	caller_address   TEXT NOT NULL,
	receiver_address TEXT NOT NULL,
	status           TEXT NOT NULL,
	started_at       TIMESTAMPTZ NOT NULL,
	answered_at      TIMESTAMPTZ,
	ended_at         TIMESTAMPTZ,
	duration_seconds INT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS call_history_caller_idx ON call_history (caller_id, started_at DESC);
CREATE INDEX IF NOT EXISTS call_history_receiver_idx ON call_history (receiver_id, started_at DESC);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *PostgresStore) UpsertActiveCall(ctx context.Context, c Call) error {
	const q = `
INSERT INTO active_calls (
	call_id, caller_id, receiver_id, caller_address, receiver_address,
	status, started_at, answered_at,
	caller_chat_id, caller_message_id, receiver_chat_id, receiver_message_id
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (call_id) DO UPDATE SET
	status = EXCLUDED.status,
	answered_at = EXCLUDED.answered_at,
	caller_chat_id = EXCLUDED.caller_chat_id,
	caller_message_id = EXCLUDED.caller_message_id,
	receiver_chat_id = EXCLUDED.receiver_chat_id,
	receiver_message_id = EXCLUDED.receiver_message_id`
	_, err := s.db.ExecContext(ctx, q,
		c.ID, c.CallerID, c.ReceiverID, c.CallerAddress, c.ReceiverAddress,
		string(c.Status), c.StartedAt.UTC(), nullTime(c.AnsweredAt),
		c.CallerHandle.ChatID, c.CallerHandle.MessageID,
		c.ReceiverHandle.ChatID, c.ReceiverHandle.MessageID,
	)
	if err != nil {
		return fmt.Errorf("upsert active call %s: %w", c.ID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteActiveCall(ctx context.Context, callID string) error {
	if err := deleteActiveCall(ctx, s.db, callID); err != nil {
		return fmt.Errorf("delete active call %s: %w", callID, err)
	}
	return nil
}

// RetireCall drops the active mirror and appends the history record in one
// transaction, so a crash between the two statements cannot leave a call
// persisted as both active and historical.
func (s *PostgresStore) RetireCall(ctx context.Context, callID string, rec HistoryRecord) error {
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := deleteActiveCall(ctx, tx, callID); err != nil {
			return err
		}
		return insertHistory(ctx, tx, rec)
	})
	if err != nil {
		return fmt.Errorf("retire call %s: %w", callID, err)
	}
	return nil
}

func (s *PostgresStore) ListActiveCalls(ctx context.Context, statuses ...Status) ([]Call, error) {
	q := `
SELECT call_id, caller_id, receiver_id, caller_address, receiver_address,
       status, started_at, answered_at,
       caller_chat_id, caller_message_id, receiver_chat_id, receiver_message_id
FROM active_calls`
	var args []any
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, string(st))
		}
		q += " WHERE status IN (" + strings.Join(placeholders, ",") + ")"
	}
	q += " ORDER BY started_at"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list active calls: %w", err)
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		var c Call
		var status string
		var answeredAt sql.NullTime
		if err := rows.Scan(
			&c.ID, &c.CallerID, &c.ReceiverID, &c.CallerAddress, &c.ReceiverAddress,
			&status, &c.StartedAt, &answeredAt,
			&c.CallerHandle.ChatID, &c.CallerHandle.MessageID,
			&c.ReceiverHandle.ChatID, &c.ReceiverHandle.MessageID,
		); err != nil {
			return nil, fmt.Errorf("scan active call: %w", err)
		}
		c.Status = Status(status)
		if answeredAt.Valid {
			t := answeredAt.Time
			c.AnsweredAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendHistory(ctx context.Context, rec HistoryRecord) error {
	if err := insertHistory(ctx, s.db, rec); err != nil {
		return fmt.Errorf("append history for call %s: %w", rec.CallID, err)
	}
	return nil
}

// execer abstracts *sql.DB and *sql.Tx so the single-statement paths and the
// transactional retire path share the same statements.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func deleteActiveCall(ctx context.Context, ex execer, callID string) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM active_calls WHERE call_id = $1`, callID)
	return err
}

func insertHistory(ctx context.Context, ex execer, rec HistoryRecord) error {
	const q = `
INSERT INTO call_history (
	id, call_id, caller_id, receiver_id, caller_address, receiver_address,
	status, started_at, answered_at, ended_at, duration_seconds, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := ex.ExecContext(ctx, q,
		rec.ID, rec.CallID, rec.CallerID, rec.ReceiverID,
		rec.CallerAddress, rec.ReceiverAddress, string(rec.Status),
		rec.StartedAt.UTC(), nullTime(rec.AnsweredAt), nullTime(rec.EndedAt),
		rec.DurationSeconds, rec.CreatedAt.UTC(),
	)
	return err
}

func (s *PostgresStore) ListHistory(ctx context.Context, participantID int64, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
SELECT id, call_id, caller_id, receiver_id, caller_address, receiver_address,
       status, started_at, answered_at, ended_at, duration_seconds, created_at
FROM call_history
WHERE caller_id = $1 OR receiver_id = $1
ORDER BY started_at DESC
LIMIT $2`
	rows, err := s.db.QueryContext(ctx, q, participantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history for %d: %w", participantID, err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var status string
		var answeredAt, endedAt sql.NullTime
		if err := rows.Scan(
			&rec.ID, &rec.CallID, &rec.CallerID, &rec.ReceiverID,
			&rec.CallerAddress, &rec.ReceiverAddress, &status,
			&rec.StartedAt, &answeredAt, &endedAt, &rec.DurationSeconds, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		rec.Status = Status(status)
		if answeredAt.Valid {
			t := answeredAt.Time
			rec.AnsweredAt = &t
		}
		if endedAt.Valid {
			t := endedAt.Time
			rec.EndedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
