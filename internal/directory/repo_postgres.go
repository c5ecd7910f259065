package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRepo is the durable Repository implementation.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Migrate creates the tables if they do not exist.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS registrations (
	user_id      BIGINT PRIMARY KEY,
	username     TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL,
	home_chat_id BIGINT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS registrations_address_idx ON registrations (address);

CREATE TABLE IF NOT EXISTS contacts (
	id         TEXT PRIMARY KEY,
	owner_id   BIGINT NOT NULL,
	name       TEXT NOT NULL,
	address    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS contacts_owner_idx ON contacts (owner_id, name);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *PostgresRepo) UpsertRegistration(ctx context.Context, reg Registration) error {
	const q = `
INSERT INTO registrations (user_id, username, address, home_chat_id, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (user_id) DO UPDATE SET
	username = EXCLUDED.username,
	address = EXCLUDED.address,
	home_chat_id = EXCLUDED.home_chat_id,
	updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q,
		reg.UserID, reg.Username, reg.Address, reg.HomeChatID, reg.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert registration %d: %w", reg.UserID, err)
	}
	return nil
}

func (r *PostgresRepo) GetByUserID(ctx context.Context, userID int64) (Registration, error) {
	const q = `
SELECT user_id, username, address, home_chat_id, updated_at
FROM registrations WHERE user_id = $1`
	return r.scanRegistration(r.db.QueryRowContext(ctx, q, userID))
}

func (r *PostgresRepo) GetByAddress(ctx context.Context, address string) (Registration, error) {
	const q = `
SELECT user_id, username, address, home_chat_id, updated_at
FROM registrations WHERE address = UPPER($1)`
	return r.scanRegistration(r.db.QueryRowContext(ctx, q, address))
}

func (r *PostgresRepo) scanRegistration(row *sql.Row) (Registration, error) {
	var reg Registration
	err := row.Scan(&reg.UserID, &reg.Username, &reg.Address, &reg.HomeChatID, &reg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Registration{}, ErrNotRegistered
	}
	if err != nil {
		return Registration{}, fmt.Errorf("scan registration: %w", err)
	}
	return reg, nil
}

func (r *PostgresRepo) AddContact(ctx context.Context, c Contact) error {
	const q = `
INSERT INTO contacts (id, owner_id, name, address, created_at)
VALUES ($1,$2,$3,$4,$5)`
	_, err := r.db.ExecContext(ctx, q, c.ID, c.OwnerID, c.Name, c.Address, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert contact for %d: %w", c.OwnerID, err)
	}
	return nil
}

func (r *PostgresRepo) ListContacts(ctx context.Context, ownerID int64) ([]Contact, error) {
	const q = `
SELECT id, owner_id, name, address, created_at
FROM contacts WHERE owner_id = $1 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list contacts for %d: %w", ownerID, err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Address, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) DeleteContact(ctx context.Context, ownerID int64, contactID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM contacts WHERE owner_id = $1 AND id = $2`, ownerID, contactID)
	if err != nil {
		return fmt.Errorf("delete contact %s: %w", contactID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrContactNotFound
	}
	return nil
}
