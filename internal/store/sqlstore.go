package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/keygatehq/keygate/internal/model"
)

// SQLStore persists key records in a single relational table. It supports
// PostgreSQL, SQLite, and MySQL through a small per-driver dialect; every
// mutation is a single-statement atomic upsert, so no multi-statement
// transactions are needed. For MySQL the DSN must include parseTime=true.
type SQLStore struct {
	db *sqlx.DB
	d  dialect
}

// NewSQLStore opens a connection for the given backend ("postgres",
// "sqlite", or "mysql") and creates the schema on first use. Pass an empty
// DSN with the sqlite backend for an in-memory store.
func NewSQLStore(backend, dsn string) (*SQLStore, error) {
	d, err := dialectFor(backend)
	if err != nil {
		return nil, err
	}

	if backend == "sqlite" && dsn == "" {
		dsn = ":memory:?_journal_mode=WAL"
	}

	db, err := sqlx.Connect(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}

	if backend == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	}

	s := &SQLStore{db: db, d: d}
	if _, err := db.Exec(d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create key schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get returns the record for token, or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, token string) (*model.KeyRecord, error) {
	var rec model.KeyRecord
	q := s.db.Rebind("SELECT * FROM access_keys WHERE token = ?")
	if err := s.db.GetContext(ctx, &rec, q, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get key: %w", err)
	}
	return &rec, nil
}

// Put upserts a record. Issuance-time fields are only written on insert;
// an existing row keeps its token, tier, tier_label, days, and created_at.
func (s *SQLStore) Put(ctx context.Context, rec *model.KeyRecord) error {
	q := s.db.Rebind(s.d.upsert)
	_, err := s.db.ExecContext(ctx, q,
		rec.Token, rec.Tier, rec.TierLabel, rec.DurationDays,
		rec.Activated, rec.ActivatedAt, rec.ExpiresAt,
		rec.LockedIdentity, rec.LockedAt, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("put key: %w", err)
	}
	return nil
}

// Exists reports whether a record exists for token.
func (s *SQLStore) Exists(ctx context.Context, token string) (bool, error) {
	var count int
	q := s.db.Rebind("SELECT COUNT(*) FROM access_keys WHERE token = ?")
	if err := s.db.GetContext(ctx, &count, q, token); err != nil {
		return false, fmt.Errorf("check key exists: %w", err)
	}
	return count > 0, nil
}

// Delete removes the record for token.
func (s *SQLStore) Delete(ctx context.Context, token string) error {
	q := s.db.Rebind("DELETE FROM access_keys WHERE token = ?")
	result, err := s.db.ExecContext(ctx, q, token)
	if err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAll returns every record, most recently created first.
func (s *SQLStore) ListAll(ctx context.Context) ([]model.KeyRecord, error) {
	var recs []model.KeyRecord
	if err := s.db.SelectContext(ctx, &recs, "SELECT * FROM access_keys ORDER BY created_at DESC, token"); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return recs, nil
}

// Lock performs the identity bind as a conditional update so that two
// racing claims with different identities cannot both succeed. The update
// only fires while locked_user is NULL; the follow-up read distinguishes a
// missing key, an idempotent re-claim, and a conflicting claim.
func (s *SQLStore) Lock(ctx context.Context, token, identity string, now time.Time) error {
	q := s.db.Rebind(`UPDATE access_keys SET locked_user = ?, locked_user_at = ?
		WHERE token = ? AND locked_user IS NULL`)
	result, err := s.db.ExecContext(ctx, q, identity, now, token)
	if err != nil {
		return fmt.Errorf("lock key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("lock key rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	rec, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	if rec.LockedIdentity != nil && *rec.LockedIdentity == identity {
		return nil
	}
	return ErrAlreadyLocked
}
