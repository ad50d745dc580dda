package store

import (
	"context"
	"errors"
	"time"

	"github.com/keygatehq/keygate/internal/lifecycle"
	"github.com/keygatehq/keygate/internal/model"
)

var (
	// ErrNotFound is returned when no record exists for the requested token.
	ErrNotFound = errors.New("key not found")

	// ErrAlreadyLocked is returned when a lock attempt presents an identity
	// different from the one the key is already bound to.
	ErrAlreadyLocked = lifecycle.ErrAlreadyLocked
)

// Store is the persistence contract for key records. Two interchangeable
// backends implement it: a SQL-backed store and a JSON file store. Callers
// must not depend on ListAll ordering beyond it being stable for a given
// snapshot.
type Store interface {
	// Get returns the record for token, or ErrNotFound.
	Get(ctx context.Context, token string) (*model.KeyRecord, error)

	// Put upserts a record. Only the mutable lifecycle fields (activated,
	// activated_at, expires_at, locked_user, locked_user_at) are overwritten
	// for an existing token; token, tier, tier_label, days, and created_at
	// are write-once at insert.
	Put(ctx context.Context, rec *model.KeyRecord) error

	// Exists reports whether a record exists for token.
	Exists(ctx context.Context, token string) (bool, error)

	// Delete removes the record for token, or returns ErrNotFound.
	Delete(ctx context.Context, token string) error

	// ListAll returns every record in the store.
	ListAll(ctx context.Context) ([]model.KeyRecord, error)

	// Lock binds the key to identity if it is unclaimed. Re-locking with the
	// identity that already holds the key succeeds without mutating the
	// record; a different identity fails with ErrAlreadyLocked. The
	// check-and-set is atomic within the backend.
	Lock(ctx context.Context, token, identity string, now time.Time) error

	// Close releases any underlying resources.
	Close() error
}
