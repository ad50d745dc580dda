// Package lifecycle implements the pure state logic for access keys:
// first-use activation, expiry computation, and one-time identity locking.
// It never touches storage; callers fetch a record, apply an operation, and
// persist the record iff it reports a mutation.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/keygatehq/keygate/internal/model"
)

// ErrAlreadyLocked is returned when a lock attempt presents an identity
// different from the one the key is already bound to. The store package
// re-exports it so both backends surface the same sentinel.
var ErrAlreadyLocked = errors.New("key already locked to another identity")

// Day is the fixed-length day used for expiry arithmetic. No timezone or
// DST adjustment; all timestamps are UTC.
const Day = 24 * time.Hour

// ActivateIfNeeded starts the key's expiry clock on first use. It sets
// Activated and ActivatedAt, and for a limited tier computes ExpiresAt as
// now plus the tier duration. Re-activation is a no-op and never resets the
// clock. The return value reports whether the record was mutated, so the
// caller knows whether to persist it.
func ActivateIfNeeded(rec *model.KeyRecord, now time.Time) bool {
	if rec.Activated {
		return false
	}
	now = now.UTC()
	rec.Activated = true
	rec.ActivatedAt = &now
	if rec.DurationDays != nil {
		expires := now.Add(time.Duration(*rec.DurationDays) * Day)
		rec.ExpiresAt = &expires
	}
	return true
}

// CheckValidity reports whether the key currently grants access, with a
// human-readable status. An unactivated key is always valid: its clock has
// not started. An activated record with no expiry is treated as lifetime
// even off the lifetime tier.
func CheckValidity(rec *model.KeyRecord, now time.Time) (bool, string) {
	if rec.Unlimited() {
		return true, "Lifetime"
	}
	if !rec.Activated {
		return true, "Not yet activated"
	}
	if rec.ExpiresAt == nil {
		return true, "Lifetime"
	}
	if now.After(*rec.ExpiresAt) {
		return false, "Expired"
	}
	remaining := rec.ExpiresAt.Sub(now)
	d := int(remaining / Day)
	h := int((remaining % Day) / time.Hour)
	return true, fmt.Sprintf("%dd %dh remaining", d, h)
}

// LockIdentity binds the key to identity. The first identity to present the
// key claims exclusive use; re-confirming the same identity succeeds without
// mutation, and any other identity fails with ErrAlreadyLocked.
func LockIdentity(rec *model.KeyRecord, identity string, now time.Time) error {
	if rec.LockedIdentity == nil {
		now = now.UTC()
		rec.LockedIdentity = &identity
		rec.LockedAt = &now
		return nil
	}
	if *rec.LockedIdentity == identity {
		return nil
	}
	return ErrAlreadyLocked
}

// StatusOf projects a record into the four administrative status labels.
// Unactivated keys are Unused regardless of tier; lifetime keys only become
// Lifetime once activated.
func StatusOf(rec *model.KeyRecord, now time.Time) model.Status {
	if !rec.Activated {
		return model.StatusUnused
	}
	if valid, _ := CheckValidity(rec, now); !valid {
		return model.StatusExpired
	}
	if rec.Unlimited() || rec.ExpiresAt == nil {
		return model.StatusLifetime
	}
	return model.StatusActive
}
