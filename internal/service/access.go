package service

import (
	"context"
	"fmt"
	"time"

	"github.com/keygatehq/keygate/internal/lifecycle"
	"github.com/keygatehq/keygate/internal/store"
)

// ExpiredError reports that a key was found but its validity window has
// lapsed. It carries the tier label for the user-facing message.
type ExpiredError struct {
	TierLabel string
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("key expired (%s tier)", e.TierLabel)
}

// AccessService drives the client-facing key operations: first-time
// activation on submit, and the one-time identity lock on verify.
type AccessService struct {
	store store.Store
}

// NewAccessService creates an AccessService over st.
func NewAccessService(st store.Store) *AccessService {
	return &AccessService{store: st}
}

// SubmitResult describes the state of a key after a submit request.
type SubmitResult struct {
	Token        string
	TierLabel    string
	Status       string // human-readable validity, e.g. "4d 12h remaining"
	ActivatedNow bool   // true if this request started the expiry clock
}

// Submit activates the key on first use and reports its validity. The
// activation is idempotent: racing submits converge on the same expiry.
// Returns store.ErrNotFound for unknown tokens and *ExpiredError for lapsed
// keys.
func (a *AccessService) Submit(ctx context.Context, token string, now time.Time) (*SubmitResult, error) {
	rec, err := a.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	activatedNow := lifecycle.ActivateIfNeeded(rec, now)
	if activatedNow {
		if err := a.store.Put(ctx, rec); err != nil {
			return nil, fmt.Errorf("persist activation: %w", err)
		}
	}

	valid, status := lifecycle.CheckValidity(rec, now)
	if !valid {
		return nil, &ExpiredError{TierLabel: rec.TierLabel}
	}

	return &SubmitResult{
		Token:        rec.Token,
		TierLabel:    rec.TierLabel,
		Status:       status,
		ActivatedNow: activatedNow,
	}, nil
}

// VerifyResult describes a successfully verified and locked key.
type VerifyResult struct {
	TierLabel string
	Status    string
}

// Verify checks validity and binds the key to identity. The first identity
// to verify claims the key; later verifications with the same identity
// succeed, any other identity gets store.ErrAlreadyLocked.
func (a *AccessService) Verify(ctx context.Context, token, identity string, now time.Time) (*VerifyResult, error) {
	rec, err := a.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	valid, status := lifecycle.CheckValidity(rec, now)
	if !valid {
		return nil, &ExpiredError{TierLabel: rec.TierLabel}
	}

	if err := a.store.Lock(ctx, token, identity, now); err != nil {
		return nil, err
	}

	return &VerifyResult{
		TierLabel: rec.TierLabel,
		Status:    status,
	}, nil
}
