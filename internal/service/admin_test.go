package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keygatehq/keygate/internal/model"
	"github.com/keygatehq/keygate/internal/store"
)

func TestListWithStatus(t *testing.T) {
	st := newTestStore(t)
	access := NewAccessService(st)
	admin := NewAdminService(st)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	unused := issueOne(t, st, "7day")
	unusedLifetime := issueOne(t, st, "lifetime")
	active := issueOne(t, st, "7day")
	lifetime := issueOne(t, st, "lifetime")
	expired := issueOne(t, st, "1day")

	for _, token := range []string{active, lifetime, expired} {
		if _, err := access.Submit(ctx, token, now); err != nil {
			t.Fatalf("Submit %s: %v", token, err)
		}
	}
	if _, err := access.Verify(ctx, active, "user-1", now); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	later := now.Add(48 * time.Hour)
	rows, err := admin.ListWithStatus(ctx, later)
	if err != nil {
		t.Fatalf("ListWithStatus: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}

	byToken := make(map[string]model.KeyStatusRow, len(rows))
	for _, r := range rows {
		byToken[r.Token] = r
	}

	wantStatus := map[string]model.Status{
		unused:         model.StatusUnused,
		unusedLifetime: model.StatusUnused,
		active:         model.StatusActive,
		lifetime:       model.StatusLifetime,
		expired:        model.StatusExpired,
	}
	for token, want := range wantStatus {
		row, ok := byToken[token]
		if !ok {
			t.Errorf("token %s missing from listing", token)
			continue
		}
		if row.Status != want {
			t.Errorf("%s: status got %v, want %v", token, row.Status, want)
		}
	}

	if got := byToken[active]; got.LockedIdentity == nil || *got.LockedIdentity != "user-1" {
		t.Errorf("locked identity not surfaced: %v", got.LockedIdentity)
	}
	if got := byToken[unused]; got.ExpiresAt != nil {
		t.Errorf("unused key shows an expiry: %v", got.ExpiresAt)
	}
}

func TestStats(t *testing.T) {
	st := newTestStore(t)
	access := NewAccessService(st)
	admin := NewAdminService(st)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	issueOne(t, st, "7day") // stays unused

	running := issueOne(t, st, "7day")
	lifetime := issueOne(t, st, "lifetime")
	lapsed := issueOne(t, st, "1day")
	for _, token := range []string{running, lifetime, lapsed} {
		if _, err := access.Submit(ctx, token, now); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	stats, err := admin.Stats(ctx, now.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	// Activated lifetime keys count toward Active.
	want := model.KeyStats{Total: 4, Active: 2, Unused: 1, Expired: 1}
	if *stats != want {
		t.Errorf("got %+v, want %+v", *stats, want)
	}
}

func TestDeleteKey(t *testing.T) {
	st := newTestStore(t)
	admin := NewAdminService(st)
	ctx := context.Background()

	token := issueOne(t, st, "7day")

	if err := admin.DeleteKey(ctx, token); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}
	if _, err := st.Get(ctx, token); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("key still present after delete: %v", err)
	}
	if err := admin.DeleteKey(ctx, token); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}
