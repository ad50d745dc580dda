package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/keygatehq/keygate/internal/model"
)

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

// backends returns a fresh instance of every store implementation, so each
// behavior test runs against all of them.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	fs, err := NewFileStore(filepath.Join(t.TempDir(), "keys.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { fs.Close() })

	ss, err := NewSQLStore("sqlite", "")
	if err != nil {
		t.Fatalf("NewSQLStore: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	return map[string]Store{"file": fs, "sqlite": ss}
}

func sampleRecord(token string, created time.Time) *model.KeyRecord {
	return &model.KeyRecord{
		Token:        token,
		Tier:         "7day",
		TierLabel:    "7 Days",
		DurationDays: intPtr(7),
		CreatedAt:    created,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	activated := created.Add(time.Hour)
	expiry := activated.Add(7 * 24 * time.Hour)

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec := sampleRecord("Keygate-AAAA-BBBB-CCCC", created)
			rec.Activated = true
			rec.ActivatedAt = &activated
			rec.ExpiresAt = &expiry
			rec.LockedIdentity = strPtr("user-1")
			rec.LockedAt = &activated

			if err := st.Put(ctx, rec); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := st.Get(ctx, rec.Token)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Token != rec.Token {
				t.Errorf("Token: got %q, want %q", got.Token, rec.Token)
			}
			if got.Tier != "7day" || got.TierLabel != "7 Days" {
				t.Errorf("tier fields: got %q/%q", got.Tier, got.TierLabel)
			}
			if got.DurationDays == nil || *got.DurationDays != 7 {
				t.Errorf("DurationDays: got %v, want 7", got.DurationDays)
			}
			if !got.Activated {
				t.Error("Activated not persisted")
			}
			if got.ActivatedAt == nil || !got.ActivatedAt.Equal(activated) {
				t.Errorf("ActivatedAt: got %v, want %v", got.ActivatedAt, activated)
			}
			if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expiry) {
				t.Errorf("ExpiresAt: got %v, want %v", got.ExpiresAt, expiry)
			}
			if got.LockedIdentity == nil || *got.LockedIdentity != "user-1" {
				t.Errorf("LockedIdentity: got %v, want user-1", got.LockedIdentity)
			}
			if !got.CreatedAt.Equal(created) {
				t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, created)
			}
		})
	}
}

func TestGetMissing(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := st.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestPutPreservesIssuanceFields(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec := sampleRecord("Keygate-DDDD-EEEE-FFFF", created)
			if err := st.Put(ctx, rec); err != nil {
				t.Fatalf("Put: %v", err)
			}

			// A second Put with mangled issuance fields must not rewrite them;
			// only the lifecycle fields land.
			activated := created.Add(time.Hour)
			update := *rec
			update.Tier = "lifetime"
			update.TierLabel = "Lifetime"
			update.DurationDays = nil
			update.CreatedAt = created.Add(48 * time.Hour)
			update.Activated = true
			update.ActivatedAt = &activated
			if err := st.Put(ctx, &update); err != nil {
				t.Fatalf("second Put: %v", err)
			}

			got, err := st.Get(ctx, rec.Token)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Tier != "7day" || got.TierLabel != "7 Days" {
				t.Errorf("tier rewritten: got %q/%q", got.Tier, got.TierLabel)
			}
			if got.DurationDays == nil || *got.DurationDays != 7 {
				t.Errorf("DurationDays rewritten: got %v", got.DurationDays)
			}
			if !got.CreatedAt.Equal(created) {
				t.Errorf("CreatedAt rewritten: got %v, want %v", got.CreatedAt, created)
			}
			if !got.Activated {
				t.Error("lifecycle update lost")
			}
		})
	}
}

func TestExistsAndDelete(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec := sampleRecord("Keygate-GGGG-HHHH-IIII", created)
			if err := st.Put(ctx, rec); err != nil {
				t.Fatalf("Put: %v", err)
			}

			ok, err := st.Exists(ctx, rec.Token)
			if err != nil || !ok {
				t.Fatalf("Exists: got %v, %v", ok, err)
			}

			if err := st.Delete(ctx, rec.Token); err != nil {
				t.Fatalf("Delete: %v", err)
			}

			ok, err = st.Exists(ctx, rec.Token)
			if err != nil || ok {
				t.Fatalf("Exists after delete: got %v, %v", ok, err)
			}
			if err := st.Delete(ctx, rec.Token); !errors.Is(err, ErrNotFound) {
				t.Errorf("second delete: expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestListAllOrder(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// Same creation time for B and C forces the token tiebreak.
			for _, k := range []struct {
				token string
				at    time.Time
			}{
				{"Keygate-OLD1-OLD1-OLD1", base},
				{"Keygate-NEW1-NEW1-NEW1", base.Add(2 * time.Hour)},
				{"Keygate-TIE2-TIE2-TIE2", base.Add(time.Hour)},
				{"Keygate-TIE1-TIE1-TIE1", base.Add(time.Hour)},
			} {
				if err := st.Put(ctx, sampleRecord(k.token, k.at)); err != nil {
					t.Fatalf("Put %s: %v", k.token, err)
				}
			}

			recs, err := st.ListAll(ctx)
			if err != nil {
				t.Fatalf("ListAll: %v", err)
			}

			want := []string{
				"Keygate-NEW1-NEW1-NEW1",
				"Keygate-TIE1-TIE1-TIE1",
				"Keygate-TIE2-TIE2-TIE2",
				"Keygate-OLD1-OLD1-OLD1",
			}
			if len(recs) != len(want) {
				t.Fatalf("got %d records, want %d", len(recs), len(want))
			}
			for i, w := range want {
				if recs[i].Token != w {
					t.Errorf("position %d: got %q, want %q", i, recs[i].Token, w)
				}
			}
		})
	}
}

func TestLock(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec := sampleRecord("Keygate-JJJJ-KKKK-LLLL", created)
			if err := st.Put(ctx, rec); err != nil {
				t.Fatalf("Put: %v", err)
			}

			if err := st.Lock(ctx, rec.Token, "user-1", now); err != nil {
				t.Fatalf("first lock: %v", err)
			}

			got, err := st.Get(ctx, rec.Token)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.LockedIdentity == nil || *got.LockedIdentity != "user-1" {
				t.Fatalf("LockedIdentity: got %v, want user-1", got.LockedIdentity)
			}
			if got.LockedAt == nil || !got.LockedAt.Equal(now) {
				t.Errorf("LockedAt: got %v, want %v", got.LockedAt, now)
			}

			// Same identity re-claims without error and without moving LockedAt.
			if err := st.Lock(ctx, rec.Token, "user-1", now.Add(time.Hour)); err != nil {
				t.Fatalf("re-claim: %v", err)
			}
			got, err = st.Get(ctx, rec.Token)
			if err != nil {
				t.Fatalf("Get after re-claim: %v", err)
			}
			if !got.LockedAt.Equal(now) {
				t.Errorf("re-claim moved LockedAt: got %v, want %v", got.LockedAt, now)
			}

			// A different identity is rejected.
			if err := st.Lock(ctx, rec.Token, "user-2", now.Add(time.Hour)); !errors.Is(err, ErrAlreadyLocked) {
				t.Errorf("expected ErrAlreadyLocked, got %v", err)
			}

			// Missing keys are reported as such, not as lock conflicts.
			if err := st.Lock(ctx, "nope", "user-1", now); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestFileStoreReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.json")
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	rec := sampleRecord("Keygate-MMMM-NNNN-OOOO", created)
	if err := fs.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := fs.Lock(ctx, rec.Token, "user-1", created.Add(time.Hour)); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	fs.Close()

	// A fresh store over the same file sees the full record, with the token
	// restored from the map key.
	fs2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer fs2.Close()

	got, err := fs2.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if got.Token != rec.Token {
		t.Errorf("Token: got %q, want %q", got.Token, rec.Token)
	}
	if got.Tier != "7day" {
		t.Errorf("Tier: got %q, want 7day", got.Tier)
	}
	if got.LockedIdentity == nil || *got.LockedIdentity != "user-1" {
		t.Errorf("LockedIdentity: got %v, want user-1", got.LockedIdentity)
	}
}
