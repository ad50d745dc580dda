package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/keygatehq/keygate/internal/lifecycle"
	"github.com/keygatehq/keygate/internal/model"
)

// FileStore persists the whole key set as one pretty-printed JSON document,
// a top-level map from token to record. Every mutation rewrites the file via
// a temp file and atomic rename so a crash mid-write cannot truncate it. All
// access is serialized behind a single lock; this backend is for
// single-operator, low-traffic deployments.
type FileStore struct {
	path string

	mu   sync.RWMutex
	keys map[string]model.KeyRecord
}

// NewFileStore loads the key set from path, creating an empty store if the
// file does not exist yet.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, keys: make(map[string]model.KeyRecord)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	if err := json.Unmarshal(data, &s.keys); err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", path, err)
	}
	// The token lives in the map key, not in the serialized record.
	for token, rec := range s.keys {
		rec.Token = token
		s.keys[token] = rec
	}
	return s, nil
}

// Close is a no-op; the file is rewritten on every mutation.
func (s *FileStore) Close() error {
	return nil
}

// save rewrites the whole document. Callers must hold the write lock.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.keys, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key file: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".keys-*.json")
	if err != nil {
		return fmt.Errorf("create temp key file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp key file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace key file: %w", err)
	}
	return nil
}

// Get returns the record for token, or ErrNotFound.
func (s *FileStore) Get(ctx context.Context, token string) (*model.KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.keys[token]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Put upserts a record and rewrites the file. Issuance-time fields of an
// existing record are preserved; only the lifecycle fields are overwritten.
func (s *FileStore) Put(ctx context.Context, rec *model.KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	if prev, ok := s.keys[rec.Token]; ok {
		stored.Tier = prev.Tier
		stored.TierLabel = prev.TierLabel
		stored.DurationDays = prev.DurationDays
		stored.CreatedAt = prev.CreatedAt
	}
	s.keys[rec.Token] = stored
	return s.save()
}

// Exists reports whether a record exists for token.
func (s *FileStore) Exists(ctx context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.keys[token]
	return ok, nil
}

// Delete removes the record for token and rewrites the file.
func (s *FileStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[token]; !ok {
		return ErrNotFound
	}
	delete(s.keys, token)
	return s.save()
}

// ListAll returns every record, most recently created first. Map iteration
// order is not stable, so the snapshot is sorted for a deterministic listing.
func (s *FileStore) ListAll(ctx context.Context) ([]model.KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]model.KeyRecord, 0, len(s.keys))
	for _, rec := range s.keys {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].Token < recs[j].Token
	})
	return recs, nil
}

// Lock binds the key to identity under the store's write lock, which makes
// the check-and-set atomic for this backend. The file is only rewritten when
// the record actually changes.
func (s *FileStore) Lock(ctx context.Context, token, identity string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.keys[token]
	if !ok {
		return ErrNotFound
	}

	before := rec.LockedIdentity
	if err := lifecycle.LockIdentity(&rec, identity, now); err != nil {
		return err
	}
	if before != nil {
		return nil // idempotent re-claim, nothing to persist
	}
	s.keys[token] = rec
	return s.save()
}
