package service

import (
	"context"
	"fmt"
	"time"

	"github.com/keygatehq/keygate/internal/lifecycle"
	"github.com/keygatehq/keygate/internal/model"
	"github.com/keygatehq/keygate/internal/store"
)

// AdminService aggregates key records into operator-facing listings and
// counts, and performs hard deletes.
type AdminService struct {
	store store.Store
}

// NewAdminService creates an AdminService over st.
func NewAdminService(st store.Store) *AdminService {
	return &AdminService{store: st}
}

// ListWithStatus returns one status row per key, projected through the same
// validity rules the client-facing paths use.
func (a *AdminService) ListWithStatus(ctx context.Context, now time.Time) ([]model.KeyStatusRow, error) {
	recs, err := a.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	rows := make([]model.KeyStatusRow, len(recs))
	for i := range recs {
		rows[i] = model.KeyStatusRow{
			Token:          recs[i].Token,
			TierLabel:      recs[i].TierLabel,
			Status:         lifecycle.StatusOf(&recs[i], now),
			ExpiresAt:      recs[i].ExpiresAt,
			LockedIdentity: recs[i].LockedIdentity,
		}
	}
	return rows, nil
}

// Stats returns aggregate counts consistent with the per-row statuses;
// Active counts both running limited keys and activated lifetime keys.
func (a *AdminService) Stats(ctx context.Context, now time.Time) (*model.KeyStats, error) {
	recs, err := a.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	stats := &model.KeyStats{Total: len(recs)}
	for i := range recs {
		switch lifecycle.StatusOf(&recs[i], now) {
		case model.StatusUnused:
			stats.Unused++
		case model.StatusExpired:
			stats.Expired++
		default: // Active and Lifetime both count as active
			stats.Active++
		}
	}
	return stats, nil
}

// DeleteKey removes a key permanently. There is no soft delete.
func (a *AdminService) DeleteKey(ctx context.Context, token string) error {
	return a.store.Delete(ctx, token)
}
