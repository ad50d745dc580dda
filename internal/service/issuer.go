package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/keygatehq/keygate/internal/model"
	"github.com/keygatehq/keygate/internal/store"
)

var (
	ErrInvalidTier       = errors.New("unknown tier")
	ErrInvalidCount      = errors.New("count out of range")
	ErrIssuanceExhausted = errors.New("token generation retries exhausted")
)

const (
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenGroups   = 3
	tokenGroupLen = 4

	// maxTokenAttempts bounds collision retries per token before issuance
	// fails. Collisions are vanishingly rare at this keyspace size, so
	// hitting the bound indicates a broken store or random source.
	maxTokenAttempts = 20

	// MaxBatchSize caps how many keys a single issue request may mint.
	MaxBatchSize = 100

	// DefaultTokenPrefix is the product tag prepended to every token.
	DefaultTokenPrefix = "Keygate"
)

// Issuer mints collision-free opaque tokens and persists fresh unactivated
// records for them.
type Issuer struct {
	store  store.Store
	prefix string
}

// NewIssuer creates an Issuer writing to st. An empty prefix selects
// DefaultTokenPrefix.
func NewIssuer(st store.Store, prefix string) *Issuer {
	if prefix == "" {
		prefix = DefaultTokenPrefix
	}
	return &Issuer{store: st, prefix: prefix}
}

// Issue mints count keys of the given tier and returns the new tokens.
// Each token is checked for uniqueness against the store and regenerated on
// collision, up to maxTokenAttempts before ErrIssuanceExhausted.
func (i *Issuer) Issue(ctx context.Context, tierID string, count int) ([]string, error) {
	tier, ok := model.TierByID(tierID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, tierID)
	}
	if count < 1 || count > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d (want 1-%d)", ErrInvalidCount, count, MaxBatchSize)
	}

	tokens := make([]string, 0, count)
	for n := 0; n < count; n++ {
		token, err := i.uniqueToken(ctx)
		if err != nil {
			return tokens, err
		}

		rec := &model.KeyRecord{
			Token:        token,
			Tier:         tier.ID,
			TierLabel:    tier.Label,
			DurationDays: tier.Days,
			CreatedAt:    time.Now().UTC(),
		}
		if err := i.store.Put(ctx, rec); err != nil {
			return tokens, fmt.Errorf("persist key: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// uniqueToken generates tokens until one does not collide with the store.
func (i *Issuer) uniqueToken(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := i.generateToken()
		if err != nil {
			return "", err
		}
		exists, err := i.store.Exists(ctx, token)
		if err != nil {
			return "", fmt.Errorf("check token uniqueness: %w", err)
		}
		if !exists {
			return token, nil
		}
	}
	return "", ErrIssuanceExhausted
}

// generateToken produces a token of the form <Prefix>-XXXX-XXXX-XXXX with
// the groups drawn from the uppercase-alphanumeric alphabet using crypto/rand.
func (i *Issuer) generateToken() (string, error) {
	parts := make([]string, 0, tokenGroups+1)
	parts = append(parts, i.prefix)

	alphabetLen := big.NewInt(int64(len(tokenAlphabet)))
	for g := 0; g < tokenGroups; g++ {
		var group [tokenGroupLen]byte
		for c := range group {
			idx, err := rand.Int(rand.Reader, alphabetLen)
			if err != nil {
				return "", fmt.Errorf("generate token: %w", err)
			}
			group[c] = tokenAlphabet[idx.Int64()]
		}
		parts = append(parts, string(group[:]))
	}
	return strings.Join(parts, "-"), nil
}
