package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/keygatehq/keygate/internal/lifecycle"
	"github.com/keygatehq/keygate/internal/store"
)

// ErrPayloadMissing is returned when the payload script is not present at
// the configured path. This is a server-side misconfiguration, not a caller
// error.
var ErrPayloadMissing = errors.New("payload script missing on server")

// payloadPlaceholder is the single line inside the payload script that gets
// the caller's token substituted in. Exactly one occurrence is replaced; the
// rest of the script passes through untouched.
const payloadPlaceholder = `local KEY = "KEY_HERE"`

// Delivery is the gate between a presented key and the script payload. It
// re-validates the key on every fetch and interpolates the token into the
// otherwise static script.
type Delivery struct {
	store   store.Store
	path    string
	product string
}

// NewDelivery creates a Delivery serving the script at path. The product
// name appears in the banner line prepended to the payload.
func NewDelivery(st store.Store, path, product string) *Delivery {
	if product == "" {
		product = DefaultTokenPrefix
	}
	return &Delivery{store: st, path: path, product: product}
}

// FetchPayload returns the script for a valid key. Unknown tokens yield
// store.ErrNotFound, lapsed keys *ExpiredError, and a missing script file
// ErrPayloadMissing.
func (d *Delivery) FetchPayload(ctx context.Context, token string, now time.Time) (string, error) {
	rec, err := d.store.Get(ctx, token)
	if err != nil {
		return "", err
	}

	valid, _ := lifecycle.CheckValidity(rec, now)
	if !valid {
		return "", &ExpiredError{TierLabel: rec.TierLabel}
	}

	script, err := os.ReadFile(d.path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrPayloadMissing, d.path)
	}

	expires := "Unknown"
	switch {
	case rec.Unlimited():
		expires = "Never (Lifetime)"
	case rec.ExpiresAt != nil:
		expires = rec.ExpiresAt.UTC().Format("2006-01-02")
	}

	banner := fmt.Sprintf("-- %s | Key: %s | Tier: %s | Expires: %s\n",
		d.product, rec.Token, rec.TierLabel, expires)
	body := strings.Replace(string(script), payloadPlaceholder,
		fmt.Sprintf("local KEY = %q", rec.Token), 1)

	return banner + body, nil
}
