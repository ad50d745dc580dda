package model

import "time"

// KeyRecord is a single access key and its full lifecycle state. The token is
// the only external handle to the record; everything else describes when the
// key was issued, whether its expiry clock has started, and which identity
// (if any) has claimed it.
type KeyRecord struct {
	Token          string     `json:"-" db:"token"`
	Tier           string     `json:"tier" db:"tier"`
	TierLabel      string     `json:"tier_label" db:"tier_label"`
	DurationDays   *int       `json:"days" db:"days"` // nil = lifetime
	Activated      bool       `json:"activated" db:"activated"`
	ActivatedAt    *time.Time `json:"activated_at" db:"activated_at"`
	ExpiresAt      *time.Time `json:"expires_at" db:"expires_at"`
	LockedIdentity *string    `json:"locked_user" db:"locked_user"`
	LockedAt       *time.Time `json:"locked_user_at" db:"locked_user_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// Unlimited reports whether the key belongs to the lifetime tier and never
// expires once activated.
func (k *KeyRecord) Unlimited() bool {
	return k.DurationDays == nil
}

// Tier is a named duration class governing how long a key remains valid
// after first activation. Days is nil for the lifetime tier.
type Tier struct {
	ID    string
	Label string
	Days  *int
}

func days(n int) *int { return &n }

// Tiers is the fixed set of duration classes a key can be issued under,
// in display order.
var Tiers = []Tier{
	{ID: "1day", Label: "1 Day", Days: days(1)},
	{ID: "3day", Label: "3 Days", Days: days(3)},
	{ID: "7day", Label: "7 Days", Days: days(7)},
	{ID: "1month", Label: "1 Month", Days: days(30)},
	{ID: "3month", Label: "3 Months", Days: days(90)},
	{ID: "6month", Label: "6 Months", Days: days(180)},
	{ID: "1year", Label: "1 Year", Days: days(365)},
	{ID: "lifetime", Label: "Lifetime", Days: nil},
}

// TierByID looks up a tier by its identifier. The second return value is
// false for unknown tiers.
func TierByID(id string) (Tier, bool) {
	for _, t := range Tiers {
		if t.ID == id {
			return t, true
		}
	}
	return Tier{}, false
}

// Status is the administrative projection of a key's lifecycle state.
type Status string

const (
	StatusLifetime Status = "Lifetime" // lifetime tier, activated
	StatusUnused   Status = "Unused"   // not yet activated, any tier
	StatusActive   Status = "Active"   // activated, clock running
	StatusExpired  Status = "Expired"  // activated, clock elapsed
)

// KeyStatusRow is one row of the administrative key listing.
type KeyStatusRow struct {
	Token          string     `json:"token"`
	TierLabel      string     `json:"tier_label"`
	Status         Status     `json:"status"`
	ExpiresAt      *time.Time `json:"expires_at"`
	LockedIdentity *string    `json:"locked_user"`
}

// KeyStats aggregates per-record statuses into operator-facing counts.
// Active includes lifetime-tier keys that have been activated.
type KeyStats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Unused  int `json:"unused"`
	Expired int `json:"expired"`
}
