package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTierByID(t *testing.T) {
	tests := []struct {
		id       string
		wantDays int // -1 = lifetime
		wantName string
	}{
		{"1day", 1, "1 Day"},
		{"3day", 3, "3 Days"},
		{"7day", 7, "7 Days"},
		{"1month", 30, "1 Month"},
		{"3month", 90, "3 Months"},
		{"6month", 180, "6 Months"},
		{"1year", 365, "1 Year"},
		{"lifetime", -1, "Lifetime"},
	}

	for _, tt := range tests {
		tier, ok := TierByID(tt.id)
		if !ok {
			t.Errorf("TierByID(%q): not found", tt.id)
			continue
		}
		if tier.Label != tt.wantName {
			t.Errorf("TierByID(%q).Label = %q, want %q", tt.id, tier.Label, tt.wantName)
		}
		if tt.wantDays == -1 {
			if tier.Days != nil {
				t.Errorf("TierByID(%q).Days = %v, want nil", tt.id, *tier.Days)
			}
		} else if tier.Days == nil || *tier.Days != tt.wantDays {
			t.Errorf("TierByID(%q).Days = %v, want %d", tt.id, tier.Days, tt.wantDays)
		}
	}

	if _, ok := TierByID("2week"); ok {
		t.Error("TierByID accepted an unknown tier")
	}
}

func TestKeyRecordUnlimited(t *testing.T) {
	seven := 7
	if (&KeyRecord{DurationDays: &seven}).Unlimited() {
		t.Error("limited key reported as unlimited")
	}
	if !(&KeyRecord{}).Unlimited() {
		t.Error("lifetime key not reported as unlimited")
	}
}

func TestKeyRecordJSON(t *testing.T) {
	seven := 7
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	rec := KeyRecord{
		Token:        "Keygate-ABCD-EFGH-IJKL",
		Tier:         "7day",
		TierLabel:    "7 Days",
		DurationDays: &seven,
		CreatedAt:    now,
	}

	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	// The token is the document key in the file backend, never a field.
	if _, ok := m["token"]; ok {
		t.Error("token must not be serialized into the record body")
	}
	if m["tier"] != "7day" {
		t.Errorf("tier = %v, want 7day", m["tier"])
	}
	if m["days"] != float64(7) {
		t.Errorf("days = %v, want 7", m["days"])
	}
	// Unset lifecycle fields serialize as explicit nulls, matching the
	// document layout the file backend persists.
	for _, field := range []string{"activated_at", "expires_at", "locked_user", "locked_user_at"} {
		v, ok := m[field]
		if !ok {
			t.Errorf("field %q missing from JSON output", field)
		}
		if v != nil {
			t.Errorf("field %q = %v, want null", field, v)
		}
	}
}
