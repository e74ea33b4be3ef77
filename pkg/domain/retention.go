package domain

import (
	"time"
)

// KeepingBurn is the burn-after-reading sentinel keyword.
const KeepingBurn = "burn"

// retentionDurations is the fixed keyword table. Arbitrary caller-supplied
// durations are rejected so storage lifetime stays bounded and predictable.
// 1month and 1year are fixed 30/365-day spans, not calendar months.
var retentionDurations = map[string]time.Duration{
	"5min":   5 * time.Minute,
	"10min":  10 * time.Minute,
	"1day":   24 * time.Hour,
	"1week":  7 * 24 * time.Hour,
	"1month": 30 * 24 * time.Hour,
	"1year":  365 * 24 * time.Hour,
}

// retentionOrder keeps the wire enumeration stable for clients.
var retentionOrder = []string{"5min", "10min", "1day", "1week", "1month", "1year", KeepingBurn}

type Retention struct {
	ExpiresAt time.Time // zero when Burn
	Burn      bool
}

// ResolveRetention maps a retention keyword to an absolute expiration instant,
// or to the burn-after-reading policy. Unknown keywords fail closed.
func ResolveRetention(keeping string, now time.Time) (Retention, error) {
	if keeping == KeepingBurn {
		return Retention{Burn: true}, nil
	}
	d, ok := retentionDurations[keeping]
	if !ok {
		return Retention{}, ErrInvalidRetention
	}
	return Retention{ExpiresAt: now.Add(d)}, nil
}

// RetentionKeywords returns the canonical keyword enumeration in wire order.
func RetentionKeywords() []string {
	out := make([]string, len(retentionOrder))
	copy(out, retentionOrder)
	return out
}
