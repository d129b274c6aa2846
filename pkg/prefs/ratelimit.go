package prefs

import "time"

const rateLimitKey = "tts_rate_limited_on"

const dayFormat = "2006-01-02"

// RateLimitGuard persists the "TTS rate limit hit today" stamp. The
// stamp is an ISO date string; it expires by date comparison, never by
// timer, so a stale stamp from yesterday reads as not limited.
type RateLimitGuard struct {
	store Store
	now   func() time.Time
}

func NewRateLimitGuard(store Store) *RateLimitGuard {
	return &RateLimitGuard{store: store, now: time.Now}
}

// NewRateLimitGuardWithClock is for tests that need to control the day.
func NewRateLimitGuardWithClock(store Store, now func() time.Time) *RateLimitGuard {
	return &RateLimitGuard{store: store, now: now}
}

// MarkLimited records that the rate limit was hit today.
func (g *RateLimitGuard) MarkLimited() error {
	return g.store.Set(rateLimitKey, g.now().Format(dayFormat))
}

// Limited reports whether the limit was hit on the current calendar day.
// A stamp from a different day is removed on read.
func (g *RateLimitGuard) Limited() (bool, error) {
	stamp, ok, err := g.store.Get(rateLimitKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if stamp == g.now().Format(dayFormat) {
		return true, nil
	}
	// stale stamp from a previous day
	if err := g.store.Remove(rateLimitKey); err != nil {
		return false, err
	}
	return false, nil
}
