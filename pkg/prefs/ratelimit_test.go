package prefs

import (
	"testing"
	"time"
)

func TestRateLimitGuardSameDay(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	guard := NewRateLimitGuardWithClock(store, func() time.Time { return now })

	limited, err := guard.Limited()
	if err != nil {
		t.Fatalf("Limited failed: %v", err)
	}
	if limited {
		t.Error("Fresh guard should not be limited")
	}

	if err := guard.MarkLimited(); err != nil {
		t.Fatalf("MarkLimited failed: %v", err)
	}

	// later the same day, still limited
	now = time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	limited, err = guard.Limited()
	if err != nil {
		t.Fatalf("Limited failed: %v", err)
	}
	if !limited {
		t.Error("Expected limited within the same day")
	}
}

func TestRateLimitGuardClearsNextDay(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)
	guard := NewRateLimitGuardWithClock(store, func() time.Time { return now })

	if err := guard.MarkLimited(); err != nil {
		t.Fatalf("MarkLimited failed: %v", err)
	}

	now = time.Date(2025, 3, 11, 0, 1, 0, 0, time.UTC)
	limited, err := guard.Limited()
	if err != nil {
		t.Fatalf("Limited failed: %v", err)
	}
	if limited {
		t.Error("Stamp from a previous day should read as not limited")
	}

	// stale stamp should have been removed from the store
	if _, ok, _ := store.Get(rateLimitKey); ok {
		t.Error("Stale stamp should be removed on read")
	}
}

func TestPreferencesDefaultEnabled(t *testing.T) {
	p := NewPreferences(NewMemoryStore())

	enabled, err := p.TTSEnabled()
	if err != nil {
		t.Fatalf("TTSEnabled failed: %v", err)
	}
	if !enabled {
		t.Error("TTS should default to enabled")
	}

	if err := p.SetTTSEnabled(false); err != nil {
		t.Fatalf("SetTTSEnabled failed: %v", err)
	}
	enabled, err = p.TTSEnabled()
	if err != nil {
		t.Fatalf("TTSEnabled failed: %v", err)
	}
	if enabled {
		t.Error("TTS should be disabled after SetTTSEnabled(false)")
	}
}
