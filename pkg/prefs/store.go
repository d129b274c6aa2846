// Package prefs holds the small pieces of state that survive a session:
// the TTS-enabled preference and the daily rate-limit stamp. Storage is
// behind a string key-value interface so the pipeline can run against
// redis in production and an in-memory map in tests.
package prefs

// Store is a minimal string key-value store.
type Store interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}
