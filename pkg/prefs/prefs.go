package prefs

const ttsEnabledKey = "tts_enabled"

// Preferences exposes the persisted user-facing toggles.
type Preferences struct {
	store Store
}

func NewPreferences(store Store) *Preferences {
	return &Preferences{store: store}
}

// TTSEnabled reports whether speech synthesis is enabled. Defaults to
// true when nothing has been stored.
func (p *Preferences) TTSEnabled() (bool, error) {
	val, ok, err := p.store.Get(ttsEnabledKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return val == "true", nil
}

func (p *Preferences) SetTTSEnabled(enabled bool) error {
	if enabled {
		return p.store.Set(ttsEnabledKey, "true")
	}
	return p.store.Set(ttsEnabledKey, "false")
}
