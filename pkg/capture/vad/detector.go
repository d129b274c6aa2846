// Package vad decides when a speaker has stopped talking. The detector
// is pure state over injected amplitude samples and timestamps, so the
// capture controller can drive it from a real ticker and tests can
// drive it from synthetic streams.
package vad

import "time"

// Config tunes the silence gating.
type Config struct {
	SilenceThreshold float64       // mean amplitude on a 0-255 scale
	MinRecording     time.Duration // detector inert before this has elapsed
	SilenceTimeout   time.Duration // continuous silence before trigger
	Smoothing        float64       // exponential smoothing constant
}

// DefaultConfig matches the recorder defaults: threshold 25/255, 800ms
// arming delay, 1.5s silence timeout, smoothing 0.3.
func DefaultConfig() Config {
	return Config{
		SilenceThreshold: 25,
		MinRecording:     800 * time.Millisecond,
		SilenceTimeout:   1500 * time.Millisecond,
		Smoothing:        0.3,
	}
}

// Detector tracks continuous silence for a single recording session.
type Detector struct {
	cfg       Config
	startedAt time.Time

	smoothed     float64
	seeded       bool
	silenceSince time.Time // zero means silence clock not running
	triggered    bool
}

// NewDetector starts tracking from the recording start time.
func NewDetector(cfg Config, startedAt time.Time) *Detector {
	if cfg.Smoothing <= 0 || cfg.Smoothing > 1 {
		cfg.Smoothing = 0.3
	}
	return &Detector{cfg: cfg, startedAt: startedAt}
}

// Observe feeds one amplitude sample taken at now. It returns true
// exactly once per session: when continuous sub-threshold amplitude has
// lasted at least the silence timeout, and only after the minimum
// recording duration has elapsed. Samples at or above the threshold
// reset the silence clock to "not started".
func (d *Detector) Observe(level float64, now time.Time) bool {
	if !d.seeded {
		d.smoothed = level
		d.seeded = true
	} else {
		d.smoothed = d.cfg.Smoothing*level + (1-d.cfg.Smoothing)*d.smoothed
	}

	if d.triggered {
		return false
	}

	if d.smoothed >= d.cfg.SilenceThreshold {
		d.silenceSince = time.Time{}
		return false
	}

	// inert until the utterance has had time to start
	if now.Sub(d.startedAt) < d.cfg.MinRecording {
		return false
	}

	if d.silenceSince.IsZero() {
		d.silenceSince = now
		return false
	}

	if now.Sub(d.silenceSince) >= d.cfg.SilenceTimeout {
		d.triggered = true
		return true
	}
	return false
}

// Triggered reports whether the detector has already fired.
func (d *Detector) Triggered() bool {
	return d.triggered
}

// Level returns the current smoothed amplitude, for logging.
func (d *Detector) Level() float64 {
	return d.smoothed
}
