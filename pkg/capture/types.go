// Package capture owns microphone acquisition and the VAD-gated
// recording lifecycle: it buffers encoded fragments from a device
// stream and decides, via a silence detector, when to stop on its own.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/a4sr3s/voxpipe/pkg/capture/vad"
	"github.com/google/uuid"
)

var (
	// ErrPermissionDenied means the user or OS refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrRecordingFailed means the encoder faulted mid-session.
	ErrRecordingFailed = errors.New("recording failed")
)

// PreferredMimeTypes is the encoding ladder tried in order; the first
// one the device supports wins, else the device default is used.
var PreferredMimeTypes = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/mp4",
}

// Device is a microphone-like audio source.
type Device interface {
	// Supports reports whether the device can encode to the mime type.
	Supports(mimeType string) bool
	// Open acquires the device and starts encoding. Returns
	// ErrPermissionDenied when access is refused. An empty mimeType
	// selects the device's default encoding.
	Open(ctx context.Context, mimeType string) (Stream, error)
}

// Stream is one live capture. Fragments delivers encoded segments as
// they arrive and closes after Finalize flushes the encoder, or on an
// encoder fault; Err distinguishes the two once the channel is closed.
type Stream interface {
	Fragments() <-chan []byte
	Err() error
	// Analyser returns the amplitude analyser for this stream. Failure
	// is non-fatal to recording: the caller degrades to ceiling-only
	// stopping.
	Analyser() (Analyser, error)
	// MimeType reports the encoding in use. It may differ from the one
	// requested at Open when the device default was selected.
	MimeType() string
	// Finalize asks the encoder to flush and close Fragments.
	Finalize() error
	// Close releases the underlying device.
	Close() error
}

// Analyser samples the input signal's mean amplitude over the analysis
// window on a 0-255 scale. Sampling is O(window) per call.
type Analyser interface {
	Level() float64
	Close() error
}

// Recording is a finished capture: the concatenated encoded audio.
type Recording struct {
	ID          uuid.UUID
	Data        []byte
	MimeType    string
	StartedAt   time.Time
	Duration    time.Duration
	AutoStopped bool
}

// Config tunes a capture controller.
type Config struct {
	VAD          vad.Config
	MaxRecording time.Duration // hard ceiling, always force-stops
	Tick         time.Duration // VAD sampling period
	BufferBytes  int           // fragment ring capacity
}

// DefaultConfig mirrors the recorder defaults: 30s ceiling and a tick
// close to an animation frame.
func DefaultConfig() Config {
	return Config{
		VAD:          vad.DefaultConfig(),
		MaxRecording: 30 * time.Second,
		Tick:         16 * time.Millisecond,
		BufferBytes:  1 << 20,
	}
}

// Clock abstracts time so the VAD loop is testable with synthetic
// samples and simulated ticks.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the periodic-tick half of Clock.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

type realTicker struct{ t *time.Ticker }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }

func (r *realTicker) Stop() { r.t.Stop() }

// SystemClock is the wall-clock Clock used outside tests.
func SystemClock() Clock { return realClock{} }
