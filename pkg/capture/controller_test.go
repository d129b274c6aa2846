package capture_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/a4sr3s/voxpipe/pkg/Logger"
	"github.com/a4sr3s/voxpipe/pkg/capture"
	"github.com/a4sr3s/voxpipe/pkg/capture/vad"
)

// fakeClock drives the VAD loop by hand: Advance moves time forward and
// delivers exactly one tick.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	tick chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		tick: make(chan time.Time),
	}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) NewTicker(d time.Duration) capture.Ticker {
	return fakeTicker{ch: f.tick}
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	f.mu.Unlock()
	f.tick <- now
}

type fakeTicker struct{ ch chan time.Time }

func (t fakeTicker) C() <-chan time.Time { return t.ch }
func (t fakeTicker) Stop()               {}

type fakeAnalyser struct {
	mu    sync.Mutex
	level float64
}

func (a *fakeAnalyser) Level() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.level
}

func (a *fakeAnalyser) SetLevel(v float64) {
	a.mu.Lock()
	a.level = v
	a.mu.Unlock()
}

func (a *fakeAnalyser) Close() error { return nil }

type fakeStream struct {
	mu             sync.Mutex
	frags          chan []byte
	err            error
	mime           string
	analyser       *fakeAnalyser
	analyserErr    error
	failOnFinalize bool
	finalized      bool
	closed         bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		frags:    make(chan []byte, 16),
		analyser: &fakeAnalyser{},
	}
}

func (s *fakeStream) Fragments() <-chan []byte { return s.frags }

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) MimeType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mime
}

func (s *fakeStream) Analyser() (capture.Analyser, error) {
	if s.analyserErr != nil {
		return nil, s.analyserErr
	}
	return s.analyser, nil
}

func (s *fakeStream) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return nil
	}
	s.finalized = true
	if s.failOnFinalize {
		s.err = errors.New("encoder exploded")
	}
	close(s.frags)
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeDevice struct {
	supported   map[string]bool
	stream      *fakeStream
	openErr     error
	openedMime  string
	defaultMime string
}

func (d *fakeDevice) Supports(mimeType string) bool { return d.supported[mimeType] }

func (d *fakeDevice) Open(ctx context.Context, mimeType string) (capture.Stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.openedMime = mimeType
	if mimeType == "" {
		d.stream.mime = d.defaultMime
	}
	return d.stream, nil
}

func testController(device *fakeDevice, clock capture.Clock) *capture.Controller {
	cfg := capture.Config{
		VAD: vad.Config{
			SilenceThreshold: 25,
			MinRecording:     800 * time.Millisecond,
			SilenceTimeout:   1500 * time.Millisecond,
			Smoothing:        0.3,
		},
		MaxRecording: 30 * time.Second,
		Tick:         100 * time.Millisecond,
		BufferBytes:  1 << 16,
	}
	return capture.New(cfg, device, clock, Logger.New(true))
}

func TestStopWhenIdle(t *testing.T) {
	device := &fakeDevice{stream: newFakeStream()}
	c := testController(device, newFakeClock())

	rec, err := c.StopRecording(context.Background())
	if err != nil {
		t.Fatalf("StopRecording on idle controller: %v", err)
	}
	if rec != nil {
		t.Errorf("Expected no recording, got %+v", rec)
	}
}

func TestMimeSelection(t *testing.T) {
	device := &fakeDevice{
		supported: map[string]bool{"audio/webm": true, "audio/mp4": true},
		stream:    newFakeStream(),
	}
	c := testController(device, newFakeClock())

	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if device.openedMime != "audio/webm" {
		t.Errorf("Expected audio/webm from the preference ladder, got %q", device.openedMime)
	}
	if _, err := c.StopRecording(context.Background()); err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}
}

func TestManualStopReturnsRecording(t *testing.T) {
	device := &fakeDevice{
		supported: map[string]bool{"audio/webm;codecs=opus": true},
		stream:    newFakeStream(),
	}
	c := testController(device, newFakeClock())

	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if !c.Recording() {
		t.Fatal("Controller should be recording")
	}

	device.stream.frags <- []byte("he")
	device.stream.frags <- []byte("llo")

	rec, err := c.StopRecording(context.Background())
	if err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}
	if rec == nil {
		t.Fatal("Expected a recording")
	}
	if string(rec.Data) != "hello" {
		t.Errorf("Expected concatenated fragments, got %q", rec.Data)
	}
	if rec.MimeType != "audio/webm;codecs=opus" {
		t.Errorf("Unexpected mime type %q", rec.MimeType)
	}
	if rec.AutoStopped {
		t.Error("Manual stop must not mark AutoStopped")
	}
	if !device.stream.Closed() {
		t.Error("Stream must be released before StopRecording returns")
	}
	if c.State() != capture.StateIdle {
		t.Errorf("Expected idle after stop, got %s", c.State())
	}
}

func TestDeviceDefaultMime(t *testing.T) {
	device := &fakeDevice{stream: newFakeStream(), defaultMime: "audio/wav"}
	c := testController(device, newFakeClock())

	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if device.openedMime != "" {
		t.Errorf("Nothing on the ladder is supported, expected device default, got %q", device.openedMime)
	}

	device.stream.frags <- []byte("pcm")

	rec, err := c.StopRecording(context.Background())
	if err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}
	if rec == nil {
		t.Fatal("Expected a recording")
	}
	if rec.MimeType != "audio/wav" {
		t.Errorf("Recording should carry the stream-reported encoding, got %q", rec.MimeType)
	}
}

func TestPermissionDenied(t *testing.T) {
	device := &fakeDevice{openErr: capture.ErrPermissionDenied, stream: newFakeStream()}
	c := testController(device, newFakeClock())

	err := c.StartRecording(context.Background())
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied, got %v", err)
	}
	if c.State() != capture.StateIdle {
		t.Errorf("Controller should return to idle, got %s", c.State())
	}
}

func TestAutoStopOnSilence(t *testing.T) {
	device := &fakeDevice{stream: newFakeStream()}
	clock := newFakeClock()
	c := testController(device, clock)

	autoCh := make(chan *capture.Recording, 1)
	c.OnAutoStop(func(r *capture.Recording) { autoCh <- r })

	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	device.stream.frags <- []byte("utterance")
	device.stream.analyser.SetLevel(5) // silence

	// silence clock arms at t=800ms, trigger at t=2300ms
	for i := 0; i < 23; i++ {
		clock.Advance(100 * time.Millisecond)
	}

	select {
	case rec := <-autoCh:
		if !rec.AutoStopped {
			t.Error("Auto-stop recording must be marked AutoStopped")
		}
		if string(rec.Data) != "utterance" {
			t.Errorf("Unexpected recording data %q", rec.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Auto-stop callback never fired")
	}

	// the manual path must not also resolve for this session
	rec, err := c.StopRecording(context.Background())
	if err != nil || rec != nil {
		t.Errorf("Manual stop after auto-stop should be a no-op, got %v, %v", rec, err)
	}
}

func TestVoiceDefersAutoStop(t *testing.T) {
	device := &fakeDevice{stream: newFakeStream()}
	clock := newFakeClock()
	c := testController(device, clock)

	autoCh := make(chan *capture.Recording, 1)
	c.OnAutoStop(func(r *capture.Recording) { autoCh <- r })

	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	device.stream.analyser.SetLevel(120) // speaking

	for i := 0; i < 30; i++ {
		clock.Advance(100 * time.Millisecond)
	}
	select {
	case <-autoCh:
		t.Fatal("Auto-stop fired while voice was present")
	default:
	}

	if _, err := c.StopRecording(context.Background()); err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}
}

func TestCeilingStopsWithoutAnalyser(t *testing.T) {
	stream := newFakeStream()
	stream.analyserErr = errors.New("no analyser on this device")
	device := &fakeDevice{stream: stream}
	clock := newFakeClock()

	cfg := capture.Config{
		VAD:          vad.DefaultConfig(),
		MaxRecording: time.Second,
		Tick:         100 * time.Millisecond,
		BufferBytes:  1 << 16,
	}
	c := capture.New(cfg, device, clock, Logger.New(true))

	autoCh := make(chan *capture.Recording, 1)
	c.OnAutoStop(func(r *capture.Recording) { autoCh <- r })

	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording must survive analyser failure: %v", err)
	}

	for i := 0; i < 10; i++ {
		clock.Advance(100 * time.Millisecond)
	}

	select {
	case rec := <-autoCh:
		if !rec.AutoStopped {
			t.Error("Ceiling stop must mark AutoStopped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Ceiling never force-stopped the recording")
	}
}

func TestEncoderFaultDiscardsFragments(t *testing.T) {
	stream := newFakeStream()
	stream.failOnFinalize = true
	device := &fakeDevice{stream: stream}
	c := testController(device, newFakeClock())

	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	stream.frags <- []byte("partial")

	rec, err := c.StopRecording(context.Background())
	if !errors.Is(err, capture.ErrRecordingFailed) {
		t.Fatalf("Expected ErrRecordingFailed, got %v", err)
	}
	if rec != nil {
		t.Errorf("Faulted session must resolve with no recording, got %+v", rec)
	}
	if !stream.Closed() {
		t.Error("Resources must be released on encoder fault")
	}
	if c.State() != capture.StateIdle {
		t.Errorf("Expected idle after fault, got %s", c.State())
	}
}

func TestStartReleasesPriorSession(t *testing.T) {
	first := newFakeStream()
	device := &fakeDevice{stream: first}
	c := testController(device, newFakeClock())

	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("First StartRecording failed: %v", err)
	}
	first.frags <- []byte("old")

	second := newFakeStream()
	device.stream = second
	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("Second StartRecording failed: %v", err)
	}
	if !first.Closed() {
		t.Error("Prior session must be fully released before a new one opens")
	}

	second.frags <- []byte("new")
	rec, err := c.StopRecording(context.Background())
	if err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}
	if rec == nil || string(rec.Data) != "new" {
		t.Errorf("Expected only the new session's data, got %+v", rec)
	}
}
