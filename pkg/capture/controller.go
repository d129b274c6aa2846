package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/a4sr3s/voxpipe/pkg/Logger"
	"github.com/a4sr3s/voxpipe/pkg/audio/framering"
	"github.com/a4sr3s/voxpipe/pkg/capture/vad"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
)

// Lifecycle states for a capture controller.
const (
	StateIdle       = "idle"
	StateRequesting = "requesting"
	StateRecording  = "recording"
	StateStopping   = "stopping"
)

// Controller runs at most one capture session at a time. A session ends
// either through StopRecording (the caller receives the recording) or
// through auto-stop (silence timeout or hard ceiling; the registered
// callback receives it). The two paths are mutually exclusive per
// session.
type Controller struct {
	cfg        Config
	device     Device
	clock      Clock
	logger     *Logger.Logger
	lifecycle  *fsm.FSM
	onAutoStop func(*Recording)

	mu      sync.Mutex
	session *session
}

type session struct {
	id        uuid.UUID
	stream    Stream
	analyser  Analyser
	detector  *vad.Detector
	ring      framering.FragmentRing
	mimeType  string
	startedAt time.Time
	seq       uint32

	cancel context.CancelFunc
	done   chan struct{}

	finalized   bool // latched once either stop path has claimed the session
	manual      bool
	autoStopped bool
	result      *Recording
	err         error
}

// New creates a controller over the given device. The clock is injected
// so the VAD loop can be driven deterministically in tests.
func New(cfg Config, device Device, clock Clock, logger *Logger.Logger) *Controller {
	if clock == nil {
		clock = SystemClock()
	}
	def := DefaultConfig()
	if cfg.MaxRecording <= 0 {
		cfg.MaxRecording = def.MaxRecording
	}
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.BufferBytes <= 0 {
		cfg.BufferBytes = def.BufferBytes
	}
	if cfg.VAD == (vad.Config{}) {
		cfg.VAD = def.VAD
	}
	return &Controller{
		cfg:    cfg,
		device: device,
		clock:  clock,
		logger: logger,
		lifecycle: fsm.NewFSM(
			StateIdle,
			fsm.Events{
				{Name: "start", Src: []string{StateIdle}, Dst: StateRequesting},
				{Name: "grant", Src: []string{StateRequesting}, Dst: StateRecording},
				{Name: "deny", Src: []string{StateRequesting}, Dst: StateIdle},
				{Name: "stop", Src: []string{StateRecording}, Dst: StateStopping},
				{Name: "finalize", Src: []string{StateRecording, StateStopping}, Dst: StateIdle},
				{Name: "fail", Src: []string{StateRequesting, StateRecording, StateStopping}, Dst: StateIdle},
			},
			fsm.Callbacks{},
		),
	}
}

// OnAutoStop registers the callback that receives recordings finished
// by auto-stop. Must be set before StartRecording.
func (c *Controller) OnAutoStop(fn func(*Recording)) {
	c.onAutoStop = fn
}

// State returns the current lifecycle state.
func (c *Controller) State() string {
	return c.lifecycle.Current()
}

// Recording reports whether a session is currently active.
func (c *Controller) Recording() bool {
	return c.lifecycle.Is(StateRecording)
}

// StartRecording acquires the device, selects an encoding from the
// preference ladder, and starts buffering fragments and sampling the
// VAD. A still-active prior session is fully released first.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	prior := c.session
	marked := false
	if prior != nil && !prior.finalized {
		prior.finalized = true
		prior.manual = true
		_ = c.lifecycle.Event(ctx, "stop")
		marked = true
	}
	c.mu.Unlock()
	if prior != nil {
		if marked {
			if err := prior.stream.Finalize(); err != nil {
				c.logger.Warnf("finalize of prior session failed: %v", err)
			}
		}
		select {
		case <-prior.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.lifecycle.Event(ctx, "start"); err != nil {
		return fmt.Errorf("cannot start recording: %w", err)
	}

	mimeType := c.selectMimeType()
	stream, err := c.device.Open(ctx, mimeType)
	if err != nil {
		_ = c.lifecycle.Event(ctx, "deny")
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("open device: %w", err)
	}

	// adopt the encoding the stream reports, e.g. the device default
	// when nothing on the preference ladder was supported
	if mt := stream.MimeType(); mt != "" {
		mimeType = mt
	}

	startedAt := c.clock.Now()
	s := &session{
		id:        uuid.New(),
		stream:    stream,
		ring:      framering.New(c.cfg.BufferBytes),
		mimeType:  mimeType,
		startedAt: startedAt,
		done:      make(chan struct{}),
	}

	analyser, aerr := stream.Analyser()
	if aerr != nil {
		// VAD setup failure never fails recording: degrade to the
		// ceiling timer and keep going.
		c.logger.Warnf("analyser unavailable, ceiling-only stop: %v", aerr)
	} else {
		s.analyser = analyser
		s.detector = vad.NewDetector(c.cfg.VAD, startedAt)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	c.session = s

	if err := c.lifecycle.Event(ctx, "grant"); err != nil {
		cancel()
		_ = stream.Close()
		c.session = nil
		return fmt.Errorf("lifecycle: %w", err)
	}

	go c.collect(s)
	go c.watch(loopCtx, s)

	c.logger.Debugf("recording %s started (mime=%q)", s.id, mimeType)
	return nil
}

// StopRecording finalizes the active session and returns the full
// concatenated recording. When no session is active, or auto-stop has
// already claimed it, it resolves immediately with no result. Device
// and analyser are released before this returns.
func (c *Controller) StopRecording(ctx context.Context) (*Recording, error) {
	c.mu.Lock()
	s := c.session
	if s == nil || s.finalized {
		c.mu.Unlock()
		return nil, nil
	}
	s.finalized = true
	s.manual = true
	_ = c.lifecycle.Event(ctx, "stop")
	c.mu.Unlock()

	if err := s.stream.Finalize(); err != nil {
		c.logger.Errorf("encoder finalize failed: %v", err)
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.result, s.err
}

func (c *Controller) selectMimeType() string {
	for _, mt := range PreferredMimeTypes {
		if c.device.Supports(mt) {
			return mt
		}
	}
	return "" // device default
}

// watch is the VAD loop: one amplitude sample per tick, constant work
// per tick, plus the hard ceiling check.
func (c *Controller) watch(ctx context.Context, s *session) {
	ticker := c.clock.NewTicker(c.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			now := c.clock.Now()
			if now.Sub(s.startedAt) >= c.cfg.MaxRecording {
				c.logger.Debugf("recording %s hit max duration", s.id)
				c.autoStop(ctx, s)
				return
			}
			if s.detector == nil {
				continue
			}
			if s.detector.Observe(s.analyser.Level(), now) {
				c.logger.Debugf("recording %s: silence timeout", s.id)
				c.autoStop(ctx, s)
				return
			}
		}
	}
}

// autoStop claims the session for the callback path. Loses quietly if a
// manual stop got there first.
func (c *Controller) autoStop(ctx context.Context, s *session) {
	c.mu.Lock()
	if c.session != s || s.finalized {
		c.mu.Unlock()
		return
	}
	s.finalized = true
	s.autoStopped = true
	_ = c.lifecycle.Event(ctx, "stop")
	c.mu.Unlock()

	if err := s.stream.Finalize(); err != nil {
		c.logger.Errorf("encoder finalize failed: %v", err)
	}
}

// collect buffers fragments until the stream closes, then settles the
// session exactly once.
func (c *Controller) collect(s *session) {
	for data := range s.stream.Fragments() {
		frag := framering.Fragment{
			Data:      data,
			Seq:       s.seq,
			Timestamp: c.clock.Now(),
		}
		s.seq++
		if err := s.ring.Enqueue(frag); err != nil {
			c.logger.Warnf("dropping fragment: %v", err)
		}
	}
	c.finish(s, s.stream.Err())
}

func (c *Controller) finish(s *session, streamErr error) {
	ctx := context.Background()

	c.mu.Lock()
	if !s.finalized {
		// encoder closed without a stop request
		s.finalized = true
	}

	var rec *Recording
	if streamErr != nil {
		// encoder fault: buffered fragments are discarded, no
		// partial-blob recovery
		s.ring.Reset()
		s.err = fmt.Errorf("%w: %v", ErrRecordingFailed, streamErr)
		_ = c.lifecycle.Event(ctx, "fail")
	} else {
		var buf bytes.Buffer
		for _, f := range s.ring.Drain() {
			buf.Write(f.Data)
		}
		rec = &Recording{
			ID:          s.id,
			Data:        buf.Bytes(),
			MimeType:    s.mimeType,
			StartedAt:   s.startedAt,
			Duration:    c.clock.Now().Sub(s.startedAt),
			AutoStopped: s.autoStopped,
		}
		s.result = rec
		_ = c.lifecycle.Event(ctx, "finalize")
	}

	deliver := s.autoStopped && !s.manual && streamErr == nil

	// release everything before anyone observes the result
	s.cancel()
	if s.analyser != nil {
		_ = s.analyser.Close()
	}
	if err := s.stream.Close(); err != nil {
		c.logger.Warnf("stream close: %v", err)
	}
	if c.session == s {
		c.session = nil
	}
	c.mu.Unlock()

	close(s.done)

	if deliver && c.onAutoStop != nil {
		c.onAutoStop(rec)
	}
}
