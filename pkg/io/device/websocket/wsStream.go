package websocket

import (
	"context"
	"sync"

	"github.com/a4sr3s/voxpipe/pkg/capture"
	"github.com/a4sr3s/voxpipe/pkg/io/device"
)

// wsStream is one live recording over the connection. Fragments arrive
// as binary messages, the amplitude samples as level controls.
type wsStream struct {
	ep        *wsEndpoint
	fragments chan []byte
	opened    chan error
	analyser  *levelMeter

	mu       sync.Mutex
	mime     string
	err      error
	finished bool
	notified bool
}

// Fragments implements capture.Stream.
func (s *wsStream) Fragments() <-chan []byte {
	return s.fragments
}

// Err implements capture.Stream.
func (s *wsStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Analyser implements capture.Stream.
func (s *wsStream) Analyser() (capture.Analyser, error) {
	return s.analyser, nil
}

// MimeType implements capture.Stream: the encoding requested at Open,
// or the one the client recorder reported in its ack when the choice
// was left to the device.
func (s *wsStream) MimeType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mime
}

func (s *wsStream) setMime(m string) {
	s.mu.Lock()
	s.mime = m
	s.mu.Unlock()
}

// Finalize implements capture.Stream: asks the client recorder to
// flush. The fragment channel closes once record_end arrives.
func (s *wsStream) Finalize() error {
	return s.ep.writeControl(device.ControlMessage{Type: device.CtrlRecordStop, Mime: s.MimeType()})
}

// Close implements capture.Stream.
func (s *wsStream) Close() error {
	s.ep.clearStream(s)
	s.finish()
	return nil
}

func (s *wsStream) notifyOpened(err error) {
	s.mu.Lock()
	if s.notified {
		s.mu.Unlock()
		return
	}
	s.notified = true
	s.mu.Unlock()
	s.opened <- err
}

func (s *wsStream) finish() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.mu.Unlock()
	close(s.fragments)
}

func (s *wsStream) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.finish()
}

// levelMeter holds the latest client-reported amplitude, 0-255.
type levelMeter struct {
	mu    sync.Mutex
	level float64
}

func (m *levelMeter) set(v float64) {
	m.mu.Lock()
	m.level = v
	m.mu.Unlock()
}

// Level implements capture.Analyser.
func (m *levelMeter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Close implements capture.Analyser.
func (m *levelMeter) Close() error { return nil }

// wsPlayable is one prepared playback chunk, played by sending a play
// header then the audio frame, and acked by seq.
type wsPlayable struct {
	ep    *wsEndpoint
	seq   int
	audio []byte
	ack   chan struct{}
	halt  chan struct{}
}

// Play implements playback.Playable.
func (p *wsPlayable) Play(ctx context.Context) error {
	if err := p.ep.writeControl(device.ControlMessage{Type: device.CtrlPlay, Seq: p.seq}); err != nil {
		return err
	}
	if err := p.ep.writeBinary(p.audio); err != nil {
		return err
	}
	select {
	case <-p.ack:
		return nil
	case <-p.halt:
		return errHalted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release implements playback.Playable.
func (p *wsPlayable) Release() {
	p.ep.mu.Lock()
	delete(p.ep.acks, p.seq)
	p.ep.mu.Unlock()
	p.audio = nil
}
