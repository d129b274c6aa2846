package voice_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/a4sr3s/voxpipe/internal/domains/transcript"
	"github.com/a4sr3s/voxpipe/internal/domains/voice"
	"github.com/a4sr3s/voxpipe/pkg/Logger"
	"github.com/a4sr3s/voxpipe/pkg/assistant"
	"github.com/a4sr3s/voxpipe/pkg/capture"
	"github.com/a4sr3s/voxpipe/pkg/io/device"
	"github.com/a4sr3s/voxpipe/pkg/io/stt"
	"github.com/a4sr3s/voxpipe/pkg/io/tts"
	"github.com/a4sr3s/voxpipe/pkg/playback"
	"github.com/a4sr3s/voxpipe/pkg/prefs"
)

// fakeConn is a loopback client: recording yields canned audio, every
// played chunk and event is recorded.
type fakeConn struct {
	mu     sync.Mutex
	events []device.ControlMessage
	played []string
	stream *fakeStream
}

func newFakeConn() *fakeConn { return &fakeConn{} }

func (c *fakeConn) Supports(mime string) bool { return mime == "audio/webm" }

func (c *fakeConn) Open(_ context.Context, mime string) (capture.Stream, error) {
	s := &fakeStream{mime: mime, fragments: make(chan []byte, 4)}
	s.fragments <- []byte("spoken-audio")
	c.mu.Lock()
	c.stream = s
	c.mu.Unlock()
	return s, nil
}

func (c *fakeConn) Prepare(audio []byte) (playback.Playable, error) {
	return &fakePlayable{conn: c, data: append([]byte(nil), audio...)}, nil
}

func (c *fakeConn) Stop() {}

func (c *fakeConn) SendEvent(msg device.ControlMessage) error {
	c.mu.Lock()
	c.events = append(c.events, msg)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) eventOf(t device.ControlType) (device.ControlMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.Type == t {
			return e, true
		}
	}
	return device.ControlMessage{}, false
}

func (c *fakeConn) playedList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.played...)
}

type fakeStream struct {
	mime      string
	fragments chan []byte
	once      sync.Once
}

func (s *fakeStream) Fragments() <-chan []byte            { return s.fragments }
func (s *fakeStream) Err() error                          { return nil }
func (s *fakeStream) MimeType() string                    { return s.mime }
func (s *fakeStream) Analyser() (capture.Analyser, error) { return fakeAnalyser{}, nil }
func (s *fakeStream) Finalize() error                     { s.once.Do(func() { close(s.fragments) }); return nil }
func (s *fakeStream) Close() error                        { return nil }

type fakeAnalyser struct{}

func (fakeAnalyser) Level() float64 { return 0 }
func (fakeAnalyser) Close() error   { return nil }

type fakePlayable struct {
	conn *fakeConn
	data []byte
}

func (p *fakePlayable) Play(context.Context) error {
	p.conn.mu.Lock()
	p.conn.played = append(p.conn.played, string(p.data))
	p.conn.mu.Unlock()
	return nil
}

func (p *fakePlayable) Release() {}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, *capture.Recording) (*stt.TranscriptionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stt.TranscriptionResponse{Text: f.text, GeneratedAt: time.Now()}, nil
}

type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeSynth) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []byte("AUDIO:" + text + strings.Repeat("x", 128)), nil
}

type fakeResponder struct{ reply string }

func (f *fakeResponder) Respond(context.Context, []assistant.Message) (string, error) {
	return f.reply, nil
}

type memTranscripts struct {
	mu    sync.Mutex
	turns []transcript.Turn
}

func (m *memTranscripts) Append(turn *transcript.Turn) error {
	m.mu.Lock()
	m.turns = append(m.turns, *turn)
	m.mu.Unlock()
	return nil
}

func (m *memTranscripts) ListRecent(userID string, limit int) ([]transcript.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []transcript.Turn
	for _, t := range m.turns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type harness struct {
	conn    *fakeConn
	synth   *fakeSynth
	store   prefs.Store
	turns   *memTranscripts
	session *voice.Session
}

func newHarness(t *testing.T, heard, reply string) *harness {
	t.Helper()
	h := &harness{
		conn:  newFakeConn(),
		synth: &fakeSynth{},
		store: prefs.NewMemoryStore(),
		turns: &memTranscripts{},
	}
	h.session = voice.NewSession("user-1", h.conn, voice.SessionDeps{
		CaptureCfg:  capture.Config{},
		PlaybackCfg: playback.Config{Voice: "nova", MinAudioBytes: 10},
		Store:       h.store,
		STT:         &fakeTranscriber{text: heard},
		Synth:       h.synth,
		Responder:   &fakeResponder{reply: reply},
		Transcripts: h.turns,
		Logger:      Logger.BuildLogger(false),
	})
	return h
}

func TestFullExchange(t *testing.T) {
	h := newHarness(t, "what closed this week", "Two deals closed. Great week.")
	ctx := context.Background()

	if err := h.session.StartListening(ctx); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	if !h.session.Listening() {
		t.Fatal("session not listening after start")
	}
	if err := h.session.StopListening(ctx); err != nil {
		t.Fatalf("StopListening: %v", err)
	}

	if msg, ok := h.conn.eventOf(device.CtrlTranscript); !ok || msg.Text != "what closed this week" {
		t.Errorf("transcript event = %+v, ok=%v", msg, ok)
	}
	if msg, ok := h.conn.eventOf(device.CtrlReply); !ok || msg.Text != "Two deals closed. Great week." {
		t.Errorf("reply event = %+v, ok=%v", msg, ok)
	}

	turns, err := h.turns.ListRecent("user-1", 10)
	if err != nil || len(turns) != 2 {
		t.Fatalf("persisted %d turns (%v), want 2", len(turns), err)
	}
	if turns[0].Role != assistant.USER || turns[1].Role != assistant.ASSISTANT {
		t.Errorf("turn roles = %s, %s", turns[0].Role, turns[1].Role)
	}

	if played := h.conn.playedList(); len(played) == 0 {
		t.Error("reply was never spoken")
	}
}

func TestDisabledTTSSkipsSpeech(t *testing.T) {
	h := newHarness(t, "hello", "Hi there.")
	if err := prefs.NewPreferences(h.store).SetTTSEnabled(false); err != nil {
		t.Fatalf("SetTTSEnabled: %v", err)
	}

	ctx := context.Background()
	if err := h.session.StartListening(ctx); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	if err := h.session.StopListening(ctx); err != nil {
		t.Fatalf("StopListening: %v", err)
	}

	if _, ok := h.conn.eventOf(device.CtrlReply); !ok {
		t.Error("reply event missing")
	}
	if played := h.conn.playedList(); len(played) != 0 {
		t.Errorf("played %d chunks with TTS disabled", len(played))
	}
}

func TestRateLimitedReplyStaysTextOnly(t *testing.T) {
	h := newHarness(t, "hello", "Hi there.")
	h.synth.err = &tts.RateLimitError{Status: 429, Message: "too many"}

	ctx := context.Background()
	if err := h.session.StartListening(ctx); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	if err := h.session.StopListening(ctx); err != nil {
		t.Fatalf("StopListening: %v", err)
	}

	if _, ok := h.conn.eventOf(device.CtrlError); !ok {
		t.Error("rate limit error event missing")
	}
	limited, err := prefs.NewRateLimitGuard(h.store).Limited()
	if err != nil || !limited {
		t.Errorf("rate limit stamp = %v, %v, want true", limited, err)
	}
	if played := h.conn.playedList(); len(played) != 0 {
		t.Errorf("played %d chunks after rate limit", len(played))
	}
}

func TestEmptyTranscriptEndsQuietly(t *testing.T) {
	h := newHarness(t, "   ", "unused")

	ctx := context.Background()
	if err := h.session.StartListening(ctx); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	if err := h.session.StopListening(ctx); err != nil {
		t.Fatalf("StopListening: %v", err)
	}

	if _, ok := h.conn.eventOf(device.CtrlReply); ok {
		t.Error("reply event sent for empty transcript")
	}
	if turns, _ := h.turns.ListRecent("user-1", 10); len(turns) != 0 {
		t.Errorf("persisted %d turns for empty transcript", len(turns))
	}
}
