// Package voice orchestrates one client's voice exchange: VAD-gated
// capture, transcription, assistant reply, and chunked speech playback.
package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/a4sr3s/voxpipe/internal/domains/transcript"
	"github.com/a4sr3s/voxpipe/pkg/Logger"
	"github.com/a4sr3s/voxpipe/pkg/assistant"
	"github.com/a4sr3s/voxpipe/pkg/capture"
	"github.com/a4sr3s/voxpipe/pkg/io/device"
	"github.com/a4sr3s/voxpipe/pkg/io/stt"
	"github.com/a4sr3s/voxpipe/pkg/playback"
	"github.com/a4sr3s/voxpipe/pkg/prefs"
	"github.com/a4sr3s/voxpipe/pkg/speech/chunker"
)

const systemPrompt = "You are a concise voice assistant for a CRM. " +
	"Answer in short spoken-style sentences without markup."

// ErrBusy means a previous exchange is still being processed.
var ErrBusy = errors.New("voice exchange already in progress")

// Transcriber turns a finished recording into text. *stt.Client
// satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, rec *capture.Recording) (*stt.TranscriptionResponse, error)
}

// Conn is the duplex client connection a session talks through. The
// websocket endpoint satisfies it.
type Conn interface {
	capture.Device
	playback.Sink
	SendEvent(msg device.ControlMessage) error
}

// Session drives the exchange loop for one connected client. Exactly
// one recording resolves per capture cycle: either the caller's
// explicit stop or the silence auto-stop, never both.
type Session struct {
	userID      string
	conn        Conn
	capture     *capture.Controller
	player      *playback.Controller
	prefs       *prefs.Preferences
	guard       *prefs.RateLimitGuard
	stt         Transcriber
	responder   assistant.Responder
	transcripts transcript.TranscriptRepository
	logger      *Logger.Logger

	maxChunkChars  int
	historyWindow  int
	processTimeout time.Duration

	mu   sync.Mutex
	busy bool
}

// SessionDeps bundles everything a session needs beyond the connection.
type SessionDeps struct {
	CaptureCfg  capture.Config
	PlaybackCfg playback.Config
	Store       prefs.Store
	STT         Transcriber
	Synth       playback.Synthesizer
	Responder   assistant.Responder
	Transcripts transcript.TranscriptRepository
	Logger      *Logger.Logger

	MaxChunkChars int
}

func NewSession(userID string, conn Conn, deps SessionDeps) *Session {
	if deps.MaxChunkChars <= 0 {
		deps.MaxChunkChars = chunker.DefaultMaxChars
	}
	guard := prefs.NewRateLimitGuard(deps.Store)
	s := &Session{
		userID:         userID,
		conn:           conn,
		player:         playback.New(deps.PlaybackCfg, deps.Synth, conn, guard, deps.Logger),
		prefs:          prefs.NewPreferences(deps.Store),
		guard:          guard,
		stt:            deps.STT,
		responder:      deps.Responder,
		transcripts:    deps.Transcripts,
		logger:         deps.Logger,
		maxChunkChars:  deps.MaxChunkChars,
		historyWindow:  20,
		processTimeout: 2 * time.Minute,
	}
	s.capture = capture.New(deps.CaptureCfg, conn, capture.SystemClock(), deps.Logger)
	s.capture.OnAutoStop(s.handleAutoStop)
	return s
}

// StartListening begins a VAD-gated capture cycle.
func (s *Session) StartListening(ctx context.Context) error {
	// new utterance invalidates whatever is still sounding
	s.player.Stop()
	if err := s.capture.StartRecording(ctx); err != nil {
		s.notifyError(err)
		return err
	}
	return nil
}

// StopListening finalizes the capture and, if it yielded a recording,
// runs the full exchange. A nil recording means the silence watchdog
// already claimed this cycle.
func (s *Session) StopListening(ctx context.Context) error {
	rec, err := s.capture.StopRecording(ctx)
	if err != nil {
		s.notifyError(err)
		return err
	}
	if rec == nil {
		return nil
	}
	return s.process(ctx, rec)
}

// StopSpeaking cancels the active playback sequence.
func (s *Session) StopSpeaking() {
	s.player.Stop()
}

// Listening reports whether a capture cycle is active.
func (s *Session) Listening() bool {
	return s.capture.Recording()
}

// Close tears the session down: abandons any active capture and halts
// playback.
func (s *Session) Close(ctx context.Context) {
	if _, err := s.capture.StopRecording(ctx); err != nil {
		s.logger.Warnf("session %s: capture teardown: %v", s.userID, err)
	}
	s.player.Stop()
}

func (s *Session) handleAutoStop(rec *capture.Recording) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.processTimeout)
		defer cancel()
		if err := s.process(ctx, rec); err != nil {
			s.logger.Errorf("session %s: auto-stopped exchange failed: %v", s.userID, err)
		}
	}()
}

// process runs recording -> transcript -> reply -> speech.
func (s *Session) process(ctx context.Context, rec *capture.Recording) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	resp, err := s.stt.Transcribe(ctx, rec)
	if err != nil {
		s.notifyError(err)
		return err
	}
	heard := strings.TrimSpace(resp.Text)
	if heard == "" {
		s.logger.Infof("session %s: empty transcript, nothing to do", s.userID)
		return nil
	}
	s.notify(device.ControlMessage{Type: device.CtrlTranscript, Text: heard})
	s.appendTurn(assistant.USER, heard)

	reply, err := s.responder.Respond(ctx, s.history(heard))
	if err != nil {
		s.notifyError(err)
		return err
	}
	s.notify(device.ControlMessage{Type: device.CtrlReply, Text: reply})
	s.appendTurn(assistant.ASSISTANT, reply)

	return s.speak(ctx, reply)
}

// speak plays the reply as chunked audio unless the user disabled TTS
// or today's rate limit already tripped.
func (s *Session) speak(ctx context.Context, reply string) error {
	enabled, err := s.prefs.TTSEnabled()
	if err != nil {
		s.logger.Warnf("session %s: tts preference unreadable, assuming enabled: %v", s.userID, err)
		enabled = true
	}
	if !enabled {
		return nil
	}

	chunks := chunker.ChunkText(reply, s.maxChunkChars)
	if err := s.player.PlayChunks(ctx, chunks); err != nil {
		if errors.Is(err, playback.ErrRateLimited) {
			s.notify(device.ControlMessage{Type: device.CtrlError, Reason: "speech is rate limited for today"})
			return nil
		}
		return err
	}
	return nil
}

// history assembles the prompt window: system prompt, recent persisted
// turns, then the fresh utterance.
func (s *Session) history(heard string) []assistant.Message {
	msgs := []assistant.Message{{MsgRole: assistant.SYSTEM, Content: systemPrompt}}
	turns, err := s.transcripts.ListRecent(s.userID, s.historyWindow)
	if err != nil {
		s.logger.Warnf("session %s: transcript history unavailable: %v", s.userID, err)
	}
	for _, t := range turns {
		msgs = append(msgs, assistant.Message{MsgRole: t.Role, Content: t.Text, CreatedAt: t.CreatedAt})
	}
	// the fresh utterance is already persisted, guard against echoing
	// it twice when ListRecent caught it
	if len(turns) == 0 || turns[len(turns)-1].Text != heard {
		msgs = append(msgs, assistant.Message{MsgRole: assistant.USER, Content: heard})
	}
	return msgs
}

func (s *Session) appendTurn(role assistant.MsgRole, text string) {
	if err := s.transcripts.Append(transcript.NewTurn(s.userID, role, text)); err != nil {
		s.logger.Errorf("session %s: failed to persist %s turn: %v", s.userID, role, err)
	}
}

func (s *Session) notify(msg device.ControlMessage) {
	if err := s.conn.SendEvent(msg); err != nil {
		s.logger.Warnf("session %s: event %s not delivered: %v", s.userID, msg.Type, err)
	}
}

func (s *Session) notifyError(err error) {
	s.notify(device.ControlMessage{Type: device.CtrlError, Reason: err.Error()})
}
