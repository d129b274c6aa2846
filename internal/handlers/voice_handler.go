package handlers

import (
	"net/http"
	"strconv"

	"github.com/a4sr3s/voxpipe/internal/domains/transcript"
	"github.com/a4sr3s/voxpipe/internal/domains/voice"
	"github.com/a4sr3s/voxpipe/pkg/Logger"
	"github.com/a4sr3s/voxpipe/pkg/assistant"
	"github.com/a4sr3s/voxpipe/pkg/capture"
	"github.com/a4sr3s/voxpipe/pkg/io/device"
	wsdevice "github.com/a4sr3s/voxpipe/pkg/io/device/websocket"
	"github.com/a4sr3s/voxpipe/pkg/playback"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// VoiceDeps is everything the voice websocket needs to assemble a
// session per connection.
type VoiceDeps struct {
	CaptureCfg    capture.Config
	PlaybackCfg   playback.Config
	MaxChunkChars int
	Stores        StoreFactory
	STT           voice.Transcriber
	Synth         playback.Synthesizer
	Responder     assistant.Responder
	Transcripts   transcript.TranscriptRepository
}

// VoiceHandler owns the websocket voice route and transcript history
type VoiceHandler struct {
	deps     VoiceDeps
	upgrader websocket.Upgrader
	logger   *Logger.Logger
}

// NewVoiceHandler creates a new voice handler
func NewVoiceHandler(deps VoiceDeps, logger *Logger.Logger) *VoiceHandler {
	return &VoiceHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Stream handles the voice websocket
// @Summary Voice websocket
// @Description Upgrade to a duplex voice connection: audio fragments and level samples in, transcript, reply and synthesized speech out
// @Tags Speech
// @Security BearerAuth
// @Success 101 "Switching Protocols"
// @Failure 401 {object} ErrorResponse "User not authenticated"
// @Router /speech/stream [get]
func (h *VoiceHandler) Stream(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User not authenticated"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("websocket upgrade failed: %v", err)
		return
	}

	ep := wsdevice.New(conn, device.Capabilities{AudioSource: true, AudioSink: true}, h.logger)
	session := voice.NewSession(userID, ep, voice.SessionDeps{
		CaptureCfg:    h.deps.CaptureCfg,
		PlaybackCfg:   h.deps.PlaybackCfg,
		Store:         h.deps.Stores(userID),
		STT:           h.deps.STT,
		Synth:         h.deps.Synth,
		Responder:     h.deps.Responder,
		Transcripts:   h.deps.Transcripts,
		Logger:        h.logger,
		MaxChunkChars: h.deps.MaxChunkChars,
	})

	ctx := c.Request.Context()
	ep.OnCommand(func(msg device.ControlMessage) {
		switch msg.Type {
		case device.CtrlListenStart:
			go func() {
				if err := session.StartListening(ctx); err != nil {
					h.logger.Warnf("user %s: listen start: %v", userID, err)
				}
			}()
		case device.CtrlListenStop:
			go func() {
				if err := session.StopListening(ctx); err != nil {
					h.logger.Warnf("user %s: listen stop: %v", userID, err)
				}
			}()
		case device.CtrlSpeechStop:
			session.StopSpeaking()
		default:
			h.logger.Warnf("user %s: unknown voice command %q", userID, msg.Type)
		}
	})

	h.logger.Infof("voice session %s connected for user %s", ep.ID(), userID)
	ep.Run() // blocks until the client disconnects

	session.Close(ctx)
	if err := ep.Close(); err != nil {
		h.logger.Debugf("endpoint close: %v", err)
	}
	h.logger.Infof("voice session %s ended for user %s", ep.ID(), userID)
}

// History handles fetching recent conversation turns
// @Summary Get transcript history
// @Description Get the authenticated user's recent conversation turns
// @Tags Speech
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum turns to return" default(20)
// @Success 200 {object} TranscriptHistoryResponse "Recent turns"
// @Failure 401 {object} ErrorResponse "User not authenticated"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /speech/history [get]
func (h *VoiceHandler) History(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User not authenticated"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	turns, err := h.deps.Transcripts.ListRecent(userID, limit)
	if err != nil {
		h.logger.Errorf("transcript history error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, TranscriptHistoryResponse{Turns: turns})
}
