package handlers

import (
	"net/http"

	"github.com/a4sr3s/voxpipe/pkg/Logger"
	"github.com/a4sr3s/voxpipe/pkg/prefs"
	"github.com/gin-gonic/gin"
)

// StoreFactory yields the preference store scoped to one user.
type StoreFactory func(userID string) prefs.Store

// SpeechPrefsHandler exposes the persisted speech preferences: the TTS
// toggle and the daily rate-limit state.
type SpeechPrefsHandler struct {
	stores StoreFactory
	logger *Logger.Logger
}

// NewSpeechPrefsHandler creates a new speech preferences handler
func NewSpeechPrefsHandler(stores StoreFactory, logger *Logger.Logger) *SpeechPrefsHandler {
	return &SpeechPrefsHandler{
		stores: stores,
		logger: logger,
	}
}

// GetPrefs handles reading the speech preference state
// @Summary Get speech preferences
// @Description Get the TTS toggle and today's rate-limit state
// @Tags Speech
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SpeechPrefsResponse "Current speech preferences"
// @Failure 401 {object} ErrorResponse "User not authenticated"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /speech/prefs [get]
func (h *SpeechPrefsHandler) GetPrefs(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User not authenticated"})
		return
	}

	store := h.stores(userID)
	enabled, err := prefs.NewPreferences(store).TTSEnabled()
	if err != nil {
		h.logger.Errorf("get speech prefs error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	limited, err := prefs.NewRateLimitGuard(store).Limited()
	if err != nil {
		h.logger.Errorf("get rate limit state error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, SpeechPrefsResponse{
		TTSEnabled:  enabled,
		RateLimited: limited,
	})
}

// UpdatePrefs handles toggling TTS
// @Summary Update speech preferences
// @Description Enable or disable spoken replies
// @Tags Speech
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateSpeechPrefsRequest true "Speech preference update"
// @Success 200 {object} SpeechPrefsResponse "Updated speech preferences"
// @Failure 400 {object} ErrorResponse "Invalid request data"
// @Failure 401 {object} ErrorResponse "User not authenticated"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /speech/prefs [put]
func (h *SpeechPrefsHandler) UpdatePrefs(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User not authenticated"})
		return
	}

	var req UpdateSpeechPrefsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TTSEnabled == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request data"})
		return
	}

	store := h.stores(userID)
	if err := prefs.NewPreferences(store).SetTTSEnabled(*req.TTSEnabled); err != nil {
		h.logger.Errorf("update speech prefs error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	limited, err := prefs.NewRateLimitGuard(store).Limited()
	if err != nil {
		limited = false
		h.logger.Warnf("rate limit state unreadable after update: %v", err)
	}

	c.JSON(http.StatusOK, SpeechPrefsResponse{
		TTSEnabled:  *req.TTSEnabled,
		RateLimited: limited,
	})
}
