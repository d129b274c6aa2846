package transcript

import (
	"time"

	"github.com/a4sr3s/voxpipe/pkg/assistant"
	"github.com/google/uuid"
)

// Turn is one utterance in a user's conversation history: what STT
// heard from the user or what the assistant replied.
// @Description One conversation turn
type Turn struct {
	ID        string            `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	UserID    string            `json:"userId"`
	Role      assistant.MsgRole `json:"role" example:"user"`
	Text      string            `json:"text" example:"What deals closed this week?"`
	CreatedAt time.Time         `json:"createdAt"`
}

// NewTurn builds a turn with a generated ID.
func NewTurn(userID string, role assistant.MsgRole, text string) *Turn {
	return &Turn{
		ID:        uuid.New().String(),
		UserID:    userID,
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// TranscriptRepository defines the interface for transcript persistence
type TranscriptRepository interface {
	// Append a finished turn
	Append(turn *Turn) error

	// List a user's most recent turns, newest last
	ListRecent(userID string, limit int) ([]Turn, error)
}
