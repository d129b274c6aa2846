package transcript

import (
	"time"

	"github.com/a4sr3s/voxpipe/internal/domains/transcript"
	"github.com/a4sr3s/voxpipe/pkg/assistant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TurnEntity represents the database entity for a conversation turn
type TurnEntity struct {
	ID        string    `gorm:"primaryKey;type:char(36);not null"`
	UserID    string    `gorm:"column:user_id;type:char(36);not null;index"`
	Role      string    `gorm:"type:varchar(16);not null"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime(3);index"`
}

// TableName returns the table name for GORM
func (TurnEntity) TableName() string {
	return "transcript_turns"
}

// BeforeCreate is a GORM hook to ensure UUID is set
func (t *TurnEntity) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// ToDomain converts TurnEntity to a domain Turn
func (t *TurnEntity) ToDomain() *transcript.Turn {
	return &transcript.Turn{
		ID:        t.ID,
		UserID:    t.UserID,
		Role:      assistant.MsgRole(t.Role),
		Text:      t.Text,
		CreatedAt: t.CreatedAt,
	}
}

// NewTurnEntityFromDomain creates a new TurnEntity from a domain Turn
func NewTurnEntityFromDomain(turn *transcript.Turn) *TurnEntity {
	return &TurnEntity{
		ID:        turn.ID,
		UserID:    turn.UserID,
		Role:      string(turn.Role),
		Text:      turn.Text,
		CreatedAt: turn.CreatedAt,
	}
}
