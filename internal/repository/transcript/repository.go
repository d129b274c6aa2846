package transcript

import (
	"fmt"

	"github.com/a4sr3s/voxpipe/internal/domains/transcript"
	"gorm.io/gorm"
)

type GormTranscriptRepo struct {
	db *gorm.DB
}

// Append implements transcript.TranscriptRepository
func (g *GormTranscriptRepo) Append(turn *transcript.Turn) error {
	entity := NewTurnEntityFromDomain(turn)
	if err := g.db.Create(entity).Error; err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	*turn = *entity.ToDomain()
	return nil
}

// ListRecent implements transcript.TranscriptRepository
func (g *GormTranscriptRepo) ListRecent(userID string, limit int) ([]transcript.Turn, error) {
	var entities []TurnEntity
	if err := g.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}

	// reverse so the oldest of the window comes first
	turns := make([]transcript.Turn, len(entities))
	for i, entity := range entities {
		turns[len(entities)-1-i] = *entity.ToDomain()
	}
	return turns, nil
}

// NewGormTranscriptRepo creates a new GORM-based transcript repository
func NewGormTranscriptRepo(db *gorm.DB) transcript.TranscriptRepository {
	return &GormTranscriptRepo{db: db}
}
