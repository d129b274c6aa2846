package database

import (
	transcriptRepo "github.com/a4sr3s/voxpipe/internal/repository/transcript"
	userRepo "github.com/a4sr3s/voxpipe/internal/repository/user"
	"gorm.io/gorm"
)

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&userRepo.UserEntity{},
		&transcriptRepo.TurnEntity{},
	)
}
