package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/speakwell-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(domain.Models()...)
}

// EnsureIndexes adds postgres-only partial indexes that gorm tags cannot express.
func EnsureIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_speeches_public_share_token
		ON speeches (share_token)
		WHERE is_public = true AND share_token IS NOT NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_speeches_public_share_token: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_user_skills_unprotected
		ON user_skills (user_id, skill_id)
		WHERE has_evaluations = false;
	`).Error; err != nil {
		return fmt.Errorf("create idx_user_skills_unprotected: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_evaluations_speech_created_at
		ON evaluations (speech_id, created_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_evaluations_speech_created_at: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "dialect", s.dialect)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if s.dialect == DialectPostgres {
		if err := EnsureIndexes(s.db); err != nil {
			s.log.Error("Index creation failed", "error", err)
			return err
		}
	}
	return nil
}
