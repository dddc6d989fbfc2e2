package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/speakwell-backend/internal/data/seed"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
	"github.com/yungbote/speakwell-backend/internal/services"
)

// seedDemo fills the skill catalog and the demo profile so a fresh demo
// process is usable without any sign-in provider.
func seedDemo(ctx context.Context, a *App) error {
	if err := SeedSkills(ctx, a.Log, a.DB); err != nil {
		return err
	}
	res := a.Services.Profile.Load(ctx, services.ProfileIdentity{
		UserID:   DemoUserID,
		Email:    a.Cfg.DemoEmail,
		FullName: a.Cfg.DemoName,
	})
	if !res.IsLoaded() {
		return fmt.Errorf("demo profile %s: %s", res.State, res.Reason)
	}
	return nil
}

// SeedSkills upserts the built-in catalog. Existing rows keep their ids.
func SeedSkills(ctx context.Context, log *logger.Logger, db *gorm.DB) error {
	catalog, err := seed.DefaultSkills()
	if err != nil {
		return fmt.Errorf("load skill catalog: %w", err)
	}
	n, err := seed.UpsertSkills(dbctx.Context{Ctx: ctx}, db, catalog)
	if err != nil {
		return fmt.Errorf("upsert skills: %w", err)
	}
	log.Info("Skill catalog seeded", "skills", n)
	return nil
}
