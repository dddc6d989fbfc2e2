package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/domain/evaluation"
	"github.com/yungbote/speakwell-backend/internal/domain/skills"
	"github.com/yungbote/speakwell-backend/internal/domain/speech"
)

func SeedProfile(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.Profile {
	tb.Helper()
	p := &types.Profile{
		ID:       uuid.New(),
		Email:    email,
		FullName: "Test Speaker",
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
	return p
}

func SeedSkill(tb testing.TB, ctx context.Context, tx *gorm.DB, name, category string) *types.Skill {
	tb.Helper()
	s := &types.Skill{
		ID:         uuid.New(),
		Name:       name,
		Category:   category,
		Difficulty: skills.DifficultyBeginner,
		IsActive:   true,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed skill: %v", err)
	}
	return s
}

func SeedUserSkill(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, skillID uuid.UUID, evaluationCount int) *types.UserSkill {
	tb.Helper()
	return SeedUserSkillHistory(tb, ctx, tx, userID, skillID, evaluationCount > 0, evaluationCount)
}

// SeedUserSkillHistory sets the evaluation flag and counter independently.
func SeedUserSkillHistory(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, skillID uuid.UUID, hasEvaluations bool, evaluationCount int) *types.UserSkill {
	tb.Helper()
	us := &types.UserSkill{
		ID:              uuid.New(),
		UserID:          userID,
		SkillID:         skillID,
		CurrentLevel:    1,
		TargetLevel:     5,
		HasEvaluations:  hasEvaluations,
		EvaluationCount: evaluationCount,
	}
	if err := tx.WithContext(ctx).Create(us).Error; err != nil {
		tb.Fatalf("seed user skill: %v", err)
	}
	return us
}

func SeedSpeech(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, title string, skillIDs ...uuid.UUID) *types.Speech {
	tb.Helper()
	s := &types.Speech{
		ID:     uuid.New(),
		UserID: userID,
		Title:  title,
		Status: speech.StatusDraft,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed speech: %v", err)
	}
	for _, id := range skillIDs {
		ss := types.SpeechSkill{ID: uuid.New(), SpeechID: s.ID, SkillID: id}
		if err := tx.WithContext(ctx).Create(&ss).Error; err != nil {
			tb.Fatalf("seed speech skill: %v", err)
		}
		s.Skills = append(s.Skills, ss)
	}
	return s
}

// SeedEvaluation writes an evaluation with one score per entry in scores.
func SeedEvaluation(tb testing.TB, ctx context.Context, tx *gorm.DB, speechID uuid.UUID, name string, scores map[uuid.UUID]int) *types.Evaluation {
	tb.Helper()
	e := &types.Evaluation{
		ID:             uuid.New(),
		SpeechID:       speechID,
		EvaluatorName:  name,
		EvaluationType: evaluation.TypeForName(name),
		IsAnonymous:    evaluation.TypeForName(name) == evaluation.TypeAnonymous,
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed evaluation: %v", err)
	}
	for skillID, v := range scores {
		sc := types.EvaluationSkillScore{ID: uuid.New(), EvaluationID: e.ID, SkillID: skillID, Score: v}
		if err := tx.WithContext(ctx).Create(&sc).Error; err != nil {
			tb.Fatalf("seed evaluation score: %v", err)
		}
		e.Scores = append(e.Scores, sc)
	}
	return e
}
