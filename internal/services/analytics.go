package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/speakwell-backend/internal/data/repos"
	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/feedback"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

type SkillProgress struct {
	UserSkill     *types.UserSkill `json:"user_skill"`
	AverageRating float64          `json:"average_rating"`
	ScoreCount    int              `json:"score_count"`
}

// Progress is the summary shown on the profile page.
type Progress struct {
	TrackedSkills     int             `json:"tracked_skills"`
	EvaluatedSkills   int             `json:"evaluated_skills"`
	AverageRating     float64         `json:"average_rating"`
	TotalEvaluations  int64           `json:"total_evaluations"`
	TotalSpeeches     int             `json:"total_speeches"`
	NewSpeeches       int             `json:"new_speeches"`
	EvaluatedSpeeches int             `json:"evaluated_speeches"`
	Skills            []SkillProgress `json:"skills"`
}

type AnalyticsService interface {
	ProfileProgress(ctx context.Context, userID uuid.UUID) (*Progress, error)
}

type analyticsService struct {
	log            *logger.Logger
	skills         SkillService
	speechRepo     repos.SpeechRepo
	evaluationRepo repos.EvaluationRepo
}

func NewAnalyticsService(log *logger.Logger, rs repos.Set, skills SkillService) AnalyticsService {
	return &analyticsService{
		log:            log.With("service", "AnalyticsService"),
		skills:         skills,
		speechRepo:     rs.Speech,
		evaluationRepo: rs.Evaluation,
	}
}

func (a *analyticsService) ProfileProgress(ctx context.Context, userID uuid.UUID) (*Progress, error) {
	var (
		userSkills []*types.UserSkill
		stats      []SkillStat
		speeches   []*types.Speech
		counts     map[uuid.UUID]int
		total      int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		userSkills, err = a.skills.ListUserSkills(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = a.skills.EvaluationStats(gctx, userID)
		return err
	})
	g.Go(func() error {
		dbc := dbctx.Context{Ctx: gctx}
		var err error
		speeches, err = a.speechRepo.ListByUser(dbc, userID)
		if err != nil {
			return fmt.Errorf("list speeches: %w", err)
		}
		ids := make([]uuid.UUID, 0, len(speeches))
		for _, sp := range speeches {
			ids = append(ids, sp.ID)
		}
		counts, err = a.evaluationRepo.CountBySpeechIDs(dbc, ids)
		if err != nil {
			return fmt.Errorf("count evaluations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		total, err = a.evaluationRepo.CountForUser(dbctx.Context{Ctx: gctx}, userID)
		if err != nil {
			return fmt.Errorf("count evaluations: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]SkillStat, len(stats))
	for _, st := range stats {
		byID[st.SkillID] = st
	}

	out := &Progress{
		TrackedSkills:    len(userSkills),
		EvaluatedSkills:  len(stats),
		TotalEvaluations: total,
		TotalSpeeches:    len(speeches),
		Skills:           make([]SkillProgress, 0, len(userSkills)),
	}
	// Mean of per-skill means, as the profile page shows it; the speech-level
	// figure elsewhere is flattened.
	if len(stats) > 0 {
		var sum float64
		for _, st := range stats {
			sum += st.AverageRating
		}
		out.AverageRating = feedback.Round(sum/float64(len(stats)), 1)
	}
	for _, us := range userSkills {
		st := byID[us.SkillID]
		out.Skills = append(out.Skills, SkillProgress{
			UserSkill:     us,
			AverageRating: st.AverageRating,
			ScoreCount:    st.EvaluationCount,
		})
	}
	for _, sp := range speeches {
		if counts[sp.ID] > 0 {
			out.EvaluatedSpeeches++
		} else {
			out.NewSpeeches++
		}
	}
	return out, nil
}
