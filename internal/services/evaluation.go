package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/speakwell-backend/internal/data/repos"
	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/domain/evaluation"
	"github.com/yungbote/speakwell-backend/internal/feedback"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

const (
	MsgInvalidEmail = "Please enter a valid email address"

	maxEvaluatorNameRunes = 120
	maxFeedbackTextRunes  = 5000

	SourceShareLink = "share_link"
	SourceWritten   = "owner_written"
)

type EvaluationForm struct {
	Speech *types.Speech  `json:"speech"`
	Skills []*types.Skill `json:"skills"`
}

type SubmitEvaluationInput struct {
	EvaluatorName       string            `json:"evaluator_name"`
	EvaluatorEmail      string            `json:"evaluator_email"`
	Scores              map[uuid.UUID]int `json:"scores"`
	WhatWentWell        string            `json:"what_went_well"`
	WhatCouldBeImproved string            `json:"what_could_be_improved"`
	Source              string            `json:"source,omitempty"`
	UserAgent           string            `json:"-"`
}

type SubmitResult struct {
	Evaluation *types.Evaluation `json:"evaluation"`
	Stats      feedback.Stats    `json:"stats"`
}

type EvaluationService interface {
	GetEvaluationForm(ctx context.Context, token string) (*EvaluationForm, error)
	Submit(ctx context.Context, token string, in SubmitEvaluationInput) (*SubmitResult, error)
	// RecordWrittenEvaluation stores feedback the owner collected outside the
	// share link, such as a paper form.
	RecordWrittenEvaluation(ctx context.Context, userID, speechID uuid.UUID, in SubmitEvaluationInput) (*SubmitResult, error)
}

type evaluationService struct {
	db             *gorm.DB
	log            *logger.Logger
	speechRepo     repos.SpeechRepo
	evaluationRepo repos.EvaluationRepo
	scoreRepo      repos.ScoreRepo
	userSkillRepo  repos.UserSkillRepo
	notifier       Notifier
}

func NewEvaluationService(db *gorm.DB, log *logger.Logger, rs repos.Set, notifier Notifier) EvaluationService {
	if notifier == nil {
		notifier = NewNotifier(nil)
	}
	return &evaluationService{
		db:             db,
		log:            log.With("service", "EvaluationService"),
		speechRepo:     rs.Speech,
		evaluationRepo: rs.Evaluation,
		scoreRepo:      rs.Score,
		userSkillRepo:  rs.UserSkill,
		notifier:       notifier,
	}
}

func (es *evaluationService) sharedSpeech(ctx context.Context, token string) (*types.Speech, error) {
	sp, err := es.speechRepo.GetPublicByShareToken(dbctx.Context{Ctx: ctx}, strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("lookup share token: %w", err)
	}
	if sp == nil {
		return nil, fmt.Errorf("shared speech: %w", types.ErrNotFound)
	}
	return sp, nil
}

func (es *evaluationService) GetEvaluationForm(ctx context.Context, token string) (*EvaluationForm, error) {
	sp, err := es.sharedSpeech(ctx, token)
	if err != nil {
		return nil, err
	}
	form := &EvaluationForm{Speech: sp, Skills: make([]*types.Skill, 0, len(sp.Skills))}
	for _, ss := range sp.Skills {
		if ss.Skill != nil {
			form.Skills = append(form.Skills, ss.Skill)
		}
	}
	return form, nil
}

// normalize trims the free-text fields and collects every problem with the
// submission against the speech's skills.
func normalizeSubmission(in *SubmitEvaluationInput, skillIDs []uuid.UUID) error {
	in.EvaluatorName = strings.TrimSpace(in.EvaluatorName)
	in.EvaluatorEmail = strings.TrimSpace(in.EvaluatorEmail)
	in.WhatWentWell = strings.TrimSpace(in.WhatWentWell)
	in.WhatCouldBeImproved = strings.TrimSpace(in.WhatCouldBeImproved)

	err := feedback.ValidateSubmission(feedback.Submission{
		EvaluatorName:       in.EvaluatorName,
		Scores:              in.Scores,
		WhatWentWell:        in.WhatWentWell,
		WhatCouldBeImproved: in.WhatCouldBeImproved,
	}, skillIDs)

	var problems []string
	var ve *feedback.ValidationError
	if errors.As(err, &ve) {
		problems = append(problems, ve.Problems...)
	}
	if in.EvaluatorEmail != "" {
		if _, perr := mail.ParseAddress(in.EvaluatorEmail); perr != nil {
			problems = append(problems, MsgInvalidEmail)
		}
	}
	if len(problems) > 0 {
		return &feedback.ValidationError{Problems: problems}
	}
	if len([]rune(in.EvaluatorName)) > maxEvaluatorNameRunes {
		return fmt.Errorf("evaluator name exceeds %d characters: %w", maxEvaluatorNameRunes, types.ErrInvalidArgument)
	}
	if len([]rune(in.WhatWentWell)) > maxFeedbackTextRunes || len([]rune(in.WhatCouldBeImproved)) > maxFeedbackTextRunes {
		return fmt.Errorf("feedback exceeds %d characters: %w", maxFeedbackTextRunes, types.ErrInvalidArgument)
	}
	return nil
}

func (es *evaluationService) Submit(ctx context.Context, token string, in SubmitEvaluationInput) (*SubmitResult, error) {
	sp, err := es.sharedSpeech(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := normalizeSubmission(&in, sp.SkillIDs()); err != nil {
		return nil, err
	}
	if in.Source == "" {
		in.Source = SourceShareLink
	}
	return es.record(ctx, sp, in, evaluation.TypeForName(in.EvaluatorName))
}

func (es *evaluationService) RecordWrittenEvaluation(ctx context.Context, userID, speechID uuid.UUID, in SubmitEvaluationInput) (*SubmitResult, error) {
	sp, err := es.speechRepo.GetByID(dbctx.Context{Ctx: ctx}, speechID)
	if err != nil {
		return nil, fmt.Errorf("load speech: %w", err)
	}
	if sp == nil {
		return nil, fmt.Errorf("speech %s: %w", speechID, types.ErrNotFound)
	}
	if sp.UserID != userID {
		return nil, fmt.Errorf("speech %s: %w", speechID, types.ErrForbidden)
	}
	if err := normalizeSubmission(&in, sp.SkillIDs()); err != nil {
		return nil, err
	}
	in.Source = SourceWritten
	return es.record(ctx, sp, in, evaluation.TypeWritten)
}

// record writes the evaluation, one score per attached skill, and the owner's
// user-skill counters in a single transaction.
func (es *evaluationService) record(ctx context.Context, sp *types.Speech, in SubmitEvaluationInput, typ evaluation.Type) (*SubmitResult, error) {
	skillIDs := sp.SkillIDs()
	meta, err := json.Marshal(map[string]any{
		"source":      in.Source,
		"user_agent":  in.UserAgent,
		"skill_count": len(skillIDs),
	})
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	eval := &types.Evaluation{
		SpeechID:            sp.ID,
		EvaluatorName:       in.EvaluatorName,
		EvaluatorEmail:      in.EvaluatorEmail,
		EvaluationType:      typ,
		WhatWentWell:        in.WhatWentWell,
		WhatCouldBeImproved: in.WhatCouldBeImproved,
		IsAnonymous:         typ == evaluation.TypeAnonymous,
		Metadata:            datatypes.JSON(meta),
	}

	err = es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := es.evaluationRepo.Create(dbc, []*types.Evaluation{eval}); err != nil {
			return fmt.Errorf("create evaluation: %w", err)
		}
		scores := make([]*types.EvaluationSkillScore, 0, len(skillIDs))
		for _, id := range skillIDs {
			scores = append(scores, &types.EvaluationSkillScore{
				EvaluationID: eval.ID,
				SkillID:      id,
				Score:        in.Scores[id],
			})
		}
		created, err := es.scoreRepo.Create(dbc, scores)
		if err != nil {
			return fmt.Errorf("create scores: %w", err)
		}
		eval.Scores = make([]types.EvaluationSkillScore, 0, len(created))
		for _, sc := range created {
			eval.Scores = append(eval.Scores, *sc)
		}
		if err := es.userSkillRepo.EnsureForUser(dbc, sp.UserID, skillIDs); err != nil {
			return fmt.Errorf("track skills: %w", err)
		}
		if err := es.userSkillRepo.IncrementEvaluationCounts(dbc, sp.UserID, skillIDs); err != nil {
			return fmt.Errorf("bump skill counters: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &SubmitResult{Evaluation: eval}
	evals, err := es.evaluationRepo.ListBySpeechIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{sp.ID})
	if err != nil {
		es.log.Warn("Evaluation stored but stats reload failed", "speech_id", sp.ID, "error", err)
		res.Stats = feedback.Aggregate(sp.Skills, []*types.Evaluation{eval})
	} else {
		res.Stats = feedback.Aggregate(sp.Skills, evals)
	}
	es.log.Info("Evaluation recorded", "speech_id", sp.ID, "evaluation_id", eval.ID, "type", typ, "scores", len(eval.Scores))
	es.notifier.EvaluationReceived(sp.UserID, sp, eval, res.Stats)
	return res, nil
}
