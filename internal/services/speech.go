package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	dbstore "github.com/yungbote/speakwell-backend/internal/data/db"
	"github.com/yungbote/speakwell-backend/internal/data/repos"
	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/domain/speech"
	"github.com/yungbote/speakwell-backend/internal/feedback"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/gcp"
	"github.com/yungbote/speakwell-backend/internal/platform/localmedia"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

const (
	shareTokenBytes           = 24
	DefaultMaxRecordingBytes  = 512 << 20
	maxTitleRunes             = 200
	maxSpeechDescriptionRunes = 5000
)

var recordingExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".mov": true, ".m4v": true,
	".mp3": true, ".m4a": true, ".wav": true, ".ogg": true,
}

type CreateSpeechInput struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	SkillIDs    []uuid.UUID `json:"skill_ids"`
}

// UpdateSpeechInput carries a partial update. Nil fields are left alone.
type UpdateSpeechInput struct {
	Title              *string        `json:"title,omitempty"`
	Description        *string        `json:"description,omitempty"`
	Status             *speech.Status `json:"status,omitempty"`
	DeliveredDate      *time.Time     `json:"delivered_date,omitempty"`
	ClearDeliveredDate bool           `json:"clear_delivered_date,omitempty"`
}

type ShareLink struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type SpeechOverview struct {
	Speech *types.Speech  `json:"speech"`
	Stats  feedback.Stats `json:"stats"`
}

type SpeechDetail struct {
	Speech      *types.Speech       `json:"speech"`
	Evaluations []*types.Evaluation `json:"evaluations"`
	Stats       feedback.Stats      `json:"stats"`
	Summary     feedback.Summary    `json:"summary"`
	ShareURL    string              `json:"share_url,omitempty"`
}

type SpeechConfig struct {
	// PublicBaseURL is the origin evaluators open; share links are
	// <PublicBaseURL>/evaluate/<token>.
	PublicBaseURL     string
	MaxRecordingBytes int64
}

type SpeechService interface {
	CreateSpeech(ctx context.Context, userID uuid.UUID, in CreateSpeechInput) (*types.Speech, error)
	AttachSkills(ctx context.Context, speechID uuid.UUID, skillIDs []uuid.UUID) ([]*types.SpeechSkill, error)
	UpdateSpeech(ctx context.Context, userID, speechID uuid.UUID, in UpdateSpeechInput) (*types.Speech, error)
	UpdateSpeechSkills(ctx context.Context, userID, speechID uuid.UUID, skillIDs []uuid.UUID) (*types.Speech, error)
	DeleteSpeech(ctx context.Context, userID, speechID uuid.UUID) error
	GenerateShareToken(ctx context.Context, userID, speechID uuid.UUID) (*ShareLink, error)
	GetBySharedToken(ctx context.Context, token string) (*types.Speech, error)
	GetOwnedSpeech(ctx context.Context, userID, speechID uuid.UUID) (*types.Speech, error)
	ListUserSpeeches(ctx context.Context, userID uuid.UUID) ([]SpeechOverview, error)
	GetSpeechDetail(ctx context.Context, userID, speechID uuid.UUID) (*SpeechDetail, error)
	UploadRecording(ctx context.Context, userID, speechID uuid.UUID, filename string, r io.Reader) (*types.Speech, error)
	ShareURL(token string) string
}

type speechService struct {
	db              *gorm.DB
	log             *logger.Logger
	skillRepo       repos.SkillRepo
	userSkillRepo   repos.UserSkillRepo
	speechRepo      repos.SpeechRepo
	speechSkillRepo repos.SpeechSkillRepo
	evaluationRepo  repos.EvaluationRepo
	bucket          gcp.BucketService
	media           localmedia.Tools
	notifier        Notifier
	cfg             SpeechConfig
}

func NewSpeechService(
	db *gorm.DB,
	log *logger.Logger,
	rs repos.Set,
	bucket gcp.BucketService,
	media localmedia.Tools,
	notifier Notifier,
	cfg SpeechConfig,
) SpeechService {
	if notifier == nil {
		notifier = NewNotifier(nil)
	}
	if media == nil {
		media = localmedia.New(log, "")
	}
	if cfg.MaxRecordingBytes <= 0 {
		cfg.MaxRecordingBytes = DefaultMaxRecordingBytes
	}
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	return &speechService{
		db:              db,
		log:             log.With("service", "SpeechService"),
		skillRepo:       rs.Skill,
		userSkillRepo:   rs.UserSkill,
		speechRepo:      rs.Speech,
		speechSkillRepo: rs.SpeechSkill,
		evaluationRepo:  rs.Evaluation,
		bucket:          bucket,
		media:           media,
		notifier:        notifier,
		cfg:             cfg,
	}
}

func (s *speechService) ShareURL(token string) string {
	if token == "" {
		return ""
	}
	return s.cfg.PublicBaseURL + "/evaluate/" + token
}

// ownedSpeech loads a speech and checks that userID owns it.
func (s *speechService) ownedSpeech(dbc dbctx.Context, userID, speechID uuid.UUID) (*types.Speech, error) {
	sp, err := s.speechRepo.GetByID(dbc, speechID)
	if err != nil {
		return nil, fmt.Errorf("load speech: %w", err)
	}
	if sp == nil {
		return nil, fmt.Errorf("speech %s: %w", speechID, types.ErrNotFound)
	}
	if sp.UserID != userID {
		return nil, fmt.Errorf("speech %s: %w", speechID, types.ErrForbidden)
	}
	return sp, nil
}

func (s *speechService) GetOwnedSpeech(ctx context.Context, userID, speechID uuid.UUID) (*types.Speech, error) {
	return s.ownedSpeech(dbctx.Context{Ctx: ctx}, userID, speechID)
}

func (s *speechService) CreateSpeech(ctx context.Context, userID uuid.UUID, in CreateSpeechInput) (*types.Speech, error) {
	title := strings.TrimSpace(in.Title)
	if err := feedback.ValidateSpeech(title, in.SkillIDs); err != nil {
		return nil, err
	}
	if len([]rune(title)) > maxTitleRunes {
		return nil, fmt.Errorf("title exceeds %d characters: %w", maxTitleRunes, types.ErrInvalidArgument)
	}
	desc := strings.TrimSpace(in.Description)
	if len([]rune(desc)) > maxSpeechDescriptionRunes {
		return nil, fmt.Errorf("description exceeds %d characters: %w", maxSpeechDescriptionRunes, types.ErrInvalidArgument)
	}

	var created *types.Speech
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		rows, err := s.speechRepo.Create(dbc, []*types.Speech{{
			UserID:      userID,
			Title:       title,
			Description: desc,
			Status:      speech.StatusDraft,
		}})
		if err != nil {
			return fmt.Errorf("create speech: %w", err)
		}
		sp := rows[0]
		attached, err := s.attachSkills(dbc, sp.ID, in.SkillIDs)
		if err != nil {
			return err
		}
		skillIDs := make([]uuid.UUID, 0, len(attached))
		for _, row := range attached {
			skillIDs = append(skillIDs, row.SkillID)
		}
		if err := s.userSkillRepo.EnsureForUser(dbc, userID, skillIDs); err != nil {
			return fmt.Errorf("track skills: %w", err)
		}
		created, err = s.speechRepo.GetByID(dbc, sp.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Speech created", "speech_id", created.ID, "user_id", userID, "skills", len(created.Skills))
	s.notifier.SpeechUpdated(userID, created)
	return created, nil
}

func (s *speechService) AttachSkills(ctx context.Context, speechID uuid.UUID, skillIDs []uuid.UUID) ([]*types.SpeechSkill, error) {
	var out []*types.SpeechSkill
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		sp, err := s.speechRepo.GetByID(dbc, speechID)
		if err != nil {
			return fmt.Errorf("load speech: %w", err)
		}
		if sp == nil {
			return fmt.Errorf("speech %s: %w", speechID, types.ErrNotFound)
		}
		out, err = s.attachSkills(dbc, speechID, skillIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// attachSkills links active skills to a speech. Linking a skill twice is a
// conflict.
func (s *speechService) attachSkills(dbc dbctx.Context, speechID uuid.UUID, skillIDs []uuid.UUID) ([]*types.SpeechSkill, error) {
	ids, err := requireActiveSkills(dbc, s.skillRepo, skillIDs)
	if err != nil {
		return nil, err
	}
	rows, err := s.speechSkillRepo.Attach(dbc, speechID, ids)
	if dbstore.IsUniqueViolation(err) {
		return nil, fmt.Errorf("skill already attached: %w", types.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("attach skills: %w", err)
	}
	return rows, nil
}

func (s *speechService) UpdateSpeech(ctx context.Context, userID, speechID uuid.UUID, in UpdateSpeechInput) (*types.Speech, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, &feedback.ValidationError{Problems: []string{feedback.MsgTitleRequired}}
		}
		if len([]rune(title)) > maxTitleRunes {
			return nil, fmt.Errorf("title exceeds %d characters: %w", maxTitleRunes, types.ErrInvalidArgument)
		}
		updates["title"] = title
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if len([]rune(desc)) > maxSpeechDescriptionRunes {
			return nil, fmt.Errorf("description exceeds %d characters: %w", maxSpeechDescriptionRunes, types.ErrInvalidArgument)
		}
		updates["description"] = desc
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("status %q: %w", *in.Status, types.ErrInvalidArgument)
		}
		updates["status"] = *in.Status
	}
	switch {
	case in.ClearDeliveredDate:
		updates["delivered_date"] = nil
	case in.DeliveredDate != nil:
		updates["delivered_date"] = in.DeliveredDate.UTC()
	}

	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.ownedSpeech(dbc, userID, speechID); err != nil {
		return nil, err
	}
	if err := s.speechRepo.UpdateFields(dbc, speechID, updates); err != nil {
		return nil, fmt.Errorf("update speech: %w", err)
	}
	sp, err := s.speechRepo.GetByID(dbc, speechID)
	if err != nil {
		return nil, fmt.Errorf("reload speech: %w", err)
	}
	s.notifier.SpeechUpdated(userID, sp)
	return sp, nil
}

// UpdateSpeechSkills replaces the attached set wholesale. An empty set is
// accepted here and leaves the speech without skills.
func (s *speechService) UpdateSpeechSkills(ctx context.Context, userID, speechID uuid.UUID, skillIDs []uuid.UUID) (*types.Speech, error) {
	var out *types.Speech
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.ownedSpeech(dbc, userID, speechID); err != nil {
			return err
		}
		ids, err := requireActiveSkills(dbc, s.skillRepo, skillIDs)
		if err != nil {
			return err
		}
		if err := s.speechSkillRepo.DeleteBySpeechIDs(dbc, []uuid.UUID{speechID}); err != nil {
			return fmt.Errorf("clear speech skills: %w", err)
		}
		if _, err := s.speechSkillRepo.Attach(dbc, speechID, ids); err != nil {
			return fmt.Errorf("attach skills: %w", err)
		}
		if err := s.userSkillRepo.EnsureForUser(dbc, userID, ids); err != nil {
			return fmt.Errorf("track skills: %w", err)
		}
		out, err = s.speechRepo.GetByID(dbc, speechID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifier.SpeechUpdated(userID, out)
	return out, nil
}

func (s *speechService) DeleteSpeech(ctx context.Context, userID, speechID uuid.UUID) error {
	var recordingKey string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		sp, err := s.ownedSpeech(dbc, userID, speechID)
		if err != nil {
			return err
		}
		recordingKey = sp.VideoBucketKey
		ids := []uuid.UUID{speechID}
		if err := s.evaluationRepo.DeleteBySpeechIDs(dbc, ids); err != nil {
			return fmt.Errorf("delete evaluations: %w", err)
		}
		if err := s.speechSkillRepo.DeleteBySpeechIDs(dbc, ids); err != nil {
			return fmt.Errorf("delete speech skills: %w", err)
		}
		if err := s.speechRepo.DeleteByIDs(dbc, ids); err != nil {
			return fmt.Errorf("delete speech: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if recordingKey != "" && s.bucket != nil {
		if err := s.bucket.DeleteFile(dbctx.Context{Ctx: ctx}, gcp.BucketCategoryRecording, recordingKey); err != nil && !errors.Is(err, gcp.ErrObjectNotFound) {
			s.log.Warn("failed to delete recording (ignored)", "speech_id", speechID, "key", recordingKey, "error", err)
		}
	}
	s.log.Info("Speech deleted", "speech_id", speechID, "user_id", userID)
	s.notifier.SpeechDeleted(userID, speechID)
	return nil
}

// GenerateShareToken issues a fresh token, replacing any previous one. The
// unique index on share_token is the only collision guard.
func (s *speechService) GenerateShareToken(ctx context.Context, userID, speechID uuid.UUID) (*ShareLink, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.ownedSpeech(dbc, userID, speechID); err != nil {
		return nil, err
	}
	token, err := randomToken(shareTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate share token: %w", err)
	}
	if err := s.speechRepo.SetShareToken(dbc, speechID, token); err != nil {
		if dbstore.IsUniqueViolation(err) {
			return nil, fmt.Errorf("share token collision: %w", types.ErrConflict)
		}
		if dbstore.IsNotFound(err) {
			return nil, fmt.Errorf("speech %s: %w", speechID, types.ErrNotFound)
		}
		return nil, fmt.Errorf("set share token: %w", err)
	}
	link := &ShareLink{Token: token, URL: s.ShareURL(token)}
	s.notifier.SpeechShared(userID, speechID, link.URL)
	return link, nil
}

func (s *speechService) GetBySharedToken(ctx context.Context, token string) (*types.Speech, error) {
	token = strings.TrimSpace(token)
	sp, err := s.speechRepo.GetPublicByShareToken(dbctx.Context{Ctx: ctx}, token)
	if err != nil {
		return nil, fmt.Errorf("lookup share token: %w", err)
	}
	if sp == nil {
		return nil, fmt.Errorf("shared speech: %w", types.ErrNotFound)
	}
	return sp, nil
}

func (s *speechService) ListUserSpeeches(ctx context.Context, userID uuid.UUID) ([]SpeechOverview, error) {
	dbc := dbctx.Context{Ctx: ctx}
	speeches, err := s.speechRepo.ListByUser(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("list speeches: %w", err)
	}
	out := make([]SpeechOverview, 0, len(speeches))
	if len(speeches) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(speeches))
	for _, sp := range speeches {
		ids = append(ids, sp.ID)
	}
	evals, err := s.evaluationRepo.ListBySpeechIDs(dbc, ids)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	bySpeech := make(map[uuid.UUID][]*types.Evaluation, len(speeches))
	for _, e := range evals {
		bySpeech[e.SpeechID] = append(bySpeech[e.SpeechID], e)
	}
	for _, sp := range speeches {
		out = append(out, SpeechOverview{
			Speech: sp,
			Stats:  feedback.Aggregate(sp.Skills, bySpeech[sp.ID]),
		})
	}
	return out, nil
}

func (s *speechService) GetSpeechDetail(ctx context.Context, userID, speechID uuid.UUID) (*SpeechDetail, error) {
	var (
		sp    *types.Speech
		evals []*types.Evaluation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sp, err = s.ownedSpeech(dbctx.Context{Ctx: gctx}, userID, speechID)
		return err
	})
	g.Go(func() error {
		var err error
		evals, err = s.evaluationRepo.ListBySpeechIDs(dbctx.Context{Ctx: gctx}, []uuid.UUID{speechID})
		if err != nil {
			return fmt.Errorf("list evaluations: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if evals == nil {
		evals = []*types.Evaluation{}
	}
	stats := feedback.Aggregate(sp.Skills, evals)
	detail := &SpeechDetail{
		Speech:      sp,
		Evaluations: evals,
		Stats:       stats,
		Summary:     feedback.BuildSummary(stats, evals),
	}
	if sp.IsPublic && sp.ShareToken != nil {
		detail.ShareURL = s.ShareURL(*sp.ShareToken)
	}
	return detail, nil
}

func (s *speechService) UploadRecording(ctx context.Context, userID, speechID uuid.UUID, filename string, r io.Reader) (*types.Speech, error) {
	if s.bucket == nil {
		return nil, fmt.Errorf("media storage not configured: %w", types.ErrUnavailable)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !recordingExtensions[ext] {
		return nil, fmt.Errorf("unsupported recording type %q: %w", ext, types.ErrInvalidArgument)
	}
	dbc := dbctx.Context{Ctx: ctx}
	sp, err := s.ownedSpeech(dbc, userID, speechID)
	if err != nil {
		return nil, err
	}

	path, cleanup, err := s.media.WriteTempFile(ctx, io.LimitReader(r, s.cfg.MaxRecordingBytes+1), ext)
	if err != nil {
		return nil, fmt.Errorf("buffer recording: %w", err)
	}
	defer cleanup()
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat recording: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("empty recording: %w", types.ErrInvalidArgument)
	}
	if info.Size() > s.cfg.MaxRecordingBytes {
		return nil, fmt.Errorf("recording exceeds %d bytes: %w", s.cfg.MaxRecordingBytes, types.ErrInvalidArgument)
	}

	duration := 0
	if s.media.Available() {
		if d, err := s.media.ProbeDuration(ctx, path); err != nil {
			s.log.Warn("ffprobe failed, storing without duration", "speech_id", speechID, "error", err)
		} else {
			duration = d
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()
	key := fmt.Sprintf("speech_recording/%s/%d%s", speechID, time.Now().UnixNano(), ext)
	if err := s.bucket.UploadFile(dbc, gcp.BucketCategoryRecording, key, f); err != nil {
		return nil, fmt.Errorf("upload recording: %w", err)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"video_url":        s.bucket.GetPublicURL(gcp.BucketCategoryRecording, key),
		"video_bucket_key": key,
		"upload_date":      now,
	}
	if duration > 0 {
		updates["duration_seconds"] = duration
	}
	if err := s.speechRepo.UpdateFields(dbc, speechID, updates); err != nil {
		return nil, fmt.Errorf("persist recording: %w", err)
	}
	if old := sp.VideoBucketKey; old != "" && old != key {
		if err := s.bucket.DeleteFile(dbc, gcp.BucketCategoryRecording, old); err != nil {
			s.log.Warn("failed to delete old recording (ignored)", "key", old, "error", err)
		}
	}

	out, err := s.speechRepo.GetByID(dbc, speechID)
	if err != nil {
		return nil, fmt.Errorf("reload speech: %w", err)
	}
	s.log.Info("Recording uploaded", "speech_id", speechID, "bytes", info.Size(), "duration_seconds", duration)
	s.notifier.SpeechUpdated(userID, out)
	return out, nil
}
