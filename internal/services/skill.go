package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/speakwell-backend/internal/data/repos"
	"github.com/yungbote/speakwell-backend/internal/data/seed"
	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/feedback"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
	"github.com/yungbote/speakwell-backend/internal/session"
)

const (
	ReasonUnableToVerify         = "Unable to verify skill status"
	ReasonUnableToVerifySpeeches = "Unable to verify speech associations"
	MsgSkillRemoved              = "Skill removed successfully"
	MsgSkillRemoveFailed         = "Failed to remove skill. Please try again."
	MsgSkillCannotBeRemoved      = "Skill cannot be removed"
	MsgOnboardingNeedsSkill      = "Please select at least one skill to continue"
)

type RemovalCheck struct {
	CanRemove bool   `json:"can_remove"`
	Reason    string `json:"reason,omitempty"`
}

type RemovalResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type SkillStat struct {
	SkillID         uuid.UUID `json:"skill_id"`
	SkillName       string    `json:"skill_name"`
	AverageRating   float64   `json:"average_rating"`
	EvaluationCount int       `json:"evaluation_count"`
}

type ReconcileResult struct {
	Skills []*types.UserSkill `json:"skills"`
	// Kept lists skills the caller asked to drop that stayed because they are
	// protected.
	Kept []uuid.UUID `json:"kept,omitempty"`
}

type SkillService interface {
	ListCatalog(ctx context.Context) ([]*types.Skill, error)
	// Catalog degrades to the built-in catalog when the store is unreachable.
	Catalog(ctx context.Context) session.Result[[]*types.Skill]
	ListUserSkills(ctx context.Context, userID uuid.UUID) ([]*types.UserSkill, error)
	ReconcileUserSkills(ctx context.Context, userID uuid.UUID, skillIDs []uuid.UUID) (*ReconcileResult, error)
	CanRemove(ctx context.Context, userID, skillID uuid.UUID) RemovalCheck
	RemoveUserSkill(ctx context.Context, userID, skillID uuid.UUID) RemovalResult
	EvaluationStats(ctx context.Context, userID uuid.UUID) ([]SkillStat, error)
	CompleteOnboarding(ctx context.Context, userID uuid.UUID, skillIDs []uuid.UUID, wantsAll bool) (*types.Profile, error)
}

type skillService struct {
	db              *gorm.DB
	log             *logger.Logger
	skillRepo       repos.SkillRepo
	userSkillRepo   repos.UserSkillRepo
	speechSkillRepo repos.SpeechSkillRepo
	scoreRepo       repos.ScoreRepo
	profileRepo     repos.ProfileRepo
	notifier        Notifier
}

func NewSkillService(db *gorm.DB, log *logger.Logger, rs repos.Set, notifier Notifier) SkillService {
	if notifier == nil {
		notifier = NewNotifier(nil)
	}
	return &skillService{
		db:              db,
		log:             log.With("service", "SkillService"),
		skillRepo:       rs.Skill,
		userSkillRepo:   rs.UserSkill,
		speechSkillRepo: rs.SpeechSkill,
		scoreRepo:       rs.Score,
		profileRepo:     rs.Profile,
		notifier:        notifier,
	}
}

func (ss *skillService) ListCatalog(ctx context.Context) ([]*types.Skill, error) {
	skills, err := ss.skillRepo.ListActive(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return skills, nil
}

func (ss *skillService) Catalog(ctx context.Context) session.Result[[]*types.Skill] {
	skills, err := ss.ListCatalog(ctx)
	if err == nil {
		return session.LoadedResult(skills)
	}
	ss.log.Warn("Catalog unavailable, serving built-in skills", "error", err)
	builtin, seedErr := seed.DefaultSkills()
	if seedErr != nil {
		return session.FailedResult[[]*types.Skill](err.Error())
	}
	active := builtin[:0]
	for _, s := range builtin {
		if s.IsActive {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Category != active[j].Category {
			return active[i].Category < active[j].Category
		}
		return active[i].Name < active[j].Name
	})
	return session.OfflineResult(active, err.Error())
}

func (ss *skillService) ListUserSkills(ctx context.Context, userID uuid.UUID) ([]*types.UserSkill, error) {
	out, err := ss.userSkillRepo.ListByUser(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, fmt.Errorf("list user skills: %w", err)
	}
	return out, nil
}

// requireActiveSkills rejects ids that are not active catalog entries and
// returns the ids deduplicated in input order.
func requireActiveSkills(dbc dbctx.Context, skillRepo repos.SkillRepo, skillIDs []uuid.UUID) ([]uuid.UUID, error) {
	uniq := dedupeIDs(skillIDs)
	if len(uniq) == 0 {
		return uniq, nil
	}
	found, err := skillRepo.GetByIDs(dbc, uniq)
	if err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}
	active := make(map[uuid.UUID]bool, len(found))
	for _, s := range found {
		if s != nil && s.IsActive {
			active[s.ID] = true
		}
	}
	for _, id := range uniq {
		if !active[id] {
			return nil, fmt.Errorf("unknown skill %s: %w", id, types.ErrInvalidArgument)
		}
	}
	return uniq, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (ss *skillService) ReconcileUserSkills(ctx context.Context, userID uuid.UUID, skillIDs []uuid.UUID) (*ReconcileResult, error) {
	var out ReconcileResult
	err := ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := ss.reconcile(dbctx.Context{Ctx: ctx, Tx: tx}, userID, skillIDs)
		if err != nil {
			return err
		}
		out = *res
		return nil
	})
	if err != nil {
		return nil, err
	}
	ss.notifier.SkillsUpdated(userID, out.Skills)
	return &out, nil
}

func (ss *skillService) reconcile(dbc dbctx.Context, userID uuid.UUID, skillIDs []uuid.UUID) (*ReconcileResult, error) {
	target, err := requireActiveSkills(dbc, ss.skillRepo, skillIDs)
	if err != nil {
		return nil, err
	}
	current, err := ss.userSkillRepo.ListByUser(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("list user skills: %w", err)
	}

	want := make(map[uuid.UUID]bool, len(target))
	for _, id := range target {
		want[id] = true
	}
	have := make(map[uuid.UUID]bool, len(current))
	var toRemove []uuid.UUID
	for _, us := range current {
		have[us.SkillID] = true
		if !want[us.SkillID] {
			toRemove = append(toRemove, us.SkillID)
		}
	}
	var toAdd []uuid.UUID
	for _, id := range target {
		if !have[id] {
			toAdd = append(toAdd, id)
		}
	}

	var kept []uuid.UUID
	if len(toRemove) > 0 {
		inUse, err := ss.speechSkillRepo.SkillIDsInUseByUser(dbc, userID)
		if err != nil {
			return nil, fmt.Errorf("load speech skills: %w", err)
		}
		referenced := make(map[uuid.UUID]bool, len(inUse))
		for _, id := range inUse {
			referenced[id] = true
		}
		var deletable []uuid.UUID
		for _, id := range toRemove {
			if referenced[id] {
				kept = append(kept, id)
				continue
			}
			deletable = append(deletable, id)
		}
		n, err := ss.userSkillRepo.DeleteUnprotected(dbc, userID, deletable)
		if err != nil {
			return nil, fmt.Errorf("remove user skills: %w", err)
		}
		if int(n) < len(deletable) {
			kept = append(kept, ss.stillPresent(dbc, userID, deletable)...)
		}
	}

	if err := ss.userSkillRepo.EnsureForUser(dbc, userID, toAdd); err != nil {
		return nil, fmt.Errorf("add user skills: %w", err)
	}

	final, err := ss.userSkillRepo.ListByUser(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("list user skills: %w", err)
	}
	ss.log.Debug("User skills reconciled", "user_id", userID, "added", len(toAdd), "removed", len(toRemove)-len(kept), "kept", len(kept))
	return &ReconcileResult{Skills: final, Kept: kept}, nil
}

func (ss *skillService) stillPresent(dbc dbctx.Context, userID uuid.UUID, skillIDs []uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, id := range skillIDs {
		row, err := ss.userSkillRepo.GetByUserAndSkill(dbc, userID, id)
		if err == nil && row != nil {
			out = append(out, id)
		}
	}
	return out
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func (ss *skillService) CanRemove(ctx context.Context, userID, skillID uuid.UUID) RemovalCheck {
	return ss.canRemove(dbctx.Context{Ctx: ctx}, userID, skillID)
}

func (ss *skillService) canRemove(dbc dbctx.Context, userID, skillID uuid.UUID) RemovalCheck {
	row, err := ss.userSkillRepo.GetByUserAndSkill(dbc, userID, skillID)
	if err != nil || row == nil {
		if err != nil {
			ss.log.Warn("CanRemove: user skill lookup failed", "user_id", userID, "skill_id", skillID, "error", err)
		}
		return RemovalCheck{Reason: ReasonUnableToVerify}
	}
	if row.EvaluationProtected() {
		n := int64(row.EvaluationCount)
		return RemovalCheck{Reason: fmt.Sprintf("This skill has %d %s and cannot be removed", n, plural(n, "evaluation", "evaluations"))}
	}
	speeches, err := ss.speechSkillRepo.CountUserSpeechesWithSkill(dbc, userID, skillID)
	if err != nil {
		ss.log.Warn("CanRemove: speech association lookup failed", "user_id", userID, "skill_id", skillID, "error", err)
		return RemovalCheck{Reason: ReasonUnableToVerifySpeeches}
	}
	if speeches > 0 {
		return RemovalCheck{Reason: fmt.Sprintf("This skill is associated with %d %s and cannot be removed", speeches, plural(speeches, "speech", "speeches"))}
	}
	return RemovalCheck{CanRemove: true}
}

func (ss *skillService) RemoveUserSkill(ctx context.Context, userID, skillID uuid.UUID) RemovalResult {
	var result RemovalResult
	err := ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		check := ss.canRemove(dbc, userID, skillID)
		if !check.CanRemove {
			msg := check.Reason
			if msg == "" {
				msg = MsgSkillCannotBeRemoved
			}
			result = RemovalResult{Message: msg}
			return nil
		}
		n, err := ss.userSkillRepo.DeleteUnprotected(dbc, userID, []uuid.UUID{skillID})
		if err != nil {
			return err
		}
		if n == 0 {
			result = RemovalResult{Message: MsgSkillCannotBeRemoved}
			return nil
		}
		result = RemovalResult{Success: true, Message: MsgSkillRemoved}
		return nil
	})
	if err != nil {
		ss.log.Error("Remove user skill failed", "user_id", userID, "skill_id", skillID, "error", err)
		return RemovalResult{Message: MsgSkillRemoveFailed}
	}
	if result.Success {
		if skills, err := ss.ListUserSkills(ctx, userID); err == nil {
			ss.notifier.SkillsUpdated(userID, skills)
		}
	}
	return result
}

func (ss *skillService) EvaluationStats(ctx context.Context, userID uuid.UUID) ([]SkillStat, error) {
	dbc := dbctx.Context{Ctx: ctx}
	scores, err := ss.scoreRepo.ListForUser(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	bySkill := map[uuid.UUID][]int{}
	var order []uuid.UUID
	for _, s := range scores {
		if _, ok := bySkill[s.SkillID]; !ok {
			order = append(order, s.SkillID)
		}
		bySkill[s.SkillID] = append(bySkill[s.SkillID], s.Score)
	}
	if len(order) == 0 {
		return []SkillStat{}, nil
	}

	names := map[uuid.UUID]string{}
	if skills, err := ss.skillRepo.GetByIDs(dbc, order); err == nil {
		for _, s := range skills {
			names[s.ID] = s.Name
		}
	}

	out := make([]SkillStat, 0, len(order))
	for _, id := range order {
		name := names[id]
		if name == "" {
			name = feedback.UnknownSkillName
		}
		out = append(out, SkillStat{
			SkillID:         id,
			SkillName:       name,
			AverageRating:   feedback.Mean(bySkill[id]),
			EvaluationCount: len(bySkill[id]),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SkillName < out[j].SkillName })
	return out, nil
}

func (ss *skillService) CompleteOnboarding(ctx context.Context, userID uuid.UUID, skillIDs []uuid.UUID, wantsAll bool) (*types.Profile, error) {
	var res *ReconcileResult
	err := ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		target := skillIDs
		if wantsAll {
			all, err := ss.skillRepo.ListActive(dbc)
			if err != nil {
				return fmt.Errorf("list catalog: %w", err)
			}
			target = target[:0:0]
			for _, s := range all {
				target = append(target, s.ID)
			}
		}
		if len(dedupeIDs(target)) == 0 {
			return &feedback.ValidationError{Problems: []string{MsgOnboardingNeedsSkill}}
		}
		r, err := ss.reconcile(dbc, userID, target)
		if err != nil {
			return err
		}
		res = r
		return ss.profileRepo.CompleteOnboarding(dbc, userID, wantsAll)
	})
	if err != nil {
		return nil, err
	}
	ss.notifier.SkillsUpdated(userID, res.Skills)

	profile, err := ss.profileRepo.GetByID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("profile %s: %w", userID, types.ErrNotFound)
	}
	return profile, nil
}
