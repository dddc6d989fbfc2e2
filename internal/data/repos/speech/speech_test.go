package speech

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/speakwell-backend/internal/data/repos/testutil"
	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
)

func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	out := append([]uuid.UUID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func TestSpeechRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewSpeechRepo(db, testutil.Logger(t))
	p := testutil.SeedProfile(t, ctx, tx, "speechrepo@example.com")
	sk := testutil.SeedSkill(t, ctx, tx, "speechrepo-"+uuid.NewString(), "c")

	created, err := repo.Create(dbc, []*types.Speech{{UserID: p.ID, Title: "Intro Talk"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sp := created[0]
	if sp.Status != "draft" {
		t.Fatalf("Create: expected default status draft, got %q", sp.Status)
	}
	if _, err := NewSpeechSkillRepo(db, testutil.Logger(t)).Attach(dbc, sp.ID, []uuid.UUID{sk.ID}); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	got, err := repo.GetByID(dbc, sp.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	if len(got.Skills) != 1 || got.Skills[0].Skill == nil || got.Skills[0].Skill.ID != sk.ID {
		t.Fatalf("GetByID: expected preloaded skill, got %+v", got.Skills)
	}

	if rows, err := repo.ListByUser(dbc, p.ID); err != nil || len(rows) != 1 {
		t.Fatalf("ListByUser: err=%v len=%d", err, len(rows))
	}

	if pub, err := repo.GetPublicByShareToken(dbc, "nope"); err != nil || pub != nil {
		t.Fatalf("GetPublicByShareToken (unknown): err=%v got=%v", err, pub)
	}
	if err := repo.SetShareToken(dbc, sp.ID, "tok-1"); err != nil {
		t.Fatalf("SetShareToken: %v", err)
	}
	if pub, err := repo.GetPublicByShareToken(dbc, "tok-1"); err != nil || pub == nil || !pub.IsPublic {
		t.Fatalf("GetPublicByShareToken: err=%v got=%+v", err, pub)
	}
	if err := repo.SetShareToken(dbc, sp.ID, "tok-2"); err != nil {
		t.Fatalf("SetShareToken (rotate): %v", err)
	}
	if pub, _ := repo.GetPublicByShareToken(dbc, "tok-1"); pub != nil {
		t.Fatalf("GetPublicByShareToken: rotated token still resolves")
	}
	if err := repo.SetShareToken(dbc, uuid.New(), "tok-3"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("SetShareToken (missing): expected ErrRecordNotFound, got %v", err)
	}

	if err := repo.UpdateFields(dbc, sp.ID, map[string]interface{}{"is_public": false}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if pub, _ := repo.GetPublicByShareToken(dbc, "tok-2"); pub != nil {
		t.Fatalf("GetPublicByShareToken: private speech resolved")
	}

	if err := repo.DeleteByIDs(dbc, []uuid.UUID{sp.ID}); err != nil {
		t.Fatalf("DeleteByIDs: %v", err)
	}
	if got, _ := repo.GetByID(dbc, sp.ID); got != nil {
		t.Fatalf("DeleteByIDs: speech still present")
	}
}

func TestSpeechSkillRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSpeechSkillRepo(db, testutil.Logger(t))

	p := testutil.SeedProfile(t, ctx, tx, "speechskillrepo@example.com")
	other := testutil.SeedProfile(t, ctx, tx, "speechskillrepo-other@example.com")
	a := testutil.SeedSkill(t, ctx, tx, "ssr-a-"+uuid.NewString(), "c")
	b := testutil.SeedSkill(t, ctx, tx, "ssr-b-"+uuid.NewString(), "c")

	s1 := testutil.SeedSpeech(t, ctx, tx, p.ID, "one", a.ID, b.ID)
	testutil.SeedSpeech(t, ctx, tx, p.ID, "two", a.ID)
	testutil.SeedSpeech(t, ctx, tx, other.ID, "theirs", b.ID)

	n, err := repo.CountUserSpeechesWithSkill(dbc, p.ID, a.ID)
	if err != nil || n != 2 {
		t.Fatalf("CountUserSpeechesWithSkill(a): err=%v n=%d", err, n)
	}
	n, err = repo.CountUserSpeechesWithSkill(dbc, p.ID, b.ID)
	if err != nil || n != 1 {
		t.Fatalf("CountUserSpeechesWithSkill(b): err=%v n=%d", err, n)
	}

	inUse, err := repo.SkillIDsInUseByUser(dbc, p.ID)
	if err != nil {
		t.Fatalf("SkillIDsInUseByUser: %v", err)
	}
	if diff := cmp.Diff(sortedIDs([]uuid.UUID{a.ID, b.ID}), sortedIDs(inUse)); diff != "" {
		t.Fatalf("SkillIDsInUseByUser (-want +got):\n%s", diff)
	}

	if err := repo.DeleteBySpeechIDs(dbc, []uuid.UUID{s1.ID}); err != nil {
		t.Fatalf("DeleteBySpeechIDs: %v", err)
	}
	rows, err := repo.ListBySpeechIDs(dbc, []uuid.UUID{s1.ID})
	if err != nil || len(rows) != 0 {
		t.Fatalf("ListBySpeechIDs after delete: err=%v len=%d", err, len(rows))
	}
	n, _ = repo.CountUserSpeechesWithSkill(dbc, p.ID, b.ID)
	if n != 0 {
		t.Fatalf("CountUserSpeechesWithSkill(b) after delete: expected 0, got %d", n)
	}
}
