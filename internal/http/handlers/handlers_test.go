package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/speakwell-backend/internal/data/repos"
	"github.com/yungbote/speakwell-backend/internal/data/repos/testutil"
	"github.com/yungbote/speakwell-backend/internal/domain/user"
	"github.com/yungbote/speakwell-backend/internal/feedback"
	"github.com/yungbote/speakwell-backend/internal/http/response"
	"github.com/yungbote/speakwell-backend/internal/observability"
	"github.com/yungbote/speakwell-backend/internal/platform/ctxutil"
	"github.com/yungbote/speakwell-backend/internal/platform/localmedia"
	"github.com/yungbote/speakwell-backend/internal/services"
	"github.com/yungbote/speakwell-backend/internal/session"
)

type fixture struct {
	ctx     context.Context
	db      *gorm.DB
	engine  *gin.Engine
	userID  uuid.UUID
	speech  services.SpeechService
	metrics *observability.Metrics
}

// asUser stands in for the auth middleware.
func asUser(userID *uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		if *userID != uuid.Nil {
			ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: *userID, SessionID: uuid.New()})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	rs := repos.NewSet(db, log)
	notifier := services.NewNotifier(nil)
	bucket, err := localmedia.NewDiskBucket(log, t.TempDir(), "http://media.test")
	if err != nil {
		t.Fatalf("NewDiskBucket: %v", err)
	}
	speechSvc := services.NewSpeechService(db, log, rs, bucket, localmedia.New(log, t.TempDir()), notifier, services.SpeechConfig{PublicBaseURL: "https://speak.test"})
	skillSvc := services.NewSkillService(db, log, rs, notifier)
	evalSvc := services.NewEvaluationService(db, log, rs, notifier)
	cards, err := services.NewShareCardService(log, bucket)
	if err != nil {
		t.Fatalf("NewShareCardService: %v", err)
	}
	metrics := observability.New()

	f := &fixture{ctx: context.Background(), db: db, speech: speechSvc, metrics: metrics}
	sh := NewSpeechHandler(speechSvc, evalSvc, cards, services.NewInviteService(log, nil, speechSvc, cards, rs.Profile), metrics)
	kh := NewSkillHandler(skillSvc)
	eh := NewEvaluationHandler(evalSvc, metrics)

	r := gin.New()
	r.GET("/api/skills", kh.ListCatalog)
	r.GET("/api/evaluate/:token", eh.GetForm)
	r.POST("/api/evaluate/:token", eh.Submit)
	p := r.Group("/api", asUser(&f.userID))
	p.DELETE("/me/skills/:skillID", kh.Remove)
	p.POST("/speeches", sh.Create)
	p.GET("/speeches/:id", sh.Get)
	p.PUT("/speeches/:id/skills", sh.UpdateSkills)
	p.POST("/speeches/:id/share", sh.Share)
	p.GET("/speeches/:id/share/qr.png", sh.ShareQR)
	p.POST("/speeches/:id/invite", sh.Invite)
	f.engine = r
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestCreateSpeechReportsEveryProblem(t *testing.T) {
	f := newFixture(t)
	f.userID = testutil.SeedProfile(t, f.ctx, f.db, "speaker@example.com").ID

	rec := f.do(t, http.MethodPost, "/api/speeches", gin.H{"title": "  "})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("POST /speeches: expected 422, got %d %s", rec.Code, rec.Body.String())
	}
	env := decode[response.ErrorEnvelope](t, rec)
	want := []string{feedback.MsgTitleRequired, feedback.MsgSkillRequired}
	if diff := cmp.Diff(want, env.Error.Errors); diff != "" {
		t.Fatalf("errors (-want +got):\n%s", diff)
	}
}

func TestReplaceSpeechSkillsEnforcesCardinality(t *testing.T) {
	f := newFixture(t)
	p := testutil.SeedProfile(t, f.ctx, f.db, "replace@example.com")
	f.userID = p.ID
	sk := testutil.SeedSkill(t, f.ctx, f.db, "Clarity", "Content")
	sp, err := f.speech.CreateSpeech(f.ctx, p.ID, services.CreateSpeechInput{Title: "Pitch", SkillIDs: []uuid.UUID{sk.ID}})
	if err != nil {
		t.Fatalf("CreateSpeech: %v", err)
	}
	path := "/api/speeches/" + sp.ID.String() + "/skills"

	seven := make([]uuid.UUID, 7)
	for i := range seven {
		seven[i] = testutil.SeedSkill(t, f.ctx, f.db, "Extra "+string(rune('A'+i)), "Delivery").ID
	}
	cases := []struct {
		name string
		ids  []uuid.UUID
		want string
	}{
		{name: "empty", ids: []uuid.UUID{}, want: feedback.MsgSkillRequired},
		{name: "six", ids: seven[:6], want: feedback.MsgTooManySkills},
		{name: "seven", ids: seven, want: feedback.MsgTooManySkills},
	}
	for _, tc := range cases {
		rec := f.do(t, http.MethodPut, path, gin.H{"skill_ids": tc.ids})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d %s", tc.name, rec.Code, rec.Body.String())
		}
		env := decode[response.ErrorEnvelope](t, rec)
		if diff := cmp.Diff([]string{tc.want}, env.Error.Errors); diff != "" {
			t.Fatalf("%s: errors (-want +got):\n%s", tc.name, diff)
		}
	}

	got, err := f.speech.GetOwnedSpeech(f.ctx, p.ID, sp.ID)
	if err != nil {
		t.Fatalf("GetOwnedSpeech: %v", err)
	}
	if len(got.Skills) != 1 || got.Skills[0].SkillID != sk.ID {
		t.Fatalf("rejected replacements must keep the original skill, got %+v", got.Skills)
	}

	rec := f.do(t, http.MethodPut, path, gin.H{"skill_ids": seven[:5]})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT 5 skills: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRequiresAuthenticatedUser(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/speeches", gin.H{"title": "Anything"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a user, got %d", rec.Code)
	}
}

func TestRemoveProtectedSkillReturnsConflict(t *testing.T) {
	f := newFixture(t)
	p := testutil.SeedProfile(t, f.ctx, f.db, "owner@example.com")
	f.userID = p.ID
	sk := testutil.SeedSkill(t, f.ctx, f.db, "Eye Contact", "Delivery")
	testutil.SeedUserSkill(t, f.ctx, f.db, p.ID, sk.ID, 2)

	rec := f.do(t, http.MethodDelete, "/api/me/skills/"+sk.ID.String(), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("DELETE protected skill: expected 409, got %d %s", rec.Code, rec.Body.String())
	}
	res := decode[services.RemovalResult](t, rec)
	if res.Success || res.Message == "" {
		t.Fatalf("removal result: %+v", res)
	}

	rec = f.do(t, http.MethodDelete, "/api/me/skills/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("DELETE bad id: expected 400, got %d", rec.Code)
	}
}

func TestShareAndEvaluateFlow(t *testing.T) {
	f := newFixture(t)
	p := testutil.SeedProfile(t, f.ctx, f.db, "flow@example.com")
	f.userID = p.ID
	clarity := testutil.SeedSkill(t, f.ctx, f.db, "Clarity", "Content")
	pace := testutil.SeedSkill(t, f.ctx, f.db, "Pace", "Delivery")
	sp := testutil.SeedSpeech(t, f.ctx, f.db, p.ID, "Intro Talk", clarity.ID, pace.ID)
	speechPath := "/api/speeches/" + sp.ID.String()

	if rec := f.do(t, http.MethodGet, speechPath+"/share/qr.png", nil); rec.Code != http.StatusConflict {
		t.Fatalf("QR before sharing: expected 409, got %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, speechPath+"/share", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("share: %d %s", rec.Code, rec.Body.String())
	}
	shared := decode[shareResponse](t, rec)
	link := shared.ShareLink
	if link.URL != "https://speak.test/evaluate/"+link.Token {
		t.Fatalf("share url: %q", link.URL)
	}
	if shared.CardURL == "" || shared.InvitesEnabled {
		t.Fatalf("share extras: card=%q invites=%v", shared.CardURL, shared.InvitesEnabled)
	}

	rec = f.do(t, http.MethodGet, speechPath+"/share/qr.png?size=128", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("QR: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = f.do(t, http.MethodGet, "/api/evaluate/"+link.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("form: %d %s", rec.Code, rec.Body.String())
	}
	if form := decode[services.EvaluationForm](t, rec); len(form.Skills) != 2 {
		t.Fatalf("form skills: %d", len(form.Skills))
	}

	rec = f.do(t, http.MethodPost, "/api/evaluate/"+link.Token, gin.H{
		"evaluator_name": "Jo",
		"scores":         map[string]int{clarity.ID.String(): 4},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("partial scores: expected 422, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/evaluate/"+link.Token, gin.H{
		"evaluator_name": "Jo",
		"scores":         map[string]int{clarity.ID.String(): 4, pace.ID.String(): 3},
		"what_went_well": "Great opening",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, speechPath, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("detail: %d", rec.Code)
	}
	detail := decode[services.SpeechDetail](t, rec)
	if detail.Stats.EvaluationCount != 1 || detail.Stats.Average != 3.5 {
		t.Fatalf("detail stats: %+v", detail.Stats)
	}

	if rec := f.do(t, http.MethodGet, "/api/evaluate/unknown-token", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown token: expected 404, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, speechPath+"/invite", gin.H{"emails": []string{"a@example.com"}}); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("invite without mailer: expected 503, got %d", rec.Code)
	}
}

func TestCatalogLists(t *testing.T) {
	f := newFixture(t)
	testutil.SeedSkill(t, f.ctx, f.db, "Storytelling", "Content")
	rec := f.do(t, http.MethodGet, "/api/skills", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("catalog: %d", rec.Code)
	}
	body := decode[struct {
		State  string            `json:"state"`
		Skills []json.RawMessage `json:"skills"`
	}](t, rec)
	if body.State != "loaded" || len(body.Skills) != 1 {
		t.Fatalf("catalog body: %+v", body)
	}
}

// sessionOnlyAuth answers SessionState from a fixed value.
type sessionOnlyAuth struct {
	services.AuthService
	state session.State
}

func (a sessionOnlyAuth) SessionState(context.Context) session.State { return a.state }

func TestSessionReportsUsability(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()
	profile := &user.Profile{ID: userID, Email: "offline@example.com"}

	cases := []struct {
		name  string
		state session.State
		want  bool
	}{
		{name: "signed out", state: session.Initial(), want: false},
		{name: "loading", state: session.State{Phase: session.PhaseLoadingProfile, UserID: userID}, want: false},
		{name: "offline placeholder", state: session.State{Phase: session.PhaseOffline, UserID: userID, Profile: profile}, want: true},
		{name: "ready", state: session.State{Phase: session.PhaseReady, UserID: userID, Profile: profile}, want: true},
		{name: "failed", state: session.State{Phase: session.PhaseFailed, UserID: userID, Error: "boom"}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/api/session", NewAuthHandler(sessionOnlyAuth{state: tc.state}, "demo").Session)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("GET /api/session: %d %s", rec.Code, rec.Body.String())
			}
			body := decode[struct {
				Session session.State `json:"session"`
				Usable  bool          `json:"usable"`
				Mode    string        `json:"mode"`
			}](t, rec)
			if body.Usable != tc.want || body.Mode != "demo" || body.Session.Phase != tc.state.Phase {
				t.Fatalf("session body: %+v", body)
			}
		})
	}
}
