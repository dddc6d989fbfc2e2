package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNewDemoAppServesSignedInRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := DefaultConfig()
	cfg.LogMode = "test"
	cfg.MediaLocalDir = t.TempDir()
	cfg.MediaWorkDir = t.TempDir()
	cfg.MetricsEnabled = true

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)
	if a.Mode != ModeDemo {
		t.Fatalf("Mode: want demo, got %s", a.Mode)
	}

	rec := httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthcheck: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/demo", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("demo sign-in: status %d body %s", rec.Code, rec.Body.String())
	}
	var signIn struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &signIn); err != nil {
		t.Fatalf("decode sign-in: %v", err)
	}
	if signIn.Tokens.AccessToken == "" {
		t.Fatalf("no access token in %s", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+signIn.Tokens.AccessToken)
	rec = httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/me: status %d body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), cfg.DemoEmail) {
		t.Fatalf("profile missing demo email: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/skills", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"state":"loaded"`) {
		t.Fatalf("GET /api/skills: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "speakwell_profile_loads_total") {
		t.Fatalf("GET /metrics: status %d", rec.Code)
	}
}
