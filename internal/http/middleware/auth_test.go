package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/speakwell-backend/internal/platform/ctxutil"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
	"github.com/yungbote/speakwell-backend/internal/services"
)

type tokenAuth struct {
	services.AuthService
	valid  string
	userID uuid.UUID
}

func (a *tokenAuth) SetContextFromToken(ctx context.Context, token string) (context.Context, error) {
	if token != a.valid {
		return nil, errors.New("invalid token")
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{TokenString: token, UserID: a.userID}), nil
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()
	mw := NewAuthMiddleware(logger.Nop(), &tokenAuth{valid: "good", userID: userID})

	r := gin.New()
	r.GET("/me", mw.RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, ctxutil.GetRequestData(c.Request.Context()).UserID.String())
	})

	cases := []struct {
		name   string
		target string
		header string
		status int
	}{
		{"missing", "/me", "", http.StatusUnauthorized},
		{"bad bearer", "/me", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "/me", "Bearer good", http.StatusOK},
		{"lowercase scheme", "/me", "bearer good", http.StatusOK},
		{"query token", "/me?token=good", "", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.target, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: status got=%d want=%d", tc.name, rec.Code, tc.status)
		}
		if tc.status == http.StatusOK && rec.Body.String() != userID.String() {
			t.Fatalf("%s: user id not propagated: %q", tc.name, rec.Body.String())
		}
	}
}

func TestRequestIDsEchoInboundRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDs())
	r.GET("/x", func(c *gin.Context) {
		td := ctxutil.GetTraceData(c.Request.Context())
		c.String(http.StatusOK, td.RequestID)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Body.String() != "req-123" || rec.Header().Get("X-Request-Id") != "req-123" {
		t.Fatalf("request id: body=%q header=%q", rec.Body.String(), rec.Header().Get("X-Request-Id"))
	}
	if rec.Header().Get("X-Trace-Id") != "req-123" {
		t.Fatalf("trace id should fall back to the request id, got %q", rec.Header().Get("X-Trace-Id"))
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "bad id\n")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got == "" || got == "bad id\n" {
		t.Fatalf("malformed request id should be replaced, got %q", got)
	}
}
