package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/speakwell-backend/internal/http/response"
	"github.com/yungbote/speakwell-backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
	mode        string
}

// NewAuthHandler takes the run mode ("live" or "demo") so clients can tell
// they are talking to a throwaway store.
func NewAuthHandler(authService services.AuthService, mode string) *AuthHandler {
	return &AuthHandler{authService: authService, mode: mode}
}

// POST /api/auth/:provider
// body: { "id_token": "...", "nonce": "..." }
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req struct {
		IDToken string `json:"id_token" binding:"required"`
		Nonce   string `json:"nonce"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.authService.SignInWithIDToken(c.Request.Context(), c.Param("provider"), req.IDToken, req.Nonce)
	if err != nil {
		response.RespondServiceError(c, err, "sign_in_failed")
		return
	}
	response.RespondOK(c, res)
}

// POST /api/auth/demo
func (h *AuthHandler) SignInDemo(c *gin.Context) {
	res, err := h.authService.SignInDemo(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err, "sign_in_failed")
		return
	}
	response.RespondOK(c, res)
}

// POST /api/auth/refresh
// body: { "refresh_token": "..." }
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	tokens, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.RespondServiceError(c, err, "refresh_failed")
		return
	}
	response.RespondOK(c, gin.H{"tokens": tokens})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context()); err != nil {
		response.RespondServiceError(c, err, "logout_failed")
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// GET /api/session
func (h *AuthHandler) Session(c *gin.Context) {
	state := h.authService.SessionState(c.Request.Context())
	response.RespondOK(c, gin.H{
		"session": state,
		"usable":  state.Usable(),
		"mode":    h.mode,
	})
}
