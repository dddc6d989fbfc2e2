package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/speakwell-backend/internal/http/response"
	"github.com/yungbote/speakwell-backend/internal/services"
)

type ProfileHandler struct {
	profiles  services.ProfileService
	avatar    services.AvatarService
	analytics services.AnalyticsService
}

func NewProfileHandler(profiles services.ProfileService, avatar services.AvatarService, analytics services.AnalyticsService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, avatar: avatar, analytics: analytics}
}

// GET /api/me
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	me, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, err, "get_profile_failed")
		return
	}
	response.RespondOK(c, gin.H{"me": me})
}

// PATCH /api/me
// body: { "full_name": "...", "bio": "..." }
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req services.UpdateProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	me, err := h.profiles.Update(c.Request.Context(), userID, req)
	if err != nil {
		response.RespondServiceError(c, err, "update_profile_failed")
		return
	}
	response.RespondOK(c, gin.H{"me": me})
}

// POST /api/me/avatar (multipart field "file")
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errMissingFile)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, services.MaxAvatarUploadBytes+1))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	me, err := h.avatar.UploadAvatarImage(c.Request.Context(), userID, raw)
	if err != nil {
		response.RespondServiceError(c, err, "upload_avatar_failed")
		return
	}
	response.RespondOK(c, gin.H{"me": me})
}

// GET /api/me/progress
func (h *ProfileHandler) Progress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	progress, err := h.analytics.ProfileProgress(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, err, "get_progress_failed")
		return
	}
	response.RespondOK(c, gin.H{"progress": progress})
}
