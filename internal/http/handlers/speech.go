package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/speakwell-backend/internal/feedback"
	"github.com/yungbote/speakwell-backend/internal/http/response"
	"github.com/yungbote/speakwell-backend/internal/observability"
	"github.com/yungbote/speakwell-backend/internal/services"
)

type SpeechHandler struct {
	speeches    services.SpeechService
	evaluations services.EvaluationService
	cards       services.ShareCardService
	invites     services.InviteService
	metrics     *observability.Metrics
}

func NewSpeechHandler(
	speeches services.SpeechService,
	evaluations services.EvaluationService,
	cards services.ShareCardService,
	invites services.InviteService,
	metrics *observability.Metrics,
) *SpeechHandler {
	return &SpeechHandler{
		speeches:    speeches,
		evaluations: evaluations,
		cards:       cards,
		invites:     invites,
		metrics:     metrics,
	}
}

// GET /api/speeches
func (h *SpeechHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	rows, err := h.speeches.ListUserSpeeches(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, err, "list_speeches_failed")
		return
	}
	response.RespondOK(c, gin.H{"speeches": rows})
}

// POST /api/speeches
// body: { "title", "description", "skill_ids": [...] }
func (h *SpeechHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req services.CreateSpeechInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sp, err := h.speeches.CreateSpeech(c.Request.Context(), userID, req)
	if err != nil {
		response.RespondServiceError(c, err, "create_speech_failed")
		return
	}
	response.RespondCreated(c, gin.H{"speech": sp})
}

// GET /api/speeches/:id
func (h *SpeechHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	speechID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.speeches.GetSpeechDetail(c.Request.Context(), userID, speechID)
	if err != nil {
		response.RespondServiceError(c, err, "get_speech_failed")
		return
	}
	response.RespondOK(c, detail)
}

// GET /api/speeches/:id/summary
func (h *SpeechHandler) Summary(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	speechID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.speeches.GetSpeechDetail(c.Request.Context(), userID, speechID)
	if err != nil {
		response.RespondServiceError(c, err, "get_summary_failed")
		return
	}
	response.RespondOK(c, gin.H{"summary": detail.Summary, "stats": detail.Stats})
}

// PATCH /api/speeches/:id
func (h *SpeechHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	speechID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req services.UpdateSpeechInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sp, err := h.speeches.UpdateSpeech(c.Request.Context(), userID, speechID, req)
	if err != nil {
		response.RespondServiceError(c, err, "update_speech_failed")
		return
	}
	response.RespondOK(c, gin.H{"speech": sp})
}

// PUT /api/speeches/:id/skills
// body: { "skill_ids": [...] }
func (h *SpeechHandler) UpdateSkills(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	speechID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req skillIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := feedback.ValidateSkillSet(req.SkillIDs); err != nil {
		response.RespondServiceError(c, err, "update_speech_skills_failed")
		return
	}
	sp, err := h.speeches.UpdateSpeechSkills(c.Request.Context(), userID, speechID, req.SkillIDs)
	if err != nil {
		response.RespondServiceError(c, err, "update_speech_skills_failed")
		return
	}
	response.RespondOK(c, gin.H{"speech": sp})
}

// DELETE /api/speeches/:id
func (h *SpeechHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	speechID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.speeches.DeleteSpeech(c.Request.Context(), userID, speechID); err != nil {
		response.RespondServiceError(c, err, "delete_speech_failed")
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// POST /api/speeches/:id/share
// Each call issues a fresh token; earlier links stop working.
func (h *SpeechHandler) Share(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	speechID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	link, err := h.speeches.GenerateShareToken(ctx, userID, speechID)
	if err != nil {
		response.RespondServiceError(c, err, "share_speech_failed")
		return
	}
	out := shareResponse{ShareLink: *link, InvitesEnabled: h.invites.Enabled()}
	// The printable card is optional; the link works without it.
	if sp, err := h.speeches.GetOwnedSpeech(ctx, userID, speechID); err == nil {
		if url, err := h.cards.PublishCard(ctx, sp, link.URL); err == nil {
			out.CardURL = url
		} else {
			_ = c.Error(err)
		}
	}
	response.RespondOK(c, out)
}

type shareResponse struct {
	services.ShareLink
	CardURL        string `json:"card_url,omitempty"`
	InvitesEnabled bool   `json:"invites_enabled"`
}

// GET /api/speeches/:id/share/qr.png?size=320
func (h *SpeechHandler) ShareQR(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	speechID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	sp, err := h.speeches.GetOwnedSpeech(c.Request.Context(), userID, speechID)
	if err != nil {
		response.RespondServiceError(c, err, "share_qr_failed")
		return
	}
	if sp.ShareToken == nil || strings.TrimSpace(*sp.ShareToken) == "" {
		response.RespondError(c, http.StatusConflict, "not_shared", errNotShared)
		return
	}
	size := services.DefaultQRSize
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_size", err)
			return
		}
		size = n
	}
	png, err := h.cards.QRCode(h.speeches.ShareURL(*sp.ShareToken), size)
	if err != nil {
		response.RespondServiceError(c, err, "share_qr_failed")
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}

// POST /api/speeches/:id/invite
// body: { "emails": [...], "message": "..." }
func (h *SpeechHandler) Invite(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	speechID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req services.InviteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.invites.SendInvites(c.Request.Context(), userID, speechID, req)
	if err != nil {
		response.RespondServiceError(c, err, "send_invites_failed")
		return
	}
	h.metrics.AddInvitesSent(res.Sent)
	response.RespondOK(c, res)
}

// POST /api/speeches/:id/recording (multipart field "file")
func (h *SpeechHandler) UploadRecording(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	speechID, ok := uuidParam(c, "id")
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
	sp, err := h.speeches.UploadRecording(c.Request.Context(), userID, speechID, fh.Filename, f)
	if err != nil {
		response.RespondServiceError(c, err, "upload_recording_failed")
		return
	}
	response.RespondOK(c, gin.H{"speech": sp})
}

// POST /api/speeches/:id/evaluations
// Records feedback the owner gathered offline.
func (h *SpeechHandler) RecordWrittenEvaluation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	speechID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req services.SubmitEvaluationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.evaluations.RecordWrittenEvaluation(c.Request.Context(), userID, speechID, req)
	if err != nil {
		response.RespondServiceError(c, err, "record_evaluation_failed")
		return
	}
	h.metrics.IncEvaluation(services.SourceWritten)
	response.RespondCreated(c, res)
}
