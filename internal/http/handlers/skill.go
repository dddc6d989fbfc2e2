package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/speakwell-backend/internal/http/response"
	"github.com/yungbote/speakwell-backend/internal/services"
	"github.com/yungbote/speakwell-backend/internal/session"
)

type SkillHandler struct {
	skills services.SkillService
}

func NewSkillHandler(skills services.SkillService) *SkillHandler {
	return &SkillHandler{skills: skills}
}

// GET /api/skills
// Served from the built-in catalog, flagged offline, when the store is down.
func (h *SkillHandler) ListCatalog(c *gin.Context) {
	res := h.skills.Catalog(c.Request.Context())
	if res.State == session.Failed {
		response.RespondError(c, http.StatusServiceUnavailable, "list_skills_failed", nil)
		return
	}
	response.RespondOK(c, gin.H{"skills": res.Value, "state": res.State})
}

// GET /api/me/skills
func (h *SkillHandler) ListMine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	rows, err := h.skills.ListUserSkills(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, err, "list_user_skills_failed")
		return
	}
	response.RespondOK(c, gin.H{"skills": rows})
}

// PUT /api/me/skills
// body: { "skill_ids": ["..."] }
func (h *SkillHandler) Reconcile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req skillIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.skills.ReconcileUserSkills(c.Request.Context(), userID, req.SkillIDs)
	if err != nil {
		response.RespondServiceError(c, err, "update_user_skills_failed")
		return
	}
	response.RespondOK(c, gin.H{"skills": res.Skills, "kept": res.Kept})
}

// GET /api/me/skills/:skillID/removable
func (h *SkillHandler) Removable(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	skillID, ok := uuidParam(c, "skillID")
	if !ok {
		return
	}
	response.RespondOK(c, h.skills.CanRemove(c.Request.Context(), userID, skillID))
}

// DELETE /api/me/skills/:skillID
func (h *SkillHandler) Remove(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	skillID, ok := uuidParam(c, "skillID")
	if !ok {
		return
	}
	res := h.skills.RemoveUserSkill(c.Request.Context(), userID, skillID)
	if !res.Success {
		c.JSON(http.StatusConflict, res)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/me/skills/stats
func (h *SkillHandler) Stats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	stats, err := h.skills.EvaluationStats(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, err, "skill_stats_failed")
		return
	}
	response.RespondOK(c, gin.H{"stats": stats})
}

// POST /api/onboarding
// body: { "skill_ids": ["..."], "all_skills": false }
func (h *SkillHandler) CompleteOnboarding(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		SkillIDs  []uuid.UUID `json:"skill_ids"`
		AllSkills bool        `json:"all_skills"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	me, err := h.skills.CompleteOnboarding(c.Request.Context(), userID, req.SkillIDs, req.AllSkills)
	if err != nil {
		response.RespondServiceError(c, err, "onboarding_failed")
		return
	}
	response.RespondOK(c, gin.H{"me": me})
}
