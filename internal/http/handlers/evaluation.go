package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/speakwell-backend/internal/http/response"
	"github.com/yungbote/speakwell-backend/internal/observability"
	"github.com/yungbote/speakwell-backend/internal/services"
)

// EvaluationHandler serves the public evaluation form. Evaluators are not
// signed in; the share token is the only credential.
type EvaluationHandler struct {
	evaluations services.EvaluationService
	metrics     *observability.Metrics
}

func NewEvaluationHandler(evaluations services.EvaluationService, metrics *observability.Metrics) *EvaluationHandler {
	return &EvaluationHandler{evaluations: evaluations, metrics: metrics}
}

// GET /api/evaluate/:token
func (h *EvaluationHandler) GetForm(c *gin.Context) {
	form, err := h.evaluations.GetEvaluationForm(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.RespondServiceError(c, err, "get_evaluation_form_failed")
		return
	}
	response.RespondOK(c, form)
}

// POST /api/evaluate/:token
// body: { "evaluator_name", "evaluator_email", "scores": {skill_id: 1..5},
// "what_went_well", "what_could_be_improved" }
func (h *EvaluationHandler) Submit(c *gin.Context) {
	var req services.SubmitEvaluationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	req.Source = services.SourceShareLink
	req.UserAgent = c.Request.UserAgent()
	res, err := h.evaluations.Submit(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		response.RespondServiceError(c, err, "submit_evaluation_failed")
		return
	}
	h.metrics.IncEvaluation(services.SourceShareLink)
	response.RespondCreated(c, res)
}
