package controller

import (
	"context"
	"strings"

	commonmw "dailycode/internal/common/http/middleware"
	"dailycode/internal/verify/model"
	"dailycode/internal/verify/service"
	"dailycode/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// VerifyAPI is the synchronous orchestrator surface.
type VerifyAPI interface {
	Verify(ctx context.Context, req service.VerifyRequest) (model.Outcome, error)
	Run(ctx context.Context, req service.VerifyRequest) (model.Outcome, error)
}

// VerifyObserver records verdicts; *metrics.Metrics satisfies it.
type VerifyObserver interface {
	ObserveVerification(outcome model.Outcome, err error)
}

// VerifyController handles synchronous verify and run requests.
type VerifyController struct {
	verifier VerifyAPI
	observer VerifyObserver
}

// NewVerifyController creates a new VerifyController. observer may be nil.
func NewVerifyController(verifier VerifyAPI, observer VerifyObserver) *VerifyController {
	return &VerifyController{verifier: verifier, observer: observer}
}

// Verify runs the full pipeline and commits rewards on a first pass.
func (h *VerifyController) Verify(c *gin.Context) {
	req, ok := bindSubmission(c)
	if !ok {
		return
	}
	outcome, err := h.verifier.Verify(c.Request.Context(), req)
	if h.observer != nil {
		h.observer.ObserveVerification(outcome, err)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, outcome)
}

// Run executes and evaluates without touching learner state.
func (h *VerifyController) Run(c *gin.Context) {
	req, ok := bindSubmission(c)
	if !ok {
		return
	}
	outcome, err := h.verifier.Run(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, outcome)
}

// SubmissionRequest defines the verify/run/async payload.
type SubmissionRequest struct {
	ProblemID  string `json:"problemId" binding:"required"`
	Language   string `json:"language" binding:"required"`
	SourceCode string `json:"code" binding:"required"`
}

func bindSubmission(c *gin.Context) (service.VerifyRequest, bool) {
	var req SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return service.VerifyRequest{}, false
	}
	return service.VerifyRequest{
		UserID:     commonmw.UserIDFrom(c),
		ProblemID:  strings.TrimSpace(req.ProblemID),
		Language:   strings.TrimSpace(req.Language),
		SourceCode: req.SourceCode,
	}, true
}
