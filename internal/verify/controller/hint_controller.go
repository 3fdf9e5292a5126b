package controller

import (
	"context"

	commonmw "dailycode/internal/common/http/middleware"
	"dailycode/internal/verify/reward"
	"dailycode/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// HintAPI charges and reports the daily hint quota.
type HintAPI interface {
	Consume(ctx context.Context, userID string) (reward.HintState, error)
	Quota(ctx context.Context, userID string) (reward.HintState, error)
}

type HintObserver interface {
	ObserveHint(err error)
}

// HintController handles hint quota requests.
type HintController struct {
	hints    HintAPI
	observer HintObserver
}

func NewHintController(hints HintAPI, observer HintObserver) *HintController {
	return &HintController{hints: hints, observer: observer}
}

// Consume charges one hint.
func (h *HintController) Consume(c *gin.Context) {
	state, err := h.hints.Consume(c.Request.Context(), commonmw.UserIDFrom(c))
	if h.observer != nil {
		h.observer.ObserveHint(err)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, state)
}

// Quota reports today's usage without charging.
func (h *HintController) Quota(c *gin.Context) {
	state, err := h.hints.Quota(c.Request.Context(), commonmw.UserIDFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, state)
}
