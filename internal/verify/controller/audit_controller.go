package controller

import (
	"context"

	commonmw "dailycode/internal/common/http/middleware"
	"dailycode/internal/verify/model"
	"dailycode/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// AuditReader loads archived verification trails.
type AuditReader interface {
	Read(ctx context.Context, problemID, userID, submissionID string) (model.AuditRecord, error)
}

// AuditController serves a learner's own audit records.
type AuditController struct {
	reader AuditReader
}

func NewAuditController(reader AuditReader) *AuditController {
	return &AuditController{reader: reader}
}

// Get returns one audit record of the calling learner.
func (h *AuditController) Get(c *gin.Context) {
	problemID, submissionID := c.Param("problem"), c.Param("id")
	if problemID == "" || submissionID == "" {
		response.BadRequest(c, "Invalid audit key")
		return
	}
	record, err := h.reader.Read(c.Request.Context(), problemID, commonmw.UserIDFrom(c), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, record)
}
