package controller

import (
	"context"
	"net/http"
	"time"

	commonmw "dailycode/internal/common/http/middleware"
	"dailycode/internal/verify/model"
	"dailycode/internal/verify/service"
	"dailycode/pkg/utils/logger"
	"dailycode/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// JobAPI is the async submission surface.
type JobAPI interface {
	Submit(ctx context.Context, req service.VerifyRequest) (model.SubmissionStatus, error)
	Status(ctx context.Context, userID, submissionID string) (model.SubmissionStatus, error)
}

// StatusWatcher streams status updates for one submission.
type StatusWatcher interface {
	Watch(ctx context.Context, submissionID string) (<-chan model.SubmissionStatus, func() error, error)
}

// SubmissionController handles async submissions and their status.
type SubmissionController struct {
	jobs     JobAPI
	watcher  StatusWatcher
	upgrader websocket.Upgrader
	ping     time.Duration
}

func NewSubmissionController(jobs JobAPI, watcher StatusWatcher) *SubmissionController {
	return &SubmissionController{
		jobs:    jobs,
		watcher: watcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		ping: 30 * time.Second,
	}
}

// Create enqueues an async verification.
func (h *SubmissionController) Create(c *gin.Context) {
	req, ok := bindSubmission(c)
	if !ok {
		return
	}
	status, err := h.jobs.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, SubmitResponse{
		SubmissionID: status.SubmissionID,
		Status:       status.Status,
		ReceivedAt:   status.ReceivedAt,
	})
}

// GetStatus returns status for one submission.
func (h *SubmissionController) GetStatus(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	status, err := h.jobs.Status(c.Request.Context(), commonmw.UserIDFrom(c), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// Stream pushes status updates over a websocket until the submission is final.
func (h *SubmissionController) Stream(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before reading the current state so no transition is lost.
	updates, stop, err := h.watcher.Watch(ctx, submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer func() {
		if err := stop(); err != nil {
			logger.Warn(ctx, "stop status watch failed", zap.Error(err))
		}
	}()
	current, err := h.jobs.Status(ctx, commonmw.UserIDFrom(c), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(ctx, "websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are noticed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(current); err != nil || current.Final() {
		h.closeStream(conn)
		return
	}
	ticker := time.NewTicker(h.ping)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case status, ok := <-updates:
			if !ok {
				h.closeStream(conn)
				return
			}
			if err := conn.WriteJSON(status); err != nil {
				return
			}
			if status.Final() {
				h.closeStream(conn)
				return
			}
		}
	}
}

func (h *SubmissionController) closeStream(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// SubmitResponse defines the async submission response payload.
type SubmitResponse struct {
	SubmissionID string `json:"submissionId"`
	Status       string `json:"status"`
	ReceivedAt   int64  `json:"receivedAt"`
}
