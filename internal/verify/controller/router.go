package controller

import (
	"net/http"
	"time"

	commonmw "dailycode/internal/common/http/middleware"
	"dailycode/internal/verify/middleware"
	"dailycode/pkg/utils/logger"
	"dailycode/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig wires handlers and cross-cutting middleware into one engine.
// Nil controllers leave their routes unregistered.
type RouterConfig struct {
	Verify      *VerifyController
	Submissions *SubmissionController
	Hints       *HintController
	Audit       *AuditController

	Auth              middleware.Authenticator
	AllowUserIDHeader bool
	Limiter           middleware.Limiter
	RateLimit         middleware.RateLimitPolicy

	Metrics http.Handler
	Health  func() error
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddlewareWithConfig(commonmw.TraceContextConfig{
		AllowUserIDHeader: cfg.AllowUserIDHeader,
		WriteUserIDHeader: cfg.AllowUserIDHeader,
	}))
	router.Use(requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		if cfg.Health != nil {
			if err := cfg.Health(); err != nil {
				response.Error(c, err)
				return
			}
		}
		response.Success(c, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.Auth))

	limited := func(route string) gin.HandlerFunc {
		return middleware.RateLimitMiddleware(cfg.Limiter, route, cfg.RateLimit)
	}
	if cfg.Verify != nil {
		api.POST("/verify", limited("verify"), cfg.Verify.Verify)
		api.POST("/run", limited("run"), cfg.Verify.Run)
	}
	if cfg.Submissions != nil {
		api.POST("/verify/async", limited("verify_async"), cfg.Submissions.Create)
		api.GET("/verify/submissions/:id", cfg.Submissions.GetStatus)
		api.GET("/verify/submissions/:id/stream", cfg.Submissions.Stream)
	}
	if cfg.Hints != nil {
		api.POST("/hints/consume", cfg.Hints.Consume)
		api.GET("/hints/quota", cfg.Hints.Quota)
	}
	if cfg.Audit != nil {
		api.GET("/verify/audit/:problem/:id", cfg.Audit.Get)
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
