package middleware

import (
	"context"
	"fmt"
	"time"

	commonmw "dailycode/internal/common/http/middleware"
	"dailycode/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Limiter counts hits on a key within a window.
type Limiter interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) error
}

type RateLimitPolicy struct {
	Window  time.Duration
	UserMax int
	IPMax   int
}

// RateLimitMiddleware enforces per-learner and per-IP fixed windows for one route.
func RateLimitMiddleware(limiter Limiter, routeKey string, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		if policy.IPMax > 0 {
			key := fmt.Sprintf("verify:rate:ip:%s:%s", c.ClientIP(), routeKey)
			if err := limiter.Allow(c.Request.Context(), key, policy.IPMax, policy.Window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}
		if userID := commonmw.UserIDFrom(c); policy.UserMax > 0 && userID != "" {
			key := fmt.Sprintf("verify:rate:user:%s:%s", userID, routeKey)
			if err := limiter.Allow(c.Request.Context(), key, policy.UserMax, policy.Window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}
		c.Next()
	}
}
