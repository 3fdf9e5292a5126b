package middleware

import (
	"strings"

	commonmw "dailycode/internal/common/http/middleware"
	pkgerrors "dailycode/pkg/errors"
	"dailycode/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Authenticator resolves a bearer token to a learner id.
type Authenticator interface {
	Authenticate(raw string) (string, error)
}

// AuthMiddleware requires a learner identity. An id already placed by a
// trusted X-User-Id header is accepted as is.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if commonmw.UserIDFrom(c) != "" {
			c.Next()
			return
		}
		if auth == nil {
			response.AbortWithErrorCode(c, pkgerrors.ServiceUnavailable, "auth service unavailable")
			return
		}
		userID, err := auth.Authenticate(extractBearerToken(c.GetHeader("Authorization")))
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		commonmw.WithUserID(c, userID)
		c.Next()
	}
}

func extractBearerToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
