package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	commonmw "dailycode/internal/common/http/middleware"
	pkgerrors "dailycode/pkg/errors"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuth struct {
	tokens map[string]string
}

func (s stubAuth) Authenticate(raw string) (string, error) {
	if id, ok := s.tokens[raw]; ok {
		return id, nil
	}
	return "", pkgerrors.New(pkgerrors.TokenInvalid)
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		trustID    bool
		header     map[string]string
		wantStatus int
		wantUser   string
	}{
		{name: "bearer token", header: map[string]string{"Authorization": "Bearer good"}, wantStatus: http.StatusOK, wantUser: "u1"},
		{name: "lowercase scheme", header: map[string]string{"Authorization": "bearer good"}, wantStatus: http.StatusOK, wantUser: "u1"},
		{name: "bad token", header: map[string]string{"Authorization": "Bearer bad"}, wantStatus: http.StatusUnauthorized},
		{name: "missing token", wantStatus: http.StatusUnauthorized},
		{name: "untrusted user header", header: map[string]string{"X-User-Id": "u9"}, wantStatus: http.StatusUnauthorized},
		{name: "trusted user header", trustID: true, header: map[string]string{"X-User-Id": "u9"}, wantStatus: http.StatusOK, wantUser: "u9"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var seen string
			r := gin.New()
			r.Use(commonmw.TraceContextMiddlewareWithConfig(commonmw.TraceContextConfig{AllowUserIDHeader: tt.trustID}))
			r.Use(AuthMiddleware(stubAuth{tokens: map[string]string{"good": "u1"}}))
			r.GET("/x", func(c *gin.Context) {
				seen = commonmw.UserIDFrom(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if seen != tt.wantUser {
				t.Fatalf("user = %q, want %q", seen, tt.wantUser)
			}
		})
	}
}

type countingLimiter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, key string, max int, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hits == nil {
		l.hits = map[string]int{}
	}
	l.hits[key]++
	if l.hits[key] > max {
		return pkgerrors.New(pkgerrors.TooManyRequests)
	}
	return nil
}

func TestRateLimitMiddlewarePerLearner(t *testing.T) {
	t.Parallel()
	limiter := &countingLimiter{}
	r := gin.New()
	r.Use(commonmw.TraceContextMiddlewareWithConfig(commonmw.TraceContextConfig{AllowUserIDHeader: true}))
	r.Use(RateLimitMiddleware(limiter, "verify", RateLimitPolicy{Window: time.Minute, UserMax: 2}))
	r.POST("/verify", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/verify", nil)
		req.Header.Set("X-User-Id", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	for i := 0; i < 2; i++ {
		if code := do("u1"); code != http.StatusOK {
			t.Fatalf("hit %d status = %d", i+1, code)
		}
	}
	if code := do("u1"); code != http.StatusTooManyRequests {
		t.Fatalf("third hit status = %d", code)
	}
	if code := do("u2"); code != http.StatusOK {
		t.Fatalf("other learner status = %d", code)
	}
	if limiter.hits["verify:rate:user:u1:verify"] != 3 {
		t.Fatalf("hits = %v", limiter.hits)
	}
}
