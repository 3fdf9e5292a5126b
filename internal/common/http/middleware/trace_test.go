package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"dailycode/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTraceContextGeneratesIDs(t *testing.T) {
	t.Parallel()

	var seenTrace interface{}
	r := gin.New()
	r.Use(TraceContextMiddleware())
	r.GET("/x", func(c *gin.Context) {
		seenTrace = c.Request.Context().Value(contextkey.TraceID)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	traceID := w.Header().Get(traceIDHeader)
	if traceID == "" {
		t.Fatalf("expected trace id header")
	}
	if seenTrace != traceID {
		t.Fatalf("context trace id = %v, header = %s", seenTrace, traceID)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestTraceContextUserHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  TraceContextConfig
		want string
		echo bool
	}{
		{name: "ignored by default", cfg: TraceContextConfig{}, want: ""},
		{name: "trusted", cfg: TraceContextConfig{AllowUserIDHeader: true}, want: "u1"},
		{name: "trusted and echoed", cfg: TraceContextConfig{AllowUserIDHeader: true, WriteUserIDHeader: true}, want: "u1", echo: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got string
			r := gin.New()
			r.Use(TraceContextMiddlewareWithConfig(tt.cfg))
			r.GET("/x", func(c *gin.Context) {
				got = UserIDFrom(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set(userIDHeader, " u1 ")
			req.Header.Set(traceIDHeader, "trace-abc")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if got != tt.want {
				t.Fatalf("user id = %q, want %q", got, tt.want)
			}
			if tt.echo != (w.Header().Get(userIDHeader) == "u1") {
				t.Fatalf("unexpected echo header %q", w.Header().Get(userIDHeader))
			}
			if w.Header().Get(traceIDHeader) != "trace-abc" {
				t.Fatalf("incoming trace id not kept")
			}
		})
	}
}
