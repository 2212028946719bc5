package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"arbiter/internal/common/http/middleware"
	"arbiter/pkg/utils/contextkey"
)

func newTraceRouter(captured *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.TraceContextMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		if v := c.Request.Context().Value(contextkey.TraceID); v != nil {
			*captured, _ = v.(string)
		}
		c.Status(http.StatusOK)
	})
	return router
}

func TestTraceMiddlewareGeneratesID(t *testing.T) {
	t.Parallel()
	var captured string
	router := newTraceRouter(&captured)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	header := w.Header().Get("X-Trace-Id")
	if header == "" {
		t.Fatalf("expected generated trace id in response header")
	}
	if captured != header {
		t.Fatalf("context trace id %q must match header %q", captured, header)
	}
}

func TestTraceMiddlewarePropagatesIncomingID(t *testing.T) {
	t.Parallel()
	var captured string
	router := newTraceRouter(&captured)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Trace-Id", "trace-abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if captured != "trace-abc" {
		t.Fatalf("expected incoming trace id, got %q", captured)
	}
	if w.Header().Get("X-Trace-Id") != "trace-abc" {
		t.Fatalf("trace id must be echoed")
	}
}
