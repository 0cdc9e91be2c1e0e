package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoointerview/internal/logger"
)

func TestRequestLoggerScopesEntry(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	l := logger.NewWithLevel(&buf, "info")

	var seen string
	r := gin.New()
	r.Use(RequestLogger(l))
	r.GET("/interview/:session_id", func(c *gin.Context) {
		seen, _ = Log(c).Data["session_id"].(string)
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/interview/abc", nil)
	req.Header.Set("X-Request-Id", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if seen != "abc" {
		t.Fatalf("handler entry session_id = %q", seen)
	}
	if w.Header().Get("X-Request-Id") != "req-1" {
		t.Fatalf("request id header = %q", w.Header().Get("X-Request-Id"))
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line %q: %v", buf.String(), err)
	}
	if line["level"] != "warning" || line["request_id"] != "req-1" || line["status"] != float64(404) {
		t.Fatalf("log line = %v", line)
	}
}
