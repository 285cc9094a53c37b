package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/vibelog/backend/internal/logger"
)

func corsEngine(cfg CORSConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoggerMiddleware(logger.Discard()), CORS(cfg))
	r.GET("/vibelogs", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORS_Origins(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://vibelog.app/", "https://*.vibelog.dev"}}
	tests := []struct {
		origin string
		want   string
	}{
		{"https://vibelog.app", "https://vibelog.app"},
		{"https://VIBELOG.app", "https://VIBELOG.app"},
		{"https://preview.vibelog.dev", "https://preview.vibelog.dev"},
		{"https://.vibelog.dev", ""},
		{"http://preview.vibelog.dev", ""},
		{"https://evil.example", ""},
		{"", ""},
	}
	r := corsEngine(cfg)
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/vibelogs", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("origin %q: status = %d", tt.origin, w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %q: allow-origin = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := corsEngine(CORSConfig{AllowAllOrigins: true})
	req := httptest.NewRequest(http.MethodOptions, "/vibelogs", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("wildcard origin must not allow credentials")
	}
	if w.Header().Get("Access-Control-Max-Age") == "" {
		t.Error("preflight missing max-age")
	}
}

func TestLoggerMiddleware_RequestID(t *testing.T) {
	r := corsEngine(CORSConfig{})
	tests := []struct {
		in       string
		keepSame bool
	}{
		{"abc-123", true},
		{"has space", false},
		{"", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/vibelogs", nil)
		if tt.in != "" {
			req.Header.Set("X-Request-ID", tt.in)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		got := w.Header().Get("X-Request-ID")
		if got == "" {
			t.Fatalf("%q: no request id in response", tt.in)
		}
		if (got == tt.in) != tt.keepSame {
			t.Errorf("%q: response id = %q", tt.in, got)
		}
	}
}
