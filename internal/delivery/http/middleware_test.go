package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func TestRequestLogger(t *testing.T) {
	router := gin.New()
	router.Use(RequestLogger(zap.NewNop()))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	req, _ := http.NewRequest("GET", "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (logger must not interfere)", w.Code)
	}
	if w.Body.String() != "pong" {
		t.Errorf("body = %q, want pong", w.Body.String())
	}
}

func TestPerIPRateLimit(t *testing.T) {
	router := gin.New()
	router.Use(PerIPRateLimit(3))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	// The burst equals the per-minute budget, so the first three requests
	// pass and the fourth is rejected.
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest("GET", "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}

	req, _ := http.NewRequest("GET", "/ping", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 after the burst is spent", w.Code)
	}

	// A different client IP has its own budget.
	req, _ = http.NewRequest("GET", "/ping", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for a fresh client", w.Code)
	}
}
