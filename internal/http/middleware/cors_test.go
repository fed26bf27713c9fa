package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		configured []string
		origin     string
		allowed    bool
	}{
		{name: "dev default localhost", origin: "http://localhost:5174", allowed: true},
		{name: "dev default loopback", origin: "http://127.0.0.1:5173", allowed: true},
		{name: "unknown origin", origin: "https://evil.example", allowed: false},
		{name: "configured origin", configured: []string{"https://app.scoolish.io"}, origin: "https://app.scoolish.io", allowed: true},
		{name: "configured replaces defaults", configured: []string{"https://app.scoolish.io"}, origin: "http://localhost:5173", allowed: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tc.configured...))
			r.POST("/api/tools/:tool/start", func(c *gin.Context) { c.Status(http.StatusAccepted) })

			req := httptest.NewRequest(http.MethodOptions, "/api/tools/quiz/start", nil)
			req.Header.Set("Origin", tc.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "X-User-Id")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			got := rec.Header().Get("Access-Control-Allow-Origin") == tc.origin
			if got != tc.allowed {
				t.Fatalf("allowed=%v want=%v (status %d, headers %v)", got, tc.allowed, rec.Code, rec.Header())
			}
			if tc.allowed && rec.Code != http.StatusNoContent {
				t.Fatalf("preflight status: got=%d want=%d", rec.Code, http.StatusNoContent)
			}
		})
	}
}

func TestCORSExposesTraceHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.GET("/api/progress/all", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/progress/all", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Expose-Headers"); got == "" {
		t.Fatalf("expose headers missing: %v", rec.Header())
	}
}
