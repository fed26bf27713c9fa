package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/scoolish-backend/internal/platform/ctxutil"
)

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name        string
		traceHeader string
		reqHeader   string
		keepTrace   bool
		keepRequest bool
	}{
		{name: "generated", keepTrace: false, keepRequest: false},
		{name: "propagated", traceHeader: "trace-abc", reqHeader: "req:42", keepTrace: true, keepRequest: true},
		{name: "unsafe header replaced", traceHeader: "bad id\n", reqHeader: strings.Repeat("x", 200)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen *ctxutil.TraceData
			r := gin.New()
			r.Use(AttachTraceContext())
			r.GET("/x", func(c *gin.Context) {
				seen = ctxutil.GetTraceData(c.Request.Context())
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.traceHeader != "" {
				req.Header.Set(headerTraceID, tc.traceHeader)
			}
			if tc.reqHeader != "" {
				req.Header.Set(headerRequestID, tc.reqHeader)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if seen == nil || seen.TraceID == "" || seen.RequestID == "" {
				t.Fatalf("trace data: %+v", seen)
			}
			if got := seen.TraceID == tc.traceHeader; got != tc.keepTrace {
				t.Fatalf("trace id kept=%v want=%v (%q)", got, tc.keepTrace, seen.TraceID)
			}
			if got := seen.RequestID == tc.reqHeader; got != tc.keepRequest {
				t.Fatalf("request id kept=%v want=%v (%q)", got, tc.keepRequest, seen.RequestID)
			}
			if rec.Header().Get(headerTraceID) != seen.TraceID || rec.Header().Get(headerRequestID) != seen.RequestID {
				t.Fatalf("response headers: %v", rec.Header())
			}
		})
	}
}
