package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	"github.com/yungbote/scoolish-backend/internal/data/repos/testutil"
	httpH "github.com/yungbote/scoolish-backend/internal/http/handlers"
	httpMW "github.com/yungbote/scoolish-backend/internal/http/middleware"
	"github.com/yungbote/scoolish-backend/internal/observability"
	"github.com/yungbote/scoolish-backend/internal/platform/gcp/gcptest"
	"github.com/yungbote/scoolish-backend/internal/realtime"
	"github.com/yungbote/scoolish-backend/internal/services"
	"github.com/yungbote/scoolish-backend/internal/tools"
	"github.com/yungbote/scoolish-backend/internal/tools/prompts"
	"github.com/yungbote/scoolish-backend/internal/tools/sentiment"
	"github.com/yungbote/scoolish-backend/internal/tools/timeline"
	"github.com/yungbote/scoolish-backend/internal/tools/toolstest"
)

type apiEnv struct {
	db      *gorm.DB
	router  *gin.Engine
	bucket  *gcptest.Bucket
	metrics *observability.Metrics
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	cat, err := prompts.Load()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	base := tools.Base{LLM: toolstest.Reply(`{}`), Prompts: cat}
	bucket := gcptest.NewBucket()

	jobs := services.NewJobService(db, log, r.JobRun, nil)
	auth := services.NewAuthService(log, r.User, services.AuthConfig{Secret: "test-secret", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	files := services.NewFileService(db, log, bucket, r, jobs)
	progress := services.NewProgressService(db, log, r.Progress)
	toolSvc := services.NewToolService(db, log, tools.NewRegistry(sentiment.New(base)), []tools.DocTool{timeline.New(base)}, r, files, progress, jobs)
	metrics := observability.NewMetrics()

	checks := map[string]httpH.HealthCheck{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	router := NewRouter(RouterConfig{
		Log:               log,
		Metrics:           metrics,
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, auth, true),
		AuthHandler:       httpH.NewAuthHandler(auth),
		OnboardingHandler: httpH.NewOnboardingHandler(services.NewOnboardingService(db, log, r.User, false)),
		FileHandler:       httpH.NewFileHandler(files, 1<<20),
		ToolHandler:       httpH.NewToolHandler(toolSvc, progress),
		BatchHandler:      httpH.NewBatchHandler(services.NewBatchService(db, log, r, jobs)),
		ProgressHandler:   httpH.NewProgressHandler(progress),
		RealtimeHandler:   httpH.NewRealtimeHandler(log, realtime.NewSSEHub(log)),
		ScraperHandler:    httpH.NewScraperHandler(services.NewScraperService(db, log, r, jobs)),
		HealthHandler:     httpH.NewHealthHandler(checks),
	})
	return &apiEnv{db: db, router: router, bucket: bucket, metrics: metrics}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) map[string]any {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status: want=%d got=%d body=%s", status, rec.Code, rec.Body.String())
	}
	env := decode(t, rec)
	e, _ := env["error"].(map[string]any)
	if e == nil || e["code"] != code {
		t.Fatalf("error code: want=%s body=%s", code, rec.Body.String())
	}
	return e
}

var asUser = map[string]string{"X-User-Id": "u1"}

func TestHealthAndMetrics(t *testing.T) {
	e := newAPI(t)
	if rec := e.do(t, http.MethodGet, "/healthcheck", nil, nil); rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: %d %q", rec.Code, rec.Body.String())
	}
	if rec := e.do(t, http.MethodGet, "/api/health", nil, nil); rec.Code != 200 || !strings.Contains(rec.Body.String(), `"postgres":"ok"`) {
		t.Fatalf("readiness: %d %q", rec.Code, rec.Body.String())
	}
	e.do(t, http.MethodGet, "/api/progress/all", nil, asUser)
	rec := e.do(t, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), `route="/api/progress/all",status="200"`) {
		t.Fatalf("metrics: %d\n%s", rec.Code, rec.Body.String())
	}
}

func TestAuthFlowAndOnboardingRequiresToken(t *testing.T) {
	e := newAPI(t)
	rec := e.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "grace", "email": "grace@example.com", "password": "hopper1906",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	wantError(t, e.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "grace", "email": "grace@example.com", "password": "hopper1906",
	}, nil), http.StatusConflict, "user_exists")

	rec = e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "grace", "password": "hopper1906"}, nil)
	if rec.Code != 200 {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	token, _ := decode(t, rec)["access_token"].(string)
	if token == "" {
		t.Fatalf("login returned no access token: %s", rec.Body.String())
	}
	bearer := map[string]string{"Authorization": "Bearer " + token}

	rec = e.do(t, http.MethodGet, "/api/auth/me", nil, bearer)
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), `"username":"grace"`) {
		t.Fatalf("me: %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("me leaks password hash: %s", rec.Body.String())
	}

	wantError(t, e.do(t, http.MethodGet, "/api/onboarding", nil, asUser), http.StatusUnauthorized, "missing_token")
	wantError(t, e.do(t, http.MethodGet, "/api/auth/me", nil, map[string]string{"Authorization": "Bearer junk"}),
		http.StatusUnauthorized, "invalid_token")

	wantError(t, e.do(t, http.MethodPost, "/api/onboarding", map[string]any{"account_type": "organization", "org_name": "Acme"}, bearer),
		http.StatusPaymentRequired, "ORG_SUBSCRIPTION_REQUIRED")
	rec = e.do(t, http.MethodPost, "/api/onboarding", map[string]any{"account_type": "learner", "school": "Lincoln High", "class_name": "10B"}, bearer)
	if rec.Code != 200 || decode(t, rec)["onboarding_status"] != "completed" {
		t.Fatalf("onboarding: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUploadListAndDuplicate(t *testing.T) {
	e := newAPI(t)
	upload := func(name, content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		fw, err := w.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		_, _ = fw.Write([]byte(content))
		_ = w.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("X-User-Id", "u1")
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		return rec
	}

	if rec := upload("notes.txt", "photosynthesis"); rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	rec := upload("again.txt", "photosynthesis")
	if rec.Code != 200 || decode(t, rec)["duplicate"] != true {
		t.Fatalf("duplicate upload: %d %s", rec.Code, rec.Body.String())
	}
	wantError(t, upload("tool.exe", "MZ"), http.StatusBadRequest, "unsupported_file_type")

	rec = e.do(t, http.MethodGet, "/api/files", nil, asUser)
	files, _ := decode(t, rec)["files"].([]any)
	if rec.Code != 200 || len(files) != 1 {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	if len(e.bucket.Keys()) != 1 {
		t.Fatalf("bucket keys: %v", e.bucket.Keys())
	}
	wantError(t, e.do(t, http.MethodGet, "/api/files", nil, nil), http.StatusUnauthorized, "unauthorized")
}

func TestToolStartAndProgress(t *testing.T) {
	e := newAPI(t)
	ctx := context.Background()
	f := testutil.SeedFile(t, ctx, e.db, "u7", "essay.txt")

	wantError(t, e.do(t, http.MethodPost, "/api/tools/sentiment/start", map[string]any{"file_id": f.ID.String()}, nil),
		http.StatusBadRequest, "missing_user")

	body := map[string]any{"file_id": f.ID.String(), "user_id": "u7"}
	errBody := wantError(t, e.do(t, http.MethodPost, "/api/tools/sentiment/start", body, nil), http.StatusNotFound, "no_pages")
	if errBody["message"] != "No pages for file_id" {
		t.Fatalf("message: %v", errBody["message"])
	}

	testutil.SeedPages(t, ctx, e.db, f.ID, "a good day", "a bad day")
	rec := e.do(t, http.MethodPost, "/api/tools/sentiment/start", body, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	started := decode(t, rec)
	pid, _ := started["progress_id"].(string)
	if pid == "" || started["file_id"] != f.ID.String() {
		t.Fatalf("start body: %v", started)
	}

	rec = e.do(t, http.MethodGet, "/api/tools/sentiment/progress/"+pid, nil, nil)
	if rec.Code != 200 {
		t.Fatalf("progress: %d %s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec); got["status"] != "in_progress" || got["tool"] != "sentiment" {
		t.Fatalf("progress body: %v", got)
	}
	wantError(t, e.do(t, http.MethodGet, "/api/tools/timeline/progress/"+pid, nil, nil), http.StatusNotFound, "progress_not_found")
	wantError(t, e.do(t, http.MethodGet, "/api/tools/sentiment/progress/nope", nil, nil), http.StatusBadRequest, "invalid_id")
	wantError(t, e.do(t, http.MethodPost, "/api/tools/comic_builder/start", body, nil), http.StatusNotFound, "unknown_tool")

	rec = e.do(t, http.MethodGet, "/api/tools/overview", nil, map[string]string{"X-User-Id": "u7"})
	if tools, _ := decode(t, rec)["tools"].([]any); rec.Code != 200 || len(tools) != 1 {
		t.Fatalf("overview: %d %s", rec.Code, rec.Body.String())
	}
}

func TestDocToolResultNotReady(t *testing.T) {
	e := newAPI(t)
	rec := e.do(t, http.MethodPost, "/api/tools/timeline/start", map[string]any{"method": "category", "category": "Space race"}, asUser)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	pid, _ := decode(t, rec)["progress_id"].(string)
	wantError(t, e.do(t, http.MethodGet, "/api/tools/timeline/result/"+pid, nil, asUser), http.StatusNotFound, "result_not_ready")
	wantError(t, e.do(t, http.MethodGet, "/api/tools/sentiment/result/"+pid, nil, asUser), http.StatusNotFound, "progress_not_found")
	wantError(t, e.do(t, http.MethodPost, "/api/tools/timeline/start", map[string]any{"method": "carrier pigeon"}, asUser),
		http.StatusBadRequest, "invalid_request")
}

func TestBatchAndScraperValidation(t *testing.T) {
	e := newAPI(t)
	wantError(t, e.do(t, http.MethodPost, "/api/summarizer/start_batch", map[string]any{"vault": []string{}}, asUser),
		http.StatusBadRequest, "no_files")
	wantError(t, e.do(t, http.MethodPost, "/api/summarizer/start_batch", map[string]any{"vault": []string{"a", "b", "c", "d", "e", "f"}}, asUser),
		http.StatusBadRequest, "too_many_files")
	errBody := wantError(t, e.do(t, http.MethodPost, "/api/summarizer/start_batch", map[string]any{"vault": []string{"ghost.pdf"}}, asUser),
		http.StatusNotFound, "vault_file_not_found")
	if !strings.Contains(errBody["message"].(string), "ghost.pdf") {
		t.Fatalf("message should name the file: %v", errBody["message"])
	}

	rec := e.do(t, http.MethodPost, "/api/scraper/queue", map[string]any{"urls": []string{"https://example.org/a", "ftp://x"}}, asUser)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("queue: %d %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	queued, _ := out["queued"].([]any)
	rejected, _ := out["rejected"].([]any)
	if len(queued) != 1 || len(rejected) != 1 || rejected[0] != "ftp://x" {
		t.Fatalf("queue body: %v", out)
	}
	rec = e.do(t, http.MethodGet, "/api/scraper/search?q=cells", nil, asUser)
	if results, _ := decode(t, rec)["results"].([]any); rec.Code != 200 || len(results) != 3 {
		t.Fatalf("search: %d %s", rec.Code, rec.Body.String())
	}
}
