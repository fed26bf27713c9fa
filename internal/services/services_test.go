package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	"github.com/yungbote/scoolish-backend/internal/data/repos/testutil"
	types "github.com/yungbote/scoolish-backend/internal/domain"
	domfiles "github.com/yungbote/scoolish-backend/internal/domain/files"
	domjobs "github.com/yungbote/scoolish-backend/internal/domain/jobs"
	domprogress "github.com/yungbote/scoolish-backend/internal/domain/progress"
	domuser "github.com/yungbote/scoolish-backend/internal/domain/user"
	"github.com/yungbote/scoolish-backend/internal/platform/apierr"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/gcp/gcptest"
	"github.com/yungbote/scoolish-backend/internal/tools"
	"github.com/yungbote/scoolish-backend/internal/tools/prompts"
	"github.com/yungbote/scoolish-backend/internal/tools/sentiment"
	"github.com/yungbote/scoolish-backend/internal/tools/timeline"
	"github.com/yungbote/scoolish-backend/internal/tools/toolstest"
)

type env struct {
	db   *gorm.DB
	r    repos.Repos
	jobs JobService
	dbc  dbctx.Context
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	return &env{
		db:   db,
		r:    r,
		jobs: NewJobService(db, log, r.JobRun, nil),
		dbc:  dbctx.New(context.Background()),
	}
}

func (e *env) queued(t *testing.T, jobType string) []*types.JobRun {
	t.Helper()
	var out []*types.JobRun
	if err := e.db.Where("job_type = ?", jobType).Order("created_at ASC").Find(&out).Error; err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	return out
}

func payload(t *testing.T, j *types.JobRun) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(j.Payload, &m); err != nil {
		t.Fatalf("payload: %v", err)
	}
	return m
}

func wantAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("want *apierr.Error %d/%s, got %v", status, code, err)
	}
	if ae.Status != status || ae.Code != code {
		t.Fatalf("want %d/%s got %d/%s (%v)", status, code, ae.Status, ae.Code, ae.Err)
	}
}

func TestAuthRegisterLoginRefresh(t *testing.T) {
	e := newEnv(t)
	svc := NewAuthService(testutil.Logger(t), e.r.User, AuthConfig{Secret: "s3cret", AccessTTL: time.Minute, RefreshTTL: time.Hour})

	u, err := svc.Register(e.dbc, "ada", "Ada@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "ada@example.com" || u.PasswordHash == "correct horse" {
		t.Fatalf("user not normalized/hashed: %+v", u)
	}
	_, err = svc.Register(e.dbc, "ada", "other@example.com", "correct horse")
	wantAPIError(t, err, http.StatusConflict, "user_exists")

	_, _, err = svc.Login(e.dbc, "ada", "wrong password")
	wantAPIError(t, err, http.StatusUnauthorized, "invalid_credentials")

	_, tokens, err := svc.Login(e.dbc, "ADA@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	sub, err := svc.Authenticate(tokens.AccessToken)
	if err != nil || sub != u.ID.String() {
		t.Fatalf("Authenticate: sub=%q err=%v", sub, err)
	}
	if _, err := svc.Authenticate(tokens.RefreshToken); err == nil {
		t.Fatalf("refresh token accepted as access token")
	}

	next, err := svc.Refresh(e.dbc, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := svc.Authenticate(next.AccessToken); err != nil {
		t.Fatalf("refreshed access token: %v", err)
	}
}

func TestAuthRejectsExpiredAndForeignTokens(t *testing.T) {
	e := newEnv(t)
	svc := NewAuthService(testutil.Logger(t), e.r.User, AuthConfig{Secret: "a", AccessTTL: time.Minute}).(*authService)
	tok, err := svc.sign("user-1", tokenTypeAccess, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.Authenticate(tok)
	wantAPIError(t, err, http.StatusUnauthorized, "token_expired")

	other := NewAuthService(testutil.Logger(t), e.r.User, AuthConfig{Secret: "b"})
	_, err = other.Authenticate(tok)
	wantAPIError(t, err, http.StatusUnauthorized, "invalid_token")
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)
	svc := NewAuthService(testutil.Logger(t), e.r.User, AuthConfig{Secret: "x"})
	cases := []struct {
		name, username, email, password, code string
	}{
		{"short username", "ab", "a@b.co", "password1", "invalid_username"},
		{"bad email", "abc", "not-an-email", "password1", "invalid_email"},
		{"short password", "abc", "a@b.co", "short", "weak_password"},
	}
	for _, tc := range cases {
		_, err := svc.Register(e.dbc, tc.username, tc.email, tc.password)
		var ae *apierr.Error
		if !errors.As(err, &ae) || ae.Code != tc.code {
			t.Fatalf("%s: want code %s got %v", tc.name, tc.code, err)
		}
	}
}

func TestOnboardingSubmit(t *testing.T) {
	e := newEnv(t)
	u := testutil.SeedUser(t, context.Background(), e.db, "learner1")
	svc := NewOnboardingService(e.db, testutil.Logger(t), e.r.User, false)

	got, err := svc.Submit(e.dbc, u.ID.String(), map[string]any{
		"account_type":      "Learner",
		"school":            " Hill School ",
		"class_name":        "7B",
		"favorite_subjects": []any{"math", " ", "art"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.AccountType != domuser.AccountLearner || got.OnboardingStatus != domuser.OnboardingCompleted {
		t.Fatalf("user: %+v", got)
	}

	state, err := svc.State(e.dbc, u.ID.String())
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !state.HasProfile || state.Profile["school"] != "Hill School" {
		t.Fatalf("state: %+v", state)
	}
	if subjects, _ := state.Profile["favorite_subjects"].([]any); len(subjects) != 2 {
		t.Fatalf("blank items should be dropped: %v", state.Profile["favorite_subjects"])
	}
}

func TestOnboardingRejections(t *testing.T) {
	e := newEnv(t)
	u := testutil.SeedUser(t, context.Background(), e.db, "someone")
	svc := NewOnboardingService(e.db, testutil.Logger(t), e.r.User, false)

	_, err := svc.Submit(e.dbc, u.ID.String(), map[string]any{"account_type": "wizard"})
	wantAPIError(t, err, http.StatusBadRequest, "invalid_account_type")

	_, err = svc.Submit(e.dbc, u.ID.String(), map[string]any{"account_type": "organization", "org_name": "Acme", "contact_email": "a@acme.io"})
	wantAPIError(t, err, http.StatusPaymentRequired, "ORG_SUBSCRIPTION_REQUIRED")

	many := make([]any, 21)
	for i := range many {
		many[i] = "x"
	}
	_, err = svc.Submit(e.dbc, u.ID.String(), map[string]any{"account_type": "learner", "school": "s", "class_name": "c", "hobbies": many})
	wantAPIError(t, err, http.StatusBadRequest, "invalid_profile")

	_, err = svc.Submit(e.dbc, u.ID.String(), map[string]any{"account_type": "educator", "school": "s", "students_count": 2.5, "years_experience": 3.0})
	wantAPIError(t, err, http.StatusBadRequest, "invalid_profile")

	open := NewOnboardingService(e.db, testutil.Logger(t), e.r.User, true)
	if _, err := open.Submit(e.dbc, u.ID.String(), map[string]any{"account_type": "organization", "org_name": "Acme", "contact_email": "a@acme.io"}); err != nil {
		t.Fatalf("org signup with override: %v", err)
	}
}

func TestValidateProfileItemLength(t *testing.T) {
	_, err := ValidateProfile(domuser.AccountProfessional, map[string]any{
		"sector": "it", "job_title": "dev", "designation": "senior", "years_experience": 4.0,
		"skills": []any{strings.Repeat("g", 61)},
	})
	if err == nil || !strings.Contains(err.Error(), "skills items must be <= 60") {
		t.Fatalf("want length error, got %v", err)
	}
}

func TestFileUploadStoresBlobAndQueuesExtraction(t *testing.T) {
	e := newEnv(t)
	bucket := gcptest.NewBucket()
	svc := NewFileService(e.db, testutil.Logger(t), bucket, e.r, e.jobs)

	f, dup, err := svc.Upload(e.dbc, UploadInput{UserID: "u1", FileName: "My Notes (v2).txt", Data: []byte("hello")})
	if err != nil || dup {
		t.Fatalf("Upload: dup=%v err=%v", dup, err)
	}
	if f.FileType != domfiles.TypeDocument || f.Status != domfiles.StatusPending || f.Hash == nil {
		t.Fatalf("file: %+v", f)
	}
	if !strings.HasPrefix(f.FilePath, "u1/uploads/") || !strings.HasSuffix(f.FilePath, "_My_Notes_v2_.txt") {
		t.Fatalf("blob path: %q", f.FilePath)
	}
	if string(bucket.Objects[f.FilePath]) != "hello" {
		t.Fatalf("blob not stored")
	}
	jobs := e.queued(t, domjobs.TypeFileExtract)
	if len(jobs) != 1 || payload(t, jobs[0])["file_id"] != f.ID.String() {
		t.Fatalf("extract jobs: %+v", jobs)
	}

	again, dup, err := svc.Upload(e.dbc, UploadInput{UserID: "u1", FileName: "copy.txt", Data: []byte("hello")})
	if err != nil || !dup || again.ID != f.ID {
		t.Fatalf("duplicate upload: dup=%v err=%v", dup, err)
	}
	if n := len(e.queued(t, domjobs.TypeFileExtract)); n != 1 {
		t.Fatalf("duplicate queued another job: %d", n)
	}

	_, _, err = svc.Upload(e.dbc, UploadInput{UserID: "u1", FileName: "archive.zip", Data: []byte("x")})
	wantAPIError(t, err, http.StatusBadRequest, "unsupported_file_type")
}

func TestFileResolveIsOwnerScoped(t *testing.T) {
	e := newEnv(t)
	svc := NewFileService(e.db, testutil.Logger(t), gcptest.NewBucket(), e.r, e.jobs)
	f := testutil.SeedFile(t, context.Background(), e.db, "u1", "a.txt")

	got, err := svc.Resolve(e.dbc, "u1", "", "a.txt")
	if err != nil || got.ID != f.ID {
		t.Fatalf("by name: %v %v", got, err)
	}
	_, err = svc.Resolve(e.dbc, "u2", f.ID.String(), "")
	wantAPIError(t, err, http.StatusNotFound, "file_not_found")
	_, err = svc.Resolve(e.dbc, "u1", "", "")
	wantAPIError(t, err, http.StatusBadRequest, "missing_file")
}

func newToolEnv(t *testing.T) (*env, ToolService) {
	t.Helper()
	e := newEnv(t)
	cat, err := prompts.Load()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	base := tools.Base{LLM: toolstest.Reply(`{}`), Prompts: cat}
	log := testutil.Logger(t)
	files := NewFileService(e.db, log, gcptest.NewBucket(), e.r, e.jobs)
	progress := NewProgressService(e.db, log, e.r.Progress)
	svc := NewToolService(e.db, log, tools.NewRegistry(sentiment.New(base)), []tools.DocTool{timeline.New(base)}, e.r, files, progress, e.jobs)
	return e, svc
}

func TestStartPageTool(t *testing.T) {
	e, svc := newToolEnv(t)
	ctx := context.Background()
	f := testutil.SeedFile(t, ctx, e.db, "u1", "essay.txt")

	_, err := svc.StartPageTool(e.dbc, "u1", sentiment.Name, PageToolStart{FileID: f.ID.String()})
	wantAPIError(t, err, http.StatusNotFound, "no_pages")

	testutil.SeedPages(t, ctx, e.db, f.ID, "one", "two")
	p, err := svc.StartPageTool(e.dbc, "u1", sentiment.Name, PageToolStart{Filename: "essay.txt", Force: true})
	if err != nil {
		t.Fatalf("StartPageTool: %v", err)
	}
	if p.Status != domprogress.StatusInProgress || p.FileID == nil || *p.FileID != f.ID {
		t.Fatalf("progress: %+v", p)
	}
	jobs := e.queued(t, domjobs.TypePageTool)
	if len(jobs) != 1 {
		t.Fatalf("jobs: %d", len(jobs))
	}
	m := payload(t, jobs[0])
	if m["progress_id"] != p.ID.String() || m["tool"] != sentiment.Name || m["force"] != true {
		t.Fatalf("payload: %v", m)
	}

	_, err = svc.StartPageTool(e.dbc, "u1", "timeline", PageToolStart{FileID: f.ID.String()})
	wantAPIError(t, err, http.StatusNotFound, "unknown_tool")
}

func TestPageResultsMergesStoredPages(t *testing.T) {
	e, svc := newToolEnv(t)
	ctx := context.Background()
	f := testutil.SeedFile(t, ctx, e.db, "u1", "essay.txt")
	testutil.SeedPages(t, ctx, e.db, f.ID, "one", "two")
	if err := e.r.PageResult.Upsert(e.dbc, f.ID, 1, sentiment.Name, datatypes.JSON([]byte(`{"label":"positive","score":0.8}`))); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	out, err := svc.PageResults(e.dbc, "u1", sentiment.Name, f.ID.String(), tools.Options{})
	if err != nil {
		t.Fatalf("PageResults: %v", err)
	}
	if out["file_id"] != f.ID.String() {
		t.Fatalf("file_id: %v", out["file_id"])
	}
	b, _ := json.Marshal(out["per_page"])
	if !strings.Contains(string(b), "positive") || !strings.Contains(string(b), `"page":2`) {
		t.Fatalf("per_page: %s", b)
	}
}

func TestDocToolStartAndResult(t *testing.T) {
	e, svc := newToolEnv(t)

	_, err := svc.StartDocTool(e.dbc, "u1", timeline.Name, tools.DocRequest{Method: "category"})
	wantAPIError(t, err, http.StatusBadRequest, "invalid_request")

	p, err := svc.StartDocTool(e.dbc, "u1", timeline.Name, tools.DocRequest{Category: "Space race"})
	if err != nil {
		t.Fatalf("StartDocTool: %v", err)
	}
	if _, err := svc.DocResult(e.dbc, "u1", timeline.Name, p.ID); err == nil {
		t.Fatalf("result served before completion")
	}

	pct := 100
	if _, err := e.r.Progress.Finish(e.dbc, p.ID, domprogress.StatusCompleted, &pct); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := e.r.Progress.SetResult(e.dbc, p.ID, datatypes.JSON([]byte(`{"timeline":[]}`))); err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	raw, err := svc.DocResult(e.dbc, "u1", timeline.Name, p.ID)
	if err != nil || string(raw) != `{"timeline":[]}` {
		t.Fatalf("DocResult: %s %v", raw, err)
	}
	_, err = svc.DocResult(e.dbc, "u2", timeline.Name, p.ID)
	wantAPIError(t, err, http.StatusNotFound, "progress_not_found")
	_, err = svc.DocResult(e.dbc, "u1", sentiment.Name, p.ID)
	wantAPIError(t, err, http.StatusNotFound, "progress_not_found")
}

func TestBatchStartStaggersJobs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.SeedFile(t, ctx, e.db, "u1", "a.txt")
	b := testutil.SeedFile(t, ctx, e.db, "u1", "b.txt")
	svc := NewBatchService(e.db, testutil.Logger(t), e.r, e.jobs)

	_, err := svc.Start(e.dbc, "u1", nil)
	wantAPIError(t, err, http.StatusBadRequest, "no_files")
	_, err = svc.Start(e.dbc, "u1", []string{"1", "2", "3", "4", "5", "6"})
	wantAPIError(t, err, http.StatusBadRequest, "too_many_files")
	_, err = svc.Start(e.dbc, "u1", []string{a.StoredFileName, "missing.pdf"})
	wantAPIError(t, err, http.StatusNotFound, "vault_file_not_found")

	view, err := svc.Start(e.dbc, "u1", []string{a.StoredFileName, b.StoredFileName})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(view.Files) != 2 || view.Files[1].FileID != b.ID.String() || view.Files[0].Source != "vault" {
		t.Fatalf("files: %+v", view.Files)
	}
	jobs := e.queued(t, domjobs.TypePageTool)
	if len(jobs) != 2 || jobs[0].RunAfter != nil || jobs[1].RunAfter == nil {
		t.Fatalf("stagger: %+v", jobs)
	}
	if d := jobs[1].RunAfter.Sub(jobs[1].CreatedAt); d < 2*time.Second || d > 4*time.Second {
		t.Fatalf("second job delay: %s", d)
	}
}

func TestBatchProgressRollup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.SeedFile(t, ctx, e.db, "u1", "a.txt")
	b := testutil.SeedFile(t, ctx, e.db, "u1", "b.txt")
	svc := NewBatchService(e.db, testutil.Logger(t), e.r, e.jobs)
	view, err := svc.Start(e.dbc, "u1", []string{a.StoredFileName, b.StoredFileName})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	batchID := uuid.MustParse(view.BatchID)

	first := uuid.MustParse(view.Files[0].ProgressID)
	pct := 100
	if _, err := e.r.Progress.Finish(e.dbc, first, domprogress.StatusCompleted, &pct); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if _, err := e.r.Progress.Bump(e.dbc, uuid.MustParse(view.Files[1].ProgressID), 45); err != nil {
		t.Fatalf("Bump: %v", err)
	}

	got, err := svc.Progress(e.dbc, "u1", batchID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if got.Status != domprogress.StatusInProgress || got.Percentage != 72 {
		t.Fatalf("rollup: status=%q pct=%d", got.Status, got.Percentage)
	}
	saved, _ := e.r.Batch.Get(e.dbc, batchID)
	if saved.Percentage != 72 {
		t.Fatalf("batch not saved: %d", saved.Percentage)
	}

	_, err = svc.Progress(e.dbc, "u2", batchID)
	wantAPIError(t, err, http.StatusNotFound, "batch_not_found")
}

func TestBatchProgressLookupErrorLeavesBatchUnsaved(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := testutil.SeedFile(t, ctx, e.db, "u1", "a.txt")
	svc := NewBatchService(e.db, testutil.Logger(t), e.r, e.jobs)
	view, err := svc.Start(e.dbc, "u1", []string{a.StoredFileName})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	batchID := uuid.MustParse(view.BatchID)
	if err := e.db.Migrator().DropTable(&types.Progress{}); err != nil {
		t.Fatalf("DropTable: %v", err)
	}

	if _, err := svc.Progress(e.dbc, "u1", batchID); err == nil {
		t.Fatalf("expected an error when file progress cannot be read")
	}
	saved, _ := e.r.Batch.Get(e.dbc, batchID)
	if saved.Status != domprogress.StatusInProgress || saved.Percentage != 0 {
		t.Fatalf("batch rewritten from a failed lookup: status=%q pct=%d", saved.Status, saved.Percentage)
	}
}

func TestRollupBatchCountsHundredAsFinished(t *testing.T) {
	specs := []domprogress.BatchFile{
		{ProgressID: "a", Status: domprogress.StatusInProgress, Percentage: 100},
		{ProgressID: "b", Status: domprogress.StatusCompleted, Percentage: 90},
	}
	status, pct := RollupBatch(specs, func(string) *types.Progress { return nil })
	if status != domprogress.StatusCompleted || pct != 95 {
		t.Fatalf("status=%q pct=%d", status, pct)
	}
}

func TestScraperQueueFiltersURLs(t *testing.T) {
	e := newEnv(t)
	svc := NewScraperService(e.db, testutil.Logger(t), e.r, e.jobs)

	_, err := svc.Queue(e.dbc, "u1", []string{"ftp://x.org/file", "not a url"})
	wantAPIError(t, err, http.StatusBadRequest, "no_valid_urls")

	out, err := svc.Queue(e.dbc, "u1", []string{"https://a.example.org/page", "ftp://x.org/file", " http://b.example.org "})
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(out.Queued) != 2 || len(out.Rejected) != 1 || out.Rejected[0] != "ftp://x.org/file" {
		t.Fatalf("queue result: %+v", out)
	}
	if out.Queued[0].Domain != "a.example.org" || out.Queued[0].JobRunID == nil {
		t.Fatalf("scrape job: %+v", out.Queued[0])
	}
	jobs := e.queued(t, domjobs.TypeWebScrape)
	if len(jobs) != 2 || payload(t, jobs[0])["scrape_job_id"] != out.Queued[0].ID.String() {
		t.Fatalf("web_scrape jobs: %+v", jobs)
	}

	listed, err := svc.Jobs(e.dbc, "u1")
	if err != nil || len(listed) != 2 {
		t.Fatalf("Jobs: %d %v", len(listed), err)
	}
	_, err = svc.Job(e.dbc, "u2", out.Queued[0].ID)
	wantAPIError(t, err, http.StatusNotFound, "scrape_job_not_found")
}

func TestSearchReturnsPlaceholderResults(t *testing.T) {
	svc := NewScraperService(nil, testutil.Logger(t), repos.Repos{}, nil)
	res, err := svc.Search("photosynthesis")
	if err != nil || len(res) != 3 || res[0].Title != "Result for photosynthesis #1" {
		t.Fatalf("Search: %+v %v", res, err)
	}
	_, err = svc.Search("  ")
	wantAPIError(t, err, http.StatusBadRequest, "missing_query")
}
