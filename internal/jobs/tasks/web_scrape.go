package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	types "github.com/yungbote/scoolish-backend/internal/domain"
	domjobs "github.com/yungbote/scoolish-backend/internal/domain/jobs"
	domknowledge "github.com/yungbote/scoolish-backend/internal/domain/knowledge"
	"github.com/yungbote/scoolish-backend/internal/jobs/runtime"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/gcp"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
	"github.com/yungbote/scoolish-backend/internal/platform/webfetch"
	"github.com/yungbote/scoolish-backend/internal/tools/webnotes"
)

type Summarizer interface {
	Summarize(ctx context.Context, url, title, text string) (webnotes.Notes, error)
}

// WebScrape fetches one queued URL, summarizes it into notes, stores the
// raw and text blobs and records a knowledge item. Progress on the scrape
// row moves 5 -> 25 -> 70 -> 100.
type WebScrape struct {
	log       *logger.Logger
	fetch     webfetch.Fetcher
	summarize Summarizer
	bucket    gcp.BucketService
	jobs      repos.ScrapeJobRepo
	items     repos.KnowledgeItemRepo
	now       func() time.Time
}

func NewWebScrape(log *logger.Logger, fetch webfetch.Fetcher, summarize Summarizer, bucket gcp.BucketService, r repos.Repos) *WebScrape {
	return &WebScrape{
		log:       log.With("job", domjobs.TypeWebScrape),
		fetch:     fetch,
		summarize: summarize,
		bucket:    bucket,
		jobs:      r.ScrapeJob,
		items:     r.Knowledge,
		now:       time.Now,
	}
}

func (h *WebScrape) Type() string { return domjobs.TypeWebScrape }

func (h *WebScrape) Run(jc *runtime.Context) error {
	id, ok := jc.PayloadUUID("scrape_job_id")
	if !ok {
		return runtime.Permanent(fmt.Errorf("missing scrape_job_id"))
	}
	userID := jc.Job.OwnerUserID
	dbc := dbctx.New(jc.Ctx)
	sj, err := h.jobs.GetForUser(dbc, userID, id)
	if err != nil {
		return fmt.Errorf("load scrape job: %w", err)
	}
	if sj == nil {
		return runtime.Permanent(fmt.Errorf("scrape job %s not found", id))
	}
	log := h.log.With("scrape_job_id", sj.ID, "url", sj.URL)

	fail := func(err error) error {
		if jc.Terminal(err) {
			_ = h.jobs.UpdateFields(dbc, sj.ID, map[string]interface{}{
				"status":     domknowledge.ScrapeFailed,
				"error":      err.Error(),
				"updated_at": h.now(),
			})
		}
		return err
	}

	h.step(jc, dbc, sj.ID, 5, map[string]interface{}{"status": domknowledge.ScrapeInProgress, "error": ""})

	page, err := h.fetch.Fetch(jc.Ctx, sj.URL)
	if err != nil {
		return fail(err)
	}
	h.step(jc, dbc, sj.ID, 25, map[string]interface{}{"title": page.Title})

	notes, err := h.summarize.Summarize(jc.Ctx, sj.URL, page.Title, page.Text)
	if err != nil {
		return fail(fmt.Errorf("summarize: %w", err))
	}
	if notes.Title == "" {
		notes.Title = page.Title
	}
	h.step(jc, dbc, sj.ID, 70, nil)

	base := BlobBase(userID, sj.URL, notes.Title, h.now())
	rawKey, textKey := base+".html", base+".txt"
	if err := h.bucket.Upload(jc.Ctx, rawKey, bytes.NewReader(page.HTML)); err != nil {
		return fail(fmt.Errorf("upload html: %w", err))
	}
	if err := h.bucket.Upload(jc.Ctx, textKey, strings.NewReader(page.Text)); err != nil {
		return fail(fmt.Errorf("upload text: %w", err))
	}

	structured, _ := json.Marshal(notes)
	meta, _ := json.Marshal(map[string]any{
		"domain":     sj.Domain,
		"fetched_at": h.now().UTC().Format(time.RFC3339),
		"text_chars": len(page.Text),
		"html_bytes": len(page.HTML),
	})
	item := &types.KnowledgeItem{
		UserID:         userID,
		SourceType:     "web",
		SourceURL:      sj.URL,
		Title:          notes.Title,
		Summary:        notes.Summary,
		StructuredJSON: datatypes.JSON(structured),
		MetadataJSON:   datatypes.JSON(meta),
		BlobPathRaw:    rawKey,
		BlobPathText:   textKey,
		Saved:          true,
	}
	if err := h.items.Create(dbc, item); err != nil {
		return fail(fmt.Errorf("create knowledge item: %w", err))
	}

	h.step(jc, dbc, sj.ID, 100, map[string]interface{}{
		"status":    domknowledge.ScrapeDone,
		"result_id": item.ID,
		"title":     notes.Title,
	})
	log.Info("Page scraped", "knowledge_item_id", item.ID)
	jc.Succeed("done", map[string]any{"scrape_job_id": sj.ID, "knowledge_item_id": item.ID})
	return nil
}

func (h *WebScrape) step(jc *runtime.Context, dbc dbctx.Context, id uuid.UUID, pct int, extra map[string]interface{}) {
	updates := map[string]interface{}{"progress": pct, "updated_at": h.now()}
	for k, v := range extra {
		updates[k] = v
	}
	if err := h.jobs.UpdateFields(dbc, id, updates); err != nil {
		h.log.Warn("Scrape job update failed", "scrape_job_id", id, "error", err)
	}
	jc.Progress("scrape", pct, "")
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// BlobBase is the extension-less object key for a scraped page:
// {user}/scrapes/YYYY/MM/DD/{host}/{name}. The name comes from the title,
// falling back to the URL path.
func BlobBase(userID, rawURL, title string, at time.Time) string {
	host, p := "", ""
	if u, err := url.Parse(rawURL); err == nil {
		host, p = u.Host, u.Path
	}
	name := strings.TrimSpace(title)
	if name == "" {
		name = p
	}
	if strings.Trim(name, "/") == "" {
		name = "page"
	}
	return fmt.Sprintf("%s/scrapes/%s/%s/%s", userID, at.UTC().Format("2006/01/02"),
		safeName(host), safeName(strings.ReplaceAll(name, "/", "_")))
}

func safeName(s string) string {
	s = unsafeName.ReplaceAllString(strings.TrimSpace(s), "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		return "untitled"
	}
	return s
}
