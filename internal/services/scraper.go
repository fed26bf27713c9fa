package services

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	types "github.com/yungbote/scoolish-backend/internal/domain"
	domjobs "github.com/yungbote/scoolish-backend/internal/domain/jobs"
	domknowledge "github.com/yungbote/scoolish-backend/internal/domain/knowledge"
	"github.com/yungbote/scoolish-backend/internal/platform/apierr"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

const (
	scrapeJobListLimit  = 100
	scrapeItemListLimit = 200
)

type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Domain  string `json:"domain"`
}

type QueueResult struct {
	Queued   []*types.WebScrapeJob `json:"queued"`
	Rejected []string              `json:"rejected"`
}

type ScraperService interface {
	// Search returns placeholder results until a search provider is wired.
	Search(query string) ([]SearchResult, error)
	Queue(dbc dbctx.Context, userID string, urls []string) (*QueueResult, error)
	Jobs(dbc dbctx.Context, userID string) ([]*types.WebScrapeJob, error)
	Job(dbc dbctx.Context, userID string, id uuid.UUID) (*types.WebScrapeJob, error)
	Items(dbc dbctx.Context, userID string) ([]*types.KnowledgeItem, error)
	Item(dbc dbctx.Context, userID string, id uuid.UUID) (*types.KnowledgeItem, error)
}

type scraperService struct {
	db   *gorm.DB
	log  *logger.Logger
	r    repos.Repos
	jobs JobService
}

func NewScraperService(db *gorm.DB, baseLog *logger.Logger, r repos.Repos, jobs JobService) ScraperService {
	return &scraperService{db: db, log: baseLog.With("service", "ScraperService"), r: r, jobs: jobs}
}

func (s *scraperService) Search(query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apierr.BadRequest("missing_query", "query required")
	}
	snippets := []string{
		"A helpful page about the topic.",
		"Another relevant resource.",
		"Background and insights.",
	}
	out := make([]SearchResult, len(snippets))
	for i, sn := range snippets {
		out[i] = SearchResult{
			Title:   fmt.Sprintf("Result for %s #%d", query, i+1),
			Snippet: sn,
			URL:     fmt.Sprintf("https://example.com/%d", i+1),
			Domain:  "example.com",
		}
	}
	return out, nil
}

// SplitURLs keeps http(s) URLs with a host and returns the rest as rejected.
func SplitURLs(raw []string) (valid []*url.URL, rejected []string) {
	rejected = []string{}
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		u, err := url.Parse(r)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			rejected = append(rejected, r)
			continue
		}
		valid = append(valid, u)
	}
	return valid, rejected
}

func (s *scraperService) Queue(dbc dbctx.Context, userID string, urls []string) (*QueueResult, error) {
	valid, rejected := SplitURLs(urls)
	if len(valid) == 0 {
		return nil, apierr.BadRequest("no_valid_urls", "no valid urls")
	}
	out := &QueueResult{Rejected: rejected}
	err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		rows := make([]*types.WebScrapeJob, len(valid))
		for i, u := range valid {
			rows[i] = &types.WebScrapeJob{
				UserID: userID,
				URL:    u.String(),
				Domain: u.Hostname(),
				Status: domknowledge.ScrapePending,
			}
		}
		if err := s.r.ScrapeJob.Create(inner, rows); err != nil {
			return fmt.Errorf("create scrape jobs: %w", err)
		}
		for _, sj := range rows {
			job, err := s.jobs.Enqueue(inner, EnqueueRequest{
				OwnerUserID: userID,
				JobType:     domjobs.TypeWebScrape,
				EntityType:  "web_scrape_job",
				EntityID:    &sj.ID,
				Payload:     map[string]any{"scrape_job_id": sj.ID.String()},
			})
			if err != nil {
				return err
			}
			sj.JobRunID = &job.ID
			if err := s.r.ScrapeJob.UpdateFields(inner, sj.ID, map[string]interface{}{"job_run_id": job.ID}); err != nil {
				return fmt.Errorf("link job run: %w", err)
			}
		}
		out.Queued = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Scrape jobs queued", "user_id", userID, "queued", len(out.Queued), "rejected", len(rejected))
	return out, nil
}

func (s *scraperService) Jobs(dbc dbctx.Context, userID string) ([]*types.WebScrapeJob, error) {
	return s.r.ScrapeJob.ListByUser(dbc, userID, scrapeJobListLimit)
}

func (s *scraperService) Job(dbc dbctx.Context, userID string, id uuid.UUID) (*types.WebScrapeJob, error) {
	sj, err := s.r.ScrapeJob.GetForUser(dbc, userID, id)
	if err != nil {
		return nil, err
	}
	if sj == nil {
		return nil, apierr.NotFound("scrape_job_not_found", "not found")
	}
	return sj, nil
}

func (s *scraperService) Items(dbc dbctx.Context, userID string) ([]*types.KnowledgeItem, error) {
	return s.r.Knowledge.ListByUser(dbc, userID, scrapeItemListLimit)
}

func (s *scraperService) Item(dbc dbctx.Context, userID string, id uuid.UUID) (*types.KnowledgeItem, error) {
	k, err := s.r.Knowledge.GetForUser(dbc, userID, id)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, apierr.NotFound("knowledge_item_not_found", "not found")
	}
	return k, nil
}
