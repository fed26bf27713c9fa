package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	"github.com/yungbote/scoolish-backend/internal/ingestion/extractor"
	jobruntime "github.com/yungbote/scoolish-backend/internal/jobs/runtime"
	"github.com/yungbote/scoolish-backend/internal/jobs/tasks"
	"github.com/yungbote/scoolish-backend/internal/jobs/worker"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
	"github.com/yungbote/scoolish-backend/internal/realtime"
	"github.com/yungbote/scoolish-backend/internal/services"
	"github.com/yungbote/scoolish-backend/internal/tools"
	"github.com/yungbote/scoolish-backend/internal/tools/chronology"
	"github.com/yungbote/scoolish-backend/internal/tools/creative"
	"github.com/yungbote/scoolish-backend/internal/tools/docanalysis"
	"github.com/yungbote/scoolish-backend/internal/tools/mathviz"
	"github.com/yungbote/scoolish-backend/internal/tools/prompts"
	"github.com/yungbote/scoolish-backend/internal/tools/quiz"
	"github.com/yungbote/scoolish-backend/internal/tools/segmenter"
	"github.com/yungbote/scoolish-backend/internal/tools/sentiment"
	"github.com/yungbote/scoolish-backend/internal/tools/summarizer"
	"github.com/yungbote/scoolish-backend/internal/tools/timeline"
	"github.com/yungbote/scoolish-backend/internal/tools/topics"
	"github.com/yungbote/scoolish-backend/internal/tools/visualguide"
	"github.com/yungbote/scoolish-backend/internal/tools/webnotes"
)

type Services struct {
	Auth       services.AuthService
	Onboarding services.OnboardingService
	Files      services.FileService
	Progress   services.ProgressService
	Tools      services.ToolService
	Batch      services.BatchService
	Scraper    services.ScraperService
	Jobs       services.JobService

	Emitter   services.SSEEmitter
	JobWorker *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r repos.Repos, hub *realtime.SSEHub, clients *Clients) (Services, error) {
	log.Info("Wiring services...")

	catalog, err := prompts.Load()
	if err != nil {
		return Services{}, err
	}
	base := tools.Base{LLM: clients.LLM, Prompts: catalog}
	pageTools := tools.NewRegistry(
		summarizer.New(base),
		quiz.New(base),
		topics.New(base),
		sentiment.New(base),
		chronology.New(base),
		segmenter.New(base),
		creative.New(base),
		docanalysis.New(base),
	)
	docTools := []tools.DocTool{
		timeline.New(base),
		mathviz.New(base),
		visualguide.New(base),
	}

	emitter := services.NewSSEEmitter(hub, clients.SSEBus, log)
	jobNotifier := services.NewJobNotifier(emitter)
	progressNotifier := services.NewProgressNotifier(emitter)

	jobService := services.NewJobService(db, log, r.JobRun, jobNotifier)
	fileService := services.NewFileService(db, log, clients.Bucket, r, jobService)
	progressService := services.NewProgressService(db, log, r.Progress)

	out := Services{
		Auth:       services.NewAuthService(log, r.User, cfg.Auth),
		Onboarding: services.NewOnboardingService(db, log, r.User, cfg.AllowOrgSignup),
		Files:      fileService,
		Progress:   progressService,
		Tools:      services.NewToolService(db, log, pageTools, docTools, r, fileService, progressService, jobService),
		Batch:      services.NewBatchService(db, log, r, jobService),
		Scraper:    services.NewScraperService(db, log, r, jobService),
		Jobs:       jobService,
		Emitter:    emitter,
	}

	// --------------------
	// Job handlers
	// --------------------
	jobRegistry := jobruntime.NewRegistry()
	ex := extractor.New(log, clients.Bucket, clients.Document, clients.Vision, clients.Speech, clients.Video)
	pageCfg := cfg.Pages
	pageCfg.Log = log
	if err := jobRegistry.Register(
		tasks.NewFileExtract(log, ex, r),
		tasks.NewPageTool(log, pageTools, r, progressNotifier, pageCfg),
		tasks.NewDocTool(log, r, progressNotifier, docTools...),
		tasks.NewWebScrape(log, clients.Fetch, webnotes.New(base), clients.Bucket, r),
	); err != nil {
		return Services{}, err
	}
	out.JobWorker = worker.NewWorker(db, log, r.JobRun, jobRegistry, jobNotifier, cfg.Worker)
	return out, nil
}
