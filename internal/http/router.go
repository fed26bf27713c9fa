package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/scoolish-backend/internal/http/handlers"
	httpMW "github.com/yungbote/scoolish-backend/internal/http/middleware"
	"github.com/yungbote/scoolish-backend/internal/observability"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler       *httpH.AuthHandler
	OnboardingHandler *httpH.OnboardingHandler
	FileHandler       *httpH.FileHandler
	ToolHandler       *httpH.ToolHandler
	BatchHandler      *httpH.BatchHandler
	ProgressHandler   *httpH.ProgressHandler
	RealtimeHandler   *httpH.RealtimeHandler
	ScraperHandler    *httpH.ScraperHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/api/health", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	if cfg.Log != nil {
		api.Use(httpMW.RequestLogger(cfg.Log))
	}
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.Identify())
	}

	// Auth (public)
	if cfg.AuthHandler != nil {
		api.POST("/auth/register", cfg.AuthHandler.Register)
		api.POST("/auth/login", cfg.AuthHandler.Login)
		api.POST("/auth/refresh", cfg.AuthHandler.Refresh)
	}

	// Tool start and polling resolve the caller themselves; a body user_id
	// is accepted when the request carries no identity.
	if cfg.ToolHandler != nil {
		api.GET("/tools/overview", requireUser(cfg), cfg.ToolHandler.Overview)
		api.POST("/tools/:tool/start", cfg.ToolHandler.Start)
		api.GET("/tools/:tool/progress/:id", cfg.ToolHandler.Progress)
		api.GET("/tools/:tool/result/:id", cfg.ToolHandler.Result)
		api.GET("/tools/:tool/results", requireUser(cfg), cfg.ToolHandler.Results)
	}

	authed := api.Group("/")
	if cfg.AuthMiddleware != nil {
		authed.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		if cfg.AuthHandler != nil {
			authed.GET("/auth/me", cfg.AuthHandler.Me)
		}
		if cfg.OnboardingHandler != nil {
			authed.GET("/onboarding", cfg.OnboardingHandler.Get)
			authed.POST("/onboarding", cfg.OnboardingHandler.Submit)
		}
	}

	protected := api.Group("/")
	protected.Use(requireUser(cfg))
	{
		// Files / vault
		if cfg.FileHandler != nil {
			protected.POST("/files", cfg.FileHandler.Upload)
			protected.GET("/files", cfg.FileHandler.List)
			protected.GET("/files/:id/pages", cfg.FileHandler.Pages)
		}

		// Summarizer batches
		if cfg.BatchHandler != nil {
			protected.POST("/summarizer/start_batch", cfg.BatchHandler.StartBatch)
			protected.GET("/summarizer/batch_progress/:id", cfg.BatchHandler.BatchProgress)
		}

		// Progress
		if cfg.ProgressHandler != nil {
			protected.GET("/progress/all", cfg.ProgressHandler.All)
			protected.GET("/progress/:id", cfg.ProgressHandler.Get)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/events", cfg.RealtimeHandler.Events)
		}

		// Web scraper
		if cfg.ScraperHandler != nil {
			protected.GET("/scraper/search", cfg.ScraperHandler.Search)
			protected.POST("/scraper/queue", cfg.ScraperHandler.Queue)
			protected.GET("/scraper/jobs", cfg.ScraperHandler.Jobs)
			protected.GET("/scraper/jobs/:id", cfg.ScraperHandler.Job)
			protected.GET("/scraper/results", cfg.ScraperHandler.Items)
			protected.GET("/scraper/results/:id", cfg.ScraperHandler.Item)
		}
	}

	return r
}

func requireUser(cfg RouterConfig) gin.HandlerFunc {
	if cfg.AuthMiddleware == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return cfg.AuthMiddleware.RequireUser()
}
