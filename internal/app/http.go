package app

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/scoolish-backend/internal/http"
	httpH "github.com/yungbote/scoolish-backend/internal/http/handlers"
	httpMW "github.com/yungbote/scoolish-backend/internal/http/middleware"
	"github.com/yungbote/scoolish-backend/internal/observability"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
	"github.com/yungbote/scoolish-backend/internal/realtime"
)

func wireServer(log *logger.Logger, cfg Config, db *gorm.DB, rdb *goredis.Client, svc Services, hub *realtime.SSEHub, metrics *observability.Metrics) *http.Server {
	log.Info("Wiring handlers and router...")
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewServer(http.RouterConfig{
		Log:               log,
		ServiceName:       serviceName,
		CORSOrigins:       cfg.CORSOrigins,
		Metrics:           metrics,
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, svc.Auth, cfg.AllowUserHeader),
		HealthHandler:     httpH.NewHealthHandler(readinessChecks(db, rdb)),
		AuthHandler:       httpH.NewAuthHandler(svc.Auth),
		OnboardingHandler: httpH.NewOnboardingHandler(svc.Onboarding),
		FileHandler:       httpH.NewFileHandler(svc.Files, cfg.MaxUploadBytes),
		ToolHandler:       httpH.NewToolHandler(svc.Tools, svc.Progress),
		BatchHandler:      httpH.NewBatchHandler(svc.Batch),
		ProgressHandler:   httpH.NewProgressHandler(svc.Progress),
		RealtimeHandler:   httpH.NewRealtimeHandler(log, hub),
		ScraperHandler:    httpH.NewScraperHandler(svc.Scraper),
	})
}

// readinessChecks probes Postgres and, when configured, the shared Redis.
func readinessChecks(db *gorm.DB, rdb *goredis.Client) map[string]httpH.HealthCheck {
	checks := map[string]httpH.HealthCheck{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}
