package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/scoolish-backend/internal/data/db"
	"github.com/yungbote/scoolish-backend/internal/data/repos"
	"github.com/yungbote/scoolish-backend/internal/http"
	"github.com/yungbote/scoolish-backend/internal/observability"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
	"github.com/yungbote/scoolish-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    repos.Repos
	Clients  *Clients
	Services Services
	SSEHub   *realtime.SSEHub
	Server   *http.Server
	Metrics  *observability.Metrics

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
}

// New wires the whole process: database, clients, services, job handlers
// and the HTTP server. Nothing runs until Serve or Work is called.
func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Log: log, Cfg: cfg}
	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)
	a.Metrics = observability.Init(log)

	a.pg, err = db.NewPostgresService(cfg.DB, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(a.pg.DB()); err != nil {
		a.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	a.DB = a.pg.DB()
	a.Repos = repos.New(a.DB, log)
	a.SSEHub = realtime.NewSSEHub(log)

	a.Clients, err = wireClients(log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Services, err = wireServices(a.DB, log, cfg, a.Repos, a.SSEHub, a.Clients)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Server = wireServer(log, cfg, a.DB, a.Clients.Redis, a.Services, a.SSEHub, a.Metrics)
	return a, nil
}

// Migrate opens the database, applies the schema and closes it again. It
// needs no other configuration.
func Migrate(cfg Config) error {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	pg, err := db.NewPostgresService(cfg.DB, log)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer pg.Close()
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	log.Info("Schema migrated")
	return nil
}

// Serve runs the HTTP API until ctx is done. With withWorker the job worker
// runs in the same process.
func (a *App) Serve(ctx context.Context, withWorker bool) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	if bus := a.Clients.SSEBus; bus != nil {
		if err := bus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
			return fmt.Errorf("start SSE forwarder: %w", err)
		}
	}
	a.startCollectors(ctx)
	if withWorker {
		a.Services.JobWorker.Start(ctx)
		defer a.Services.JobWorker.Wait()
	}
	a.Log.Info("HTTP server listening", "addr", a.Cfg.Addr)
	return a.Server.Run(ctx, a.Cfg.Addr)
}

// Work runs only the job worker until ctx is done and in-flight jobs finish.
func (a *App) Work(ctx context.Context) error {
	if a == nil || a.Services.JobWorker == nil {
		return fmt.Errorf("app not initialized")
	}
	a.startCollectors(ctx)
	a.Services.JobWorker.Start(ctx)
	<-ctx.Done()
	a.Services.JobWorker.Wait()
	return nil
}

func (a *App) startCollectors(ctx context.Context) {
	a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
	a.Metrics.StartJobQueueCollector(ctx, a.Log, a.DB)
	a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Clients != nil {
		a.Clients.Close()
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
