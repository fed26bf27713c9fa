package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/scoolish-backend/internal/domain"
	domjobs "github.com/yungbote/scoolish-backend/internal/domain/jobs"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

// Metrics holds the process-wide counters exposed in Prometheus text format.
// Every method is safe on a nil receiver so callers never check Enabled.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqError *Counter

	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmTokens   *CounterVec

	jobRuns     *CounterVec
	jobDuration *HistogramVec
	pageUnits   *CounterVec
	queueDepth  *GaugeVec

	keySelections *CounterVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return parseBoolEnv("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

func parseBoolEnv(key string, fallback bool) bool {
	val := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if val == "" {
		return fallback
	}
	switch val {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

// Init builds the singleton when METRICS_ENABLED is set and returns nil
// otherwise.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// NewMetrics returns an unregistered set; Init is the normal entry point.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("scoolish_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"scoolish_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("scoolish_api_inflight_requests", "In-flight API requests."),
		apiReqError: NewCounter("scoolish_api_requests_error_total", "API requests with 5xx status."),
		llmRequests: NewCounterVec("scoolish_llm_requests_total", "LLM requests by deployment/status.", []string{"deployment", "status"}),
		llmLatency: NewHistogramVec(
			"scoolish_llm_request_duration_seconds",
			"LLM request latency in seconds by deployment/status.",
			[]string{"deployment", "status"},
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		llmTokens: NewCounterVec("scoolish_llm_tokens_total", "LLM tokens by deployment/direction.", []string{"deployment", "direction"}),
		jobRuns:   NewCounterVec("scoolish_job_runs_total", "Job attempts by job type/outcome.", []string{"job_type", "outcome"}),
		jobDuration: NewHistogramVec(
			"scoolish_job_duration_seconds",
			"Job attempt duration in seconds by job type/outcome.",
			[]string{"job_type", "outcome"},
			[]float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		),
		pageUnits:     NewCounterVec("scoolish_page_units_total", "Page units by tool/outcome.", []string{"tool", "outcome"}),
		queueDepth:    NewGaugeVec("scoolish_job_queue_depth", "Job queue depth by status.", []string{"status"}),
		keySelections: NewCounterVec("scoolish_key_selections_total", "Credential slot selections by slot/source.", []string{"slot", "source"}),
		pgStats:       NewGaugeVec("scoolish_db_stats", "Database connection stats.", []string{"metric"}),
		redisUp:       NewGauge("scoolish_redis_up", "Redis connectivity (1=up, 0=down)."),
		redisPing:     NewGauge("scoolish_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []collector{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqError,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.jobRuns, m.jobDuration, m.pageUnits, m.queueDepth,
		m.keySelections,
		m.pgStats, m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	method = orDefault(method, "UNKNOWN")
	route = orDefault(route, "unknown")
	status = orDefault(status, "0")
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveLLMRequest records one chat completion call. status is "ok",
// "rate_limited" or "error".
func (m *Metrics) ObserveLLMRequest(deployment, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	deployment = orDefault(deployment, "unknown")
	status = orDefault(status, "unknown")
	m.llmRequests.Inc(deployment, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), deployment, status)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), deployment, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), deployment, "output")
	}
}

// ObserveJob records one job attempt. outcome is "succeeded", "retry",
// "failed" or "panic".
func (m *Metrics) ObserveJob(jobType, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	jobType = orDefault(jobType, "unknown")
	outcome = orDefault(outcome, "unknown")
	m.jobRuns.Inc(jobType, outcome)
	m.jobDuration.Observe(dur.Seconds(), jobType, outcome)
}

func (m *Metrics) AddPageUnits(tool string, succeeded, skipped, failed int) {
	if m == nil {
		return
	}
	tool = orDefault(tool, "unknown")
	if succeeded > 0 {
		m.pageUnits.Add(float64(succeeded), tool, "succeeded")
	}
	if skipped > 0 {
		m.pageUnits.Add(float64(skipped), tool, "skipped")
	}
	if failed > 0 {
		m.pageUnits.Add(float64(failed), tool, "failed")
	}
}

// IncKeySelection counts a credential pick. source is "redis" or "local".
func (m *Metrics) IncKeySelection(slot int, source string) {
	if m == nil {
		return
	}
	m.keySelections.Inc(strconv.Itoa(slot), orDefault(source, "local"))
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

// StartRedisCollector pings rdb on every scrape interval. The client is
// owned by the caller.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.CollectQueueDepth(ctx, db); err != nil && log != nil {
					log.Warn("metrics: job queue depth query failed", "error", err)
				}
			}
		}
	}()
}

// CollectQueueDepth sets the queue gauge from one GROUP BY over job_run.
func (m *Metrics) CollectQueueDepth(ctx context.Context, db *gorm.DB) error {
	if m == nil {
		return nil
	}
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&types.JobRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, s := range []string{domjobs.StatusQueued, domjobs.StatusRunning, domjobs.StatusSucceeded, domjobs.StatusFailed, domjobs.StatusCanceled} {
		m.queueDepth.Set(0, s)
	}
	for _, row := range rows {
		m.queueDepth.Set(float64(row.Count), orDefault(strings.TrimSpace(row.Status), "unknown"))
	}
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func isServerErrorStatus(status string) bool {
	status = strings.TrimSpace(status)
	if len(status) < 3 {
		return false
	}
	return status[0] == '5'
}
