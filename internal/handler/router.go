package handler

import (
	"net/http"
	"time"

	"github.com/fzanetti/ledger-analytics-go/internal/domain"
	"github.com/fzanetti/ledger-analytics-go/internal/infra/observability"
	"github.com/fzanetti/ledger-analytics-go/internal/infra/resilience"
	"github.com/fzanetti/ledger-analytics-go/internal/port"
	"github.com/fzanetti/ledger-analytics-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// POST /v1/events is the event ingestion webhook; everything under
// /v1/accounts and /v1/summaries is the read/management surface.
func NewRouter(
	events *service.EventHandler,
	queries *service.QueryService,
	store port.SummaryStore,
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		// Event ingestion webhook
		r.Post("/events", ingestEventHandler(events, bulkhead, logger))

		// Per-account summary lifecycle
		r.Get("/accounts/{accountId}/summary", getSummaryHandler(queries, logger))
		r.Put("/accounts/{accountId}/summary", recomputeSummaryHandler(queries, logger))
		r.Delete("/accounts/{accountId}/summary", purgeSummaryHandler(queries, logger))
		r.Delete("/accounts/{accountId}/summary/cache", invalidateCacheHandler(queries, logger))

		// Cache + index queries over all summaries
		r.Delete("/summaries/cache", invalidateAllHandler(queries, logger))
		r.Get("/summaries", findSummariesHandler(queries, logger))

		// Pipeline metrics snapshot
		r.Get("/metrics/pipeline", pipelineMetricsHandler(metrics))
	})

	return r
}

// healthzHandler probes the durable store with a cheap point read and
// reports degraded instead of failing the whole check when it errors.
func healthzHandler(store port.SummaryStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "analytics-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			_, err := store.GetSummary(ctx, "health-check")
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				logger.Warn("store health probe failed", zap.Error(err))
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "summary-store", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overall = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overall = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overall,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func pipelineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetPipelineSnapshot())
	}
}
