package service

import (
	"context"
	"time"

	"github.com/fzanetti/ledger-analytics-go/internal/domain"
	"github.com/fzanetti/ledger-analytics-go/internal/engine"
	"github.com/fzanetti/ledger-analytics-go/internal/infra/cache"
	"github.com/fzanetti/ledger-analytics-go/internal/infra/observability"
	"github.com/fzanetti/ledger-analytics-go/internal/policy"
	"github.com/fzanetti/ledger-analytics-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

// summaryCache is the label for the summary cache tier in metrics.
const summaryCache = "summary"

// EventHandler keeps summaries consistent with the upstream event stream.
// It exclusively owns write access to a summary while processing one event;
// the unit of work is a single event end-to-end.
type EventHandler struct {
	store   port.SummaryStore
	cache   port.Cache[*domain.Summary]
	stale   *cache.StaleSet
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewEventHandler creates the event handler with all dependencies injected.
// The stale set must be the same instance the query service reads, so an
// invalidation decided here blocks reads there.
func NewEventHandler(
	store port.SummaryStore,
	fastCache port.Cache[*domain.Summary],
	stale *cache.StaleSet,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *EventHandler {
	return &EventHandler{
		store:   store,
		cache:   fastCache,
		stale:   stale,
		metrics: metrics,
		logger:  logger,
	}
}

// Handle processes one event end-to-end and returns the effective action.
//
// A nil error means the event may be acknowledged to the transport,
// including malformed events, which are logged and dropped. A non-nil
// error means processing failed after any partial state was made
// invisible (cache evicted), and the transport should redeliver.
func (h *EventHandler) Handle(ctx context.Context, event *domain.Event) (policy.Action, error) {
	ctx, span := tracer.Start(ctx, "EventHandler.Handle")
	defer span.End()

	start := time.Now()
	defer func() {
		h.metrics.RecordRequestDuration("handle_event", time.Since(start))
	}()

	if err := event.Validate(); err != nil {
		h.logger.Warn("ignoring malformed event",
			zap.String("event_id", event.EventID),
			zap.String("account_id", event.AccountID),
			zap.Error(err),
		)
		h.metrics.IncrEvent("ignore")
		return policy.ActionIgnore, nil
	}

	span.SetAttributes(
		attribute.String("account.id", event.AccountID),
		attribute.String("event.kind", string(event.Kind)),
	)

	// Only the incremental path needs the current summary; invalidations
	// never read. An account already marked stale has no trustworthy
	// summary in either tier, so it decides as summary-absent.
	var current *domain.Summary
	if event.Kind == domain.EventCreated && !h.stale.IsStale(event.AccountID) {
		s, err := h.readSummary(ctx, event.AccountID)
		if err != nil {
			// Presence unknown, so no action can be decided safely. Evict
			// the cache entry and let the transport redeliver.
			h.cache.Delete(event.AccountID)
			h.metrics.IncrEvent("error")
			return policy.ActionInvalidate, err
		}
		current = s
	}

	action := policy.Decide(event.Kind, current != nil)

	switch action {
	case policy.ActionApplyDelta:
		updated := engine.ApplyDelta(current, event)
		if err := h.store.UpsertSummary(ctx, updated); err != nil {
			// A partially-updated summary must never be served: evict the
			// cache entry, then surface the error for redelivery. The
			// eviction itself is idempotent, so a retried event that fails
			// again changes nothing.
			h.cache.Delete(event.AccountID)
			h.metrics.IncrStoreError("upsert_summary")
			h.metrics.IncrEvent("error")
			h.logger.Error("delta persist failed, cache entry evicted",
				zap.String("account_id", event.AccountID),
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			return action, err
		}
		h.cache.Set(event.AccountID, updated)
		h.metrics.IncrEvent("apply_delta")
		h.logger.Debug("delta applied",
			zap.String("account_id", event.AccountID),
			zap.String("event_id", event.EventID),
		)

	case policy.ActionInvalidate:
		// Evicting the cache entry is not enough: the durable record is
		// now suspect too, and must stay unserved until a full recompute
		// replaces it.
		h.cache.Delete(event.AccountID)
		h.stale.Mark(event.AccountID)
		h.metrics.IncrEvent("invalidate")
		h.logger.Debug("summary invalidated",
			zap.String("account_id", event.AccountID),
			zap.String("event_id", event.EventID),
			zap.String("kind", string(event.Kind)),
		)

	case policy.ActionIgnore:
		h.metrics.IncrEvent("ignore")
	}

	return action, nil
}

// readSummary is the cache-then-store read used by the incremental path.
func (h *EventHandler) readSummary(ctx context.Context, accountID string) (*domain.Summary, error) {
	if cached, ok := h.cache.Get(accountID); ok {
		h.metrics.IncrCacheHit(summaryCache)
		return cached, nil
	}
	h.metrics.IncrCacheMiss(summaryCache)

	s, err := h.store.GetSummary(ctx, accountID)
	if err != nil {
		h.metrics.IncrStoreError("get_summary")
		return nil, err
	}
	if s != nil {
		h.cache.Set(accountID, s)
	}
	return s, nil
}
