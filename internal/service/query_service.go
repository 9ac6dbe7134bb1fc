package service

import (
	"context"
	"sort"
	"time"

	"github.com/fzanetti/ledger-analytics-go/internal/domain"
	"github.com/fzanetti/ledger-analytics-go/internal/engine"
	"github.com/fzanetti/ledger-analytics-go/internal/infra/cache"
	"github.com/fzanetti/ledger-analytics-go/internal/infra/observability"
	"github.com/fzanetti/ledger-analytics-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// QueryService serves summary reads through the two-tier store and owns
// the full-recomputation and explicit-invalidation paths.
type QueryService struct {
	store   port.SummaryStore
	cache   port.Cache[*domain.Summary]
	stale   *cache.StaleSet
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewQueryService creates the query service with all dependencies injected.
// The stale set is shared with the event handler; only the recompute and
// purge paths here may clear a mark.
func NewQueryService(
	store port.SummaryStore,
	fastCache port.Cache[*domain.Summary],
	stale *cache.StaleSet,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *QueryService {
	return &QueryService{
		store:   store,
		cache:   fastCache,
		stale:   stale,
		metrics: metrics,
		logger:  logger,
	}
}

// GetSummary returns the summary for an account, reading the cache first
// and falling back to the durable store. A store hit repopulates the
// cache. Absence in both tiers is domain.ErrNotFound, and so is an
// invalidated account: its durable row may still exist, but it is not
// served until a recompute refreshes it.
func (s *QueryService) GetSummary(ctx context.Context, accountID string) (*domain.Summary, error) {
	ctx, span := tracer.Start(ctx, "QueryService.GetSummary")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("get_summary", time.Since(start))
	}()

	if accountID == "" {
		return nil, &domain.ErrValidation{Field: "accountId", Message: "must not be empty"}
	}

	if s.stale.IsStale(accountID) {
		return nil, &domain.ErrNotFound{Resource: "summary", ID: accountID}
	}

	if cached, ok := s.cache.Get(accountID); ok {
		s.metrics.IncrCacheHit(summaryCache)
		return cached, nil
	}
	s.metrics.IncrCacheMiss(summaryCache)

	summary, err := s.store.GetSummary(ctx, accountID)
	if err != nil {
		s.metrics.IncrStoreError("get_summary")
		return nil, err
	}
	if summary == nil {
		return nil, &domain.ErrNotFound{Resource: "summary", ID: accountID}
	}

	s.cache.Set(accountID, summary)
	return summary, nil
}

// ComputeAndStore rebuilds an account's summary from its full transaction
// history and writes it through both tiers. The store write happens first;
// if it fails the cache entry is evicted so a stale summary cannot outlive
// the failure, and the error is returned for the caller to retry.
func (s *QueryService) ComputeAndStore(ctx context.Context, accountID string, txns []domain.Transaction) (*domain.Summary, error) {
	ctx, span := tracer.Start(ctx, "QueryService.ComputeAndStore")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.Int("transactions.count", len(txns)),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("compute_summary", time.Since(start))
	}()

	if accountID == "" {
		return nil, &domain.ErrValidation{Field: "accountId", Message: "must not be empty"}
	}

	// Running daily balances only make sense over a chronological history,
	// and callers may deliver transactions in any order.
	sorted := make([]domain.Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	summary := engine.ComputeFull(sorted)
	summary.AccountID = accountID
	summary.ID = s.summaryID(ctx, accountID)

	if err := s.store.UpsertSummary(ctx, summary); err != nil {
		s.cache.Delete(accountID)
		s.metrics.IncrStoreError("upsert_summary")
		s.logger.Error("summary persist failed, cache entry evicted",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
		return nil, err
	}

	// A full recompute is the only operation that makes an invalidated
	// account servable again.
	s.stale.Clear(accountID)
	s.cache.Set(accountID, summary)
	s.logger.Info("summary recomputed",
		zap.String("account_id", accountID),
		zap.Int("transaction_count", summary.TransactionCount),
	)
	return summary, nil
}

// summaryID reuses the stored summary's identifier when one exists so a
// recomputation updates the row in place rather than minting a new one.
func (s *QueryService) summaryID(ctx context.Context, accountID string) string {
	if cached, ok := s.cache.Get(accountID); ok && cached.ID != "" {
		return cached.ID
	}
	if existing, err := s.store.GetSummary(ctx, accountID); err == nil && existing != nil && existing.ID != "" {
		return existing.ID
	}
	return uuid.New().String()
}

// Invalidate evicts a single account's cached summary and marks the
// account stale. The durable row is untouched but stops being served
// until the next recompute.
func (s *QueryService) Invalidate(accountID string) {
	s.cache.Delete(accountID)
	s.stale.Mark(accountID)
	s.logger.Debug("cache entry invalidated", zap.String("account_id", accountID))
}

// InvalidateAll flushes the whole summary cache. This is the operational
// flush, equivalent to every entry expiring at once: durable rows stay
// servable and stale marks are preserved.
func (s *QueryService) InvalidateAll() {
	s.cache.Clear()
	s.logger.Info("summary cache flushed")
}

// PurgeAccount removes an account's summary from both tiers, store first.
func (s *QueryService) PurgeAccount(ctx context.Context, accountID string) error {
	ctx, span := tracer.Start(ctx, "QueryService.PurgeAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	if accountID == "" {
		return &domain.ErrValidation{Field: "accountId", Message: "must not be empty"}
	}

	if err := s.store.DeleteSummary(ctx, accountID); err != nil {
		s.metrics.IncrStoreError("delete_summary")
		return err
	}
	s.cache.Delete(accountID)
	// Absence is now the truth in both tiers, so no mark is needed for
	// reads to answer not-found.
	s.stale.Clear(accountID)
	return nil
}

// FindBySpendingPattern lists summaries whose classified pattern matches.
func (s *QueryService) FindBySpendingPattern(ctx context.Context, pattern string) ([]domain.Summary, error) {
	ctx, span := tracer.Start(ctx, "QueryService.FindBySpendingPattern")
	defer span.End()

	switch pattern {
	case domain.PatternInactive, domain.PatternExpenseOnly,
		domain.PatternConservative, domain.PatternModerate, domain.PatternAggressive:
	default:
		return nil, &domain.ErrValidation{Field: "pattern", Message: "unknown spending pattern"}
	}
	return s.store.FindBySpendingPattern(ctx, pattern)
}

// FindByCategory lists summaries whose primary category matches.
func (s *QueryService) FindByCategory(ctx context.Context, category string) ([]domain.Summary, error) {
	ctx, span := tracer.Start(ctx, "QueryService.FindByCategory")
	defer span.End()

	if category == "" {
		return nil, &domain.ErrValidation{Field: "category", Message: "must not be empty"}
	}
	return s.store.FindByCategory(ctx, category)
}

// FindByBalanceAtLeast lists summaries with a total balance at or above
// the given floor.
func (s *QueryService) FindByBalanceAtLeast(ctx context.Context, minBalance float64) ([]domain.Summary, error) {
	ctx, span := tracer.Start(ctx, "QueryService.FindByBalanceAtLeast")
	defer span.End()
	return s.store.FindByBalanceAtLeast(ctx, minBalance)
}

// FindUpdatedSince lists summaries updated at or after the given instant.
func (s *QueryService) FindUpdatedSince(ctx context.Context, since time.Time) ([]domain.Summary, error) {
	ctx, span := tracer.Start(ctx, "QueryService.FindUpdatedSince")
	defer span.End()
	return s.store.FindUpdatedSince(ctx, since)
}
