package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fzanetti/ledger-analytics-go/internal/domain"
	"github.com/fzanetti/ledger-analytics-go/internal/infra/cache"
	"github.com/fzanetti/ledger-analytics-go/internal/infra/observability"
	"github.com/fzanetti/ledger-analytics-go/internal/policy"
	"github.com/fzanetti/ledger-analytics-go/internal/service"

	"go.uber.org/zap"
)

func newQueryService(store *mockStore) (*service.QueryService, *cache.InMemory[*domain.Summary]) {
	c := cache.New[*domain.Summary](5 * time.Minute)
	qs := service.NewQueryService(store, c, cache.NewStaleSet(), observability.NewMetrics(), zap.NewNop())
	return qs, c
}

// newPipeline wires an event handler and a query service over the same
// cache and stale set, the way the composition root does.
func newPipeline(store *mockStore) (*service.EventHandler, *service.QueryService, *cache.InMemory[*domain.Summary]) {
	c := cache.New[*domain.Summary](5 * time.Minute)
	stale := cache.NewStaleSet()
	metrics := observability.NewMetrics()
	h := service.NewEventHandler(store, c, stale, metrics, zap.NewNop())
	qs := service.NewQueryService(store, c, stale, metrics, zap.NewNop())
	return h, qs, c
}

func TestGetSummary_CacheHit(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("store read not expected")
	qs, c := newQueryService(store)
	c.Set("acc-1", seedSummary("acc-1"))

	got, err := qs.GetSummary(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.AccountID != "acc-1" {
		t.Errorf("expected account 'acc-1', got '%s'", got.AccountID)
	}
}

func TestGetSummary_StoreHitRepopulatesCache(t *testing.T) {
	store := newMockStore(seedSummary("acc-1"))
	qs, c := newQueryService(store)

	got, err := qs.GetSummary(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.TotalBalance != 1000 {
		t.Errorf("expected balance 1000, got %f", got.TotalBalance)
	}
	if _, ok := c.Get("acc-1"); !ok {
		t.Error("expected cache populated after store hit")
	}
}

func TestGetSummary_NotFound(t *testing.T) {
	qs, _ := newQueryService(newMockStore())

	_, err := qs.GetSummary(context.Background(), "acc-missing")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetSummary_NotServedAfterInvalidation(t *testing.T) {
	store := newMockStore(seedSummary("acc-1"))
	h, qs, _ := newPipeline(store)

	ev := createdEvent("acc-1", 250)
	ev.Kind = domain.EventUpdated
	action, err := h.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if action != policy.ActionInvalidate {
		t.Fatalf("expected INVALIDATE, got %s", action)
	}

	// The durable row still exists but must not be served until a
	// recompute replaces it.
	_, err = qs.GetSummary(context.Background(), "acc-1")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound for invalidated account, got %v", err)
	}
}

func TestGetSummary_RecomputeRestoresInvalidatedAccount(t *testing.T) {
	store := newMockStore(seedSummary("acc-1"))
	h, qs, _ := newPipeline(store)

	ev := createdEvent("acc-1", 250)
	ev.Kind = domain.EventDeleted
	if _, err := h.Handle(context.Background(), ev); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := qs.GetSummary(context.Background(), "acc-1"); err == nil {
		t.Fatal("expected invalidated account to read as absent")
	}

	if _, err := qs.ComputeAndStore(context.Background(), "acc-1", []domain.Transaction{
		{ID: "tx-1", Amount: 100, Date: time.Now()},
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, err := qs.GetSummary(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("expected summary after recompute, got %v", err)
	}
	if got.TotalBalance != 100 {
		t.Errorf("expected recomputed balance 100, got %f", got.TotalBalance)
	}
}

func TestGetSummary_EmptyAccountID(t *testing.T) {
	qs, _ := newQueryService(newMockStore())

	_, err := qs.GetSummary(context.Background(), "")
	var v *domain.ErrValidation
	if !errors.As(err, &v) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestComputeAndStore_SortsAndPersists(t *testing.T) {
	store := newMockStore()
	qs, c := newQueryService(store)

	// Out of order on purpose; daily balances must reflect chronology.
	txns := []domain.Transaction{
		{ID: "tx-2", Amount: -500, Category: "RENT", Date: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)},
		{ID: "tx-1", Amount: 3000, Category: "SALARY", Date: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "tx-3", Amount: -200, Category: "GROCERIES", Date: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)},
	}

	got, err := qs.ComputeAndStore(context.Background(), "acc-1", txns)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.TotalBalance != 2300 {
		t.Errorf("expected balance 2300, got %f", got.TotalBalance)
	}
	if got.DailyBalances["2026-02-01"] != 3000 {
		t.Errorf("expected first-day running balance 3000, got %f", got.DailyBalances["2026-02-01"])
	}
	if got.DailyBalances["2026-02-20"] != 2300 {
		t.Errorf("expected last-day running balance 2300, got %f", got.DailyBalances["2026-02-20"])
	}
	if got.ID == "" {
		t.Error("expected a generated summary id")
	}
	if store.upsertCount() != 1 {
		t.Errorf("expected 1 upsert, got %d", store.upsertCount())
	}
	if _, ok := c.Get("acc-1"); !ok {
		t.Error("expected cache populated after recompute")
	}
}

func TestComputeAndStore_PreservesExistingID(t *testing.T) {
	existing := seedSummary("acc-1")
	store := newMockStore(existing)
	qs, _ := newQueryService(store)

	got, err := qs.ComputeAndStore(context.Background(), "acc-1", []domain.Transaction{
		{ID: "tx-1", Amount: 100, Date: time.Now()},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.ID != existing.ID {
		t.Errorf("expected reused id '%s', got '%s'", existing.ID, got.ID)
	}
}

func TestComputeAndStore_PersistFailureEvictsCache(t *testing.T) {
	store := newMockStore()
	store.upsertErr = errors.New("store unavailable")
	qs, c := newQueryService(store)
	c.Set("acc-1", seedSummary("acc-1"))

	_, err := qs.ComputeAndStore(context.Background(), "acc-1", []domain.Transaction{
		{ID: "tx-1", Amount: 100, Date: time.Now()},
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if _, ok := c.Get("acc-1"); ok {
		t.Error("expected cache entry evicted after persist failure")
	}
}

func TestInvalidate_EvictsSingleEntry(t *testing.T) {
	qs, c := newQueryService(newMockStore())
	c.Set("acc-1", seedSummary("acc-1"))
	c.Set("acc-2", seedSummary("acc-2"))

	qs.Invalidate("acc-1")

	if _, ok := c.Get("acc-1"); ok {
		t.Error("expected acc-1 evicted")
	}
	if _, ok := c.Get("acc-2"); !ok {
		t.Error("expected acc-2 untouched")
	}
}

func TestInvalidate_BlocksReadsUntilRecompute(t *testing.T) {
	store := newMockStore(seedSummary("acc-1"))
	qs, _ := newQueryService(store)

	qs.Invalidate("acc-1")

	_, err := qs.GetSummary(context.Background(), "acc-1")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound after explicit invalidation, got %v", err)
	}
}

func TestInvalidateAll_FlushesCache(t *testing.T) {
	qs, c := newQueryService(newMockStore())
	c.Set("acc-1", seedSummary("acc-1"))
	c.Set("acc-2", seedSummary("acc-2"))

	qs.InvalidateAll()

	if _, ok := c.Get("acc-1"); ok {
		t.Error("expected cache flushed")
	}
	if _, ok := c.Get("acc-2"); ok {
		t.Error("expected cache flushed")
	}
}

func TestPurgeAccount_RemovesBothTiers(t *testing.T) {
	store := newMockStore(seedSummary("acc-1"))
	qs, c := newQueryService(store)
	c.Set("acc-1", seedSummary("acc-1"))

	if err := qs.PurgeAccount(context.Background(), "acc-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := c.Get("acc-1"); ok {
		t.Error("expected cache entry removed")
	}
	if s, _ := store.GetSummary(context.Background(), "acc-1"); s != nil {
		t.Error("expected store row removed")
	}
}

func TestPurgeAccount_StoreFailureKeepsCache(t *testing.T) {
	store := newMockStore(seedSummary("acc-1"))
	store.deleteErr = errors.New("store unavailable")
	qs, c := newQueryService(store)
	c.Set("acc-1", seedSummary("acc-1"))

	if err := qs.PurgeAccount(context.Background(), "acc-1"); err == nil {
		t.Fatal("expected error, got nil")
	}
	if _, ok := c.Get("acc-1"); !ok {
		t.Error("cache must not be evicted when the durable delete fails")
	}
}

func TestPurgeAccount_ClearsStaleMark(t *testing.T) {
	store := newMockStore(seedSummary("acc-1"))
	qs, _ := newQueryService(store)

	qs.Invalidate("acc-1")
	if err := qs.PurgeAccount(context.Background(), "acc-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// A fresh row written after the purge is servable again; the purge
	// must not leave the account permanently marked.
	if err := store.UpsertSummary(context.Background(), seedSummary("acc-1")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := qs.GetSummary(context.Background(), "acc-1"); err != nil {
		t.Fatalf("expected summary after purge and rewrite, got %v", err)
	}
}

func TestFindBySpendingPattern_RejectsUnknownPattern(t *testing.T) {
	qs, _ := newQueryService(newMockStore())

	_, err := qs.FindBySpendingPattern(context.Background(), "SPENDTHRIFT")
	var v *domain.ErrValidation
	if !errors.As(err, &v) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestFindBySpendingPattern_Matches(t *testing.T) {
	s := seedSummary("acc-1")
	s.SpendingPattern = domain.PatternConservative
	qs, _ := newQueryService(newMockStore(s))

	got, err := qs.FindBySpendingPattern(context.Background(), domain.PatternConservative)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(got))
	}
}

func TestFindByCategory_EmptyCategory(t *testing.T) {
	qs, _ := newQueryService(newMockStore())

	_, err := qs.FindByCategory(context.Background(), "")
	var v *domain.ErrValidation
	if !errors.As(err, &v) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestFindByBalanceAtLeast_Filters(t *testing.T) {
	rich := seedSummary("acc-rich")
	rich.TotalBalance = 50000
	poor := seedSummary("acc-poor")
	poor.TotalBalance = 10
	qs, _ := newQueryService(newMockStore(rich, poor))

	got, err := qs.FindByBalanceAtLeast(context.Background(), 1000)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 1 || got[0].AccountID != "acc-rich" {
		t.Fatalf("expected only acc-rich, got %v", got)
	}
}
