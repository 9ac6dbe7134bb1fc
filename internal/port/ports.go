// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the engine and
// service layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/fzanetti/ledger-analytics-go/internal/domain"
)

// SummaryStore is the durable record tier: one summary per account id.
// GetSummary returns (nil, nil) when no record exists; callers decide
// whether absence is an error.
type SummaryStore interface {
	GetSummary(ctx context.Context, accountID string) (*domain.Summary, error)
	UpsertSummary(ctx context.Context, summary *domain.Summary) error
	DeleteSummary(ctx context.Context, accountID string) error

	// Secondary-index queries over the summary records.
	FindBySpendingPattern(ctx context.Context, pattern string) ([]domain.Summary, error)
	FindByCategory(ctx context.Context, category string) ([]domain.Summary, error)
	FindByBalanceAtLeast(ctx context.Context, minBalance float64) ([]domain.Summary, error)
	FindUpdatedSince(ctx context.Context, since time.Time) ([]domain.Summary, error)
}

// Cache is the fast tier: a disposable TTL projection of the store.
// It can be dropped and rebuilt from the SummaryStore at any time.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Clear()
}
