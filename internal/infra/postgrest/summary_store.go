package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/fzanetti/ledger-analytics-go/internal/domain"
	"github.com/fzanetti/ledger-analytics-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

// GetSummary fetches the summary row for one account.
// Returns (nil, nil) when no row exists.
func (c *Client) GetSummary(ctx context.Context, accountID string) (*domain.Summary, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.GetSummary")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	var summary *domain.Summary

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("%s?account_id=eq.%s&limit=1", summariesTable, url.QueryEscape(accountID))
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				summary = nil
				return nil
			}

			var rows []domain.Summary
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode summary: %w", err)
			}
			if len(rows) == 0 {
				summary = nil
				return nil
			}
			summary = &rows[0]
			return nil
		})
	})
	if err != nil {
		return nil, c.wrapStoreError(err)
	}

	return summary, nil
}

// wrapStoreError translates breaker rejections into the fast-fail error
// the transport maps to 503; everything else is a plain store failure.
func (c *Client) wrapStoreError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: "store/summaries"}
	}
	return &domain.ErrExternalService{Service: "store/summaries", Err: err}
}

// UpsertSummary writes the summary row, replacing any existing row for the
// same account id.
func (c *Client) UpsertSummary(ctx context.Context, summary *domain.Summary) error {
	ctx, span := tracer.Start(ctx, "Postgrest.UpsertSummary")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", summary.AccountID))

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			err := c.doUpsert(ctx, summariesTable, summary)
			if errors.Is(err, errConflict) {
				// A conflict is a concurrency signal, not a transient
				// fault; retrying would only replay the losing write.
				return resilience.Permanent(err)
			}
			return err
		})
	})
	if err != nil {
		if errors.Is(err, errConflict) {
			return &domain.ErrConcurrentUpdate{AccountID: summary.AccountID}
		}
		return c.wrapStoreError(err)
	}
	return nil
}

// DeleteSummary removes the summary row for an account. Deleting an absent
// row is a no-op.
func (c *Client) DeleteSummary(ctx context.Context, accountID string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.DeleteSummary")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	path := fmt.Sprintf("%s?account_id=eq.%s", summariesTable, url.QueryEscape(accountID))
	if err := c.doDelete(ctx, path); err != nil {
		return &domain.ErrExternalService{Service: "store/summaries", Err: err}
	}
	return nil
}

// FindBySpendingPattern returns all summaries with the given classification.
func (c *Client) FindBySpendingPattern(ctx context.Context, pattern string) ([]domain.Summary, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.FindBySpendingPattern")
	defer span.End()

	path := fmt.Sprintf("%s?spending_pattern=eq.%s&order=account_id.asc", summariesTable, url.QueryEscape(pattern))
	return c.querySummaries(ctx, path)
}

// FindByCategory returns all summaries whose primary category matches.
func (c *Client) FindByCategory(ctx context.Context, category string) ([]domain.Summary, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.FindByCategory")
	defer span.End()

	path := fmt.Sprintf("%s?primary_category=eq.%s&order=account_id.asc", summariesTable, url.QueryEscape(category))
	return c.querySummaries(ctx, path)
}

// FindByBalanceAtLeast returns all summaries with total balance >= min.
func (c *Client) FindByBalanceAtLeast(ctx context.Context, minBalance float64) ([]domain.Summary, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.FindByBalanceAtLeast")
	defer span.End()

	path := fmt.Sprintf("%s?total_balance=gte.%.2f&order=total_balance.desc", summariesTable, minBalance)
	return c.querySummaries(ctx, path)
}

// FindUpdatedSince returns all summaries mutated at or after the given time.
func (c *Client) FindUpdatedSince(ctx context.Context, since time.Time) ([]domain.Summary, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.FindUpdatedSince")
	defer span.End()

	path := fmt.Sprintf("%s?last_updated=gte.%s&order=last_updated.desc",
		summariesTable, url.QueryEscape(since.Format(time.RFC3339)))
	return c.querySummaries(ctx, path)
}

func (c *Client) querySummaries(ctx context.Context, path string) ([]domain.Summary, error) {
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "store/summaries", Err: err}
	}
	if body == nil {
		return []domain.Summary{}, nil
	}

	var rows []domain.Summary
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode summaries: %w", err)
	}
	return rows, nil
}
