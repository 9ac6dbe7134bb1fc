package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fzanetti/ledger-analytics-go/internal/domain"
	"github.com/fzanetti/ledger-analytics-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func getSummaryHandler(queries *service.QueryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}/summary")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", accountID))

		summary, err := queries.GetSummary(ctx, accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// recomputeSummaryHandler rebuilds a summary from the full transaction
// history supplied in the request body.
func recomputeSummaryHandler(queries *service.QueryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/accounts/{accountId}/summary")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", accountID))

		var body struct {
			Transactions []domain.Transaction `json:"transactions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		summary, err := queries.ComputeAndStore(ctx, accountID, body.Transactions)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func purgeSummaryHandler(queries *service.QueryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/accounts/{accountId}/summary")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		if err := queries.PurgeAccount(ctx, accountID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func invalidateCacheHandler(queries *service.QueryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "DELETE /v1/accounts/{accountId}/summary/cache")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		if accountID == "" {
			writeError(w, http.StatusBadRequest, "accountId is required")
			return
		}
		queries.Invalidate(accountID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func invalidateAllHandler(queries *service.QueryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "DELETE /v1/summaries/cache")
		defer span.End()

		queries.InvalidateAll()
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "summary cache flushed"})
	}
}

// findSummariesHandler serves the secondary-index queries. Exactly one of
// pattern, category, minBalance or updatedSince must be given.
func findSummariesHandler(queries *service.QueryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/summaries")
		defer span.End()

		q := r.URL.Query()

		var summaries []domain.Summary
		var err error
		switch {
		case q.Get("pattern") != "":
			summaries, err = queries.FindBySpendingPattern(ctx, q.Get("pattern"))
		case q.Get("category") != "":
			summaries, err = queries.FindByCategory(ctx, q.Get("category"))
		case q.Get("minBalance") != "":
			min, parseErr := strconv.ParseFloat(q.Get("minBalance"), 64)
			if parseErr != nil {
				writeError(w, http.StatusBadRequest, "minBalance must be a number")
				return
			}
			summaries, err = queries.FindByBalanceAtLeast(ctx, min)
		case q.Get("updatedSince") != "":
			since, parseErr := time.Parse(time.RFC3339, q.Get("updatedSince"))
			if parseErr != nil {
				writeError(w, http.StatusBadRequest, "updatedSince must be RFC3339")
				return
			}
			summaries, err = queries.FindUpdatedSince(ctx, since)
		default:
			writeError(w, http.StatusBadRequest, "one of pattern, category, minBalance or updatedSince is required")
			return
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if summaries == nil {
			summaries = []domain.Summary{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"summaries": summaries})
	}
}
