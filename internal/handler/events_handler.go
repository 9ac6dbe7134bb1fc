package handler

import (
	"encoding/json"
	"net/http"

	"github.com/fzanetti/ledger-analytics-go/internal/domain"
	"github.com/fzanetti/ledger-analytics-go/internal/infra/resilience"
	"github.com/fzanetti/ledger-analytics-go/internal/policy"
	"github.com/fzanetti/ledger-analytics-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ingestResponse is the per-event acknowledgement body. The status code is
// the actual ack/nack signal; the body exists for operators and tests.
type ingestResponse struct {
	EventID string        `json:"event_id"`
	Action  policy.Action `json:"action"`
}

// ingestEventHandler is the webhook the upstream transport delivers events
// to, one per request. 2xx acknowledges the event (including ignored
// malformed ones), 5xx asks the transport to redeliver, 503 sheds load
// when the bulkhead is saturated.
func ingestEventHandler(events *service.EventHandler, bulkhead *resilience.Bulkhead, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/events")
		defer span.End()

		var event domain.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			// An unparseable body is malformed by definition: ack it so the
			// transport does not redeliver something that can never apply.
			logger.Warn("dropping undecodable event payload", zap.Error(err))
			writeJSON(w, http.StatusAccepted, ingestResponse{Action: policy.ActionIgnore})
			return
		}
		span.SetAttributes(
			attribute.String("event.id", event.EventID),
			attribute.String("account.id", event.AccountID),
		)

		if !bulkhead.TryAcquire() {
			logger.Warn("ingest at capacity, shedding event",
				zap.String("event_id", event.EventID),
			)
			writeError(w, http.StatusServiceUnavailable, "ingestion at capacity, retry later")
			return
		}
		defer bulkhead.Release()

		action, err := events.Handle(ctx, &event)
		if err != nil {
			handleIngestError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusAccepted, ingestResponse{
			EventID: event.EventID,
			Action:  action,
		})
	}
}
