package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fzanetti/ledger-analytics-go/internal/domain"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses for the query
// surface. The ingest endpoint has its own mapping because its status
// codes double as the per-event ack/nack signal.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var concurrent *domain.ErrConcurrentUpdate
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &concurrent):
		logger.Warn("concurrent update", zap.String("account_id", concurrent.AccountID))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &external):
		logger.Error("store unavailable", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// handleIngestError maps processing failures to 5xx so the upstream
// transport redelivers the event. Nothing here returns a 4xx: a rejected
// event would be dropped by the transport, and drops are reserved for
// malformed events, which are acked upstream of this function.
func handleIngestError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var circuitOpen *domain.ErrCircuitOpen

	switch {
	case errors.As(err, &circuitOpen):
		logger.Warn("event nacked, circuit open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error("event nacked", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
