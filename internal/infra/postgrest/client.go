// Package postgrest implements the durable summary store against a
// PostgREST API (e.g. Supabase). The table account_summaries holds one
// row per account id; map-valued fields live in jsonb columns.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fzanetti/ledger-analytics-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgrest")

const summariesTable = "account_summaries"

// Client wraps HTTP calls to the PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a PostgREST store client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

func (c *Client) setHeaders(req *http.Request, prefer string) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
}

// doGet executes an authenticated read. Returns nil body on 404/204.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("postgrest: request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("postgrest: non-2xx response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("postgrest returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("postgrest: GET OK",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

// doUpsert POSTs a row with merge-duplicates so the write is an upsert on
// the table's unique key. A 409 that survives merging is surfaced as a
// concurrent-update error for the caller to map.
func (c *Client) doUpsert(ctx context.Context, table string, row any) error {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	jsonBody, err := json.Marshal(row)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	c.setHeaders(req, "resolution=merge-duplicates,return=minimal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("postgrest: POST request failed",
			zap.String("table", table),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return errConflict
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("postgrest: POST non-2xx",
			zap.String("table", table),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return fmt.Errorf("postgrest POST %s returned %d: %s", table, resp.StatusCode, string(body))
	}

	c.logger.Debug("postgrest: POST OK", zap.String("table", table), zap.Int("status", resp.StatusCode))
	return nil
}

func (c *Client) doDelete(ctx context.Context, path string) error {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("postgrest: DELETE request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("postgrest: DELETE non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return fmt.Errorf("postgrest DELETE returned %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("postgrest: DELETE OK", zap.String("path", path))
	return nil
}

// errConflict is a sentinel for 409 responses, translated per-account by
// the store methods.
var errConflict = fmt.Errorf("postgrest: conflict")
