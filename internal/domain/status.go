package domain

// PipelineMetrics is the JSON snapshot served by GET /v1/metrics/pipeline.
type PipelineMetrics struct {
	EventsTotal       int64   `json:"events_total"`
	EventsApplied     int64   `json:"events_applied"`
	EventsInvalidated int64   `json:"events_invalidated"`
	EventsIgnored     int64   `json:"events_ignored"`
	EventsFailed      int64   `json:"events_failed"`
	ErrorRate         float64 `json:"error_rate"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
	Period            string  `json:"period"`
}

// ServiceHealth reports the health of one dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latency_ms"`
	LastChecked string `json:"last_checked"`
}

// HealthStatus is the aggregated response of GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
}

// SuccessResponse is a generic acknowledgement body.
type SuccessResponse struct {
	Message string `json:"message"`
}
