package models

// ExtractResponse is the response for POST /api/v1/extract.
type ExtractResponse struct {
	// Success indicates whether a complete, validated record was produced.
	Success bool `json:"success"`

	// Kind names the record shape held in Data.
	Kind RecordKind `json:"kind,omitempty"`

	// Data is the extracted record.
	Data Record `json:"data,omitempty"`

	// Retryable is set on failures worth retrying against the same URL.
	Retryable bool `json:"retryable,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// ExtractionMs is the time spent inside the extraction pipeline.
	ExtractionMs int64 `json:"extraction_ms"`
}

// SourceInfo describes a registered source in GET /api/v1/sources.
type SourceInfo struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Kind        string `json:"kind"`
	BaseURL     string `json:"base_url"`
	Paginated   bool   `json:"paginated"`
	DetailPages bool   `json:"detail_pages"`
}

// SourcesResponse is the response for GET /api/v1/sources.
type SourcesResponse struct {
	Sources []SourceInfo `json:"sources"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"` // "healthy" or "busy"
	Uptime  string `json:"uptime"`
	Engine  string `json:"engine"`
	Busy    bool   `json:"busy"`
	Version string `json:"version"`
}
