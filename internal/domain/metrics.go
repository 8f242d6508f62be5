package domain

// PortfolioMetrics is the snapshot returned by GET /v1/metrics/portfolio.
// Values are cumulative since process start.
type PortfolioMetrics struct {
	TotalRequests int64   `json:"total_requests"`
	ErrorRate     float64 `json:"error_rate"`
	CacheHitRate  float64 `json:"cache_hit_rate"`
	NotesUploaded int64   `json:"notes_uploaded"`
	NotesRejected int64   `json:"notes_rejected"`
	EventsApplied int64   `json:"events_applied"`
	Period        string  `json:"period"`
}
