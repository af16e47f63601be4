package models

import "time"

// SystemMetrics is a lightweight aggregate for the dashboard, derived from
// the Prometheus collectors.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	ReliefAssigned           uint64    `json:"relief_assigned"`
	ReliefUnfilled           uint64    `json:"relief_unfilled"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
