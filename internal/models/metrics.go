package models

import "time"

// SystemMetrics is a JSON friendly snapshot of the in-process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	SoftDeletes              uint64    `json:"softDeletes"`
	Restores                 uint64    `json:"restores"`
	CasesPurged              uint64    `json:"casesPurged"`
	PurgeFailures            uint64    `json:"purgeFailures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
