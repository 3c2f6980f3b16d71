package models

import "time"

// SystemMetrics is a lightweight snapshot of process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	StoreCalls               uint64    `json:"store_calls"`
	StoreFailures            uint64    `json:"store_failures"`
	AverageStoreCallMs       float64   `json:"average_store_call_ms"`
	AuditSinkFailures        uint64    `json:"audit_sink_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
