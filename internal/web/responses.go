package web

import "thermolog/internal/models"

// Typed response bodies, one struct per endpoint. Building these
// field-by-field in handlers is how fields go missing on one code path
// and not another; the compiler keeps the schema honest instead.

type CurrentResponse struct {
	T                  float64 `json:"t"`
	H                  float64 `json:"h"`
	Timestamp          int64   `json:"timestamp"`
	Datetime           string  `json:"datetime"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
	EmergencyMode      bool    `json:"emergency_mode"`
	PersistentStorage  bool    `json:"persistent_storage"`
}

type SampleInfo struct {
	Range             string `json:"range"`
	DetailedCount     int    `json:"detailed_count"`
	AggregatedCount   int    `json:"aggregated_count"`
	DetailedCapacity  int    `json:"detailed_capacity"`
	AggregateCapacity int    `json:"aggregate_capacity"`
}

type HistoryResponse struct {
	Data       []models.Reading `json:"data"`
	SampleInfo SampleInfo       `json:"sample_info"`
}

type AlertStatusResponse struct {
	Threshold      float64 `json:"threshold"`
	Active         bool    `json:"active"`
	Acknowledged   bool    `json:"acknowledged"`
	NeedsAttention bool    `json:"needs_attention"`
}

type AlertSetResponse struct {
	Status    string  `json:"status"`
	Threshold float64 `json:"threshold"`
}

type AcknowledgeResponse struct {
	Status string `json:"status"`
}

type SaveResponse struct {
	Status       string  `json:"status"`
	RecordsSaved int     `json:"records_saved"`
	MemoryUsage  float64 `json:"memory_usage"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
