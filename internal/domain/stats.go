package domain

import "time"

// SourceStats are per-source counters for the most recent cycle.
type SourceStats struct {
	Fetched     int  `json:"fetched"`
	Skipped     int  `json:"skipped"`
	Processed   int  `json:"processed"`
	Duplicates  int  `json:"duplicates"`
	Stale       int  `json:"stale"`
	Alerts      int  `json:"alerts"`
	Errors      int  `json:"errors"`
	RateLimited bool `json:"rate_limited"`
}

// CycleReport describes one completed cycle.
type CycleReport struct {
	Number      int64                      `json:"number"`
	StartedAt   time.Time                  `json:"started_at"`
	Duration    time.Duration              `json:"duration"`
	Sources     map[SourceKind]SourceStats `json:"sources"`
	Alerts      int                        `json:"alerts"`
	Errors      int                        `json:"errors"`
	RateLimited bool                       `json:"rate_limited"`
	Notified    bool                       `json:"notified"`
	BatchID     string                     `json:"batch_id,omitempty"`
}

// Stats is the get-stats view over lifetime totals and the last cycle.
type Stats struct {
	Phase             string               `json:"phase"`
	Cycles            int64                `json:"cycles"`
	Errors            int64                `json:"errors"`
	ItemsProcessed    int64                `json:"items_processed"`
	AlertsFound       map[SourceKind]int64 `json:"alerts_found"`
	AlertsSent        int64                `json:"alerts_sent"`
	ProcessedIDs      int                  `json:"processed_ids"`
	SeenHashes        int                  `json:"seen_hashes"`
	HistorySize       int                  `json:"history_size"`
	RecentAlerts      int                  `json:"recent_alerts"`
	LastRunAt         *time.Time           `json:"last_run_at,omitempty"`
	LastCycleDuration time.Duration        `json:"last_cycle_duration"`
	LastCycle         *CycleReport         `json:"last_cycle,omitempty"`
}
