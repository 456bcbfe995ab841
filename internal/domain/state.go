package domain

import (
	"sort"
	"time"
)

// Default growth limits for persisted state.
const (
	DefaultMaxHistory      = 500
	DefaultMaxProcessedIDs = 50000
	DefaultMaxSeenHashes   = 50000
)

// Limits bounds the growth of a CycleState.
type Limits struct {
	MaxHistory      int
	MaxProcessedIDs int
	MaxSeenHashes   int
}

// DefaultLimits returns the stock growth limits.
func DefaultLimits() Limits {
	return Limits{
		MaxHistory:      DefaultMaxHistory,
		MaxProcessedIDs: DefaultMaxProcessedIDs,
		MaxSeenHashes:   DefaultMaxSeenHashes,
	}
}

// Totals are lifetime counters persisted alongside the dedup bookkeeping.
type Totals struct {
	Cycles         int64                `json:"cycles"`
	Errors         int64                `json:"errors"`
	ItemsProcessed int64                `json:"items_processed"`
	AlertsFound    map[SourceKind]int64 `json:"alerts_found,omitempty"`
	AlertsSent     int64                `json:"alerts_sent"`
	LastRunAt      *time.Time           `json:"last_run_at,omitempty"`
	LastSummaryAt  *time.Time           `json:"last_summary_at,omitempty"`
}

// CycleState is the value the orchestrator threads from one cycle to the next.
type CycleState struct {
	ProcessedIDs *IDSet     `json:"processed_ids"`
	SeenHashes   *IDSet     `json:"seen_hashes"`
	AlertHistory []Analysis `json:"alert_history"`
	Totals       Totals     `json:"totals"`
	LastUpdated  time.Time  `json:"last_updated"`
}

// NewCycleState returns an empty state.
func NewCycleState() CycleState {
	return CycleState{
		ProcessedIDs: NewIDSet(),
		SeenHashes:   NewIDSet(),
		AlertHistory: []Analysis{},
		Totals:       Totals{AlertsFound: map[SourceKind]int64{}},
	}
}

// Clone deep-copies the mutable parts so a cycle can work on its own copy.
func (s CycleState) Clone() CycleState {
	out := s
	out.ProcessedIDs = s.ProcessedIDs.Clone()
	out.SeenHashes = s.SeenHashes.Clone()
	out.AlertHistory = append([]Analysis{}, s.AlertHistory...)
	out.Totals.AlertsFound = make(map[SourceKind]int64, len(s.Totals.AlertsFound))
	for k, v := range s.Totals.AlertsFound {
		out.Totals.AlertsFound[k] = v
	}
	return out
}

// Normalize fills nil collections left by decoding partial records.
func (s *CycleState) Normalize() {
	if s.ProcessedIDs == nil {
		s.ProcessedIDs = NewIDSet()
	}
	if s.SeenHashes == nil {
		s.SeenHashes = NewIDSet()
	}
	if s.AlertHistory == nil {
		s.AlertHistory = []Analysis{}
	}
	if s.Totals.AlertsFound == nil {
		s.Totals.AlertsFound = map[SourceKind]int64{}
	}
}

// Compact enforces limits. History is ordered newest first by recorded
// timestamp and the oldest entries are evicted; id and hash sets rotate out
// their oldest insertions.
func (s *CycleState) Compact(l Limits) {
	s.Normalize()
	sort.SliceStable(s.AlertHistory, func(i, j int) bool {
		return s.AlertHistory[i].RecordedAt().After(s.AlertHistory[j].RecordedAt())
	})
	if l.MaxHistory > 0 && len(s.AlertHistory) > l.MaxHistory {
		s.AlertHistory = s.AlertHistory[:l.MaxHistory]
	}
	s.ProcessedIDs.Trim(l.MaxProcessedIDs)
	s.SeenHashes.Trim(l.MaxSeenHashes)
}

// RecentAlerts returns history entries published within window of now.
// Entries without a publication timestamp are excluded.
func (s CycleState) RecentAlerts(now time.Time, window time.Duration) []Analysis {
	out := make([]Analysis, 0)
	for _, a := range s.AlertHistory {
		if a.Item.PublishedWithin(now, window) {
			out = append(out, a)
		}
	}
	return out
}

// Merge folds other into s: ids, hashes and history entries s lacks are
// added and other's counters are added on top of s's. It is used when state
// recorded in memory has to be joined with a late-loaded persisted state.
func (s *CycleState) Merge(other CycleState) {
	s.Normalize()
	other.Normalize()

	for _, id := range other.ProcessedIDs.Values() {
		s.ProcessedIDs.Add(id)
	}
	for _, h := range other.SeenHashes.Values() {
		s.SeenHashes.Add(h)
	}

	known := make(map[string]struct{}, len(s.AlertHistory))
	for _, a := range s.AlertHistory {
		known[a.Item.ID] = struct{}{}
	}
	for _, a := range other.AlertHistory {
		if _, ok := known[a.Item.ID]; ok {
			continue
		}
		known[a.Item.ID] = struct{}{}
		s.AlertHistory = append(s.AlertHistory, a)
	}

	s.Totals.Cycles += other.Totals.Cycles
	s.Totals.Errors += other.Totals.Errors
	s.Totals.ItemsProcessed += other.Totals.ItemsProcessed
	s.Totals.AlertsSent += other.Totals.AlertsSent
	for k, v := range other.Totals.AlertsFound {
		s.Totals.AlertsFound[k] += v
	}
	s.Totals.LastRunAt = later(s.Totals.LastRunAt, other.Totals.LastRunAt)
	s.Totals.LastSummaryAt = later(s.Totals.LastSummaryAt, other.Totals.LastSummaryAt)
	if other.LastUpdated.After(s.LastUpdated) {
		s.LastUpdated = other.LastUpdated
	}
}

func later(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b != nil && b.After(*a) {
		return b
	}
	return a
}
