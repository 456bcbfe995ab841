package domain

import "time"

// Analysis is the immutable outcome of scoring one NormalizedItem.
// SourceKind is the discriminant; Item carries the normalized payload so
// renderers never branch on per-source shapes.
type Analysis struct {
	SourceKind        SourceKind     `json:"source_kind"`
	Item              NormalizedItem `json:"item"`
	MentionedEntities []string       `json:"mentioned_entities"`
	MatchedPhrases    []string       `json:"matched_phrases"`
	RelevanceScore    float64        `json:"relevance_score"`
	IsRelevant        bool           `json:"is_relevant"`
	IsDuplicate       bool           `json:"is_duplicate"`
	AnalyzedAt        time.Time      `json:"analyzed_at"`
}

// RecordedAt is the instant used for history ordering: the item's
// publication time when known, otherwise the analysis time.
func (a Analysis) RecordedAt() time.Time {
	if a.Item.HasTimestamp() {
		return *a.Item.Timestamp
	}
	return a.AnalyzedAt
}

// PrimaryEntity returns the first mentioned entity or "Unknown".
func (a Analysis) PrimaryEntity() string {
	if len(a.MentionedEntities) == 0 {
		return "Unknown"
	}
	return a.MentionedEntities[0]
}

// BatchMeta accompanies an alert batch handed to a notification sink.
type BatchMeta struct {
	RateLimited  bool               `json:"rate_limited"`
	CycleNumber  int64              `json:"cycle_number"`
	SourceErrors map[SourceKind]int `json:"source_errors,omitempty"`
}

// AlertBatch is the single consolidated notification emitted per cycle.
type AlertBatch struct {
	ID        string                    `json:"id"`
	CreatedAt time.Time                 `json:"created_at"`
	BySource  map[SourceKind][]Analysis `json:"by_source"`
	Meta      BatchMeta                 `json:"meta"`
}

// Total counts alerts across all sources.
func (b AlertBatch) Total() int {
	total := 0
	for _, alerts := range b.BySource {
		total += len(alerts)
	}
	return total
}

// Empty reports whether the batch carries no alerts.
func (b AlertBatch) Empty() bool {
	return b.Total() == 0
}

// Summary is the once-a-day digest of recent activity.
type Summary struct {
	Date           time.Time          `json:"date"`
	RecentBySource map[SourceKind]int `json:"recent_by_source"`
	TotalProcessed int64              `json:"total_processed"`
}
