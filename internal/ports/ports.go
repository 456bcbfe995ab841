package ports

import (
	"context"
	"time"

	"TGEMonitor/internal/domain"
)

// ContentEnricher fills in a fuller body for an item, e.g. the linked article text.
type ContentEnricher interface {
	Enrich(ctx context.Context, item domain.RawItem) (domain.RawItem, error)
}

// SentimentEstimator is an optional scoring contributor. It reports false
// when no estimate is available; callers treat that as "no boost".
type SentimentEstimator interface {
	Polarity(ctx context.Context, text string) (float64, bool)
}

// RelevanceScorer turns a normalized item into an Analysis.
type RelevanceScorer interface {
	Score(ctx context.Context, item domain.NormalizedItem, entities, phrases []string) domain.Analysis
}

// Notifier delivers the consolidated alert batch of a cycle. An empty batch
// is a successful no-op.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, batch domain.AlertBatch) error
}

// SummaryNotifier is implemented by sinks that also deliver the daily digest.
type SummaryNotifier interface {
	NotifySummary(ctx context.Context, summary domain.Summary) error
}

// StateStore persists CycleState across restarts. Load yields an empty state
// for a missing or corrupt record.
type StateStore interface {
	Load(ctx context.Context) (domain.CycleState, error)
	Save(ctx context.Context, state domain.CycleState) error
}

// CycleObserver receives a report after every cycle (metrics, health).
type CycleObserver interface {
	ObserveCycle(report domain.CycleReport)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
