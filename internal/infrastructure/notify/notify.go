// Package notify combines notification sinks.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/ports"
)

// Fanout delivers to every sink. Each sink is attempted even when an earlier
// one fails; the failures are returned joined.
type Fanout struct {
	sinks  []ports.Notifier
	logger *slog.Logger
}

var (
	_ ports.Notifier        = (*Fanout)(nil)
	_ ports.SummaryNotifier = (*Fanout)(nil)
)

// NewFanout wraps sinks; nil entries are skipped.
func NewFanout(logger *slog.Logger, sinks ...ports.Notifier) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fanout{logger: logger.With("component", "notify")}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Name implements ports.Notifier.
func (f *Fanout) Name() string {
	return "fanout"
}

// Len reports how many sinks are configured.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// Notify implements ports.Notifier.
func (f *Fanout) Notify(ctx context.Context, batch domain.AlertBatch) error {
	if batch.Empty() {
		return nil
	}
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Notify(ctx, batch); err != nil {
			f.logger.Error("sink failed", "sink", sink.Name(), "batch", batch.ID, "error", err)
			errs = append(errs, &domain.NotificationError{Sink: sink.Name(), Err: err})
			continue
		}
		f.logger.Info("batch delivered", "sink", sink.Name(), "batch", batch.ID, "alerts", batch.Total())
	}
	return errors.Join(errs...)
}

// NotifySummary sends the summary to sinks that support it.
func (f *Fanout) NotifySummary(ctx context.Context, summary domain.Summary) error {
	var errs []error
	for _, sink := range f.sinks {
		sn, ok := sink.(ports.SummaryNotifier)
		if !ok {
			continue
		}
		if err := sn.NotifySummary(ctx, summary); err != nil {
			f.logger.Error("summary failed", "sink", sink.Name(), "error", err)
			errs = append(errs, &domain.NotificationError{Sink: sink.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// Log writes batches to the logger. It never fails.
type Log struct {
	logger *slog.Logger
}

var (
	_ ports.Notifier        = (*Log)(nil)
	_ ports.SummaryNotifier = (*Log)(nil)
)

// NewLog builds a logging sink.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "log_sink")}
}

// Name implements ports.Notifier.
func (l *Log) Name() string {
	return "log"
}

// Notify implements ports.Notifier.
func (l *Log) Notify(_ context.Context, batch domain.AlertBatch) error {
	for _, kind := range domain.SourceKinds {
		for _, a := range batch.BySource[kind] {
			l.logger.Info("alert",
				"batch", batch.ID,
				"source", kind,
				"entity", a.PrimaryEntity(),
				"phrases", a.MatchedPhrases,
				"score", a.RelevanceScore,
				"link", a.Item.Link)
		}
	}
	return nil
}

// NotifySummary implements ports.SummaryNotifier.
func (l *Log) NotifySummary(_ context.Context, s domain.Summary) error {
	l.logger.Info("daily summary",
		"date", s.Date.Format("2006-01-02"),
		"processed", s.TotalProcessed,
		"feed_alerts", s.RecentBySource[domain.SourceFeed],
		"social_alerts", s.RecentBySource[domain.SourceSocial])
	return nil
}
