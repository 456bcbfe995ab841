package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"TGEMonitor/internal/dedup"
	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/normalize"
	"TGEMonitor/internal/ports"
	"TGEMonitor/internal/retry"
	"TGEMonitor/internal/scanner"
)

var errStateNotLoaded = errors.New("persisted state not loaded yet")

// Phase is the orchestrator's position within a cycle.
type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseFetching  Phase = "FETCHING"
	PhaseAnalyzing Phase = "ANALYZING"
	PhaseNotifying Phase = "NOTIFYING"
)

// Settings is the read-only tracking configuration used by the pipeline.
type Settings struct {
	Entities      []string
	Phrases       []string
	RecencyWindow time.Duration
	// AlertUndated lets relevant items without a publication time alert.
	AlertUndated bool
	Limits       domain.Limits
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Scanners   []scanner.Scanner
	Enrichers  map[domain.SourceKind]ports.ContentEnricher
	Normalizer normalize.Normalizer
	Scorer     ports.RelevanceScorer
	Notifier   ports.Notifier
	Store      ports.StateStore
	Observers  []ports.CycleObserver
	Settings   Settings
	// CycleRetry wraps a whole cycle; zero value runs once.
	CycleRetry retry.Policy
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Pipeline implements the fetch, analyze, notify cycle.
type Pipeline struct {
	scanners   []scanner.Scanner
	enrichers  map[domain.SourceKind]ports.ContentEnricher
	normalizer normalize.Normalizer
	scorer     ports.RelevanceScorer
	notifier   ports.Notifier
	store      ports.StateStore
	observers  []ports.CycleObserver
	settings   Settings
	cycleRetry retry.Policy
	logger     *slog.Logger
	now        func() time.Time

	// run serializes cycles and summaries; mu guards the fields below it.
	run        sync.Mutex
	mu         sync.RWMutex
	state      domain.CycleState
	loaded     bool
	phase      Phase
	lastReport *domain.CycleReport
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	settings := deps.Settings
	if settings.RecencyWindow <= 0 {
		settings.RecencyWindow = 24 * time.Hour
	}
	if settings.Limits == (domain.Limits{}) {
		settings.Limits = domain.DefaultLimits()
	}
	return &Pipeline{
		scanners:   deps.Scanners,
		enrichers:  deps.Enrichers,
		normalizer: deps.Normalizer,
		scorer:     deps.Scorer,
		notifier:   deps.Notifier,
		store:      deps.Store,
		observers:  deps.Observers,
		settings:   settings,
		cycleRetry: deps.CycleRetry,
		logger:     logger.With("component", "pipeline"),
		now:        clock,
		state:      domain.NewCycleState(),
		phase:      PhaseIdle,
	}
}

// Load primes the in-memory state from the store. The store itself turns a
// missing or corrupt record into an empty state; an error here means the
// store could not be read at all. The pipeline then stays unloaded: cycles
// keep running in memory, nothing is saved over the persisted record, and
// the next cycle retries the load. What was recorded in the meantime is
// merged into the state once it loads.
func (p *Pipeline) Load(ctx context.Context) error {
	state := domain.NewCycleState()
	if p.store != nil {
		loaded, err := p.store.Load(ctx)
		if err != nil {
			p.logger.Warn("state load failed, saving suspended until it succeeds", "error", err)
			return fmt.Errorf("load state: %w", err)
		}
		state = loaded
	}
	state.Normalize()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		state.Merge(p.state)
	}
	p.state = state
	p.loaded = true
	return nil
}

// RunCycle loads state on first use, runs one cycle, persists the result and
// reports it to observers.
func (p *Pipeline) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	p.run.Lock()
	defer p.run.Unlock()

	if !p.isLoaded() {
		_ = p.Load(ctx)
	}

	next, report, err := p.Cycle(ctx, p.snapshot())
	if err != nil {
		p.mu.Lock()
		p.state.Totals.Errors++
		p.mu.Unlock()
		return report, err
	}

	if err := p.save(ctx, next); err != nil {
		p.logger.Error("state save failed", "error", err)
		report.Errors++
		next.Totals.Errors++
	}
	next.Compact(p.settings.Limits)

	p.mu.Lock()
	p.state = next
	p.lastReport = &report
	p.mu.Unlock()

	for _, o := range p.observers {
		o.ObserveCycle(report)
	}

	p.logger.Info("cycle finished",
		"cycle", report.Number,
		"duration", report.Duration.Round(time.Millisecond),
		"alerts", report.Alerts,
		"errors", report.Errors,
		"rate_limited", report.RateLimited,
		"notified", report.Notified)
	return report, nil
}

// RunCycleWithRetry retries RunCycle on unexpected failures according to the
// configured cycle policy; the last error propagates. A started cycle always
// runs to completion, ctx only stops further attempts.
func (p *Pipeline) RunCycleWithRetry(ctx context.Context) (domain.CycleReport, error) {
	var report domain.CycleReport
	attempt := 0
	err := p.cycleRetry.Do(ctx, func(ctx context.Context) error {
		attempt++
		var err error
		report, err = p.RunCycle(context.WithoutCancel(ctx))
		if err != nil {
			p.logger.Error("cycle failed", "attempt", attempt, "error", err)
		}
		return err
	})
	return report, err
}

// Cycle runs one pass over state and returns the successor state. The input
// is never mutated. Source, sink and per-item failures are contained; only
// unexpected failures are returned, together with the unchanged input.
func (p *Pipeline) Cycle(ctx context.Context, state domain.CycleState) (next domain.CycleState, report domain.CycleReport, err error) {
	if err := ctx.Err(); err != nil {
		return state, report, err
	}

	defer func() {
		p.setPhase(PhaseIdle)
		if r := recover(); r != nil {
			next = state
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()

	next = state.Clone()
	next.Normalize()

	started := p.now().UTC()
	report = domain.CycleReport{
		Number:    next.Totals.Cycles + 1,
		StartedAt: started,
		Sources:   map[domain.SourceKind]domain.SourceStats{},
	}

	p.setPhase(PhaseFetching)
	fetched := p.fetch(ctx, &report)

	p.setPhase(PhaseAnalyzing)
	bySource := map[domain.SourceKind][]domain.Analysis{}
	for _, f := range fetched {
		alerts := p.analyze(ctx, f, &next, &report)
		if len(alerts) > 0 {
			bySource[f.kind] = append(bySource[f.kind], alerts...)
		}
	}

	p.setPhase(PhaseNotifying)
	if report.Alerts > 0 {
		batch := domain.AlertBatch{
			ID:        uuid.NewString(),
			CreatedAt: p.now().UTC(),
			BySource:  bySource,
			Meta: domain.BatchMeta{
				RateLimited:  report.RateLimited,
				CycleNumber:  report.Number,
				SourceErrors: sourceErrors(report),
			},
		}
		report.BatchID = batch.ID
		if p.deliver(ctx, batch) {
			report.Notified = true
			next.Totals.AlertsSent += int64(batch.Total())
		} else {
			report.Errors++
		}
	}

	finished := p.now().UTC()
	report.Duration = finished.Sub(started)
	next.Totals.Cycles++
	next.Totals.Errors += int64(report.Errors)
	next.Totals.LastRunAt = &finished
	next.LastUpdated = finished
	return next, report, nil
}

type fetchedSource struct {
	kind  domain.SourceKind
	name  string
	items []domain.RawItem
}

func (p *Pipeline) fetch(ctx context.Context, report *domain.CycleReport) []fetchedSource {
	out := make([]fetchedSource, 0, len(p.scanners))
	for _, sc := range p.scanners {
		kind := sc.Kind()
		stats := report.Sources[kind]

		res, err := p.scan(ctx, sc)
		if err != nil {
			p.logger.Warn("source failed", "source", sc.Name(), "error", err)
			stats.Errors++
			report.Errors++
			report.Sources[kind] = stats
			continue
		}

		stats.Fetched += len(res.Items)
		stats.Errors += len(res.Failures)
		report.Errors += len(res.Failures)
		if res.RateLimited {
			stats.RateLimited = true
			report.RateLimited = true
		}
		report.Sources[kind] = stats

		for _, f := range res.Failures {
			p.logger.Debug("endpoint skipped", "source", sc.Name(), "endpoint", f.Endpoint, "error", f.Err)
		}
		out = append(out, fetchedSource{kind: kind, name: sc.Name(), items: res.Items})
	}
	return out
}

// scan contains a panicking adapter to a source-level failure.
func (p *Pipeline) scan(ctx context.Context, sc scanner.Scanner) (res scanner.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scanner %s panicked: %v", sc.Name(), r)
		}
	}()
	return sc.Scan(ctx)
}

func (p *Pipeline) analyze(ctx context.Context, f fetchedSource, next *domain.CycleState, report *domain.CycleReport) []domain.Analysis {
	stats := report.Sources[f.kind]
	defer func() { report.Sources[f.kind] = stats }()

	now := p.now().UTC()
	enricher := p.enrichers[f.kind]
	var alerts []domain.Analysis

	for _, raw := range f.items {
		id := dedup.IdentityKey(raw)
		if next.ProcessedIDs.Has(id) {
			stats.Skipped++
			continue
		}

		if enricher != nil {
			enriched, err := enricher.Enrich(ctx, raw)
			if err != nil {
				p.logger.Debug("enrichment failed, using summary", "id", id, "error", err)
			} else {
				raw = enriched
			}
		}

		item, err := p.normalizer.Normalize(raw)
		next.ProcessedIDs.Add(id)
		if err != nil {
			p.logger.Debug("item dropped", "id", id, "error", err)
			stats.Skipped++
			continue
		}
		stats.Processed++
		next.Totals.ItemsProcessed++

		if dedup.IsDuplicate(item.Text, next.SeenHashes) {
			stats.Duplicates++
			continue
		}

		if p.scorer == nil {
			continue
		}
		analysis := p.scorer.Score(ctx, item, p.settings.Entities, p.settings.Phrases)
		if !analysis.IsRelevant {
			continue
		}

		switch {
		case !item.HasTimestamp() && !p.settings.AlertUndated:
			p.logger.Debug("relevant item has no timestamp", "id", id)
			stats.Stale++
			continue
		case item.HasTimestamp() && !item.PublishedWithin(now, p.settings.RecencyWindow):
			p.logger.Debug("relevant item is stale", "id", id, "published", item.Timestamp)
			stats.Stale++
			continue
		}

		p.logger.Info("alert",
			"source", f.name,
			"entity", analysis.PrimaryEntity(),
			"phrases", analysis.MatchedPhrases,
			"score", analysis.RelevanceScore,
			"link", item.Link)

		alerts = append(alerts, analysis)
		next.AlertHistory = append(next.AlertHistory, analysis)
		next.Totals.AlertsFound[f.kind]++
		stats.Alerts++
		report.Alerts++
	}
	return alerts
}

func (p *Pipeline) deliver(ctx context.Context, batch domain.AlertBatch) bool {
	if p.notifier == nil {
		p.logger.Warn("no notifier configured, alerts not delivered", "alerts", batch.Total())
		return false
	}
	if err := p.notifier.Notify(ctx, batch); err != nil {
		var ne *domain.NotificationError
		if !errors.As(err, &ne) {
			err = &domain.NotificationError{Sink: p.notifier.Name(), Err: err}
		}
		p.logger.Error("notification failed", "batch", batch.ID, "error", err)
		return false
	}
	return true
}

func sourceErrors(report domain.CycleReport) map[domain.SourceKind]int {
	out := map[domain.SourceKind]int{}
	for kind, s := range report.Sources {
		if s.Errors > 0 {
			out[kind] = s.Errors
		}
	}
	return out
}

// RecentAlerts returns alerts published within the last hours, newest first.
func (p *Pipeline) RecentAlerts(hours int) []domain.Analysis {
	if hours <= 0 {
		hours = 24
	}
	p.mu.RLock()
	recent := p.state.RecentAlerts(p.now().UTC(), time.Duration(hours)*time.Hour)
	p.mu.RUnlock()

	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].RecordedAt().After(recent[j].RecordedAt())
	})
	return recent
}

// Stats returns lifetime totals and the last cycle's report.
func (p *Pipeline) Stats() domain.Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	t := p.state.Totals
	found := make(map[domain.SourceKind]int64, len(t.AlertsFound))
	for k, v := range t.AlertsFound {
		found[k] = v
	}
	stats := domain.Stats{
		Phase:          string(p.phase),
		Cycles:         t.Cycles,
		Errors:         t.Errors,
		ItemsProcessed: t.ItemsProcessed,
		AlertsFound:    found,
		AlertsSent:     t.AlertsSent,
		ProcessedIDs:   p.state.ProcessedIDs.Len(),
		SeenHashes:     p.state.SeenHashes.Len(),
		HistorySize:    len(p.state.AlertHistory),
		RecentAlerts:   len(p.state.RecentAlerts(p.now().UTC(), p.settings.RecencyWindow)),
		LastRunAt:      t.LastRunAt,
	}
	if p.lastReport != nil {
		report := *p.lastReport
		stats.LastCycle = &report
		stats.LastCycleDuration = report.Duration
	}
	return stats
}

// Phase reports where the orchestrator currently is.
func (p *Pipeline) Phase() Phase {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.phase
}

// SummaryDue reports whether the daily summary should go out at now: at or
// after hour (UTC) and not yet sent today.
func (p *Pipeline) SummaryDue(now time.Time, hour int) bool {
	now = now.UTC()
	if now.Hour() < hour {
		return false
	}
	p.mu.RLock()
	last := p.state.Totals.LastSummaryAt
	p.mu.RUnlock()
	if last == nil {
		return true
	}
	ly, lm, ld := last.UTC().Date()
	ny, nm, nd := now.Date()
	return ly != ny || lm != nm || ld != nd
}

// SendSummary delivers the daily digest to sinks that support it and records
// when it was sent.
func (p *Pipeline) SendSummary(ctx context.Context) error {
	p.run.Lock()
	defer p.run.Unlock()

	if !p.isLoaded() {
		_ = p.Load(ctx)
	}

	now := p.now().UTC()
	p.mu.RLock()
	summary := domain.Summary{
		Date:           now,
		RecentBySource: map[domain.SourceKind]int{},
		TotalProcessed: p.state.Totals.ItemsProcessed,
	}
	for _, a := range p.state.RecentAlerts(now, 24*time.Hour) {
		summary.RecentBySource[a.SourceKind]++
	}
	p.mu.RUnlock()

	sn, ok := p.notifier.(ports.SummaryNotifier)
	if !ok {
		return fmt.Errorf("notifier does not support summaries")
	}
	if err := sn.NotifySummary(ctx, summary); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}

	p.mu.Lock()
	p.state.Totals.LastSummaryAt = &now
	state := p.state.Clone()
	p.mu.Unlock()

	if err := p.save(ctx, state); err != nil {
		p.logger.Error("state save failed", "error", err)
	}
	p.logger.Info("daily summary sent", "processed", summary.TotalProcessed)
	return nil
}

// SendTestAlert pushes a synthetic one-item batch through the notifier.
func (p *Pipeline) SendTestAlert(ctx context.Context) error {
	if p.notifier == nil {
		return fmt.Errorf("no notifier configured")
	}
	now := p.now().UTC()
	item := domain.NormalizedItem{
		ID:         "test:" + now.Format(time.RFC3339),
		Kind:       domain.SourceFeed,
		SourceName: "TGE Monitor",
		Title:      "Test alert: TGE Monitor is configured correctly",
		Text:       "This is a test notification. Example Labs announces its token generation event (TGE).",
		Timestamp:  &now,
	}
	batch := domain.AlertBatch{
		ID:        uuid.NewString(),
		CreatedAt: now,
		BySource: map[domain.SourceKind][]domain.Analysis{
			domain.SourceFeed: {{
				SourceKind:        domain.SourceFeed,
				Item:              item,
				MentionedEntities: []string{"Example Labs"},
				MatchedPhrases:    []string{"TGE", "token generation event"},
				RelevanceScore:    1,
				IsRelevant:        true,
				AnalyzedAt:        now,
			}},
		},
	}
	return p.notifier.Notify(ctx, batch)
}

func (p *Pipeline) snapshot() domain.CycleState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Clone()
}

// save persists state unless the persisted record has not been read yet, in
// which case writing would replace it with a partial view.
func (p *Pipeline) save(ctx context.Context, state domain.CycleState) error {
	if p.store == nil {
		return nil
	}
	if !p.isLoaded() {
		return &domain.PersistenceError{Op: "save", Err: errStateNotLoaded}
	}
	return p.store.Save(ctx, state)
}

func (p *Pipeline) isLoaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

func (p *Pipeline) setPhase(phase Phase) {
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
}
