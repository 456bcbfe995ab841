package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"TGEMonitor/internal/config"
	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/httpapi"
	"TGEMonitor/internal/infrastructure/email"
	"TGEMonitor/internal/infrastructure/ml"
	"TGEMonitor/internal/infrastructure/notify"
	"TGEMonitor/internal/infrastructure/parser"
	"TGEMonitor/internal/infrastructure/scheduler"
	"TGEMonitor/internal/infrastructure/social"
	"TGEMonitor/internal/infrastructure/storage"
	"TGEMonitor/internal/infrastructure/telegram"
	"TGEMonitor/internal/logging"
	"TGEMonitor/internal/metrics"
	"TGEMonitor/internal/normalize"
	"TGEMonitor/internal/ports"
	"TGEMonitor/internal/retry"
	"TGEMonitor/internal/scanner"
	"TGEMonitor/internal/scoring"
	"TGEMonitor/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	metrics   *metrics.Collector
	info      httpapi.Info
	closers   []io.Closer
}

// New builds the application from configuration. The returned application
// must be closed to release the state store.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	registry := scanner.NewRegistry()
	registry.Register(a.feedScanner())
	socialScanner := a.socialScanner()
	registry.Register(socialScanner)

	store, err := a.stateStore(ctx)
	if err != nil {
		return nil, err
	}

	sinks, names := a.notifiers()
	a.metrics = metrics.New()
	driver := scheduler.NewIntervalScheduler(cfg.Monitor.Interval)
	a.info = httpapi.Info{
		Notifiers:     names,
		SocialEnabled: socialScanner.Enabled(),
		FeedCount:     len(cfg.Feeds.URLs),
		Interval:      driver.Interval().String(),
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Scanners:   registry.All(),
		Enrichers:  a.enrichers(),
		Normalizer: normalize.New(cfg.Monitor.MaxTextLength),
		Scorer:     scoring.New(cfg.Scoring.ScorerConfig(), a.sentiment(), baseLogger),
		Notifier:   notify.NewFanout(baseLogger, sinks...),
		Store:      store,
		Observers:  []ports.CycleObserver{a.metrics},
		Settings: usecase.Settings{
			Entities:      cfg.Tracking.Entities,
			Phrases:       cfg.Tracking.Phrases,
			RecencyWindow: cfg.Monitor.RecencyWindow(),
			AlertUndated:  cfg.Monitor.AlertUndated,
			Limits:        cfg.State.Limits(),
		},
		CycleRetry: retry.Policy{
			MaxAttempts: cfg.Monitor.CycleRetries + 1,
			BaseDelay:   cfg.Monitor.CycleRetryDelay,
			Multiplier:  1,
		},
		Logger: baseLogger,
	})

	a.scheduler = usecase.NewScheduler(
		driver,
		a.pipeline,
		cfg.Monitor.SummaryHour,
		baseLogger,
	)
	return a, nil
}

func (a *Application) feedScanner() *parser.FeedScanner {
	fc := a.cfg.Feeds
	return parser.NewFeedScanner(&http.Client{Timeout: fc.Timeout}, parser.FeedOptions{
		Feeds:           fc.URLs,
		Fallbacks:       fc.Fallbacks,
		Pacing:          fc.Pacing,
		Retry:           retry.Exponential(fc.Retry.Attempts, fc.Retry.BaseDelay, fc.Retry.MaxDelay, domain.IsRetryable),
		UserAgent:       fc.UserAgent,
		BreakerFailures: fc.BreakerFailures,
		BreakerCooldown: fc.BreakerCooldown,
	}, a.logger)
}

func (a *Application) socialScanner() *social.Scanner {
	sc := a.cfg.Social

	// a nil interface, not a typed nil client, marks the adapter disabled
	var searcher social.Searcher
	if sc.Enabled() {
		searcher = social.NewClient(sc.BaseURL, sc.BearerToken, &http.Client{Timeout: sc.Timeout})
	}

	generic := sc.GenericQueries
	if generic == nil {
		generic = social.DefaultGenericQueries
	}
	return social.NewScanner(searcher, social.Options{
		Plan: social.QueryPlan{
			Accounts:    sc.Accounts,
			Entities:    a.cfg.Tracking.Entities,
			Phrases:     a.cfg.Tracking.Phrases,
			MaxEntities: sc.MaxEntities,
			MaxPhrases:  sc.MaxPhrases,
			Generic:     generic,
		},
		MaxResults: sc.MaxResults,
		Pacing:     sc.Pacing,
		Retry:      retry.Exponential(sc.Retry.Attempts, sc.Retry.BaseDelay, sc.Retry.MaxDelay, nil),
	}, a.logger)
}

func (a *Application) enrichers() map[domain.SourceKind]ports.ContentEnricher {
	if !a.cfg.Feeds.FetchArticleContent {
		return nil
	}
	client := &http.Client{Timeout: a.cfg.Feeds.Timeout}
	return map[domain.SourceKind]ports.ContentEnricher{
		domain.SourceFeed: parser.NewArticleContent(client, a.cfg.Feeds.ArticlePacing, a.cfg.Monitor.MaxTextLength, a.logger),
	}
}

// sentiment chains the remote service ahead of the local lexicon.
func (a *Application) sentiment() ports.SentimentEstimator {
	sc := a.cfg.Sentiment
	var chain scoring.FirstOf
	if sc.RemoteURL != "" {
		chain = append(chain, ml.NewClient(sc.RemoteURL, sc.APIKey, sc.Timeout, a.logger))
	}
	if sc.Lexicon {
		if sc.EnglishOnly {
			chain = append(chain, scoring.NewEnglishLexicon())
		} else {
			chain = append(chain, scoring.NewLexicon())
		}
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}

func (a *Application) stateStore(ctx context.Context) (ports.StateStore, error) {
	sc := a.cfg.State
	switch sc.Driver {
	case config.DriverSQLite, config.DriverPostgres:
		db, err := storage.OpenSQL(sc.Driver, sc.DSN)
		if err != nil {
			return nil, err
		}
		store, err := storage.NewSQLStore(ctx, db, sc.Driver, sc.Limits(), a.logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.closers = append(a.closers, store)
		return store, nil
	default:
		if dir := filepath.Dir(sc.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create state dir: %w", err)
			}
		}
		return storage.NewFileStore(sc.Path, sc.Limits(), a.logger), nil
	}
}

func (a *Application) notifiers() ([]ports.Notifier, []string) {
	nc := a.cfg.Notifications
	var sinks []ports.Notifier
	if nc.Telegram.Enabled() {
		sinks = append(sinks, telegram.NewNotifier(nc.Telegram.BotToken, nc.Telegram.ChatID))
	}
	ec := email.Config{
		Host:      nc.Email.Host,
		Port:      nc.Email.Port,
		Username:  nc.Email.Username,
		Password:  nc.Email.Password,
		From:      nc.Email.From,
		Recipient: nc.Email.Recipient,
	}
	if ec.Enabled() {
		sinks = append(sinks, email.NewNotifier(ec))
	}
	if nc.Log || len(sinks) == 0 {
		if len(sinks) == 0 {
			a.logger.Warn("no notification channel configured, alerts go to the log only")
		}
		sinks = append(sinks, notify.NewLog(a.logger))
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	return sinks, names
}

// Pipeline exposes the orchestrator to the CLI.
func (a *Application) Pipeline() *usecase.Pipeline {
	return a.pipeline
}

// Info reports static configuration facts.
func (a *Application) Info() httpapi.Info {
	return a.info
}

// RunOnce performs a single cycle.
func (a *Application) RunOnce(ctx context.Context) (domain.CycleReport, error) {
	// A failed load is retried by the cycle itself.
	_ = a.pipeline.Load(ctx)
	return a.pipeline.RunCycleWithRetry(ctx)
}

// Run starts the scheduler and, when configured, the status server, and
// blocks until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	_ = a.pipeline.Load(ctx)
	a.logger.Info("monitor starting",
		"interval", a.cfg.Monitor.Interval,
		"feeds", len(a.cfg.Feeds.URLs),
		"entities", len(a.cfg.Tracking.Entities),
		"social", a.info.SocialEnabled,
		"notifiers", a.info.Notifiers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	running := 1
	go func() { errc <- a.scheduler.Run(ctx, a.cfg.Monitor.ShutdownGrace) }()

	if a.cfg.HTTP.Addr != "" {
		running++
		router := httpapi.NewRouter(a.pipeline, a.metrics.Handler(), a.info, a.logger)
		server := httpapi.NewServer(a.cfg.HTTP.Addr, router, a.logger)
		go func() { errc <- server.Run(ctx) }()
	}

	var errs []error
	for i := 0; i < running; i++ {
		if err := <-errc; err != nil {
			errs = append(errs, err)
		}
		// one component exiting takes the other down with it
		cancel()
	}
	a.logger.Info("monitor stopped")
	return errors.Join(errs...)
}

// TestNotify sends a synthetic alert through every configured sink.
func (a *Application) TestNotify(ctx context.Context) error {
	return a.pipeline.SendTestAlert(ctx)
}

// Close releases the state store.
func (a *Application) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
