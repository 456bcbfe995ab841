package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TGEMonitor/internal/config"
	"TGEMonitor/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	published := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)
	body := fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Example News</title>
<item>
  <title>Acme launches TGE tomorrow</title>
  <link>https://news.example/acme-tge</link>
  <guid>acme-tge</guid>
  <description>Acme confirms its token generation event.</description>
  <pubDate>%s</pubDate>
</item>
<item>
  <title>Markets are quiet</title>
  <link>https://news.example/quiet</link>
  <guid>quiet</guid>
  <pubDate>%s</pubDate>
</item>
</channel></rss>`, published, published)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func loadConfig(t *testing.T, feedURL, stateBlock string) config.Config {
	t.Helper()
	for _, key := range []string{
		"TGE_MONITOR_CONFIG", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "TWITTER_BEARER_TOKEN",
		"EMAIL_USER", "EMAIL_PASSWORD", "RECIPIENT_EMAIL", "STATE_DRIVER", "STATE_DSN",
		"SENTIMENT_URL", "HTTP_ADDR",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	body := fmt.Sprintf(`
monitor:
  summaryHour: -1
  cycleRetries: 0
tracking:
  entities: [Acme]
  phrases: [TGE, airdrop]
feeds:
  urls: [%q]
  pacing: 0s
  retry:
    attempts: 1
social:
  accounts: []
sentiment:
  lexicon: false
http:
  addr: ""
%s`, feedURL, stateBlock)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestRunOnceAlertsAndPersists(t *testing.T) {
	srv := feedServer(t)
	statePath := filepath.Join(t.TempDir(), "nested", "state.json")
	cfg := loadConfig(t, srv.URL+"/rss", fmt.Sprintf("state:\n  driver: file\n  path: %q\n", statePath))

	ctx := context.Background()
	a, err := New(ctx, cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, []string{"log"}, a.Info().Notifiers)
	assert.False(t, a.Info().SocialEnabled)

	report, err := a.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Alerts)
	assert.True(t, report.Notified)
	assert.Equal(t, 2, report.Sources[domain.SourceFeed].Fetched)
	assert.FileExists(t, statePath)

	restarted, err := New(ctx, cfg, quietLogger())
	require.NoError(t, err)
	report, err = restarted.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Alerts)
	assert.EqualValues(t, 2, restarted.Pipeline().Stats().Cycles)
	assert.Len(t, restarted.Pipeline().RecentAlerts(24), 1)
}

func TestRunOnceWithSQLiteState(t *testing.T) {
	srv := feedServer(t)
	dsn := filepath.Join(t.TempDir(), "state.db")
	cfg := loadConfig(t, srv.URL+"/rss", fmt.Sprintf("state:\n  driver: sqlite\n  dsn: %q\n", dsn))

	ctx := context.Background()
	a, err := New(ctx, cfg, quietLogger())
	require.NoError(t, err)
	report, err := a.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Alerts)
	require.NoError(t, a.Close())

	b, err := New(ctx, cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	require.NoError(t, b.Pipeline().Load(ctx))
	assert.EqualValues(t, 1, b.Pipeline().Stats().AlertsSent)
}

func TestTestNotifyUsesLogSink(t *testing.T) {
	srv := feedServer(t)
	cfg := loadConfig(t, srv.URL+"/rss", fmt.Sprintf("state:\n  path: %q\n", filepath.Join(t.TempDir(), "s.json")))

	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, a.TestNotify(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := feedServer(t)
	cfg := loadConfig(t, srv.URL+"/rss", fmt.Sprintf("state:\n  path: %q\n", filepath.Join(t.TempDir(), "s.json")))
	cfg.Monitor.Interval = time.Hour

	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "1h0m0s", a.Info().Interval)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for a.Pipeline().Stats().Cycles == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.EqualValues(t, 1, a.Pipeline().Stats().Cycles)
}
