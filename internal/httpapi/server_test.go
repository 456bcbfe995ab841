package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TGEMonitor/internal/domain"
)

type fakeProvider struct {
	stats     domain.Stats
	alerts    []domain.Analysis
	lastHours int
}

func (f *fakeProvider) Stats() domain.Stats { return f.stats }

func (f *fakeProvider) RecentAlerts(hours int) []domain.Analysis {
	f.lastHours = hours
	return f.alerts
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthReportsDegradedAfterErrors(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{stats: domain.Stats{Phase: "IDLE", Cycles: 3}}
	h := NewRouter(p, nil, Info{}, quietLogger())

	rec, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	p.stats.LastCycle = &domain.CycleReport{Errors: 2}
	_, body = get(t, h, "/healthz")
	assert.Equal(t, "degraded", body["status"])
	assert.EqualValues(t, 2, body["last_cycle_errors"])
}

func TestStatusMergesStatsAndInfo(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	p := &fakeProvider{stats: domain.Stats{
		Phase:       "FETCHING",
		Cycles:      7,
		AlertsFound: map[domain.SourceKind]int64{domain.SourceFeed: 2},
		LastRunAt:   &now,
	}}
	h := NewRouter(p, nil, Info{Notifiers: []string{"telegram"}, SocialEnabled: true}, quietLogger())

	rec, body := get(t, h, "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 7, body["cycles"])
	assert.Equal(t, "FETCHING", body["phase"])
	assert.Equal(t, true, body["social_enabled"])
	assert.Equal(t, []any{"telegram"}, body["notifiers"])
}

func TestAlertsHoursParameter(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	p := &fakeProvider{alerts: []domain.Analysis{{
		SourceKind: domain.SourceFeed,
		Item:       domain.NormalizedItem{ID: "feed:a1", Kind: domain.SourceFeed, Text: "Acme TGE", Timestamp: &ts},
	}}}
	h := NewRouter(p, nil, Info{}, quietLogger())

	rec, body := get(t, h, "/alerts")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 24, p.lastHours)
	assert.EqualValues(t, 1, body["count"])

	_, _ = get(t, h, "/alerts?hours=6")
	assert.Equal(t, 6, p.lastHours)

	rec, _ = get(t, h, "/alerts?hours=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = get(t, h, "/alerts?hours=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsMountedWhenProvided(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("tgemonitor_cycles_total 1\n"))
	})
	h := NewRouter(&fakeProvider{}, metrics, Info{}, quietLogger())
	rec, _ := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tgemonitor_cycles_total")

	h = NewRouter(&fakeProvider{}, nil, Info{}, quietLogger())
	rec, _ = get(t, h, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
