package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TGEMonitor/internal/domain"
)

func TestObserveCycle(t *testing.T) {
	t.Parallel()

	c := New()
	c.ObserveCycle(domain.CycleReport{
		Number:    1,
		StartedAt: time.Now(),
		Duration:  2 * time.Second,
		Sources: map[domain.SourceKind]domain.SourceStats{
			domain.SourceFeed:   {Fetched: 10, Processed: 8, Skipped: 2, Alerts: 1},
			domain.SourceSocial: {Fetched: 3, Processed: 3, RateLimited: true},
		},
		Alerts:   1,
		Errors:   2,
		Notified: true,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.cycles))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cycleErrors))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.items.WithLabelValues("feed", "fetched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.alerts.WithLabelValues("feed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rateLimited.WithLabelValues("social")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notifications.WithLabelValues("true")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	c := New()
	c.ObserveCycle(domain.CycleReport{StartedAt: time.Now()})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tgemonitor_cycles_total 1"))
}
