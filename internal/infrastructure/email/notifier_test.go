package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TGEMonitor/internal/domain"
)

func alert(kind domain.SourceKind, entity string) domain.Analysis {
	return domain.Analysis{
		SourceKind:        kind,
		Item:              domain.NormalizedItem{Title: "<b>" + entity + "</b> TGE", Text: entity + " TGE soon", Link: "https://example.org"},
		MentionedEntities: []string{entity},
		MatchedPhrases:    []string{"TGE"},
		RelevanceScore:    0.75,
	}
}

func batch(alerts ...domain.Analysis) domain.AlertBatch {
	b := domain.AlertBatch{BySource: map[domain.SourceKind][]domain.Analysis{}}
	for _, a := range alerts {
		b.BySource[a.SourceKind] = append(b.BySource[a.SourceKind], a)
	}
	return b
}

func TestSubjectRules(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 4, 9, 5, 0, 0, time.UTC)
	assert.Equal(t, "TGE Alert: Acme Token Generation Event Detected", Subject(batch(alert(domain.SourceFeed, "Acme")), now))
	assert.Equal(t, "TGE Tweet Alert: Acme Token Generation Event", Subject(batch(alert(domain.SourceSocial, "Acme")), now))

	noEntity := alert(domain.SourceFeed, "Acme")
	noEntity.MentionedEntities = nil
	assert.Equal(t, "TGE Alert: Unknown Token Generation Event Detected", Subject(batch(noEntity), now))

	assert.Equal(t, "2 TGE Alerts Detected - 2025-03-04 09:05",
		Subject(batch(alert(domain.SourceFeed, "Acme"), alert(domain.SourceSocial, "Beta")), now))
}

type captured struct {
	addr string
	from string
	to   []string
	msg  string
}

func testNotifier(c *captured, fail error) *Notifier {
	n := NewNotifier(Config{Host: "smtp.example.org", Username: "bot@example.org", Password: "pw", Recipient: "ops@example.org"})
	n.now = func() time.Time { return time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC) }
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		c.addr, c.from, c.to, c.msg = addr, from, to, string(msg)
		return fail
	}
	return n
}

func TestNotifySendsEscapedHTML(t *testing.T) {
	t.Parallel()

	var c captured
	n := testNotifier(&c, nil)
	require.NoError(t, n.Notify(context.Background(), batch(alert(domain.SourceFeed, "Acme"))))

	assert.Equal(t, "smtp.example.org:587", c.addr)
	assert.Equal(t, "bot@example.org", c.from)
	assert.Equal(t, []string{"ops@example.org"}, c.to)
	assert.Contains(t, c.msg, "Content-Type: text/html")
	assert.Contains(t, c.msg, "News Alerts (1)")
	assert.Contains(t, c.msg, "&lt;b&gt;Acme&lt;/b&gt; TGE")
	assert.False(t, strings.Contains(c.msg, "<b>Acme</b>"))
}

func TestNotifyEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	var c captured
	n := testNotifier(&c, errors.New("must not be called"))
	require.NoError(t, n.Notify(context.Background(), domain.AlertBatch{}))
	assert.Empty(t, c.msg)
}

func TestNotifyPropagatesSendFailure(t *testing.T) {
	t.Parallel()

	var c captured
	n := testNotifier(&c, errors.New("535 auth failed"))
	err := n.Notify(context.Background(), batch(alert(domain.SourceSocial, "Acme")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535")
}

func TestNotifySummary(t *testing.T) {
	t.Parallel()

	var c captured
	n := testNotifier(&c, nil)
	err := n.NotifySummary(context.Background(), domain.Summary{
		Date:           time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC),
		RecentBySource: map[domain.SourceKind]int{domain.SourceFeed: 2, domain.SourceSocial: 5},
		TotalProcessed: 120,
	})
	require.NoError(t, err)
	assert.Contains(t, c.msg, "Daily TGE Monitor Summary - 2025-03-04")
	assert.Contains(t, c.msg, "<strong>120</strong> items analyzed")
	assert.Contains(t, c.msg, "<strong>5</strong> social alerts")
}

func TestMisconfiguredNotifierFails(t *testing.T) {
	t.Parallel()

	n := NewNotifier(Config{})
	assert.Error(t, n.Notify(context.Background(), batch(alert(domain.SourceFeed, "Acme"))))
}
