// Package email delivers alert batches as HTML mail over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/ports"
)

// Config holds SMTP credentials and addressing.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Recipient string
}

// Enabled reports whether enough is configured to send.
func (c Config) Enabled() bool {
	return c.Host != "" && c.Username != "" && c.Password != "" && c.Recipient != ""
}

// SendFunc matches smtp.SendMail, which upgrades to STARTTLS when offered.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Notifier sends HTML alert and summary emails.
type Notifier struct {
	cfg  Config
	send SendFunc
	now  func() time.Time
}

var (
	_ ports.Notifier        = (*Notifier)(nil)
	_ ports.SummaryNotifier = (*Notifier)(nil)
)

// NewNotifier builds an SMTP notifier.
func NewNotifier(cfg Config) *Notifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Notifier{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

// Name implements ports.Notifier.
func (n *Notifier) Name() string {
	return "email"
}

// Notify implements ports.Notifier.
func (n *Notifier) Notify(ctx context.Context, batch domain.AlertBatch) error {
	if batch.Empty() {
		return nil
	}
	var body bytes.Buffer
	if err := alertTemplate.Execute(&body, newAlertView(batch, n.now().UTC())); err != nil {
		return fmt.Errorf("render alert email: %w", err)
	}
	return n.deliver(ctx, Subject(batch, n.now().UTC()), body.Bytes())
}

// NotifySummary implements ports.SummaryNotifier.
func (n *Notifier) NotifySummary(ctx context.Context, summary domain.Summary) error {
	var body bytes.Buffer
	if err := summaryTemplate.Execute(&body, summaryView{
		Date:      summary.Date.UTC().Format("2006-01-02"),
		Processed: summary.TotalProcessed,
		News:      summary.RecentBySource[domain.SourceFeed],
		Social:    summary.RecentBySource[domain.SourceSocial],
	}); err != nil {
		return fmt.Errorf("render summary email: %w", err)
	}
	subject := "Daily TGE Monitor Summary - " + summary.Date.UTC().Format("2006-01-02")
	return n.deliver(ctx, subject, body.Bytes())
}

// Subject picks the subject line: a single alert names its entity, several
// alerts are counted.
func Subject(batch domain.AlertBatch, now time.Time) string {
	if batch.Total() == 1 {
		if feed := batch.BySource[domain.SourceFeed]; len(feed) == 1 {
			return fmt.Sprintf("TGE Alert: %s Token Generation Event Detected", feed[0].PrimaryEntity())
		}
		for _, alerts := range batch.BySource {
			if len(alerts) == 1 {
				return fmt.Sprintf("TGE Tweet Alert: %s Token Generation Event", alerts[0].PrimaryEntity())
			}
		}
	}
	return fmt.Sprintf("%d TGE Alerts Detected - %s", batch.Total(), now.Format("2006-01-02 15:04"))
}

func (n *Notifier) deliver(ctx context.Context, subject string, html []byte) error {
	if !n.cfg.Enabled() {
		return fmt.Errorf("email notifier misconfigured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", n.cfg.Recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", n.now().UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.Write(html)

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	if err := n.send(addr, auth, n.cfg.From, []string{n.cfg.Recipient}, msg.Bytes()); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

type alertItem struct {
	Headline  string
	Link      string
	Source    string
	Published string
	Entities  string
	Phrases   string
	Score     string
	Excerpt   string
	Author    string
	Metrics   string
}

type alertSection struct {
	Title string
	Items []alertItem
}

type alertView struct {
	Generated   string
	Total       int
	RateLimited bool
	Sections    []alertSection
}

func newAlertView(batch domain.AlertBatch, now time.Time) alertView {
	view := alertView{
		Generated:   now.Format("2006-01-02 15:04 UTC"),
		Total:       batch.Total(),
		RateLimited: batch.Meta.RateLimited,
	}
	for _, kind := range domain.SourceKinds {
		alerts := batch.BySource[kind]
		if len(alerts) == 0 {
			continue
		}
		section := alertSection{Title: sectionTitle(kind)}
		for _, a := range alerts {
			item := alertItem{
				Headline:  a.Item.Title,
				Link:      a.Item.Link,
				Source:    a.Item.SourceName,
				Published: "Unknown",
				Entities:  strings.Join(a.MentionedEntities, ", "),
				Phrases:   strings.Join(a.MatchedPhrases, ", "),
				Score:     fmt.Sprintf("%.2f", a.RelevanceScore),
				Excerpt:   excerpt(a.Item.Text, 200),
			}
			if item.Headline == "" {
				item.Headline = excerpt(a.Item.Text, 120)
			}
			if a.Item.HasTimestamp() {
				item.Published = a.Item.Timestamp.UTC().Format("2006-01-02 15:04 UTC")
			}
			if au := a.Item.Author; au != nil && au.Handle != "" {
				item.Author = fmt.Sprintf("@%s (%d followers)", au.Handle, au.AudienceSize)
			}
			if e := a.Item.Engagement; e != nil {
				item.Metrics = fmt.Sprintf("%d reposts, %d likes", e.Amplifications, e.Approvals)
			}
			section.Items = append(section.Items, item)
		}
		view.Sections = append(view.Sections, section)
	}
	return view
}

type summaryView struct {
	Date      string
	Processed int64
	News      int
	Social    int
}

func sectionTitle(kind domain.SourceKind) string {
	switch kind {
	case domain.SourceFeed:
		return "News Alerts"
	case domain.SourceSocial:
		return "Social Alerts"
	default:
		return string(kind)
	}
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

var alertTemplate = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html><head><meta charset="UTF-8"><style>
body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; }
.section { border: 1px solid #e0e0e0; border-radius: 8px; margin-bottom: 30px; }
.section h2 { background: #007bff; color: #fff; margin: 0; padding: 12px 20px; font-size: 18px; }
.item { padding: 16px 20px; border-bottom: 1px solid #f0f0f0; }
.meta { font-size: 14px; color: #666; }
.tag { display: inline-block; padding: 4px 10px; border-radius: 5px; margin: 4px 4px 0 0; background: #e8f4fd; }
</style></head><body>
<h1>Crypto TGE Monitor Alert</h1>
<p>{{.Total}} alert(s), generated {{.Generated}}</p>
{{if .RateLimited}}<p><em>Some searches were rate limited this cycle; results may be partial.</em></p>{{end}}
{{range .Sections}}<div class="section"><h2>{{.Title}} ({{len .Items}})</h2>
{{range .Items}}<div class="item">
<div><strong>{{.Headline}}</strong></div>
<div class="meta">{{if .Source}}Source: {{.Source}} | {{end}}Published: {{.Published}}{{if .Author}} | {{.Author}}{{end}}{{if .Metrics}} | {{.Metrics}}{{end}}</div>
{{if .Link}}<div><a href="{{.Link}}">Open</a></div>{{end}}
<div><span class="tag">Entities: {{.Entities}}</span><span class="tag">Phrases: {{.Phrases}}</span><span class="tag">Score: {{.Score}}</span></div>
<p class="meta">{{.Excerpt}}</p>
</div>{{end}}
</div>{{end}}
</body></html>`))

var summaryTemplate = template.Must(template.New("summary").Parse(`<!DOCTYPE html>
<html><head><meta charset="UTF-8"></head><body>
<h1>Daily Summary</h1>
<p>Crypto TGE Monitor - {{.Date}}</p>
<p><strong>{{.Processed}}</strong> items analyzed</p>
<p><strong>{{.News}}</strong> news alerts, <strong>{{.Social}}</strong> social alerts in the last 24 hours</p>
</body></html>`))
