package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// messageLimit stays under the Bot API cap of 4096 characters.
	messageLimit = 4000
)

// Notifier sends alert digests to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var (
	_ ports.Notifier        = (*Notifier)(nil)
	_ ports.SummaryNotifier = (*Notifier)(nil)
)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIBase points the notifier at another Bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// Name implements ports.Notifier.
func (n *Notifier) Name() string {
	return "telegram"
}

// Notify renders the batch as Markdown and posts it, split across messages
// when it is too long for one.
func (n *Notifier) Notify(ctx context.Context, batch domain.AlertBatch) error {
	if batch.Empty() {
		return nil
	}
	for _, chunk := range split(renderBatch(batch), messageLimit) {
		if err := n.send(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

// NotifySummary posts the daily digest.
func (n *Notifier) NotifySummary(ctx context.Context, summary domain.Summary) error {
	return n.send(ctx, renderSummary(summary))
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

func renderBatch(batch domain.AlertBatch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*TGE Monitor: %d alert(s)*\n", batch.Total())
	if batch.Meta.RateLimited {
		b.WriteString("_Some searches were rate limited this cycle; results may be partial._\n")
	}
	b.WriteString("\n")

	for _, kind := range domain.SourceKinds {
		alerts := batch.BySource[kind]
		if len(alerts) == 0 {
			continue
		}
		fmt.Fprintf(&b, "*%s (%d)*\n", sectionTitle(kind), len(alerts))
		for _, a := range alerts {
			headline := a.Item.Title
			if headline == "" {
				headline = clip(a.Item.Text, 200)
			}
			fmt.Fprintf(&b, "- %s\n", escape(headline))
			if a.Item.Author != nil && a.Item.Author.Handle != "" {
				fmt.Fprintf(&b, "  by @%s", escape(a.Item.Author.Handle))
				if a.Item.Engagement != nil {
					fmt.Fprintf(&b, " (%d reposts, %d likes)", a.Item.Engagement.Amplifications, a.Item.Engagement.Approvals)
				}
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "  Entities: %s\n", escape(strings.Join(a.MentionedEntities, ", ")))
			fmt.Fprintf(&b, "  Phrases: %s\n", escape(strings.Join(a.MatchedPhrases, ", ")))
			fmt.Fprintf(&b, "  Score: %.2f", a.RelevanceScore)
			if a.Item.HasTimestamp() {
				fmt.Fprintf(&b, " | %s", a.Item.Timestamp.UTC().Format("2006-01-02 15:04 UTC"))
			}
			b.WriteString("\n")
			if a.Item.Link != "" {
				fmt.Fprintf(&b, "  %s\n", escape(a.Item.Link))
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSummary(s domain.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Daily TGE Monitor Summary - %s*\n\n", s.Date.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "Items processed: %d\n", s.TotalProcessed)
	for _, kind := range domain.SourceKinds {
		fmt.Fprintf(&b, "%s alerts (24h): %d\n", sectionTitle(kind), s.RecentBySource[kind])
	}
	return strings.TrimRight(b.String(), "\n")
}

func sectionTitle(kind domain.SourceKind) string {
	switch kind {
	case domain.SourceFeed:
		return "News"
	case domain.SourceSocial:
		return "Social"
	default:
		return string(kind)
	}
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// split cuts text on line boundaries into pieces of at most limit bytes. A
// line longer than limit is cut on rune boundaries.
func split(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			cut := runeCut(line, limit)
			out = append(out, line[:cut])
			line = line[cut:]
		}
		if cur.Len()+len(line) > limit {
			out = append(out, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// runeCut returns the largest index <= limit that starts a rune in s.
func runeCut(s string, limit int) int {
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		return limit
	}
	return cut
}
