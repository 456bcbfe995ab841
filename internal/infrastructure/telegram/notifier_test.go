package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"TGEMonitor/internal/domain"
)

func batchWith(alerts ...domain.Analysis) domain.AlertBatch {
	b := domain.AlertBatch{ID: "b1", CreatedAt: time.Now(), BySource: map[domain.SourceKind][]domain.Analysis{}}
	for _, a := range alerts {
		b.BySource[a.SourceKind] = append(b.BySource[a.SourceKind], a)
	}
	return b
}

func TestNotifierPostsRenderedBatch(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		texts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("chat_id") != "chat" {
			t.Errorf("unexpected chat id %q", r.Form.Get("chat_id"))
		}
		mu.Lock()
		texts = append(texts, r.Form.Get("text"))
		mu.Unlock()
	}))
	defer srv.Close()

	n := NewNotifier("token", "chat").WithAPIBase(srv.URL)
	ts := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	batch := batchWith(domain.Analysis{
		SourceKind:        domain.SourceFeed,
		Item:              domain.NormalizedItem{Title: "Acme_launches TGE", Link: "https://example.org/a", Timestamp: &ts},
		MentionedEntities: []string{"Acme"},
		MatchedPhrases:    []string{"TGE"},
		RelevanceScore:    0.8,
	})
	batch.Meta.RateLimited = true

	if err := n.Notify(context.Background(), batch); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(texts) != 1 {
		t.Fatalf("expected one message, got %d", len(texts))
	}
	msg := texts[0]
	for _, want := range []string{"1 alert(s)", "rate limited", "Acme\\_launches TGE", "Score: 0.80", "https://example.org/a", "2025-03-04 10:00 UTC"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestNotifierEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	n := NewNotifier("", "")
	if err := n.Notify(context.Background(), domain.AlertBatch{}); err != nil {
		t.Fatalf("empty batch must succeed, got %v", err)
	}
}

func TestNotifierReportsHTTPFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewNotifier("token", "chat").WithAPIBase(srv.URL)
	err := n.Notify(context.Background(), batchWith(domain.Analysis{SourceKind: domain.SourceSocial, Item: domain.NormalizedItem{Text: "x"}}))
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestSplitKeepsPiecesUnderLimit(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("line of text\n", 50) + strings.Repeat("x", 120)
	parts := split(text, 100)
	if strings.Join(parts, "") != text {
		t.Fatalf("split must not lose text")
	}
	for _, p := range parts {
		if len(p) > 100 {
			t.Fatalf("piece too long: %d", len(p))
		}
	}
}

func TestRenderBatchEscapesLinks(t *testing.T) {
	t.Parallel()

	msg := renderBatch(batchWith(domain.Analysis{
		SourceKind:        domain.SourceFeed,
		Item:              domain.NormalizedItem{Title: "Acme TGE", Link: "https://medium.com/@acme_labs/tge"},
		MentionedEntities: []string{"Acme"},
		MatchedPhrases:    []string{"TGE"},
	}))
	if !strings.Contains(msg, "  https://medium.com/@acme\\_labs/tge") {
		t.Fatalf("link underscore must be escaped:\n%s", msg)
	}
	if strings.Contains(msg, "@acme_labs") {
		t.Fatalf("raw underscore left in message:\n%s", msg)
	}
}

func TestSplitKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("é", 150)
	parts := split(text, 101)
	if strings.Join(parts, "") != text {
		t.Fatalf("split must not lose text")
	}
	for _, p := range parts {
		if len(p) > 101 {
			t.Fatalf("piece too long: %d", len(p))
		}
		if !utf8.ValidString(p) {
			t.Fatalf("piece is not valid UTF-8: %q", p)
		}
	}
}
