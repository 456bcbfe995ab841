package parser

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"TGEMonitor/internal/domain"
)

func TestArticleContentExtractsMainText(t *testing.T) {
	t.Parallel()

	paragraph := strings.Repeat("Acme confirmed its token generation event is scheduled for next week. ", 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, `<html><head><title>Acme</title></head><body>
			<nav>Home | About | Contact</nav>
			<div class="post-content"><p>`+paragraph+`</p></div>
			<footer>copyright</footer></body></html>`)
	}))
	defer srv.Close()

	e := NewArticleContent(srv.Client(), 0, 300, quietLogger())
	item, err := e.Enrich(context.Background(), domain.RawItem{Link: srv.URL + "/post", Summary: "short"})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if !strings.Contains(item.Body, "token generation event") {
		t.Fatalf("expected article text, got %q", item.Body)
	}
	if len([]rune(item.Body)) > 300 {
		t.Fatalf("expected body capped at 300 runes, got %d", len([]rune(item.Body)))
	}
	if item.Summary != "short" {
		t.Fatalf("summary must be preserved")
	}
}

func TestArticleContentKeepsItemOnFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	e := NewArticleContent(srv.Client(), 0, 0, quietLogger())
	in := domain.RawItem{Link: srv.URL, Summary: "summary only"}
	out, err := e.Enrich(context.Background(), in)
	if err == nil {
		t.Fatalf("expected error for forbidden page")
	}
	if out.Body != "" || out.Summary != "summary only" {
		t.Fatalf("item must be returned unchanged: %+v", out)
	}
}
