package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/normalize"
	"TGEMonitor/internal/ports"
)

const (
	defaultBodyLimit   = 2 * 1024 * 1024
	defaultContentCap  = 5000
	minExtractedLength = 100
)

// contentSelectors are tried in order when readability finds nothing useful.
var contentSelectors = []string{
	"article", ".article-content", ".post-content", ".entry-content", ".content",
	"main", ".main-content", ".story-body", ".article-body", ".post-body",
}

// ArticleContent fetches the linked page of a feed item and extracts its main text.
type ArticleContent struct {
	client    *http.Client
	limiter   *rate.Limiter
	maxLength int
	userAgent string
	logger    *slog.Logger
}

var _ ports.ContentEnricher = (*ArticleContent)(nil)

// NewArticleContent builds an enricher; maxLength caps the extracted text.
func NewArticleContent(client *http.Client, pacing time.Duration, maxLength int, logger *slog.Logger) *ArticleContent {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if maxLength <= 0 {
		maxLength = defaultContentCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if pacing > 0 {
		limit = rate.Every(pacing)
	}
	return &ArticleContent{
		client:    client,
		limiter:   rate.NewLimiter(limit, 1),
		maxLength: maxLength,
		userAgent: defaultUserAgent,
		logger:    logger.With("component", "article_content"),
	}
}

// Enrich replaces the item body with the article text. The item is returned
// unchanged alongside the error when the page cannot be used.
func (a *ArticleContent) Enrich(ctx context.Context, item domain.RawItem) (domain.RawItem, error) {
	if item.Link == "" {
		return item, nil
	}
	text, err := a.extract(ctx, item.Link)
	if err != nil {
		return item, err
	}
	item.Body = text
	return item, nil
}

func (a *ArticleContent) extract(ctx context.Context, link string) (string, error) {
	pageURL, err := url.Parse(link)
	if err != nil || pageURL.Host == "" {
		return "", &domain.FetchError{Endpoint: link, Err: fmt.Errorf("invalid article url")}
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", &domain.FetchError{Endpoint: link, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &domain.FetchError{Endpoint: link, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.FetchError{Endpoint: link, StatusCode: resp.StatusCode, Err: fmt.Errorf("article returned %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, defaultBodyLimit))
	if err != nil {
		return "", &domain.FetchError{Endpoint: link, Err: fmt.Errorf("read body: %w", err)}
	}

	if text := a.readable(body, pageURL); len(text) >= minExtractedLength {
		return normalize.SanitizeText(text, a.maxLength), nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", &domain.ParseError{Input: link, Err: err}
	}
	doc.Find("script, style, nav, header, footer, aside").Remove()

	for _, selector := range contentSelectors {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); len(text) >= minExtractedLength {
			return normalize.SanitizeText(text, a.maxLength), nil
		}
	}
	text := normalize.SanitizeText(doc.Find("body").Text(), a.maxLength)
	if text == "" {
		return "", &domain.ParseError{Input: link, Err: domain.ErrEmptyText}
	}
	return text, nil
}

func (a *ArticleContent) readable(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		a.logger.Debug("readability failed", "url", pageURL.String(), "error", err)
		return ""
	}
	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return strings.TrimSpace(article.Excerpt())
	}
	return strings.TrimSpace(rendered.String())
}
