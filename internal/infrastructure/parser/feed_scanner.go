package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/retry"
	"TGEMonitor/internal/scanner"
)

const defaultUserAgent = "TGEMonitor/1.0 (+feed reader)"

// FeedOptions configures the feed adapter.
type FeedOptions struct {
	Feeds []string
	// Fallbacks maps a primary feed URL to an alternative tried once when the
	// primary answers with a client or server error.
	Fallbacks map[string]string
	Pacing    time.Duration
	Retry     retry.Policy
	UserAgent string

	// BreakerFailures is how many consecutive failed cycles open an
	// endpoint's breaker; zero disables breaking.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// FeedScanner fetches RSS/Atom feeds one endpoint at a time.
type FeedScanner struct {
	client  *http.Client
	opts    FeedOptions
	limiter *rate.Limiter
	logger  *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*gofeed.Feed]
}

var _ scanner.Scanner = (*FeedScanner)(nil)

// NewFeedScanner wires an HTTP client; a nil client gets a 30 s timeout.
func NewFeedScanner(client *http.Client, opts FeedOptions, logger *slog.Logger) *FeedScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = domain.IsRetryable
	}
	limit := rate.Inf
	if opts.Pacing > 0 {
		limit = rate.Every(opts.Pacing)
	}
	return &FeedScanner{
		client:   client,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger.With("component", "feed_scanner"),
		breakers: map[string]*gobreaker.CircuitBreaker[*gofeed.Feed]{},
	}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string {
	return "feeds"
}

// Kind implements scanner.Scanner.
func (f *FeedScanner) Kind() domain.SourceKind {
	return domain.SourceFeed
}

// Scan fetches every configured feed. A failing feed is recorded and skipped.
func (f *FeedScanner) Scan(ctx context.Context) (scanner.Result, error) {
	var res scanner.Result
	if len(f.opts.Feeds) == 0 {
		return res, nil
	}

	for _, feedURL := range f.opts.Feeds {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		feed, err := f.fetchWithFallback(ctx, feedURL)
		if err != nil {
			if domain.IsRateLimited(err) {
				f.logger.Warn("feed rate limited", "url", feedURL, "error", err)
				res.RateLimited = true
				continue
			}
			f.logger.Warn("feed failed", "url", feedURL, "error", err)
			res.Fail(feedURL, err)
			continue
		}

		items := toRawItems(feedURL, feed)
		f.logger.Debug("feed fetched", "url", feedURL, "entries", len(feed.Items), "items", len(items))
		res.Items = append(res.Items, items...)
	}

	return res, nil
}

func (f *FeedScanner) fetchWithFallback(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	feed, err := f.guarded(ctx, feedURL)
	if err == nil {
		return feed, nil
	}

	alt, ok := f.opts.Fallbacks[feedURL]
	var fe *domain.FetchError
	if !ok || alt == "" || !errors.As(err, &fe) || fe.StatusCode < 400 {
		return nil, err
	}

	f.logger.Info("trying fallback feed", "url", feedURL, "fallback", alt, "status", fe.StatusCode)
	feed, altErr := f.fetchOnce(ctx, alt)
	if altErr != nil {
		return nil, fmt.Errorf("fallback %s: %w", alt, altErr)
	}
	return feed, nil
}

// guarded runs the retried fetch behind the endpoint's circuit breaker.
func (f *FeedScanner) guarded(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	fetch := func() (*gofeed.Feed, error) {
		var feed *gofeed.Feed
		err := f.opts.Retry.Do(ctx, func(ctx context.Context) error {
			var err error
			feed, err = f.fetchOnce(ctx, feedURL)
			return err
		})
		return feed, err
	}

	cb := f.breaker(feedURL)
	if cb == nil {
		return fetch()
	}
	feed, err := cb.Execute(fetch)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &domain.FetchError{Endpoint: feedURL, Err: err}
	}
	return feed, err
}

func (f *FeedScanner) breaker(feedURL string) *gobreaker.CircuitBreaker[*gofeed.Feed] {
	if f.opts.BreakerFailures == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := f.breakers[feedURL]; ok {
		return cb
	}
	threshold := f.opts.BreakerFailures
	logger := f.logger
	cb := gobreaker.NewCircuitBreaker[*gofeed.Feed](gobreaker.Settings{
		Name:        feedURL,
		MaxRequests: 1,
		Timeout:     f.opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || domain.IsRateLimited(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("feed breaker state changed", "url", name, "from", from.String(), "to", to.String())
		},
	})
	f.breakers[feedURL] = cb
	return cb
}

// fetchOnce performs a single paced GET and parses the payload.
func (f *FeedScanner) fetchOnce(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	if _, err := url.ParseRequestURI(feedURL); err != nil {
		return nil, &domain.FetchError{Endpoint: feedURL, Err: fmt.Errorf("invalid url: %w", err)}
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &domain.FetchError{Endpoint: feedURL, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Endpoint: feedURL, Retryable: transportRetryable(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &domain.RateLimitError{Endpoint: feedURL, RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{
			Endpoint:   feedURL,
			StatusCode: resp.StatusCode,
			Retryable:  domain.IsTransientStatus(resp.StatusCode),
			Err:        fmt.Errorf("feed returned %s", resp.Status),
		}
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{Endpoint: feedURL, Err: &domain.ParseError{Input: feedURL, Err: err}}
	}
	return feed, nil
}

// toRawItems keeps entries that carry both a title and a link.
func toRawItems(feedURL string, feed *gofeed.Feed) []domain.RawItem {
	items := make([]domain.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil || strings.TrimSpace(entry.Title) == "" || strings.TrimSpace(entry.Link) == "" {
			continue
		}

		raw := domain.RawItem{
			Kind:         domain.SourceFeed,
			SourceID:     feedURL,
			SourceName:   strings.TrimSpace(feed.Title),
			ExternalID:   strings.TrimSpace(entry.GUID),
			Link:         strings.TrimSpace(entry.Link),
			Title:        entry.Title,
			Summary:      entry.Description,
			RawTimestamp: entry.Published,
		}
		if entry.Content != "" && entry.Content != entry.Description {
			raw.Body = entry.Content
		}
		switch {
		case entry.PublishedParsed != nil:
			raw.ParsedTimestamp = entry.PublishedParsed
		case entry.UpdatedParsed != nil:
			raw.ParsedTimestamp = entry.UpdatedParsed
		}
		if raw.RawTimestamp == "" {
			raw.RawTimestamp = entry.Updated
		}
		if entry.Author != nil && entry.Author.Name != "" {
			raw.Author = &domain.AuthorMetadata{DisplayName: entry.Author.Name}
		}
		items = append(items, raw)
	}
	return items
}

func transportRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
