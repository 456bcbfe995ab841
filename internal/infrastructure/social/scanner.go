package social

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/retry"
	"TGEMonitor/internal/scanner"
)

// Searcher is the recent search call the scanner depends on.
type Searcher interface {
	SearchRecent(ctx context.Context, query string, maxResults int) ([]Post, error)
}

// Options configures the social adapter.
type Options struct {
	Plan       QueryPlan
	MaxResults int
	Pacing     time.Duration
	Retry      retry.Policy
	// LinkBase prefixes post permalinks.
	LinkBase string
}

// Scanner runs every planned query sequentially. A throttled query flags the
// result and the scan moves on to the next query without waiting.
type Scanner struct {
	searcher Searcher
	opts     Options
	limiter  *rate.Limiter
	logger   *slog.Logger
}

var _ scanner.Scanner = (*Scanner)(nil)

// NewScanner builds the adapter. A nil searcher (no credentials) yields a
// scanner that contributes nothing.
func NewScanner(searcher Searcher, opts Options, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = MinResults
	}
	if opts.LinkBase == "" {
		opts.LinkBase = "https://twitter.com"
	}
	// Throttling is never waited out here.
	opts.Retry.Retryable = func(err error) bool {
		return !domain.IsRateLimited(err) && domain.IsRetryable(err)
	}
	limit := rate.Inf
	if opts.Pacing > 0 {
		limit = rate.Every(opts.Pacing)
	}
	s := &Scanner{
		searcher: searcher,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger.With("component", "social_scanner"),
	}
	if searcher == nil {
		s.logger.Warn("social search disabled: no bearer token configured")
	}
	return s
}

// Name identifies the strategy inside the registry.
func (s *Scanner) Name() string {
	return "social"
}

// Kind implements scanner.Scanner.
func (s *Scanner) Kind() domain.SourceKind {
	return domain.SourceSocial
}

// Enabled reports whether credentials were configured.
func (s *Scanner) Enabled() bool {
	return s.searcher != nil
}

// Scan implements scanner.Scanner.
func (s *Scanner) Scan(ctx context.Context) (scanner.Result, error) {
	var res scanner.Result
	if s.searcher == nil {
		return res, nil
	}

	queries := s.opts.Plan.Queries()
	seen := map[string]struct{}{}
	for _, query := range queries {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var posts []Post
		err := s.opts.Retry.Do(ctx, func(ctx context.Context) error {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			var err error
			posts, err = s.searcher.SearchRecent(ctx, query, s.opts.MaxResults)
			return err
		})
		if err != nil {
			if domain.IsRateLimited(err) {
				s.logger.Warn("search rate limited", "query", query, "error", err)
				res.RateLimited = true
				continue
			}
			s.logger.Warn("search failed", "query", query, "error", err)
			res.Fail(query, err)
			continue
		}

		for _, post := range posts {
			if post.ID == "" {
				continue
			}
			if _, dup := seen[post.ID]; dup {
				continue
			}
			seen[post.ID] = struct{}{}
			res.Items = append(res.Items, s.toRawItem(query, post))
		}
		s.logger.Debug("search done", "query", query, "posts", len(posts))
	}

	s.logger.Info("social scan finished",
		"queries", len(queries),
		"items", len(res.Items),
		"failures", len(res.Failures),
		"rate_limited", res.RateLimited)
	return res, nil
}

func (s *Scanner) toRawItem(query string, post Post) domain.RawItem {
	handle := post.Author.Username
	if handle == "" {
		handle = "i"
	}
	return domain.RawItem{
		Kind:         domain.SourceSocial,
		SourceID:     query,
		SourceName:   "@" + strings.TrimPrefix(handle, "@"),
		ExternalID:   post.ID,
		Link:         strings.TrimRight(s.opts.LinkBase, "/") + "/" + handle + "/status/" + post.ID,
		Summary:      post.Text,
		RawTimestamp: post.CreatedAt,
		Author: &domain.AuthorMetadata{
			Handle:       post.Author.Username,
			DisplayName:  post.Author.Name,
			AudienceSize: post.Author.Followers,
		},
		Engagement: &domain.Engagement{
			Amplifications: post.Retweets,
			Approvals:      post.Likes,
		},
	}
}
