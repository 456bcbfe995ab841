// Package scoring matches tracked entities and trigger phrases and computes
// a bounded relevance score.
package scoring

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/ports"
)

// Scorer produces an Analysis for a normalized item.
type Scorer struct {
	cfg       Config
	sentiment ports.SentimentEstimator
	logger    *slog.Logger
	now       func() time.Time
}

var _ ports.RelevanceScorer = (*Scorer)(nil)

// New builds a scorer. sentiment may be nil, in which case no sentiment
// boost is ever applied.
func New(cfg Config, sentiment ports.SentimentEstimator, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		cfg:       cfg,
		sentiment: sentiment,
		logger:    logger.With("component", "scorer"),
		now:       time.Now,
	}
}

// Score analyzes item against the tracked entities and trigger phrases.
func (s *Scorer) Score(ctx context.Context, item domain.NormalizedItem, entities, phrases []string) domain.Analysis {
	folded := strings.ToLower(item.Text)
	weights := s.cfg.weightsFor(item.Kind)

	mentioned := matchAll(folded, entities)
	matched := matchAll(folded, phrases)

	score := 0.0
	for _, phrase := range matched {
		score += weights.PhraseWeight(phrase)
	}
	score += float64(len(mentioned)) * weights.EntityWeight

	score += s.sentimentBoost(ctx, item.Text)
	score += s.urgencyBoost(folded)
	score += engagementBoost(weights, item.Engagement)
	score += audienceBoost(weights, item.Author)

	score = clamp(score)

	analysis := domain.Analysis{
		SourceKind:        item.Kind,
		Item:              item,
		MentionedEntities: mentioned,
		MatchedPhrases:    matched,
		RelevanceScore:    score,
		IsRelevant:        len(mentioned) > 0 && len(matched) > 0 && score > s.cfg.Threshold,
		AnalyzedAt:        s.now().UTC(),
	}

	s.logger.Debug("item scored",
		"id", item.ID,
		"entities", mentioned,
		"phrases", matched,
		"score", score,
		"relevant", analysis.IsRelevant)

	return analysis
}

// matchAll returns the needles contained in folded, once each, in input order.
func matchAll(folded string, needles []string) []string {
	found := make([]string, 0)
	seen := make(map[string]struct{}, len(needles))
	for _, needle := range needles {
		key := strings.ToLower(strings.TrimSpace(needle))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if strings.Contains(folded, key) {
			seen[key] = struct{}{}
			found = append(found, needle)
		}
	}
	return found
}

func (s *Scorer) sentimentBoost(ctx context.Context, text string) float64 {
	if s.sentiment == nil || s.cfg.SentimentBoost <= 0 {
		return 0
	}
	polarity, ok := s.sentiment.Polarity(ctx, text)
	if !ok || math.IsNaN(polarity) {
		return 0
	}
	if polarity > s.cfg.SentimentMinPolarity {
		return s.cfg.SentimentBoost
	}
	return 0
}

func (s *Scorer) urgencyBoost(folded string) float64 {
	boost := 0.0
	for _, word := range s.cfg.UrgencyWords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" && strings.Contains(folded, word) {
			boost += s.cfg.UrgencyIncrement
		}
	}
	return math.Min(boost, s.cfg.UrgencyCap)
}

// engagementBoost grows with engagement but flattens out toward the cap.
func engagementBoost(w Weights, e *domain.Engagement) float64 {
	if e == nil || w.EngagementCap <= 0 {
		return 0
	}
	raw := float64(max(e.Amplifications, 0))*w.AmplificationWeight +
		float64(max(e.Approvals, 0))*w.ApprovalWeight
	if raw <= 0 || math.IsNaN(raw) {
		return 0
	}
	return w.EngagementCap * (1 - math.Exp(-raw/w.EngagementCap))
}

func audienceBoost(w Weights, a *domain.AuthorMetadata) float64 {
	if a == nil {
		return 0
	}
	switch {
	case w.AudienceLargeBoost > 0 && a.AudienceSize > w.AudienceLargeThreshold:
		return w.AudienceLargeBoost
	case w.AudienceMediumBoost > 0 && a.AudienceSize > w.AudienceMediumThreshold:
		return w.AudienceMediumBoost
	}
	return 0
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
