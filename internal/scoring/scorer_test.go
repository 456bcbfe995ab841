package scoring

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TGEMonitor/internal/domain"
)

type fixedSentiment struct {
	value float64
	ok    bool
	calls int
}

func (f *fixedSentiment) Polarity(context.Context, string) (float64, bool) {
	f.calls++
	return f.value, f.ok
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func feedItem(text string) domain.NormalizedItem {
	ts := time.Now().UTC()
	return domain.NormalizedItem{ID: "feed:1", Kind: domain.SourceFeed, Text: text, Timestamp: &ts}
}

func TestScoreEndToEndScenario(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), nil, quietLogger())
	a := s.Score(context.Background(), feedItem("Acme launches TGE tomorrow"), []string{"Acme", "Other"}, []string{"TGE", "airdrop"})

	assert.Equal(t, []string{"Acme"}, a.MentionedEntities)
	assert.Equal(t, []string{"TGE"}, a.MatchedPhrases)
	assert.Greater(t, a.RelevanceScore, 0.3)
	assert.True(t, a.IsRelevant)
	assert.False(t, a.IsDuplicate)
	assert.Equal(t, domain.SourceFeed, a.SourceKind)
	// 0.4 phrase + 0.3 entity + launch + tomorrow
	assert.InDelta(t, 0.8, a.RelevanceScore, 1e-9)
}

func TestScoreMatchingIsCaseInsensitiveSubstring(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), nil, quietLogger())
	a := s.Score(context.Background(), feedItem("the CALDERAX token generation event"), []string{"caldera"}, []string{"Token Generation Event"})

	assert.Equal(t, []string{"caldera"}, a.MentionedEntities)
	assert.Equal(t, []string{"Token Generation Event"}, a.MatchedPhrases)
}

func TestScoreEntityOnlyIsNeverRelevant(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Threshold = 0
	s := New(cfg, &fixedSentiment{value: 1, ok: true}, quietLogger())
	a := s.Score(context.Background(), feedItem("Acme Acme announce launch release today"), []string{"Acme"}, []string{"TGE"})

	assert.NotEmpty(t, a.MentionedEntities)
	assert.Empty(t, a.MatchedPhrases)
	assert.Greater(t, a.RelevanceScore, 0.3)
	assert.False(t, a.IsRelevant)
}

func TestScorePhraseOnlyIsNeverRelevant(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), nil, quietLogger())
	a := s.Score(context.Background(), feedItem("TGE airdrop token launch ICO IDO"), []string{"Acme"}, []string{"TGE", "airdrop", "token launch", "ICO", "IDO"})

	assert.Empty(t, a.MentionedEntities)
	assert.Equal(t, 1.0, a.RelevanceScore)
	assert.False(t, a.IsRelevant)
}

func TestScoreBelowThresholdIsNotRelevant(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.UrgencyWords = nil
	cfg.Weights[domain.SourceFeed] = Weights{DefaultPhraseWeight: 0.1, EntityWeight: 0.1}
	s := New(cfg, nil, quietLogger())
	a := s.Score(context.Background(), feedItem("Acme airdrop"), []string{"Acme"}, []string{"airdrop"})

	assert.InDelta(t, 0.2, a.RelevanceScore, 1e-9)
	assert.False(t, a.IsRelevant)
}

func TestScoreIsBoundedUnderAdversarialEngagement(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig(), &fixedSentiment{value: 1, ok: true}, quietLogger())
	item := domain.NormalizedItem{
		ID:         "social:1",
		Kind:       domain.SourceSocial,
		Text:       "Acme Corn Fabric TGE token generation event airdrop token launch announce today soon",
		Engagement: &domain.Engagement{Amplifications: math.MaxInt64, Approvals: math.MaxInt64},
		Author:     &domain.AuthorMetadata{AudienceSize: math.MaxInt64},
	}
	a := s.Score(context.Background(), item, []string{"Acme", "Corn", "Fabric"}, []string{"TGE", "token generation event", "airdrop", "token launch"})
	assert.GreaterOrEqual(t, a.RelevanceScore, 0.0)
	assert.LessOrEqual(t, a.RelevanceScore, 1.0)

	negative := domain.NormalizedItem{
		ID:         "social:2",
		Kind:       domain.SourceSocial,
		Text:       "nothing here",
		Engagement: &domain.Engagement{Amplifications: -5, Approvals: math.MinInt64},
	}
	b := s.Score(context.Background(), negative, nil, nil)
	assert.GreaterOrEqual(t, b.RelevanceScore, 0.0)
	assert.LessOrEqual(t, b.RelevanceScore, 1.0)
}

func TestEngagementBoostDiminishesAndCaps(t *testing.T) {
	t.Parallel()

	w := DefaultSocialWeights()
	small := engagementBoost(w, &domain.Engagement{Amplifications: 10})
	large := engagementBoost(w, &domain.Engagement{Amplifications: 1000})
	huge := engagementBoost(w, &domain.Engagement{Amplifications: 1_000_000_000})

	assert.Greater(t, small, 0.0)
	assert.Greater(t, large, small)
	assert.LessOrEqual(t, huge, w.EngagementCap)
	assert.Zero(t, engagementBoost(DefaultFeedWeights(), &domain.Engagement{Amplifications: 1000}))
}

func TestAudienceBoostTiers(t *testing.T) {
	t.Parallel()

	w := DefaultSocialWeights()
	assert.Zero(t, audienceBoost(w, &domain.AuthorMetadata{AudienceSize: 10000}))
	assert.Equal(t, 0.05, audienceBoost(w, &domain.AuthorMetadata{AudienceSize: 10001}))
	assert.Equal(t, 0.05, audienceBoost(w, &domain.AuthorMetadata{AudienceSize: 100000}))
	assert.Equal(t, 0.1, audienceBoost(w, &domain.AuthorMetadata{AudienceSize: 100001}))
	assert.Zero(t, audienceBoost(w, nil))
}

func TestUrgencyBoostCountsDistinctWordsAndCaps(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	s := New(cfg, nil, quietLogger())
	assert.InDelta(t, 0.05, s.urgencyBoost("launch launch launch"), 1e-9)
	assert.InDelta(t, cfg.UrgencyCap, s.urgencyBoost("announce launch release coming soon date schedule tomorrow today"), 1e-9)

	cfg.UrgencyCap = 0.1
	capped := New(cfg, nil, quietLogger())
	assert.InDelta(t, 0.1, capped.urgencyBoost("announce launch release coming soon"), 1e-9)
}

func TestSentimentFailureMeansNoBoost(t *testing.T) {
	t.Parallel()

	failing := &fixedSentiment{ok: false}
	positive := &fixedSentiment{value: 0.8, ok: true}

	text := feedItem("Acme TGE")
	without := New(DefaultConfig(), failing, quietLogger()).Score(context.Background(), text, []string{"Acme"}, []string{"TGE"})
	with := New(DefaultConfig(), positive, quietLogger()).Score(context.Background(), text, []string{"Acme"}, []string{"TGE"})

	require.Equal(t, 1, failing.calls)
	assert.InDelta(t, 0.7, without.RelevanceScore, 1e-9)
	assert.InDelta(t, 0.8, with.RelevanceScore, 1e-9)
}
