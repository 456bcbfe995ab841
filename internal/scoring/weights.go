package scoring

import (
	"strings"

	"TGEMonitor/internal/domain"
)

// Weights is the per-source weight table used by the scorer.
type Weights struct {
	Phrases             map[string]float64 `yaml:"phrases"`
	DefaultPhraseWeight float64            `yaml:"defaultPhraseWeight"`
	EntityWeight        float64            `yaml:"entityWeight"`

	AmplificationWeight float64 `yaml:"amplificationWeight"`
	ApprovalWeight      float64 `yaml:"approvalWeight"`
	EngagementCap       float64 `yaml:"engagementCap"`

	AudienceLargeThreshold  int64   `yaml:"audienceLargeThreshold"`
	AudienceLargeBoost      float64 `yaml:"audienceLargeBoost"`
	AudienceMediumThreshold int64   `yaml:"audienceMediumThreshold"`
	AudienceMediumBoost     float64 `yaml:"audienceMediumBoost"`
}

// PhraseWeight looks a matched phrase up case-insensitively.
func (w Weights) PhraseWeight(phrase string) float64 {
	if v, ok := w.Phrases[strings.ToLower(phrase)]; ok {
		return v
	}
	return w.DefaultPhraseWeight
}

// DefaultFeedWeights is the table for news feed items.
func DefaultFeedWeights() Weights {
	return Weights{
		Phrases: map[string]float64{
			"tge":                    0.4,
			"token generation event": 0.4,
			"token launch":           0.3,
			"airdrop":                0.25,
			"token sale":             0.2,
			"ico":                    0.2,
			"ido":                    0.2,
			"token listing":          0.15,
			"token distribution":     0.15,
		},
		DefaultPhraseWeight: 0.1,
		EntityWeight:        0.3,
	}
}

// DefaultSocialWeights is the table for social posts, which also carry
// engagement and audience signals.
func DefaultSocialWeights() Weights {
	return Weights{
		Phrases: map[string]float64{
			"tge":                    0.5,
			"token generation event": 0.5,
			"token launch":           0.4,
			"airdrop":                0.3,
			"token sale":             0.25,
			"ico":                    0.25,
			"ido":                    0.25,
			"token listing":          0.2,
			"token distribution":     0.2,
		},
		DefaultPhraseWeight:     0.1,
		EntityWeight:            0.4,
		AmplificationWeight:     0.001,
		ApprovalWeight:          0.0005,
		EngagementCap:           0.2,
		AudienceLargeThreshold:  100000,
		AudienceLargeBoost:      0.1,
		AudienceMediumThreshold: 10000,
		AudienceMediumBoost:     0.05,
	}
}

// Config holds the scorer's thresholds, boosts and per-source weights.
type Config struct {
	Threshold float64

	SentimentBoost       float64
	SentimentMinPolarity float64

	UrgencyWords     []string
	UrgencyIncrement float64
	UrgencyCap       float64

	Weights map[domain.SourceKind]Weights
}

// DefaultUrgencyWords are the words that suggest an imminent event.
var DefaultUrgencyWords = []string{
	"announce", "launch", "release", "coming", "soon", "date", "schedule", "tomorrow", "today",
}

// DefaultConfig returns the stock thresholds and weight tables.
func DefaultConfig() Config {
	return Config{
		Threshold:            0.3,
		SentimentBoost:       0.1,
		SentimentMinPolarity: 0.1,
		UrgencyWords:         append([]string(nil), DefaultUrgencyWords...),
		UrgencyIncrement:     0.05,
		UrgencyCap:           0.45,
		Weights: map[domain.SourceKind]Weights{
			domain.SourceFeed:   DefaultFeedWeights(),
			domain.SourceSocial: DefaultSocialWeights(),
		},
	}
}

func (c Config) weightsFor(kind domain.SourceKind) Weights {
	if w, ok := c.Weights[kind]; ok {
		return w
	}
	if kind == domain.SourceSocial {
		return DefaultSocialWeights()
	}
	return DefaultFeedWeights()
}
