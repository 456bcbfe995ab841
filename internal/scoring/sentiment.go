package scoring

import (
	"context"
	"strings"
	"unicode"

	"github.com/pemistahl/lingua-go"

	"TGEMonitor/internal/ports"
)

var positiveWords = map[string]struct{}{
	"amazing": {}, "announce": {}, "announced": {}, "awesome": {}, "best": {}, "big": {},
	"bullish": {}, "celebrate": {}, "congrats": {}, "congratulations": {}, "excited": {},
	"exciting": {}, "exclusive": {}, "free": {}, "good": {}, "great": {}, "growth": {},
	"happy": {}, "huge": {}, "incredible": {}, "launch": {}, "live": {}, "love": {},
	"milestone": {}, "new": {}, "opportunity": {}, "partnership": {}, "proud": {},
	"reward": {}, "rewards": {}, "success": {}, "successful": {}, "thrilled": {},
	"top": {}, "welcome": {}, "win": {},
}

var negativeWords = map[string]struct{}{
	"bad": {}, "bearish": {}, "cancel": {}, "cancelled": {}, "concern": {}, "crash": {},
	"delay": {}, "delayed": {}, "drop": {}, "exploit": {}, "fail": {}, "failed": {},
	"fake": {}, "fraud": {}, "hack": {}, "hacked": {}, "lawsuit": {}, "loss": {},
	"postpone": {}, "postponed": {}, "risk": {}, "rug": {}, "scam": {}, "sell": {},
	"terrible": {}, "warning": {}, "worst": {},
}

// Lexicon estimates polarity by counting positive and negative words.
// The result lies in [-1, 1]. When a language detector is configured,
// text detected as non-English yields no estimate.
type Lexicon struct {
	detector lingua.LanguageDetector
}

var _ ports.SentimentEstimator = (*Lexicon)(nil)

// NewLexicon returns a lexicon estimator without a language gate.
func NewLexicon() *Lexicon {
	return &Lexicon{}
}

// NewEnglishLexicon gates the lexicon on lingua language detection.
func NewEnglishLexicon() *Lexicon {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.English, lingua.Spanish, lingua.French, lingua.German,
			lingua.Portuguese, lingua.Russian, lingua.Turkish, lingua.Chinese,
			lingua.Japanese, lingua.Korean, lingua.Vietnamese, lingua.Indonesian,
		).
		Build()
	return &Lexicon{detector: detector}
}

// Polarity implements ports.SentimentEstimator.
func (l *Lexicon) Polarity(_ context.Context, text string) (float64, bool) {
	if strings.TrimSpace(text) == "" {
		return 0, false
	}
	if l.detector != nil {
		if lang, ok := l.detector.DetectLanguageOf(text); ok && lang != lingua.English {
			return 0, false
		}
	}

	var pos, neg int
	for _, token := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if _, ok := positiveWords[token]; ok {
			pos++
		}
		if _, ok := negativeWords[token]; ok {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0, true
	}
	return float64(pos-neg) / float64(pos+neg), true
}

// FirstOf tries each estimator in order and returns the first estimate.
type FirstOf []ports.SentimentEstimator

var _ ports.SentimentEstimator = FirstOf(nil)

// Polarity implements ports.SentimentEstimator.
func (f FirstOf) Polarity(ctx context.Context, text string) (float64, bool) {
	for _, est := range f {
		if est == nil {
			continue
		}
		if v, ok := est.Polarity(ctx, text); ok {
			return v, true
		}
	}
	return 0, false
}
