package knowledge

import (
	"math"
	"strings"
)

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// SentimentScorer scores text in [-1, 1].
type SentimentScorer interface {
	Score(text string) float64
}

// KeywordSentiment counts which positive and negative keywords appear in
// the text. Each keyword counts once regardless of repetitions.
type KeywordSentiment struct {
	Positive []string
	Negative []string
}

// DefaultSentiment returns the built-in travel review keyword lists.
func DefaultSentiment() KeywordSentiment {
	return KeywordSentiment{
		Positive: []string{"amazing", "excellent", "beautiful", "wonderful", "great", "fantastic", "perfect", "love", "recommend", "best"},
		Negative: []string{"terrible", "awful", "bad", "worst", "avoid", "disappointing", "crowded", "expensive", "overrated", "waste"},
	}
}

// Score implements SentimentScorer. Texts without keywords score 0.
func (k KeywordSentiment) Score(text string) float64 {
	lower := strings.ToLower(text)
	pos, neg := 0, 0
	for _, kw := range k.Positive {
		if strings.Contains(lower, kw) {
			pos++
		}
	}
	for _, kw := range k.Negative {
		if strings.Contains(lower, kw) {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	s := float64(pos-neg) / float64(pos+neg)
	return math.Round(s*100) / 100
}

// SentimentLabel maps a score to positive, negative or neutral.
func SentimentLabel(score float64) string {
	switch {
	case score > 0.3:
		return SentimentPositive
	case score < -0.3:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
