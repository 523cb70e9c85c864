package knowledge

import (
	"fmt"
	"sort"
	"testing"

	"pgregory.net/rapid"

	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// Without sentiment keywords, reranking keeps pure similarity order.
func TestProperty_RerankStableWithoutSentiment(t *testing.T) {
	words := []string{"temple", "market", "train", "museum", "park", "river", "station"}
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(rt, "n")
		snippets := make([]trip.KnowledgeSnippet, n)
		for i := range snippets {
			snippets[i] = trip.KnowledgeSnippet{
				ID:         fmt.Sprintf("s%d", i),
				Text:       rapid.SampledFrom(words).Draw(rt, "word") + " " + rapid.SampledFrom(words).Draw(rt, "word2"),
				Similarity: float64(rapid.IntRange(0, 100).Draw(rt, "sim")) / 100,
			}
		}
		sort.SliceStable(snippets, func(i, j int) bool { return snippets[i].Similarity > snippets[j].Similarity })
		want := make([]string, n)
		for i, s := range snippets {
			want[i] = s.ID
		}

		got := NewEngine(nil).Rerank(snippets)
		for i, s := range got {
			if s.SentimentScore != 0 {
				t.Fatalf("expected zero sentiment for %q", s.Text)
			}
			if s.ID != want[i] {
				t.Fatalf("position %d: expected %s, got %s", i, want[i], s.ID)
			}
		}
	})
}
