// Package knowledge retrieves and reranks travel snippets from the similarity index.
package knowledge

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/vectorindex"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// Filter escape hatches: results that miss the location or category filter
// are kept anyway at or above these similarities.
const (
	LocationOverrideSimilarity = 0.85
	CategoryOverrideSimilarity = 0.80
)

// Rerank blend weights.
const (
	SimilarityWeight = 0.7
	SentimentWeight  = 0.3
)

// Defaults.
const (
	DefaultTopK            = 3
	DefaultSimilarityFloor = 0.7
)

// Searcher is the part of the similarity index retrieval needs.
type Searcher interface {
	Search(ctx context.Context, query string, k int, floor float64) ([]vectorindex.Result, error)
}

// Query describes one retrieval.
type Query struct {
	Text         string
	Location     string
	ActivityType string
	Interests    []string
	TopK         int
}

// Engine is the knowledge retrieval engine.
type Engine struct {
	index     Searcher
	sentiment SentimentScorer
	floor     float64
	topK      int
}

// Option configures an Engine.
type Option func(*Engine)

// WithSentimentScorer replaces the keyword sentiment heuristic.
func WithSentimentScorer(s SentimentScorer) Option {
	return func(e *Engine) {
		e.sentiment = s
	}
}

// WithSimilarityFloor sets the minimum similarity passed to the index. 0 disables it.
func WithSimilarityFloor(floor float64) Option {
	return func(e *Engine) {
		e.floor = floor
	}
}

// WithDefaultTopK sets the result count used when a query does not set one.
func WithDefaultTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// NewEngine creates a retrieval engine over index.
func NewEngine(index Searcher, options ...Option) *Engine {
	e := &Engine{
		index:     index,
		sentiment: DefaultSentiment(),
		floor:     DefaultSimilarityFloor,
		topK:      DefaultTopK,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// ExpandQuery appends the location, activity type and up to three interests.
func ExpandQuery(q Query) string {
	parts := []string{q.Text}
	if q.Location != "" {
		parts = append(parts, "in "+q.Location)
	}
	if q.ActivityType != "" {
		parts = append(parts, "related to "+q.ActivityType)
	}
	if len(q.Interests) > 0 {
		parts = append(parts, "focusing on "+strings.Join(lo.Slice(q.Interests, 0, 3), ", "))
	}
	return strings.Join(parts, " ")
}

// Retrieve returns up to TopK reranked snippets. A missing, empty or failing
// index yields an empty result; only context cancellation is returned as an error.
func (e *Engine) Retrieve(ctx context.Context, q Query) ([]trip.KnowledgeSnippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k := q.TopK
	if k <= 0 {
		k = e.topK
	}
	if e.index == nil {
		return nil, nil
	}

	expanded := ExpandQuery(q)
	results, err := e.index.Search(ctx, expanded, k*2, e.floor)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Printf("Knowledge search failed, continuing without snippets (query: %q, error: %v)", expanded, err)
		return nil, nil
	}

	snippets := make([]trip.KnowledgeSnippet, 0, len(results))
	for _, r := range results {
		s := toSnippet(r)
		if !matchesLocation(s, q.Location) && s.Similarity < LocationOverrideSimilarity {
			continue
		}
		if !matchesCategory(s, q.ActivityType) && s.Similarity < CategoryOverrideSimilarity {
			continue
		}
		snippets = append(snippets, s)
	}

	snippets = e.Rerank(snippets)
	if len(snippets) > k {
		snippets = snippets[:k]
	}
	log.Printf("Knowledge retrieved (query: %q, candidates: %d, returned: %d)", expanded, len(results), len(snippets))
	return snippets, nil
}

// Rerank scores sentiment on each snippet and orders them by the blended
// key, keeping the incoming order on ties.
func (e *Engine) Rerank(snippets []trip.KnowledgeSnippet) []trip.KnowledgeSnippet {
	for i := range snippets {
		s := e.sentiment.Score(snippets[i].Text)
		snippets[i].SentimentScore = s
		snippets[i].Sentiment = SentimentLabel(s)
		snippets[i].Helpful = s >= 0
	}
	sort.SliceStable(snippets, func(i, j int) bool {
		return RankKey(snippets[i]) > RankKey(snippets[j])
	})
	return snippets
}

// RankKey is the blended ordering key of a scored snippet.
func RankKey(s trip.KnowledgeSnippet) float64 {
	return SimilarityWeight*s.Similarity + SentimentWeight*(s.SentimentScore+1)/2
}

func matchesLocation(s trip.KnowledgeSnippet, location string) bool {
	if location == "" {
		return true
	}
	loc := strings.ToLower(location)
	if strings.Contains(strings.ToLower(s.Destination), loc) {
		return true
	}
	return lo.ContainsBy(s.Locations, func(l string) bool {
		return strings.Contains(strings.ToLower(l), loc)
	})
}

func matchesCategory(s trip.KnowledgeSnippet, activity string) bool {
	if activity == "" || len(s.Categories) == 0 {
		return true
	}
	return lo.ContainsBy(s.Categories, func(c string) bool {
		return strings.EqualFold(c, activity)
	})
}

func toSnippet(r vectorindex.Result) trip.KnowledgeSnippet {
	meta := r.Metadata
	return trip.KnowledgeSnippet{
		ID:          r.ID,
		Text:        r.Text,
		SourceName:  metaString(meta, vectorindex.MetaSource),
		Destination: metaString(meta, vectorindex.MetaDestination),
		Locations:   metaStrings(meta, vectorindex.MetaLocations),
		Categories:  metaStrings(meta, vectorindex.MetaCategories),
		Metadata:    meta,
		Similarity:  r.Similarity,
		Distance:    r.Distance,
	}
}

func metaString(meta map[string]interface{}, key string) string {
	if v, ok := meta[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// metaStrings accepts []string from memory and []interface{} from decoded JSON.
func metaStrings(meta map[string]interface{}, key string) []string {
	switch v := meta[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// Summary renders the top three snippets as a bullet list.
func Summary(snippets []trip.KnowledgeSnippet) string {
	if len(snippets) == 0 {
		return "No relevant information found."
	}
	insights := make([]string, 0, 3)
	for _, s := range lo.Slice(snippets, 0, 3) {
		insights = append(insights, "• "+Truncate(s.Text, 200))
	}
	return strings.Join(insights, "\n\n")
}

// Truncate shortens text to n runes, adding "..." when it cut anything.
func Truncate(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + "..."
}

var tipIndicators = []string{"tip:", "recommendation:", "suggest", "should", "best time", "avoid", "make sure", "don't forget"}

// Tips extracts up to five practical sentences from the snippets.
func Tips(snippets []trip.KnowledgeSnippet) []string {
	var tips []string
	for _, s := range snippets {
		for _, sentence := range strings.Split(strings.ToLower(s.Text), ".") {
			if !lo.SomeBy(tipIndicators, func(ind string) bool { return strings.Contains(sentence, ind) }) {
				continue
			}
			tip := capitalize(strings.TrimSpace(sentence))
			if utf8.RuneCountInString(tip) > 20 {
				tips = append(tips, tip)
			}
		}
	}
	return lo.Slice(lo.Uniq(tips), 0, 5)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
