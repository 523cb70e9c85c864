package adapters

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/firebase/genkit/go/genkit"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/cache"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/knowledge"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/llm"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

func newGenkit(t *testing.T) *genkit.Genkit {
	t.Helper()
	g, err := genkit.Init(context.Background())
	if err != nil {
		t.Fatalf("genkit.Init failed: %v", err)
	}
	return g
}

func TestGenkitCompletionAdapter(t *testing.T) {
	g := newGenkit(t)
	var calls atomic.Int32
	flow := genkit.DefineFlow(g, "testCompletion", func(ctx context.Context, req *llm.CompletionRequest) (string, error) {
		calls.Add(1)
		if len(req.Messages) > 0 {
			return "chat: " + req.Messages[len(req.Messages)-1].Content, nil
		}
		if req.Prompt == "empty" {
			return "", nil
		}
		return req.System + "|" + req.Prompt, nil
	})

	a := NewGenkitCompletionAdapter(flow, WithCompletionCache(cache.NewTTLCache(time.Minute, time.Minute)))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		text, err := a.Complete(ctx, "plan", "system", 0.7)
		if err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
		if text != "system|plan" {
			t.Errorf("unexpected text %q", text)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected the second call to hit the cache, got %d flow runs", calls.Load())
	}

	text, err := a.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, 0.2)
	if err != nil || text != "chat: hi" {
		t.Errorf("unexpected chat result %q %v", text, err)
	}

	if _, err := a.Complete(ctx, "empty", "", 0.7); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Errorf("expected empty response error, got %v", err)
	}
}

func TestGenkitCompletionAdapter_NoFlow(t *testing.T) {
	_, err := NewGenkitCompletionAdapter(nil).Complete(context.Background(), "p", "s", 0.7)
	if !errors.Is(err, llm.ErrServiceUnavailable) {
		t.Errorf("expected service unavailable, got %v", err)
	}
}

type staticSource struct {
	got knowledge.Query
}

func (s *staticSource) Retrieve(ctx context.Context, q knowledge.Query) ([]trip.KnowledgeSnippet, error) {
	s.got = q
	return []trip.KnowledgeSnippet{{ID: "kyoto-1", Text: "Visit Fushimi Inari early."}}, nil
}

func TestGenkitRetrieverAdapter(t *testing.T) {
	g := newGenkit(t)
	source := &staticSource{}
	a := NewGenkitRetrieverAdapter(DefineRetrievalFlow(g, source))

	snippets, err := a.Retrieve(context.Background(), knowledge.Query{Text: "Travel to kyoto", Location: "kyoto", TopK: 5})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(snippets) != 1 || snippets[0].ID != "kyoto-1" {
		t.Errorf("unexpected snippets %+v", snippets)
	}
	if source.got.Location != "kyoto" || source.got.TopK != 5 {
		t.Errorf("query not passed through: %+v", source.got)
	}

	if snippets, err := NewGenkitRetrieverAdapter(nil).Retrieve(context.Background(), knowledge.Query{}); err != nil || snippets != nil {
		t.Errorf("a missing flow should retrieve nothing, got %v %v", snippets, err)
	}
}
