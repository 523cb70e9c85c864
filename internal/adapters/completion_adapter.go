// Package adapters exposes genkit flows through the planner's collaborator
// interfaces.
package adapters

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/cache"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/llm"
)

// GenkitCompletionAdapter uses the completion flow to implement llm.Completer.
type GenkitCompletionAdapter struct {
	flow  *llm.CompletionFlow
	cache cache.Cache
}

// CompletionOption configures a GenkitCompletionAdapter.
type CompletionOption func(*GenkitCompletionAdapter)

// WithCompletionCache reuses answers for identical requests.
func WithCompletionCache(c cache.Cache) CompletionOption {
	return func(a *GenkitCompletionAdapter) {
		a.cache = c
	}
}

// NewGenkitCompletionAdapter creates a new adapter for the completion flow.
func NewGenkitCompletionAdapter(flow *llm.CompletionFlow, options ...CompletionOption) *GenkitCompletionAdapter {
	a := &GenkitCompletionAdapter{flow: flow}
	for _, option := range options {
		option(a)
	}
	return a
}

// Complete implements llm.Completer.
func (a *GenkitCompletionAdapter) Complete(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error) {
	return a.run(ctx, &llm.CompletionRequest{System: systemPrompt, Prompt: prompt, Temperature: temperature})
}

// Chat implements llm.Completer.
func (a *GenkitCompletionAdapter) Chat(ctx context.Context, messages []llm.Message, temperature float64) (string, error) {
	return a.run(ctx, &llm.CompletionRequest{Messages: messages, Temperature: temperature})
}

func (a *GenkitCompletionAdapter) run(ctx context.Context, req *llm.CompletionRequest) (string, error) {
	if a.flow == nil {
		return "", fmt.Errorf("%w: completion flow is not configured", llm.ErrServiceUnavailable)
	}

	key := ""
	if a.cache != nil {
		key = cacheKey(req)
		if cached, err := a.cache.Get(ctx, key); err == nil {
			if text, ok := cached.(string); ok {
				return text, nil
			}
		}
	}

	text, err := a.flow.Run(ctx, req)
	if err != nil {
		return "", fmt.Errorf("completion flow execution failed: %w", err)
	}
	if text == "" {
		return "", llm.ErrEmptyResponse
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, text); err != nil {
			log.Printf("Completion cache write failed (key: %s, error: %v)", key, err)
		}
	}
	return text, nil
}

// cacheKey hashes the whole request so different prompts never collide.
func cacheKey(req *llm.CompletionRequest) string {
	data, err := json.Marshal(req)
	if err != nil {
		log.Printf("Failed to marshal completion request for cache key: %v", err)
		return "completion:" + req.System + "|" + req.Prompt
	}
	sum := sha1.Sum(data)
	return "completion:" + hex.EncodeToString(sum[:])
}
