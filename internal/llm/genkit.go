package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

// CompletionFlowName is the name of the genkit flow registered by DefineCompletionFlow.
const CompletionFlowName = "tripCompletionFlow"

// CompletionRequest is the input of the completion flow.
type CompletionRequest struct {
	System      string    `json:"system,omitempty"`
	Prompt      string    `json:"prompt,omitempty"`
	Messages    []Message `json:"messages,omitempty"`
	Temperature float64   `json:"temperature"`
}

// CompletionFlow is the genkit flow type used by the adapter.
type CompletionFlow = core.Flow[*CompletionRequest, string, struct{}]

// InitGenkit initialises genkit with the Google AI plugin and a default model.
func InitGenkit(ctx context.Context, apiKey, model string) (*genkit.Genkit, error) {
	g, err := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: apiKey}),
		genkit.WithDefaultModel("googleai/"+orDefault(model, DefaultGeminiModel)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genkit: %w", err)
	}
	return g, nil
}

// DefineCompletionFlow registers the completion flow. Chat histories are
// flattened into a single prompt with role prefixes.
func DefineCompletionFlow(g *genkit.Genkit) *CompletionFlow {
	return genkit.DefineFlow(g, CompletionFlowName,
		func(ctx context.Context, req *CompletionRequest) (string, error) {
			if req == nil {
				return "", fmt.Errorf("nil completion request")
			}
			system, prompt := req.System, req.Prompt
			if len(req.Messages) > 0 {
				system, prompt = FlattenMessages(req.Messages)
			}

			opts := []ai.GenerateOption{
				ai.WithPromptFn(literal(prompt)),
				ai.WithConfig(&ai.GenerationCommonConfig{Temperature: req.Temperature}),
			}
			if system != "" {
				opts = append(opts, ai.WithSystemFn(literal(system)))
			}
			resp, err := genkit.Generate(ctx, g, opts...)
			if err != nil {
				return "", fmt.Errorf("%w: genkit: %v", ErrServiceUnavailable, err)
			}
			return checkText(resp.Text())
		})
}

// literal returns text unchanged; ai.WithPrompt would treat it as a format string.
func literal(text string) ai.PromptFn {
	return func(context.Context, any) (string, error) { return text, nil }
}

// FlattenMessages joins system messages into a system prompt and renders
// the remaining turns as "role: content" lines.
func FlattenMessages(messages []Message) (system, prompt string) {
	var sys, turns []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		turns = append(turns, m.Role+": "+m.Content)
	}
	return strings.Join(sys, "\n\n"), strings.Join(turns, "\n")
}
