package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiCompleter uses the Gemini generative API.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGeminiCompleter creates a Gemini client.
func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiCompleter{client: client, model: orDefault(model, DefaultGeminiModel)}, nil
}

func (c *GeminiCompleter) newModel(systemPrompt string, temperature float64) *genai.GenerativeModel {
	m := c.client.GenerativeModel(c.model)
	m.SetTemperature(float32(temperature))
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	return m
}

func (c *GeminiCompleter) Complete(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error) {
	resp, err := c.newModel(systemPrompt, temperature).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", ErrServiceUnavailable, err)
	}
	return responseText(resp)
}

// Chat replays all but the last message as history and sends the last one.
// System messages become the system instruction.
func (c *GeminiCompleter) Chat(ctx context.Context, messages []Message, temperature float64) (string, error) {
	var system []string
	var turns []Message
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 {
		return "", fmt.Errorf("chat needs at least one non-system message")
	}

	cs := c.newModel(strings.Join(system, "\n\n"), temperature).StartChat()
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	resp, err := cs.SendMessage(ctx, genai.Text(turns[len(turns)-1].Content))
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", ErrServiceUnavailable, err)
	}
	return responseText(resp)
}

// Healthy fetches the model info.
func (c *GeminiCompleter) Healthy(ctx context.Context) error {
	if _, err := c.client.GenerativeModel(c.model).Info(ctx); err != nil {
		return fmt.Errorf("%w: gemini: %v", ErrServiceUnavailable, err)
	}
	return nil
}

// Close releases the client.
func (c *GeminiCompleter) Close() error {
	return c.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return checkText(b.String())
}
