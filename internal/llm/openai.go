package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Ollama defaults for the OpenAI-compatible endpoint.
const (
	DefaultOllamaURL   = "http://localhost:11434/v1"
	DefaultOllamaModel = "llama2"
)

// OpenAICompleter talks to any OpenAI-compatible chat completions API,
// including Ollama.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates a completer. An empty baseURL uses the public OpenAI API.
func NewOpenAICompleter(apiKey, baseURL, model string) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompleter{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error) {
	var messages []Message
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt})
	return c.Chat(ctx, messages, temperature)
}

func (c *OpenAICompleter) Chat(ctx context.Context, messages []Message, temperature float64) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: float32(temperature),
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return checkText(resp.Choices[0].Message.Content)
}

// Healthy lists models as a reachability probe.
func (c *OpenAICompleter) Healthy(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// classify marks transport failures and server-side errors as unavailability.
// Client errors (bad request, auth) are returned as they are.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode < 500 {
		return fmt.Errorf("openai request rejected: %w", err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode < 500 && reqErr.HTTPStatusCode != 0 {
		return fmt.Errorf("openai request rejected: %w", err)
	}
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}
