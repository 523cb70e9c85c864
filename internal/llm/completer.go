// Package llm is the text-completion contract used by itinerary synthesis,
// with OpenAI-compatible (Ollama), Gemini and genkit implementations.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 120 * time.Second

// DefaultTemperature is the sampling temperature used for itineraries.
const DefaultTemperature = 0.7

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrServiceUnavailable means the completion service could not be reached
	// or did not answer in time. Callers treat it as recoverable.
	ErrServiceUnavailable = errors.New("completion service unavailable")
	// ErrEmptyResponse means the service answered with no text.
	ErrEmptyResponse = errors.New("completion service returned an empty response")
)

// Message is one turn of a chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is a request/response text-completion service.
type Completer interface {
	Complete(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error)
	Chat(ctx context.Context, messages []Message, temperature float64) (string, error)
}

// HealthChecker is implemented by completers that can probe their backend.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// Settings selects and configures a provider.
type Settings struct {
	Provider string
	BaseURL  string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// New builds a Completer for the configured provider, wrapped with the
// request timeout. The genkit provider is wired by the caller through
// internal/adapters since it needs a flow.
func New(ctx context.Context, s Settings) (Completer, error) {
	var c Completer
	switch strings.ToLower(s.Provider) {
	case "", "ollama":
		c = NewOpenAICompleter(s.APIKey, orDefault(s.BaseURL, DefaultOllamaURL), orDefault(s.Model, DefaultOllamaModel))
	case "openai":
		c = NewOpenAICompleter(s.APIKey, s.BaseURL, orDefault(s.Model, "gpt-4o-mini"))
	case "gemini":
		g, err := NewGeminiCompleter(ctx, s.APIKey, s.Model)
		if err != nil {
			return nil, err
		}
		c = g
	case "none":
		c = Unavailable{}
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", s.Provider)
	}
	return WithTimeout(c, s.Timeout), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Unavailable is a Completer that always reports ErrServiceUnavailable.
type Unavailable struct{}

func (Unavailable) Complete(context.Context, string, string, float64) (string, error) {
	return "", ErrServiceUnavailable
}

func (Unavailable) Chat(context.Context, []Message, float64) (string, error) {
	return "", ErrServiceUnavailable
}

func (Unavailable) Healthy(context.Context) error { return ErrServiceUnavailable }

type timeoutCompleter struct {
	next    Completer
	timeout time.Duration
}

// WithTimeout bounds every call on c. An expired deadline is reported as
// ErrServiceUnavailable. Non-positive timeouts use DefaultTimeout.
func WithTimeout(c Completer, timeout time.Duration) Completer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &timeoutCompleter{next: c, timeout: timeout}
}

func (t *timeoutCompleter) Complete(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.next.Complete(ctx, prompt, systemPrompt, temperature)
	return out, t.mapErr(ctx, err)
}

func (t *timeoutCompleter) Chat(ctx context.Context, messages []Message, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.next.Chat(ctx, messages, temperature)
	return out, t.mapErr(ctx, err)
}

func (t *timeoutCompleter) Healthy(ctx context.Context) error {
	if h, ok := t.next.(HealthChecker); ok {
		return h.Healthy(ctx)
	}
	return nil
}

// Close releases the wrapped completer's client, if it holds one.
func (t *timeoutCompleter) Close() error {
	if c, ok := t.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *timeoutCompleter) mapErr(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrServiceUnavailable) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: no response within %s", ErrServiceUnavailable, t.timeout)
	}
	return err
}

func checkText(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
