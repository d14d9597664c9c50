// Package llm provides chat completion clients for text formatting.
package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.aimuz.me/murmur/internal/types"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

const defaultTimeout = 30 * time.Second

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options configures LLM completion behavior.
type Options struct {
	MaxTokens       int
	Temperature     float64
	DisableThinking bool // For Gemini: set thinkingBudget to 0
	HTTPClient      *http.Client
}

// Completer performs chat completions.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, types.Usage, error)
}

// completerConfig holds all parameters needed by completers.
type completerConfig struct {
	http            *http.Client
	apiKey          string
	baseURL         string
	model           string
	maxTokens       int
	temperature     float64
	disableThinking bool
}

// NewCompleter creates a Completer for the given provider type.
func NewCompleter(apiType, apiKey, baseURL, model string, opts Options) Completer {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = types.DefaultMaxTokens
	}

	cfg := completerConfig{
		http:            httpClient,
		apiKey:          apiKey,
		baseURL:         baseURL,
		model:           model,
		maxTokens:       maxTokens,
		temperature:     opts.Temperature,
		disableThinking: opts.DisableThinking,
	}

	switch apiType {
	case "gemini":
		return &geminiCompleter{cfg: cfg}
	case "claude":
		return newClaudeCompleter(cfg)
	case "openai", "openai-compatible":
		return newOpenAICompleter(cfg, apiType == "openai-compatible")
	default:
		// Default to OpenAI format
		return newOpenAICompleter(cfg, false)
	}
}

// splitSystem separates system messages from the conversation.
func splitSystem(messages []Message) (system string, rest []Message) {
	for _, msg := range messages {
		if msg.Role == "system" {
			if system != "" {
				system += "\n"
			}
			system += msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}
