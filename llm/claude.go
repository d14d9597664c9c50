package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"go.aimuz.me/murmur/internal/types"
)

// claudeCompleter implements Completer for Claude API.
type claudeCompleter struct {
	cfg    completerConfig
	client anthropic.Client
}

func newClaudeCompleter(cfg completerConfig) *claudeCompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.apiKey),
		option.WithHTTPClient(cfg.http),
		option.WithMaxRetries(1),
	}
	if cfg.baseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.baseURL))
	}
	return &claudeCompleter{cfg: cfg, client: anthropic.NewClient(opts...)}
}

func (c *claudeCompleter) params(messages []Message) anthropic.MessageNewParams {
	system, rest := splitSystem(messages)

	msgs := make([]anthropic.MessageParam, 0, len(rest))
	for _, m := range rest {
		if m.Role == "assistant" {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}

	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.model),
		MaxTokens: int64(c.cfg.maxTokens), // Claude requires max_tokens
		Messages:  msgs,
	}
	if system != "" {
		p.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if c.cfg.temperature > 0 {
		p.Temperature = anthropic.Float(c.cfg.temperature)
	}
	return p
}

func (c *claudeCompleter) Complete(ctx context.Context, messages []Message) (string, types.Usage, error) {
	msg, err := c.client.Messages.New(ctx, c.params(messages))
	if err != nil {
		return "", types.Usage{}, fmt.Errorf("create message: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", types.Usage{}, fmt.Errorf("no content returned: %w", ErrEmptyResponse)
	}

	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	usage := types.Usage{
		PromptTokens:     in,
		CompletionTokens: out,
		TotalTokens:      in + out,
	}
	return sb.String(), usage, nil
}
