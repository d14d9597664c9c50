package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"go.aimuz.me/murmur/internal/types"
)

// openaiCompleter implements Completer for OpenAI and compatible APIs.
type openaiCompleter struct {
	cfg          completerConfig
	client       openai.Client
	isCompatible bool
}

func newOpenAICompleter(cfg completerConfig, compatible bool) *openaiCompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.apiKey),
		option.WithHTTPClient(cfg.http),
		option.WithMaxRetries(1),
	}
	if cfg.baseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.baseURL))
	}
	return &openaiCompleter{
		cfg:          cfg,
		client:       openai.NewClient(opts...),
		isCompatible: compatible,
	}
}

func (c *openaiCompleter) params(messages []Message) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	p := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.cfg.model),
		Messages: msgs,
	}
	// Compatible servers commonly only understand the legacy max_tokens field.
	if c.isCompatible {
		p.MaxTokens = openai.Int(int64(c.cfg.maxTokens))
	} else {
		p.MaxCompletionTokens = openai.Int(int64(c.cfg.maxTokens))
	}
	if c.cfg.temperature > 0 {
		p.Temperature = openai.Float(c.cfg.temperature)
	}
	return p
}

func (c *openaiCompleter) Complete(ctx context.Context, messages []Message) (string, types.Usage, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(messages))
	if err != nil {
		return "", types.Usage{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", types.Usage{}, fmt.Errorf("no choices: %w", ErrEmptyResponse)
	}

	usage := types.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return resp.Choices[0].Message.Content, usage, nil
}
