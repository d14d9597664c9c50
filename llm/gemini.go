package llm

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"go.aimuz.me/murmur/internal/types"
)

// geminiCompleter implements Completer for Gemini API.
type geminiCompleter struct {
	cfg completerConfig

	once   sync.Once
	client *genai.Client
	err    error
}

func (c *geminiCompleter) getClient(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		c.client, c.err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     c.cfg.apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: c.cfg.http,
			HTTPOptions: genai.HTTPOptions{
				BaseURL: c.cfg.baseURL,
			},
		})
	})
	return c.client, c.err
}

// buildRequest converts messages into Gemini contents and generation config.
func (c *geminiCompleter) buildRequest(messages []Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	system, rest := splitSystem(messages)

	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(c.cfg.maxTokens),
	}
	if c.cfg.temperature > 0 {
		config.Temperature = genai.Ptr(float32(c.cfg.temperature))
	}
	if c.cfg.disableThinking {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)}
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return contents, config
}

func (c *geminiCompleter) Complete(ctx context.Context, messages []Message) (string, types.Usage, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return "", types.Usage{}, fmt.Errorf("create gemini client: %w", err)
	}

	contents, config := c.buildRequest(messages)
	resp, err := client.Models.GenerateContent(ctx, c.cfg.model, contents, config)
	if err != nil {
		return "", types.Usage{}, fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", types.Usage{}, fmt.Errorf("no candidates returned: %w", ErrEmptyResponse)
	}
	return text, geminiToUsage(resp.UsageMetadata), nil
}

// geminiToUsage converts Gemini usage metadata to types.Usage.
func geminiToUsage(u *genai.GenerateContentResponseUsageMetadata) types.Usage {
	if u == nil {
		return types.Usage{}
	}
	return types.Usage{
		PromptTokens:     int(u.PromptTokenCount),
		CompletionTokens: int(u.CandidatesTokenCount),
		TotalTokens:      int(u.TotalTokenCount),
	}
}
