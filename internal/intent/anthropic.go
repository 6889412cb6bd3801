package intent

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// defaultAnthropicModel is used when Config.Model is empty.
const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicConfig configures an AnthropicParser.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
}

// AnthropicParser is the primary Intent Parser, backed by the Anthropic
// client.
type AnthropicParser struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicParser builds an AnthropicParser from cfg.
func NewAnthropicParser(cfg AnthropicConfig) (*AnthropicParser, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("intent: anthropic api key required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicParser{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Parse implements Parser.
func (p *AnthropicParser) Parse(ctx context.Context, req Request) (Intent, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(req.Catalog, req.ContextStr)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Utterance)),
		},
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Intent{}, fmt.Errorf("intent: anthropic completion: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Text != "" {
			text += block.Text
		}
	}
	if text == "" {
		return Intent{}, fmt.Errorf("intent: anthropic returned no text content")
	}
	return decodeRawIntent(text)
}
