package intent

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAIConfig configures an OpenAIParser.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIParser is the alternate Intent Parser, backed by the OpenAI
// client.
type OpenAIParser struct {
	client *openai.Client
	model  string
}

// NewOpenAIParser builds an OpenAIParser from cfg.
func NewOpenAIParser(cfg OpenAIConfig) (*OpenAIParser, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("intent: openai api key required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return &OpenAIParser{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Parse implements Parser.
func (p *OpenAIParser) Parse(ctx context.Context, req Request) (Intent, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(req.Catalog, req.ContextStr)},
			{Role: openai.ChatMessageRoleUser, Content: req.Utterance},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return Intent{}, fmt.Errorf("intent: openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Intent{}, fmt.Errorf("intent: openai returned no choices")
	}
	return decodeRawIntent(resp.Choices[0].Message.Content)
}
