package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider calls any OpenAI compatible chat completions endpoint
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai: openai provider needs an api key")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// retries are owned by the circuit breaker wrapper
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAIProvider{client: openai.NewClient(opts...), model: model}, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			messages = append(messages, openai.AssistantMessage(m.Content))
			continue
		}
		messages = append(messages, openai.UserMessage(m.Content))
	}

	params := openai.ChatCompletionNewParams{
		Messages: openai.F(messages),
		Model:    openai.F(p.model),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.F(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.F(*req.Temperature)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: "openai", StatusCode: apiErr.StatusCode, Message: fmt.Sprintf("status %d", apiErr.StatusCode)}
		}
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
