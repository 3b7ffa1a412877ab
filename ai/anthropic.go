package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel  = "claude-3-7-sonnet-20250219"
	defaultAnthropicTokens = 1024
)

// AnthropicProvider calls the Anthropic Messages API
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

func NewAnthropicProvider(cfg ProviderConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai: anthropic provider needs an api key")
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
		model = defaultAnthropicModel
	}

	return &AnthropicProvider{client: anthropic.NewClient(opts...), model: model}, nil
}

func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	turns := anthropicTurns(req.Messages)
	if len(turns) == 0 {
		return "", errors.New("anthropic: conversation has no user turn")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicTokens
	}

	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(t.Content)
		if t.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(block))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Message: anthropicErrorType(apiErr)}
		}
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(text.String())
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// anthropicErrorType reads error.type from the error envelope, e.g. rate_limit_error
func anthropicErrorType(apiErr *anthropic.Error) string {
	var envelope struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(apiErr.RawJSON()), &envelope) == nil && envelope.Error.Type != "" {
		return envelope.Error.Type
	}
	return fmt.Sprintf("status %d", apiErr.StatusCode)
}

type anthropicTurn struct {
	Role    string
	Content string
}

// anthropicTurns drops leading assistant turns and folds consecutive
// turns with the same role, since the API requires alternation
// starting with the user.
func anthropicTurns(msgs []Message) []anthropicTurn {
	out := make([]anthropicTurn, 0, len(msgs))
	for _, m := range msgs {
		role := RoleUser
		if m.Role == RoleAssistant {
			role = RoleAssistant
		}
		if len(out) == 0 && role != RoleUser {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, anthropicTurn{Role: role, Content: m.Content})
	}
	return out
}
