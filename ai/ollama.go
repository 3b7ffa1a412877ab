package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaProvider talks to a local Ollama daemon
type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaProvider(cfg ProviderConfig) *OllamaProvider {
	p := &OllamaProvider{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Model:   cfg.Model,
		Client:  cfg.HTTPClient,
	}
	if p.BaseURL == "" {
		p.BaseURL = "http://localhost:11434"
	}
	if p.Model == "" {
		p.Model = "llama3:latest"
	}
	if p.Client == nil {
		p.Client = &http.Client{Timeout: 90 * time.Second}
	}
	return p
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaChatReq struct {
	Model    string         `json:"model"`
	Messages []ollamaMsg    `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Error   string    `json:"error,omitempty"`
}

func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	msgs := make([]ollamaMsg, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, ollamaMsg{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, ollamaMsg{Role: m.Role, Content: m.Content})
	}

	body := ollamaChatReq{Model: p.Model, Messages: msgs}
	if req.Temperature != nil || req.MaxTokens > 0 {
		body.Options = &ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}

	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/chat", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()

	var out ollamaChatResp
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Provider: "ollama", StatusCode: resp.StatusCode, Message: out.Error}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("ollama: decode response: %w", decodeErr)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}

	content := strings.TrimSpace(out.Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
