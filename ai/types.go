// Package ai talks to hosted language-model completion APIs.
package ai

import (
	"context"
	"errors"
	"net/http"
)

// Chat roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a provider answers without any text
var ErrEmptyResponse = errors.New("ai: provider returned an empty response")

// Message is one conversation turn sent to a provider
type Message struct {
	Role    string
	Content string
}

// ChatRequest is a system prompt plus the trailing conversation
type ChatRequest struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

// Provider produces the assistant's next turn
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// ProviderConfig is what a factory needs to build a Provider
type ProviderConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// StatusError reports a non-2xx answer from a provider
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return e.Provider + ": unexpected status " + http.StatusText(e.StatusCode)
	}
	return e.Provider + ": " + e.Message
}
