package ai

import (
	"fmt"
	"strings"

	"ai-companion/backend/internal/models"
)

// SystemPrompt describes the companion persona to the model
func SystemPrompt(s models.CompanionSettings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an AI companion with the following personality: %s. ", s.Name, s.Personality)
	fmt.Fprintf(&b, "Your interests include: %s. ", strings.Join(s.Interests, ", "))
	b.WriteString("Maintain this personality and knowledge of these interests throughout the conversation.")
	if desc := strings.TrimSpace(s.Description); desc != "" {
		b.WriteString(" Background: ")
		b.WriteString(desc)
	}
	return b.String()
}

// Temperature maps a companion's creativity onto the sampling temperature.
// nil means the provider default.
func Temperature(s models.CompanionSettings) *float64 {
	if s.Creativity == nil {
		return nil
	}
	t := *s.Creativity
	switch {
	case t < 0:
		t = 0
	case t > 1:
		t = 1
	}
	return &t
}

// BuildChatRequest turns a persona and the trailing history into a provider request.
// history must already be in chronological order and end with the user's turn.
func BuildChatRequest(s models.CompanionSettings, history []models.Message, maxTokens int) ChatRequest {
	msgs := make([]Message, 0, len(history))
	for _, m := range history {
		role := RoleUser
		if m.Role == models.RoleAssistant {
			role = RoleAssistant
		}
		msgs = append(msgs, Message{Role: role, Content: m.Content})
	}
	return ChatRequest{
		System:      SystemPrompt(s),
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: Temperature(s),
	}
}
