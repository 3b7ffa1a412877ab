package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ai-companion/backend/ai"
	"ai-companion/backend/internal/models"
	"ai-companion/backend/internal/store"
	"ai-companion/backend/pkg/logger"
	"ai-companion/backend/shared/observability"
)

const (
	defaultContextWindow = 6
	maxMessageLength     = 8000
)

// Publisher fans stored messages out to live connections
type Publisher interface {
	Publish(userID uint, msg models.Message)
}

// ChatConfig tunes how much history goes to the provider
type ChatConfig struct {
	ContextWindow int
	MaxTokens     int
}

// ChatService stores the conversation and asks the provider for replies
type ChatService struct {
	store     store.Store
	prefs     *PreferenceService
	provider  ai.Provider
	publisher Publisher
	metrics   *observability.ChatMetrics
	cfg       ChatConfig
	log       *logger.Logger
	now       func() time.Time
}

// NewChatService wires the chat flow. publisher and metrics may be nil.
func NewChatService(
	s store.Store,
	prefs *PreferenceService,
	provider ai.Provider,
	publisher Publisher,
	metrics *observability.ChatMetrics,
	cfg ChatConfig,
	log *logger.Logger,
) *ChatService {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = defaultContextWindow
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &ChatService{
		store:     s,
		prefs:     prefs,
		provider:  provider,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// History returns every message the user has exchanged, oldest first
func (s *ChatService) History(ctx context.Context, userID uint) ([]models.Message, error) {
	return s.store.ListMessages(ctx, userID)
}

// Send stores the user's message, asks the provider for a reply and stores
// that too. Nothing is stored when the user has no companion configured.
// A provider failure leaves the user's message in place.
func (s *ChatService) Send(ctx context.Context, userID uint, content string) (*models.Exchange, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, &ValidationError{Fields: map[string]string{"content": "must be at most 8000 characters"}}
	}

	companion, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if companion == nil {
		return nil, ErrCompanionNotConfigured
	}

	userMsg := &models.Message{
		UserID:      userID,
		CompanionID: companion.ID,
		Role:        models.RoleUser,
		Content:     content,
		Timestamp:   s.now(),
	}
	if err := s.persist(ctx, userMsg); err != nil {
		return nil, err
	}

	history, err := s.store.RecentMessages(ctx, userID, s.cfg.ContextWindow)
	if err != nil {
		return nil, err
	}

	req := ai.BuildChatRequest(companion.Persona(), history, s.cfg.MaxTokens)
	reply, err := s.provider.Chat(ctx, req)
	if err != nil {
		s.log.Warn("Completion failed", "user_id", userID, "error", err.Error())
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	assistantMsg := &models.Message{
		UserID:      userID,
		CompanionID: companion.ID,
		Role:        models.RoleAssistant,
		Content:     reply,
		Timestamp:   s.now(),
	}
	// stored even if the caller has gone away
	if err := s.persist(context.WithoutCancel(ctx), assistantMsg); err != nil {
		return nil, err
	}

	return &models.Exchange{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

func (s *ChatService) persist(ctx context.Context, msg *models.Message) error {
	if err := s.store.AddMessage(ctx, msg); err != nil {
		return err
	}
	s.metrics.RecordMessage(ctx, string(msg.Role))
	if s.publisher != nil {
		s.publisher.Publish(msg.UserID, *msg)
	}
	return nil
}
