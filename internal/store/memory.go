package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-companion/backend/internal/models"
)

// MemoryStore implements Store with maps. Data lives only as long as the process.
type MemoryStore struct {
	mu sync.RWMutex

	users      map[uint]models.User
	byUsername map[string]uint
	companions map[uint]models.Companion // keyed by user id
	messages   map[uint][]models.Message // keyed by user id

	nextUserID      uint
	nextCompanionID uint
	nextMessageID   uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[uint]models.User),
		byUsername: make(map[string]uint),
		companions: make(map[uint]models.Companion),
		messages:   make(map[uint][]models.Message),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.NormalizeUsername(user.Username)
	if _, exists := s.byUsername[key]; exists {
		return ErrUsernameTaken
	}

	s.nextUserID++
	user.ID = s.nextUserID
	user.UsernameKey = key
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	s.users[user.ID] = *user
	s.byUsername[key] = user.ID
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uint) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[models.NormalizeUsername(username)]
	if !ok {
		return nil, ErrNotFound
	}
	user := s.users[id]
	return &user, nil
}

func (s *MemoryStore) GetCompanion(_ context.Context, userID uint) (*models.Companion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	companion, ok := s.companions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &companion, nil
}

func (s *MemoryStore) SaveCompanion(_ context.Context, userID uint, settings models.CompanionSettings) (*models.Companion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.companions[userID]
	companion := models.NewCompanion(userID, cloneSettings(settings))
	if ok {
		companion.ID = existing.ID
		companion.CreatedAt = existing.CreatedAt
	} else {
		s.nextCompanionID++
		companion.ID = s.nextCompanionID
		companion.CreatedAt = now
	}
	companion.UpdatedAt = now

	s.companions[userID] = *companion
	return companion, nil
}

func (s *MemoryStore) AddMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMessageID++
	msg.ID = s.nextMessageID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	list := append(s.messages[msg.UserID], *msg)
	// keep (timestamp, id) order even if a caller supplies an older timestamp
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].ID < list[j].ID
		}
		return list[i].Timestamp.Before(list[j].Timestamp)
	})
	s.messages[msg.UserID] = list
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, userID uint) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.messages[userID]
	out := make([]models.Message, len(list))
	copy(out, list)
	return out, nil
}

func (s *MemoryStore) RecentMessages(_ context.Context, userID uint, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return []models.Message{}, nil
	}
	list := s.messages[userID]
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	out := make([]models.Message, len(list))
	copy(out, list)
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func cloneSettings(in models.CompanionSettings) models.CompanionSettings {
	out := in
	if in.Interests != nil {
		out.Interests = make([]string, len(in.Interests))
		copy(out.Interests, in.Interests)
	}
	if in.Avatar != nil {
		v := *in.Avatar
		out.Avatar = &v
	}
	if in.Creativity != nil {
		v := *in.Creativity
		out.Creativity = &v
	}
	return out
}
