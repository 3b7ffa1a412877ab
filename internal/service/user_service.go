package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"ai-companion/backend/internal/models"
	"ai-companion/backend/internal/store"
	"ai-companion/backend/pkg/logger"
)

const (
	maxUsernameLength = 64
	// bcrypt ignores anything past 72 bytes
	maxPasswordBytes = 72
)

// dummyHash is compared against when a username is unknown so that both
// login failure paths cost one bcrypt comparison.
var dummyHash, _ = models.HashPassword("not-a-real-password")

// UserService handles registration and credential checks
type UserService struct {
	store store.Store
	log   *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(s store.Store, log *logger.Logger) *UserService {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &UserService{store: s, log: log}
}

// Register creates an account. Usernames are unique ignoring case.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)

	verr := &ValidationError{}
	switch {
	case username == "":
		verr.add("username", "is required")
	case utf8.RuneCountInString(username) > maxUsernameLength:
		verr.add("username", "must be at most 64 characters")
	}
	switch {
	case password == "":
		verr.add("password", "is required")
	case len(password) > maxPasswordBytes:
		verr.add("password", "must be at most 72 bytes")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Username: username, Password: hash}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.log.Info("User registered", "user_id", user.ID)
	return user, nil
}

// Authenticate returns the user owning the credentials
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			models.CheckPasswordHash(password, dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !models.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
