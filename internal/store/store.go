// Package store persists users, companions and messages.
package store

import (
	"context"
	"errors"

	"ai-companion/backend/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrUsernameTaken is returned when a username already exists, ignoring case
	ErrUsernameTaken = errors.New("username already exists")
)

// Store is the persistence boundary used by the services
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetCompanion returns ErrNotFound when the user has not configured one
	GetCompanion(ctx context.Context, userID uint) (*models.Companion, error)
	// SaveCompanion replaces the user's settings, creating the record on first save
	SaveCompanion(ctx context.Context, userID uint, settings models.CompanionSettings) (*models.Companion, error)

	AddMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns all of a user's messages oldest first
	ListMessages(ctx context.Context, userID uint) ([]models.Message, error)
	// RecentMessages returns at most limit of the newest messages, oldest first
	RecentMessages(ctx context.Context, userID uint, limit int) ([]models.Message, error)

	Ping(ctx context.Context) error
}
