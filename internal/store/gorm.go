package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-companion/backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormStore implements Store on a relational database
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the schema
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Companion{}, &models.Message{})
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		key := models.NormalizeUsername(user.Username)
		if err := tx.Model(&models.User{}).Where("username_key = ?", key).Count(&count).Error; err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if count > 0 {
			return ErrUsernameTaken
		}
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUsernameTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "get user")
	}
	return &user, nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("username_key = ?", models.NormalizeUsername(username)).
		First(&user).Error
	if err != nil {
		return nil, notFound(err, "get user by username")
	}
	return &user, nil
}

func (s *GormStore) GetCompanion(ctx context.Context, userID uint) (*models.Companion, error) {
	var companion models.Companion
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&companion).Error; err != nil {
		return nil, notFound(err, "get companion")
	}
	return &companion, nil
}

func (s *GormStore) SaveCompanion(ctx context.Context, userID uint, settings models.CompanionSettings) (*models.Companion, error) {
	var companion models.Companion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ?", userID).First(&companion).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			companion = *models.NewCompanion(userID, settings)
			return tx.Create(&companion).Error
		case err != nil:
			return err
		}
		companion.Settings = datatypes.NewJSONType(settings)
		return tx.Model(&companion).Select("settings", "updated_at").Updates(&companion).Error
	})
	if err != nil {
		return nil, fmt.Errorf("save companion: %w", err)
	}
	return &companion, nil
}

func (s *GormStore) AddMessage(ctx context.Context, msg *models.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

func (s *GormStore) ListMessages(ctx context.Context, userID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp ASC").Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (s *GormStore) RecentMessages(ctx context.Context, userID uint, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return []models.Message{}, nil
	}
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	reverse(msgs)
	return msgs, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func reverse(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
