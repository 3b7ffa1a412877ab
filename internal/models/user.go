package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User represents a user in the system
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"size:64;not null" json:"username"`
	UsernameKey string    `gorm:"size:64;not null;uniqueIndex" json:"-"` // lowercase, unique
	Password    string    `gorm:"not null" json:"-"`                    // bcrypt hash, never serialized
	CreatedAt   time.Time `json:"createdAt"`
}

// RegisterRequest is the request structure for creating a new user
type RegisterRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=72"`
}

// LoginRequest is the request structure for user login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is the response structure for user data (without sensitive info)
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeUsername returns the case-insensitive key a username is unique by
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// HashPassword hashes a password for storage
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// BeforeSave keeps UsernameKey in step with Username
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.UsernameKey = NormalizeUsername(u.Username)
	return nil
}

// ToResponse converts a User model to a UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}
