package jwt

import (
	"errors"
	"time"
)

// ErrMissingSecret is returned when a Service is built without a signing key
var ErrMissingSecret = errors.New("jwt secret must not be empty")

// Service is a wrapper for JWT operations
type Service struct {
	secretKey []byte
	expiry    time.Duration
	now       func() time.Time
}

// NewService creates a new JWT service
func NewService(secretKey string, expiry time.Duration) (*Service, error) {
	if secretKey == "" {
		return nil, ErrMissingSecret
	}

	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	return &Service{
		secretKey: []byte(secretKey),
		expiry:    expiry,
		now:       time.Now,
	}, nil
}

// Expiry returns the lifetime of issued tokens
func (s *Service) Expiry() time.Duration {
	return s.expiry
}

// GenerateToken signs a session token for a user
func (s *Service) GenerateToken(userID uint, sessionID string) (string, error) {
	return generateToken(s.secretKey, userID, sessionID, s.expiry, s.now())
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*SessionClaims, error) {
	return validateToken(s.secretKey, tokenString)
}
