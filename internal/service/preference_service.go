package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"ai-companion/backend/internal/models"
	"ai-companion/backend/internal/store"
	"ai-companion/backend/pkg/cache"
)

const (
	maxNameLength        = 100
	maxPersonalityLength = 2000
	maxDescriptionLength = 4000
	maxInterests         = 20
	maxInterestLength    = 100
)

// PreferenceService stores each user's companion settings. Reads go through
// an optional per-user cache that saves refresh.
type PreferenceService struct {
	store store.Store
	cache *cache.Cache
}

// NewPreferenceService creates the service. A nil cache disables caching.
func NewPreferenceService(s store.Store, c *cache.Cache) *PreferenceService {
	return &PreferenceService{store: s, cache: c}
}

func companionKey(userID uint) string {
	return "companion:" + strconv.FormatUint(uint64(userID), 10)
}

// Get returns the user's companion, or nil when none is configured
func (s *PreferenceService) Get(ctx context.Context, userID uint) (*models.Companion, error) {
	if s.cache != nil {
		if c, ok := cache.GetAs[models.Companion](s.cache, companionKey(userID)); ok {
			return &c, nil
		}
	}

	companion, err := s.store.GetCompanion(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(companionKey(userID), *companion)
	}
	return companion, nil
}

// Save validates and replaces the user's settings
func (s *PreferenceService) Save(ctx context.Context, userID uint, settings models.CompanionSettings) (*models.Companion, error) {
	settings = NormalizeSettings(settings)
	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	companion, err := s.store.SaveCompanion(ctx, userID, settings)
	if err != nil {
		if s.cache != nil {
			s.cache.Delete(companionKey(userID))
		}
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(companionKey(userID), *companion)
	}
	return companion, nil
}

// NormalizeSettings trims text fields and drops blank interests
func NormalizeSettings(in models.CompanionSettings) models.CompanionSettings {
	out := in
	out.Name = strings.TrimSpace(in.Name)
	out.Personality = strings.TrimSpace(in.Personality)
	out.Description = strings.TrimSpace(in.Description)
	out.Voice = strings.ToLower(strings.TrimSpace(in.Voice))

	out.Interests = make([]string, 0, len(in.Interests))
	for _, interest := range in.Interests {
		if interest = strings.TrimSpace(interest); interest != "" {
			out.Interests = append(out.Interests, interest)
		}
	}

	if in.Avatar != nil {
		avatar := strings.TrimSpace(*in.Avatar)
		if avatar == "" {
			out.Avatar = nil
		} else {
			out.Avatar = &avatar
		}
	}
	return out
}

// ValidateSettings checks normalized settings
func ValidateSettings(s models.CompanionSettings) error {
	verr := &ValidationError{}

	checkText := func(field, value string, required bool, limit int) {
		switch {
		case required && value == "":
			verr.add(field, "is required")
		case utf8.RuneCountInString(value) > limit:
			verr.add(field, "must be at most "+strconv.Itoa(limit)+" characters")
		}
	}
	checkText("name", s.Name, true, maxNameLength)
	checkText("personality", s.Personality, true, maxPersonalityLength)
	checkText("description", s.Description, false, maxDescriptionLength)

	if len(s.Interests) > maxInterests {
		verr.add("interests", "must have at most "+strconv.Itoa(maxInterests)+" entries")
	}
	for _, interest := range s.Interests {
		if utf8.RuneCountInString(interest) > maxInterestLength {
			verr.add("interests", "entries must be at most "+strconv.Itoa(maxInterestLength)+" characters")
			break
		}
	}

	if s.Creativity != nil && (*s.Creativity < 0 || *s.Creativity > 1) {
		verr.add("creativity", "must be between 0 and 1")
	}
	if s.Voice != "" && s.Voice != models.VoiceMale && s.Voice != models.VoiceFemale {
		verr.add("voice", "must be male or female")
	}

	return verr.orNil()
}
