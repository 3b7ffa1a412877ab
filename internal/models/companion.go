package models

import (
	"time"

	"gorm.io/datatypes"
)

// Voice choices the client's speech synthesis understands
const (
	VoiceMale   = "male"
	VoiceFemale = "female"
)

// CompanionSettings is the persona a user configures for their companion
type CompanionSettings struct {
	Name        string   `json:"name" binding:"required,max=100"`
	Personality string   `json:"personality" binding:"required,max=2000"`
	Description string   `json:"description" binding:"max=4000"`
	// counted and length-checked after blanks are stripped, see service.ValidateSettings
	Interests   []string `json:"interests" binding:"required"`
	Avatar      *string  `json:"avatar,omitempty" binding:"omitempty,max=2048"`
	Creativity  *float64 `json:"creativity,omitempty" binding:"omitempty,gte=0,lte=1"`
	Voice       string   `json:"voice,omitempty" binding:"omitempty,oneof=male female"`
}

// Companion stores one user's settings. Saving replaces Settings wholesale.
type Companion struct {
	ID        uint                                  `gorm:"primaryKey" json:"id"`
	UserID    uint                                  `gorm:"not null;uniqueIndex" json:"userId"`
	Settings  datatypes.JSONType[CompanionSettings] `json:"settings"`
	CreatedAt time.Time                             `json:"createdAt"`
	UpdatedAt time.Time                             `json:"updatedAt"`
}

// NewCompanion wraps settings for userID
func NewCompanion(userID uint, settings CompanionSettings) *Companion {
	return &Companion{
		UserID:   userID,
		Settings: datatypes.NewJSONType(settings),
	}
}

// Persona returns the stored settings
func (c *Companion) Persona() CompanionSettings {
	return c.Settings.Data()
}
