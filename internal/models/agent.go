package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Agent is the persona a realtime session is configured with.
type Agent struct {
	ID           string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name         string `gorm:"column:name;type:text" json:"name"`
	Instructions string `gorm:"column:instructions;type:text" json:"instructions"`
	Voice        string `gorm:"column:voice;type:text" json:"voice"`
	Language     string `gorm:"column:language;type:text" json:"language"` // BCP-47, used by push-to-talk STT/TTS

	Tags pq.StringArray `gorm:"column:tags;type:text[]" json:"tags"`

	// free-form settings the UI keeps alongside the persona
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	CreatedBy string    `gorm:"column:created_by;type:uuid" json:"created_by"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Agent) TableName() string { return "agents" }
