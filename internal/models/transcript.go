package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// TranscriptEntry is one persisted turn. Seq keeps the order the client handed off.
type TranscriptEntry struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	MeetingID string `gorm:"column:meeting_id;type:uuid;index:idx_transcript_meeting_seq,priority:1" json:"meeting_id"`
	Seq       int    `gorm:"column:seq;type:integer;index:idx_transcript_meeting_seq,priority:2" json:"seq"`
	Speaker   string `gorm:"column:speaker;type:text" json:"speaker"` // "user" | "assistant"
	Content   string `gorm:"column:content;type:text" json:"content"`

	// filled later for semantic search over past meetings
	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`

	SpokenAt time.Time      `gorm:"column:spoken_at;type:timestamptz" json:"spoken_at"`
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
}

func (TranscriptEntry) TableName() string { return "transcript_entries" }
