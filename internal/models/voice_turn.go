package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StagePending    = "pending"
	StageProcessing = "processing"
	StageDone       = "done"
	StageFailed     = "failed"
)

// VoiceTurn tracks one push-to-talk exchange. Rows expire through a TTL index.
type VoiceTurn struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TurnID  string             `bson:"turn_id" json:"turn_id"`
	UserID  string             `bson:"user_id" json:"user_id"`
	AgentID string             `bson:"agent_id,omitempty" json:"agent_id,omitempty"`

	AudioBytes int `bson:"audio_bytes" json:"audio_bytes"`

	Transcript    string  `bson:"transcript,omitempty" json:"transcript,omitempty"`
	STTStatus     string  `bson:"stt_status" json:"stt_status"`
	STTConfidence float64 `bson:"stt_confidence,omitempty" json:"stt_confidence,omitempty"`

	LLMStatus string `bson:"llm_status" json:"llm_status"`
	Answer    string `bson:"answer,omitempty" json:"answer,omitempty"`

	TTSStatus string `bson:"tts_status" json:"tts_status"`
	Error     string `bson:"error,omitempty" json:"error,omitempty"`

	ProcessingTimeMS int64     `bson:"processing_time_ms,omitempty" json:"processing_time_ms,omitempty"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt        time.Time `bson:"expires_at" json:"expires_at"`
}
