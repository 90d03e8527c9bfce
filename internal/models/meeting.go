package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MeetingActive = "active"
	MeetingEnded  = "ended"

	SummaryPending    = "pending"
	SummaryProcessing = "processing"
	SummaryDone       = "done"
	SummaryFailed     = "failed"
)

type Meeting struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	MeetingID string             `bson:"meeting_id" json:"meeting_id"` // uuid v4
	UserID    string             `bson:"user_id" json:"user_id"`
	AgentID   string             `bson:"agent_id,omitempty" json:"agent_id,omitempty"`

	Status string `bson:"status" json:"status"` // active|ended

	Summary       string `bson:"summary,omitempty" json:"summary,omitempty"`
	SummaryStatus string `bson:"summary_status,omitempty" json:"summary_status,omitempty"`
	SummaryError  string `bson:"summary_error,omitempty" json:"summary_error,omitempty"`

	TurnCount    int    `bson:"turn_count" json:"turn_count"`
	RecordingURL string `bson:"recording_url,omitempty" json:"recording_url,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	EndedAt   *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`

	DurationSeconds int64 `bson:"duration_seconds" json:"duration_seconds"`
}
