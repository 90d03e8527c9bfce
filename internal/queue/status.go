package queue

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// StatusChannel is the pub/sub channel carrying progress for one meeting.
func StatusChannel(meetingID string) string { return "meeting:" + meetingID + ":status" }

type Status struct {
	Type      string `json:"type"` // always "status"
	MeetingID string `json:"meeting_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type StatusPublisher struct {
	rdb Publisher
}

func NewStatusPublisher(rdb Publisher) *StatusPublisher {
	return &StatusPublisher{rdb: rdb}
}

func (p *StatusPublisher) Publish(ctx context.Context, meetingID, status, message string) error {
	b, err := json.Marshal(Status{Type: "status", MeetingID: meetingID, Status: status, Message: message})
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, StatusChannel(meetingID), string(b)).Err()
}
