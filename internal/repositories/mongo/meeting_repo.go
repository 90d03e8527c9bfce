package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yoockh/yoomeet/internal/models"
	"github.com/yoockh/yoomeet/internal/utils"
)

type MeetingRepository interface {
	Create(ctx context.Context, m *models.Meeting) error
	GetByMeetingID(ctx context.Context, meetingID string) (*models.Meeting, error)
	End(ctx context.Context, meetingID string, endedAt time.Time, durationSeconds int64, turns int) error
	SetSummary(ctx context.Context, meetingID, status, summary, errMsg string) error
	SetRecordingURL(ctx context.Context, meetingID, url string) error
}

type meetingRepo struct {
	col *mongo.Collection
}

func NewMeetingRepo(db *mongo.Database) MeetingRepository {
	return &meetingRepo{col: db.Collection("meetings")}
}

func (r *meetingRepo) Create(ctx context.Context, m *models.Meeting) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, m)
	return err
}

func (r *meetingRepo) GetByMeetingID(ctx context.Context, meetingID string) (*models.Meeting, error) {
	var m models.Meeting
	err := r.col.FindOne(ctx, bson.M{"meeting_id": meetingID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *meetingRepo) End(ctx context.Context, meetingID string, endedAt time.Time, durationSeconds int64, turns int) error {
	return r.update(ctx, meetingID, bson.M{
		"status":           models.MeetingEnded,
		"ended_at":         endedAt.UTC(),
		"duration_seconds": durationSeconds,
		"turn_count":       turns,
		"summary_status":   models.SummaryPending,
	})
}

func (r *meetingRepo) SetSummary(ctx context.Context, meetingID, status, summary, errMsg string) error {
	set := bson.M{"summary_status": status, "summary_error": errMsg}
	if summary != "" {
		set["summary"] = summary
	}
	return r.update(ctx, meetingID, set)
}

func (r *meetingRepo) SetRecordingURL(ctx context.Context, meetingID, url string) error {
	return r.update(ctx, meetingID, bson.M{"recording_url": url})
}

func (r *meetingRepo) update(ctx context.Context, meetingID string, set bson.M) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"meeting_id": meetingID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}
