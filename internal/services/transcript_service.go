package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yoockh/yoomeet/internal/models"
	pgrepo "github.com/yoockh/yoomeet/internal/repositories/postgres"
	"github.com/yoockh/yoomeet/internal/utils"
)

// TranscriptRecord is one handed-off line, in conversation order.
type TranscriptRecord struct {
	Speaker   string    `json:"speaker"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type TranscriptService interface {
	Save(ctx context.Context, meetingID string, records []TranscriptRecord) (int, error)
	List(ctx context.Context, meetingID string, limit int) ([]models.TranscriptEntry, error)
}

type transcriptService struct {
	entries pgrepo.TranscriptRepository
}

func NewTranscriptService(entries pgrepo.TranscriptRepository) TranscriptService {
	return &transcriptService{entries: entries}
}

// Save replaces the meeting transcript. Blank lines are dropped; the remaining order is
// kept as given.
func (s *transcriptService) Save(ctx context.Context, meetingID string, records []TranscriptRecord) (int, error) {
	const op = "TranscriptService.Save"

	if meetingID == "" {
		return 0, utils.E(utils.CodeInvalidArgument, op, "meeting_id is required", nil)
	}

	rows := make([]models.TranscriptEntry, 0, len(records))
	for _, r := range records {
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		speaker := strings.ToLower(strings.TrimSpace(r.Speaker))
		if speaker != "user" && speaker != "assistant" {
			return 0, utils.E(utils.CodeInvalidArgument, op, "speaker must be user or assistant", nil)
		}
		ts := r.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		rows = append(rows, models.TranscriptEntry{
			ID:        uuid.NewString(),
			MeetingID: meetingID,
			Seq:       len(rows) + 1,
			Speaker:   speaker,
			Content:   content,
			SpokenAt:  ts.UTC(),
		})
	}

	if err := s.entries.ReplaceForMeeting(ctx, meetingID, rows); err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to save transcript", err)
	}
	return len(rows), nil
}

func (s *transcriptService) List(ctx context.Context, meetingID string, limit int) ([]models.TranscriptEntry, error) {
	const op = "TranscriptService.List"

	if meetingID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "meeting_id is required", nil)
	}
	rows, err := s.entries.ListByMeeting(ctx, meetingID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list transcript", err)
	}
	return rows, nil
}
