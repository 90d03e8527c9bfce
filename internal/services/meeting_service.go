package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoomeet/internal/models"
	"github.com/yoockh/yoomeet/internal/queue"
	mongorepo "github.com/yoockh/yoomeet/internal/repositories/mongo"
	"github.com/yoockh/yoomeet/internal/utils"
)

// SummaryTask is the payload of the meeting-summaries queue.
type SummaryTask struct {
	MeetingID string `json:"meeting_id"`
	AgentID   string `json:"agent_id,omitempty"`
}

type MeetingService interface {
	Start(ctx context.Context, userID, agentID string) (*models.Meeting, error)
	Get(ctx context.Context, userID, meetingID string) (*models.Meeting, error)
	End(ctx context.Context, userID, meetingID string, records []TranscriptRecord) (*models.Meeting, error)
	SetSummary(ctx context.Context, meetingID, status, summary, errMsg string) error
	SetRecordingURL(ctx context.Context, meetingID, url string) error
}

type meetingService struct {
	meetings    mongorepo.MeetingRepository
	agents      AgentService
	transcripts TranscriptService
	queue       queue.Enqueuer
	log         logrus.FieldLogger
}

func NewMeetingService(meetings mongorepo.MeetingRepository, agents AgentService, transcripts TranscriptService, q queue.Enqueuer, log logrus.FieldLogger) MeetingService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &meetingService{meetings: meetings, agents: agents, transcripts: transcripts, queue: q, log: log}
}

func (s *meetingService) Start(ctx context.Context, userID, agentID string) (*models.Meeting, error) {
	const op = "MeetingService.Start"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if agentID != "" {
		if _, err := s.agents.Get(ctx, agentID); err != nil {
			return nil, err
		}
	}

	m := &models.Meeting{
		MeetingID: uuid.NewString(),
		UserID:    userID,
		AgentID:   agentID,
		Status:    models.MeetingActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.meetings.Create(ctx, m); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create meeting", err)
	}
	return m, nil
}

func (s *meetingService) Get(ctx context.Context, userID, meetingID string) (*models.Meeting, error) {
	const op = "MeetingService.Get"

	if meetingID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "meeting_id is required", nil)
	}
	m, err := s.meetings.GetByMeetingID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "meeting not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get meeting", err)
	}
	if userID != "" && m.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
	}
	return m, nil
}

// End closes the meeting, stores its transcript and queues the summary. Queueing is
// fire-and-forget: a failure is logged and recorded on the meeting, not returned.
func (s *meetingService) End(ctx context.Context, userID, meetingID string, records []TranscriptRecord) (*models.Meeting, error) {
	const op = "MeetingService.End"

	m, err := s.Get(ctx, userID, meetingID)
	if err != nil {
		return nil, err
	}

	n, err := s.transcripts.Save(ctx, meetingID, records)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	endedAt := now
	if m.EndedAt != nil {
		endedAt = *m.EndedAt
	}
	dur := int64(endedAt.Sub(m.CreatedAt).Seconds())
	if dur < 0 {
		dur = 0
	}
	if err := s.meetings.End(ctx, meetingID, endedAt, dur, n); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to end meeting", err)
	}

	m.Status = models.MeetingEnded
	m.EndedAt = &endedAt
	m.DurationSeconds = dur
	m.TurnCount = n
	m.SummaryStatus = models.SummaryPending

	log := s.log.WithFields(logrus.Fields{"meeting_id": meetingID, "turns": n})
	if n == 0 {
		m.SummaryStatus = models.SummaryDone
		if err := s.meetings.SetSummary(ctx, meetingID, models.SummaryDone, "", ""); err != nil {
			log.WithError(err).Warn("summary status not stored")
		}
		log.Info("meeting ended without transcript; summary skipped")
		return m, nil
	}
	if _, err := s.queue.Enqueue(ctx, queue.MeetingSummaries, SummaryTask{MeetingID: meetingID, AgentID: m.AgentID}); err != nil {
		log.WithError(err).Error("failed to enqueue summary")
		m.SummaryStatus = models.SummaryFailed
		if err := s.meetings.SetSummary(ctx, meetingID, models.SummaryFailed, "", "summary could not be queued"); err != nil {
			log.WithError(err).Warn("summary status not stored")
		}
		return m, nil
	}
	log.Info("meeting ended; summary queued")
	return m, nil
}

func (s *meetingService) SetSummary(ctx context.Context, meetingID, status, summary, errMsg string) error {
	const op = "MeetingService.SetSummary"

	if meetingID == "" || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "meeting_id and status are required", nil)
	}
	if err := s.meetings.SetSummary(ctx, meetingID, status, summary, errMsg); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "meeting not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to store summary", err)
	}
	return nil
}

func (s *meetingService) SetRecordingURL(ctx context.Context, meetingID, url string) error {
	const op = "MeetingService.SetRecordingURL"

	if err := s.meetings.SetRecordingURL(ctx, meetingID, url); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "meeting not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to attach recording", err)
	}
	return nil
}
