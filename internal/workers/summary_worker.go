package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoomeet/internal/models"
	"github.com/yoockh/yoomeet/internal/providers/llm"
	"github.com/yoockh/yoomeet/internal/queue"
	"github.com/yoockh/yoomeet/internal/services"
)

const summarySystemPrompt = "You summarize meetings between a user and a voice assistant. " +
	"Write a short paragraph followed by bullet points for decisions and action items. " +
	"Use the language of the conversation."

const (
	// keeps very long meetings inside the model context
	maxPromptRunes  = 60000
	maxSummaryTurns = 5000
)

type StatusNotifier interface {
	Publish(ctx context.Context, meetingID, status, message string) error
}

// SummaryWorkerPool turns ended meetings into summaries.
type SummaryWorkerPool struct {
	Redis       queue.StreamClient
	Meetings    services.MeetingService
	Transcripts services.TranscriptService
	LLM         llm.Provider
	Status      StatusNotifier
	NumWorkers  int
	Timeout     time.Duration

	Logger logrus.FieldLogger
}

// Start launches the consumers and returns; they stop with ctx.
func (p *SummaryWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Meetings == nil || p.Transcripts == nil || p.LLM == nil {
		return errors.New("SummaryWorkerPool missing dependency: Redis/Meetings/Transcripts/LLM must be set")
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 3
	}
	if p.Timeout <= 0 {
		p.Timeout = 2 * time.Minute
	}
	if p.Logger == nil {
		p.Logger = logrus.StandardLogger()
	}

	group := &queue.ConsumerGroup{
		Redis:          p.Redis,
		Queue:          queue.MeetingSummaries,
		Group:          "summary-workers",
		ConsumerPrefix: "summary",
		Workers:        p.NumWorkers,
		Block:          5 * time.Second,
		Logger:         p.Logger,
	}
	go func() {
		if err := group.Run(ctx, p.Handle); err != nil {
			p.Logger.WithError(err).Error("summary workers stopped")
		}
	}()
	return nil
}

// Handle processes one queued summary task.
func (p *SummaryWorkerPool) Handle(ctx context.Context, msg queue.Message) error {
	var task services.SummaryTask
	if err := json.Unmarshal(msg.Payload, &task); err != nil || task.MeetingID == "" {
		return fmt.Errorf("invalid summary task %q", msg.ID)
	}
	log := p.logger().WithFields(logrus.Fields{"redis_id": msg.ID, "meeting_id": task.MeetingID})

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	p.setStatus(ctx, log, task.MeetingID, models.SummaryProcessing, "")
	p.publish(ctx, task.MeetingID, models.SummaryProcessing, "summarizing meeting")

	rows, err := p.Transcripts.List(ctx, task.MeetingID, maxSummaryTurns)
	if err != nil {
		return p.fail(ctx, log, task.MeetingID, "failed to load transcript", err)
	}
	if len(rows) == 0 {
		p.setStatus(ctx, log, task.MeetingID, models.SummaryDone, "")
		p.publish(ctx, task.MeetingID, models.SummaryDone, "nothing to summarize")
		return nil
	}

	summary, err := p.LLM.Complete(ctx, summarySystemPrompt, transcriptPrompt(rows))
	if err != nil {
		return p.fail(ctx, log, task.MeetingID, "summary generation failed", err)
	}
	if err := p.Meetings.SetSummary(ctx, task.MeetingID, models.SummaryDone, summary, ""); err != nil {
		return p.fail(ctx, log, task.MeetingID, "failed to store summary", err)
	}
	p.publish(ctx, task.MeetingID, models.SummaryDone, "summary ready")
	log.WithField("turns", len(rows)).Info("meeting summarized")
	return nil
}

func (p *SummaryWorkerPool) fail(ctx context.Context, log logrus.FieldLogger, meetingID, msg string, err error) error {
	log.WithError(err).Error(msg)
	p.setStatus(ctx, log, meetingID, models.SummaryFailed, msg)
	p.publish(ctx, meetingID, models.SummaryFailed, msg)
	return err
}

// setStatus records a status without a summary body; a store error is logged only.
func (p *SummaryWorkerPool) setStatus(ctx context.Context, log logrus.FieldLogger, meetingID, status, errMsg string) {
	if err := p.Meetings.SetSummary(ctx, meetingID, status, "", errMsg); err != nil {
		log.WithError(err).WithField("summary_status", status).Warn("summary status not stored")
	}
}

func (p *SummaryWorkerPool) publish(ctx context.Context, meetingID, status, message string) {
	if p.Status == nil {
		return
	}
	if err := p.Status.Publish(ctx, meetingID, status, message); err != nil {
		p.logger().WithError(err).WithField("meeting_id", meetingID).Warn("status publish failed")
	}
}

func (p *SummaryWorkerPool) logger() logrus.FieldLogger {
	if p.Logger == nil {
		return logrus.StandardLogger()
	}
	return p.Logger
}

func (p *SummaryWorkerPool) timeout() time.Duration {
	if p.Timeout <= 0 {
		return 2 * time.Minute
	}
	return p.Timeout
}

func transcriptPrompt(rows []models.TranscriptEntry) string {
	var b strings.Builder
	b.WriteString("Transcript:\n")
	for _, r := range rows {
		speaker := "User"
		if r.Speaker == "assistant" {
			speaker = "Assistant"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(r.Content)
		b.WriteByte('\n')
	}
	out := []rune(b.String())
	if len(out) > maxPromptRunes {
		// keep the end, where conclusions usually are
		out = out[len(out)-maxPromptRunes:]
	}
	return string(out)
}
