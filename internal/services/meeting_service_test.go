package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoomeet/internal/models"
	"github.com/yoockh/yoomeet/internal/queue"
	"github.com/yoockh/yoomeet/internal/utils"
)

type meetingHarness struct {
	svc         MeetingService
	meetings    *fakeMeetingRepo
	transcripts *fakeTranscriptRepo
	queue       *fakeQueue
	hook        *test.Hook
}

func newMeetingHarness() *meetingHarness {
	log, hook := test.NewNullLogger()
	h := &meetingHarness{
		meetings:    newFakeMeetingRepo(),
		transcripts: newFakeTranscriptRepo(),
		queue:       &fakeQueue{},
		hook:        hook,
	}
	agents := NewAgentService(newFakeAgentRepo(), nil, 0)
	h.svc = NewMeetingService(h.meetings, agents, NewTranscriptService(h.transcripts), h.queue, log)
	return h
}

func TestMeetingStartAndOwnership(t *testing.T) {
	h := newMeetingHarness()
	ctx := context.Background()

	m, err := h.svc.Start(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, models.MeetingActive, m.Status)

	_, err = h.svc.Get(ctx, "u2", m.MeetingID)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))

	_, err = h.svc.Get(ctx, "u1", "missing")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestMeetingStartUnknownAgent(t *testing.T) {
	h := newMeetingHarness()
	_, err := h.svc.Start(context.Background(), "u1", "1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestMeetingEndPersistsAndEnqueues(t *testing.T) {
	h := newMeetingHarness()
	ctx := context.Background()
	m, err := h.svc.Start(ctx, "u1", "")
	require.NoError(t, err)

	now := time.Now()
	ended, err := h.svc.End(ctx, "u1", m.MeetingID, []TranscriptRecord{
		{Speaker: "user", Content: "hello", Timestamp: now},
		{Speaker: "assistant", Content: "  ", Timestamp: now},
		{Speaker: "Assistant", Content: "hi there", Timestamp: now.Add(time.Second)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.MeetingEnded, ended.Status)
	assert.Equal(t, 2, ended.TurnCount)
	assert.Equal(t, models.SummaryPending, ended.SummaryStatus)

	rows := h.transcripts.rows[m.MeetingID]
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Seq)
	assert.Equal(t, "assistant", rows[1].Speaker)
	assert.Equal(t, 2, rows[1].Seq)

	require.Len(t, h.queue.items, 1)
	assert.Equal(t, queue.MeetingSummaries, h.queue.items[0].name)
	assert.Equal(t, SummaryTask{MeetingID: m.MeetingID}, h.queue.items[0].payload)
}

func TestMeetingEndRejectsUnknownSpeaker(t *testing.T) {
	h := newMeetingHarness()
	ctx := context.Background()
	m, err := h.svc.Start(ctx, "u1", "")
	require.NoError(t, err)

	_, err = h.svc.End(ctx, "u1", m.MeetingID, []TranscriptRecord{{Speaker: "system", Content: "x"}})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	assert.Empty(t, h.queue.items)
}

func TestMeetingEndQueueFailureIsNotReturned(t *testing.T) {
	h := newMeetingHarness()
	h.queue.err = errors.New("redis down")
	ctx := context.Background()
	m, err := h.svc.Start(ctx, "u1", "")
	require.NoError(t, err)

	ended, err := h.svc.End(ctx, "u1", m.MeetingID, []TranscriptRecord{{Speaker: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, models.SummaryFailed, ended.SummaryStatus)

	stored, _ := h.meetings.GetByMeetingID(ctx, m.MeetingID)
	assert.Equal(t, models.SummaryFailed, stored.SummaryStatus)
	require.NotNil(t, h.hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, h.hook.LastEntry().Level)
}

func TestMeetingEndWithoutTranscriptSkipsSummary(t *testing.T) {
	h := newMeetingHarness()
	ctx := context.Background()
	m, err := h.svc.Start(ctx, "u1", "")
	require.NoError(t, err)

	ended, err := h.svc.End(ctx, "u1", m.MeetingID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SummaryDone, ended.SummaryStatus)
	assert.Empty(t, h.queue.items)
}

func TestMeetingEndLogsSummaryStatusStoreError(t *testing.T) {
	h := newMeetingHarness()
	ctx := context.Background()
	m, err := h.svc.Start(ctx, "u1", "")
	require.NoError(t, err)
	h.meetings.summaryErr = errors.New("mongo timeout")

	ended, err := h.svc.End(ctx, "u1", m.MeetingID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SummaryDone, ended.SummaryStatus)

	var warned bool
	for _, e := range h.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "summary status not stored" {
			warned = true
			assert.Equal(t, m.MeetingID, e.Data["meeting_id"])
		}
	}
	assert.True(t, warned)
}

func TestMeetingSetSummaryNotFound(t *testing.T) {
	h := newMeetingHarness()
	err := h.svc.SetSummary(context.Background(), "missing", models.SummaryDone, "s", "")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}
