package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoomeet/internal/models"
	"github.com/yoockh/yoomeet/internal/queue"
	"github.com/yoockh/yoomeet/internal/services"
)

type summaryCall struct {
	status, summary, errMsg string
}

type fakeMeetings struct {
	services.MeetingService
	mu    sync.Mutex
	calls []summaryCall
	err   error
}

func (f *fakeMeetings) SetSummary(_ context.Context, _ string, status, summary, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, summaryCall{status, summary, errMsg})
	return f.err
}

func (f *fakeMeetings) last() summaryCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeTranscripts struct {
	services.TranscriptService
	rows []models.TranscriptEntry
	err  error
}

func (f *fakeTranscripts) List(context.Context, string, int) ([]models.TranscriptEntry, error) {
	return f.rows, f.err
}

type fakeLLM struct {
	answer string
	err    error
	prompt string
}

func (f *fakeLLM) StreamAnswer(context.Context, string, string) (<-chan string, <-chan error) {
	panic("not used")
}

func (f *fakeLLM) Complete(_ context.Context, _ string, prompt string) (string, error) {
	f.prompt = prompt
	return f.answer, f.err
}

func (f *fakeLLM) Close() error { return nil }

type fakeStatus struct {
	statuses []string
}

func (f *fakeStatus) Publish(_ context.Context, _ string, status, _ string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func newPool(tr *fakeTranscripts, l *fakeLLM) (*SummaryWorkerPool, *fakeMeetings, *fakeStatus) {
	log, _ := test.NewNullLogger()
	m, st := &fakeMeetings{}, &fakeStatus{}
	return &SummaryWorkerPool{Meetings: m, Transcripts: tr, LLM: l, Status: st, Logger: log}, m, st
}

func task(t *testing.T, meetingID string) queue.Message {
	t.Helper()
	b, err := json.Marshal(services.SummaryTask{MeetingID: meetingID})
	require.NoError(t, err)
	return queue.Message{ID: "1-0", Payload: b}
}

func TestSummaryHandleStoresSummary(t *testing.T) {
	tr := &fakeTranscripts{rows: []models.TranscriptEntry{
		{Seq: 1, Speaker: "user", Content: "Can we ship Friday?"},
		{Seq: 2, Speaker: "assistant", Content: "Yes, after QA."},
	}}
	l := &fakeLLM{answer: "Shipping Friday after QA."}
	p, meetings, st := newPool(tr, l)

	require.NoError(t, p.Handle(context.Background(), task(t, "m1")))
	assert.Equal(t, summaryCall{models.SummaryDone, "Shipping Friday after QA.", ""}, meetings.last())
	assert.Equal(t, []string{models.SummaryProcessing, models.SummaryDone}, st.statuses)
	assert.Equal(t, "Transcript:\nUser: Can we ship Friday?\nAssistant: Yes, after QA.\n", l.prompt)
}

func TestSummaryHandleLLMFailure(t *testing.T) {
	tr := &fakeTranscripts{rows: []models.TranscriptEntry{{Speaker: "user", Content: "hi"}}}
	p, meetings, st := newPool(tr, &fakeLLM{err: errors.New("quota")})

	err := p.Handle(context.Background(), task(t, "m1"))
	require.Error(t, err)
	assert.Equal(t, models.SummaryFailed, meetings.last().status)
	assert.Equal(t, models.SummaryFailed, st.statuses[len(st.statuses)-1])
}

func TestSummaryHandleEmptyTranscript(t *testing.T) {
	l := &fakeLLM{}
	p, meetings, _ := newPool(&fakeTranscripts{}, l)

	require.NoError(t, p.Handle(context.Background(), task(t, "m1")))
	assert.Equal(t, models.SummaryDone, meetings.last().status)
	assert.Empty(t, l.prompt)
}

func TestSummaryHandleLogsStatusStoreError(t *testing.T) {
	log, hook := test.NewNullLogger()
	meetings := &fakeMeetings{err: errors.New("mongo timeout")}
	st := &fakeStatus{}
	p := &SummaryWorkerPool{Meetings: meetings, Transcripts: &fakeTranscripts{}, LLM: &fakeLLM{}, Status: st, Logger: log}

	require.NoError(t, p.Handle(context.Background(), task(t, "m1")))
	assert.Equal(t, []string{models.SummaryProcessing, models.SummaryDone}, st.statuses)

	var warned int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "summary status not stored" {
			warned++
			assert.Equal(t, "m1", e.Data["meeting_id"])
		}
	}
	assert.Equal(t, 2, warned)
}

func TestSummaryHandleBadPayload(t *testing.T) {
	p, meetings, _ := newPool(&fakeTranscripts{}, &fakeLLM{})

	err := p.Handle(context.Background(), queue.Message{ID: "1-0", Payload: []byte("{")})
	require.Error(t, err)
	assert.Empty(t, meetings.calls)
}

func TestTranscriptPromptKeepsTail(t *testing.T) {
	rows := []models.TranscriptEntry{
		{Speaker: "user", Content: strings.Repeat("a", maxPromptRunes)},
		{Speaker: "assistant", Content: "the end"},
	}
	out := transcriptPrompt(rows)
	assert.Len(t, []rune(out), maxPromptRunes)
	assert.True(t, strings.HasSuffix(out, "Assistant: the end\n"))
}

func TestStartRequiresDependencies(t *testing.T) {
	p := &SummaryWorkerPool{}
	assert.Error(t, p.Start(context.Background()))
}
