package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/yoockh/yoomeet/internal/models"
	"github.com/yoockh/yoomeet/internal/utils"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = b
	c.mu.Unlock()
	return nil
}

func (c *memCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.data, k)
	}
	c.mu.Unlock()
	return nil
}

type fakeAgentRepo struct {
	mu     sync.Mutex
	agents map[string]models.Agent
	loads  int
	err    error
}

func newFakeAgentRepo(agents ...models.Agent) *fakeAgentRepo {
	r := &fakeAgentRepo{agents: map[string]models.Agent{}}
	for _, a := range agents {
		r.agents[a.ID] = a
	}
	return r
}

func (r *fakeAgentRepo) GetByID(_ context.Context, id string) (*models.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	if r.err != nil {
		return nil, r.err
	}
	a, ok := r.agents[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &a, nil
}

func (r *fakeAgentRepo) List(_ context.Context, tag string, _ int) ([]models.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Agent
	for _, a := range r.agents {
		if tag == "" {
			out = append(out, a)
			continue
		}
		for _, t := range a.Tags {
			if t == tag {
				out = append(out, a)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeAgentRepo) Upsert(_ context.Context, a *models.Agent) error {
	r.mu.Lock()
	r.agents[a.ID] = *a
	r.mu.Unlock()
	return nil
}

type fakeMeetingRepo struct {
	mu         sync.Mutex
	meetings   map[string]*models.Meeting
	summaryErr error
}

func newFakeMeetingRepo() *fakeMeetingRepo {
	return &fakeMeetingRepo{meetings: map[string]*models.Meeting{}}
}

func (r *fakeMeetingRepo) Create(_ context.Context, m *models.Meeting) error {
	r.mu.Lock()
	cp := *m
	r.meetings[m.MeetingID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *fakeMeetingRepo) GetByMeetingID(_ context.Context, id string) (*models.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meetings[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMeetingRepo) with(id string, fn func(m *models.Meeting)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meetings[id]
	if !ok {
		return utils.ErrNotFound
	}
	fn(m)
	return nil
}

func (r *fakeMeetingRepo) End(_ context.Context, id string, endedAt time.Time, dur int64, turns int) error {
	return r.with(id, func(m *models.Meeting) {
		m.Status = models.MeetingEnded
		m.EndedAt = &endedAt
		m.DurationSeconds = dur
		m.TurnCount = turns
		m.SummaryStatus = models.SummaryPending
	})
}

func (r *fakeMeetingRepo) SetSummary(_ context.Context, id, status, summary, errMsg string) error {
	if r.summaryErr != nil {
		return r.summaryErr
	}
	return r.with(id, func(m *models.Meeting) {
		m.SummaryStatus = status
		m.Summary = summary
		m.SummaryError = errMsg
	})
}

func (r *fakeMeetingRepo) SetRecordingURL(_ context.Context, id, url string) error {
	return r.with(id, func(m *models.Meeting) { m.RecordingURL = url })
}

type fakeTranscriptRepo struct {
	mu   sync.Mutex
	rows map[string][]models.TranscriptEntry
	err  error
}

func newFakeTranscriptRepo() *fakeTranscriptRepo {
	return &fakeTranscriptRepo{rows: map[string][]models.TranscriptEntry{}}
}

func (r *fakeTranscriptRepo) ReplaceForMeeting(_ context.Context, id string, entries []models.TranscriptEntry) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	r.rows[id] = append([]models.TranscriptEntry(nil), entries...)
	r.mu.Unlock()
	return nil
}

func (r *fakeTranscriptRepo) ListByMeeting(_ context.Context, id string, _ int) ([]models.TranscriptEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id], nil
}

type enqueued struct {
	name    string
	payload any
}

type fakeQueue struct {
	mu    sync.Mutex
	items []enqueued
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, name string, payload any) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.mu.Lock()
	q.items = append(q.items, enqueued{name: name, payload: payload})
	q.mu.Unlock()
	return "1-0", nil
}

type fakeStore struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *fakeStore) Upload(_ context.Context, name, contentType string, r io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.objects[name] = b
	s.types[name] = contentType
	return "gs://bucket/" + name, nil
}

func (s *fakeStore) SignedGetURL(_ context.Context, name string, ttl time.Duration) (string, error) {
	if _, ok := s.objects[name]; !ok {
		return "", errors.New("no object")
	}
	return "https://signed.example/" + name + "?ttl=" + ttl.String(), nil
}

type fakeRecordingRepo struct {
	rows []models.Recording
}

func (r *fakeRecordingRepo) Insert(_ context.Context, rec *models.Recording) error {
	r.rows = append(r.rows, *rec)
	return nil
}

func (r *fakeRecordingRepo) LatestByMeeting(_ context.Context, id string) (*models.Recording, error) {
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].MeetingID == id {
			rec := r.rows[i]
			return &rec, nil
		}
	}
	return nil, utils.ErrNotFound
}

type fakeVoiceTurnRepo struct {
	mu    sync.Mutex
	turns map[string]*models.VoiceTurn
	sets  []bson.M
}

func newFakeVoiceTurnRepo() *fakeVoiceTurnRepo {
	return &fakeVoiceTurnRepo{turns: map[string]*models.VoiceTurn{}}
}

func (r *fakeVoiceTurnRepo) Insert(_ context.Context, t *models.VoiceTurn) error {
	r.mu.Lock()
	cp := *t
	r.turns[t.TurnID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *fakeVoiceTurnRepo) Update(_ context.Context, id string, set bson.M) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.turns[id]
	if !ok {
		return utils.ErrNotFound
	}
	r.sets = append(r.sets, set)
	for k, v := range set {
		switch k {
		case "stt_status":
			t.STTStatus = v.(string)
		case "transcript":
			t.Transcript = v.(string)
		case "llm_status":
			t.LLMStatus = v.(string)
		case "answer":
			t.Answer = v.(string)
		case "tts_status":
			t.TTSStatus = v.(string)
		case "error":
			t.Error = v.(string)
		}
	}
	return nil
}

func (r *fakeVoiceTurnRepo) ListByUser(_ context.Context, userID string, _ int64) ([]models.VoiceTurn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.VoiceTurn
	for _, t := range r.turns {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeVoiceTurnRepo) only() *models.VoiceTurn {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.turns {
		cp := *t
		return &cp
	}
	return nil
}

type fakeSTT struct {
	text string
	conf float64
	err  error
	lang string
}

func (f *fakeSTT) Transcribe(_ context.Context, _ []byte, language string) (string, float64, error) {
	f.lang = language
	return f.text, f.conf, f.err
}

func (f *fakeSTT) Close() error { return nil }

type fakeLLM struct {
	chunks   []string
	err      error
	summary  string
	system   string
	prompt   string
	complete error
}

func (f *fakeLLM) StreamAnswer(_ context.Context, system, prompt string) (<-chan string, <-chan error) {
	f.system, f.prompt = system, prompt
	out := make(chan string, len(f.chunks))
	errs := make(chan error, 1)
	for _, c := range f.chunks {
		out <- c
	}
	if f.err != nil {
		errs <- f.err
	}
	close(out)
	close(errs)
	return out, errs
}

func (f *fakeLLM) Complete(_ context.Context, system, prompt string) (string, error) {
	f.system, f.prompt = system, prompt
	return f.summary, f.complete
}

func (f *fakeLLM) Close() error { return nil }

type fakeTTS struct {
	err   error
	voice string
	text  string
}

func (f *fakeTTS) Synthesize(_ context.Context, text, _ string, voice string) ([]byte, string, error) {
	f.text, f.voice = text, voice
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("mp3"), "audio/mpeg", nil
}

func (f *fakeTTS) Close() error { return nil }
