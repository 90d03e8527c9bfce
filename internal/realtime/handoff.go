package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Record is one transcript line handed to post-call processing.
type Record struct {
	Speaker   string    `json:"speaker"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Handoff delivers a finished conversation. Callers do not wait on what happens next.
type Handoff interface {
	Handoff(ctx context.Context, meetingID string, records []Record) error
}

// RecordsFromTurns keeps the non-empty turns in order.
func RecordsFromTurns(turns []Turn) []Record {
	out := make([]Record, 0, len(turns))
	for _, t := range turns {
		if t.Content == "" {
			continue
		}
		out = append(out, Record{Speaker: string(t.Role), Content: t.Content, Timestamp: t.CreatedAt})
	}
	return out
}

// HTTPHandoff ends the meeting on the server, which queues the summary job.
type HTTPHandoff struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (h *HTTPHandoff) Handoff(ctx context.Context, meetingID string, records []Record) error {
	endpoint, err := url.JoinPath(h.BaseURL, "meetings", meetingID, "end")
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]any{"transcript": records})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("handoff meeting %s: %w", meetingID, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("handoff meeting %s: %w", meetingID, err)
	}
	return nil
}
