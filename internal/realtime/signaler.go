package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPSignaler posts offers to the server's signaling relay.
type HTTPSignaler struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (s *HTTPSignaler) Exchange(ctx context.Context, offerSDP, agentID string) (string, error) {
	endpoint, err := url.JoinPath(s.BaseURL, "/realtime/session")
	if err != nil {
		return "", &SignalingError{Err: err}
	}
	if agentID != "" {
		endpoint += "?" + url.Values{"agent_id": {agentID}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offerSDP))
	if err != nil {
		return "", &SignalingError{Err: err}
	}
	req.Header.Set("Content-Type", "application/sdp")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return "", &SignalingError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &SignalingError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &SignalingError{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", &SignalingError{Status: resp.StatusCode, Message: "empty answer"}
	}
	return string(body), nil
}

func (s *HTTPSignaler) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// errorMessage pulls the message out of the server's {code, message} error body.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// checkStatus is shared by the small JSON clients in this package.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return fmt.Errorf("status %d: %s", resp.StatusCode, errorMessage(body))
}
