package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoomeet/internal/utils"
)

const maxLoggedBody = 512

// SessionConfig names only what the upstream accepts while the call is being
// created. Turn detection and transcription are sent later over the data channel.
type SessionConfig struct {
	Type         string       `json:"type"`
	Model        string       `json:"model"`
	Instructions string       `json:"instructions,omitempty"`
	Audio        SessionAudio `json:"audio"`
}

type SessionAudio struct {
	Output SessionOutput `json:"output"`
}

type SessionOutput struct {
	Voice string `json:"voice,omitempty"`
}

type Upstream interface {
	CreateCall(ctx context.Context, offerSDP string, session SessionConfig) (answerSDP string, err error)
}

// OpenAIUpstream creates realtime calls over the multipart calls endpoint.
type OpenAIUpstream struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Logger  logrus.FieldLogger
}

func NewOpenAIUpstream(baseURL, apiKey string, log logrus.FieldLogger) *OpenAIUpstream {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OpenAIUpstream{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Logger:  log,
	}
}

func (u *OpenAIUpstream) CreateCall(ctx context.Context, offerSDP string, session SessionConfig) (string, error) {
	const op = "OpenAIUpstream.CreateCall"

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to encode session", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("sdp", offerSDP); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to build request", err)
	}
	if err := mw.WriteField("session", string(sessionJSON)); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to build request", err)
	}
	if err := mw.Close(); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to build request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.BaseURL+"/v1/realtime/calls", &buf)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", utils.E(utils.CodeTimeout, op, "realtime upstream timed out", err)
		}
		return "", utils.Upstream(op, http.StatusBadGateway, "realtime upstream unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", utils.Upstream(op, http.StatusBadGateway, "failed to read upstream answer", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logged := string(body)
		if len(logged) > maxLoggedBody {
			logged = logged[:maxLoggedBody]
		}
		u.Logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   logged,
		}).Warn("realtime upstream rejected call")
		return "", utils.Upstream(op, resp.StatusCode, "realtime upstream rejected the session", fmt.Errorf("status %d", resp.StatusCode))
	}
	return string(body), nil
}
