package realtime

import "encoding/json"

// TurnDetection is sent after the channel opens; the upstream rejects it during the
// initial offer exchange.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
}

type TranscriptionConfig struct {
	Model         string
	Language      string
	TurnDetection *TurnDetection
}

func (c TranscriptionConfig) withDefaults() TranscriptionConfig {
	if c.Model == "" {
		c.Model = "whisper-1"
	}
	if c.TurnDetection == nil {
		c.TurnDetection = &TurnDetection{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMS:   300,
			SilenceDurationMS: 500,
		}
	}
	return c
}

type clientEvent struct {
	Type    string            `json:"type"`
	Session *sessionPatch     `json:"session,omitempty"`
	Item    *conversationItem `json:"item,omitempty"`
}

type sessionPatch struct {
	Type  string       `json:"type"`
	Audio sessionAudio `json:"audio"`
}

type sessionAudio struct {
	Input audioInput `json:"input"`
}

type audioInput struct {
	Transcription transcription  `json:"transcription"`
	TurnDetection *TurnDetection `json:"turn_detection,omitempty"`
}

type transcription struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type conversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []itemContent `json:"content"`
}

type itemContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func encodeSessionUpdate(cfg TranscriptionConfig) ([]byte, error) {
	cfg = cfg.withDefaults()
	return json.Marshal(clientEvent{
		Type: "session.update",
		Session: &sessionPatch{
			Type: "realtime",
			Audio: sessionAudio{Input: audioInput{
				Transcription: transcription{Model: cfg.Model, Language: cfg.Language},
				TurnDetection: cfg.TurnDetection,
			}},
		},
	})
}

// encodeUserText returns the item-create and response-create pair.
func encodeUserText(text string) ([][]byte, error) {
	item, err := json.Marshal(clientEvent{
		Type: "conversation.item.create",
		Item: &conversationItem{
			Type:    "message",
			Role:    string(RoleUser),
			Content: []itemContent{{Type: "input_text", Text: text}},
		},
	})
	if err != nil {
		return nil, err
	}
	resp, err := json.Marshal(clientEvent{Type: "response.create"})
	if err != nil {
		return nil, err
	}
	return [][]byte{item, resp}, nil
}

func encodeResponseCancel() []byte {
	b, _ := json.Marshal(clientEvent{Type: "response.cancel"})
	return b
}
