package realtime

import (
	"encoding/json"
	"fmt"
)

// Kind is the protocol-independent meaning of a side-channel message.
type Kind int

const (
	KindUnknown Kind = iota
	KindSessionUpdated
	KindSpeechStarted
	KindSpeechStopped
	KindUserTranscript
	KindOutputItemAdded
	KindAssistantDelta
	KindAssistantDone
	KindOutputItemDone
	KindResponseCreated
	KindAudioDelta
	KindResponseDone
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSessionUpdated:
		return "session_updated"
	case KindSpeechStarted:
		return "speech_started"
	case KindSpeechStopped:
		return "speech_stopped"
	case KindUserTranscript:
		return "user_transcript"
	case KindOutputItemAdded:
		return "output_item_added"
	case KindAssistantDelta:
		return "assistant_delta"
	case KindAssistantDone:
		return "assistant_done"
	case KindOutputItemDone:
		return "output_item_done"
	case KindResponseCreated:
		return "response_created"
	case KindAudioDelta:
		return "audio_delta"
	case KindResponseDone:
		return "response_done"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// kindByType is the only place raw type names appear. Upstream revisions renamed
// several events; every known name for a transition maps to the same kind.
var kindByType = map[string]Kind{
	"session.created": KindSessionUpdated,
	"session.updated": KindSessionUpdated,

	"input_audio_buffer.speech_started": KindSpeechStarted,
	"input_audio_buffer.speech_stopped": KindSpeechStopped,

	"conversation.item.input_audio_transcription.completed": KindUserTranscript,

	"response.output_item.added": KindOutputItemAdded,
	"response.output_item.done":  KindOutputItemDone,

	"response.text.delta":                    KindAssistantDelta,
	"response.output_text.delta":             KindAssistantDelta,
	"response.audio_transcript.delta":        KindAssistantDelta,
	"response.output_audio_transcript.delta": KindAssistantDelta,

	"response.text.done":                    KindAssistantDone,
	"response.output_text.done":             KindAssistantDone,
	"response.audio_transcript.done":        KindAssistantDone,
	"response.output_audio_transcript.done": KindAssistantDone,

	"response.created":            KindResponseCreated,
	"response.audio.delta":        KindAudioDelta,
	"response.output_audio.delta": KindAudioDelta,
	"output_audio_buffer.started": KindAudioDelta,
	"response.done":               KindResponseDone,

	"error": KindError,
}

// KindOf returns the kind for a raw type string.
func KindOf(rawType string) Kind {
	return kindByType[rawType]
}

// Event is a normalized server event.
type Event struct {
	Kind       Kind
	Type       string
	ItemID     string
	ResponseID string
	ItemType   string
	Role       string
	Text       string
	Err        *ProtocolError
}

type wireEvent struct {
	Type       string `json:"type"`
	ItemID     string `json:"item_id"`
	ResponseID string `json:"response_id"`
	Delta      string `json:"delta"`
	Text       string `json:"text"`
	Transcript string `json:"transcript"`
	Item       *struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Role string `json:"role"`
	} `json:"item"`
	Response *struct {
		ID string `json:"id"`
	} `json:"response"`
	Error *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Param   string `json:"param"`
	} `json:"error"`
}

// Decode parses one side-channel message. Malformed JSON is an error; a well-formed
// message of an unrecognised type decodes to KindUnknown.
func Decode(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("realtime: decode event: %w", err)
	}

	ev := Event{
		Kind:       KindOf(w.Type),
		Type:       w.Type,
		ItemID:     w.ItemID,
		ResponseID: w.ResponseID,
	}
	if w.Item != nil {
		if ev.ItemID == "" {
			ev.ItemID = w.Item.ID
		}
		ev.ItemType = w.Item.Type
		ev.Role = w.Item.Role
	}
	if w.Response != nil && ev.ResponseID == "" {
		ev.ResponseID = w.Response.ID
	}

	switch ev.Kind {
	case KindAssistantDelta:
		ev.Text = w.Delta
	case KindAssistantDone:
		ev.Text = firstNonEmpty(w.Transcript, w.Text)
	case KindUserTranscript:
		ev.Text = firstNonEmpty(w.Transcript, w.Text)
	case KindError:
		ev.Err = &ProtocolError{Message: "unknown upstream error"}
		if w.Error != nil {
			ev.Err = &ProtocolError{
				Type:    w.Error.Type,
				Code:    w.Error.Code,
				Message: w.Error.Message,
				Param:   w.Error.Param,
			}
		}
	}
	return ev, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
