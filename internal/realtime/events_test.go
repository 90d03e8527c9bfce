package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAliasesShareKind(t *testing.T) {
	for _, raw := range []string{
		`{"type":"response.audio_transcript.delta","item_id":"it1","delta":"he"}`,
		`{"type":"response.output_audio_transcript.delta","item_id":"it1","delta":"he"}`,
		`{"type":"response.text.delta","item_id":"it1","delta":"he"}`,
	} {
		ev, err := Decode([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, KindAssistantDelta, ev.Kind, raw)
		assert.Equal(t, "he", ev.Text)
		assert.Equal(t, "it1", ev.ItemID)
	}
}

func TestDecodeOutputItem(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"response.output_item.added","response_id":"r1","item":{"id":"item_9","type":"message","role":"assistant"}}`))
	require.NoError(t, err)
	assert.Equal(t, KindOutputItemAdded, ev.Kind)
	assert.Equal(t, "item_9", ev.ItemID)
	assert.Equal(t, "message", ev.ItemType)
	assert.Equal(t, "assistant", ev.Role)
	assert.Equal(t, "r1", ev.ResponseID)
}

func TestDecodeUserTranscript(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"conversation.item.input_audio_transcription.completed","item_id":"u1","transcript":"hello there"}`))
	require.NoError(t, err)
	assert.Equal(t, KindUserTranscript, ev.Kind)
	assert.Equal(t, "hello there", ev.Text)
}

func TestDecodeError(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"error","error":{"type":"invalid_request_error","code":"bad_param","message":"nope"}}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Err)
	assert.Equal(t, KindError, ev.Kind)
	assert.Equal(t, "nope (bad_param)", ev.Err.Error())
}

func TestDecodeUnknownAndMalformed(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"rate_limits.updated","rate_limits":[]}`))
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, ev.Kind)
	assert.Equal(t, "rate_limits.updated", ev.Type)

	_, err = Decode([]byte(`{"type":`))
	assert.Error(t, err)
}
