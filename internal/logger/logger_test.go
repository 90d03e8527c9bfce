package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.TraceLevel, ParseLevel("trace"))
	assert.Equal(t, logrus.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, logrus.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, logrus.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel(""))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("loud"))
}

func TestNewWithWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWith(&buf, "warn", "voice-agent")

	l.Info("hidden")
	l.WithField("meeting_id", "m1").Warn("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "m1", entry["meeting_id"])
	assert.Equal(t, "voice-agent", entry["service"])
}
