package realtime

import (
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

func TestReduceLifecycle(t *testing.T) {
	s := State{Status: StatusIdle}
	s = Reduce(s, ConnectStarted{})
	assert.Equal(t, StatusConnecting, s.Status)

	s = Reduce(s, TransportChanged{Status: StatusConnected})
	assert.Equal(t, StatusConnected, s.Status)

	s = Reduce(s, EventReceived{Event: Event{Kind: KindSpeechStarted}})
	assert.True(t, s.Listening)
	s = Reduce(s, EventReceived{Event: Event{Kind: KindSpeechStopped}})
	assert.False(t, s.Listening)

	s = Reduce(s, EventReceived{Event: Event{Kind: KindResponseCreated}})
	assert.True(t, s.Speaking)
	s = Reduce(s, EventReceived{Event: Event{Kind: KindAudioDelta}})
	assert.True(t, s.Speaking)
	s = Reduce(s, EventReceived{Event: Event{Kind: KindResponseDone}})
	assert.False(t, s.Speaking)

	s = Reduce(s, Disconnected{})
	assert.Equal(t, StatusDisconnected, s.Status)
}

func TestReduceInterruptClearsSpeaking(t *testing.T) {
	s := State{Status: StatusConnected, Speaking: true}
	s = Reduce(s, Interrupted{})
	assert.False(t, s.Speaking)
	assert.Equal(t, StatusConnected, s.Status)
}

func TestReduceProtocolErrorKeepsConnection(t *testing.T) {
	s := State{Status: StatusConnected}
	s = Reduce(s, EventReceived{Event: Event{Kind: KindError, Err: &ProtocolError{Message: "bad"}}})
	assert.Equal(t, StatusConnected, s.Status)
	assert.Equal(t, "bad", s.Err)
}

func TestReduceFailureIsRestartable(t *testing.T) {
	s := State{Status: StatusConnected, Speaking: true, Recording: true}
	s = Reduce(s, Failed{Err: errors.New("boom")})
	assert.Equal(t, State{Status: StatusFailed, Err: "boom"}, s)
	assert.True(t, s.Status.Terminal())

	s = Reduce(s, Disconnected{})
	assert.Equal(t, StatusFailed, s.Status)

	s = Reduce(s, ConnectStarted{})
	assert.Equal(t, State{Status: StatusConnecting}, s)
}

func TestReduceTransportLossClearsFlags(t *testing.T) {
	s := State{Status: StatusConnected, Listening: true, Recording: true}
	s = Reduce(s, TransportChanged{Status: StatusDisconnected})
	assert.Equal(t, State{Status: StatusDisconnected}, s)
}

func TestReduceDisconnectFromIdle(t *testing.T) {
	assert.Equal(t, StatusIdle, Reduce(State{Status: StatusIdle}, Disconnected{}).Status)
}

func TestTransportStatus(t *testing.T) {
	_, ok := transportStatus(webrtc.PeerConnectionStateNew)
	assert.False(t, ok)

	st, ok := transportStatus(webrtc.PeerConnectionStateFailed)
	assert.True(t, ok)
	assert.Equal(t, StatusFailed, st)
}
