package realtime

import "github.com/pion/webrtc/v4"

type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusFailed       Status = "failed"
	StatusClosed       Status = "closed"
)

// Terminal states all allow a fresh Connect.
func (s Status) Terminal() bool {
	return s == StatusDisconnected || s == StatusFailed || s == StatusClosed
}

// State is what the UI renders. Listening and Speaking mirror the upstream and are
// not forced to be exclusive.
type State struct {
	Status    Status `json:"status"`
	Err       string `json:"error,omitempty"`
	Listening bool   `json:"listening"`
	Speaking  bool   `json:"speaking"`
	Recording bool   `json:"recording"`
}

type Action interface{ isAction() }

type (
	ConnectStarted   struct{}
	TransportChanged struct{ Status Status }
	EventReceived    struct{ Event Event }
	Failed           struct{ Err error }
	Disconnected     struct{}
	Interrupted      struct{}
	RecordingChanged struct{ On bool }
)

func (ConnectStarted) isAction()   {}
func (TransportChanged) isAction() {}
func (EventReceived) isAction()    {}
func (Failed) isAction()           {}
func (Disconnected) isAction()     {}
func (Interrupted) isAction()      {}
func (RecordingChanged) isAction() {}

// Reduce is the session transition function.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case ConnectStarted:
		return State{Status: StatusConnecting}

	case TransportChanged:
		s.Status = a.Status
		if a.Status != StatusConnected {
			s.Listening, s.Speaking = false, false
		}
		if a.Status.Terminal() {
			s.Recording = false
		}
		if a.Status == StatusFailed && s.Err == "" {
			s.Err = "transport failed"
		}
		return s

	case EventReceived:
		switch a.Event.Kind {
		case KindSpeechStarted:
			s.Listening = true
		case KindSpeechStopped:
			s.Listening = false
		case KindResponseCreated, KindAudioDelta:
			s.Speaking = true
		case KindResponseDone:
			s.Speaking = false
		case KindError:
			if a.Event.Err != nil {
				s.Err = a.Event.Err.Error()
			}
		}
		return s

	case Failed:
		s.Status = StatusFailed
		if a.Err != nil {
			s.Err = a.Err.Error()
		}
		s.Listening, s.Speaking, s.Recording = false, false, false
		return s

	case Disconnected:
		if s.Status != StatusIdle && s.Status != StatusFailed {
			s.Status = StatusDisconnected
		}
		s.Listening, s.Speaking, s.Recording = false, false, false
		return s

	case Interrupted:
		s.Speaking = false
		return s

	case RecordingChanged:
		s.Recording = a.On
		return s
	}
	return s
}

// transportStatus maps the peer connection's own state signal. New carries no
// information and is skipped.
func transportStatus(st webrtc.PeerConnectionState) (Status, bool) {
	switch st {
	case webrtc.PeerConnectionStateConnecting:
		return StatusConnecting, true
	case webrtc.PeerConnectionStateConnected:
		return StatusConnected, true
	case webrtc.PeerConnectionStateDisconnected:
		return StatusDisconnected, true
	case webrtc.PeerConnectionStateFailed:
		return StatusFailed, true
	case webrtc.PeerConnectionStateClosed:
		return StatusClosed, true
	default:
		return "", false
	}
}
