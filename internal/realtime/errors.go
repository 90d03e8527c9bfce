package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrRecorderUnavailable means one of the two tracks is not attached yet. Callers
	// retry; it is not exceptional.
	ErrRecorderUnavailable = errors.New("realtime: recorder tracks not ready")
	ErrNotConnected        = errors.New("realtime: not connected")
	ErrConnectAborted      = errors.New("realtime: connect aborted by disconnect")
)

// MediaAcquisitionError: the local microphone is missing or was denied.
type MediaAcquisitionError struct {
	Err error
}

func (e *MediaAcquisitionError) Error() string {
	return fmt.Sprintf("media acquisition failed: %v", e.Err)
}

func (e *MediaAcquisitionError) Unwrap() error { return e.Err }

// SignalingError: the relay answered non-2xx or could not be reached. Status is zero
// for network failures.
type SignalingError struct {
	Status  int
	Message string
	Err     error
}

func (e *SignalingError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("signaling failed (%d): %s", e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("signaling failed (%d)", e.Status)
	case e.Err != nil:
		return fmt.Sprintf("signaling failed: %v", e.Err)
	default:
		return "signaling failed"
	}
}

func (e *SignalingError) Unwrap() error { return e.Err }

// TransportError: the peer connection could not be built or reported failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport " + e.Op
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is an error event sent by the upstream. The connection stays open.
type ProtocolError struct {
	Type    string
	Code    string
	Message string
	Param   string
}

func (e *ProtocolError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "upstream error"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	return msg
}
