package media

import "time"

// Every track in the system carries mono signed 16-bit PCM at 48 kHz in 20 ms frames,
// which is what Opus over WebRTC decodes to natively.
const (
	SampleRate    = 48000
	Channels      = 1
	FrameDuration = 20 * time.Millisecond
	FrameSamples  = SampleRate / 50
)

type Frame struct {
	Samples []int16
}

// Silence returns a zeroed frame of n samples.
func Silence(n int) Frame {
	return Frame{Samples: make([]int16, n)}
}

// Track is a live PCM stream that may be read by several consumers at once.
type Track interface {
	ID() string
	// Subscribe returns a channel of frames and a cancel func. The channel is closed
	// when the track ends or the subscription is cancelled.
	Subscribe() (<-chan Frame, func())
	Done() <-chan struct{}
}

// Ended reports whether t has finished producing frames.
func Ended(t Track) bool {
	if t == nil {
		return true
	}
	select {
	case <-t.Done():
		return true
	default:
		return false
	}
}

// Artifact is a finished recording.
type Artifact struct {
	MimeType string
	Data     []byte
	Duration time.Duration
}
