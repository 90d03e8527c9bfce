package media

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

const (
	MimeWebMOpus = "audio/webm;codecs=opus"
	MimeOggOpus  = "audio/ogg;codecs=opus"
	MimeWAV      = "audio/wav"
)

// DefaultPreferences is the recording format order tried by Registry.NewEncoder.
var DefaultPreferences = []string{MimeWebMOpus, MimeOggOpus, MimeWAV}

// Encoder turns PCM into a finished container. Close flushes anything still buffered.
type Encoder interface {
	MimeType() string
	Write(samples []int16) error
	Close() ([]byte, error)
}

// PacketEncoder compresses one frame into one network packet.
type PacketEncoder interface {
	Encode(f Frame) ([]byte, error)
}

// PacketDecoder expands one network packet back into PCM.
type PacketDecoder interface {
	Decode(payload []byte) (Frame, error)
}

type Codec struct {
	MimeType string
	New      func(sampleRate, channels int) (Encoder, error)
}

// Registry holds the recording codecs available in this build. WAV is always present.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[string]Codec)}
	r.Register(Codec{MimeType: MimeWAV, New: NewWAVEncoder})
	return r
}

func (r *Registry) Register(c Codec) {
	if c.MimeType == "" || c.New == nil {
		return
	}
	r.mu.Lock()
	r.codecs[normalizeMime(c.MimeType)] = c
	r.mu.Unlock()
}

func (r *Registry) Supported(mime string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.codecs[normalizeMime(mime)]
	return ok
}

// NewEncoder walks prefs in order and returns the first codec that is registered and
// constructs cleanly, ending at WAV when nothing preferred is usable.
func (r *Registry) NewEncoder(prefs []string, sampleRate, channels int) (Encoder, error) {
	var errs []error
	for _, mime := range prefs {
		r.mu.RLock()
		c, ok := r.codecs[normalizeMime(mime)]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		enc, err := c.New(sampleRate, channels)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mime, err))
			continue
		}
		return enc, nil
	}

	enc, err := NewWAVEncoder(sampleRate, channels)
	if err != nil {
		errs = append(errs, err)
		return nil, errors.Join(errs...)
	}
	return enc, nil
}

func normalizeMime(m string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(m)), " ", "")
}
