// Package opus binds libopus to the media package: packet codecs for the WebRTC
// audio path and an Ogg/Opus recording codec.
package opus

import (
	"bytes"
	"errors"
	"fmt"

	libopus "github.com/hraban/opus"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"

	"github.com/yoockh/yoomeet/internal/media"
)

const maxPacketBytes = 4000

type Encoder struct {
	enc *libopus.Encoder
	buf []byte
}

func NewEncoder() (*Encoder, error) {
	enc, err := libopus.NewEncoder(media.SampleRate, media.Channels, libopus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus: new encoder: %w", err)
	}
	return &Encoder{enc: enc, buf: make([]byte, maxPacketBytes)}, nil
}

func (e *Encoder) Encode(f media.Frame) ([]byte, error) {
	if len(f.Samples) != media.FrameSamples {
		return nil, fmt.Errorf("opus: frame has %d samples, want %d", len(f.Samples), media.FrameSamples)
	}
	n, err := e.enc.Encode(f.Samples, e.buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, e.buf[:n])
	return out, nil
}

type Decoder struct {
	dec *libopus.Decoder
	pcm []int16
}

func NewDecoder() (*Decoder, error) {
	dec, err := libopus.NewDecoder(media.SampleRate, media.Channels)
	if err != nil {
		return nil, fmt.Errorf("opus: new decoder: %w", err)
	}
	// 120 ms is the largest opus frame.
	return &Decoder{dec: dec, pcm: make([]int16, media.SampleRate/1000*120)}, nil
}

func (d *Decoder) Decode(payload []byte) (media.Frame, error) {
	n, err := d.dec.Decode(payload, d.pcm)
	if err != nil {
		return media.Frame{}, err
	}
	out := make([]int16, n)
	copy(out, d.pcm[:n])
	return media.Frame{Samples: out}, nil
}

// PacketEncoder and PacketDecoder adapt the constructors to the factory shape the
// realtime transport expects.
func PacketEncoder() (media.PacketEncoder, error) { return NewEncoder() }

func PacketDecoder() (media.PacketDecoder, error) { return NewDecoder() }

// Codec is the Ogg/Opus recording codec.
func Codec() media.Codec {
	return media.Codec{MimeType: media.MimeOggOpus, New: newOggEncoder}
}

// Register makes Ogg/Opus available to recordings made through reg.
func Register(reg *media.Registry) {
	reg.Register(Codec())
}

type oggEncoder struct {
	enc     *Encoder
	out     bytes.Buffer
	w       *oggwriter.OggWriter
	pending []int16
	seq     uint16
	ts      uint32
	closed  bool
}

func newOggEncoder(sampleRate, channels int) (media.Encoder, error) {
	if sampleRate != media.SampleRate || channels != media.Channels {
		return nil, fmt.Errorf("opus: ogg recording needs %d Hz mono, got %d Hz x%d", media.SampleRate, sampleRate, channels)
	}
	enc, err := NewEncoder()
	if err != nil {
		return nil, err
	}
	e := &oggEncoder{enc: enc}
	w, err := oggwriter.NewWith(&e.out, uint32(sampleRate), uint16(channels))
	if err != nil {
		return nil, err
	}
	e.w = w
	return e, nil
}

func (e *oggEncoder) MimeType() string { return media.MimeOggOpus }

func (e *oggEncoder) Write(samples []int16) error {
	if e.closed {
		return errors.New("opus: write to closed ogg encoder")
	}
	e.pending = append(e.pending, samples...)
	for len(e.pending) >= media.FrameSamples {
		if err := e.writeFrame(e.pending[:media.FrameSamples]); err != nil {
			return err
		}
		e.pending = e.pending[media.FrameSamples:]
	}
	return nil
}

func (e *oggEncoder) writeFrame(samples []int16) error {
	pkt, err := e.enc.Encode(media.Frame{Samples: samples})
	if err != nil {
		return err
	}
	err = e.w.WriteRTP(&rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			SequenceNumber: e.seq,
			Timestamp:      e.ts,
		},
		Payload: pkt,
	})
	e.seq++
	e.ts += media.FrameSamples
	return err
}

func (e *oggEncoder) Close() ([]byte, error) {
	if e.closed {
		return e.out.Bytes(), nil
	}
	e.closed = true
	if len(e.pending) > 0 {
		last := make([]int16, media.FrameSamples)
		copy(last, e.pending)
		e.pending = nil
		if err := e.writeFrame(last); err != nil {
			return nil, err
		}
	}
	if err := e.w.Close(); err != nil {
		return nil, err
	}
	return e.out.Bytes(), nil
}
