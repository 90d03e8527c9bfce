package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var ErrUnsupportedWAV = errors.New("media: unsupported wav format")

const (
	// MaxWAVDataBytes bounds the PCM read from one data chunk.
	MaxWAVDataBytes = 256 << 20
	maxFmtChunk     = 1024
	// streamedSize marks a data chunk whose length was unknown when the header was
	// written, as in piped ffmpeg output.
	streamedSize = 0xFFFFFFFF
)

type wavEncoder struct {
	sampleRate int
	channels   int
	pcm        bytes.Buffer
	closed     bool
}

func NewWAVEncoder(sampleRate, channels int) (Encoder, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("media: invalid wav params rate=%d channels=%d", sampleRate, channels)
	}
	return &wavEncoder{sampleRate: sampleRate, channels: channels}, nil
}

func (e *wavEncoder) MimeType() string { return MimeWAV }

func (e *wavEncoder) Write(samples []int16) error {
	if e.closed {
		return errors.New("media: write to closed wav encoder")
	}
	return binary.Write(&e.pcm, binary.LittleEndian, samples)
}

func (e *wavEncoder) Close() ([]byte, error) {
	e.closed = true

	dataLen := uint32(e.pcm.Len())
	blockAlign := uint16(e.channels * 2)
	byteRate := uint32(e.sampleRate) * uint32(blockAlign)

	var out bytes.Buffer
	out.Grow(44 + int(dataLen))
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, 36+dataLen)
	out.WriteString("WAVEfmt ")
	_ = binary.Write(&out, binary.LittleEndian, uint32(16))
	_ = binary.Write(&out, binary.LittleEndian, uint16(1))
	_ = binary.Write(&out, binary.LittleEndian, uint16(e.channels))
	_ = binary.Write(&out, binary.LittleEndian, uint32(e.sampleRate))
	_ = binary.Write(&out, binary.LittleEndian, byteRate)
	_ = binary.Write(&out, binary.LittleEndian, blockAlign)
	_ = binary.Write(&out, binary.LittleEndian, uint16(16))
	out.WriteString("data")
	_ = binary.Write(&out, binary.LittleEndian, dataLen)
	out.Write(e.pcm.Bytes())
	return out.Bytes(), nil
}

// PCM is decoded 16-bit audio with its original layout.
type PCM struct {
	SampleRate int
	Channels   int
	Samples    []int16 // interleaved
}

// DecodeWAV reads a 16-bit little-endian PCM RIFF/WAVE stream.
func DecodeWAV(r io.Reader) (*PCM, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("media: read wav header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, ErrUnsupportedWAV
	}

	var (
		out     PCM
		haveFmt bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, fmt.Errorf("media: wav data chunk not found: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size > maxFmtChunk {
				return nil, fmt.Errorf("%w: fmt chunk of %d bytes", ErrUnsupportedWAV, size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, err
			}
			if size < 16 {
				return nil, ErrUnsupportedWAV
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			bits := binary.LittleEndian.Uint16(body[14:16])
			if format != 1 || bits != 16 {
				return nil, fmt.Errorf("%w: format=%d bits=%d", ErrUnsupportedWAV, format, bits)
			}
			out.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			out.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, ErrUnsupportedWAV
			}
			limit := int64(size)
			if size == 0 || size == streamedSize {
				limit = MaxWAVDataBytes + 1
			} else if size > MaxWAVDataBytes {
				return nil, fmt.Errorf("%w: data chunk of %d bytes", ErrUnsupportedWAV, size)
			}
			data, err := io.ReadAll(io.LimitReader(r, limit))
			if err != nil {
				return nil, fmt.Errorf("media: read wav data: %w", err)
			}
			if len(data) > MaxWAVDataBytes {
				return nil, fmt.Errorf("%w: data exceeds %d bytes", ErrUnsupportedWAV, MaxWAVDataBytes)
			}
			// A header that claims more than the stream holds keeps what is there.
			out.Samples = make([]int16, len(data)/2)
			for i := range out.Samples {
				out.Samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
			}
			return &out, nil
		default:
			if _, err := io.CopyN(io.Discard, r, int64(size)+int64(size%2)); err != nil {
				return nil, err
			}
		}
	}
}

// Mono48k downmixes and resamples (nearest sample) to the system track format.
func (p *PCM) Mono48k() []int16 {
	if p == nil || p.Channels <= 0 || p.SampleRate <= 0 {
		return nil
	}
	frames := len(p.Samples) / p.Channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < p.Channels; c++ {
			sum += int32(p.Samples[i*p.Channels+c])
		}
		mono[i] = int16(sum / int32(p.Channels))
	}
	if p.SampleRate == SampleRate {
		return mono
	}

	n := int(int64(frames) * SampleRate / int64(p.SampleRate))
	out := make([]int16, n)
	for i := range out {
		src := int(int64(i) * int64(p.SampleRate) / SampleRate)
		if src >= frames {
			src = frames - 1
		}
		out[i] = mono[src]
	}
	return out
}
