package media

import (
	"bytes"
	"encoding/binary"
)

const (
	MimeWebM = "audio/webm"
	MimeMP3  = "audio/mpeg"
)

// Sniff names the container of an audio blob from its leading bytes, or returns ""
// when the format is not one this system handles.
func Sniff(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return MimeWAV
	case bytes.HasPrefix(data, []byte("OggS")):
		return MimeOggOpus
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return MimeWebM
	case bytes.HasPrefix(data, []byte("ID3")), len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return MimeMP3
	default:
		return ""
	}
}

// WAVSampleRate reads the rate from a canonical 44-byte header. It returns 0 when the
// header is not there.
func WAVSampleRate(data []byte) int {
	if Sniff(data) != MimeWAV || len(data) < 28 || string(data[12:16]) != "fmt " {
		return 0
	}
	return int(binary.LittleEndian.Uint32(data[24:28]))
}
