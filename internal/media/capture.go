package media

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNoDevice is returned when no capture source can be opened.
var ErrNoDevice = errors.New("media: capture device unavailable")

// Capturer acquires an audio-only local track.
type Capturer interface {
	Acquire(ctx context.Context) (*LocalTrack, error)
}

// FFmpegMicrophone captures the system microphone through an ffmpeg child process
// emitting raw s16le.
type FFmpegMicrophone struct {
	Binary      string // default "ffmpeg"
	InputFormat string // avfoundation | alsa | pulse | dshow
	Device      string
	Logger      logrus.FieldLogger
}

func (m *FFmpegMicrophone) Acquire(ctx context.Context) (*LocalTrack, error) {
	bin := m.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format, device := m.InputFormat, m.Device
	if format == "" || device == "" {
		df, dd := defaultInput()
		if format == "" {
			format = df
		}
		if device == "" {
			device = dd
		}
	}

	// The capture outlives the connect call, so it gets its own context.
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, path,
		"-hide_banner",
		"-loglevel", "error",
		"-f", format,
		"-i", device,
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-f", "s16le",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	// Wait may only run once stdout has been drained, so the reader owns it.
	exited := make(chan struct{})
	track := NewLocalTrack("mic-"+uuid.NewString(), func() {
		cancel()
		<-exited
	})

	log := m.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	go func() {
		defer close(exited)
		defer track.Close()
		if err := readPCM(bufio.NewReaderSize(stdout, 64*1024), track.Tee); err != nil && procCtx.Err() == nil {
			log.WithError(err).Warn("microphone capture ended")
		}
		if err := cmd.Wait(); err != nil && procCtx.Err() == nil {
			log.WithError(err).Warn("ffmpeg exited")
		}
		cancel()
	}()
	return track, nil
}

func defaultInput() (format, device string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", "none:0"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

func readPCM(r io.Reader, out *Tee) error {
	buf := make([]byte, FrameSamples*2)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		f := Frame{Samples: make([]int16, FrameSamples)}
		for i := range f.Samples {
			f.Samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
		}
		out.Write(f)
	}
}

// WAVFile plays a 16-bit PCM wav file as if it were a microphone, in real time.
// Once the file runs out the track keeps producing silence unless Loop is set.
type WAVFile struct {
	Path string
	Loop bool
}

func (w *WAVFile) Acquire(ctx context.Context) (*LocalTrack, error) {
	f, err := os.Open(w.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	pcm, err := DecodeWAV(bufio.NewReader(f))
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	samples := pcm.Mono48k()

	stop := make(chan struct{})
	track := NewLocalTrack("wav-"+uuid.NewString(), func() { close(stop) })

	go func() {
		defer track.Close()
		ticker := time.NewTicker(FrameDuration)
		defer ticker.Stop()

		pos := 0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			frame := Silence(FrameSamples)
			if pos < len(samples) {
				pos += copy(frame.Samples, samples[pos:])
			}
			if pos >= len(samples) && w.Loop {
				pos = 0
			}
			track.Write(frame)
		}
	}()
	return track, nil
}
