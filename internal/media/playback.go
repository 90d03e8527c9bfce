package media

import (
	"bufio"
	"context"
	"encoding/binary"
	"os/exec"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Player renders a track to the local speakers. The returned func stops playback.
type Player interface {
	Play(t Track) (stop func())
}

// CommandPlayer pipes raw s16le into the first available of ffplay or aplay.
type CommandPlayer struct {
	Logger logrus.FieldLogger
}

func (p *CommandPlayer) Play(t Track) func() {
	log := p.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := playbackCommand(ctx)
	if cmd == nil {
		cancel()
		log.Warn("no audio player found (ffplay/aplay); remote audio will not be played")
		return func() {}
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		log.WithError(err).Warn("playback pipe failed")
		return func() {}
	}
	if err := cmd.Start(); err != nil {
		cancel()
		log.WithError(err).Warn("playback start failed")
		return func() {}
	}

	frames, unsubscribe := t.Subscribe()
	go func() {
		w := bufio.NewWriter(stdin)
		defer func() {
			_ = w.Flush()
			_ = stdin.Close()
			_ = cmd.Wait()
		}()
		for f := range frames {
			if err := binary.Write(w, binary.LittleEndian, f.Samples); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}()

	return func() {
		unsubscribe()
		cancel()
	}
}

func playbackCommand(ctx context.Context) *exec.Cmd {
	rate := strconv.Itoa(SampleRate)
	if path, err := exec.LookPath("ffplay"); err == nil {
		return exec.CommandContext(ctx, path, "-hide_banner", "-loglevel", "error",
			"-f", "s16le", "-ar", rate, "-ac", "1", "-nodisp", "-autoexit", "-")
	}
	if path, err := exec.LookPath("aplay"); err == nil {
		return exec.CommandContext(ctx, path, "-q", "-f", "S16_LE", "-r", rate, "-c", "1", "-")
	}
	return nil
}
