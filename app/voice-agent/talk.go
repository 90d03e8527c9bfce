package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yoockh/yoomeet/internal/logger"
	"github.com/yoockh/yoomeet/internal/media"
	"github.com/yoockh/yoomeet/internal/media/opus"
	"github.com/yoockh/yoomeet/internal/realtime"
)

func newTalkCmd(v *viper.Viper, talk talkFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "talk",
		Short: "Open a session, speak from the microphone or a wav file, print the transcript",
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := loadOptions(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return talk(ctx, o, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("meeting", "", "meeting id; the transcript is handed off when the session ends")
	f.String("input", "mic", `"mic" or the path of a 16-bit PCM wav file`)
	f.String("record", "", "write the mixed recording to this path")
	f.StringSlice("say", nil, "text message to inject after connecting (repeatable)")
	f.Duration("duration", 0, "end the session after this long (0 waits for Ctrl-C)")
	f.Duration("interrupt-after", 0, "cancel the agent's answer once after this long (0 never)")
	for _, name := range []string{"meeting", "input", "record", "say", "duration", "interrupt-after"} {
		_ = v.BindPFlag(name, f.Lookup(name))
	}
	return cmd
}

func capturer(o options, log logrus.FieldLogger) media.Capturer {
	if o.Input == "mic" {
		return &media.FFmpegMicrophone{Logger: log}
	}
	return &media.WAVFile{Path: o.Input}
}

func newManager(o options, log *logrus.Logger, out io.Writer) *realtime.Manager {
	codecs := media.NewRegistry()
	opus.Register(codecs)

	var handoff realtime.Handoff
	if o.Meeting != "" {
		handoff = &realtime.HTTPHandoff{BaseURL: o.Server, Token: o.Token}
	}

	var (
		mu      sync.Mutex
		printed int
	)
	return realtime.NewManager(realtime.Config{
		Signaler: &realtime.HTTPSignaler{BaseURL: o.Server, Token: o.Token},
		Capturer: capturer(o, log),
		NewPeer: realtime.NewPionPeer(realtime.PionConfig{
			NewEncoder: opus.PacketEncoder,
			NewDecoder: opus.PacketDecoder,
			Logger:     log,
		}),
		Player:    &media.CommandPlayer{Logger: log},
		Handoff:   handoff,
		MeetingID: o.Meeting,
		AgentID:   o.Agent,
		Codecs:    codecs,
		Observer: realtime.Observer{
			OnStateChange: func(s realtime.State) {
				log.WithFields(logrus.Fields{"status": s.Status, "listening": s.Listening, "speaking": s.Speaking}).Debug("state")
			},
			OnTranscript: func(turns []realtime.Turn) {
				mu.Lock()
				defer mu.Unlock()
				// print each turn once, when it is final
				for printed < len(turns) && turns[printed].Final {
					fmt.Fprintf(out, "%s: %s\n", turns[printed].Role, turns[printed].Content)
					printed++
				}
			},
			OnError: func(err error) { log.WithError(err).Error("session error") },
		},
		Logger: log,
	})
}

func runTalk(ctx context.Context, o options, out io.Writer) error {
	log := logger.NewWith(os.Stderr, o.LogLevel, "voice-agent")
	m := newManager(o, log, out)

	if err := m.Connect(ctx); err != nil {
		return err
	}
	defer m.Disconnect()

	if o.Record != "" {
		if err := m.StartRecordingWithRetry(ctx); err != nil {
			log.WithError(err).Warn("recording not started")
		}
	}

	if err := say(ctx, m, o.Say); err != nil {
		return err
	}

	var timeout <-chan time.Time
	if o.Duration > 0 {
		timer := time.NewTimer(o.Duration)
		defer timer.Stop()
		timeout = timer.C
	}

	var interrupt <-chan time.Time
	if o.InterruptAfter > 0 {
		timer := time.NewTimer(o.InterruptAfter)
		defer timer.Stop()
		interrupt = timer.C
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-timeout:
			break wait
		case <-interrupt:
			if err := m.Interrupt(); err != nil {
				log.WithError(err).Warn("interrupt failed")
			}
		case <-ticker.C:
			if m.State().Status.Terminal() {
				break wait
			}
		}
	}

	if o.Record != "" {
		art := m.StopRecording()
		if art == nil {
			art = m.LastRecording()
		}
		if err := writeArtifact(o.Record, art); err != nil {
			return err
		}
	}

	if st := m.State(); st.Status == realtime.StatusFailed {
		return fmt.Errorf("session failed: %s", st.Err)
	}
	return nil
}

// texter is the part of the session manager used to inject typed messages.
type texter interface {
	WaitReady(ctx context.Context) error
	SendText(text string) error
}

// say sends each non-blank text once the side channel is ready.
func say(ctx context.Context, m texter, texts []string) error {
	var pending []string
	for _, text := range texts {
		if strings.TrimSpace(text) != "" {
			pending = append(pending, text)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if err := m.WaitReady(ctx); err != nil {
		return fmt.Errorf("side channel not ready: %w", err)
	}
	for _, text := range pending {
		if err := m.SendText(text); err != nil {
			return err
		}
	}
	return nil
}

func writeArtifact(path string, art *media.Artifact) error {
	if art == nil || len(art.Data) == 0 {
		return fmt.Errorf("no recording to write")
	}
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	return nil
}
