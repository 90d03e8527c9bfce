package main

import (
	"context"
	"errors"
	"io"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// options is everything the talk command needs, after flags, env and config file are
// merged.
type options struct {
	Server         string
	Token          string
	Agent          string
	Meeting        string
	Input          string
	Record         string
	Say            []string
	Duration       time.Duration
	InterruptAfter time.Duration // cancels the agent's answer once
	LogLevel       string
}

type talkFunc func(ctx context.Context, o options, out io.Writer) error

func newRootCmd() *cobra.Command { return newRootCmdWith(runTalk) }

func newRootCmdWith(talk talkFunc) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("YOOMEET")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var cfgFile string
	rootCmd := &cobra.Command{
		Use:           "voice-agent",
		Short:         "Talk to a yoomeet agent over a realtime voice session",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfgFile == "" {
				return nil
			}
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	pf.String("server", "http://localhost:8080", "yoomeet server base URL")
	pf.String("token", "", "bearer token for the server")
	pf.String("agent", "", "agent id to talk to")
	pf.String("log-level", "info", "trace|debug|info|warn|error")
	for _, name := range []string{"server", "token", "agent", "log-level"} {
		_ = v.BindPFlag(name, pf.Lookup(name))
	}

	rootCmd.AddCommand(newTalkCmd(v, talk))
	return rootCmd
}

func loadOptions(v *viper.Viper) (options, error) {
	o := options{
		Server:   strings.TrimRight(strings.TrimSpace(v.GetString("server")), "/"),
		Token:    v.GetString("token"),
		Agent:    v.GetString("agent"),
		Meeting:  v.GetString("meeting"),
		Input:    v.GetString("input"),
		Record:   v.GetString("record"),
		Say:      v.GetStringSlice("say"),
		Duration: v.GetDuration("duration"),
		LogLevel: v.GetString("log-level"),

		InterruptAfter: v.GetDuration("interrupt-after"),
	}
	if o.Server == "" {
		return o, errors.New("--server is required")
	}
	if u, err := url.Parse(o.Server); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return o, fmt.Errorf("invalid --server %q", o.Server)
	}
	if o.Duration < 0 || o.InterruptAfter < 0 {
		return o, errors.New("--duration and --interrupt-after must not be negative")
	}
	if o.Input == "" {
		o.Input = "mic"
	}
	return o, nil
}
