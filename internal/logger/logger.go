package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the JSON stdout logger, leveled by LOG_LEVEL.
func New() *logrus.Logger {
	return NewWith(os.Stdout, os.Getenv("LOG_LEVEL"), "")
}

// NewWith is New with an explicit sink and level. A non-empty service is attached to
// every entry.
func NewWith(out io.Writer, level, service string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(ParseLevel(level))
	if service != "" {
		l.AddHook(serviceHook(service))
	}
	return l
}

// ParseLevel maps trace|debug|info|warn|error to a level; anything else is info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

type serviceHook string

func (serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h serviceHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["service"]; !ok {
		e.Data["service"] = string(h)
	}
	return nil
}
