package logger

import (
	"fmt"
	"os"

	"github.com/rollbar/rollbar-go"
	rollbarerrors "github.com/rollbar/rollbar-go/errors"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Level        string
	RollbarToken string
	Environment  string
}

func PrepareLogger(config Config) error {
	level, err := log.ParseLevel(config.Level)
	if err != nil {
		return fmt.Errorf("failed to parse log level %q: %w", config.Level, err)
	}
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(level)

	if config.RollbarToken != "" {
		log.AddHook(NewRollbarHook(config))
	}
	return nil
}

// RollbarHook forwards warnings and errors to Rollbar.
type RollbarHook struct {
	levels []log.Level
}

func NewRollbarHook(config Config) *RollbarHook {
	rollbar.SetToken(config.RollbarToken)
	rollbar.SetEnvironment(config.Environment)
	rollbar.SetStackTracer(rollbarerrors.StackTracer)
	return &RollbarHook{levels: []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel}}
}

func (h *RollbarHook) Levels() []log.Level {
	return h.levels
}

func (h *RollbarHook) Fire(entry *log.Entry) error {
	args := rollbarArgs(entry)
	switch entry.Level {
	case log.PanicLevel, log.FatalLevel:
		rollbar.Critical(args...)
	case log.ErrorLevel:
		rollbar.Error(args...)
	default:
		rollbar.Warning(args...)
	}
	return nil
}

// rollbarArgs puts the logged error first when there is one, so Rollbar groups by it.
func rollbarArgs(entry *log.Entry) []interface{} {
	extras := make(map[string]interface{}, len(entry.Data))
	var cause error
	for k, v := range entry.Data {
		if err, ok := v.(error); ok && k == log.ErrorKey {
			cause = err
			continue
		}
		extras[k] = v
	}
	if cause != nil {
		extras["message"] = entry.Message
		return []interface{}{cause, extras}
	}
	return []interface{}{entry.Message, extras}
}
