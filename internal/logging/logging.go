package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	rootOnce sync.Once
	root     *logrus.Logger
)

// Root returns the process-wide logrus logger, initialized once from LOG_LEVEL
// with the human-readable text formatter; SetOutputFormat switches the format
// per the mq_log config knob.
func Root() *logrus.Logger {
	rootOnce.Do(func() {
		root = logrus.New()
		root.SetLevel(levelFromEnv())
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	})
	return root
}

// levelFromEnv maps the LOG_LEVEL environment variable to a logrus level,
// defaulting to Info when unset or unrecognized.
func levelFromEnv() logrus.Level {
	lvl, err := logrus.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// SetOutputFormat switches the root logger between "json" and "pretty" output,
// used when a filter's mq_log config differs from the process default.
func SetOutputFormat(mode string) {
	switch mode {
	case "json":
		Root().SetFormatter(&logrus.JSONFormatter{})
	case "off":
		Root().SetOutput(io.Discard)
	default:
		Root().SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// ForFilter returns a logger entry tagged with the given filter id, so every
// log line a worker emits carries its identity per the runner's shutdown report.
func ForFilter(filterID string) *logrus.Entry {
	return Root().WithField("filter_id", filterID)
}
