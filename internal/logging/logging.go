package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Format selects the logrus formatter
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// DefaultComponent is attached to every entry unless overridden
const DefaultComponent = "layercache"

// Options configures the logger
type Options struct {
	Level     string
	Format    Format
	Output    io.Writer
	Component string
}

// New creates a logrus entry for the given options. The returned entry is
// the logging sink handed to the layers package.
func New(opts Options) *logrus.Entry {
	logger := logrus.New()

	if opts.Output != nil {
		logger.SetOutput(opts.Output)
	} else {
		logger.SetOutput(os.Stderr)
	}

	switch opts.Format {
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	level := opts.Level
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	logger.SetLevel(ParseLevel(level))

	component := opts.Component
	if component == "" {
		component = DefaultComponent
	}

	return logger.WithField("component", component)
}

// ParseLevel maps a level name to a logrus level, falling back to info
func ParseLevel(level string) logrus.Level {
	if level == "" {
		return logrus.InfoLevel
	}
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

// ValidFormat reports whether f names a supported formatter
func ValidFormat(f Format) bool {
	return f == "" || f == FormatText || f == FormatJSON
}
