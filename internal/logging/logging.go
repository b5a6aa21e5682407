// Package logging builds the logrus logger shared by the CLI and the pipeline.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Options selects level, format and destination of log output
type Options struct {
	Level   string // trace, debug, info, warn, error
	Format  string // text, json, raw
	Output  io.Writer
	NoColor bool
}

// RawFormatter prints only the message
type RawFormatter struct{}

func (RawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

// New creates a logger writing to opts.Output, stderr when unset
func New(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	if opts.Level != "" {
		level, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		logger.SetLevel(level)
	}

	switch opts.Format {
	case "raw":
		logger.SetFormatter(RawFormatter{})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		tty := false
		if f, ok := out.(*os.File); ok {
			tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
		logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   tty && !opts.NoColor,
			DisableColors: opts.NoColor || !tty,
			FullTimestamp: true,
		})
	default:
		return nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}

	logger.Debugf("Logger format: %s", opts.Format)
	return logger, nil
}

// Discard returns a logger that drops everything
func Discard() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// OrDiscard returns l, or a discarding logger when l is nil
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}
