// Package logging builds the logrus logger used for diagnostics.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	Level  string    // logrus level name; empty means info
	Format string    // "text", "json" or "auto"; empty means auto
	Out    io.Writer // defaults to os.Stderr
}

// New returns a logger writing to opts.Out. The auto format is colored
// text on a terminal and JSON otherwise.
func New(opts Options) (*log.Logger, error) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level := log.InfoLevel
	if opts.Level != "" {
		l, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		level = l
	}

	logger := log.New()
	logger.SetOutput(out)
	logger.SetLevel(level)

	switch opts.Format {
	case "", "auto":
		if IsTerminal(out) {
			logger.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
		} else {
			logger.SetFormatter(&log.JSONFormatter{})
		}
	case "text":
		logger.SetFormatter(&log.TextFormatter{DisableColors: !IsTerminal(out), FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return logger, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
