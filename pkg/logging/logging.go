// Package logging builds the structured logger shared by the command-line
// tools.
package logging

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"gocond/pkg/config"
)

const Prefix = "gocond"

// New returns a logger writing to w at the configured level.
func New(cfg config.LogConfig, w io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: cfg.Timestamps,
		Prefix:          Prefix,
	}), nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
