// Package logging builds the hclog logger shared by every component.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Name is the root logger name
const Name = "geektools"

// Options configures New
type Options struct {
	// Level is an hclog level name; empty means warn.
	Level string
	// Debug forces debug level regardless of Level.
	Debug bool
	// JSON switches to JSON lines output.
	JSON bool
	// Output defaults to stderr.
	Output io.Writer
}

// New creates the root logger
func New(opts Options) hclog.Logger {
	level := ParseLevel(opts.Level)
	if opts.Debug && level > hclog.Debug {
		level = hclog.Debug
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       Name,
		Level:      level,
		Output:     output,
		JSONFormat: opts.JSON,
	})
}

// ParseLevel converts a level name, falling back to warn for unknown names
func ParseLevel(name string) hclog.Level {
	if strings.TrimSpace(name) == "" {
		return hclog.Warn
	}
	level := hclog.LevelFromString(name)
	if level == hclog.NoLevel {
		return hclog.Warn
	}
	return level
}

// Quiet returns a logger that drops everything
func Quiet() hclog.Logger {
	return hclog.NewNullLogger()
}
