package logging

import (
	"io"
	"os"
	"strings"
)

// Config selects the level, format and destination of the process logger.
type Config struct {
	// Level is one of debug, info, warn, error or fatal, in any case.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
	// Output is stdout, stderr or a file path opened for appending.
	Output string `yaml:"output"`
}

// DefaultConfig returns JSON lines at info level on stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: string(FormatJSON),
		Output: "stderr",
	}
}

// NewLogger creates a logger from cfg. A nil cfg means DefaultConfig.
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	output, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	return New(ParseLevel(cfg.Level), output, WithFormat(Format(strings.ToLower(cfg.Format)))), nil
}

// ParseLevel converts a level name to a LogLevel. Unknown names mean Info.
func ParseLevel(level string) LogLevel {
	if l := LogLevel(strings.ToUpper(strings.TrimSpace(level))); l.rank() >= 0 {
		return l
	}
	return InfoLevel
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	return os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
