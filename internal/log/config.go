package log

import (
	"io"
	"os"
	"strings"
)

// Format selects the slog handler.
type Format int

const (
	// FormatText is logfmt-style key=value output
	FormatText Format = iota
	// FormatJSON is one JSON object per line, for log shippers
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat parses a log.format value. Unknown values fall back to text.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Output is where log lines go. The zero value is stderr, because stdout
// belongs to command output.
type Output struct {
	writer io.Writer
}

// Writer returns the underlying io.Writer
func (o Output) Writer() io.Writer {
	if o.writer == nil {
		return os.Stderr
	}
	return o.writer
}

// NewOutput creates an Output from an io.Writer
func NewOutput(w io.Writer) Output {
	return Output{writer: w}
}

// Config holds configuration for the logger
type Config struct {
	Level  Level
	Format Format
	Output Output

	// AddSource includes file:line in every entry
	AddSource bool

	// Redact lists attribute keys whose values are replaced, on top of
	// the built-in credential keys.
	Redact []string

	ServiceName    string
	ServiceVersion string
}

// DefaultConfig logs warnings and above as text to stderr, which keeps
// interactive commands quiet unless --log-level is raised.
func DefaultConfig() Config {
	return Config{
		Level:          LevelWarn,
		Format:         FormatText,
		ServiceName:    "safekart",
		ServiceVersion: "dev",
	}
}
