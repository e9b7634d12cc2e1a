package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an output format accepted by --format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists the accepted --format values.
var Formats = []Format{FormatText, FormatJSON, FormatYAML}

// ParseFormat validates a --format value. Empty means text.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatText, nil
	}
	f := Format(strings.ToLower(s))
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("unknown format: %s (supported: text, json, yaml)", s)
	}
	return f, nil
}

// Formatter writes command results.
type Formatter interface {
	Format(data any) error
}

// TextRenderer is implemented by values with a styled text form.
type TextRenderer interface {
	RenderText(s Styles) string
}

// FormatterOptions contains configuration for formatters
type FormatterOptions struct {
	// Writer defaults to os.Stdout
	Writer io.Writer
	// NoColor disables styling in text output
	NoColor bool
	// Compact drops indentation from JSON
	Compact bool
}

// NewFormatter returns the formatter for a --format value.
func NewFormatter(format string, opts *FormatterOptions) (Formatter, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &FormatterOptions{}
	}
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	return &printer{format: f, w: w, styles: NewStyles(opts.NoColor), compact: opts.Compact}, nil
}

type printer struct {
	format  Format
	w       io.Writer
	styles  Styles
	compact bool
}

func (p *printer) Format(data any) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetEscapeHTML(false)
		if !p.compact {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(data)
	case FormatYAML:
		return p.yaml(data)
	}

	var text string
	switch v := data.(type) {
	case TextRenderer:
		text = v.RenderText(p.styles)
	case string:
		text = v
	case fmt.Stringer:
		text = v.String()
	default:
		// plain data reads well enough as YAML
		return p.yaml(data)
	}
	_, err := fmt.Fprintln(p.w, text)
	return err
}

func (p *printer) yaml(data any) error {
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}
