package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hazyhaar/ultradoc/docmodel"
)

// Format names an output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// ErrUnknownFormat is returned for a format name ParseFormat does not know.
var ErrUnknownFormat = errors.New("render: unknown format")

// ParseFormat accepts "markdown" (or "md"), "html" and "json". Empty means
// Markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the HTTP media type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatJSON:
		return "application/json"
	}
	return "text/markdown; charset=utf-8"
}

// Extension returns the file extension of f, with the dot.
func (f Format) Extension() string {
	switch f {
	case FormatHTML:
		return ".html"
	case FormatJSON:
		return ".json"
	}
	return ".md"
}

// Write renders d in format f to w.
func Write(w io.Writer, d docmodel.Document, f Format, opts Options) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(d)
	case FormatHTML:
		out, err := HTML(d, opts)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case FormatMarkdown, "":
		_, err := io.WriteString(w, Markdown(d, opts))
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}
