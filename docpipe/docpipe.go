// CLAUDE:SUMMARY Core pipeline: envelope/EJS/Base64/raw payload → ultrabuf decode → style resolution → scanner → Document, stats and buffer quality.
// Package docpipe converts collaborative-document exports into documents.
//
// Accepted inputs:
//   - .json: opendoc JSON envelope (payload at a fixed key path)
//   - .ejs: opendoc EJS response (head/json/length framed blocks)
//   - .b64: the escaped Base64 payload string alone (also .txt)
//   - .bin: the raw wire-format payload (also .ultrabuf)
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	conv, err := pipe.ConvertFile(ctx, "/path/to/export.json")
//	fmt.Println(len(conv.Document.Sections), "sections")
package docpipe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/ultradoc/docmodel"
	"github.com/hazyhaar/ultradoc/opendoc"
	"github.com/hazyhaar/ultradoc/scanner"
	"github.com/hazyhaar/ultradoc/styles"
	"github.com/hazyhaar/ultradoc/ultrabuf"
)

// InputKind identifies how an input file is framed.
type InputKind string

const (
	KindEnvelope InputKind = "envelope"
	KindEJS      InputKind = "ejs"
	KindBase64   InputKind = "base64"
	KindPayload  InputKind = "payload"
)

var (
	// ErrTooLarge is returned for inputs above Config.MaxPayloadSize.
	ErrTooLarge = errors.New("docpipe: input too large")
	// ErrUnsupportedInput is returned by Detect for unknown extensions.
	ErrUnsupportedInput = errors.New("docpipe: unsupported input")
)

// Pipeline is the conversion engine. It is immutable after New and safe
// for concurrent use.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	anchor scanner.HeadingAnchor
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	anchor, ok := scanner.ParseHeadingAnchor(cfg.HeadingAnchor)
	if !ok {
		cfg.Logger.Warn("unknown heading anchor, using start", "heading_anchor", cfg.HeadingAnchor)
	}
	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
		anchor: anchor,
	}
}

// Detect returns the input kind based on file extension.
func (p *Pipeline) Detect(path string) (InputKind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return KindEnvelope, nil
	case ".ejs":
		return KindEJS, nil
	case ".b64", ".txt":
		return KindBase64, nil
	case ".bin", ".ultrabuf":
		return KindPayload, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedInput, ext)
	}
}

// Intermediate is the decoded payload before scanning.
type Intermediate struct {
	Version          uint64                    `json:"version"`
	MutationCount    int                       `json:"mutation_count"`
	Mutations        []ultrabuf.Mutation       `json:"mutations"`
	Images           []ultrabuf.ImageInfo      `json:"images"`
	StyleDefinitions styles.Definitions        `json:"style_definitions"`
	TextboxMappings  []ultrabuf.TextboxMapping `json:"textbox_mappings"`
}

// Conversion is the outcome of one conversion.
type Conversion struct {
	Source      string                 `json:"source,omitempty"`
	PayloadHash string                 `json:"payload_hash"`
	Document    docmodel.Document      `json:"document"`
	Stats       docmodel.Stats         `json:"stats"`
	Quality     docmodel.BufferQuality `json:"buffer_quality"`

	Intermediate *Intermediate `json:"-"`
}

// PayloadHash returns the hex SHA-256 of a wire payload.
func PayloadHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Decode parses a wire payload and resolves its styles.
func (p *Pipeline) Decode(ctx context.Context, payload []byte) (*Intermediate, error) {
	if err := p.checkSize(len(payload)); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := ultrabuf.Parse(payload, ultrabuf.Options{MaxDepth: p.cfg.MaxDepth})
	in := &Intermediate{
		Version:          res.Version,
		MutationCount:    len(res.Mutations),
		Mutations:        res.Mutations,
		Images:           res.Images,
		StyleDefinitions: styles.Resolve(res.Mutations),
		TextboxMappings:  res.TextboxMappings,
	}
	p.logger.DebugContext(ctx, "payload decoded",
		"bytes", len(payload),
		"version", in.Version,
		"mutations", in.MutationCount,
		"images", len(in.Images),
		"styles", len(in.StyleDefinitions),
		"textboxes", len(in.TextboxMappings))
	return in, nil
}

// Build scans the decoded payload into a Document.
func (p *Pipeline) Build(in *Intermediate, source string) docmodel.Document {
	sections := scanner.Scan(scanner.Input{
		Mutations:       in.Mutations,
		Headings:        styles.HeadingIndex(in.Mutations, in.StyleDefinitions),
		TextboxMappings: in.TextboxMappings,
	}, scanner.Options{HeadingAnchor: p.anchor})
	return docmodel.Document{Sections: sections, Source: source}
}

// ConvertPayload converts a raw wire payload.
func (p *Pipeline) ConvertPayload(ctx context.Context, payload []byte, source string) (*Conversion, error) {
	in, err := p.Decode(ctx, payload)
	if err != nil {
		return nil, err
	}
	doc := p.Build(in, source)
	text := ultrabuf.Text(in.Mutations)
	conv := &Conversion{
		Source:       source,
		PayloadHash:  PayloadHash(payload),
		Document:     doc,
		Stats:        docmodel.ComputeStats(doc),
		Quality:      docmodel.MeasureBuffer(text),
		Intermediate: in,
	}
	if len(in.Mutations) > 0 && text == "" {
		p.logger.WarnContext(ctx, "payload has no text buffer", "source", source, "mutations", len(in.Mutations))
	}
	p.logger.DebugContext(ctx, "document built",
		"source", source,
		"sections", conv.Stats.TotalSections,
		"printable_ratio", conv.Quality.PrintableRatio)
	return conv, nil
}

// ConvertEncoded converts the escaped Base64 payload string.
func (p *Pipeline) ConvertEncoded(ctx context.Context, encoded, source string) (*Conversion, error) {
	if err := p.checkSize(len(encoded)); err != nil {
		return nil, err
	}
	payload, err := ultrabuf.DecodePayload(encoded)
	if err != nil {
		return nil, fmt.Errorf("docpipe: %w", err)
	}
	return p.ConvertPayload(ctx, payload, source)
}

// Convert converts a JSON envelope.
func (p *Pipeline) Convert(ctx context.Context, envelope []byte, source string) (*Conversion, error) {
	if err := p.checkSize(len(envelope)); err != nil {
		return nil, err
	}
	encoded, err := ultrabuf.ExtractPayload(envelope)
	if err != nil {
		return nil, fmt.Errorf("docpipe: %w", err)
	}
	return p.ConvertEncoded(ctx, encoded, source)
}

// ConvertEJS converts an EJS-framed opendoc response.
func (p *Pipeline) ConvertEJS(ctx context.Context, data []byte, source string) (*Conversion, error) {
	if err := p.checkSize(len(data)); err != nil {
		return nil, err
	}
	root, err := opendoc.ParseEJS(data)
	if err != nil {
		return nil, fmt.Errorf("docpipe: %w", err)
	}
	encoded, err := ultrabuf.PayloadFrom(root)
	if err != nil {
		return nil, fmt.Errorf("docpipe: %w", err)
	}
	return p.ConvertEncoded(ctx, encoded, source)
}

// ConvertFile reads and converts one input file.
func (p *Pipeline) ConvertFile(ctx context.Context, path string) (*Conversion, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := p.checkSize(int(info.Size())); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	kind, err := p.Detect(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	p.logger.DebugContext(ctx, "converting file", "path", path, "kind", kind)

	switch kind {
	case KindEnvelope:
		return p.Convert(ctx, data, path)
	case KindEJS:
		return p.ConvertEJS(ctx, data, path)
	case KindBase64:
		return p.ConvertEncoded(ctx, string(data), path)
	case KindPayload:
		return p.ConvertPayload(ctx, data, path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, kind)
}

// ConvertAuto converts data whose framing is sniffed from its first bytes:
// a JSON object, an EJS response, or an encoded payload string.
func (p *Pipeline) ConvertAuto(ctx context.Context, data []byte, source string) (*Conversion, error) {
	trimmed := strings.TrimSpace(string(data[:min(len(data), 64)]))
	switch {
	case strings.HasPrefix(trimmed, "{"):
		return p.Convert(ctx, data, source)
	case opendoc.IsEJS(data):
		return p.ConvertEJS(ctx, data, source)
	default:
		return p.ConvertEncoded(ctx, string(data), source)
	}
}

func (p *Pipeline) checkSize(n int) error {
	if int64(n) > p.cfg.MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, n, p.cfg.MaxPayloadSize)
	}
	return nil
}

// SupportedInputs returns the accepted file extensions.
func SupportedInputs() []string {
	return []string{"json", "ejs", "b64", "txt", "bin", "ultrabuf"}
}
