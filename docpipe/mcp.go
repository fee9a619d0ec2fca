package docpipe

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/ultradoc/docmodel"
	"github.com/hazyhaar/ultradoc/kit"
	"github.com/hazyhaar/ultradoc/render"
)

// RegisterMCP registers the conversion tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerConvertTool(srv)
	p.registerSectionsTool(srv)
	p.registerStatsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var sourceProperties = map[string]any{
	"path":     map[string]any{"type": "string", "description": "Input file path (.json envelope, .ejs, .b64, .bin)"},
	"envelope": map[string]any{"type": "string", "description": "Inline envelope JSON, EJS response or encoded payload"},
}

// sourceReq names one input: a file path or inline data.
type sourceReq struct {
	Path     string `json:"path"`
	Envelope string `json:"envelope"`
}

var errNoSource = errors.New("one of path or envelope is required")

func (p *Pipeline) convertSource(ctx context.Context, r *sourceReq) (*Conversion, error) {
	switch {
	case r.Path != "":
		return p.ConvertFile(ctx, r.Path)
	case r.Envelope != "":
		return p.ConvertAuto(ctx, []byte(r.Envelope), "inline")
	}
	return nil, errNoSource
}

func (p *Pipeline) middleware(name string) kit.Middleware {
	return kit.Chain(kit.Recovery(p.logger), kit.Logging(p.logger, name))
}

// --- convert ---

type convertReq struct {
	sourceReq
	Format  string `json:"format"`
	PageURL string `json:"page_url"`
}

func (p *Pipeline) registerConvertTool(srv *mcp.Server) {
	props := map[string]any{
		"format":   map[string]any{"type": "string", "enum": []string{"markdown", "html", "json"}, "description": "Output format (default markdown)"},
		"page_url": map[string]any{"type": "string", "description": "Document URL written as front matter"},
	}
	for k, v := range sourceProperties {
		props[k] = v
	}
	tool := &mcp.Tool{
		Name:        "ultradoc_convert",
		Description: "Convert a collaborative-document export into Markdown, HTML or document JSON.",
		InputSchema: inputSchema(props, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*convertReq)
		format, err := render.ParseFormat(r.Format)
		if err != nil {
			return nil, err
		}
		conv, err := p.convertSource(ctx, &r.sourceReq)
		if err != nil {
			return nil, err
		}
		out := map[string]any{
			"format":       string(format),
			"payload_hash": conv.PayloadHash,
			"stats":        conv.Stats,
		}
		opts := render.Options{PageURL: r.PageURL}
		switch format {
		case render.FormatJSON:
			out["document"] = conv.Document
		case render.FormatHTML:
			html, err := render.HTML(conv.Document, opts)
			if err != nil {
				return nil, err
			}
			out["content"] = html
		default:
			out["content"] = render.Markdown(conv.Document, opts)
		}
		return out, nil
	}

	kit.RegisterMCPTool(srv, tool, p.middleware(tool.Name)(endpoint), kit.DecodeArgs[convertReq])
}

// --- sections ---

type sectionsReq struct {
	sourceReq
	Type string `json:"type"`
}

func (p *Pipeline) registerSectionsTool(srv *mcp.Server) {
	props := map[string]any{
		"type": map[string]any{"type": "string", "description": "Only return sections of this type (heading, paragraph, list, table, code_block, image)"},
	}
	for k, v := range sourceProperties {
		props[k] = v
	}
	tool := &mcp.Tool{
		Name:        "ultradoc_sections",
		Description: "List the sections of a converted document, optionally filtered by type.",
		InputSchema: inputSchema(props, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*sectionsReq)
		conv, err := p.convertSource(ctx, &r.sourceReq)
		if err != nil {
			return nil, err
		}
		sections := []docmodel.Section{}
		for _, s := range conv.Document.Sections {
			if r.Type == "" || string(s.Type) == r.Type {
				sections = append(sections, s)
			}
		}
		return map[string]any{"count": len(sections), "sections": sections}, nil
	}

	kit.RegisterMCPTool(srv, tool, p.middleware(tool.Name)(endpoint), kit.DecodeArgs[sectionsReq])
}

// --- stats ---

func (p *Pipeline) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ultradoc_stats",
		Description: "Section statistics, hyperlink count, images and buffer quality of a document export.",
		InputSchema: inputSchema(sourceProperties, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		conv, err := p.convertSource(ctx, req.(*sourceReq))
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"stats":          conv.Stats,
			"buffer_quality": conv.Quality,
			"payload_hash":   conv.PayloadHash,
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, p.middleware(tool.Name)(endpoint), kit.DecodeArgs[sourceReq])
}
