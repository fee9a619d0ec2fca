// CLAUDE:SUMMARY Renders a docmodel.Document as Markdown, HTML (sanitized) or JSON.
// Package render formats decoded documents.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/ultradoc/docmodel"
)

// Options control rendering.
type Options struct {
	// PageURL, when set, is written as front matter (Markdown) or as the
	// canonical link (HTML).
	PageURL string
}

// Markdown renders d. Each Section is followed by a blank line and
// trailing blank lines are trimmed.
func Markdown(d docmodel.Document, opts Options) string {
	var lines []string
	for _, s := range d.Sections {
		lines = appendMarkdown(lines, s)
		lines = append(lines, "")
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	body := strings.Join(lines, "\n")
	if opts.PageURL != "" {
		return "---\npageUrl: " + opts.PageURL + "\n---\n\n" + body
	}
	return body
}

func appendMarkdown(lines []string, s docmodel.Section) []string {
	switch s.Type {
	case docmodel.Heading:
		level := s.Level
		if level <= 0 {
			level = 1
		}
		return append(lines, strings.Repeat("#", level)+" "+s.Content)
	case docmodel.Paragraph:
		if text := applyLinks(s.Content, s.InlineFormats); text != "" {
			return append(lines, text)
		}
	case docmodel.List:
		if s.Content == "" {
			return lines
		}
		prefix := "- "
		if s.ListType == docmodel.Numbering {
			prefix = "1. "
		}
		return append(lines, prefix+s.Content)
	case docmodel.CodeBlock:
		lines = append(lines, "```")
		if s.Content != "" {
			lines = append(lines, s.Content)
		}
		return append(lines, "```")
	case docmodel.Image:
		if s.ImageInfo == nil {
			return lines
		}
		return append(lines, fmt.Sprintf("![%s](%s)", imageAlt(s), s.ImageInfo.URL))
	case docmodel.Table:
		return appendTable(lines, s.TableData)
	}
	return lines
}

func imageAlt(s docmodel.Section) string {
	alt := "image"
	if info := s.ImageInfo; info != nil && info.Width > 0 && info.Height > 0 {
		alt += fmt.Sprintf(" (%dx%d)", info.Width, info.Height)
	}
	return alt
}

func appendTable(lines []string, td *docmodel.TableData) []string {
	if td == nil || len(td.Headers) == 0 {
		return lines
	}
	n := len(td.Headers)
	lines = append(lines, tableRow(td.Headers))
	sep := make([]string, n)
	for i := range sep {
		sep[i] = "---"
	}
	lines = append(lines, tableRow(sep))
	for _, row := range td.Rows {
		cells := make([]string, n)
		copy(cells, row)
		lines = append(lines, tableRow(cells))
	}
	return lines
}

func tableRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

// applyLinks substitutes hyperlink spans back to front so earlier offsets
// stay valid. Offsets are in code points.
func applyLinks(content string, formats []docmodel.InlineFormat) string {
	links := hyperlinks(formats)
	if len(links) == 0 {
		return content
	}
	sort.SliceStable(links, func(i, j int) bool { return links[i].Start > links[j].Start })

	r := []rune(content)
	for _, f := range links {
		if f.Start >= f.End || f.URL == "" || f.Start < 0 || f.End > len(r) {
			continue
		}
		link := []rune("[" + string(r[f.Start:f.End]) + "](" + f.URL + ")")
		r = append(r[:f.Start:f.Start], append(link, r[f.End:]...)...)
	}
	return string(r)
}

func hyperlinks(formats []docmodel.InlineFormat) []docmodel.InlineFormat {
	var out []docmodel.InlineFormat
	for _, f := range formats {
		if f.Type == docmodel.InlineHyperlink {
			out = append(out, f)
		}
	}
	return out
}
