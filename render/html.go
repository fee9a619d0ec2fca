package render

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/ultradoc/docmodel"
)

// htmlPolicy keeps the structural elements the renderer emits and the
// link and image attributes. Anything injected through document text is
// stripped.
var htmlPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "article")
	p.AllowAttrs("width", "height").Matching(bluemonday.Integer).OnElements("img")
	return p
}()

// HTML renders d as a sanitized <article> fragment.
func HTML(d docmodel.Document, opts Options) (string, error) {
	article := element(atom.Article, "class", "ultradoc")
	if opts.PageURL != "" {
		p := element(atom.P, "class", "source")
		p.AppendChild(link(opts.PageURL, opts.PageURL))
		article.AppendChild(p)
	}

	var list *html.Node
	for _, s := range d.Sections {
		if s.Type != docmodel.List {
			list = nil
		}
		switch s.Type {
		case docmodel.Heading:
			level := min(max(s.Level, 1), 6)
			h := element(headingAtoms[level-1])
			h.AppendChild(text(s.Content))
			article.AppendChild(h)
		case docmodel.Paragraph:
			p := element(atom.P)
			appendInline(p, s.Content, s.InlineFormats)
			article.AppendChild(p)
		case docmodel.List:
			if s.Content == "" {
				continue
			}
			kind := atom.Ul
			if s.ListType == docmodel.Numbering {
				kind = atom.Ol
			}
			if list == nil || list.DataAtom != kind {
				list = element(kind)
				article.AppendChild(list)
			}
			li := element(atom.Li)
			li.AppendChild(text(s.Content))
			list.AppendChild(li)
		case docmodel.CodeBlock:
			pre := element(atom.Pre)
			code := element(atom.Code)
			code.AppendChild(text(s.Content))
			pre.AppendChild(code)
			article.AppendChild(pre)
		case docmodel.Image:
			if s.ImageInfo == nil {
				continue
			}
			attrs := []string{"src", s.ImageInfo.URL, "alt", imageAlt(s)}
			if s.ImageInfo.Width > 0 && s.ImageInfo.Height > 0 {
				attrs = append(attrs, "width", strconv.Itoa(s.ImageInfo.Width), "height", strconv.Itoa(s.ImageInfo.Height))
			}
			article.AppendChild(element(atom.Img, attrs...))
		case docmodel.Table:
			if s.TableData == nil || len(s.TableData.Headers) == 0 {
				continue
			}
			article.AppendChild(htmlTable(s.TableData))
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, article); err != nil {
		return "", fmt.Errorf("render: html: %w", err)
	}
	return htmlPolicy.Sanitize(buf.String()), nil
}

var headingAtoms = []atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

func htmlTable(td *docmodel.TableData) *html.Node {
	table := element(atom.Table)
	thead := element(atom.Thead)
	tr := element(atom.Tr)
	for _, h := range td.Headers {
		th := element(atom.Th)
		th.AppendChild(text(h))
		tr.AppendChild(th)
	}
	thead.AppendChild(tr)
	table.AppendChild(thead)

	tbody := element(atom.Tbody)
	for _, row := range td.Rows {
		tr := element(atom.Tr)
		for i := range td.Headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			c := element(atom.Td)
			c.AppendChild(text(cell))
			tr.AppendChild(c)
		}
		tbody.AppendChild(tr)
	}
	table.AppendChild(tbody)
	return table
}

// appendInline writes content into parent, wrapping hyperlink spans in <a>.
func appendInline(parent *html.Node, content string, formats []docmodel.InlineFormat) {
	r := []rune(content)
	pos := 0
	for _, f := range sortedLinks(formats, len(r)) {
		if f.Start < pos {
			continue
		}
		if f.Start > pos {
			parent.AppendChild(text(string(r[pos:f.Start])))
		}
		parent.AppendChild(link(f.URL, string(r[f.Start:f.End])))
		pos = f.End
	}
	if pos < len(r) {
		parent.AppendChild(text(string(r[pos:])))
	}
}

// sortedLinks returns the usable hyperlink spans in ascending order.
func sortedLinks(formats []docmodel.InlineFormat, n int) []docmodel.InlineFormat {
	var out []docmodel.InlineFormat
	for _, f := range hyperlinks(formats) {
		if f.Start < f.End && f.URL != "" && f.Start >= 0 && f.End <= n {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func link(href, label string) *html.Node {
	a := element(atom.A, "href", href)
	a.AppendChild(text(label))
	return a
}
