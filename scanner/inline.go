package scanner

import (
	"strings"
	"unicode"

	"github.com/hazyhaar/ultradoc/docmodel"
	"github.com/hazyhaar/ultradoc/styles"
	"github.com/hazyhaar/ultradoc/ultrabuf"
)

type hyperlink struct {
	url, display string
}

// parseParagraph accumulates text up to the next structural byte, splicing
// hyperlink fields into the content as their display text. A field that
// does not parse leaves its 0x13 behind and the rest reads as plain text.
func (s *state) parseParagraph() *docmodel.Section {
	start := s.pos
	var (
		content []rune
		formats []docmodel.InlineFormat
	)

	for s.pos < len(s.text) {
		c := s.text[s.pos]
		if c == ultrabuf.CtlFieldBegin {
			if hl, ok := s.parseHyperlink(); ok {
				if hl.display != "" {
					d := []rune(hl.display)
					formats = append(formats, docmodel.InlineFormat{
						Type:  docmodel.InlineHyperlink,
						Start: len(content),
						End:   len(content) + len(d),
						URL:   hl.url,
					})
					content = append(content, d...)
				}
			} else {
				s.pos++
			}
			continue
		}
		if isControl(c) {
			break
		}
		content = append(content, c)
		s.pos++
	}

	text, shift := trimRunes(content)
	if text == "" {
		return nil
	}
	formats = shiftFormats(formats, shift, len([]rune(text)))

	sec := &docmodel.Section{Type: docmodel.Paragraph, Content: text, InlineFormats: formats}
	if h, ok := s.headingAt(start, s.pos); ok {
		sec.Type = docmodel.Heading
		sec.Level = h.Level
		sec.Mutations = []int{h.Mutation}
	}
	return sec
}

// parseHyperlink reads 0x13 "HYPERLINK" url 0x14 display 0x15. On failure
// the cursor is left where it was.
func (s *state) parseHyperlink() (hyperlink, bool) {
	start := s.pos
	name := []rune(ultrabuf.HyperlinkFieldName)
	p := start + 1
	if p+len(name) > len(s.text) || string(s.text[p:p+len(name)]) != ultrabuf.HyperlinkFieldName {
		return hyperlink{}, false
	}
	p += len(name)

	sep := indexFrom(s.text, p, ultrabuf.CtlFieldSeparate)
	if sep < 0 {
		return hyperlink{}, false
	}
	end := indexFrom(s.text, sep+1, ultrabuf.CtlFieldEnd)
	if end < 0 {
		return hyperlink{}, false
	}

	s.pos = end + 1
	return hyperlink{
		url:     fieldURL(strings.TrimSpace(string(s.text[p:sep]))),
		display: string(s.text[sep+1 : end]),
	}, true
}

// fieldURL takes the quoted part of a field argument, or its first token.
func fieldURL(arg string) string {
	if strings.HasPrefix(arg, `"`) {
		if i := strings.IndexByte(arg[1:], '"'); i >= 0 {
			return arg[1 : 1+i]
		}
	}
	if f := strings.Fields(arg); len(f) > 0 {
		return f[0]
	}
	return arg
}

func indexFrom(text []rune, from int, c rune) int {
	for i := from; i < len(text); i++ {
		if text[i] == c {
			return i
		}
	}
	return -1
}

// trimRunes trims surrounding white space and reports how many leading
// code points were removed.
func trimRunes(r []rune) (string, int) {
	lead := 0
	for lead < len(r) && unicode.IsSpace(r[lead]) {
		lead++
	}
	tail := len(r)
	for tail > lead && unicode.IsSpace(r[tail-1]) {
		tail--
	}
	return string(r[lead:tail]), lead
}

// shiftFormats moves formats left by shift and clamps them to [0, n].
// Formats left empty are dropped.
func shiftFormats(formats []docmodel.InlineFormat, shift, n int) []docmodel.InlineFormat {
	var out []docmodel.InlineFormat
	for _, f := range formats {
		f.Start = min(max(f.Start-shift, 0), n)
		f.End = min(max(f.End-shift, 0), n)
		if f.Start < f.End {
			out = append(out, f)
		}
	}
	return out
}

func (s *state) headingAt(start, end int) (styles.Heading, bool) {
	anchor := start
	if s.opts.HeadingAnchor == AnchorEnd {
		anchor = end
	}
	for _, off := range []int{anchor, anchor + 1} {
		if h, ok := s.headings[off]; ok && h.Level > 0 {
			return h, true
		}
	}
	return styles.Heading{}, false
}
