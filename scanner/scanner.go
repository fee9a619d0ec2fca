// CLAUDE:SUMMARY Control-character scanner: walks the reconstructed text buffer and emits docmodel Sections, splicing images and text boxes at their visual offsets.
// Package scanner turns the text buffer of an ultrabuf payload into an
// ordered list of document Sections.
//
// All offsets are code point indices into the buffer. The scanner is a
// pure function of its Input: it never reads the clock or the network and
// two scans of the same Input produce equal output.
package scanner

import (
	"github.com/hazyhaar/ultradoc/docmodel"
	"github.com/hazyhaar/ultradoc/styles"
	"github.com/hazyhaar/ultradoc/ultrabuf"
)

// HeadingAnchor selects which paragraph offset is looked up in the heading
// index.
type HeadingAnchor int

const (
	// AnchorStart looks up the paragraph's first code point, then the one
	// after it.
	AnchorStart HeadingAnchor = iota
	// AnchorEnd looks up the offset where the paragraph stopped, then the
	// one after it. Older exports were decoded this way.
	AnchorEnd
)

// ParseHeadingAnchor maps "start" and "end" to an anchor. Anything else
// yields AnchorStart and false.
func ParseHeadingAnchor(s string) (HeadingAnchor, bool) {
	switch s {
	case "", "start":
		return AnchorStart, true
	case "end":
		return AnchorEnd, true
	}
	return AnchorStart, false
}

func (a HeadingAnchor) String() string {
	if a == AnchorEnd {
		return "end"
	}
	return "start"
}

// Input is everything the scanner reads.
type Input struct {
	// Text is the buffer to scan. When empty, the first non-empty
	// insert-string Mutation's text is used.
	Text            string
	Mutations       []ultrabuf.Mutation
	Headings        map[int]styles.Heading
	TextboxMappings []ultrabuf.TextboxMapping
}

// Options tune the scan.
type Options struct {
	HeadingAnchor HeadingAnchor
}

type state struct {
	text     []rune
	pos      int
	tables   *tables
	headings map[int]styles.Heading
	opts     Options
	out      []docmodel.Section
}

// Scan walks the buffer once and returns its Sections in visual order.
func Scan(in Input, opts Options) []docmodel.Section {
	text := in.Text
	if text == "" {
		text = ultrabuf.Text(in.Mutations)
	}
	runes := []rune(text)
	s := &state{
		text:     runes,
		tables:   buildTables(runes, in),
		headings: in.Headings,
		opts:     opts,
		out:      []docmodel.Section{},
	}
	s.run()
	return s.out
}

func (s *state) run() {
	images := s.tables.images
	mappings := s.tables.mappings
	guard := len(s.text)*2 + 16

	for iter := 0; s.pos < len(s.text) && iter < guard; iter++ {
		for len(images) > 0 && images[0].offset <= s.pos {
			s.emitImage(images[0])
			images = images[1:]
		}
		for len(mappings) > 0 && mappings[0].VisualBegin <= s.pos {
			s.emitTextbox(mappings[0])
			mappings = mappings[1:]
		}

		if end, ok := s.tables.commentEnd(s.pos); ok {
			s.pos = max(end, s.pos+1)
			continue
		}
		if end, ok := s.tables.contentEnd(s.pos); ok {
			s.pos = max(end, s.pos+1)
			continue
		}
		s.step()
	}

	for _, img := range images {
		s.emitImage(img)
	}
	for _, m := range mappings {
		s.emitTextbox(m)
	}
}

// step consumes at least one code point at s.pos.
func (s *state) step() {
	start := s.pos
	switch c := s.text[s.pos]; c {
	case ultrabuf.CtlRegionEnd:
		switch {
		case s.at(1, ultrabuf.CtlRecordSep) && s.at(2, ultrabuf.CtlLine):
			s.pos += 3
			s.add(s.parseTextboxBlock())
		case s.at(1, ultrabuf.CtlLine) && !s.at(2, ultrabuf.CtlRecordSep):
			s.pos += 2
			s.add(s.parseTextboxBlock())
		default:
			s.pos++
		}
	case ultrabuf.CtlCodeBlockStart:
		s.add(s.parseCodeBlock())
	case ultrabuf.CtlListMarker:
		s.add(s.parseList())
	case ultrabuf.CtlTableStart:
		if !s.add(s.parseTable()) {
			s.pos = start + 1
		}
	case ultrabuf.CtlFieldBegin:
		s.add(s.parseParagraph())
	case ultrabuf.CtlTableCol, ultrabuf.CtlParagraph, ultrabuf.CtlRecordSep, ultrabuf.CtlLine:
		s.pos++
	default:
		if isControl(c) {
			s.pos++
			return
		}
		s.add(s.parseParagraph())
	}
	if s.pos <= start {
		s.pos = start + 1
	}
}

func (s *state) add(sec *docmodel.Section) bool {
	if sec == nil {
		return false
	}
	s.out = append(s.out, *sec)
	return true
}

func (s *state) emitImage(img imageAnchor) {
	info := img.info
	s.out = append(s.out, docmodel.Section{
		Type:      docmodel.Image,
		ImageInfo: &info,
		Mutations: []int{img.mutation},
	})
}

func (s *state) emitTextbox(m ultrabuf.TextboxMapping) {
	content, ok := s.textboxContent(m.ContentStyleID)
	if !ok {
		return
	}
	typ := docmodel.Paragraph
	if m.IsCodeBlock {
		typ = docmodel.CodeBlock
	}
	s.out = append(s.out, docmodel.Section{Type: typ, Content: content})
}

// at reports whether the code point at s.pos+off is c.
func (s *state) at(off int, c rune) bool {
	i := s.pos + off
	return i >= 0 && i < len(s.text) && s.text[i] == c
}

// isControl reports whether c is a control code point other than tab and
// newline.
func isControl(c rune) bool {
	return c < 0x20 && c != '\t' && c != '\n'
}

// keep reports whether c survives line filtering.
func keep(c rune) bool {
	return c >= 0x20 || c == '\t'
}
