package scanner

import (
	"strings"

	"github.com/hazyhaar/ultradoc/docmodel"
	"github.com/hazyhaar/ultradoc/ultrabuf"
)

// parseCodeBlock reads a 0x0f block: optional 0x1e padding, an optional
// first line right after the header, then 0x1c-introduced lines. A run of
// two or more 0x1e ends the block, as does a line whose text-box style
// differs from the block's.
func (s *state) parseCodeBlock() *docmodel.Section {
	s.pos++
	s.skipRun(ultrabuf.CtlRecordSep)

	var lines []string
	if s.pos < len(s.text) && !isControl(s.text[s.pos]) {
		lines = appendLine(lines, s.readCodeLine())
	}

	current := ""
loop:
	for s.pos < len(s.text) {
		switch s.text[s.pos] {
		case ultrabuf.CtlRecordSep:
			if s.at(1, ultrabuf.CtlRecordSep) {
				s.skipRun(ultrabuf.CtlRecordSep)
				break loop
			}
			s.pos++
		case ultrabuf.CtlLine:
			lineStart := s.pos
			s.pos++
			style := s.tables.textboxStyles[lineStart]
			if current == "" {
				current = style
			} else if style != "" && style != current {
				s.pos = lineStart
				break loop
			}
			lines = appendLine(lines, s.readCodeLine())
		case ultrabuf.CtlParagraph, ultrabuf.CtlRegionEnd:
			s.pos++
		default:
			break loop
		}
	}
	return &docmodel.Section{Type: docmodel.CodeBlock, Content: strings.Join(lines, "\n")}
}

// readCodeLine reads to the next 0x0d or 0x1d and consumes it.
func (s *state) readCodeLine() string {
	var b strings.Builder
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		s.pos++
		if c == ultrabuf.CtlParagraph || c == ultrabuf.CtlRegionEnd {
			break
		}
		if keep(c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// parseTextboxBlock reads an inline text box whose header has already been
// skipped. Lines end at 0x0d (consumed) or before a 0x1d 0x1c pair.
func (s *state) parseTextboxBlock() *docmodel.Section {
	var lines []string
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		switch {
		case c == ultrabuf.CtlRegionEnd && s.at(1, ultrabuf.CtlLine):
			if s.at(2, ultrabuf.CtlRecordSep) {
				return textboxSection(lines)
			}
			s.pos += 2
		case c == ultrabuf.CtlLine:
			s.pos++
			lines = appendLine(lines, s.readTextboxLine())
		case c == ultrabuf.CtlCodeBlockStart:
			return textboxSection(lines)
		case c == ultrabuf.CtlRegionEnd && s.at(1, ultrabuf.CtlRecordSep) && s.at(2, ultrabuf.CtlLine):
			return textboxSection(lines)
		case isControl(c):
			s.pos++
		default:
			lines = appendLine(lines, s.readTextboxLine())
		}
	}
	return textboxSection(lines)
}

func (s *state) readTextboxLine() string {
	var b strings.Builder
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		if c == ultrabuf.CtlParagraph {
			s.pos++
			break
		}
		if c == ultrabuf.CtlRegionEnd && s.at(1, ultrabuf.CtlLine) {
			break
		}
		if keep(c) {
			b.WriteRune(c)
		}
		s.pos++
	}
	return b.String()
}

func textboxSection(lines []string) *docmodel.Section {
	if len(lines) == 0 {
		return nil
	}
	return &docmodel.Section{Type: docmodel.CodeBlock, Content: strings.Join(lines, "\n")}
}

// textboxContent extracts the lines of the content range of styleID. It
// does not move s.pos.
func (s *state) textboxContent(styleID string) (string, bool) {
	sp, ok := s.tables.contentSpan(styleID)
	if !ok || sp.start >= len(s.text) {
		return "", false
	}
	start := max(sp.start, 0)
	part := s.text[start:min(max(sp.end, start), len(s.text))]

	var lines []string
	for i := 0; i < len(part); {
		c := part[i]
		switch {
		case c == ultrabuf.CtlCodeBlockStart:
			i++
			for i < len(part) && part[i] == ultrabuf.CtlRecordSep {
				i++
			}
		case c == ultrabuf.CtlRegionEnd:
			i++
			if i < len(part) && part[i] == ultrabuf.CtlRecordSep {
				i++
			}
			if i < len(part) && part[i] == ultrabuf.CtlLine {
				i++
			}
		case c == ultrabuf.CtlLine:
			var line string
			line, i = readRangeLine(part, i+1, false)
			lines = appendLine(lines, line)
		case c == ultrabuf.CtlRecordSep, c == ultrabuf.CtlParagraph:
			i++
		case keep(c):
			var line string
			line, i = readRangeLine(part, i, true)
			lines = appendLine(lines, line)
		default:
			i++
		}
	}
	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

// readRangeLine reads from part[i] to a 0x0d (consumed) or a 0x1d. When
// stopAtLine is set a 0x1c also ends the line.
func readRangeLine(part []rune, i int, stopAtLine bool) (string, int) {
	var b strings.Builder
	for i < len(part) {
		c := part[i]
		if c == ultrabuf.CtlParagraph {
			return b.String(), i + 1
		}
		if c == ultrabuf.CtlRegionEnd || (stopAtLine && c == ultrabuf.CtlLine) {
			break
		}
		if keep(c) {
			b.WriteRune(c)
		}
		i++
	}
	return b.String(), i
}

// parseList reads 0x08, a marker code point, then content to 0x0d.
func (s *state) parseList() *docmodel.Section {
	s.pos++
	if s.pos >= len(s.text) || s.text[s.pos] < 0x20 {
		return nil
	}
	listType := docmodel.Bullet
	if s.text[s.pos] == '8' {
		listType = docmodel.Numbering
	}
	s.pos++

	var b strings.Builder
	for s.pos < len(s.text) && s.text[s.pos] != ultrabuf.CtlParagraph {
		if c := s.text[s.pos]; c >= 0x20 {
			b.WriteRune(c)
		}
		s.pos++
	}
	content := strings.TrimSpace(b.String())
	if content == "" {
		return nil
	}
	return &docmodel.Section{Type: docmodel.List, Content: content, ListType: listType}
}

func (s *state) skipRun(c rune) {
	for s.pos < len(s.text) && s.text[s.pos] == c {
		s.pos++
	}
}

func appendLine(lines []string, line string) []string {
	if line == "" {
		return lines
	}
	return append(lines, line)
}
