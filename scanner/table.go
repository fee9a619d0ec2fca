package scanner

import (
	"strings"

	"github.com/hazyhaar/ultradoc/docmodel"
	"github.com/hazyhaar/ultradoc/ultrabuf"
)

// parseTable reads 0x1a, a header row, then rows introduced by 0x07 0x06,
// up to 0x1b. Rows are padded or cut to the header width. A table without
// headers is not a table.
func (s *state) parseTable() *docmodel.Section {
	start := s.pos
	s.pos++
	headers := s.parseTableRow()
	if len(headers) == 0 {
		s.pos = start
		return nil
	}

	rows := [][]string{}
loop:
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		switch {
		case c == ultrabuf.CtlTableEnd:
			s.pos++
			break loop
		case c == ultrabuf.CtlTableCol:
			s.pos++
			if s.at(0, ultrabuf.CtlTableRowStart) {
				s.pos++
				if row := s.parseTableRow(); len(row) > 0 {
					rows = append(rows, fitRow(row, len(headers)))
				}
			}
		case c < 0x20 && c != ultrabuf.CtlParagraph:
			break loop
		default:
			s.pos++
		}
	}
	return &docmodel.Section{
		Type:      docmodel.Table,
		TableData: &docmodel.TableData{Headers: headers, Rows: rows},
	}
}

// parseTableRow reads cells separated by 0x0d or a lone 0x07. It stops
// before 0x07 0x06 and before 0x1b, and at a bare 0x06. Each cell is
// emitted once.
func (s *state) parseTableRow() []string {
	var (
		cells []string
		cell  strings.Builder
		open  bool
	)
	flush := func() {
		if open {
			cells = append(cells, strings.TrimSpace(cell.String()))
		}
		cell.Reset()
		open = false
	}

	for s.pos < len(s.text) {
		c := s.text[s.pos]
		switch c {
		case ultrabuf.CtlParagraph:
			open = true
			flush()
			s.pos++
		case ultrabuf.CtlTableCol:
			flush()
			if s.at(1, ultrabuf.CtlTableRowStart) {
				return cells
			}
			s.pos++
		case ultrabuf.CtlTableEnd:
			flush()
			return cells
		case ultrabuf.CtlTableRowStart:
			flush()
			return cells
		default:
			cell.WriteRune(c)
			open = true
			s.pos++
		}
	}
	flush()
	return cells
}

func fitRow(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}
