package scanner

import (
	"sort"

	"github.com/hazyhaar/ultradoc/ultrabuf"
)

// commentLookback bounds the backward search for a comment's 0x0f marker.
const commentLookback = 20

type span struct{ start, end int }

func (s span) contains(pos int) bool { return s.start <= pos && pos < s.end }

type imageAnchor struct {
	offset   int
	mutation int
	info     ultrabuf.ImageInfo
}

type contentRange struct {
	styleID string
	span
}

// tables are the side tables computed before the scan. They are never
// modified once built.
type tables struct {
	images        []imageAnchor
	comments      []span
	content       []contentRange // in first-seen order of style id
	mappings      []ultrabuf.TextboxMapping
	textboxStyles map[int]string // text-box story begin → style id
}

func buildTables(text []rune, in Input) *tables {
	t := &tables{
		images:        collectImages(in.Mutations),
		comments:      collectComments(text, in.Mutations),
		content:       collectContentRanges(text, in.Mutations),
		textboxStyles: collectTextboxStyles(in.Mutations),
	}
	t.mappings = append([]ultrabuf.TextboxMapping(nil), in.TextboxMappings...)
	sort.SliceStable(t.mappings, func(i, j int) bool {
		return t.mappings[i].VisualBegin < t.mappings[j].VisualBegin
	})
	return t
}

// collectImages anchors every picture except comment-thread avatars.
func collectImages(muts []ultrabuf.Mutation) []imageAnchor {
	var out []imageAnchor
	for i := range muts {
		m := &muts[i]
		if m.ImageInfo == nil {
			continue
		}
		if code, ok := m.Status(); ok && code == ultrabuf.CommentStoryProperty {
			continue
		}
		out = append(out, imageAnchor{offset: m.BeginOr(0), mutation: i, info: *m.ImageInfo})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].offset < out[j].offset })
	return out
}

// collectComments spans all comment-story Mutations. The start is moved
// back to a nearby 0x0f; the end is pulled before a text-box start
// sequence it would otherwise bisect.
func collectComments(text []rune, muts []ultrabuf.Mutation) []span {
	var begins, ends []int
	for i := range muts {
		m := &muts[i]
		if code, ok := m.Status(); !ok || code != ultrabuf.CommentStoryProperty {
			continue
		}
		if m.Begin != nil {
			begins = append(begins, *m.Begin)
		}
		if m.End != nil {
			ends = append(ends, *m.End)
		}
	}
	if len(begins) == 0 || len(ends) == 0 {
		return nil
	}

	first := minInt(begins)
	start := first
	for i := first - 1; i > first-commentLookback && i > 0; i-- {
		if i < len(text) && text[i] == ultrabuf.CtlCodeBlockStart {
			start = i
			break
		}
	}

	end := maxInt(ends)
	if c := end - 1; end > 0 && end <= len(text)-2 &&
		text[c] == ultrabuf.CtlRegionEnd &&
		text[c+1] == ultrabuf.CtlRecordSep &&
		text[c+2] == ultrabuf.CtlLine {
		end = c
	}
	return []span{{start, end}}
}

func collectTextboxStyles(muts []ultrabuf.Mutation) map[int]string {
	out := map[int]string{}
	for i := range muts {
		m := &muts[i]
		if code, ok := m.Status(); !ok || code != ultrabuf.TextboxStoryProperty || m.StyleID == "" {
			continue
		}
		out[m.BeginOr(0)] = m.StyleID
	}
	return out
}

// collectContentRanges unions the text-box story spans of each content
// style and extends the start back over structural bytes to its 0x0f.
func collectContentRanges(text []rune, muts []ultrabuf.Mutation) []contentRange {
	var order []string
	spans := map[string]span{}
	for i := range muts {
		m := &muts[i]
		if code, ok := m.Status(); !ok || code != ultrabuf.TextboxStoryProperty {
			continue
		}
		if m.StyleID == "" || m.Begin == nil || m.End == nil {
			continue
		}
		s, seen := spans[m.StyleID]
		if !seen {
			order = append(order, m.StyleID)
			s = span{*m.Begin, *m.End}
		}
		s.start = min(s.start, *m.Begin)
		s.end = max(s.end, *m.End)
		spans[m.StyleID] = s
	}

	out := make([]contentRange, 0, len(order))
	for _, id := range order {
		s := spans[id]
		start := min(max(s.start, 0), len(text))
		for start > 0 {
			prev := text[start-1]
			if prev == ultrabuf.CtlCodeBlockStart {
				start--
				break
			}
			if prev >= 0x20 {
				break
			}
			start--
		}
		out = append(out, contentRange{styleID: id, span: span{start, s.end}})
	}
	return out
}

// commentEnd returns the end of the comment range containing pos.
func (t *tables) commentEnd(pos int) (int, bool) {
	for _, s := range t.comments {
		if s.contains(pos) {
			return s.end, true
		}
	}
	return 0, false
}

// contentEnd returns the end of the text-box content range containing pos.
func (t *tables) contentEnd(pos int) (int, bool) {
	for _, r := range t.content {
		if r.contains(pos) {
			return r.end, true
		}
	}
	return 0, false
}

func (t *tables) contentSpan(styleID string) (span, bool) {
	for _, r := range t.content {
		if r.styleID == styleID {
			return r.span, true
		}
	}
	return span{}, false
}

func minInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		m = min(m, x)
	}
	return m
}

func maxInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		m = max(m, x)
	}
	return m
}
