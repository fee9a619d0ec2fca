// CLAUDE:SUMMARY Style resolver: built-in catalog + definitions mined from Mutations, and the paragraph offset → heading level index.
// Package styles resolves style ids to names and outline levels.
//
// Two sources are merged: a fixed built-in catalog, and definitions mined
// from modify-style and paragraph-property Mutations. Built-in entries are
// never overwritten; mined entries only fill gaps.
package styles

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hazyhaar/ultradoc/ultrabuf"
)

// MaxOutlineLevel is the deepest outline level (heading 9).
const MaxOutlineLevel = 8

// Definition describes one style id.
type Definition struct {
	Name         string `json:"name,omitempty"`
	OutlineLevel *int   `json:"outline_lvl"`
}

// HeadingLevel returns the 1-based heading level, if the style is a heading.
func (d Definition) HeadingLevel() (int, bool) {
	if d.OutlineLevel == nil {
		return 0, false
	}
	return *d.OutlineLevel + 1, true
}

// Definitions maps style ids to their definitions.
type Definitions map[string]Definition

// HeadingLevel looks up id and returns its 1-based heading level.
func (d Definitions) HeadingLevel(id string) (int, bool) {
	def, ok := d[id]
	if !ok {
		return 0, false
	}
	return def.HeadingLevel()
}

func level(n int) *int { return &n }

var builtin = Definitions{
	"000002": {Name: "heading 1", OutlineLevel: level(0)},
	"000003": {Name: "heading 2", OutlineLevel: level(1)},
	"000004": {Name: "heading 3", OutlineLevel: level(2)},
	"000005": {Name: "heading 4", OutlineLevel: level(3)},
	"000006": {Name: "heading 5", OutlineLevel: level(4)},
	"000007": {Name: "heading 6", OutlineLevel: level(5)},
	"000008": {Name: "heading 7", OutlineLevel: level(6)},
	"000009": {Name: "heading 8", OutlineLevel: level(7)},
	"00000a": {Name: "heading 9", OutlineLevel: level(8)},
	"000011": {Name: "Subtitle", OutlineLevel: level(1)},
	"000013": {Name: "Title", OutlineLevel: level(0)},
	"000001": {Name: "Normal"},
}

// Builtin returns a copy of the built-in catalog.
func Builtin() Definitions {
	out := make(Definitions, len(builtin))
	for id, d := range builtin {
		out[id] = d
	}
	return out
}

// Style definitions embedded in modify-style author blobs: \x06<id> then a
// fixed framing then the style name.
var definitionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\x06([a-zA-Z0-9]{6})\x12\x01\n\r\n\x0b\n\t([^\x00-\x1f*]+)`),
	regexp.MustCompile(`\x06([a-zA-Z0-9]{6})\x12\x01\n\t\n\x07\n\x05([^\x00-\x1f*]+)`),
	regexp.MustCompile(`\x06([a-zA-Z0-9]{6})\x12\+\n\n\n\x08\n\x06([^\x00-\x1f*]+)`),
}

var headingNameRe = regexp.MustCompile(`^heading\s*(\d+)`)

// OutlineFromName infers an outline level from a style name.
func OutlineFromName(name string) (int, bool) {
	lower := strings.ToLower(name)
	if m := headingNameRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= MaxOutlineLevel+1 {
			return n - 1, true
		}
	}
	switch {
	case strings.Contains(lower, "subtitle"):
		return 1, true
	case strings.Contains(lower, "title"):
		return 0, true
	}
	return 0, false
}

func definitionFromName(name string) Definition {
	d := Definition{Name: name}
	if lvl, ok := OutlineFromName(name); ok {
		d.OutlineLevel = &lvl
	}
	return d
}

// MineAuthor extracts the style definitions embedded in one author text.
// Each pattern keeps the first definition seen per id.
func MineAuthor(author string) Definitions {
	out := Definitions{}
	for _, re := range definitionPatterns {
		for _, m := range re.FindAllStringSubmatch(author, -1) {
			id, name := m[1], strings.TrimSpace(m[2])
			if name == "" {
				continue
			}
			if _, ok := out[id]; ok {
				continue
			}
			out[id] = definitionFromName(name)
		}
	}
	return out
}

// Mine collects definitions from Mutations: table-style modify-style
// Mutations first, then paragraph-property Mutations fill remaining gaps.
func Mine(muts []ultrabuf.Mutation) Definitions {
	defs := Definitions{}
	for i := range muts {
		m := &muts[i]
		if !m.HasStatus(ultrabuf.ModifyStyle, ultrabuf.TableStyle) || m.Author == "" {
			continue
		}
		for id, d := range MineAuthor(m.Author) {
			defs[id] = d
		}
	}

	for i := range muts {
		m := &muts[i]
		if !m.HasStatus(ultrabuf.ModifyProperty, ultrabuf.ParagraphProperty) {
			continue
		}
		id := mutationStyleID(m)
		if id == "" {
			continue
		}
		if _, ok := defs[id]; ok {
			continue
		}
		var d Definition
		if lvl, ok := explicitOutline(m); ok {
			d.OutlineLevel = &lvl
		}
		if name, ok := m.Properties.String("paragraph", "pStyle"); ok {
			d.Name = name
		}
		defs[id] = d
	}
	return defs
}

// Resolve merges the built-in catalog with definitions mined from muts.
func Resolve(muts []ultrabuf.Mutation) Definitions {
	defs := Builtin()
	for id, d := range Mine(muts) {
		if _, ok := defs[id]; !ok {
			defs[id] = d
		}
	}
	return defs
}

// Heading is one entry of a heading index.
type Heading struct {
	Level    int // 1-based
	Mutation int // index of the paragraph-property Mutation
}

// HeadingIndex maps paragraph begin offsets to heading levels. A paragraph
// property's own outline level wins over its style's. Later Mutations
// overwrite earlier ones at the same offset.
func HeadingIndex(muts []ultrabuf.Mutation, defs Definitions) map[int]Heading {
	idx := map[int]Heading{}
	for i := range muts {
		m := &muts[i]
		if !m.HasStatus(ultrabuf.ModifyProperty, ultrabuf.ParagraphProperty) {
			continue
		}
		lvl, ok := explicitOutline(m)
		if ok {
			lvl++
		} else if id := mutationStyleID(m); id != "" {
			lvl, ok = defs.HeadingLevel(id)
		}
		if ok {
			idx[m.BeginOr(0)] = Heading{Level: lvl, Mutation: i}
		}
	}
	return idx
}

func mutationStyleID(m *ultrabuf.Mutation) string {
	if m.StyleID != "" {
		return m.StyleID
	}
	if m.AuthorInfo != nil {
		return m.AuthorInfo.StyleID
	}
	return ""
}

func explicitOutline(m *ultrabuf.Mutation) (int, bool) {
	lvl, ok := m.Properties.ValInt("paragraph", "outlineLvl")
	if !ok || lvl < 0 || lvl > MaxOutlineLevel {
		return 0, false
	}
	return lvl, true
}
