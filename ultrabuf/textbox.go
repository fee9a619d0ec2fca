package ultrabuf

import (
	"regexp"
	"strings"
)

// TextboxMapping anchors a text box's out-of-line content at a visual offset.
type TextboxMapping struct {
	VisualBegin    int    `json:"visual_bi"`
	TextboxStyleID string `json:"textbox_style_id"`
	ContentStyleID string `json:"content_style_id"`
	IsCodeBlock    bool   `json:"is_code_block"`
}

var (
	textboxContentStyleRe = regexp.MustCompile(`\x0a\x08\x0a\x06([a-zA-Z0-9]{6})`)
	tableStyleIDsRe       = regexp.MustCompile(`:\x08\x0a\x06([a-zA-Z0-9]{6})`)
)

// plainTextMarker in a text-box story author blob flags a code box.
const plainTextMarker = "J"

// TextboxMappings derives visual text-box anchors from table-property
// Mutations carrying an outer and an inner style id. A content style is a
// code block when any of its text-box story Mutations carries the plain
// text marker.
func TextboxMappings(muts []Mutation) []TextboxMapping {
	codeBlock := map[string]bool{}
	for i := range muts {
		m := &muts[i]
		if !m.HasStatus(ModifyProperty, TextboxStoryProperty) || m.Author == "" {
			continue
		}
		sm := textboxContentStyleRe.FindStringSubmatch(m.Author)
		if sm == nil {
			continue
		}
		if strings.Contains(m.Author, plainTextMarker) {
			codeBlock[sm[1]] = true
		} else if _, ok := codeBlock[sm[1]]; !ok {
			codeBlock[sm[1]] = false
		}
	}

	var out []TextboxMapping
	for i := range muts {
		m := &muts[i]
		if !m.HasStatus(ModifyProperty, TableProperty) || m.Begin == nil || m.Author == "" {
			continue
		}
		if IsImageHosted(m.Author) {
			continue
		}
		ids := tableStyleIDsRe.FindAllStringSubmatch(m.Author, -1)
		if len(ids) < 2 {
			continue
		}
		out = append(out, TextboxMapping{
			VisualBegin:    *m.Begin,
			TextboxStyleID: ids[0][1],
			ContentStyleID: ids[1][1],
			IsCodeBlock:    codeBlock[ids[1][1]],
		})
	}
	return out
}
