// CLAUDE:SUMMARY Fixed code tables of the ultrabuf format: mutation types, targets, modes, status codes, control bytes.
package ultrabuf

import (
	"fmt"
	"strings"
)

// MutationType is the "ty" code of a Mutation.
type MutationType uint64

const (
	InsertString     MutationType = 1 // is
	DeleteString     MutationType = 2 // ds
	ModifyProperty   MutationType = 3 // mp
	ModifyStyle      MutationType = 4 // ms
	CommentReference MutationType = 5 // cr
)

// ShortName returns the two-letter code used by the editor ("is", "mp", ...).
func (t MutationType) ShortName() string {
	switch t {
	case InsertString:
		return "is"
	case DeleteString:
		return "ds"
	case ModifyProperty:
		return "mp"
	case ModifyStyle:
		return "ms"
	case CommentReference:
		return "cr"
	default:
		return fmt.Sprintf("unknown(%d)", uint64(t))
	}
}

// Mutation targets ("mt").
const (
	TargetRun         = "run"
	TargetParagraph   = "paragraph"
	TargetSection     = "section"
	TargetStory       = "story"
	TargetSettings    = "settings"
	TargetStyles      = "styles"
	TargetFonts       = "fonts"
	TargetThemes      = "themes"
	TargetBackground  = "background"
	TargetNumbering   = "numbering"
	TargetWebSettings = "webSettings"
	TargetComment     = "comment"
)

var targetCodes = map[uint64]string{
	1: TargetRun, 2: TargetParagraph, 3: TargetSection, 4: TargetStory,
	5: TargetSettings, 6: TargetStyles, 7: TargetFonts, 8: TargetThemes,
	9: TargetBackground, 10: TargetNumbering, 11: TargetWebSettings,
}

// Mutation modes ("mm").
const (
	ModeInsert  = "insert"
	ModeDelete  = "delete"
	ModeMerge   = "merge"
	ModeSplit   = "split"
	ModeReplace = "replace"
)

var modeCodes = map[uint64]string{
	1: ModeInsert, 2: ModeDelete, 3: ModeMerge, 4: ModeSplit,
}

// textTargets and textModes hold every name a textual target or mode
// field may carry, including the ones without a numeric code.
var (
	textTargets = []string{
		TargetRun, TargetParagraph, TargetSection, TargetStory, TargetSettings, TargetStyles,
		TargetFonts, TargetThemes, TargetBackground, TargetNumbering, TargetWebSettings, TargetComment,
	}
	textModes = []string{ModeInsert, ModeDelete, ModeMerge, ModeSplit, ModeReplace}
)

// canonicalName returns the entry of names equal to s under case folding,
// or s unchanged.
func canonicalName(s string, names []string) string {
	for _, n := range names {
		if strings.EqualFold(s, n) {
			return n
		}
	}
	return s
}

func targetName(code uint64) string {
	if s, ok := targetCodes[code]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", code)
}

func modeName(code uint64) string {
	if s, ok := modeCodes[code]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", code)
}

// Status codes carried by modify-property Mutations (ModifyType).
const (
	RunProperty           = 101
	ParagraphProperty     = 102
	SectionProperty       = 103
	HeaderStoryProperty   = 104
	FooterStoryProperty   = 105
	FootnoteStoryProperty = 106
	EndnoteStoryProperty  = 107
	CommentStoryProperty  = 108
	TextboxStoryProperty  = 109
	SettingsProperty      = 110
	StylesProperty        = 111
	CodeBlockProperty     = 112
	NumberingProperty     = 113
	PictureProperty       = 114
	TableProperty         = 115
	TableCellProperty     = 116
	TableRowProperty      = 117
	TableAutoProperty     = 118
)

var modifyTypeNames = map[int]string{
	RunProperty:           "RUN_PROPERTY",
	ParagraphProperty:     "PARAGRAPH_PROPERTY",
	SectionProperty:       "SECTION_PROPERTY",
	HeaderStoryProperty:   "HEADER_STORY_PROPERTY",
	FooterStoryProperty:   "FOOTER_STORY_PROPERTY",
	FootnoteStoryProperty: "FOOTNOTE_STORY_PROPERTY",
	EndnoteStoryProperty:  "ENDNOTE_STORY_PROPERTY",
	CommentStoryProperty:  "COMMENT_STORY_PROPERTY",
	TextboxStoryProperty:  "TEXTBOX_STORY_PROPERTY",
	SettingsProperty:      "SETTINGS_PROPERTY",
	StylesProperty:        "STYLES_PROPERTY",
	CodeBlockProperty:     "CODE_BLOCK_PROPERTY",
	NumberingProperty:     "NUMBERING_PROPERTY",
	PictureProperty:       "PICTURE_PROPERTY",
	TableProperty:         "TABLE_PROPERTY",
	TableCellProperty:     "TABLE_CELL_PROPERTY",
	TableRowProperty:      "TABLE_ROW_PROPERTY",
	TableAutoProperty:     "TABLE_AUTO_PROPERTY",
}

// Status codes carried by modify-style Mutations (ModifyStyleType).
const (
	FontStyle      = 1
	ParagraphStyle = 2
	CharacterStyle = 3
	TableStyle     = 4
	ListStyle      = 5
	SectionStyle   = 6
	DocumentStyle  = 7
)

var modifyStyleTypeNames = map[int]string{
	FontStyle:      "FONT_STYLE",
	ParagraphStyle: "PARAGRAPH_STYLE",
	CharacterStyle: "CHARACTER_STYLE",
	TableStyle:     "TABLE_STYLE",
	ListStyle:      "LIST_STYLE",
	SectionStyle:   "SECTION_STYLE",
	DocumentStyle:  "DOCUMENT_STYLE",
}

var alignmentNames = map[int]string{
	1: "LEFT",
	2: "CENTER",
	3: "RIGHT",
	4: "JUSTIFY",
	5: "DISTRIBUTED",
}

// Reserved bytes of the reconstructed text buffer.
const (
	CtlTableRowStart  = 0x06 // table row start, follows CtlTableCol
	CtlTableCol       = 0x07 // table column separator / row prefix
	CtlListMarker     = 0x08 // list item; next char '-' bullet, '8' numbering
	CtlParagraph      = 0x0d // paragraph / cell separator
	CtlCodeBlockStart = 0x0f
	CtlFieldBegin     = 0x13 // hyperlink field begin
	CtlFieldSeparate  = 0x14 // hyperlink url / display separator
	CtlFieldEnd       = 0x15
	CtlTableStart     = 0x1a
	CtlTableEnd       = 0x1b
	CtlLine           = 0x1c // line content / picture marker
	CtlRegionEnd      = 0x1d // code block end, or text box start with 0x1e 0x1c
	CtlRecordSep      = 0x1e
)

// HyperlinkFieldName is the field instruction introducing a hyperlink.
const HyperlinkFieldName = "HYPERLINK"
