// CLAUDE:SUMMARY Section/Document output tree of the decoder and its version-2 JSON form.
// Package docmodel holds the semantic document tree produced by the scanner.
package docmodel

import (
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/ultradoc/ultrabuf"
)

// FormatVersion is the "version" key of serialized documents.
const FormatVersion = 2

// SectionType identifies the kind of a Section.
type SectionType string

const (
	Heading   SectionType = "heading"
	Paragraph SectionType = "paragraph"
	List      SectionType = "list"
	Table     SectionType = "table"
	CodeBlock SectionType = "code_block"
	Image     SectionType = "image"
)

// SectionTypes lists every SectionType in rendering order of statistics.
var SectionTypes = []SectionType{Heading, Paragraph, List, CodeBlock, Image, Table}

// List types.
const (
	Bullet    = "bullet"
	Numbering = "numbering"
)

// InlineHyperlink is the only inline format type.
const InlineHyperlink = "hyperlink"

// InlineFormat marks [Start, End) of a Section's content, in characters.
type InlineFormat struct {
	Type  string `json:"type"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	URL   string `json:"url"`
}

// TableData holds a table's header and body cells.
type TableData struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Section is one rendered unit of a document.
type Section struct {
	Type          SectionType         `json:"type"`
	Content       string              `json:"content"`
	Level         int                 `json:"level,omitempty"`
	ListType      string              `json:"list_type,omitempty"`
	InlineFormats []InlineFormat      `json:"inline_formats,omitempty"`
	ImageInfo     *ultrabuf.ImageInfo `json:"image_info,omitempty"`
	TableData     *TableData          `json:"table_data,omitempty"`
	Mutations     []int               `json:"mutations,omitempty"` // source Mutation indices
}

// Document is an ordered sequence of Sections.
type Document struct {
	Sections []Section
	Source   string // optional provenance, e.g. the input file or URL
}

type documentJSON struct {
	Version  int          `json:"version"`
	Document documentBody `json:"document"`
	Source   string       `json:"source,omitempty"`
}

type documentBody struct {
	Sections []Section `json:"sections"`
}

// MarshalJSON emits {"version": 2, "document": {"sections": [...]}}.
func (d Document) MarshalJSON() ([]byte, error) {
	sections := d.Sections
	if sections == nil {
		sections = []Section{}
	}
	return json.Marshal(documentJSON{
		Version:  FormatVersion,
		Document: documentBody{Sections: sections},
		Source:   d.Source,
	})
}

// UnmarshalJSON reads the version-2 form. Other versions are rejected.
func (d *Document) UnmarshalJSON(b []byte) error {
	var raw documentJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Version != FormatVersion {
		return fmt.Errorf("docmodel: unsupported document version %d", raw.Version)
	}
	d.Sections = raw.Document.Sections
	d.Source = raw.Source
	return nil
}
