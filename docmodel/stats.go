package docmodel

import (
	"unicode"

	"github.com/hazyhaar/ultradoc/ultrabuf"
)

// Stats summarizes a Document.
type Stats struct {
	TotalSections  int                  `json:"total_sections"`
	Counts         map[SectionType]int  `json:"counts"`
	HyperlinkCount int                  `json:"hyperlink_count"`
	Images         []ultrabuf.ImageInfo `json:"images"`
}

// Count returns the number of sections of type t.
func (s Stats) Count(t SectionType) int { return s.Counts[t] }

// ComputeStats counts sections per type, hyperlinks and images.
func ComputeStats(d Document) Stats {
	st := Stats{
		TotalSections: len(d.Sections),
		Counts:        make(map[SectionType]int, len(SectionTypes)),
		Images:        []ultrabuf.ImageInfo{},
	}
	for _, t := range SectionTypes {
		st.Counts[t] = 0
	}
	for _, s := range d.Sections {
		st.Counts[s.Type]++
		st.HyperlinkCount += len(s.InlineFormats)
		if s.Type == Image && s.ImageInfo != nil {
			st.Images = append(st.Images, *s.ImageInfo)
		}
	}
	return st
}

// BufferQuality describes how much of a text buffer is structure rather
// than content.
type BufferQuality struct {
	Chars          int     `json:"chars"`
	ControlChars   int     `json:"control_chars"`
	PrintableRatio float64 `json:"printable_ratio"`
}

// MeasureBuffer counts control bytes in the reconstructed text buffer.
// Tab and newline count as printable; U+FFFD does not.
func MeasureBuffer(text string) BufferQuality {
	var q BufferQuality
	printable := 0
	for _, r := range text {
		q.Chars++
		switch {
		case r < 0x20 && r != '\t' && r != '\n':
			q.ControlChars++
		case r == unicode.ReplacementChar:
		default:
			printable++
		}
	}
	if q.Chars == 0 {
		q.PrintableRatio = 1
		return q
	}
	q.PrintableRatio = float64(printable) / float64(q.Chars)
	return q
}
