// CLAUDE:SUMMARY Mutation record and the wire-field → Mutation mapper (fields 1..9, property maps, text sub-encodings).
package ultrabuf

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/hazyhaar/ultradoc/wire"
)

// ImageInfo locates an embedded picture.
type ImageInfo struct {
	URL      string `json:"url"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Hyperlink is the first HYPERLINK field found in a Mutation's text.
type Hyperlink struct {
	URL         string `json:"url"`
	DisplayText string `json:"display_text"`
}

// ListMarker is the first list marker found in a Mutation's text.
type ListMarker struct {
	Type       string `json:"type"` // bullet, numbering or unknown
	Marker     string `json:"marker"`
	MarkerChar string `json:"marker_char"`
}

// Properties is a decoded property structure: group name → key → value.
// Values are uint64, string, or map[string]any{"val": uint64}.
type Properties map[string]map[string]any

// Int returns the integer value of group.key, unwrapping {"val": n}.
func (p Properties) Int(group, key string) (int, bool) {
	v, ok := p[group][key]
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case uint64:
		return int(x), true
	case map[string]any:
		if n, ok := x["val"].(uint64); ok {
			return int(n), true
		}
	}
	return 0, false
}

// ValInt returns the integer under group.key only when it is wrapped as {"val": n}.
func (p Properties) ValInt(group, key string) (int, bool) {
	m, ok := p[group][key].(map[string]any)
	if !ok {
		return 0, false
	}
	n, ok := m["val"].(uint64)
	return int(n), ok
}

// String returns group.key as a string, either stored directly or as {"val": s}.
func (p Properties) String(group, key string) (string, bool) {
	switch x := p[group][key].(type) {
	case string:
		return x, x != ""
	case map[string]any:
		s, ok := x["val"].(string)
		return s, ok && s != ""
	}
	return "", false
}

// Mutation is one decoded edit operation. Offsets are character offsets into
// the text of the first insert-string Mutation.
type Mutation struct {
	Type       MutationType
	Target     string
	Mode       string
	Begin      *int
	End        *int
	Text       string
	Properties Properties
	AuthorBlob []byte
	Author     string // AuthorBlob decoded as lossy UTF-8
	AuthorInfo *AuthorInfo
	StatusCode *int
	Marker     string
	ImageInfo  *ImageInfo
	Hyperlink  *Hyperlink
	ListMarker *ListMarker
	StyleID    string
	Alignment  string
}

// Status returns the status code and whether it is set.
func (m *Mutation) Status() (int, bool) {
	if m.StatusCode == nil {
		return 0, false
	}
	return *m.StatusCode, true
}

// HasStatus reports whether the Mutation is of type t with status code code.
func (m *Mutation) HasStatus(t MutationType, code int) bool {
	return m.Type == t && m.StatusCode != nil && *m.StatusCode == code
}

// BeginOr returns the begin index, or def when absent.
func (m *Mutation) BeginOr(def int) int {
	if m.Begin == nil {
		return def
	}
	return *m.Begin
}

// TypeName returns the short type code ("is", "mp", ...).
func (m *Mutation) TypeName() string { return m.Type.ShortName() }

// StatusName resolves the status code against the table matching the type.
func (m *Mutation) StatusName() string {
	if m.StatusCode == nil {
		return ""
	}
	switch m.Type {
	case ModifyProperty:
		return modifyTypeNames[*m.StatusCode]
	case ModifyStyle:
		return modifyStyleTypeNames[*m.StatusCode]
	}
	return ""
}

var (
	hyperlinkTextRe  = regexp.MustCompile(`\x13HYPERLINK\s+([^\x14]+)\x14([^\x15]+)\x15`)
	listMarkerTextRe = regexp.MustCompile(`\x08([-\w])`)
	authorStyleIDRe  = regexp.MustCompile(`\x06([a-zA-Z0-9]{6})`)
)

// Mutations maps the top-level fields of a decoded payload to Mutations in
// source order: field 1 wraps repeated field 2 entries, one per Mutation.
func Mutations(fields []wire.Field) []Mutation {
	var out []Mutation
	for _, f := range fields {
		if f.Number != 1 || len(f.Children) == 0 {
			continue
		}
		for _, entry := range f.Children {
			if entry.Number != 2 || len(entry.Children) == 0 {
				continue
			}
			out = append(out, mapMutation(entry))
		}
	}
	return out
}

// Version returns the document version carried in field 1.1, or 0.
func Version(fields []wire.Field) uint64 {
	for _, f := range fields {
		if f.Number != 1 || len(f.Children) == 0 {
			continue
		}
		for _, c := range f.Children {
			if c.Number == 1 && c.Type == wire.TypeVarint {
				return c.Value
			}
		}
	}
	return 0
}

func mapMutation(entry wire.Field) Mutation {
	var m Mutation
	for _, nf := range entry.Children {
		mapField(nf, &m)
	}

	if m.Text != "" {
		m.Hyperlink = parseTextHyperlink(m.Text)
		m.ListMarker = parseTextListMarker(m.Text)
	}
	m.Alignment = alignment(m.Properties)
	m.StyleID = resolveStyleID(&m)
	return m
}

func mapField(nf wire.Field, m *Mutation) {
	switch nf.Number {
	case 1:
		if nf.Type == wire.TypeVarint {
			m.Type = MutationType(nf.Value)
		}
	case 2:
		if v, ok := nestedIndex(nf); ok {
			m.Begin = &v
		}
	case 3:
		if v, ok := nestedIndex(nf); ok {
			m.End = &v
		}
	case 4:
		if nf.Type == wire.TypeVarint {
			m.Target = targetName(nf.Value)
		} else if len(nf.Raw) > 0 {
			m.Target = canonicalName(nf.Text(), textTargets)
		}
	case 5:
		if nf.Type == wire.TypeVarint {
			m.Mode = modeName(nf.Value)
		} else if len(nf.Raw) > 0 {
			m.Mode = canonicalName(nf.Text(), textModes)
		}
	case 6:
		mapContent(nf, m)
	case 7:
		if len(nf.Raw) == 0 {
			return
		}
		m.AuthorBlob = nf.Raw
		m.AuthorInfo = ParseAuthor(nf.Raw)
		m.Author = m.AuthorInfo.Raw
		if IsImageHosted(m.Author) {
			if img, ok := ExtractImage(m.Author); ok {
				m.ImageInfo = &img
			}
		}
	case 8:
		if nf.Type == wire.TypeVarint {
			v := int(nf.Value)
			m.StatusCode = &v
		}
	case 9:
		if len(nf.Raw) > 0 {
			m.Marker = nf.Text()
		}
	}
}

// nestedIndex reads a {1: varint} offset. Offsets beyond int32 are
// treated as absent.
func nestedIndex(nf wire.Field) (int, bool) {
	if len(nf.Children) == 0 {
		return 0, false
	}
	inner, ok := nf.Child(1)
	if !ok || inner.Type != wire.TypeVarint || inner.Value > math.MaxInt32 {
		return 0, false
	}
	return int(inner.Value), true
}

// mapContent disambiguates field 6. Nested field 1 entries that all decode
// as property groups form a property map; otherwise the first nested field 1
// holding bytes is inline text, and a payload that does not decode as fields
// is plain text.
//
// Property layout:
//
//	6: { 1: group* }
//	group: { 1: name, 2: entry* }
//	entry: { 1: key, 2: value }   value = varint | string | { 1|2: varint }
func mapContent(nf wire.Field, m *Mutation) {
	if len(nf.Raw) == 0 {
		return
	}
	if len(nf.Children) == 0 {
		m.Text = nf.Text()
		return
	}
	if pr := parseProperties(nf.Children); pr != nil {
		m.Properties = pr
		return
	}
	for _, sub := range nf.Children {
		if sub.Number == 1 && len(sub.Raw) > 0 {
			m.Text = sub.Text()
			return
		}
	}
}

// parseProperties returns nil unless every field-1 entry is a property group.
func parseProperties(fields []wire.Field) Properties {
	pr := Properties{}
	for _, g := range fields {
		if g.Number != 1 || len(g.Raw) == 0 {
			continue
		}
		name, ok := propertyKey(g)
		if !ok {
			return nil
		}
		entries := map[string]any{}
		for _, e := range g.ChildrenNumbered(2) {
			key, ok := propertyKey(e)
			if !ok {
				continue
			}
			if v, ok := propertyValue(e); ok {
				entries[key] = v
			}
		}
		if len(entries) == 0 {
			return nil
		}
		pr[name] = entries
	}
	if len(pr) == 0 {
		return nil
	}
	return pr
}

// propertyKey reads the identifier in field 1 of a group or entry.
func propertyKey(f wire.Field) (string, bool) {
	k, ok := f.Child(1)
	if !ok || k.Type != wire.TypeBytes || len(k.Raw) == 0 {
		return "", false
	}
	for _, b := range k.Raw {
		if !(b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_') {
			return "", false
		}
	}
	return string(k.Raw), true
}

// propertyValue projects the first value field 2 next to the key.
func propertyValue(e wire.Field) (any, bool) {
	v, ok := e.Child(2)
	if !ok {
		return nil, false
	}
	switch {
	case v.Type == wire.TypeVarint:
		return v.Value, true
	case len(v.Children) > 0:
		nested := map[string]any{}
		for _, n := range v.Children {
			if (n.Number == 1 || n.Number == 2) && n.Type == wire.TypeVarint {
				nested["val"] = n.Value
			}
		}
		if len(nested) > 0 {
			return nested, true
		}
		if len(v.Raw) > 0 {
			return v.Text(), true
		}
	case len(v.Raw) > 0:
		return v.Text(), true
	}
	return nil, false
}

func parseTextHyperlink(s string) *Hyperlink {
	m := hyperlinkTextRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return &Hyperlink{URL: strings.TrimSpace(m[1]), DisplayText: strings.TrimSpace(m[2])}
}

func parseTextListMarker(s string) *ListMarker {
	m := listMarkerTextRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	typ := "unknown"
	switch m[1] {
	case "-":
		typ = "bullet"
	case "8":
		typ = "numbering"
	}
	return &ListMarker{Type: typ, Marker: `\x08` + m[1], MarkerChar: m[1]}
}

// alignment reads paragraph.jc, a bare integer or {val}.
func alignment(pr Properties) string {
	if pr == nil {
		return ""
	}
	jc, ok := pr.Int("paragraph", "jc")
	if !ok {
		return ""
	}
	if name, ok := alignmentNames[jc]; ok {
		return name
	}
	return "LEFT"
}

// resolveStyleID prefers a \x06-prefixed id in the author text when it
// differs from the one AuthorInfo found.
func resolveStyleID(m *Mutation) string {
	if m.AuthorInfo == nil {
		return ""
	}
	if sm := authorStyleIDRe.FindStringSubmatch(m.AuthorInfo.Raw); sm != nil && sm[1] != m.AuthorInfo.StyleID {
		return sm[1]
	}
	return m.AuthorInfo.StyleID
}

// mutationJSON is the dictionary form of a Mutation.
type mutationJSON struct {
	Ty             string      `json:"ty"`
	TyCode         uint64      `json:"ty_code"`
	Target         string      `json:"mt,omitempty"`
	Mode           string      `json:"mm,omitempty"`
	Begin          *int        `json:"bi,omitempty"`
	End            *int        `json:"ei,omitempty"`
	Text           string      `json:"s,omitempty"`
	Properties     Properties  `json:"pr,omitempty"`
	Author         string      `json:"author,omitempty"`
	Marker         string      `json:"marker,omitempty"`
	Hyperlink      *Hyperlink  `json:"hyperlink,omitempty"`
	ListMarker     *ListMarker `json:"list_marker,omitempty"`
	StyleID        string      `json:"style_id,omitempty"`
	AuthorInfo     *AuthorInfo `json:"author_info,omitempty"`
	StatusCode     *int        `json:"status_code,omitempty"`
	StatusCodeName string      `json:"status_code_name,omitempty"`
	ImageInfo      *ImageInfo  `json:"image_info,omitempty"`
	Alignment      string      `json:"alignment,omitempty"`
}

// MarshalJSON emits the dictionary form used by intermediate artifacts.
func (m Mutation) MarshalJSON() ([]byte, error) {
	return json.Marshal(mutationJSON{
		Ty:             m.Type.ShortName(),
		TyCode:         uint64(m.Type),
		Target:         m.Target,
		Mode:           m.Mode,
		Begin:          m.Begin,
		End:            m.End,
		Text:           m.Text,
		Properties:     m.Properties,
		Author:         m.Author,
		Marker:         m.Marker,
		Hyperlink:      m.Hyperlink,
		ListMarker:     m.ListMarker,
		StyleID:        m.StyleID,
		AuthorInfo:     m.AuthorInfo,
		StatusCode:     m.StatusCode,
		StatusCodeName: m.StatusName(),
		ImageInfo:      m.ImageInfo,
		Alignment:      m.Alignment,
	})
}
