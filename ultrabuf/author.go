package ultrabuf

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hazyhaar/ultradoc/wire"
)

// Timestamps outside [2020-01-01, 2033-05-18] are treated as numeric noise.
const (
	minTimestamp = 1577836800000
	maxTimestamp = 2000000000000
)

// Font size plausibility bounds, in points.
const (
	minFontSize = 6.0
	maxFontSize = 144.0
)

// Font is one font name found in an author blob.
type Font struct {
	Name    string `json:"name"`
	Variant string `json:"variant,omitempty"` // primary, alternative or special
}

// AuthorInfo is the best-effort decode of a Mutation's author blob.
type AuthorInfo struct {
	UserID    string    `json:"user_id,omitempty"`
	Timestamp int64     `json:"timestamp,omitempty"` // milliseconds
	Fonts     []Font    `json:"fonts,omitempty"`
	StyleID   string    `json:"style_id,omitempty"`
	Colors    []string  `json:"colors,omitempty"`
	FontSizes []float64 `json:"font_sizes,omitempty"`
	Raw       string    `json:"-"`
}

var (
	userIDRe        = regexp.MustCompile(`p\.(\d{17,})`)
	markedTimeRe    = regexp.MustCompile(`\x06\x0f\n\r(\d{13})`)
	timestampRe     = regexp.MustCompile(`(\d{13})`)
	colorRe         = regexp.MustCompile(`([0-9A-Fa-f]{6})`)
	authorStyleRe   = regexp.MustCompile(`\n\n\n\x08\n\x06([a-zA-Z0-9]{6})`)
	fontVariantByte = map[byte]string{'*': "primary", ':': "alternative", 'J': "special"}
)

const (
	styleVariantMarker = "\x0e"
	fontNameMarker     = "\x0c"
)

// ParseAuthor decodes an author blob. It returns nil for an empty blob;
// every other field is optional and left zero when its pattern is absent.
func ParseAuthor(raw []byte) *AuthorInfo {
	if len(raw) == 0 {
		return nil
	}
	text := wire.LossyString(raw)

	info := &AuthorInfo{
		Raw:       text,
		Timestamp: parseTimestamp(text),
		Fonts:     parseFonts(text),
		Colors:    parseColors(text),
		FontSizes: parseFontSizes(raw),
	}
	if m := userIDRe.FindStringSubmatch(text); m != nil {
		info.UserID = "p." + m[1]
	}
	if m := authorStyleRe.FindStringSubmatch(text); m != nil {
		info.StyleID = m[1]
	}
	return info
}

func plausibleTimestamp(s string) (int64, bool) {
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts < minTimestamp || ts > maxTimestamp {
		return 0, false
	}
	return ts, true
}

// parseTimestamp prefers the \x06\x0f\n\r marker. Otherwise it takes the
// first plausible 13-digit number whose first occurrence is preceded, within
// five characters, by \x06 or \r.
func parseTimestamp(text string) int64 {
	if m := markedTimeRe.FindStringSubmatch(text); m != nil {
		if ts, ok := plausibleTimestamp(m[1]); ok {
			return ts
		}
	}
	for _, m := range timestampRe.FindAllString(text, -1) {
		ts, ok := plausibleTimestamp(m)
		if !ok {
			continue
		}
		idx := strings.Index(text, m)
		if idx <= 0 {
			continue
		}
		prefix := runesBefore(text, idx, 5)
		if strings.ContainsAny(prefix, "\x06\r") {
			return ts
		}
	}
	return 0
}

func parseFonts(text string) []Font {
	var fonts []Font
	for _, part := range strings.Split(text, styleVariantMarker) {
		if !strings.Contains(part, fontNameMarker) {
			continue
		}
		pieces := strings.Split(part, fontNameMarker)
		name := pieces[len(pieces)-1]
		if name == "" {
			continue
		}

		var variant string
		if v, ok := fontVariantByte[name[len(name)-1]]; ok {
			variant = v
			name = name[:len(name)-1]
		}

		if i := strings.IndexFunc(name, func(r rune) bool {
			return r < 0x20 && !strings.ContainsRune(" \t\n\r", r)
		}); i >= 0 {
			name = name[:i]
		}
		name = strings.TrimSpace(name)

		if name == "" || (utf8.RuneCountInString(name) == 1 && strings.Contains(".1-9ng", name)) {
			continue
		}
		if strings.IndexFunc(name, isFontNameRune) < 0 {
			continue
		}
		fonts = append(fonts, Font{Name: name, Variant: variant})
	}
	return fonts
}

func isFontNameRune(r rune) bool {
	return (r >= 0x4e00 && r <= 0x9fff) || unicode.IsLetter(r)
}

// parseColors keeps 6-hex-digit runs not flanked by three digits and not
// adjacent to a user id marker.
func parseColors(text string) []string {
	var colors []string
	for _, loc := range colorRe.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if allDigits(runesBefore(text, start, 3)) || allDigits(runesAfter(text, end, 3)) {
			continue
		}
		// Python-style window text[start-3 : start+1].
		window := runesBefore(text, start, 3) + runesAfter(text, start, 1)
		if strings.Contains(window, "p.") {
			continue
		}
		colors = append(colors, text[start:end])
	}
	return colors
}

// parseFontSizes reinterprets fixed-width fields at the top level and one
// level down as IEEE floats.
func parseFontSizes(raw []byte) []float64 {
	var sizes []float64
	seen := map[float64]bool{}
	add := func(f wire.Field) {
		v, ok := fontSize(f)
		if !ok || seen[v] {
			return
		}
		seen[v] = true
		sizes = append(sizes, v)
	}
	for _, f := range wire.DecodeDepth(raw, 5) {
		add(f)
		for _, c := range f.Children {
			add(c)
		}
	}
	return sizes
}

func fontSize(f wire.Field) (float64, bool) {
	var v float64
	switch f.Type {
	case wire.TypeFixed64:
		v = math.Float64frombits(f.Value)
	case wire.TypeFixed32:
		v = float64(math.Float32frombits(uint32(f.Value)))
	default:
		return 0, false
	}
	if math.IsNaN(v) || v < minFontSize || v > maxFontSize {
		return 0, false
	}
	return math.Round(v*10) / 10, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// runesBefore returns up to n runes of s ending at byte offset i.
func runesBefore(s string, i, n int) string {
	j := i
	for k := 0; k < n && j > 0; k++ {
		_, size := utf8.DecodeLastRuneInString(s[:j])
		j -= size
	}
	return s[j:i]
}

// runesAfter returns up to n runes of s starting at byte offset i.
func runesAfter(s string, i, n int) string {
	j := i
	for k := 0; k < n && j < len(s); k++ {
		_, size := utf8.DecodeRuneInString(s[j:])
		j += size
	}
	return s[i:j]
}
