package ultrabuf

import (
	"math"
	"reflect"
	"testing"

	"github.com/hazyhaar/ultradoc/wire"
)

func TestParseAuthor_Empty(t *testing.T) {
	if info := ParseAuthor(nil); info != nil {
		t.Fatalf("expected nil, got %+v", info)
	}
}

func TestParseAuthor_Fields(t *testing.T) {
	raw := "\x0a\x13p.14400000000000000123\x05flags\x06\x0f\n\r1700000000000" +
		"\x22\x06FF8800\x2a" +
		"\n\n\n\x08\n\x06sty001" +
		"\x0e\x0c微软雅黑*" +
		"\x0e\x0cArial:" +
		"\x0e\x0cn" +
		"\x0e\x0c123"

	info := ParseAuthor([]byte(raw))
	if info.UserID != "p.14400000000000000123" {
		t.Errorf("user id: %q", info.UserID)
	}
	if info.Timestamp != 1700000000000 {
		t.Errorf("timestamp: %d", info.Timestamp)
	}
	if info.StyleID != "sty001" {
		t.Errorf("style id: %q", info.StyleID)
	}
	if !reflect.DeepEqual(info.Colors, []string{"FF8800"}) {
		t.Errorf("colors: %v", info.Colors)
	}
	wantFonts := []Font{{Name: "微软雅黑", Variant: "primary"}, {Name: "Arial", Variant: "alternative"}}
	if !reflect.DeepEqual(info.Fonts, wantFonts) {
		t.Errorf("fonts: %+v", info.Fonts)
	}
	if info.Raw != raw {
		t.Errorf("raw text not preserved")
	}
}

func TestParseAuthor_TimestampFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int64
	}{
		{"after record marker", "xx\x06ab1650000000000zz", 1650000000000},
		{"after carriage return", "abc\r1650000000000", 1650000000000},
		{"no marker", "abcdefg1650000000000", 0},
		{"out of window", "\x069999999999999", 0},
		{"at start", "1650000000000", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAuthor([]byte(tt.raw)).Timestamp; got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseAuthor_ColorRejections(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"*AABBCC*", []string{"AABBCC"}},
		{"*AABBCC456*", nil},
		{"ts:1700000000000*", nil},
		{"p.AABBCC*", nil},
	}
	for _, tt := range tests {
		got := ParseAuthor([]byte(tt.raw)).Colors
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%q: got %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseAuthor_FontSizes(t *testing.T) {
	var raw []byte
	raw = wire.AppendFixed32Field(raw, 3, math.Float32bits(10.5))
	raw = wire.AppendBytesField(raw, 4, wire.AppendFixed64Field(nil, 1, math.Float64bits(12)))
	raw = wire.AppendFixed32Field(raw, 5, math.Float32bits(10.5))
	raw = wire.AppendFixed32Field(raw, 6, math.Float32bits(500))
	raw = wire.AppendFixed32Field(raw, 7, math.Float32bits(2))

	got := ParseAuthor(raw).FontSizes
	if !reflect.DeepEqual(got, []float64{10.5, 12}) {
		t.Fatalf("font sizes: %v", got)
	}
}
