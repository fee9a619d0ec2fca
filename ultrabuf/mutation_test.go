package ultrabuf

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/hazyhaar/ultradoc/wire"
)

func TestMutations_Fields(t *testing.T) {
	data := payload(7,
		entry(
			tyField(InsertString),
			beginField(0),
			endField(12),
			wire.AppendVarintField(nil, 4, 2),
			wire.AppendVarintField(nil, 5, 1),
			textField("hello\rworld\r"),
			wire.AppendStringField(nil, 9, "mk"),
		),
		entry(
			tyField(ModifyProperty),
			beginField(3),
			wire.AppendVarintField(nil, 4, 99),
			wire.AppendStringField(nil, 5, "replace"),
			statusField(102),
		),
	)

	fields := wire.Decode(data)
	if v := Version(fields); v != 7 {
		t.Fatalf("version: got %d, want 7", v)
	}
	muts := Mutations(fields)
	if len(muts) != 2 {
		t.Fatalf("mutations: got %d, want 2", len(muts))
	}

	m := muts[0]
	if m.Type != InsertString || m.Target != TargetParagraph || m.Mode != ModeInsert {
		t.Errorf("first: type=%v target=%q mode=%q", m.Type, m.Target, m.Mode)
	}
	if m.BeginOr(-1) != 0 || m.End == nil || *m.End != 12 {
		t.Errorf("first: begin=%v end=%v", m.Begin, m.End)
	}
	if m.Text != "hello\rworld\r" || m.Marker != "mk" {
		t.Errorf("first: text=%q marker=%q", m.Text, m.Marker)
	}

	m = muts[1]
	if m.Target != "unknown(99)" || m.Mode != "replace" {
		t.Errorf("second: target=%q mode=%q", m.Target, m.Mode)
	}
	if !m.HasStatus(ModifyProperty, ParagraphProperty) {
		t.Errorf("second: status %v", m.StatusCode)
	}
	if m.StatusName() != "PARAGRAPH_PROPERTY" {
		t.Errorf("status name: %q", m.StatusName())
	}
	if m.Text != "" || m.End != nil {
		t.Errorf("second: unexpected text or end")
	}
}

func TestMutations_SkipsEmptyEntries(t *testing.T) {
	inner := wire.AppendBytesField(nil, 2, nil)
	inner = wire.AppendVarintField(inner, 2, 5)
	inner = wire.AppendBytesField(inner, 2, tyField(DeleteString))
	data := wire.AppendBytesField(nil, 1, inner)
	data = wire.AppendBytesField(data, 3, payload(1, tyField(InsertString)))

	muts := Mutations(wire.Decode(data))
	if len(muts) != 1 || muts[0].Type != DeleteString {
		t.Fatalf("got %+v", muts)
	}
}

func TestMutations_PlainTextContent(t *testing.T) {
	// A field 6 payload that does not decode as fields is inline text.
	data := payload(1, entry(tyField(InsertString), wire.AppendStringField(nil, 6, "\x0f\x0f")))
	muts := Mutations(wire.Decode(data))
	if len(muts) != 1 || muts[0].Text != "\x0f\x0f" {
		t.Fatalf("got %+v", muts)
	}
}

func TestMutations_Properties(t *testing.T) {
	tests := []struct {
		name  string
		value []byte
		want  string
	}{
		{"val", valValue(2), "CENTER"},
		{"bare", wire.AppendVarintField(nil, 2, 3), "RIGHT"},
		{"unknown", valValue(9), "LEFT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := payload(1, entry(tyField(ModifyProperty), propField("paragraph", "jc", tt.value)))
			muts := Mutations(wire.Decode(data))
			if len(muts) != 1 {
				t.Fatalf("mutations: %d", len(muts))
			}
			if muts[0].Properties == nil {
				t.Fatalf("no properties, text=%q", muts[0].Text)
			}
			if muts[0].Alignment != tt.want {
				t.Errorf("alignment: got %q, want %q", muts[0].Alignment, tt.want)
			}
		})
	}
}

func TestProperties_Accessors(t *testing.T) {
	data := payload(1,
		entry(tyField(ModifyProperty), propField("paragraph", "outlineLvl", valValue(2))),
		entry(tyField(ModifyProperty), propField("paragraph", "pStyle", wire.AppendStringField(nil, 2, "Heading2"))),
	)
	muts := Mutations(wire.Decode(data))
	if len(muts) != 2 {
		t.Fatalf("mutations: %d", len(muts))
	}
	if lvl, ok := muts[0].Properties.ValInt("paragraph", "outlineLvl"); !ok || lvl != 2 {
		t.Errorf("outlineLvl: %d %v", lvl, ok)
	}
	if name, ok := muts[1].Properties.String("paragraph", "pStyle"); !ok || name != "Heading2" {
		t.Errorf("pStyle: %q %v", name, ok)
	}
	if _, ok := muts[1].Properties.Int("paragraph", "missing"); ok {
		t.Errorf("missing key reported present")
	}
}

func TestMutations_TextIndexes(t *testing.T) {
	data := payload(1,
		entry(tyField(InsertString), textField("\x13HYPERLINK \"http://a.example\" \x14 Site \x15")),
		entry(tyField(InsertString), textField("\x088numbered")),
		entry(tyField(InsertString), textField("\x08xother")),
	)
	muts := Mutations(wire.Decode(data))
	if len(muts) != 3 {
		t.Fatalf("mutations: %d", len(muts))
	}
	h := muts[0].Hyperlink
	if h == nil || h.URL != `"http://a.example"` || h.DisplayText != "Site" {
		t.Errorf("hyperlink: %+v", h)
	}
	if lm := muts[1].ListMarker; lm == nil || lm.Type != "numbering" || lm.MarkerChar != "8" {
		t.Errorf("list marker: %+v", lm)
	}
	if lm := muts[2].ListMarker; lm == nil || lm.Type != "unknown" {
		t.Errorf("list marker: %+v", lm)
	}
}

func TestMutations_AuthorAndImage(t *testing.T) {
	author := "\x0a\x13p.14400000000000000123\x12https://docimage.wdcdn.example/x.png?w=20&h=10*\x00"
	data := payload(1, entry(tyField(ModifyProperty), authorField(author), statusField(114)))
	muts := Mutations(wire.Decode(data))
	if len(muts) != 1 {
		t.Fatalf("mutations: %d", len(muts))
	}
	m := muts[0]
	if m.AuthorInfo == nil || m.AuthorInfo.UserID != "p.14400000000000000123" {
		t.Fatalf("author info: %+v", m.AuthorInfo)
	}
	if m.Author != author {
		t.Errorf("author text: %q", m.Author)
	}
	if m.ImageInfo == nil || m.ImageInfo.Width != 20 || m.ImageInfo.Height != 10 {
		t.Fatalf("image: %+v", m.ImageInfo)
	}
}

func TestMutations_StyleIDResolution(t *testing.T) {
	// The \x06 pattern finds "zz9999" first; AuthorInfo finds "abc123".
	author := "\x06zz9999\n\n\n\x08\n\x06abc123"
	data := payload(1,
		entry(tyField(ModifyProperty), authorField(author)),
		entry(tyField(ModifyProperty), authorField("\n\n\n\x08\n\x06abc123")),
	)
	muts := Mutations(wire.Decode(data))
	if muts[0].StyleID != "zz9999" {
		t.Errorf("first: got %q", muts[0].StyleID)
	}
	if muts[1].StyleID != "abc123" {
		t.Errorf("second: got %q", muts[1].StyleID)
	}
}

func TestMutation_MarshalJSON(t *testing.T) {
	begin, status := 4, 102
	m := Mutation{Type: ModifyProperty, Begin: &begin, StatusCode: &status, StyleID: "000002"}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	for _, want := range []string{`"ty":"mp"`, `"ty_code":3`, `"bi":4`, `"status_code":102`, `"status_code_name":"PARAGRAPH_PROPERTY"`, `"style_id":"000002"`} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %s in %s", want, s)
		}
	}
	if strings.Contains(s, `"ei"`) || strings.Contains(s, `"image_info"`) {
		t.Errorf("unexpected optional keys in %s", s)
	}
}

func TestMutationType_ShortName(t *testing.T) {
	if got := MutationType(9).ShortName(); got != "unknown(9)" {
		t.Fatalf("got %q", got)
	}
	if got := CommentReference.ShortName(); got != "cr" {
		t.Fatalf("got %q", got)
	}
}

func TestMutations_OutOfRangeIndexes(t *testing.T) {
	data := payload(1,
		entry(tyField(ModifyProperty), beginField(1<<63+5), endField(math.MaxUint64), statusField(TextboxStoryProperty)),
		entry(tyField(ModifyProperty), beginField(math.MaxInt32+1), endField(math.MaxInt32)),
	)
	muts := Mutations(wire.Decode(data))
	if len(muts) != 2 {
		t.Fatalf("mutations: got %d, want 2", len(muts))
	}
	if muts[0].Begin != nil || muts[0].End != nil {
		t.Errorf("first: begin=%v end=%v, want both absent", muts[0].Begin, muts[0].End)
	}
	if muts[1].Begin != nil || muts[1].End == nil || *muts[1].End != math.MaxInt32 {
		t.Errorf("second: begin=%v end=%v", muts[1].Begin, muts[1].End)
	}
}

func TestMutations_TextualTargetAndMode(t *testing.T) {
	tests := []struct {
		target, mode         string
		wantTarget, wantMode string
	}{
		{"Comment", "REPLACE", TargetComment, ModeReplace},
		{"webSettings", "split", TargetWebSettings, ModeSplit},
		{"footnote", "upsert", "footnote", "upsert"},
	}
	for _, tt := range tests {
		data := payload(1, entry(
			tyField(ModifyProperty),
			wire.AppendStringField(nil, 4, tt.target),
			wire.AppendStringField(nil, 5, tt.mode),
		))
		muts := Mutations(wire.Decode(data))
		if len(muts) != 1 {
			t.Fatalf("%s: got %d mutations", tt.target, len(muts))
		}
		if muts[0].Target != tt.wantTarget || muts[0].Mode != tt.wantMode {
			t.Errorf("%s/%s: target=%q mode=%q", tt.target, tt.mode, muts[0].Target, muts[0].Mode)
		}
	}
}
