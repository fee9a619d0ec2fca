package ultrabuf

import (
	"reflect"
	"testing"

	"github.com/hazyhaar/ultradoc/wire"
)

func TestExtractImage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ImageInfo
		ok   bool
	}{
		{
			name: "trailing star and control",
			in:   "\x12https://docimg.wdcdn.example/pic?w=640&h=480&type=png*\x00rest",
			want: ImageInfo{URL: "https://docimg.wdcdn.example/pic?w=640&h=480&type=png", Width: 640, Height: 480, MimeType: "png"},
			ok:   true,
		},
		{
			name: "trailing punctuation",
			in:   "see https://qpic.example/a.jpg). ok",
			want: ImageInfo{URL: "https://qpic.example/a.jpg"},
			ok:   true,
		},
		{
			name: "first non image url skipped",
			in:   "https://example.com/page https://img.example/b",
			want: ImageInfo{URL: "https://img.example/b"},
			ok:   true,
		},
		{name: "none", in: "no url here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractImage(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("got %+v %v, want %+v %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTextboxMappings(t *testing.T) {
	codeStory := "\x0a\x08\x0a\x06cnt001J"
	plainStory := "\x0a\x08\x0a\x06cnt002"
	table := func(outer, inner string) string {
		return ":\x08\x0a\x06" + outer + ":\x08\x0a\x06" + inner
	}

	data := payload(1,
		entry(tyField(ModifyProperty), statusField(TextboxStoryProperty), authorField(plainStory)),
		entry(tyField(ModifyProperty), statusField(TextboxStoryProperty), authorField(codeStory)),
		entry(tyField(ModifyProperty), statusField(TextboxStoryProperty), authorField(plainStory)),
		entry(tyField(ModifyProperty), statusField(TableProperty), beginField(10), authorField(table("box001", "cnt001"))),
		entry(tyField(ModifyProperty), statusField(TableProperty), beginField(20), authorField(table("box002", "cnt002"))),
		// Image-hosted, no begin index, single id: all skipped.
		entry(tyField(ModifyProperty), statusField(TableProperty), beginField(30), authorField(table("box003", "cnt003")+"wdcdn")),
		entry(tyField(ModifyProperty), statusField(TableProperty), authorField(table("box004", "cnt004"))),
		entry(tyField(ModifyProperty), statusField(TableProperty), beginField(40), authorField(":\x08\x0a\x06box005")),
	)

	got := TextboxMappings(Mutations(wire.Decode(data)))
	want := []TextboxMapping{
		{VisualBegin: 10, TextboxStyleID: "box001", ContentStyleID: "cnt001", IsCodeBlock: true},
		{VisualBegin: 20, TextboxStyleID: "box002", ContentStyleID: "cnt002", IsCodeBlock: false},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

func TestParse(t *testing.T) {
	data := payload(3,
		entry(tyField(InsertString), textField("body\r")),
		entry(tyField(ModifyProperty), statusField(PictureProperty), beginField(2),
			authorField("https://docimg.wdcdn.example/p.png?w=1&h=2")),
	)
	res := Parse(data, Options{})
	if res.Version != 3 || len(res.Mutations) != 2 {
		t.Fatalf("version=%d mutations=%d", res.Version, len(res.Mutations))
	}
	if len(res.Images) != 1 || res.Images[0].Width != 1 {
		t.Fatalf("images: %+v", res.Images)
	}
	if res.TextboxMappings == nil {
		t.Fatalf("textbox mappings should be empty, not nil")
	}
	if got := Text(res.Mutations); got != "body\r" {
		t.Fatalf("text: %q", got)
	}
}

func TestParse_Garbage(t *testing.T) {
	res := Parse([]byte{0xff, 0xff, 0xff, 0x07}, Options{MaxDepth: 3})
	if len(res.Mutations) != 0 || Text(res.Mutations) != "" {
		t.Fatalf("expected empty result, got %+v", res)
	}
}
