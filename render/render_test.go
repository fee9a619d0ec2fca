package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/ultradoc/docmodel"
	"github.com/hazyhaar/ultradoc/ultrabuf"
)

func sampleDoc() docmodel.Document {
	return docmodel.Document{Sections: []docmodel.Section{
		{Type: docmodel.Heading, Content: "Title", Level: 2},
		{Type: docmodel.Paragraph, Content: "See Example here", InlineFormats: []docmodel.InlineFormat{
			{Type: docmodel.InlineHyperlink, Start: 4, End: 11, URL: "http://example.com"},
		}},
		{Type: docmodel.List, Content: "one", ListType: docmodel.Bullet},
		{Type: docmodel.List, Content: "two", ListType: docmodel.Numbering},
		{Type: docmodel.CodeBlock, Content: "x := 1"},
		{Type: docmodel.Image, ImageInfo: &ultrabuf.ImageInfo{URL: "https://img.example/a.png", Width: 640, Height: 480}},
		{Type: docmodel.Table, TableData: &docmodel.TableData{Headers: []string{"A", "B"}, Rows: [][]string{{"C"}, {"D", "E", "F"}}}},
	}}
}

func TestMarkdown(t *testing.T) {
	got := Markdown(sampleDoc(), Options{})
	want := strings.Join([]string{
		"## Title",
		"",
		"See [Example](http://example.com) here",
		"",
		"- one",
		"",
		"1. two",
		"",
		"```",
		"x := 1",
		"```",
		"",
		"![image (640x480)](https://img.example/a.png)",
		"",
		"| A | B |",
		"| --- | --- |",
		"| C |  |",
		"| D | E |",
	}, "\n")
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestMarkdown_FrontMatter(t *testing.T) {
	got := Markdown(docmodel.Document{Sections: []docmodel.Section{{Type: docmodel.Paragraph, Content: "x"}}},
		Options{PageURL: "https://docs.qq.com/doc/DAbc"})
	if got != "---\npageUrl: https://docs.qq.com/doc/DAbc\n---\n\nx" {
		t.Fatalf("got %q", got)
	}
}

func TestMarkdown_LinksBackToFront(t *testing.T) {
	s := docmodel.Section{Type: docmodel.Paragraph, Content: "a 链接 b c", InlineFormats: []docmodel.InlineFormat{
		{Type: docmodel.InlineHyperlink, Start: 0, End: 1, URL: "u1"},
		{Type: docmodel.InlineHyperlink, Start: 2, End: 4, URL: "u2"},
		{Type: docmodel.InlineHyperlink, Start: 5, End: 5, URL: "empty"},
		{Type: docmodel.InlineHyperlink, Start: 7, End: 8},
	}}
	got := applyLinks(s.Content, s.InlineFormats)
	if got != "[a](u1) [链接](u2) b c" {
		t.Fatalf("got %q", got)
	}
}

func TestMarkdown_EmptyCodeBlockAndImageDefaults(t *testing.T) {
	d := docmodel.Document{Sections: []docmodel.Section{
		{Type: docmodel.CodeBlock},
		{Type: docmodel.Image, ImageInfo: &ultrabuf.ImageInfo{URL: "u"}},
		{Type: docmodel.List},
	}}
	if got := Markdown(d, Options{}); got != "```\n```\n\n![image](u)" {
		t.Fatalf("got %q", got)
	}
}

func TestHTML(t *testing.T) {
	d := sampleDoc()
	d.Sections = append(d.Sections, docmodel.Section{Type: docmodel.Paragraph, Content: "<script>alert(1)</script>"})
	got, err := HTML(d, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"<h2>Title</h2>",
		`<a href="http://example.com" rel="nofollow">Example</a>`,
		"<ul><li>one</li></ul><ol><li>two</li></ol>",
		"<pre><code>x := 1</code></pre>",
		`width="640"`,
		"<th>A</th>",
		"<td>C</td><td></td>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %s in %s", want, got)
		}
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("script survived: %s", got)
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleDoc(), FormatJSON, Options{}); err != nil {
		t.Fatal(err)
	}
	var back docmodel.Document
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("json output does not parse: %v", err)
	}
	if len(back.Sections) != 7 {
		t.Fatalf("sections: %d", len(back.Sections))
	}

	if err := Write(&buf, sampleDoc(), Format("pdf"), Options{}); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatMarkdown, "MD": FormatMarkdown, "html": FormatHTML, " json ": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("%q: got %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("docx"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("err = %v", err)
	}
}
