package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/ultradoc/docmodel"
)

func sampleRecord(hash string) *Record {
	doc := docmodel.Document{Sections: []docmodel.Section{
		{Type: docmodel.Heading, Content: "季度报告", Level: 1, Mutations: []int{1}},
		{Type: docmodel.Paragraph, Content: "See Example", InlineFormats: []docmodel.InlineFormat{
			{Type: docmodel.InlineHyperlink, Start: 4, End: 11, URL: "http://example.com"},
		}},
	}}
	return &Record{
		PayloadHash: hash,
		Source:      "export.json",
		Document:    doc,
		Markdown:    "# 季度报告\n\nSee [Example](http://example.com)\n",
		Stats:       docmodel.ComputeStats(doc),
		Quality:     docmodel.MeasureBuffer("季度报告\rSee Example\r"),
	}
}

func TestPutGet(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	rec := sampleRecord("h1")
	created, err := s.Put(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if !created || rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("created=%v rec=%+v", created, rec)
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PayloadHash != "h1" || got.Source != "export.json" || got.Markdown != rec.Markdown {
		t.Errorf("got %+v", got)
	}
	if len(got.Document.Sections) != 2 || got.Document.Sections[0].Content != "季度报告" {
		t.Errorf("document = %+v", got.Document)
	}
	if f := got.Document.Sections[1].InlineFormats; len(f) != 1 || f[0].End != 11 {
		t.Errorf("inline formats = %+v", f)
	}
	if got.Stats.Count(docmodel.Heading) != 1 || got.Stats.HyperlinkCount != 1 {
		t.Errorf("stats = %+v", got.Stats)
	}
	if got.Quality != rec.Quality {
		t.Errorf("quality = %+v, want %+v", got.Quality, rec.Quality)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}

	byHash, err := s.GetByHash(ctx, "h1")
	if err != nil {
		t.Fatal(err)
	}
	if byHash.ID != rec.ID {
		t.Errorf("GetByHash id = %q, want %q", byHash.ID, rec.ID)
	}
}

func TestPut_Dedup(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	first := sampleRecord("same")
	if _, err := s.Put(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := sampleRecord("same")
	second.Source = "other.ejs"
	created, err := s.Put(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second Put created a row")
	}
	if second.ID != first.ID {
		t.Errorf("second id = %q, want %q", second.ID, first.ID)
	}
	got, _ := s.Get(ctx, first.ID)
	if got.Source != "export.json" {
		t.Errorf("source overwritten: %q", got.Source)
	}
}

func TestPut_RequiresHash(t *testing.T) {
	s := OpenMemory(t)
	if _, err := s.Put(context.Background(), sampleRecord("")); err == nil {
		t.Fatal("expected error for empty payload hash")
	}
}

func TestNotFound(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	if _, err := s.Get(ctx, "cnv_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetByHash(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByHash: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "cnv_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: err = %v, want ErrNotFound", err)
	}
}

func TestListDelete(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		rec := sampleRecord(fmt.Sprintf("h%d", i))
		if _, err := s.Put(ctx, rec); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.ID)
	}

	list, err := s.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != ids[2] || list[1].ID != ids[1] {
		t.Fatalf("list = %+v", list)
	}
	if !list[0].CreatedAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("created_at = %v", list[0].CreatedAt)
	}

	if err := s.Delete(ctx, ids[2]); err != nil {
		t.Fatal(err)
	}
	list, _ = s.List(ctx, 0)
	if len(list) != 2 || list[0].ID != ids[1] {
		t.Fatalf("after delete: %+v", list)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ultradoc.db")
	s, err := Open(path, WithMkdirAll(), WithBusyTimeout(2000), WithSynchronous("FULL"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	rec := sampleRecord("persisted")
	if _, err := s.Put(ctx, rec); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, rec.ID); err != nil {
		t.Fatalf("reopened store lost the row: %v", err)
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("SQLITE_BUSY"), true},
		{errors.New("database is locked (5)"), true},
		{errors.New("database table is locked"), true},
		{errors.New("no such table"), false},
	}
	for _, tt := range tests {
		if got := isBusy(tt.err); got != tt.want {
			t.Errorf("isBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRunTxRollback(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := runTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversions (id, payload_hash, document, markdown, stats, buffer_quality, created_at)
			 VALUES ('cnv_x', 'hx', '{}', '', '{}', '{}', 0)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, err := s.GetByHash(ctx, "hx"); !errors.Is(err, ErrNotFound) {
		t.Errorf("row survived rollback: %v", err)
	}
}
