package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/kotaeru/internal/models"
)

func testDoc(id, name string) *models.Document {
	return &models.Document{ID: id, Name: name, Content: "content of " + name, CreatedAt: time.Now().UTC()}
}

func TestSQLiteStorage_SaveGetDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	doc := testDoc("doc1", "report.pdf")
	doc.SourcePath = "/tmp/doc1_report.pdf"
	rows := []ChunkRow{
		{Row: 0, Chunk: models.Chunk{DocumentID: "doc1", Ordinal: 0, Text: "content "}},
		{Row: 1, Chunk: models.Chunk{DocumentID: "doc1", Ordinal: 1, Text: "of report.pdf"}},
	}
	if err := store.SaveDocument(ctx, doc, rows); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "report.pdf" || got.Content != doc.Content || got.SourcePath != doc.SourcePath {
		t.Errorf("got %+v", got)
	}

	chunks, err := store.ListChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 || chunks[1].Row != 1 || chunks[1].Text != "of report.pdf" {
		t.Errorf("chunks=%+v", chunks)
	}

	if err := store.DeleteDocument(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetDocument(ctx, "doc1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err=%v, want ErrNotFound", err)
	}
	if n, _ := store.CountChunks(ctx); n != 0 {
		t.Errorf("chunks left after delete: %d", n)
	}
}

func TestSQLiteStorage_SaveIsAtomic(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	_ = store.SaveDocument(ctx, testDoc("a", "a.txt"), []ChunkRow{{Row: 0, Chunk: models.Chunk{DocumentID: "a"}}})
	// Row 0 is taken, so the whole second save must roll back.
	err = store.SaveDocument(ctx, testDoc("b", "b.txt"), []ChunkRow{
		{Row: 1, Chunk: models.Chunk{DocumentID: "b"}},
		{Row: 0, Chunk: models.Chunk{DocumentID: "b", Ordinal: 1}},
	})
	if err == nil {
		t.Fatal("expected duplicate row error")
	}
	if _, err := store.GetDocument(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("document b persisted despite failed save: %v", err)
	}
	if n, _ := store.CountChunks(ctx); n != 1 {
		t.Errorf("chunk count=%d, want 1", n)
	}
}

func TestSQLiteStorage_ListInInsertionOrder(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	for _, id := range []string{"z", "a", "m"} {
		if err := store.SaveDocument(ctx, testDoc(id, id+".txt"), nil); err != nil {
			t.Fatal(err)
		}
	}
	docs, err := store.ListDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 || docs[0].ID != "z" || docs[1].ID != "a" || docs[2].ID != "m" {
		t.Errorf("order=%v", []string{docs[0].ID, docs[1].ID, docs[2].ID})
	}
	n, err := store.CountDocuments(ctx)
	if err != nil || n != 3 {
		t.Errorf("CountDocuments: %v, %d", err, n)
	}
}

func TestSQLiteStorage_DuplicateDocumentID(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	_ = store.SaveDocument(ctx, testDoc("x", "x"), nil)
	if err := store.SaveDocument(ctx, testDoc("x", "x"), nil); err == nil {
		t.Error("expected unique constraint error")
	}
}

func TestSQLiteStorage_ReplaceDocument(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.SaveDocument(ctx, testDoc("x", "x.txt"), []ChunkRow{
		{Row: 0, Chunk: models.Chunk{DocumentID: "x", Ordinal: 0, Text: "old"}},
		{Row: 1, Chunk: models.Chunk{DocumentID: "x", Ordinal: 1, Text: "old"}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveDocument(ctx, testDoc("y", "y.txt"), []ChunkRow{
		{Row: 5, Chunk: models.Chunk{DocumentID: "y", Ordinal: 0, Text: "y"}},
	}); err != nil {
		t.Fatal(err)
	}

	v2 := testDoc("x", "x.txt")
	v2.Content = "new"
	if err := store.ReplaceDocument(ctx, v2, []ChunkRow{
		{Row: 2, Chunk: models.Chunk{DocumentID: "x", Ordinal: 0, Text: "new"}},
	}); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetDocument(ctx, "x")
	if err != nil || got.Content != "new" {
		t.Fatalf("GetDocument = %+v, %v", got, err)
	}
	if n, _ := store.CountChunks(ctx); n != 2 {
		t.Errorf("CountChunks = %d, want 2", n)
	}

	// Row 5 belongs to y, so the swap fails and x keeps its current version.
	v3 := testDoc("x", "x.txt")
	v3.Content = "newer"
	if err := store.ReplaceDocument(ctx, v3, []ChunkRow{
		{Row: 5, Chunk: models.Chunk{DocumentID: "x", Ordinal: 0, Text: "newer"}},
	}); err == nil {
		t.Fatal("expected row conflict")
	}
	got, err = store.GetDocument(ctx, "x")
	if err != nil || got.Content != "new" {
		t.Errorf("after failed replace GetDocument = %+v, %v", got, err)
	}
	chunks, _ := store.ListChunks(ctx)
	if len(chunks) != 2 || chunks[0].Row != 2 || chunks[1].Row != 5 {
		t.Errorf("chunks = %+v", chunks)
	}

	if err := store.ReplaceDocument(ctx, testDoc("z", "z.txt"), nil); err != nil {
		t.Errorf("replace of a new id: %v", err)
	}
}
