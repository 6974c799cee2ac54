package corpus

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/storage"
	"github.com/hyperjump/kotaeru/internal/vector"
)

func newState(t *testing.T, dims int, opts ...Option) *State {
	t.Helper()
	idx, err := vector.NewMemoryIndex(dims)
	if err != nil {
		t.Fatal(err)
	}
	return New(idx, opts...)
}

func doc(id string) *models.Document {
	return &models.Document{ID: id, Name: id + ".txt", Content: "text of " + id, CreatedAt: time.Now()}
}

func chunksFor(id string, n int) []models.Chunk {
	out := make([]models.Chunk, n)
	for i := range out {
		out[i] = models.Chunk{DocumentID: id, Ordinal: i, Text: fmt.Sprintf("%s-%d", id, i)}
	}
	return out
}

func TestState_CommitSearch(t *testing.T) {
	s := newState(t, 2)
	ctx := context.Background()
	if _, err := s.Commit(ctx, doc("a"), chunksFor("a", 2), [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Commit(ctx, doc("b"), chunksFor("b", 1), [][]float32{{1, 1}}); err != nil {
		t.Fatal(err)
	}
	res, err := s.Search(ctx, []float32{0, 1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 3 {
		t.Fatalf("results=%d", len(res))
	}
	if res[0].DocumentID != "a" || res[0].ChunkText != "a-1" || res[0].Ordinal != 1 {
		t.Errorf("top=%+v", res[0])
	}
	if res[1].DocumentID != "b" || res[1].DocumentName != "b.txt" {
		t.Errorf("second=%+v", res[1])
	}
	if docs := s.Documents(); len(docs) != 2 || docs[0].ID != "a" {
		t.Errorf("Documents order wrong")
	}
	st := s.Stats()
	if st.Documents != 2 || st.Chunks != 3 || st.Vectors != 3 || st.IndexType != "memory" {
		t.Errorf("stats=%+v", st)
	}
}

func TestState_CommitDuplicateAndShape(t *testing.T) {
	s := newState(t, 2)
	ctx := context.Background()
	_, _ = s.Commit(ctx, doc("a"), chunksFor("a", 1), [][]float32{{1, 0}})
	if _, err := s.Commit(ctx, doc("a"), chunksFor("a", 1), [][]float32{{1, 0}}); !errors.Is(err, ErrExists) {
		t.Errorf("err=%v, want ErrExists", err)
	}
	if _, err := s.Commit(ctx, doc("b"), chunksFor("b", 1), [][]float32{{1, 0, 0}}); !errors.Is(err, vector.ErrShape) {
		t.Errorf("err=%v, want ErrShape", err)
	}
	if s.Len() != 1 || s.Stats().Chunks != 1 {
		t.Errorf("failed commits left state behind: %+v", s.Stats())
	}
}

type failingStorage struct {
	storage.Storage
}

func (failingStorage) SaveDocument(context.Context, *models.Document, []storage.ChunkRow) error {
	return errors.New("disk full")
}

func (failingStorage) ReplaceDocument(context.Context, *models.Document, []storage.ChunkRow) error {
	return errors.New("disk full")
}

func TestState_PersistFailureRollsBack(t *testing.T) {
	s := newState(t, 2, WithStorage(failingStorage{}))
	_, err := s.Commit(context.Background(), doc("a"), chunksFor("a", 2), [][]float32{{1, 0}, {0, 1}})
	if err == nil {
		t.Fatal("expected persistence error")
	}
	st := s.Stats()
	if st.Documents != 0 || st.Chunks != 0 || st.Vectors != 0 {
		t.Errorf("state after rollback: %+v", st)
	}
}

func TestState_Delete(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	s := newState(t, 2, WithStorage(store))
	ctx := context.Background()
	_, _ = s.Commit(ctx, doc("a"), chunksFor("a", 2), [][]float32{{1, 0}, {0, 1}})
	_, _ = s.Commit(ctx, doc("b"), chunksFor("b", 1), [][]float32{{1, 0}})

	got, err := s.Delete(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "a" {
		t.Errorf("deleted=%+v", got)
	}
	res, _ := s.Search(ctx, []float32{1, 0}, 10)
	if len(res) != 1 || res[0].DocumentID != "b" {
		t.Errorf("search after delete=%+v", res)
	}
	if _, err := s.Document("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Document(a) err=%v", err)
	}
	if _, err := s.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err=%v", err)
	}
	if n, _ := store.CountChunks(ctx); n != 1 {
		t.Errorf("persisted chunk rows=%d, want 1", n)
	}
}

func TestState_ConcurrentCommitsStayConsistent(t *testing.T) {
	s := newState(t, 4)
	ctx := context.Background()
	stop := make(chan struct{})
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				st := s.Stats()
				if st.Chunks != st.Vectors {
					t.Errorf("registry (%d) and index (%d) diverged", st.Chunks, st.Vectors)
					return
				}
				res, err := s.Search(ctx, []float32{1, 0, 0, 0}, 50)
				if err != nil {
					t.Error(err)
					return
				}
				for _, r := range res {
					if r.DocumentName == "" {
						t.Errorf("result without document: %+v", r)
						return
					}
				}
			}
		}()
	}

	var writers sync.WaitGroup
	for w := 0; w < 8; w++ {
		writers.Add(1)
		go func(w int) {
			defer writers.Done()
			for i := 0; i < 20; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				vecs := [][]float32{{1, 0, 0, float32(i)}, {0, 1, 0, float32(w)}, {0, 0, 1, 0}}
				if _, err := s.Commit(ctx, doc(id), chunksFor(id, 3), vecs); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	writers.Wait()
	close(stop)
	readers.Wait()

	st := s.Stats()
	if st.Documents != 160 || st.Chunks != 480 || st.Vectors != 480 {
		t.Errorf("final stats=%+v", st)
	}
	res, _ := s.Search(ctx, []float32{0, 0, 1, 0}, 480)
	seen := make(map[int64]bool)
	for _, r := range res {
		if seen[r.Row] {
			t.Fatalf("row %d returned twice", r.Row)
		}
		seen[r.Row] = true
	}
	if len(res) != 480 {
		t.Errorf("resolved %d of 480 rows", len(res))
	}
}

func TestState_SaveRestore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db.sqlite")
	indexPath := filepath.Join(dir, "vectors.bin")
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	s := newState(t, 2, WithStorage(store))
	_, _ = s.Commit(ctx, doc("a"), chunksFor("a", 2), [][]float32{{1, 0}, {0, 1}})
	if err := s.Save(indexPath); err != nil {
		t.Fatal(err)
	}
	// Committed after the index snapshot: its rows have no vectors on disk.
	_, _ = s.Commit(ctx, doc("b"), chunksFor("b", 1), [][]float32{{1, 1}})
	_ = store.Close()

	store2, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store2.Close()
	s2 := newState(t, 2, WithStorage(store2))
	report, err := s2.Restore(ctx, indexPath)
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 2 || report.Rows != 2 || report.MissingRows != 1 {
		t.Errorf("report=%+v", report)
	}
	res, _ := s2.Search(ctx, []float32{0, 1}, 1)
	if len(res) != 1 || res[0].ChunkText != "a-1" {
		t.Errorf("restored search=%+v", res)
	}
	rows, err := s2.Commit(ctx, doc("c"), chunksFor("c", 1), [][]float32{{2, 2}})
	if err != nil {
		t.Fatal(err)
	}
	if rows[0] <= 2 {
		t.Errorf("restored allocation reused row %d", rows[0])
	}
}

func TestState_Replace(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	s := newState(t, 2, WithStorage(store))
	ctx := context.Background()
	if _, err := s.Commit(ctx, doc("a"), chunksFor("a", 2), [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatal(err)
	}

	v2 := doc("a")
	v2.Content = "second version"
	rows, err := s.Replace(ctx, v2, chunksFor("a", 1), [][]float32{{1, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0] != 2 {
		t.Errorf("rows=%v, want [2]", rows)
	}
	got, err := s.Document("a")
	if err != nil || got.Content != "second version" {
		t.Fatalf("Document = %+v, %v", got, err)
	}
	st := s.Stats()
	if st.Documents != 1 || st.Chunks != 1 || st.Vectors != 1 {
		t.Errorf("stats=%+v", st)
	}
	res, _ := s.Search(ctx, []float32{1, 0}, 5)
	if len(res) != 1 || res[0].Row != 2 {
		t.Errorf("search after replace = %+v", res)
	}
	if n, _ := store.CountChunks(ctx); n != 1 {
		t.Errorf("persisted chunks=%d, want 1", n)
	}

	// Unknown ids are added.
	if _, err := s.Replace(ctx, doc("b"), chunksFor("b", 1), [][]float32{{0, 1}}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Errorf("Len=%d, want 2", s.Len())
	}
}

func TestState_ReplaceFailureKeepsPrevious(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		vectors [][]float32
	}{
		{"shape", nil, [][]float32{{1, 0, 0}}},
		{"persist", []Option{WithStorage(failingStorage{})}, [][]float32{{1, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newState(t, 2)
			ctx := context.Background()
			if _, err := s.Commit(ctx, doc("a"), chunksFor("a", 2), [][]float32{{1, 0}, {0, 1}}); err != nil {
				t.Fatal(err)
			}
			for _, opt := range tt.opts {
				opt(s)
			}
			v2 := doc("a")
			v2.Content = "second version"
			if _, err := s.Replace(ctx, v2, chunksFor("a", 1), tt.vectors); err == nil {
				t.Fatal("expected replace to fail")
			}
			got, err := s.Document("a")
			if err != nil || got.Content != "text of a" {
				t.Fatalf("Document = %+v, %v", got, err)
			}
			st := s.Stats()
			if st.Documents != 1 || st.Chunks != 2 || st.Vectors != 2 {
				t.Errorf("stats=%+v", st)
			}
			res, _ := s.Search(ctx, []float32{0, 1}, 5)
			if len(res) != 2 || res[0].ChunkText != "a-1" {
				t.Errorf("search after failed replace = %+v", res)
			}
		})
	}
}
