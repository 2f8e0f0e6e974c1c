package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

type record struct {
	ID    string
	Value int
}

func (r *record) Clone() *record {
	cp := *r
	return &cp
}

func TestSnapshotWriterDumpsOnCommit(t *testing.T) {
	dir := t.TempDir()

	writer, err := NewSnapshotWriter[string, *record, *record](dir, nil)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer writer.Close()

	spec := jacis.DefaultObjectTypeSpec[string, *record, *record]("records", jacis.NewCloneableAdapter[*record]())
	spec.PersistenceAdapter = writer

	c := jacis.NewContainer(nil)
	s := jacis.CreateStore(c, spec)
	writer.Attach(s)

	tx := c.BeginLocalTransaction("seed")
	ctx := jacis.ContextWithTx(context.Background(), tx)
	if err := s.Update(ctx, "r1", &record{ID: "r1", Value: 42}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.Commit(tx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one snapshot file, got %d", len(entries))
	}

	compressed, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("new zstd reader: %v", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if want := `{"ID":"r1","Value":42}` + "\n"; string(raw) != want {
		t.Fatalf("unexpected snapshot contents: %q", raw)
	}
}
