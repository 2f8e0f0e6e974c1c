// Package persistence supplies a reference jacis.PersistenceAdapter: a
// one-way, zstd-compressed diagnostic export of a store's committed
// population, grounded on the teacher's pkg/compression.Compressor shape.
// It is never consulted on the read path — the core engine has no
// durability or recovery, per spec.md §1 — this is export-only tooling
// for operators (backup-for-inspection, not backup-for-restore).
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

// Encoder serializes one TV for the snapshot dump.
type Encoder[TV any] func(v TV) ([]byte, error)

// JSONEncoder is the default Encoder.
func JSONEncoder[TV any](v TV) ([]byte, error) { return json.Marshal(v) }

// SnapshotWriter implements jacis.PersistenceAdapter: after every commit it
// writes a zstd-compressed, newline-delimited snapshot of the attached
// store's current committed entries into dir. Export failures are
// swallowed (logged to the writer's ErrHandler if set) rather than
// affecting the commit outcome, since this adapter sits entirely outside
// the transaction's own success/failure path.
type SnapshotWriter[K comparable, TV any, CV any] struct {
	dir       string
	encode    Encoder[TV]
	enc       *zstd.Encoder
	ErrHandler func(err error)

	mu        sync.Mutex
	store     *jacis.Store[K, TV, CV]
	storeName string
}

// NewSnapshotWriter creates a writer exporting into dir. encode defaults to
// JSONEncoder when nil.
func NewSnapshotWriter[K comparable, TV any, CV any](dir string, encode Encoder[TV]) (*SnapshotWriter[K, TV, CV], error) {
	if encode == nil {
		encode = JSONEncoder[TV]
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("persistence: create zstd encoder: %w", err)
	}
	return &SnapshotWriter[K, TV, CV]{dir: dir, encode: encode, enc: enc}, nil
}

// Attach binds the store this writer exports. Must be called after
// jacis.CreateStore, since the store does not exist yet when the
// ObjectTypeSpec carrying this adapter is constructed.
func (w *SnapshotWriter[K, TV, CV]) Attach(s *jacis.Store[K, TV, CV]) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.store = s
}

// InitializeStore records the store's name for the export file name.
func (w *SnapshotWriter[K, TV, CV]) InitializeStore(storeName string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.storeName = storeName
}

// OnPrepareModification and OnModification are no-ops: SnapshotWriter
// exports the whole committed population on a cadence (every commit),
// not a per-entry delta.
func (w *SnapshotWriter[K, TV, CV]) OnPrepareModification(key K, change jacis.Change[TV], tx *jacis.TxHandle) error {
	return nil
}
func (w *SnapshotWriter[K, TV, CV]) OnModification(key K, change jacis.Change[TV], tx *jacis.TxHandle) error {
	return nil
}

// IsThreadSafe reports that dump() serializes itself internally.
func (w *SnapshotWriter[K, TV, CV]) IsThreadSafe() bool { return true }

func (w *SnapshotWriter[K, TV, CV]) AfterPrepareForStore(tx *jacis.TxHandle, storeName string) {}

// AfterCommitForStore triggers the export.
func (w *SnapshotWriter[K, TV, CV]) AfterCommitForStore(tx *jacis.TxHandle, storeName string) {
	if err := w.dump(); err != nil && w.ErrHandler != nil {
		w.ErrHandler(err)
	}
}

func (w *SnapshotWriter[K, TV, CV]) AfterRollbackForStore(tx *jacis.TxHandle, storeName string) {}

func (w *SnapshotWriter[K, TV, CV]) dump() error {
	w.mu.Lock()
	store := w.store
	storeName := w.storeName
	w.mu.Unlock()
	if store == nil {
		return fmt.Errorf("persistence: snapshot writer for %q not attached to its store", storeName)
	}

	var buf bytes.Buffer
	cur := store.StreamReadOnly(context.Background())
	for {
		_, v, ok := cur.Next()
		if !ok {
			break
		}
		b, err := w.encode(v)
		if err != nil {
			return fmt.Errorf("persistence: encode entry: %w", err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}

	w.mu.Lock()
	compressed := w.enc.EncodeAll(buf.Bytes(), nil)
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("persistence: create export dir: %w", err)
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%d.ndjson.zst", storeName, time.Now().UnixNano()))
	return os.WriteFile(path, compressed, 0o644)
}

// Close releases the zstd encoder.
func (w *SnapshotWriter[K, TV, CV]) Close() error {
	w.enc.Close()
	return nil
}
