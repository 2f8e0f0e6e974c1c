package index

import (
	"sync"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

// MultiKeyFunc extracts the set of index keys a value contributes to a
// multi-index (e.g. one entry per tag on a tagged document).
type MultiKeyFunc[TV any] func(v TV) []any

// NonUnique is a non-unique secondary index: each index key maps to the
// set of primary keys currently sharing it.
type NonUnique[K comparable, TV any] struct {
	name  string
	keyFn KeyFunc[TV]

	mu  sync.RWMutex
	set map[any]map[K]struct{}
}

// NewNonUnique creates and registers a non-unique index named name on s.
func NewNonUnique[K comparable, TV any, CV any](s *jacis.Store[K, TV, CV], name string, keyFn KeyFunc[TV]) (*NonUnique[K, TV], error) {
	idx := &NonUnique[K, TV]{name: name, keyFn: keyFn, set: make(map[any]map[K]struct{})}
	if err := s.RegisterModificationListener(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Lookup returns a snapshot of the primary keys currently mapped to key.
func (idx *NonUnique[K, TV]) Lookup(key any) []K {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	set, ok := idx.set[key]
	if !ok {
		return nil
	}
	out := make([]K, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func (idx *NonUnique[K, TV]) add(key any, pk K) {
	set, ok := idx.set[key]
	if !ok {
		set = make(map[K]struct{})
		idx.set[key] = set
	}
	set[pk] = struct{}{}
}

func (idx *NonUnique[K, TV]) remove(key any, pk K) {
	set, ok := idx.set[key]
	if !ok {
		return
	}
	delete(set, pk)
	if len(set) == 0 {
		delete(idx.set, key)
	}
}

// OnPrepareModification is a no-op: non-unique indexes impose no
// uniqueness constraint to verify before commit.
func (idx *NonUnique[K, TV]) OnPrepareModification(key K, change jacis.Change[TV], tx *jacis.TxHandle) error {
	return nil
}

// OnModification moves key from its old index bucket to its new one.
func (idx *NonUnique[K, TV]) OnModification(key K, change jacis.Change[TV], tx *jacis.TxHandle) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var oldKey, newKey any
	var hadOld, hasNew bool
	if change.HadOld {
		oldKey, hadOld = idx.keyFn(change.Old)
	}
	if change.HasNew {
		newKey, hasNew = idx.keyFn(change.New)
	}
	if hadOld && (!hasNew || oldKey != newKey) {
		idx.remove(oldKey, key)
	}
	if hasNew && (!hadOld || oldKey != newKey) {
		idx.add(newKey, key)
	}
	return nil
}

// IsThreadSafe reports that NonUnique serializes its own state internally.
func (idx *NonUnique[K, TV]) IsThreadSafe() bool { return true }

// Clear drops all index state.
func (idx *NonUnique[K, TV]) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.set = make(map[any]map[K]struct{})
}

// Multi is a non-unique index where a single value contributes many index
// keys at once (e.g. tags). Old and new key sets are diffed symmetrically
// on commit.
type Multi[K comparable, TV any] struct {
	name  string
	keyFn MultiKeyFunc[TV]

	mu  sync.RWMutex
	set map[any]map[K]struct{}
}

// NewMulti creates and registers a multi-key index named name on s.
func NewMulti[K comparable, TV any, CV any](s *jacis.Store[K, TV, CV], name string, keyFn MultiKeyFunc[TV]) (*Multi[K, TV], error) {
	idx := &Multi[K, TV]{name: name, keyFn: keyFn, set: make(map[any]map[K]struct{})}
	if err := s.RegisterModificationListener(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Lookup returns a snapshot of the primary keys currently tagged with key.
func (idx *Multi[K, TV]) Lookup(key any) []K {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	set, ok := idx.set[key]
	if !ok {
		return nil
	}
	out := make([]K, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func (idx *Multi[K, TV]) add(key any, pk K) {
	set, ok := idx.set[key]
	if !ok {
		set = make(map[K]struct{})
		idx.set[key] = set
	}
	set[pk] = struct{}{}
}

func (idx *Multi[K, TV]) remove(key any, pk K) {
	set, ok := idx.set[key]
	if !ok {
		return
	}
	delete(set, pk)
	if len(set) == 0 {
		delete(idx.set, key)
	}
}

// OnPrepareModification is a no-op for the same reason as NonUnique's.
func (idx *Multi[K, TV]) OnPrepareModification(key K, change jacis.Change[TV], tx *jacis.TxHandle) error {
	return nil
}

// OnModification diffs the old and new key sets and applies only the
// symmetric difference.
func (idx *Multi[K, TV]) OnModification(key K, change jacis.Change[TV], tx *jacis.TxHandle) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var oldKeys, newKeys []any
	if change.HadOld {
		oldKeys = idx.keyFn(change.Old)
	}
	if change.HasNew {
		newKeys = idx.keyFn(change.New)
	}

	newSet := make(map[any]struct{}, len(newKeys))
	for _, k := range newKeys {
		newSet[k] = struct{}{}
	}
	oldSet := make(map[any]struct{}, len(oldKeys))
	for _, k := range oldKeys {
		oldSet[k] = struct{}{}
	}

	for _, k := range oldKeys {
		if _, stillPresent := newSet[k]; !stillPresent {
			idx.remove(k, key)
		}
	}
	for _, k := range newKeys {
		if _, alreadyPresent := oldSet[k]; !alreadyPresent {
			idx.add(k, key)
		}
	}
	return nil
}

// IsThreadSafe reports that Multi serializes its own state internally.
func (idx *Multi[K, TV]) IsThreadSafe() bool { return true }

// Clear drops all index state.
func (idx *Multi[K, TV]) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.set = make(map[any]map[K]struct{})
}
