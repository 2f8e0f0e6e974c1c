// Package index is C6: secondary indexes over a Store's committed
// population, maintained incrementally as ModificationListeners, grounded
// on the teacher's pkg/index (Index/IndexConfig) shape but generalized
// from a single B-tree-backed structure to the spec's three index kinds
// (unique, non-unique, multi) driven off transaction commit rather than
// an explicit Insert/Delete call.
package index

import (
	"fmt"
	"sync"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

// KeyFunc extracts a single index key from a value. A returned ok=false
// means the value contributes no entry to the index (e.g. a field is
// absent), mirroring a partial index filter.
type KeyFunc[TV any] func(v TV) (key any, ok bool)

type uniqueLock struct {
	primaryKey any
	txID       uint64
}

type uniqueDelta struct {
	primaryKey any
	claimed    bool // false means this tx frees the key regardless of committed state
}

// Unique is a unique secondary index: at most one primary key may map to
// any given index key at a time. Registered on a store via NewUnique, it
// self-installs as a ModificationListener.
type Unique[K comparable, TV any] struct {
	name  string
	keyFn KeyFunc[TV]

	mu       sync.RWMutex
	byKey    map[any]K
	locks    map[any]uniqueLock
	txDeltas map[uint64]map[any]uniqueDelta
}

// NewUnique creates and registers a unique index named name on s, keyed by
// keyFn. Requires s's ObjectTypeSpec.TrackOriginalValue.
func NewUnique[K comparable, TV any, CV any](s *jacis.Store[K, TV, CV], name string, keyFn KeyFunc[TV]) (*Unique[K, TV], error) {
	idx := &Unique[K, TV]{
		name:     name,
		keyFn:    keyFn,
		byKey:    make(map[any]K),
		locks:    make(map[any]uniqueLock),
		txDeltas: make(map[uint64]map[any]uniqueDelta),
	}
	if err := s.RegisterModificationListener(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Lookup resolves an index key to its current primary key, merging the
// committed map with tx's pending overlay (if tx is non-nil) so a caller
// sees its own not-yet-committed claims.
func (idx *Unique[K, TV]) Lookup(tx *jacis.TxHandle, key any) (pk K, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if tx != nil {
		if deltas, exists := idx.txDeltas[tx.ID]; exists {
			if d, hit := deltas[key]; hit {
				if !d.claimed {
					var zero K
					return zero, false
				}
				return d.primaryKey.(K), true
			}
		}
	}
	pk, ok = idx.byKey[key]
	return pk, ok
}

func (idx *Unique[K, TV]) keyOf(v TV, has bool) (any, bool) {
	if !has {
		return nil, false
	}
	return idx.keyFn(v)
}

// OnPrepareModification verifies the new index key (if changed) is not
// already claimed by a different primary key, installs a commit-pending
// lock on it, and records the transaction's pending delta for Lookup.
func (idx *Unique[K, TV]) OnPrepareModification(key K, change jacis.Change[TV], tx *jacis.TxHandle) error {
	oldKey, hadOld := idx.keyOf(change.Old, change.HadOld)
	newKey, hasNew := idx.keyOf(change.New, change.HasNew)
	if hadOld && hasNew && oldKey == newKey {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	deltas, exists := idx.txDeltas[tx.ID]
	if !exists {
		deltas = make(map[any]uniqueDelta)
		idx.txDeltas[tx.ID] = deltas
	}

	if hasNew {
		if owner, ownerExists := idx.byKey[newKey]; ownerExists && owner != key {
			return &jacis.UniqueIndexViolationError{IndexName: idx.name, IndexKey: newKey, Owner: owner, Key: key}
		}
		if lock, locked := idx.locks[newKey]; locked && lock.txID != tx.ID && lock.primaryKey != key {
			return &jacis.UniqueIndexViolationError{IndexName: idx.name, IndexKey: newKey, Owner: lock.primaryKey, Key: key}
		}
		idx.locks[newKey] = uniqueLock{primaryKey: key, txID: tx.ID}
		deltas[newKey] = uniqueDelta{primaryKey: key, claimed: true}
	}
	if hadOld && (!hasNew || oldKey != newKey) {
		deltas[oldKey] = uniqueDelta{claimed: false}
	}
	return nil
}

// OnModification applies the committed write-back: the old index key is
// vacated, the new one wins, and this transaction's lock and delta are
// cleared.
func (idx *Unique[K, TV]) OnModification(key K, change jacis.Change[TV], tx *jacis.TxHandle) error {
	oldKey, hadOld := idx.keyOf(change.Old, change.HadOld)
	newKey, hasNew := idx.keyOf(change.New, change.HasNew)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if hadOld && (!hasNew || oldKey != newKey) {
		if owner, ok := idx.byKey[oldKey]; ok && owner == key {
			delete(idx.byKey, oldKey)
		}
	}
	if hasNew {
		idx.byKey[newKey] = key
		if lock, ok := idx.locks[newKey]; ok && tx != nil && lock.txID == tx.ID {
			delete(idx.locks, newKey)
		}
	}
	if tx != nil {
		delete(idx.txDeltas, tx.ID)
	}
	return nil
}

// IsThreadSafe reports that Unique serializes its own state internally
// and may be invoked concurrently across transactions.
func (idx *Unique[K, TV]) IsThreadSafe() bool { return true }

// Clear drops all index state, called by Store.Clear.
func (idx *Unique[K, TV]) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byKey = make(map[any]K)
	idx.locks = make(map[any]uniqueLock)
	idx.txDeltas = make(map[uint64]map[any]uniqueDelta)
}

func (idx *Unique[K, TV]) String() string {
	return fmt.Sprintf("index.Unique(%s)", idx.name)
}
