package jacis

import "time"

// entryTxView is C2: one transaction's private clone of one committed
// entry, plus enough bookkeeping to detect staleness and order write-back
// at commit.
type entryTxView[K comparable, TV any, CV any] struct {
	committed *committedEntry[K, CV]

	origVersion uint64
	// origValue is only populated when the owning store tracks original
	// values (ObjectTypeSpec.TrackOriginalValue); it backs dirty checking
	// and listener "orig" arguments.
	origValue    TV
	hasOrigValue bool

	txValue    TV
	hasTxValue bool

	updated bool
	// updatedSeq orders this entry among every updated entry in the owning
	// StoreTxView, assigned from a per-TX monotonically increasing
	// counter the first time the entry is marked updated.
	updatedSeq uint32
}

// isStale reports whether the committed counterpart has moved on since
// this view was created, or is locked for a transaction other than self.
func (v *entryTxView[K, TV, CV]) isStale(self *TxHandle) bool {
	return v.committed.version > v.origVersion || v.committed.isLockedForOther(self)
}

// storeTxViewState is the state machine documented in spec.md §4.5.
type storeTxViewState int

const (
	stateActive storeTxViewState = iota
	stateCommitPending
	stateInvalidated
	stateDestroyed
	stateReadOnly
)

// storeTxView is C3: one transaction's private workspace over one store.
type storeTxView[K comparable, TV any, CV any] struct {
	tx           *TxHandle
	creationTime time.Time

	entries map[K]*entryTxView[K, TV, CV]

	state             storeTxViewState
	invalidationReason string

	// optimisticLocks records versions captured by lockReadOnly: at
	// prepare these must still match the committed version or the
	// transaction fails stale, even though the key was never written.
	optimisticLocks map[K]uint64

	// nextUpdateSeq is the per-TX monotonically increasing counter handed
	// out to entries as they're marked updated (by Update or by the
	// dirty-checker at prepare).
	nextUpdateSeq uint32

	// snapshotSourceTxID is set on a read-only snapshot view handed to
	// another goroutine (spec.md §5); such a view is immutable and is not
	// subject to prepare/commit/rollback.
	snapshotSourceTxID uint64
}

func newStoreTxView[K comparable, TV any, CV any](tx *TxHandle) *storeTxView[K, TV, CV] {
	return &storeTxView[K, TV, CV]{
		tx:              tx,
		creationTime:    time.Now(),
		entries:         make(map[K]*entryTxView[K, TV, CV]),
		optimisticLocks: make(map[K]uint64),
		state:           stateActive,
	}
}

func (v *storeTxView[K, TV, CV]) writable() bool {
	return v.state == stateActive
}

func (v *storeTxView[K, TV, CV]) invalidate(reason string) {
	if v.state == stateDestroyed {
		return
	}
	v.state = stateInvalidated
	v.invalidationReason = reason
}

// updatedEntriesInOrder returns every entry marked updated, ordered by
// updatedSeq ascending, matching program order as spec.md §5 requires.
func (v *storeTxView[K, TV, CV]) updatedEntriesInOrder() []*entryTxView[K, TV, CV] {
	out := make([]*entryTxView[K, TV, CV], 0, len(v.entries))
	for _, e := range v.entries {
		if e.updated {
			out = append(out, e)
		}
	}
	// insertion sort: update sets are small relative to the whole store
	// and this keeps the ordering stable without importing sort for a
	// handful of comparisons per commit.
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].updatedSeq > out[j].updatedSeq {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}
