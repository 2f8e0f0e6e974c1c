package jacis

// Change describes one entry's transition as seen by a ModificationListener.
// Presence is tracked explicitly (HadOld/HasNew) rather than via a nil
// sentinel, since TV is an arbitrary type parameter and may not be nilable.
type Change[TV any] struct {
	Key    any
	Old    TV
	HadOld bool
	New    TV
	HasNew bool
}

// ModificationListener observes modifications to committed entries of one
// store. Implementations include the index registry (pkg/jacis/index) and
// the tracked view registry (pkg/jacis/trackedview); PersistenceAdapter
// extends this interface with persistence-adapter-specific hooks.
type ModificationListener[K comparable, TV any] interface {
	// OnPrepareModification runs during Store.Prepare for each updated
	// entry, after the staleness checks have passed and this transaction's
	// prepare locks are installed. Returning a non-nil error
	// vetoes the whole transaction (wrapped in ModificationVetoError).
	// Implementations that maintain a unique index return
	// UniqueIndexViolationError directly instead of a generic veto.
	OnPrepareModification(key K, change Change[TV], tx *TxHandle) error
	// OnModification runs during Store.Commit for each updated entry, in
	// updatedSeq order, before that entry's new value is written back to
	// the committed map.
	OnModification(key K, change Change[TV], tx *TxHandle) error
	// IsThreadSafe reports whether this listener may be invoked
	// concurrently from multiple goroutines (relevant to
	// InitStoreNonTransactional's parallel bulk load, which serializes
	// calls to any listener that answers false here).
	IsThreadSafe() bool
}

// AdjustableListener is an optional capability of a ModificationListener:
// a chance to rewrite the new value before prepare-time checks run (for
// example, normalizing a value before index keys are computed from it).
type AdjustableListener[K comparable, TV any] interface {
	OnAdjustBeforePrepare(key K, change Change[TV], tx *TxHandle) TV
}

// TransactionListener observes the two-phase commit protocol at the
// Container level, i.e. across every store participating in a
// transaction, not just one.
type TransactionListener interface {
	BeforePrepare(tx *TxHandle) error
	AfterPrepare(tx *TxHandle, err error)
	BeforeCommit(tx *TxHandle) error
	AfterCommit(tx *TxHandle, err error)
	BeforeRollback(tx *TxHandle)
	AfterRollback(tx *TxHandle)
	// IsSynchronous reports whether the container must invoke this
	// listener inline with the commit (true) or may enqueue it
	// asynchronously (false); asynchronous listeners are never required
	// for correctness.
	IsSynchronous() bool
}

// DirtyCheck lets a store auto-detect modifications a caller made to a TX
// value in place (without calling Store.Update) by structurally comparing
// it to the original value captured when the TX view was created.
type DirtyCheck[K comparable, TV any] interface {
	IsDirty(key K, orig, current TV) bool
}

// PersistenceAdapter is the out-of-core collaborator spec.md sketches in
// §6: an external component durably recording committed state. The core
// engine never reads it back; it is a one-way sink driven by the store's
// two-phase demarcation.
type PersistenceAdapter[K comparable, TV any] interface {
	ModificationListener[K, TV]
	InitializeStore(storeName string)
	AfterPrepareForStore(tx *TxHandle, storeName string)
	AfterCommitForStore(tx *TxHandle, storeName string)
	AfterRollbackForStore(tx *TxHandle, storeName string)
}
