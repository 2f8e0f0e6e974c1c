package jacis

import (
	"context"
	"sync"
)

// Store is C5: a committed-value map plus a registry of per-transaction
// views, guarded by one reader/writer lock. Store is generic over the key
// type K, the value type TV exposed to transaction callers, and the value
// type CV held in the committed map (often identical to TV; the
// ObjectAdapter converts between them).
type Store[K comparable, TV any, CV any] struct {
	name string
	spec *ObjectTypeSpec[K, TV, CV]

	// accessLock is this store's reader/writer lock (spec.md §5). When the
	// owning container is configured to synchronize stores container-wide
	// (ObjectTypeSpec.SyncStoreOnContainerTransaction, default true), this
	// points at the container's shared lock instead of a private one.
	accessLock *sync.RWMutex

	// mapMu guards the committed and txViews maps themselves (Go maps are
	// not safe for concurrent structural mutation even when every
	// goroutine only holds accessLock for reading), matching spec.md's
	// "committed: concurrent map" invariant.
	mapMu     sync.Mutex
	committed map[K]*committedEntry[K, CV]
	txViews   map[uint64]*storeTxView[K, TV, CV]

	listeners []ModificationListener[K, TV]

	container *Container
}

func newStore[K comparable, TV any, CV any](name string, spec *ObjectTypeSpec[K, TV, CV], lock *sync.RWMutex, container *Container) *Store[K, TV, CV] {
	s := &Store[K, TV, CV]{
		name:       name,
		spec:       spec,
		accessLock: lock,
		committed:  make(map[K]*committedEntry[K, CV]),
		txViews:    make(map[uint64]*storeTxView[K, TV, CV]),
		container:  container,
	}
	if spec.PersistenceAdapter != nil {
		s.listeners = append(s.listeners, spec.PersistenceAdapter)
		spec.PersistenceAdapter.InitializeStore(name)
	}
	return s
}

// Name returns the store's identifier within its container.
func (s *Store[K, TV, CV]) Name() string { return s.name }

// RegisterModificationListener appends a listener notified on prepare and
// commit of every modified entry. Requires ObjectTypeSpec.TrackOriginalValue
// so that "orig" values are available to the listener.
func (s *Store[K, TV, CV]) RegisterModificationListener(l ModificationListener[K, TV]) error {
	if !s.spec.TrackOriginalValue {
		return errTrackOriginalValueRequired
	}
	s.accessLock.Lock()
	defer s.accessLock.Unlock()
	s.listeners = append(s.listeners, l)
	return nil
}

// --- context-carried current transaction -----------------------------

type txCtxKey struct{}

// ContextWithTx binds a transaction handle into ctx, the idiomatic Go
// substitute for the thread-local "current transaction" spec.md's C10
// describes (see DESIGN.md).
func ContextWithTx(ctx context.Context, tx *TxHandle) context.Context {
	return context.WithValue(ctx, txCtxKey{}, tx)
}

// TxFromContext retrieves the transaction handle bound by ContextWithTx.
func TxFromContext(ctx context.Context) (*TxHandle, bool) {
	tx, ok := ctx.Value(txCtxKey{}).(*TxHandle)
	return tx, ok && tx != nil
}

// --- internal helpers, all assume the caller already holds accessLock --

func (s *Store[K, TV, CV]) committedLocked(k K) *committedEntry[K, CV] {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	return s.committed[k]
}

func (s *Store[K, TV, CV]) committedOrCreateLocked(k K) *committedEntry[K, CV] {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if ce, ok := s.committed[k]; ok {
		return ce
	}
	ce := newCommittedEntry[K, CV](k)
	s.committed[k] = ce
	return ce
}

func (s *Store[K, TV, CV]) txViewLocked(tx *TxHandle) *storeTxView[K, TV, CV] {
	if tx == nil {
		return nil
	}
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	return s.txViews[tx.ID]
}

func (s *Store[K, TV, CV]) getOrCreateViewLocked(tx *TxHandle) (*storeTxView[K, TV, CV], error) {
	s.mapMu.Lock()
	view, ok := s.txViews[tx.ID]
	if !ok {
		view = newStoreTxView[K, TV, CV](tx)
		s.txViews[tx.ID] = view
	}
	s.mapMu.Unlock()
	if view.state == stateInvalidated {
		return nil, &TxViewInvalidatedError{Reason: view.invalidationReason}
	}
	return view, nil
}

// materializeLocked clones the committed entry into a fresh EntryTxView,
// called under accessLock held for reading (or writing).
func (s *Store[K, TV, CV]) materializeLocked(view *storeTxView[K, TV, CV], k K) *entryTxView[K, TV, CV] {
	ce := s.committedOrCreateLocked(k)
	etv := &entryTxView[K, TV, CV]{committed: ce, origVersion: ce.version}
	if ce.hasValue {
		etv.txValue = s.spec.Adapter.CloneCommitted2WritableTxView(ce.value)
		etv.hasTxValue = true
	}
	if s.spec.TrackOriginalValue && ce.hasValue {
		// a separate clone, so in-place mutation of txValue leaves the
		// original as it was when the entry was materialized.
		etv.origValue = s.spec.Adapter.CloneCommitted2ReadOnlyTxView(ce.value)
		etv.hasOrigValue = true
	}
	s.mapMu.Lock()
	ce.txViewRefCount++
	s.mapMu.Unlock()
	view.entries[k] = etv
	return etv
}

func (s *Store[K, TV, CV]) gcIfRemovableLocked(ce *committedEntry[K, CV]) {
	if ce.removable() {
		delete(s.committed, ce.key)
	}
}

func (s *Store[K, TV, CV]) dropEntryLocked(view *storeTxView[K, TV, CV], k K, e *entryTxView[K, TV, CV]) {
	delete(view.entries, k)
	s.mapMu.Lock()
	e.committed.txViewRefCount--
	s.gcIfRemovableLocked(e.committed)
	s.mapMu.Unlock()
}

func (s *Store[K, TV, CV]) destroyViewLocked(tx *TxHandle) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	view, ok := s.txViews[tx.ID]
	if !ok {
		return
	}
	for _, e := range view.entries {
		e.committed.txViewRefCount--
		s.gcIfRemovableLocked(e.committed)
	}
	delete(s.txViews, tx.ID)
	view.state = stateDestroyed
}

// releaseLocksLocked clears the prepare lock on every committed entry this
// transaction holds it on (both entries reached via optimistic read-locks
// and entries it actually updated).
func (s *Store[K, TV, CV]) releaseLocksLocked(view *storeTxView[K, TV, CV], tx *TxHandle) {
	for k := range view.optimisticLocks {
		if ce := s.committedLocked(k); ce != nil && ce.lockedFor.Equal(tx) {
			ce.lockedFor = nil
			ce.lockedForThread = ""
		}
	}
	for _, e := range view.entries {
		if e.committed.lockedFor.Equal(tx) {
			e.committed.lockedFor = nil
			e.committed.lockedForThread = ""
		}
	}
}

// PendingChanges returns the orig_value -> tx_value delta for every
// TX-view entry the calling transaction has materialized so far (whether
// or not it went on to call Update), used by the tracked-view registry to
// replay read-your-writes onto an access-time clone. Returns nil if no
// transaction or no TX view exists yet.
func (s *Store[K, TV, CV]) PendingChanges(ctx context.Context) []Change[TV] {
	tx, ok := TxFromContext(ctx)
	if !ok {
		return nil
	}
	s.accessLock.RLock()
	defer s.accessLock.RUnlock()
	view := s.txViewLocked(tx)
	if view == nil {
		return nil
	}
	out := make([]Change[TV], 0, len(view.entries))
	for _, e := range view.entries {
		out = append(out, Change[TV]{
			Key:    e.committed.key,
			Old:    e.origValue,
			HadOld: e.hasOrigValue,
			New:    e.txValue,
			HasNew: e.hasTxValue,
		})
	}
	return out
}

// --- caller-facing CRUD (§4.5) ----------------------------------------

// Contains reports whether k currently resolves to a present value,
// consulting the calling transaction's view first.
func (s *Store[K, TV, CV]) Contains(ctx context.Context, k K) bool {
	s.accessLock.RLock()
	defer s.accessLock.RUnlock()
	if tx, ok := TxFromContext(ctx); ok {
		if view := s.txViewLocked(tx); view != nil {
			if e, ok := view.entries[k]; ok {
				return e.hasTxValue
			}
		}
	}
	ce := s.committedLocked(k)
	return ce != nil && ce.hasValue
}

// Get is the writable accessor: it materializes a TX-view entry on first
// access (cloning the committed value under the store's read lock) and
// returns the TX value, which the caller may subsequently mutate in place
// (triggering dirty-check at prepare) or replace via Update.
func (s *Store[K, TV, CV]) Get(ctx context.Context, k K) (TV, error) {
	v, _, err := s.getWithPresence(ctx, k)
	return v, err
}

// getWithPresence is Get plus an explicit presence flag, used internally
// by Stream/StreamFiltered to tell "absent" apart from "present zero
// value" without a second lookup.
func (s *Store[K, TV, CV]) getWithPresence(ctx context.Context, k K) (TV, bool, error) {
	var zero TV
	tx, ok := TxFromContext(ctx)
	if !ok {
		return zero, false, ErrNoTransaction
	}
	s.accessLock.RLock()
	defer s.accessLock.RUnlock()
	view, err := s.getOrCreateViewLocked(tx)
	if err != nil {
		return zero, false, err
	}
	e, existed := view.entries[k]
	if !existed {
		e = s.materializeLocked(view, k)
	}
	if e.hasTxValue {
		return e.txValue, true, nil
	}
	return zero, false, nil
}

// GetReadOnly never creates a TX-view entry. If one already exists it is
// returned unchanged; otherwise a read-only clone of the committed value is
// returned.
func (s *Store[K, TV, CV]) GetReadOnly(ctx context.Context, k K) (TV, bool) {
	var zero TV
	s.accessLock.RLock()
	defer s.accessLock.RUnlock()
	if tx, ok := TxFromContext(ctx); ok {
		if view := s.txViewLocked(tx); view != nil {
			if e, ok := view.entries[k]; ok {
				if !e.hasTxValue {
					return zero, false
				}
				return s.spec.Adapter.CloneTxView2ReadOnlyTxView(e.txValue), true
			}
		}
	}
	ce := s.committedLocked(k)
	if ce == nil || !ce.hasValue {
		return zero, false
	}
	return s.spec.Adapter.CloneCommitted2ReadOnlyTxView(ce.value), true
}

// LockReadOnly behaves like GetReadOnly but additionally records the
// observed committed version as an optimistic read-lock: at prepare, this
// transaction fails StaleObject if the committed version has since moved
// or another transaction holds the prepare lock, even though this key was
// never written.
func (s *Store[K, TV, CV]) LockReadOnly(ctx context.Context, k K) (TV, bool, error) {
	var zero TV
	tx, ok := TxFromContext(ctx)
	if !ok {
		return zero, false, ErrNoTransaction
	}
	s.accessLock.RLock()
	defer s.accessLock.RUnlock()
	view, err := s.getOrCreateViewLocked(tx)
	if err != nil {
		return zero, false, err
	}
	ce := s.committedOrCreateLocked(k)
	view.optimisticLocks[k] = ce.version
	if !ce.hasValue {
		return zero, false, nil
	}
	return s.spec.Adapter.CloneCommitted2ReadOnlyTxView(ce.value), true, nil
}

// Update replaces the TX value for k, materializing the TX-view entry if
// necessary. It fails if the TX view has already entered prepare.
func (s *Store[K, TV, CV]) Update(ctx context.Context, k K, v TV) error {
	return s.write(ctx, k, v, true)
}

// Remove is Update(k, <absent>): it stages a tombstone for k.
func (s *Store[K, TV, CV]) Remove(ctx context.Context, k K) error {
	var zero TV
	return s.write(ctx, k, zero, false)
}

func (s *Store[K, TV, CV]) write(ctx context.Context, k K, v TV, hasValue bool) error {
	tx, ok := TxFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	s.accessLock.RLock()
	defer s.accessLock.RUnlock()
	view, err := s.getOrCreateViewLocked(tx)
	if err != nil {
		return err
	}
	if view.state == stateCommitPending {
		return ErrTxAlreadyPrepared
	}
	if view.state == stateReadOnly {
		return ErrReadOnlyTxView
	}
	e, existed := view.entries[k]
	if !existed {
		e = s.materializeLocked(view, k)
	}
	e.txValue = v
	e.hasTxValue = hasValue
	if !e.updated {
		e.updated = true
		e.updatedSeq = view.nextUpdateSeq
		view.nextUpdateSeq++
	}
	return nil
}

// Refresh unconditionally drops k's TX-view entry and re-reads it from
// committed, discarding any staged change.
func (s *Store[K, TV, CV]) Refresh(ctx context.Context, k K) error {
	return s.refresh(ctx, k, false)
}

// RefreshIfNotUpdated drops and re-reads k's TX-view entry only if the
// caller has not already called Update/Remove on it.
func (s *Store[K, TV, CV]) RefreshIfNotUpdated(ctx context.Context, k K) error {
	return s.refresh(ctx, k, true)
}

func (s *Store[K, TV, CV]) refresh(ctx context.Context, k K, onlyIfNotUpdated bool) error {
	tx, ok := TxFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	s.accessLock.RLock()
	defer s.accessLock.RUnlock()
	view, err := s.getOrCreateViewLocked(tx)
	if err != nil {
		return err
	}
	if e, existed := view.entries[k]; existed {
		if onlyIfNotUpdated && e.updated {
			return nil
		}
		s.dropEntryLocked(view, k, e)
	}
	s.materializeLocked(view, k)
	return nil
}

// --- atomic sections (§4.5, §5) ---------------------------------------

// ExecuteAtomic runs fn while holding the store's read lock, blocking
// concurrent prepare/commit/rollback/clear on this store for its duration.
func (s *Store[K, TV, CV]) ExecuteAtomic(fn func()) {
	s.accessLock.RLock()
	defer s.accessLock.RUnlock()
	fn()
}

// ComputeAtomic is ExecuteAtomic for a function producing a result; it is a
// package-level function because Go methods cannot introduce new type
// parameters beyond the receiver's.
func ComputeAtomic[K comparable, TV any, CV any, R any](s *Store[K, TV, CV], fn func() R) R {
	s.accessLock.RLock()
	defer s.accessLock.RUnlock()
	return fn()
}

// ExecuteGlobalAtomic runs fn holding the container-wide lock for reading,
// plus this store's own lock when the store uses a private one. This
// excludes prepare/commit/rollback/clear on this store and on every store
// that shares the container-wide lock; stores with a private lock are not
// excluded.
func (s *Store[K, TV, CV]) ExecuteGlobalAtomic(fn func()) {
	if s.container != nil && s.container.globalLock != s.accessLock {
		s.container.globalLock.RLock()
		defer s.container.globalLock.RUnlock()
	}
	s.accessLock.RLock()
	defer s.accessLock.RUnlock()
	fn()
}

// Clear drops all committed state and invalidates every pending TX view.
func (s *Store[K, TV, CV]) Clear() {
	s.accessLock.Lock()
	defer s.accessLock.Unlock()
	s.mapMu.Lock()
	for _, view := range s.txViews {
		view.invalidate(ErrStoreCleared.Error())
	}
	s.committed = make(map[K]*committedEntry[K, CV])
	s.mapMu.Unlock()
	for _, l := range s.listeners {
		if c, ok := l.(interface{ Clear() }); ok {
			c.Clear()
		}
	}
}

// Size returns the number of present committed entries.
func (s *Store[K, TV, CV]) Size() int {
	s.accessLock.RLock()
	defer s.accessLock.RUnlock()
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	n := 0
	for _, ce := range s.committed {
		if ce.hasValue {
			n++
		}
	}
	return n
}
