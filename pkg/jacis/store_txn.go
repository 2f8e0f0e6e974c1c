package jacis

// Prepare runs phase one of two-phase commit for tx against this store:
// dirty-checking, optimistic-lock verification, updated-entry staleness
// checks, prepare-lock installation, and modification-listener
// notification (§4.5 "Prepare").
func (s *Store[K, TV, CV]) Prepare(tx *TxHandle) error {
	s.accessLock.Lock()
	defer s.accessLock.Unlock()
	return s.prepareLocked(tx)
}

func (s *Store[K, TV, CV]) prepareLocked(tx *TxHandle) error {
	view := s.txViewLocked(tx)
	if view == nil || view.state == stateReadOnly {
		return nil
	}
	if view.state == stateInvalidated {
		return nil // warn-and-skip, per spec.md §4.5 step 1.a
	}
	if view.state == stateCommitPending {
		return nil
	}

	// b. dirty check: structurally compare non-updated entries against
	// their original value, auto-marking modified ones as updated.
	if s.spec.DirtyCheck != nil && s.spec.TrackOriginalValue {
		for k, e := range view.entries {
			if e.updated {
				continue
			}
			if s.spec.DirtyCheck.IsDirty(k, e.origValue, e.txValue) {
				s.markUpdatedLocked(view, e)
			}
		}
	}

	// c.
	view.state = stateCommitPending

	// d. optimistic lock verification for read-locked (not necessarily
	// written) keys.
	for k, lockedVersion := range view.optimisticLocks {
		ce := s.committedLocked(k)
		if ce == nil {
			continue
		}
		if ce.version > lockedVersion || ce.isLockedForOther(tx) {
			s.releaseLocksLocked(view, tx)
			return newStaleObjectError(k, tx, ce, lockedVersion)
		}
		ce.lockedFor = tx
		ce.lockedForThread = tx.String()
	}

	// e. updated-entry staleness, in ascending updatedSeq (program) order.
	updated := view.updatedEntriesInOrder()
	for _, e := range updated {
		ce := e.committed
		if ce.version > e.origVersion || ce.isLockedForOther(tx) {
			s.releaseLocksLocked(view, tx)
			return newStaleObjectError(ce.key, tx, ce, e.origVersion)
		}
		ce.lockedFor = tx
		ce.lockedForThread = tx.String()
		if s.spec.SwitchToReadOnlyModeInPrepare && e.hasTxValue {
			if sw, ok := any(e.txValue).(ReadOnlySwitchable[TV]); ok {
				e.txValue = sw.SwitchToReadOnlyMode()
			}
		}
	}

	// f/g. notify modification listeners; a listener implementing a
	// unique index returns UniqueIndexViolationError directly instead of
	// a generic veto reason, which is why OnPrepareModification's error
	// is surfaced as-is rather than always wrapped.
	for _, e := range updated {
		change := s.changeFor(e)
		for _, l := range s.listeners {
			if err := l.OnPrepareModification(e.committed.key, change, tx); err != nil {
				s.releaseLocksLocked(view, tx)
				if _, isUniqueViolation := err.(*UniqueIndexViolationError); isUniqueViolation {
					return err
				}
				return &ModificationVetoError{Key: e.committed.key, Reason: err}
			}
		}
	}

	// h. persistence adapter hook.
	if s.spec.PersistenceAdapter != nil {
		s.spec.PersistenceAdapter.AfterPrepareForStore(tx, s.name)
	}

	return nil
}

func (s *Store[K, TV, CV]) markUpdatedLocked(view *storeTxView[K, TV, CV], e *entryTxView[K, TV, CV]) {
	e.updated = true
	e.updatedSeq = view.nextUpdateSeq
	view.nextUpdateSeq++
}

func (s *Store[K, TV, CV]) changeFor(e *entryTxView[K, TV, CV]) Change[TV] {
	return Change[TV]{
		Key:    e.committed.key,
		Old:    e.origValue,
		HadOld: e.hasOrigValue,
		New:    e.txValue,
		HasNew: e.hasTxValue,
	}
}

func newStaleObjectError[K comparable, CV any](key K, tx *TxHandle, ce *committedEntry[K, CV], origVersion uint64) *StaleObjectError {
	var conflictingID uint64
	var conflictingThread string
	if ce.lockedFor != nil {
		conflictingID = ce.lockedFor.ID
		conflictingThread = ce.lockedForThread
	}
	return &StaleObjectError{
		Key:               key,
		TxID:              tx.ID,
		ConflictingTxID:   conflictingID,
		OrigVersion:       origVersion,
		CommittedVersion:  ce.version,
		UpdatingThread:    tx.String(),
		ConflictingThread: conflictingThread,
	}
}

// Commit runs phase two: implicit prepare if needed, release of every
// prepare lock this transaction holds (updated entries and optimistic
// read-locks), listener notification, committed write-back in updatedSeq
// order, tombstone GC, and TX-view destruction (§4.5 "Commit"). The
// persistence adapter's AfterCommitForStore runs after the store lock is
// released, so the adapter may read the store.
func (s *Store[K, TV, CV]) Commit(tx *TxHandle) error {
	s.accessLock.Lock()
	locked := true
	defer func() {
		if locked {
			s.accessLock.Unlock()
		}
	}()

	view := s.txViewLocked(tx)
	if view == nil || view.state == stateReadOnly {
		return nil
	}
	if view.state == stateInvalidated {
		reason := view.invalidationReason
		s.destroyViewLocked(tx)
		return &TxViewInvalidatedError{Reason: reason}
	}
	if view.state != stateCommitPending {
		if err := s.prepareLocked(tx); err != nil {
			return err
		}
	}

	updated := view.updatedEntriesInOrder()

	// b. release this transaction's prepare locks (updated entries and
	// optimistic read-locks).
	s.releaseLocksLocked(view, tx)

	// c. listener notification + committed write-back, in order.
	var aggregate *aggregatedError
	for _, e := range updated {
		change := s.changeFor(e)
		for _, l := range s.listeners {
			if err := l.OnModification(e.committed.key, change, tx); err != nil {
				aggregate = aggregate.add(classifyListenerError(e.committed.key, err))
			}
		}
		ce := e.committed
		if !e.hasTxValue {
			var zero CV
			ce.value = zero
			ce.hasValue = false
		} else {
			ce.value = s.spec.Adapter.CloneTxView2Committed(e.txValue)
			ce.hasValue = true
		}
		ce.version++
		ce.updatedByTxID = tx.ID
		ce.updatedByThread = tx.String()
	}

	// d. garbage-collect tombstoned/unlocked/unreferenced entries.
	s.mapMu.Lock()
	for _, e := range updated {
		s.gcIfRemovableLocked(e.committed)
	}
	s.mapMu.Unlock()

	// e. destroy the TX view; persistence adapter hook, outside the lock.
	s.destroyViewLocked(tx)
	s.accessLock.Unlock()
	locked = false
	if s.spec.PersistenceAdapter != nil {
		s.spec.PersistenceAdapter.AfterCommitForStore(tx, s.name)
	}

	if aggregate != nil {
		return aggregate.err
	}
	return nil
}

// classifyListenerError preserves TrackedViewModificationError /
// UniqueIndexViolationError identity (so callers can type-assert them)
// and wraps anything else as ModificationListenerError.
func classifyListenerError(key any, err error) error {
	switch err.(type) {
	case *TrackedViewModificationError, *UniqueIndexViolationError:
		return err
	default:
		return &ModificationListenerError{Key: key, Reason: err}
	}
}

// aggregatedError collects listener failures during commit so bookkeeping
// (lock release, TX-view destruction, persistence callbacks) always
// completes before the first failure is surfaced, with the rest chained.
type aggregatedError struct {
	err error
}

func (a *aggregatedError) add(err error) *aggregatedError {
	if a == nil {
		return &aggregatedError{err: err}
	}
	a.err = chainError(a.err, err)
	return a
}

// chainError attaches next as the "suppressed" companion of first,
// preserving first's identity for type assertions while remembering next.
func chainError(first, next error) error {
	switch e := first.(type) {
	case *TrackedViewModificationError:
		if e.Next == nil {
			e.Next = next
		} else {
			e.Next = chainError(e.Next, next)
		}
		return e
	case *ModificationListenerError:
		if e.Next == nil {
			e.Next = next
		} else {
			e.Next = chainError(e.Next, next)
		}
		return e
	default:
		return first
	}
}

// Rollback discards tx's staged changes and releases any prepare locks it
// holds (§4.5 "Rollback").
func (s *Store[K, TV, CV]) Rollback(tx *TxHandle) error {
	s.accessLock.Lock()
	defer s.accessLock.Unlock()
	view := s.txViewLocked(tx)
	if view == nil || view.state == stateReadOnly {
		return nil
	}
	s.releaseLocksLocked(view, tx)
	s.destroyViewLocked(tx)
	if s.spec.PersistenceAdapter != nil {
		s.spec.PersistenceAdapter.AfterRollbackForStore(tx, s.name)
	}
	return nil
}

// Destroy is final cleanup when the external transaction this store's TX
// view was bound to is being dropped without an explicit commit/rollback
// (§4.5 "Destroy"). It is idempotent.
func (s *Store[K, TV, CV]) Destroy(tx *TxHandle) {
	s.accessLock.Lock()
	defer s.accessLock.Unlock()
	view := s.txViewLocked(tx)
	if view == nil {
		return
	}
	s.releaseLocksLocked(view, tx)
	s.destroyViewLocked(tx)
}
