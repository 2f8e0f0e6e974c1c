package jacis

// ObjectAdapter converts between the committed representation (CV) and the
// transaction-view representation (TV) a store exposes to callers. The
// double clone on commit (committed -> TX view on read, TX view ->
// committed on write-back) is a deliberate safety margin against aliasing
// and is preserved even when TV and CV are the same Go type.
type ObjectAdapter[TV any, CV any] interface {
	// CloneCommitted2WritableTxView produces the value a transaction will
	// read and may mutate, from the committed value.
	CloneCommitted2WritableTxView(cv CV) TV
	// CloneCommitted2ReadOnlyTxView produces a value safe to hand to a
	// caller that must never observe it mutate underneath them.
	CloneCommitted2ReadOnlyTxView(cv CV) TV
	// CloneTxView2Committed produces the value that becomes the new
	// committed value at commit time.
	CloneTxView2Committed(tv TV) CV
	// CloneTxView2ReadOnlyTxView produces a read-only projection of a
	// value already held in a TX view (used by getReadOnly when an entry
	// already has a TX-view entry).
	CloneTxView2ReadOnlyTxView(tv TV) TV
}

// ReadOnlySwitchable is an optional capability an ObjectAdapter's value
// type may implement: switching a TX value into read-only mode at prepare
// time (ObjectTypeSpec.SwitchToReadOnlyModeInPrepare) to prevent accidental
// mutation from an afterPrepare listener.
type ReadOnlySwitchable[TV any] interface {
	SwitchToReadOnlyMode() TV
}

// Cloneable is the capability CloneableAdapter relies on: a value type
// that knows how to deep-copy itself.
type Cloneable[T any] interface {
	Clone() T
}

// CloneableAdapter is the default ObjectAdapter for value types that carry
// their own Clone() method (the common case for document/struct values),
// mirroring the teacher's document.Document.Clone idiom. TV and CV are the
// same Go type.
type CloneableAdapter[T Cloneable[T]] struct{}

// NewCloneableAdapter returns an ObjectAdapter that clones via T.Clone().
func NewCloneableAdapter[T Cloneable[T]]() CloneableAdapter[T] {
	return CloneableAdapter[T]{}
}

func (CloneableAdapter[T]) CloneCommitted2WritableTxView(cv T) T  { return cv.Clone() }
func (CloneableAdapter[T]) CloneCommitted2ReadOnlyTxView(cv T) T  { return cv.Clone() }
func (CloneableAdapter[T]) CloneTxView2Committed(tv T) T          { return tv.Clone() }
func (CloneableAdapter[T]) CloneTxView2ReadOnlyTxView(tv T) T     { return tv.Clone() }

// IdentityAdapter is an ObjectAdapter for immutable / value-semantics Go
// types (numbers, strings, and any type callers guarantee is never
// mutated in place). No copy is made; aliasing is safe because the type
// is immutable by convention.
type IdentityAdapter[T any] struct{}

// NewIdentityAdapter returns an ObjectAdapter that performs no copying.
func NewIdentityAdapter[T any]() IdentityAdapter[T] {
	return IdentityAdapter[T]{}
}

func (IdentityAdapter[T]) CloneCommitted2WritableTxView(cv T) T { return cv }
func (IdentityAdapter[T]) CloneCommitted2ReadOnlyTxView(cv T) T { return cv }
func (IdentityAdapter[T]) CloneTxView2Committed(tv T) T         { return tv }
func (IdentityAdapter[T]) CloneTxView2ReadOnlyTxView(tv T) T    { return tv }
