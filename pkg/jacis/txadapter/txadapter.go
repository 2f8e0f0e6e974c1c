// Package txadapter is C10: implementations of jacis.TransactionAdapter,
// which binds a Container to whatever is standing in for the spec's
// thread-local "current transaction".
//
// The core package carries the ambient transaction through
// context.Context (jacis.ContextWithTx / jacis.TxFromContext), which
// covers ordinary call chains. These adapters exist for the narrower case
// the spec's contract still describes: bridging in a transaction handle
// for code that cannot thread a context argument, or that is coordinated
// by an external transaction manager.
package txadapter

import (
	"sync"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

// Local is the simplest TransactionAdapter: a single explicitly-set
// current transaction, shared by every caller that holds a reference to
// this adapter (there is no per-goroutine isolation, unlike the spec's
// thread-local original — see DESIGN.md).
type Local struct {
	mu        sync.Mutex
	current   *jacis.TxHandle
	containers map[*jacis.Container]struct{}
}

// NewLocal creates an adapter with no current transaction.
func NewLocal() *Local {
	return &Local{containers: make(map[*jacis.Container]struct{})}
}

// GetCurrentTransaction returns the bound transaction, or
// jacis.ErrNoTransaction when enforce is true and none is bound.
func (l *Local) GetCurrentTransaction(enforce bool) (*jacis.TxHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil && enforce {
		return nil, jacis.ErrNoTransaction
	}
	return l.current, nil
}

// JoinCurrentTransaction binds tx as the adapter's current transaction.
// The owning container is recorded so a future extension could notify it
// of ambient lifecycle events; today prepare/commit/rollback still flow
// through the Container explicitly.
func (l *Local) JoinCurrentTransaction(tx *jacis.TxHandle, c *jacis.Container) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = tx
	l.containers[c] = struct{}{}
	return nil
}

// DestroyCurrentTransaction clears the binding.
func (l *Local) DestroyCurrentTransaction() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = nil
}

// PollFunc polls an external transaction manager for the ambient
// transaction it currently considers active, if any.
type PollFunc func() (*jacis.TxHandle, bool)

// External bridges an ambient transaction manager that the core has no
// direct knowledge of: every call to GetCurrentTransaction re-polls the
// supplied function rather than consulting any state of its own.
type External struct {
	poll PollFunc

	mu      sync.Mutex
	current *jacis.TxHandle
}

// NewExternal creates an adapter backed by poll.
func NewExternal(poll PollFunc) *External {
	return &External{poll: poll}
}

// GetCurrentTransaction polls the external manager, raising
// jacis.ErrNoTransaction when enforce is true and it reports none active.
func (e *External) GetCurrentTransaction(enforce bool) (*jacis.TxHandle, error) {
	tx, ok := e.poll()
	if !ok {
		if enforce {
			return nil, jacis.ErrNoTransaction
		}
		return nil, nil
	}
	e.mu.Lock()
	e.current = tx
	e.mu.Unlock()
	return tx, nil
}

// JoinCurrentTransaction records tx as the last-seen handle. c is not
// retained; the container's Prepare/Commit/Rollback run only when called
// explicitly.
func (e *External) JoinCurrentTransaction(tx *jacis.TxHandle, c *jacis.Container) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = tx
	return nil
}

// DestroyCurrentTransaction drops the last-seen handle; the external
// manager owns the actual transaction lifecycle.
func (e *External) DestroyCurrentTransaction() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = nil
}
