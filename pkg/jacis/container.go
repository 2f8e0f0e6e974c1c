package jacis

import (
	"context"
	"sync"
)

// storeDemarcation is the type-erased view of a Store[K,TV,CV] the
// Container needs to drive two-phase commit across stores of differing
// key/value types. Every *Store[K,TV,CV] satisfies it automatically.
type storeDemarcation interface {
	Prepare(tx *TxHandle) error
	Commit(tx *TxHandle) error
	Rollback(tx *TxHandle) error
	Destroy(tx *TxHandle)
	Clear()
	Name() string
	Stats() Stats
}

// TransactionAdapter is C10: it binds the container to the ambient
// transaction, local or external, returning the current handle for the
// calling context.
//
// The Java original keys this off the calling thread; Go goroutines have
// no equivalent identity, so the ambient transaction here is carried by
// context.Context (ContextWithTx/TxFromContext) instead — GetCurrentTransaction
// is the fallback path for bridging in an externally-managed transaction
// that never went through ContextWithTx (see pkg/jacis/txadapter).
type TransactionAdapter interface {
	GetCurrentTransaction(enforce bool) (*TxHandle, error)
	JoinCurrentTransaction(tx *TxHandle, c *Container) error
	DestroyCurrentTransaction()
}

// Container is C8: it owns a set of typed stores and the transaction
// listeners that observe two-phase demarcation across all of them.
type Container struct {
	mu         sync.RWMutex
	stores     map[string]storeDemarcation
	listeners  []TransactionListener
	adapter    TransactionAdapter
	globalLock *sync.RWMutex
}

// NewContainer creates an empty container. adapter may be nil, in which
// case CurrentTransaction only ever resolves a transaction carried
// explicitly via context.Context.
func NewContainer(adapter TransactionAdapter) *Container {
	return &Container{
		stores:     make(map[string]storeDemarcation),
		adapter:    adapter,
		globalLock: &sync.RWMutex{},
	}
}

// RegisterTransactionListener adds a listener notified around every
// container-wide prepare/commit/rollback.
func (c *Container) RegisterTransactionListener(l TransactionListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *Container) lockFor(syncContainerWide bool) *sync.RWMutex {
	if syncContainerWide {
		return c.globalLock
	}
	return &sync.RWMutex{}
}

func (c *Container) addStore(st storeDemarcation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores[st.Name()] = st
}

func (c *Container) storeList() []storeDemarcation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]storeDemarcation, 0, len(c.stores))
	for _, st := range c.stores {
		out = append(out, st)
	}
	return out
}

func (c *Container) listenerList() []TransactionListener {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]TransactionListener, len(c.listeners))
	copy(out, c.listeners)
	return out
}

// CreateStore installs a new store under spec.Name. It is a package-level
// function (not a Container method) because Go methods cannot add type
// parameters beyond the receiver's; Container itself holds heterogeneous
// stores behind storeDemarcation.
func CreateStore[K comparable, TV any, CV any](c *Container, spec *ObjectTypeSpec[K, TV, CV]) *Store[K, TV, CV] {
	lock := c.lockFor(spec.SyncStoreOnContainerTransaction)
	st := newStore[K, TV, CV](spec.Name, spec, lock, c)
	c.addStore(st)
	return st
}

// GetStore looks up a previously created store by name, type-asserting it
// to the requested K/TV/CV. ok is false if no store of that name and
// those exact types exists — the Go equivalent of spec.md's
// StoreIdentifier equality by (key-type, value-type).
func GetStore[K comparable, TV any, CV any](c *Container, name string) (st *Store[K, TV, CV], ok bool) {
	c.mu.RLock()
	raw, exists := c.stores[name]
	c.mu.RUnlock()
	if !exists {
		return nil, false
	}
	st, ok = raw.(*Store[K, TV, CV])
	return st, ok
}

// BeginLocalTransaction allocates a fresh, locally-managed transaction
// handle. Callers bind it into a context with ContextWithTx before
// operating on any store; pkg/jacis/localtx wraps this into a
// with-transaction helper that does so automatically.
func (c *Container) BeginLocalTransaction(description string) *TxHandle {
	return NewTxHandle(description, nil)
}

// CurrentTransaction resolves the transaction bound to ctx, falling back
// to the container's TransactionAdapter (if any) for transactions bridged
// in from an ambient coordinator that never called ContextWithTx. It
// raises ErrNoTransaction when enforce is true and none is found.
func (c *Container) CurrentTransaction(ctx context.Context, enforce bool) (*TxHandle, error) {
	if tx, ok := TxFromContext(ctx); ok {
		return tx, nil
	}
	if c.adapter != nil {
		return c.adapter.GetCurrentTransaction(enforce)
	}
	if enforce {
		return nil, ErrNoTransaction
	}
	return nil, nil
}

// --- two-phase demarcation across all stores (§4.8) --------------------

func (c *Container) runBeforeHook(hook func(TransactionListener) error) error {
	for _, l := range c.listenerList() {
		if l.IsSynchronous() {
			if err := hook(l); err != nil {
				return err
			}
		} else {
			go func(l TransactionListener) { _ = hook(l) }(l)
		}
	}
	return nil
}

func (c *Container) runAfterHook(hook func(TransactionListener)) {
	for _, l := range c.listenerList() {
		if l.IsSynchronous() {
			hook(l)
		} else {
			go hook(l)
		}
	}
}

// Prepare drives phase one across every store participating in tx, in the
// order transaction-listener.BeforePrepare -> each store.Prepare ->
// transaction-listener.AfterPrepare (§4.8).
func (c *Container) Prepare(tx *TxHandle) error {
	if err := c.runBeforeHook(func(l TransactionListener) error { return l.BeforePrepare(tx) }); err != nil {
		return err
	}
	var err error
	for _, st := range c.storeList() {
		if err = st.Prepare(tx); err != nil {
			break
		}
	}
	c.runAfterHook(func(l TransactionListener) { l.AfterPrepare(tx, err) })
	return err
}

// Commit drives phase two: an implicit container-wide Prepare (so every
// store prepares before any store commits — true two-phase commit across
// stores, stronger than any single store's own implicit-prepare
// convenience), then transaction-listener.BeforeCommit, each
// store.Commit, transaction-listener.AfterCommit, then the adapter is
// asked to destroy the current transaction reference.
func (c *Container) Commit(tx *TxHandle) error {
	if err := c.Prepare(tx); err != nil {
		return err
	}
	if err := c.runBeforeHook(func(l TransactionListener) error { return l.BeforeCommit(tx) }); err != nil {
		return err
	}
	var aggregate *aggregatedError
	for _, st := range c.storeList() {
		if err := st.Commit(tx); err != nil {
			aggregate = aggregate.add(err)
		}
	}
	var err error
	if aggregate != nil {
		err = aggregate.err
	}
	c.runAfterHook(func(l TransactionListener) { l.AfterCommit(tx, err) })
	if c.adapter != nil {
		c.adapter.DestroyCurrentTransaction()
	}
	return err
}

// Rollback drives the rollback path symmetrically to Commit: every store
// is rolled back regardless of any individual failure (rollback never
// fails per spec.md §4.5), bracketed by the container's transaction
// listeners, then the adapter destroys the current transaction reference.
func (c *Container) Rollback(tx *TxHandle) {
	c.runAfterHook(func(l TransactionListener) { l.BeforeRollback(tx) })
	for _, st := range c.storeList() {
		_ = st.Rollback(tx)
	}
	c.runAfterHook(func(l TransactionListener) { l.AfterRollback(tx) })
	if c.adapter != nil {
		c.adapter.DestroyCurrentTransaction()
	}
}

// StoreStats returns a Stats snapshot for every store in the container,
// the data source for the admin HTTP/GraphQL introspection surface.
func (c *Container) StoreStats() []Stats {
	list := c.storeList()
	out := make([]Stats, 0, len(list))
	for _, st := range list {
		out = append(out, st.Stats())
	}
	return out
}

// ClearAllStores clears every store in the container.
func (c *Container) ClearAllStores() {
	for _, st := range c.storeList() {
		st.Clear()
	}
}

// ExecuteGlobalAtomic runs fn while holding the container-wide lock,
// excluding prepare/commit/rollback/clear on every participating store.
func (c *Container) ExecuteGlobalAtomic(fn func()) {
	c.globalLock.RLock()
	defer c.globalLock.RUnlock()
	fn()
}
