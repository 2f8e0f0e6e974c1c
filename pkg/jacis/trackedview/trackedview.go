// Package trackedview is C7: materialized views maintained incrementally
// as a Store's transactions commit, grounded on the teacher's
// pkg/aggregation materialized-view refresh idiom but re-keyed off the
// ModificationListener hook instead of a periodic rebuild.
package trackedview

import (
	"context"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

// View is maintained by a Registry. Implementations are typically a
// running aggregate (counts, sums, grouped indexes) over a store's
// population.
type View[TV any] interface {
	// TrackModification folds one committed change into the view. old/new
	// are meaningful only when hadOld/hasNew are true, respectively.
	TrackModification(old TV, hadOld bool, new TV, hasNew bool) error
	// CheckView validates the view against the full current population,
	// for consistency testing when the view was registered with
	// checkOnCommit set (ObjectTypeSpec.CheckViewsOnCommit is not consulted).
	CheckView(all []TV) error
	// Clear resets the view to empty.
	Clear()
	// Clone returns an independent copy for access-time cloning.
	Clone() View[TV]
}

// Registry is a ModificationListener that keeps View synchronized with a
// store's committed population and serves read-your-writes access by
// cloning the view and replaying the calling transaction's pending deltas.
type Registry[K comparable, TV any, CV any] struct {
	name          string
	view          View[TV]
	store         *jacis.Store[K, TV, CV]
	checkOnCommit bool
}

// Register attaches view to s under name. Per spec.md §4.7, registering
// requires ObjectTypeSpec.TrackOriginalValue and immediately replays s's
// current committed population into view under an atomic section so the
// view starts synchronized.
func Register[K comparable, TV any, CV any](s *jacis.Store[K, TV, CV], name string, view View[TV], checkOnCommit bool) (*Registry[K, TV, CV], error) {
	r := &Registry[K, TV, CV]{name: name, view: view, store: s, checkOnCommit: checkOnCommit}
	if err := s.RegisterModificationListener(r); err != nil {
		return nil, err
	}
	var zero TV
	s.ExecuteAtomic(func() {
		cur := s.StreamReadOnly(context.Background())
		for {
			_, v, ok := cur.Next()
			if !ok {
				break
			}
			_ = view.TrackModification(zero, false, v, true)
		}
	})
	return r, nil
}

// OnPrepareModification is a no-op: tracked views only observe committed
// changes, never veto a prepare.
func (r *Registry[K, TV, CV]) OnPrepareModification(key K, change jacis.Change[TV], tx *jacis.TxHandle) error {
	return nil
}

// OnModification folds the committed change into the view and, if
// configured, re-validates the whole population afterward.
func (r *Registry[K, TV, CV]) OnModification(key K, change jacis.Change[TV], tx *jacis.TxHandle) error {
	if err := r.view.TrackModification(change.Old, change.HadOld, change.New, change.HasNew); err != nil {
		return &jacis.TrackedViewModificationError{ViewName: r.name, Reason: err}
	}
	if r.checkOnCommit {
		all := r.store.StreamReadOnly(context.Background()).Collect()
		if err := r.view.CheckView(all); err != nil {
			return &jacis.TrackedViewModificationError{ViewName: r.name, Reason: err}
		}
	}
	return nil
}

// IsThreadSafe reports false: the registry does not synchronize calls into
// its View, so InitStoreNonTransactional's parallel loader serializes them.
// During commit, OnModification runs under the owning store's write lock.
func (r *Registry[K, TV, CV]) IsThreadSafe() bool { return false }

// Clear resets the underlying view, called by Store.Clear.
func (r *Registry[K, TV, CV]) Clear() { r.view.Clear() }

// Access clones the committed view and replays the calling transaction's
// pending deltas onto the clone, so a caller mid-transaction sees its own
// uncommitted writes reflected in the view.
func (r *Registry[K, TV, CV]) Access(ctx context.Context) View[TV] {
	clone := r.view.Clone()
	for _, change := range r.store.PendingChanges(ctx) {
		_ = clone.TrackModification(change.Old, change.HadOld, change.New, change.HasNew)
	}
	return clone
}
