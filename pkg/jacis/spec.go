package jacis

// ObjectTypeSpec configures one store's behavior, mirroring the teacher's
// Config/DefaultConfig pattern (pkg/database.Config, pkg/server.Config).
type ObjectTypeSpec[K comparable, TV any, CV any] struct {
	// Name identifies the store within its container.
	Name string

	// Adapter converts between committed (CV) and TX-view (TV)
	// representations. Required.
	Adapter ObjectAdapter[TV, CV]

	// TrackOriginalValue enables orig_value tracking on entry TX views.
	// If false, ModificationListener/TrackedView/Index registration is
	// rejected (stale detection still works off versions alone).
	TrackOriginalValue bool

	// CheckViewsOnCommit is not read by the tracked view registries in
	// pkg/jacis/trackedview: Register and RegisterSharded take their own
	// checkOnCommit argument, and no other code consults this field.
	CheckViewsOnCommit bool

	// SwitchToReadOnlyModeInPrepare switches updated TX values into
	// read-only mode (via ReadOnlySwitchable) once prepare installs the
	// prepare lock, preventing mutation from an afterPrepare listener.
	SwitchToReadOnlyModeInPrepare bool

	// SyncStoreOnContainerTransaction selects the container-wide lock
	// (true, the default) over a per-store lock for this store's
	// two-phase demarcation and atomic sections.
	SyncStoreOnContainerTransaction bool

	// DirtyCheck, if non-nil, is consulted at prepare to auto-mark
	// modified-in-place TX values as updated.
	DirtyCheck DirtyCheck[K, TV]

	// PersistenceAdapter, if non-nil, is registered as both a
	// ModificationListener and the store's persistence hook.
	PersistenceAdapter PersistenceAdapter[K, TV]
}

// DefaultObjectTypeSpec returns a spec with the teacher-style conservative
// defaults: original-value tracking on (so indexes/tracked views/listeners
// work out of the box) and container-wide synchronization on.
func DefaultObjectTypeSpec[K comparable, TV any, CV any](name string, adapter ObjectAdapter[TV, CV]) *ObjectTypeSpec[K, TV, CV] {
	return &ObjectTypeSpec[K, TV, CV]{
		Name:                            name,
		Adapter:                         adapter,
		TrackOriginalValue:              true,
		SyncStoreOnContainerTransaction: true,
	}
}
