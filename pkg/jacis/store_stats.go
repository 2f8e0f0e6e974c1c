package jacis

// Stats is a live snapshot of a store's size and activity, surfacing the
// counters the ambient metrics/admin-server layer exports (SPEC_FULL.md
// "Store statistics"), grounded on the teacher's pkg/index/stats.go and
// pkg/metrics/metrics.go shapes.
type Stats struct {
	Name             string
	CommittedEntries int
	ActiveTxViews    int
	ListenerCount    int
}

// Stats returns a point-in-time snapshot, taken under the store's read
// lock so it never observes a torn commit.
func (s *Store[K, TV, CV]) Stats() Stats {
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
	return Stats{
		Name:             s.name,
		CommittedEntries: n,
		ActiveTxViews:    len(s.txViews),
		ListenerCount:    len(s.listeners),
	}
}
