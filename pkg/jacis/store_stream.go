package jacis

import "context"

// Cursor lazily walks a snapshot of a store's key set, fetching each
// value on demand, mirroring the teacher's pre-fetched-keys/lazy-value
// Cursor idiom (pkg/database/cursor.go) generalized to typed keys/values.
type Cursor[K comparable, TV any] struct {
	keys []K
	pos  int
	next func(K) (TV, bool)
}

// Next advances the cursor, skipping any key whose value has been
// filtered out or deleted. ok is false once the cursor is exhausted.
func (c *Cursor[K, TV]) Next() (key K, value TV, ok bool) {
	for c.pos < len(c.keys) {
		k := c.keys[c.pos]
		c.pos++
		v, present := c.next(k)
		if !present {
			continue
		}
		return k, v, true
	}
	var zeroK K
	var zeroV TV
	return zeroK, zeroV, false
}

// Collect drains the cursor into a slice. Convenience for callers that
// don't need true laziness.
func (c *Cursor[K, TV]) Collect() []TV {
	out := make([]TV, 0, len(c.keys))
	for {
		_, v, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func (s *Store[K, TV, CV]) unionKeysLocked(tx *TxHandle) []K {
	s.mapMu.Lock()
	keys := make([]K, 0, len(s.committed))
	seen := make(map[K]struct{}, len(s.committed))
	for k := range s.committed {
		keys = append(keys, k)
		seen[k] = struct{}{}
	}
	s.mapMu.Unlock()
	if view := s.txViewLocked(tx); view != nil {
		for k := range view.entries {
			if _, ok := seen[k]; !ok {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// StreamReadOnly returns a cursor over every present value, without
// creating TX-view entries, exactly like repeated GetReadOnly calls.
func (s *Store[K, TV, CV]) StreamReadOnly(ctx context.Context) *Cursor[K, TV] {
	tx, _ := TxFromContext(ctx)
	s.accessLock.RLock()
	keys := s.unionKeysLocked(tx)
	s.accessLock.RUnlock()
	return &Cursor[K, TV]{
		keys: keys,
		next: func(k K) (TV, bool) { return s.GetReadOnly(ctx, k) },
	}
}

// StreamReadOnlyFiltered is StreamReadOnly restricted to values for which
// filter returns true (evaluated on the read-only clone).
func (s *Store[K, TV, CV]) StreamReadOnlyFiltered(ctx context.Context, filter func(TV) bool) *Cursor[K, TV] {
	tx, _ := TxFromContext(ctx)
	s.accessLock.RLock()
	keys := s.unionKeysLocked(tx)
	s.accessLock.RUnlock()
	return &Cursor[K, TV]{
		keys: keys,
		next: func(k K) (TV, bool) {
			v, ok := s.GetReadOnly(ctx, k)
			if !ok || !filter(v) {
				var zero TV
				return zero, false
			}
			return v, true
		},
	}
}

// Stream returns a cursor over every present value, materializing a
// writable TX-view entry for each one visited (like repeated Get calls).
func (s *Store[K, TV, CV]) Stream(ctx context.Context) *Cursor[K, TV] {
	tx, _ := TxFromContext(ctx)
	s.accessLock.RLock()
	keys := s.unionKeysLocked(tx)
	s.accessLock.RUnlock()
	return &Cursor[K, TV]{
		keys: keys,
		next: func(k K) (TV, bool) {
			v, present, err := s.getWithPresence(ctx, k)
			if err != nil || !present {
				var zero TV
				return zero, false
			}
			return v, true
		},
	}
}

// StreamFiltered evaluates filter against read-only clones first, and only
// materializes (re-reads writably via Get) the survivors into the TX view,
// per spec.md §4.5.
func (s *Store[K, TV, CV]) StreamFiltered(ctx context.Context, filter func(TV) bool) *Cursor[K, TV] {
	tx, _ := TxFromContext(ctx)
	s.accessLock.RLock()
	keys := s.unionKeysLocked(tx)
	s.accessLock.RUnlock()
	return &Cursor[K, TV]{
		keys: keys,
		next: func(k K) (TV, bool) {
			ro, ok := s.GetReadOnly(ctx, k)
			if !ok || !filter(ro) {
				var zero TV
				return zero, false
			}
			v, present, err := s.getWithPresence(ctx, k)
			if err != nil || !present {
				var zero TV
				return zero, false
			}
			return v, true
		},
	}
}

// Page returns up to limit present values starting at offset, in the
// cursor's natural (unordered, map-derived) iteration order — paging over
// an in-memory store is a slice operation, not a sorted scan.
func (s *Store[K, TV, CV]) Page(ctx context.Context, offset, limit int) []TV {
	c := s.StreamReadOnly(ctx)
	skipped := 0
	out := make([]TV, 0, limit)
	for {
		_, v, ok := c.Next()
		if !ok {
			return out
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, v)
		if len(out) >= limit {
			return out
		}
	}
}
