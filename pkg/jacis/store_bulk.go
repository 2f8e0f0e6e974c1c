package jacis

import (
	"context"
	"sync"
)

// InitStoreNonTransactional bulk-loads an empty store outside of any
// transaction. It is a package-level function (not a method) because it
// needs an extra type parameter E for the raw source item type.
//
// When len(items) >= 1000 and nThreads > 1, loading is parallelized across
// a bounded worker pool, grounded on the teacher's WorkerPool shape
// (pkg/database/worker_pool.go) but scoped to this one bulk-load call
// rather than a long-lived background pool. Any listener that answers
// false from IsThreadSafe is invoked under a dedicated mutex so it is
// never called concurrently with itself.
//
// Bulk-loading into a non-empty store is a hard error (spec.md §9 Open
// Question, resolved in DESIGN.md): ErrNonEmptyBulkLoad.
func InitStoreNonTransactional[K comparable, TV any, CV any, E any](
	ctx context.Context,
	s *Store[K, TV, CV],
	items []E,
	keyFn func(E) K,
	valueFn func(E) TV,
	nThreads int,
) error {
	s.accessLock.Lock()
	defer s.accessLock.Unlock()

	s.mapMu.Lock()
	nonEmpty := len(s.committed) > 0
	s.mapMu.Unlock()
	if nonEmpty {
		return ErrNonEmptyBulkLoad
	}

	allThreadSafe := true
	for _, l := range s.listeners {
		if !l.IsThreadSafe() {
			allThreadSafe = false
			break
		}
	}
	var listenerMu sync.Mutex

	insert := func(item E) {
		k := keyFn(item)
		v := valueFn(item)
		ce := newCommittedEntry[K, CV](k)
		ce.value = s.spec.Adapter.CloneTxView2Committed(v)
		ce.hasValue = true
		ce.version = 1

		s.mapMu.Lock()
		s.committed[k] = ce
		s.mapMu.Unlock()

		change := Change[TV]{Key: k, New: v, HasNew: true}
		notify := func() {
			for _, l := range s.listeners {
				_ = l.OnModification(k, change, nil)
			}
		}
		if allThreadSafe {
			notify()
		} else {
			listenerMu.Lock()
			notify()
			listenerMu.Unlock()
		}
	}

	if nThreads <= 1 || len(items) < 1000 {
		for _, item := range items {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			insert(item)
		}
		return nil
	}

	work := make(chan E)
	var wg sync.WaitGroup
	for i := 0; i < nThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				insert(item)
			}
		}()
	}
feed:
	for _, item := range items {
		select {
		case <-ctx.Done():
			break feed
		case work <- item:
		}
	}
	close(work)
	wg.Wait()
	return ctx.Err()
}
