package trackedview

import (
	"context"
	"sync"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

// ShardFunc derives the shard a value belongs to, e.g. a tenant or region
// field. A value's shard must not change between old and new in a single
// modification.
type ShardFunc[TV any] func(v TV) any

// ViewFactory creates a fresh, empty View for a newly observed shard.
type ViewFactory[TV any] func() View[TV]

// Sharded is a sharded tracked-view registry: each shard gets its own
// independent View, so Access only clones the one sub-view a caller asked
// for instead of the whole population.
type Sharded[K comparable, TV any, CV any] struct {
	name          string
	shardFn       ShardFunc[TV]
	factory       ViewFactory[TV]
	store         *jacis.Store[K, TV, CV]
	checkOnCommit bool

	mu     sync.RWMutex
	shards map[any]View[TV]
}

// RegisterSharded attaches a sharded view set to s under name.
func RegisterSharded[K comparable, TV any, CV any](
	s *jacis.Store[K, TV, CV],
	name string,
	shardFn ShardFunc[TV],
	factory ViewFactory[TV],
	checkOnCommit bool,
) (*Sharded[K, TV, CV], error) {
	c := &Sharded[K, TV, CV]{
		name:          name,
		shardFn:       shardFn,
		factory:       factory,
		store:         s,
		checkOnCommit: checkOnCommit,
		shards:        make(map[any]View[TV]),
	}
	if err := s.RegisterModificationListener(c); err != nil {
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
			c.shardLocked(shardFn(v)).TrackModification(zero, false, v, true)
		}
	})
	return c, nil
}

func (c *Sharded[K, TV, CV]) shardLocked(shard any) View[TV] {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.shards[shard]
	if !ok {
		v = c.factory()
		c.shards[shard] = v
	}
	return v
}

// OnPrepareModification is a no-op, symmetric with Registry's.
func (c *Sharded[K, TV, CV]) OnPrepareModification(key K, change jacis.Change[TV], tx *jacis.TxHandle) error {
	return nil
}

// OnModification routes the change into the shard the new (or, for a
// deletion, the old) value belongs to.
func (c *Sharded[K, TV, CV]) OnModification(key K, change jacis.Change[TV], tx *jacis.TxHandle) error {
	var shard any
	if change.HasNew {
		shard = c.shardFn(change.New)
	} else if change.HadOld {
		shard = c.shardFn(change.Old)
	} else {
		return nil
	}
	view := c.shardLocked(shard)
	if err := view.TrackModification(change.Old, change.HadOld, change.New, change.HasNew); err != nil {
		return &jacis.TrackedViewModificationError{ViewName: c.name, Reason: err}
	}
	if c.checkOnCommit {
		all := c.store.StreamReadOnlyFiltered(context.Background(), func(v TV) bool {
			return c.shardFn(v) == shard
		}).Collect()
		if err := view.CheckView(all); err != nil {
			return &jacis.TrackedViewModificationError{ViewName: c.name, Reason: err}
		}
	}
	return nil
}

// IsThreadSafe reports false: the shard map is synchronized, but calls into
// one shard's View are not, so InitStoreNonTransactional's parallel loader
// serializes them.
func (c *Sharded[K, TV, CV]) IsThreadSafe() bool { return false }

// Clear drops every shard's view.
func (c *Sharded[K, TV, CV]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shards = make(map[any]View[TV])
}

// AccessShard clones only the requested shard's view and replays the
// calling transaction's pending deltas that belong to that shard.
func (c *Sharded[K, TV, CV]) AccessShard(ctx context.Context, shard any) View[TV] {
	c.mu.RLock()
	v, ok := c.shards[shard]
	c.mu.RUnlock()
	if !ok {
		return c.factory()
	}
	clone := v.Clone()
	for _, change := range c.store.PendingChanges(ctx) {
		var changeShard any
		if change.HasNew {
			changeShard = c.shardFn(change.New)
		} else if change.HadOld {
			changeShard = c.shardFn(change.Old)
		} else {
			continue
		}
		if changeShard != shard {
			continue
		}
		_ = clone.TrackModification(change.Old, change.HadOld, change.New, change.HasNew)
	}
	return clone
}
