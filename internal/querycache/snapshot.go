package querycache

import "time"

// Snapshot is an immutable copy of an entry taken at one point in time,
// or a record that the entry was absent.
type Snapshot[T any] struct {
	key         Key
	present     bool
	data        T
	fetchedAt   time.Time
	invalidated bool
	epoch       uint64
	clone       func(T) T
}

// Key returns the snapshotted key.
func (s Snapshot[T]) Key() Key { return s.key }

// Present reports whether an entry existed when the snapshot was taken.
func (s Snapshot[T]) Present() bool { return s.present }

// Data returns a copy of the snapshotted value.
func (s Snapshot[T]) Data() T {
	if s.clone == nil {
		return s.data
	}
	return s.clone(s.data)
}

// Snapshot captures the entry for key.
func (c *Cache[T]) Snapshot(key Key) Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot[T]{key: key, epoch: c.epoch, clone: c.opts.Clone}
	if e, ok := c.entries[key]; ok {
		s.present = true
		s.data = c.opts.Clone(e.data)
		s.fetchedAt = e.fetchedAt
		s.invalidated = e.invalidated
	}
	return s
}

// Restore puts a snapshotted entry back verbatim, data, timestamp and
// staleness included. Restoring an absent snapshot does nothing, and so does
// restoring a snapshot taken before the last Clear.
func (c *Cache[T]) Restore(s Snapshot[T]) {
	if !s.present {
		return
	}

	c.mu.Lock()
	if s.epoch != c.epoch {
		c.mu.Unlock()
		c.logger.Debug("dropped snapshot from before clear", "key", s.key.String())
		return
	}
	c.entries[s.key] = &entry[T]{
		data:        c.opts.Clone(s.data),
		fetchedAt:   s.fetchedAt,
		invalidated: s.invalidated,
	}
	c.gens[s.key]++
	c.mu.Unlock()

	c.notify(s.key)
}
