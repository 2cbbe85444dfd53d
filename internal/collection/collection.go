// Package collection provides an ordered set of items keyed by an int64 id,
// with a pluggable policy for what happens when an id is inserted twice.
package collection

import "sync"

// Keyed is implemented by every item stored in a Collection.
type Keyed interface {
	Key() int64
}

// UpsertPolicy decides how an incoming item combines with the existing one
// holding the same key. It returns the item to keep.
type UpsertPolicy[T Keyed] func(existing, incoming T) T

// Ignore keeps the existing item untouched.
func Ignore[T Keyed]() UpsertPolicy[T] {
	return func(existing, _ T) T { return existing }
}

// Replace keeps the incoming item.
func Replace[T Keyed]() UpsertPolicy[T] {
	return func(_, incoming T) T { return incoming }
}

// Observer is notified with a copy of the items after every call that
// changed the collection. Calls on absent keys notify nobody.
type Observer[T Keyed] func(items []T)

// Collection holds at most one item per key, in insertion order.
// It is safe for concurrent use.
type Collection[T Keyed] struct {
	mu        sync.Mutex
	items     []T
	policy    UpsertPolicy[T]
	observers []Observer[T]
}

// New builds a collection seeded with initial. Duplicate keys in initial are
// folded with policy so the one-item-per-key invariant holds from the start.
func New[T Keyed](policy UpsertPolicy[T], initial []T) *Collection[T] {
	c := &Collection[T]{policy: policy}
	for _, item := range initial {
		c.upsertLocked(item)
	}
	return c
}

// Observe registers fn to run after every mutation.
func (c *Collection[T]) Observe(fn Observer[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Upsert inserts item, or folds it into the existing entry using the policy.
// It reports whether the key was already present.
func (c *Collection[T]) Upsert(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	existed := c.upsertLocked(item)
	c.notifyLocked()
	return existed
}

// Update applies fn to the item stored under key. If fn returns false the
// item is removed. Unknown keys are a no-op.
func (c *Collection[T]) Update(key int64, fn func(item *T) (keep bool)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(key)
	if i < 0 {
		return false
	}
	if !fn(&c.items[i]) {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
	c.notifyLocked()
	return true
}

// Remove deletes the item with key. Absent keys are a no-op.
func (c *Collection[T]) Remove(key int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(key)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.notifyLocked()
	return true
}

// Clear empties the collection.
func (c *Collection[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	c.notifyLocked()
}

// Contains reports whether key is present.
func (c *Collection[T]) Contains(key int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexLocked(key) >= 0
}

// Get returns the item stored under key.
func (c *Collection[T]) Get(key int64) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	i := c.indexLocked(key)
	if i < 0 {
		return zero, false
	}
	return c.items[i], true
}

// Items returns a copy of the items in insertion order. Never nil.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Len returns the number of items.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Collection[T]) upsertLocked(item T) bool {
	if i := c.indexLocked(item.Key()); i >= 0 {
		c.items[i] = c.policy(c.items[i], item)
		return true
	}
	c.items = append(c.items, item)
	return false
}

func (c *Collection[T]) indexLocked(key int64) int {
	for i := range c.items {
		if c.items[i].Key() == key {
			return i
		}
	}
	return -1
}

func (c *Collection[T]) snapshotLocked() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection[T]) notifyLocked() {
	if len(c.observers) == 0 {
		return
	}
	snapshot := c.snapshotLocked()
	for _, fn := range c.observers {
		fn(snapshot)
	}
}
