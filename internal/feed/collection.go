package feed

import (
	"slices"
	"sync"
)

// Change is what a Collection reports to its subscribers.
type Change[T any] struct {
	Action Action
	Old    []T
	New    []T
}

// Collection is an observable, ordered list of scene items.
//
// Subscribers are called synchronously, in subscription order, while the
// collection lock is held, so notifications arrive in mutation order even
// with concurrent writers. Handlers must not mutate the collection; the
// adapter's handlers only enqueue an event.
//
// Thread-safety: Collection is safe for concurrent use.
type Collection[T any] struct {
	mu      sync.Mutex
	items   []T
	subs    map[int]func(Change[T])
	order   []int
	nextSub int
}

// NewCollection creates a collection holding items.
func NewCollection[T any](items ...T) *Collection[T] {
	return &Collection[T]{
		items: slices.Clone(items),
		subs:  make(map[int]func(Change[T])),
	}
}

// subscribe registers fn and returns the function that unregisters it.
// Unsubscribing twice is harmless.
func (c *Collection[T]) subscribe(fn func(Change[T])) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribeLocked(fn)
}

// Watch is subscribe preceded by an ActionAdd change carrying the current
// items. Both happen under one lock hold, so no change can slip in between
// the snapshot and the subscription. An empty collection sends no initial
// change.
func (c *Collection[T]) Watch(fn func(Change[T])) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) > 0 {
		fn(Change[T]{Action: ActionAdd, New: slices.Clone(c.items)})
	}
	return c.subscribeLocked(fn)
}

// subscribeLocked registers fn. Caller must hold c.mu.
func (c *Collection[T]) subscribeLocked(fn func(Change[T])) func() {
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.order = append(c.order, id)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
		c.order = slices.DeleteFunc(c.order, func(s int) bool { return s == id })
	}
}

// Subscribers returns the number of live subscriptions.
func (c *Collection[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Items returns a copy of the current items.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// Len returns the number of items.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Add appends items and notifies ActionAdd.
func (c *Collection[T]) Add(items ...T) {
	if len(items) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, items...)
	c.notify(Change[T]{Action: ActionAdd, New: slices.Clone(items)})
}

// RemoveFunc removes every item for which match returns true and notifies
// ActionRemove with the removed items. Returns how many were removed.
func (c *Collection[T]) RemoveFunc(match func(T) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed []T
	c.items = slices.DeleteFunc(c.items, func(item T) bool {
		if match(item) {
			removed = append(removed, item)
			return true
		}
		return false
	})
	if len(removed) > 0 {
		c.notify(Change[T]{Action: ActionRemove, Old: removed})
	}
	return len(removed)
}

// Replace swaps the first item for which match returns true with item and
// notifies ActionReplace. Returns false when nothing matched.
func (c *Collection[T]) Replace(match func(T) bool, item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.items, match)
	if i < 0 {
		return false
	}
	old := c.items[i]
	c.items[i] = item
	c.notify(Change[T]{Action: ActionReplace, Old: []T{old}, New: []T{item}})
	return true
}

// Clear removes every item and notifies ActionReset.
func (c *Collection[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.notify(Change[T]{Action: ActionReset})
}

// Patch rewrites every item for which match returns true, without notifying
// subscribers. It mirrors a change that was already applied to the engine.
// Returns how many items were rewritten.
func (c *Collection[T]) Patch(match func(T) bool, update func(T) T) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i, item := range c.items {
		if match(item) {
			c.items[i] = update(item)
			n++
		}
	}
	return n
}

// notify calls every subscriber. Caller must hold c.mu.
func (c *Collection[T]) notify(ch Change[T]) {
	for _, id := range c.order {
		c.subs[id](ch)
	}
}
