// Package cache implements the fixed-capacity, write-back L1 cache (C4)
// sitting in front of main/secondary memory. Eviction uses least-recently
// used ordering; evicting a dirty entry writes it back through a sink
// supplied by the caller, so the cache never holds a pointer back to its
// owning memory manager.
package cache

import (
	"container/list"

	"github.com/JoaquimCruz/Multicore-simulator/internal/trace"
)

// WritebackSink receives the value of a dirty entry being evicted, so it
// can be persisted to whichever backing store physAddr belongs to. The MMU
// passes its own Writeback method as this sink; re-entering the MMU's lock
// from inside a cache call is expected and supported (see internal/mmu).
type WritebackSink func(physAddr uint32, value int32)

// DefaultCapacity is the fixed number of entries the L1 cache holds, per
// spec.md's "e.g. 16 entries" default.
const DefaultCapacity = 16

type entry struct {
	addr  uint32
	value int32
	dirty bool
}

// Cache is a small associative map from physical byte address to value,
// with LRU eviction and a write-back dirty bit per entry.
type Cache struct {
	*trace.Base

	capacity int
	order    *list.List               // front = most recently used
	index    map[uint32]*list.Element // addr -> element holding *entry
}

// New creates an empty Cache with the given capacity. A capacity <= 0 falls
// back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Cache{
		Base:     trace.NewBase("l1-cache"),
		capacity: capacity,
		order:    list.New(),
		index:    make(map[uint32]*list.Element),
	}
}

// Lookup returns the cached value for physAddr and true on a hit. On a
// hit, the entry is promoted to most-recently-used. A miss returns
// (0, false) and leaves the cache untouched.
func (c *Cache) Lookup(physAddr uint32) (int32, bool) {
	elem, ok := c.index[physAddr]
	if !ok {
		c.InvokeHook(physAddr, trace.CacheMiss, nil)
		return 0, false
	}

	c.order.MoveToFront(elem)
	c.InvokeHook(physAddr, trace.CacheHit, nil)

	return elem.Value.(*entry).value, true
}

// Insert places a fresh, clean value into the cache for physAddr,
// evicting the LRU entry (writing it back through sink first if dirty) if
// the cache is already full. Used on a read miss, after the value has been
// fetched from the backing store.
func (c *Cache) Insert(physAddr uint32, value int32, sink WritebackSink) {
	if elem, ok := c.index[physAddr]; ok {
		elem.Value.(*entry).value = value
		elem.Value.(*entry).dirty = false
		c.order.MoveToFront(elem)
		return
	}

	c.evictIfFull(sink)

	e := &entry{addr: physAddr, value: value, dirty: false}
	elem := c.order.PushFront(e)
	c.index[physAddr] = elem
}

// Update writes value into an existing entry and marks it dirty. Used on a
// write hit. If the address is not cached, Update inserts it as a fresh
// dirty entry instead (the write-flow in internal/mmu only calls Update
// when it already confirmed a hit via Lookup).
func (c *Cache) Update(physAddr uint32, value int32, sink WritebackSink) {
	if elem, ok := c.index[physAddr]; ok {
		elem.Value.(*entry).value = value
		elem.Value.(*entry).dirty = true
		c.order.MoveToFront(elem)
		return
	}

	c.evictIfFull(sink)

	e := &entry{addr: physAddr, value: value, dirty: true}
	elem := c.order.PushFront(e)
	c.index[physAddr] = elem
}

// Remove drops physAddr from the cache without writing it back,
// regardless of its dirty bit. Not required by the invariants, but exposed
// for callers (e.g. swap-out) that already relocated the backing data and
// want a consistent cache.
func (c *Cache) Remove(physAddr uint32) {
	elem, ok := c.index[physAddr]
	if !ok {
		return
	}
	c.order.Remove(elem)
	delete(c.index, physAddr)
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	return c.order.Len()
}

func (c *Cache) evictIfFull(sink WritebackSink) {
	if c.order.Len() < c.capacity {
		return
	}

	lru := c.order.Back()
	if lru == nil {
		return
	}

	victim := lru.Value.(*entry)
	if victim.dirty && sink != nil {
		sink(victim.addr, victim.value)
	}

	c.order.Remove(lru)
	delete(c.index, victim.addr)

	c.InvokeHook(victim.addr, trace.CacheEvict, victim.dirty)
}
