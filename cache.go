package rtreedb

import "github.com/jakubkucera/rtreedb/internal/fastmap"

// variableSlot backing a direct-mapped region entry.
type variableSlot struct {
	id   int64
	node *node
	used bool
}

// nodeCache is a two-tier node cache. The permanent region holds the
// root and its immediate children and is never evicted: a slot, once
// claimed by an id, keeps that id, and a colliding id is cached in the
// variable region instead. The variable region is a bounded, best-effort
// cache that may silently replace a colliding entry. Cached values are
// owned copies (see node.clone), cloned on put and again on get, never
// aliases into a caller's working set.
type nodeCache struct {
	permanent     []variableSlot
	permanentSize int

	direct   []variableSlot // used when capacity is small
	fast     *fastmap.Map[*node]
	capacity int
}

// newNodeCache builds a cache sized for fan-out fanOut and a variable-
// region byte budget of cacheBudget bytes at pageSize bytes per node.
func newNodeCache(fanOut, pageSize, cacheBudget int) *nodeCache {
	permSize := fanOut + 1
	capacity := cacheBudget / pageSize
	if capacity < 1 {
		capacity = 1
	}

	c := &nodeCache{
		permanent:     make([]variableSlot, permSize),
		permanentSize: permSize,
		capacity:      capacity,
	}
	if capacity > fastmapThreshold {
		c.fast = &fastmap.Map[*node]{}
	} else {
		c.direct = make([]variableSlot, capacity)
	}
	return c
}

// get looks up id. permanent signals that the caller knows this lookup
// is likely near the top of the tree (the engine passes true for the
// root and its children).
func (c *nodeCache) get(id int64, permanent bool) *node {
	if permanent {
		slot := &c.permanent[id%int64(c.permanentSize)]
		if slot.used && slot.id == id {
			return slot.node.clone()
		}
	}
	if c.fast != nil {
		if n, ok := c.fast.Get(uint64(id)); ok {
			return n.clone()
		}
		return nil
	}
	idx := id % int64(c.capacity)
	if idx < 0 {
		idx += int64(c.capacity)
	}
	slot := &c.direct[idx]
	if slot.used && slot.id == id {
		return slot.node.clone()
	}
	return nil
}

// put writes n into the cache, storing an owned clone. The variable
// region is always written. The permanent slot is written when it
// already holds id, or when permanent is set and the slot is still free;
// a slot held by another id is never replaced.
func (c *nodeCache) put(id int64, n *node, permanent bool) {
	stored := n.clone()
	slot := &c.permanent[id%int64(c.permanentSize)]
	if (slot.used && slot.id == id) || (permanent && !slot.used) {
		slot.id = id
		slot.node = stored
		slot.used = true
	}
	if c.fast != nil {
		c.fast.Set(uint64(id), stored)
		return
	}
	idx := id % int64(c.capacity)
	if idx < 0 {
		idx += int64(c.capacity)
	}
	slot := &c.direct[idx]
	slot.id = id
	slot.node = stored
	slot.used = true
}
