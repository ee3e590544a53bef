package listkit

import "fmt"

// Arena-backed node pool with handle indirection.
// Nodes are referenced by index + generation so a handle held across a
// release cannot resurrect a recycled slot.

// NodeHandle identifies a node in a NodeArena. The zero handle is nil.
type NodeHandle struct {
	index int32
	gen   uint32
}

// NilHandle is the zero handle; it never resolves to a node.
var NilHandle = NodeHandle{}

// IsNil reports whether the handle is the nil handle.
func (h NodeHandle) IsNil() bool {
	return h.gen == 0
}

// String implements fmt.Stringer for debug output.
func (h NodeHandle) String() string {
	if h.IsNil() {
		return "node(nil)"
	}
	return fmt.Sprintf("node(%d@%d)", h.index, h.gen)
}

type nodeSlot struct {
	gen  uint32
	live bool
	node Node
}

// NodeArena owns the backing storage for all nodes in a list view.
// Slots are recycled through a free list; generations start at 1 so the
// zero NodeHandle is always invalid.
type NodeArena struct {
	slots []nodeSlot
	free  []int32
	count int
}

// NewNodeArena creates an arena with pre-allocated capacity.
func NewNodeArena(capacity int) *NodeArena {
	return &NodeArena{
		slots: make([]nodeSlot, 0, capacity),
		free:  make([]int32, 0, capacity),
	}
}

// Alloc reserves a slot and returns its handle and node.
// The node is reset to the unbound state.
func (a *NodeArena) Alloc() (NodeHandle, *Node) {
	var idx int32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = int32(len(a.slots))
		a.slots = append(a.slots, nodeSlot{})
	}
	slot := &a.slots[idx]
	slot.gen++
	slot.live = true
	slot.node.reset()
	a.count++
	return NodeHandle{index: idx, gen: slot.gen}, &slot.node
}

// Get resolves a handle, returning nil for the nil handle and for handles
// whose slot has since been released.
func (a *NodeArena) Get(h NodeHandle) *Node {
	if h.IsNil() || int(h.index) >= len(a.slots) {
		return nil
	}
	slot := &a.slots[h.index]
	if !slot.live || slot.gen != h.gen {
		return nil
	}
	return &slot.node
}

// Release returns a slot to the free list. Releasing a stale or nil handle
// is a no-op.
func (a *NodeArena) Release(h NodeHandle) {
	n := a.Get(h)
	if n == nil {
		return
	}
	slot := &a.slots[h.index]
	slot.live = false
	a.free = append(a.free, h.index)
	a.count--
}

// Len returns the number of live nodes.
func (a *NodeArena) Len() int {
	return a.count
}

// Each visits every live node.
func (a *NodeArena) Each(fn func(h NodeHandle, n *Node)) {
	for i := range a.slots {
		slot := &a.slots[i]
		if slot.live {
			fn(NodeHandle{index: int32(i), gen: slot.gen}, &slot.node)
		}
	}
}
