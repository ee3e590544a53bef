package listkit

import "time"

// Config constructs a ListView. Zero fields get defaults from withDefaults.
type Config struct {
	// Size is the visible viewport size.
	Size Size
	// Insets reserve space at the viewport edges.
	Insets Insets
	// InvisibleInset is how far beyond the viewport nodes are preloaded.
	InvisibleInset float64
	// StackFromBottom anchors short content to the bottom edge.
	StackFromBottom bool
	// Overscroll is the maximum excursion beyond the snapped bounds.
	Overscroll float64
	// Spring tunes the overscroll bounce.
	Spring SpringConfig
	// ScrollFrequency and ScrollDamping parameterize the animated
	// scroll-to-item spring.
	ScrollFrequency float64
	ScrollDamping   float64
	// AverageItemHeight feeds the indicator heuristic while the list
	// extent is only partially known.
	AverageItemHeight float64
	// MinIndicatorHeight floors the synthesized scroll thumb.
	MinIndicatorHeight float64
	// InsertDuration is the default length of insert/remove transitions.
	InsertDuration time.Duration
	// ReadyDeadline bounds the synchronous-resource-loading gate.
	ReadyDeadline time.Duration
	// TickInterval is the animation tick cadence.
	TickInterval time.Duration
	// ManualTick disables the self-running ticker; the host calls Step.
	ManualTick bool
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
}

func (c *Config) withDefaults() {
	if c.Overscroll == 0 {
		c.Overscroll = 60
	}
	if c.Spring == (SpringConfig{}) {
		c.Spring = DefaultSpringConfig
	}
	if c.ScrollFrequency == 0 {
		c.ScrollFrequency = 7.0
	}
	if c.ScrollDamping == 0 {
		c.ScrollDamping = 0.9
	}
	if c.AverageItemHeight == 0 {
		c.AverageItemHeight = 44
	}
	if c.MinIndicatorHeight == 0 {
		c.MinIndicatorHeight = 24
	}
	if c.InsertDuration == 0 {
		c.InsertDuration = defaultInsertDuration
	}
	if c.ReadyDeadline == 0 {
		c.ReadyDeadline = 500 * time.Millisecond
	}
	if c.TickInterval == 0 {
		c.TickInterval = time.Second / 60
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// ListView owns the logical item list and the recycled node pool. All
// mutation is transaction-mediated; nothing external touches the pool
// directly. Queries are owner-context reads.
type ListView struct {
	d     Dispatcher
	cfg   Config
	clock func() time.Time

	items   []Item
	arena   *NodeArena
	records []NodeRecord

	queue *transactionQueue
	tick  *tickDriver

	size            Size
	insets          Insets
	stackFromBottom bool

	header             NodeHandle
	overscrollBackdrop Rect
	indicator          ScrollIndicator
	indicatorVisible   bool

	bounce       bounceState
	scrollAnim   *scrollAnimation
	reorderCheck func(now time.Time) bool

	visibleOffset   float64
	loaded, visible Range

	rangeListeners  []func(loaded, visible Range)
	offsetListeners []func(offset float64)
}

// New creates a ListView bound to the given owner context.
func New(d Dispatcher, cfg Config) *ListView {
	cfg.withDefaults()
	lv := &ListView{
		d:               d,
		cfg:             cfg,
		clock:           cfg.Clock,
		arena:           NewNodeArena(64),
		queue:           newTransactionQueue(d),
		size:            cfg.Size,
		insets:          cfg.Insets,
		stackFromBottom: cfg.StackFromBottom,
		loaded:          EmptyRange,
		visible:         EmptyRange,
	}
	lv.tick = &tickDriver{lv: lv}
	return lv
}

// Transaction is the sole mutation entry point. A transaction that would be
// a no-op patch short-circuits synchronously without entering the queue;
// everything else is strictly serialized: a transaction's completion fires
// before the next queued transaction's body begins.
func (lv *ListView) Transaction(tx Transaction) {
	if tx.empty() {
		if tx.Completion != nil {
			tx.Completion(lv.loaded, lv.visible, tx.Opaque)
		}
		return
	}
	lv.queue.enqueue(func(done func()) {
		rc := &reconciliation{lv: lv, tx: &tx, done: done}
		rc.run()
	})
}

// snapshotState builds the per-transaction working state from the live
// pool, syncing record frames from their nodes.
func (lv *ListView) snapshotState() ListViewState {
	st := ListViewState{
		VisibleSize:     lv.size,
		Insets:          lv.insets,
		InvisibleInset:  lv.cfg.InvisibleInset,
		StationaryIndex: -1,
		StackFromBottom: lv.stackFromBottom,
	}
	st.Records = make([]NodeRecord, len(lv.records))
	for i, rec := range lv.records {
		if node := lv.arena.Get(rec.Handle); node != nil {
			rec.Frame = node.Frame
		}
		st.Records[i] = rec
	}
	return st
}

// liveState views the live pool as a state value for shared helpers.
func (lv *ListView) liveState() *ListViewState {
	return &ListViewState{
		VisibleSize:     lv.size,
		Insets:          lv.insets,
		Records:         lv.records,
		StackFromBottom: lv.stackFromBottom,
	}
}

func (lv *ListView) visibleRangeLocked() Range {
	out := EmptyRange
	for _, rec := range lv.records {
		if rec.Index < 0 {
			continue
		}
		if rec.Frame.MaxY() <= 0 || rec.Frame.Y >= lv.size.Height {
			continue
		}
		if out.Empty() {
			out = Range{First: rec.Index, Last: rec.Index}
			continue
		}
		if rec.Index < out.First {
			out.First = rec.Index
		}
		if rec.Index > out.Last {
			out.Last = rec.Index
		}
	}
	return out
}

// --- Queries ---

// ItemCount returns the logical item count.
func (lv *ListView) ItemCount() int { return len(lv.items) }

// NodeAt returns the node bound to index, or nil when it is not
// materialized. Owner-context read.
func (lv *ListView) NodeAt(index int) *Node {
	for _, rec := range lv.records {
		if rec.Index == index {
			return lv.arena.Get(rec.Handle)
		}
	}
	return nil
}

// LoadedRange is the bound index range after the last settled transaction.
func (lv *ListView) LoadedRange() Range { return lv.loaded }

// VisibleRange is the on-screen index range after the last settled
// transaction or scroll.
func (lv *ListView) VisibleRange() Range { return lv.visible }

// VisibleOffset is the accumulated scroll offset.
func (lv *ListView) VisibleOffset() float64 { return lv.visibleOffset }

// Records returns a copy of the live pool for renderers.
func (lv *ListView) Records() []NodeRecord {
	return append([]NodeRecord(nil), lv.records...)
}

// NodeFor resolves a record to its node, including unbound ghosts that a
// renderer still needs to draw. Owner-context read.
func (lv *ListView) NodeFor(rec NodeRecord) *Node {
	return lv.arena.Get(rec.Handle)
}

// OverscrollBackdrop is the frame of the region the stack does not cover.
func (lv *ListView) OverscrollBackdrop() Rect { return lv.overscrollBackdrop }

// --- Header ---

// SetHeader materializes a header node via configure, replacing any
// previous header. Pass nil to remove it.
func (lv *ListView) SetHeader(configure func(*Node)) {
	lv.d.Async(func() {
		if !lv.header.IsNil() {
			lv.arena.Release(lv.header)
			lv.header = NilHandle
		}
		if configure == nil {
			return
		}
		h, node := lv.arena.Alloc()
		configure(node)
		lv.header = h
		lv.layoutHeader()
	})
}

// HeaderNode returns the current header node, if any.
func (lv *ListView) HeaderNode() *Node { return lv.arena.Get(lv.header) }

// --- Accessories ---

// AttachAccessory materializes an accessory sub-node on the node bound to
// index, replacing any existing one. The key is the comparable identity a
// neighbor must declare to adopt the accessory when this node is removed.
// Owner-context call; a no-op when the index is not materialized.
func (lv *ListView) AttachAccessory(index int, key any, configure func(*Node)) {
	lv.d.Async(func() {
		node := lv.NodeAt(index)
		if node == nil {
			return
		}
		if !node.Accessory.IsNil() {
			lv.arena.Release(node.Accessory)
			node.Accessory = NilHandle
		}
		node.AccessoryKey = key
		if configure == nil {
			return
		}
		h, acc := lv.arena.Alloc()
		configure(acc)
		node.Accessory = h
	})
}

// AccessoryNode returns the accessory attached to index's node, if any.
func (lv *ListView) AccessoryNode(index int) *Node {
	node := lv.NodeAt(index)
	if node == nil {
		return nil
	}
	return lv.arena.Get(node.Accessory)
}

// --- Listeners ---

// OnRangeChanged registers a listener fired with (loaded, visible) after
// every settled transaction. Returns an unsubscribe func.
func (lv *ListView) OnRangeChanged(fn func(loaded, visible Range)) func() {
	lv.rangeListeners = append(lv.rangeListeners, fn)
	idx := len(lv.rangeListeners) - 1
	return func() {
		// Zero out to allow GC, don't reorder.
		lv.rangeListeners[idx] = nil
	}
}

// OnVisibleOffset registers a continuous scroll-offset listener. Returns an
// unsubscribe func.
func (lv *ListView) OnVisibleOffset(fn func(offset float64)) func() {
	lv.offsetListeners = append(lv.offsetListeners, fn)
	idx := len(lv.offsetListeners) - 1
	return func() {
		lv.offsetListeners[idx] = nil
	}
}
