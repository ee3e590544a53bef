package listkit

import "fmt"

// DebugChecks enables internal invariant verification after each replay
// step. Leave off in production builds; violations panic.
var DebugChecks bool

// NodeRecord binds a position in the visual stack to either a materialized
// node (Index >= 0) or a frame reservation. A placeholder may still carry a
// handle while a departed node's remnant animates out; a pure reservation
// carries the nil handle.
type NodeRecord struct {
	Index  int
	Frame  Rect
	Handle NodeHandle
}

// Placeholder reports whether the record is not bound to a logical index.
func (r NodeRecord) Placeholder() bool { return r.Index < 0 }

// ListViewState is the per-transaction working snapshot: a value the
// reconciliation engine mutates freely and discards after replay. It never
// aliases live pool storage.
type ListViewState struct {
	VisibleSize     Size
	Insets          Insets
	InvisibleInset  float64
	Records         []NodeRecord
	ScrollTarget    *ScrollTarget
	StationaryIndex int // -1 when absent
	StationaryY     float64
	StackFromBottom bool
}

// clone deep-copies the record slice so the working state can be mutated
// without touching the snapshot source.
func (s ListViewState) clone() ListViewState {
	s.Records = append([]NodeRecord(nil), s.Records...)
	return s
}

// insertRecord places rec so that bound indices stay ascending. Placeholders
// keep their position by frame order.
func (s *ListViewState) insertRecord(rec NodeRecord) int {
	pos := len(s.Records)
	for i, r := range s.Records {
		if rec.Index >= 0 && r.Index >= 0 && r.Index > rec.Index {
			pos = i
			break
		}
		if rec.Index >= 0 && r.Index < 0 && r.Frame.Y > rec.Frame.Y {
			pos = i
			break
		}
		if rec.Index < 0 && r.Frame.Y > rec.Frame.Y {
			pos = i
			break
		}
	}
	s.Records = append(s.Records, NodeRecord{})
	copy(s.Records[pos+1:], s.Records[pos:])
	s.Records[pos] = rec
	return pos
}

// recordAt returns the position of the record bound to index, or -1.
func (s *ListViewState) recordAt(index int) int {
	for i, r := range s.Records {
		if r.Index == index {
			return i
		}
	}
	return -1
}

// boundRange returns the lowest and highest bound indices, or an empty
// range when nothing is bound.
func (s *ListViewState) boundRange() Range {
	out := EmptyRange
	for _, r := range s.Records {
		if r.Index < 0 {
			continue
		}
		if out.Empty() {
			out = Range{First: r.Index, Last: r.Index}
			continue
		}
		if r.Index < out.First {
			out.First = r.Index
		}
		if r.Index > out.Last {
			out.Last = r.Index
		}
	}
	return out
}

// checkMonotonic panics if record frames regress along the scroll axis.
// Only called when DebugChecks is on.
func (s *ListViewState) checkMonotonic(stage string) {
	if !DebugChecks {
		return
	}
	const slack = 1e-6
	for i := 1; i < len(s.Records); i++ {
		if s.Records[i].Frame.Y < s.Records[i-1].Frame.Y-slack {
			panic(fmt.Sprintf("listkit: frame order violated at %s: record %d y=%.2f follows y=%.2f",
				stage, i, s.Records[i].Frame.Y, s.Records[i-1].Frame.Y))
		}
	}
}

// --- Transaction inputs ---

// Direction is the visual skew hint for inserted or removed content.
type Direction int8

const (
	// DirectionDown grows or collapses content toward the bottom.
	DirectionDown Direction = iota
	// DirectionUp grows or collapses content toward the top.
	DirectionUp
)

// DeleteItem removes the item at Index. Direction, when set, hints which
// way the removed content should visually collapse.
type DeleteItem struct {
	Index     int
	Direction *Direction
}

// InsertItem places Item at Index. PreviousIndex, when >= 0, names an index
// whose existing node may be reused across the replace (morph).
type InsertItem struct {
	Index         int
	Item          Item
	PreviousIndex int
}

// UpdateItem replaces the item at Index in place. PreviousIndex hints where
// the node currently bound to the content lives; usually equal to Index.
type UpdateItem struct {
	Index         int
	Item          Item
	PreviousIndex int
}

// ScrollAlignment positions a target item within the viewport.
type ScrollAlignment uint8

const (
	// AlignTop pins the item's top edge to the top content inset.
	AlignTop ScrollAlignment = iota
	// AlignBottom pins the item's bottom edge to the bottom content inset.
	AlignBottom
	// AlignCenter centers the item; overflow falls back to AlignTop (or
	// AlignBottom when stacking from bottom).
	AlignCenter
	// AlignVisible scrolls the minimum distance that makes the item fully
	// visible; a no-op when it already is.
	AlignVisible
)

// ScrollTarget requests a post-replay scroll to an item.
type ScrollTarget struct {
	Index     int
	Alignment ScrollAlignment
	Animated  bool
}

// Options are per-transaction behavior flags.
type Options uint8

const (
	// OptionAnimateInsertion animates inserted nodes (grow + slide).
	OptionAnimateInsertion Options = 1 << iota
	// OptionAnimateAlpha crossfades node content during updates.
	OptionAnimateAlpha
	// OptionAnimateCrossfade crossfades replaced nodes.
	OptionAnimateCrossfade
	// OptionLowLatency skips the frame-sync delay before replay.
	OptionLowLatency
	// OptionSynchronous forces materialization onto the calling context.
	OptionSynchronous
	// OptionPreferSynchronousLoad gates replay on item readiness, bounded
	// by Config.ReadyDeadline.
	OptionPreferSynchronousLoad
)

// Has reports whether all bits in flag are set.
func (o Options) Has(flag Options) bool { return o&flag == flag }

// Resize carries a viewport size/inset change into a transaction.
type Resize struct {
	Size   Size
	Insets Insets
}

// Transaction is the sole mutation entry point's payload. Deletes refer to
// pre-transaction indices; Inserts and Updates to post-transaction indices.
type Transaction struct {
	Deletes []DeleteItem
	Inserts []InsertItem
	Updates []UpdateItem
	Options Options

	ScrollTo           *ScrollTarget
	AdditionalDistance float64
	Resize             *Resize
	// Stationary, when set, names a pre-transaction index whose frame must
	// stay fixed across the transaction.
	Stationary *int
	// Opaque rides along untouched and is handed back to Completion.
	Opaque any

	Completion func(loaded, visible Range, opaque any)
}

// empty reports whether the transaction would be a no-op patch.
func (t *Transaction) empty() bool {
	return len(t.Deletes) == 0 && len(t.Inserts) == 0 && len(t.Updates) == 0 &&
		t.ScrollTo == nil && t.Resize == nil && t.Stationary == nil &&
		t.AdditionalDistance == 0
}

// --- Operations ---

// OperationKind tags the primitive patch operations emitted by the
// reconciliation engine.
type OperationKind uint8

const (
	// OpInsertNode splices a materialized node into the live pool.
	OpInsertNode OperationKind = iota
	// OpInsertPlaceholder re-inserts a removed node's remnant as a ghost.
	OpInsertPlaceholder
	// OpRemap rewrites bound indices of live nodes; no layout effect.
	OpRemap
	// OpRemove detaches a node and closes the gap it leaves.
	OpRemove
	// OpUpdateLayout applies a new layout to a bound node.
	OpUpdateLayout
)

func (k OperationKind) String() string {
	switch k {
	case OpInsertNode:
		return "insert"
	case OpInsertPlaceholder:
		return "placeholder"
	case OpRemap:
		return "remap"
	case OpRemove:
		return "remove"
	case OpUpdateLayout:
		return "update"
	}
	return "unknown"
}

// Operation is one primitive patch step. Ordering matters: remaps must be
// applied before later index lookups, and inserts/removes interleave with
// offset adjustments that preserve frame monotonicity.
type Operation struct {
	Kind      OperationKind
	Index     int
	Direction Direction
	Animated  bool

	// Handle is the materialized node for OpInsertNode and the target for
	// OpUpdateLayout; Reference is the departed node for OpInsertPlaceholder.
	Handle    NodeHandle
	Reference NodeHandle

	Layout NodeLayout
	// Apply runs on the owner context; it is where the item commits
	// content and where index bindings flip.
	Apply func()
	// Mapping is the old->new index map for OpRemap.
	Mapping map[int]int
}
