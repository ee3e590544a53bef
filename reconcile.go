package listkit

import (
	"fmt"
	"sort"
	"time"
)

// reconciliation is the working context of one transaction: the mutable
// state snapshot, the operation log under construction, and the resumption
// point for asynchronous materialization. It lives entirely on the owner
// context; only materialization compute may leave it.
type reconciliation struct {
	lv *ListView
	tx *Transaction
	st ListViewState

	ops []Operation

	// previousNodes maps pre-transaction indices named by insert/update
	// hints to the node currently bound there, offered for reuse.
	previousNodes map[int]NodeHandle
	claimed       map[NodeHandle]bool
	// floating holds claimed handles whose record was dropped by a delete;
	// any not consumed by a materialization must be released before replay.
	floating map[NodeHandle]bool

	// scroll marks a scroll pass: replay resolves out-of-bounds movement
	// through the bounce spring instead of an instant snap.
	scroll bool

	// explicitInserts holds post-transaction indices inserted by this
	// transaction; they animate and take precedence over adjacency.
	explicitInserts map[int]struct{}

	updates  []UpdateItem
	adjacent []int

	anchorHandle NodeHandle
	anchorY      float64
	widthChanged bool

	readyGates []<-chan struct{}

	phase     int
	suspended bool
	done      func()
}

const (
	phaseFill = iota
	phaseUpdates
	phaseAdjacent
	phaseReplay
	phaseDone
)

// run executes the transaction body. Must be entered on the owner context.
func (rc *reconciliation) run() {
	rc.prepare()
	rc.pump()
}

// pump is the single resumption point. Synchronous materialization keeps
// the loop iterating; asynchronous completion re-enters pump via the owner
// context, so the call stack never grows with the number of items.
func (rc *reconciliation) pump() {
	for {
		switch rc.phase {
		case phaseFill:
			progressed, waiting := rc.stepFill()
			if waiting {
				return
			}
			if !progressed {
				rc.phase = phaseUpdates
			}
		case phaseUpdates:
			progressed, waiting := rc.stepUpdate()
			if waiting {
				return
			}
			if !progressed {
				rc.phase = phaseAdjacent
			}
		case phaseAdjacent:
			progressed, waiting := rc.stepAdjacent()
			if waiting {
				return
			}
			if !progressed {
				rc.stripCollapsed()
				rc.releaseUnclaimed()
				rc.phase = phaseReplay
			}
		case phaseReplay:
			rc.phase = phaseDone
			rc.gateAndReplay()
			return
		default:
			return
		}
	}
}

// prepare runs the synchronous head of the algorithm: list mutation, remap
// computation, adjacency marking and anchor capture.
func (rc *reconciliation) prepare() {
	lv := rc.lv
	tx := rc.tx

	rc.st = lv.snapshotState()
	rc.previousNodes = map[int]NodeHandle{}
	rc.claimed = map[NodeHandle]bool{}
	rc.floating = map[NodeHandle]bool{}
	rc.explicitInserts = map[int]struct{}{}

	if tx.Resize != nil {
		rc.widthChanged = tx.Resize.Size.Width != rc.st.VisibleSize.Width
		rc.st.VisibleSize = tx.Resize.Size
		rc.st.Insets = tx.Resize.Insets
	}

	// Stationary anchor is captured against pre-transaction indices, and
	// tracked by handle so remaps cannot lose it.
	rc.st.StationaryIndex = -1
	if tx.Stationary != nil {
		if pos := rc.st.recordAt(*tx.Stationary); pos >= 0 {
			rec := rc.st.Records[pos]
			rc.anchorHandle = rec.Handle
			rc.anchorY = rec.Frame.Y
			rc.st.StationaryIndex = *tx.Stationary
			rc.st.StationaryY = rec.Frame.Y
		}
	}

	// Reuse hints refer to pre-delete indices; resolve them before any
	// record is dropped.
	for _, ins := range tx.Inserts {
		rc.offerPrevious(ins.PreviousIndex)
	}
	for _, upd := range tx.Updates {
		rc.offerPrevious(upd.PreviousIndex)
	}

	deleted := rc.applyDeletes()
	insertShift := rc.applyInserts(deleted)
	rc.dropDeletedRecords(deleted)
	rc.remapRecords(deleted, insertShift)
	rc.markAdjacent(deleted, insertShift)

	rc.st.ScrollTarget = tx.ScrollTo
	if tx.ScrollTo != nil {
		rc.prepareScrollTarget()
	}

	rc.updates = append([]UpdateItem(nil), tx.Updates...)
	sort.Slice(rc.updates, func(i, j int) bool { return rc.updates[i].Index < rc.updates[j].Index })
}

func (rc *reconciliation) offerPrevious(prevIndex int) {
	if prevIndex < 0 {
		return
	}
	if _, taken := rc.previousNodes[prevIndex]; taken {
		return
	}
	if pos := rc.st.recordAt(prevIndex); pos >= 0 && !rc.st.Records[pos].Handle.IsNil() {
		h := rc.st.Records[pos].Handle
		rc.previousNodes[prevIndex] = h
		rc.claimed[h] = true
	}
}

// applyDeletes removes items from the logical list in descending index
// order so earlier indices stay stable, and returns the deleted index set
// with direction hints.
func (rc *reconciliation) applyDeletes() map[int]Direction {
	lv := rc.lv
	deleted := map[int]Direction{}
	dels := append([]DeleteItem(nil), rc.tx.Deletes...)
	sort.Slice(dels, func(i, j int) bool { return dels[i].Index > dels[j].Index })
	for _, d := range dels {
		if d.Index < 0 || d.Index >= len(lv.items) {
			panic(fmt.Sprintf("listkit: delete index %d out of range [0,%d)", d.Index, len(lv.items)))
		}
		dir := DirectionUp
		if d.Direction != nil {
			dir = *d.Direction
		}
		deleted[d.Index] = dir
		lv.items = append(lv.items[:d.Index], lv.items[d.Index+1:]...)
	}
	return deleted
}

// applyInserts splices items in ascending index order and returns the
// sorted post-delete insert indices used for remapping.
func (rc *reconciliation) applyInserts(deleted map[int]Direction) []int {
	lv := rc.lv
	ins := append([]InsertItem(nil), rc.tx.Inserts...)
	sort.Slice(ins, func(i, j int) bool { return ins[i].Index < ins[j].Index })
	shifts := make([]int, 0, len(ins))
	for _, in := range ins {
		if len(lv.items) == 0 && in.Index != 0 {
			panic(fmt.Sprintf("listkit: insert into empty list at index %d", in.Index))
		}
		if in.Index < 0 || in.Index > len(lv.items) {
			panic(fmt.Sprintf("listkit: insert index %d out of range [0,%d]", in.Index, len(lv.items)))
		}
		lv.items = append(lv.items[:in.Index], append([]Item{in.Item}, lv.items[in.Index:]...)...)
		shifts = append(shifts, in.Index)
		rc.explicitInserts[in.Index] = struct{}{}
	}
	return shifts
}

// dropDeletedRecords turns records bound to deleted indices into ghosts
// (animated) or removes them outright, emitting the matching operations.
func (rc *reconciliation) dropDeletedRecords(deleted map[int]Direction) {
	animated := rc.tx.Options.Has(OptionAnimateInsertion)
	out := rc.st.Records[:0]
	for _, rec := range rc.st.Records {
		dir, isDeleted := deleted[rec.Index]
		if rec.Index < 0 || !isDeleted {
			out = append(out, rec)
			continue
		}
		if rc.claimed[rec.Handle] {
			// The handle now floats: it leaves the record list here and is
			// only re-placed if the claiming insert materializes.
			rc.floating[rec.Handle] = true
			if animated {
				// The node itself morphs into an inserted item, so its
				// remnant animates out on a lightweight stand-in instead.
				standin, node := rc.lv.arena.Alloc()
				node.temporary = true
				node.Content = acquireStandin(rc.lv.arena.Get(rec.Handle))
				node.setFrame(rec.Frame)
				rc.ops = append(rc.ops, Operation{
					Kind:      OpInsertPlaceholder,
					Index:     rec.Index,
					Direction: dir,
					Reference: standin,
					Layout:    NodeLayout{Size: Size{Width: rec.Frame.Width, Height: rec.Frame.Height}},
				})
				rec.Index = -1
				rec.Handle = standin
				out = append(out, rec)
				continue
			}
			// Unanimated morph: the record vanishes here and the insert
			// re-places the reused node.
			rc.closeGap(len(out), rec, DirectionUp)
			continue
		}
		if animated {
			rc.ops = append(rc.ops, Operation{
				Kind:      OpInsertPlaceholder,
				Index:     rec.Index,
				Direction: dir,
				Reference: rec.Handle,
				Layout:    NodeLayout{Size: Size{Width: rec.Frame.Width, Height: rec.Frame.Height}},
			})
			rec.Index = -1
			out = append(out, rec)
			continue
		}
		rc.ops = append(rc.ops, Operation{Kind: OpRemove, Index: rec.Index, Direction: dir, Reference: rec.Handle})
		rc.closeGap(len(out), rec, dir)
	}
	rc.st.Records = out
	rc.st.checkMonotonic("delete")
}

// closeGap shifts records around position pos to absorb rec's frame.
// DirectionUp pulls following records up; DirectionDown pushes preceding
// records down.
func (rc *reconciliation) closeGap(pos int, rec NodeRecord, dir Direction) {
	h := rec.Frame.Height
	if dir == DirectionUp {
		for i := pos; i < len(rc.st.Records); i++ {
			rc.st.Records[i].Frame.Y -= h
		}
	} else {
		for i := 0; i < pos; i++ {
			rc.st.Records[i].Frame.Y += h
		}
	}
}

// remapRecords rewrites surviving bound indices for deletions then
// insertions and emits a single Remap operation covering both.
func (rc *reconciliation) remapRecords(deleted map[int]Direction, insertShift []int) {
	mapping := map[int]int{}
	for i := range rc.st.Records {
		old := rc.st.Records[i].Index
		if old < 0 {
			continue
		}
		idx := old
		for d := range deleted {
			if d < old {
				idx--
			}
		}
		for _, ins := range insertShift {
			if ins <= idx {
				idx++
			}
		}
		if idx != old {
			mapping[old] = idx
			rc.st.Records[i].Index = idx
		}
	}
	if len(mapping) > 0 {
		rc.ops = append(rc.ops, Operation{Kind: OpRemap, Mapping: mapping})
	}
}

// markAdjacent flags indices whose layout depends on a changed neighbor.
// A set keeps a delete and an insert at adjacent indices from queueing the
// same index twice; explicit updates and inserts take precedence.
func (rc *reconciliation) markAdjacent(deleted map[int]Direction, insertShift []int) {
	set := map[int]struct{}{}
	add := func(idx int) {
		if idx < 0 || idx >= len(rc.lv.items) {
			return
		}
		if _, ok := rc.explicitInserts[idx]; ok {
			return
		}
		for _, u := range rc.tx.Updates {
			if u.Index == idx {
				return
			}
		}
		set[idx] = struct{}{}
	}
	for d := range deleted {
		// Survivors around d, converted to post-transaction coordinates.
		shifted := d
		for other := range deleted {
			if other < d {
				shifted--
			}
		}
		for _, ins := range insertShift {
			if ins <= shifted {
				shifted++
			}
		}
		add(shifted - 1)
		add(shifted)
	}
	for ins := range rc.explicitInserts {
		add(ins - 1)
		add(ins + 1)
	}
	if rc.widthChanged {
		for _, rec := range rc.st.Records {
			if rec.Index >= 0 {
				add(rec.Index)
			}
		}
	}
	rc.adjacent = rc.adjacent[:0]
	for idx := range set {
		rc.adjacent = append(rc.adjacent, idx)
	}
	sort.Ints(rc.adjacent)
}

// prepareScrollTarget tears the loaded window down when the target is
// unreachable from it, so gap filling rebuilds anchored at the target.
func (rc *reconciliation) prepareScrollTarget() {
	target := rc.st.ScrollTarget
	if len(rc.lv.items) == 0 {
		rc.st.ScrollTarget = nil
		return
	}
	if target.Index < 0 {
		target.Index = 0
	}
	if target.Index >= len(rc.lv.items) {
		target.Index = len(rc.lv.items) - 1
	}
	bound := rc.st.boundRange()
	if bound.Empty() || (target.Index >= bound.First-1 && target.Index <= bound.Last+1) {
		return
	}
	if target.Alignment == AlignVisible {
		// The target is nowhere near the window; rebuild aligned to the
		// edge it is being approached from.
		if target.Index > bound.Last {
			target.Alignment = AlignBottom
		} else {
			target.Alignment = AlignTop
		}
	}
	for _, rec := range rc.st.Records {
		if !rec.Handle.IsNil() {
			rc.ops = append(rc.ops, Operation{Kind: OpRemove, Index: rec.Index, Reference: rec.Handle, Direction: DirectionUp})
		}
	}
	rc.st.Records = rc.st.Records[:0]
}

// --- Gap filling ---

type gap struct {
	index     int
	direction Direction
	initial   bool
}

// nextGap locates the next contiguous run of indices with no node,
// returning one index at a time so each materialization updates the
// context the following search sees.
func (rc *reconciliation) nextGap() (gap, bool) {
	st := &rc.st
	items := rc.lv.items
	if len(items) == 0 {
		return gap{}, false
	}
	bound := st.boundRange()
	if bound.Empty() {
		idx := 0
		if st.ScrollTarget != nil {
			idx = st.ScrollTarget.Index
		} else if st.StackFromBottom {
			idx = len(items) - 1
		}
		return gap{index: idx, initial: true}, true
	}

	// Interior holes first: they are always inside the loaded window.
	prev := -1
	for _, rec := range st.Records {
		if rec.Index < 0 {
			continue
		}
		if prev >= 0 && rec.Index > prev+1 {
			return gap{index: prev + 1, direction: DirectionDown}, true
		}
		prev = rec.Index
	}

	// A scroll target adjacent to the window materializes even when the
	// window is already full, so the scroll has something to align to.
	if t := st.ScrollTarget; t != nil && st.recordAt(t.Index) < 0 {
		if t.Index == bound.First-1 {
			return gap{index: t.Index, direction: DirectionUp}, true
		}
		if t.Index == bound.Last+1 {
			return gap{index: t.Index, direction: DirectionDown}, true
		}
	}

	topBound := -st.InvisibleInset
	bottomBound := st.VisibleSize.Height + st.InvisibleInset

	firstPos := st.recordAt(bound.First)
	lastPos := st.recordAt(bound.Last)
	if firstPos >= 0 && bound.First > 0 && st.Records[firstPos].Frame.Y > topBound {
		return gap{index: bound.First - 1, direction: DirectionUp}, true
	}
	if lastPos >= 0 && st.Records[lastPos].Frame.MaxY() < bottomBound {
		if bound.Last < len(items)-1 {
			return gap{index: bound.Last + 1, direction: DirectionDown}, true
		}
		// The tail is exhausted but window room remains; keep growing
		// upward while the measured content is still shorter than the
		// window.
		if bound.First > 0 && firstPos >= 0 &&
			st.Records[lastPos].Frame.MaxY()-st.Records[firstPos].Frame.Y < bottomBound-topBound {
			return gap{index: bound.First - 1, direction: DirectionUp}, true
		}
	}
	return gap{}, false
}

// stepFill materializes one missing node. Returns progressed=false when no
// gap remains, waiting=true when suspended on asynchronous materialization.
func (rc *reconciliation) stepFill() (progressed, waiting bool) {
	g, ok := rc.nextGap()
	if !ok {
		return false, false
	}

	var prevHandle NodeHandle
	if _, explicit := rc.explicitInserts[g.index]; explicit {
		prevHandle = rc.reuseHandleFor(g.index)
		if !prevHandle.IsNil() {
			delete(rc.floating, prevHandle)
		}
	}

	completedSync := true
	finished := false
	rc.materialize(g.index, prevHandle, func(h NodeHandle, layout NodeLayout, apply func()) {
		rc.placeFilled(g, h, layout, apply)
		finished = true
		if !completedSync {
			rc.suspended = false
			rc.pump()
		}
	})
	completedSync = false
	if !finished {
		rc.suspended = true
		return true, true
	}
	return true, false
}

func (rc *reconciliation) reuseHandleFor(index int) NodeHandle {
	var source int = -1
	for _, in := range rc.tx.Inserts {
		if in.Index == index {
			source = in.PreviousIndex
			break
		}
	}
	if source < 0 {
		return NilHandle
	}
	return rc.previousNodes[source]
}

// placeFilled splices the freshly materialized node into the working state
// and emits the insert operation.
func (rc *reconciliation) placeFilled(g gap, h NodeHandle, layout NodeLayout, apply func()) {
	st := &rc.st
	height := layout.Size.Height
	frame := Rect{X: 0, Y: 0, Width: layout.Size.Width, Height: height}

	switch {
	case g.initial:
		frame.Y = rc.initialY(height)
	case g.direction == DirectionUp:
		pos := st.recordAt(g.index + 1)
		if pos < 0 {
			pos = 0
		}
		frame.Y = st.Records[pos].Frame.Y - height
	default:
		// Place below the predecessor; everything after shifts down.
		pos := st.recordAt(g.index - 1)
		anchorY := st.Insets.Top
		insertAt := 0
		if pos >= 0 {
			anchorY = st.Records[pos].Frame.MaxY()
			insertAt = pos + 1
		}
		frame.Y = anchorY
		for i := insertAt; i < len(st.Records); i++ {
			st.Records[i].Frame.Y += height
		}
	}

	rec := NodeRecord{Index: g.index, Frame: frame, Handle: h}
	st.insertRecord(rec)
	st.checkMonotonic("fill")

	_, explicit := rc.explicitInserts[g.index]
	animated := explicit && rc.tx.Options.Has(OptionAnimateInsertion)
	rc.ops = append(rc.ops, Operation{
		Kind:      OpInsertNode,
		Index:     g.index,
		Direction: g.direction,
		Animated:  animated,
		Handle:    h,
		Layout:    layout,
		Apply:     apply,
	})
	rc.noteReadyGate(g.index)
}

// initialY positions the very first materialized node.
func (rc *reconciliation) initialY(height float64) float64 {
	st := &rc.st
	if t := st.ScrollTarget; t != nil {
		switch t.Alignment {
		case AlignBottom:
			return st.VisibleSize.Height - st.Insets.Bottom - height
		case AlignCenter:
			if height > st.VisibleSize.Height-st.Insets.Top-st.Insets.Bottom {
				if st.StackFromBottom {
					return st.VisibleSize.Height - st.Insets.Bottom - height
				}
				return st.Insets.Top
			}
			return st.Insets.Top + (st.VisibleSize.Height-st.Insets.Top-st.Insets.Bottom-height)/2
		default:
			return st.Insets.Top
		}
	}
	if st.StackFromBottom {
		return st.VisibleSize.Height - st.Insets.Bottom - height
	}
	return st.Insets.Top
}

// --- Explicit updates ---

func (rc *reconciliation) stepUpdate() (progressed, waiting bool) {
	if len(rc.updates) == 0 {
		return false, false
	}
	upd := rc.updates[0]
	rc.updates = rc.updates[1:]

	if upd.Index < 0 || upd.Index >= len(rc.lv.items) {
		panic(fmt.Sprintf("listkit: update index %d out of range [0,%d)", upd.Index, len(rc.lv.items)))
	}
	rc.lv.items[upd.Index] = upd.Item

	pos := rc.st.recordAt(upd.Index)
	if pos < 0 || rc.st.Records[pos].Handle.IsNil() {
		return true, false
	}
	return rc.relayout(upd.Index, rc.st.Records[pos].Handle)
}

// --- Adjacent relayout ---

func (rc *reconciliation) stepAdjacent() (progressed, waiting bool) {
	for len(rc.adjacent) > 0 {
		idx := rc.adjacent[0]
		rc.adjacent = rc.adjacent[1:]
		if idx >= len(rc.lv.items) {
			continue
		}
		pos := rc.st.recordAt(idx)
		if pos < 0 || rc.st.Records[pos].Handle.IsNil() {
			// Node no longer exists; nothing to relayout.
			continue
		}
		return rc.relayout(idx, rc.st.Records[pos].Handle)
	}
	return false, false
}

// relayout re-measures the item bound to index against its current
// neighbors and emits the layout update.
func (rc *reconciliation) relayout(index int, handle NodeHandle) (progressed, waiting bool) {
	completedSync := true
	finished := false
	rc.materialize(index, handle, func(h NodeHandle, layout NodeLayout, apply func()) {
		rc.placeUpdated(index, h, layout, apply)
		finished = true
		if !completedSync {
			rc.suspended = false
			rc.pump()
		}
	})
	completedSync = false
	if !finished {
		rc.suspended = true
		return true, true
	}
	return true, false
}

// placeUpdated commits a new layout for a bound record, shifting neighbors
// so nothing visibly jumps: content above the viewport top keeps its
// bottom edge, content below keeps its top edge.
func (rc *reconciliation) placeUpdated(index int, h NodeHandle, layout NodeLayout, apply func()) {
	st := &rc.st
	pos := st.recordAt(index)
	if pos < 0 {
		return
	}
	rec := &st.Records[pos]
	dh := layout.Size.Height - rec.Frame.Height

	animated := rc.tx.Options.Has(OptionAnimateCrossfade) || rc.tx.Options.Has(OptionAnimateAlpha)
	if dh != 0 {
		if rec.Frame.MaxY() <= st.Insets.Top {
			rec.Frame.Y -= dh
			for i := 0; i < pos; i++ {
				st.Records[i].Frame.Y -= dh
			}
		} else {
			for i := pos + 1; i < len(st.Records); i++ {
				st.Records[i].Frame.Y += dh
			}
		}
	}
	rec.Frame.Height = layout.Size.Height
	rec.Frame.Width = layout.Size.Width
	st.checkMonotonic("update")

	rc.ops = append(rc.ops, Operation{
		Kind:     OpUpdateLayout,
		Index:    index,
		Animated: animated,
		Handle:   h,
		Layout:   layout,
		Apply:    apply,
	})
	rc.noteReadyGate(index)
}

// --- Collapse stripping ---

// stripCollapsed drops ghost records whose exit animation has fully
// collapsed, releasing their nodes.
func (rc *reconciliation) stripCollapsed() {
	const epsilon = 0.5
	out := rc.st.Records[:0]
	for _, rec := range rc.st.Records {
		if rec.Index >= 0 {
			out = append(out, rec)
			continue
		}
		node := rc.lv.arena.Get(rec.Handle)
		if node != nil && node.ApparentHeight() > epsilon {
			out = append(out, rec)
			continue
		}
		rc.ops = append(rc.ops, Operation{Kind: OpRemove, Index: -1, Reference: rec.Handle, Direction: DirectionUp})
	}
	rc.st.Records = out
}

// releaseUnclaimed frees reuse-offered nodes whose claiming insert never
// materialized, such as a morph whose new index lies outside the loaded
// window. Without this the arena would retain the node forever.
func (rc *reconciliation) releaseUnclaimed() {
	for h := range rc.floating {
		rc.ops = append(rc.ops, Operation{Kind: OpRemove, Index: -1, Reference: h, Direction: DirectionUp})
	}
}

// --- Ready gate and replay handoff ---

func (rc *reconciliation) noteReadyGate(index int) {
	if !rc.tx.Options.Has(OptionPreferSynchronousLoad) {
		return
	}
	if index < 0 || index >= len(rc.lv.items) {
		return
	}
	if rs, ok := rc.lv.items[index].(ReadySignaler); ok {
		rc.readyGates = append(rc.readyGates, rs.Ready())
	}
}

// gateAndReplay optionally waits for item readiness (soft deadline, then
// proceed regardless) before handing the operation log to the player.
func (rc *reconciliation) gateAndReplay() {
	lv := rc.lv
	if len(rc.readyGates) == 0 || rc.tx.Options.Has(OptionSynchronous) {
		lv.replay(rc)
		return
	}
	gates := rc.readyGates
	deadline := lv.cfg.ReadyDeadline
	lv.d.Background(func() {
		timeout := time.After(deadline)
		for _, ch := range gates {
			select {
			case <-ch:
			case <-timeout:
				lv.d.Async(func() { lv.replay(rc) })
				return
			}
		}
		lv.d.Async(func() { lv.replay(rc) })
	})
}
