package listkit

import "time"

// Replay applies a reconciliation's operation log to the live node pool,
// then resolves scroll position: exactly one of scroll-target, stationary
// anchor, or snap-to-bounds per transaction. Runs on the owner context.
func (lv *ListView) replay(rc *reconciliation) {
	now := lv.clock()
	st := &rc.st

	for i := range rc.ops {
		op := &rc.ops[i]
		switch op.Kind {
		case OpRemap:
			lv.applyRemap(op.Mapping)
		case OpInsertNode:
			lv.applyInsert(rc, op, now)
		case OpInsertPlaceholder:
			lv.applyPlaceholder(op, now)
		case OpRemove:
			lv.applyRemove(op)
		case OpUpdateLayout:
			lv.applyUpdateLayout(op, now)
		}
	}

	// Commit the working state: bindings and frames flow from records to
	// arena nodes, then the records become the live pool.
	for _, rec := range st.Records {
		if node := lv.arena.Get(rec.Handle); node != nil {
			node.Index = rec.Index
			node.setFrame(rec.Frame)
		}
	}
	lv.records = st.Records
	lv.size = st.VisibleSize
	lv.insets = st.Insets

	offset := 0.0
	animatedScroll := false
	switch {
	case st.ScrollTarget != nil:
		offset = lv.scrollTargetOffset(st.ScrollTarget)
		// A target near a known content end may not scroll past it.
		offset += lv.snapOffsetShifted(offset)
		animatedScroll = st.ScrollTarget.Animated
	case !rc.anchorHandle.IsNil():
		if pos := lv.recordPosByHandle(rc.anchorHandle); pos >= 0 {
			offset = rc.anchorY - lv.records[pos].Frame.Y
		}
	case rc.scroll:
		// Scroll passes resolve out-of-bounds movement through the bounce
		// spring rather than an instant snap. Correction needed to get back
		// inside bounds; zero when in bounds.
		if v := lv.snapOffset(); v != 0 {
			if absf(v) > lv.cfg.Overscroll {
				// Hard-limit the excursion to the overscroll allowance.
				lv.applyOffset(v - copysignf(lv.cfg.Overscroll, v))
				v = copysignf(lv.cfg.Overscroll, v)
			}
			lv.bounce.x = -v
			lv.bounce.v = 0
			lv.bounce.active = true
			lv.tick.ensure()
		}
	default:
		offset = lv.snapOffset()
	}
	offset -= rc.tx.AdditionalDistance

	if offset != 0 {
		if animatedScroll {
			lv.beginScrollAnimation(offset)
		} else {
			lv.applyOffset(offset)
		}
	}

	lv.layoutHeader()
	lv.layoutOverscrollBackdrop()
	lv.refreshIndicator()
	lv.notifyVisibility()

	if lv.anyAnimations() || lv.scrollAnim != nil {
		lv.restack(now)
		lv.tick.ensure()
	}
	if DebugChecks {
		lv.liveState().checkMonotonic("replay")
	}

	lv.loaded = lv.liveState().boundRange()
	lv.visible = lv.visibleRangeLocked()
	loaded, visible := lv.loaded, lv.visible
	for _, fn := range lv.rangeListeners {
		if fn != nil {
			fn(loaded, visible)
		}
	}
	if rc.tx.Completion != nil {
		rc.tx.Completion(loaded, visible, rc.tx.Opaque)
	}
	rc.done()
}

func (lv *ListView) applyRemap(mapping map[int]int) {
	lv.arena.Each(func(_ NodeHandle, n *Node) {
		if !n.Bound() {
			return
		}
		if idx, ok := mapping[n.Index]; ok {
			n.Index = idx
		}
	})
}

func (lv *ListView) applyInsert(rc *reconciliation, op *Operation, now time.Time) {
	node := lv.arena.Get(op.Handle)
	if node == nil {
		return
	}
	if op.Apply != nil {
		op.Apply()
	}
	node.Index = op.Index
	node.Layout = op.Layout
	if !op.Animated {
		return
	}

	height := op.Layout.Size.Height
	from := 0.0
	if v, ok := lv.adoptMatchingShrink(rc, op.Index, height); ok {
		// A departing neighbor of the same height is mid-collapse; pick up
		// its current value instead of growing from zero.
		from = v
	}
	node.apparentHeight = from
	node.SetAnimation(AnimationApparentHeight,
		NewAnimation(from, height, now, lv.cfg.InsertDuration, CurveEaseInOut))

	slide := -height
	if op.Direction == DirectionUp {
		slide = height
	}
	node.transitionOffset = slide
	node.SetAnimation(AnimationTransitionOffset,
		NewAnimation(slide, 0, now, lv.cfg.InsertDuration, CurveEaseOut))
}

// adoptMatchingShrink scans ghost records neighboring the inserted index
// for an in-flight collapse that started from the same height. On a match
// the ghost finishes instantly and the insert resumes from its value.
func (lv *ListView) adoptMatchingShrink(rc *reconciliation, index int, height float64) (float64, bool) {
	st := &rc.st
	pos := st.recordAt(index)
	if pos < 0 {
		return 0, false
	}
	for _, p := range []int{pos - 1, pos + 1} {
		if p < 0 || p >= len(st.Records) {
			continue
		}
		rec := st.Records[p]
		if !rec.Placeholder() {
			continue
		}
		ghost := lv.arena.Get(rec.Handle)
		if ghost == nil {
			continue
		}
		anim := ghost.Animation(AnimationApparentHeight)
		if anim == nil || absf(anim.From-height) > 0.5 {
			continue
		}
		v := anim.ValueAt(lv.clock())
		ghost.SetAnimation(AnimationApparentHeight, nil)
		ghost.apparentHeight = 0
		return v, true
	}
	return 0, false
}

func (lv *ListView) applyPlaceholder(op *Operation, now time.Time) {
	node := lv.arena.Get(op.Reference)
	if node == nil {
		return
	}
	node.Index = -1
	from := node.ApparentHeight()
	if from <= 0 {
		from = op.Layout.Size.Height
	}
	ref := op.Reference
	anim := NewAnimation(from, 0, now, lv.cfg.InsertDuration, CurveEaseInOut)
	anim.Completion = func(finished bool) {
		if finished {
			lv.removeGhost(ref)
		}
	}
	node.SetAnimation(AnimationApparentHeight, anim)
}

// removeGhost strips a fully collapsed ghost from the live pool.
func (lv *ListView) removeGhost(h NodeHandle) {
	lv.detach(h)
	for i, rec := range lv.records {
		if rec.Handle == h {
			lv.records = append(lv.records[:i], lv.records[i+1:]...)
			break
		}
	}
}

func (lv *ListView) applyRemove(op *Operation) {
	lv.detach(op.Reference)
}

// detach physically releases a node and any attached accessory. A neighbor
// carrying an equal accessory key adopts the accessory instead, so the
// sub-node survives the removal without a teardown/rebuild cycle.
func (lv *ListView) detach(h NodeHandle) {
	node := lv.arena.Get(h)
	if node == nil {
		return
	}
	node.cancelAnimations()
	if !node.Accessory.IsNil() {
		if !lv.stealAccessory(h, node) {
			lv.arena.Release(node.Accessory)
		}
		node.Accessory = NilHandle
		node.AccessoryKey = nil
	}
	if node.temporary {
		if s, ok := node.Content.(*Standin); ok {
			releaseStandin(s)
		}
	}
	lv.arena.Release(h)
}

// stealAccessory hands the departing node's accessory to an adjacent record
// whose node declares the same accessory key and has none of its own.
func (lv *ListView) stealAccessory(h NodeHandle, departing *Node) bool {
	if departing.AccessoryKey == nil {
		return false
	}
	pos := lv.recordPosByHandle(h)
	if pos < 0 {
		return false
	}
	for _, p := range []int{pos - 1, pos + 1} {
		if p < 0 || p >= len(lv.records) {
			continue
		}
		neighbor := lv.arena.Get(lv.records[p].Handle)
		if neighbor == nil || !neighbor.Accessory.IsNil() {
			continue
		}
		if neighbor.AccessoryKey == departing.AccessoryKey {
			neighbor.Accessory = departing.Accessory
			return true
		}
	}
	return false
}

func (lv *ListView) applyUpdateLayout(op *Operation, now time.Time) {
	node := lv.arena.Get(op.Handle)
	if node == nil {
		return
	}
	if op.Apply != nil {
		op.Apply()
	}
	if op.Animated {
		oldHeight := node.Frame.Height
		node.SetAnimation(AnimationHeight,
			NewAnimation(oldHeight, op.Layout.Size.Height, now, lv.cfg.InsertDuration, CurveEaseInOut))
		node.SetAnimation(AnimationApparentHeight,
			NewAnimation(node.ApparentHeight(), op.Layout.Size.Height, now, lv.cfg.InsertDuration, CurveEaseInOut))
		if node.topInset != op.Layout.Insets.Top {
			node.SetAnimation(AnimationInsets,
				NewAnimation(node.topInset, op.Layout.Insets.Top, now, lv.cfg.InsertDuration, CurveEaseInOut))
		}
	} else {
		node.topInset = op.Layout.Insets.Top
	}
	node.Layout = op.Layout
}

// --- Scroll resolution ---

// scrollTargetOffset returns the uniform shift that satisfies the target
// alignment. Zero when the target is not materialized.
func (lv *ListView) scrollTargetOffset(t *ScrollTarget) float64 {
	pos := -1
	for i, rec := range lv.records {
		if rec.Index == t.Index {
			pos = i
			break
		}
	}
	if pos < 0 {
		return 0
	}
	frame := lv.records[pos].Frame
	innerTop := lv.insets.Top
	innerBottom := lv.size.Height - lv.insets.Bottom

	var desired float64
	switch t.Alignment {
	case AlignBottom:
		desired = innerBottom - frame.Height
	case AlignCenter:
		if frame.Height > innerBottom-innerTop {
			if lv.stackFromBottom {
				desired = innerBottom - frame.Height
			} else {
				desired = innerTop
			}
		} else {
			desired = innerTop + (innerBottom-innerTop-frame.Height)/2
		}
	case AlignVisible:
		switch {
		case frame.Y >= innerTop && frame.MaxY() <= innerBottom:
			return 0
		case frame.Height > innerBottom-innerTop || frame.Y < innerTop:
			desired = innerTop
		default:
			desired = innerBottom - frame.Height
		}
	default: // AlignTop
		desired = innerTop
	}
	return desired - frame.Y
}

// snapOffset clamps the stack against the viewport: short content anchors
// per stacking mode, long content may not leave gaps at a known endpoint.
func (lv *ListView) snapOffset() float64 {
	return lv.snapOffsetShifted(0)
}

// snapOffsetShifted computes the snap correction as if the stack had
// already been shifted by dy.
func (lv *ListView) snapOffsetShifted(dy float64) float64 {
	if len(lv.records) == 0 {
		return 0
	}
	innerTop := lv.insets.Top
	innerBottom := lv.size.Height - lv.insets.Bottom
	contentTop := lv.records[0].Frame.Y + dy
	contentBottom := lv.records[len(lv.records)-1].Frame.MaxY() + dy

	bound := lv.liveState().boundRange()
	knownTop := !bound.Empty() && bound.First == 0
	knownBottom := !bound.Empty() && bound.Last == len(lv.items)-1

	if knownTop && knownBottom && contentBottom-contentTop <= innerBottom-innerTop {
		if lv.stackFromBottom {
			return innerBottom - contentBottom
		}
		return innerTop - contentTop
	}
	if knownTop && contentTop > innerTop {
		return innerTop - contentTop
	}
	if knownBottom && contentBottom < innerBottom {
		return innerBottom - contentBottom
	}
	return 0
}

// applyOffset shifts every record and node frame uniformly.
func (lv *ListView) applyOffset(dy float64) {
	if dy == 0 {
		return
	}
	for i := range lv.records {
		lv.records[i].Frame.Y += dy
		if node := lv.arena.Get(lv.records[i].Handle); node != nil {
			node.Frame.Y += dy
		}
	}
	if header := lv.arena.Get(lv.header); header != nil {
		header.Frame.Y += dy
	}
	lv.visibleOffset += dy
	for _, fn := range lv.offsetListeners {
		if fn != nil {
			fn(lv.visibleOffset)
		}
	}
}

// --- Follow-on layout ---

// layoutHeader pins the header node directly above the first record.
func (lv *ListView) layoutHeader() {
	header := lv.arena.Get(lv.header)
	if header == nil {
		return
	}
	y := lv.insets.Top - header.Frame.Height
	if len(lv.records) > 0 {
		y = lv.records[0].Frame.Y - header.Frame.Height
	}
	header.Frame.X = 0
	header.Frame.Y = y
	header.Frame.Width = lv.size.Width
}

// layoutOverscrollBackdrop positions the backdrop covering the region the
// stack does not reach.
func (lv *ListView) layoutOverscrollBackdrop() {
	lv.overscrollBackdrop = Rect{}
	if len(lv.records) == 0 {
		lv.overscrollBackdrop = Rect{Width: lv.size.Width, Height: lv.size.Height}
		return
	}
	bottom := lv.records[len(lv.records)-1].Frame.MaxY()
	if bottom < lv.size.Height {
		lv.overscrollBackdrop = Rect{Y: bottom, Width: lv.size.Width, Height: lv.size.Height - bottom}
	}
}

// notifyVisibility reports each node's visible fraction.
func (lv *ListView) notifyVisibility() {
	for _, rec := range lv.records {
		node := lv.arena.Get(rec.Handle)
		if node == nil || node.OnVisibility == nil {
			continue
		}
		node.OnVisibility(lv.visibleFraction(node.Frame))
	}
}

func (lv *ListView) visibleFraction(frame Rect) float64 {
	if frame.Height <= 0 {
		return 0
	}
	top := frame.Y
	if top < 0 {
		top = 0
	}
	bottom := frame.MaxY()
	if bottom > lv.size.Height {
		bottom = lv.size.Height
	}
	if bottom <= top {
		return 0
	}
	return (bottom - top) / frame.Height
}

// --- Shared helpers ---

func (lv *ListView) recordPosByHandle(h NodeHandle) int {
	for i, rec := range lv.records {
		if rec.Handle == h {
			return i
		}
	}
	return -1
}

func (lv *ListView) anyAnimations() bool {
	for _, rec := range lv.records {
		if node := lv.arena.Get(rec.Handle); node != nil && node.hasAnimations() {
			return true
		}
	}
	return false
}

// restack recomputes the stack from apparent heights, anchored on the
// first settled visible record so settled content holds still while
// animated regions grow and shrink around it.
func (lv *ListView) restack(now time.Time) {
	anchor := -1
	for i, rec := range lv.records {
		node := lv.arena.Get(rec.Handle)
		if node == nil {
			continue
		}
		if node.Animation(AnimationApparentHeight) == nil && rec.Frame.MaxY() > 0 && rec.Frame.Y < lv.size.Height {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		if len(lv.records) == 0 {
			return
		}
		anchor = 0
	}

	y := lv.records[anchor].Frame.Y
	for i := anchor - 1; i >= 0; i-- {
		h := lv.apparentHeightOf(i)
		y -= h
		lv.setRecordY(i, y)
	}
	y = lv.records[anchor].Frame.Y + lv.apparentHeightOf(anchor)
	for i := anchor + 1; i < len(lv.records); i++ {
		lv.setRecordY(i, y)
		y += lv.apparentHeightOf(i)
	}
	if DebugChecks {
		lv.liveState().checkMonotonic("restack")
	}
}

func (lv *ListView) apparentHeightOf(i int) float64 {
	if node := lv.arena.Get(lv.records[i].Handle); node != nil {
		return node.ApparentHeight()
	}
	return lv.records[i].Frame.Height
}

func (lv *ListView) setRecordY(i int, y float64) {
	lv.records[i].Frame.Y = y
	if node := lv.arena.Get(lv.records[i].Handle); node != nil {
		node.Frame.Y = y
	}
}
