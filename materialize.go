package listkit

// materialize produces or updates the node for the item at index. When prev
// resolves to a live node the item's update capability runs against it;
// otherwise a fresh arena slot is configured. The item owns the sync/async
// policy: with OptionSynchronous everything happens inline on the calling
// goroutine, otherwise compute may hop through d.Background and completion
// is delivered on the owner context.
func (rc *reconciliation) materialize(index int, prev NodeHandle, completion func(NodeHandle, NodeLayout, func())) {
	lv := rc.lv
	item := lv.items[index]
	params := LayoutParams{
		Width:      rc.st.VisibleSize.Width,
		LeftInset:  rc.st.Insets.Left,
		RightInset: rc.st.Insets.Right,
	}
	var prevItem, nextItem Item
	if index > 0 {
		prevItem = lv.items[index-1]
	}
	if index+1 < len(lv.items) {
		nextItem = lv.items[index+1]
	}

	if node := lv.arena.Get(prev); node != nil {
		var spec *TransitionSpec
		if rc.tx.Options.Has(OptionAnimateCrossfade) || rc.tx.Options.Has(OptionAnimateAlpha) {
			spec = &TransitionSpec{Duration: defaultInsertDuration, Curve: CurveEaseInOut}
		}
		item.UpdateNode(lv.d, node, params, prevItem, nextItem, spec, func(layout NodeLayout, apply func()) {
			completion(prev, layout, apply)
		})
		return
	}

	synchronous := rc.tx.Options.Has(OptionSynchronous)
	handle, node := lv.arena.Alloc()
	item.ConfigureNode(lv.d, node, params, synchronous, prevItem, nextItem, func(layout NodeLayout, apply func()) {
		completion(handle, layout, apply)
	})
}
