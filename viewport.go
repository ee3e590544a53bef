package listkit

// Viewport coordination: the stack is mapped onto a scrollable surface
// whose true extent is unknown while only part of the list is
// materialized. Scroll deltas reposition frames directly; extent and
// indicator fall back to an average-item-height estimate until both
// endpoints are loaded.

// ScrollIndicator is the synthesized scroll thumb in viewport coordinates.
type ScrollIndicator struct {
	Y, Height float64
}

// contentExtent estimates total content height. exact is true only when
// both list endpoints are materialized.
func (lv *ListView) contentExtent() (above, measured, below float64, exact bool) {
	if len(lv.records) == 0 {
		return 0, 0, 0, len(lv.items) == 0
	}
	bound := lv.liveState().boundRange()
	measured = lv.records[len(lv.records)-1].Frame.MaxY() - lv.records[0].Frame.Y
	if bound.Empty() {
		return 0, measured, 0, false
	}
	avg := lv.cfg.AverageItemHeight
	above = float64(bound.First) * avg
	below = float64(len(lv.items)-1-bound.Last) * avg
	exact = bound.First == 0 && bound.Last == len(lv.items)-1
	return above, measured, below, exact
}

// refreshIndicator recomputes the thumb from the extent estimate. The thumb
// disappears when everything fits.
func (lv *ListView) refreshIndicator() {
	lv.indicator = ScrollIndicator{}
	lv.indicatorVisible = false
	if len(lv.records) == 0 {
		return
	}
	above, measured, below, _ := lv.contentExtent()
	total := above + measured + below
	viewH := lv.size.Height
	if total <= viewH || viewH <= 0 {
		return
	}

	thumb := viewH * viewH / total
	if thumb < lv.cfg.MinIndicatorHeight {
		thumb = lv.cfg.MinIndicatorHeight
	}
	// Distance already scrolled past the viewport top, including the
	// estimated unmaterialized prefix.
	scrolled := above - lv.records[0].Frame.Y
	if scrolled < 0 {
		scrolled = 0
	}
	maxScroll := total - viewH
	pos := 0.0
	if maxScroll > 0 {
		pos = (viewH - thumb) * scrolled / maxScroll
	}
	if pos < 0 {
		pos = 0
	}
	if pos > viewH-thumb {
		pos = viewH - thumb
	}
	lv.indicator = ScrollIndicator{Y: pos, Height: thumb}
	lv.indicatorVisible = true
}

// Indicator returns the current thumb, if one should be shown.
func (lv *ListView) Indicator() (ScrollIndicator, bool) {
	return lv.indicator, lv.indicatorVisible
}

// ScrollBy scrolls the content by distance (positive scrolls toward the end
// of the list). The scroll runs as a queued pass: newly exposed indices are
// materialized so the loaded window tracks the viewport, and only then is
// movement beyond the snapped bounds limited to the configured overscroll
// and handed to the bounce spring.
func (lv *ListView) ScrollBy(distance float64) {
	lv.d.Async(func() { lv.scrollBy(distance) })
}

func (lv *ListView) scrollBy(distance float64) {
	lv.queue.enqueue(func(done func()) {
		if len(lv.records) == 0 && len(lv.items) == 0 {
			done()
			return
		}
		lv.applyOffset(-distance)
		rc := &reconciliation{lv: lv, tx: &Transaction{}, scroll: true, done: done}
		rc.run()
	})
}

// EnsureVisible scrolls the minimum distance that makes index fully
// visible, materializing it first if needed.
func (lv *ListView) EnsureVisible(index int, animated bool, completion func(loaded, visible Range)) {
	lv.Transaction(Transaction{
		ScrollTo: &ScrollTarget{Index: index, Alignment: AlignVisible, Animated: animated},
		Completion: func(loaded, visible Range, _ any) {
			if completion != nil {
				completion(loaded, visible)
			}
		},
	})
}

func copysignf(v, sign float64) float64 {
	if sign < 0 {
		return -v
	}
	return v
}
