package listkit

import (
	"fmt"
	"os"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	DebugChecks = true
	os.Exit(m.Run())
}

// testItem is a fixed-height item. With async set, ConfigureNode routes
// measurement through the dispatcher's background context the way a real
// item would.
type testItem struct {
	label      string
	height     float64
	selectable bool
	async      bool

	configures int
	updates    int
}

func fixedItem(label string, height float64) *testItem {
	return &testItem{label: label, height: height, selectable: true}
}

func (it *testItem) Selectable() bool { return it.selectable }

func (it *testItem) ConfigureNode(d Dispatcher, node *Node, params LayoutParams, synchronous bool, prev, next Item, completion func(NodeLayout, func())) {
	it.configures++
	layout := NodeLayout{Size: Size{Width: params.Width, Height: it.height}}
	apply := func() { node.Content = it.label }
	if synchronous || !it.async {
		completion(layout, apply)
		return
	}
	d.Background(func() {
		d.Async(func() { completion(layout, apply) })
	})
}

func (it *testItem) UpdateNode(d Dispatcher, node *Node, params LayoutParams, prev, next Item, spec *TransitionSpec, completion func(NodeLayout, func())) {
	it.updates++
	layout := NodeLayout{Size: Size{Width: params.Width, Height: it.height}}
	completion(layout, func() { node.Content = it.label })
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time             { return c.now }
func (c *fakeClock) Advance(d time.Duration)    { c.now = c.now.Add(d) }
func newFakeClock() *fakeClock                  { return &fakeClock{now: time.Unix(1000, 0)} }
func within(a, b float64) bool                  { return absf(a-b) < 1e-6 }
func ptrInt(v int) *int                         { return &v }
func ptrDir(d Direction) *Direction             { return &d }

// newTestView builds a synchronously dispatched, manually ticked view.
func newTestView(cfg Config) (*ListView, *fakeClock) {
	clk := newFakeClock()
	if cfg.Size == (Size{}) {
		cfg.Size = Size{Width: 320, Height: 200}
	}
	cfg.ManualTick = true
	cfg.Clock = clk.Now
	return New(SyncDispatcher{}, cfg), clk
}

// apply runs tx synchronously and fails the test if it does not settle
// inline.
func apply(t *testing.T, lv *ListView, tx Transaction) (Range, Range) {
	t.Helper()
	tx.Options |= OptionSynchronous
	var gotLoaded, gotVisible Range
	settled := false
	prev := tx.Completion
	tx.Completion = func(loaded, visible Range, opaque any) {
		gotLoaded, gotVisible = loaded, visible
		settled = true
		if prev != nil {
			prev(loaded, visible, opaque)
		}
	}
	lv.Transaction(tx)
	if !settled {
		t.Fatalf("transaction did not settle synchronously")
	}
	return gotLoaded, gotVisible
}

// insertN inserts fixed-height items at the tail positions 0..n-1.
func insertN(t *testing.T, lv *ListView, heights ...float64) {
	t.Helper()
	var tx Transaction
	for i, h := range heights {
		tx.Inserts = append(tx.Inserts, InsertItem{
			Index:         i,
			Item:          fixedItem(fmt.Sprintf("item-%d", i), h),
			PreviousIndex: -1,
		})
	}
	apply(t, lv, tx)
}

func recordYs(lv *ListView) []float64 {
	recs := lv.Records()
	ys := make([]float64, len(recs))
	for i, rec := range recs {
		ys[i] = rec.Frame.Y
	}
	return ys
}

func mustPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic, got none")
		}
	}()
	fn()
}

func TestListViewInsertIntoEmpty(t *testing.T) {
	lv, _ := newTestView(Config{Size: Size{Width: 320, Height: 100}})
	loaded, visible := apply(t, lv, Transaction{
		Inserts: []InsertItem{{Index: 0, Item: fixedItem("only", 40), PreviousIndex: -1}},
	})

	if lv.ItemCount() != 1 {
		t.Fatalf("expected 1 item, got %d", lv.ItemCount())
	}
	node := lv.NodeAt(0)
	if node == nil {
		t.Fatal("expected node at 0")
	}
	want := Rect{X: 0, Y: 0, Width: 320, Height: 40}
	if node.Frame != want {
		t.Errorf("expected frame %+v, got %+v", want, node.Frame)
	}
	if node.Content != "only" {
		t.Errorf("expected content applied, got %v", node.Content)
	}
	if loaded != (Range{First: 0, Last: 0}) || visible != (Range{First: 0, Last: 0}) {
		t.Errorf("expected loaded/visible [0,0], got %+v / %+v", loaded, visible)
	}
	backdrop := lv.OverscrollBackdrop()
	if backdrop.Y != 40 || backdrop.Height != 60 {
		t.Errorf("expected backdrop below content, got %+v", backdrop)
	}
}

func TestListViewDeleteMiddle(t *testing.T) {
	lv, _ := newTestView(Config{})
	insertN(t, lv, 50, 50, 50)

	items := make([]*testItem, 3)
	for i := range items {
		items[i] = lv.items[i].(*testItem)
	}

	loaded, _ := apply(t, lv, Transaction{Deletes: []DeleteItem{{Index: 1}}})

	if lv.ItemCount() != 2 {
		t.Fatalf("expected 2 items, got %d", lv.ItemCount())
	}
	ys := recordYs(lv)
	if len(ys) != 2 || !within(ys[0], 0) || !within(ys[1], 50) {
		t.Errorf("expected frames at 0 and 50, got %v", ys)
	}
	if loaded != (Range{First: 0, Last: 1}) {
		t.Errorf("expected loaded [0,1], got %+v", loaded)
	}
	if lv.arena.Len() != 2 {
		t.Errorf("expected deleted node released, arena holds %d", lv.arena.Len())
	}
	// The survivors around the deletion get a relayout pass.
	if items[0].updates != 1 {
		t.Errorf("expected 1 update on item 0, got %d", items[0].updates)
	}
	if items[2].updates != 1 {
		t.Errorf("expected 1 update on former item 2, got %d", items[2].updates)
	}
	if node := lv.NodeAt(1); node == nil || node.Content != "item-2" {
		t.Errorf("expected former item 2 rebound to index 1")
	}
}

func TestListViewDeleteDirectionDown(t *testing.T) {
	// Content above the deletion moves down; content below stays put.
	lv, _ := newTestView(Config{})
	insertN(t, lv, 50, 50, 50, 50, 50, 50)
	lv.scrollBy(100)

	apply(t, lv, Transaction{Deletes: []DeleteItem{{Index: 1, Direction: ptrDir(DirectionDown)}}})

	if y := lv.NodeAt(1).Frame.Y; !within(y, 0) {
		t.Errorf("expected content below deletion to hold at 0, got %v", y)
	}
	if y := lv.NodeAt(0).Frame.Y; !within(y, -50) {
		t.Errorf("expected content above deletion shifted down to -50, got %v", y)
	}
	if loaded := lv.LoadedRange(); loaded != (Range{First: 0, Last: 4}) {
		t.Errorf("expected refill to [0,4], got %+v", loaded)
	}
}

func TestListViewRoundTrip(t *testing.T) {
	lv, _ := newTestView(Config{})
	insertN(t, lv, 40, 40, 40, 40)

	apply(t, lv, Transaction{
		Deletes: []DeleteItem{{Index: 0}, {Index: 1}, {Index: 2}, {Index: 3}},
	})

	if lv.ItemCount() != 0 {
		t.Errorf("expected 0 items, got %d", lv.ItemCount())
	}
	if len(lv.Records()) != 0 {
		t.Errorf("expected no records, got %d", len(lv.Records()))
	}
	if lv.arena.Len() != 0 {
		t.Errorf("expected all nodes released, arena holds %d", lv.arena.Len())
	}
	if !lv.LoadedRange().Empty() || !lv.VisibleRange().Empty() {
		t.Errorf("expected empty ranges, got %+v / %+v", lv.LoadedRange(), lv.VisibleRange())
	}
	backdrop := lv.OverscrollBackdrop()
	if backdrop.Height != 200 {
		t.Errorf("expected backdrop to cover the viewport, got %+v", backdrop)
	}
}

func TestListViewEmptyTransactionShortCircuits(t *testing.T) {
	lv, _ := newTestView(Config{})
	insertN(t, lv, 50, 50)
	before := recordYs(lv)

	fired := false
	lv.Transaction(Transaction{
		Completion: func(loaded, visible Range, opaque any) {
			fired = true
			if loaded != lv.LoadedRange() {
				t.Errorf("expected current loaded range, got %+v", loaded)
			}
		},
	})
	if !fired {
		t.Fatal("expected completion to fire synchronously")
	}
	if got := recordYs(lv); len(got) != len(before) || !within(got[0], before[0]) {
		t.Errorf("expected state untouched, got %v want %v", got, before)
	}
	if lv.queue.depth() != 0 {
		t.Errorf("expected nothing queued, depth %d", lv.queue.depth())
	}
}

func TestListViewStationaryAnchor(t *testing.T) {
	lv, _ := newTestView(Config{})
	insertN(t, lv, 50, 50, 50)

	apply(t, lv, Transaction{
		Inserts:    []InsertItem{{Index: 0, Item: fixedItem("new-head", 30), PreviousIndex: -1}},
		Stationary: ptrInt(1),
	})

	// The anchored item is now index 2 and must not have moved.
	if y := lv.NodeAt(2).Frame.Y; !within(y, 50) {
		t.Errorf("expected anchored item to hold at 50, got %v", y)
	}
	if y := lv.NodeAt(0).Frame.Y; !within(y, -30) {
		t.Errorf("expected new head above the fold at -30, got %v", y)
	}
}

func TestListViewInsertWithoutAnchorSnaps(t *testing.T) {
	lv, _ := newTestView(Config{})
	insertN(t, lv, 50, 50, 50)

	apply(t, lv, Transaction{
		Inserts: []InsertItem{{Index: 0, Item: fixedItem("new-head", 30), PreviousIndex: -1}},
	})

	// Short content without an anchor snaps to the top edge.
	if y := lv.NodeAt(0).Frame.Y; !within(y, 0) {
		t.Errorf("expected head snapped to 0, got %v", y)
	}
	if y := lv.NodeAt(3).Frame.Y; !within(y, 130) {
		t.Errorf("expected tail at 130, got %v", y)
	}
}

func TestListViewUpdateGrowsFollowers(t *testing.T) {
	lv, _ := newTestView(Config{})
	insertN(t, lv, 50, 50, 50)

	apply(t, lv, Transaction{
		Updates: []UpdateItem{{Index: 1, Item: fixedItem("tall", 80), PreviousIndex: 1}},
	})

	node := lv.NodeAt(1)
	if !within(node.Frame.Height, 80) {
		t.Errorf("expected height 80, got %v", node.Frame.Height)
	}
	if node.Content != "tall" {
		t.Errorf("expected updated content, got %v", node.Content)
	}
	if y := lv.NodeAt(0).Frame.Y; !within(y, 0) {
		t.Errorf("expected item 0 unmoved, got %v", y)
	}
	if y := lv.NodeAt(2).Frame.Y; !within(y, 130) {
		t.Errorf("expected follower shifted to 130, got %v", y)
	}
}

func TestListViewUpdateAboveViewportKeepsBottomEdge(t *testing.T) {
	lv, _ := newTestView(Config{})
	insertN(t, lv, 50, 50, 50, 50, 50)
	lv.scrollBy(50)

	if y := lv.NodeAt(0).Frame.Y; !within(y, -50) {
		t.Fatalf("expected item 0 scrolled to -50, got %v", y)
	}

	apply(t, lv, Transaction{
		Updates: []UpdateItem{{Index: 0, Item: fixedItem("tall", 70), PreviousIndex: 0}},
	})

	// Bottom edge holds; the growth is absorbed above the fold.
	if y := lv.NodeAt(0).Frame.Y; !within(y, -70) {
		t.Errorf("expected item 0 at -70, got %v", y)
	}
	if y := lv.NodeAt(1).Frame.Y; !within(y, 0) {
		t.Errorf("expected item 1 unmoved at 0, got %v", y)
	}
}

func TestListViewMorphReusesNode(t *testing.T) {
	lv, _ := newTestView(Config{})
	insertN(t, lv, 50)
	oldItem := lv.items[0].(*testItem)
	oldNode := lv.NodeAt(0)

	replacement := fixedItem("replacement", 50)
	apply(t, lv, Transaction{
		Deletes: []DeleteItem{{Index: 0}},
		Inserts: []InsertItem{{Index: 0, Item: replacement, PreviousIndex: 0}},
	})

	newNode := lv.NodeAt(0)
	if newNode != oldNode {
		t.Error("expected the existing node to be reused across the replace")
	}
	if newNode.Content != "replacement" {
		t.Errorf("expected new content, got %v", newNode.Content)
	}
	if replacement.configures != 0 {
		t.Errorf("expected no fresh configure, got %d", replacement.configures)
	}
	if replacement.updates != 1 {
		t.Errorf("expected exactly 1 update, got %d", replacement.updates)
	}
	if oldItem.updates != 0 {
		t.Errorf("expected departed item untouched, got %d updates", oldItem.updates)
	}
	if lv.arena.Len() != 1 {
		t.Errorf("expected a single live node, got %d", lv.arena.Len())
	}
}

func TestListViewStackFromBottom(t *testing.T) {
	lv, _ := newTestView(Config{StackFromBottom: true})
	insertN(t, lv, 50, 50)

	if y := lv.NodeAt(0).Frame.Y; !within(y, 100) {
		t.Errorf("expected item 0 at 100, got %v", y)
	}
	if y := lv.NodeAt(1).Frame.Y; !within(y, 150) {
		t.Errorf("expected item 1 at 150, got %v", y)
	}
}

func TestListViewResize(t *testing.T) {
	t.Run("height only", func(t *testing.T) {
		lv, _ := newTestView(Config{})
		insertN(t, lv, 50, 50, 50)
		items := []*testItem{lv.items[0].(*testItem), lv.items[1].(*testItem)}

		_, visible := apply(t, lv, Transaction{
			Resize: &Resize{Size: Size{Width: 320, Height: 100}},
		})
		if visible != (Range{First: 0, Last: 1}) {
			t.Errorf("expected visible [0,1], got %+v", visible)
		}
		if items[0].updates != 0 {
			t.Errorf("expected no relayout on height-only resize, got %d", items[0].updates)
		}
	})

	t.Run("width change relays out", func(t *testing.T) {
		lv, _ := newTestView(Config{})
		insertN(t, lv, 50, 50, 50)

		apply(t, lv, Transaction{
			Resize: &Resize{Size: Size{Width: 280, Height: 200}},
		})
		for i := 0; i < 3; i++ {
			if got := lv.items[i].(*testItem).updates; got != 1 {
				t.Errorf("expected 1 relayout on item %d, got %d", i, got)
			}
			if w := lv.NodeAt(i).Frame.Width; !within(w, 280) {
				t.Errorf("expected width 280 on item %d, got %v", i, w)
			}
		}
	})
}

func TestListViewInsertPanics(t *testing.T) {
	t.Run("into empty at nonzero", func(t *testing.T) {
		lv, _ := newTestView(Config{})
		mustPanic(t, func() {
			apply(t, lv, Transaction{
				Inserts: []InsertItem{{Index: 1, Item: fixedItem("x", 40), PreviousIndex: -1}},
			})
		})
	})

	t.Run("past the tail", func(t *testing.T) {
		lv, _ := newTestView(Config{})
		insertN(t, lv, 40)
		mustPanic(t, func() {
			apply(t, lv, Transaction{
				Inserts: []InsertItem{{Index: 3, Item: fixedItem("x", 40), PreviousIndex: -1}},
			})
		})
	})

	t.Run("delete out of range", func(t *testing.T) {
		lv, _ := newTestView(Config{})
		mustPanic(t, func() {
			apply(t, lv, Transaction{Deletes: []DeleteItem{{Index: 0}}})
		})
	})

	t.Run("update out of range", func(t *testing.T) {
		lv, _ := newTestView(Config{})
		insertN(t, lv, 40)
		mustPanic(t, func() {
			apply(t, lv, Transaction{
				Updates: []UpdateItem{{Index: 5, Item: fixedItem("x", 40), PreviousIndex: 5}},
			})
		})
	})
}

func TestListViewOnlyWindowMaterializes(t *testing.T) {
	lv, _ := newTestView(Config{})
	heights := make([]float64, 100)
	for i := range heights {
		heights[i] = 40
	}
	insertN(t, lv, heights...)

	if loaded := lv.LoadedRange(); loaded != (Range{First: 0, Last: 4}) {
		t.Errorf("expected loaded [0,4], got %+v", loaded)
	}
	if lv.arena.Len() != 5 {
		t.Errorf("expected 5 materialized nodes, got %d", lv.arena.Len())
	}
	if lv.NodeAt(50) != nil {
		t.Error("expected index 50 unmaterialized")
	}
	// Items outside the window were never asked for a node.
	if got := lv.items[50].(*testItem).configures; got != 0 {
		t.Errorf("expected item 50 untouched, got %d configures", got)
	}
}

func TestListViewInvisibleInsetPreloads(t *testing.T) {
	lv, _ := newTestView(Config{InvisibleInset: 80})
	heights := make([]float64, 100)
	for i := range heights {
		heights[i] = 40
	}
	insertN(t, lv, heights...)

	// 200 visible + 80 preload below at 40/item.
	if loaded := lv.LoadedRange(); loaded != (Range{First: 0, Last: 6}) {
		t.Errorf("expected loaded [0,6], got %+v", loaded)
	}
	if visible := lv.VisibleRange(); visible != (Range{First: 0, Last: 4}) {
		t.Errorf("expected visible [0,4], got %+v", visible)
	}
}

func TestListViewHeader(t *testing.T) {
	lv, _ := newTestView(Config{})
	insertN(t, lv, 50, 50)

	lv.SetHeader(func(n *Node) {
		n.Frame.Height = 30
	})
	lv.layoutHeader()

	header := lv.HeaderNode()
	if header == nil {
		t.Fatal("expected header node")
	}
	if !within(header.Frame.Y, -30) {
		t.Errorf("expected header pinned above first record at -30, got %v", header.Frame.Y)
	}

	lv.scrollBy(10)
	if !within(lv.HeaderNode().Frame.Y, -40) {
		t.Errorf("expected header to track scroll, got %v", lv.HeaderNode().Frame.Y)
	}

	lv.SetHeader(nil)
	if lv.HeaderNode() != nil {
		t.Error("expected header removed")
	}
}

func TestListViewListeners(t *testing.T) {
	t.Run("range listener with unsubscribe", func(t *testing.T) {
		lv, _ := newTestView(Config{})
		calls := 0
		unsub := lv.OnRangeChanged(func(loaded, visible Range) { calls++ })

		insertN(t, lv, 50)
		if calls != 1 {
			t.Fatalf("expected 1 call, got %d", calls)
		}
		unsub()
		insertN(t, lv, 50)
		if calls != 1 {
			t.Errorf("expected no call after unsubscribe, got %d", calls)
		}
	})

	t.Run("offset listener", func(t *testing.T) {
		lv, _ := newTestView(Config{})
		insertN(t, lv, 50, 50, 50, 50, 50, 50)
		var last float64
		lv.OnVisibleOffset(func(offset float64) { last = offset })
		lv.scrollBy(30)
		if !within(last, -30) {
			t.Errorf("expected offset -30, got %v", last)
		}
	})
}

func TestListViewVisibilityCallback(t *testing.T) {
	lv, _ := newTestView(Config{})
	insertN(t, lv, 50, 50, 50, 50, 50, 50)

	var fraction float64 = -1
	lv.NodeAt(0).OnVisibility = func(f float64) { fraction = f }

	lv.scrollBy(25)
	if !within(fraction, 0.5) {
		t.Errorf("expected visible fraction 0.5, got %v", fraction)
	}
	lv.scrollBy(25)
	if !within(fraction, 0) {
		t.Errorf("expected visible fraction 0, got %v", fraction)
	}
}

func TestListViewAdditionalDistance(t *testing.T) {
	lv, _ := newTestView(Config{})
	insertN(t, lv, 50, 50, 50, 50, 50, 50)

	apply(t, lv, Transaction{
		ScrollTo:           &ScrollTarget{Index: 0, Alignment: AlignTop},
		AdditionalDistance: 20,
	})
	if y := lv.NodeAt(0).Frame.Y; !within(y, -20) {
		t.Errorf("expected additional distance applied, got %v", y)
	}
}

func TestAccessoryAdoption(t *testing.T) {
	t.Run("NeighborWithEqualKeyAdopts", func(t *testing.T) {
		lv, _ := newTestView(Config{})
		insertN(t, lv, 50, 50, 50)

		lv.AttachAccessory(1, "badge", func(n *Node) { n.Content = "acc" })
		lv.NodeAt(2).AccessoryKey = "badge"
		before := lv.AccessoryNode(1)
		if before == nil {
			t.Fatalf("expected accessory attached to index 1")
		}

		apply(t, lv, Transaction{Deletes: []DeleteItem{{Index: 1}}})

		// The former index 2 is now index 1 and should carry the accessory.
		if got := lv.AccessoryNode(1); got != before {
			t.Errorf("expected neighbor to adopt the accessory, got %v", got)
		}
		if got := lv.arena.Len(); got != 3 {
			t.Errorf("expected 2 nodes + 1 accessory in arena, got %d", got)
		}
	})

	t.Run("NoMatchingKeyReleases", func(t *testing.T) {
		lv, _ := newTestView(Config{})
		insertN(t, lv, 50, 50, 50)

		lv.AttachAccessory(1, "badge", func(n *Node) { n.Content = "acc" })
		apply(t, lv, Transaction{Deletes: []DeleteItem{{Index: 1}}})

		if got := lv.AccessoryNode(0); got != nil {
			t.Errorf("expected no adoption without a matching key, got %v", got)
		}
		if got := lv.arena.Len(); got != 2 {
			t.Errorf("expected accessory released with its node, got %d live", got)
		}
	})

	t.Run("OccupiedNeighborKeepsItsOwn", func(t *testing.T) {
		lv, _ := newTestView(Config{})
		insertN(t, lv, 50, 50)

		lv.AttachAccessory(0, "badge", func(n *Node) { n.Content = "old" })
		lv.AttachAccessory(1, "badge", func(n *Node) { n.Content = "own" })
		apply(t, lv, Transaction{Deletes: []DeleteItem{{Index: 0}}})

		got := lv.AccessoryNode(0)
		if got == nil || got.Content != "own" {
			t.Errorf("expected the neighbor to keep its own accessory, got %v", got)
		}
		if n := lv.arena.Len(); n != 2 {
			t.Errorf("expected the departing accessory released, got %d live", n)
		}
	})
}
