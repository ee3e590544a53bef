package main

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"listkit"
)

// Headless stress driver: hammers a ListView with random transactions on
// the production loop dispatcher and reports throughput. Useful for
// profiling the reconciliation path without a terminal UI in the way.

var (
	flagItems        int
	flagTransactions int
	flagSeed         int64
	flagAnimate      bool
	flagTick         bool
)

type cell struct {
	id     int
	height float64
}

func (c *cell) Selectable() bool { return true }

func (c *cell) ConfigureNode(d listkit.Dispatcher, node *listkit.Node, params listkit.LayoutParams, synchronous bool, prev, next listkit.Item, completion func(listkit.NodeLayout, func())) {
	layout := listkit.NodeLayout{Size: listkit.Size{Width: params.Width, Height: c.height}}
	id := c.id
	completion(layout, func() { node.Content = id })
}

func (c *cell) UpdateNode(d listkit.Dispatcher, node *listkit.Node, params listkit.LayoutParams, prev, next listkit.Item, spec *listkit.TransitionSpec, completion func(listkit.NodeLayout, func())) {
	c.ConfigureNode(d, node, params, true, prev, next, completion)
}

func run(cmd *cobra.Command, args []string) error {
	rng := rand.New(rand.NewSource(flagSeed))
	d := listkit.NewLoopDispatcher()
	defer d.Stop()

	lv := listkit.New(d, listkit.Config{
		Size:       listkit.Size{Width: 80, Height: 40},
		ManualTick: !flagTick,
	})

	nextID := 0
	newCell := func() *cell {
		c := &cell{id: nextID, height: float64(1 + nextID%4)}
		nextID++
		return c
	}

	await := func(tx listkit.Transaction) {
		done := make(chan struct{})
		tx.Completion = func(loaded, visible listkit.Range, _ any) { close(done) }
		lv.Transaction(tx)
		<-done
	}

	var seed listkit.Transaction
	for i := 0; i < flagItems; i++ {
		seed.Inserts = append(seed.Inserts, listkit.InsertItem{Index: i, Item: newCell(), PreviousIndex: -1})
	}
	await(seed)

	var opts listkit.Options
	if flagAnimate {
		opts = listkit.OptionAnimateInsertion
	}

	n := flagItems
	start := time.Now()
	for i := 0; i < flagTransactions; i++ {
		var tx listkit.Transaction
		tx.Options = opts
		switch op := rng.Intn(5); {
		case op == 0 || n == 0:
			tx.Inserts = []listkit.InsertItem{{Index: rng.Intn(n + 1), Item: newCell(), PreviousIndex: -1}}
			n++
		case op == 1:
			tx.Deletes = []listkit.DeleteItem{{Index: rng.Intn(n)}}
			n--
		case op == 2:
			idx := rng.Intn(n)
			tx.Updates = []listkit.UpdateItem{{Index: idx, Item: newCell(), PreviousIndex: idx}}
		case op == 3:
			tx.ScrollTo = &listkit.ScrollTarget{Index: rng.Intn(n), Alignment: listkit.AlignTop}
		default:
			// Replace head, reusing its node.
			tx.Deletes = []listkit.DeleteItem{{Index: 0}}
			tx.Inserts = []listkit.InsertItem{{Index: 0, Item: newCell(), PreviousIndex: 0}}
		}
		await(tx)
	}
	elapsed := time.Since(start)

	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		width = w
	}
	rule := strings.Repeat("─", min(width, 60))

	var loaded listkit.Range
	var items int
	sync := make(chan struct{})
	d.Async(func() {
		loaded = lv.LoadedRange()
		items = lv.ItemCount()
		close(sync)
	})
	<-sync

	fmt.Println(rule)
	fmt.Printf("transactions   %d\n", flagTransactions)
	fmt.Printf("elapsed        %v\n", elapsed.Round(time.Microsecond))
	fmt.Printf("throughput     %.0f tx/s\n", float64(flagTransactions)/elapsed.Seconds())
	fmt.Printf("final items    %d (loaded [%d,%d])\n", items, loaded.First, loaded.Last)
	fmt.Println(rule)
	return nil
}

func main() {
	root := &cobra.Command{
		Use:   "stress",
		Short: "Stress a list view with random transactions",
		RunE:  run,
	}
	root.Flags().IntVar(&flagItems, "items", 1000, "initial item count")
	root.Flags().IntVar(&flagTransactions, "transactions", 10000, "transactions to run")
	root.Flags().Int64Var(&flagSeed, "seed", 1, "rng seed")
	root.Flags().BoolVar(&flagAnimate, "animate", false, "animate inserts and deletes")
	root.Flags().BoolVar(&flagTick, "tick", false, "run the real animation ticker")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
