package listkit

import (
	"fmt"
	"testing"
)

func benchView(b *testing.B, n int) *ListView {
	b.Helper()
	lv := New(SyncDispatcher{}, Config{
		Size:       Size{Width: 320, Height: 800},
		ManualTick: true,
	})
	var tx Transaction
	for i := 0; i < n; i++ {
		tx.Inserts = append(tx.Inserts, InsertItem{
			Index:         i,
			Item:          fixedItem(fmt.Sprintf("row %d", i), 48),
			PreviousIndex: -1,
		})
	}
	tx.Options = OptionSynchronous
	lv.Transaction(tx)
	return lv
}

func BenchmarkTransactionHeadInsertDelete(b *testing.B) {
	for _, size := range []int{100, 10000} {
		b.Run(fmt.Sprintf("Items_%d", size), func(b *testing.B) {
			lv := benchView(b, size)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				lv.Transaction(Transaction{
					Inserts: []InsertItem{{Index: 0, Item: fixedItem("new", 48), PreviousIndex: -1}},
					Options: OptionSynchronous,
				})
				lv.Transaction(Transaction{
					Deletes: []DeleteItem{{Index: 0}},
					Options: OptionSynchronous,
				})
			}
		})
	}
}

func BenchmarkScrollToFarTarget(b *testing.B) {
	lv := benchView(b, 10000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lv.Transaction(Transaction{
			ScrollTo: &ScrollTarget{Index: (i * 997) % 10000, Alignment: AlignTop},
			Options:  OptionSynchronous,
		})
	}
}

func BenchmarkScrollBy(b *testing.B) {
	lv := benchView(b, 10000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lv.scrollBy(5)
		if i%100 == 99 {
			// Jump back so the window never runs off the loaded range.
			lv.scrollBy(-500)
		}
	}
}

func BenchmarkSnapshotState(b *testing.B) {
	lv := benchView(b, 10000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		st := lv.snapshotState()
		_ = st
	}
}
