package listkit

import "sync"

// Stand-in pool - recycles the lightweight ghost payloads used when a
// departing item's node was claimed for reuse and only its visual remnant
// animates out.

// Standin is the content payload of a temporary ghost node. Snapshot is an
// opaque copy of whatever the departed node was showing; items that want a
// faithful remnant implement ContentSnapshotter.
type Standin struct {
	Snapshot any
}

// ContentSnapshotter is implemented by node content that can produce a
// cheap visual copy of itself for a stand-in ghost.
type ContentSnapshotter interface {
	SnapshotContent() any
}

var standinPool = sync.Pool{
	New: func() any { return &Standin{} },
}

// acquireStandin takes a stand-in from the pool, capturing a snapshot of
// the reference node's content when it offers one.
func acquireStandin(reference *Node) *Standin {
	s := standinPool.Get().(*Standin)
	s.Snapshot = nil
	if reference != nil {
		if snap, ok := reference.Content.(ContentSnapshotter); ok {
			s.Snapshot = snap.SnapshotContent()
		}
	}
	return s
}

// releaseStandin returns a stand-in to the pool.
func releaseStandin(s *Standin) {
	if s == nil {
		return
	}
	s.Snapshot = nil
	standinPool.Put(s)
}
