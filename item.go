package listkit

import "time"

// LayoutParams carries the horizontal layout inputs an item needs to
// produce or update a node.
type LayoutParams struct {
	Width      float64
	LeftInset  float64
	RightInset float64
}

// NodeLayout is the result of measuring an item at given layout params.
type NodeLayout struct {
	Size   Size
	Insets Insets
}

// TransitionSpec describes how an in-place update should animate.
type TransitionSpec struct {
	Duration time.Duration
	Curve    AnimationCurve
}

// Item is an opaque content descriptor. Identity is positional: the engine
// never compares items, it only asks them to produce or update nodes.
//
// Both capabilities must invoke completion exactly once. When synchronous is
// true the whole call must run on the calling goroutine; otherwise the item
// may route measurement through d.Background, but completion must be
// delivered via d.Async. The returned apply closure runs on the owner
// context and is the only place node bindings may change.
type Item interface {
	// Selectable reports whether the item participates in selection.
	Selectable() bool

	// ConfigureNode fills a freshly allocated node for this item.
	ConfigureNode(d Dispatcher, node *Node, params LayoutParams, synchronous bool, prev, next Item, completion func(layout NodeLayout, apply func()))

	// UpdateNode updates an existing node in place, optionally animating
	// per spec. A nil spec means the update applies immediately.
	UpdateNode(d Dispatcher, node *Node, params LayoutParams, prev, next Item, spec *TransitionSpec, completion func(layout NodeLayout, apply func()))
}

// ReadySignaler is implemented by items whose node content loads resources.
// With OptionPreferSynchronousLoad the replay waits on Ready up to the
// configured deadline, then proceeds regardless.
type ReadySignaler interface {
	Ready() <-chan struct{}
}
