package listkit

import "time"

// Node is the materialized visual representation of a logical item. Nodes
// live in a NodeArena and are always manipulated on the owner context.
//
// Lifecycle: Unbound -> Materializing -> Bound(index) -> [AnimatingIn] ->
// Settled -> [AnimatingOut] -> Placeholder -> Detached.
type Node struct {
	// Index is the bound logical index, or -1 while unbound (ghosts,
	// freshly allocated slots).
	Index int

	// Frame is the committed frame in viewport coordinates.
	Frame Rect

	// Layout is the last layout produced by the item.
	Layout NodeLayout

	// Content is opaque item-owned state (rendered lines, view payloads).
	Content any

	// Accessory is an optional attached sub-node; AccessoryKey is the
	// opaque comparable identity used when a neighbor adopts it.
	Accessory    NodeHandle
	AccessoryKey any

	// OnVisibility, when set, observes the visible fraction of the node
	// after each settled transaction and each scroll step.
	OnVisibility func(fraction float64)

	apparentHeight   float64
	transitionOffset float64
	topInset         float64
	animations       [animationKindCount]*Animation
	temporary        bool
}

func (n *Node) reset() {
	*n = Node{Index: -1}
}

// Bound reports whether the node is bound to a logical index.
func (n *Node) Bound() bool { return n.Index >= 0 }

// Temporary reports whether the node is a lightweight stand-in used only to
// animate a departed item's remnant.
func (n *Node) Temporary() bool { return n.temporary }

// SetAnimation attaches an animation under the given kind, cancelling any
// animation previously attached under that kind.
func (n *Node) SetAnimation(kind AnimationKind, a *Animation) {
	if prev := n.animations[kind]; prev != nil {
		prev.cancel()
	}
	n.animations[kind] = a
}

// Animation returns the in-flight animation of the given kind, or nil.
func (n *Node) Animation(kind AnimationKind) *Animation {
	return n.animations[kind]
}

// ApparentHeight is the height used for stacking: the in-flight apparent
// height animation when present, the committed frame height otherwise.
func (n *Node) ApparentHeight() float64 {
	return n.apparentHeight
}

// TransitionOffset is the current visual slide offset.
func (n *Node) TransitionOffset() float64 {
	return n.transitionOffset
}

// VisualFrame is the committed frame shifted by the transition offset; this
// is what a renderer should draw.
func (n *Node) VisualFrame() Rect {
	return n.Frame.Offset(n.transitionOffset)
}

// setFrame commits a frame and, when no apparent-height animation is in
// flight, keeps the apparent height in step with it.
func (n *Node) setFrame(f Rect) {
	n.Frame = f
	if n.animations[AnimationApparentHeight] == nil {
		n.apparentHeight = f.Height
	}
}

// advanceAnimations steps every attached animation to now, firing updates
// and completions. Returns true while any animation remains in flight.
func (n *Node) advanceAnimations(now time.Time) bool {
	active := false
	for kind := AnimationKind(0); kind < animationKindCount; kind++ {
		a := n.animations[kind]
		if a == nil {
			continue
		}
		v := a.ValueAt(now)
		n.applyAnimatedValue(kind, v)
		if a.Update != nil {
			a.Update(v)
		}
		if a.FinishedAt(now) {
			n.animations[kind] = nil
			if a.Completion != nil {
				a.Completion(true)
			}
			continue
		}
		active = true
	}
	return active
}

func (n *Node) applyAnimatedValue(kind AnimationKind, v float64) {
	switch kind {
	case AnimationHeight:
		n.Frame.Height = v
	case AnimationApparentHeight:
		n.apparentHeight = v
	case AnimationInsets:
		n.topInset = v
	case AnimationTransitionOffset:
		n.transitionOffset = v
	}
}

// hasAnimations reports whether any animation slot is occupied.
func (n *Node) hasAnimations() bool {
	for _, a := range n.animations {
		if a != nil {
			return true
		}
	}
	return false
}

// cancelAnimations drops every in-flight animation without applying end
// values. Used when a node is detached mid-animation.
func (n *Node) cancelAnimations() {
	for kind := range n.animations {
		if a := n.animations[kind]; a != nil {
			a.cancel()
			n.animations[kind] = nil
		}
	}
}
