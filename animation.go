package listkit

import (
	"math"
	"time"
)

// AnimationCurve maps normalized time t in [0,1] to normalized progress.
type AnimationCurve func(t float64) float64

// CurveLinear is constant-rate progress.
func CurveLinear(t float64) float64 { return t }

// CurveEaseInOut is a smoothstep ease.
func CurveEaseInOut(t float64) float64 { return t * t * (3 - 2*t) }

// CurveEaseOut decelerates toward the end value.
func CurveEaseOut(t float64) float64 { return 1 - (1-t)*(1-t) }

// AnimationKind selects one of the per-node animation slots. A node carries
// at most one animation per kind; attaching a new one supersedes the old.
type AnimationKind uint8

const (
	// AnimationHeight animates the node's committed frame height.
	AnimationHeight AnimationKind = iota
	// AnimationApparentHeight animates the height used for stacking,
	// independently of the committed frame (grow-in, collapse-out).
	AnimationApparentHeight
	// AnimationInsets animates the node's top content inset.
	AnimationInsets
	// AnimationTransitionOffset animates a visual slide offset that decays
	// to zero without moving the committed frame.
	AnimationTransitionOffset

	animationKindCount
)

// Animation interpolates a scalar from From to To over Duration.
type Animation struct {
	From, To float64
	Start    time.Time
	Duration time.Duration
	Curve    AnimationCurve

	// Update, when set, observes each advanced value on the owner context.
	Update func(value float64)
	// Completion, when set, fires once when the animation finishes or is
	// superseded by another animation of the same kind.
	Completion func(finished bool)
}

// NewAnimation builds an animation starting at now.
func NewAnimation(from, to float64, now time.Time, duration time.Duration, curve AnimationCurve) *Animation {
	if curve == nil {
		curve = CurveEaseInOut
	}
	return &Animation{From: from, To: to, Start: now, Duration: duration, Curve: curve}
}

// ValueAt returns the interpolated value at now, clamped to the end value.
func (a *Animation) ValueAt(now time.Time) float64 {
	if a.Duration <= 0 {
		return a.To
	}
	t := now.Sub(a.Start).Seconds() / a.Duration.Seconds()
	if t <= 0 {
		return a.From
	}
	if t >= 1 {
		return a.To
	}
	return a.From + (a.To-a.From)*a.Curve(t)
}

// FinishedAt reports whether the animation has run its full duration.
func (a *Animation) FinishedAt(now time.Time) bool {
	return a.Duration <= 0 || !now.Before(a.Start.Add(a.Duration))
}

func (a *Animation) cancel() {
	if a.Completion != nil {
		a.Completion(false)
		a.Completion = nil
	}
}

// defaultInsertDuration matches the default insertion transition length.
const defaultInsertDuration = 250 * time.Millisecond

func absf(v float64) float64 { return math.Abs(v) }
