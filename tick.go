package listkit

import (
	"sync/atomic"
	"time"

	"github.com/charmbracelet/harmonica"
)

// SpringConfig tunes the overscroll bounce spring. Values are plain
// mass-spring-damper coefficients; the integrator is semi-implicit Euler.
type SpringConfig struct {
	Stiffness float64
	Damping   float64
	Mass      float64
	// Epsilon terminates the spring once both displacement and velocity
	// fall below it.
	Epsilon float64
}

// DefaultSpringConfig is a critically-damped-feeling bounce.
var DefaultSpringConfig = SpringConfig{
	Stiffness: 500,
	Damping:   35,
	Mass:      1,
	Epsilon:   0.05,
}

// bounceState is the overscroll displacement spring: x is how far the stack
// currently sits beyond its snapped position.
type bounceState struct {
	x, v   float64
	active bool
}

// step advances the spring by dt and returns the displacement delta to
// apply to the stack.
func (b *bounceState) step(cfg SpringConfig, dt float64) float64 {
	if !b.active {
		return 0
	}
	force := -cfg.Stiffness*b.x - cfg.Damping*b.v
	b.v += force * dt / cfg.Mass
	old := b.x
	b.x += b.v * dt
	if absf(b.x) < cfg.Epsilon && absf(b.v) < cfg.Epsilon {
		// Snap home and terminate.
		delta := -old
		b.x, b.v = 0, 0
		b.active = false
		return delta
	}
	return b.x - old
}

// scrollAnimation is the spring-driven scroll positioning used for animated
// scroll-to-item: a harmonica spring chases the remaining distance.
type scrollAnimation struct {
	spring   harmonica.Spring
	pos, vel float64
	target   float64
}

func (lv *ListView) beginScrollAnimation(offset float64) {
	lv.scrollAnim = &scrollAnimation{
		spring: harmonica.NewSpring(harmonica.FPS(int(time.Second/lv.cfg.TickInterval)), lv.cfg.ScrollFrequency, lv.cfg.ScrollDamping),
		target: offset,
	}
	lv.tick.ensure()
}

// stepScrollAnimation advances the positioning spring, returning true while
// it is still in flight.
func (lv *ListView) stepScrollAnimation() bool {
	sa := lv.scrollAnim
	if sa == nil {
		return false
	}
	pos, vel := sa.spring.Update(sa.pos, sa.vel, sa.target)
	lv.applyOffset(pos - sa.pos)
	sa.pos, sa.vel = pos, vel
	if absf(sa.target-sa.pos) < 0.1 && absf(sa.vel) < 0.1 {
		lv.applyOffset(sa.target - sa.pos)
		lv.scrollAnim = nil
		return false
	}
	return true
}

// tickDriver advances all in-flight dynamics at display cadence and stops
// itself once nothing remains in flight. ensure is idempotent: requesting a
// tick while running is a no-op beyond registration.
//
// active is cleared from owner-context callbacks while the loop goroutine
// blocks on its ticker, so each loop carries the generation it was started
// with: a loop whose generation has been superseded retires without
// dispatching, and at most one loop ever feeds step per interval.
type tickDriver struct {
	lv     *ListView
	active atomic.Bool
	gen    atomic.Uint64
}

func (t *tickDriver) ensure() {
	if !t.active.CompareAndSwap(false, true) {
		return
	}
	gen := t.gen.Add(1)
	if t.lv.cfg.ManualTick {
		return
	}
	go t.loop(gen)
}

// alive reports whether the loop started with gen should keep running.
func (t *tickDriver) alive(gen uint64) bool {
	return t.active.Load() && t.gen.Load() == gen
}

func (t *tickDriver) loop(gen uint64) {
	ticker := time.NewTicker(t.lv.cfg.TickInterval)
	defer ticker.Stop()
	var stopped <-chan struct{}
	if s, ok := t.lv.d.(interface{ Done() <-chan struct{} }); ok {
		stopped = s.Done()
	}
	for {
		select {
		case <-ticker.C:
			if !t.alive(gen) {
				return
			}
			t.lv.d.Async(func() {
				if !t.lv.step(t.lv.clock()) {
					t.active.Store(false)
				}
			})
		case <-stopped:
			// The owner context is gone; dispatched steps would never run.
			t.active.Store(false)
			return
		}
	}
}

// Step advances one tick at now: named animations, the bounce spring, the
// scroll spring, and any pending reorder-drag check. Returns true while
// anything remains in flight. Exposed for manual-tick configurations; must
// run on the owner context.
func (lv *ListView) Step(now time.Time) bool {
	active := lv.step(now)
	if !active {
		lv.tick.active.Store(false)
	}
	return active
}

func (lv *ListView) step(now time.Time) bool {
	active := false

	// Ghost completions may strip records mid-walk, so advance a snapshot
	// of handles rather than the live slice.
	handles := make([]NodeHandle, 0, len(lv.records)+1)
	for _, rec := range lv.records {
		handles = append(handles, rec.Handle)
	}
	if !lv.header.IsNil() {
		handles = append(handles, lv.header)
	}
	for _, h := range handles {
		if node := lv.arena.Get(h); node != nil {
			if node.advanceAnimations(now) {
				active = true
			}
		}
	}
	lv.restack(now)

	dt := lv.cfg.TickInterval.Seconds()
	if lv.bounce.active {
		lv.applyOffset(lv.bounce.step(lv.cfg.Spring, dt))
		if lv.bounce.active {
			active = true
		}
	}
	if lv.stepScrollAnimation() {
		active = true
	}
	// Nothing else owns the scroll position: keep the stack snapped so a
	// collapse at a known content edge slides the list instead of leaving
	// a gap.
	if !lv.bounce.active && lv.scrollAnim == nil {
		lv.applyOffset(lv.snapOffset())
	}
	if lv.reorderCheck != nil {
		if lv.reorderCheck(now) {
			active = true
		} else {
			lv.reorderCheck = nil
		}
	}

	lv.layoutHeader()
	lv.layoutOverscrollBackdrop()
	lv.refreshIndicator()
	lv.notifyVisibility()
	return active
}

// SetReorderCheck installs a per-tick reordering-drag feedback probe. The
// tick keeps running while fn returns true; returning false uninstalls it.
func (lv *ListView) SetReorderCheck(fn func(now time.Time) bool) {
	lv.d.Async(func() {
		lv.reorderCheck = fn
		if fn != nil {
			lv.tick.ensure()
		}
	})
}
