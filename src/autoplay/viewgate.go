package autoplay

import "sync"

// DefaultViewThreshold is the intersection ratio at which a deferred play
// fires.
const DefaultViewThreshold = 0.5

// A ViewGate defers a play action until the playback surface becomes
// sufficiently visible. An explicit user play or pause before that cancels
// the deferred action.
type ViewGate struct {
	lock      sync.Mutex
	threshold float64
	ratio     float64
	pending   func()
}

// NewViewGate returns a gate that fires at the given intersection ratio.
// A non-positive threshold selects DefaultViewThreshold.
func NewViewGate(threshold float64) *ViewGate {
	if threshold <= 0 {
		threshold = DefaultViewThreshold
	}
	return &ViewGate{threshold: threshold}
}

// Defer schedules fn to run once the surface is viewable. If the surface
// already is, fn runs immediately. A previously deferred action is replaced.
func (g *ViewGate) Defer(fn func()) {
	g.lock.Lock()
	if g.ratio >= g.threshold {
		g.lock.Unlock()
		fn()
		return
	}
	g.pending = fn
	g.lock.Unlock()
}

// SetRatio reports the surface's current intersection ratio and fires the
// deferred action when it crosses the threshold.
func (g *ViewGate) SetRatio(ratio float64) {
	g.lock.Lock()
	g.ratio = ratio
	fn := g.pending
	if ratio < g.threshold || fn == nil {
		g.lock.Unlock()
		return
	}
	g.pending = nil
	g.lock.Unlock()
	fn()
}

// Viewable reports whether the surface currently meets the threshold.
func (g *ViewGate) Viewable() bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.ratio >= g.threshold
}

// Cancel drops a deferred action, if any. Called when the user plays or
// pauses explicitly before the surface becomes viewable.
func (g *ViewGate) Cancel() {
	g.lock.Lock()
	g.pending = nil
	g.lock.Unlock()
}
