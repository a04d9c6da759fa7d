package autoplay

import (
	"context"
	"errors"
	"testing"
	"time"

	"playbox/src/playback"
	"playbox/src/playback/element"
)

func probeSurface(policy func(muted bool) error) *element.SimSurface {
	s := element.NewSimSurface(map[string]element.Media{
		"file:///a.mp4": {Duration: 10 * time.Second},
	})
	s.PlayPolicy = policy
	s.SetSource("file:///a.mp4")
	return s
}

func TestProbeEnabled(t *testing.T) {
	s := probeSurface(nil)
	probe := NewProbe(NewCache(2))

	outcome, err := probe.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != OutcomeEnabled {
		t.Errorf("Outcome: got %v, want enabled", outcome)
	}
	if !s.Paused() {
		t.Errorf("Probe left the surface playing")
	}
}

func TestProbeMutedFallback(t *testing.T) {
	s := probeSurface(func(muted bool) error {
		if !muted {
			return element.ErrPlayRejected
		}
		return nil
	})
	probe := NewProbe(NewCache(2))

	outcome, err := probe.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != OutcomeMuted {
		t.Errorf("Outcome: got %v, want muted", outcome)
	}
	// The probe restores the surface's mute state.
	if s.Muted() {
		t.Errorf("Probe left the surface muted")
	}
}

func TestProbeDisabled(t *testing.T) {
	s := probeSurface(func(muted bool) error {
		return element.ErrPlayRejected
	})
	probe := NewProbe(NewCache(2))

	outcome, err := probe.Run(context.Background(), s)
	if !errors.Is(err, playback.ErrAutoplayDisabled) {
		t.Fatalf("Run: got %v, want ErrAutoplayDisabled", err)
	}
	if outcome != OutcomeDisabled {
		t.Errorf("Outcome: got %v, want disabled", outcome)
	}
}

func TestProbeCachesVerdicts(t *testing.T) {
	calls := 0
	s := probeSurface(func(muted bool) error {
		calls++
		return nil
	})
	cache := NewCache(2)
	probe := NewProbe(cache)

	if err := probe.Allowed(context.Background(), s, false); err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if err := probe.Allowed(context.Background(), s, false); err != nil {
		t.Fatalf("Cached Allowed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Backend probed %d times, want 1", calls)
	}

	// A cached refusal short-circuits without touching the backend.
	cache.Put(true, false)
	if err := probe.Allowed(context.Background(), s, true); !errors.Is(err, playback.ErrAutoplayDisabled) {
		t.Errorf("Cached refusal: got %v", err)
	}
	if calls != 1 {
		t.Errorf("Backend probed %d times after cached refusal", calls)
	}
}

func TestProbeTimeoutNotCached(t *testing.T) {
	s := probeSurface(func(muted bool) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})
	cache := NewCache(2)
	probe := NewProbe(cache)
	probe.Timeout = 50 * time.Millisecond

	err := probe.Allowed(context.Background(), s, false)
	if !errors.Is(err, playback.ErrAutoplayTimeout) {
		t.Fatalf("Allowed: got %v, want ErrAutoplayTimeout", err)
	}
	if cache.Len() != 0 {
		t.Errorf("Timeout verdict was cached")
	}
}

func TestCacheEviction(t *testing.T) {
	cache := NewCache(1)
	cache.Put(false, true)
	cache.Put(true, false)

	if _, ok := cache.Get(false); ok {
		t.Errorf("Oldest entry not evicted")
	}
	if allowed, ok := cache.Get(true); !ok || allowed {
		t.Errorf("Newest entry lost: %v, %v", allowed, ok)
	}
	if cache.Len() != 1 {
		t.Errorf("Cache holds %d entries, want 1", cache.Len())
	}
}

func TestCacheEvict(t *testing.T) {
	cache := NewCache(2)
	cache.Put(false, true)
	cache.Evict(false)
	if cache.Len() != 0 {
		t.Errorf("Entry survived eviction")
	}
	cache.Evict(true) // Evicting a missing entry is a no-op.
}

func TestViewGateDefer(t *testing.T) {
	gate := NewViewGate(0.5)

	fired := 0
	gate.Defer(func() { fired++ })
	if fired != 0 {
		t.Fatalf("Deferred action ran before the surface was viewable")
	}

	gate.SetRatio(0.3)
	if fired != 0 {
		t.Fatalf("Deferred action ran below the threshold")
	}
	gate.SetRatio(0.6)
	if fired != 1 {
		t.Fatalf("Deferred action did not fire at the threshold")
	}

	// The action fires once; later visibility changes do not replay it.
	gate.SetRatio(0.1)
	gate.SetRatio(0.9)
	if fired != 1 {
		t.Errorf("Deferred action fired %d times", fired)
	}
}

func TestViewGateImmediate(t *testing.T) {
	gate := NewViewGate(0.5)
	gate.SetRatio(1)

	fired := false
	gate.Defer(func() { fired = true })
	if !fired {
		t.Errorf("Action not run immediately on a viewable surface")
	}
}

func TestViewGateCancel(t *testing.T) {
	gate := NewViewGate(0.5)

	fired := false
	gate.Defer(func() { fired = true })
	gate.Cancel()
	gate.SetRatio(1)
	if fired {
		t.Errorf("Cancelled action still fired")
	}
	if !gate.Viewable() {
		t.Errorf("Viewable not reported after ratio update")
	}
}
