package instream

import (
	"context"
	"testing"
	"time"

	"playbox/src/controller"
	"playbox/src/playback"
	"playbox/src/playback/element"
	"playbox/src/playback/provider/local"
	"playbox/src/playlist"
)

func testMedia() map[string]element.Media {
	return map[string]element.Media{
		"file:///content.mp4": {Duration: 120 * time.Second},
		"ad://one":            {Duration: 10 * time.Second},
		"ad://two":            {Duration: 15 * time.Second},
	}
}

func testItem(id, uri string) *playlist.Item {
	return &playlist.Item{ID: id, Sources: []playlist.Source{{URI: uri, Type: "mp4"}}}
}

type fixture struct {
	program  *controller.ProgramController
	registry *playback.Registry
	surfaces []*element.SimSurface
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{registry: playback.NewRegistry(local.NewFactory())}
	pool := element.NewPool(2, func() element.Surface {
		s := element.NewSimSurface(testMedia())
		f.surfaces = append(f.surfaces, s)
		return s
	})
	f.program = controller.NewProgramController(f.registry, pool)
	t.Cleanup(f.program.Destroy)
	return f
}

// startContent activates the content item and waits for it to play.
func (f *fixture) startContent(t *testing.T) {
	t.Helper()
	if err := f.program.SetActiveItem(context.Background(), testItem("content", "file:///content.mp4")); err != nil {
		t.Fatalf("SetActiveItem: %v", err)
	}
	attempt, err := f.program.PlayActive(context.Background(), playback.ReasonInteraction)
	if err != nil {
		t.Fatalf("PlayActive: %v", err)
	}
	if err := attempt.Wait(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
}

// contentSurface returns the surface the active content controller holds.
func (f *fixture) contentSurface() *element.SimSurface {
	for _, s := range f.surfaces {
		if s.Source() != "" {
			return s
		}
	}
	return nil
}

func awaitAdEvent(t *testing.T, ch <-chan interface{}, match func(interface{}) bool) interface{} {
	t.Helper()
	for {
		select {
		case event := <-ch:
			if match(event) {
				return event
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for ad event")
			return nil
		}
	}
}

func TestAdapterPodPlaysInOrder(t *testing.T) {
	f := newFixture(t)
	f.startContent(t)
	surface := f.contentSurface()
	if surface == nil {
		t.Fatalf("No content surface")
	}

	adapter := NewAdapter(f.program, f.registry)
	l := adapter.Listen()
	defer adapter.Unlisten(l)

	if err := adapter.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if adapter.State() != StateSetup {
		t.Fatalf("State after init: %s", adapter.State())
	}

	pod := []*playlist.Item{testItem("ad1", "ad://one"), testItem("ad2", "ad://two")}
	if err := adapter.LoadItems(context.Background(), pod, 0); err != nil {
		t.Fatalf("LoadItems: %v", err)
	}

	first := awaitAdEvent(t, l, func(e interface{}) bool {
		_, ok := e.(AdPlayEvent)
		return ok
	}).(AdPlayEvent)
	if first.Item.ID != "ad1" || first.PodIndex != 0 || first.PodLength != 2 {
		t.Fatalf("First pod entry: %+v", first)
	}
	if adapter.State() != StatePlayingAd {
		t.Errorf("State while playing: %s", adapter.State())
	}

	// The ad runs on the content's surface.
	if surface.Source() != "ad://one" {
		t.Errorf("Ad source: %q", surface.Source())
	}

	surface.Advance(11 * time.Second)
	second := awaitAdEvent(t, l, func(e interface{}) bool {
		ap, ok := e.(AdPlayEvent)
		return ok && ap.PodIndex == 1
	}).(AdPlayEvent)
	if second.Item.ID != "ad2" {
		t.Fatalf("Second pod entry: %+v", second)
	}

	surface.Advance(16 * time.Second)
	awaitAdEvent(t, l, func(e interface{}) bool {
		_, ok := e.(AdCompleteEvent)
		return ok
	})

	// Content had playback ahead of it, so destroying the break resumes it.
	if action := adapter.Destroy(context.Background(), false); action != ResumePlay {
		t.Errorf("Destroy action: got %v, want ResumePlay", action)
	}
	if adapter.State() != StateDestroyed {
		t.Errorf("State after destroy: %s", adapter.State())
	}
	if f.program.AdModeActive() {
		t.Errorf("Ad mode still active")
	}
}

func TestAdapterFailedEntryAdvances(t *testing.T) {
	f := newFixture(t)
	f.startContent(t)

	adapter := NewAdapter(f.program, f.registry)
	l := adapter.Listen()
	defer adapter.Unlisten(l)

	if err := adapter.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	pod := []*playlist.Item{testItem("bad", "ad://missing"), testItem("ad2", "ad://two")}
	if err := adapter.LoadItems(context.Background(), pod, 0); err != nil {
		t.Fatalf("LoadItems: %v", err)
	}

	event := awaitAdEvent(t, l, func(e interface{}) bool {
		_, ok := e.(AdErrorEvent)
		return ok
	}).(AdErrorEvent)
	if event.Err.Tag != "bad" {
		t.Errorf("Failed entry tag: %q", event.Err.Tag)
	}

	// The failure is contained to the pod; the next entry plays.
	play := awaitAdEvent(t, l, func(e interface{}) bool {
		_, ok := e.(AdPlayEvent)
		return ok
	}).(AdPlayEvent)
	if play.Item.ID != "ad2" {
		t.Errorf("Entry after failure: %q", play.Item.ID)
	}

	adapter.Destroy(context.Background(), false)
}

func TestAdapterSkipOffset(t *testing.T) {
	f := newFixture(t)
	f.startContent(t)
	surface := f.contentSurface()

	adapter := NewAdapter(f.program, f.registry)
	l := adapter.Listen()
	defer adapter.Unlisten(l)

	if err := adapter.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	pod := []*playlist.Item{testItem("ad1", "ad://one")}
	if err := adapter.LoadItems(context.Background(), pod, 5*time.Second); err != nil {
		t.Fatalf("LoadItems: %v", err)
	}
	awaitAdEvent(t, l, func(e interface{}) bool {
		_, ok := e.(AdPlayEvent)
		return ok
	})

	if err := adapter.SkipAd(context.Background()); err != ErrSkipNotReady {
		t.Fatalf("Early skip: got %v, want ErrSkipNotReady", err)
	}

	surface.Advance(6 * time.Second)
	tick := awaitAdEvent(t, l, func(e interface{}) bool {
		at, ok := e.(AdTimeEvent)
		return ok && at.Skippable
	}).(AdTimeEvent)
	if tick.Position < 5*time.Second {
		t.Errorf("Skippable before offset: %v", tick.Position)
	}

	if err := adapter.SkipAd(context.Background()); err != nil {
		t.Fatalf("SkipAd: %v", err)
	}
	awaitAdEvent(t, l, func(e interface{}) bool {
		_, ok := e.(AdSkippedEvent)
		return ok
	})
	// Skipping the last entry completes the pod.
	awaitAdEvent(t, l, func(e interface{}) bool {
		_, ok := e.(AdCompleteEvent)
		return ok
	})

	adapter.Destroy(context.Background(), false)
}

func TestAdapterDestroyAfterContentComplete(t *testing.T) {
	f := newFixture(t)
	f.startContent(t)
	surface := f.contentSurface()

	// Play the content to its end before the break starts.
	surface.Advance(121 * time.Second)
	active := f.program.ActiveController()
	deadline := time.Now().Add(time.Second)
	for active.BeforeComplete() {
		if time.Now().After(deadline) {
			t.Fatalf("Content did not complete")
		}
		time.Sleep(time.Millisecond)
	}

	adapter := NewAdapter(f.program, f.registry)
	l := adapter.Listen()
	defer adapter.Unlisten(l)

	if err := adapter.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	pod := []*playlist.Item{testItem("ad1", "ad://one")}
	if err := adapter.LoadItems(context.Background(), pod, 0); err != nil {
		t.Fatalf("LoadItems: %v", err)
	}
	awaitAdEvent(t, l, func(e interface{}) bool {
		_, ok := e.(AdPlayEvent)
		return ok
	})
	surface.Advance(11 * time.Second)
	awaitAdEvent(t, l, func(e interface{}) bool {
		_, ok := e.(AdCompleteEvent)
		return ok
	})

	// The content was already done when the break began; there is no held
	// completion to replay, so the caller must advance.
	if action := adapter.Destroy(context.Background(), false); action != ResumeAdvance {
		t.Errorf("Destroy action: got %v, want ResumeAdvance", action)
	}
}

func TestAdapterDestroyNoResume(t *testing.T) {
	f := newFixture(t)
	f.startContent(t)

	adapter := NewAdapter(f.program, f.registry)
	if err := adapter.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if action := adapter.Destroy(context.Background(), true); action != ResumeNone {
		t.Errorf("Destroy action: got %v, want ResumeNone", action)
	}
	// A second destroy is a no-op.
	if action := adapter.Destroy(context.Background(), false); action != ResumeNone {
		t.Errorf("Repeated destroy: got %v", action)
	}
}

func TestAdapterInitGuards(t *testing.T) {
	f := newFixture(t)
	f.startContent(t)

	adapter := NewAdapter(f.program, f.registry)
	if err := adapter.LoadItems(context.Background(), []*playlist.Item{testItem("ad1", "ad://one")}, 0); err == nil {
		t.Errorf("LoadItems before init did not error")
	}
	if err := adapter.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := adapter.Init(); err == nil {
		t.Errorf("Second init did not error")
	}
	adapter.Destroy(context.Background(), true)
}
