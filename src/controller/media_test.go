package controller

import (
	"context"
	"testing"
	"time"

	"playbox/src/model"
	"playbox/src/playback"
	"playbox/src/playback/element"
	"playbox/src/playback/provider/local"
	"playbox/src/playlist"
)

func testMedia() map[string]element.Media {
	return map[string]element.Media{
		"file:///a.mp4": {Duration: 120 * time.Second},
		"file:///b.mp4": {Duration: 30 * time.Second},
		"file:///c.mp4": {Duration: 45 * time.Second},
	}
}

func testItem(id, uri string) *playlist.Item {
	return &playlist.Item{ID: id, Sources: []playlist.Source{{URI: uri, Type: "mp4"}}}
}

func newTestController(t *testing.T) (*MediaController, *element.SimSurface) {
	t.Helper()
	s := element.NewSimSurface(testMedia())
	c := NewMediaController(local.New(s), testItem("a", "file:///a.mp4"))
	t.Cleanup(c.Destroy)
	return c, s
}

func awaitEvent(t *testing.T, ch <-chan interface{}, match func(interface{}) bool) interface{} {
	t.Helper()
	for {
		select {
		case event := <-ch:
			if match(event) {
				return event
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for event")
			return nil
		}
	}
}

func awaitState(t *testing.T, ch <-chan interface{}, state playback.State) {
	t.Helper()
	awaitEvent(t, ch, func(e interface{}) bool {
		sc, ok := e.(playback.StateChangeEvent)
		return ok && sc.NewState == state
	})
}

func TestPlayLoadsAndStarts(t *testing.T) {
	c, _ := newTestController(t)
	l := c.Listen()
	defer c.Unlisten(l)

	attempt := c.Play(context.Background(), playback.ReasonInteraction)
	if err := attempt.Wait(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	awaitState(t, l, playback.StatePlaying)

	if !c.Loaded() {
		t.Errorf("Item not marked loaded")
	}
	if got := c.Model().PlayReason(); got != playback.ReasonInteraction {
		t.Errorf("Play reason: got %v", got)
	}
}

func TestPlayIdempotent(t *testing.T) {
	s := element.NewSimSurface(testMedia())
	gate := make(chan struct{})
	s.PlayPolicy = func(muted bool) error {
		<-gate
		return nil
	}
	c := NewMediaController(local.New(s), testItem("a", "file:///a.mp4"))
	t.Cleanup(c.Destroy)

	first := c.Play(context.Background(), playback.ReasonInteraction)
	second := c.Play(context.Background(), playback.ReasonInteraction)
	if first != second {
		t.Fatalf("Concurrent play calls returned distinct attempts")
	}
	close(gate)
	if err := first.Wait(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}

	// A later call after the attempt concluded starts a fresh one.
	third := c.Play(context.Background(), playback.ReasonInteraction)
	if err := third.Wait(context.Background()); err != nil {
		t.Fatalf("Replay: %v", err)
	}
}

func TestPlayNoStateFlicker(t *testing.T) {
	c, _ := newTestController(t)
	l := c.Listen()
	defer c.Unlisten(l)

	attempt := c.Play(context.Background(), playback.ReasonInteraction)
	if err := attempt.Wait(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}

	// The transition into playing passes through no intermediate paused
	// state.
	for {
		event := awaitEvent(t, l, func(e interface{}) bool {
			_, ok := e.(playback.StateChangeEvent)
			return ok
		}).(playback.StateChangeEvent)
		if event.NewState == playback.StatePlaying {
			break
		}
		if event.NewState == playback.StatePaused {
			t.Fatalf("State flickered through paused during play start")
		}
	}
}

func TestSeekClampedToDuration(t *testing.T) {
	c, s := newTestController(t)
	l := c.Listen()
	defer c.Unlisten(l)

	if err := c.Play(context.Background(), playback.ReasonInteraction).Wait(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	awaitEvent(t, l, func(e interface{}) bool {
		_, ok := e.(playback.MetaEvent)
		return ok
	})

	c.Seek(130*time.Second, playback.ReasonInteraction)
	want := 120*time.Second - playback.SeekEndPadding
	if got := c.Model().Position(); got != want {
		t.Errorf("Model position: got %v, want %v", got, want)
	}
	if got := s.Position(); got != want {
		t.Errorf("Surface position: got %v, want %v", got, want)
	}
}

func TestPauseCancelsAttempt(t *testing.T) {
	s := element.NewSimSurface(testMedia())
	release := make(chan struct{})
	s.PlayPolicy = func(muted bool) error {
		<-release
		return nil
	}
	c := NewMediaController(local.New(s), testItem("a", "file:///a.mp4"))
	t.Cleanup(c.Destroy)

	attempt := c.Play(context.Background(), playback.ReasonInteraction)
	c.Pause(playback.ReasonInteraction)
	close(release)

	if !attempt.Cancelled() {
		t.Errorf("Pause did not cancel the pending attempt")
	}
	attempt.Wait(context.Background())
}

func TestDetachAttachRoundtrip(t *testing.T) {
	c, s := newTestController(t)
	l := c.Listen()
	defer c.Unlisten(l)

	if err := c.Play(context.Background(), playback.ReasonInteraction).Wait(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	awaitState(t, l, playback.StatePlaying)
	awaitEvent(t, l, func(e interface{}) bool {
		_, ok := e.(playback.FirstFrameEvent)
		return ok
	})

	detached := c.Detach()
	if detached != element.Surface(s) {
		t.Fatalf("Detach did not return the surface")
	}
	if c.Attached() {
		t.Fatalf("Controller still attached")
	}

	// Events raised while detached are held back until reattach.
	c.Stop()
	select {
	case event := <-l:
		t.Fatalf("Event leaked while detached: %#v", event)
	case <-time.After(100 * time.Millisecond):
	}

	if err := c.Attach(detached); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	awaitState(t, l, playback.StateIdle)
}

func TestBackgroundHoldsComplete(t *testing.T) {
	c, s := newTestController(t)
	l := c.Listen()
	defer c.Unlisten(l)

	if err := c.Play(context.Background(), playback.ReasonInteraction).Wait(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	awaitState(t, l, playback.StatePlaying)

	c.SetBackground(true)
	s.Advance(121 * time.Second)
	awaitState(t, l, playback.StateComplete)

	select {
	case event := <-l:
		if _, ok := event.(playback.CompleteEvent); ok {
			t.Fatalf("Complete leaked while in background")
		}
	case <-time.After(100 * time.Millisecond):
	}
	if c.BeforeComplete() {
		t.Errorf("BeforeComplete still true after held completion")
	}

	c.SetBackground(false)
	awaitEvent(t, l, func(e interface{}) bool {
		_, ok := e.(playback.CompleteEvent)
		return ok
	})
}

func TestSwitchItem(t *testing.T) {
	c, _ := newTestController(t)

	if err := c.Play(context.Background(), playback.ReasonInteraction).Wait(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	oldModel := c.Model()

	c.SwitchItem(testItem("b", "file:///b.mp4"))
	if c.Item().ID != "b" {
		t.Errorf("Item not switched: %q", c.Item().ID)
	}
	if c.Model() == oldModel {
		t.Errorf("Media model not replaced on item switch")
	}
	if c.Loaded() {
		t.Errorf("Controller still marked loaded after item switch")
	}
}

func TestPreload(t *testing.T) {
	c, s := newTestController(t)

	if err := c.Preload(context.Background()); err != nil {
		t.Fatalf("Preload: %v", err)
	}
	if !c.Loaded() {
		t.Errorf("Item not marked loaded")
	}
	if s.Source() != "file:///a.mp4" {
		t.Errorf("Source not loaded: %q", s.Source())
	}
	if !s.Paused() {
		t.Errorf("Preload started playback")
	}
	if got := c.Model().GetDefault(model.KeyPreloaded, false); got != true {
		t.Errorf("Preloaded flag not set")
	}
}
