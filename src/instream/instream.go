// Package instream plays advertisement breaks over the content media. The
// adapter borrows the content's playback surface, runs an ad pod on it with
// its own media controller and hands the surface back on destroy.
package instream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"playbox/src/controller"
	"playbox/src/playback"
	"playbox/src/playback/element"
	"playbox/src/playlist"
	"playbox/src/util"
)

// AdState tracks the adapter's lifecycle.
type AdState string

const (
	StateUninitialized AdState = "uninitialized"
	StateSetup         AdState = "setup"
	StatePlayingAd     AdState = "playing-ad"
	StatePausedAd      AdState = "paused-ad"
	StateDestroyed     AdState = "destroyed"
)

// ErrSkipNotReady is returned by SkipAd before the skip offset has elapsed.
var ErrSkipNotReady = errors.New("ad is not skippable yet")

// AdPlayEvent is emitted when a pod entry starts or resumes playing.
type AdPlayEvent struct {
	Item      *playlist.Item
	PodIndex  int
	PodLength int
}

// AdPauseEvent is emitted when the playing pod entry is paused.
type AdPauseEvent struct {
	Item *playlist.Item
}

// AdTimeEvent reports progress within the playing pod entry.
type AdTimeEvent struct {
	Position  time.Duration
	Duration  time.Duration
	Skippable bool
}

// AdErrorEvent reports a failed pod entry. Pod errors advance the pod and
// never enter the content's error state.
type AdErrorEvent struct {
	Err *playback.AdError
}

// AdSkippedEvent is emitted when a pod entry is skipped by the user.
type AdSkippedEvent struct {
	Item *playlist.Item
}

// AdCompleteEvent is emitted exactly once, after the last pod entry has
// completed, errored or been skipped.
type AdCompleteEvent struct{}

// ResumeAction is what Destroy did, or left for the caller to do, with the
// content after a break.
type ResumeAction int

const (
	// ResumeNone means the content was left alone.
	ResumeNone ResumeAction = iota
	// ResumePlay means content playback was resumed.
	ResumePlay
	// ResumeAdvance means the content had already completed before the
	// break began and the caller should advance past it; no held
	// completion will fire on its behalf.
	ResumeAdvance
)

// An Adapter runs one ad break. A new adapter is created per break.
type Adapter struct {
	util.Emitter

	program  *controller.ProgramController
	registry *playback.Registry

	lock           sync.Mutex
	state          AdState
	surface        element.Surface
	beforeComplete bool
	ad             *controller.MediaController
	adListener     <-chan interface{}
	pod            []*playlist.Item
	podIndex       int
	skipOffset     time.Duration
	skippable      bool
	completed      bool
}

// NewAdapter returns an uninitialized adapter for one ad break.
func NewAdapter(program *controller.ProgramController, registry *playback.Registry) *Adapter {
	return &Adapter{
		program:  program,
		registry: registry,
		state:    StateUninitialized,
	}
}

// State returns the adapter's lifecycle state.
func (a *Adapter) State() AdState {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.state
}

// Init enters ad mode: it records whether the content still has playback
// ahead of it and takes over the content's surface. Must be called before
// LoadItems.
func (a *Adapter) Init() error {
	a.lock.Lock()
	if a.state != StateUninitialized {
		a.lock.Unlock()
		return fmt.Errorf("instream: init in state %s", a.state)
	}
	a.lock.Unlock()

	active := a.program.ActiveController()
	beforeComplete := active == nil || active.BeforeComplete()

	surface, err := a.program.EnterAdMode()
	if err != nil {
		return err
	}

	a.lock.Lock()
	a.state = StateSetup
	a.surface = surface
	a.beforeComplete = beforeComplete
	a.lock.Unlock()
	return nil
}

// LoadItems starts an ad pod. Entries play in order; an entry that fails
// advances the pod instead of surfacing a content error. skipOffset of zero
// disables skipping.
func (a *Adapter) LoadItems(ctx context.Context, items []*playlist.Item, skipOffset time.Duration) error {
	if len(items) == 0 {
		return fmt.Errorf("instream: empty ad pod")
	}
	a.lock.Lock()
	if a.state != StateSetup {
		a.lock.Unlock()
		return fmt.Errorf("instream: load in state %s", a.state)
	}
	a.pod = items
	a.podIndex = -1
	a.skipOffset = skipOffset
	a.completed = false
	a.lock.Unlock()

	return a.advancePod(ctx)
}

// advancePod tears down the current pod entry's controller and starts the
// next one, or finishes the pod.
func (a *Adapter) advancePod(ctx context.Context) error {
	a.lock.Lock()
	a.teardownAdLocked()
	a.podIndex++
	if a.podIndex >= len(a.pod) {
		done := !a.completed
		a.completed = true
		a.state = StateSetup
		a.lock.Unlock()
		if done {
			a.Emit(AdCompleteEvent{})
		}
		return nil
	}
	item := a.pod[a.podIndex]
	surface := a.surface
	a.skippable = false
	a.lock.Unlock()

	factory, err := a.registry.Choose(item)
	if err != nil {
		a.podError(ctx, nil, item, err)
		return nil
	}
	provider, err := factory.New(surface)
	if err != nil {
		a.podError(ctx, nil, item, err)
		return nil
	}

	ad := controller.NewMediaController(provider, item)
	listener := ad.Events().Listen()
	a.lock.Lock()
	a.ad = ad
	a.adListener = listener
	a.lock.Unlock()

	go a.pumpAd(ctx, ad, listener)
	attempt := ad.Play(ctx, playback.ReasonExternal)
	go func() {
		if err := attempt.Wait(ctx); err != nil {
			a.podError(ctx, ad, item, err)
		}
	}()
	return nil
}

// podError advances past a failed pod entry. A single entry can fail through
// both its play attempt and its error event; whichever report claims the
// running controller first wins and the other is dropped.
func (a *Adapter) podError(ctx context.Context, failed *controller.MediaController, item *playlist.Item, err error) {
	a.lock.Lock()
	if a.state == StateDestroyed || a.ad != failed {
		a.lock.Unlock()
		return
	}
	a.teardownAdLocked()
	a.lock.Unlock()

	adErr := &playback.AdError{Tag: item.ID, Err: err}
	log.WithField("ad", item.ID).Warnf("Ad pod entry failed: %v", err)
	a.Emit(AdErrorEvent{Err: adErr})
	if err := a.advancePod(ctx); err != nil {
		log.Warnf("Ad pod advance failed: %v", err)
	}
}

// pumpAd translates the pod entry's playback events into the ad event
// vocabulary and drives pod advancement.
func (a *Adapter) pumpAd(ctx context.Context, ad *controller.MediaController, ch <-chan interface{}) {
	for event := range ch {
		if a.currentAd() != ad {
			return
		}
		switch t := event.(type) {
		case playback.StateChangeEvent:
			switch t.NewState {
			case playback.StatePlaying:
				a.setState(StatePlayingAd)
				a.lock.Lock()
				item, idx, n := a.pod[a.podIndex], a.podIndex, len(a.pod)
				a.lock.Unlock()
				a.Emit(AdPlayEvent{Item: item, PodIndex: idx, PodLength: n})
			case playback.StatePaused:
				a.setState(StatePausedAd)
				a.Emit(AdPauseEvent{Item: ad.Item()})
			}
		case playback.TimeEvent:
			a.lock.Lock()
			if a.skipOffset > 0 && t.Position >= a.skipOffset {
				a.skippable = true
			}
			skippable := a.skippable
			a.lock.Unlock()
			a.Emit(AdTimeEvent{Position: t.Position, Duration: t.Duration, Skippable: skippable})
		case playback.CompleteEvent:
			if err := a.advancePod(ctx); err != nil {
				log.Warnf("Ad pod advance failed: %v", err)
			}
			return
		case playback.ErrorEvent:
			a.podError(ctx, ad, ad.Item(), playback.NewMediaError(playback.CategoryGeneric, t.Code, t.Message))
			return
		}
	}
}

func (a *Adapter) currentAd() *controller.MediaController {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.ad
}

func (a *Adapter) setState(s AdState) {
	a.lock.Lock()
	if a.state != StateDestroyed {
		a.state = s
	}
	a.lock.Unlock()
}

// PlayAd resumes a paused pod entry.
func (a *Adapter) PlayAd(ctx context.Context) {
	if ad := a.currentAd(); ad != nil {
		ad.Play(ctx, playback.ReasonInteraction)
	}
}

// PauseAd pauses the playing pod entry.
func (a *Adapter) PauseAd() {
	if ad := a.currentAd(); ad != nil {
		ad.Pause(playback.ReasonInteraction)
	}
}

// SkipAd skips the playing pod entry. It is honored only once the skip
// offset has elapsed and behaves like that entry completing.
func (a *Adapter) SkipAd(ctx context.Context) error {
	a.lock.Lock()
	if !a.skippable {
		a.lock.Unlock()
		return ErrSkipNotReady
	}
	var item *playlist.Item
	if a.podIndex >= 0 && a.podIndex < len(a.pod) {
		item = a.pod[a.podIndex]
	}
	a.lock.Unlock()
	if item != nil {
		a.Emit(AdSkippedEvent{Item: item})
	}
	return a.advancePod(ctx)
}

// Destroy ends the break and hands the surface back to the content. Unless
// noResume is set, content with playback left in it is resumed; content
// that completed during the break advances through its held completion
// event, and content that had completed before the break is reported as
// ResumeAdvance for the caller to advance past.
func (a *Adapter) Destroy(ctx context.Context, noResume bool) ResumeAction {
	a.lock.Lock()
	if a.state == StateDestroyed {
		a.lock.Unlock()
		return ResumeNone
	}
	a.state = StateDestroyed
	a.teardownAdLocked()
	a.surface = nil
	wasBeforeComplete := a.beforeComplete
	a.lock.Unlock()

	active := a.program.ActiveController()
	contentDone := active != nil && !active.BeforeComplete()

	if err := a.program.ExitAdMode(); err != nil {
		log.Warnf("Ad mode exit failed: %v", err)
	}

	if noResume {
		return ResumeNone
	}
	switch {
	case !contentDone:
		if _, err := a.program.PlayActive(ctx, playback.ReasonExternal); err != nil {
			log.Warnf("Content resume failed: %v", err)
		}
		return ResumePlay
	case wasBeforeComplete:
		// Complete fired during the break; the held event replays it.
		return ResumeNone
	default:
		return ResumeAdvance
	}
}

func (a *Adapter) teardownAdLocked() {
	if a.ad == nil {
		return
	}
	a.ad.Events().Unlisten(a.adListener)
	a.ad.Detach()
	a.ad.Destroy()
	a.ad = nil
	a.adListener = nil
}
