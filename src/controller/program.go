package controller

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"playbox/src/playback"
	"playbox/src/playback/element"
	"playbox/src/playlist"
	"playbox/src/util"
)

// ActiveChangeEvent is emitted when the foreground media controller is
// replaced by another one.
type ActiveChangeEvent struct {
	Item *playlist.Item
}

// ItemReadyEvent is emitted after an item's controller has been activated
// and is about to receive its first play attempt.
type ItemReadyEvent struct {
	Item *playlist.Item
}

// A slot binds a media controller to the playback surface it holds from the
// pool. Controllers without a local surface, such as cast receivers, have a
// nil surface.
type slot struct {
	ctrl     *MediaController
	surface  element.Surface
	listener <-chan interface{}
}

// A ProgramController owns the active media controller, an optional
// preloading background controller, and the swap mechanics between them.
// Only the active controller's events reach the outside.
type ProgramController struct {
	util.Emitter

	registry  *playback.Registry
	pool      *element.Pool
	container *element.Container

	lock       sync.Mutex
	active     *slot
	background *slot
	generation int

	adHold   element.Surface
	adActive bool

	casting bool
}

// NewProgramController assembles a program controller around a provider
// registry and a surface pool.
func NewProgramController(registry *playback.Registry, pool *element.Pool) *ProgramController {
	return &ProgramController{
		registry:  registry,
		pool:      pool,
		container: element.NewContainer(),
	}
}

// ActiveController returns the foreground media controller, or nil before
// the first activation.
func (p *ProgramController) ActiveController() *MediaController {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.active == nil {
		return nil
	}
	return p.active.ctrl
}

// BackgroundController returns the preloading controller, or nil.
func (p *ProgramController) BackgroundController() *MediaController {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.background == nil {
		return nil
	}
	return p.background.ctrl
}

// SetActiveItem makes item the foreground media. A background controller
// already bound to the same item is promoted instead of building a new one,
// so preloaded media is not loaded twice; a background controller bound to
// any other item is discarded, releasing its surface before a new one is
// acquired. The incoming controller's surface is acquired before the
// outgoing active controller releases its own, which keeps the displayed
// frame alive until the replacement can render.
func (p *ProgramController) SetActiveItem(ctx context.Context, item *playlist.Item) error {
	p.lock.Lock()
	if p.background != nil && p.background.ctrl.Item().ID == item.ID {
		next := p.background
		p.background = nil
		p.lock.Unlock()
		p.swapIn(next)
		p.Emit(ItemReadyEvent{Item: item})
		return nil
	}
	stale := p.background
	p.background = nil
	casting := p.casting
	active := p.active
	p.lock.Unlock()
	if stale != nil {
		p.teardown(stale)
	}

	// In cast mode the receiver keeps playing across item changes, so the
	// running controller is rebound rather than replaced.
	if casting && active != nil {
		active.ctrl.SwitchItem(item)
		p.Emit(ActiveChangeEvent{Item: item})
		p.Emit(ItemReadyEvent{Item: item})
		return nil
	}

	next, err := p.buildSlot(ctx, item)
	if err != nil {
		return err
	}
	p.swapIn(next)
	p.Emit(ItemReadyEvent{Item: item})
	return nil
}

// BackgroundLoad starts preloading item on a spare surface so a later
// SetActiveItem for the same item promotes it without reloading. A previous
// background item is discarded first.
func (p *ProgramController) BackgroundLoad(ctx context.Context, item *playlist.Item) error {
	p.ClearNext()
	next, err := p.buildSlot(ctx, item)
	if err != nil {
		return err
	}
	if err := next.ctrl.Preload(ctx); err != nil {
		p.teardown(next)
		return err
	}
	p.lock.Lock()
	p.background = next
	p.lock.Unlock()
	return nil
}

// ClearNext discards the background controller, if any.
func (p *ProgramController) ClearNext() {
	p.lock.Lock()
	next := p.background
	p.background = nil
	p.lock.Unlock()
	if next != nil {
		p.teardown(next)
	}
}

// StartCast moves playback onto a remote receiver. The local surface is
// given back to the pool and the receiver resumes from the local position.
// While casting, item changes rebind the receiver's controller in place.
func (p *ProgramController) StartCast(ctx context.Context, connect func() (playback.Provider, error)) error {
	p.lock.Lock()
	if p.casting {
		p.lock.Unlock()
		return nil
	}
	active := p.active
	p.lock.Unlock()
	if active == nil {
		return fmt.Errorf("cast: no active media")
	}

	receiver, err := connect()
	if err != nil {
		return err
	}

	item := resumedItem(active.ctrl)
	ctrl := NewMediaController(receiver, item)
	next := &slot{ctrl: ctrl}

	p.lock.Lock()
	p.casting = true
	p.lock.Unlock()

	p.swapIn(next)
	if _, err := p.playActive(ctx, playback.ReasonExternal); err != nil {
		log.WithField("item", item.ID).Warnf("Cast resume failed: %v", err)
	}
	return nil
}

// StopCast moves playback back onto a local surface, resuming from the
// receiver's position.
func (p *ProgramController) StopCast(ctx context.Context) error {
	p.lock.Lock()
	if !p.casting {
		p.lock.Unlock()
		return nil
	}
	active := p.active
	p.casting = false
	p.lock.Unlock()
	if active == nil {
		return nil
	}

	item := resumedItem(active.ctrl)
	next, err := p.buildSlot(ctx, item)
	if err != nil {
		p.lock.Lock()
		p.casting = true
		p.lock.Unlock()
		return err
	}
	p.swapIn(next)
	if _, err := p.playActive(ctx, playback.ReasonExternal); err != nil {
		log.WithField("item", item.ID).Warnf("Local resume failed: %v", err)
	}
	return nil
}

// Casting reports whether playback is routed to a remote receiver.
func (p *ProgramController) Casting() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.casting
}

// EnterAdMode pauses and detaches the content media so an instream ad can
// take over its surface. The surface is held until ExitAdMode.
func (p *ProgramController) EnterAdMode() (element.Surface, error) {
	p.lock.Lock()
	if p.adActive {
		s := p.adHold
		p.lock.Unlock()
		return s, nil
	}
	active := p.active
	p.lock.Unlock()
	if active == nil {
		return nil, fmt.Errorf("ad mode: no active media")
	}

	active.ctrl.Pause(playback.ReasonExternal)
	active.ctrl.SetBackground(true)
	surface := active.ctrl.Detach()

	p.lock.Lock()
	p.adActive = true
	p.adHold = surface
	p.lock.Unlock()
	return surface, nil
}

// ExitAdMode reattaches the content media to its surface and flushes events
// that were deferred during the break, including a held completion.
func (p *ProgramController) ExitAdMode() error {
	p.lock.Lock()
	if !p.adActive {
		p.lock.Unlock()
		return nil
	}
	surface := p.adHold
	p.adActive = false
	p.adHold = nil
	active := p.active
	p.lock.Unlock()
	if active == nil {
		return nil
	}

	if surface != nil {
		if err := active.ctrl.Attach(surface); err != nil {
			return err
		}
	}
	active.ctrl.SetBackground(false)
	// The break replaced the media on the shared surface. Rebind the content
	// so the next play reloads it at the position it was interrupted at. A
	// completion held during the break has been flushed above and must not be
	// discarded by a rebind.
	if surface != nil && active.ctrl.BeforeComplete() {
		active.ctrl.SwitchItem(resumedItem(active.ctrl))
	}
	return nil
}

// AdModeActive reports whether an instream break holds the content surface.
func (p *ProgramController) AdModeActive() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.adActive
}

// PlayActive starts playback on the active controller.
func (p *ProgramController) PlayActive(ctx context.Context, reason playback.Reason) (*PlayAttempt, error) {
	return p.playActive(ctx, reason)
}

// StopActive stops the active controller and discards the background one.
func (p *ProgramController) StopActive() {
	p.ClearNext()
	p.lock.Lock()
	active := p.active
	p.lock.Unlock()
	if active != nil {
		active.ctrl.Stop()
	}
}

// Destroy tears down both controllers and their surfaces.
func (p *ProgramController) Destroy() {
	p.ClearNext()
	p.lock.Lock()
	active := p.active
	p.active = nil
	p.generation++
	p.lock.Unlock()
	if active != nil {
		p.teardown(active)
	}
}

func (p *ProgramController) playActive(ctx context.Context, reason playback.Reason) (*PlayAttempt, error) {
	p.lock.Lock()
	active := p.active
	p.lock.Unlock()
	if active == nil {
		return nil, fmt.Errorf("play: no active media")
	}
	return active.ctrl.Play(ctx, reason), nil
}

// buildSlot selects a provider for the item and pairs it with a pool
// surface. The surface is acquired before any existing controller is torn
// down.
func (p *ProgramController) buildSlot(ctx context.Context, item *playlist.Item) (*slot, error) {
	factory, err := p.registry.Choose(item)
	if err != nil {
		return nil, err
	}
	surface, err := p.pool.Acquire()
	if err != nil {
		return nil, err
	}
	provider, err := factory.New(surface)
	if err != nil {
		p.pool.Release(surface)
		return nil, &playback.SetupError{Provider: factory.Name, Err: err}
	}
	return &slot{ctrl: NewMediaController(provider, item), surface: surface}, nil
}

// swapIn makes next the foreground slot. The incoming surface is mounted
// before the outgoing slot is destroyed.
func (p *ProgramController) swapIn(next *slot) {
	p.lock.Lock()
	prev := p.active
	p.active = next
	p.generation++
	gen := p.generation
	p.lock.Unlock()

	if next.surface != nil {
		p.container.Mount(next.surface)
	}
	next.listener = next.ctrl.Events().Listen()
	go p.pumpActive(next.listener, gen)
	p.Emit(ActiveChangeEvent{Item: next.ctrl.Item()})

	if prev != nil {
		p.teardown(prev)
	}
}

// pumpActive forwards the slot's events for as long as it remains the
// foreground controller. The channel is closed by teardown.
func (p *ProgramController) pumpActive(ch <-chan interface{}, gen int) {
	for event := range ch {
		p.lock.Lock()
		stale := p.generation != gen
		p.lock.Unlock()
		if stale {
			continue
		}
		p.Emit(event)
	}
}

func (p *ProgramController) teardown(s *slot) {
	if s.listener != nil {
		s.ctrl.Events().Unlisten(s.listener)
	}
	s.ctrl.Stop()
	s.ctrl.Destroy()
	if s.surface != nil {
		p.container.Unmount(s.surface)
		p.pool.Release(s.surface)
	}
}

// resumedItem copies the controller's item with its start time set to the
// current position, so the next backend picks up where this one left off.
func resumedItem(c *MediaController) *playlist.Item {
	src := c.Item()
	item := *src
	if pos := c.Position(); pos > 0 && pos != playback.LiveDuration {
		item.StartTime = pos
	}
	return &item
}
