// Package controller implements the layering that decouples what should be
// playing from what the backend surface is doing: the per-item
// MediaController and the ProgramController orchestrating active and
// background controllers.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"playbox/src/model"
	"playbox/src/playback"
	"playbox/src/playback/element"
	"playbox/src/playlist"
	"playbox/src/util"
)

// A PlayAttempt is a cancelable pending play operation. Play calls made
// while an attempt is in flight return the same attempt.
type PlayAttempt struct {
	token *util.CancelToken
	done  chan struct{}

	lock sync.Mutex
	err  error
}

func newPlayAttempt() *PlayAttempt {
	return &PlayAttempt{
		token: util.NewCancelToken(),
		done:  make(chan struct{}),
	}
}

// Wait blocks until the attempt concludes or the context expires.
func (a *PlayAttempt) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		a.lock.Lock()
		defer a.lock.Unlock()
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel requests cooperative cancellation of the attempt. Side effects that
// the backend already performed are reconciled, not undone.
func (a *PlayAttempt) Cancel() {
	a.token.Cancel()
}

func (a *PlayAttempt) Cancelled() bool {
	return a.token.Cancelled()
}

func (a *PlayAttempt) finish(err error) {
	a.lock.Lock()
	a.err = err
	a.lock.Unlock()
	close(a.done)
}

// A MediaController pairs one provider with one playlist item and owns the
// item's media model.
type MediaController struct {
	util.Emitter

	provider   playback.Provider
	item       *playlist.Item
	mediaModel *model.MediaModel

	listener <-chan interface{}
	pumpStop chan struct{}

	lock            sync.Mutex
	loaded          bool
	attempt         *PlayAttempt
	attached        bool
	background      bool
	deferred        []interface{}
	pendingComplete bool
	destroyed       bool
}

// NewMediaController pairs the provider with the item. The controller takes
// ownership of the provider.
func NewMediaController(provider playback.Provider, item *playlist.Item) *MediaController {
	c := &MediaController{
		provider:   provider,
		item:       item,
		mediaModel: model.NewMediaModel(item),
		listener:   provider.Events().Listen(),
		pumpStop:   make(chan struct{}),
		attached:   true,
	}
	go c.pump()
	return c
}

// Item returns the playlist item this controller is currently bound to.
func (c *MediaController) Item() *playlist.Item {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.item
}

// Model returns the per-item media model.
func (c *MediaController) Model() *model.MediaModel {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.mediaModel
}

// SwitchItem rebinds the controller to a new item, discarding the previous
// item's media model. Used when the active controller can play the new
// source directly, such as in cast mode.
func (c *MediaController) SwitchItem(item *playlist.Item) {
	c.lock.Lock()
	attempt := c.attempt
	c.item = item
	c.mediaModel = model.NewMediaModel(item)
	c.loaded = false
	c.pendingComplete = false
	c.deferred = nil
	c.lock.Unlock()
	if attempt != nil {
		attempt.Cancel()
	}
}

// Provider returns the provider driving this controller's backend.
func (c *MediaController) Provider() playback.Provider { return c.provider }

// Position returns the current playback position from the media model.
func (c *MediaController) Position() time.Duration { return c.Model().Position() }

// Duration returns the media duration from the media model.
func (c *MediaController) Duration() time.Duration { return c.Model().Duration() }

// Loaded reports whether the item's source has been loaded into the
// backend.
func (c *MediaController) Loaded() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.loaded
}

// Preload loads the item's source without starting playback.
func (c *MediaController) Preload(ctx context.Context) error {
	c.lock.Lock()
	if c.loaded {
		c.lock.Unlock()
		return nil
	}
	c.lock.Unlock()

	if err := c.provider.Load(ctx, c.Item()); err != nil {
		return err
	}
	c.lock.Lock()
	c.loaded = true
	c.lock.Unlock()
	c.Model().Set(model.KeyPreloaded, true)
	return nil
}

// Play starts playback, loading the item first if this is the first attempt
// on a fresh item.
//
// While an attempt is in flight, subsequent calls return the same pending
// attempt; the backend play is invoked only once.
func (c *MediaController) Play(ctx context.Context, reason playback.Reason) *PlayAttempt {
	c.lock.Lock()
	if c.attempt != nil {
		attempt := c.attempt
		c.lock.Unlock()
		return attempt
	}
	attempt := newPlayAttempt()
	c.attempt = attempt
	needLoad := !c.loaded
	c.lock.Unlock()

	c.Model().Set(model.KeyPlayReason, reason.OrUnknown())
	go c.runPlay(ctx, attempt, needLoad)
	return attempt
}

func (c *MediaController) runPlay(ctx context.Context, attempt *PlayAttempt, needLoad bool) {
	defer func() {
		c.lock.Lock()
		if c.attempt == attempt {
			c.attempt = nil
		}
		c.lock.Unlock()
	}()

	finish := func(err error) {
		attempt.finish(err)
	}

	if attempt.Cancelled() {
		finish(context.Canceled)
		return
	}

	if needLoad {
		if err := c.provider.Load(ctx, c.Item()); err != nil {
			finish(err)
			return
		}
		c.lock.Lock()
		c.loaded = true
		c.lock.Unlock()
	}

	if attempt.Cancelled() {
		// The backend may already be loading; reconcile by pausing rather
		// than assuming the load never happened.
		c.provider.Pause()
		finish(context.Canceled)
		return
	}

	err := c.provider.Play(ctx)
	if errors.Is(err, element.ErrPlayRejected) {
		c.Model().Set(model.KeyPlayRejected, true)
		// A rejected play while the surface is genuinely paused can stem
		// from the source having been cleared between load and play.
		// Reload and retry once.
		if !c.Model().MediaState().Active() && !attempt.Cancelled() {
			if loadErr := c.provider.Load(ctx, c.Item()); loadErr == nil {
				err = c.provider.Play(ctx)
			}
		}
	}
	if err == nil {
		c.Model().Set(model.KeyPlayRejected, false)
	}
	finish(err)
}

// Pause pauses playback, cancelling any in-flight play attempt. The reason
// is persisted on the media model like a play reason.
func (c *MediaController) Pause(reason playback.Reason) {
	c.Model().Set(model.KeyPauseReason, reason.OrUnknown())
	c.lock.Lock()
	attempt := c.attempt
	c.lock.Unlock()
	if attempt != nil {
		attempt.Cancel()
	}
	c.provider.Pause()
}

// Seek clamps the position against the media's seekable bounds and seeks.
func (c *MediaController) Seek(pos time.Duration, reason playback.Reason) {
	m := c.Model()
	m.Set(model.KeySeekReason, reason.OrUnknown())
	clamped := playback.ClampSeek(pos, m.Duration(), m.SeekRange(), playback.DefaultLiveConfig())
	m.Set(model.KeyPosition, clamped)
	c.provider.Seek(clamped)
}

// Stop halts playback and unloads the source.
func (c *MediaController) Stop() {
	c.lock.Lock()
	attempt := c.attempt
	c.loaded = false
	c.lock.Unlock()
	if attempt != nil {
		attempt.Cancel()
	}
	c.provider.Stop()
}

// Detach removes the controller from the live playback surface without
// destroying the provider or losing the media model. The released surface
// handle is returned; nil if the provider drives no local surface.
func (c *MediaController) Detach() element.Surface {
	c.lock.Lock()
	c.attached = false
	c.lock.Unlock()
	return c.provider.DetachMedia()
}

// Attach reverses Detach and flushes events queued while detached.
func (c *MediaController) Attach(s element.Surface) error {
	if s != nil {
		if err := c.provider.AttachMedia(s); err != nil {
			return err
		}
	}
	c.lock.Lock()
	c.attached = true
	queued := c.deferred
	c.deferred = nil
	c.lock.Unlock()
	for _, event := range queued {
		c.Emit(event)
	}
	return nil
}

// Attached reports whether the controller is bound to a live surface.
func (c *MediaController) Attached() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.attached
}

// SetBackground marks the controller as playing on a surface that is not
// visible to the user. While in background, a complete from the provider is
// held back and only forwarded when the controller returns to the
// foreground.
func (c *MediaController) SetBackground(background bool) {
	c.lock.Lock()
	c.background = background
	flush := !background && c.pendingComplete
	if flush {
		c.pendingComplete = false
	}
	c.lock.Unlock()
	if flush {
		c.Emit(playback.CompleteEvent{})
	}
}

// Background reports whether the controller is in background mode.
func (c *MediaController) Background() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.background
}

// BeforeComplete reports whether the item has yet to play to its end.
func (c *MediaController) BeforeComplete() bool {
	c.lock.Lock()
	pending := c.pendingComplete
	c.lock.Unlock()
	return !pending && c.Model().MediaState() != playback.StateComplete
}

// Destroy cancels pending work and releases the provider. The surface, if
// any, must be detached and returned to its pool by the caller first.
func (c *MediaController) Destroy() {
	c.lock.Lock()
	if c.destroyed {
		c.lock.Unlock()
		return
	}
	c.destroyed = true
	attempt := c.attempt
	close(c.pumpStop)
	c.lock.Unlock()

	if attempt != nil {
		attempt.Cancel()
	}
	c.provider.Events().Unlisten(c.listener)
	c.provider.Destroy()
}

func (c *MediaController) pump() {
	for {
		select {
		case event, ok := <-c.listener:
			if !ok {
				return
			}
			c.handle(event)
		case <-c.pumpStop:
			return
		}
	}
}

func (c *MediaController) handle(event interface{}) {
	m := c.Model()
	switch t := event.(type) {
	case playback.TimeEvent:
		m.Set(model.KeyPosition, t.Position)
		if t.Duration != 0 {
			m.Set(model.KeyDuration, t.Duration)
		}
		m.Set(model.KeySeekRange, t.SeekRange)
	case playback.MetaEvent:
		m.Set(model.KeyDuration, t.Duration)
		m.Set(model.KeySeekRange, t.SeekRange)
	case playback.BufferEvent:
		m.Set(model.KeyBuffer, t.Percent)
	case playback.StateChangeEvent:
		m.SetMediaState(t.NewState)
	case playback.FirstFrameEvent:
		m.Set(model.KeyStarted, true)
	case playback.LevelsEvent:
		m.Set(model.KeyLevels, t.Levels)
		m.Set(model.KeyCurrentLevel, t.Current)
	case playback.AudioTracksEvent:
		m.Set(model.KeyAudioTracks, t.Tracks)
		m.Set(model.KeyAudioTrack, t.Current)
	case playback.CompleteEvent:
		c.lock.Lock()
		if c.background {
			c.pendingComplete = true
			c.lock.Unlock()
			return
		}
		c.lock.Unlock()
	case playback.ErrorEvent:
		log.WithField("item", c.Item().ID).Debugf("Media error %d: %s", t.Code, t.Message)
	}

	c.forward(event)
}

func (c *MediaController) forward(event interface{}) {
	c.lock.Lock()
	if !c.attached {
		c.deferred = append(c.deferred, event)
		c.lock.Unlock()
		return
	}
	c.lock.Unlock()
	c.Emit(event)
}
