// Package engine implements the playback facade: the public method surface
// and event stream tying the playlist, the program controller, the autoplay
// policy and instream ad breaks together.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"playbox/src/autoplay"
	"playbox/src/controller"
	"playbox/src/instream"
	"playbox/src/model"
	"playbox/src/playback"
	"playbox/src/playback/element"
	"playbox/src/playlist"
	"playbox/src/util"
)

// Autostart selects the automatic playback policy for freshly loaded
// playlists.
type Autostart string

const (
	AutostartOff      Autostart = "off"
	AutostartOn       Autostart = "on"
	AutostartViewable Autostart = "viewable"
)

// Config carries the engine's initial attribute values.
type Config struct {
	Autostart     Autostart
	Mute          bool
	Volume        int
	Repeat        bool
	PlaybackRate  float64
	ViewThreshold float64

	// AutoPause pauses playback when the surface leaves the viewport.
	AutoPause bool
}

// An Engine is the facade in front of the playback machinery. All methods
// are safe for concurrent use.
type Engine struct {
	util.Emitter

	registry *playback.Registry
	pool     *element.Pool
	program  *controller.ProgramController
	probe    *autoplay.Probe
	viewGate *autoplay.ViewGate
	model    *model.PlayerModel

	programCh <-chan interface{}
	preloadWG sync.WaitGroup

	autoPause bool

	lock        sync.Mutex
	feed        *playlist.Feed
	index       int
	autostart   Autostart
	lastVolume  int
	adapter     *instream.Adapter
	castConnect func() (playback.Provider, error)
	itemReady   func(context.Context, *playlist.Item) error
	preRolled   bool
	postRolled  bool
	preloaded   bool
	destroyed   bool

	captions captionState
}

// New assembles an engine around a provider registry and a surface pool.
func New(cfg Config, registry *playback.Registry, pool *element.Pool) *Engine {
	if cfg.Volume == 0 {
		cfg.Volume = 100
	}
	if cfg.PlaybackRate == 0 {
		cfg.PlaybackRate = 1
	}
	if cfg.Autostart == "" {
		cfg.Autostart = AutostartOff
	}

	e := &Engine{
		registry:   registry,
		pool:       pool,
		program:    controller.NewProgramController(registry, pool),
		probe:      autoplay.NewProbe(autoplay.NewCache(2)),
		viewGate:   autoplay.NewViewGate(cfg.ViewThreshold),
		model:      model.NewPlayerModel(),
		autoPause:  cfg.AutoPause,
		index:      -1,
		autostart:  cfg.Autostart,
		lastVolume: cfg.Volume,
	}
	e.captions.selected = -1
	e.model.Set(model.KeyVolume, clampVolume(cfg.Volume))
	e.model.Set(model.KeyMute, cfg.Mute)
	e.model.Set(model.KeyRepeat, cfg.Repeat)
	e.model.Set(model.KeyPlaybackRate, clampRate(cfg.PlaybackRate))
	e.model.Set(model.KeyAutostart, string(cfg.Autostart))

	e.programCh = e.program.Events().Listen()
	go e.pump()
	return e
}

// Model exposes the player-level attribute store.
func (e *Engine) Model() *model.PlayerModel { return e.model }

// Program exposes the program controller. Intended for the HTTP layer and
// tests.
func (e *Engine) Program() *controller.ProgramController { return e.program }

// Feed returns the loaded playlist, or nil.
func (e *Engine) Feed() *playlist.Feed {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.feed
}

// Load replaces the playlist and activates its first item, honoring the
// configured autostart policy.
func (e *Engine) Load(ctx context.Context, feed *playlist.Feed) error {
	items, err := playlist.Normalize(feed.Items)
	if err != nil {
		return err
	}
	feed.Items = items

	e.program.StopActive()
	e.lock.Lock()
	e.feed = feed
	e.index = -1
	e.lock.Unlock()

	if err := e.activate(ctx, 0); err != nil {
		return err
	}

	switch e.currentAutostart() {
	case AutostartOn:
		go e.autostartPlay(ctx, playback.ReasonAutostart)
	case AutostartViewable:
		e.viewGate.Defer(func() {
			e.autostartPlay(context.Background(), playback.ReasonViewable)
		})
	}
	return nil
}

func (e *Engine) currentAutostart() Autostart {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.autostart
}

// activate makes the playlist item at index the active media. A failed
// activation advances to the next item; when no item activates, the engine
// enters the terminal error state.
func (e *Engine) activate(ctx context.Context, index int) error {
	e.lock.Lock()
	feed := e.feed
	itemReady := e.itemReady
	e.lock.Unlock()
	if feed == nil || index < 0 || index >= len(feed.Items) {
		return fmt.Errorf("no playlist item at index %d", index)
	}

	// An in-flight background load may hold the spare surface. Let it
	// settle so activation can promote or discard it.
	e.preloadWG.Wait()

	var lastErr error
	for i := index; i < len(feed.Items); i++ {
		item := &feed.Items[i]
		if itemReady != nil {
			if err := itemReady(ctx, item); err != nil {
				metricItemsActivated.WithLabelValues("failed").Inc()
				log.WithField("item", item.ID).Errorf("Item interception failed: %v", err)
				srcErr := &playback.SourceError{ItemID: item.ID}
				e.Emit(playback.ErrorEvent{Code: playback.CodeOf(srcErr), Message: playback.MessageKeyOf(srcErr)})
				lastErr = err
				continue
			}
		}
		if err := e.program.SetActiveItem(ctx, item); err != nil {
			metricItemsActivated.WithLabelValues("failed").Inc()
			log.WithField("item", item.ID).Errorf("Item activation failed: %v", err)
			e.Emit(playback.ErrorEvent{Code: playback.CodeOf(err), Message: playback.MessageKeyOf(err)})
			lastErr = err
			continue
		}
		metricItemsActivated.WithLabelValues("ok").Inc()

		e.lock.Lock()
		e.index = i
		e.preRolled = false
		e.postRolled = false
		e.preloaded = false
		e.lock.Unlock()

		e.model.Set(model.KeyPlaylistIndex, i)
		e.model.Set(model.KeyError, nil)
		e.applyAttributes()
		e.SetTextTracks(item.Tracks)
		e.Emit(PlaylistItemEvent{Index: i, Item: item})
		return nil
	}

	e.model.Set(model.KeyError, lastErr)
	e.setPlayerState(playback.StateError)
	return lastErr
}

// applyAttributes pushes the persistent player attributes onto a freshly
// activated provider.
func (e *Engine) applyAttributes() {
	active := e.program.ActiveController()
	if active == nil {
		return
	}
	p := active.Provider()
	p.SetVolume(e.model.Volume())
	p.SetMute(e.model.Mute())
	p.SetRate(e.model.PlaybackRate())
}

// autostartPlay races the capability probe against startup and plays with
// the configuration the probe allows.
func (e *Engine) autostartPlay(ctx context.Context, reason playback.Reason) {
	surface, err := e.pool.Acquire()
	if err != nil {
		// All surfaces are in use; whatever plays on them was started by
		// policy already.
		e.play(ctx, reason)
		return
	}
	outcome, probeErr := e.probe.Run(ctx, surface)
	if errors.Is(probeErr, playback.ErrAutoplayTimeout) {
		// A timeout is not a verdict and is not cached, so a second run
		// may still resolve the capability on a slow backend.
		outcome, probeErr = e.probe.Run(ctx, surface)
	}
	e.pool.Release(surface)

	switch outcome {
	case autoplay.OutcomeEnabled:
	case autoplay.OutcomeMuted:
		e.SetMute(true)
		e.model.Set(model.KeyAutostartMuted, true)
	default:
		e.model.Set(model.KeyAutostartFailed, true)
		e.Emit(AutostartFailedEvent{Err: probeErr})
		return
	}
	e.play(ctx, reason)
}

// Play starts or resumes playback. An explicit user gesture cancels a
// pending viewability-deferred autostart and clears the autostart-failed
// flag.
func (e *Engine) Play(ctx context.Context, reason playback.Reason) error {
	if reason.OrUnknown() == playback.ReasonInteraction {
		e.viewGate.Cancel()
		e.model.Set(model.KeyAutostartFailed, false)
	}
	return e.play(ctx, reason)
}

func (e *Engine) play(ctx context.Context, reason playback.Reason) error {
	metricPlayAttempts.WithLabelValues(string(reason.OrUnknown())).Inc()

	// A scheduled pre-roll runs before the item's first play. The break's
	// teardown resumes the content by itself.
	e.lock.Lock()
	feed, index, preRolled := e.feed, e.index, e.preRolled
	e.lock.Unlock()
	if feed != nil && index >= 0 && index < len(feed.Items) && !preRolled {
		if b, ok := findBreak(feed.Items[index].AdBreaks, "pre"); ok {
			e.lock.Lock()
			e.preRolled = true
			e.lock.Unlock()
			if err := e.runAdBreak(ctx, b); err != nil {
				log.Warnf("Pre-roll break failed: %v", err)
			}
		}
	}

	attempt, err := e.program.PlayActive(ctx, reason)
	if err != nil {
		return err
	}
	return attempt.Wait(ctx)
}

// Pause pauses playback. The reason is persisted on the media model and
// echoed in the emitted pause event. A user pause also cancels a pending
// viewability-deferred autostart.
func (e *Engine) Pause(reason playback.Reason) {
	if reason.OrUnknown() == playback.ReasonInteraction {
		e.viewGate.Cancel()
	}
	if active := e.program.ActiveController(); active != nil {
		active.Pause(reason.OrUnknown())
	}
}

// Seek clamps and seeks within the active media. The reason is persisted on
// the media model and echoed in the emitted seek event.
func (e *Engine) Seek(pos time.Duration, reason playback.Reason) {
	if active := e.program.ActiveController(); active != nil {
		active.Seek(pos, reason.OrUnknown())
	}
}

// Stop halts playback and returns the engine to idle.
func (e *Engine) Stop() {
	e.program.StopActive()
	e.setPlayerState(playback.StateIdle)
	e.Emit(IdleEvent{})
}

// Next advances to the next playlist item and plays it.
func (e *Engine) Next(ctx context.Context) error {
	e.lock.Lock()
	next := e.index + 1
	length := 0
	if e.feed != nil {
		length = len(e.feed.Items)
	}
	repeat := e.model.Repeat()
	e.lock.Unlock()

	if next >= length {
		if !repeat || length == 0 {
			return fmt.Errorf("no next playlist item")
		}
		next = 0
	}
	return e.PlaylistItem(ctx, next)
}

// PlaylistItem activates the item at index and plays it.
func (e *Engine) PlaylistItem(ctx context.Context, index int) error {
	if err := e.activate(ctx, index); err != nil {
		return err
	}
	return e.play(ctx, playback.ReasonPlaylist)
}

// PreloadNext starts a background load of the upcoming playlist item so a
// later advance can promote it without reloading.
func (e *Engine) PreloadNext(ctx context.Context) error {
	e.lock.Lock()
	feed := e.feed
	next := e.index + 1
	e.lock.Unlock()
	if feed == nil || next >= len(feed.Items) {
		return nil
	}
	return e.program.BackgroundLoad(ctx, &feed.Items[next])
}

// maybePreload starts the background load of the upcoming item the first
// time the active item reaches playback. A later advance then promotes the
// warm surface instead of loading from scratch.
func (e *Engine) maybePreload() {
	e.lock.Lock()
	if e.preloaded || e.destroyed {
		e.lock.Unlock()
		return
	}
	e.preloaded = true
	e.lock.Unlock()

	e.preloadWG.Add(1)
	go func() {
		defer e.preloadWG.Done()
		if err := e.PreloadNext(context.Background()); err != nil {
			log.Debugf("Could not preload the next item: %v", err)
		}
	}()
}

// SetItemReadyHook registers a hook that runs before a playlist item
// activates. The hook may rewrite the item in place; an error skips the
// item as unplayable. Pass nil to clear.
func (e *Engine) SetItemReadyHook(fn func(context.Context, *playlist.Item) error) {
	e.lock.Lock()
	e.itemReady = fn
	e.lock.Unlock()
}

// SetCastConnector registers the constructor for the remote receiver that
// Cast routes playback to.
func (e *Engine) SetCastConnector(connect func() (playback.Provider, error)) {
	e.lock.Lock()
	e.castConnect = connect
	e.lock.Unlock()
}

// Cast routes playback to the configured remote receiver, or back to a
// local surface.
func (e *Engine) Cast(ctx context.Context, active bool) error {
	if !active {
		return e.StopCast(ctx)
	}
	e.lock.Lock()
	connect := e.castConnect
	e.lock.Unlock()
	if connect == nil {
		return fmt.Errorf("no cast receiver configured")
	}
	return e.StartCast(ctx, connect)
}

// StartCast routes playback to a remote receiver built by connect.
func (e *Engine) StartCast(ctx context.Context, connect func() (playback.Provider, error)) error {
	if err := e.program.StartCast(ctx, connect); err != nil {
		return err
	}
	e.model.Set(model.KeyCastActive, true)
	e.Emit(CastEvent{Active: true})
	return nil
}

// StopCast routes playback back to a local surface.
func (e *Engine) StopCast(ctx context.Context) error {
	if err := e.program.StopCast(ctx); err != nil {
		return err
	}
	e.model.Set(model.KeyCastActive, false)
	e.Emit(CastEvent{Active: false})
	return nil
}

// Destroy tears the engine down.
func (e *Engine) Destroy() {
	e.lock.Lock()
	if e.destroyed {
		e.lock.Unlock()
		return
	}
	e.destroyed = true
	adapter := e.adapter
	e.adapter = nil
	e.lock.Unlock()

	if adapter != nil {
		adapter.Destroy(context.Background(), true)
	}
	e.program.Events().Unlisten(e.programCh)
	e.program.Destroy()
}

// pump translates program controller events into the public stream and the
// player model.
func (e *Engine) pump() {
	for event := range e.programCh {
		e.handle(event)
	}
}

func (e *Engine) handle(event interface{}) {
	switch t := event.(type) {
	case playback.StateChangeEvent:
		e.setPlayerState(t.NewState)
		switch t.NewState {
		case playback.StatePlaying:
			e.Emit(PlayEvent{Reason: e.activeReason()})
			e.maybePreload()
		case playback.StatePaused:
			e.Emit(PauseEvent{Reason: e.activePauseReason()})
		case playback.StateBuffering:
			e.Emit(BufferingEvent{})
		case playback.StateIdle:
			e.Emit(IdleEvent{})
		}
	case playback.SeekEvent:
		t.Reason = e.activeSeekReason()
		e.Emit(t)
	case playback.CompleteEvent:
		e.Emit(playback.CompleteEvent{})
		e.onComplete()
	case playback.ErrorEvent:
		metricMediaErrors.WithLabelValues(categoryLabel(t.Code)).Inc()
		e.model.Set(model.KeyError, playback.NewMediaError(categoryOfCode(t.Code), t.Code, t.Message))
		e.setPlayerState(playback.StateError)
		e.Emit(t)
	case controller.ActiveChangeEvent, controller.ItemReadyEvent:
		// Consumed internally; activation is reported as PlaylistItemEvent.
	default:
		e.Emit(event)
	}
}

func (e *Engine) activeReason() playback.Reason {
	active := e.program.ActiveController()
	if active == nil {
		return playback.ReasonUnknown
	}
	return active.Model().PlayReason()
}

func (e *Engine) activePauseReason() playback.Reason {
	active := e.program.ActiveController()
	if active == nil {
		return playback.ReasonUnknown
	}
	return active.Model().PauseReason()
}

func (e *Engine) activeSeekReason() playback.Reason {
	active := e.program.ActiveController()
	if active == nil {
		return playback.ReasonUnknown
	}
	return active.Model().SeekReason()
}

// onComplete advances the playlist, wrapping around when repeat is on. A
// post-roll ad break scheduled on the completed item runs first; content
// advance then happens when the break is destroyed.
func (e *Engine) onComplete() {
	e.lock.Lock()
	feed := e.feed
	index := e.index
	postRolled := e.postRolled
	e.lock.Unlock()
	if feed == nil || index < 0 || index >= len(feed.Items) {
		return
	}

	if !postRolled {
		if b, ok := findBreak(feed.Items[index].AdBreaks, "post"); ok {
			e.lock.Lock()
			e.postRolled = true
			e.lock.Unlock()
			go e.runAdBreak(context.Background(), b)
			return
		}
	}
	e.advance()
}

// advance moves to the next item after a completion, or finishes the
// playlist.
func (e *Engine) advance() {
	e.lock.Lock()
	feed := e.feed
	next := e.index + 1
	e.lock.Unlock()
	if feed == nil {
		return
	}

	ctx := context.Background()
	if next < len(feed.Items) {
		if err := e.activate(ctx, next); err == nil {
			e.play(ctx, playback.ReasonPlaylist)
		}
		return
	}
	if e.model.Repeat() {
		if err := e.activate(ctx, 0); err == nil {
			e.play(ctx, playback.ReasonRepeat)
		}
		return
	}
	e.setPlayerState(playback.StateComplete)
	e.Emit(PlaylistCompleteEvent{})
}

func (e *Engine) setPlayerState(s playback.State) {
	prev := e.model.State()
	if prev == s {
		return
	}
	e.model.Set(model.KeyState, s)
	metricPlayerState.WithLabelValues(string(prev)).Set(0)
	metricPlayerState.WithLabelValues(string(s)).Set(1)
}

// SetViewable reports the visibility ratio of the playback surface, driving
// viewability-gated autostart. With AutoPause configured, playback pauses
// when the surface stops being viewable.
func (e *Engine) SetViewable(ratio float64) {
	wasViewable := e.viewGate.Viewable()
	e.viewGate.SetRatio(ratio)
	if e.autoPause && wasViewable && !e.viewGate.Viewable() &&
		e.model.State() == playback.StatePlaying {
		e.Pause(playback.ReasonViewable)
	}
}

func categoryOfCode(code int) playback.MediaErrorCategory {
	switch {
	case code >= playback.CodeMediaNotFound:
		return playback.CategoryNotFound
	case code >= playback.CodeMediaDecode:
		return playback.CategoryDecode
	case code >= playback.CodeMediaNetwork:
		return playback.CategoryNetwork
	default:
		return playback.CategoryGeneric
	}
}

func categoryLabel(code int) string {
	return categoryOfCode(code).String()
}
