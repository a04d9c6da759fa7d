// Package local implements the provider for element-backed playback.
package local

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"playbox/src/playback"
	"playbox/src/playback/element"
	"playbox/src/playlist"
	"playbox/src/util"
)

// maxRetries bounds how often a transient media error causes an internal
// reload of the same source before it is escalated.
const maxRetries = 2

// stallTimeout is how long playback may fail to advance while in the
// playing state before the buffering state is entered.
const stallTimeout = 3 * time.Second

// NewFactory returns the provider factory for element-backed playback.
func NewFactory() playback.Factory {
	return playback.Factory{
		Name: "local",
		Supports: func(src playlist.Source) bool {
			mime := src.MIMEType()
			return strings.HasPrefix(mime, "video/") ||
				strings.HasPrefix(mime, "audio/") ||
				mime == "application/vnd.apple.mpegurl" ||
				mime == "application/dash+xml"
		},
		New: func(s element.Surface) (playback.Provider, error) {
			if s == nil {
				return nil, fmt.Errorf("local provider requires a surface")
			}
			return New(s), nil
		},
	}
}

// A Provider drives one local playback surface and translates its native
// events into the normalized vocabulary.
type Provider struct {
	util.Emitter

	liveConfig playback.LiveConfig

	lock       sync.Mutex
	surface    element.Surface
	listener   <-chan interface{}
	pumpStop   chan struct{}
	generation int

	item       *playlist.Item
	sourceURI  string
	state      playback.State
	duration   time.Duration
	seekRange  playback.SeekRange
	dvr        bool
	firstFrame bool
	retries    int
	wasPlaying bool
	lastPos    time.Duration
	stallTimer *time.Timer
}

// New constructs a provider bound to the specified surface.
func New(surface element.Surface) *Provider {
	p := &Provider{
		liveConfig: playback.DefaultLiveConfig(),
		state:      playback.StateIdle,
	}
	if err := p.AttachMedia(surface); err != nil {
		// Unreachable while detached.
		log.Errorf("local provider attach: %v", err)
	}
	return p
}

// Name implements the playback.Provider interface.
func (p *Provider) Name() string { return "local" }

// Load implements the playback.Provider interface.
func (p *Provider) Load(ctx context.Context, item *playlist.Item) error {
	src, err := item.PrimarySource()
	if err != nil {
		return &playback.SourceError{ItemID: item.ID}
	}

	p.lock.Lock()
	surface := p.surface
	p.item = item
	p.sourceURI = src.URI
	p.retries = 0
	p.firstFrame = false
	p.wasPlaying = false
	p.lastPos = 0
	p.duration = 0
	p.dvr = false
	p.setStateLocked(playback.StateIdle, true)
	p.lock.Unlock()

	if surface == nil {
		return fmt.Errorf("load %q: provider is detached", item.ID)
	}
	return surface.SetSource(src.URI)
}

// Play implements the playback.Provider interface.
func (p *Provider) Play(ctx context.Context) error {
	p.lock.Lock()
	surface := p.surface
	p.lock.Unlock()
	if surface == nil {
		return fmt.Errorf("play: provider is detached")
	}
	err := surface.Play(ctx)
	if err == nil {
		p.lock.Lock()
		p.wasPlaying = true
		p.lock.Unlock()
	}
	return err
}

// Pause implements the playback.Provider interface.
func (p *Provider) Pause() {
	p.lock.Lock()
	surface := p.surface
	p.wasPlaying = false
	p.lock.Unlock()
	if surface != nil {
		surface.Pause()
	}
}

// Stop implements the playback.Provider interface.
func (p *Provider) Stop() {
	p.lock.Lock()
	surface := p.surface
	p.wasPlaying = false
	p.lock.Unlock()
	if surface != nil {
		surface.Pause()
		surface.SetSource("")
	}
	p.lock.Lock()
	p.setStateLocked(playback.StateIdle, true)
	p.lock.Unlock()
}

// Seek implements the playback.Provider interface. DVR positions are
// behind-live offsets; all other positions are absolute.
func (p *Provider) Seek(pos time.Duration) {
	p.lock.Lock()
	surface := p.surface
	duration := p.duration
	seekRange := p.seekRange
	dvr := p.dvr
	current := p.lastPos
	p.lock.Unlock()
	if surface == nil {
		return
	}

	pos = playback.ClampSeek(pos, duration, seekRange, p.liveConfig)
	absolute := pos
	if dvr {
		absolute = playback.FromBehindLive(pos, seekRange)
	}
	p.Emit(playback.SeekEvent{Position: pos, Offset: pos - current})
	surface.Seek(absolute)
}

// SetVolume implements the playback.Provider interface.
func (p *Provider) SetVolume(vol int) {
	if s := p.currentSurface(); s != nil {
		s.SetVolume(vol)
	}
}

// SetMute implements the playback.Provider interface.
func (p *Provider) SetMute(mute bool) {
	if s := p.currentSurface(); s != nil {
		s.SetMuted(mute)
	}
}

// SetRate implements the playback.Provider interface.
func (p *Provider) SetRate(rate float64) {
	if s := p.currentSurface(); s != nil {
		s.SetRate(rate)
	}
}

// QualityLevels implements the playback.Provider interface.
func (p *Provider) QualityLevels() []playback.QualityLevel {
	s := p.currentSurface()
	if s == nil {
		return nil
	}
	return normalizeLevels(s.QualityLevels())
}

// SetQualityLevel implements the playback.Provider interface.
func (p *Provider) SetQualityLevel(index int) error {
	s := p.currentSurface()
	if s == nil {
		return fmt.Errorf("set quality: provider is detached")
	}
	return s.SetLevel(index)
}

// AudioTracks implements the playback.Provider interface.
func (p *Provider) AudioTracks() []playback.AudioTrack {
	s := p.currentSurface()
	if s == nil {
		return nil
	}
	return normalizeAudioTracks(s.AudioTracks())
}

// SetAudioTrack implements the playback.Provider interface.
func (p *Provider) SetAudioTrack(index int) error {
	s := p.currentSurface()
	if s == nil {
		return fmt.Errorf("set audio track: provider is detached")
	}
	return s.SetAudioTrack(index)
}

// AttachMedia implements the playback.Provider interface.
func (p *Provider) AttachMedia(s element.Surface) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.surface != nil {
		return fmt.Errorf("provider already attached to a surface")
	}
	p.surface = s
	p.listener = s.Events().Listen()
	p.pumpStop = make(chan struct{})
	p.generation++
	go p.pump(p.listener, p.pumpStop)
	return nil
}

// DetachMedia implements the playback.Provider interface.
func (p *Provider) DetachMedia() element.Surface {
	p.lock.Lock()
	defer p.lock.Unlock()
	s := p.surface
	if s == nil {
		return nil
	}
	close(p.pumpStop)
	s.Events().Unlisten(p.listener)
	p.surface = nil
	p.listener = nil
	p.pumpStop = nil
	p.stopStallTimerLocked()
	return s
}

// Destroy implements the playback.Provider interface.
func (p *Provider) Destroy() {
	if s := p.DetachMedia(); s != nil {
		s.Pause()
		s.SetSource("")
	}
}

func (p *Provider) currentSurface() element.Surface {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.surface
}

func (p *Provider) pump(listener <-chan interface{}, stop <-chan struct{}) {
	for {
		select {
		case event, ok := <-listener:
			if !ok {
				return
			}
			p.handleNative(event)
		case <-stop:
			return
		}
	}
}

func (p *Provider) handleNative(event interface{}) {
	switch t := event.(type) {
	case element.LoadedMetadata:
		p.handleMetadata(t)
	case element.TimeUpdate:
		p.handleTime(t)
	case element.Progress:
		p.Emit(playback.BufferEvent{Percent: t.BufferedPercent})
	case element.Playing:
		p.handlePlaying()
	case element.Paused:
		p.setState(playback.StatePaused)
	case element.Waiting, element.Stalled:
		p.setState(playback.StateBuffering)
	case element.Seeked:
		p.Emit(playback.SeekedEvent{})
	case element.Ended:
		p.setState(playback.StateComplete)
		p.Emit(playback.CompleteEvent{})
	case element.RateChange:
		p.Emit(playback.RateChangeEvent{Rate: t.Rate})
	case element.VolumeChange:
		p.Emit(playback.VolumeEvent{Volume: t.Volume})
		p.Emit(playback.MuteEvent{Mute: t.Muted})
	case element.LevelSwitch:
		p.Emit(playback.LevelsEvent{Levels: p.QualityLevels(), Current: t.Index})
	case element.AudioTrackSwitch:
		p.Emit(playback.AudioTracksEvent{Tracks: p.AudioTracks(), Current: t.Index})
	case element.ErrorFired:
		p.handleFailure(t.Failure)
	}
}

func (p *Provider) handleMetadata(meta element.LoadedMetadata) {
	p.lock.Lock()
	duration := meta.Duration
	p.dvr = false
	if meta.Live {
		if meta.DVRWindow >= p.liveConfig.MinDVRWindow {
			duration = -meta.DVRWindow
			p.dvr = true
		} else {
			duration = playback.LiveDuration
		}
	}
	p.duration = duration
	if s := p.surface; s != nil {
		start, end := s.SeekRange()
		p.seekRange = playback.SeekRange{Start: start, End: end}
	}
	seekRange := p.seekRange
	item := p.item
	retrying := p.retries > 0
	p.lock.Unlock()

	p.Emit(playback.MetaEvent{
		Duration:  duration,
		Width:     meta.Width,
		Height:    meta.Height,
		SeekRange: seekRange,
	})
	if len(meta.Levels) > 0 {
		p.Emit(playback.LevelsEvent{Levels: normalizeLevels(meta.Levels), Current: 0})
	}
	if len(meta.AudioTracks) > 0 {
		p.Emit(playback.AudioTracksEvent{Tracks: normalizeAudioTracks(meta.AudioTracks), Current: 0})
	}
	if !retrying {
		if item != nil && item.StartTime > 0 {
			if s := p.currentSurface(); s != nil {
				s.Seek(item.StartTime)
			}
		}
		p.Emit(playback.ReadyEvent{})
	}
}

func (p *Provider) handleTime(t element.TimeUpdate) {
	p.lock.Lock()
	if s := p.surface; s != nil {
		start, end := s.SeekRange()
		p.seekRange = playback.SeekRange{Start: start, End: end}
	}
	p.lastPos = t.Position
	pos := t.Position
	if p.dvr {
		pos = playback.BehindLive(t.Position, p.seekRange)
	}
	duration := p.duration
	seekRange := p.seekRange
	first := !p.firstFrame && p.state.Active()
	if first {
		p.firstFrame = true
	}
	p.resetStallTimerLocked()
	// Advancing time while buffering means playback recovered.
	if p.state == playback.StateBuffering {
		p.setStateLocked(playback.StatePlaying, false)
	}
	p.lock.Unlock()

	if first {
		p.Emit(playback.FirstFrameEvent{})
	}
	p.Emit(playback.TimeEvent{Position: pos, Duration: duration, SeekRange: seekRange})
}

func (p *Provider) handlePlaying() {
	p.lock.Lock()
	first := !p.firstFrame
	if first {
		p.firstFrame = true
	}
	p.retries = 0
	p.setStateLocked(playback.StatePlaying, false)
	p.resetStallTimerLocked()
	p.lock.Unlock()
	if first {
		p.Emit(playback.FirstFrameEvent{})
	}
}

func (p *Provider) handleFailure(failure *element.MediaFailure) {
	category := categoryOf(failure.Code)
	mediaErr := playback.NewMediaError(category, category.CodeBase()+failure.Code, failure.Message)

	p.lock.Lock()
	canRetry := mediaErr.Retryable() && p.retries < maxRetries
	surface := p.surface
	uri := p.sourceURI
	resume := p.wasPlaying
	pos := p.lastPos
	if canRetry {
		p.retries++
	}
	retries := p.retries
	p.lock.Unlock()

	if canRetry && surface != nil && uri != "" {
		log.WithField("uri", uri).Warnf("Transient media error (attempt %d/%d): %v", retries, maxRetries, failure.Message)
		if err := surface.SetSource(uri); err != nil {
			log.Errorf("Reload after media error: %v", err)
		}
		if pos > 0 {
			surface.Seek(pos)
		}
		if resume {
			go func() {
				if err := surface.Play(context.Background()); err != nil {
					log.Errorf("Resume after media error: %v", err)
				}
			}()
		}
		return
	}

	p.setState(playback.StateError)
	p.Emit(playback.ErrorEvent{Code: mediaErr.Code, Message: mediaErr.Message})
}

func (p *Provider) setState(state playback.State) {
	p.lock.Lock()
	p.setStateLocked(state, false)
	p.lock.Unlock()
}

// setStateLocked transitions the media state. The error state preempts all
// others; it is cleared only by a forced transition on Load or Stop.
func (p *Provider) setStateLocked(state playback.State, force bool) {
	if p.state == state {
		return
	}
	if p.state == playback.StateError && !force {
		return
	}
	old := p.state
	p.state = state
	if !state.Active() {
		p.stopStallTimerLocked()
	}
	p.Emit(playback.StateChangeEvent{NewState: state, OldState: old})
}

func (p *Provider) resetStallTimerLocked() {
	p.stopStallTimerLocked()
	gen := p.generation
	p.stallTimer = time.AfterFunc(stallTimeout, func() {
		p.lock.Lock()
		stalled := p.generation == gen && p.state == playback.StatePlaying
		if stalled {
			p.setStateLocked(playback.StateBuffering, false)
		}
		p.lock.Unlock()
	})
}

func (p *Provider) stopStallTimerLocked() {
	if p.stallTimer != nil {
		p.stallTimer.Stop()
		p.stallTimer = nil
	}
}

func categoryOf(code int) playback.MediaErrorCategory {
	switch code {
	case element.ErrNetwork:
		return playback.CategoryNetwork
	case element.ErrDecode:
		return playback.CategoryDecode
	case element.ErrSrcNotSupported:
		return playback.CategoryNotFound
	default:
		return playback.CategoryGeneric
	}
}

func normalizeLevels(levels []element.Level) []playback.QualityLevel {
	out := make([]playback.QualityLevel, len(levels))
	for i, l := range levels {
		out[i] = playback.QualityLevel{
			Label:   l.Label,
			Bitrate: l.Bitrate,
			Width:   l.Width,
			Height:  l.Height,
		}
	}
	return out
}

func normalizeAudioTracks(tracks []element.AudioTrack) []playback.AudioTrack {
	out := make([]playback.AudioTrack, len(tracks))
	for i, t := range tracks {
		out[i] = playback.AudioTrack{Label: t.Label, Language: t.Language}
	}
	return out
}
