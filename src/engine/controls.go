package engine

import (
	"fmt"

	"playbox/src/model"
	"playbox/src/playback"
)

// Playback rate bounds. Rates outside this range are clamped, mirroring
// what media backends accept.
const (
	MinPlaybackRate = 0.25
	MaxPlaybackRate = 4.0
)

func clampVolume(vol int) int {
	if vol < 0 {
		return 0
	}
	if vol > 100 {
		return 100
	}
	return vol
}

func clampRate(rate float64) float64 {
	if rate < MinPlaybackRate {
		return MinPlaybackRate
	}
	if rate > MaxPlaybackRate {
		return MaxPlaybackRate
	}
	return rate
}

// SetVolume sets the volume on a 0-100 scale. A non-zero volume unmutes and
// is remembered for later restore; volume zero mutes.
func (e *Engine) SetVolume(vol int) {
	vol = clampVolume(vol)
	e.model.Set(model.KeyVolume, vol)
	if vol > 0 {
		e.lock.Lock()
		e.lastVolume = vol
		e.lock.Unlock()
		if e.model.Mute() {
			e.SetMute(false)
			// SetMute already pushed the volume.
		}
	} else if !e.model.Mute() {
		e.SetMute(true)
	}
	if active := e.program.ActiveController(); active != nil {
		active.Provider().SetVolume(vol)
	}
	e.Emit(playback.VolumeEvent{Volume: vol})
}

// SetMute sets the mute state. The first unmute after a muted autostart
// clears the autostart-muted flag and restores the last non-zero volume.
func (e *Engine) SetMute(mute bool) {
	e.model.Set(model.KeyMute, mute)
	if active := e.program.ActiveController(); active != nil {
		active.Provider().SetMute(mute)
	}
	e.Emit(playback.MuteEvent{Mute: mute})

	if !mute && e.model.AutostartMuted() {
		e.model.Set(model.KeyAutostartMuted, false)
		e.lock.Lock()
		restore := e.lastVolume
		e.lock.Unlock()
		if e.model.Volume() == 0 && restore > 0 {
			e.SetVolume(restore)
		}
	}
}

// SetPlaybackRate sets the playback rate, clamped to the supported range.
// Live media without a DVR window ignores rate changes.
func (e *Engine) SetPlaybackRate(rate float64) {
	rate = clampRate(rate)
	e.model.Set(model.KeyPlaybackRate, rate)
	if active := e.program.ActiveController(); active != nil {
		active.Provider().SetRate(rate)
	}
	e.Emit(playback.RateChangeEvent{Rate: rate})
}

// SetFullscreen mirrors the fullscreen attribute and notifies listeners.
// The actual display change is owned by the embedding UI.
func (e *Engine) SetFullscreen(fullscreen bool) {
	e.model.Set(model.KeyFullscreen, fullscreen)
	e.Emit(FullscreenEvent{Fullscreen: fullscreen})
}

// SetRepeat toggles wrapping around at the end of the playlist.
func (e *Engine) SetRepeat(repeat bool) {
	e.model.Set(model.KeyRepeat, repeat)
}

// SetCurrentQuality selects a quality level of the active media by index.
func (e *Engine) SetCurrentQuality(index int) error {
	active := e.program.ActiveController()
	if active == nil {
		return fmt.Errorf("no active media")
	}
	return active.Provider().SetQualityLevel(index)
}

// SetCurrentAudioTrack selects an audio track of the active media by index.
func (e *Engine) SetCurrentAudioTrack(index int) error {
	active := e.program.ActiveController()
	if active == nil {
		return fmt.Errorf("no active media")
	}
	return active.Provider().SetAudioTrack(index)
}
