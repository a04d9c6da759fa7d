package model

import (
	"time"

	"playbox/src/playback"
	"playbox/src/playlist"
)

// Keys of the per-item media store. The store holding them is created on
// item activation and discarded wholesale on the next activation.
const (
	KeyMediaState     = "mediaState"
	KeyPosition       = "position"
	KeyDuration       = "duration"
	KeyBuffer         = "buffer"
	KeySeekRange      = "seekRange"
	KeyItem           = "item"
	KeyLevels         = "levels"
	KeyCurrentLevel   = "currentLevel"
	KeyAudioTracks    = "audioTracks"
	KeyAudioTrack     = "currentAudioTrack"
	KeySubtitleTracks = "subtitleTracks"
	KeySubtitleTrack  = "currentSubtitleTrack"
	KeyPlayRejected   = "playRejected"
	KeyPlayReason     = "playReason"
	KeyPauseReason    = "pauseReason"
	KeySeekReason     = "seekReason"
	KeyStarted        = "started"
	KeyPreloaded      = "preloaded"
)

// A MediaModel is the per-item attribute store tracking what one media
// controller's backend is doing.
type MediaModel struct {
	*Store
}

func NewMediaModel(item *playlist.Item) *MediaModel {
	m := &MediaModel{Store: NewStore()}
	m.Set(KeyItem, item)
	m.Set(KeyMediaState, playback.StateIdle)
	m.Set(KeyPosition, time.Duration(0))
	m.Set(KeyDuration, time.Duration(0))
	m.Set(KeyBuffer, float64(0))
	m.Set(KeyPlayRejected, false)
	m.Set(KeyStarted, false)
	return m
}

func (m *MediaModel) Item() *playlist.Item {
	item, _ := m.GetDefault(KeyItem, (*playlist.Item)(nil)).(*playlist.Item)
	return item
}

func (m *MediaModel) MediaState() playback.State {
	return m.GetDefault(KeyMediaState, playback.StateIdle).(playback.State)
}

func (m *MediaModel) SetMediaState(state playback.State) {
	m.Set(KeyMediaState, state)
}

func (m *MediaModel) Position() time.Duration {
	return m.GetDefault(KeyPosition, time.Duration(0)).(time.Duration)
}

func (m *MediaModel) Duration() time.Duration {
	return m.GetDefault(KeyDuration, time.Duration(0)).(time.Duration)
}

func (m *MediaModel) SeekRange() playback.SeekRange {
	return m.GetDefault(KeySeekRange, playback.SeekRange{}).(playback.SeekRange)
}

func (m *MediaModel) PlayRejected() bool {
	return m.GetDefault(KeyPlayRejected, false).(bool)
}

func (m *MediaModel) Started() bool {
	return m.GetDefault(KeyStarted, false).(bool)
}

func (m *MediaModel) PlayReason() playback.Reason {
	return m.GetDefault(KeyPlayReason, playback.ReasonUnknown).(playback.Reason)
}

func (m *MediaModel) PauseReason() playback.Reason {
	return m.GetDefault(KeyPauseReason, playback.ReasonUnknown).(playback.Reason)
}

func (m *MediaModel) SeekReason() playback.Reason {
	return m.GetDefault(KeySeekReason, playback.ReasonUnknown).(playback.Reason)
}
