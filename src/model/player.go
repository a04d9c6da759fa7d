package model

import "playbox/src/playback"

// Keys of the player-level store. Unlike the media store, these persist
// across item changes.
const (
	KeyState           = "state"
	KeyVolume          = "volume"
	KeyMute            = "mute"
	KeyFullscreen      = "fullscreen"
	KeyControls        = "controls"
	KeyRepeat          = "repeat"
	KeyPlaybackRate    = "playbackRate"
	KeyAutostart       = "autostart"
	KeyAutostartMuted  = "autostartMuted"
	KeyAutostartFailed = "autostartFailed"
	KeyPlaylistIndex   = "playlistIndex"
	KeyCastActive      = "castActive"
	KeyAdMode          = "adMode"
	KeyError           = "error"
)

// A PlayerModel is the player-level attribute store. It persists across
// items.
type PlayerModel struct {
	*Store
}

func NewPlayerModel() *PlayerModel {
	m := &PlayerModel{Store: NewStore()}
	m.Set(KeyState, playback.StateIdle)
	m.Set(KeyVolume, 100)
	m.Set(KeyMute, false)
	m.Set(KeyFullscreen, false)
	m.Set(KeyControls, true)
	m.Set(KeyRepeat, false)
	m.Set(KeyPlaybackRate, float64(1))
	m.Set(KeyPlaylistIndex, 0)
	m.Set(KeyCastActive, false)
	m.Set(KeyAdMode, false)
	return m
}

func (m *PlayerModel) State() playback.State {
	return m.GetDefault(KeyState, playback.StateIdle).(playback.State)
}

func (m *PlayerModel) Volume() int {
	return m.GetDefault(KeyVolume, 100).(int)
}

func (m *PlayerModel) Mute() bool {
	return m.GetDefault(KeyMute, false).(bool)
}

func (m *PlayerModel) Repeat() bool {
	return m.GetDefault(KeyRepeat, false).(bool)
}

func (m *PlayerModel) PlaybackRate() float64 {
	return m.GetDefault(KeyPlaybackRate, float64(1)).(float64)
}

func (m *PlayerModel) AutostartMuted() bool {
	return m.GetDefault(KeyAutostartMuted, false).(bool)
}

func (m *PlayerModel) PlaylistIndex() int {
	return m.GetDefault(KeyPlaylistIndex, 0).(int)
}

func (m *PlayerModel) CastActive() bool {
	return m.GetDefault(KeyCastActive, false).(bool)
}
