package engine

import (
	"playbox/src/playback"
	"playbox/src/playlist"
)

// The engine re-emits the normalized playback vocabulary (time, buffer,
// levels, audio tracks, seek, complete, error) unchanged and adds the
// player-level events below.

// PlayEvent is emitted when playback enters the playing state.
type PlayEvent struct {
	Reason playback.Reason
}

// PauseEvent is emitted when playback is paused.
type PauseEvent struct {
	Reason playback.Reason
}

// BufferingEvent is emitted when playback stalls waiting for data.
type BufferingEvent struct{}

// IdleEvent is emitted when the engine returns to idle.
type IdleEvent struct{}

// PlaylistItemEvent is emitted when a playlist item becomes active.
type PlaylistItemEvent struct {
	Index int
	Item  *playlist.Item
}

// PlaylistCompleteEvent is emitted after the last item completes and repeat
// is off.
type PlaylistCompleteEvent struct{}

// FullscreenEvent mirrors the fullscreen attribute.
type FullscreenEvent struct {
	Fullscreen bool
}

// CastEvent is emitted when playback moves to or from a remote receiver.
type CastEvent struct {
	Active bool
}

// AutostartFailedEvent is emitted when automatic playback was abandoned and
// the engine is waiting for an explicit play gesture.
type AutostartFailedEvent struct {
	Err error
}

// CaptionsListEvent carries the side-loaded text tracks of the active item.
type CaptionsListEvent struct {
	Tracks  []playlist.TextTrack
	Current int
}

// CaptionsChangedEvent is emitted when the selected text track changes. An
// index of -1 means captions are off.
type CaptionsChangedEvent struct {
	Current int
}

// A Cue is one timed text fragment pushed by a caption source.
type Cue struct {
	Track int
	Begin float64
	End   float64
	Text  string
}

// CaptionCueEvent delivers a cue for the selected text track.
type CaptionCueEvent struct {
	Cue Cue
}
