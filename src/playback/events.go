package playback

import "time"

// The types in this file form the normalized event vocabulary which all
// providers must translate their backend-native events into.

// ReadyEvent is emitted once a provider has loaded an item far enough to
// start playback.
type ReadyEvent struct{}

// FirstFrameEvent is emitted when the first frame of a new item has been
// rendered.
type FirstFrameEvent struct{}

// TimeEvent is emitted periodically while playback progresses.
type TimeEvent struct {
	// Position is negative for DVR live streams, expressed as an offset
	// behind the live edge. See Duration for the live stream convention.
	Position  time.Duration
	Duration  time.Duration
	SeekRange SeekRange
}

// BufferEvent reports the buffered fraction of the media in percent.
type BufferEvent struct {
	Percent float64
}

// MetaEvent is emitted when the metadata of the loaded item becomes known.
type MetaEvent struct {
	Duration  time.Duration
	Width     int
	Height    int
	SeekRange SeekRange
}

// StateChangeEvent is emitted whenever the media state changes.
type StateChangeEvent struct {
	NewState State
	OldState State
}

// SeekEvent is emitted when a seek starts. Providers leave Reason empty, it
// is stamped by the layer that knows who requested the seek.
type SeekEvent struct {
	Position time.Duration
	Offset   time.Duration
	Reason   Reason
}

// SeekedEvent is emitted once the backend has settled after a seek.
type SeekedEvent struct{}

// LevelsEvent carries the list of selectable quality levels. Indices are
// only stable until the next LevelsEvent.
type LevelsEvent struct {
	Levels  []QualityLevel
	Current int
}

// AudioTracksEvent carries the list of selectable audio tracks. Indices are
// only stable until the next AudioTracksEvent.
type AudioTracksEvent struct {
	Tracks  []AudioTrack
	Current int
}

// SubtitleTracksEvent carries the list of text tracks known for the item.
type SubtitleTracksEvent struct {
	Tracks  []string
	Current int
}

// RateChangeEvent is emitted when the playback rate changes.
type RateChangeEvent struct {
	Rate float64
}

// VolumeEvent is emitted when the volume changes. Volume ranges 0-100.
type VolumeEvent struct {
	Volume int
}

// MuteEvent is emitted when the mute state changes.
type MuteEvent struct {
	Mute bool
}

// CompleteEvent is emitted when the item has played to its end.
type CompleteEvent struct{}

// ErrorEvent is the escalated form of a playback failure, emitted after any
// internal retries have been exhausted.
type ErrorEvent struct {
	Code    int
	Message string
}
