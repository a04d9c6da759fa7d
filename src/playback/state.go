package playback

// State is the externally observable media state.
//
// Exactly one state is authoritative at a time. StateError preempts all
// others and is cleared only by activating a new item.
type State string

const (
	StateIdle      State = "idle"
	StateBuffering State = "buffering"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateComplete  State = "complete"
	StateError     State = "error"
)

// Valid reports whether the state is part of the normalized vocabulary.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateBuffering, StatePlaying, StatePaused, StateComplete, StateError:
		return true
	}
	return false
}

// Active reports whether media is expected to make progress in this state.
func (s State) Active() bool {
	return s == StatePlaying || s == StateBuffering
}

// A Reason describes what prompted a play, pause or seek call. It is
// persisted on the model and echoed back in emitted events so downstream
// consumers can distinguish user-driven from programmatic transitions.
type Reason string

const (
	ReasonInteraction Reason = "interaction"
	ReasonAutostart   Reason = "autostart"
	ReasonPlaylist    Reason = "playlist"
	ReasonViewable    Reason = "viewable"
	ReasonRepeat      Reason = "repeat"
	ReasonExternal    Reason = "external"
	ReasonUnknown     Reason = "unknown"
)

// OrUnknown maps the empty string to ReasonUnknown.
func (r Reason) OrUnknown() Reason {
	if r == "" {
		return ReasonUnknown
	}
	return r
}
