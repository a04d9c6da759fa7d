package engine

import (
	"fmt"

	"playbox/src/playlist"
)

// captionState tracks the side-loaded text tracks of the active item. The
// selected index persists across item changes so a viewer who turned
// captions on keeps them on for the next item when it carries tracks.
type captionState struct {
	tracks   []playlist.TextTrack
	selected int
	sticky   bool
}

// SetTextTracks replaces the caption track list. Called on item activation
// with the item's side-loaded tracks; a track marked default is selected
// unless a sticky previous selection applies.
func (e *Engine) SetTextTracks(tracks []playlist.TextTrack) {
	e.lock.Lock()
	e.captions.tracks = tracks
	selected := -1
	if e.captions.sticky && e.captions.selected >= 0 && e.captions.selected < len(tracks) {
		selected = e.captions.selected
	} else {
		for i, t := range tracks {
			if t.Default {
				selected = i
				break
			}
		}
	}
	e.captions.selected = selected
	e.lock.Unlock()

	e.Emit(CaptionsListEvent{Tracks: tracks, Current: selected})
	e.Emit(CaptionsChangedEvent{Current: selected})
}

// CaptionTracks returns the active item's text tracks and the selected
// index, -1 when captions are off.
func (e *Engine) CaptionTracks() ([]playlist.TextTrack, int) {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.captions.tracks, e.captions.selected
}

// SetCurrentCaptions selects a text track by index. An index of -1 turns
// captions off. The choice is remembered across item changes.
func (e *Engine) SetCurrentCaptions(index int) error {
	e.lock.Lock()
	if index < -1 || index >= len(e.captions.tracks) {
		n := len(e.captions.tracks)
		e.lock.Unlock()
		return fmt.Errorf("caption track index %d out of range 0-%d", index, n-1)
	}
	e.captions.selected = index
	e.captions.sticky = true
	e.lock.Unlock()

	e.Emit(CaptionsChangedEvent{Current: index})
	return nil
}

// AddCaptionsCue delivers a timed text cue from an external caption source.
// Cues for unselected tracks are dropped.
func (e *Engine) AddCaptionsCue(cue Cue) {
	e.lock.Lock()
	selected := e.captions.selected
	e.lock.Unlock()
	if selected < 0 || cue.Track != selected {
		return
	}
	e.Emit(CaptionCueEvent{Cue: cue})
}
