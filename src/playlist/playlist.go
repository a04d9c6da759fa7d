package playlist

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoPlayableSource is returned when an item contains no source any
// provider can play.
var ErrNoPlayableSource = errors.New("item has no playable source")

// A Source is a single physical representation of an item's media.
type Source struct {
	URI   string `yaml:"uri" json:"file"`
	Type  string `yaml:"type" json:"type"`
	Label string `yaml:"label" json:"label,omitempty"`

	// Default marks the source preferred over other sources of the item.
	Default bool `yaml:"default" json:"default,omitempty"`
}

// MIMEType maps the source type to a MIME type, guessing from the URI
// extension if no type is set.
func (src Source) MIMEType() string {
	typ := src.Type
	if typ == "" {
		typ = strings.TrimPrefix(path.Ext(src.URI), ".")
	}
	switch typ {
	case "mp4", "m4v":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "ogg", "ogv":
		return "video/ogg"
	case "mp3":
		return "audio/mpeg"
	case "aac", "m4a":
		return "audio/aac"
	case "hls", "m3u8":
		return "application/vnd.apple.mpegurl"
	case "dash", "mpd":
		return "application/dash+xml"
	default:
		return typ
	}
}

// A TextTrack points to side-loaded captions or chapters for an item.
type TextTrack struct {
	URI     string `yaml:"uri" json:"file"`
	Kind    string `yaml:"kind" json:"kind"`
	Label   string `yaml:"label" json:"label,omitempty"`
	Default bool   `yaml:"default" json:"default,omitempty"`
}

// AdBreak schedules an instream advertisement relative to an item.
type AdBreak struct {
	// Offset is "pre", "post" or a duration in seconds from the start.
	Offset string   `yaml:"offset" json:"offset"`
	Items  []string `yaml:"items" json:"items"`

	// SkipOffset is the number of seconds after which the ad may be
	// skipped. Zero disables skipping.
	SkipOffset time.Duration `yaml:"skipoffset" json:"skipoffset,omitempty"`
}

// An Item is one entry of a playlist.
type Item struct {
	ID        string        `yaml:"id" json:"id"`
	Title     string        `yaml:"title" json:"title,omitempty"`
	Sources   []Source      `yaml:"sources" json:"sources"`
	Tracks    []TextTrack   `yaml:"tracks" json:"tracks,omitempty"`
	StartTime time.Duration `yaml:"starttime" json:"starttime,omitempty"`
	AdBreaks  []AdBreak     `yaml:"adschedule" json:"adschedule,omitempty"`
}

// Feed is a normalized playlist along with feed-level metadata.
type Feed struct {
	Title string            `yaml:"title" json:"title,omitempty"`
	Items []Item            `yaml:"playlist" json:"playlist"`
	Meta  map[string]string `yaml:"meta" json:"meta,omitempty"`
}

// Normalize fills in identifiers for items that lack one and drops items
// without any source.
//
// An error is returned if no items remain.
func Normalize(items []Item) ([]Item, error) {
	normalized := make([]Item, 0, len(items))
	for _, item := range items {
		if len(item.Sources) == 0 {
			continue
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		normalized = append(normalized, item)
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("playlist: %w", ErrNoPlayableSource)
	}
	return normalized, nil
}

// PrimarySource resolves the source that should be attempted first: the
// first source marked default, or the first source otherwise.
func (item *Item) PrimarySource() (Source, error) {
	if len(item.Sources) == 0 {
		return Source{}, ErrNoPlayableSource
	}
	for _, src := range item.Sources {
		if src.Default {
			return src, nil
		}
	}
	return item.Sources[0], nil
}
