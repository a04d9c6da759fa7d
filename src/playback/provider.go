package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"playbox/src/playback/element"
	"playbox/src/playlist"
	"playbox/src/util"
)

// ErrNoProvider is returned when no registered provider supports an item's
// source.
var ErrNoProvider = errors.New("no provider supports the source")

// A Provider adapts one playback backend to the engine.
//
// Providers own at most one physical playback surface and translate the
// backend's native events into the normalized event vocabulary of this
// package. The engine never lets two providers drive the same surface.
type Provider interface {
	util.Eventer

	Name() string

	// Load points the provider at a new item. Metadata and readiness are
	// reported asynchronously through Meta and Ready events.
	Load(ctx context.Context, item *playlist.Item) error

	// Play starts or resumes playback, blocking until the backend accepts
	// or rejects the attempt.
	Play(ctx context.Context) error
	Pause()
	Stop()

	// Seek moves playback. On-demand positions are absolute; DVR positions
	// are offsets behind the live edge.
	Seek(pos time.Duration)

	SetVolume(vol int)
	SetMute(mute bool)
	SetRate(rate float64)

	QualityLevels() []QualityLevel
	SetQualityLevel(index int) error
	AudioTracks() []AudioTrack
	SetAudioTrack(index int) error

	// AttachMedia binds the provider to a playback surface. DetachMedia
	// releases and returns the handle without losing track of position or
	// duration; providers that do not drive a local surface return nil.
	AttachMedia(s element.Surface) error
	DetachMedia() element.Surface

	Destroy()
}

// A Factory constructs providers and declares which sources they support.
type Factory struct {
	Name     string
	Supports func(src playlist.Source) bool
	New      func(s element.Surface) (Provider, error)
}

// A Registry holds the provider selection policy: the first registered
// factory whose declared support matches the source wins.
type Registry struct {
	factories []Factory
}

func NewRegistry(factories ...Factory) *Registry {
	return &Registry{factories: factories}
}

// Register appends a factory to the selection order.
func (r *Registry) Register(f Factory) {
	r.factories = append(r.factories, f)
}

// Choose selects the factory for the item's primary source.
func (r *Registry) Choose(item *playlist.Item) (*Factory, error) {
	src, err := item.PrimarySource()
	if err != nil {
		return nil, &SourceError{ItemID: item.ID}
	}
	for i := range r.factories {
		if r.factories[i].Supports(src) {
			return &r.factories[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q (%s)", ErrNoProvider, src.URI, src.MIMEType())
}
