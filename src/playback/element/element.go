// Package element models the physical playback surface that providers drive.
//
// A Surface emits backend-native events; translating those into the
// engine's normalized vocabulary is the job of a provider. Surfaces are
// allocated from a shared Pool and at most one of them is mounted to the
// visible Container at any time.
package element

import (
	"context"
	"errors"
	"sync"
	"time"

	"playbox/src/util"
)

// ErrPlayRejected is returned by a surface when a play attempt is rejected
// by the environment's playback policy.
var ErrPlayRejected = errors.New("play rejected by playback policy")

// Native media failure codes, mirroring the classic media element error
// numbering.
const (
	ErrAborted         = 1
	ErrNetwork         = 2
	ErrDecode          = 3
	ErrSrcNotSupported = 4
)

// A MediaFailure is a backend-native playback failure.
type MediaFailure struct {
	Code    int
	Message string
}

func (f *MediaFailure) Error() string {
	return f.Message
}

// A Level is one backend-native quality rendition.
type Level struct {
	Label   string
	Bitrate int
	Width   int
	Height  int
}

// An AudioTrack is one backend-native audio rendition.
type AudioTrack struct {
	Label    string
	Language string
}

// Backend-native events emitted by a Surface.
type (
	// LoadedMetadata fires once the duration and renditions of the current
	// source are known. Live media without DVR reports a zero Duration with
	// Live set; a nonzero DVRWindow marks a seekable live stream.
	LoadedMetadata struct {
		Duration    time.Duration
		Live        bool
		DVRWindow   time.Duration
		Width       int
		Height      int
		Levels      []Level
		AudioTracks []AudioTrack
	}

	TimeUpdate struct {
		Position time.Duration
	}
	Progress struct {
		BufferedPercent float64
	}
	Playing    struct{}
	Paused     struct{}
	Waiting    struct{}
	Seeking    struct{}
	Seeked     struct{}
	Ended      struct{}
	Emptied    struct{}
	Stalled    struct{}
	RateChange struct {
		Rate float64
	}
	VolumeChange struct {
		Volume int
		Muted  bool
	}
	LevelSwitch struct {
		Index int
	}
	AudioTrackSwitch struct {
		Index int
	}
	ErrorFired struct {
		Failure *MediaFailure
	}
)

// A Surface is one physical playback surface.
//
// Exactly one provider may drive a surface at a time; the engine enforces
// this through exclusive ownership of the handle.
type Surface interface {
	util.Eventer

	// SetSource points the surface at new media, resetting position and
	// metadata. An empty uri clears the surface.
	SetSource(uri string) error
	Source() string

	// Play starts or resumes playback. The call blocks until the backend
	// accepts or rejects the attempt; a rejection by the environment's
	// playback policy is reported as ErrPlayRejected.
	Play(ctx context.Context) error
	Pause()

	Seek(pos time.Duration)
	Position() time.Duration
	Duration() time.Duration
	Live() bool
	DVRWindow() time.Duration
	SeekRange() (start, end time.Duration)
	Paused() bool

	SetVolume(vol int)
	Volume() int
	SetMuted(muted bool)
	Muted() bool
	SetRate(rate float64)
	Rate() float64

	QualityLevels() []Level
	CurrentLevel() int
	SetLevel(index int) error

	AudioTracks() []AudioTrack
	CurrentAudioTrack() int
	SetAudioTrack(index int) error
}

// A Container is the mount point visible to the user. At most one surface is
// mounted at a time.
type Container struct {
	lock    sync.Mutex
	current Surface
}

func NewContainer() *Container {
	return &Container{}
}

// Mount makes the surface the visible one, displacing any previous surface.
// The displaced surface is returned.
func (c *Container) Mount(s Surface) Surface {
	c.lock.Lock()
	defer c.lock.Unlock()
	prev := c.current
	c.current = s
	return prev
}

// Unmount removes the surface if it is currently mounted.
func (c *Container) Unmount(s Surface) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.current == s {
		c.current = nil
	}
}

// Current returns the mounted surface or nil.
func (c *Container) Current() Surface {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.current
}
