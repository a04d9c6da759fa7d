package element

import (
	"context"
	"fmt"
	"sync"
	"time"

	"playbox/src/util"
)

// Media describes one addressable piece of media known to a SimSurface.
type Media struct {
	Duration    time.Duration
	Live        bool
	DVRWindow   time.Duration
	Width       int
	Height      int
	Levels      []Level
	AudioTracks []AudioTrack
}

// A SimSurface is a self-contained playback surface. It resolves sources
// against a media registry and advances position on its own, either in real
// time through a tick interval or manually through Advance.
//
// It doubles as the engine's reference backend and as the deterministic
// surface used throughout the tests.
type SimSurface struct {
	util.Emitter

	// PlayPolicy emulates the environment's autoplay policy. It is consulted
	// on every play attempt; returning an error rejects the attempt.
	PlayPolicy func(muted bool) error

	lock     sync.Mutex
	registry map[string]Media

	source     string
	media      Media
	loaded     bool
	position   time.Duration
	seekStart  time.Duration
	seekEnd    time.Duration
	paused     bool
	volume     int
	muted      bool
	rate       float64
	level      int
	audioTrack int

	pendingFailures []*MediaFailure
	ticker          *time.Ticker
	tickStop        chan struct{}
	tickInterval    time.Duration
}

// NewSimSurface constructs a surface resolving sources against the given
// media registry.
func NewSimSurface(registry map[string]Media) *SimSurface {
	return &SimSurface{
		registry: registry,
		paused:   true,
		volume:   100,
		rate:     1,
	}
}

// NewTickingSimSurface constructs a surface that advances position in real
// time while playing.
func NewTickingSimSurface(registry map[string]Media, interval time.Duration) *SimSurface {
	s := NewSimSurface(registry)
	s.tickInterval = interval
	return s
}

// FailNextPlay schedules a native failure to be fired instead of the next
// successful play attempt.
func (s *SimSurface) FailNextPlay(code int, message string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.pendingFailures = append(s.pendingFailures, &MediaFailure{Code: code, Message: message})
}

// InjectFailure fires a native failure immediately, as if the backend hit it
// mid-playback.
func (s *SimSurface) InjectFailure(code int, message string) {
	s.lock.Lock()
	s.paused = true
	s.stopTickingLocked()
	s.lock.Unlock()
	s.Emit(ErrorFired{Failure: &MediaFailure{Code: code, Message: message}})
}

// SetSource implements the Surface interface.
func (s *SimSurface) SetSource(uri string) error {
	s.lock.Lock()
	s.stopTickingLocked()
	s.source = uri
	s.loaded = false
	s.position = 0
	s.paused = true
	s.level = 0
	s.audioTrack = 0
	if uri == "" {
		s.media = Media{}
		s.lock.Unlock()
		s.Emit(Emptied{})
		return nil
	}

	media, ok := s.registry[uri]
	if !ok {
		s.lock.Unlock()
		s.Emit(ErrorFired{Failure: &MediaFailure{
			Code:    ErrSrcNotSupported,
			Message: fmt.Sprintf("no media at %q", uri),
		}})
		return nil
	}
	s.media = media
	s.loaded = true
	s.seekStart = 0
	s.seekEnd = media.Duration
	if media.Live {
		s.seekEnd = media.DVRWindow
		s.position = s.seekEnd
	}
	s.lock.Unlock()

	s.Emit(LoadedMetadata{
		Duration:    media.Duration,
		Live:        media.Live,
		DVRWindow:   media.DVRWindow,
		Width:       media.Width,
		Height:      media.Height,
		Levels:      media.Levels,
		AudioTracks: media.AudioTracks,
	})
	return nil
}

// Source implements the Surface interface.
func (s *SimSurface) Source() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.source
}

// Play implements the Surface interface.
func (s *SimSurface) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.lock.Lock()
	policy := s.PlayPolicy
	muted := s.muted
	loaded := s.source != "" && s.loaded
	s.lock.Unlock()

	if policy != nil {
		if err := policy(muted); err != nil {
			return err
		}
		// The policy may block; a context that expired in the meantime wins.
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if !loaded {
		if policy != nil {
			// A bare surface still answers its playback policy. The
			// capability probe plays an unloaded surface and only needs
			// the verdict.
			return nil
		}
		return &MediaFailure{Code: ErrAborted, Message: "no source"}
	}

	s.lock.Lock()
	if len(s.pendingFailures) > 0 {
		failure := s.pendingFailures[0]
		s.pendingFailures = s.pendingFailures[1:]
		s.lock.Unlock()
		s.Emit(ErrorFired{Failure: failure})
		return failure
	}

	s.paused = false
	s.startTickingLocked()
	s.lock.Unlock()

	s.Emit(Playing{})
	return nil
}

// Pause implements the Surface interface.
func (s *SimSurface) Pause() {
	s.lock.Lock()
	wasPaused := s.paused
	s.paused = true
	s.stopTickingLocked()
	s.lock.Unlock()
	if !wasPaused {
		s.Emit(Paused{})
	}
}

// Seek implements the Surface interface.
func (s *SimSurface) Seek(pos time.Duration) {
	s.lock.Lock()
	if !s.loaded {
		s.lock.Unlock()
		return
	}
	if pos < s.seekStart {
		pos = s.seekStart
	}
	if pos > s.seekEnd {
		pos = s.seekEnd
	}
	s.position = pos
	s.lock.Unlock()

	s.Emit(Seeking{})
	s.Emit(Seeked{})
	s.Emit(TimeUpdate{Position: pos})
}

// Advance moves playback time forward, emitting time updates and completion
// just like a real backend advancing on its own.
func (s *SimSurface) Advance(d time.Duration) {
	s.lock.Lock()
	if s.paused || !s.loaded {
		s.lock.Unlock()
		return
	}
	scaled := time.Duration(float64(d) * s.rate)
	s.position += scaled
	ended := false
	if s.media.Live {
		// The live edge advances along with us.
		s.seekEnd += scaled
		s.seekStart = s.seekEnd - s.media.DVRWindow
		if s.seekStart < 0 {
			s.seekStart = 0
		}
		if s.position > s.seekEnd {
			s.position = s.seekEnd
		}
	} else if s.position >= s.media.Duration {
		s.position = s.media.Duration
		s.paused = true
		s.stopTickingLocked()
		ended = true
	}
	pos := s.position
	s.lock.Unlock()

	s.Emit(TimeUpdate{Position: pos})
	if ended {
		s.Emit(Ended{})
	}
}

// Position implements the Surface interface.
func (s *SimSurface) Position() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.position
}

// Duration implements the Surface interface.
func (s *SimSurface) Duration() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.media.Duration
}

// Live implements the Surface interface.
func (s *SimSurface) Live() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.media.Live
}

// DVRWindow implements the Surface interface.
func (s *SimSurface) DVRWindow() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.media.DVRWindow
}

// SeekRange implements the Surface interface.
func (s *SimSurface) SeekRange() (time.Duration, time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.seekStart, s.seekEnd
}

// Paused implements the Surface interface.
func (s *SimSurface) Paused() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.paused
}

// SetVolume implements the Surface interface.
func (s *SimSurface) SetVolume(vol int) {
	if vol < 0 {
		vol = 0
	} else if vol > 100 {
		vol = 100
	}
	s.lock.Lock()
	changed := s.volume != vol
	s.volume = vol
	muted := s.muted
	s.lock.Unlock()
	if changed {
		s.Emit(VolumeChange{Volume: vol, Muted: muted})
	}
}

// Volume implements the Surface interface.
func (s *SimSurface) Volume() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.volume
}

// SetMuted implements the Surface interface.
func (s *SimSurface) SetMuted(muted bool) {
	s.lock.Lock()
	changed := s.muted != muted
	s.muted = muted
	vol := s.volume
	s.lock.Unlock()
	if changed {
		s.Emit(VolumeChange{Volume: vol, Muted: muted})
	}
}

// Muted implements the Surface interface.
func (s *SimSurface) Muted() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.muted
}

// SetRate implements the Surface interface.
func (s *SimSurface) SetRate(rate float64) {
	s.lock.Lock()
	changed := s.rate != rate
	s.rate = rate
	s.lock.Unlock()
	if changed {
		s.Emit(RateChange{Rate: rate})
	}
}

// Rate implements the Surface interface.
func (s *SimSurface) Rate() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.rate
}

// QualityLevels implements the Surface interface.
func (s *SimSurface) QualityLevels() []Level {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.media.Levels
}

// CurrentLevel implements the Surface interface.
func (s *SimSurface) CurrentLevel() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.level
}

// SetLevel implements the Surface interface.
func (s *SimSurface) SetLevel(index int) error {
	s.lock.Lock()
	if index < 0 || index >= len(s.media.Levels) {
		s.lock.Unlock()
		return fmt.Errorf("level index %d out of range", index)
	}
	s.level = index
	s.lock.Unlock()
	s.Emit(LevelSwitch{Index: index})
	return nil
}

// AudioTracks implements the Surface interface.
func (s *SimSurface) AudioTracks() []AudioTrack {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.media.AudioTracks
}

// CurrentAudioTrack implements the Surface interface.
func (s *SimSurface) CurrentAudioTrack() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.audioTrack
}

// SetAudioTrack implements the Surface interface.
func (s *SimSurface) SetAudioTrack(index int) error {
	s.lock.Lock()
	if index < 0 || index >= len(s.media.AudioTracks) {
		s.lock.Unlock()
		return fmt.Errorf("audio track index %d out of range", index)
	}
	s.audioTrack = index
	s.lock.Unlock()
	s.Emit(AudioTrackSwitch{Index: index})
	return nil
}

func (s *SimSurface) startTickingLocked() {
	if s.tickInterval == 0 || s.tickStop != nil {
		return
	}
	stop := make(chan struct{})
	s.tickStop = stop
	ticker := time.NewTicker(s.tickInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Advance(s.tickInterval)
			case <-stop:
				return
			}
		}
	}()
}

func (s *SimSurface) stopTickingLocked() {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
}
