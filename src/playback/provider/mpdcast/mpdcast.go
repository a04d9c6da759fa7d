// Package mpdcast implements the provider that routes playback to a remote
// MPD receiver. It is the cast variant of the provider set: it drives no
// local surface, so casting swaps it in without claiming the visible
// container.
package mpdcast

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	log "github.com/sirupsen/logrus"

	"playbox/src/playback"
	"playbox/src/playback/element"
	"playbox/src/playlist"
	"playbox/src/util"
)

const pollInterval = time.Second

// A Provider proxies play/pause/seek/volume control to a remote MPD
// receiver and translates its status into the normalized event vocabulary.
type Provider struct {
	util.Emitter

	network, address string
	passwd           string

	// Running the idle watcher on the same connection as command traffic
	// confuses MPD, so the watcher gets its own connection.
	watcher *mpd.Watcher

	lock       sync.Mutex
	item       *playlist.Item
	state      playback.State
	duration   time.Duration
	lastVolume int
	muted      bool
	destroyed  chan struct{}
}

// Connect establishes a connection to the remote receiver.
func Connect(network, address string, password *string) (*Provider, error) {
	var passwd string
	if password != nil {
		passwd = *password
	}
	watcher, err := mpd.NewWatcher(network, address, passwd, "player", "mixer")
	if err != nil {
		return nil, fmt.Errorf("unable to connect to cast receiver: %w", err)
	}

	p := &Provider{
		network:    network,
		address:    address,
		passwd:     passwd,
		watcher:    watcher,
		state:      playback.StateIdle,
		lastVolume: 100,
		destroyed:  make(chan struct{}),
	}
	go p.eventLoop()
	go p.pollLoop()
	return p, nil
}

// Name implements the playback.Provider interface.
func (p *Provider) Name() string { return "mpdcast" }

func (p *Provider) withMpd(fn func(*mpd.Client) error) error {
	client, err := mpd.DialAuthenticated(p.network, p.address, p.passwd)
	if err != nil {
		return playback.NewMediaError(playback.CategoryNetwork, 0, err.Error())
	}
	defer client.Close()
	return fn(client)
}

func (p *Provider) eventLoop() {
	for {
		select {
		case subsystem, ok := <-p.watcher.Event:
			if !ok {
				return
			}
			if subsystem == "player" || subsystem == "mixer" {
				p.refreshStatus()
			}
		case err := <-p.watcher.Error:
			log.Errorf("Cast receiver watcher: %v", err)
		case <-p.destroyed:
			return
		}
	}
}

func (p *Provider) pollLoop() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.lock.Lock()
			active := p.state.Active()
			p.lock.Unlock()
			if active {
				p.refreshStatus()
			}
		case <-p.destroyed:
			return
		}
	}
}

func (p *Provider) refreshStatus() {
	err := p.withMpd(func(mpdc *mpd.Client) error {
		status, err := mpdc.Status()
		if err != nil {
			return err
		}

		var state playback.State
		switch status["state"] {
		case "play":
			state = playback.StatePlaying
		case "pause":
			state = playback.StatePaused
		default:
			state = playback.StateIdle
		}

		elapsed, _ := strconv.ParseFloat(status["elapsed"], 64)
		durationSec, _ := strconv.ParseFloat(status["duration"], 64)
		position := time.Duration(elapsed * float64(time.Second))
		duration := time.Duration(durationSec * float64(time.Second))

		p.lock.Lock()
		if duration > 0 {
			p.duration = duration
		}
		duration = p.duration
		old := p.state
		loaded := p.item != nil
		// The receiver reports "stop" both when idle and when the
		// queue ran out, which for a single-item queue means complete.
		completed := loaded && old.Active() && state == playback.StateIdle && status["playlistlength"] == "0"
		if completed {
			state = playback.StateComplete
		}
		if old != state && old != playback.StateError {
			p.state = state
		} else {
			state = old
		}
		p.lock.Unlock()

		if state != old {
			p.Emit(playback.StateChangeEvent{NewState: state, OldState: old})
			if state == playback.StateComplete {
				p.Emit(playback.CompleteEvent{})
			}
		}
		if state == playback.StatePlaying {
			p.Emit(playback.TimeEvent{
				Position:  position,
				Duration:  duration,
				SeekRange: playback.SeekRange{End: duration},
			})
		}
		return nil
	})
	if err != nil {
		log.Errorf("Cast receiver status: %v", err)
	}
}

// Load implements the playback.Provider interface.
func (p *Provider) Load(ctx context.Context, item *playlist.Item) error {
	src, err := item.PrimarySource()
	if err != nil {
		return &playback.SourceError{ItemID: item.ID}
	}

	err = p.withMpd(func(mpdc *mpd.Client) error {
		if err := mpdc.Clear(); err != nil {
			return err
		}
		if err := mpdc.Add(src.URI); err != nil {
			return err
		}
		if item.StartTime > 0 {
			if err := mpdc.Play(0); err != nil {
				return err
			}
			if err := mpdc.SeekCur(item.StartTime, false); err != nil {
				return err
			}
			return mpdc.Pause(true)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.lock.Lock()
	p.item = item
	p.duration = 0
	p.state = playback.StateIdle
	p.lock.Unlock()

	p.Emit(playback.MetaEvent{})
	p.Emit(playback.ReadyEvent{})
	return nil
}

// Play implements the playback.Provider interface.
func (p *Provider) Play(ctx context.Context) error {
	return p.withMpd(func(mpdc *mpd.Client) error {
		status, err := mpdc.Status()
		if err != nil {
			return err
		}
		if status["state"] == "pause" {
			return mpdc.Pause(false)
		}
		return mpdc.Play(0)
	})
}

// Pause implements the playback.Provider interface.
func (p *Provider) Pause() {
	if err := p.withMpd(func(mpdc *mpd.Client) error {
		return mpdc.Pause(true)
	}); err != nil {
		log.Errorf("Cast receiver pause: %v", err)
	}
}

// Stop implements the playback.Provider interface.
func (p *Provider) Stop() {
	if err := p.withMpd(func(mpdc *mpd.Client) error {
		if err := mpdc.Stop(); err != nil {
			return err
		}
		return mpdc.Clear()
	}); err != nil {
		log.Errorf("Cast receiver stop: %v", err)
	}
	p.lock.Lock()
	old := p.state
	p.state = playback.StateIdle
	p.lock.Unlock()
	if old != playback.StateIdle {
		p.Emit(playback.StateChangeEvent{NewState: playback.StateIdle, OldState: old})
	}
}

// Seek implements the playback.Provider interface.
func (p *Provider) Seek(pos time.Duration) {
	p.lock.Lock()
	duration := p.duration
	p.lock.Unlock()
	pos = playback.ClampSeek(pos, duration, playback.SeekRange{End: duration}, playback.DefaultLiveConfig())
	if err := p.withMpd(func(mpdc *mpd.Client) error {
		return mpdc.SeekCur(pos, false)
	}); err != nil {
		log.Errorf("Cast receiver seek: %v", err)
	}
}

// SetVolume implements the playback.Provider interface.
func (p *Provider) SetVolume(vol int) {
	if vol < 0 {
		vol = 0
	} else if vol > 100 {
		vol = 100
	}
	p.lock.Lock()
	if vol > 0 {
		p.lastVolume = vol
	}
	muted := p.muted
	p.lock.Unlock()
	if muted {
		return
	}
	if err := p.withMpd(func(mpdc *mpd.Client) error {
		return mpdc.SetVolume(vol)
	}); err != nil {
		log.Errorf("Cast receiver volume: %v", err)
	}
	p.Emit(playback.VolumeEvent{Volume: vol})
}

// SetMute implements the playback.Provider interface.
func (p *Provider) SetMute(mute bool) {
	p.lock.Lock()
	p.muted = mute
	restore := p.lastVolume
	p.lock.Unlock()

	vol := 0
	if !mute {
		vol = restore
	}
	if err := p.withMpd(func(mpdc *mpd.Client) error {
		return mpdc.SetVolume(vol)
	}); err != nil {
		log.Errorf("Cast receiver mute: %v", err)
	}
	p.Emit(playback.MuteEvent{Mute: mute})
}

// SetRate implements the playback.Provider interface. MPD does not support
// rate changes; the call is ignored.
func (p *Provider) SetRate(rate float64) {
	log.Debugf("Cast receiver does not support playback rate %v", rate)
}

// QualityLevels implements the playback.Provider interface.
func (p *Provider) QualityLevels() []playback.QualityLevel { return nil }

// SetQualityLevel implements the playback.Provider interface.
func (p *Provider) SetQualityLevel(index int) error {
	return fmt.Errorf("cast receiver has no quality levels")
}

// AudioTracks implements the playback.Provider interface.
func (p *Provider) AudioTracks() []playback.AudioTrack { return nil }

// SetAudioTrack implements the playback.Provider interface.
func (p *Provider) SetAudioTrack(index int) error {
	return fmt.Errorf("cast receiver has no audio tracks")
}

// AttachMedia implements the playback.Provider interface. The receiver is
// remote, so there is no local surface to bind.
func (p *Provider) AttachMedia(s element.Surface) error { return nil }

// DetachMedia implements the playback.Provider interface.
func (p *Provider) DetachMedia() element.Surface { return nil }

// Destroy implements the playback.Provider interface.
func (p *Provider) Destroy() {
	p.lock.Lock()
	select {
	case <-p.destroyed:
		p.lock.Unlock()
		return
	default:
	}
	close(p.destroyed)
	p.lock.Unlock()
	if err := p.watcher.Close(); err != nil {
		log.Errorf("Cast receiver watcher close: %v", err)
	}
}
