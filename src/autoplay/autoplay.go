// Package autoplay implements the playback capability probe that runs
// before the first automatic play attempt, and the viewability gate for
// play-when-visible behavior.
package autoplay

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"playbox/src/playback"
	"playbox/src/playback/element"
)

// DefaultTimeout bounds a single capability probe. A probe that exceeds it
// fails with ErrAutoplayTimeout, which callers may retry once; a rejection
// by the backend is permanent for the session.
const DefaultTimeout = 10 * time.Second

// Outcome is the result of probing the automatic playback capability.
type Outcome int

const (
	// OutcomeEnabled means unmuted automatic playback is allowed.
	OutcomeEnabled Outcome = iota
	// OutcomeMuted means automatic playback is allowed only while muted.
	OutcomeMuted
	// OutcomeDisabled means automatic playback is not allowed at all.
	OutcomeDisabled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEnabled:
		return "enabled"
	case OutcomeMuted:
		return "muted"
	case OutcomeDisabled:
		return "disabled"
	default:
		return "invalid"
	}
}

// A Cache stores probe results per mute class for the lifetime of the
// process. The capability test is expensive and its result does not change
// within a session for a given muted or unmuted configuration.
//
// The cache is injected into the probe rather than kept as package state,
// and holds at most max entries with oldest-first eviction.
type Cache struct {
	lock    sync.Mutex
	max     int
	entries map[bool]bool
	order   []bool
}

// NewCache returns a cache bounded to max entries.
func NewCache(max int) *Cache {
	if max < 1 {
		max = 1
	}
	return &Cache{max: max, entries: map[bool]bool{}}
}

// Get looks up the cached allowed/refused verdict for a mute class.
func (c *Cache) Get(muted bool) (allowed, ok bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	allowed, ok = c.entries[muted]
	return allowed, ok
}

// Put records the verdict for a mute class, evicting the oldest entry when
// the cache is full.
func (c *Cache) Put(muted, allowed bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.entries[muted]; !ok {
		for len(c.entries) >= c.max && len(c.order) > 0 {
			delete(c.entries, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, muted)
	}
	c.entries[muted] = allowed
}

// Evict drops the entry for a mute class.
func (c *Cache) Evict(muted bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.entries[muted]; !ok {
		return
	}
	delete(c.entries, muted)
	for i, k := range c.order {
		if k == muted {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of cached verdicts.
func (c *Cache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.entries)
}

// A Probe tests whether a playback surface accepts automatic play.
type Probe struct {
	Timeout time.Duration

	cache *Cache
}

// NewProbe returns a probe backed by the given result cache.
func NewProbe(cache *Cache) *Probe {
	return &Probe{Timeout: DefaultTimeout, cache: cache}
}

// Allowed tests a single mute class: it starts playback on the surface and
// immediately pauses it again. A nil error means automatic play is allowed
// for that class. Rejections are cached; timeouts are not, so a later call
// may try again.
func (p *Probe) Allowed(ctx context.Context, s element.Surface, muted bool) error {
	if allowed, ok := p.cache.Get(muted); ok {
		if allowed {
			return nil
		}
		return playback.ErrAutoplayDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	wasMuted := s.Muted()
	s.SetMuted(muted)
	err := s.Play(ctx)
	s.Pause()
	s.SetMuted(wasMuted)

	switch {
	case err == nil:
		p.cache.Put(muted, true)
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		log.WithField("muted", muted).Debugf("Autoplay probe timed out")
		return playback.ErrAutoplayTimeout
	case errors.Is(err, context.Canceled):
		return err
	default:
		p.cache.Put(muted, false)
		return playback.ErrAutoplayDisabled
	}
}

// Run resolves the session's autoplay capability: unmuted play is probed
// first and a muted probe follows only if unmuted play was refused. A
// timeout aborts the sequence with ErrAutoplayTimeout.
func (p *Probe) Run(ctx context.Context, s element.Surface) (Outcome, error) {
	err := p.Allowed(ctx, s, false)
	if err == nil {
		return OutcomeEnabled, nil
	}
	if !errors.Is(err, playback.ErrAutoplayDisabled) {
		return OutcomeDisabled, err
	}

	err = p.Allowed(ctx, s, true)
	if err == nil {
		return OutcomeMuted, nil
	}
	if !errors.Is(err, playback.ErrAutoplayDisabled) {
		return OutcomeDisabled, err
	}
	return OutcomeDisabled, playback.ErrAutoplayDisabled
}
