package element

import (
	"errors"
	"sync"
)

// ErrPoolExhausted is returned by Acquire when all surfaces are leased.
var ErrPoolExhausted = errors.New("all playback surfaces are in use")

// A Pool is a shared set of recyclable playback surfaces.
//
// Surfaces are recycled when returned: the source is cleared and playback is
// stopped. A surface is never destroyed while it is leased.
type Pool struct {
	lock   sync.Mutex
	free   []Surface
	leased map[Surface]struct{}
}

// NewPool constructs a pool holding size surfaces built by the factory.
func NewPool(size int, factory func() Surface) *Pool {
	p := &Pool{leased: map[Surface]struct{}{}}
	for i := 0; i < size; i++ {
		p.free = append(p.free, factory())
	}
	return p
}

// Acquire leases a surface from the pool.
func (p *Pool) Acquire() (Surface, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.free) == 0 {
		return nil, ErrPoolExhausted
	}
	s := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.leased[s] = struct{}{}
	return s, nil
}

// Release recycles a leased surface and returns it to the pool. Releasing a
// surface that was not leased from this pool is a no-op.
func (p *Pool) Release(s Surface) {
	if s == nil {
		return
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if _, ok := p.leased[s]; !ok {
		return
	}
	delete(p.leased, s)

	s.Pause()
	s.SetSource("")
	p.free = append(p.free, s)
}

// Free returns the number of surfaces available for lease.
func (p *Pool) Free() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.free)
}
