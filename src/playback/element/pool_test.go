package element

import (
	"testing"
	"time"
)

func testRegistry() map[string]Media {
	return map[string]Media{
		"file:///a.mp4": {Duration: 120 * time.Second},
		"file:///b.mp4": {Duration: 60 * time.Second},
	}
}

func TestPoolAcquireRelease(t *testing.T) {
	pool := NewPool(2, func() Surface {
		return NewSimSurface(testRegistry())
	})

	if pool.Free() != 2 {
		t.Fatalf("Fresh pool: %d free, want 2", pool.Free())
	}

	a, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	b, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if a == b {
		t.Fatalf("Pool leased the same surface twice")
	}
	if _, err := pool.Acquire(); err != ErrPoolExhausted {
		t.Fatalf("Exhausted pool: got %v, want ErrPoolExhausted", err)
	}

	pool.Release(a)
	if pool.Free() != 1 {
		t.Fatalf("After release: %d free, want 1", pool.Free())
	}
	if _, err := pool.Acquire(); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	pool.Release(b)
}

func TestPoolRecyclesSurface(t *testing.T) {
	pool := NewPool(1, func() Surface {
		return NewSimSurface(testRegistry())
	})

	s, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := s.SetSource("file:///a.mp4"); err != nil {
		t.Fatalf("SetSource: %v", err)
	}
	pool.Release(s)

	recycled, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if recycled.Source() != "" {
		t.Fatalf("Recycled surface still has source %q", recycled.Source())
	}
	if !recycled.Paused() {
		t.Fatalf("Recycled surface is not paused")
	}
}

func TestPoolReleaseForeignSurface(t *testing.T) {
	pool := NewPool(1, func() Surface {
		return NewSimSurface(testRegistry())
	})

	// Surfaces that were never leased do not sneak into the pool.
	pool.Release(NewSimSurface(nil))
	pool.Release(nil)
	if pool.Free() != 1 {
		t.Fatalf("Foreign release changed pool size: %d free", pool.Free())
	}
}

func TestContainerMount(t *testing.T) {
	container := NewContainer()
	a := NewSimSurface(nil)
	b := NewSimSurface(nil)

	if displaced := container.Mount(a); displaced != nil {
		t.Fatalf("Mount on empty container displaced %v", displaced)
	}
	if container.Current() != Surface(a) {
		t.Fatalf("Mounted surface is not current")
	}

	if displaced := container.Mount(b); displaced != Surface(a) {
		t.Fatalf("Mount did not report the displaced surface")
	}

	// Unmounting a surface that is no longer mounted is a no-op.
	container.Unmount(a)
	if container.Current() != Surface(b) {
		t.Fatalf("Unmount of stale surface cleared the container")
	}
	container.Unmount(b)
	if container.Current() != nil {
		t.Fatalf("Container not empty after unmount")
	}
}
