package model

import (
	"testing"
)

func TestStoreGetSet(t *testing.T) {
	s := NewStore()

	if _, ok := s.Get("volume"); ok {
		t.Fatalf("Unset key reported as present")
	}
	if v := s.GetDefault("volume", 50); v != 50 {
		t.Fatalf("GetDefault: got %v, want 50", v)
	}

	s.Set("volume", 80)
	v, ok := s.Get("volume")
	if !ok || v != 80 {
		t.Fatalf("Get after Set: got %v, %v", v, ok)
	}
	if v := s.GetDefault("volume", 50); v != 80 {
		t.Fatalf("GetDefault after Set: got %v, want 80", v)
	}
}

func TestStoreKeyOrder(t *testing.T) {
	s := NewStore()
	s.Set("c", 1)
	s.Set("a", 2)
	s.Set("b", 3)
	s.Set("a", 4) // Resetting a key must not change its position.

	keys := s.Keys()
	want := []string{"c", "a", "b"}
	if len(keys) != len(want) {
		t.Fatalf("Keys: got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys: got %v, want %v", keys, want)
		}
	}
}

func TestStoreOnChange(t *testing.T) {
	s := NewStore()

	var got []interface{}
	s.On("state", func(newValue, oldValue interface{}) {
		got = append(got, newValue)
	})

	s.Set("state", "playing")
	s.Set("state", "playing") // Equal value, no notification.
	s.Set("state", "paused")

	if len(got) != 2 || got[0] != "playing" || got[1] != "paused" {
		t.Fatalf("Unexpected notifications: %v", got)
	}
}

func TestStoreOnce(t *testing.T) {
	s := NewStore()

	calls := 0
	s.Once("state", func(newValue, oldValue interface{}) {
		calls++
	})

	s.Set("state", "buffering")
	s.Set("state", "playing")

	if calls != 1 {
		t.Fatalf("Once callback ran %d times", calls)
	}
}

func TestStoreUnsubscribe(t *testing.T) {
	s := NewStore()

	calls := 0
	off := s.On("mute", func(newValue, oldValue interface{}) {
		calls++
	})
	s.Set("mute", true)
	off()
	s.Set("mute", false)

	if calls != 1 {
		t.Fatalf("Callback ran %d times after unsubscribe", calls)
	}
}

func TestStoreChangeFiresImmediately(t *testing.T) {
	s := NewStore()
	s.Set("volume", 42)

	var got interface{}
	s.Change("volume", func(newValue, oldValue interface{}) {
		got = newValue
	})

	if got != 42 {
		t.Fatalf("Change did not report the current value: got %v", got)
	}
}

func TestStoreOnAll(t *testing.T) {
	s := NewStore()

	var keys []string
	off := s.OnAll(func(key string, newValue, oldValue interface{}) {
		keys = append(keys, key)
	})

	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("b", 2) // No change, no notification.
	off()
	s.Set("c", 3)

	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("Unexpected wildcard notifications: %v", keys)
	}
}

func TestStoreCustomEquality(t *testing.T) {
	s := NewStore()
	s.SetEquality("levels", func(a, b interface{}) bool {
		as, aok := a.([]int)
		bs, bok := b.([]int)
		if !aok || !bok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	})

	calls := 0
	s.On("levels", func(newValue, oldValue interface{}) {
		calls++
	})

	s.Set("levels", []int{1, 2})
	s.Set("levels", []int{1, 2}) // Deep-equal, suppressed.
	s.Set("levels", []int{1, 2, 3})

	if calls != 2 {
		t.Fatalf("Callback ran %d times, want 2", calls)
	}
}

func TestStoreCompositeDefaultEquality(t *testing.T) {
	s := NewStore()

	calls := 0
	s.On("tracks", func(newValue, oldValue interface{}) {
		calls++
	})

	a := []string{"en"}
	s.Set("tracks", a)
	s.Set("tracks", a)              // Same slice header, suppressed.
	s.Set("tracks", []string{"en"}) // Distinct slice, notified.

	if calls != 2 {
		t.Fatalf("Callback ran %d times, want 2", calls)
	}
}

func TestStoreSetFromCallback(t *testing.T) {
	s := NewStore()

	s.On("state", func(newValue, oldValue interface{}) {
		if newValue == "complete" {
			s.Set("playlistIndex", 1)
		}
	})

	done := make(chan struct{})
	go func() {
		s.Set("state", "complete")
		close(done)
	}()
	<-done

	if v, _ := s.Get("playlistIndex"); v != 1 {
		t.Fatalf("Setting a key from a callback did not take effect")
	}
}
