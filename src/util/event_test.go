package util

import (
	"testing"
	"time"
)

func TestEmission(t *testing.T) {
	var em Emitter

	l := em.Listen()
	defer em.Unlisten(l)
	em.Emit("test")

	select {
	case msg := <-l:
		if msg != "test" {
			t.Errorf("Event malformed: %v", msg)
			return
		}
	case <-time.After(time.Millisecond * 100):
		t.Error("Event was not emitted")
	}
}

func TestEmissionOrder(t *testing.T) {
	var em Emitter

	l := em.Listen()
	defer em.Unlisten(l)
	const numEvents = 100
	for i := 0; i < numEvents; i++ {
		em.Emit(i)
	}

	for i := 0; i < numEvents; i++ {
		select {
		case msg := <-l:
			if msg != i {
				t.Fatalf("Events out of order: got %v, want %v", msg, i)
			}
		case <-time.After(time.Millisecond * 100):
			t.Fatalf("Event %d was not emitted", i)
		}
	}
}

func TestBufferedEmission(t *testing.T) {
	var em Emitter
	em.Release = time.Millisecond * 50

	const repeat = 3

	l := em.Listen()
	defer em.Unlisten(l)
	for i := 0; i < repeat; i++ {
		em.Emit("test")
	}
	time.Sleep(time.Millisecond * 100)
	em.Emit("end")

	var numReceived uint
outer:
	for {
		select {
		case event := <-l:
			if event == "test" {
				numReceived++
			} else if event == "end" {
				break outer
			}
		case <-time.After(time.Millisecond * 500):
			t.Errorf("Event was not emitted")
			return
		}
	}

	if numReceived != 1 {
		t.Errorf("Event was repeated too many times: %v", numReceived)
		return
	}
}

func TestUnlisten(t *testing.T) {
	var em Emitter

	l := em.Listen()
	em.Unlisten(l)
	em.Emit("test")

	select {
	case _, ok := <-l:
		if ok {
			t.Errorf("Received an event on a closed listener")
		}
	case <-time.After(time.Millisecond * 100):
	}
}
