package util

import (
	"reflect"
	"testing"
	"time"
)

// TestEventEmission asserts that the specified event is emitted as a result
// of calling trigger.
func TestEventEmission(t *testing.T, ev Eventer, event interface{}, trigger func()) {
	t.Helper()
	l := ev.Events().Listen()
	defer ev.Events().Unlisten(l)
	trigger()
	for {
		select {
		case msg := <-l:
			t.Logf("%T %#v", msg, msg)
			if reflect.DeepEqual(msg, event) {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("Event %#v was not emitted", event)
		}
	}
}

// TestEventMatch asserts that an event for which match returns true is
// emitted as a result of calling trigger.
func TestEventMatch(t *testing.T, ev Eventer, match func(event interface{}) bool, trigger func()) {
	t.Helper()
	l := ev.Events().Listen()
	defer ev.Events().Unlisten(l)
	trigger()
	for {
		select {
		case msg := <-l:
			t.Logf("%T %#v", msg, msg)
			if match(msg) {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("No matching event was emitted")
		}
	}
}
