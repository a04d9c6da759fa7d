package util

import (
	"reflect"
	"sync"
	"time"
)

// An Eventer is a type that is able to emit events to multiple listeners.
type Eventer interface {
	Events() *Emitter
}

// An Emitter is a typed event broadcaster.
//
// Events are delivered to each listener in the order in which they were
// emitted. The zero value is ready for use.
type Emitter struct {
	// The release attribute determines how much time an event should be
	// buffered to prevent the emission of duplicate events.
	// A zero value will disable buffering.
	Release time.Duration

	lock      sync.Mutex
	listeners map[<-chan interface{}]*eventQueue
	release   map[interface{}]struct{}
}

type eventQueue struct {
	out    chan interface{}
	lock   sync.Mutex
	buf    []interface{}
	wake   chan struct{}
	closed chan struct{}
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		out:    make(chan interface{}),
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *eventQueue) run() {
	for {
		q.lock.Lock()
		var next interface{}
		ok := len(q.buf) > 0
		if ok {
			next = q.buf[0]
			q.buf = q.buf[1:]
		}
		q.lock.Unlock()

		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.closed:
				close(q.out)
				return
			}
		}
		select {
		case q.out <- next:
		case <-q.closed:
			close(q.out)
			return
		}
	}
}

func (q *eventQueue) push(event interface{}) {
	q.lock.Lock()
	q.buf = append(q.buf, event)
	q.lock.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (emitter *Emitter) init() {
	if emitter.listeners == nil {
		emitter.listeners = map[<-chan interface{}]*eventQueue{}
		emitter.release = map[interface{}]struct{}{}
	}
}

func (emitter *Emitter) broadcast(event interface{}) {
	for _, q := range emitter.listeners {
		q.push(event)
	}
}

// Emit broadcasts the event to all current listeners.
func (emitter *Emitter) Emit(event interface{}) {
	emitter.lock.Lock()
	defer emitter.lock.Unlock()
	emitter.init()

	if emitter.Release == 0 || !isComparable(event) {
		emitter.broadcast(event)
		return
	}

	// Check whether the event is already scheduled.
	if _, ok := emitter.release[event]; ok {
		return
	}
	emitter.release[event] = struct{}{}

	go func() {
		time.Sleep(emitter.Release)
		emitter.lock.Lock()
		defer emitter.lock.Unlock()
		delete(emitter.release, event)
		emitter.broadcast(event)
	}()
}

// Listen registers a new listener channel on which all subsequently emitted
// events are received.
func (emitter *Emitter) Listen() <-chan interface{} {
	emitter.lock.Lock()
	defer emitter.lock.Unlock()
	emitter.init()

	q := newEventQueue()
	emitter.listeners[q.out] = q
	return q.out
}

// Unlisten deregisters a channel previously obtained through Listen.
func (emitter *Emitter) Unlisten(ch <-chan interface{}) {
	emitter.lock.Lock()
	defer emitter.lock.Unlock()
	emitter.init()

	q, ok := emitter.listeners[ch]
	if !ok {
		return
	}
	close(q.closed)
	delete(emitter.listeners, ch)
}

// Events implements the Eventer interface.
func (emitter *Emitter) Events() *Emitter {
	return emitter
}

func isComparable(v interface{}) bool {
	if v == nil {
		return true
	}
	return reflect.TypeOf(v).Comparable()
}
