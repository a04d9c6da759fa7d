package model

import (
	"reflect"
	"sync"
)

// An EqualityFunc reports whether two values stored under the same key should
// be considered equal for the purpose of change notification.
type EqualityFunc func(a, b interface{}) bool

type subscription struct {
	id   int
	once bool
	fn   func(newValue, oldValue interface{})
}

type wildcardSubscription struct {
	id int
	fn func(key string, newValue, oldValue interface{})
}

// A Store is an ordered key/value container with per-key change
// notification.
//
// Subscribers are invoked synchronously and in subscription order whenever a
// key is set to a value that differs from the previous one according to the
// key's equality policy. The default policy compares primitives by value and
// composite values by reference.
type Store struct {
	lock     sync.Mutex
	order    []string
	values   map[string]interface{}
	subs     map[string][]*subscription
	allSubs  []*wildcardSubscription
	equality map[string]EqualityFunc
	nextID   int
}

func NewStore() *Store {
	return &Store{
		values:   map[string]interface{}{},
		subs:     map[string][]*subscription{},
		equality: map[string]EqualityFunc{},
	}
}

// Get returns the value stored under the specified key.
func (s *Store) Get(key string) (interface{}, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// GetDefault returns the value stored under the specified key or def if the
// key is not present.
func (s *Store) GetDefault(key string, def interface{}) interface{} {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Keys returns all keys in the order in which they were first set.
func (s *Store) Keys() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// Snapshot returns a copy of the current key/value pairs.
func (s *Store) Snapshot() map[string]interface{} {
	s.lock.Lock()
	defer s.lock.Unlock()
	snapshot := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		snapshot[k] = v
	}
	return snapshot
}

// SetEquality overrides the equality policy for the specified key.
func (s *Store) SetEquality(key string, eq EqualityFunc) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.equality[key] = eq
}

// Set stores a value under the specified key, notifying subscribers if the
// value changed.
func (s *Store) Set(key string, value interface{}) {
	s.lock.Lock()
	old, existed := s.values[key]
	if !existed {
		s.order = append(s.order, key)
	}
	s.values[key] = value

	eq := s.equality[key]
	if eq == nil {
		eq = defaultEqual
	}
	if existed && eq(old, value) {
		s.lock.Unlock()
		return
	}

	// Snapshot the subscriber lists so callbacks may modify subscriptions or
	// set other keys without deadlocking.
	subs := make([]*subscription, len(s.subs[key]))
	copy(subs, s.subs[key])
	allSubs := make([]*wildcardSubscription, len(s.allSubs))
	copy(allSubs, s.allSubs)
	for _, sub := range subs {
		if sub.once {
			s.removeLocked(key, sub.id)
		}
	}
	s.lock.Unlock()

	for _, sub := range subs {
		sub.fn(value, old)
	}
	for _, sub := range allSubs {
		sub.fn(key, value, old)
	}
}

// On subscribes to changes of the specified key. The returned function
// removes the subscription.
func (s *Store) On(key string, fn func(newValue, oldValue interface{})) func() {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.subscribeLocked(key, fn, false)
}

// Once subscribes to the next change of the specified key only.
func (s *Store) Once(key string, fn func(newValue, oldValue interface{})) func() {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.subscribeLocked(key, fn, true)
}

// Change subscribes to the specified key and synchronously invokes the
// callback with the current value.
func (s *Store) Change(key string, fn func(newValue, oldValue interface{})) func() {
	s.lock.Lock()
	current := s.values[key]
	off := s.subscribeLocked(key, fn, false)
	s.lock.Unlock()

	fn(current, nil)
	return off
}

// OnAll subscribes to changes of all keys.
func (s *Store) OnAll(fn func(key string, newValue, oldValue interface{})) func() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.nextID++
	sub := &wildcardSubscription{id: s.nextID, fn: fn}
	s.allSubs = append(s.allSubs, sub)
	id := sub.id
	return func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		for i, w := range s.allSubs {
			if w.id == id {
				s.allSubs = append(s.allSubs[:i], s.allSubs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) subscribeLocked(key string, fn func(newValue, oldValue interface{}), once bool) func() {
	s.nextID++
	sub := &subscription{id: s.nextID, once: once, fn: fn}
	s.subs[key] = append(s.subs[key], sub)
	id := sub.id
	return func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		s.removeLocked(key, id)
	}
}

func (s *Store) removeLocked(key string, id int) {
	subs := s.subs[key]
	for i, sub := range subs {
		if sub.id == id {
			s.subs[key] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// defaultEqual compares primitives by value and composite values by
// reference.
func defaultEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		return va.Pointer() == vb.Pointer()
	}
	return false
}
