package broadcast

import (
	"sort"

	"github.com/google/uuid"
)

// ListenerID is a registration handle returned by Register. Listeners are
// always removed by handle, never by comparing callbacks.
type ListenerID uuid.UUID

var NoListener = ListenerID(uuid.Nil)

func (id ListenerID) String() string { return uuid.UUID(id).String() }

type Listener[M any] func(msg M) error

type entry[M any] struct {
	id       ListenerID
	priority int
	listener Listener[M]
}

// Source delivers messages synchronously to registered listeners ordered by
// priority (lower first). Listeners with equal priority keep their
// registration order.
type Source[M any] struct {
	entries []entry[M]
}

func (s *Source[M]) newUniqueId() ListenerID {
	for {
		newId, err := uuid.NewRandom()
		if err != nil {
			panic(err)
		}
		id := ListenerID(newId)
		if s.find(id) < 0 {
			return id
		}
	}
}

func (s *Source[M]) find(id ListenerID) int {
	for i := range s.entries {
		if s.entries[i].id == id {
			return i
		}
	}
	return -1
}

func (s *Source[M]) Register(l Listener[M], priority int) ListenerID {
	e := entry[M]{id: s.newUniqueId(), priority: priority, listener: l}

	index := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].priority > priority
	})
	s.entries = append(s.entries, e)
	copy(s.entries[index+1:], s.entries[index:])
	s.entries[index] = e

	return e.id
}

// Unregister returns false if the handle is unknown
func (s *Source[M]) Unregister(id ListenerID) bool {
	i := s.find(id)
	if i < 0 {
		return false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return true
}

func (s *Source[M]) Len() int { return len(s.entries) }

func (s *Source[M]) snapshot() []entry[M] {
	snap := make([]entry[M], len(s.entries))
	copy(snap, s.entries)
	return snap
}

// Broadcast stops on the first listener error and returns it
func (s *Source[M]) Broadcast(msg M) error {
	return s.BroadcastStep(msg, nil)
}

func (s *Source[M]) BroadcastReversed(msg M) error {
	return s.BroadcastReversedStep(msg, nil)
}

// BroadcastStep calls after() once each listener returned successfully
func (s *Source[M]) BroadcastStep(msg M, after func()) error {
	for _, e := range s.snapshot() {
		if err := e.listener(msg); err != nil {
			return err
		}
		if after != nil {
			after()
		}
	}
	return nil
}

func (s *Source[M]) BroadcastReversedStep(msg M, after func()) error {
	snap := s.snapshot()
	for i := len(snap) - 1; i >= 0; i-- {
		if err := snap[i].listener(msg); err != nil {
			return err
		}
		if after != nil {
			after()
		}
	}
	return nil
}

// Each visits listeners in delivery order and lets the caller decide what
// to do with a failing one.
func (s *Source[M]) Each(reversed bool, visit func(priority int, l Listener[M]) bool) {
	snap := s.snapshot()
	if reversed {
		for i := len(snap) - 1; i >= 0; i-- {
			if !visit(snap[i].priority, snap[i].listener) {
				return
			}
		}
	} else {
		for _, e := range snap {
			if !visit(e.priority, e.listener) {
				return
			}
		}
	}
}
