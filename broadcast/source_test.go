package broadcast

import (
	"fmt"
	"reflect"
	"testing"
)

func TestBroadcastOrder(t *testing.T) {
	var s Source[string]
	var got []string

	add := func(name string, prio int) ListenerID {
		return s.Register(func(msg string) error {
			got = append(got, fmt.Sprintf("%s:%s", name, msg))
			return nil
		}, prio)
	}

	add("c", 25)
	add("a", 5)
	add("b1", 20)
	add("b2", 20)

	if err := s.Broadcast("load"); err != nil {
		t.Fatal(err)
	}
	expected := []string{"a:load", "b1:load", "b2:load", "c:load"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Broadcast order %v; expected %v", got, expected)
	}

	got = nil
	if err := s.BroadcastReversed("drop"); err != nil {
		t.Fatal(err)
	}
	expected = []string{"c:drop", "b2:drop", "b1:drop", "a:drop"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("BroadcastReversed order %v; expected %v", got, expected)
	}
}

func TestUnregisterByHandle(t *testing.T) {
	var s Source[int]
	calls := 0
	l := func(int) error { calls++; return nil }

	first := s.Register(l, 0)
	s.Register(l, 0)

	if !s.Unregister(first) {
		t.Fatalf("Unregister(%v) = false", first)
	}
	if s.Unregister(first) {
		t.Errorf("second Unregister(%v) = true", first)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d; expected 1", s.Len())
	}

	s.Broadcast(1)
	if calls != 1 {
		t.Errorf("listener called %d times; expected 1", calls)
	}
}

func TestBroadcastStopsOnError(t *testing.T) {
	var s Source[int]
	steps := 0
	reached := false

	s.Register(func(int) error { return fmt.Errorf("boom") }, 1)
	s.Register(func(int) error { reached = true; return nil }, 2)

	if err := s.BroadcastStep(0, func() { steps++ }); err == nil {
		t.Fatal("expected error")
	}
	if reached {
		t.Error("listener after failing one was called")
	}
	if steps != 0 {
		t.Errorf("after() called %d times; expected 0", steps)
	}
}

func TestUnregisterDuringBroadcast(t *testing.T) {
	var s Source[int]
	var second ListenerID
	calls := 0

	s.Register(func(int) error {
		s.Unregister(second)
		return nil
	}, 0)
	second = s.Register(func(int) error { calls++; return nil }, 1)

	s.Broadcast(0)
	if calls != 1 {
		t.Errorf("snapshot delivery: second listener called %d times; expected 1", calls)
	}
	s.Broadcast(0)
	if calls != 1 {
		t.Errorf("unregistered listener called again")
	}
}
