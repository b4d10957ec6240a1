package inherit

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/object"
)

type recordedInheritor struct {
	*Inheritor
	msgs []ValueChangeMsg
}

func newRecorded(policy Policy, index *Index) *recordedInheritor {
	r := &recordedInheritor{Inheritor: NewInheritor("test", policy, index)}
	r.RegisterListener(func(m ValueChangeMsg) error {
		r.msgs = append(r.msgs, m)
		return nil
	}, 0)
	return r
}

func mustAdd(t *testing.T, ix *Index, src, dst object.ID, prio uint32) {
	t.Helper()
	if err := ix.Add(src, dst, prio); err != nil {
		t.Fatal(err)
	}
}

func TestRefreshIdempotent(t *testing.T) {
	ix := NewIndex()
	mustAdd(t, ix, -1, 5, 1)
	in := newRecorded(Always, ix)

	in.SetImplements(-1, true)
	in.Refresh(5)
	before := len(in.msgs)

	if err := in.Refresh(5); err != nil {
		t.Fatal(err)
	}
	if err := in.Refresh(5); err != nil {
		t.Fatal(err)
	}
	if len(in.msgs) != before {
		t.Errorf("repeated refresh broadcast %v", in.msgs[before:])
	}
	if in.GetEffectiveID(5) != -1 {
		t.Errorf("effective %v", in.GetEffectiveID(5))
	}
}

func TestPriorityWins(t *testing.T) {
	const a, b, obj = object.ID(-1), object.ID(-2), object.ID(7)

	for _, order := range [][2]object.ID{{a, b}, {b, a}} {
		ix := NewIndex()
		in := NewInheritor("test", Always, ix)
		in.SetImplements(a, true)
		in.SetImplements(b, true)

		for _, src := range order {
			prio := uint32(5)
			if src == b {
				prio = 10
			}
			mustAdd(t, ix, src, obj, prio)
			in.Refresh(obj)
		}
		if eff := in.GetEffectiveID(obj); eff != b {
			t.Errorf("insertion order %v: effective %v; expected %v", order, eff, b)
		}
	}
}

func TestPriorityTieLowestSource(t *testing.T) {
	ix := NewIndex()
	in := NewInheritor("test", Always, ix)
	in.SetImplements(-3, true)
	in.SetImplements(-8, true)
	mustAdd(t, ix, -3, 1, 1024)
	mustAdd(t, ix, -8, 1, 1024)
	in.Refresh(1)

	if eff := in.GetEffectiveID(1); eff != -8 {
		t.Errorf("effective %v; expected -8", eff)
	}
}

func TestSelfImplementsThreshold(t *testing.T) {
	for _, tc := range []struct {
		priority uint32
		expected object.ID
	}{
		{1, -1},
		{1024, -1},
		{0, 3},
	} {
		ix := NewIndex()
		in := NewInheritor("test", Always, ix)
		in.SetImplements(-1, true)
		mustAdd(t, ix, -1, 3, tc.priority)
		in.SetImplements(3, true)

		if eff := in.GetEffectiveID(3); eff != tc.expected {
			t.Errorf("priority %d: effective %v; expected %v", tc.priority, eff, tc.expected)
		}
	}
}

func TestNeverPolicy(t *testing.T) {
	ix := NewIndex()
	in := NewInheritor("test", Never, ix)
	in.SetImplements(-1, true)
	mustAdd(t, ix, -1, 2, 1024)
	mustAdd(t, ix, -1, 3, 0)
	in.Refresh(2)
	in.Refresh(3)

	if eff := in.GetEffectiveID(2); eff != object.None {
		t.Errorf("never inheritor propagated to 2: %v", eff)
	}
	in.SetImplements(3, true)
	if eff := in.GetEffectiveID(3); eff != 3 {
		t.Errorf("effective %v; expected self", eff)
	}
}

func TestArchetypePolicy(t *testing.T) {
	ix := NewIndex()
	in := NewInheritor("test", Archetype, ix)
	in.SetImplements(-10, true)
	mustAdd(t, ix, -10, -2, 0)
	mustAdd(t, ix, -2, 4, 0)
	mustAdd(t, ix, -10, 5, 1024)
	in.Refresh(-2)
	in.Refresh(4)
	in.Refresh(5)

	if in.GetEffectiveID(4) != -10 || in.GetEffectiveID(5) != -10 {
		t.Errorf("empty objects not filled: %v %v", in.GetEffectiveID(4), in.GetEffectiveID(5))
	}

	// a concrete object with its own value keeps it even under a metaproperty
	in.SetImplements(5, true)
	if eff := in.GetEffectiveID(5); eff != 5 {
		t.Errorf("effective %v; expected self", eff)
	}
}

func TestCascade(t *testing.T) {
	const a, b, c = object.ID(-1), object.ID(-2), object.ID(3)
	ix := NewIndex()
	mustAdd(t, ix, a, b, 1)
	mustAdd(t, ix, b, c, 1)
	in := newRecorded(Always, ix)

	if err := in.SetImplements(a, true); err != nil {
		t.Fatal(err)
	}
	if eff := in.GetEffectiveID(c); eff != a {
		t.Errorf("effective of C %v; expected A", eff)
	}

	if err := in.SetImplements(a, false); err != nil {
		t.Fatal(err)
	}
	if eff := in.GetEffectiveID(c); eff != object.None {
		t.Errorf("effective of C %v; expected none", eff)
	}

	expected := []ValueChangeMsg{
		{Change: ValAdded, ObjectID: a, SrcID: a},
		{Change: ValAdded, ObjectID: b, SrcID: a},
		{Change: ValAdded, ObjectID: c, SrcID: a},
		{Change: ValRemoved, ObjectID: a},
		{Change: ValRemoved, ObjectID: b},
		{Change: ValRemoved, ObjectID: c},
	}
	if !reflect.DeepEqual(in.msgs, expected) {
		t.Errorf("messages\n%v\nexpected\n%v", in.msgs, expected)
	}
}

func TestClear(t *testing.T) {
	ix := NewIndex()
	mustAdd(t, ix, -1, 2, 1)
	in := NewInheritor("test", Always, ix)
	in.SetImplements(-1, true)
	in.Refresh(2)

	in.Clear()
	for _, id := range []object.ID{-1, 2} {
		if in.GetEffectiveID(id) != object.None || in.GetImplements(id) {
			t.Errorf("%v survived clear", id)
		}
	}
}

func TestDuplicateEdge(t *testing.T) {
	ix := NewIndex()
	mustAdd(t, ix, -1, 2, 1)
	if err := ix.Add(-1, 2, 1024); !errors.Is(err, ErrInvariant) {
		t.Errorf("duplicate edge error = %v", err)
	}
	if l, _ := ix.Get(-1, 2); l.Priority != 1 {
		t.Errorf("first edge overwritten: %+v", l)
	}
	if err := ix.Remove(-5, 2); !errors.Is(err, ErrInvariant) {
		t.Errorf("missing edge removal error = %v", err)
	}
	if err := ix.Change(-5, 2, 3); !errors.Is(err, ErrInvariant) {
		t.Errorf("missing edge change error = %v", err)
	}
}

func TestSingleEdgeScenario(t *testing.T) {
	ix := NewIndex()
	in := NewInheritor("test", Always, ix)
	in.SetImplements(100, true)

	if in.GetEffectiveID(200) != object.None {
		t.Fatal("value before any edge")
	}

	mustAdd(t, ix, 100, 200, 1)
	in.Refresh(200)
	if eff := in.GetEffectiveID(200); eff != 100 {
		t.Errorf("effective %v; expected 100", eff)
	}

	if err := ix.Remove(100, 200); err != nil {
		t.Fatal(err)
	}
	in.Refresh(200)
	if eff := in.GetEffectiveID(200); eff != object.None {
		t.Errorf("effective %v after removal", eff)
	}
}

func TestCycleTerminates(t *testing.T) {
	ix := NewIndex()
	mustAdd(t, ix, -1, -2, 1)
	mustAdd(t, ix, -2, -1, 1)
	mustAdd(t, ix, -3, -3, 1)
	in := NewInheritor("test", Always, ix)

	if err := in.SetImplements(-1, true); err != nil {
		t.Fatal(err)
	}
	if eff := in.GetEffectiveID(-2); eff != -1 {
		t.Errorf("effective %v", eff)
	}
	if err := in.SetImplements(-3, true); err != nil {
		t.Fatal(err)
	}

	// neither object of the loop may keep the other alive
	if err := in.SetImplements(-1, false); err != nil {
		t.Fatal(err)
	}
	for _, obj := range []object.ID{-1, -2} {
		if eff := in.GetEffectiveID(obj); eff != object.None {
			t.Errorf("effective of %v is %v after implements cleared", obj, eff)
		}
	}
	if eff := in.GetEffectiveID(-3); eff != -3 {
		t.Errorf("self loop effective %v", eff)
	}
}
