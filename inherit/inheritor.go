package inherit

import (
	"log"
	"sort"

	"github.com/mogaika/dark_db_browser/broadcast"
	"github.com/mogaika/dark_db_browser/object"
	"github.com/mogaika/dark_db_browser/value"
)

type ValueChange int

const (
	ValAdded ValueChange = iota
	ValChanged
	ValRemoved
	ValFieldChanged
)

func (c ValueChange) String() string {
	switch c {
	case ValAdded:
		return "added"
	case ValChanged:
		return "changed"
	case ValRemoved:
		return "removed"
	}
	return "field changed"
}

// ValueChangeMsg tells that the value of ObjectID should now be read from
// SrcID (None for removals). Field and Value are set for ValFieldChanged.
type ValueChangeMsg struct {
	Change   ValueChange
	ObjectID object.ID
	SrcID    object.ID
	Field    string
	Value    value.Value
}

// Inheritor caches, per object, the object its value is effectively read
// from. One Inheritor exists per property.
type Inheritor struct {
	name   string
	policy Policy
	index  *Index

	implements map[object.ID]bool
	effective  map[object.ID]object.ID
	// objects with a refresh in progress, re-entry means a cycle
	refreshing map[object.ID]bool

	listeners broadcast.Source[ValueChangeMsg]
	// subscription to the edge changes of the creating service
	edgeListener broadcast.ListenerID
}

func NewInheritor(name string, policy Policy, index *Index) *Inheritor {
	return &Inheritor{
		name:       name,
		policy:     policy,
		index:      index,
		implements: make(map[object.ID]bool),
		effective:  make(map[object.ID]object.ID),
		refreshing: make(map[object.ID]bool),
	}
}

func (in *Inheritor) Name() string   { return in.name }
func (in *Inheritor) Policy() Policy { return in.policy }

func (in *Inheritor) EdgeListener() broadcast.ListenerID { return in.edgeListener }

func (in *Inheritor) RegisterListener(l broadcast.Listener[ValueChangeMsg], priority int) broadcast.ListenerID {
	return in.listeners.Register(l, priority)
}

func (in *Inheritor) UnregisterListener(id broadcast.ListenerID) bool {
	return in.listeners.Unregister(id)
}

func (in *Inheritor) SetImplements(obj object.ID, implements bool) error {
	if in.implements[obj] == implements {
		return nil
	}
	if implements {
		in.implements[obj] = true
	} else {
		delete(in.implements, obj)
	}
	return in.Refresh(obj)
}

func (in *Inheritor) GetImplements(obj object.ID) bool {
	return in.implements[obj]
}

// GetEffectiveID returns None when obj has no value at all
func (in *Inheritor) GetEffectiveID(obj object.ID) object.ID {
	return in.effective[obj]
}

// Refresh recomputes the effective source of obj and cascades to the
// objects inheriting from it when the result changed
func (in *Inheritor) Refresh(obj object.ID) error {
	if in.refreshing[obj] {
		log.Printf("[inherit] %s: inheritance cycle through %v, not refreshing again", in.name, obj)
		return nil
	}
	in.refreshing[obj] = true
	defer delete(in.refreshing, obj)

	oldEff := in.effective[obj]

	maxPrio := int64(-1)
	newEff := object.None
	for _, il := range in.index.Sources(obj) {
		eff := in.effective[il.Src]
		// through a loop obj may see itself, only implements makes obj its own source
		if eff == object.None || eff == obj || int64(il.Priority) <= maxPrio {
			continue
		}
		if Validate(in.policy, il.Src, il.Dst, il.Priority, in.implements[il.Dst]) {
			maxPrio = int64(il.Priority)
			newEff = eff
		}
	}

	// archetype links (priority 0) never override own values
	if in.implements[obj] && (newEff == object.None || maxPrio <= 0) {
		newEff = obj
	}

	if newEff == oldEff {
		return nil
	}

	var msg ValueChangeMsg
	if newEff != object.None {
		in.effective[obj] = newEff
		msg = ValueChangeMsg{Change: ValChanged, ObjectID: obj, SrcID: newEff}
		if oldEff == object.None {
			msg.Change = ValAdded
		}
	} else {
		delete(in.effective, obj)
		msg = ValueChangeMsg{Change: ValRemoved, ObjectID: obj}
	}
	if err := in.listeners.Broadcast(msg); err != nil {
		return err
	}

	for _, il := range in.index.Targets(obj) {
		if err := in.Refresh(il.Dst); err != nil {
			return err
		}
	}
	return nil
}

// Clear forgets every cached value without notification
func (in *Inheritor) Clear() {
	in.implements = make(map[object.ID]bool)
	in.effective = make(map[object.ID]object.ID)
}

// Effective returns every object having a value, ascending
func (in *Inheritor) Effective() []object.ID {
	ids := make([]object.ID, 0, len(in.effective))
	for id := range in.effective {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ValueChanged notifies about a field change of obj's own value, every
// object reading its value from obj gets a ValFieldChanged
func (in *Inheritor) ValueChanged(obj object.ID, field string, v value.Value) error {
	for _, id := range in.Effective() {
		if in.effective[id] != obj {
			continue
		}
		if err := in.listeners.Broadcast(ValueChangeMsg{
			Change:   ValFieldChanged,
			ObjectID: id,
			SrcID:    obj,
			Field:    field,
			Value:    v,
		}); err != nil {
			return err
		}
	}
	return nil
}
