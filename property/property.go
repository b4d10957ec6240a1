package property

import (
	"encoding/binary"
	"io/ioutil"
	"log"
	"sort"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/broadcast"
	"github.com/mogaika/dark_db_browser/config"
	"github.com/mogaika/dark_db_browser/database"
	"github.com/mogaika/dark_db_browser/inherit"
	"github.com/mogaika/dark_db_browser/object"
	"github.com/mogaika/dark_db_browser/value"
)

var ErrNotOwned = errors.New("object does not own the property")

type ChangeType int

const (
	Added ChangeType = iota
	Changed
	Removed
	FieldChanged
	Cleared
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	case FieldChanged:
		return "field changed"
	}
	return "cleared"
}

// ChangeMsg tells that the effective value of the property changed for
// ObjectID. SrcID is the object the value is now read from.
type ChangeMsg struct {
	Property string
	Change   ChangeType
	ObjectID object.ID
	SrcID    object.ID
	Field    string
	Value    value.Value
}

// Property holds raw records of the objects implementing it. Reads go
// through the inheritor, so objects see inherited values.
type Property struct {
	name      string
	chunk     string
	version   config.ChunkVersion
	schema    *Schema
	inheritor *inherit.Inheritor

	data map[object.ID][]byte

	listeners broadcast.Source[ChangeMsg]
}

func newProperty(def config.PropertyDef, schema *Schema, inheritor *inherit.Inheritor) *Property {
	p := &Property{
		name:      def.Name,
		chunk:     "P$" + def.ChunkName(),
		version:   def.Version,
		schema:    schema,
		inheritor: inheritor,
		data:      make(map[object.ID][]byte),
	}
	inheritor.RegisterListener(p.onInheritChange, 0)
	return p
}

func (p *Property) Name() string                  { return p.name }
func (p *Property) ChunkName() string             { return p.chunk }
func (p *Property) Version() config.ChunkVersion  { return p.version }
func (p *Property) Schema() *Schema               { return p.schema }
func (p *Property) Inheritor() *inherit.Inheritor { return p.inheritor }

func (p *Property) RegisterListener(l broadcast.Listener[ChangeMsg], priority int) broadcast.ListenerID {
	return p.listeners.Register(l, priority)
}

func (p *Property) UnregisterListener(id broadcast.ListenerID) bool {
	return p.listeners.Unregister(id)
}

func (p *Property) onInheritChange(msg inherit.ValueChangeMsg) error {
	pmsg := ChangeMsg{
		Property: p.name,
		ObjectID: msg.ObjectID,
		SrcID:    msg.SrcID,
		Field:    msg.Field,
		Value:    msg.Value,
	}
	switch msg.Change {
	case inherit.ValAdded:
		pmsg.Change = Added
	case inherit.ValChanged:
		pmsg.Change = Changed
	case inherit.ValRemoved:
		pmsg.Change = Removed
	case inherit.ValFieldChanged:
		pmsg.Change = FieldChanged
	}
	return p.listeners.Broadcast(pmsg)
}

// Set stores obj's own record
func (p *Property) Set(obj object.ID, data []byte) error {
	_, had := p.data[obj]
	p.data[obj] = append([]byte(nil), data...)
	if had {
		return p.inheritor.ValueChanged(obj, "", value.Value{})
	}
	return p.inheritor.SetImplements(obj, true)
}

func (p *Property) Unset(obj object.ID) error {
	if _, ok := p.data[obj]; !ok {
		return errors.Wrapf(ErrNotOwned, "%s of %v", p.name, obj)
	}
	delete(p.data, obj)
	return p.inheritor.SetImplements(obj, false)
}

// Get returns the effective record of obj, own or inherited
func (p *Property) Get(obj object.ID) ([]byte, bool) {
	eff := p.inheritor.GetEffectiveID(obj)
	if eff == object.None {
		return nil, false
	}
	data, ok := p.data[eff]
	return data, ok
}

func (p *Property) Source(obj object.ID) object.ID {
	return p.inheritor.GetEffectiveID(obj)
}

func (p *Property) Has(obj object.ID) bool {
	return p.inheritor.GetEffectiveID(obj) != object.None
}

func (p *Property) Owns(obj object.ID) bool {
	_, ok := p.data[obj]
	return ok
}

// Objects returns owners of a record, ascending
func (p *Property) Objects() []object.ID {
	ids := make([]object.ID, 0, len(p.data))
	for id := range p.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p *Property) Field(obj object.ID, name string) (value.Value, error) {
	f, err := p.schema.Field(name)
	if err != nil {
		return value.Value{}, errors.Wrapf(err, "Property %s", p.name)
	}
	data, ok := p.Get(obj)
	if !ok {
		return value.Value{}, errors.Errorf("%v has no %s", obj, p.name)
	}
	return f.Decode(data)
}

// Fields decodes every field of the effective record
func (p *Property) Fields(obj object.ID) (map[string]value.Value, error) {
	data, ok := p.Get(obj)
	if !ok {
		return nil, errors.Errorf("%v has no %s", obj, p.name)
	}
	result := make(map[string]value.Value, len(p.schema.Fields))
	for _, f := range p.schema.Fields {
		v, err := f.Decode(data)
		if err != nil {
			return nil, errors.Wrapf(err, "Property %s of %v", p.name, obj)
		}
		result[f.Name] = v
	}
	return result, nil
}

// SetField modifies obj's own record, creating a zeroed one first when
// obj only inherits the property
func (p *Property) SetField(obj object.ID, name string, v value.Value) error {
	f, err := p.schema.Field(name)
	if err != nil {
		return errors.Wrapf(err, "Property %s", p.name)
	}

	data, owned := p.data[obj]
	if !owned {
		data = make([]byte, p.schema.MinSize())
	}
	data, err = f.Encode(data, v)
	if err != nil {
		return err
	}
	p.data[obj] = data

	if !owned {
		return p.inheritor.SetImplements(obj, true)
	}
	return p.inheritor.ValueChanged(obj, name, v)
}

func (p *Property) Load(db database.FileGroup, mask object.Mask) error {
	if !db.HasFile(p.chunk) {
		return nil
	}
	if hdr, err := db.Header(p.chunk); err == nil &&
		(hdr.VersionMajor != p.version.Major || hdr.VersionMinor != p.version.Minor) {
		log.Printf("[property] %s version mismatch: %d.%d expected, %d.%d encountered",
			p.chunk, p.version.Major, p.version.Minor, hdr.VersionMajor, hdr.VersionMinor)
	}

	f, err := db.GetFile(p.chunk)
	if err != nil {
		return err
	}
	raw, err := ioutil.ReadAll(f)
	if err != nil {
		return errors.Wrapf(err, "Cannot read %s", p.chunk)
	}

	loaded := 0
	for pos := 0; pos < len(raw); {
		if pos+8 > len(raw) {
			return errors.Errorf("%s of %q: truncated record header at 0x%x", p.chunk, db.Name(), pos)
		}
		obj := object.ID(int32(binary.LittleEndian.Uint32(raw[pos:])))
		size := int(binary.LittleEndian.Uint32(raw[pos+4:]))
		pos += 8
		if pos+size > len(raw) {
			return errors.Errorf("%s of %q: record of %v (%d bytes) is out of chunk", p.chunk, db.Name(), obj, size)
		}
		data := raw[pos : pos+size]
		pos += size

		if !mask.Includes(obj) {
			continue
		}
		if err := p.Set(obj, data); err != nil {
			return errors.Wrapf(err, "%s of %v", p.chunk, obj)
		}
		loaded++
	}
	log.Printf("[property] %s: loaded %d records from %q", p.name, loaded, db.Name())
	return nil
}

func (p *Property) Save(w database.ChunkWriter, mask object.Mask) error {
	buf, err := w.CreateFile(p.chunk, p.version.Major, p.version.Minor)
	if err != nil {
		return err
	}
	for _, obj := range p.Objects() {
		if !mask.Includes(obj) {
			continue
		}
		data := p.data[obj]
		binary.Write(buf, binary.LittleEndian, int32(obj))
		binary.Write(buf, binary.LittleEndian, uint32(len(data)))
		buf.Write(data)
	}
	return nil
}

func (p *Property) Clear() error {
	p.data = make(map[object.ID][]byte)
	p.inheritor.Clear()
	return p.listeners.Broadcast(ChangeMsg{Property: p.name, Change: Cleared})
}

func (p *Property) ObjectDestroyed(obj object.ID) error {
	if !p.Owns(obj) {
		return nil
	}
	return p.Unset(obj)
}
