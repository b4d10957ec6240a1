package property

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/dark_db_browser/config"
	"github.com/mogaika/dark_db_browser/darkdb"
	"github.com/mogaika/dark_db_browser/database"
	"github.com/mogaika/dark_db_browser/inherit"
	"github.com/mogaika/dark_db_browser/link"
	"github.com/mogaika/dark_db_browser/object"
	"github.com/mogaika/dark_db_browser/value"
)

var testDefs = []config.PropertyDef{
	{
		Name: "HitPoints", Inherit: "always",
		Version: config.ChunkVersion{Major: 2, Minor: 4},
		Fields:  []config.FieldDef{{Name: "", Type: "int", Offset: 0}},
	},
	{
		Name: "Light", Inherit: "archetype",
		Version: config.ChunkVersion{Major: 2, Minor: 1},
		Fields: []config.FieldDef{
			{Name: "brightness", Type: "float", Offset: 0},
			{Name: "offset", Type: "vector", Offset: 4},
			{Name: "lit", Type: "bool", Offset: 16},
		},
	},
	{
		Name: "SymbolicName", Inherit: "never",
		Version: config.ChunkVersion{Major: 2, Minor: 17},
		Fields:  []config.FieldDef{{Name: "", Type: "string", Offset: 0}},
	},
}

type fixture struct {
	inherit *inherit.Service
	props   *Service
	metas   *link.Relation
	msgs    []ChangeMsg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	links := link.NewService()
	rel, err := links.CreateRelation(inherit.MetaPropRelationName, link.NewUIntStorage(), true)
	if err != nil {
		t.Fatal(err)
	}
	inh := inherit.NewService()
	if err := inh.Init(links); err != nil {
		t.Fatal(err)
	}

	f := &fixture{inherit: inh, props: NewService(inh), metas: rel}
	for _, def := range testDefs {
		if _, err := f.props.CreateProperty(def); err != nil {
			t.Fatal(err)
		}
	}
	f.props.RegisterListener(func(m ChangeMsg) error {
		f.msgs = append(f.msgs, m)
		return nil
	}, 0)
	return f
}

func (f *fixture) prop(t *testing.T, name string) *Property {
	t.Helper()
	p, err := f.props.GetProperty(name)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func encodeInt(t *testing.T, i int32) []byte {
	t.Helper()
	data, err := value.NewInt(i).Encode(0)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestCreatePropertyErrors(t *testing.T) {
	f := newFixture(t)
	if _, err := f.props.CreateProperty(testDefs[0]); err == nil {
		t.Error("duplicate property accepted")
	}
	if _, err := f.props.CreateProperty(config.PropertyDef{Name: "Other", Chunk: "Light", Inherit: "never"}); err == nil {
		t.Error("duplicate chunk accepted")
	}
	if _, err := f.props.CreateProperty(config.PropertyDef{Name: "Other", Chunk: "SymbolicNameOld", Inherit: "never"}); err == nil {
		t.Error("chunk colliding after name cut accepted")
	}
	if _, err := f.props.CreateProperty(config.PropertyDef{Name: "Bad", Inherit: "sometimes"}); err == nil {
		t.Error("unknown inheritance policy accepted")
	}
	bad := config.PropertyDef{Name: "Bad", Inherit: "never", Fields: []config.FieldDef{{Name: "x", Type: "matrix"}}}
	if _, err := f.props.CreateProperty(bad); err == nil {
		t.Error("unknown field type accepted")
	}

	names := []string{}
	for _, p := range f.props.Properties() {
		names = append(names, p.Name())
	}
	if len(names) != 3 || names[0] != "HitPoints" || names[2] != "SymbolicName" {
		t.Errorf("Properties() = %v", names)
	}
}

func TestInheritedValue(t *testing.T) {
	f := newFixture(t)
	hp := f.prop(t, "HitPoints")

	if err := f.inherit.SetArchetype(5, -10); err != nil {
		t.Fatal(err)
	}
	if err := hp.Set(-10, encodeInt(t, 40)); err != nil {
		t.Fatal(err)
	}

	if !f.props.Has(5, "HitPoints") || f.props.Owns(5, "HitPoints") {
		t.Error("5 must inherit HitPoints without owning it")
	}
	v, err := hp.Field(5, "")
	if err != nil {
		t.Fatal(err)
	}
	if i, _ := v.Int(); i != 40 {
		t.Errorf("inherited value %v", v)
	}
	if hp.Source(5) != -10 {
		t.Errorf("Source(5) = %v", hp.Source(5))
	}

	// own value takes over
	if err := hp.SetField(5, "", value.NewInt(7)); err != nil {
		t.Fatal(err)
	}
	if v, _ := hp.Field(5, ""); !v.Equal(value.NewInt(7)) {
		t.Errorf("own value %v", v)
	}
	if v, _ := hp.Field(-10, ""); !v.Equal(value.NewInt(40)) {
		t.Errorf("archetype value changed to %v", v)
	}

	if err := hp.Unset(5); err != nil {
		t.Fatal(err)
	}
	if hp.Source(5) != -10 {
		t.Errorf("after Unset Source(5) = %v", hp.Source(5))
	}
	if err := hp.Unset(5); err == nil {
		t.Error("Unset of not owned value succeeded")
	}

	var adds int
	for _, m := range f.msgs {
		if m.Property == "HitPoints" && m.Change == Added {
			adds++
		}
	}
	if adds != 2 {
		t.Errorf("got %d Added messages (%v)", adds, f.msgs)
	}
}

func TestFieldChangeReachesInheritors(t *testing.T) {
	f := newFixture(t)
	hp := f.prop(t, "HitPoints")
	f.inherit.SetArchetype(5, -10)
	f.inherit.SetArchetype(6, -10)
	hp.Set(-10, encodeInt(t, 1))
	f.msgs = nil

	if err := hp.SetField(-10, "", value.NewInt(2)); err != nil {
		t.Fatal(err)
	}

	got := map[object.ID]bool{}
	for _, m := range f.msgs {
		if m.Change != FieldChanged || m.SrcID != -10 || !m.Value.Equal(value.NewInt(2)) {
			t.Errorf("unexpected message %+v", m)
		}
		got[m.ObjectID] = true
	}
	if len(got) != 3 || !got[-10] || !got[5] || !got[6] {
		t.Errorf("FieldChanged went to %v", got)
	}
}

func TestNeverPolicy(t *testing.T) {
	f := newFixture(t)
	name := f.prop(t, "SymbolicName")
	f.inherit.SetArchetype(5, -10)

	if err := name.SetField(-10, "", value.NewString("Door")); err != nil {
		t.Fatal(err)
	}
	if name.Has(5) {
		t.Error("never inherited property reached a descendant")
	}
	if v, err := name.Field(-10, ""); err != nil || !v.Equal(value.NewString("Door")) {
		t.Errorf("Field = %v, %v", v, err)
	}
}

func TestMultiFieldRecord(t *testing.T) {
	f := newFixture(t)
	light := f.prop(t, "Light")

	if got := light.Schema().MinSize(); got != 20 {
		t.Fatalf("MinSize = %d", got)
	}
	if err := light.SetField(3, "offset", value.NewVector(mgl32.Vec3{1, 2, 3})); err != nil {
		t.Fatal(err)
	}
	if err := light.SetField(3, "lit", value.NewBool(true)); err != nil {
		t.Fatal(err)
	}
	if err := light.SetField(3, "lit", value.NewInt(1)); err == nil {
		t.Error("kind mismatch accepted")
	}
	if err := light.SetField(3, "color", value.NewInt(1)); err == nil {
		t.Error("unknown field accepted")
	}

	fields, err := light.Fields(3)
	if err != nil {
		t.Fatal(err)
	}
	if !fields["offset"].Equal(value.NewVector(mgl32.Vec3{1, 2, 3})) ||
		!fields["lit"].Equal(value.NewBool(true)) ||
		!fields["brightness"].Equal(value.NewFloat(0)) {
		t.Errorf("fields %v", fields)
	}
}

func TestSaveLoad(t *testing.T) {
	f := newFixture(t)
	hp := f.prop(t, "HitPoints")
	hp.Set(-3, encodeInt(t, 10))
	hp.Set(4, encodeInt(t, 20))
	hp.Set(9, encodeInt(t, 30))

	db := darkdb.New("test.mis")
	if err := hp.Save(db, object.MaskAll); err != nil {
		t.Fatal(err)
	}
	r, err := db.GetFile("P$HitPoints")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	buf.ReadFrom(r)
	if buf.Len() != 3*12 {
		t.Errorf("chunk size %d", buf.Len())
	}

	g := newFixture(t)
	loaded := g.prop(t, "HitPoints")
	if err := loaded.Load(db, object.MaskConcretes); err != nil {
		t.Fatal(err)
	}
	if objs := loaded.Objects(); len(objs) != 2 || objs[0] != 4 || objs[1] != 9 {
		t.Errorf("loaded objects %v", objs)
	}
	if v, _ := loaded.Field(9, ""); !v.Equal(value.NewInt(30)) {
		t.Errorf("loaded value %v", v)
	}
}

func TestLoadTruncated(t *testing.T) {
	f := newFixture(t)
	db := darkdb.New("broken.mis")
	w, _ := db.CreateFile("P$HitPoints", 2, 4)
	w.Write([]byte{1, 0, 0, 0, 8, 0, 0, 0, 1, 2})

	if err := f.prop(t, "HitPoints").Load(db, object.MaskAll); err == nil {
		t.Error("record running out of chunk accepted")
	}
}

func TestDatabaseDropAndObjectEvents(t *testing.T) {
	f := newFixture(t)
	hp := f.prop(t, "HitPoints")
	hp.Set(-3, encodeInt(t, 10))
	hp.Set(4, encodeInt(t, 20))
	hp.Set(5, encodeInt(t, 30))

	if err := f.props.OnObjectMsg(object.Msg{Type: object.Destroyed, ID: 5}); err != nil {
		t.Fatal(err)
	}
	if hp.Owns(5) {
		t.Error("destroyed object still owns the property")
	}

	// dropping a mission keeps archetypes
	drop := &database.ChangeMsg{Change: database.Dropping, Mask: database.MaskObjTreeConcrete, DBTarget: database.Mission}
	if err := f.props.OnDatabaseChange(drop); err != nil {
		t.Fatal(err)
	}
	if objs := hp.Objects(); len(objs) != 1 || objs[0] != -3 {
		t.Errorf("after partial drop %v", objs)
	}

	f.msgs = nil
	if err := f.props.OnObjectMsg(object.Msg{Type: object.SystemCleared}); err != nil {
		t.Fatal(err)
	}
	if len(hp.Objects()) != 0 || hp.Has(-3) {
		t.Error("property not cleared")
	}
	if len(f.msgs) != 3 || f.msgs[0].Change != Cleared {
		t.Errorf("clear messages %v", f.msgs)
	}
}
