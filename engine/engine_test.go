package engine

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/config"
	"github.com/mogaika/dark_db_browser/database"
	"github.com/mogaika/dark_db_browser/object"
	"github.com/mogaika/dark_db_browser/value"
)

func newTestEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.ResourcePaths = []string{dir}
	e, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func mustSetField(t *testing.T, e *Engine, prop string, obj object.ID, field string, v value.Value) {
	t.Helper()
	p, err := e.Properties.GetProperty(prop)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetField(obj, field, v); err != nil {
		t.Fatal(err)
	}
}

func mustField(t *testing.T, e *Engine, prop string, obj object.ID) (value.Value, object.ID) {
	t.Helper()
	p, err := e.Properties.GetProperty(prop)
	if err != nil {
		t.Fatal(err)
	}
	v, err := p.Field(obj, "")
	if err != nil {
		t.Fatalf("%s of %v: %v", prop, obj, err)
	}
	return v, p.Source(obj)
}

// buildDatabases writes a gamesys with a small archetype tree and a
// mission with one concrete object using it
func buildDatabases(t *testing.T, dir string) {
	e := newTestEngine(t, dir)

	physical, err := e.Objects.CreateArchetype(object.None)
	if err != nil {
		t.Fatal(err)
	}
	crate, err := e.Objects.CreateArchetype(physical)
	if err != nil {
		t.Fatal(err)
	}
	heavy, err := e.Objects.CreateArchetype(object.None)
	if err != nil {
		t.Fatal(err)
	}

	mustSetField(t, e, "RenderAlpha", physical, "", value.NewFloat(0.5))
	mustSetField(t, e, "SymbolicName", crate, "", value.NewString("Crate"))
	mustSetField(t, e, "ModelName", heavy, "", value.NewString("bigcrate"))

	if err := e.Database.Save("test.gam", database.FileTypeGam); err != nil {
		t.Fatal(err)
	}
	if err := e.Database.LoadGameSys("test.gam"); err != nil {
		t.Fatal(err)
	}

	obj, err := e.Objects.Create(crate)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Inherit.AddMetaProperty(obj, heavy); err != nil {
		t.Fatal(err)
	}
	if err := e.Database.Save("test.mis", database.FileTypeMis); err != nil {
		t.Fatal(err)
	}
}

func TestMissionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	buildDatabases(t, dir)

	e := newTestEngine(t, dir)
	if err := e.Database.Load("TEST.MIS"); err != nil {
		t.Fatal(err)
	}
	if chain := e.Database.Chain(); !reflect.DeepEqual(chain, []string{"test.gam", "test.mis"}) {
		t.Errorf("chain %v", chain)
	}
	if objs := e.Objects.Objects(); !reflect.DeepEqual(objs, []object.ID{-3, -2, -1, 1}) {
		t.Fatalf("objects %v", objs)
	}

	if v, src := mustField(t, e, "RenderAlpha", 1); !v.Equal(value.NewFloat(0.5)) || src != -1 {
		t.Errorf("RenderAlpha of 1 = %v from %v", v, src)
	}
	if v, src := mustField(t, e, "ModelName", 1); !v.Equal(value.NewString("bigcrate")) || src != -3 {
		t.Errorf("ModelName of 1 = %v from %v", v, src)
	}
	if e.Properties.Has(1, "SymbolicName") {
		t.Error("SymbolicName must not be inherited")
	}

	info, err := e.Describe(1)
	if err != nil {
		t.Fatal(err)
	}
	if info.Archetype != -2 || !reflect.DeepEqual(info.MetaProps, []object.ID{-3}) {
		t.Errorf("info %+v", info)
	}
	if len(info.Properties) != 2 || info.Properties[0].Name != "ModelName" || info.Properties[0].Owned {
		t.Errorf("properties %+v", info.Properties)
	}
	if e.Name(-2) != "Crate" || e.Name(1) != "" {
		t.Errorf("names %q %q", e.Name(-2), e.Name(1))
	}
	if _, err := e.Describe(7); !errors.Is(err, object.ErrNoSuchObject) {
		t.Errorf("Describe(7) error = %v", err)
	}
}

func TestDestroyUpdatesInheritance(t *testing.T) {
	dir := t.TempDir()
	buildDatabases(t, dir)

	e := newTestEngine(t, dir)
	if err := e.Database.Load("test.mis"); err != nil {
		t.Fatal(err)
	}

	if err := e.Objects.Destroy(-3); err != nil {
		t.Fatal(err)
	}
	if e.Properties.Has(1, "ModelName") {
		t.Error("ModelName still inherited from destroyed metaproperty")
	}
	if len(e.MetaProp.GetAllLinks(1, object.None)) != 1 {
		t.Errorf("links of 1: %v", e.MetaProp.GetAllLinks(1, object.None))
	}

	if err := e.Database.Unload(); err != nil {
		t.Fatal(err)
	}
	if len(e.Objects.Objects()) != 0 || e.MetaProp.Len() != 0 || e.Inherit.Index().Len() != 0 {
		t.Error("unload left data behind")
	}
	if e.Properties.Has(-1, "RenderAlpha") {
		t.Error("unload left property values")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.LoadPolicy = "sometimes"
	if _, err := New(cfg); err == nil {
		t.Error("unknown load policy accepted")
	}

	cfg = config.Default()
	cfg.Properties = append(cfg.Properties, cfg.Properties[0])
	if _, err := New(cfg); err == nil {
		t.Error("duplicate property accepted")
	}
}
