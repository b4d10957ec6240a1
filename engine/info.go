package engine

import (
	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/inherit"
	"github.com/mogaika/dark_db_browser/object"
	"github.com/mogaika/dark_db_browser/value"
)

const symbolicNameProperty = "SymbolicName"

type PropertyInfo struct {
	Name   string
	Source object.ID
	Owned  bool
	Fields map[string]value.Value `json:",omitempty"`
	Error  string                 `json:",omitempty"`
}

type ObjectInfo struct {
	ID         object.ID
	Name       string
	Archetype  object.ID
	MetaProps  []object.ID
	Sources    []inherit.InheritLink
	Targets    []inherit.InheritLink
	Properties []PropertyInfo
}

// Name is the symbolic name of obj, inherited names are not used
func (e *Engine) Name(obj object.ID) string {
	p, err := e.Properties.GetProperty(symbolicNameProperty)
	if err != nil || !p.Owns(obj) {
		return ""
	}
	v, err := p.Field(obj, "")
	if err != nil {
		return ""
	}
	s, _ := v.Str()
	return s
}

// Describe collects inheritance and effective property values of obj
func (e *Engine) Describe(obj object.ID) (*ObjectInfo, error) {
	if !e.Objects.Exists(obj) {
		return nil, errors.Wrapf(object.ErrNoSuchObject, "%v", obj)
	}

	info := &ObjectInfo{
		ID:        obj,
		Name:      e.Name(obj),
		Archetype: e.Inherit.GetArchetype(obj),
		Sources:   e.Inherit.GetSources(obj),
		Targets:   e.Inherit.GetTargets(obj),
	}
	for _, il := range info.Sources {
		if e.Inherit.HasMetaProperty(obj, il.Src) {
			info.MetaProps = append(info.MetaProps, il.Src)
		}
	}

	for _, p := range e.Properties.Properties() {
		if !p.Has(obj) {
			continue
		}
		pi := PropertyInfo{Name: p.Name(), Source: p.Source(obj), Owned: p.Owns(obj)}
		if fields, err := p.Fields(obj); err != nil {
			pi.Error = err.Error()
		} else {
			pi.Fields = fields
		}
		info.Properties = append(info.Properties, pi)
	}
	return info, nil
}
