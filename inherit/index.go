package inherit

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/object"
)

var ErrInvariant = errors.New("inheritance index corrupted")

// InheritLink is one edge: Dst inherits from Src
type InheritLink struct {
	Src      object.ID
	Dst      object.ID
	Priority uint32
}

type linkMap map[object.ID]map[object.ID]*InheritLink

// Index keeps every edge twice, by destination and by source
type Index struct {
	sourcesOf linkMap
	targetsOf linkMap
}

func NewIndex() *Index {
	ix := &Index{}
	ix.Clear()
	return ix
}

func (ix *Index) Clear() {
	ix.sourcesOf = make(linkMap)
	ix.targetsOf = make(linkMap)
}

func (m linkMap) put(a, b object.ID, l *InheritLink) {
	inner, ok := m[a]
	if !ok {
		inner = make(map[object.ID]*InheritLink)
		m[a] = inner
	}
	inner[b] = l
}

func (m linkMap) get(a, b object.ID) (*InheritLink, bool) {
	l, ok := m[a][b]
	return l, ok
}

func (m linkMap) remove(a, b object.ID) bool {
	inner, ok := m[a]
	if !ok {
		return false
	}
	if _, ok := inner[b]; !ok {
		return false
	}
	delete(inner, b)
	if len(inner) == 0 {
		delete(m, a)
	}
	return true
}

func (ix *Index) Add(src, dst object.ID, priority uint32) error {
	if _, exists := ix.sourcesOf.get(dst, src); exists {
		return errors.Wrapf(ErrInvariant, "Multiple inheritance for the same src/dst pair is not allowed (%d -> %d)", src, dst)
	}
	l := &InheritLink{Src: src, Dst: dst, Priority: priority}
	ix.sourcesOf.put(dst, src, l)
	ix.targetsOf.put(src, dst, l)
	return nil
}

func (ix *Index) Change(src, dst object.ID, priority uint32) error {
	l, ok := ix.sourcesOf.get(dst, src)
	if !ok {
		return errors.Wrapf(ErrInvariant, "Changed inheritance link %d -> %d not found", src, dst)
	}
	// both maps share the pointer
	l.Priority = priority
	return nil
}

func (ix *Index) Remove(src, dst object.ID) error {
	inSources := ix.sourcesOf.remove(dst, src)
	inTargets := ix.targetsOf.remove(src, dst)
	if !inSources || !inTargets {
		return errors.Wrapf(ErrInvariant, "Removed inheritance link %d -> %d not found (sources %v, targets %v)",
			src, dst, inSources, inTargets)
	}
	return nil
}

func (ix *Index) Get(src, dst object.ID) (InheritLink, bool) {
	if l, ok := ix.sourcesOf.get(dst, src); ok {
		return *l, true
	}
	return InheritLink{}, false
}

func collect(inner map[object.ID]*InheritLink, key func(*InheritLink) object.ID) []InheritLink {
	result := make([]InheritLink, 0, len(inner))
	for _, l := range inner {
		result = append(result, *l)
	}
	sort.Slice(result, func(i, j int) bool { return key(&result[i]) < key(&result[j]) })
	return result
}

// Sources returns edges into dst ordered by source id
func (ix *Index) Sources(dst object.ID) []InheritLink {
	return collect(ix.sourcesOf[dst], func(l *InheritLink) object.ID { return l.Src })
}

// Targets returns edges out of src ordered by destination id
func (ix *Index) Targets(src object.ID) []InheritLink {
	return collect(ix.targetsOf[src], func(l *InheritLink) object.ID { return l.Dst })
}

func (ix *Index) Len() int {
	n := 0
	for _, inner := range ix.sourcesOf {
		n += len(inner)
	}
	return n
}
