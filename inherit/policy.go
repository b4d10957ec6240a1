package inherit

import (
	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/object"
)

// Policy decides which inheritance edges may propagate a value
type Policy int

const (
	// Always propagates through every edge
	Always Policy = iota
	// Never propagates, only self implemented values count
	Never
	// Archetype only fills objects that have no value of their own.
	// Archetypes always accept.
	Archetype
)

var policyNames = map[Policy]string{
	Always:    "always",
	Never:     "never",
	Archetype: "archetype",
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return "unknown"
}

func ParsePolicy(name string) (Policy, error) {
	for p, n := range policyNames {
		if n == name {
			return p, nil
		}
	}
	return Always, errors.Errorf("Unknown inheritor %q", name)
}

// Validate reports whether the edge src -> dst may propagate a value.
// It depends only on its arguments.
func Validate(p Policy, src, dst object.ID, priority uint32, dstImplements bool) bool {
	switch p {
	case Always:
		return true
	case Archetype:
		return dst.IsArchetype() || !dstImplements
	}
	return false
}
