package object

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/database"
)

// ID of an object. Archetypes are negative, concrete objects are
// positive, zero is no object.
type ID int32

const None ID = 0

func (id ID) IsArchetype() bool { return id < 0 }
func (id ID) IsConcrete() bool  { return id > 0 }

func (id ID) String() string {
	if id.IsArchetype() {
		return fmt.Sprintf("archetype(%d)", int32(id))
	}
	return fmt.Sprintf("object(%d)", int32(id))
}

var ErrNoSuchObject = errors.New("no such object")

// Mask selects object kinds for load, save and clear
type Mask uint8

const (
	MaskArchetypes Mask = 0x01
	MaskConcretes  Mask = 0x02
	MaskAll        Mask = MaskArchetypes | MaskConcretes
)

func (m Mask) Includes(id ID) bool {
	switch {
	case id.IsArchetype():
		return m&MaskArchetypes != 0
	case id.IsConcrete():
		return m&MaskConcretes != 0
	}
	return false
}

// MaskFromDatabase converts a database mask to the object kinds it
// carries. A stand-alone gamesys load takes the concretes it stores too.
func MaskFromDatabase(m database.Mask, target database.DatabaseType) Mask {
	var r Mask
	if m&database.MaskObjTreeGameSys != 0 {
		r |= MaskArchetypes
		if target == database.GameSys {
			r |= MaskConcretes
		}
	}
	if m&database.MaskObjTreeConcrete != 0 {
		r |= MaskConcretes
	}
	return r
}

type MsgType int

const (
	Created MsgType = iota
	Destroyed
	SystemCleared
)

func (t MsgType) String() string {
	switch t {
	case Created:
		return "created"
	case Destroyed:
		return "destroyed"
	}
	return "cleared"
}

type Msg struct {
	Type MsgType
	ID   ID
}

// ArchetypeSetter records the archetype of a freshly created object
type ArchetypeSetter interface {
	SetArchetype(obj, archetype ID) error
}
