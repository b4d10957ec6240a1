package link

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/object"
)

var ErrNoSuchLink = errors.New("no such link")

// LinkID packs flavor (relation), concreteness and index:
// flavor<<20 | concrete<<16 | index
type LinkID uint32

func MakeID(flavor uint32, concrete uint32, index uint32) LinkID {
	return LinkID(flavor<<20 | (concrete&0x0F)<<16 | index&0xFFFF)
}

func (id LinkID) Flavor() uint32   { return uint32(id) >> 20 }
func (id LinkID) Concrete() uint32 { return uint32(id) >> 16 & 0x0F }
func (id LinkID) Index() uint32    { return uint32(id) & 0xFFFF }

func (id LinkID) String() string {
	return fmt.Sprintf("link(%d:%d:%d)", id.Flavor(), id.Concrete(), id.Index())
}

type Link struct {
	ID     LinkID
	Src    object.ID
	Dst    object.ID
	Flavor uint32
}

type ChangeType int

const (
	Added ChangeType = iota + 1
	Removed
	Changed
	RelationCleared
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Changed:
		return "changed"
	case RelationCleared:
		return "cleared"
	}
	return "unknown"
}

// ChangeMsg is sent after the relation was modified. Link holds a copy of
// the affected link, so it is valid for removals too.
type ChangeMsg struct {
	Change ChangeType
	LinkID LinkID
	Link   Link
}
