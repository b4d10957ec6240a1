package database

import (
	"bytes"
	"io"

	"github.com/mogaika/dark_db_browser/darkdb"
)

// Mask describes which parts of a database a file carries, or which parts
// a listener should load, save or drop.
type Mask uint32

const (
	MaskConcrete        Mask = 0x0100
	MaskAbstract        Mask = 0x0200
	MaskMultiBrushes    Mask = 0x0400
	MaskObjTreeConcrete Mask = 0x010000
	MaskMissionData     Mask = 0x020000
	MaskObjTreeGameSys  Mask = 0x040000
	MaskComplete        Mask = 0x071F00

	FileTypeGam Mask = 0x040200
	FileTypeVbr Mask = 0x000500
	FileTypeSav Mask = 0x011900
	FileTypeMis Mask = 0x031900
	FileTypeCow Mask = 0x071F00
)

const (
	PriorityWorldRep = 5
	PriorityObject   = 20
	PriorityProperty = 21
	PriorityLink     = 22
	PriorityScript   = 25
)

type ChangeType int

const (
	Loading ChangeType = iota
	Saving
	Dropping
)

func (c ChangeType) String() string {
	switch c {
	case Loading:
		return "loading"
	case Saving:
		return "saving"
	case Dropping:
		return "dropping"
	}
	return "unknown"
}

type DatabaseType int

const (
	Complete DatabaseType = iota
	GameSys
	Mission
	SaveGame
)

func (t DatabaseType) String() string {
	switch t {
	case GameSys:
		return "gamesys"
	case Mission:
		return "mission"
	case SaveGame:
		return "savegame"
	}
	return "complete"
}

func TypeOfFile(fileType Mask) DatabaseType {
	switch fileType {
	case FileTypeGam:
		return GameSys
	case FileTypeMis:
		return Mission
	case FileTypeSav:
		return SaveGame
	}
	return Complete
}

// FileGroup is the read side of a database handed to listeners
type FileGroup interface {
	Name() string
	HasFile(name string) bool
	GetFile(name string) (*io.SectionReader, error)
	Header(name string) (darkdb.ChunkHeader, error)
	List() []string
}

// ChunkWriter is the write side used while saving
type ChunkWriter interface {
	CreateFile(name string, major, minor uint32) (*bytes.Buffer, error)
}

// ChangeMsg is broadcast to database listeners. DB is set for Loading,
// Target for Saving, neither for Dropping.
type ChangeMsg struct {
	Change   ChangeType
	DBType   DatabaseType
	DBTarget DatabaseType
	Mask     Mask
	DB       FileGroup
	Target   ChunkWriter
}

type Progress struct {
	Completed     float32
	TotalCoarse   int
	CurrentCoarse int
	OverallFine   int
}

func (p *Progress) reset() {
	*p = Progress{}
}

func (p *Progress) recalc() {
	if p.TotalCoarse > 0 {
		p.Completed = float32(p.CurrentCoarse) / float32(p.TotalCoarse)
	} else {
		p.Completed = 0
	}
}
