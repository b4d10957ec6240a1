package database

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"
	"log"
	"time"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/broadcast"
	"github.com/mogaika/dark_db_browser/darkdb"
	"github.com/mogaika/dark_db_browser/status"
	"github.com/mogaika/dark_db_browser/vfs"
)

const (
	FileTypeChunk = "FILE_TYPE"
	MisFileChunk  = "MIS_FILE"
	GamFileChunk  = "GAM_FILE"
)

var ErrReentrant = errors.New("database service is busy")

type LoadPolicy int

const (
	// FailFast stops at the first failing listener, data loaded by the
	// listeners before it stays loaded
	FailFast LoadPolicy = iota
	// BestEffort runs every listener and returns the first error at the end
	BestEffort
)

func ParseLoadPolicy(s string) (LoadPolicy, error) {
	switch s {
	case "", "failfast":
		return FailFast, nil
	case "besteffort":
		return BestEffort, nil
	}
	return FailFast, errors.Errorf("Unknown load policy %q", s)
}

type Service struct {
	locator   *vfs.Locator
	policy    LoadPolicy
	listeners broadcast.Source[*ChangeMsg]

	current *darkdb.FileGroup
	// load chain of the current database, parents first
	chain []string
	// names of loaded databases by file type, parent tags of saved files
	// refer to them
	loaded map[Mask]string

	progress         Progress
	progressListener func(Progress)

	busy bool
}

func NewService(locator *vfs.Locator, policy LoadPolicy) *Service {
	return &Service{locator: locator, policy: policy, loaded: make(map[Mask]string)}
}

func (s *Service) RegisterListener(l broadcast.Listener[*ChangeMsg], priority int) broadcast.ListenerID {
	return s.listeners.Register(l, priority)
}

func (s *Service) UnregisterListener(id broadcast.ListenerID) bool {
	return s.listeners.Unregister(id)
}

func (s *Service) SetProgressListener(l func(Progress)) { s.progressListener = l }
func (s *Service) UnsetProgressListener()                { s.progressListener = nil }

func (s *Service) Progress() Progress { return s.progress }

// Current returns the last loaded top level database or nil
func (s *Service) Current() FileGroup {
	if s.current == nil {
		return nil
	}
	return s.current
}

func (s *Service) Chain() []string {
	return append([]string(nil), s.chain...)
}

func (s *Service) enter() error {
	if s.busy {
		return ErrReentrant
	}
	s.busy = true
	return nil
}

func (s *Service) leave() { s.busy = false }

func (s *Service) notifyProgress() {
	s.progress.recalc()
	if s.progressListener != nil {
		s.progressListener(s.progress)
	}
}

// FineStep lets a listener report sub progress of a long operation
func (s *Service) FineStep(count int) {
	s.progress.OverallFine += count
	s.notifyProgress()
}

func (s *Service) broadcast(msg *ChangeMsg, reversed bool) error {
	var first error
	s.listeners.Each(reversed, func(priority int, l broadcast.Listener[*ChangeMsg]) bool {
		start := time.Now()
		err := l(msg)
		log.Printf("[database] %s %s (mask 0x%.6x) listener %d took %v",
			msg.Change, msg.DBType, uint32(msg.Mask), priority, time.Since(start))

		if err != nil {
			err = errors.Wrapf(err, "Database %s listener with priority %d failed", msg.Change, priority)
			if first == nil {
				first = err
			}
			if s.policy == FailFast {
				return false
			}
			log.Printf("[database] Continuing after error: %v", err)
			status.Error("%v", err)
		}

		s.progress.CurrentCoarse++
		s.notifyProgress()
		return true
	})
	return first
}

func (s *Service) openDB(name string) (*darkdb.FileGroup, error) {
	f, err := s.locator.Find(name)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot open database %q", name)
	}
	r, err := vfs.OpenFileAndGetReader(f, true)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot read database %q", name)
	}
	// named after the file found, lookups ignore case
	return darkdb.Open(f.Name(), bytes.NewReader(data), int64(len(data)))
}

// FileType reads the FILE_TYPE chunk. Older files lack it and are
// classified by the parent tags they carry.
func FileType(db FileGroup) (Mask, error) {
	if !db.HasFile(FileTypeChunk) {
		switch {
		case db.HasFile(MisFileChunk):
			return FileTypeSav, nil
		case db.HasFile(GamFileChunk):
			return FileTypeMis, nil
		}
		return FileTypeGam, nil
	}

	r, err := db.GetFile(FileTypeChunk)
	if err != nil {
		return 0, err
	}
	var ft uint32
	if err := binary.Read(r, binary.LittleEndian, &ft); err != nil {
		return 0, errors.Wrapf(err, "Invalid %s chunk in %q", FileTypeChunk, db.Name())
	}
	return Mask(ft), nil
}

func parentTag(fileType Mask) string {
	switch fileType {
	case FileTypeSav:
		return MisFileChunk
	case FileTypeMis:
		return GamFileChunk
	}
	return ""
}

func parentType(fileType Mask) Mask {
	switch fileType {
	case FileTypeSav:
		return FileTypeMis
	case FileTypeMis:
		return FileTypeGam
	}
	return 0
}

// Load drops the current database and loads name with every parent it
// references
func (s *Service) Load(name string) error {
	return s.LoadMasked(name, MaskComplete)
}

func (s *Service) LoadMasked(name string, mask Mask) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	log.Printf("[database] Loading %q mask 0x%.6x", name, uint32(mask))

	if err := s.unload(); err != nil {
		return err
	}
	s.progress.reset()

	db, ft, err := s.openTyped(name)
	if err != nil {
		return err
	}
	s.current = db

	return s.recursiveLoad(db, ft, mask, TypeOfFile(ft))
}

func (s *Service) openTyped(name string) (*darkdb.FileGroup, Mask, error) {
	db, err := s.openDB(name)
	if err != nil {
		return nil, 0, err
	}
	ft, err := FileType(db)
	if err != nil {
		return nil, 0, err
	}
	return db, ft, nil
}

func (s *Service) recursiveLoad(db *darkdb.FileGroup, ft Mask, mask Mask, target DatabaseType) error {
	s.progress.TotalCoarse += s.listeners.Len()

	if tag := parentTag(ft); tag != "" {
		parentName, err := db.ReadNameTag(tag)
		if err != nil {
			return errors.Wrapf(err, "Cannot read parent database name from %q", db.Name())
		}
		log.Printf("[database] %q references %q", db.Name(), parentName)

		parent, pft, err := s.openTyped(parentName)
		if err != nil {
			return err
		}
		// overlay data wins, parent does not load the parts it overrides
		if err := s.recursiveLoad(parent, pft, mask&^ft, target); err != nil {
			return err
		}
	}

	s.chain = append(s.chain, db.Name())
	s.loaded[ft] = db.Name()
	return s.broadcast(&ChangeMsg{
		Change:   Loading,
		DBType:   TypeOfFile(ft),
		DBTarget: target,
		Mask:     ft & mask,
		DB:       db,
	}, false)
}

// LoadGameSys loads a gamesys alone, without parent resolution
func (s *Service) LoadGameSys(name string) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	log.Printf("[database] Loading gamesys %q", name)

	if err := s.unload(); err != nil {
		return err
	}
	s.progress.reset()
	s.progress.TotalCoarse = s.listeners.Len()

	db, ft, err := s.openTyped(name)
	if err != nil {
		return err
	}
	s.current = db
	s.chain = append(s.chain, db.Name())
	s.loaded[FileTypeGam] = db.Name()

	return s.broadcast(&ChangeMsg{
		Change:   Loading,
		DBType:   GameSys,
		DBTarget: GameSys,
		Mask:     ft & MaskComplete,
		DB:       db,
	}, false)
}

// MergeLoad loads name on top of the current data without dropping it
func (s *Service) MergeLoad(name string, mask Mask) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	db, ft, err := s.openTyped(name)
	if err != nil {
		return err
	}

	s.progress.reset()
	s.progress.TotalCoarse = s.listeners.Len()
	s.chain = append(s.chain, db.Name())
	s.loaded[ft] = db.Name()
	if s.current == nil {
		s.current = db
	}

	return s.broadcast(&ChangeMsg{
		Change:   Loading,
		DBType:   TypeOfFile(ft),
		DBTarget: TypeOfFile(ft),
		Mask:     ft & mask,
		DB:       db,
	}, false)
}

// Save collects the masked data from every listener into a new database
// file stored through the locator
func (s *Service) Save(name string, mask Mask) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	log.Printf("[database] Saving %q mask 0x%.6x", name, uint32(mask))

	s.progress.reset()
	s.progress.TotalCoarse = s.listeners.Len()

	target := darkdb.New(name)
	if err := s.broadcast(&ChangeMsg{
		Change:   Saving,
		DBType:   TypeOfFile(mask),
		DBTarget: TypeOfFile(mask),
		Mask:     mask,
		Target:   target,
	}, false); err != nil {
		return err
	}

	ftw, err := target.CreateFile(FileTypeChunk, 0, 1)
	if err != nil {
		return err
	}
	binary.Write(ftw, binary.LittleEndian, uint32(mask))

	if tag := parentTag(mask); tag != "" {
		if parent, ok := s.loaded[parentType(mask)]; ok {
			tw, err := target.CreateFile(tag, 0, 1)
			if err != nil {
				return err
			}
			tw.WriteString(parent)
			tw.WriteByte(0)
		} else {
			log.Printf("[database] No %s loaded, %q is saved without %s", TypeOfFile(parentType(mask)), name, tag)
		}
	}

	var buf bytes.Buffer
	if _, err := target.WriteTo(&buf); err != nil {
		return err
	}
	return s.locator.Create(name, &buf)
}

// Unload drops everything, listeners are called in reverse priority order
func (s *Service) Unload() error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()
	return s.unload()
}

func (s *Service) unload() error {
	if s.current == nil {
		return nil
	}
	log.Printf("[database] Unloading %q", s.current.Name())

	s.progress.reset()
	s.progress.TotalCoarse = s.listeners.Len()

	err := s.broadcast(&ChangeMsg{
		Change:   Dropping,
		DBType:   Complete,
		DBTarget: Complete,
		Mask:     MaskComplete,
	}, true)

	s.current = nil
	s.chain = nil
	s.loaded = make(map[Mask]string)
	return err
}
