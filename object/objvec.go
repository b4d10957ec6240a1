package object

import (
	"encoding/binary"
	"io/ioutil"
	"log"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/database"
)

const (
	ObjVecChunk = "ObjVec"

	objVecVersionMajor = 0
	objVecVersionMinor = 2
)

// OnDatabaseChange is the object system database listener
// (database.PriorityObject)
func (s *Service) OnDatabaseChange(msg *database.ChangeMsg) error {
	mask := MaskFromDatabase(msg.Mask, msg.DBTarget)

	switch msg.Change {
	case database.Dropping:
		return s.Clear(mask)
	case database.Loading:
		if mask == 0 {
			return nil
		}
		return s.load(msg.DB, mask)
	case database.Saving:
		return s.save(msg.Target, mask)
	}
	return nil
}

func (s *Service) load(db database.FileGroup, mask Mask) error {
	if !db.HasFile(ObjVecChunk) {
		log.Printf("[object] %q has no %s chunk", db.Name(), ObjVecChunk)
		return nil
	}

	r, err := db.GetFile(ObjVecChunk)
	if err != nil {
		return err
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "Cannot read %s", ObjVecChunk)
	}
	if len(data) < 8 {
		return errors.Errorf("%s chunk of %q is too short (%d bytes)", ObjVecChunk, db.Name(), len(data))
	}

	min := ID(int32(binary.LittleEndian.Uint32(data[0:4])))
	max := ID(int32(binary.LittleEndian.Uint32(data[4:8])))
	bitmap := data[8:]
	if max < min || int64(len(bitmap))*8 < int64(max)-int64(min) {
		return errors.Errorf("%s of %q: range [%d, %d) does not fit %d bytes", ObjVecChunk, db.Name(), min, max, len(bitmap))
	}
	if min&0x07 != 0 {
		log.Printf("[object] %s of %q is not aligned (min %d)", ObjVecChunk, db.Name(), min)
	}

	log.Printf("[object] %s of %q: min %d max %d", ObjVecChunk, db.Name(), min, max)
	s.Grow(min, max)

	loaded := 0
	for id := min; id < max; id++ {
		bit := int64(id) - int64(min)
		if bitmap[bit/8]&(1<<(bit%8)) == 0 || !mask.Includes(id) {
			continue
		}
		if s.allocated[id] {
			log.Printf("[object] %v loaded twice, keeping the existing one", id)
			continue
		}
		s.allocated[id] = true
		loaded++
		if err := s.listeners.Broadcast(Msg{Type: Created, ID: id}); err != nil {
			return err
		}
	}
	log.Printf("[object] Loaded %d objects", loaded)
	return nil
}

func (s *Service) save(w database.ChunkWriter, mask Mask) error {
	min, max := s.min, s.max
	bitmap := make([]byte, (int64(max)-int64(min)+7)/8)
	for id := range s.allocated {
		if mask.Includes(id) {
			bit := int64(id) - int64(min)
			bitmap[bit/8] |= 1 << (bit % 8)
		}
	}

	buf, err := w.CreateFile(ObjVecChunk, objVecVersionMajor, objVecVersionMinor)
	if err != nil {
		return err
	}
	binary.Write(buf, binary.LittleEndian, int32(min))
	binary.Write(buf, binary.LittleEndian, int32(max))
	buf.Write(bitmap)
	return nil
}
