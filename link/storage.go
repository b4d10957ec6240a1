package link

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/value"
)

// DataStorage keeps fixed size data records attached to links
type DataStorage interface {
	// Size of one record in bytes, 0 for relations without data
	Size() int
	Create(id LinkID, fields map[string]value.Value) error
	Destroy(id LinkID) bool
	Has(id LinkID) bool
	GetField(id LinkID, field string) (value.Value, error)
	SetField(id LinkID, field string, v value.Value) error
	Read(id LinkID, data []byte) error
	Write(id LinkID, w io.Writer) error
	Clear()
}

// UIntStorage holds a single uint32, addressable as "" or "priority".
// Used by MetaProp.
type UIntStorage struct {
	data map[LinkID]uint32
}

func NewUIntStorage() *UIntStorage {
	return &UIntStorage{data: make(map[LinkID]uint32)}
}

func (s *UIntStorage) Size() int { return 4 }

func checkUIntField(field string) error {
	if field != "" && field != "priority" {
		return errors.Errorf("Unknown link data field %q", field)
	}
	return nil
}

func (s *UIntStorage) Create(id LinkID, fields map[string]value.Value) error {
	var v uint32
	for field, fv := range fields {
		if err := checkUIntField(field); err != nil {
			return err
		}
		u, err := fv.UInt()
		if err != nil {
			return errors.Wrapf(err, "Field %q", field)
		}
		v = u
	}
	s.data[id] = v
	return nil
}

func (s *UIntStorage) Destroy(id LinkID) bool {
	_, ok := s.data[id]
	delete(s.data, id)
	return ok
}

func (s *UIntStorage) Has(id LinkID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *UIntStorage) GetField(id LinkID, field string) (value.Value, error) {
	if err := checkUIntField(field); err != nil {
		return value.Value{}, err
	}
	v, ok := s.data[id]
	if !ok {
		return value.Value{}, errors.Wrapf(ErrNoSuchLink, "No data for %v", id)
	}
	return value.NewUInt(v), nil
}

func (s *UIntStorage) SetField(id LinkID, field string, v value.Value) error {
	if err := checkUIntField(field); err != nil {
		return err
	}
	if !s.Has(id) {
		return errors.Wrapf(ErrNoSuchLink, "No data for %v", id)
	}
	u, err := v.UInt()
	if err != nil {
		return err
	}
	s.data[id] = u
	return nil
}

func (s *UIntStorage) Read(id LinkID, data []byte) error {
	if len(data) < 4 {
		return errors.Errorf("Link data of %v too short: %d", id, len(data))
	}
	s.data[id] = binary.LittleEndian.Uint32(data)
	return nil
}

func (s *UIntStorage) Write(id LinkID, w io.Writer) error {
	v, ok := s.data[id]
	if !ok {
		return errors.Wrapf(ErrNoSuchLink, "No data for %v", id)
	}
	return binary.Write(w, binary.LittleEndian, v)
}

func (s *UIntStorage) Clear() {
	s.data = make(map[LinkID]uint32)
}
