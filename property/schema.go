package property

import (
	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/config"
	"github.com/mogaika/dark_db_browser/value"
)

type Field struct {
	Name   string
	Kind   value.Kind
	Offset int
	// 0 for a string spanning the rest of the record
	Size int
}

// Schema describes the fields of a property record
type Schema struct {
	Fields []Field
}

func NewSchema(defs []config.FieldDef) (*Schema, error) {
	s := &Schema{Fields: make([]Field, 0, len(defs))}
	names := make(map[string]bool)
	for _, def := range defs {
		k, err := value.ParseKind(def.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "Field %q", def.Name)
		}
		if names[def.Name] {
			return nil, errors.Errorf("Field %q defined twice", def.Name)
		}
		names[def.Name] = true

		size := value.Size(k)
		if k == value.String {
			size = def.Size
		}
		s.Fields = append(s.Fields, Field{Name: def.Name, Kind: k, Offset: def.Offset, Size: size})
	}
	return s, nil
}

func (s *Schema) Field(name string) (Field, error) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, nil
		}
	}
	return Field{}, errors.Errorf("No field %q", name)
}

// MinSize is the smallest record holding every field
func (s *Schema) MinSize() int {
	size := 0
	for _, f := range s.Fields {
		if end := f.Offset + f.Size; end > size {
			size = end
		}
	}
	return size
}

func (f Field) slice(data []byte) ([]byte, error) {
	if f.Offset > len(data) {
		return nil, errors.Errorf("Field %q at %d is out of record (%d bytes)", f.Name, f.Offset, len(data))
	}
	if f.Size == 0 {
		return data[f.Offset:], nil
	}
	if f.Offset+f.Size > len(data) {
		return nil, errors.Errorf("Field %q [%d:%d] is out of record (%d bytes)", f.Name, f.Offset, f.Offset+f.Size, len(data))
	}
	return data[f.Offset : f.Offset+f.Size], nil
}

func (f Field) Decode(data []byte) (value.Value, error) {
	raw, err := f.slice(data)
	if err != nil {
		return value.Value{}, err
	}
	return value.Decode(f.Kind, raw)
}

// Encode writes v into data. Variable strings may grow the record, so the
// result must replace data.
func (f Field) Encode(data []byte, v value.Value) ([]byte, error) {
	if v.Kind() != f.Kind {
		return nil, errors.Errorf("Field %q is %v, got %v", f.Name, f.Kind, v.Kind())
	}
	enc, err := v.Encode(f.Size)
	if err != nil {
		return nil, errors.Wrapf(err, "Field %q", f.Name)
	}
	if f.Size == 0 {
		if f.Offset > len(data) {
			return nil, errors.Errorf("Field %q at %d is out of record (%d bytes)", f.Name, f.Offset, len(data))
		}
		return append(append([]byte(nil), data[:f.Offset]...), enc...), nil
	}
	raw, err := f.slice(data)
	if err != nil {
		return nil, err
	}
	copy(raw, enc)
	return data, nil
}
