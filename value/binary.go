package value

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/utils"
)

// Size of the binary representation, 0 for strings which take whatever
// size the field declares
func Size(k Kind) int {
	switch k {
	case Int, UInt, Float, Bool:
		return 4
	case Vector:
		return 12
	case Quaternion:
		return 16
	}
	return 0
}

func readFloats(data []byte, out []float32) {
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
}

func writeFloats(data []byte, in ...float32) {
	for i, f := range in {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
	}
}

// Decode reads a value of kind k from the start of data. Strings are zero
// terminated or span the whole slice.
func Decode(k Kind, data []byte) (Value, error) {
	if size := Size(k); len(data) < size {
		return Value{}, errors.Errorf("Not enough data for %v: %d < %d", k, len(data), size)
	}

	switch k {
	case Int:
		return NewInt(int32(binary.LittleEndian.Uint32(data))), nil
	case UInt:
		return NewUInt(binary.LittleEndian.Uint32(data)), nil
	case Float:
		return NewFloat(math.Float32frombits(binary.LittleEndian.Uint32(data))), nil
	case Bool:
		return NewBool(binary.LittleEndian.Uint32(data) != 0), nil
	case String:
		return NewString(utils.BytesToString(data)), nil
	case Vector:
		var v mgl32.Vec3
		readFloats(data, v[:])
		return NewVector(v), nil
	case Quaternion:
		var f [4]float32
		readFloats(data, f[:])
		return NewQuaternion(mgl32.Quat{W: f[0], V: mgl32.Vec3{f[1], f[2], f[3]}}), nil
	}
	return Value{}, errors.Errorf("Cannot decode %v", k)
}

// Encode returns the binary representation. size is the buffer size for
// strings, 0 means exactly the string plus terminator.
func (v Value) Encode(size int) ([]byte, error) {
	switch v.kind {
	case String:
		if size == 0 {
			return utils.StringToBytes(v.s, true)
		}
		return utils.StringToBytesBuffer(v.s, size, true)
	case Invalid:
		return nil, errors.Errorf("Cannot encode invalid value")
	}

	data := make([]byte, Size(v.kind))
	switch v.kind {
	case Int, UInt, Bool:
		binary.LittleEndian.PutUint32(data, uint32(v.i))
	case Float:
		writeFloats(data, v.f)
	case Vector:
		writeFloats(data, v.vec[:]...)
	case Quaternion:
		writeFloats(data, v.quat.W, v.quat.V[0], v.quat.V[1], v.quat.V[2])
	}
	return data, nil
}
