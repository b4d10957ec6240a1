package value

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

type Kind int

const (
	Invalid Kind = iota
	Int
	UInt
	Float
	Bool
	String
	Vector
	Quaternion
)

var kindNames = map[Kind]string{
	Invalid:    "invalid",
	Int:        "int",
	UInt:       "uint",
	Float:      "float",
	Bool:       "bool",
	String:     "string",
	Vector:     "vector",
	Quaternion: "quaternion",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name && k != Invalid {
			return k, nil
		}
	}
	return Invalid, errors.Errorf("Unknown value kind %q", name)
}

// Value is a tagged union of the field types stored in property and link
// data. The zero Value is Invalid.
type Value struct {
	kind Kind
	i    int64
	f    float32
	s    string
	vec  mgl32.Vec3
	quat mgl32.Quat
}

func NewInt(v int32) Value   { return Value{kind: Int, i: int64(v)} }
func NewUInt(v uint32) Value { return Value{kind: UInt, i: int64(v)} }
func NewFloat(v float32) Value {
	return Value{kind: Float, f: v}
}
func NewBool(v bool) Value {
	if v {
		return Value{kind: Bool, i: 1}
	}
	return Value{kind: Bool}
}
func NewString(v string) Value         { return Value{kind: String, s: v} }
func NewVector(v mgl32.Vec3) Value     { return Value{kind: Vector, vec: v} }
func NewQuaternion(q mgl32.Quat) Value { return Value{kind: Quaternion, quat: q} }

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsValid() bool { return v.kind != Invalid }

func (v Value) mismatch(k Kind) error {
	return errors.Errorf("Value of kind %v requested as %v", v.kind, k)
}

func (v Value) Int() (int32, error) {
	if v.kind != Int {
		return 0, v.mismatch(Int)
	}
	return int32(v.i), nil
}

func (v Value) UInt() (uint32, error) {
	if v.kind != UInt {
		return 0, v.mismatch(UInt)
	}
	return uint32(v.i), nil
}

func (v Value) Float() (float32, error) {
	if v.kind != Float {
		return 0, v.mismatch(Float)
	}
	return v.f, nil
}

func (v Value) Bool() (bool, error) {
	if v.kind != Bool {
		return false, v.mismatch(Bool)
	}
	return v.i != 0, nil
}

func (v Value) Str() (string, error) {
	if v.kind != String {
		return "", v.mismatch(String)
	}
	return v.s, nil
}

func (v Value) Vector() (mgl32.Vec3, error) {
	if v.kind != Vector {
		return mgl32.Vec3{}, v.mismatch(Vector)
	}
	return v.vec, nil
}

func (v Value) Quaternion() (mgl32.Quat, error) {
	if v.kind != Quaternion {
		return mgl32.QuatIdent(), v.mismatch(Quaternion)
	}
	return v.quat, nil
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Float:
		return v.f == o.f
	case String:
		return v.s == o.s
	case Vector:
		return v.vec == o.vec
	case Quaternion:
		return v.quat == o.quat
	}
	return v.i == o.i
}

func (v Value) String() string {
	switch v.kind {
	case Int, UInt:
		return fmt.Sprint(v.i)
	case Float:
		return fmt.Sprint(v.f)
	case Bool:
		return fmt.Sprint(v.i != 0)
	case String:
		return v.s
	case Vector:
		return fmt.Sprintf("(%v, %v, %v)", v.vec[0], v.vec[1], v.vec[2])
	case Quaternion:
		return fmt.Sprintf("(%v; %v, %v, %v)", v.quat.W, v.quat.V[0], v.quat.V[1], v.quat.V[2])
	}
	return "<invalid>"
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Int, UInt:
		return json.Marshal(v.i)
	case Float:
		return json.Marshal(v.f)
	case Bool:
		return json.Marshal(v.i != 0)
	case String:
		return json.Marshal(v.s)
	case Vector:
		return json.Marshal(v.vec)
	case Quaternion:
		return json.Marshal([4]float32{v.quat.W, v.quat.V[0], v.quat.V[1], v.quat.V[2]})
	}
	return []byte("null"), nil
}
