package response

import (
	"encoding/base64"
	"fmt"
)

// Type identifies the variant held by a Value.
type Type uint8

const (
	Null Type = iota
	Map
	List
	String
	Boolean
	Int
	Float
	EnumValue
	ID
	Scalar
	Custom
)

var typeNames = [...]string{
	Null:      "Null",
	Map:       "Map",
	List:      "List",
	String:    "String",
	Boolean:   "Boolean",
	Int:       "Int",
	Float:     "Float",
	EnumValue: "EnumValue",
	ID:        "ID",
	Scalar:    "Scalar",
	Custom:    "Custom",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Member is a single named entry of a Map value.
type Member struct {
	Name  string
	Value Value
}

// CustomValue is an externally defined payload carried by a Custom value.
type CustomValue interface {
	Equal(other CustomValue) bool
	Clone() CustomValue
}

// Value is a GraphQL response or input value. The zero Value is Null.
//
// Copies of a Map or List Value share storage, like Go maps; use Clone for
// an independent copy.
type Value struct {
	typ Type

	obj  *object
	list *[]Value

	str string
	// fromJSON marks strings parsed from a variables payload, fromInput marks
	// strings from a query literal. Either may be read as an enum or an ID.
	fromJSON  bool
	fromInput bool

	boolean bool
	integer int
	float   float64
	id      IDType
	scalar  *Value
	custom  CustomValue
}

type object struct {
	members []Member
	index   map[string]int
}

// NewValue returns an empty value of the given type.
func NewValue(t Type) Value {
	switch t {
	case Map:
		return NewMap(0)
	case List:
		return NewList(0)
	case Scalar:
		return NewScalar(Value{})
	}
	return Value{typ: t}
}

func NewMap(capacity int) Value {
	return Value{typ: Map, obj: &object{
		members: make([]Member, 0, capacity),
		index:   make(map[string]int, capacity),
	}}
}

func NewList(capacity int) Value {
	items := make([]Value, 0, capacity)
	return Value{typ: List, list: &items}
}

func NewString(s string) Value      { return Value{typ: String, str: s} }
func NewBoolean(b bool) Value       { return Value{typ: Boolean, boolean: b} }
func NewInt(i int) Value            { return Value{typ: Int, integer: i} }
func NewFloat(f float64) Value      { return Value{typ: Float, float: f} }
func NewEnum(name string) Value     { return Value{typ: EnumValue, str: name} }
func NewID(id IDType) Value         { return Value{typ: ID, id: id} }
func NewCustom(c CustomValue) Value { return Value{typ: Custom, custom: c} }

// NewScalar wraps an arbitrary value as a custom scalar.
func NewScalar(inner Value) Value {
	return Value{typ: Scalar, scalar: &inner}
}

func (v Value) Type() Type { return v.typ }

func (v Value) IsNull() bool { return v.typ == Null }

func (v Value) mustBe(t Type) {
	if v.typ != t {
		panic(fmt.Sprintf("response: %s accessed as %s", v.typ, t))
	}
}

// FromJSON returns v with the JSON-source mark set. Only strings carry it.
func (v Value) FromJSON() Value {
	v.mustBe(String)
	v.fromJSON = true
	return v
}

// FromInput returns v with the query-literal mark set.
func (v Value) FromInput() Value {
	v.mustBe(String)
	v.fromInput = true
	return v
}

// MaybeEnum reports whether v is an enum, or a string from JSON or input
// which may be read as one.
func (v Value) MaybeEnum() bool {
	switch v.typ {
	case EnumValue:
		return true
	case String:
		return v.fromJSON || v.fromInput
	}
	return false
}

// MaybeID reports whether v is an ID, or a string from JSON or input which
// may be read as one.
func (v Value) MaybeID() bool {
	switch v.typ {
	case ID:
		return true
	case String:
		return v.fromJSON || v.fromInput
	}
	return false
}

// ---- Map ----

// Emplace appends a member. It reports false, leaving v unchanged, if a
// member with the same name already exists.
func (v Value) Emplace(name string, value Value) bool {
	v.mustBe(Map)
	if _, ok := v.obj.index[name]; ok {
		return false
	}
	v.obj.index[name] = len(v.obj.members)
	v.obj.members = append(v.obj.members, Member{Name: name, Value: value})
	return true
}

// Find returns the named member of a Map.
func (v Value) Find(name string) (Value, bool) {
	v.mustBe(Map)
	if i, ok := v.obj.index[name]; ok {
		return v.obj.members[i].Value, true
	}
	return Value{}, false
}

// Get returns the named member of a Map, or Null.
func (v Value) Get(name string) Value {
	found, _ := v.Find(name)
	return found
}

func (v Value) Members() []Member {
	v.mustBe(Map)
	return v.obj.members
}

// ---- List ----

func (v Value) Append(value Value) {
	v.mustBe(List)
	*v.list = append(*v.list, value)
}

func (v Value) Index(i int) Value {
	v.mustBe(List)
	items := *v.list
	if i < 0 || i >= len(items) {
		panic(fmt.Sprintf("response: index %d out of range [0:%d]", i, len(items)))
	}
	return items[i]
}

func (v Value) Items() []Value {
	v.mustBe(List)
	return *v.list
}

// Len returns the number of members of a Map or items of a List.
func (v Value) Len() int {
	switch v.typ {
	case Map:
		return len(v.obj.members)
	case List:
		return len(*v.list)
	}
	panic(fmt.Sprintf("response: Len of %s", v.typ))
}

// Reserve grows the capacity of a Map or List by n.
func (v Value) Reserve(n int) {
	switch v.typ {
	case Map:
		if cap(v.obj.members)-len(v.obj.members) < n {
			grown := make([]Member, len(v.obj.members), len(v.obj.members)+n)
			copy(grown, v.obj.members)
			v.obj.members = grown
		}
	case List:
		items := *v.list
		if cap(items)-len(items) < n {
			grown := make([]Value, len(items), len(items)+n)
			copy(grown, items)
			*v.list = grown
		}
	default:
		panic(fmt.Sprintf("response: Reserve on %s", v.typ))
	}
}

// ---- single values ----

func (v Value) AsString() string {
	v.mustBe(String)
	return v.str
}

func (v Value) AsBool() bool {
	v.mustBe(Boolean)
	return v.boolean
}

func (v Value) AsInt() int {
	v.mustBe(Int)
	return v.integer
}

// AsFloat returns a Float, converting an Int.
func (v Value) AsFloat() float64 {
	if v.typ == Int {
		return float64(v.integer)
	}
	v.mustBe(Float)
	return v.float
}

// AsEnum returns the enum name. Strings which MaybeEnum are accepted.
func (v Value) AsEnum() string {
	if v.typ == String && v.MaybeEnum() {
		return v.str
	}
	v.mustBe(EnumValue)
	return v.str
}

// AsID returns the ID. Strings which MaybeID are decoded with IDFromText.
func (v Value) AsID() IDType {
	if v.typ == String && v.MaybeID() {
		return IDFromText(v.str)
	}
	v.mustBe(ID)
	return v.id
}

func (v Value) AsScalar() Value {
	v.mustBe(Scalar)
	return *v.scalar
}

func (v Value) AsCustom() CustomValue {
	v.mustBe(Custom)
	return v.custom
}

func (v *Value) SetString(s string) {
	v.mustBe(String)
	v.str = s
}

func (v *Value) SetBool(b bool) {
	v.mustBe(Boolean)
	v.boolean = b
}

func (v *Value) SetInt(i int) {
	v.mustBe(Int)
	v.integer = i
}

func (v *Value) SetFloat(f float64) {
	v.mustBe(Float)
	v.float = f
}

func (v *Value) SetEnum(name string) {
	v.mustBe(EnumValue)
	v.str = name
}

func (v *Value) SetID(id IDType) {
	v.mustBe(ID)
	v.id = id
}

func (v *Value) SetScalar(inner Value) {
	v.mustBe(Scalar)
	v.scalar = &inner
}

func (v *Value) SetCustom(c CustomValue) {
	v.mustBe(Custom)
	v.custom = c
}

// Equal reports deep equality. Strings compare equal to enums and IDs they
// may be read as.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		switch {
		case v.typ == String && other.typ == EnumValue && v.MaybeEnum():
			return v.str == other.str
		case v.typ == EnumValue && other.typ == String && other.MaybeEnum():
			return v.str == other.str
		case v.typ == String && other.typ == ID && v.MaybeID():
			return IDFromText(v.str).Equal(other.id)
		case v.typ == ID && other.typ == String && other.MaybeID():
			return v.id.Equal(IDFromText(other.str))
		}
		return false
	}
	switch v.typ {
	case Null:
		return true
	case Map:
		a, b := v.obj.members, other.obj.members
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i].Name != b[i].Name || !a[i].Value.Equal(b[i].Value) {
				return false
			}
		}
		return true
	case List:
		a, b := *v.list, *other.list
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case String, EnumValue:
		return v.str == other.str
	case Boolean:
		return v.boolean == other.boolean
	case Int:
		return v.integer == other.integer
	case Float:
		return v.float == other.float
	case ID:
		return v.id.Equal(other.id)
	case Scalar:
		return v.scalar.Equal(*other.scalar)
	case Custom:
		if v.custom == nil || other.custom == nil {
			return v.custom == other.custom
		}
		return v.custom.Equal(other.custom)
	}
	return false
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	out := v
	switch v.typ {
	case Map:
		out = NewMap(len(v.obj.members))
		for _, m := range v.obj.members {
			out.Emplace(m.Name, m.Value.Clone())
		}
	case List:
		out = NewList(len(*v.list))
		for _, item := range *v.list {
			out.Append(item.Clone())
		}
	case ID:
		out.id = v.id.Clone()
	case Scalar:
		inner := v.scalar.Clone()
		out.scalar = &inner
	case Custom:
		if v.custom != nil {
			out.custom = v.custom.Clone()
		}
	}
	return out
}

// IDType is an ID held either as raw bytes, rendered as base64 text, or as
// an opaque string.
type IDType struct {
	data     []byte
	text     string
	isString bool
}

func IDFromBytes(b []byte) IDType { return IDType{data: append([]byte(nil), b...)} }

func IDFromString(s string) IDType { return IDType{text: s, isString: true} }

// IDFromText reads the canonical text form: base64 when it decodes cleanly,
// otherwise an opaque string.
func IDFromText(s string) IDType {
	if s != "" {
		if b, err := base64.StdEncoding.Strict().DecodeString(s); err == nil {
			return IDType{data: b}
		}
	}
	return IDFromString(s)
}

func (id IDType) IsBytes() bool { return !id.isString }

func (id IDType) Bytes() []byte {
	if id.isString {
		return []byte(id.text)
	}
	return id.data
}

// String returns the canonical text form.
func (id IDType) String() string {
	if id.isString {
		return id.text
	}
	return base64.StdEncoding.EncodeToString(id.data)
}

func (id IDType) Equal(other IDType) bool {
	return id.String() == other.String()
}

func (id IDType) Clone() IDType {
	if id.isString {
		return id
	}
	return IDType{data: append([]byte(nil), id.data...)}
}
