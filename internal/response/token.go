package response

import "fmt"

// TokenKind identifies a Token.
type TokenKind uint8

const (
	TokenStartObject TokenKind = iota
	TokenAddMember
	TokenEndObject
	TokenStartArray
	TokenEndArray
	TokenReserve
	TokenNull
	TokenString
	TokenBool
	TokenInt
	TokenFloat
	TokenEnum
	TokenID
	TokenOpaque
)

// Token is one step of a serialized Value. Only the field matching Kind is
// meaningful.
type Token struct {
	Kind   TokenKind
	Name   string // AddMember name, String and Enum payload
	Count  int    // Reserve
	Bool   bool
	Int    int
	Float  float64
	ID     IDType
	Opaque *Value
}

func StartObject() Token          { return Token{Kind: TokenStartObject} }
func AddMember(name string) Token { return Token{Kind: TokenAddMember, Name: name} }
func EndObject() Token            { return Token{Kind: TokenEndObject} }
func StartArray() Token           { return Token{Kind: TokenStartArray} }
func EndArray() Token             { return Token{Kind: TokenEndArray} }
func Reserve(n int) Token         { return Token{Kind: TokenReserve, Count: n} }
func NullValue() Token            { return Token{Kind: TokenNull} }
func StringValue(s string) Token  { return Token{Kind: TokenString, Name: s} }
func BoolValue(b bool) Token      { return Token{Kind: TokenBool, Bool: b} }
func IntValue(i int) Token        { return Token{Kind: TokenInt, Int: i} }
func FloatValue(f float64) Token  { return Token{Kind: TokenFloat, Float: f} }
func Enum(name string) Token      { return Token{Kind: TokenEnum, Name: name} }
func IDValue(id IDType) Token     { return Token{Kind: TokenID, ID: id} }

// OpaqueValue embeds an already built Value in a stream.
func OpaqueValue(v Value) Token { return Token{Kind: TokenOpaque, Opaque: &v} }

// Writer receives the tokens of a stream in order.
type Writer interface {
	StartObject()
	AddMember(name string)
	EndObject()
	StartArray()
	EndArray()
	Reserve(count int)
	Null()
	String(s string)
	Bool(b bool)
	Int(i int)
	Float(f float64)
	Enum(name string)
	ID(id IDType)
	// Value receives an opaque value. Writers which cannot hold one may
	// expand it with WriteValue.
	Value(v Value)
}

// Stream is an ordered sequence of tokens. The zero Stream is empty.
type Stream struct {
	tokens []Token
}

// NewStream returns a stream holding tokens.
func NewStream(tokens ...Token) Stream {
	return Stream{tokens: tokens}
}

func (s *Stream) Push(t Token) { s.tokens = append(s.tokens, t) }

// Append copies the tokens of other to the end of s.
func (s *Stream) Append(other Stream) {
	s.tokens = append(s.tokens, other.tokens...)
}

func (s Stream) Tokens() []Token { return s.tokens }

func (s Stream) Len() int { return len(s.tokens) }

func (s Stream) Empty() bool { return len(s.tokens) == 0 }

// Visit replays the stream into w.
func (s Stream) Visit(w Writer) {
	for _, t := range s.tokens {
		switch t.Kind {
		case TokenStartObject:
			w.StartObject()
		case TokenAddMember:
			w.AddMember(t.Name)
		case TokenEndObject:
			w.EndObject()
		case TokenStartArray:
			w.StartArray()
		case TokenEndArray:
			w.EndArray()
		case TokenReserve:
			w.Reserve(t.Count)
		case TokenNull:
			w.Null()
		case TokenString:
			w.String(t.Name)
		case TokenBool:
			w.Bool(t.Bool)
		case TokenInt:
			w.Int(t.Int)
		case TokenFloat:
			w.Float(t.Float)
		case TokenEnum:
			w.Enum(t.Name)
		case TokenID:
			w.ID(t.ID)
		case TokenOpaque:
			w.Value(*t.Opaque)
		default:
			panic(fmt.Sprintf("response: unknown token kind %d", t.Kind))
		}
	}
}

// Value materializes the stream. An empty stream yields Null.
func (s Stream) Value() Value {
	m := NewMaterializer()
	s.Visit(m)
	return m.Document()
}

// StreamOf tokenizes v.
func StreamOf(v Value) Stream {
	var s Stream
	appendValue(&s, v)
	return s
}

func appendValue(s *Stream, v Value) {
	switch v.typ {
	case Map:
		s.Push(StartObject())
		s.Push(Reserve(len(v.obj.members)))
		for _, m := range v.obj.members {
			s.Push(AddMember(m.Name))
			appendValue(s, m.Value)
		}
		s.Push(EndObject())
	case List:
		s.Push(StartArray())
		s.Push(Reserve(len(*v.list)))
		for _, item := range *v.list {
			appendValue(s, item)
		}
		s.Push(EndArray())
	case Null:
		s.Push(NullValue())
	case String:
		s.Push(StringValue(v.str))
	case Boolean:
		s.Push(BoolValue(v.boolean))
	case Int:
		s.Push(IntValue(v.integer))
	case Float:
		s.Push(FloatValue(v.float))
	case EnumValue:
		s.Push(Enum(v.str))
	case ID:
		s.Push(IDValue(v.id))
	default:
		s.Push(OpaqueValue(v))
	}
}

// WriteValue walks v into w, expanding maps and lists into tokens.
func WriteValue(w Writer, v Value) {
	StreamOf(v).Visit(w)
}

// Materializer is a Writer which builds a Value.
type Materializer struct {
	stack  []Value
	keys   []string
	key    string
	hasKey bool
	result Value
}

func NewMaterializer() *Materializer { return &Materializer{} }

// Document returns the built value.
func (m *Materializer) Document() Value { return m.result }

func (m *Materializer) add(v Value) {
	if len(m.stack) == 0 {
		m.result = v
		return
	}
	top := m.stack[len(m.stack)-1]
	switch top.typ {
	case Map:
		if !m.hasKey {
			panic("response: object value without member name")
		}
		top.Emplace(m.key, v)
		m.hasKey = false
	case List:
		top.Append(v)
	}
}

func (m *Materializer) StartObject() {
	m.stack = append(m.stack, NewMap(0))
	m.keys = append(m.keys, m.key)
	m.hasKey = false
}

func (m *Materializer) AddMember(name string) {
	m.key = name
	m.hasKey = true
}

func (m *Materializer) EndObject() { m.pop() }

func (m *Materializer) StartArray() {
	m.stack = append(m.stack, NewList(0))
	m.keys = append(m.keys, m.key)
	m.hasKey = false
}

func (m *Materializer) EndArray() { m.pop() }

func (m *Materializer) pop() {
	done := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	m.key = m.keys[len(m.keys)-1]
	m.keys = m.keys[:len(m.keys)-1]
	m.hasKey = len(m.stack) > 0 && m.stack[len(m.stack)-1].typ == Map
	m.add(done)
}

func (m *Materializer) Reserve(count int) {
	if len(m.stack) > 0 {
		m.stack[len(m.stack)-1].Reserve(count)
	}
}

func (m *Materializer) Null()            { m.add(Value{}) }
func (m *Materializer) String(s string)  { m.add(NewString(s)) }
func (m *Materializer) Bool(b bool)      { m.add(NewBoolean(b)) }
func (m *Materializer) Int(i int)        { m.add(NewInt(i)) }
func (m *Materializer) Float(f float64)  { m.add(NewFloat(f)) }
func (m *Materializer) Enum(name string) { m.add(NewEnum(name)) }
func (m *Materializer) ID(id IDType)     { m.add(NewID(id)) }
func (m *Materializer) Value(v Value)    { m.add(v) }
