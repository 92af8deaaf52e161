package response

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestStreamMaterialize(t *testing.T) {
	s := NewStream(
		StartObject(),
		AddMember("name"),
		StringValue("Luke"),
		AddMember("friends"),
		StartArray(),
		Reserve(2),
		StartObject(),
		AddMember("id"),
		IDValue(IDFromString("1000")),
		EndObject(),
		NullValue(),
		EndArray(),
		AddMember("episode"),
		Enum("JEDI"),
		AddMember("height"),
		FloatValue(1.72),
		AddMember("mass"),
		IntValue(77),
		AddMember("human"),
		BoolValue(true),
		EndObject(),
	)

	want := NewMap(0)
	want.Emplace("name", NewString("Luke"))
	friends := NewList(0)
	friend := NewMap(0)
	friend.Emplace("id", NewID(IDFromString("1000")))
	friends.Append(friend)
	friends.Append(Value{})
	want.Emplace("friends", friends)
	want.Emplace("episode", NewEnum("JEDI"))
	want.Emplace("height", NewFloat(1.72))
	want.Emplace("mass", NewInt(77))
	want.Emplace("human", NewBoolean(true))

	if diff := cmp.Diff(want, s.Value()); diff != "" {
		t.Fatalf("materialized value mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamAppendAndOpaque(t *testing.T) {
	var s Stream
	s.Push(StartObject())
	s.Push(AddMember("a"))

	var child Stream
	child.Push(OpaqueValue(NewScalar(NewString("custom"))))
	s.Append(child)
	s.Push(EndObject())

	got := s.Value()
	require.Equal(t, Scalar, got.Get("a").Type())
	require.Equal(t, "custom", got.Get("a").AsScalar().AsString())
}

func TestStreamOfRoundTrip(t *testing.T) {
	v := NewMap(0)
	list := NewList(0)
	list.Append(NewInt(1))
	list.Append(NewString("two"))
	v.Emplace("list", list)
	v.Emplace("nested", NewMap(0))

	if diff := cmp.Diff(v, StreamOf(v).Value()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyStreamIsNull(t *testing.T) {
	var s Stream
	require.True(t, s.Empty())
	require.True(t, s.Value().IsNull())
}

func TestStreamAppendDoesNotShareTokens(t *testing.T) {
	other := NewStream(make([]Token, 1, 4)...)
	other.tokens[0] = IntValue(1)

	var s Stream
	s.Append(other)
	s.Push(IntValue(2))
	other.Push(IntValue(3))

	require.Equal(t, []Token{IntValue(1), IntValue(2)}, s.Tokens())
	require.Equal(t, []Token{IntValue(1), IntValue(3)}, other.Tokens())
}
