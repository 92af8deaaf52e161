package response

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestMapMembers(t *testing.T) {
	m := NewMap(0)
	require.True(t, m.Emplace("b", NewInt(1)))
	require.True(t, m.Emplace("a", NewString("x")))
	require.False(t, m.Emplace("b", NewInt(2)), "duplicate member must be rejected")

	var names []string
	for _, member := range m.Members() {
		names = append(names, member.Name)
	}
	if diff := cmp.Diff([]string{"b", "a"}, names); diff != "" {
		t.Fatalf("member order mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 1, m.Get("b").AsInt())
	require.True(t, m.Get("missing").IsNull())
	_, ok := m.Find("missing")
	require.False(t, ok)
}

func TestCopiesShareStorage(t *testing.T) {
	m := NewMap(0)
	alias := m
	alias.Emplace("x", NewBoolean(true))
	require.Equal(t, 1, m.Len())

	clone := m.Clone()
	clone.Emplace("y", Value{})
	require.Equal(t, 1, m.Len())
	require.Equal(t, 2, clone.Len())
}

func TestListIndex(t *testing.T) {
	l := NewList(2)
	l.Append(NewInt(1))
	l.Append(NewFloat(2.5))
	require.Equal(t, 2, l.Len())
	require.Equal(t, 2.5, l.Index(1).AsFloat())
	require.Panics(t, func() { l.Index(2) })
}

func TestWrongVariantPanics(t *testing.T) {
	require.Panics(t, func() { NewInt(1).AsString() })
	require.Panics(t, func() { NewString("x").Members() })
	require.Panics(t, func() { Value{}.Len() })
	require.Equal(t, 3.0, NewInt(3).AsFloat(), "Int reads as Float")
}

func TestMaybeEnumAndID(t *testing.T) {
	plain := NewString("RED")
	require.False(t, plain.MaybeEnum())
	require.False(t, plain.MaybeID())

	input := NewString("RED").FromInput()
	require.True(t, input.MaybeEnum())
	require.Equal(t, "RED", input.AsEnum())
	require.True(t, input.Equal(NewEnum("RED")))

	fromJSON := NewString("ZmFrZUlk").FromJSON()
	require.True(t, fromJSON.MaybeID())
	require.Equal(t, []byte("fakeId"), fromJSON.AsID().Bytes())
	require.True(t, fromJSON.Equal(NewID(IDFromBytes([]byte("fakeId")))))
}

func TestIDText(t *testing.T) {
	bytesID := IDFromBytes([]byte{0x01, 0x02})
	require.Equal(t, "AQI=", bytesID.String())
	require.True(t, IDFromText("AQI=").Equal(bytesID))

	opaque := IDFromText("not base64!")
	require.False(t, opaque.IsBytes())
	require.Equal(t, "not base64!", opaque.String())
}

func TestCloneIsDeep(t *testing.T) {
	inner := NewList(0)
	inner.Append(NewString("a"))
	outer := NewMap(0)
	outer.Emplace("inner", inner)
	outer.Emplace("scalar", NewScalar(NewInt(7)))

	clone := outer.Clone()
	if diff := cmp.Diff(outer, clone); diff != "" {
		t.Fatalf("clone mismatch (-want +got):\n%s", diff)
	}

	inner.Append(NewString("b"))
	require.Equal(t, 1, clone.Get("inner").Len())
	require.False(t, outer.Equal(clone))
}

func TestProtoCustomValue(t *testing.T) {
	a := NewProto(wrapperspb.String("hello"))
	b := NewProto(wrapperspb.String("hello"))
	c := NewProto(wrapperspb.String("bye"))
	require.Equal(t, Custom, a.Type())
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))

	clone := a.Clone()
	require.True(t, clone.Equal(a))
	require.NotSame(t, a.AsCustom().(ProtoValue).Message, clone.AsCustom().(ProtoValue).Message)

	out, err := a.AsCustom().(ProtoValue).MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"hello"`, string(out))
}

func TestFromAny(t *testing.T) {
	got, err := FromAny(map[string]any{
		"b": []any{1, 2.5, nil},
		"a": "text",
		"c": true,
	})
	require.NoError(t, err)

	want := NewMap(3)
	want.Emplace("a", NewString("text"))
	list := NewList(3)
	list.Append(NewInt(1))
	list.Append(NewFloat(2.5))
	list.Append(Value{})
	want.Emplace("b", list)
	want.Emplace("c", NewBoolean(true))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("FromAny mismatch (-want +got):\n%s", diff)
	}
	require.True(t, got.Get("a").MaybeEnum(), "strings from Go data are JSON-sourced")

	_, err = FromAny(struct{}{})
	require.Error(t, err)

	if diff := cmp.Diff(map[string]any{"a": "text", "b": []any{1, 2.5, nil}, "c": true}, got.Any()); diff != "" {
		t.Fatalf("Any mismatch (-want +got):\n%s", diff)
	}
}
