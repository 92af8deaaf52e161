package jsonresponse

import (
	"bytes"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"

	response "github.com/hanpama/gqlservice/internal/response"
)

// Pattern: Result comparison
func TestParse_Result(t *testing.T) {
	v, err := Parse([]byte(`{"s":"text","i":42,"big":3000000000,"f":1.5,"b":true,"n":null,"l":[1,"x",{"k":[]}],"e":{}}`))
	require.NoError(t, err)

	want := map[string]any{
		"s":   "text",
		"i":   42,
		"big": 3e9,
		"f":   1.5,
		"b":   true,
		"n":   nil,
		"l":   []any{1, "x", map[string]any{"k": []any{}}},
		"e":   map[string]any{},
	}
	if diff := cmp.Diff(want, v.Any()); diff != "" {
		t.Fatalf("parsed value mismatch (-want +got):\n%s", diff)
	}

	names := []string{}
	for _, m := range v.Members() {
		names = append(names, m.Name)
	}
	require.Equal(t, []string{"s", "i", "big", "f", "b", "n", "l", "e"}, names, "member order is kept")
	require.Equal(t, response.Int, v.Get("i").Type())
	require.Equal(t, response.Float, v.Get("big").Type())
	require.True(t, v.Get("s").MaybeEnum(), "strings from JSON may be read as enums")
	require.True(t, v.Get("s").MaybeID(), "strings from JSON may be read as IDs")
}

func TestParse_Scalars(t *testing.T) {
	v, err := Parse([]byte(` "alone" `))
	require.NoError(t, err)
	require.Equal(t, "alone", v.AsString())

	v, err = Parse([]byte(`null`))
	require.NoError(t, err)
	require.True(t, v.IsNull())

	v, err = Parse([]byte(`-7`))
	require.NoError(t, err)
	require.Equal(t, -7, v.AsInt())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ``},
		{name: "unterminated", input: `{"a":1`},
		{name: "trailing", input: `{} {}`},
		{name: "duplicate", input: `{"a":1,"a":2}`},
		{name: "syntax", input: `{"a":tru}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
		})
	}
}

func TestMarshal(t *testing.T) {
	v := response.NewMap(0)
	v.Emplace("s", response.NewString("a \"quoted\" text"))
	v.Emplace("i", response.NewInt(-3))
	v.Emplace("f", response.NewFloat(2.5))
	v.Emplace("b", response.NewBoolean(false))
	v.Emplace("n", response.Value{})
	v.Emplace("e", response.NewEnum("RED"))
	v.Emplace("id", response.NewID(response.IDFromBytes([]byte("fakeTaskId"))))
	list := response.NewList(0)
	list.Append(response.NewInt(1))
	list.Append(response.NewMap(0))
	list.Append(response.NewList(0))
	v.Emplace("l", list)
	v.Emplace("scalar", response.NewScalar(response.NewString("wrapped")))
	v.Emplace("proto", response.NewProto(wrapperspb.String("hi")))

	got, err := Marshal(v)
	require.NoError(t, err)

	want := `{"s":"a \"quoted\" text","i":-3,"f":2.5,"b":false,"n":null,"e":"RED",` +
		`"id":"ZmFrZVRhc2tJZA==","l":[1,{},[]],"scalar":"wrapped","proto":"hi"}`
	require.Equal(t, want, string(got))

	back, err := Parse(got)
	require.NoError(t, err)
	require.Equal(t, "a \"quoted\" text", back.Get("s").AsString())
}

func TestMarshalStream(t *testing.T) {
	s := response.NewStream(
		response.StartObject(),
		response.Reserve(2),
		response.AddMember("data"),
		response.StartArray(),
		response.IntValue(1),
		response.OpaqueValue(response.NewString("x")),
		response.EndArray(),
		response.AddMember("errors"),
		response.NullValue(),
		response.EndObject(),
	)

	got, err := MarshalStream(s)
	require.NoError(t, err)
	require.Equal(t, `{"data":[1,"x"],"errors":null}`, string(got))

	_, err = MarshalStream(response.NewStream(response.StartArray()))
	require.Error(t, err, "unterminated array")
}

func TestMarshal_InvalidFloat(t *testing.T) {
	_, err := Marshal(response.NewFloat(math.NaN()))
	require.Error(t, err)
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, response.NewString("ok")))
	require.Equal(t, `"ok"`, buf.String())
}
