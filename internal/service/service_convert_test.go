package service

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	launch "github.com/hanpama/gqlservice/internal/launch"
	response "github.com/hanpama/gqlservice/internal/response"
)

func TestArgumentConverters(t *testing.T) {
	args := mustValue(t, map[string]any{
		"count": 3,
		"ratio": 2,
		"tags":  []any{"a", "b"},
		"maybe": nil,
		"role":  "ADMIN",
		"id":    "user-1",
	})

	count, err := RequireArgument(args, "count", ConvertInt)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	ratio, err := RequireArgument(args, "ratio", ConvertFloat)
	require.NoError(t, err)
	require.Equal(t, 2.0, ratio)

	tags, err := RequireArgument(args, "tags", ListOf(ConvertString))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, tags)

	maybe, err := RequireArgument(args, "maybe", NullableOf(ConvertInt))
	require.NoError(t, err)
	require.Nil(t, maybe)

	role, err := RequireArgument(args, "role", ConvertEnum("Role", "ADMIN", "MEMBER"))
	require.NoError(t, err)
	require.Equal(t, "ADMIN", role)

	id, err := RequireArgument(args, "id", ConvertID)
	require.NoError(t, err)
	require.Equal(t, "user-1", id.String())

	_, found, err := FindArgument(args, "absent", ConvertInt)
	require.NoError(t, err)
	require.False(t, found)
}

func TestArgumentConverters_Errors(t *testing.T) {
	args := mustValue(t, map[string]any{
		"count": "three",
		"tags":  "a",
		"role":  "OWNER",
	})
	tests := []struct {
		name string
		run  func() error
		want string
	}{
		{
			name: "int",
			run: func() error {
				_, err := RequireArgument(args, "count", ConvertInt)
				return err
			},
			want: "Invalid argument: count error: not an integer",
		},
		{
			name: "list",
			run: func() error {
				_, err := RequireArgument(args, "tags", ListOf(ConvertString))
				return err
			},
			want: "Invalid argument: tags error: not a list",
		},
		{
			name: "enum",
			run: func() error {
				_, err := RequireArgument(args, "role", ConvertEnum("Role", "ADMIN"))
				return err
			},
			want: "Invalid argument: role error: not a valid Role value",
		},
		{
			name: "required absent",
			run: func() error {
				_, err := RequireArgument(args, "missing", ConvertBool)
				return err
			},
			want: "Invalid argument: missing error: not a boolean",
		},
		{
			name: "found but invalid",
			run: func() error {
				_, _, err := FindArgument(args, "count", ConvertFloat)
				return err
			},
			want: "Invalid argument: count error: not a float",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			var serr *SchemaError
			require.ErrorAs(t, err, &serr)
			require.EqualError(t, err, tt.want)
		})
	}
}

// Pattern: Result comparison
func TestResultConverters_Result(t *testing.T) {
	obj := NewObject([]string{"Query"}, ResolverMap{
		"float": func(p ResolverParams) *launch.Future[ResolverResult] {
			return ResolveFloat(p, launch.Ready(1.5))
		},
		"flag": func(p ResolverParams) *launch.Future[ResolverResult] {
			return ResolveBool(p, launch.Ready(true))
		},
		"id": func(p ResolverParams) *launch.Future[ResolverResult] {
			return ResolveID(p, launch.Ready(response.IDFromString("u1")))
		},
		"role": func(p ResolverParams) *launch.Future[ResolverResult] {
			return ResolveEnum("Role", "ADMIN", "MEMBER")(p, launch.Ready("MEMBER"))
		},
		"badRole": func(p ResolverParams) *launch.Future[ResolverResult] {
			return ResolveEnum("Role", "ADMIN")(p, launch.Ready("OWNER"))
		},
		"json": func(p ResolverParams) *launch.Future[ResolverResult] {
			return ResolveScalar(p, launch.Ready(mustValue(t, map[string]any{"k": "v"})))
		},
		"checked": func(p ResolverParams) *launch.Future[ResolverResult] {
			return ResolveChecked("Int")(p, launch.Ready(response.NewString("seven")))
		},
		"names": func(p ResolverParams) *launch.Future[ResolverResult] {
			one := "one"
			return ResolveList(ResolveNullable(ResolveString))(p, launch.Ready([]*string{&one, nil}))
		},
		"leafWithSelection": func(p ResolverParams) *launch.Future[ResolverResult] {
			return ResolveString(p, launch.Ready("x"))
		},
		"objectWithoutSelection": func(p ResolverParams) *launch.Future[ResolverResult] {
			return ResolveObject(p, launch.Ready(itemObject(nil, item{name: "x"})))
		},
	})

	res := resolveSelection(t, obj, `{
		float flag id role badRole json checked names
		leafWithSelection { x }
		objectWithoutSelection
	}`, response.Value{}, nil)

	wantData := map[string]any{
		"float":                  1.5,
		"flag":                   true,
		"id":                     "u1",
		"role":                   "MEMBER",
		"badRole":                nil,
		"json":                   map[string]any{"k": "v"},
		"checked":                nil,
		"names":                  []any{"one", nil},
		"leafWithSelection":      nil,
		"objectWithoutSelection": nil,
	}
	if diff := cmp.Diff(wantData, res.Data.Value().Any()); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}

	var messages []string
	for _, e := range res.Errors {
		messages = append(messages, e.Message)
	}
	wantMessages := []string{
		"not a valid Role value",
		"not a valid Int value",
		"Field may not have sub-fields name: leafWithSelection",
		"Field must have sub-fields name: objectWithoutSelection",
	}
	if diff := cmp.Diff(wantMessages, messages); diff != "" {
		t.Fatalf("error messages mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateScalar(t *testing.T) {
	require.NoError(t, ValidateScalar("Float", response.NewInt(1)))
	require.NoError(t, ValidateScalar("ID", response.NewString("x").FromJSON()))
	require.NoError(t, ValidateScalar("DateTime", response.NewString("2024-01-01")))
	require.EqualError(t, ValidateScalar("Boolean", response.NewInt(1)), "not a valid Boolean value")
	require.EqualError(t, ValidateScalar("ID", response.NewString("x")), "not a valid ID value")
}
