package introspection

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	launch "github.com/hanpama/gqlservice/internal/launch"
	language "github.com/hanpama/gqlservice/internal/language"
	schema "github.com/hanpama/gqlservice/internal/schema"
	service "github.com/hanpama/gqlservice/internal/service"
)

const librarySDL = `
"Things to read"
type Query {
  "Look one up"
  book(id: ID!): Book
  books: [Book!]!
  old: String @deprecated(reason: "use books")
}

interface Node {
  id: ID!
}

type Book implements Node {
  id: ID!
  title: String
  kind: Kind
}

enum Kind {
  PAPER
  EBOOK @deprecated
}

input Filter {
  kind: Kind = PAPER
}

union Result = Book
`

func newLibrary(t *testing.T, configure func(*schema.Schema)) *service.Request {
	t.Helper()
	sch, err := schema.BuildFromSDL(librarySDL)
	require.NoError(t, err)
	if configure != nil {
		configure(sch)
	}
	query := service.NewObject([]string{"Query"}, service.ResolverMap{
		"old": func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
			return service.ResolveString(p, launch.Ready("old"))
		},
	})
	return service.NewRequest(service.Operations{Query: query}, sch, service.WithIntrospection(MetaFields))
}

func introspect(t *testing.T, r *service.Request, query string) map[string]any {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	res := r.Resolve(context.Background(), service.RequestResolveParams{Query: doc})
	require.Empty(t, res.Errors)
	data, ok := res.Data.Value().Any().(map[string]any)
	require.True(t, ok)
	return data
}

// Pattern: Result comparison
func TestIntrospection_Type_Result(t *testing.T) {
	r := newLibrary(t, nil)

	got := introspect(t, r, `{
		__type(name: "Book") {
			__typename kind name description
			interfaces { name }
			fields { name type { kind name ofType { kind name } } }
			enumValues { name }
		}
	}`)

	want := map[string]any{"__type": map[string]any{
		"__typename":  "__Type",
		"kind":        "OBJECT",
		"name":        "Book",
		"description": nil,
		"interfaces":  []any{map[string]any{"name": "Node"}},
		"fields": []any{
			map[string]any{"name": "id", "type": map[string]any{
				"kind": "NON_NULL", "name": nil,
				"ofType": map[string]any{"kind": "SCALAR", "name": "ID"},
			}},
			map[string]any{"name": "title", "type": map[string]any{
				"kind": "SCALAR", "name": "String", "ofType": nil,
			}},
			map[string]any{"name": "kind", "type": map[string]any{
				"kind": "ENUM", "name": "Kind", "ofType": nil,
			}},
		},
		"enumValues": nil,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("__type mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestIntrospection_Deprecation_Result(t *testing.T) {
	r := newLibrary(t, nil)

	got := introspect(t, r, `{
		query: __type(name: "Query") {
			description
			fields { name isDeprecated }
			all: fields(includeDeprecated: true) { name description deprecationReason }
		}
		kind: __type(name: "Kind") {
			enumValues { name }
			all: enumValues(includeDeprecated: true) { name isDeprecated }
		}
	}`)

	want := map[string]any{
		"query": map[string]any{
			"description": "Things to read",
			"fields": []any{
				map[string]any{"name": "book", "isDeprecated": false},
				map[string]any{"name": "books", "isDeprecated": false},
			},
			"all": []any{
				map[string]any{"name": "book", "description": "Look one up", "deprecationReason": nil},
				map[string]any{"name": "books", "description": nil, "deprecationReason": nil},
				map[string]any{"name": "old", "description": nil, "deprecationReason": "use books"},
			},
		},
		"kind": map[string]any{
			"enumValues": []any{map[string]any{"name": "PAPER"}},
			"all": []any{
				map[string]any{"name": "PAPER", "isDeprecated": false},
				map[string]any{"name": "EBOOK", "isDeprecated": true},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("deprecation mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestIntrospection_AbstractAndInput_Result(t *testing.T) {
	r := newLibrary(t, nil)

	got := introspect(t, r, `{
		node: __type(name: "Node") { kind possibleTypes { name } fields { name } }
		result: __type(name: "Result") { kind possibleTypes { name } fields { name } }
		filter: __type(name: "Filter") { kind isOneOf inputFields { name defaultValue type { name } } }
		missing: __type(name: "Nope") { name }
	}`)

	want := map[string]any{
		"node": map[string]any{
			"kind":          "INTERFACE",
			"possibleTypes": []any{map[string]any{"name": "Book"}},
			"fields":        []any{map[string]any{"name": "id"}},
		},
		"result": map[string]any{
			"kind":          "UNION",
			"possibleTypes": []any{map[string]any{"name": "Book"}},
			"fields":        nil,
		},
		"filter": map[string]any{
			"kind":    "INPUT_OBJECT",
			"isOneOf": false,
			"inputFields": []any{
				map[string]any{"name": "kind", "defaultValue": "PAPER", "type": map[string]any{"name": "Kind"}},
			},
		},
		"missing": nil,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
}

func TestIntrospection_Schema(t *testing.T) {
	r := newLibrary(t, nil)

	got := introspect(t, r, `{
		__schema {
			description
			queryType { name }
			mutationType { name }
			subscriptionType { name }
			types { name }
			directives { name locations args { name type { kind ofType { name } } } }
		}
	}`)

	sch := got["__schema"].(map[string]any)
	require.Nil(t, sch["description"])
	require.Equal(t, map[string]any{"name": "Query"}, sch["queryType"])
	require.Nil(t, sch["mutationType"])
	require.Nil(t, sch["subscriptionType"])

	var typeNames []string
	for _, typ := range sch["types"].([]any) {
		typeNames = append(typeNames, typ.(map[string]any)["name"].(string))
	}
	require.Subset(t, typeNames, []string{"Book", "Filter", "Kind", "Node", "Query", "Result", "String", "__Schema", "__Type"})
	require.IsIncreasing(t, typeNames)

	var skip map[string]any
	for _, d := range sch["directives"].([]any) {
		if d.(map[string]any)["name"] == "skip" {
			skip = d.(map[string]any)
		}
	}
	require.NotNil(t, skip, "skip directive must be listed")
	want := map[string]any{
		"name":      "skip",
		"locations": []any{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"},
		"args": []any{map[string]any{"name": "if", "type": map[string]any{
			"kind": "NON_NULL", "ofType": map[string]any{"name": "Boolean"},
		}}},
	}
	if diff := cmp.Diff(want, skip); diff != "" {
		t.Fatalf("skip directive mismatch (-want +got):\n%s", diff)
	}
}

func TestIntrospection_Disabled(t *testing.T) {
	r := newLibrary(t, func(s *schema.Schema) { s.DisableIntrospection() })
	doc, err := language.ParseQuery(`{ old __schema { queryType { name } } }`)
	require.NoError(t, err)

	res := r.Resolve(context.Background(), service.RequestResolveParams{Query: doc})

	require.Len(t, res.Errors, 1)
	require.Equal(t, "Unknown field name: __schema", res.Errors[0].Message)
	want := map[string]any{"old": "old", "__schema": nil}
	if diff := cmp.Diff(want, res.Data.Value().Any()); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}
