package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	launch "github.com/hanpama/gqlservice/internal/launch"
	language "github.com/hanpama/gqlservice/internal/language"
	response "github.com/hanpama/gqlservice/internal/response"
	schema "github.com/hanpama/gqlservice/internal/schema"
)

const testSDL = `
type Query {
  a: String
  b: String
  c: String
  greet(name: String = "world"): String
  items: [Item]
  node(id: ID!): Item
}

type Item {
  name: String
  rank: Int
}

type Mutation {
  first: Int
  second: Int
}

type Subscription {
  ticks(channel: String): Int
  other: Int
}
`

// mustParseQuery parses a GraphQL query and fails the test on error.
func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

func mustSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	return s
}

func mustValue(t *testing.T, v any) response.Value {
	t.Helper()
	value, err := response.FromAny(v)
	require.NoError(t, err)
	return value
}

// Call represents a single resolver invocation.
type Call struct {
	Field   string
	Path    string
	Args    map[string]any
	Context ResolverContext
}

type recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *recorder) add(p ResolverParams) {
	if r == nil {
		return
	}
	args, _ := p.Arguments.Any().(map[string]any)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{
		Field:   p.Field.Name,
		Path:    p.ErrorPath.String(),
		Args:    args,
		Context: p.ResolverContext,
	})
}

func (r *recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

func stringResolver(rec *recorder, value string) Resolver {
	return func(p ResolverParams) *launch.Future[ResolverResult] {
		rec.add(p)
		return ResolveString(p, launch.Ready(value))
	}
}

func intResolver(rec *recorder, value int) Resolver {
	return func(p ResolverParams) *launch.Future[ResolverResult] {
		rec.add(p)
		return ResolveInt(p, launch.Ready(value))
	}
}

func errorResolver(err error) Resolver {
	return func(p ResolverParams) *launch.Future[ResolverResult] {
		return launch.Failed[ResolverResult](err)
	}
}

type item struct {
	name string
	rank int
}

func itemObject(rec *recorder, it item) *Object {
	return NewObject([]string{"Item"}, ResolverMap{
		"name": stringResolver(rec, it.name),
		"rank": intResolver(rec, it.rank),
	})
}

// resolveSelection resolves the first operation of query on obj directly,
// without validation.
func resolveSelection(t *testing.T, obj *Object, query string, variables response.Value, policy launch.Policy) ResolverResult {
	t.Helper()
	doc := mustParseQuery(t, query)
	fragments, err := collectFragments(doc, variables)
	require.NoError(t, err)
	res, err := obj.Resolve(SelectionSetParams{
		Context: context.Background(),
		Launch:  policy,
	}, doc.Operations[0].SelectionSet, fragments, variables).Await()
	require.NoError(t, err)
	return res
}

func memberNames(v response.Value) []string {
	var names []string
	for _, m := range v.Members() {
		names = append(names, m.Name)
	}
	return names
}
