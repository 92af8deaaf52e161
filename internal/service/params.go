package service

import (
	"context"

	launch "github.com/hanpama/gqlservice/internal/launch"
	language "github.com/hanpama/gqlservice/internal/language"
	response "github.com/hanpama/gqlservice/internal/response"
)

// ResolverContext tells a resolver why it is being called.
type ResolverContext int

const (
	// Query resolves a query operation.
	Query ResolverContext = iota
	// Mutation resolves a mutation operation.
	Mutation
	// Subscription resolves an event delivered to a subscription.
	Subscription
	// NotifySubscribe runs once when a subscription is registered.
	NotifySubscribe
	// NotifyUnsubscribe runs once when a subscription is removed.
	NotifyUnsubscribe
)

func (c ResolverContext) String() string {
	switch c {
	case Query:
		return "query"
	case Mutation:
		return "mutation"
	case Subscription:
		return "subscription"
	case NotifySubscribe:
		return "subscribe"
	case NotifyUnsubscribe:
		return "unsubscribe"
	default:
		return "unknown"
	}
}

// SelectionSetParams is the state shared by every field of one selection set.
type SelectionSetParams struct {
	Context         context.Context
	ResolverContext ResolverContext

	// State is supplied by the caller and passed through untouched.
	State any

	OperationDirectives          Directives
	FragmentDefinitionDirectives *DirectiveStack
	FragmentSpreadDirectives     *DirectiveStack
	InlineFragmentDirectives     *DirectiveStack

	// ErrorPath is the path of the field owning this selection set, nil at
	// the operation root.
	ErrorPath *FieldPath

	// Launch schedules resolver work. Nil runs everything inline.
	Launch launch.Policy
}

// ResolverParams is passed to a single field resolver.
type ResolverParams struct {
	SelectionSetParams

	Field *language.Field
	// FieldName is the response name: the alias when present.
	FieldName       string
	Arguments       response.Value
	FieldDirectives Directives
	// Selection is the sub-selection of the field, nil for leaf fields.
	Selection language.SelectionSet
	Fragments FragmentMap
	Variables response.Value
}

// Location returns the position of the field in the document.
func (p ResolverParams) Location() Location {
	if p.Field == nil {
		return Location{}
	}
	return positionLocation(p.Field.Position)
}

// ResolverResult is the data stream and errors produced for one field or
// selection set.
type ResolverResult struct {
	Data   response.Stream
	Errors []GraphQLError
}

// Stream renders the result as a response document: a Map holding data and,
// when there are any, errors. Empty Data leaves out the data entry, which is
// how requests failing before execution are reported.
func (r ResolverResult) Stream() response.Stream {
	s := response.NewStream(response.StartObject())
	if !r.Data.Empty() {
		s.Push(response.AddMember("data"))
		s.Append(r.Data)
	}
	if len(r.Errors) > 0 {
		s.Push(response.AddMember("errors"))
		s.Append(ErrorStream(r.Errors))
	}
	s.Push(response.EndObject())
	return s
}

// Document materializes the response document.
func (r ResolverResult) Document() response.Value {
	return r.Stream().Value()
}

// Resolver resolves one field.
type Resolver func(params ResolverParams) *launch.Future[ResolverResult]

// ResolverMap maps field names to resolvers.
type ResolverMap map[string]Resolver

// Fragment is an evaluated fragment definition.
type Fragment struct {
	Name          string
	TypeCondition string
	Directives    Directives
	SelectionSet  language.SelectionSet
}

// FragmentMap maps fragment names to definitions.
type FragmentMap map[string]*Fragment

// collectFragments evaluates every fragment definition in doc.
func collectFragments(doc *language.QueryDocument, variables response.Value) (FragmentMap, error) {
	fragments := make(FragmentMap, len(doc.Fragments))
	for _, def := range doc.Fragments {
		directives, err := visitDirectives(def.Directives, variables)
		if err != nil {
			return nil, err
		}
		fragments[def.Name] = &Fragment{
			Name:          def.Name,
			TypeCondition: def.TypeCondition,
			Directives:    directives,
			SelectionSet:  def.SelectionSet,
		}
	}
	return fragments, nil
}
