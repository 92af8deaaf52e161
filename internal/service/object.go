package service

import (
	"errors"

	launch "github.com/hanpama/gqlservice/internal/launch"
	language "github.com/hanpama/gqlservice/internal/language"
	response "github.com/hanpama/gqlservice/internal/response"
)

// Object resolves selection sets against a map of field resolvers. It stands
// for one concrete type together with the interfaces and unions it belongs to.
type Object struct {
	typeNames map[string]struct{}
	typeName  string
	resolvers ResolverMap

	beginSelectionSet func(SelectionSetParams)
	endSelectionSet   func(SelectionSetParams)
}

// ObjectOption configures an Object.
type ObjectOption func(*Object)

// WithBeginSelectionSet registers a hook run before the fields of each
// selection set are visited.
func WithBeginSelectionSet(fn func(SelectionSetParams)) ObjectOption {
	return func(o *Object) { o.beginSelectionSet = fn }
}

// WithEndSelectionSet registers a hook run after every field of a selection
// set has been started.
func WithEndSelectionSet(fn func(SelectionSetParams)) ObjectOption {
	return func(o *Object) { o.endSelectionSet = fn }
}

// NewObject returns an Object matching typeNames. The first name is the
// concrete type, reported by the __typename field unless resolvers already
// answer it.
func NewObject(typeNames []string, resolvers ResolverMap, opts ...ObjectOption) *Object {
	o := &Object{
		typeNames: make(map[string]struct{}, len(typeNames)),
		resolvers: make(ResolverMap, len(resolvers)+1),
	}
	for _, name := range typeNames {
		o.typeNames[name] = struct{}{}
	}
	if len(typeNames) > 0 {
		o.typeName = typeNames[0]
		o.resolvers["__typename"] = typenameResolver(o.typeName)
	}
	for name, resolver := range resolvers {
		o.resolvers[name] = resolver
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func typenameResolver(name string) Resolver {
	return func(params ResolverParams) *launch.Future[ResolverResult] {
		return ResolveString(params, launch.Ready(name))
	}
}

// TypeName returns the concrete type name.
func (o *Object) TypeName() string { return o.typeName }

// MatchesType reports whether a fragment with the given type condition
// applies to this object.
func (o *Object) MatchesType(typeName string) bool {
	_, ok := o.typeNames[typeName]
	return ok
}

// Resolver returns the resolver registered for a field.
func (o *Object) Resolver(name string) (Resolver, bool) {
	r, ok := o.resolvers[name]
	return r, ok
}

// Resolve visits the selection set, starts every field resolver and returns
// a Future of the Map of results in document order.
//
// At the root of a mutation each resolver is started only after the previous
// field has completed. Everywhere else all resolvers are started before any
// result is awaited.
func (o *Object) Resolve(params SelectionSetParams, selection language.SelectionSet, fragments FragmentMap, variables response.Value) *launch.Future[ResolverResult] {
	if o.beginSelectionSet != nil {
		o.beginSelectionSet(params)
	}

	visitor := newSelectionVisitor(params, fragments, variables, o, len(selection))
	visitor.deferred = params.ResolverContext == Mutation && params.ErrorPath == nil
	err := visitor.visit(selection)

	if o.endSelectionSet != nil {
		o.endSelectionSet(params)
	}
	if err != nil {
		return launch.Failed[ResolverResult](err)
	}

	children := visitor.values
	parent := params.ErrorPath
	return launch.Start(params.Launch, func() (ResolverResult, error) {
		var result ResolverResult
		data := response.NewStream(response.StartObject(), response.Reserve(len(children)))
		for _, child := range children {
			value, err := child.await()
			data.Push(response.AddMember(child.name))
			if err != nil {
				result.Errors = append(result.Errors, fieldErrors(child.name, child.location, parent.Field(child.name), err)...)
				data.Push(response.NullValue())
				continue
			}
			if value.Data.Empty() {
				data.Push(response.NullValue())
			} else {
				data.Append(value.Data)
			}
			result.Errors = append(result.Errors, value.Errors...)
		}
		data.Push(response.EndObject())
		result.Data = data
		return result, nil
	})
}

// fieldErrors converts the failure of a field into located errors. Schema
// errors keep their messages; anything else is reported as unknown.
func fieldErrors(name string, location Location, path *FieldPath, err error) []GraphQLError {
	var serr *SchemaError
	if errors.As(err, &serr) {
		return serr.locate(location, path)
	}
	var perr *launch.PanicError
	if errors.As(err, &perr) {
		if inner, ok := perr.Value.(*SchemaError); ok {
			return inner.locate(location, path)
		}
	}
	return unknownError(name, err, location, path)
}

// StitchObject returns an Object answering the fields of both o and added.
// Fields of o win over fields of added with the same name. Resolvers in meta
// override both and are used for introspection fields.
func (o *Object) StitchObject(added *Object, meta ResolverMap) *Object {
	out := &Object{
		typeNames: make(map[string]struct{}, len(o.typeNames)+len(added.typeNames)),
		typeName:  o.typeName,
		resolvers: make(ResolverMap, len(o.resolvers)+len(added.resolvers)+len(meta)),
	}
	for name := range o.typeNames {
		out.typeNames[name] = struct{}{}
	}
	for name := range added.typeNames {
		out.typeNames[name] = struct{}{}
	}
	if out.typeName == "" {
		out.typeName = added.typeName
	}

	for name, resolver := range o.resolvers {
		out.resolvers[name] = resolver
	}
	addedAny := false
	for name, resolver := range added.resolvers {
		if _, ok := out.resolvers[name]; ok {
			continue
		}
		out.resolvers[name] = resolver
		addedAny = true
	}
	for name, resolver := range meta {
		out.resolvers[name] = resolver
	}

	out.beginSelectionSet = o.beginSelectionSet
	out.endSelectionSet = o.endSelectionSet
	if addedAny {
		out.beginSelectionSet = chainHooks(o.beginSelectionSet, added.beginSelectionSet)
		out.endSelectionSet = chainHooks(o.endSelectionSet, added.endSelectionSet)
	}
	return out
}

func chainHooks(first, second func(SelectionSetParams)) func(SelectionSetParams) {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func(params SelectionSetParams) {
		first(params)
		second(params)
	}
}
