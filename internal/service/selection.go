package service

import (
	"errors"
	"fmt"

	launch "github.com/hanpama/gqlservice/internal/launch"
	language "github.com/hanpama/gqlservice/internal/language"
	response "github.com/hanpama/gqlservice/internal/response"
)

// pendingField is one entry of a selection set in document order. result is
// nil until invoke has been called.
type pendingField struct {
	name     string
	location Location
	invoke   func() *launch.Future[ResolverResult]
	result   *launch.Future[ResolverResult]
}

func (f *pendingField) await() (ResolverResult, error) {
	if f.result == nil {
		f.result = f.invoke()
	}
	return f.result.Await()
}

// selectionVisitor collects the fields of one selection set, following
// fragment spreads and inline fragments, and invokes their resolvers.
type selectionVisitor struct {
	params    SelectionSetParams
	fragments FragmentMap
	variables response.Value
	object    *Object
	// deferred leaves resolvers uninvoked so the caller can run them one at
	// a time.
	deferred bool

	fragmentDefinitionDirectives *DirectiveStack
	fragmentSpreadDirectives     *DirectiveStack
	inlineFragmentDirectives     *DirectiveStack

	names  map[string]struct{}
	values []*pendingField
}

func newSelectionVisitor(params SelectionSetParams, fragments FragmentMap, variables response.Value, object *Object, size int) *selectionVisitor {
	// A selection set of an object field starts new fragment directive
	// frames; enclosing fragments stay reachable through Outer.
	return &selectionVisitor{
		params:                       params,
		fragments:                    fragments,
		variables:                    variables,
		object:                       object,
		fragmentDefinitionDirectives: params.FragmentDefinitionDirectives.Push(nil),
		fragmentSpreadDirectives:     params.FragmentSpreadDirectives.Push(nil),
		inlineFragmentDirectives:     params.InlineFragmentDirectives.Push(nil),
		names:                        make(map[string]struct{}, size),
		values:                       make([]*pendingField, 0, size),
	}
}

func (v *selectionVisitor) visit(set language.SelectionSet) error {
	for _, selection := range set {
		var err error
		switch sel := selection.(type) {
		case *language.Field:
			err = v.visitField(sel)
		case *language.FragmentSpread:
			err = v.visitFragmentSpread(sel)
		case *language.InlineFragment:
			err = v.visitInlineFragment(sel)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (v *selectionVisitor) visitField(field *language.Field) error {
	name := field.Name
	alias := field.Alias
	if alias == "" {
		alias = name
	}

	// Validation guarantees fields sharing a response name can be merged, so
	// only the first one is resolved.
	if _, seen := v.names[alias]; seen {
		return nil
	}
	v.names[alias] = struct{}{}

	location := positionLocation(field.Position)
	path := v.params.ErrorPath.Field(alias)

	resolver, ok := v.object.resolvers[name]
	if !ok {
		err := newLocatedError(fmt.Sprintf("Unknown field name: %s", name), location, path)
		v.values = append(v.values, &pendingField{
			name:     alias,
			location: location,
			result:   launch.Failed[ResolverResult](err),
		})
		return nil
	}

	directives, err := visitDirectives(field.Directives, v.variables)
	if err != nil {
		return locateError(err, location, v.params.ErrorPath)
	}
	skip, err := directives.ShouldSkip()
	if err != nil {
		return locateError(err, location, v.params.ErrorPath)
	}
	if skip {
		// Skipped fields leave no slot, so a later field may use the name.
		delete(v.names, alias)
		return nil
	}

	arguments, err := visitArguments(field.Arguments, v.variables)
	if err != nil {
		return locateError(err, location, v.params.ErrorPath)
	}

	var selection language.SelectionSet
	if len(field.SelectionSet) > 0 {
		selection = field.SelectionSet
	}

	params := ResolverParams{
		SelectionSetParams: SelectionSetParams{
			Context:                      v.params.Context,
			ResolverContext:              v.params.ResolverContext,
			State:                        v.params.State,
			OperationDirectives:          v.params.OperationDirectives,
			FragmentDefinitionDirectives: v.fragmentDefinitionDirectives,
			FragmentSpreadDirectives:     v.fragmentSpreadDirectives,
			InlineFragmentDirectives:     v.inlineFragmentDirectives,
			ErrorPath:                    path,
			Launch:                       v.params.Launch,
		},
		Field:           field,
		FieldName:       alias,
		Arguments:       arguments,
		FieldDirectives: directives,
		Selection:       selection,
		Fragments:       v.fragments,
		Variables:       v.variables,
	}

	pending := &pendingField{
		name:     alias,
		location: location,
		invoke:   func() *launch.Future[ResolverResult] { return invokeResolver(resolver, params) },
	}
	if !v.deferred {
		pending.result = pending.invoke()
	}
	v.values = append(v.values, pending)
	return nil
}

func (v *selectionVisitor) visitFragmentSpread(spread *language.FragmentSpread) error {
	fragment, ok := v.fragments[spread.Name]
	if !ok {
		return newLocatedError(fmt.Sprintf("Unknown fragment name: %s", spread.Name),
			positionLocation(spread.Position), v.params.ErrorPath)
	}
	if !v.object.MatchesType(fragment.TypeCondition) {
		return nil
	}

	directives, err := visitDirectives(spread.Directives, v.variables)
	if err != nil {
		return locateError(err, positionLocation(spread.Position), v.params.ErrorPath)
	}
	skip, err := directives.ShouldSkip()
	if err != nil {
		return locateError(err, positionLocation(spread.Position), v.params.ErrorPath)
	}
	if skip {
		return nil
	}

	outerDefinition, outerSpread := v.fragmentDefinitionDirectives, v.fragmentSpreadDirectives
	v.fragmentDefinitionDirectives = outerDefinition.Push(fragment.Directives)
	v.fragmentSpreadDirectives = outerSpread.Push(directives)
	defer func() {
		v.fragmentDefinitionDirectives, v.fragmentSpreadDirectives = outerDefinition, outerSpread
	}()

	return v.visit(fragment.SelectionSet)
}

func (v *selectionVisitor) visitInlineFragment(fragment *language.InlineFragment) error {
	directives, err := visitDirectives(fragment.Directives, v.variables)
	if err != nil {
		return locateError(err, positionLocation(fragment.Position), v.params.ErrorPath)
	}
	skip, err := directives.ShouldSkip()
	if err != nil {
		return locateError(err, positionLocation(fragment.Position), v.params.ErrorPath)
	}
	if skip {
		return nil
	}
	if fragment.TypeCondition != "" && !v.object.MatchesType(fragment.TypeCondition) {
		return nil
	}

	outer := v.inlineFragmentDirectives
	v.inlineFragmentDirectives = outer.Push(directives)
	defer func() { v.inlineFragmentDirectives = outer }()

	return v.visit(fragment.SelectionSet)
}

// invokeResolver calls the resolver, turning a panic into a failed result.
func invokeResolver(resolver Resolver, params ResolverParams) (result *launch.Future[ResolverResult]) {
	defer func() {
		if r := recover(); r != nil {
			var err error
			switch v := r.(type) {
			case *SchemaError:
				err = &SchemaError{Errors: v.locate(params.Location(), params.ErrorPath)}
			case error:
				err = &SchemaError{Errors: unknownError(params.FieldName, v, params.Location(), params.ErrorPath)}
			default:
				err = &SchemaError{Errors: unknownError(params.FieldName, fmt.Errorf("%v", v), params.Location(), params.ErrorPath)}
			}
			result = launch.Failed[ResolverResult](err)
		}
	}()
	result = resolver(params)
	if result == nil {
		result = launch.Ready(ResolverResult{Data: response.NewStream(response.NullValue())})
	}
	return result
}

// locateError returns err as a SchemaError whose errors carry a location and
// path.
func locateError(err error, location Location, path *FieldPath) error {
	var serr *SchemaError
	if errors.As(err, &serr) {
		return &SchemaError{Errors: serr.locate(location, path)}
	}
	return newLocatedError(err.Error(), location, path)
}
