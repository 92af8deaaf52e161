package service

import (
	"fmt"
	"strconv"

	language "github.com/hanpama/gqlservice/internal/language"
	response "github.com/hanpama/gqlservice/internal/response"
)

// Directive is an evaluated directive: its name and a Map of argument values.
type Directive struct {
	Name      string
	Arguments response.Value
}

// Directives keeps directives in document order. Names may repeat.
type Directives []Directive

// ForName returns the first directive with the given name.
func (d Directives) ForName(name string) (Directive, bool) {
	for _, dir := range d {
		if dir.Name == name {
			return dir, true
		}
	}
	return Directive{}, false
}

// Equal compares names and argument values in order.
func (d Directives) Equal(other Directives) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i].Name != other[i].Name || !d[i].Arguments.Equal(other[i].Arguments) {
			return false
		}
	}
	return true
}

// DirectiveStack is a persistent stack of directive lists, innermost first.
// Resolvers walk Outer to inspect the directives of enclosing fragments.
type DirectiveStack struct {
	Directives Directives
	Outer      *DirectiveStack
}

// Push returns a new stack with d on top of s.
func (s *DirectiveStack) Push(d Directives) *DirectiveStack {
	return &DirectiveStack{Directives: d, Outer: s}
}

// All returns the directive lists from innermost to outermost.
func (s *DirectiveStack) All() []Directives {
	var out []Directives
	for cur := s; cur != nil; cur = cur.Outer {
		out = append(out, cur.Directives)
	}
	return out
}

// visitDirectives evaluates a directive list against the variables.
func visitDirectives(list language.DirectiveList, variables response.Value) (Directives, error) {
	if len(list) == 0 {
		return nil, nil
	}
	out := make(Directives, 0, len(list))
	for _, d := range list {
		if d == nil || d.Name == "" {
			continue
		}
		args, err := visitArguments(d.Arguments, variables)
		if err != nil {
			return nil, err
		}
		out = append(out, Directive{Name: d.Name, Arguments: args})
	}
	return out, nil
}

// visitArguments evaluates an argument list into a Map. Arguments absent from
// the document are absent from the Map.
func visitArguments(list language.ArgumentList, variables response.Value) (response.Value, error) {
	args := response.NewMap(len(list))
	for _, arg := range list {
		v, err := valueFromAST(arg.Value, variables)
		if err != nil {
			return response.Value{}, err
		}
		args.Emplace(arg.Name, v)
	}
	return args, nil
}

// valueFromAST evaluates a literal, resolving variable references. Strings
// are marked as input so converters may read them as enums or IDs.
func valueFromAST(value *language.Value, variables response.Value) (response.Value, error) {
	if value == nil {
		return response.Value{}, nil
	}
	switch value.Kind {
	case language.Variable:
		v, ok := lookupVariable(variables, value.Raw)
		if !ok {
			return response.Value{}, newLocatedError(
				fmt.Sprintf("Unknown variable name: %s", value.Raw),
				positionLocation(value.Position), nil)
		}
		return v.Clone(), nil
	case language.IntValue:
		i, err := strconv.Atoi(value.Raw)
		if err != nil {
			// Out of range literals degrade to a Float like the JSON codec.
			f, ferr := strconv.ParseFloat(value.Raw, 64)
			if ferr != nil {
				return response.Value{}, err
			}
			return response.NewFloat(f), nil
		}
		return response.NewInt(i), nil
	case language.FloatValue:
		f, err := strconv.ParseFloat(value.Raw, 64)
		if err != nil {
			return response.Value{}, err
		}
		return response.NewFloat(f), nil
	case language.StringValue, language.BlockValue:
		return response.NewString(value.Raw).FromInput(), nil
	case language.BooleanValue:
		return response.NewBoolean(value.Raw == "true"), nil
	case language.NullValue:
		return response.Value{}, nil
	case language.EnumValue:
		return response.NewEnum(value.Raw), nil
	case language.ListValue:
		list := response.NewList(len(value.Children))
		for _, child := range value.Children {
			v, err := valueFromAST(child.Value, variables)
			if err != nil {
				return response.Value{}, err
			}
			list.Append(v)
		}
		return list, nil
	case language.ObjectValue:
		obj := response.NewMap(len(value.Children))
		for _, child := range value.Children {
			v, err := valueFromAST(child.Value, variables)
			if err != nil {
				return response.Value{}, err
			}
			obj.Emplace(child.Name, v)
		}
		return obj, nil
	default:
		return response.Value{}, nil
	}
}

func lookupVariable(variables response.Value, name string) (response.Value, bool) {
	if variables.Type() != response.Map {
		return response.Value{}, false
	}
	return variables.Find(name)
}

// ShouldSkip applies @skip and then @include. Only the first occurrence of
// each is considered. Each must have exactly one Boolean argument named if.
func (d Directives) ShouldSkip() (bool, error) {
	checks := [...]struct {
		skip bool
		name string
	}{
		{true, "skip"},
		{false, "include"},
	}
	for _, check := range checks {
		dir, ok := d.ForName(check.name)
		if !ok {
			continue
		}
		if dir.Arguments.Type() != response.Map {
			return false, NewSchemaError(fmt.Sprintf("Invalid arguments to directive: %s", check.name))
		}

		argumentTrue, argumentFalse := false, false
		for _, arg := range dir.Arguments.Members() {
			if argumentTrue || argumentFalse || arg.Value.Type() != response.Boolean || arg.Name != "if" {
				return false, NewSchemaError(fmt.Sprintf("Invalid argument to directive: %s name: %s", check.name, arg.Name))
			}
			argumentTrue = arg.Value.AsBool()
			argumentFalse = !argumentTrue
		}

		if !argumentTrue && !argumentFalse {
			return false, NewSchemaError(fmt.Sprintf("Missing argument directive: %s name: if", check.name))
		}
		// @skip(if: false) still lets @include exclude the selection.
		if argumentTrue == check.skip {
			return true, nil
		}
	}
	return false, nil
}

func positionLocation(pos *language.Position) Location {
	if pos == nil {
		return Location{}
	}
	return Location{Line: pos.Line, Column: pos.Column}
}
