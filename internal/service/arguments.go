package service

import (
	"errors"
	"fmt"
	"slices"

	response "github.com/hanpama/gqlservice/internal/response"
)

// ArgumentConverter reads a Go value out of an argument Value.
type ArgumentConverter[T any] func(value response.Value) (T, error)

func ConvertInt(value response.Value) (int, error) {
	if value.Type() != response.Int {
		return 0, errors.New("not an integer")
	}
	return value.AsInt(), nil
}

// ConvertFloat accepts Int values as well.
func ConvertFloat(value response.Value) (float64, error) {
	switch value.Type() {
	case response.Int, response.Float:
		return value.AsFloat(), nil
	}
	return 0, errors.New("not a float")
}

func ConvertString(value response.Value) (string, error) {
	if value.Type() != response.String {
		return "", errors.New("not a string")
	}
	return value.AsString(), nil
}

func ConvertBool(value response.Value) (bool, error) {
	if value.Type() != response.Boolean {
		return false, errors.New("not a boolean")
	}
	return value.AsBool(), nil
}

// ConvertID accepts ID values and strings read from a document or JSON.
func ConvertID(value response.Value) (response.IDType, error) {
	if !value.MaybeID() {
		return response.IDType{}, errors.New("not an ID")
	}
	return value.AsID(), nil
}

// ConvertValue returns the value unchanged, for custom scalars and input
// objects read by hand.
func ConvertValue(value response.Value) (response.Value, error) {
	return value, nil
}

// ConvertEnum returns a converter accepting the named values of an enum type.
func ConvertEnum(typeName string, values ...string) ArgumentConverter[string] {
	return func(value response.Value) (string, error) {
		if !value.MaybeEnum() {
			return "", errors.New("not a valid " + typeName + " value")
		}
		name := value.AsEnum()
		if !slices.Contains(values, name) {
			return "", errors.New("not a valid " + typeName + " value")
		}
		return name, nil
	}
}

// ListOf converts every item of a List with elem.
func ListOf[T any](elem ArgumentConverter[T]) ArgumentConverter[[]T] {
	return func(value response.Value) ([]T, error) {
		if value.Type() != response.List {
			return nil, errors.New("not a list")
		}
		items := value.Items()
		out := make([]T, len(items))
		for i, item := range items {
			converted, err := elem(item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	}
}

// NullableOf converts Null to nil and anything else with elem.
func NullableOf[T any](elem ArgumentConverter[T]) ArgumentConverter[*T] {
	return func(value response.Value) (*T, error) {
		if value.IsNull() {
			return nil, nil
		}
		converted, err := elem(value)
		if err != nil {
			return nil, err
		}
		return &converted, nil
	}
}

// RequireArgument converts the named argument. An absent argument is read as
// Null.
func RequireArgument[T any](arguments response.Value, name string, convert ArgumentConverter[T]) (T, error) {
	value, _ := findArgument(arguments, name)
	converted, err := convert(value)
	if err != nil {
		var zero T
		return zero, NewSchemaError(fmt.Sprintf("Invalid argument: %s error: %s", name, err))
	}
	return converted, nil
}

// FindArgument converts the named argument when it is present.
func FindArgument[T any](arguments response.Value, name string, convert ArgumentConverter[T]) (T, bool, error) {
	var zero T
	value, ok := findArgument(arguments, name)
	if !ok {
		return zero, false, nil
	}
	converted, err := convert(value)
	if err != nil {
		return zero, true, NewSchemaError(fmt.Sprintf("Invalid argument: %s error: %s", name, err))
	}
	return converted, true, nil
}

func findArgument(arguments response.Value, name string) (response.Value, bool) {
	if arguments.Type() != response.Map {
		return response.Value{}, false
	}
	return arguments.Find(name)
}
