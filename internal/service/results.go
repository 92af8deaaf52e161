package service

import (
	"fmt"
	"slices"

	launch "github.com/hanpama/gqlservice/internal/launch"
	response "github.com/hanpama/gqlservice/internal/response"
)

// ResultConverter turns the Future of a Go value into the result of a field.
type ResultConverter[T any] func(params ResolverParams, value *launch.Future[T]) *launch.Future[ResolverResult]

// convertResult applies fn to the outcome of value, inline when it is already
// complete.
func convertResult[T any](params ResolverParams, value *launch.Future[T], fn func(T) (ResolverResult, error)) *launch.Future[ResolverResult] {
	apply := func(v T, err error) (ResolverResult, error) {
		if err != nil {
			return ResolverResult{}, err
		}
		return fn(v)
	}
	if value.Done() {
		result, err := apply(value.Await())
		if err != nil {
			return launch.Failed[ResolverResult](err)
		}
		return launch.Ready(result)
	}
	return launch.Then(params.Launch, value, apply)
}

func resolveLeaf[T any](params ResolverParams, value *launch.Future[T], token func(T) (response.Token, error)) *launch.Future[ResolverResult] {
	if err := blockSubFields(params); err != nil {
		return launch.Failed[ResolverResult](err)
	}
	return convertResult(params, value, func(v T) (ResolverResult, error) {
		t, err := token(v)
		if err != nil {
			return ResolverResult{}, err
		}
		return ResolverResult{Data: response.NewStream(t)}, nil
	})
}

func blockSubFields(params ResolverParams) error {
	if len(params.Selection) > 0 {
		return newLocatedError(fmt.Sprintf("Field may not have sub-fields name: %s", params.FieldName),
			params.Location(), params.ErrorPath)
	}
	return nil
}

func requireSubFields(params ResolverParams) error {
	if len(params.Selection) == 0 {
		return newLocatedError(fmt.Sprintf("Field must have sub-fields name: %s", params.FieldName),
			params.Location(), params.ErrorPath)
	}
	return nil
}

func ResolveInt(params ResolverParams, value *launch.Future[int]) *launch.Future[ResolverResult] {
	return resolveLeaf(params, value, func(v int) (response.Token, error) { return response.IntValue(v), nil })
}

func ResolveFloat(params ResolverParams, value *launch.Future[float64]) *launch.Future[ResolverResult] {
	return resolveLeaf(params, value, func(v float64) (response.Token, error) { return response.FloatValue(v), nil })
}

func ResolveString(params ResolverParams, value *launch.Future[string]) *launch.Future[ResolverResult] {
	return resolveLeaf(params, value, func(v string) (response.Token, error) { return response.StringValue(v), nil })
}

func ResolveBool(params ResolverParams, value *launch.Future[bool]) *launch.Future[ResolverResult] {
	return resolveLeaf(params, value, func(v bool) (response.Token, error) { return response.BoolValue(v), nil })
}

func ResolveID(params ResolverParams, value *launch.Future[response.IDType]) *launch.Future[ResolverResult] {
	return resolveLeaf(params, value, func(v response.IDType) (response.Token, error) { return response.IDValue(v), nil })
}

// ResolveScalar embeds a ready-made Value, for custom scalars.
func ResolveScalar(params ResolverParams, value *launch.Future[response.Value]) *launch.Future[ResolverResult] {
	return resolveLeaf(params, value, func(v response.Value) (response.Token, error) { return response.OpaqueValue(v), nil })
}

// ResolveEnum returns a converter emitting the named values of an enum type.
func ResolveEnum(typeName string, values ...string) ResultConverter[string] {
	return func(params ResolverParams, value *launch.Future[string]) *launch.Future[ResolverResult] {
		return resolveLeaf(params, value, func(v string) (response.Token, error) {
			if !slices.Contains(values, v) {
				return response.Token{}, NewSchemaError(fmt.Sprintf("not a valid %s value", typeName))
			}
			return response.Enum(v), nil
		})
	}
}

// ValidateScalar checks that v can be sent as a value of a builtin scalar
// type. Values of other scalar types are accepted as they are.
func ValidateScalar(typeName string, v response.Value) error {
	ok := true
	switch typeName {
	case "Int":
		ok = v.Type() == response.Int
	case "Float":
		ok = v.Type() == response.Float || v.Type() == response.Int
	case "String":
		ok = v.Type() == response.String
	case "Boolean":
		ok = v.Type() == response.Boolean
	case "ID":
		ok = v.MaybeID()
	}
	if !ok {
		return NewSchemaError(fmt.Sprintf("not a valid %s value", typeName))
	}
	return nil
}

// ResolveChecked returns a converter which validates values with
// ValidateScalar before embedding them.
func ResolveChecked(typeName string) ResultConverter[response.Value] {
	return func(params ResolverParams, value *launch.Future[response.Value]) *launch.Future[ResolverResult] {
		return resolveLeaf(params, value, func(v response.Value) (response.Token, error) {
			if err := ValidateScalar(typeName, v); err != nil {
				return response.Token{}, err
			}
			return response.OpaqueValue(v), nil
		})
	}
}

// ResolveObject resolves the sub-selection of the field on the Object. A nil
// Object resolves to Null.
func ResolveObject(params ResolverParams, value *launch.Future[*Object]) *launch.Future[ResolverResult] {
	if err := requireSubFields(params); err != nil {
		return launch.Failed[ResolverResult](err)
	}
	return launch.Then(params.Launch, value, func(object *Object, err error) (ResolverResult, error) {
		if err != nil {
			return ResolverResult{}, err
		}
		if object == nil {
			return ResolverResult{Data: response.NewStream(response.NullValue())}, nil
		}
		return object.Resolve(params.SelectionSetParams, params.Selection, params.Fragments, params.Variables).Await()
	})
}

// ResolveList applies elem to every item. Items are started before any is
// awaited. A failed item becomes Null and its errors carry the item index.
func ResolveList[T any](elem ResultConverter[T]) ResultConverter[[]T] {
	return func(params ResolverParams, value *launch.Future[[]T]) *launch.Future[ResolverResult] {
		return launch.Then(params.Launch, value, func(items []T, err error) (ResolverResult, error) {
			if err != nil {
				return ResolverResult{}, err
			}
			pending := make([]*launch.Future[ResolverResult], len(items))
			paths := make([]*FieldPath, len(items))
			for i, item := range items {
				itemParams := params
				itemParams.ErrorPath = params.ErrorPath.Index(i)
				paths[i] = itemParams.ErrorPath
				pending[i] = invokeResolver(func(p ResolverParams) *launch.Future[ResolverResult] {
					return elem(p, launch.Ready(item))
				}, itemParams)
			}

			var result ResolverResult
			data := response.NewStream(response.StartArray(), response.Reserve(len(items)))
			for i, p := range pending {
				item, err := p.Await()
				if err != nil {
					result.Errors = append(result.Errors, fieldErrors(params.FieldName, params.Location(), paths[i], err)...)
					data.Push(response.NullValue())
					continue
				}
				if item.Data.Empty() {
					data.Push(response.NullValue())
				} else {
					data.Append(item.Data)
				}
				result.Errors = append(result.Errors, item.Errors...)
			}
			data.Push(response.EndArray())
			result.Data = data
			return result, nil
		})
	}
}

// ResolveNullable resolves a nil pointer to Null and anything else with elem.
func ResolveNullable[T any](elem ResultConverter[T]) ResultConverter[*T] {
	return func(params ResolverParams, value *launch.Future[*T]) *launch.Future[ResolverResult] {
		if value.Done() {
			v, err := value.Await()
			if err != nil {
				return launch.Failed[ResolverResult](err)
			}
			if v == nil {
				return launch.Ready(ResolverResult{Data: response.NewStream(response.NullValue())})
			}
			return elem(params, launch.Ready(*v))
		}
		return launch.Then(params.Launch, value, func(v *T, err error) (ResolverResult, error) {
			if err != nil {
				return ResolverResult{}, err
			}
			if v == nil {
				return ResolverResult{Data: response.NewStream(response.NullValue())}, nil
			}
			return elem(params, launch.Ready(*v)).Await()
		})
	}
}
