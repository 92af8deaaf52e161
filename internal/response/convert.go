package response

import (
	"fmt"
	"sort"
)

// FromAny converts plain Go data into a Value. Strings are marked as coming
// from JSON so they may later be read as enums or IDs. Map keys are sorted.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return x, nil
	case string:
		return NewString(x).FromJSON(), nil
	case bool:
		return NewBoolean(x), nil
	case int:
		return NewInt(x), nil
	case int32:
		return NewInt(int(x)), nil
	case int64:
		return NewInt(int(x)), nil
	case float32:
		return NewFloat(float64(x)), nil
	case float64:
		return NewFloat(x), nil
	case IDType:
		return NewID(x), nil
	case []byte:
		return NewID(IDFromBytes(x)), nil
	case CustomValue:
		return NewCustom(x), nil
	case []any:
		list := NewList(len(x))
		for i, item := range x {
			converted, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			list.Append(converted)
		}
		return list, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap(len(x))
		for _, k := range keys {
			converted, err := FromAny(x[k])
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			m.Emplace(k, converted)
		}
		return m, nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", v)
}

// Any converts v into plain Go data: maps become map[string]any, lists
// []any, enums and IDs their text form.
func (v Value) Any() any {
	switch v.typ {
	case Map:
		out := make(map[string]any, len(v.obj.members))
		for _, m := range v.obj.members {
			out[m.Name] = m.Value.Any()
		}
		return out
	case List:
		out := make([]any, len(*v.list))
		for i, item := range *v.list {
			out[i] = item.Any()
		}
		return out
	case String, EnumValue:
		return v.str
	case Boolean:
		return v.boolean
	case Int:
		return v.integer
	case Float:
		return v.float
	case ID:
		return v.id.String()
	case Scalar:
		return v.scalar.Any()
	case Custom:
		return v.custom
	}
	return nil
}
