package introspection

import (
	launch "github.com/hanpama/gqlservice/internal/launch"
	schema "github.com/hanpama/gqlservice/internal/schema"
	service "github.com/hanpama/gqlservice/internal/service"
)

var typeKinds = []string{
	"SCALAR", "OBJECT", "INTERFACE", "UNION", "ENUM", "INPUT_OBJECT", "LIST", "NON_NULL",
}

var directiveLocations = []string{
	"QUERY", "MUTATION", "SUBSCRIPTION", "FIELD", "FRAGMENT_DEFINITION", "FRAGMENT_SPREAD",
	"INLINE_FRAGMENT", "VARIABLE_DEFINITION", "SCHEMA", "SCALAR", "OBJECT", "FIELD_DEFINITION",
	"ARGUMENT_DEFINITION", "INTERFACE", "UNION", "ENUM", "ENUM_VALUE", "INPUT_OBJECT",
	"INPUT_FIELD_DEFINITION",
}

func kindValue(kind string) service.Resolver {
	return func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
		return service.ResolveEnum("__TypeKind", typeKinds...)(p, launch.Ready(kind))
	}
}

func (in *introspector) typeObject(t *schema.Type) *service.Object {
	resolvers := service.ResolverMap{
		"kind":           kindValue(string(t.Kind)),
		"name":           stringValue(t.Name),
		"description":    optionalString(t.Description),
		"specifiedByURL": null,
		"fields":         null,
		"interfaces":     null,
		"possibleTypes":  null,
		"enumValues":     null,
		"inputFields":    null,
		"ofType":         null,
		"isOneOf":        null,
	}
	if t.SpecifiedByURL != nil {
		resolvers["specifiedByURL"] = stringValue(*t.SpecifiedByURL)
	}

	switch t.Kind {
	case schema.TypeKindObject, schema.TypeKindInterface:
		resolvers["fields"] = func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
			include, err := includeDeprecated(p)
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			fields := []*service.Object{}
			for _, f := range t.GetOrderedFields() {
				if include || !f.IsDeprecated {
					fields = append(fields, in.fieldObject(f))
				}
			}
			return objectList(fields)(p)
		}
		resolvers["interfaces"] = func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
			return objectList(in.namedTypes(t.Interfaces, false))(p)
		}
	case schema.TypeKindEnum:
		resolvers["enumValues"] = func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
			include, err := includeDeprecated(p)
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			values := []*service.Object{}
			for _, v := range t.EnumValues {
				if include || !v.IsDeprecated {
					values = append(values, enumValueObject(v))
				}
			}
			return objectList(values)(p)
		}
	case schema.TypeKindInputObject:
		resolvers["inputFields"] = func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
			include, err := includeDeprecated(p)
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			return objectList(in.inputValues(t.GetOrderedInputFields(), include))(p)
		}
		resolvers["isOneOf"] = boolValue(t.OneOf)
	}
	if t.Kind == schema.TypeKindInterface || t.Kind == schema.TypeKindUnion {
		resolvers["possibleTypes"] = func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
			return objectList(in.namedTypes(t.PossibleTypes, true))(p)
		}
	}
	return service.NewObject([]string{"__Type"}, resolvers)
}

// wrapperObject describes a LIST or NON_NULL reference. Only kind and
// ofType are set.
func (in *introspector) wrapperObject(ref *schema.TypeRef) *service.Object {
	return service.NewObject([]string{"__Type"}, service.ResolverMap{
		"kind":           kindValue(string(ref.Kind)),
		"name":           null,
		"description":    null,
		"specifiedByURL": null,
		"fields":         null,
		"interfaces":     null,
		"possibleTypes":  null,
		"enumValues":     null,
		"inputFields":    null,
		"isOneOf":        null,
		"ofType": func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
			return service.ResolveObject(p, launch.Ready(in.typeRef(ref.OfType)))
		},
	})
}

// namedTypes looks up names, skipping unknown ones and, with objectsOnly,
// anything that is not an object type.
func (in *introspector) namedTypes(names []string, objectsOnly bool) []*service.Object {
	out := []*service.Object{}
	for _, name := range names {
		t := in.schema.LookupType(name)
		if t == nil || (objectsOnly && t.Kind != schema.TypeKindObject) {
			continue
		}
		out = append(out, in.typeObject(t))
	}
	return out
}

func (in *introspector) typeResolver(ref *schema.TypeRef) service.Resolver {
	return func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
		return service.ResolveObject(p, launch.Ready(in.typeRef(ref)))
	}
}

func (in *introspector) fieldObject(f *schema.Field) *service.Object {
	return service.NewObject([]string{"__Field"}, service.ResolverMap{
		"name":        stringValue(f.Name),
		"description": optionalString(f.Description),
		"args": func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
			include, err := includeDeprecated(p)
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			return objectList(in.inputValues(f.GetOrderedArguments(), include))(p)
		},
		"type":              in.typeResolver(f.Type),
		"isDeprecated":      boolValue(f.IsDeprecated),
		"deprecationReason": deprecationReason(f.IsDeprecated, f.DeprecationReason),
	})
}

func (in *introspector) inputValues(values []*schema.InputValue, include bool) []*service.Object {
	out := []*service.Object{}
	for _, v := range values {
		if include || !v.IsDeprecated {
			out = append(out, in.inputValueObject(v))
		}
	}
	return out
}

func (in *introspector) inputValueObject(v *schema.InputValue) *service.Object {
	return service.NewObject([]string{"__InputValue"}, service.ResolverMap{
		"name":              stringValue(v.Name),
		"description":       optionalString(v.Description),
		"type":              in.typeResolver(v.Type),
		"defaultValue":      optionalString(v.DefaultValue),
		"isDeprecated":      boolValue(v.IsDeprecated),
		"deprecationReason": deprecationReason(v.IsDeprecated, v.DeprecationReason),
	})
}

func enumValueObject(v *schema.EnumValue) *service.Object {
	return service.NewObject([]string{"__EnumValue"}, service.ResolverMap{
		"name":              stringValue(v.Name),
		"description":       optionalString(v.Description),
		"isDeprecated":      boolValue(v.IsDeprecated),
		"deprecationReason": deprecationReason(v.IsDeprecated, v.DeprecationReason),
	})
}

func (in *introspector) directiveObject(d *schema.Directive) *service.Object {
	return service.NewObject([]string{"__Directive"}, service.ResolverMap{
		"name":        stringValue(d.Name),
		"description": optionalString(d.Description),
		"locations": func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
			locations := service.ResolveList(service.ResolveEnum("__DirectiveLocation", directiveLocations...))
			return locations(p, launch.Ready(d.Locations))
		},
		"args": func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
			include, err := includeDeprecated(p)
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			return objectList(in.inputValues(d.Arguments, include))(p)
		},
		"isRepeatable": boolValue(d.IsRepeatable),
	})
}

func deprecationReason(deprecated bool, reason string) service.Resolver {
	if !deprecated {
		return null
	}
	return stringValue(reason)
}
