// Package introspection answers the __schema and __type meta-fields from a
// schema.Schema.
//
// Every introspection type is served by a service.Object built on demand, so
// recursive type references are only followed as deep as the query asks.
package introspection

import (
	"sort"

	launch "github.com/hanpama/gqlservice/internal/launch"
	response "github.com/hanpama/gqlservice/internal/response"
	schema "github.com/hanpama/gqlservice/internal/schema"
	service "github.com/hanpama/gqlservice/internal/service"
)

// MetaFields returns the __schema and __type resolvers for sch. Pass it to
// service.WithIntrospection.
func MetaFields(sch *schema.Schema) service.ResolverMap {
	in := &introspector{schema: sch}
	return service.ResolverMap{
		"__schema": func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
			return service.ResolveObject(p, launch.Ready(in.schemaObject()))
		},
		"__type": func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
			name, err := service.RequireArgument(p.Arguments, "name", service.ConvertString)
			if err != nil {
				return launch.Failed[service.ResolverResult](err)
			}
			return service.ResolveObject(p, launch.Ready(in.namedType(name)))
		},
	}
}

type introspector struct {
	schema *schema.Schema
}

func (in *introspector) schemaObject() *service.Object {
	sch := in.schema
	return service.NewObject([]string{"__Schema"}, service.ResolverMap{
		"description": optionalString(sch.Description),
		"types": func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
			names := make([]string, 0, len(sch.Types))
			for name := range sch.Types {
				names = append(names, name)
			}
			sort.Strings(names)
			types := make([]*service.Object, len(names))
			for i, name := range names {
				types[i] = in.typeObject(sch.Types[name])
			}
			return objectList(types)(p)
		},
		"queryType":        in.rootType(sch.QueryType),
		"mutationType":     in.rootType(sch.MutationType),
		"subscriptionType": in.rootType(sch.SubscriptionType),
		"directives": func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
			names := make([]string, 0, len(sch.Directives))
			for name := range sch.Directives {
				names = append(names, name)
			}
			sort.Strings(names)
			directives := make([]*service.Object, len(names))
			for i, name := range names {
				directives[i] = in.directiveObject(sch.Directives[name])
			}
			return objectList(directives)(p)
		},
	})
}

func (in *introspector) rootType(name string) service.Resolver {
	return func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
		if name == "" {
			return service.ResolveObject(p, launch.Ready[*service.Object](nil))
		}
		return service.ResolveObject(p, launch.Ready(in.namedType(name)))
	}
}

// namedType returns the __Type object for name, nil when the schema has no
// such type.
func (in *introspector) namedType(name string) *service.Object {
	t := in.schema.LookupType(name)
	if t == nil {
		return nil
	}
	return in.typeObject(t)
}

// typeRef returns the __Type object for a possibly wrapped reference.
func (in *introspector) typeRef(ref *schema.TypeRef) *service.Object {
	if ref == nil {
		return nil
	}
	switch ref.Kind {
	case schema.TypeRefKindList, schema.TypeRefKindNonNull:
		return in.wrapperObject(ref)
	default:
		return in.namedType(ref.Named)
	}
}

func optionalString(s string) service.Resolver {
	return func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
		if s == "" {
			return service.ResolveNullable(service.ResolveString)(p, launch.Ready[*string](nil))
		}
		return service.ResolveString(p, launch.Ready(s))
	}
}

func stringValue(s string) service.Resolver {
	return func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
		return service.ResolveString(p, launch.Ready(s))
	}
}

func boolValue(b bool) service.Resolver {
	return func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
		return service.ResolveBool(p, launch.Ready(b))
	}
}

func objectList(objects []*service.Object) service.Resolver {
	return func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
		return service.ResolveList(service.ResolveObject)(p, launch.Ready(objects))
	}
}

// null answers fields that do not apply to a kind of type.
func null(service.ResolverParams) *launch.Future[service.ResolverResult] {
	return launch.Ready(service.ResolverResult{Data: response.NewStream(response.NullValue())})
}

// includeDeprecated reads the includeDeprecated argument, false when absent.
func includeDeprecated(p service.ResolverParams) (bool, error) {
	include, _, err := service.FindArgument(p.Arguments, "includeDeprecated", service.NullableOf(service.ConvertBool))
	if err != nil || include == nil {
		return false, err
	}
	return *include, nil
}
