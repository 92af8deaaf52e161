package schema

import (
	"sort"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/gqlservice/internal/language"
)

// BuildFromSDL parses SDL string and returns the corresponding Schema.
func BuildFromSDL(sdl string) (*Schema, error) {
	return BuildFromSources(&language.Source{Name: "schema.graphql", Input: sdl})
}

// BuildFromSources loads and validates several SDL documents, merging type
// extensions into their base definitions.
func BuildFromSources(sources ...*language.Source) (*Schema, error) {
	loaded, err := language.LoadSchema(sources...)
	if err != nil {
		return nil, err
	}
	return BuildFromAST(loaded), nil
}

// BuildFromAST converts a loaded gqlparser schema into the schema model.
func BuildFromAST(src *language.Schema) *Schema {
	s := NewSchema(src.Description)
	s.QueryType = ""
	if src.Query != nil {
		s.SetQueryType(src.Query.Name)
	}
	if src.Mutation != nil {
		s.SetMutationType(src.Mutation.Name)
	}
	if src.Subscription != nil {
		s.SetSubscriptionType(src.Subscription.Name)
	}

	names := make([]string, 0, len(src.Types))
	for name := range src.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		def := src.Types[name]
		var t *Type
		switch def.Kind {
		case ast.Object:
			t = buildObject(def, TypeKindObject)
		case ast.Interface:
			t = buildObject(def, TypeKindInterface)
			for _, impl := range src.PossibleTypes[def.Name] {
				t.AddPossibleType(impl.Name)
			}
		case ast.Union:
			t = buildUnion(def)
		case ast.Enum:
			t = buildEnum(def)
		case ast.InputObject:
			t = buildInput(def)
		case ast.Scalar:
			t = buildScalar(def)
		default:
			continue
		}
		t.BuiltIn = def.BuiltIn
		s.AddType(t)
	}

	for _, dir := range src.Directives {
		s.AddDirective(buildDirective(dir))
	}
	return s
}

func buildObject(def *ast.Definition, kind TypeKind) *Type {
	t := NewType(def.Name, kind, def.Description)
	for _, name := range def.Interfaces {
		t.AddInterface(name)
	}
	for _, fieldDef := range def.Fields {
		// __typename, __schema and __type are answered by the engine.
		if len(fieldDef.Name) > 1 && fieldDef.Name[:2] == "__" {
			continue
		}
		t.AddField(buildField(fieldDef))
	}
	return t
}

func buildField(def *ast.FieldDefinition) *Field {
	f := NewField(def.Name, def.Description, buildTypeRef(def.Type))
	if reason, ok := deprecation(def.Directives); ok {
		f.Deprecate(reason)
	}
	for _, arg := range def.Arguments {
		f.AddArgument(buildArgument(arg))
	}
	return f
}

func buildEnum(def *ast.Definition) *Type {
	t := NewType(def.Name, TypeKindEnum, def.Description)
	for _, v := range def.EnumValues {
		e := NewEnumValue(v.Name, v.Description)
		if reason, ok := deprecation(v.Directives); ok {
			e.Deprecate(reason)
		}
		t.AddEnumValue(e)
	}
	return t
}

func buildTypeRef(t *ast.Type) *TypeRef {
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		ref = NonNullType(ref)
	}
	return ref
}

func buildArgument(a *ast.ArgumentDefinition) *InputValue {
	in := NewInputValue(a.Name, a.Description, buildTypeRef(a.Type))
	if a.DefaultValue != nil {
		in.SetDefault(a.DefaultValue.String())
	}
	if reason, ok := deprecation(a.Directives); ok {
		in.Deprecate(reason)
	}
	return in
}

func buildInput(def *ast.Definition) *Type {
	t := NewType(def.Name, TypeKindInputObject, def.Description).
		SetOneOf(def.Directives.ForName("oneOf") != nil)
	for _, field := range def.Fields {
		in := NewInputValue(field.Name, field.Description, buildTypeRef(field.Type))
		if field.DefaultValue != nil {
			in.SetDefault(field.DefaultValue.String())
		}
		if reason, ok := deprecation(field.Directives); ok {
			in.Deprecate(reason)
		}
		t.AddInputField(in)
	}
	return t
}

func buildUnion(def *ast.Definition) *Type {
	t := NewType(def.Name, TypeKindUnion, def.Description)
	for _, name := range def.Types {
		t.AddPossibleType(name)
	}
	return t
}

func buildScalar(def *ast.Definition) *Type {
	t := NewType(def.Name, TypeKindScalar, def.Description)
	if d := def.Directives.ForName("specifiedBy"); d != nil {
		if url := d.Arguments.ForName("url"); url != nil && url.Value != nil {
			t.SetSpecifiedByURL(url.Value.Raw)
		}
	}
	return t
}

func buildDirective(dir *ast.DirectiveDefinition) *Directive {
	d := NewDirective(dir.Name, dir.Description).SetRepeatable(dir.IsRepeatable)
	for _, loc := range dir.Locations {
		d.Locations = append(d.Locations, string(loc))
	}
	for _, arg := range dir.Arguments {
		d.AddArgument(buildArgument(arg))
	}
	d.BuiltIn = dir.Position != nil && dir.Position.Src != nil && dir.Position.Src.BuiltIn
	return d
}

func deprecation(directives ast.DirectiveList) (string, bool) {
	d := directives.ForName("deprecated")
	if d == nil {
		return "", false
	}
	if reason := d.Arguments.ForName("reason"); reason != nil && reason.Value != nil {
		return reason.Value.Raw, true
	}
	return "No longer supported", true
}
