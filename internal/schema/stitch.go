package schema

import (
	language "github.com/hanpama/gqlservice/internal/language"
)

// Stitch returns a new Schema holding the types and directives of both s and
// added. Object and interface types present in both keep every field of s and
// gain the fields only added defines. Root operation types missing from s are
// taken from added.
func (s *Schema) Stitch(added *Schema) *Schema {
	out := NewSchema(s.Description)
	out.QueryType = s.QueryType
	out.MutationType = s.MutationType
	out.SubscriptionType = s.SubscriptionType
	out.NoIntrospection = s.NoIntrospection
	if added == nil {
		for _, t := range s.Types {
			out.AddType(t)
		}
		for _, d := range s.Directives {
			out.AddDirective(d)
		}
		return out
	}

	if out.QueryType == "" {
		out.QueryType = added.QueryType
	}
	if out.MutationType == "" {
		out.MutationType = added.MutationType
	}
	if out.SubscriptionType == "" {
		out.SubscriptionType = added.SubscriptionType
	}

	for name, t := range s.Types {
		other, ok := added.Types[name]
		if !ok || other.Kind != t.Kind {
			out.AddType(t)
			continue
		}
		out.AddType(mergeType(t, other))
	}
	for name, t := range added.Types {
		if _, ok := s.Types[name]; !ok {
			out.AddType(t)
		}
	}

	for _, d := range s.Directives {
		out.AddDirective(d)
	}
	for name, d := range added.Directives {
		if _, ok := s.Directives[name]; !ok {
			out.AddDirective(d)
		}
	}
	return out
}

func mergeType(t, other *Type) *Type {
	merged := *t
	switch t.Kind {
	case TypeKindObject, TypeKindInterface:
		merged.Fields = append([]*Field(nil), t.Fields...)
		for _, f := range other.Fields {
			if t.FieldByName(f.Name) == nil {
				merged.Fields = append(merged.Fields, f)
			}
		}
		merged.Interfaces = mergeNames(t.Interfaces, other.Interfaces)
		merged.PossibleTypes = mergeNames(t.PossibleTypes, other.PossibleTypes)
	case TypeKindUnion:
		merged.PossibleTypes = mergeNames(t.PossibleTypes, other.PossibleTypes)
	case TypeKindEnum:
		merged.EnumValues = append([]*EnumValue(nil), t.EnumValues...)
		seen := make(map[string]bool, len(t.EnumValues))
		for _, v := range t.EnumValues {
			seen[v.Name] = true
		}
		for _, v := range other.EnumValues {
			if !seen[v.Name] {
				merged.EnumValues = append(merged.EnumValues, v)
			}
		}
	}
	return &merged
}

func mergeNames(a, b []string) []string {
	out := append([]string(nil), a...)
	seen := make(map[string]bool, len(a))
	for _, n := range a {
		seen[n] = true
	}
	for _, n := range b {
		if !seen[n] {
			out = append(out, n)
			seen[n] = true
		}
	}
	return out
}

// ValidationSchema returns the gqlparser form of s, built once by rendering
// s to SDL and loading it back with the prelude.
func (s *Schema) ValidationSchema() (*language.Schema, error) {
	s.validationOnce.Do(func() {
		s.validationSchema, s.validationErr = language.LoadSchema(&language.Source{
			Name:  "schema.graphql",
			Input: Render(s),
		})
	})
	return s.validationSchema, s.validationErr
}
