package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/gqlservice/internal/language"
	response "github.com/hanpama/gqlservice/internal/response"
)

// Location is a line and column in the query document. The zero Location
// means no location is known.
type Location struct {
	Line   int
	Column int
}

// IsZero reports whether the location is absent.
func (l Location) IsZero() bool { return l.Line == 0 }

// Path is a materialized error path. Elements are string field names or int
// list indexes.
type Path []PathElement

type PathElement any

// GraphQLError is a located error reported in the errors list of a response.
type GraphQLError struct {
	Message  string
	Location Location
	Path     Path
}

func (e GraphQLError) Error() string {
	return e.Message
}

// SchemaError carries one or more located errors. Resolvers return it to
// report errors which should reach the client unchanged.
type SchemaError struct {
	Errors []GraphQLError
}

// NewSchemaError returns a SchemaError with one unlocated error per message.
func NewSchemaError(messages ...string) *SchemaError {
	errs := make([]GraphQLError, len(messages))
	for i, m := range messages {
		errs[i] = GraphQLError{Message: m}
	}
	return &SchemaError{Errors: errs}
}

// newLocatedError returns a SchemaError with a single located error.
func newLocatedError(message string, location Location, path *FieldPath) *SchemaError {
	return &SchemaError{Errors: []GraphQLError{{
		Message:  message,
		Location: location,
		Path:     path.Materialize(),
	}}}
}

func (e *SchemaError) Error() string {
	if len(e.Errors) == 0 {
		return "Unknown schema error"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Message
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Message
	}
	return strings.Join(msgs, "; ")
}

// locate fills in the location and path of errors which lack them.
func (e *SchemaError) locate(location Location, path *FieldPath) []GraphQLError {
	out := make([]GraphQLError, len(e.Errors))
	for i, err := range e.Errors {
		if err.Location.IsZero() {
			err.Location = location
		}
		if len(err.Path) == 0 {
			err.Path = path.Materialize()
		}
		out[i] = err
	}
	return out
}

// FieldPath is a persistent list of path segments linked to its parent. Child
// paths share their ancestors, and the flat form is only built when an error
// is reported. A nil *FieldPath is the empty path.
type FieldPath struct {
	parent  *FieldPath
	name    string
	index   int
	isIndex bool
}

// Field returns the path of the named child field.
func (p *FieldPath) Field(name string) *FieldPath {
	return &FieldPath{parent: p, name: name}
}

// Index returns the path of a list element.
func (p *FieldPath) Index(i int) *FieldPath {
	return &FieldPath{parent: p, index: i, isIndex: true}
}

// Parent returns the enclosing path, nil at the root.
func (p *FieldPath) Parent() *FieldPath {
	if p == nil {
		return nil
	}
	return p.parent
}

// Materialize returns the segments from the root down to p.
func (p *FieldPath) Materialize() Path {
	n := 0
	for seg := p; seg != nil; seg = seg.parent {
		n++
	}
	if n == 0 {
		return nil
	}
	out := make(Path, n)
	for seg := p; seg != nil; seg = seg.parent {
		n--
		if seg.isIndex {
			out[n] = seg.index
		} else {
			out[n] = seg.name
		}
	}
	return out
}

func (p *FieldPath) String() string {
	var b strings.Builder
	for i, elem := range p.Materialize() {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(v)
		case int:
			fmt.Fprintf(&b, "[%d]", v)
		}
	}
	return b.String()
}

// unknownError converts an unexpected resolver failure into a located error.
func unknownError(name string, err error, location Location, path *FieldPath) []GraphQLError {
	return []GraphQLError{{
		Message:  fmt.Sprintf("Field error name: %s unknown error: %s", name, err),
		Location: location,
		Path:     path.Materialize(),
	}}
}

// ErrorValues renders errors as the list value of a response's errors entry.
func ErrorValues(errs []GraphQLError) response.Value {
	return ErrorStream(errs).Value()
}

// ErrorStream renders errors as a token stream. Each error has a message,
// a locations list when located and a path when one is known.
func ErrorStream(errs []GraphQLError) response.Stream {
	s := response.NewStream(response.StartArray(), response.Reserve(len(errs)))
	for _, err := range errs {
		s.Push(response.StartObject())
		s.Push(response.Reserve(3))
		s.Push(response.AddMember("message"))
		s.Push(response.StringValue(err.Message))
		if !err.Location.IsZero() {
			s.Push(response.AddMember("locations"))
			s.Push(response.StartArray())
			s.Push(response.Reserve(1))
			s.Push(response.StartObject())
			s.Push(response.Reserve(2))
			s.Push(response.AddMember("line"))
			s.Push(response.IntValue(err.Location.Line))
			s.Push(response.AddMember("column"))
			s.Push(response.IntValue(err.Location.Column))
			s.Push(response.EndObject())
			s.Push(response.EndArray())
		}
		if len(err.Path) > 0 {
			s.Push(response.AddMember("path"))
			s.Push(response.StartArray())
			s.Push(response.Reserve(len(err.Path)))
			for _, elem := range err.Path {
				switch v := elem.(type) {
				case int:
					s.Push(response.IntValue(v))
				default:
					s.Push(response.StringValue(fmt.Sprint(v)))
				}
			}
			s.Push(response.EndArray())
		}
		s.Push(response.EndObject())
	}
	s.Push(response.EndArray())
	return s
}

// ErrorsOf returns the errors carried by err for the errors list of a
// response. Parser errors keep their locations.
func ErrorsOf(err error) []GraphQLError {
	var serr *SchemaError
	if errors.As(err, &serr) {
		return serr.Errors
	}
	var list language.ErrorList
	if errors.As(err, &list) {
		return errorsFromList(list)
	}
	var gerr *language.Error
	if errors.As(err, &gerr) {
		return errorsFromList(language.ErrorList{gerr})
	}
	return []GraphQLError{{Message: err.Error()}}
}

// errorsFromList converts validator and parser errors.
func errorsFromList(list language.ErrorList) []GraphQLError {
	out := make([]GraphQLError, 0, len(list))
	for _, e := range list {
		if e == nil {
			continue
		}
		ge := GraphQLError{Message: e.Message}
		if len(e.Locations) > 0 {
			ge.Location = Location{Line: e.Locations[0].Line, Column: e.Locations[0].Column}
		}
		for _, p := range e.Path {
			switch v := p.(type) {
			case ast.PathName:
				ge.Path = append(ge.Path, string(v))
			case ast.PathIndex:
				ge.Path = append(ge.Path, int(v))
			}
		}
		out = append(out, ge)
	}
	return out
}
