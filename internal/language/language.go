package language

import (
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// Error is a located GraphQL syntax or validation error.
type Error = gqlerror.Error

// ErrorList is a list of located errors.
type ErrorList = gqlerror.List

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates SDL sources together with the builtin
// prelude (scalars, skip/include, introspection types).
func LoadSchema(sources ...*Source) (*Schema, error) {
	sch, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, err
	}
	return sch, nil
}

// Validate runs the standard executable-document rules against doc.
func Validate(sch *Schema, doc *QueryDocument) ErrorList {
	return validator.Validate(sch, doc)
}
