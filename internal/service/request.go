package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	eventbus "github.com/hanpama/gqlservice/internal/eventbus"
	events "github.com/hanpama/gqlservice/internal/events"
	launch "github.com/hanpama/gqlservice/internal/launch"
	language "github.com/hanpama/gqlservice/internal/language"
	response "github.com/hanpama/gqlservice/internal/response"
	schema "github.com/hanpama/gqlservice/internal/schema"
)

// Operations holds the root objects of a service. Any of them may be nil.
type Operations struct {
	Query        *Object
	Mutation     *Object
	Subscription *Object
}

// Validator checks a query document before it is executed.
type Validator interface {
	Validate(doc *language.QueryDocument) []GraphQLError
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(doc *language.QueryDocument) []GraphQLError

func (f ValidatorFunc) Validate(doc *language.QueryDocument) []GraphQLError { return f(doc) }

// schemaValidator applies the standard validation rules against the schema.
type schemaValidator struct {
	schema *schema.Schema
}

func (v schemaValidator) Validate(doc *language.QueryDocument) []GraphQLError {
	vs, err := v.schema.ValidationSchema()
	if err != nil {
		return []GraphQLError{{Message: fmt.Sprintf("Invalid schema: %s", err)}}
	}
	return errorsFromList(language.Validate(vs, doc))
}

// RequestOption configures a Request.
type RequestOption func(*Request)

// WithValidator replaces the schema based document validation.
func WithValidator(v Validator) RequestOption {
	return func(r *Request) { r.validator = v }
}

// WithIntrospection adds the __schema and __type fields built by meta to the
// query root. It has no effect when the schema disables introspection.
func WithIntrospection(meta func(*schema.Schema) ResolverMap) RequestOption {
	return func(r *Request) { r.introspection = meta }
}

// WithDefaultLaunch sets the policy used when the caller passes none.
func WithDefaultLaunch(p launch.Policy) RequestOption {
	return func(r *Request) { r.launch = p }
}

// WithEventBus publishes events to b instead of the global bus.
func WithEventBus(b *eventbus.Bus) RequestOption {
	return func(r *Request) { r.bus = b }
}

// Request dispatches operations to the root objects of a service and keeps
// the registry of its subscriptions.
type Request struct {
	operations    Operations
	schema        *schema.Schema
	validator     Validator
	introspection func(*schema.Schema) ResolverMap
	launch        launch.Policy
	bus           *eventbus.Bus
	opts          []RequestOption

	mu            sync.Mutex
	nextKey       SubscriptionKey
	subscriptions map[SubscriptionKey]*subscriptionData
	listeners     map[string]map[SubscriptionKey]struct{}
}

// NewRequest returns a Request serving ops against sch.
func NewRequest(ops Operations, sch *schema.Schema, opts ...RequestOption) *Request {
	r := &Request{
		schema:        sch,
		opts:          opts,
		subscriptions: make(map[SubscriptionKey]*subscriptionData),
		listeners:     make(map[string]map[SubscriptionKey]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.validator == nil && sch != nil {
		r.validator = schemaValidator{schema: sch}
	}
	if r.introspection != nil && sch.SupportsIntrospection() && ops.Query != nil {
		ops.Query = ops.Query.StitchObject(NewObject(nil, nil), r.introspection(sch))
	}
	r.operations = ops
	return r
}

// Schema returns the schema served by the request.
func (r *Request) Schema() *schema.Schema { return r.schema }

// Operations returns the root objects.
func (r *Request) Operations() Operations { return r.operations }

// RequestResolveParams describes one query or mutation execution.
type RequestResolveParams struct {
	Query         *language.QueryDocument
	OperationName string
	// Variables is a Map of variable values, or Null.
	Variables response.Value
	// State is passed to every resolver untouched.
	State  any
	Launch launch.Policy
}

// Validate returns the validation errors of doc.
func (r *Request) Validate(doc *language.QueryDocument) []GraphQLError {
	if r.validator == nil {
		return nil
	}
	return r.validator.Validate(doc)
}

// FindOperationDefinition returns the named operation of doc. An empty name
// selects the only operation of the document.
func FindOperationDefinition(doc *language.QueryDocument, operationName string) (*language.OperationDefinition, error) {
	if doc != nil {
		if operationName == "" {
			if len(doc.Operations) == 1 {
				return doc.Operations[0], nil
			}
		} else if op := doc.Operations.ForName(operationName); op != nil {
			return op, nil
		}
	}
	return nil, NewSchemaError(withName("Missing operation", operationName))
}

func withName(message, name string) string {
	if name == "" {
		return message
	}
	return message + " name: " + name
}

// Resolve executes a query or mutation. Validation failures produce a result
// without data; failures during execution produce null data.
func (r *Request) Resolve(ctx context.Context, params RequestResolveParams) ResolverResult {
	start := time.Now()
	op := describeOperation(params.Query, params.OperationName)
	publish(ctx, r.bus, events.GraphQLStart{Operation: op})

	result := r.resolve(ctx, params)

	publish(ctx, r.bus, events.GraphQLFinish{
		Operation: op,
		Errors:    asErrors(result.Errors),
		Duration:  time.Since(start),
	})
	return result
}

// Document executes the operation and materializes the response document.
func (r *Request) Document(ctx context.Context, params RequestResolveParams) response.Value {
	return r.Resolve(ctx, params).Document()
}

func (r *Request) resolve(ctx context.Context, params RequestResolveParams) ResolverResult {
	if params.Query == nil {
		return ResolverResult{Errors: []GraphQLError{{Message: "Missing query document"}}}
	}
	if errs := r.Validate(params.Query); len(errs) > 0 {
		return ResolverResult{Errors: errs}
	}

	op, err := FindOperationDefinition(params.Query, params.OperationName)
	if err != nil {
		return failedResult(err)
	}

	var root *Object
	resolverContext := Query
	policy := params.Launch
	if policy == nil {
		policy = r.launch
	}
	switch op.Operation {
	case language.Query:
		root = r.operations.Query
	case language.Mutation:
		root = r.operations.Mutation
		resolverContext = Mutation
		policy = launch.Sync
	case language.Subscription:
		return failedResult(NewSchemaError(withName("Unexpected subscription", op.Name)))
	}
	if root == nil {
		return failedResult(NewSchemaError(withName(fmt.Sprintf("Unexpected operation type: %s", op.Operation), op.Name)))
	}

	variables, err := coerceVariables(op, params.Variables)
	if err != nil {
		return failedResult(err)
	}
	directives, err := visitDirectives(op.Directives, variables)
	if err != nil {
		return failedResult(err)
	}
	fragments, err := collectFragments(params.Query, variables)
	if err != nil {
		return failedResult(err)
	}

	result, err := root.Resolve(SelectionSetParams{
		Context:             ctx,
		ResolverContext:     resolverContext,
		State:               params.State,
		OperationDirectives: directives,
		Launch:              policy,
	}, op.SelectionSet, fragments, variables).Await()
	if err != nil {
		return failedResult(err)
	}
	return result
}

// coerceVariables keeps the variables defined by op, filling in default
// values for the ones the caller left out. Nullable variables without a
// value or default are null.
func coerceVariables(op *language.OperationDefinition, values response.Value) (response.Value, error) {
	out := response.NewMap(len(op.VariableDefinitions))
	for _, def := range op.VariableDefinitions {
		if value, ok := lookupVariable(values, def.Variable); ok {
			out.Emplace(def.Variable, value.Clone())
			continue
		}
		if def.DefaultValue != nil {
			value, err := valueFromAST(def.DefaultValue, response.Value{})
			if err != nil {
				return response.Value{}, err
			}
			out.Emplace(def.Variable, value)
			continue
		}
		if def.Type != nil && def.Type.NonNull {
			return response.Value{}, newLocatedError(
				fmt.Sprintf("Missing variable name: %s", def.Variable),
				positionLocation(def.Position), nil)
		}
		out.Emplace(def.Variable, response.Value{})
	}
	return out, nil
}

// failedResult reports an error which stopped execution: data is null.
func failedResult(err error) ResolverResult {
	return ResolverResult{
		Data:   response.NewStream(response.NullValue()),
		Errors: ErrorsOf(err),
	}
}

func asErrors(errs []GraphQLError) []error {
	if len(errs) == 0 {
		return nil
	}
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}

func describeOperation(doc *language.QueryDocument, operationName string) events.Operation {
	op := events.Operation{Name: operationName}
	def, err := FindOperationDefinition(doc, operationName)
	if err != nil {
		return op
	}
	op.Name = def.Name
	op.Type = string(def.Operation)
	if def.Position != nil && def.Position.Src != nil {
		op.Query = def.Position.Src.Input
	}
	return op
}

func publish[T any](ctx context.Context, b *eventbus.Bus, e T) {
	if b != nil {
		eventbus.PublishTo(ctx, b, e)
		return
	}
	eventbus.Publish(ctx, e)
}

// Stitch returns a Request serving the operations of both r and added. Root
// fields of r win over fields of added with the same name, and the schemas
// are stitched the same way. Introspection, when enabled on r, answers for
// the stitched schema.
func (r *Request) Stitch(added *Request) *Request {
	sch := r.schema.Stitch(added.schema)
	ops := Operations{
		Query:        stitchRoot(r.operations.Query, added.operations.Query),
		Mutation:     stitchRoot(r.operations.Mutation, added.operations.Mutation),
		Subscription: stitchRoot(r.operations.Subscription, added.operations.Subscription),
	}
	return NewRequest(ops, sch, r.opts...)
}

func stitchRoot(object, added *Object) *Object {
	switch {
	case object == nil:
		return added
	case added == nil:
		return object
	}
	return object.StitchObject(added, nil)
}
