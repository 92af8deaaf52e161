package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	events "github.com/hanpama/gqlservice/internal/events"
	launch "github.com/hanpama/gqlservice/internal/launch"
	language "github.com/hanpama/gqlservice/internal/language"
	response "github.com/hanpama/gqlservice/internal/response"
)

// SubscriptionKey identifies a registered subscription. Keys are never
// reused within a Request.
type SubscriptionKey uint64

// RequestSubscribeParams registers a subscription. Results are passed to
// Visitor when it is set, otherwise Callback receives the response document.
type RequestSubscribeParams struct {
	Callback func(response.Value)
	Visitor  func(ResolverResult)

	Query         *language.QueryDocument
	OperationName string
	Variables     response.Value
	State         any
	Launch        launch.Policy
}

// RequestUnsubscribeParams removes a subscription.
type RequestUnsubscribeParams struct {
	Key    SubscriptionKey
	Launch launch.Policy
}

// ArgumentFilter selects subscriptions by the arguments of their root field.
// Values, when not Null, must hold an equal value for every registered
// argument. Match, when set, decides instead.
type ArgumentFilter struct {
	Values response.Value
	Match  func(arguments response.Value) bool
}

// DirectiveFilter selects subscriptions by the directives of their root
// field. Values, when not nil, must hold each registered directive with
// equal values for all of its arguments. Match, when set, decides instead.
type DirectiveFilter struct {
	Values Directives
	Match  func(directives Directives) bool
}

// SubscriptionFilter combines an argument and a directive filter.
type SubscriptionFilter struct {
	Arguments  ArgumentFilter
	Directives DirectiveFilter
}

// RequestDeliverParams delivers an event for a root subscription field. Key
// restricts delivery to one subscription and Filter narrows the matches.
// Subscription overrides the object used to resolve the event.
type RequestDeliverParams struct {
	Field        string
	Key          *SubscriptionKey
	Filter       *SubscriptionFilter
	Subscription *Object
	Launch       launch.Policy
}

type subscriptionData struct {
	key      SubscriptionKey
	callback func(response.Value)
	visitor  func(ResolverResult)
	state    any
	launch   launch.Policy

	operationName       string
	field               string
	arguments           response.Value
	fieldDirectives     Directives
	operationDirectives Directives
	fragments           FragmentMap
	variables           response.Value
	selection           language.SelectionSet
}

func (s *subscriptionData) deliver(result ResolverResult) {
	switch {
	case s.visitor != nil:
		s.visitor(result)
	case s.callback != nil:
		s.callback(result.Document())
	}
}

// Subscribe registers a subscription operation and returns its key. When the
// service has a subscription root, it is resolved once with NotifySubscribe
// and any error it reports cancels the registration.
func (r *Request) Subscribe(ctx context.Context, params RequestSubscribeParams) (SubscriptionKey, error) {
	data, err := r.prepareSubscription(params)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	data.key = r.nextKey
	r.nextKey++
	r.subscriptions[data.key] = data
	keys, ok := r.listeners[data.field]
	if !ok {
		keys = make(map[SubscriptionKey]struct{})
		r.listeners[data.field] = keys
	}
	keys[data.key] = struct{}{}
	r.mu.Unlock()

	if r.operations.Subscription != nil {
		result, err := r.resolveSubscription(ctx, data, r.operations.Subscription, NotifySubscribe, params.Launch)
		if err == nil && len(result.Errors) > 0 {
			err = &SchemaError{Errors: result.Errors}
		}
		if err != nil {
			r.removeSubscription(data.key)
			return 0, err
		}
	}

	op := describeOperation(params.Query, params.OperationName)
	publish(ctx, r.bus, events.SubscriptionStart{Operation: op, Key: uint64(data.key), Field: data.field})
	return data.key, nil
}

func (r *Request) prepareSubscription(params RequestSubscribeParams) (*subscriptionData, error) {
	if params.Query == nil {
		return nil, NewSchemaError("Missing query document")
	}
	if errs := r.Validate(params.Query); len(errs) > 0 {
		return nil, &SchemaError{Errors: errs}
	}

	op, err := FindOperationDefinition(params.Query, params.OperationName)
	if err != nil {
		return nil, NewSchemaError(withName("Missing subscription", params.OperationName))
	}
	if op.Operation != language.Subscription {
		return nil, NewSchemaError(withName(fmt.Sprintf("Unexpected operation type: %s", op.Operation), op.Name))
	}

	variables, err := coerceVariables(op, params.Variables)
	if err != nil {
		return nil, err
	}
	operationDirectives, err := visitDirectives(op.Directives, variables)
	if err != nil {
		return nil, err
	}
	fragments, err := collectFragments(params.Query, variables)
	if err != nil {
		return nil, err
	}

	root := &subscriptionRootVisitor{object: r.operations.Subscription, fragments: fragments, variables: variables}
	if err := root.visit(op.SelectionSet); err != nil {
		return nil, err
	}
	if root.field == nil {
		return nil, NewSchemaError(withName("Missing subscription root field", op.Name))
	}

	return &subscriptionData{
		callback:            params.Callback,
		visitor:             params.Visitor,
		state:               params.State,
		launch:              params.Launch,
		operationName:       op.Name,
		field:               root.field.Name,
		arguments:           root.arguments,
		fieldDirectives:     root.directives,
		operationDirectives: operationDirectives,
		fragments:           fragments,
		variables:           variables,
		selection:           op.SelectionSet,
	}, nil
}

// subscriptionRootVisitor finds the single root field of a subscription.
// Fragment type conditions are checked against object when it is set.
type subscriptionRootVisitor struct {
	object    *Object
	fragments FragmentMap
	variables response.Value

	field      *language.Field
	arguments  response.Value
	directives Directives
}

func (v *subscriptionRootVisitor) matches(typeCondition string) bool {
	return v.object == nil || typeCondition == "" || v.object.MatchesType(typeCondition)
}

func (v *subscriptionRootVisitor) skip(directives language.DirectiveList, pos *language.Position) (Directives, bool, error) {
	visited, err := visitDirectives(directives, v.variables)
	if err != nil {
		return nil, false, locateError(err, positionLocation(pos), nil)
	}
	skip, err := visited.ShouldSkip()
	if err != nil {
		return nil, false, locateError(err, positionLocation(pos), nil)
	}
	return visited, skip, nil
}

func (v *subscriptionRootVisitor) visit(set language.SelectionSet) error {
	for _, selection := range set {
		switch sel := selection.(type) {
		case *language.Field:
			directives, skip, err := v.skip(sel.Directives, sel.Position)
			if err != nil {
				return err
			}
			if skip {
				continue
			}
			if v.field != nil {
				return newLocatedError(fmt.Sprintf("Extra subscription root field name: %s", sel.Name),
					positionLocation(sel.Position), nil)
			}
			arguments, err := visitArguments(sel.Arguments, v.variables)
			if err != nil {
				return err
			}
			v.field, v.arguments, v.directives = sel, arguments, directives
		case *language.FragmentSpread:
			fragment, ok := v.fragments[sel.Name]
			if !ok {
				return newLocatedError(fmt.Sprintf("Unknown fragment name: %s", sel.Name),
					positionLocation(sel.Position), nil)
			}
			if !v.matches(fragment.TypeCondition) {
				continue
			}
			if _, skip, err := v.skip(sel.Directives, sel.Position); err != nil {
				return err
			} else if skip {
				continue
			}
			if err := v.visit(fragment.SelectionSet); err != nil {
				return err
			}
		case *language.InlineFragment:
			if _, skip, err := v.skip(sel.Directives, sel.Position); err != nil {
				return err
			} else if skip {
				continue
			}
			if !v.matches(sel.TypeCondition) {
				continue
			}
			if err := v.visit(sel.SelectionSet); err != nil {
				return err
			}
		}
	}
	return nil
}

// Unsubscribe removes a subscription. When the service has a subscription
// root, it is then resolved once with NotifyUnsubscribe. Unknown keys are
// ignored.
func (r *Request) Unsubscribe(ctx context.Context, params RequestUnsubscribeParams) error {
	data, ok := r.removeSubscription(params.Key)
	if !ok {
		return nil
	}

	var err error
	if r.operations.Subscription != nil {
		var result ResolverResult
		result, err = r.resolveSubscription(ctx, data, r.operations.Subscription, NotifyUnsubscribe, params.Launch)
		if err == nil && len(result.Errors) > 0 {
			err = &SchemaError{Errors: result.Errors}
		}
	}

	publish(ctx, r.bus, events.SubscriptionStop{Key: uint64(params.Key), Field: data.field, Err: err})
	return err
}

// removeSubscription claims key, so only one caller sees it as removed.
func (r *Request) removeSubscription(key SubscriptionKey) (*subscriptionData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.subscriptions[key]
	if !ok {
		return nil, false
	}
	delete(r.subscriptions, key)
	if keys, ok := r.listeners[data.field]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(r.listeners, data.field)
		}
	}
	return data, true
}

// SubscriptionCount returns the number of registered subscriptions.
func (r *Request) SubscriptionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscriptions)
}

// Deliver resolves the matching subscriptions of a field, in registration
// order, and passes each result to its callback.
func (r *Request) Deliver(ctx context.Context, params RequestDeliverParams) error {
	start := time.Now()
	object := params.Subscription
	if object == nil {
		object = r.operations.Subscription
	}
	if object == nil {
		return NewSchemaError(withName("Missing subscription", params.Field))
	}

	var delivered int
	var errs []error
	for _, data := range r.matchSubscriptions(params) {
		policy := params.Launch
		if policy == nil {
			policy = data.launch
		}
		result, err := r.resolveSubscription(ctx, data, object, Subscription, policy)
		if err != nil {
			errs = append(errs, err)
			result = failedResult(err)
		}
		data.deliver(result)
		delivered++
	}

	publish(ctx, r.bus, events.SubscriptionDeliver{
		Field:     params.Field,
		Delivered: delivered,
		Errors:    errs,
		Duration:  time.Since(start),
	})
	return errors.Join(errs...)
}

// matchSubscriptions collects the registrations under the lock and applies
// the filters after releasing it.
func (r *Request) matchSubscriptions(params RequestDeliverParams) []*subscriptionData {
	var candidates []*subscriptionData
	r.mu.Lock()
	if params.Key != nil {
		if data, ok := r.subscriptions[*params.Key]; ok && (params.Field == "" || data.field == params.Field) {
			candidates = append(candidates, data)
		}
	} else {
		keys := r.listeners[params.Field]
		sorted := make([]SubscriptionKey, 0, len(keys))
		for key := range keys {
			sorted = append(sorted, key)
		}
		slices.Sort(sorted)
		for _, key := range sorted {
			candidates = append(candidates, r.subscriptions[key])
		}
	}
	r.mu.Unlock()

	if params.Filter == nil {
		return candidates
	}
	matched := candidates[:0]
	for _, data := range candidates {
		if params.Filter.Arguments.matches(data.arguments) && params.Filter.Directives.matches(data.fieldDirectives) {
			matched = append(matched, data)
		}
	}
	return matched
}

func (f ArgumentFilter) matches(arguments response.Value) bool {
	if f.Match != nil {
		return f.Match(arguments)
	}
	return MatchArguments(f.Values, arguments)
}

func (f DirectiveFilter) matches(directives Directives) bool {
	if f.Match != nil {
		return f.Match(directives)
	}
	if f.Values == nil {
		return true
	}
	return MatchDirectives(f.Values, directives)
}

// MatchArguments reports whether filter holds an equal value for every
// argument of a registration. A Null filter matches everything.
func MatchArguments(filter, arguments response.Value) bool {
	if filter.IsNull() {
		return true
	}
	if filter.Type() != response.Map {
		return false
	}
	if arguments.Type() != response.Map {
		return true
	}
	for _, arg := range arguments.Members() {
		value, ok := filter.Find(arg.Name)
		if !ok || !value.Equal(arg.Value) {
			return false
		}
	}
	return true
}

// MatchDirectives reports whether filter holds every directive of a
// registration with matching arguments.
func MatchDirectives(filter, directives Directives) bool {
	for _, d := range directives {
		found, ok := filter.ForName(d.Name)
		if !ok {
			return false
		}
		if !MatchArguments(found.Arguments, d.Arguments) {
			return false
		}
	}
	return true
}

func (r *Request) resolveSubscription(ctx context.Context, data *subscriptionData, object *Object, resolverContext ResolverContext, policy launch.Policy) (ResolverResult, error) {
	if policy == nil {
		policy = r.launch
	}
	return object.Resolve(SelectionSetParams{
		Context:             ctx,
		ResolverContext:     resolverContext,
		State:               data.state,
		OperationDirectives: data.operationDirectives,
		Launch:              policy,
	}, data.selection, data.fragments, data.variables).Await()
}
