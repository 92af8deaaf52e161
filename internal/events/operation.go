package events

import "time"

// Operation identifies a GraphQL operation: its source text, name and type
// (query, mutation or subscription). Name and Type may be empty when the
// document could not be resolved to an operation.
type Operation struct {
	Query string
	Name  string
	Type  string
}

// GraphQLStart is emitted before executing a GraphQL operation.
type GraphQLStart struct {
	Operation
}

// GraphQLFinish is emitted after executing a GraphQL operation.
type GraphQLFinish struct {
	Operation
	Errors   []error
	Duration time.Duration
}

// SubscriptionStart is emitted once a subscription has been registered.
type SubscriptionStart struct {
	Operation
	Key   uint64
	Field string
}

// SubscriptionStop is emitted after a subscription has been removed.
type SubscriptionStop struct {
	Key   uint64
	Field string
	Err   error
}

// SubscriptionDeliver is emitted after an event has been resolved for every
// matching subscription of a field.
type SubscriptionDeliver struct {
	Field     string
	Delivered int
	Errors    []error
	Duration  time.Duration
}
