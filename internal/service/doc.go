// Package service implements a resolver-driven GraphQL execution core with
// pluggable launch policies, located errors and a subscription registry.
//
// # Overview
//
// A service is a set of root Objects. An Object is a set of type names (the
// concrete type first, then the interfaces and unions it belongs to) plus a
// ResolverMap from field names to Resolvers. Resolvers receive ResolverParams
// and return a launch.Future of a ResolverResult: a response.Stream holding
// the field value and the errors produced below it.
//
// Execution is driven by a Request:
//  1. The document is validated. Validation errors are returned without data.
//  2. The operation is selected by name, or by uniqueness when unnamed.
//  3. Variables are filtered against the operation's variable definitions.
//     Missing values take the default literal; missing Non-Null variables
//     without a default stop execution.
//  4. Operation directives and fragment definitions are evaluated.
//  5. The root Object resolves the operation's selection set.
//
// # Selection sets
//
// Object.Resolve walks a selection set in document order:
//   - Fields are keyed by response name. The first field with a name wins and
//     later ones are ignored; validation guarantees they can be merged.
//   - @skip and @include are applied to fields, fragment spreads and inline
//     fragments. @skip is checked first; only the first occurrence of each is
//     read.
//   - Fragment spreads and inline fragments apply when their type condition is
//     one of the Object's type names. The directives of enclosing fragments are
//     exposed to resolvers through the DirectiveStack fields of the params.
//   - A field without a resolver yields a located "Unknown field" error and a
//     null value. The remaining fields are still resolved.
//
// All resolvers of a selection set are started before any result is awaited,
// so a launch policy running tasks concurrently lets sibling fields overlap.
// The results are spliced into the parent's stream in document order.
//
// # Mutations
//
// The root selection set of a mutation runs serially: each resolver is invoked
// only after the previous root field has completed, and the whole operation
// runs under launch.Sync.
//
// # Errors
//
// Resolvers report errors by failing their Future or by panicking. A
// *SchemaError keeps its messages and gains the location and path of the
// field when it lacks them. Any other error becomes
// "Field error name: X unknown error: Y". Either way the field is null and
// its siblings are unaffected. Error paths are kept as a FieldPath chain and
// only flattened when an error is reported.
//
// # Converters
//
// ArgumentConverters read typed Go values out of argument Maps and
// ResultConverters turn Futures of Go values into field results. They compose:
// ResolveList(ResolveNullable(ResolveString)) resolves a [String] field.
//
// # Subscriptions
//
// Subscribe registers an operation with exactly one root field and returns a
// SubscriptionKey. Deliver resolves the registrations of a field, optionally
// narrowed by key or by a SubscriptionFilter over arguments and directives,
// and hands each result to the registration's callback. Registrations are
// visited in key order. The subscription root, when present, is also resolved
// with NotifySubscribe and NotifyUnsubscribe when a registration is added or
// removed.
//
// # Stitching
//
// Request.Stitch combines two services. Root Objects are stitched with
// Object.StitchObject, where fields of the first service win, and the schemas
// with schema.Schema.Stitch. Introspection of the result describes the
// stitched schema.
package service
