// Package reqid keeps a request id in a context so that events published
// for one request or websocket connection can be correlated.
package reqid

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
)

// Header carries a request id supplied by the client or a proxy.
const Header = "X-Request-Id"

type key struct{}

// NewContext returns a copy of parent holding a new random id.
func NewContext(parent context.Context) (context.Context, int64) {
	id := rand.Int64()
	return WithID(parent, id), id
}

// WithID returns a copy of parent holding id.
func WithID(parent context.Context, id int64) context.Context {
	return context.WithValue(parent, key{}, id)
}

// FromContext extracts the request id from ctx.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(key{}).(int64)
	return id, ok
}

// FromRequest returns a context holding the id from the request header when
// it is a positive integer, otherwise a new random id.
func FromRequest(r *http.Request) (context.Context, int64) {
	if id, err := strconv.ParseInt(r.Header.Get(Header), 10, 64); err == nil && id > 0 {
		return WithID(r.Context(), id), id
	}
	return NewContext(r.Context())
}
