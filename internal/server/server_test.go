package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	eventbus "github.com/hanpama/gqlservice/internal/eventbus"
	events "github.com/hanpama/gqlservice/internal/events"
	launch "github.com/hanpama/gqlservice/internal/launch"
	reqid "github.com/hanpama/gqlservice/internal/reqid"
	schema "github.com/hanpama/gqlservice/internal/schema"
	service "github.com/hanpama/gqlservice/internal/service"
)

const testSDL = `
type Query {
  hello(name: String): String
}

type Subscription {
  greetings(to: String): String
}
`

func helloResolver(p service.ResolverParams) *launch.Future[service.ResolverResult] {
	name, ok, err := service.FindArgument(p.Arguments, "name", service.NullableOf(service.ConvertString))
	if err != nil {
		return launch.Failed[service.ResolverResult](err)
	}
	if !ok || name == nil {
		return service.ResolveString(p, launch.Ready("world"))
	}
	return service.ResolveString(p, launch.Ready("hello "+*name))
}

func newTestRequest(t *testing.T, hello service.Resolver) *service.Request {
	t.Helper()
	sch, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	if hello == nil {
		hello = helloResolver
	}
	return service.NewRequest(service.Operations{
		Query: service.NewObject([]string{"Query"}, service.ResolverMap{"hello": hello}),
		Subscription: service.NewObject([]string{"Subscription"}, service.ResolverMap{
			"greetings": func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
				return service.ResolveString(p, launch.Ready(""))
			},
		}),
	}, sch)
}

func newTestHandler(t *testing.T, hello service.Resolver, opts ...Option) *Handler {
	t.Helper()
	return New(newTestRequest(t, hello), opts...)
}

func post(t *testing.T, h http.Handler, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) any {
	t.Helper()
	var out any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func capturingResolver(md *metadata.MD, rid *int64) service.Resolver {
	return func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
		*md, _ = metadata.FromIncomingContext(p.Context)
		if rid != nil {
			*rid, _ = reqid.FromContext(p.Context)
		}
		return service.ResolveString(p, launch.Ready("world"))
	}
}

func TestForwardedHeaders(t *testing.T) {
	var captured metadata.MD
	h := newTestHandler(t, capturingResolver(&captured, nil), WithMetadataHeaders("X-Test"))

	w := post(t, h, `{"query":"{ hello }"}`, "X-Test", "abc", "X-Other", "nope")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if captured == nil || captured.Get("x-test")[0] != "abc" || len(captured.Get("x-other")) > 0 {
		t.Fatalf("metadata not propagated correctly: %v", captured)
	}
}

func TestForwardedHeadersDefaultEmpty(t *testing.T) {
	var captured metadata.MD
	h := newTestHandler(t, capturingResolver(&captured, nil))

	w := post(t, h, `{"query":"{ hello }"}`, "X-Test", "abc")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if len(captured.Get("x-test")) > 0 {
		t.Fatalf("header should not be forwarded by default: %v", captured)
	}
}

func TestCORSAndPreflight(t *testing.T) {
	h := newTestHandler(t, nil, WithCORS("*"))

	// simple request
	w := post(t, h, `{"query":"{ hello }"}`, "Origin", "http://example.com")
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	// preflight
	pre := httptest.NewRequest("OPTIONS", "/", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	if pw.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", pw.Code)
	}
	if pw.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight missing CORS header")
	}
	if pw.Header().Get("Access-Control-Allow-Headers") != "X-Test" {
		t.Fatalf("preflight missing allow headers")
	}
}

func TestMaxBodyBytes(t *testing.T) {
	h := newTestHandler(t, nil, WithMaxBodyBytes(10))

	w := post(t, h, `{"query":"1234567890"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	var captured metadata.MD
	var capturedID int64
	h := newTestHandler(t, capturingResolver(&captured, &capturedID))

	w := post(t, h, `{"query":"{ hello }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotZero(t, capturedID)
	require.Len(t, captured.Get("graphql-request-id"), 1)

	w = post(t, h, `{"query":"{ hello }"}`, reqid.Header, "77")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, int64(77), capturedID)
	require.Equal(t, []string{"77"}, captured.Get("graphql-request-id"))
}

// Pattern: Result comparison
func TestServeHTTP_Result(t *testing.T) {
	h := newTestHandler(t, nil)
	get := func(query, variables string) *httptest.ResponseRecorder {
		v := url.Values{"query": {query}}
		if variables != "" {
			v.Set("variables", variables)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/?"+v.Encode(), nil))
		return w
	}

	tests := []struct {
		name   string
		run    func() *httptest.ResponseRecorder
		status int
		want   any
	}{
		{
			name:   "post with variables",
			run:    func() *httptest.ResponseRecorder { return post(t, h, `{"query":"query ($n: String) { hello(name: $n) }","variables":{"n":"Ann"}}`) },
			status: http.StatusOK,
			want:   map[string]any{"data": map[string]any{"hello": "hello Ann"}},
		},
		{
			name:   "get",
			run:    func() *httptest.ResponseRecorder { return get(`query ($n: String) { hello(name: $n) }`, `{"n":"Bob"}`) },
			status: http.StatusOK,
			want:   map[string]any{"data": map[string]any{"hello": "hello Bob"}},
		},
		{
			name:   "batch",
			run:    func() *httptest.ResponseRecorder { return post(t, h, `[{"query":"{ hello }"},{"query":"{ a: hello(name: \"x\") }"}]`) },
			status: http.StatusOK,
			want: []any{
				map[string]any{"data": map[string]any{"hello": "world"}},
				map[string]any{"data": map[string]any{"a": "hello x"}},
			},
		},
		{
			name:   "variables not an object",
			run:    func() *httptest.ResponseRecorder { return post(t, h, `{"query":"{ hello }","variables":[1]}`) },
			status: http.StatusOK,
			want:   map[string]any{"errors": []any{map[string]any{"message": "'variables' must be an object"}}},
		},
		{
			name:   "subscription over http",
			run:    func() *httptest.ResponseRecorder { return post(t, h, `{"query":"subscription S { greetings }"}`) },
			status: http.StatusOK,
			want: map[string]any{"data": nil, "errors": []any{map[string]any{
				"message": "Unexpected subscription name: S",
			}}},
		},
		{
			name:   "missing query",
			run:    func() *httptest.ResponseRecorder { return post(t, h, `{}`) },
			status: http.StatusBadRequest,
			want:   map[string]any{"data": nil, "errors": []any{map[string]any{"message": "missing 'query'"}}},
		},
		{
			name:   "invalid json",
			run:    func() *httptest.ResponseRecorder { return post(t, h, `{"query":`) },
			status: http.StatusBadRequest,
			want:   map[string]any{"data": nil, "errors": []any{map[string]any{"message": "invalid JSON"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.run()
			require.Equal(t, tt.status, w.Code)
			if diff := cmp.Diff(tt.want, decode(t, w)); diff != "" {
				t.Fatalf("response mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSyntaxErrorKeepsLocation(t *testing.T) {
	h := newTestHandler(t, nil)

	w := post(t, h, `{"query":"{\n  hello(\n}"}`)
	require.Equal(t, http.StatusOK, w.Code)
	doc := decode(t, w).(map[string]any)
	_, hasData := doc["data"]
	require.False(t, hasData, "syntax errors carry no data")
	errs := doc["errors"].([]any)
	require.Len(t, errs, 1)
	locations := errs[0].(map[string]any)["locations"].([]any)
	require.Equal(t, 3.0, locations[0].(map[string]any)["line"])
}

func TestMethodAndContentType(t *testing.T) {
	h := newTestHandler(t, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("PUT", "/", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	req := httptest.NewRequest("POST", "/", strings.NewReader("{ hello }"))
	req.Header.Set("Content-Type", "application/graphql")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "unsupported Content-Type")
}

func TestGraphiQLAndPretty(t *testing.T) {
	h := newTestHandler(t, nil, WithPretty())

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	require.Contains(t, w.Body.String(), "GraphiQL")

	w = post(t, h, `{"query":"{ hello }"}`)
	require.Equal(t, "{\n  \"data\": {\n    \"hello\": \"world\"\n  }\n}\n", w.Body.String())

	off := newTestHandler(t, nil, WithGraphiQL(false))
	w = httptest.NewRecorder()
	off.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

// Pattern: Call recording
func TestServeHTTP_PublishesEvents_Calls(t *testing.T) {
	prev := eventbus.Global()
	t.Cleanup(func() { eventbus.Use(prev) })
	b := eventbus.New()
	eventbus.Use(b)

	var calls []string
	var finish events.HTTPFinish
	eventbus.SubscribeTo(b, func(ctx context.Context, e events.HTTPStart) {
		id, _ := reqid.FromContext(ctx)
		require.Equal(t, int64(5), id)
		calls = append(calls, "start "+e.Method+" "+e.Path)
	})
	eventbus.SubscribeTo(b, func(_ context.Context, e events.GraphQLFinish) {
		calls = append(calls, "graphql "+e.Type)
	})
	eventbus.SubscribeTo(b, func(_ context.Context, e events.HTTPFinish) {
		finish = e
		calls = append(calls, "finish")
	})

	req := newTestRequest(t, nil)
	h := New(req)
	post(t, h, `{"query":"{ hello }"}`, reqid.Header, "5")

	if diff := cmp.Diff([]string{"start POST /", "graphql query", "finish"}, calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, http.StatusOK, finish.Status)
}
