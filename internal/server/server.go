// Package server exposes a service.Request over HTTP and websockets.
package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"google.golang.org/grpc/metadata"

	eventbus "github.com/hanpama/gqlservice/internal/eventbus"
	events "github.com/hanpama/gqlservice/internal/events"
	jsonresponse "github.com/hanpama/gqlservice/internal/jsonresponse"
	language "github.com/hanpama/gqlservice/internal/language"
	launch "github.com/hanpama/gqlservice/internal/launch"
	reqid "github.com/hanpama/gqlservice/internal/reqid"
	response "github.com/hanpama/gqlservice/internal/response"
	service "github.com/hanpama/gqlservice/internal/service"
)

// Handler is an http.Handler that serves a GraphQL endpoint.
// Queries and mutations are accepted over GET and POST, subscriptions over
// a websocket upgrade of the same path.
type Handler struct {
	req      *service.Request
	opt      Options
	upgrader websocket.Upgrader
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout. It does not apply to websocket connections.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MetadataHeaders lists HTTP headers copied into the incoming metadata
	// of the resolver context. Header names are case-insensitive.
	MetadataHeaders []string

	// GraphiQL enables the in-browser IDE when true.
	GraphiQL bool

	// State returns the request state passed to resolvers. It is called once
	// per HTTP request and once per websocket operation.
	State func(r *http.Request) any

	// Launch is the launch policy of queries and subscriptions.
	Launch launch.Policy

	// KeepAlive is the interval of websocket keep-alive messages. 0 disables
	// them.
	KeepAlive time.Duration
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithState(f func(r *http.Request) any) Option { return func(o *Options) { o.State = f } }
func WithLaunch(p launch.Policy) Option            { return func(o *Options) { o.Launch = p } }
func WithKeepAlive(d time.Duration) Option         { return func(o *Options) { o.KeepAlive = d } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

func WithGraphiQL(enable bool) Option { return func(o *Options) { o.GraphiQL = enable } }

// New creates a new GraphQL HTTP handler serving req.
func New(req *service.Request, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, GraphiQL: true, KeepAlive: 30 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	h := &Handler{req: req, opt: op}
	h.upgrader = websocket.Upgrader{
		Subprotocols: []string{protocolTransportWS, protocolGraphQLWS},
		CheckOrigin:  h.checkOrigin,
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.serveSocket(w, r)
		return
	}

	ctx, _ := reqid.FromRequest(r)
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Method: r.Method, Path: r.URL.Path, RemoteAddr: r.RemoteAddr})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Method: r.Method, Path: r.URL.Path, Status: status, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		h.writeJSON(w, status, errorDocument("method not allowed"))
		return
	}

	// Serve GraphiQL IDE when enabled and the client expects HTML.
	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, graphiqlPage)
		return
	}

	ctx = h.withMetadata(ctx, r)

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != "" {
		status = http.StatusBadRequest
		if berr == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		h.writeJSON(w, status, errorDocument(berr))
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if batch != nil {
		out := response.NewList(len(batch))
		for i := range batch {
			out.Append(h.executeOne(ctx, r, batch[i]))
		}
		h.writeJSON(w, status, out)
		return
	}

	h.writeJSON(w, status, h.executeOne(ctx, r, req))
}

// withMetadata copies the configured headers and the request id into the
// incoming metadata of ctx.
func (h *Handler) withMetadata(ctx context.Context, r *http.Request) context.Context {
	md := metadata.MD{}
	if len(h.opt.MetadataHeaders) > 0 {
		allowed := make(map[string]struct{}, len(h.opt.MetadataHeaders))
		for _, hdr := range h.opt.MetadataHeaders {
			allowed[strings.ToLower(hdr)] = struct{}{}
		}
		for k, v := range r.Header {
			if _, ok := allowed[strings.ToLower(k)]; ok {
				md[strings.ToLower(k)] = v
			}
		}
	}
	if rid, ok := reqid.FromContext(ctx); ok {
		md["graphql-request-id"] = []string{strconv.FormatInt(rid, 10)}
	}
	return metadata.NewIncomingContext(ctx, md)
}

func (h *Handler) state(r *http.Request) any {
	if h.opt.State == nil {
		return nil
	}
	return h.opt.State(r)
}

func (h *Handler) executeOne(ctx context.Context, r *http.Request, req GraphQLRequest) response.Value {
	doc, variables, err := req.parse()
	if err != nil {
		return service.ResolverResult{Errors: service.ErrorsOf(err)}.Document()
	}
	return h.req.Document(ctx, service.RequestResolveParams{
		Query:         doc,
		OperationName: req.OperationName,
		Variables:     variables,
		State:         h.state(r),
		Launch:        h.opt.Launch,
	})
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string          `json:"query"`
	OperationName string          `json:"operationName,omitempty"`
	Variables     json.RawMessage `json:"variables,omitempty"`
	Extensions    json.RawMessage `json:"extensions,omitempty"`
}

// parse returns the query document and the variables value of req.
func (req GraphQLRequest) parse() (*language.QueryDocument, response.Value, error) {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		return nil, response.Value{}, err
	}
	variables := response.NewMap(0)
	if raw := bytes.TrimSpace(req.Variables); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		variables, err = jsonresponse.Parse(raw)
		if err != nil {
			return nil, response.Value{}, service.NewSchemaError("invalid 'variables' JSON")
		}
		if variables.Type() != response.Map {
			return nil, response.Value{}, service.NewSchemaError("'variables' must be an object")
		}
	}
	return doc, variables, nil
}

func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, string) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, "missing 'query'"
		}
		vars := json.RawMessage(r.URL.Query().Get("variables"))
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, ""
	}

	// POST
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return GraphQLRequest{}, nil, "unsupported Content-Type"
	}
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return GraphQLRequest{}, nil, "failed to read body"
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, nil, errBodyTooLargeMessage
	}

	// Try array (batch)
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var arr []GraphQLRequest
		if err := json.Unmarshal(body, &arr); err != nil {
			return GraphQLRequest{}, nil, "invalid JSON"
		}
		if len(arr) == 0 {
			return GraphQLRequest{}, nil, "empty batch"
		}
		return GraphQLRequest{}, arr, ""
	}
	var req GraphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GraphQLRequest{}, nil, "invalid JSON"
	}
	if req.Query == "" {
		return GraphQLRequest{}, nil, "missing 'query'"
	}
	return req, nil, ""
}

// ------------------ Response formatting ------------------

// errorDocument is a response with null data and a single error.
func errorDocument(message string) response.Value {
	return service.ResolverResult{
		Data:   response.NewStream(response.NullValue()),
		Errors: []service.GraphQLError{{Message: message}},
	}.Document()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v response.Value) {
	body, err := jsonresponse.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = jsonresponse.Marshal(errorDocument(err.Error()))
	}
	if h.opt.Pretty {
		var buf bytes.Buffer
		if json.Indent(&buf, body, "", "  ") == nil {
			body = buf.Bytes()
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

const errBodyTooLargeMessage = "body too large"

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" || !originAllowed(opts, origin) {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func originAllowed(opts CORSOptions, origin string) bool {
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// checkOrigin accepts same-host websocket upgrades and the CORS origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || originAllowed(h.opt.CORS, origin) {
		return true
	}
	return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func acceptsHTML(accept string) bool {
	if accept == "" {
		return false
	}
	parts := strings.Split(accept, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") || p == "*/*" {
			return true
		}
	}
	return false
}
