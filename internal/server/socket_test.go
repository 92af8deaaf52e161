package server

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	eventbus "github.com/hanpama/gqlservice/internal/eventbus"
	events "github.com/hanpama/gqlservice/internal/events"
	launch "github.com/hanpama/gqlservice/internal/launch"
	service "github.com/hanpama/gqlservice/internal/service"
)

// received is a server message with its payload decoded.
type received struct {
	ID      string
	Type    string
	Payload any
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, h *Handler, protocol string) *client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	dialer := websocket.Dialer{Subprotocols: []string{protocol}}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Equal(t, protocol, conn.Subprotocol())
	return &client{t: t, conn: conn}
}

func (c *client) write(id, typ string, payload any) {
	c.t.Helper()
	msg := map[string]any{"type": typ}
	if id != "" {
		msg["id"] = id
	}
	if payload != nil {
		msg["payload"] = payload
	}
	data, err := json.Marshal(msg)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, data))
}

func (c *client) read() received {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	var msg struct {
		ID      string          `json:"id"`
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(c.t, json.Unmarshal(data, &msg))
	out := received{ID: msg.ID, Type: msg.Type}
	if len(msg.Payload) > 0 {
		require.NoError(c.t, json.Unmarshal(msg.Payload, &out.Payload))
	}
	return out
}

func (c *client) init() {
	c.t.Helper()
	c.write("", "connection_init", nil)
	require.Equal(c.t, received{Type: "connection_ack"}, c.read())
}

func deliverGreeting(t *testing.T, req *service.Request, text string) {
	t.Helper()
	require.NoError(t, req.Deliver(context.Background(), service.RequestDeliverParams{
		Field: "greetings",
		Subscription: service.NewObject([]string{"Subscription"}, service.ResolverMap{
			"greetings": func(p service.ResolverParams) *launch.Future[service.ResolverResult] {
				return service.ResolveString(p, launch.Ready(text))
			},
		}),
	}))
}

func greeting(id, typ, text string) received {
	return received{ID: id, Type: typ, Payload: map[string]any{"data": map[string]any{"greetings": text}}}
}

// Pattern: Result comparison
func TestSocket_TransportWS_Result(t *testing.T) {
	req := newTestRequest(t, nil)
	c := dial(t, New(req, WithKeepAlive(0)), protocolTransportWS)
	c.init()

	c.write("", "ping", nil)
	require.Equal(t, received{Type: "pong"}, c.read())

	c.write("1", "subscribe", map[string]any{"query": "subscription { greetings }"})
	require.Eventually(t, func() bool { return req.SubscriptionCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	deliverGreeting(t, req, "hi")
	if diff := cmp.Diff(greeting("1", "next", "hi"), c.read()); diff != "" {
		t.Fatalf("next mismatch (-want +got):\n%s", diff)
	}

	c.write("2", "subscribe", map[string]any{
		"query":     "query ($n: String) { hello(name: $n) }",
		"variables": map[string]any{"n": "Ann"},
	})
	want := []received{
		{ID: "2", Type: "next", Payload: map[string]any{"data": map[string]any{"hello": "hello Ann"}}},
		{ID: "2", Type: "complete"},
	}
	got := []received{c.read(), c.read()}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("query mismatch (-want +got):\n%s", diff)
	}

	c.write("1", "complete", nil)
	require.Eventually(t, func() bool { return req.SubscriptionCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

// Pattern: Result comparison
func TestSocket_GraphQLWS_Result(t *testing.T) {
	req := newTestRequest(t, nil)
	c := dial(t, New(req, WithKeepAlive(0)), protocolGraphQLWS)
	c.init()

	c.write("a", "start", map[string]any{"query": "subscription { greetings }"})
	require.Eventually(t, func() bool { return req.SubscriptionCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	deliverGreeting(t, req, "hey")
	if diff := cmp.Diff(greeting("a", "data", "hey"), c.read()); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}

	c.write("a", "stop", nil)
	require.Eventually(t, func() bool { return req.SubscriptionCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestSocket_Errors(t *testing.T) {
	req := newTestRequest(t, nil)
	c := dial(t, New(req, WithKeepAlive(0)), protocolTransportWS)
	c.init()

	c.write("1", "subscribe", map[string]any{"query": "subscription { missing }"})
	got := c.read()
	require.Equal(t, "1", got.ID)
	require.Equal(t, "error", got.Type)
	require.Len(t, got.Payload, 1)

	c.write("2", "subscribe", map[string]any{"query": "subscription { greetings }"})
	require.Eventually(t, func() bool { return req.SubscriptionCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	c.write("2", "subscribe", map[string]any{"query": "subscription { greetings }"})
	want := received{ID: "2", Type: "error", Payload: []any{map[string]any{"message": "Subscriber for 2 already exists"}}}
	if diff := cmp.Diff(want, c.read()); diff != "" {
		t.Fatalf("duplicate mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 1, req.SubscriptionCount())
}

// Pattern: Call recording
func TestSocket_CloseStopsSubscriptions_Calls(t *testing.T) {
	prev := eventbus.Global()
	t.Cleanup(func() { eventbus.Use(prev) })
	b := eventbus.New()
	eventbus.Use(b)

	calls := make(chan string, 8)
	eventbus.SubscribeTo(b, func(_ context.Context, e events.SocketOpen) { calls <- "open " + e.Protocol })
	eventbus.SubscribeTo(b, func(_ context.Context, e events.SubscriptionStart) { calls <- "start " + e.Field })
	eventbus.SubscribeTo(b, func(_ context.Context, e events.SubscriptionStop) { calls <- "stop " + e.Field })
	eventbus.SubscribeTo(b, func(_ context.Context, e events.SocketClose) {
		calls <- fmt.Sprintf("close %d %v", e.Subscriptions, e.Err)
	})

	req := newTestRequest(t, nil)
	c := dial(t, New(req, WithKeepAlive(0)), protocolTransportWS)
	c.init()
	c.write("1", "subscribe", map[string]any{"query": "subscription { greetings }"})
	require.Eventually(t, func() bool { return req.SubscriptionCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	var got []string
	for len(got) < 4 {
		select {
		case call := <-calls:
			got = append(got, call)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %v", got)
		}
	}
	want := []string{"open graphql-transport-ws", "start greetings", "stop greetings", "close 1 <nil>"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 0, req.SubscriptionCount())
}
