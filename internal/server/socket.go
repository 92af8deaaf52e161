package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	eventbus "github.com/hanpama/gqlservice/internal/eventbus"
	events "github.com/hanpama/gqlservice/internal/events"
	jsonresponse "github.com/hanpama/gqlservice/internal/jsonresponse"
	language "github.com/hanpama/gqlservice/internal/language"
	reqid "github.com/hanpama/gqlservice/internal/reqid"
	response "github.com/hanpama/gqlservice/internal/response"
	service "github.com/hanpama/gqlservice/internal/service"
)

const (
	protocolTransportWS = "graphql-transport-ws"
	protocolGraphQLWS   = "graphql-ws"

	writeTimeout = 10 * time.Second
)

// message is the envelope of both websocket subprotocols.
type message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// dialect names the message types which differ between subprotocols.
type dialect struct {
	start     string
	stop      string
	next      string
	keepAlive string
}

var dialects = map[string]dialect{
	protocolTransportWS: {start: "subscribe", stop: "complete", next: "next", keepAlive: "ping"},
	protocolGraphQLWS:   {start: "start", stop: "stop", next: "data", keepAlive: "ka"},
}

// socket serves the operations of one websocket connection. Messages are
// read and executed on the connection goroutine; a second goroutine owns
// all writes.
type socket struct {
	h       *Handler
	r       *http.Request
	ctx     context.Context
	conn    *websocket.Conn
	dialect dialect
	out     chan message
	done    chan struct{}

	mu   sync.Mutex
	subs map[string]service.SubscriptionKey
}

func (h *Handler) serveSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ctx, _ := reqid.FromRequest(r)
	ctx = h.withMetadata(ctx, r)

	protocol := conn.Subprotocol()
	d, ok := dialects[protocol]
	if !ok {
		d = dialects[protocolTransportWS]
	}
	s := &socket{
		h:       h,
		r:       r,
		ctx:     ctx,
		conn:    conn,
		dialect: d,
		out:     make(chan message, 32),
		done:    make(chan struct{}),
		subs:    make(map[string]service.SubscriptionKey),
	}

	start := time.Now()
	eventbus.Publish(ctx, events.SocketOpen{RemoteAddr: r.RemoteAddr, Protocol: protocol})

	var g errgroup.Group
	g.Go(s.writeLoop)
	err = s.readLoop()
	stopped := s.stopAll()
	close(s.done)
	if werr := g.Wait(); werr != nil {
		err = werr
	}
	_ = conn.Close()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		err = nil
	}

	eventbus.Publish(ctx, events.SocketClose{
		RemoteAddr:    r.RemoteAddr,
		Subscriptions: stopped,
		Duration:      time.Since(start),
		Err:           err,
	})
}

func (s *socket) readLoop() error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("invalid message: %w", err)
		}
		switch msg.Type {
		case "connection_init":
			s.send(message{Type: "connection_ack"})
		case "ping":
			s.send(message{Type: "pong"})
		case "pong":
		case "connection_terminate":
			return nil
		case s.dialect.start:
			s.start(msg)
		case s.dialect.stop:
			s.stop(msg.ID)
		default:
			return fmt.Errorf("unexpected message type %q", msg.Type)
		}
	}
}

// start runs a query or mutation to completion, or registers a
// subscription which sends one message per delivered event.
func (s *socket) start(msg message) {
	var req GraphQLRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		s.sendErrors(msg.ID, []service.GraphQLError{{Message: "invalid JSON"}})
		return
	}
	doc, variables, err := req.parse()
	if err != nil {
		s.sendErrors(msg.ID, service.ErrorsOf(err))
		return
	}

	op, err := service.FindOperationDefinition(doc, req.OperationName)
	if err != nil || op.Operation != language.Subscription {
		s.sendDocument(msg.ID, s.h.req.Document(s.ctx, service.RequestResolveParams{
			Query:         doc,
			OperationName: req.OperationName,
			Variables:     variables,
			State:         s.h.state(s.r),
			Launch:        s.h.opt.Launch,
		}))
		s.send(message{ID: msg.ID, Type: "complete"})
		return
	}

	id := msg.ID
	s.mu.Lock()
	_, exists := s.subs[id]
	s.mu.Unlock()
	if exists {
		s.sendErrors(id, []service.GraphQLError{{Message: "Subscriber for " + id + " already exists"}})
		return
	}
	key, err := s.h.req.Subscribe(s.ctx, service.RequestSubscribeParams{
		Callback:      func(doc response.Value) { s.sendDocument(id, doc) },
		Query:         doc,
		OperationName: req.OperationName,
		Variables:     variables,
		State:         s.h.state(s.r),
		Launch:        s.h.opt.Launch,
	})
	if err != nil {
		s.sendErrors(id, service.ErrorsOf(err))
		return
	}
	s.mu.Lock()
	s.subs[id] = key
	s.mu.Unlock()
}

func (s *socket) stop(id string) {
	s.mu.Lock()
	key, ok := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()
	if ok {
		_ = s.h.req.Unsubscribe(s.ctx, service.RequestUnsubscribeParams{Key: key, Launch: s.h.opt.Launch})
	}
}

// stopAll removes the remaining subscriptions and returns how many there
// were.
func (s *socket) stopAll() int {
	s.mu.Lock()
	ids := make([]string, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.stop(id)
	}
	return len(ids)
}

func (s *socket) sendDocument(id string, doc response.Value) {
	body, err := jsonresponse.Marshal(doc)
	if err != nil {
		s.sendErrors(id, []service.GraphQLError{{Message: err.Error()}})
		return
	}
	s.send(message{ID: id, Type: s.dialect.next, Payload: body})
}

func (s *socket) sendErrors(id string, errs []service.GraphQLError) {
	body, err := jsonresponse.MarshalStream(service.ErrorStream(errs))
	if err != nil {
		return
	}
	s.send(message{ID: id, Type: "error", Payload: body})
}

// send queues msg for the writer. Messages sent after the connection ended
// are dropped.
func (s *socket) send(msg message) {
	select {
	case s.out <- msg:
	case <-s.done:
	}
}

func (s *socket) writeLoop() error {
	var tick <-chan time.Time
	if s.h.opt.KeepAlive > 0 {
		t := time.NewTicker(s.h.opt.KeepAlive)
		defer t.Stop()
		tick = t.C
	}
	for {
		var msg message
		select {
		case msg = <-s.out:
		case <-tick:
			msg = message{Type: s.dialect.keepAlive}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return nil
		}
		data, err := json.Marshal(msg)
		if err == nil {
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err = s.conn.WriteMessage(websocket.TextMessage, data)
		}
		if err != nil {
			// unblocks the reader
			_ = s.conn.Close()
			return err
		}
	}
}
