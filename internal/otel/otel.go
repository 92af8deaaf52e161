// Package otel turns service lifecycle events into OpenTelemetry spans.
package otel

import (
	"context"
	"sync"
	"time"

	eventbus "github.com/hanpama/gqlservice/internal/eventbus"
	events "github.com/hanpama/gqlservice/internal/events"
	reqid "github.com/hanpama/gqlservice/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const tracerName = "gqlservice"

// Setup exports spans over OTLP/gRPC to endpoint and subscribes to the
// global event bus. If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unregister := Register(eventbus.Global(), tp.Tracer(tracerName))
	return func(ctx context.Context) error {
		unregister()
		return tp.Shutdown(ctx)
	}, nil
}

type subscriber struct {
	tracer       trace.Tracer
	httpSpans    sync.Map // rid -> trace.Span
	socketSpans  sync.Map // rid -> trace.Span
	gqlSpans     sync.Map // rid -> trace.Span
	subscription sync.Map // subscription key -> trace.Span
}

// Register attaches span subscribers to b and returns a function removing
// them.
func Register(b *eventbus.Bus, tracer trace.Tracer) (unregister func()) {
	s := &subscriber{tracer: tracer}
	unsubscribes := []func(){
		eventbus.SubscribeTo(b, s.httpStart),
		eventbus.SubscribeTo(b, s.httpFinish),
		eventbus.SubscribeTo(b, s.socketOpen),
		eventbus.SubscribeTo(b, s.socketClose),
		eventbus.SubscribeTo(b, s.graphqlStart),
		eventbus.SubscribeTo(b, s.graphqlFinish),
		eventbus.SubscribeTo(b, s.subscriptionStart),
		eventbus.SubscribeTo(b, s.subscriptionStop),
		eventbus.SubscribeTo(b, s.subscriptionDeliver),
	}
	return func() {
		for _, u := range unsubscribes {
			u()
		}
	}
}

// parent returns ctx carrying the innermost open span of the request.
func (s *subscriber) parent(ctx context.Context, maps ...*sync.Map) context.Context {
	rid, _ := reqid.FromContext(ctx)
	for _, m := range maps {
		if v, ok := m.Load(rid); ok {
			return trace.ContextWithSpan(ctx, v.(trace.Span))
		}
	}
	return ctx
}

func end(m *sync.Map, key any, fn func(trace.Span)) {
	v, ok := m.LoadAndDelete(key)
	if !ok {
		return
	}
	span := v.(trace.Span)
	fn(span)
	span.End()
}

func recordErrors(span trace.Span, errs []error) {
	span.SetAttributes(attribute.Int("graphql.error_count", len(errs)))
	for _, err := range errs {
		span.RecordError(err)
	}
	if len(errs) > 0 {
		span.SetStatus(codes.Error, errs[0].Error())
	}
}

func (s *subscriber) httpStart(ctx context.Context, e events.HTTPStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		semconv.HTTPMethodKey.String(e.Method),
		attribute.String("http.target", e.Path),
		attribute.String("net.peer.addr", e.RemoteAddr),
	)
	s.httpSpans.Store(rid, span)
}

func (s *subscriber) httpFinish(ctx context.Context, e events.HTTPFinish) {
	rid, _ := reqid.FromContext(ctx)
	end(&s.httpSpans, rid, func(span trace.Span) {
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		if e.Status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	})
}

func (s *subscriber) socketOpen(ctx context.Context, e events.SocketOpen) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(s.parent(ctx, &s.httpSpans), "websocket.connection")
	span.SetAttributes(
		attribute.String("net.peer.addr", e.RemoteAddr),
		attribute.String("websocket.protocol", e.Protocol),
	)
	s.socketSpans.Store(rid, span)
}

func (s *subscriber) socketClose(ctx context.Context, e events.SocketClose) {
	rid, _ := reqid.FromContext(ctx)
	end(&s.socketSpans, rid, func(span trace.Span) {
		span.SetAttributes(attribute.Int("graphql.subscription_count", e.Subscriptions))
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
	})
}

func operationAttributes(op events.Operation) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("graphql.operation.name", op.Name),
		attribute.String("graphql.operation.type", op.Type),
		attribute.String("graphql.document", op.Query),
	}
}

func (s *subscriber) graphqlStart(ctx context.Context, e events.GraphQLStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(s.parent(ctx, &s.socketSpans, &s.httpSpans), "graphql.operation")
	span.SetAttributes(operationAttributes(e.Operation)...)
	s.gqlSpans.Store(rid, span)
}

func (s *subscriber) graphqlFinish(ctx context.Context, e events.GraphQLFinish) {
	rid, _ := reqid.FromContext(ctx)
	end(&s.gqlSpans, rid, func(span trace.Span) {
		recordErrors(span, e.Errors)
	})
}

func (s *subscriber) subscriptionStart(ctx context.Context, e events.SubscriptionStart) {
	_, span := s.tracer.Start(s.parent(ctx, &s.socketSpans, &s.httpSpans), "graphql.subscription")
	span.SetAttributes(operationAttributes(e.Operation)...)
	span.SetAttributes(
		attribute.Int64("graphql.subscription.key", int64(e.Key)),
		attribute.String("graphql.subscription.field", e.Field),
	)
	s.subscription.Store(e.Key, span)
}

func (s *subscriber) subscriptionStop(_ context.Context, e events.SubscriptionStop) {
	end(&s.subscription, e.Key, func(span trace.Span) {
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
	})
}

func (s *subscriber) subscriptionDeliver(ctx context.Context, e events.SubscriptionDeliver) {
	_, span := s.tracer.Start(ctx, "graphql.subscription.deliver",
		trace.WithTimestamp(time.Now().Add(-e.Duration)))
	span.SetAttributes(
		attribute.String("graphql.subscription.field", e.Field),
		attribute.Int("graphql.subscription.delivered", e.Delivered),
	)
	recordErrors(span, e.Errors)
	span.End()
}
