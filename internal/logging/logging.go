// Package logging writes service lifecycle events to a zap logger.
package logging

import (
	"context"

	eventbus "github.com/hanpama/gqlservice/internal/eventbus"
	events "github.com/hanpama/gqlservice/internal/events"
	reqid "github.com/hanpama/gqlservice/internal/reqid"

	"go.uber.org/zap"
)

// Setup subscribes log to the global event bus.
func Setup(log *zap.Logger) (unregister func()) {
	return Register(eventbus.Global(), log)
}

// Register subscribes log to the events published on b and returns a
// function removing the subscriptions. Transport events are logged at info
// level, subscription traffic at debug level.
func Register(b *eventbus.Bus, log *zap.Logger) (unregister func()) {
	l := &logger{log: log}
	unsubscribes := []func(){
		eventbus.SubscribeTo(b, l.httpFinish),
		eventbus.SubscribeTo(b, l.socketOpen),
		eventbus.SubscribeTo(b, l.socketClose),
		eventbus.SubscribeTo(b, l.graphqlFinish),
		eventbus.SubscribeTo(b, l.subscriptionStart),
		eventbus.SubscribeTo(b, l.subscriptionStop),
		eventbus.SubscribeTo(b, l.subscriptionDeliver),
	}
	return func() {
		for _, u := range unsubscribes {
			u()
		}
	}
}

type logger struct {
	log *zap.Logger
}

func (l *logger) with(ctx context.Context) *zap.Logger {
	if id, ok := reqid.FromContext(ctx); ok {
		return l.log.With(zap.Int64("rid", id))
	}
	return l.log
}

func (l *logger) httpFinish(ctx context.Context, e events.HTTPFinish) {
	l.with(ctx).Info("http request",
		zap.String("method", e.Method),
		zap.String("path", e.Path),
		zap.Int("status", e.Status),
		zap.Duration("duration", e.Duration),
	)
}

func (l *logger) socketOpen(ctx context.Context, e events.SocketOpen) {
	l.with(ctx).Info("websocket open",
		zap.String("remote", e.RemoteAddr),
		zap.String("protocol", e.Protocol),
	)
}

func (l *logger) socketClose(ctx context.Context, e events.SocketClose) {
	fields := []zap.Field{
		zap.String("remote", e.RemoteAddr),
		zap.Int("subscriptions", e.Subscriptions),
		zap.Duration("duration", e.Duration),
	}
	if e.Err != nil {
		l.with(ctx).Warn("websocket closed", append(fields, zap.Error(e.Err))...)
		return
	}
	l.with(ctx).Info("websocket closed", fields...)
}

func (l *logger) graphqlFinish(ctx context.Context, e events.GraphQLFinish) {
	fields := []zap.Field{
		zap.String("operation", e.Name),
		zap.String("type", e.Type),
		zap.Duration("duration", e.Duration),
	}
	if len(e.Errors) > 0 {
		l.with(ctx).Warn("graphql operation", append(fields, zap.Errors("errors", e.Errors))...)
		return
	}
	l.with(ctx).Info("graphql operation", fields...)
}

func (l *logger) subscriptionStart(ctx context.Context, e events.SubscriptionStart) {
	l.with(ctx).Debug("subscription started",
		zap.Uint64("key", e.Key),
		zap.String("field", e.Field),
		zap.String("operation", e.Name),
	)
}

func (l *logger) subscriptionStop(ctx context.Context, e events.SubscriptionStop) {
	fields := []zap.Field{zap.Uint64("key", e.Key), zap.String("field", e.Field)}
	if e.Err != nil {
		l.with(ctx).Warn("subscription stopped", append(fields, zap.Error(e.Err))...)
		return
	}
	l.with(ctx).Debug("subscription stopped", fields...)
}

func (l *logger) subscriptionDeliver(ctx context.Context, e events.SubscriptionDeliver) {
	fields := []zap.Field{
		zap.String("field", e.Field),
		zap.Int("delivered", e.Delivered),
		zap.Duration("duration", e.Duration),
	}
	if len(e.Errors) > 0 {
		l.with(ctx).Warn("subscription delivery", append(fields, zap.Errors("errors", e.Errors))...)
		return
	}
	l.with(ctx).Debug("subscription delivery", fields...)
}
