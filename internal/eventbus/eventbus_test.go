package eventbus

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type ping struct{ N int }
type pong struct{ N int }

// Pattern: Call recording
func TestBus_DispatchByType_Calls(t *testing.T) {
	b := New()
	var calls []string
	SubscribeTo(b, func(_ context.Context, e ping) { calls = append(calls, "first ping") })
	unsubscribe := SubscribeTo(b, func(_ context.Context, e ping) { calls = append(calls, "second ping") })
	SubscribeTo(b, func(_ context.Context, e pong) { calls = append(calls, "pong") })

	PublishTo(context.Background(), b, ping{1})
	unsubscribe()
	unsubscribe()
	PublishTo(context.Background(), b, ping{2})
	PublishTo(context.Background(), b, pong{3})

	want := []string{"first ping", "second ping", "first ping", "pong"}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 1, Len[ping](b))
	require.Equal(t, 1, Len[pong](b))
}

func TestBus_UnsubscribeLast(t *testing.T) {
	b := New()
	unsubscribe := SubscribeTo(b, func(context.Context, ping) {})
	unsubscribe()
	require.Equal(t, 0, Len[ping](b))
	require.Empty(t, b.handlers)
}

func TestBus_Nil(t *testing.T) {
	var b *Bus
	SubscribeTo(b, func(context.Context, ping) { t.Fatal("nil bus must not dispatch") })()
	PublishTo(context.Background(), b, ping{})
	require.Equal(t, 0, Len[ping](b))
}

func TestGlobal(t *testing.T) {
	prev := Global()
	t.Cleanup(func() { Use(prev) })

	b := New()
	Use(b)
	require.Same(t, b, Global())

	var got []int
	unsubscribe := Subscribe(func(_ context.Context, e ping) { got = append(got, e.N) })
	Publish(context.Background(), ping{5})
	unsubscribe()
	Publish(context.Background(), ping{6})
	require.Equal(t, []int{5}, got)

	Use(nil)
	Publish(context.Background(), ping{7})
	require.Equal(t, []int{5}, got)
}
