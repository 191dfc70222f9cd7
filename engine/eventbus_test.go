package engine

import (
	"context"
	"testing"
	"time"

	"learnxp/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(core.EventXPAwarded, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewXPAwarded("u", 10, 10, ""))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.EventLevelUp, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), core.NewLevelUp("u", 2, 150))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	unsub := bus.Subscribe(core.EventBadgeAwarded, func(ctx context.Context, e core.Event) { count++ })
	unsub()
	bus.Publish(context.Background(), core.NewBadgeAwarded("u", "level-5", 5))
	if count != 0 {
		t.Fatalf("handler ran after unsubscribe")
	}
}
