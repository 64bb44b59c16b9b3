package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inkrouter/ink-router/internal/pkg/logger"
)

func testBus() *MemoryBus {
	return NewMemoryBus(logger.New("error", "text"))
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	b := testBus()
	defer b.Close()

	var mu sync.Mutex
	var received []Event
	b.Subscribe(TopicQueryCompleted, func(ctx context.Context, e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})

	err := b.Publish(context.Background(), Event{
		Topic:   TopicQueryCompleted,
		Session: "s1",
		Payload: map[string]any{"pipeline": "sales"},
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	b.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("got %d events, want 1", len(received))
	}
	if received[0].Session != "s1" {
		t.Errorf("session = %q, want s1", received[0].Session)
	}
}

func TestMemoryBus_TopicIsolation(t *testing.T) {
	b := testBus()
	defer b.Close()

	var count atomic.Int32
	b.Subscribe(TopicRegistryReloaded, func(ctx context.Context, e Event) {
		count.Add(1)
	})

	b.Publish(context.Background(), Event{Topic: TopicQueryCompleted})
	b.Close()

	if count.Load() != 0 {
		t.Error("handler received event from a different topic")
	}
}

func TestMemoryBus_MultipleHandlers(t *testing.T) {
	b := testBus()
	defer b.Close()

	var count atomic.Int32
	for i := 0; i < 3; i++ {
		b.Subscribe(TopicCacheCleared, func(ctx context.Context, e Event) {
			count.Add(1)
		})
	}

	b.Publish(context.Background(), Event{Topic: TopicCacheCleared})
	b.Close()

	if count.Load() != 3 {
		t.Errorf("got %d deliveries, want 3", count.Load())
	}
}

func TestMemoryBus_PanickingHandler(t *testing.T) {
	b := testBus()
	defer b.Close()

	var delivered atomic.Bool
	b.Subscribe(TopicQueryCompleted, func(ctx context.Context, e Event) {
		panic("boom")
	})
	b.Subscribe(TopicQueryCompleted, func(ctx context.Context, e Event) {
		delivered.Store(true)
	})

	b.Publish(context.Background(), Event{Topic: TopicQueryCompleted, Timestamp: time.Now()})
	b.Close()

	if !delivered.Load() {
		t.Error("panic in one handler must not stop delivery to others")
	}
}

func TestMemoryBus_PublishAfterClose(t *testing.T) {
	b := testBus()
	b.Subscribe(TopicQueryCompleted, func(ctx context.Context, e Event) {
		t.Error("handler called after Close")
	})
	b.Close()

	if err := b.Publish(context.Background(), Event{Topic: TopicQueryCompleted}); err != nil {
		t.Errorf("Publish() after close error = %v, want nil", err)
	}
}
