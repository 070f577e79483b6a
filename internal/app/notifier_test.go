package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/afan2g/tacto-backend/internal/domain"
)

// flakyPublisher fails the first failures attempts, then succeeds and signals.
type flakyPublisher struct {
	failures int32
	attempts atomic.Int32
	done     chan struct{}
}

func (p *flakyPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	n := p.attempts.Add(1)
	if n <= p.failures {
		return fmt.Errorf("broker unavailable")
	}
	close(p.done)
	return nil
}

func (p *flakyPublisher) Close() {}

func TestNotifierRetriesUntilPublished(t *testing.T) {
	pub := &flakyPublisher{failures: 1, done: make(chan struct{})}
	n := NewNotifier(pub, 4, 3)
	n.Start(context.Background())
	defer n.Close()

	if !n.Enqueue(domain.PushNotification{Title: "hello"}) {
		t.Fatal("enqueue rejected with a non-full queue")
	}

	select {
	case <-pub.done:
	case <-time.After(5 * time.Second):
		t.Fatal("notification was not published within the retry budget")
	}
	if got := pub.attempts.Load(); got != 2 {
		t.Errorf("publish attempts = %d, want 2 (one failure, one success)", got)
	}
}

func TestNotifierDropsWhenQueueFull(t *testing.T) {
	// No worker started: the queue can only fill up.
	pub := &flakyPublisher{done: make(chan struct{})}
	n := NewNotifier(pub, 1, 1)

	if !n.Enqueue(domain.PushNotification{Title: "first"}) {
		t.Fatal("first enqueue must be accepted")
	}
	if n.Enqueue(domain.PushNotification{Title: "second"}) {
		t.Fatal("second enqueue must be dropped, not block")
	}
}
