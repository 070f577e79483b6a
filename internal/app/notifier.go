/**
 * @description
 * Background notification worker. Operations hand notifications to a bounded
 * queue and move on; a single worker publishes them to the broker with bounded
 * retry. Delivery failures are counted and logged, never propagated to the
 * request path, and the downstream dispatcher owns per-device fan-out.
 */

package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/afan2g/tacto-backend/internal/domain"
	"github.com/afan2g/tacto-backend/internal/metrics"
	"github.com/afan2g/tacto-backend/pkg/rabbitmq"
)

const (
	notificationExchange   = "tacto.events"
	notificationRoutingKey = "push.notification"
)

// Notifier is a bounded-retry background publisher of push notifications.
type Notifier struct {
	producer    rabbitmq.Publisher
	queue       chan domain.PushNotification
	maxAttempts int

	wg   sync.WaitGroup
	stop context.CancelFunc
}

// NewNotifier creates a notifier with the given queue capacity and per-message
// attempt budget.
func NewNotifier(producer rabbitmq.Publisher, queueSize, maxAttempts int) *Notifier {
	if queueSize <= 0 {
		queueSize = 256
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Notifier{
		producer:    producer,
		queue:       make(chan domain.PushNotification, queueSize),
		maxAttempts: maxAttempts,
	}
}

// Start launches the delivery worker. Call Close to drain and stop it.
func (n *Notifier) Start(ctx context.Context) {
	ctx, n.stop = context.WithCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-n.queue:
				n.deliver(ctx, msg)
			}
		}
	}()
}

// Enqueue accepts a notification for asynchronous delivery. When the queue is
// full the message is dropped and counted rather than blocking the operation
// that produced it.
func (n *Notifier) Enqueue(msg domain.PushNotification) bool {
	select {
	case n.queue <- msg:
		return true
	default:
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		log.Printf("level=warn component=notifier msg=\"queue full, notification dropped\" title=%q users=%d", msg.Title, len(msg.UserIDs))
		return false
	}
}

// Close stops the worker after the in-flight message completes.
func (n *Notifier) Close() {
	if n.stop != nil {
		n.stop()
	}
	n.wg.Wait()
}

func (n *Notifier) deliver(ctx context.Context, msg domain.PushNotification) {
	var err error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		err = n.producer.Publish(ctx, notificationExchange, notificationRoutingKey, msg)
		if err == nil {
			metrics.NotificationsTotal.WithLabelValues("published").Inc()
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	metrics.NotificationsTotal.WithLabelValues("failed").Inc()
	log.Printf("level=error component=notifier msg=\"notification delivery failed\" attempts=%d title=%q err=%v", n.maxAttempts, msg.Title, err)
}
