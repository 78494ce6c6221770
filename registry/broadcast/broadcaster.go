package broadcast

import (
	"errors"

	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/pkg/sync/task/queue"
	"github.com/plgd-dev/nmos-registry/registry/metrics"
	"github.com/plgd-dev/nmos-registry/registry/store"
	"github.com/plgd-dev/nmos-registry/registry/subscription"
)

var ErrSlowConsumer = errors.New("connection queue is full")

// Broadcaster waits for queued deltas and delivers them as grains to the
// attached connections. Delivery happens outside of the critical section.
type Broadcaster struct {
	store         *store.Store
	subscriptions *subscription.Manager
	queue         *queue.Queue
	logger        log.Logger
	done          chan struct{}
}

// New creates the broadcaster. Slow connections are closed on the task queue.
func New(s *store.Store, subscriptions *subscription.Manager, q *queue.Queue, logger log.Logger) *Broadcaster {
	return &Broadcaster{
		store:         s,
		subscriptions: subscriptions,
		queue:         q,
		logger:        logger,
		done:          make(chan struct{}),
	}
}

func (b *Broadcaster) closeConnection(conn subscription.Connection, reason error) {
	closeFn := func() { conn.Close(reason) }
	if err := b.queue.Submit(closeFn); err != nil {
		b.logger.Debugf("cannot submit close of connection('%v'), closing it directly: %v", conn.ID(), err)
		go closeFn()
	}
}

func (b *Broadcaster) deliver(deliveries []subscription.Delivery) {
	for _, d := range deliveries {
		err := d.Conn.Send(d.Grain)
		if err == nil {
			metrics.Grains.Inc()
			continue
		}
		if errors.Is(err, subscription.ErrConnectionClosed) {
			b.logger.Debugf("dropping grain for closed connection('%v') of subscription('%v')", d.Conn.ID(), d.SubscriptionID)
			b.subscriptions.Detach(d.SubscriptionID, d.Conn.ID())
			continue
		}
		b.logger.Warnf("closing connection('%v') of subscription('%v'): %v", d.Conn.ID(), d.SubscriptionID, ErrSlowConsumer)
		metrics.DroppedConnections.Inc()
		b.subscriptions.Detach(d.SubscriptionID, d.Conn.ID())
		b.closeConnection(d.Conn, ErrSlowConsumer)
	}
}

// Serve runs the delivery loop until Close is called. All connections are
// closed before it returns.
func (b *Broadcaster) Serve() error {
	defer close(b.done)
	for {
		var deliveries []subscription.Delivery
		ok := b.store.Await(b.subscriptions.HasPending, func(tx *store.Txn) {
			deliveries = b.subscriptions.Drain(tx)
		})
		if !ok {
			break
		}
		b.deliver(deliveries)
	}
	conns := b.subscriptions.DetachAll()
	for _, c := range conns {
		c.Close(subscription.ErrShutdown)
	}
	b.logger.Debugf("broadcaster stopped, %v connections closed", len(conns))
	return nil
}

// Close raises the shutdown flag and waits for Serve to return.
func (b *Broadcaster) Close() error {
	b.store.Close()
	<-b.done
	return nil
}
