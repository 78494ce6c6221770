// Package eventbus mirrors the resource events of the registry to NATS.
package eventbus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	nats "github.com/nats-io/nats.go"
	"github.com/plgd-dev/nmos-registry/pkg/fn"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/plgd-dev/nmos-registry/registry/subscription"
)

// Publisher publishes data to a subject; *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Subject returns the subject of the events of a resource type.
func Subject(prefix string, t resource.Type) string {
	return prefix + "." + t.String()
}

// connection is a subscription connection which publishes its grains.
type connection struct {
	id      string
	subject string
	grains  chan *subscription.Grain
	done    chan struct{}
	once    sync.Once
	reason  error
}

func newConnection(subject string, size int) *connection {
	return &connection{
		id:      uuid.NewString(),
		subject: subject,
		grains:  make(chan *subscription.Grain, size),
		done:    make(chan struct{}),
	}
}

func (c *connection) ID() string {
	return c.id
}

func (c *connection) Send(g *subscription.Grain) error {
	select {
	case <-c.done:
		return subscription.ErrConnectionClosed
	default:
	}
	select {
	case c.grains <- g:
		return nil
	default:
		return subscription.ErrConnectionFull
	}
}

func (c *connection) Close(reason error) {
	c.once.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

// Mirror keeps one persistent subscription per resource type and publishes
// every grain to "<subjectPrefix>.<type>". A connection dropped for being slow
// is attached again, starting with a grain of the current resources.
type Mirror struct {
	config        Config
	publisher     Publisher
	subscriptions *subscription.Manager
	logger        log.Logger
	closeFn       fn.FuncList

	wg      sync.WaitGroup
	mutex   sync.Mutex
	closing bool
	conns   map[resource.Type]*connection
	subs    map[resource.Type]string
}

// New creates the mirror over a connection to the NATS server at config.URL.
func New(config Config, subscriptions *subscription.Manager, logger log.Logger) (*Mirror, error) {
	conn, err := nats.Connect(config.URL, nats.MaxReconnects(-1), nats.FlusherTimeout(config.FlusherTimeout))
	if err != nil {
		return nil, fmt.Errorf("cannot create nats client connection: %w", err)
	}
	m, err := NewWithPublisher(config, conn, subscriptions, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	m.closeFn.AddFunc(conn.Close)
	return m, nil
}

// NewWithPublisher creates the mirror over any publisher.
func NewWithPublisher(config Config, publisher Publisher, subscriptions *subscription.Manager, logger log.Logger) (*Mirror, error) {
	m := &Mirror{
		config:        config,
		publisher:     publisher,
		subscriptions: subscriptions,
		logger:        logger,
		conns:         make(map[resource.Type]*connection),
		subs:          make(map[resource.Type]string),
	}
	for _, t := range resource.Types {
		d, _, err := subscriptions.Create(subscription.CreateRequest{
			ResourcePath: t.Path(),
			Params:       map[string]string{},
			Persist:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("cannot create subscription to %v: %w", t.Path(), err)
		}
		m.subs[t] = d.ID
	}
	return m, nil
}

func (m *Mirror) attach(t resource.Type) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closing {
		return subscription.ErrShutdown
	}
	c := newConnection(Subject(m.config.SubjectPrefix, t), m.config.QueueSize)
	if err := m.subscriptions.Attach(m.subs[t], c); err != nil {
		return err
	}
	m.conns[t] = c
	m.wg.Add(1)
	go m.run(t, c)
	return nil
}

func (m *Mirror) publish(c *connection, g *subscription.Grain) {
	data, err := jsoniter.Marshal(g)
	if err != nil {
		m.logger.Errorf("cannot encode grain of subscription('%v'): %v", g.SubscriptionID, err)
		return
	}
	if err := m.publisher.Publish(c.subject, data); err != nil {
		m.logger.Errorf("cannot publish grain to %v: %v", c.subject, err)
	}
}

// flush publishes the grains queued before the connection was closed.
func (m *Mirror) flush(c *connection) {
	for {
		select {
		case g := <-c.grains:
			m.publish(c, g)
		default:
			return
		}
	}
}

func (m *Mirror) run(t resource.Type, c *connection) {
	defer m.wg.Done()
	for {
		select {
		case g := <-c.grains:
			m.publish(c, g)
		case <-c.done:
			m.flush(c)
			if !errors.Is(c.reason, subscription.ErrShutdown) && !errors.Is(c.reason, subscription.ErrSubscriptionDeleted) {
				m.logger.Warnf("mirror of %v was disconnected (%v), attaching again", t.Path(), c.reason)
				if err := m.attach(t); err != nil {
					m.logger.Errorf("cannot attach mirror of %v: %v", t.Path(), err)
				}
			}
			return
		}
	}
}

// Serve attaches the mirror connections. It returns when they are attached;
// publishing continues until Close.
func (m *Mirror) Serve() error {
	for _, t := range resource.Types {
		if err := m.attach(t); err != nil {
			return fmt.Errorf("cannot attach mirror of %v: %w", t.Path(), err)
		}
	}
	return nil
}

// Close detaches the connections, waits for the publishers and closes the NATS connection.
func (m *Mirror) Close() error {
	m.mutex.Lock()
	m.closing = true
	conns := make(map[resource.Type]*connection, len(m.conns))
	for t, c := range m.conns {
		conns[t] = c
	}
	m.mutex.Unlock()
	for t, c := range conns {
		m.subscriptions.Detach(m.subs[t], c.ID())
		c.Close(subscription.ErrShutdown)
	}
	m.wg.Wait()
	m.closeFn.Execute()
	return nil
}
