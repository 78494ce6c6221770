package subscription

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/registry/metrics"
	"github.com/plgd-dev/nmos-registry/registry/query"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/plgd-dev/nmos-registry/registry/store"
	"golang.org/x/exp/maps"
)

var (
	ErrSubscriptionDeleted = errors.New("subscription deleted")
	ErrShutdown            = errors.New("registry is shutting down")
	ErrConnectionFull      = errors.New("connection queue is full")
	ErrConnectionClosed    = errors.New("connection is closed")
)

// CreateRequest describes a subscription to create. An empty ID lets the manager generate one.
type CreateRequest struct {
	ID              string
	ResourcePath    string
	Params          map[string]string
	Persist         bool
	Secure          bool
	MaxUpdateRateMS int
	APIVersion      string
}

// Delivery is a grain to be sent to a connection outside of the critical section.
type Delivery struct {
	SubscriptionID string
	Conn           Connection
	Grain          *Grain
}

// ExpiredFunc reports whether a stored resource is already past its health
// deadline at now, even though it has not been removed yet.
type ExpiredFunc func(r *resource.Resource, now time.Time) bool

type Option func(m *Manager)

// WithExpired hides the resources reported by expired from the initial grain
// of a new connection, the same way the query API hides them.
func WithExpired(expired ExpiredFunc) Option {
	return func(m *Manager) {
		m.expired = expired
	}
}

// Manager keeps the subscriptions and their pending deltas. Its state is
// guarded by the store lock and it observes every store mutation.
type Manager struct {
	store    *store.Store
	sourceID string
	clock    clock.Clock
	expired  ExpiredFunc
	logger   log.Logger

	subscriptions map[string]*Subscription
}

func New(s *store.Store, sourceID string, clk clock.Clock, logger log.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:    s,
		sourceID: sourceID,
		clock:    clk,
		expired: func(*resource.Resource, time.Time) bool {
			return false
		},
		logger:        logger,
		subscriptions: make(map[string]*Subscription),
	}
	for _, o := range opts {
		o(m)
	}
	s.AddObserver(m)
	return m
}

func (m *Manager) find(req CreateRequest, filter *query.Filter) *Subscription {
	for _, sub := range m.subscriptions {
		if sub.filter.Type == filter.Type &&
			sub.Persist == req.Persist &&
			sub.Secure == req.Secure &&
			sub.MaxUpdateRateMS == req.MaxUpdateRateMS &&
			sub.APIVersion == req.APIVersion &&
			maps.Equal(sub.Params, req.Params) {
			return sub
		}
	}
	return nil
}

// Create returns the existing subscription with the same resource path, parameters
// and requested id, or creates a new one. The boolean is true for a new subscription.
func (m *Manager) Create(req CreateRequest) (Descriptor, bool, error) {
	filter, err := query.NewFilter(req.ResourcePath, req.Params)
	if err != nil {
		return Descriptor{}, false, err
	}
	if req.ID != "" {
		if _, err := uuid.Parse(req.ID); err != nil {
			return Descriptor{}, false, fmt.Errorf("%w: subscription id('%v')", resource.ErrInvalidBody, req.ID)
		}
	}
	if req.MaxUpdateRateMS < 0 {
		return Descriptor{}, false, fmt.Errorf("%w: max_update_rate_ms('%v')", resource.ErrInvalidBody, req.MaxUpdateRateMS)
	}
	params := maps.Clone(req.Params)
	if params == nil {
		params = make(map[string]string)
	}
	var d Descriptor
	var created bool
	err = m.store.Mutate(func(*store.Txn) error {
		if req.ID != "" {
			if sub, ok := m.subscriptions[req.ID]; ok {
				if sub.filter.Type != filter.Type || !maps.Equal(sub.Params, params) || sub.Persist != req.Persist {
					return fmt.Errorf("%w: subscription('%v') exists with other parameters", resource.ErrConflict, req.ID)
				}
				d = sub.descriptor()
				return nil
			}
		} else if sub := m.find(req, filter); sub != nil {
			d = sub.descriptor()
			return nil
		}
		id := req.ID
		if id == "" {
			id = uuid.NewString()
		}
		sub := &Subscription{
			ID:              id,
			ResourcePath:    filter.Type.Path(),
			Params:          params,
			Persist:         req.Persist,
			Secure:          req.Secure,
			MaxUpdateRateMS: req.MaxUpdateRateMS,
			APIVersion:      req.APIVersion,
			filter:          filter,
			connections:     make(map[string]*attachment),
			idleSince:       m.clock.Now(),
		}
		m.subscriptions[id] = sub
		metrics.Subscriptions.Inc()
		d = sub.descriptor()
		created = true
		return nil
	})
	if err != nil {
		return Descriptor{}, false, err
	}
	if created {
		m.logger.Debugf("created subscription('%v') to %v", d.ID, d.ResourcePath)
	}
	return d, created, nil
}

// Get returns a copy of the subscription.
func (m *Manager) Get(id string) (Descriptor, error) {
	var d Descriptor
	var ok bool
	m.store.Read(func(*store.Txn) {
		var sub *Subscription
		sub, ok = m.subscriptions[id]
		if ok {
			d = sub.descriptor()
		}
	})
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: subscription('%v')", resource.ErrNotFound, id)
	}
	return d, nil
}

// List returns copies of all subscriptions ordered by id.
func (m *Manager) List() []Descriptor {
	var out []Descriptor
	m.store.Read(func(*store.Txn) {
		out = make([]Descriptor, 0, len(m.subscriptions))
		for _, sub := range m.subscriptions {
			out = append(out, sub.descriptor())
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Manager) remove(sub *Subscription) []Connection {
	conns := make([]Connection, 0, len(sub.connections))
	for _, a := range sub.connections {
		conns = append(conns, a.conn)
	}
	metrics.Connections.Sub(float64(len(sub.connections)))
	metrics.Subscriptions.Dec()
	delete(m.subscriptions, sub.ID)
	return conns
}

// Delete removes the subscription and closes its connections.
func (m *Manager) Delete(id string) error {
	var conns []Connection
	err := m.store.Mutate(func(*store.Txn) error {
		sub, ok := m.subscriptions[id]
		if !ok {
			return fmt.Errorf("%w: subscription('%v')", resource.ErrNotFound, id)
		}
		conns = m.remove(sub)
		return nil
	})
	if err != nil {
		return err
	}
	for _, c := range conns {
		c.Close(ErrSubscriptionDeleted)
	}
	m.logger.Debugf("deleted subscription('%v')", id)
	return nil
}

// Attach adds the connection to the subscription and queues to it a grain with
// the current matching resources as created events.
func (m *Manager) Attach(id string, conn Connection) error {
	return m.store.Mutate(func(tx *store.Txn) error {
		sub, ok := m.subscriptions[id]
		if !ok {
			return fmt.Errorf("%w: subscription('%v')", resource.ErrNotFound, id)
		}
		if _, ok := sub.connections[conn.ID()]; ok {
			return fmt.Errorf("%w: connection('%v') is already attached", resource.ErrConflict, conn.ID())
		}
		now := m.clock.Now()
		matches := sub.filter.Select(tx.Snapshot(sub.filter.Type))
		events := make([]Event, 0, len(matches))
		for _, r := range matches {
			if m.expired(r, now) {
				continue
			}
			events = append(events, Delta{Op: resource.Created, Post: r}.event(sub.filter.IDsOnly))
		}
		if err := conn.Send(newGrain(m.sourceID, sub, sub.sequence, events, now)); err != nil {
			return fmt.Errorf("%w: cannot queue initial grain to connection('%v'): %v", resource.ErrUnavailable, conn.ID(), err)
		}
		sub.connections[conn.ID()] = &attachment{conn: conn, fromSeq: sub.sequence}
		sub.idleSince = time.Time{}
		metrics.Connections.Inc()
		return nil
	})
}

func (m *Manager) detach(sub *Subscription, connID string) bool {
	if _, ok := sub.connections[connID]; !ok {
		return false
	}
	delete(sub.connections, connID)
	metrics.Connections.Dec()
	if len(sub.connections) > 0 {
		return true
	}
	if !sub.Persist {
		m.remove(sub)
		m.logger.Debugf("deleted subscription('%v') after its last connection detached", sub.ID)
		return true
	}
	sub.idleSince = m.clock.Now()
	return true
}

// Detach removes the connection from the subscription. A subscription which
// is not persistent is deleted together with its last connection.
func (m *Manager) Detach(id, connID string) bool {
	var detached bool
	_ = m.store.Mutate(func(*store.Txn) error {
		sub, ok := m.subscriptions[id]
		if !ok {
			return nil
		}
		detached = m.detach(sub, connID)
		return nil
	})
	return detached
}

// DetachAll removes every connection from every subscription and returns them.
func (m *Manager) DetachAll() []Connection {
	var conns []Connection
	_ = m.store.Mutate(func(*store.Txn) error {
		for _, sub := range m.subscriptions {
			for _, a := range sub.connections {
				conns = append(conns, a.conn)
			}
			metrics.Connections.Sub(float64(len(sub.connections)))
			sub.connections = make(map[string]*attachment)
			sub.pending = nil
			sub.idleSince = m.clock.Now()
		}
		return nil
	})
	return conns
}

// ExpireIdle deletes the subscriptions which are not persistent and have had no
// connection for longer than timeout. It returns their ids.
func (m *Manager) ExpireIdle(now time.Time, timeout time.Duration) []string {
	var expired []string
	_ = m.store.Mutate(func(*store.Txn) error {
		for _, sub := range m.subscriptions {
			if sub.Persist || len(sub.connections) > 0 || sub.idleSince.IsZero() {
				continue
			}
			if now.Sub(sub.idleSince) > timeout {
				m.remove(sub)
				expired = append(expired, sub.ID)
			}
		}
		return nil
	})
	sort.Strings(expired)
	return expired
}

// OnMutation queues a delta to every subscription matching the resource before
// or after the mutation. The sequence advances even when no connection is
// attached, so sequences stay comparable across reconnections.
func (m *Manager) OnMutation(_ *store.Txn, op resource.Op, pre, post *resource.Resource) {
	for _, sub := range m.subscriptions {
		if !sub.filter.Match(pre) && !sub.filter.Match(post) {
			continue
		}
		sub.sequence++
		if len(sub.connections) == 0 {
			continue
		}
		sub.pending = append(sub.pending, Delta{
			Sequence: sub.sequence,
			Op:       op,
			Pre:      pre,
			Post:     post,
		})
	}
}

// HasPending reports whether any subscription has queued deltas. It must be
// called inside the critical section.
func (m *Manager) HasPending(*store.Txn) bool {
	for _, sub := range m.subscriptions {
		if len(sub.pending) > 0 {
			return true
		}
	}
	return false
}

func (m *Manager) grain(sub *Subscription, deltas []Delta, now time.Time) *Grain {
	events := make([]Event, 0, len(deltas))
	for _, d := range deltas {
		events = append(events, d.event(sub.filter.IDsOnly))
	}
	return newGrain(m.sourceID, sub, deltas[len(deltas)-1].Sequence, events, now)
}

// Drain empties the queues of all subscriptions and packs the deltas of each
// into one grain per attached connection. Connections skip the deltas already
// covered by their initial grain. It must be called inside the critical section.
func (m *Manager) Drain(*store.Txn) []Delivery {
	now := m.clock.Now()
	var deliveries []Delivery
	for _, sub := range m.subscriptions {
		pending := sub.pending
		if len(pending) == 0 {
			continue
		}
		sub.pending = nil
		var shared *Grain
		for _, a := range sub.connections {
			deltas := pending
			if a.fromSeq >= pending[0].Sequence {
				deltas = nil
				for _, d := range pending {
					if d.Sequence > a.fromSeq {
						deltas = append(deltas, d)
					}
				}
			}
			if len(deltas) == 0 {
				continue
			}
			var g *Grain
			if len(deltas) == len(pending) {
				if shared == nil {
					shared = m.grain(sub, pending, now)
				}
				g = shared
			} else {
				g = m.grain(sub, deltas, now)
			}
			a.fromSeq = deltas[len(deltas)-1].Sequence
			deliveries = append(deliveries, Delivery{
				SubscriptionID: sub.ID,
				Conn:           a.conn,
				Grain:          g,
			})
		}
	}
	return deliveries
}
