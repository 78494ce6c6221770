package subscription

import (
	"time"

	"github.com/plgd-dev/nmos-registry/registry/query"
	"golang.org/x/exp/maps"
)

// Connection delivers grains of one subscription to a client.
type Connection interface {
	ID() string
	// Send queues the grain without blocking. It returns ErrConnectionFull when
	// the bounded queue is full and ErrConnectionClosed once Close was called.
	Send(g *Grain) error
	// Close ends the connection. It must not block.
	Close(reason error)
}

type attachment struct {
	conn Connection
	// fromSeq is the sequence the connection was synchronized at; older deltas are skipped.
	fromSeq uint64
}

// Subscription is a standing query. Its state is guarded by the store lock.
type Subscription struct {
	ID              string
	ResourcePath    string
	Params          map[string]string
	Persist         bool
	Secure          bool
	MaxUpdateRateMS int
	APIVersion      string

	filter      *query.Filter
	sequence    uint64
	pending     []Delta
	connections map[string]*attachment
	idleSince   time.Time
}

// Descriptor is a read-only copy of the subscription state.
type Descriptor struct {
	ID              string
	ResourcePath    string
	Params          map[string]string
	Persist         bool
	Secure          bool
	MaxUpdateRateMS int
	APIVersion      string
	Sequence        uint64
	Connections     int
}

func (s *Subscription) descriptor() Descriptor {
	return Descriptor{
		ID:              s.ID,
		ResourcePath:    s.ResourcePath,
		Params:          maps.Clone(s.Params),
		Persist:         s.Persist,
		Secure:          s.Secure,
		MaxUpdateRateMS: s.MaxUpdateRateMS,
		APIVersion:      s.APIVersion,
		Sequence:        s.sequence,
		Connections:     len(s.connections),
	}
}
