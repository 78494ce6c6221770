package mdns

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"golang.org/x/exp/slices"
)

// DefaultBrowseTimeout bounds one browse when the caller sets no timeout.
const DefaultBrowseTimeout = time.Second

// Instance is one discovered service instance.
type Instance struct {
	Name      string            `json:"name"`
	Host      string            `json:"host_target"`
	Port      int               `json:"port"`
	Addresses []string          `json:"addresses"`
	TXT       map[string]string `json:"txt"`
}

// Browser discovers the instances of a service type.
type Browser interface {
	Browse(ctx context.Context, serviceType string) ([]Instance, error)
}

type queryFunc func(params *mdns.QueryParam) error

// MulticastBrowser browses with multicast DNS queries.
type MulticastBrowser struct {
	config  Config
	timeout time.Duration
	query   queryFunc
}

func NewBrowser(config Config, timeout time.Duration) *MulticastBrowser {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	return &MulticastBrowser{
		config:  config,
		timeout: timeout,
		query:   mdns.Query,
	}
}

func (b *MulticastBrowser) params(serviceType string, entries chan<- *mdns.ServiceEntry, timeout time.Duration) (*mdns.QueryParam, error) {
	params := mdns.DefaultParams(serviceType)
	params.Domain = b.config.Domain
	params.Timeout = timeout
	params.Entries = entries
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err != nil {
			return nil, fmt.Errorf("cannot find interface('%v'): %w", b.config.Interface, err)
		}
		params.Interface = iface
	}
	return params, nil
}

// Browse queries the service type until the timeout or the deadline of ctx,
// whichever is first, and returns the instances sorted by name.
func (b *MulticastBrowser) Browse(ctx context.Context, serviceType string) ([]Instance, error) {
	timeout := b.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, ctx.Err()
	}
	entries := make(chan *mdns.ServiceEntry, 16)
	params, err := b.params(serviceType, entries, timeout)
	if err != nil {
		return nil, err
	}
	found := make(map[string]Instance)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if e == nil {
				continue
			}
			found[e.Name] = NewInstance(e)
		}
	}()
	err = b.query(params)
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("cannot browse %v: %w", serviceType, err)
	}
	out := make([]Instance, 0, len(found))
	for _, i := range found {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b Instance) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// NewInstance converts a resolved entry. TXT records without '=' map to an empty value.
func NewInstance(e *mdns.ServiceEntry) Instance {
	i := Instance{
		Name:      e.Name,
		Host:      e.Host,
		Port:      e.Port,
		Addresses: []string{},
		TXT:       make(map[string]string, len(e.InfoFields)),
	}
	for _, ip := range []net.IP{e.AddrV4, e.AddrV6} {
		if ip != nil {
			i.Addresses = append(i.Addresses, ip.String())
		}
	}
	for _, f := range e.InfoFields {
		k, v, _ := strings.Cut(f, "=")
		i.TXT[k] = v
	}
	return i
}

// InstanceName returns the unqualified name of the instance, e.g. "registry"
// for "registry._nmos-query._tcp.local.".
func InstanceName(fullName, serviceType string) string {
	if idx := strings.Index(fullName, "."+serviceType); idx >= 0 {
		return fullName[:idx]
	}
	return strings.TrimSuffix(fullName, ".")
}
