package mdns

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/require"
)

func fakeQuery(entries ...*mdns.ServiceEntry) queryFunc {
	return func(params *mdns.QueryParam) error {
		for _, e := range entries {
			params.Entries <- e
		}
		return nil
	}
}

func TestBrowse(t *testing.T) {
	var got *mdns.QueryParam
	b := NewBrowser(Config{Domain: "local."}, time.Second)
	query := fakeQuery(
		&mdns.ServiceEntry{Name: "b._nmos-query._tcp.local.", Host: "b.local.", Port: 8870, AddrV4: net.ParseIP("192.0.2.2"), InfoFields: []string{"api_ver=v1.3", "pri=100"}},
		&mdns.ServiceEntry{Name: "a._nmos-query._tcp.local.", Host: "a.local.", Port: 8870, AddrV4: net.ParseIP("192.0.2.1")},
		&mdns.ServiceEntry{Name: "b._nmos-query._tcp.local.", Host: "b.local.", Port: 8871, AddrV4: net.ParseIP("192.0.2.2"), AddrV6: net.ParseIP("2001:db8::2")},
	)
	b.query = func(params *mdns.QueryParam) error {
		got = params
		return query(params)
	}

	instances, err := b.Browse(context.Background(), QueryService)
	require.NoError(t, err)
	require.Equal(t, QueryService, got.Service)
	require.Equal(t, "local.", got.Domain)
	require.Equal(t, time.Second, got.Timeout)
	require.Len(t, instances, 2)
	require.Equal(t, "a._nmos-query._tcp.local.", instances[0].Name)
	require.Equal(t, []string{"192.0.2.1"}, instances[0].Addresses)
	require.Equal(t, "b._nmos-query._tcp.local.", instances[1].Name)
	require.Equal(t, 8871, instances[1].Port)
	require.Equal(t, []string{"192.0.2.2", "2001:db8::2"}, instances[1].Addresses)
}

func TestBrowseShortensTimeoutToDeadline(t *testing.T) {
	var got time.Duration
	b := NewBrowser(Config{}, time.Hour)
	b.query = func(params *mdns.QueryParam) error {
		got = params.Timeout
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, err := b.Browse(ctx, NodeService)
	require.NoError(t, err)
	require.LessOrEqual(t, got, time.Minute)
	require.Greater(t, got, time.Duration(0))
}

func TestBrowseErrors(t *testing.T) {
	b := NewBrowser(Config{}, 0)
	require.Equal(t, DefaultBrowseTimeout, b.timeout)
	errQuery := errors.New("no multicast")
	b.query = func(*mdns.QueryParam) error {
		return errQuery
	}
	_, err := b.Browse(context.Background(), NodeService)
	require.ErrorIs(t, err, errQuery)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctx, cancelT := context.WithDeadline(ctx, time.Now().Add(-time.Second))
	defer cancelT()
	_, err = b.Browse(ctx, NodeService)
	require.Error(t, err)

	b = NewBrowser(Config{Interface: "does-not-exist0"}, time.Second)
	b.query = fakeQuery()
	_, err = b.Browse(context.Background(), NodeService)
	require.Error(t, err)
}

func TestNewInstance(t *testing.T) {
	i := NewInstance(&mdns.ServiceEntry{
		Name:       "registry._nmos-register._tcp.local.",
		Host:       "registry.local.",
		Port:       3210,
		InfoFields: []string{"api_proto=http", "flag"},
	})
	require.Empty(t, i.Addresses)
	require.Equal(t, map[string]string{"api_proto": "http", "flag": ""}, i.TXT)
	require.Equal(t, "registry", InstanceName(i.Name, RegisterService))
	require.Equal(t, "other.local", InstanceName("other.local.", RegisterService))
}
