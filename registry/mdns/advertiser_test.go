package mdns_test

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/registry/mdns"
	"github.com/stretchr/testify/require"
)

func TestTXT(t *testing.T) {
	txt := mdns.TXT(mdns.Service{Type: mdns.QueryService, Port: 8870, Versions: []string{"v1.2", "v1.3"}}, 100)
	require.Equal(t, []string{"api_proto=http", "api_ver=v1.2,v1.3", "api_auth=false", "pri=100"}, txt)
}

func TestNewZone(t *testing.T) {
	services := []mdns.Service{
		{Type: mdns.QueryService, Port: 8870, Versions: []string{"v1.3"}},
		{Type: mdns.RegistrationService, Port: 8871, Versions: []string{"v1.3"}},
	}
	zone, err := mdns.NewZone(mdns.Config{Priority: 100, Domain: "local."}, "registry", "registry.local", []net.IP{net.ParseIP("192.0.2.10")}, services)
	require.NoError(t, err)

	records := zone.Records(dns.Question{Name: "_nmos-query._tcp.local.", Qtype: dns.TypePTR, Qclass: dns.ClassINET})
	require.NotEmpty(t, records)
	var ptr *dns.PTR
	var srv *dns.SRV
	var txt *dns.TXT
	for _, rr := range records {
		switch v := rr.(type) {
		case *dns.PTR:
			ptr = v
		case *dns.SRV:
			srv = v
		case *dns.TXT:
			txt = v
		}
	}
	require.NotNil(t, ptr)
	require.Equal(t, "registry._nmos-query._tcp.local.", ptr.Ptr)
	require.NotNil(t, srv)
	require.Equal(t, uint16(8870), srv.Port)
	require.NotNil(t, txt)
	require.Contains(t, txt.Txt, "pri=100")

	records = zone.Records(dns.Question{Name: "_nmos-registration._tcp.local.", Qtype: dns.TypePTR, Qclass: dns.ClassINET})
	require.NotEmpty(t, records)
	records = zone.Records(dns.Question{Name: "_nmos-node._tcp.local.", Qtype: dns.TypePTR, Qclass: dns.ClassINET})
	require.Empty(t, records)
}

func TestAdvertiserDisabled(t *testing.T) {
	a, err := mdns.New(mdns.Config{Priority: mdns.NoPriority}, "registry", "registry.local", nil, nil, log.Get())
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() {
		served <- a.Serve()
	}()
	require.NoError(t, a.Close())
	require.NoError(t, <-served)
}

func TestConfigValidate(t *testing.T) {
	cfg := mdns.Config{Priority: 100}
	require.NoError(t, cfg.Validate())
	require.True(t, cfg.Enabled())
	cfg.Priority = -1
	require.Error(t, cfg.Validate())
	cfg.Priority = mdns.NoPriority
	require.False(t, cfg.Enabled())
}
