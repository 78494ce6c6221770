// Package mdns advertises the registry APIs with DNS service discovery.
package mdns

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/hashicorp/mdns"
	"github.com/miekg/dns"
	"github.com/plgd-dev/nmos-registry/pkg/log"
)

const (
	QueryService        = "_nmos-query._tcp"
	RegistrationService = "_nmos-registration._tcp"
	// RegisterService is the name used by v1.3 clients for the registration API.
	RegisterService = "_nmos-register._tcp"
	NodeService     = "_nmos-node._tcp"
)

// Service is one advertised API.
type Service struct {
	Type     string
	Port     int
	Versions []string
	Protocol string
}

// zones answers the questions for any of its zones.
type zones []mdns.Zone

func (z zones) Records(q dns.Question) []dns.RR {
	var out []dns.RR
	for _, zone := range z {
		out = append(out, zone.Records(q)...)
	}
	return out
}

// TXT returns the records advertising protocol, versions and priority.
func TXT(s Service, priority int) []string {
	proto := s.Protocol
	if proto == "" {
		proto = "http"
	}
	return []string{
		"api_proto=" + proto,
		"api_ver=" + strings.Join(s.Versions, ","),
		"api_auth=false",
		"pri=" + strconv.Itoa(priority),
	}
}

// NewZone builds the records of all services of one instance.
func NewZone(cfg Config, instance, hostName string, ips []net.IP, services []Service) (mdns.Zone, error) {
	z := make(zones, 0, len(services))
	for _, s := range services {
		svc, err := mdns.NewMDNSService(instance, s.Type, cfg.Domain, dns.Fqdn(hostName), s.Port, ips, TXT(s, cfg.Priority))
		if err != nil {
			return nil, fmt.Errorf("cannot create %v service: %w", s.Type, err)
		}
		z = append(z, svc)
	}
	return z, nil
}

// Advertiser runs the mDNS responder. With NoPriority it only waits for Close.
type Advertiser struct {
	server *mdns.Server
	done   chan struct{}
	logger log.Logger
}

func New(cfg Config, instance, hostName string, ips []net.IP, services []Service, logger log.Logger) (*Advertiser, error) {
	a := &Advertiser{
		done:   make(chan struct{}),
		logger: logger,
	}
	if !cfg.Enabled() {
		logger.Infof("mDNS advertisement is disabled")
		return a, nil
	}
	zone, err := NewZone(cfg, instance, hostName, ips, services)
	if err != nil {
		return nil, err
	}
	serverConfig := &mdns.Config{Zone: zone}
	if cfg.Interface != "" {
		iface, err := net.InterfaceByName(cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("cannot find interface('%v'): %w", cfg.Interface, err)
		}
		serverConfig.Iface = iface
	}
	server, err := mdns.NewServer(serverConfig)
	if err != nil {
		return nil, fmt.Errorf("cannot create mDNS server: %w", err)
	}
	a.server = server
	for _, s := range services {
		logger.Infof("advertising %v on port %v with priority %v", s.Type, s.Port, cfg.Priority)
	}
	return a, nil
}

func (a *Advertiser) Serve() error {
	<-a.done
	return nil
}

func (a *Advertiser) Close() error {
	close(a.done)
	if a.server == nil {
		return nil
	}
	if err := a.server.Shutdown(); err != nil {
		return fmt.Errorf("cannot stop mDNS server: %w", err)
	}
	return nil
}
