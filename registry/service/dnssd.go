package service

import (
	"fmt"
	"net/http"

	router "github.com/gorilla/mux"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/registry/mdns"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/plgd-dev/nmos-registry/registry/uri"
	"golang.org/x/exp/slices"
)

// BrowsedServiceTypes are the service types listed by the DNS-SD API.
var BrowsedServiceTypes = []string{mdns.NodeService, mdns.QueryService, mdns.RegistrationService, mdns.RegisterService}

func (rh *RequestHandler) browse(r *http.Request) (string, []mdns.Instance, error) {
	serviceType := router.Vars(r)[uri.ServiceTypeKey]
	if !slices.Contains(rh.serviceTypes, serviceType) {
		return "", nil, fmt.Errorf("%w: service type('%v')", resource.ErrNotFound, serviceType)
	}
	instances, err := rh.browser.Browse(r.Context(), serviceType)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", resource.ErrUnavailable, err)
	}
	return serviceType, instances, nil
}

func (rh *RequestHandler) getServiceInstances(w http.ResponseWriter, r *http.Request) (int, error) {
	serviceType, instances, err := rh.browse(r)
	if err != nil {
		return http.StatusNotFound, err
	}
	names := make([]string, 0, len(instances))
	for _, i := range instances {
		names = append(names, mdns.InstanceName(i.Name, serviceType)+"/")
	}
	rh.writeResponse(w, r, http.StatusOK, names)
	return http.StatusOK, nil
}

// GetServiceInstances browses the service type and lists the names of the instances
func (rh *RequestHandler) GetServiceInstances(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.getServiceInstances(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot browse service instances: %w", err), statusCode, w)
	}
}

func (rh *RequestHandler) getServiceInstance(w http.ResponseWriter, r *http.Request) (int, error) {
	serviceType, instances, err := rh.browse(r)
	if err != nil {
		return http.StatusNotFound, err
	}
	name := router.Vars(r)[uri.InstanceKey]
	for _, i := range instances {
		if mdns.InstanceName(i.Name, serviceType) == name {
			rh.writeResponse(w, r, http.StatusOK, i)
			return http.StatusOK, nil
		}
	}
	return http.StatusNotFound, fmt.Errorf("%w: service instance('%v')", resource.ErrNotFound, name)
}

// GetServiceInstance resolves one instance of the service type
func (rh *RequestHandler) GetServiceInstance(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.getServiceInstance(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot resolve service instance: %w", err), statusCode, w)
	}
}

// NewDNSSDHTTP returns HTTP handler of the API browsing DNS service discovery
func NewDNSSDHTTP(browser mdns.Browser, serviceTypes []string, logger log.Logger) http.Handler {
	rh := &RequestHandler{browser: browser, serviceTypes: serviceTypes, logger: logger}
	listing := make([]string, 0, len(serviceTypes))
	for _, t := range serviceTypes {
		listing = append(listing, t+"/")
	}
	r := rh.newRouter("")
	r.HandleFunc("/", rh.listing("x-dns-sd/")).Methods(http.MethodGet)
	r.HandleFunc(uri.DNSSDBase+"/", rh.listing("v1.0/")).Methods(http.MethodGet)
	r.HandleFunc(uri.DNSSD+"/", rh.listing(listing...)).Methods(http.MethodGet)
	r.HandleFunc(uri.DNSSDType+"/", rh.GetServiceInstances).Methods(http.MethodGet)
	r.HandleFunc(uri.DNSSDInstance+"/", rh.GetServiceInstance).Methods(http.MethodGet)
	return r
}
