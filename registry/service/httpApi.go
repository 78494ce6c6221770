package service

import (
	"errors"
	"fmt"
	"net/http"

	router "github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	kitNetHttp "github.com/plgd-dev/nmos-registry/pkg/net/http"
	"github.com/plgd-dev/nmos-registry/registry/logging"
	"github.com/plgd-dev/nmos-registry/registry/mdns"
	"github.com/plgd-dev/nmos-registry/registry/metrics"
	"github.com/plgd-dev/nmos-registry/registry/registration"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/plgd-dev/nmos-registry/registry/self"
	"github.com/plgd-dev/nmos-registry/registry/settings"
	"github.com/plgd-dev/nmos-registry/registry/subscription"
	"github.com/plgd-dev/nmos-registry/registry/uri"
	"golang.org/x/exp/slices"
)

// maxBodySize limits the request bodies of the registration and query APIs.
const maxBodySize = 1024 * 1024

// RequestHandler for handling incoming request
type RequestHandler struct {
	versions      []string
	webSocket     WebSocketConfig
	engine        *registration.Engine
	subscriptions *subscription.Manager
	settings      *settings.Settings
	self          self.Resources
	upgrader      websocket.Upgrader
	events        *logging.Buffer
	browser       mdns.Browser
	serviceTypes  []string
	logger        log.Logger

	// queryHost is the host:port advertised in ws_href.
	queryHost string
}

// NewRequestHandler factory for new RequestHandler
func NewRequestHandler(
	versions []string,
	webSocket WebSocketConfig,
	engine *registration.Engine,
	subscriptions *subscription.Manager,
	settings *settings.Settings,
	selfResources self.Resources,
	queryHost string,
	logger log.Logger,
) *RequestHandler {
	return &RequestHandler{
		versions:      versions,
		webSocket:     webSocket,
		engine:        engine,
		subscriptions: subscriptions,
		settings:      settings,
		self:          selfResources,
		queryHost:     queryHost,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// errToStatus maps the error kinds of the registry to HTTP status codes.
func errToStatus(err error, def int) int {
	switch {
	case errors.Is(err, resource.ErrInvalidBody), errors.Is(err, resource.ErrMissingParent):
		return http.StatusBadRequest
	case errors.Is(err, resource.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, resource.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, resource.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return def
}

func (rh *RequestHandler) logAndWriteErrorResponse(err error, statusCode int, w http.ResponseWriter) {
	statusCode = errToStatus(err, statusCode)
	if statusCode >= http.StatusInternalServerError {
		rh.logger.Errorf("%v", err)
	} else {
		rh.logger.Debugf("%v", err)
	}
	if errW := kitNetHttp.WriteErrorResponse(w, statusCode, err); errW != nil {
		rh.logger.Errorf("cannot write error response: %v", errW)
	}
}

func (rh *RequestHandler) writeResponse(w http.ResponseWriter, r *http.Request, statusCode int, v interface{}) {
	if err := kitNetHttp.WriteResponse(w, r, statusCode, v); err != nil {
		rh.logger.Errorf("cannot write response: %v", err)
	}
}

// versionMiddleware rejects API versions which are not served.
func (rh *RequestHandler) versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v, ok := router.Vars(r)[uri.VersionKey]; ok && !slices.Contains(rh.versions, v) {
			rh.logAndWriteErrorResponse(fmt.Errorf("%w: api version('%v')", resource.ErrNotFound, v), http.StatusNotFound, w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rh *RequestHandler) notFound(w http.ResponseWriter, r *http.Request) {
	rh.logAndWriteErrorResponse(fmt.Errorf("%w: path('%v')", resource.ErrNotFound, r.URL.Path), http.StatusNotFound, w)
}

func (rh *RequestHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	rh.logAndWriteErrorResponse(fmt.Errorf("method %v is not allowed for path('%v')", r.Method, r.URL.Path), http.StatusMethodNotAllowed, w)
}

func (rh *RequestHandler) listing(entries ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rh.writeResponse(w, r, http.StatusOK, entries)
	}
}

func (rh *RequestHandler) versionListing() []string {
	out := make([]string, 0, len(rh.versions))
	for _, v := range rh.versions {
		out = append(out, v+"/")
	}
	return out
}

func (rh *RequestHandler) newRouter(api string) *router.Router {
	r := router.NewRouter()
	r.Use(kitNetHttp.CreateLoggingMiddleware(kitNetHttp.WithLogger(rh.logger.With("api", api))))
	r.Use(rh.versionMiddleware)
	r.StrictSlash(true)
	r.NotFoundHandler = http.HandlerFunc(rh.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(rh.methodNotAllowed)
	if api != "" {
		r.HandleFunc("/", rh.listing("x-nmos/")).Methods(http.MethodGet)
		r.HandleFunc(uri.Base+"/", rh.listing(api+"/")).Methods(http.MethodGet)
		r.HandleFunc(uri.Base+"/"+api+"/", rh.listing(rh.versionListing()...)).Methods(http.MethodGet)
	}
	return r
}

// NewRegistrationHTTP returns HTTP handler of the registration API
func NewRegistrationHTTP(rh *RequestHandler) http.Handler {
	r := rh.newRouter(uri.RegistrationAPI)
	r.HandleFunc(uri.Registration+"/", rh.listing(uri.RegistrationListing...)).Methods(http.MethodGet)
	r.HandleFunc(uri.RegistrationRes, rh.RegisterResource).Methods(http.MethodPost)
	r.HandleFunc(uri.RegistrationByID, rh.GetRegisteredResource).Methods(http.MethodGet)
	r.HandleFunc(uri.RegistrationByID, rh.DeleteResource).Methods(http.MethodDelete)
	r.HandleFunc(uri.RegistrationHealth, rh.Heartbeat).Methods(http.MethodPost)
	r.HandleFunc(uri.RegistrationHealth, rh.GetHealth).Methods(http.MethodGet)
	return r
}

// NewQueryHTTP returns HTTP handler of the query API including the event streams
func NewQueryHTTP(rh *RequestHandler) http.Handler {
	r := rh.newRouter(uri.QueryAPI)
	r.HandleFunc(uri.Query+"/", rh.listing(uri.QueryListing...)).Methods(http.MethodGet)
	r.HandleFunc(uri.Subscriptions, rh.CreateSubscription).Methods(http.MethodPost)
	r.HandleFunc(uri.Subscriptions, rh.GetSubscriptions).Methods(http.MethodGet)
	r.HandleFunc(uri.SubscriptionWS, rh.SubscribeToEvents).Methods(http.MethodGet)
	r.HandleFunc(uri.Subscription, rh.GetSubscription).Methods(http.MethodGet)
	r.HandleFunc(uri.Subscription, rh.DeleteSubscription).Methods(http.MethodDelete)
	r.HandleFunc(uri.QueryResources, rh.GetResources).Methods(http.MethodGet)
	r.HandleFunc(uri.QueryResource, rh.GetResource).Methods(http.MethodGet)
	return r
}

// NewNodeHTTP returns HTTP handler of the node API describing the registry itself
func NewNodeHTTP(rh *RequestHandler) http.Handler {
	r := rh.newRouter(uri.NodeAPI)
	r.HandleFunc(uri.Node+"/", rh.listing(uri.NodeListing...)).Methods(http.MethodGet)
	r.HandleFunc(uri.NodeSelf, rh.GetSelf).Methods(http.MethodGet)
	r.HandleFunc(uri.NodeResources, rh.GetNodeResources).Methods(http.MethodGet)
	r.HandleFunc(uri.NodeResource, rh.GetNodeResource).Methods(http.MethodGet)
	return r
}

// NewSettingsHTTP returns HTTP handler of the settings API and of the metrics
func NewSettingsHTTP(rh *RequestHandler) http.Handler {
	r := rh.newRouter("")
	r.HandleFunc("/", rh.listing("settings/", "metrics/")).Methods(http.MethodGet)
	r.HandleFunc(uri.Settings+"/", rh.listing("all/")).Methods(http.MethodGet)
	r.HandleFunc(uri.SettingsAll, rh.GetSettings).Methods(http.MethodGet)
	r.HandleFunc(uri.SettingsAll, rh.UpdateSettings).Methods(http.MethodPost, http.MethodPatch)
	r.Handle(uri.Metrics, metrics.Handler()).Methods(http.MethodGet)
	return r
}

// NewAdminHTTP returns HTTP handler serving the static files of the admin UI
func NewAdminHTTP(directory string, logger log.Logger) http.Handler {
	r := router.NewRouter()
	r.Use(kitNetHttp.CreateLoggingMiddleware(kitNetHttp.WithLogger(logger.With("api", "admin"))))
	r.Handle("/", http.RedirectHandler(uri.Admin, http.StatusFound)).Methods(http.MethodGet)
	r.PathPrefix(uri.Admin).Handler(http.StripPrefix(uri.Admin, http.FileServer(http.Dir(directory)))).Methods(http.MethodGet)
	return r
}
