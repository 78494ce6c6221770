package service

import (
	"fmt"
	"net/http"

	router "github.com/gorilla/mux"
	kitNetHttp "github.com/plgd-dev/nmos-registry/pkg/net/http"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/plgd-dev/nmos-registry/registry/subscription"
	"github.com/plgd-dev/nmos-registry/registry/uri"
	"github.com/tidwall/gjson"
)

type subscriptionResponse struct {
	ID              string            `json:"id"`
	WsHref          string            `json:"ws_href"`
	MaxUpdateRateMS int               `json:"max_update_rate_ms"`
	Persist         bool              `json:"persist"`
	Secure          bool              `json:"secure"`
	ResourcePath    string            `json:"resource_path"`
	Params          map[string]string `json:"params"`
	Version         string            `json:"version"`
}

func (rh *RequestHandler) wsHref(d subscription.Descriptor) string {
	scheme := "ws"
	if d.Secure {
		scheme = "wss"
	}
	return scheme + "://" + rh.queryHost + uri.SubscriptionWSPath(d.APIVersion, d.ID)
}

func (rh *RequestHandler) newSubscriptionResponse(d subscription.Descriptor) subscriptionResponse {
	return subscriptionResponse{
		ID:              d.ID,
		WsHref:          rh.wsHref(d),
		MaxUpdateRateMS: d.MaxUpdateRateMS,
		Persist:         d.Persist,
		Secure:          d.Secure,
		ResourcePath:    d.ResourcePath,
		Params:          d.Params,
		Version:         d.APIVersion,
	}
}

func requireField(data []byte, name string, types ...gjson.Type) (gjson.Result, error) {
	v := gjson.GetBytes(data, name)
	for _, t := range types {
		if v.Exists() && v.Type == t {
			return v, nil
		}
	}
	return v, fmt.Errorf("%w: %v('%v')", resource.ErrInvalidBody, name, v.Raw)
}

// parseSubscriptionRequest reads the body of a subscription request. Parameter
// values which are not strings are kept in their JSON form.
func parseSubscriptionRequest(data []byte, version string) (subscription.CreateRequest, error) {
	req := subscription.CreateRequest{APIVersion: version}
	path, err := requireField(data, "resource_path", gjson.String)
	if err != nil {
		return req, err
	}
	req.ResourcePath = path.Str
	rate, err := requireField(data, "max_update_rate_ms", gjson.Number)
	if err != nil {
		return req, err
	}
	req.MaxUpdateRateMS = int(rate.Int())
	persist, err := requireField(data, "persist", gjson.True, gjson.False)
	if err != nil {
		return req, err
	}
	req.Persist = persist.Bool()
	params, err := requireField(data, "params", gjson.JSON)
	if err != nil || !params.IsObject() {
		return req, fmt.Errorf("%w: params('%v')", resource.ErrInvalidBody, params.Raw)
	}
	req.Params = make(map[string]string)
	params.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String {
			req.Params[key.Str] = value.Str
		} else {
			req.Params[key.Str] = value.Raw
		}
		return true
	})
	if secure := gjson.GetBytes(data, "secure"); secure.Exists() {
		if secure.Type != gjson.True && secure.Type != gjson.False {
			return req, fmt.Errorf("%w: secure('%v')", resource.ErrInvalidBody, secure.Raw)
		}
		req.Secure = secure.Bool()
	}
	if id := gjson.GetBytes(data, "id"); id.Exists() {
		if id.Type != gjson.String {
			return req, fmt.Errorf("%w: id('%v')", resource.ErrInvalidBody, id.Raw)
		}
		req.ID = id.Str
	}
	return req, nil
}

func (rh *RequestHandler) createSubscription(w http.ResponseWriter, r *http.Request) (int, error) {
	version := router.Vars(r)[uri.VersionKey]
	data, err := readBody(w, r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	req, err := parseSubscriptionRequest(data, version)
	if err != nil {
		return http.StatusBadRequest, err
	}
	d, created, err := rh.subscriptions.Create(req)
	if err != nil {
		return http.StatusBadRequest, err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	w.Header().Set(kitNetHttp.LocationHeaderKey, uri.QueryBase+"/"+version+"/subscriptions/"+d.ID)
	rh.writeResponse(w, r, status, rh.newSubscriptionResponse(d))
	return status, nil
}

// CreateSubscription creates a subscription or returns the existing one with the same parameters
func (rh *RequestHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.createSubscription(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot create subscription: %w", err), statusCode, w)
	}
}

// GetSubscriptions returns all subscriptions
func (rh *RequestHandler) GetSubscriptions(w http.ResponseWriter, r *http.Request) {
	descriptors := rh.subscriptions.List()
	out := make([]subscriptionResponse, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, rh.newSubscriptionResponse(d))
	}
	rh.writeResponse(w, r, http.StatusOK, out)
}

func (rh *RequestHandler) getSubscription(w http.ResponseWriter, r *http.Request) (int, error) {
	d, err := rh.subscriptions.Get(router.Vars(r)[uri.SubscriptionIDKey])
	if err != nil {
		return http.StatusNotFound, err
	}
	rh.writeResponse(w, r, http.StatusOK, rh.newSubscriptionResponse(d))
	return http.StatusOK, nil
}

// GetSubscription returns one subscription
func (rh *RequestHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.getSubscription(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot get subscription: %w", err), statusCode, w)
	}
}

func (rh *RequestHandler) deleteSubscription(w http.ResponseWriter, r *http.Request) (int, error) {
	if err := rh.subscriptions.Delete(router.Vars(r)[uri.SubscriptionIDKey]); err != nil {
		return http.StatusNotFound, err
	}
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}

// DeleteSubscription removes the subscription and closes its event streams
func (rh *RequestHandler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.deleteSubscription(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot delete subscription: %w", err), statusCode, w)
	}
}
