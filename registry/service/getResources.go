package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	router "github.com/gorilla/mux"
	kitNetHttp "github.com/plgd-dev/nmos-registry/pkg/net/http"
	"github.com/plgd-dev/nmos-registry/registry/query"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/plgd-dev/nmos-registry/registry/uri"
)

// queryParams keeps the first value of every query parameter.
func queryParams(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

func bodies(resources []*resource.Resource) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(resources))
	for _, r := range resources {
		out = append(out, r.Data)
	}
	return out
}

func setPagingHeaders(w http.ResponseWriter, page query.Page) {
	w.Header().Set(kitNetHttp.PagingLimitHeaderKey, strconv.Itoa(page.Limit))
	w.Header().Set(kitNetHttp.PagingSinceHeaderKey, strconv.FormatUint(page.Since, 10))
	w.Header().Set(kitNetHttp.PagingUntilHeaderKey, strconv.FormatUint(page.Until, 10))
}

func (rh *RequestHandler) getResources(w http.ResponseWriter, r *http.Request) (int, error) {
	params := queryParams(r.URL.Query())
	filter, err := query.NewFilter(router.Vars(r)[uri.ResourcesKey], params)
	if err != nil {
		return http.StatusBadRequest, err
	}
	paging, err := query.ParsePaging(params)
	if err != nil {
		return http.StatusBadRequest, err
	}
	matches, page := paging.Apply(filter.Select(rh.engine.List(filter.Type)))
	setPagingHeaders(w, page)
	rh.writeResponse(w, r, http.StatusOK, bodies(matches))
	return http.StatusOK, nil
}

// GetResources returns the resources of one type matching the query parameters
func (rh *RequestHandler) GetResources(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.getResources(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot query resources: %w", err), statusCode, w)
	}
}

func (rh *RequestHandler) getResource(w http.ResponseWriter, r *http.Request) (int, error) {
	t, id, err := resourceRouteVars(r)
	if err != nil {
		return http.StatusNotFound, err
	}
	res, err := rh.engine.GetLive(t, id)
	if err != nil {
		return http.StatusNotFound, err
	}
	rh.writeResponse(w, r, http.StatusOK, res.Data)
	return http.StatusOK, nil
}

// GetResource returns one resource
func (rh *RequestHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.getResource(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot query resource: %w", err), statusCode, w)
	}
}
