package service

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	router "github.com/gorilla/mux"
	kitNetHttp "github.com/plgd-dev/nmos-registry/pkg/net/http"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/plgd-dev/nmos-registry/registry/uri"
	"github.com/tidwall/gjson"
)

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read body: %v", resource.ErrInvalidBody, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: body is not valid JSON", resource.ErrInvalidBody)
	}
	return data, nil
}

// parseRegistration reads the {"type": ..., "data": {...}} envelope.
func parseRegistration(data []byte) (resource.Type, []byte, error) {
	typ := gjson.GetBytes(data, "type")
	if typ.Type != gjson.String {
		return "", nil, fmt.Errorf("%w: type('%v')", resource.ErrInvalidBody, typ.Raw)
	}
	t, err := resource.ParseType(typ.Str)
	if err != nil {
		return "", nil, err
	}
	body := gjson.GetBytes(data, "data")
	if !body.IsObject() {
		return "", nil, fmt.Errorf("%w: data is not an object", resource.ErrInvalidBody)
	}
	return t, []byte(body.Raw), nil
}

func setETag(w http.ResponseWriter, r *resource.Resource) {
	w.Header().Set(kitNetHttp.ETagHeaderKey, strconv.Quote(strconv.FormatUint(r.Version, 10)))
}

func collection(t resource.Type) string {
	return strings.TrimPrefix(t.Path(), "/")
}

func (rh *RequestHandler) registerResource(w http.ResponseWriter, r *http.Request) (int, error) {
	version := router.Vars(r)[uri.VersionKey]
	data, err := readBody(w, r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	t, body, err := parseRegistration(data)
	if err != nil {
		return http.StatusBadRequest, err
	}
	res, err := rh.engine.Register(t, body, version)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
		w.Header().Set(kitNetHttp.LocationHeaderKey, uri.ResourcePath(version, collection(t), res.Resource.ID))
	}
	setETag(w, res.Resource)
	rh.writeResponse(w, r, status, res.Resource.Data)
	return status, nil
}

// RegisterResource creates or updates the resource in the body
func (rh *RequestHandler) RegisterResource(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.registerResource(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot register resource: %w", err), statusCode, w)
	}
}

func resourceRouteVars(r *http.Request) (resource.Type, string, error) {
	vars := router.Vars(r)
	t, err := resource.TypeFromPath(vars[uri.ResourcesKey])
	if err != nil {
		return "", "", err
	}
	return t, vars[uri.ResourceIDKey], nil
}

func (rh *RequestHandler) getRegisteredResource(w http.ResponseWriter, r *http.Request) (int, error) {
	t, id, err := resourceRouteVars(r)
	if err != nil {
		return http.StatusNotFound, err
	}
	res, err := rh.engine.GetLive(t, id)
	if err != nil {
		return http.StatusNotFound, err
	}
	setETag(w, res)
	rh.writeResponse(w, r, http.StatusOK, res.Data)
	return http.StatusOK, nil
}

// GetRegisteredResource returns the body of a registered resource
func (rh *RequestHandler) GetRegisteredResource(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.getRegisteredResource(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot get resource: %w", err), statusCode, w)
	}
}

func (rh *RequestHandler) deleteResource(w http.ResponseWriter, r *http.Request) (int, error) {
	t, id, err := resourceRouteVars(r)
	if err != nil {
		return http.StatusNotFound, err
	}
	if _, err := rh.engine.Delete(t, id); err != nil {
		return http.StatusNotFound, err
	}
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}

// DeleteResource removes a registered resource without touching its sub-resources
func (rh *RequestHandler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.deleteResource(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot delete resource: %w", err), statusCode, w)
	}
}
