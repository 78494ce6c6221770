package service

import (
	"fmt"
	"net/http"

	"github.com/plgd-dev/nmos-registry/registry/resource"
	"golang.org/x/exp/slices"
)

// ownedBySelf reports whether the resource belongs to the node of the registry.
func (rh *RequestHandler) ownedBySelf(r *resource.Resource, devices []string) bool {
	if r.Type == resource.Device {
		return r.Get("node_id").Str == rh.self.NodeID
	}
	return slices.Contains(devices, r.Get("device_id").Str)
}

func (rh *RequestHandler) selfResources(t resource.Type) []*resource.Resource {
	devices := []string{rh.self.DeviceID}
	var out []*resource.Resource
	for _, r := range rh.engine.List(t) {
		if rh.ownedBySelf(r, devices) {
			out = append(out, r)
		}
	}
	return out
}

func (rh *RequestHandler) getSelf(w http.ResponseWriter, r *http.Request) (int, error) {
	node, err := rh.engine.Get(resource.Node, rh.self.NodeID)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	rh.writeResponse(w, r, http.StatusOK, node.Data)
	return http.StatusOK, nil
}

// GetSelf returns the node resource of the registry
func (rh *RequestHandler) GetSelf(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.getSelf(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot get self: %w", err), statusCode, w)
	}
}

func (rh *RequestHandler) getNodeResources(w http.ResponseWriter, r *http.Request) (int, error) {
	t, _, err := resourceRouteVars(r)
	if err != nil || t == resource.Node {
		return http.StatusNotFound, fmt.Errorf("%w: path('%v')", resource.ErrNotFound, r.URL.Path)
	}
	rh.writeResponse(w, r, http.StatusOK, bodies(rh.selfResources(t)))
	return http.StatusOK, nil
}

// GetNodeResources returns the resources of one type owned by the node of the registry
func (rh *RequestHandler) GetNodeResources(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.getNodeResources(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot get node resources: %w", err), statusCode, w)
	}
}

func (rh *RequestHandler) getNodeResource(w http.ResponseWriter, r *http.Request) (int, error) {
	t, id, err := resourceRouteVars(r)
	if err != nil || t == resource.Node {
		return http.StatusNotFound, fmt.Errorf("%w: path('%v')", resource.ErrNotFound, r.URL.Path)
	}
	for _, res := range rh.selfResources(t) {
		if res.ID == id {
			rh.writeResponse(w, r, http.StatusOK, res.Data)
			return http.StatusOK, nil
		}
	}
	return http.StatusNotFound, fmt.Errorf("%w: %v('%v')", resource.ErrNotFound, t, id)
}

// GetNodeResource returns one resource owned by the node of the registry
func (rh *RequestHandler) GetNodeResource(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.getNodeResource(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot get node resource: %w", err), statusCode, w)
	}
}
