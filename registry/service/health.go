package service

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	router "github.com/gorilla/mux"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/plgd-dev/nmos-registry/registry/uri"
)

type healthResponse struct {
	// Health is the time of the last heartbeat in seconds since the epoch.
	Health string `json:"health"`
}

func newHealthResponse(t time.Time) healthResponse {
	return healthResponse{Health: strconv.FormatInt(t.Unix(), 10)}
}

func (rh *RequestHandler) heartbeat(w http.ResponseWriter, r *http.Request) (int, error) {
	id := router.Vars(r)[uri.NodeIDKey]
	if _, err := rh.engine.Get(resource.Node, id); err != nil {
		return http.StatusNotFound, err
	}
	if _, err := rh.engine.Heartbeat(id); err != nil {
		return http.StatusNotFound, err
	}
	health, err := rh.engine.Health(id)
	if err != nil {
		return http.StatusNotFound, err
	}
	rh.writeResponse(w, r, http.StatusOK, newHealthResponse(health))
	return http.StatusOK, nil
}

// Heartbeat renews the health of the node and of its sub-resources
func (rh *RequestHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.heartbeat(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot update node health: %w", err), statusCode, w)
	}
}

func (rh *RequestHandler) getHealth(w http.ResponseWriter, r *http.Request) (int, error) {
	id := router.Vars(r)[uri.NodeIDKey]
	if _, err := rh.engine.GetLive(resource.Node, id); err != nil {
		return http.StatusNotFound, err
	}
	health, err := rh.engine.Health(id)
	if err != nil {
		return http.StatusNotFound, err
	}
	rh.writeResponse(w, r, http.StatusOK, newHealthResponse(health))
	return http.StatusOK, nil
}

// GetHealth returns the time of the last heartbeat of the node
func (rh *RequestHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.getHealth(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot get node health: %w", err), statusCode, w)
	}
}
