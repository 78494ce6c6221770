package service

import (
	"fmt"
	"net/http"

	router "github.com/gorilla/mux"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/registry/logging"
	"github.com/plgd-dev/nmos-registry/registry/query"
	"github.com/plgd-dev/nmos-registry/registry/uri"
)

func (rh *RequestHandler) getLogEvents(w http.ResponseWriter, r *http.Request) (int, error) {
	events, paging, err := rh.events.Select(queryParams(r.URL.Query()))
	if err != nil {
		return http.StatusBadRequest, err
	}
	page := query.Page{Since: paging.Since, Limit: paging.Limit}
	if len(events) > 0 {
		page.Until = events[0].Seq()
	}
	setPagingHeaders(w, page)
	if events == nil {
		events = []logging.Event{}
	}
	rh.writeResponse(w, r, http.StatusOK, events)
	return http.StatusOK, nil
}

// GetLogEvents returns the recent log events matching the query parameters, newest first
func (rh *RequestHandler) GetLogEvents(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.getLogEvents(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot query log events: %w", err), statusCode, w)
	}
}

func (rh *RequestHandler) getLogEvent(w http.ResponseWriter, r *http.Request) (int, error) {
	e, err := rh.events.Get(router.Vars(r)[uri.EventIDKey])
	if err != nil {
		return http.StatusNotFound, err
	}
	rh.writeResponse(w, r, http.StatusOK, e)
	return http.StatusOK, nil
}

// GetLogEvent returns one log event
func (rh *RequestHandler) GetLogEvent(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.getLogEvent(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot query log event: %w", err), statusCode, w)
	}
}

// NewLoggingHTTP returns HTTP handler of the logging API
func NewLoggingHTTP(events *logging.Buffer, logger log.Logger) http.Handler {
	rh := &RequestHandler{events: events, logger: logger}
	r := rh.newRouter("")
	r.HandleFunc("/", rh.listing("log/")).Methods(http.MethodGet)
	r.HandleFunc(uri.LogBase+"/", rh.listing("events/")).Methods(http.MethodGet)
	r.HandleFunc(uri.LogEvents, rh.GetLogEvents).Methods(http.MethodGet)
	r.HandleFunc(uri.LogEvent, rh.GetLogEvent).Methods(http.MethodGet)
	return r
}
