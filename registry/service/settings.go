package service

import (
	"fmt"
	"net/http"
)

// GetSettings returns the runtime settings
func (rh *RequestHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	rh.writeResponse(w, r, http.StatusOK, rh.settings.Get())
}

func (rh *RequestHandler) updateSettings(w http.ResponseWriter, r *http.Request) (int, error) {
	data, err := readBody(w, r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	v, err := rh.settings.Apply(data)
	if err != nil {
		return http.StatusBadRequest, err
	}
	rh.logger.Infof("settings changed: %+v", v)
	rh.writeResponse(w, r, http.StatusOK, v)
	return http.StatusOK, nil
}

// UpdateSettings merges the body into the runtime settings
func (rh *RequestHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	statusCode, err := rh.updateSettings(w, r)
	if err != nil {
		rh.logAndWriteErrorResponse(fmt.Errorf("cannot update settings: %w", err), statusCode, w)
	}
}
