package http

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

// ErrInternalServerError internal server error
var ErrInternalServerError = errors.New("internal server error")

// ErrorResponse is the NMOS error body.
type ErrorResponse struct {
	Code  int     `json:"code"`
	Error string  `json:"error"`
	Debug *string `json:"debug"`
}

// WriteErrorResponse sets the content type and encodes the error to the body.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, err error) error {
	if err == nil {
		err = ErrInternalServerError
	}
	w.Header().Set(ContentTypeHeaderKey, ApplicationJsonContentType)
	w.Header().Set(ContentTypeOptionsHeaderKey, "nosniff")
	w.WriteHeader(statusCode)
	debug := err.Error()
	return jsoniter.NewEncoder(w).Encode(ErrorResponse{
		Code:  statusCode,
		Error: http.StatusText(statusCode),
		Debug: &debug,
	})
}
