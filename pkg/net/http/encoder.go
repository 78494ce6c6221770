package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/fxamacker/cbor/v2"
	jsoniter "github.com/json-iterator/go"
)

type EncodeFunc = func(v interface{}) ([]byte, error)

func encodeCBOR(v interface{}) ([]byte, error) {
	// round trip through JSON so that json.RawMessage bodies and json tags are honoured
	data, err := jsoniter.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := jsoniter.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return cbor.Marshal(generic)
}

// GetEncoder selects the response encoding from the Accept header values.
// JSON is used when nothing acceptable is requested explicitly.
func GetEncoder(accept []string) (EncodeFunc, string, error) {
	if len(accept) == 0 {
		return jsoniter.Marshal, ApplicationJsonContentType, nil
	}
	for _, header := range accept {
		for _, v := range strings.Split(header, ",") {
			mediaType := strings.TrimSpace(strings.Split(v, ";")[0])
			switch mediaType {
			case ApplicationJsonContentType, "application/*", "*/*", "":
				return jsoniter.Marshal, ApplicationJsonContentType, nil
			case ApplicationCborContentType:
				return encodeCBOR, ApplicationCborContentType, nil
			}
		}
	}
	return nil, "", fmt.Errorf("invalid %v header(%v)", AcceptHeaderKey, accept)
}

// WriteResponse encodes v according to the request Accept header.
func WriteResponse(w http.ResponseWriter, r *http.Request, statusCode int, v interface{}) error {
	encode, contentType, err := GetEncoder(r.Header.Values(AcceptHeaderKey))
	if err != nil {
		_ = WriteErrorResponse(w, http.StatusNotAcceptable, err)
		return err
	}
	body, err := encode(v)
	if err != nil {
		_ = WriteErrorResponse(w, http.StatusInternalServerError, fmt.Errorf("cannot encode response: %w", err))
		return err
	}
	w.Header().Set(ContentTypeHeaderKey, contentType)
	w.WriteHeader(statusCode)
	_, err = w.Write(body)
	return err
}
