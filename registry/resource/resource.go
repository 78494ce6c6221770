package resource

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Resource is the envelope of one registered entity. A stored resource is
// never modified in place; every mutation stores a new copy, so a pointer
// obtained inside a transaction stays consistent after the lock is released.
type Resource struct {
	ID         string
	Type       Type
	APIVersion string
	// Version is bumped on every update of Data.
	Version uint64
	Data    json.RawMessage
	// ParentRefs are the ids of the resources this one depends on.
	ParentRefs []string
	// HealthDeadline is zero for resources exempt from expiration.
	HealthDeadline time.Time
	// CreatedAt is the insertion order of the resource.
	CreatedAt uint64
	UpdatedAt time.Time
}

// Clone returns a deep copy of the resource.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	c := *r
	c.Data = append(json.RawMessage(nil), r.Data...)
	c.ParentRefs = append([]string(nil), r.ParentRefs...)
	return &c
}

func (r *Resource) HealthTracked() bool {
	return !r.HealthDeadline.IsZero()
}

// Get returns the attribute value at a gjson path of the body.
func (r *Resource) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Data, path)
}

// Label returns the "label" attribute of the body.
func (r *Resource) Label() string {
	return r.Get("label").String()
}

// Parse validates the body of a resource of type t and builds the envelope.
// The body must be a JSON object holding every required attribute of the type;
// "id" and the parent attributes must be non-empty strings.
func Parse(t Type, data []byte, apiVersion string) (*Resource, error) {
	kind, ok := t.Kind()
	if !ok {
		return nil, fmt.Errorf("%w: unknown resource type('%v')", ErrInvalidBody, t)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidBody)
	}
	body := gjson.ParseBytes(data)
	if !body.IsObject() {
		return nil, fmt.Errorf("%w: %v must be an object", ErrInvalidBody, t)
	}
	for _, attr := range kind.Required {
		if !body.Get(attr).Exists() {
			return nil, fmt.Errorf("%w: %v is missing required attribute '%v'", ErrInvalidBody, t, attr)
		}
	}
	id := body.Get("id")
	if id.Type != gjson.String || id.String() == "" {
		return nil, fmt.Errorf("%w: id must be a non-empty string", ErrInvalidBody)
	}
	var parents []string
	for _, attr := range kind.Parents {
		v := body.Get(attr)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if v.Type != gjson.String || v.String() == "" {
			return nil, fmt.Errorf("%w: %v must be a non-empty string", ErrInvalidBody, attr)
		}
		parents = append(parents, v.String())
	}
	return &Resource{
		ID:         id.String(),
		Type:       t,
		APIVersion: apiVersion,
		Data:       append(json.RawMessage(nil), data...),
		ParentRefs: parents,
	}, nil
}
