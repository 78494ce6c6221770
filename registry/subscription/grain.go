package subscription

import (
	"encoding/json"
	"time"

	pkgTime "github.com/plgd-dev/nmos-registry/pkg/time"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/tidwall/sjson"
)

const (
	GrainType       = "event"
	GrainFormat     = "urn:x-nmos:format:data.event"
	idsOnlyTemplate = `{}`
)

type Rational struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// Event is one change of a resource. Pre is absent for created resources and
// Post is absent for deleted ones.
type Event struct {
	Path string          `json:"path"`
	Op   string          `json:"op"`
	Pre  json.RawMessage `json:"pre,omitempty"`
	Post json.RawMessage `json:"post,omitempty"`
}

type GrainBody struct {
	Type  string  `json:"type"`
	Topic string  `json:"topic"`
	Data  []Event `json:"data"`
}

// Grain is an ordered batch of events of one subscription.
type Grain struct {
	GrainType         string    `json:"grain_type"`
	SourceID          string    `json:"source_id"`
	FlowID            string    `json:"flow_id"`
	SubscriptionID    string    `json:"subscription_id"`
	Sequence          uint64    `json:"sequence"`
	OriginTimestamp   string    `json:"origin_timestamp"`
	SyncTimestamp     string    `json:"sync_timestamp"`
	CreationTimestamp string    `json:"creation_timestamp"`
	Rate              Rational  `json:"rate"`
	Duration          Rational  `json:"duration"`
	Grain             GrainBody `json:"grain"`
}

// Delta is a mutation queued for a subscription.
type Delta struct {
	Sequence uint64
	Op       resource.Op
	Pre      *resource.Resource
	Post     *resource.Resource
}

func body(r *resource.Resource, idsOnly bool) json.RawMessage {
	if r == nil {
		return nil
	}
	if !idsOnly {
		return r.Data
	}
	data, err := sjson.SetBytes([]byte(idsOnlyTemplate), "id", r.ID)
	if err != nil {
		return nil
	}
	return data
}

func (d Delta) event(idsOnly bool) Event {
	id := ""
	switch {
	case d.Post != nil:
		id = d.Post.ID
	case d.Pre != nil:
		id = d.Pre.ID
	}
	return Event{
		Path: id,
		Op:   d.Op.String(),
		Pre:  body(d.Pre, idsOnly),
		Post: body(d.Post, idsOnly),
	}
}

func newGrain(sourceID string, sub *Subscription, sequence uint64, events []Event, now time.Time) *Grain {
	ts := pkgTime.FormatVersion(now)
	return &Grain{
		GrainType:         GrainType,
		SourceID:          sourceID,
		FlowID:            sub.ID,
		SubscriptionID:    sub.ID,
		Sequence:          sequence,
		OriginTimestamp:   ts,
		SyncTimestamp:     ts,
		CreationTimestamp: ts,
		Rate:              Rational{Numerator: 0, Denominator: 1},
		Duration:          Rational{Numerator: 0, Denominator: 1},
		Grain: GrainBody{
			Type:  GrainFormat,
			Topic: sub.filter.Type.Path() + "/",
			Data:  events,
		},
	}
}
