package resource

import (
	"fmt"
	"strings"
)

type Type string

const (
	Node     Type = "node"
	Device   Type = "device"
	Source   Type = "source"
	Flow     Type = "flow"
	Sender   Type = "sender"
	Receiver Type = "receiver"
)

// Types lists the resource types in the order they depend on each other.
var Types = []Type{Node, Device, Source, Flow, Sender, Receiver}

// Kind describes the capabilities of a resource type.
type Kind struct {
	Type Type
	// Path is the collection path, e.g. "/senders".
	Path string
	// Required attributes of the body.
	Required []string
	// Parents are the attributes holding ids of the resources this type depends on.
	Parents []string
	// HealthTracked resources expire when their health deadline lapses.
	HealthTracked bool
}

var kinds = map[Type]Kind{
	Node: {
		Type:          Node,
		Path:          "/nodes",
		Required:      []string{"id", "version", "label", "href", "hostname", "caps", "services"},
		HealthTracked: true,
	},
	Device: {
		Type:          Device,
		Path:          "/devices",
		Required:      []string{"id", "version", "label", "type", "node_id", "senders", "receivers"},
		Parents:       []string{"node_id"},
		HealthTracked: true,
	},
	Source: {
		Type:          Source,
		Path:          "/sources",
		Required:      []string{"id", "version", "label", "device_id", "format", "caps", "parents"},
		Parents:       []string{"device_id"},
		HealthTracked: true,
	},
	Flow: {
		Type:          Flow,
		Path:          "/flows",
		Required:      []string{"id", "version", "label", "source_id", "format", "parents"},
		Parents:       []string{"source_id", "device_id"},
		HealthTracked: true,
	},
	Sender: {
		Type:          Sender,
		Path:          "/senders",
		Required:      []string{"id", "version", "label", "device_id", "transport", "manifest_href"},
		Parents:       []string{"device_id"},
		HealthTracked: true,
	},
	Receiver: {
		Type:          Receiver,
		Path:          "/receivers",
		Required:      []string{"id", "version", "label", "device_id", "format", "transport", "caps", "subscription"},
		Parents:       []string{"device_id"},
		HealthTracked: true,
	},
}

func (t Type) Kind() (Kind, bool) {
	k, ok := kinds[t]
	return k, ok
}

func (t Type) Valid() bool {
	_, ok := kinds[t]
	return ok
}

// Path returns the collection path of the type or an empty string for unknown types.
func (t Type) Path() string {
	return kinds[t].Path
}

func (t Type) String() string {
	return string(t)
}

// ParseType accepts the type name ("sender").
func ParseType(v string) (Type, error) {
	t := Type(v)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown resource type('%v')", ErrInvalidBody, v)
	}
	return t, nil
}

// TypeFromPath resolves a collection path such as "/senders", "senders" or "/senders/".
func TypeFromPath(path string) (Type, error) {
	p := "/" + strings.Trim(path, "/")
	for _, t := range Types {
		if kinds[t].Path == p {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown resource path('%v')", ErrInvalidBody, path)
}
