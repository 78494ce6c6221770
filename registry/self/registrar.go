// Package self seeds the store with the resources describing the registry itself.
package self

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgTime "github.com/plgd-dev/nmos-registry/pkg/time"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/plgd-dev/nmos-registry/registry/store"
	"github.com/tidwall/sjson"
)

const DeviceType = "urn:x-nmos:device:generic"

// Resources holds the ids of the seeded resources.
type Resources struct {
	NodeID   string
	DeviceID string
}

// NewID derives a stable id from the seed and the name of the resource.
func NewID(seed, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("nmos-registry:"+seed+":"+name)).String()
}

type setter struct {
	data []byte
	err  error
}

func (s *setter) set(path string, value interface{}) {
	if s.err != nil {
		return
	}
	s.data, s.err = sjson.SetBytes(s.data, path, value)
}

func (s *setter) setRaw(path string, raw string) {
	if s.err != nil {
		return
	}
	s.data, s.err = sjson.SetRawBytes(s.data, path, []byte(raw))
}

func nodeBody(cfg Config, id, version string) ([]byte, error) {
	s := setter{data: []byte(`{}`)}
	s.set("id", id)
	s.set("version", version)
	s.set("label", cfg.Label)
	s.set("description", cfg.Description)
	s.setRaw("tags", `{}`)
	s.set("href", fmt.Sprintf("http://%v:%v/", cfg.HostAddress, cfg.NodePort))
	s.set("hostname", cfg.HostName)
	s.setRaw("caps", `{}`)
	s.setRaw("services", `[]`)
	s.setRaw("clocks", `[]`)
	s.setRaw("interfaces", `[]`)
	versions := cfg.Versions
	if versions == nil {
		versions = []string{}
	}
	s.set("api.versions", versions)
	s.setRaw("api.endpoints", `[]`)
	s.set("api.endpoints.-1", map[string]interface{}{
		"host":     cfg.HostAddress,
		"port":     cfg.NodePort,
		"protocol": "http",
	})
	return s.data, s.err
}

func deviceBody(cfg Config, id, nodeID, version string) ([]byte, error) {
	s := setter{data: []byte(`{}`)}
	s.set("id", id)
	s.set("version", version)
	s.set("label", cfg.Label)
	s.set("description", cfg.Description)
	s.setRaw("tags", `{}`)
	s.set("type", DeviceType)
	s.set("node_id", nodeID)
	s.setRaw("senders", `[]`)
	s.setRaw("receivers", `[]`)
	s.setRaw("controls", `[]`)
	return s.data, s.err
}

// Register inserts the node and device describing the registry. They have no
// health deadline and are never expired.
func Register(s *store.Store, cfg Config, now time.Time) (Resources, error) {
	res := Resources{
		NodeID:   NewID(cfg.Seed, "node"),
		DeviceID: NewID(cfg.Seed, "device"),
	}
	version := pkgTime.FormatVersion(now)
	node, err := nodeBody(cfg, res.NodeID, version)
	if err != nil {
		return Resources{}, fmt.Errorf("cannot build node: %w", err)
	}
	device, err := deviceBody(cfg, res.DeviceID, res.NodeID, version)
	if err != nil {
		return Resources{}, fmt.Errorf("cannot build device: %w", err)
	}
	var resources []*resource.Resource
	for _, v := range []struct {
		t    resource.Type
		data []byte
	}{
		{t: resource.Node, data: node},
		{t: resource.Device, data: device},
	} {
		r, err := resource.Parse(v.t, v.data, "")
		if err != nil {
			return Resources{}, fmt.Errorf("invalid %v: %w", v.t, err)
		}
		r.UpdatedAt = now
		resources = append(resources, r)
	}
	err = s.Mutate(func(tx *store.Txn) error {
		for _, r := range resources {
			if _, err := tx.Insert(r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Resources{}, fmt.Errorf("cannot register self resources: %w", err)
	}
	return res, nil
}
