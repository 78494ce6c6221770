package registration

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/plgd-dev/nmos-registry/registry/store"
)

// Settings provides the options which can be changed at runtime.
type Settings interface {
	// Lenient allows resources whose parents are not registered.
	Lenient() bool
}

// Engine applies register, update, heartbeat and delete operations to the store.
type Engine struct {
	store    *store.Store
	config   Config
	clock    clock.Clock
	settings Settings
	logger   log.Logger
}

type Result struct {
	Resource *resource.Resource
	// Created is false when an existing resource was updated.
	Created bool
}

func New(s *store.Store, config Config, clk clock.Clock, settings Settings, logger log.Logger) *Engine {
	return &Engine{
		store:    s,
		config:   config,
		clock:    clk,
		settings: settings,
		logger:   logger,
	}
}

func (e *Engine) Config() Config {
	return e.config
}

// healthDeadline is zero for the kinds exempt from expiration.
func healthDeadline(kind resource.Kind, now time.Time, ttl time.Duration) time.Time {
	if !kind.HealthTracked {
		return time.Time{}
	}
	return now.Add(ttl)
}

func (e *Engine) deadline(t resource.Type, now time.Time) time.Time {
	kind, _ := t.Kind()
	return healthDeadline(kind, now, e.config.HealthTTL)
}

// Expired reports whether the resource stayed without a heartbeat longer than
// its deadline plus one heartbeat interval.
func (e *Engine) Expired(r *resource.Resource, now time.Time) bool {
	return r.HealthTracked() && now.After(r.HealthDeadline.Add(e.config.HeartbeatInterval))
}

func (e *Engine) checkParents(tx *store.Txn, r *resource.Resource) error {
	if e.settings != nil && e.settings.Lenient() {
		return nil
	}
	for _, p := range r.ParentRefs {
		if _, ok := tx.Get(p); !ok {
			return fmt.Errorf("%w: %v('%v') references unknown resource('%v')", resource.ErrMissingParent, r.Type, r.ID, p)
		}
	}
	return nil
}

// Register creates the resource or, when the same id is registered with the
// same type, updates it. Parents are verified only when the resource is created.
func (e *Engine) Register(t resource.Type, data []byte, apiVersion string) (Result, error) {
	r, err := resource.Parse(t, data, apiVersion)
	if err != nil {
		return Result{}, err
	}
	now := e.clock.Now()
	r.UpdatedAt = now
	var result Result
	err = e.store.Mutate(func(tx *store.Txn) error {
		existing, ok := tx.Get(r.ID)
		if ok {
			if existing.Type != r.Type {
				return fmt.Errorf("%w: resource('%v') is already registered as %v", resource.ErrConflict, r.ID, existing.Type)
			}
			r.HealthDeadline = e.deadline(r.Type, now)
			updated, err := tx.Update(r)
			if err != nil {
				return err
			}
			result = Result{Resource: updated}
			return nil
		}
		if err := e.checkParents(tx, r); err != nil {
			return err
		}
		r.HealthDeadline = e.deadline(r.Type, now)
		inserted, err := tx.Insert(r)
		if err != nil {
			return err
		}
		result = Result{Resource: inserted, Created: true}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if result.Created {
		e.logger.Debugf("registered %v('%v')", t, r.ID)
	} else {
		e.logger.Debugf("updated %v('%v') to version %v", t, r.ID, result.Resource.Version)
	}
	return result, nil
}

// Update replaces the body of an existing resource.
func (e *Engine) Update(t resource.Type, id string, data []byte, apiVersion string) (*resource.Resource, error) {
	r, err := resource.Parse(t, data, apiVersion)
	if err != nil {
		return nil, err
	}
	if r.ID != id {
		return nil, fmt.Errorf("%w: id('%v') does not match the body id('%v')", resource.ErrInvalidBody, id, r.ID)
	}
	now := e.clock.Now()
	r.UpdatedAt = now
	var updated *resource.Resource
	err = e.store.Mutate(func(tx *store.Txn) error {
		existing, ok := tx.Get(id)
		if !ok || existing.Type != t {
			return fmt.Errorf("%w: %v('%v')", resource.ErrNotFound, t, id)
		}
		r.HealthDeadline = e.deadline(r.Type, now)
		updated, err = tx.Update(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Heartbeat moves the health deadline of the resource and of the resources
// depending on it. A resource which has already expired is removed and
// ErrNotFound is returned, so the client knows it must register again.
func (e *Engine) Heartbeat(id string) (*resource.Resource, error) {
	now := e.clock.Now()
	var r *resource.Resource
	err := e.store.Mutate(func(tx *store.Txn) error {
		existing, ok := tx.Get(id)
		if !ok {
			return fmt.Errorf("%w: resource('%v')", resource.ErrNotFound, id)
		}
		if e.Expired(existing, now) {
			if _, err := tx.Remove(id); err != nil {
				return err
			}
			return fmt.Errorf("%w: resource('%v') has expired", resource.ErrNotFound, id)
		}
		if !existing.HealthTracked() {
			r = existing
			return nil
		}
		if _, err := tx.Refresh(id, e.deadline(existing.Type, now)); err != nil {
			return err
		}
		r, _ = tx.Get(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Health returns the time of the last registration or heartbeat of the resource.
func (e *Engine) Health(id string) (time.Time, error) {
	var health time.Time
	var err error
	e.store.Read(func(tx *store.Txn) {
		r, ok := tx.Get(id)
		if !ok || e.Expired(r, e.clock.Now()) {
			err = fmt.Errorf("%w: resource('%v')", resource.ErrNotFound, id)
			return
		}
		if r.HealthTracked() {
			health = r.HealthDeadline.Add(-e.config.HealthTTL)
			return
		}
		health = e.clock.Now()
	})
	return health, err
}

// Delete removes the resource. Resources depending on it are kept and expire on their own.
func (e *Engine) Delete(t resource.Type, id string) (*resource.Resource, error) {
	var removed *resource.Resource
	err := e.store.Mutate(func(tx *store.Txn) error {
		existing, ok := tx.Get(id)
		if !ok || existing.Type != t {
			return fmt.Errorf("%w: %v('%v')", resource.ErrNotFound, t, id)
		}
		var err error
		removed, err = tx.Remove(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debugf("deleted %v('%v')", t, id)
	return removed, nil
}

func (e *Engine) Get(t resource.Type, id string) (*resource.Resource, error) {
	var r *resource.Resource
	var ok bool
	e.store.Read(func(tx *store.Txn) {
		r, ok = tx.Get(id)
	})
	if !ok || r.Type != t {
		return nil, fmt.Errorf("%w: %v('%v')", resource.ErrNotFound, t, id)
	}
	return r, nil
}

// GetLive is Get for resources which are not expired.
func (e *Engine) GetLive(t resource.Type, id string) (*resource.Resource, error) {
	r, err := e.Get(t, id)
	if err != nil {
		return nil, err
	}
	if e.Expired(r, e.clock.Now()) {
		return nil, fmt.Errorf("%w: %v('%v') expired", resource.ErrNotFound, t, id)
	}
	return r, nil
}

// List returns the resources of the type which are not expired, in creation order.
func (e *Engine) List(t resource.Type) []*resource.Resource {
	now := e.clock.Now()
	var out []*resource.Resource
	e.store.Read(func(tx *store.Txn) {
		snapshot := tx.Snapshot(t)
		out = make([]*resource.Resource, 0, len(snapshot))
		for _, r := range snapshot {
			if !e.Expired(r, now) {
				out = append(out, r)
			}
		}
	})
	return out
}

// ExpiryCandidates returns the ids of the resources expired at now.
func (e *Engine) ExpiryCandidates(now time.Time) []string {
	var ids []string
	e.store.Read(func(tx *store.Txn) {
		for _, r := range tx.Snapshot() {
			if e.Expired(r, now) {
				ids = append(ids, r.ID)
			}
		}
	})
	return ids
}

// Expire removes the resource when it is still expired at now. A resource
// renewed since it was selected, or already removed, is left alone and false is returned.
func (e *Engine) Expire(id string, now time.Time) (*resource.Resource, bool) {
	var removed *resource.Resource
	_ = e.store.Mutate(func(tx *store.Txn) error {
		existing, ok := tx.Get(id)
		if !ok || !e.Expired(existing, now) {
			return nil
		}
		var err error
		removed, err = tx.Remove(id)
		return err
	})
	if removed == nil {
		return nil, false
	}
	e.logger.Debugf("expired %v('%v')", removed.Type, id)
	return removed, true
}
