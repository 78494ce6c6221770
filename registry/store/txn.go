package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/plgd-dev/nmos-registry/registry/resource"
)

// Txn gives access to the store inside the critical section. It must not be
// retained after the function it was passed to returns.
type Txn struct {
	store *Store
}

func (tx *Txn) Get(id string) (*resource.Resource, bool) {
	r, ok := tx.store.resources[id]
	return r, ok
}

func (tx *Txn) Len() int {
	return len(tx.store.resources)
}

func (tx *Txn) notify(op resource.Op, pre, post *resource.Resource) {
	for _, o := range tx.store.observers {
		o.OnMutation(tx, op, pre, post)
	}
}

func (tx *Txn) link(r *resource.Resource) {
	for _, p := range r.ParentRefs {
		c, ok := tx.store.children[p]
		if !ok {
			c = make(map[string]struct{})
			tx.store.children[p] = c
		}
		c[r.ID] = struct{}{}
	}
}

func (tx *Txn) unlink(r *resource.Resource) {
	for _, p := range r.ParentRefs {
		c, ok := tx.store.children[p]
		if !ok {
			continue
		}
		delete(c, r.ID)
		if len(c) == 0 {
			delete(tx.store.children, p)
		}
	}
}

// Insert stores a new resource with version 1.
func (tx *Txn) Insert(r *resource.Resource) (*resource.Resource, error) {
	if _, ok := tx.store.resources[r.ID]; ok {
		return nil, fmt.Errorf("%w: resource('%v') already exists", resource.ErrConflict, r.ID)
	}
	post := r.Clone()
	tx.store.nextCreated++
	post.CreatedAt = tx.store.nextCreated
	post.Version = 1
	tx.store.resources[post.ID] = post
	tx.link(post)
	tx.notify(resource.Created, nil, post)
	return post, nil
}

// Update replaces the body and parent references of an existing resource and
// bumps its version. The health deadline of r is applied when the stored
// resource is health tracked; an exempt resource stays exempt.
func (tx *Txn) Update(r *resource.Resource) (*resource.Resource, error) {
	pre, ok := tx.store.resources[r.ID]
	if !ok {
		return nil, fmt.Errorf("%w: resource('%v')", resource.ErrNotFound, r.ID)
	}
	post := r.Clone()
	post.Type = pre.Type
	post.CreatedAt = pre.CreatedAt
	post.Version = pre.Version + 1
	if !pre.HealthTracked() {
		post.HealthDeadline = time.Time{}
	}
	tx.unlink(pre)
	tx.store.resources[post.ID] = post
	tx.link(post)
	tx.notify(resource.Updated, pre, post)
	return post, nil
}

// Refresh moves the health deadline of the resource and of every health tracked
// resource depending on it, directly or transitively. Bodies and versions are
// untouched and no mutation is reported. It returns the ids refreshed.
func (tx *Txn) Refresh(id string, deadline time.Time) ([]string, error) {
	if _, ok := tx.store.resources[id]; !ok {
		return nil, fmt.Errorf("%w: resource('%v')", resource.ErrNotFound, id)
	}
	var refreshed []string
	for _, rid := range tx.Descendants(id, true) {
		r := tx.store.resources[rid]
		if !r.HealthTracked() {
			continue
		}
		c := *r
		c.HealthDeadline = deadline
		tx.store.resources[rid] = &c
		refreshed = append(refreshed, rid)
	}
	return refreshed, nil
}

// Descendants returns the ids of the resources depending on id, transitively,
// in breadth first order. The id itself is the first element when self is set.
func (tx *Txn) Descendants(id string, self bool) []string {
	visited := map[string]struct{}{id: {}}
	queue := []string{id}
	var out []string
	if self {
		out = append(out, id)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		children := make([]string, 0, len(tx.store.children[cur]))
		for c := range tx.store.children[cur] {
			children = append(children, c)
		}
		sort.Strings(children)
		for _, c := range children {
			if _, ok := visited[c]; ok {
				continue
			}
			visited[c] = struct{}{}
			if _, ok := tx.store.resources[c]; !ok {
				continue
			}
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

// Remove deletes the resource and returns it.
func (tx *Txn) Remove(id string) (*resource.Resource, error) {
	pre, ok := tx.store.resources[id]
	if !ok {
		return nil, fmt.Errorf("%w: resource('%v')", resource.ErrNotFound, id)
	}
	delete(tx.store.resources, id)
	tx.unlink(pre)
	tx.notify(resource.Deleted, pre, nil)
	return pre, nil
}

// Snapshot returns the resources of the given types, all types when none is
// given, ordered by insertion.
func (tx *Txn) Snapshot(types ...resource.Type) []*resource.Resource {
	var filter map[resource.Type]struct{}
	if len(types) > 0 {
		filter = make(map[resource.Type]struct{}, len(types))
		for _, t := range types {
			filter[t] = struct{}{}
		}
	}
	out := make([]*resource.Resource, 0, len(tx.store.resources))
	for _, r := range tx.store.resources {
		if filter != nil {
			if _, ok := filter[r.Type]; !ok {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out
}
