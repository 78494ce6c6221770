package store

import (
	"sync"

	"github.com/plgd-dev/nmos-registry/registry/resource"
)

// Observer is notified about every mutation inside the critical section of the store,
// so the state it keeps next to the store changes atomically with the store.
type Observer interface {
	OnMutation(tx *Txn, op resource.Op, pre, post *resource.Resource)
}

// Store holds all registered resources behind one mutex. The same mutex guards
// every state attached to the store by its observers, and the condition variable
// bound to it is the wake signal of the workers waiting for changes.
type Store struct {
	mutex     sync.Mutex
	cond      *sync.Cond
	resources map[string]*resource.Resource
	// children maps a resource id to the ids of the resources referencing it.
	children    map[string]map[string]struct{}
	nextCreated uint64
	observers   []Observer
	closed      bool
}

func New() *Store {
	s := &Store{
		resources: make(map[string]*resource.Resource),
		children:  make(map[string]map[string]struct{}),
	}
	s.cond = sync.NewCond(&s.mutex)
	return s
}

// AddObserver registers an observer of the mutations.
func (s *Store) AddObserver(o Observer) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.observers = append(s.observers, o)
}

// Mutate runs f inside the critical section and raises the wake signal.
func (s *Store) Mutate(f func(tx *Txn) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	tx := Txn{store: s}
	err := f(&tx)
	tx.store = nil
	s.cond.Broadcast()
	return err
}

// Read runs f inside the critical section without raising the wake signal.
func (s *Store) Read(f func(tx *Txn)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	tx := Txn{store: s}
	f(&tx)
	tx.store = nil
}

// Await blocks until ready reports true and then runs f, both inside the critical
// section. It returns false without calling f when the store is closed.
func (s *Store) Await(ready func(tx *Txn) bool, f func(tx *Txn)) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	tx := Txn{store: s}
	defer func() { tx.store = nil }()
	for !s.closed && !ready(&tx) {
		s.cond.Wait()
	}
	if s.closed {
		return false
	}
	f(&tx)
	return true
}

// Close sets the shutdown flag and wakes every waiter. Mutations are still
// allowed afterwards so the workers can detach their connections.
func (s *Store) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
	s.cond.Broadcast()
}
