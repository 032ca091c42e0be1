package container

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"
)

// errWaitCycle reports that joining a flight would wait on a chain of
// resolvers that is itself waiting on the caller.
var errWaitCycle = errors.New("container: singleton flights wait on each other")

// singletonCache is the only state shared between the Resolvers of one
// Container. Creation of a given type is deduplicated with singleflight and
// the value is stored before the flight ends, so every caller observes the
// same single instance.
//
// owners and waiting form the wait-for graph between resolvers building
// singletons on different goroutines. A resolver about to join a flight
// first walks that graph; reaching itself means the flights would never end.
type singletonCache struct {
	values sync.Map // reflect.Type -> any
	flight singleflight.Group

	mu      sync.Mutex
	created []any                      // creation order, for Close
	owners  map[reflect.Type]*Resolver // flight leader per type
	waiting map[*Resolver]reflect.Type // type each resolver is blocked on
}

func newSingletonCache() *singletonCache {
	return &singletonCache{
		owners:  make(map[reflect.Type]*Resolver),
		waiting: make(map[*Resolver]reflect.Type),
	}
}

// getOrCreate returns the cached instance of t, creating it on behalf of r
// when absent. It returns errWaitCycle instead of blocking when the flight
// for t is led, directly or transitively, by a resolver waiting on r.
func (s *singletonCache) getOrCreate(r *Resolver, t reflect.Type, create func() (any, error)) (any, error) {
	if v, ok := s.values.Load(t); ok {
		return v, nil
	}

	s.mu.Lock()
	if s.waitsOn(t, r) {
		s.mu.Unlock()
		return nil, errWaitCycle
	}
	s.waiting[r] = t
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.waiting, r)
		s.mu.Unlock()
	}()

	v, err, _ := s.flight.Do(flightKey(t), func() (any, error) {
		s.mu.Lock()
		delete(s.waiting, r)
		s.owners[t] = r
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.owners, t)
			s.mu.Unlock()
		}()

		if v, ok := s.values.Load(t); ok {
			return v, nil
		}
		v, err := create()
		if err != nil {
			return nil, err
		}
		s.values.Store(t, v)
		s.mu.Lock()
		s.created = append(s.created, v)
		s.mu.Unlock()
		return v, nil
	})
	return v, err
}

// waitsOn follows leader -> awaited type -> leader from the flight of t and
// reports whether it comes back to r. s.mu must be held.
func (s *singletonCache) waitsOn(t reflect.Type, r *Resolver) bool {
	for range len(s.owners) + 1 {
		owner, ok := s.owners[t]
		if !ok {
			return false
		}
		if owner == r {
			return true
		}
		if t, ok = s.waiting[owner]; !ok {
			return false
		}
	}
	return false
}

// forget evicts the cached instance of t so the next resolution rebuilds it.
func (s *singletonCache) forget(t reflect.Type) {
	v, ok := s.values.LoadAndDelete(t)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = slices.DeleteFunc(s.created, func(c any) bool { return sameInstance(c, v) })
}

// close closes every cached io.Closer, newest first, and empties the cache.
func (s *singletonCache) close() error {
	s.mu.Lock()
	created := s.created
	s.created = nil
	s.mu.Unlock()

	s.values.Clear()

	var errs []error
	for i := len(created) - 1; i >= 0; i-- {
		if c, ok := created[i].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// flightKey is unique per type: the address of its runtime descriptor.
func flightKey(t reflect.Type) string {
	return fmt.Sprintf("%p", t)
}
