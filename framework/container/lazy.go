package container

import (
	"fmt"
	"reflect"
	"sync"
)

// Lazy defers the resolution of T until Value is first called. Request it
// as *Lazy[T], either as an injected field or through GetService; the
// handle resolves T against the Resolver that produced it, so T keeps its
// own lifetime rules.
//
//	type ReportJob struct {
//	    Mailer *container.Lazy[Mailer] `inject:""`
//	}
//
// Like the Resolver it came from, a Lazy must not be read concurrently.
type Lazy[T any] struct {
	once    sync.Once
	resolve func() (any, error)
	value   T
	err     error
}

// Value resolves T on the first call and returns the memoized result after.
// An absent optional T yields the zero value and a nil error.
func (l *Lazy[T]) Value() (T, error) {
	l.once.Do(func() {
		if l.resolve == nil {
			l.err = ErrLazyUnbound
			return
		}
		v, err := l.resolve()
		if err != nil {
			l.err = err
			return
		}
		if isNil(v) {
			return
		}
		out, ok := v.(T)
		if !ok {
			l.err = fmt.Errorf("%w: want %s, got %T", ErrTypeMismatch, reflect.TypeFor[T](), v)
			return
		}
		l.value = out
	})
	return l.value, l.err
}

// bindResolver is the activation hook the Resolver calls on a fresh handle.
func (l *Lazy[T]) bindResolver(r *Resolver) {
	target := reflect.TypeFor[T]()
	l.resolve = func() (any, error) {
		return r.GetService(target)
	}
}

type lazyActivator interface {
	bindResolver(r *Resolver)
}

var lazyActivatorType = reflect.TypeFor[lazyActivator]()

// isLazy reports whether t is a *Lazy[T] for some T.
func isLazy(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Pointer && t.Implements(lazyActivatorType)
}

func activateLazy(t reflect.Type, r *Resolver) any {
	handle := reflect.New(t.Elem()).Interface()
	handle.(lazyActivator).bindResolver(r)
	return handle
}
