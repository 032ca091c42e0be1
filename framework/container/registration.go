package container

import (
	"reflect"
)

// Factory builds an instance with the help of the Resolver it is invoked on.
type Factory func(r *Resolver) (any, error)

// Registration records how one service type is produced. The zero value is
// not usable; build registrations with NewRegistration.
type Registration struct {
	lifetime Lifetime
	typ      reflect.Type
	factory  Factory
	instance any

	// code pointer of the function the factory was created from, used by Equal
	factoryPC uintptr
}

// NewRegistration validates and returns a Registration. Exactly one of the
// strategies is used, in the order instance, factory, implType.
func NewRegistration(lifetime Lifetime, implType reflect.Type, factory Factory, instance any) (Registration, error) {
	return newRegistration(lifetime, implType, factory, instance, factory)
}

func newRegistration(lifetime Lifetime, implType reflect.Type, factory Factory, instance any, origin any) (Registration, error) {
	if isNil(instance) {
		// A typed nil is no instance at all
		instance = nil
	}
	if instance != nil && lifetime != Singleton {
		return Registration{}, registrationError(implType, ErrInstanceLifetime)
	}
	if factory == nil && instance == nil {
		if implType == nil {
			return Registration{}, registrationError(nil, ErrNoStrategy)
		}
		if !isConstructible(implType) {
			return Registration{}, registrationError(implType, ErrNotConstructible)
		}
	}
	reg := Registration{
		lifetime: lifetime,
		typ:      implType,
		factory:  factory,
		instance: instance,
	}
	if factory != nil {
		reg.factoryPC = funcPC(origin)
	}
	return reg, nil
}

// Lifetime returns the reuse policy.
func (r Registration) Lifetime() Lifetime { return r.lifetime }

// Type returns the implementation type, nil for pure factory or instance registrations.
func (r Registration) Type() reflect.Type { return r.typ }

// Factory returns the factory, if any.
func (r Registration) Factory() Factory { return r.factory }

// Instance returns the fixed instance, if any.
func (r Registration) Instance() any { return r.instance }

// Equal reports whether both registrations describe the same strategy.
// Factories compare by the function they were built from, not by the state
// captured in their closures.
func (r Registration) Equal(o Registration) bool {
	return r.lifetime == o.lifetime &&
		r.typ == o.typ &&
		r.factoryPC == o.factoryPC &&
		sameInstance(r.instance, o.instance)
}

// isConstructible reports whether t can be built by allocating a struct:
// a struct type or a pointer to one.
func isConstructible(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Struct:
		return true
	case reflect.Pointer:
		return t.Elem().Kind() == reflect.Struct
	default:
		return false
	}
}

func funcPC(fn any) uintptr {
	if fn == nil {
		return 0
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return 0
	}
	return v.Pointer()
}

// sameInstance compares by identity where the dynamic type allows it.
func sameInstance(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}

// isNil treats typed nil pointers, maps, slices and friends as nil.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}
