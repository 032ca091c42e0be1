package container

import (
	"fmt"
	"reflect"
)

// ── Generic registration helpers ──────────────────────────────────────────────
//
// Go methods cannot take type parameters, so the typed forms of the AddX
// family are package functions.
//
//	container.AddSingletonAs[Mailer, *SMTPMailer](c)
//	container.AddScoped[*UnitOfWork](c)
//	container.AddTransientFactory(c, func(r *container.Resolver) (*Report, error) {
//	    return NewReport(), nil
//	})

// AddSingleton registers T as a singleton built from T itself.
func AddSingleton[T any](c *Container) error {
	return c.AddSingleton(reflect.TypeFor[T]())
}

// AddSingletonAs registers I as the singleton implementation of S.
func AddSingletonAs[S, I any](c *Container) error {
	return c.AddSingletonType(reflect.TypeFor[S](), reflect.TypeFor[I]())
}

// AddSingletonFactory registers a typed singleton factory.
func AddSingletonFactory[T any](c *Container, factory func(r *Resolver) (T, error)) error {
	return c.addFactory(Singleton, reflect.TypeFor[T](), typed(factory), factory)
}

// AddSingletonInstance registers a pre-built value under T.
func AddSingletonInstance[T any](c *Container, instance T) error {
	return c.AddSingletonInstance(reflect.TypeFor[T](), instance)
}

// AddScoped registers T as scoped, built from T itself.
func AddScoped[T any](c *Container) error {
	return c.AddScoped(reflect.TypeFor[T]())
}

// AddScopedAs registers I as the scoped implementation of S.
func AddScopedAs[S, I any](c *Container) error {
	return c.AddScopedType(reflect.TypeFor[S](), reflect.TypeFor[I]())
}

// AddScopedFactory registers a typed scoped factory.
func AddScopedFactory[T any](c *Container, factory func(r *Resolver) (T, error)) error {
	return c.addFactory(Scoped, reflect.TypeFor[T](), typed(factory), factory)
}

// AddTransient registers T as transient, built from T itself.
func AddTransient[T any](c *Container) error {
	return c.AddTransient(reflect.TypeFor[T]())
}

// AddTransientAs registers I as the transient implementation of S.
func AddTransientAs[S, I any](c *Container) error {
	return c.AddTransientType(reflect.TypeFor[S](), reflect.TypeFor[I]())
}

// AddTransientFactory registers a typed transient factory.
func AddTransientFactory[T any](c *Container, factory func(r *Resolver) (T, error)) error {
	return c.addFactory(Transient, reflect.TypeFor[T](), typed(factory), factory)
}

// IsRegistered reports whether T has a registration.
func IsRegistered[T any](c *Container) bool {
	return c.IsRegistered(reflect.TypeFor[T]())
}

// Remove drops the registration of T.
func Remove[T any](c *Container) {
	c.Remove(reflect.TypeFor[T]())
}

func typed[T any](factory func(r *Resolver) (T, error)) Factory {
	if factory == nil {
		return nil
	}
	return func(r *Resolver) (any, error) {
		v, err := factory(r)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// ── Resolution helpers ────────────────────────────────────────────────────────

// Get resolves T from p. An absent service yields the zero value and a nil error.
//
//	mailer, err := container.Get[Mailer](resolver)
func Get[T any](p Provider) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()
	v, err := p.GetService(t)
	if err != nil || isNil(v) {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, &ResolutionError{
			ServiceType: t,
			Err:         fmt.Errorf("%w: got %T", ErrTypeMismatch, v),
		}
	}
	return out, nil
}

// MustGet is like Get but panics on error. Use it during startup only.
func MustGet[T any](p Provider) T {
	v, err := Get[T](p)
	if err != nil {
		panic(err)
	}
	return v
}

// ── Constructor functions ─────────────────────────────────────────────────────

var errorType = reflect.TypeFor[error]()

// Constructor adapts an ordinary Go constructor into a Factory. fn must be a
// function returning T or (T, error); each parameter is resolved through
// the Resolver, absent ones are passed as their zero value.
//
//	f, err := container.Constructor(NewUserService) // func(repo UserRepo, log *zap.Logger) *UserService
//	err = c.AddScopedFactory(reflect.TypeFor[*UserService](), f)
func Constructor(fn any) (Factory, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, registrationError(nil, fmt.Errorf("%w: constructor must be a function, got %T", ErrNoStrategy, fn))
	}
	ft := fv.Type()
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return nil, registrationError(ft, fmt.Errorf("%w: constructor must return T or (T, error)", ErrNotConstructible))
	}
	if ft.IsVariadic() {
		return nil, registrationError(ft, fmt.Errorf("%w: variadic constructors are not supported", ErrNotConstructible))
	}

	params := make([]reflect.Type, ft.NumIn())
	for i := range params {
		params[i] = ft.In(i)
	}

	return func(r *Resolver) (any, error) {
		args := make([]reflect.Value, len(params))
		for i, pt := range params {
			dep, err := r.GetService(pt)
			if err != nil {
				return nil, err
			}
			if isNil(dep) {
				args[i] = reflect.Zero(pt)
				continue
			}
			dv := reflect.ValueOf(dep)
			if !dv.Type().AssignableTo(pt) {
				return nil, fmt.Errorf("%w: parameter %d wants %s, got %s", ErrTypeMismatch, i, pt, dv.Type())
			}
			args[i] = dv
		}

		out := fv.Call(args)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface(), nil
	}, nil
}

// AddConstructor registers fn under its first return type at lifetime.
//
//	err := c.AddConstructor(container.Scoped, NewUserService)
func (c *Container) AddConstructor(lifetime Lifetime, fn any) error {
	factory, err := Constructor(fn)
	if err != nil {
		return err
	}
	return c.addFactory(lifetime, reflect.TypeOf(fn).Out(0), factory, fn)
}
