package container

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	resolverType = reflect.TypeFor[*Resolver]()
	providerType = reflect.TypeFor[Provider]()
	fallbackType = reflect.TypeFor[*Fallback]()
)

// frame is one entry of the build stack.
type frame struct {
	service reflect.Type
	impl    reflect.Type
}

// Resolver turns service types into instances. It is built by
// Container.Build and is meant to live as long as one unit of work.
//
// A Resolver is not safe for concurrent use: its scoped instances and its
// build stack belong to one goroutine. Only the singleton cache it shares
// with its Container is concurrent.
type Resolver struct {
	id            uuid.UUID
	registrations map[reflect.Type]Registration
	singletons    *singletonCache
	scoped        map[reflect.Type]any
	closers       []io.Closer
	fallback      Provider
	cfg           buildConfig
	building      []frame
	log           *zap.Logger
	observer      Observer
}

func newResolver(c *Container, regs map[reflect.Type]Registration, cfg buildConfig) *Resolver {
	r := &Resolver{
		id:            uuid.New(),
		registrations: regs,
		singletons:    c.singletons,
		scoped:        make(map[reflect.Type]any),
		fallback:      cfg.fallback,
		cfg:           cfg,
		observer:      c.observer,
	}
	r.log = c.log.With(zap.Stringer("resolver", r.id))

	// The resolver exposes itself as the ambient provider
	self := Registration{lifetime: Singleton, typ: resolverType, instance: r}
	regs[resolverType] = self
	regs[providerType] = self
	if cfg.host != nil {
		regs[fallbackType] = Registration{
			lifetime: Singleton,
			typ:      fallbackType,
			instance: &Fallback{Provider: cfg.host},
		}
	}

	r.log.Debug("resolver built",
		zap.Int("registrations", len(regs)),
		zap.Bool("fallback", r.fallback != nil),
		zap.Bool("auto_register", cfg.autoRegister))
	return r
}

// ID identifies the resolver in logs.
func (r *Resolver) ID() uuid.UUID { return r.id }

// GetService resolves serviceType. It returns nil, nil when the type is
// neither registered, nor served by the fallback provider, nor eligible
// for auto-registration.
func (r *Resolver) GetService(serviceType reflect.Type) (any, error) {
	if serviceType == nil {
		return nil, resolutionError(nil, r.chain(), ErrNilServiceType)
	}

	if reg, ok := r.registrations[serviceType]; ok {
		return r.resolve(serviceType, reg)
	}

	if r.fallback != nil {
		v, err := r.fallback.GetService(serviceType)
		if err != nil {
			return nil, err
		}
		if !isNil(v) {
			return v, nil
		}
	}

	if lifetime, ok := r.autoLifetime(serviceType); ok {
		reg := Registration{lifetime: lifetime, typ: serviceType}
		r.registrations[serviceType] = reg
		r.log.Debug("service auto-registered",
			zap.Stringer("service", serviceType),
			zap.Stringer("lifetime", lifetime))
		return r.resolve(serviceType, reg)
	}

	return nil, nil
}

// autoLifetime decides whether an unregistered type may be registered on
// demand, and at which lifetime.
func (r *Resolver) autoLifetime(t reflect.Type) (Lifetime, bool) {
	if isLazy(t) {
		// Handles are bound to the resolver that made them, never shared
		return Transient, true
	}
	if !r.cfg.autoRegister || !isConstructible(t) || t == fallbackType {
		return 0, false
	}
	return r.cfg.defaultLifetime, true
}

// resolve applies the lifetime of reg.
func (r *Resolver) resolve(t reflect.Type, reg Registration) (any, error) {
	switch reg.lifetime {
	case Singleton:
		if reg.instance != nil {
			return reg.instance, nil
		}
		// Re-entering the flight of a type we are already building would block forever
		if err := r.checkCycle(t, reg.typ); err != nil {
			return nil, err
		}
		v, err := r.singletons.getOrCreate(r, t, func() (any, error) {
			return r.create(t, reg)
		})
		if errors.Is(err, errWaitCycle) {
			return nil, r.cycleError(t)
		}
		return v, err
	case Scoped:
		if v, ok := r.scoped[t]; ok {
			return v, nil
		}
		v, err := r.create(t, reg)
		if err != nil {
			return nil, err
		}
		r.scoped[t] = v
		if c, ok := v.(io.Closer); ok {
			r.closers = append(r.closers, c)
		}
		return v, nil
	case Transient:
		return r.create(t, reg)
	default:
		return nil, resolutionError(t, r.chain(), fmt.Errorf("%w %d", ErrUnknownLifetime, int(reg.lifetime)))
	}
}

// create builds a new instance for reg and reports it to the observer.
func (r *Resolver) create(t reflect.Type, reg Registration) (any, error) {
	if reg.instance != nil {
		return reg.instance, nil
	}

	start := time.Now()
	v, err := r.construct(t, reg)
	if r.observer != nil {
		if err != nil {
			r.observer.ServiceFailed(t, reg.lifetime, err)
		} else {
			r.observer.ServiceCreated(t, reg.lifetime, time.Since(start))
		}
	}
	return v, err
}

func (r *Resolver) construct(t reflect.Type, reg Registration) (any, error) {
	if reg.factory != nil {
		if err := r.checkCycle(t, nil); err != nil {
			return nil, err
		}
		r.push(t, nil)
		defer r.pop()

		v, err := reg.factory(r)
		if err != nil {
			return nil, resolutionError(t, r.chain(), err)
		}
		if isNil(v) {
			return nil, resolutionError(t, r.chain(), ErrNilFactoryResult)
		}
		return v, nil
	}

	impl := reg.typ
	if isLazy(impl) {
		return activateLazy(impl, r), nil
	}

	if err := r.checkCycle(t, impl); err != nil {
		return nil, err
	}
	r.push(t, impl)
	defer r.pop()

	v, err := r.build(impl)
	if err != nil {
		return nil, resolutionError(t, r.chain(), err)
	}
	if isNil(v) {
		return nil, resolutionError(t, r.chain(), ErrNilConstruction)
	}
	return v, nil
}

// build allocates impl and fills its exported fields tagged `inject`.
// `inject:"required"` makes an absent dependency an error.
func (r *Resolver) build(impl reflect.Type) (any, error) {
	st := impl
	if impl.Kind() == reflect.Pointer {
		st = impl.Elem()
	}

	ptr := reflect.New(st)
	obj := ptr.Elem()
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		tag, ok := field.Tag.Lookup("inject")
		if !ok || tag == "-" || !field.IsExported() {
			continue
		}

		dep, err := r.GetService(field.Type)
		if err != nil {
			return nil, err
		}
		if isNil(dep) {
			if tag == "required" {
				return nil, fmt.Errorf("%w: field %s (%s)", ErrMissingDependency, field.Name, field.Type)
			}
			continue
		}

		dv := reflect.ValueOf(dep)
		if !dv.Type().AssignableTo(field.Type) {
			return nil, fmt.Errorf("%w: field %s wants %s, got %s", ErrTypeMismatch, field.Name, field.Type, dv.Type())
		}
		obj.Field(i).Set(dv)
	}

	if impl.Kind() == reflect.Pointer {
		return ptr.Interface(), nil
	}
	return obj.Interface(), nil
}

// ── Build stack ───────────────────────────────────────────────────────────────

func (r *Resolver) push(service, impl reflect.Type) {
	r.building = append(r.building, frame{service: service, impl: impl})
}

func (r *Resolver) pop() {
	r.building = r.building[:len(r.building)-1]
}

// checkCycle fails when service or impl is already under construction.
func (r *Resolver) checkCycle(service, impl reflect.Type) error {
	if slices.ContainsFunc(r.building, func(f frame) bool {
		return f.service == service || (impl != nil && f.impl == impl)
	}) {
		return r.cycleError(service)
	}
	return nil
}

func (r *Resolver) cycleError(service reflect.Type) error {
	chain := append(r.chain(), service)
	r.log.Debug("circular dependency", zap.Stringers("chain", chain))
	return &ResolutionError{ServiceType: service, Chain: chain, Err: ErrCircularDependency}
}

// chain returns the service types under construction, outermost first.
func (r *Resolver) chain() []reflect.Type {
	out := make([]reflect.Type, len(r.building))
	for i, f := range r.building {
		out[i] = f.service
	}
	return out
}

// ── Disposal ──────────────────────────────────────────────────────────────────

// Close closes the scoped instances of this resolver that implement
// io.Closer, newest first, and forgets them. Singletons belong to the
// Container and transients to whoever asked for them.
func (r *Resolver) Close() error {
	closers := r.closers
	r.closers = nil
	clear(r.scoped)

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		r.log.Debug("resolver closed with errors", zap.Int("errors", len(errs)))
	}
	return errors.Join(errs...)
}
