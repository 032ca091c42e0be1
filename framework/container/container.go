package container

import (
	"cmp"
	"reflect"
	"slices"

	"go.uber.org/zap"
)

// ── Options ───────────────────────────────────────────────────────────────────

// Option configures a Container.
type Option func(*Container)

// WithDuplicateStrategy sets what happens when a service type is registered twice.
// The default is Override.
func WithDuplicateStrategy(s DuplicateStrategy) Option {
	return func(c *Container) { c.duplicates = s }
}

// WithLogger sets the logger used by the Container and every Resolver it builds.
func WithLogger(log *zap.Logger) Option {
	return func(c *Container) {
		if log != nil {
			c.log = log
		}
	}
}

// WithObserver reports every construction to o.
func WithObserver(o Observer) Option {
	return func(c *Container) { c.observer = o }
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container accumulates registrations and builds Resolvers from them.
//
// Registration is meant to happen once, at composition time, from a single
// goroutine. The singleton cache owned by the Container is shared by every
// Resolver it builds and is safe for concurrent use.
type Container struct {
	registrations map[reflect.Type]Registration
	singletons    *singletonCache
	duplicates    DuplicateStrategy
	log           *zap.Logger
	observer      Observer
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		registrations: make(map[reflect.Type]Registration),
		singletons:    newSingletonCache(),
		duplicates:    Override,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Logger returns the logger the container was configured with.
func (c *Container) Logger() *zap.Logger { return c.log }

// DuplicateStrategy returns the active duplicate registration policy.
func (c *Container) DuplicateStrategy() DuplicateStrategy { return c.duplicates }

// ── Registration ──────────────────────────────────────────────────────────────

// Add registers reg under serviceType, honouring the duplicate strategy.
func (c *Container) Add(serviceType reflect.Type, reg Registration) error {
	if serviceType == nil {
		return registrationError(nil, ErrNilServiceType)
	}

	if _, exists := c.registrations[serviceType]; exists {
		switch c.duplicates {
		case Ignore:
			c.log.Debug("duplicate registration ignored",
				zap.Stringer("service", serviceType),
				zap.Stringer("lifetime", reg.lifetime))
			return nil
		case Throw:
			return registrationError(serviceType, ErrDuplicateRegistration)
		}
	}

	c.registrations[serviceType] = reg
	if reg.lifetime == Singleton {
		// Drop any cached instance so it is rebuilt with the new registration
		c.singletons.forget(serviceType)
	}

	c.log.Debug("service registered",
		zap.Stringer("service", serviceType),
		zap.Stringer("lifetime", reg.lifetime))
	return nil
}

func (c *Container) addType(lifetime Lifetime, serviceType, implType reflect.Type) error {
	if serviceType == nil || implType == nil {
		return registrationError(serviceType, ErrNilServiceType)
	}
	if !implType.AssignableTo(serviceType) {
		return registrationError(serviceType, ErrNotAssignable)
	}
	reg, err := NewRegistration(lifetime, implType, nil, nil)
	if err != nil {
		return err
	}
	return c.Add(serviceType, reg)
}

func (c *Container) addFactory(lifetime Lifetime, serviceType reflect.Type, factory Factory, origin any) error {
	if factory == nil {
		return registrationError(serviceType, ErrNoStrategy)
	}
	reg, err := newRegistration(lifetime, nil, factory, nil, origin)
	if err != nil {
		return err
	}
	return c.Add(serviceType, reg)
}

// AddSingleton registers t as a singleton built reflectively from t itself.
func (c *Container) AddSingleton(t reflect.Type) error {
	return c.addType(Singleton, t, t)
}

// AddSingletonType registers implType as the singleton implementation of serviceType.
func (c *Container) AddSingletonType(serviceType, implType reflect.Type) error {
	return c.addType(Singleton, serviceType, implType)
}

// AddSingletonFactory registers a singleton produced by factory.
func (c *Container) AddSingletonFactory(serviceType reflect.Type, factory Factory) error {
	return c.addFactory(Singleton, serviceType, factory, factory)
}

// AddSingletonInstance registers a pre-built value. The lifetime is always Singleton.
func (c *Container) AddSingletonInstance(serviceType reflect.Type, instance any) error {
	if serviceType == nil {
		return registrationError(nil, ErrNilServiceType)
	}
	if isNil(instance) {
		return registrationError(serviceType, ErrNoStrategy)
	}
	if !reflect.TypeOf(instance).AssignableTo(serviceType) {
		return registrationError(serviceType, ErrNotAssignable)
	}
	reg, err := NewRegistration(Singleton, reflect.TypeOf(instance), nil, instance)
	if err != nil {
		return err
	}
	return c.Add(serviceType, reg)
}

// AddScoped registers t as scoped, built reflectively from t itself.
func (c *Container) AddScoped(t reflect.Type) error {
	return c.addType(Scoped, t, t)
}

// AddScopedType registers implType as the scoped implementation of serviceType.
func (c *Container) AddScopedType(serviceType, implType reflect.Type) error {
	return c.addType(Scoped, serviceType, implType)
}

// AddScopedFactory registers a scoped service produced by factory.
func (c *Container) AddScopedFactory(serviceType reflect.Type, factory Factory) error {
	return c.addFactory(Scoped, serviceType, factory, factory)
}

// AddTransient registers t as transient, built reflectively from t itself.
func (c *Container) AddTransient(t reflect.Type) error {
	return c.addType(Transient, t, t)
}

// AddTransientType registers implType as the transient implementation of serviceType.
func (c *Container) AddTransientType(serviceType, implType reflect.Type) error {
	return c.addType(Transient, serviceType, implType)
}

// AddTransientFactory registers a transient service produced by factory.
func (c *Container) AddTransientFactory(serviceType reflect.Type, factory Factory) error {
	return c.addFactory(Transient, serviceType, factory, factory)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// IsRegistered reports whether serviceType has a registration.
func (c *Container) IsRegistered(serviceType reflect.Type) bool {
	_, ok := c.registrations[serviceType]
	return ok
}

// Remove drops the registration of serviceType and its cached singleton.
// Removing an unknown type is a no-op.
func (c *Container) Remove(serviceType reflect.Type) {
	if _, ok := c.registrations[serviceType]; !ok {
		return
	}
	delete(c.registrations, serviceType)
	c.singletons.forget(serviceType)
}

// Registered returns the registered service types sorted by name (for debugging).
func (c *Container) Registered() []reflect.Type {
	out := make([]reflect.Type, 0, len(c.registrations))
	for t := range c.registrations {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b reflect.Type) int {
		return cmp.Compare(a.String(), b.String())
	})
	return out
}

// Close closes every cached singleton implementing io.Closer, newest first.
// Fixed instances registered with AddSingletonInstance are owned by the
// caller and never closed.
func (c *Container) Close() error {
	return c.singletons.close()
}

// ── Build ─────────────────────────────────────────────────────────────────────

// BuildOption configures a Resolver built by Container.Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	fallback        Provider
	host            Provider // as passed to WithFallback, before any PrependFallback
	defaultLifetime Lifetime
	autoRegister    bool
}

// WithFallback makes the Resolver consult p for types it has no registration for.
func WithFallback(p Provider) BuildOption {
	return func(cfg *buildConfig) {
		cfg.fallback = p
		cfg.host = p
	}
}

// PrependFallback consults p before the fallback configured so far, if any.
// The first non-nil result or error wins. The *Fallback service keeps
// exposing only the provider passed to WithFallback.
func PrependFallback(p Provider) BuildOption {
	return func(cfg *buildConfig) {
		next := cfg.fallback
		if next == nil {
			cfg.fallback = p
			return
		}
		cfg.fallback = ProviderFunc(func(t reflect.Type) (any, error) {
			v, err := p.GetService(t)
			if err != nil || !isNil(v) {
				return v, err
			}
			return next.GetService(t)
		})
	}
}

// WithDefaultLifetime enables auto-registration of unregistered concrete
// struct types at lifetime l. Scoped is the default.
func WithDefaultLifetime(l Lifetime) BuildOption {
	return func(cfg *buildConfig) {
		cfg.defaultLifetime = l
		cfg.autoRegister = true
	}
}

// WithoutDefaultLifetime disables auto-registration: unregistered types
// resolve to nil.
func WithoutDefaultLifetime() BuildOption {
	return func(cfg *buildConfig) { cfg.autoRegister = false }
}

// Build snapshots the current registrations into a new Resolver. Later
// changes to the Container do not affect it, except through the shared
// singleton cache.
func (c *Container) Build(opts ...BuildOption) *Resolver {
	cfg := buildConfig{defaultLifetime: Scoped, autoRegister: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	regs := make(map[reflect.Type]Registration, len(c.registrations)+3)
	for t, reg := range c.registrations {
		regs[t] = reg
	}

	return newResolver(c, regs, cfg)
}
