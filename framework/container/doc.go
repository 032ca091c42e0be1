// Package container provides a small IoC (Inversion of Control) container
// with singleton, scoped and transient lifetimes.
//
// # Overview
//
// A Container collects registrations keyed by service type. Build snapshots
// them into a Resolver, the object that actually turns types into instances.
// Build a Resolver per unit of work (an HTTP request, a job, a test) and throw
// it away afterwards; the Container and its singletons outlive all of them.
//
// # Container Lifecycle
//
//  1. Create: c := container.New()
//  2. Register: container.AddSingletonAs[Clock, *SystemClock](c)
//  3. Build:    r := c.Build()
//  4. Resolve:  clock, err := container.Get[Clock](r)
//
// # Registrations
//
//	// Reflective: the struct is allocated and its `inject` fields resolved
//	container.AddScoped[*UnitOfWork](c)
//	container.AddSingletonAs[Mailer, *SMTPMailer](c)
//
//	// Factory
//	container.AddTransientFactory(c, func(r *container.Resolver) (*Report, error) {
//	    return &Report{At: time.Now()}, nil
//	})
//
//	// Constructor function: parameters are resolved
//	c.AddConstructor(container.Scoped, NewUserService)
//
//	// Pre-built value (always singleton)
//	container.AddSingletonInstance(c, cfg)
//
// # Injection
//
// Exported struct fields tagged `inject` are dependencies. An absent
// dependency leaves the field zero unless the tag says "required":
//
//	type UserService struct {
//	    Repo   UserRepo        `inject:"required"`
//	    Cache  *Cache          `inject:""`
//	    Mailer *container.Lazy[Mailer] `inject:""`
//	}
//
// # Lifetimes
//
//	Singleton  one instance per Container, shared by every Resolver
//	Scoped     one instance per Resolver
//	Transient  a new instance on every resolution
//
// # Resolution order
//
// GetService looks at the Resolver's registrations first, then asks the
// fallback provider (WithFallback), then auto-registers concrete struct types
// at the default lifetime (WithDefaultLifetime, Scoped unless disabled with
// WithoutDefaultLifetime). Anything else resolves to nil without an error.
//
// # Duplicates
//
//	c := container.New(container.WithDuplicateStrategy(container.Throw))
//
// Override (default) replaces, Ignore keeps the first, Throw returns a
// *RegistrationError.
//
// # Service Providers
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(c *container.Container) error {
//	    return container.AddSingletonAs[Mailer, *SMTPMailer](c)
//	}
//
//	registry := container.NewProviderRegistry(c)
//	registry.Register(&AppServiceProvider{})
//	registry.Boot(c.Build())
package container
