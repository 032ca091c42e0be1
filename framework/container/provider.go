package container

import (
	"errors"
	"reflect"
	"time"
)

// Provider is anything that can look up a service by type. A nil result
// with a nil error means the service is not available from this provider.
type Provider interface {
	GetService(serviceType reflect.Type) (any, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(serviceType reflect.Type) (any, error)

func (f ProviderFunc) GetService(serviceType reflect.Type) (any, error) {
	return f(serviceType)
}

// Fallback gives dependencies direct access to the host-supplied fallback
// provider of a Resolver, bypassing its local registrations. It is only
// resolvable when the Resolver was built with WithFallback.
type Fallback struct {
	Provider
}

// Observer receives a notification for every instance a Resolver constructs.
type Observer interface {
	ServiceCreated(serviceType reflect.Type, lifetime Lifetime, elapsed time.Duration)
	ServiceFailed(serviceType reflect.Type, lifetime Lifetime, err error)
}

// ── ServiceProvider ───────────────────────────────────────────────────────────

// ServiceProvider groups related registrations.
//
// Register binds services into the container and must not resolve anything.
// Boot runs once the root Resolver has been built, so it may resolve any
// registered service.
//
//	type MailProvider struct{ container.BaseProvider }
//
//	func (p *MailProvider) Register(c *container.Container) error {
//	    return container.AddSingletonAs[Mailer, *SMTPMailer](c)
//	}
type ServiceProvider interface {
	Register(c *Container) error
	Boot(r *Resolver) error
}

// BaseProvider is an embeddable no-op Boot implementation.
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Resolver) error { return nil }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry registers ServiceProviders against a Container and boots
// them in registration order.
type ProviderRegistry struct {
	c          *Container
	providers  []ServiceProvider
	registered map[ServiceProvider]bool
	root       *Resolver
}

// NewProviderRegistry creates a registry bound to c.
func NewProviderRegistry(c *Container) *ProviderRegistry {
	return &ProviderRegistry{
		c:          c,
		registered: make(map[ServiceProvider]bool),
	}
}

// Register calls provider.Register. Registering the same provider twice is a
// no-op. A provider registered after Boot is booted immediately against the
// root Resolver, but its registrations only reach Resolvers built afterwards.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	if r.registered[provider] {
		return nil
	}
	if err := provider.Register(r.c); err != nil {
		return err
	}
	r.registered[provider] = true
	r.providers = append(r.providers, provider)

	if r.root != nil {
		return provider.Boot(r.root)
	}
	return nil
}

// Boot calls Boot on every provider in registration order with root.
// Subsequent calls are no-ops.
func (r *ProviderRegistry) Boot(root *Resolver) error {
	if r.root != nil {
		return nil
	}
	r.root = root
	var errs []error
	for _, p := range r.providers {
		if err := p.Boot(root); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Booted returns true once Boot has been called.
func (r *ProviderRegistry) Booted() bool { return r.root != nil }

// Providers returns the registered providers in registration order.
func (r *ProviderRegistry) Providers() []ServiceProvider { return r.providers }
