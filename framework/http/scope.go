package http

import (
	"context"
	"errors"
	"net/http"
	"reflect"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/container"
)

// ErrNoScope is returned by Resolve when the request did not pass through Scope.
var ErrNoScope = errors.New("http: request has no resolver scope")

type resolverKey struct{}

var (
	httpRequestType = reflect.TypeFor[*http.Request]()
	contextType     = reflect.TypeFor[context.Context]()
	requestType     = reflect.TypeFor[*Request]()
)

// Scope builds one Resolver per request from c and closes it once the
// handler returns. Inside the request, services may depend on
// *http.Request, *Request and context.Context; those are served by a
// fallback consulted before any fallback passed in opts.
//
//	router.Use(gohttp.Scope(c))
//	router.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
//	    svc, err := gohttp.Resolve[*UserService](r)
//	    ...
//	})
func Scope(c *container.Container, opts ...container.BuildOption) func(http.Handler) http.Handler {
	log := c.Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var scoped *http.Request
			fallback := container.ProviderFunc(func(t reflect.Type) (any, error) {
				switch t {
				case httpRequestType:
					return scoped, nil
				case contextType:
					return scoped.Context(), nil
				case requestType:
					return NewRequest(scoped), nil
				}
				return nil, nil
			})

			buildOpts := append(opts[:len(opts):len(opts)], container.PrependFallback(fallback))
			resolver := c.Build(buildOpts...)
			scoped = r.WithContext(WithResolver(r.Context(), resolver))

			defer func() {
				if err := resolver.Close(); err != nil {
					log.Error("closing request scope",
						zap.Stringer("resolver", resolver.ID()),
						zap.String("path", r.URL.Path),
						zap.Error(err))
				}
			}()

			next.ServeHTTP(w, scoped)
		})
	}
}

// WithResolver returns a copy of ctx carrying r.
func WithResolver(ctx context.Context, r *container.Resolver) context.Context {
	return context.WithValue(ctx, resolverKey{}, r)
}

// ResolverFrom returns the Resolver stored in ctx, or nil.
func ResolverFrom(ctx context.Context) *container.Resolver {
	r, _ := ctx.Value(resolverKey{}).(*container.Resolver)
	return r
}

// Resolve resolves T from the request's scope.
func Resolve[T any](r *http.Request) (T, error) {
	resolver := ResolverFrom(r.Context())
	if resolver == nil {
		var zero T
		return zero, ErrNoScope
	}
	return container.Get[T](resolver)
}
