package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	gohttp "github.com/km-arc/go-ioc/framework/http"
	"github.com/km-arc/go-ioc/framework/logging"
	"github.com/km-arc/go-ioc/framework/metrics"
	"github.com/km-arc/go-ioc/framework/providers"
	"github.com/km-arc/go-ioc/framework/routing"
)

// Application is the top-level application container.
// It embeds the IoC Container and ProviderRegistry so user code can
// register services and providers on it directly.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry

	cfg       *config.Config
	log       *zap.Logger
	buildOpts []container.BuildOption
	root      *container.Resolver
}

// New loads the configuration, builds the logger and metrics, creates the
// container and registers the framework providers.
func New(envFiles ...string) (*Application, error) {
	cfg := config.Load(envFiles...)

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Container.Options()
	if err != nil {
		return nil, err
	}
	buildOpts, err := cfg.Container.BuildOptions()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	observer := metrics.New(reg)

	c := container.New(append(opts,
		container.WithLogger(log.Named("container")),
		container.WithObserver(observer),
	)...)

	a := &Application{
		Container: c,
		Providers: container.NewProviderRegistry(c),
		cfg:       cfg,
		log:       log,
		buildOpts: buildOpts,
	}

	for _, p := range []container.ServiceProvider{
		&providers.ConfigServiceProvider{Config: cfg},
		&providers.LogServiceProvider{Logger: log},
		&providers.MetricsServiceProvider{Registry: reg, Observer: observer},
		&providers.RoutingServiceProvider{},
	} {
		if err := a.Register(p); err != nil {
			return nil, fmt.Errorf("app: register %T: %w", p, err)
		}
	}
	return a, nil
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(provider container.ServiceProvider) error {
	return a.Providers.Register(provider)
}

// Boot builds the root Resolver and runs the Boot phase on all providers.
// Registrations made after Boot only reach request scopes, not the root.
func (a *Application) Boot() error {
	if a.root != nil {
		return nil
	}
	a.root = a.Build(a.buildOpts...)
	return a.Providers.Boot(a.root)
}

// Root returns the root Resolver, nil before Boot.
func (a *Application) Root() *container.Resolver { return a.root }

// Config returns the loaded configuration.
func (a *Application) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *Application) Logger() *zap.Logger { return a.log }

// Router resolves the router from the root Resolver, booting if needed.
func (a *Application) Router() (*routing.Router, error) {
	if err := a.Boot(); err != nil {
		return nil, err
	}
	router, err := container.Get[*routing.Router](a.root)
	if err != nil {
		return nil, err
	}
	if router == nil {
		return nil, errors.New("app: no router registered")
	}
	return router, nil
}

// Handler returns the router wrapped in a per-request container scope.
func (a *Application) Handler() (http.Handler, error) {
	router, err := a.Router()
	if err != nil {
		return nil, err
	}
	return gohttp.Scope(a.Container, a.buildOpts...)(router), nil
}

// Run boots the application and serves HTTP until ctx is cancelled or the
// process receives SIGINT/SIGTERM, then shuts down and closes the container.
func (a *Application) Run(ctx context.Context) error {
	h, err := a.Handler()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              ":" + a.cfg.App.Port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info("listening",
			zap.String("app", a.cfg.App.Name),
			zap.String("addr", srv.Addr),
			zap.String("env", a.cfg.App.Env))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Join(err, a.Shutdown())
		}
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			a.log.Error("http shutdown", zap.Error(err))
		}
	}
	return a.Shutdown()
}

// Shutdown closes the root scope, then every cached singleton.
func (a *Application) Shutdown() error {
	var errs []error
	if a.root != nil {
		errs = append(errs, a.root.Close())
	}
	errs = append(errs, a.Close())
	_ = a.log.Sync()
	return errors.Join(errs...)
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.cfg.App.Env }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.cfg.App.Debug }

// ExposeErrors reports whether resolution failures may show their
// dependency chain to clients: APP_DEBUG outside production.
func (a *Application) ExposeErrors() bool { return a.IsDebug() && !a.IsProduction() }

// Controller returns a Controller configured for this application.
func (a *Application) Controller() Controller {
	return Controller{Debug: a.ExposeErrors()}
}

// Controller is an embeddable base for HTTP controllers served behind
// Handler. Debug is copied into resolution failure responses.
type Controller struct {
	Debug bool
}

func (c *Controller) Request(r *http.Request) *gohttp.Request {
	return gohttp.NewRequest(r)
}

func (c *Controller) Response(w http.ResponseWriter) *gohttp.Response {
	return gohttp.NewResponse(w)
}

// Failed writes err as a resolution failure.
func (c *Controller) Failed(w http.ResponseWriter, err error) {
	gohttp.NewResponse(w).ResolutionFailed(err, c.Debug)
}

// Resolve resolves T from the request scope, writing the failure response
// itself when that is not possible. ok is false once a response was written.
func Resolve[T any](c *Controller, w http.ResponseWriter, r *http.Request) (v T, ok bool) {
	v, err := gohttp.Resolve[T](r)
	if err != nil {
		c.Failed(w, err)
		return v, false
	}
	return v, true
}
