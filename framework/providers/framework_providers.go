package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/metrics"
	"github.com/km-arc/go-ioc/framework/routing"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the loaded configuration.
//
// Bound services:
//   - *config.Config (instance)
type ConfigServiceProvider struct {
	container.BaseProvider
	Config *config.Config
}

func (p *ConfigServiceProvider) Register(c *container.Container) error {
	return container.AddSingletonInstance(c, p.Config)
}

// ── LogServiceProvider ────────────────────────────────────────────────────────

// LogServiceProvider binds the application logger.
//
// Bound services:
//   - *zap.Logger (instance)
type LogServiceProvider struct {
	container.BaseProvider
	Logger *zap.Logger
}

func (p *LogServiceProvider) Register(c *container.Container) error {
	return container.AddSingletonInstance(c, p.Logger)
}

// ── MetricsServiceProvider ────────────────────────────────────────────────────

// MetricsServiceProvider binds the Prometheus registry and the container
// observer recording into it.
//
// Bound services:
//   - *prometheus.Registry (instance)
//   - prometheus.Gatherer  (instance, same registry)
//   - *metrics.Observer    (instance)
type MetricsServiceProvider struct {
	container.BaseProvider
	Registry *prometheus.Registry
	Observer *metrics.Observer
}

func (p *MetricsServiceProvider) Register(c *container.Container) error {
	if err := container.AddSingletonInstance(c, p.Registry); err != nil {
		return err
	}
	if err := container.AddSingletonInstance[prometheus.Gatherer](c, p.Registry); err != nil {
		return err
	}
	return container.AddSingletonInstance(c, p.Observer)
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router and, on Boot, mounts the
// metrics endpoint at config.Metrics.Path when one is configured.
//
// Bound services:
//   - *routing.Router (singleton)
type RoutingServiceProvider struct{}

func (p *RoutingServiceProvider) Register(c *container.Container) error {
	return container.AddSingletonFactory(c, func(r *container.Resolver) (*routing.Router, error) {
		log, err := container.Get[*zap.Logger](r)
		if err != nil {
			return nil, err
		}
		return routing.New(log), nil
	})
}

func (p *RoutingServiceProvider) Boot(r *container.Resolver) error {
	cfg, err := container.Get[*config.Config](r)
	if err != nil || cfg == nil || cfg.Metrics.Path == "" {
		return err
	}
	gatherer, err := container.Get[prometheus.Gatherer](r)
	if err != nil || gatherer == nil {
		return err
	}
	router, err := container.Get[*routing.Router](r)
	if err != nil {
		return err
	}
	router.Mount(cfg.Metrics.Path, metrics.Handler(gatherer))
	return nil
}
