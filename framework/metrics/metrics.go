// Package metrics exports container activity to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	obs := metrics.New(reg)
//	c := container.New(container.WithObserver(obs))
//	router.Get("/metrics", metrics.Handler(reg).ServeHTTP)
package metrics

import (
	"net/http"
	"reflect"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/km-arc/go-ioc/framework/container"
)

const namespace = "ioc"

// Observer is a container.Observer recording constructions as Prometheus
// metrics, labelled by service type and lifetime.
type Observer struct {
	created  *prometheus.CounterVec
	failed   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ container.Observer = (*Observer)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Observer {
	o := &Observer{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_created_total",
			Help:      "Service instances constructed by resolvers.",
		}, []string{"service", "lifetime"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_errors_total",
			Help:      "Service constructions that failed.",
		}, []string{"service", "lifetime"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "construction_seconds",
			Help:      "Time spent constructing a service, dependencies included.",
			Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
		}, []string{"service", "lifetime"}),
	}
	reg.MustRegister(o.created, o.failed, o.duration)
	return o
}

func (o *Observer) ServiceCreated(t reflect.Type, lifetime container.Lifetime, elapsed time.Duration) {
	labels := prometheus.Labels{"service": t.String(), "lifetime": lifetime.String()}
	o.created.With(labels).Inc()
	o.duration.With(labels).Observe(elapsed.Seconds())
}

func (o *Observer) ServiceFailed(t reflect.Type, lifetime container.Lifetime, _ error) {
	o.failed.With(prometheus.Labels{"service": t.String(), "lifetime": lifetime.String()}).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
