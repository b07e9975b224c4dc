// Package metrics holds the Prometheus collectors of the shop.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPDuration  *prometheus.HistogramVec
	CartMutations *prometheus.CounterVec
	Orders        *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shop",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests by route, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "cart_mutations_total",
			Help:      "Successful cart mutations by operation.",
		}, []string{"op"}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "orders_total",
			Help:      "Order lifecycle transitions by event (placed, paid, cancelled).",
		}, []string{"event"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPDuration,
		m.CartMutations,
		m.Orders,
	)
	return m
}

// CartMutation counts one successful cart operation. Safe on a nil receiver.
func (m *Metrics) CartMutation(op string) {
	if m == nil {
		return
	}
	m.CartMutations.WithLabelValues(op).Inc()
}

// OrderEvent counts one order transition. Safe on a nil receiver.
func (m *Metrics) OrderEvent(event string) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(event).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware observes the duration of every request under its route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
