package httphandler

import (
	"context"
	"net/http"
	"time"

	// Packages
	leasequeue "github.com/mediastore/dispatch/pkg/leasequeue"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	prometheus "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

///////////////////////////////////////////////////////////////////////////////
// CONSTANTS

const (
	metricsTimeout = 30 * time.Second
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type metrics struct {
	manager    *leasequeue.Manager
	queueItems *prometheus.Desc
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RegisterMetricsHandler registers a HTTP handler for prometheus metrics
// on the provided router with the given path prefix. The manager must be non-nil.
func RegisterMetricsHandler(router *http.ServeMux, prefix string, manager *leasequeue.Manager) {
	if manager == nil {
		panic("manager is nil")
	}

	// Create a prometheus registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(&metrics{
		manager: manager,
		queueItems: prometheus.NewDesc(
			"dispatch_queue_items",
			"Number of items in each queue by status",
			[]string{"queue", "status"}, nil,
		),
	})
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	// Create a handler for metrics
	router.HandleFunc(joinPath(prefix, "metrics"), func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ServeHTTP(w, r)
		default:
			_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
		}
	})
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - COLLECTOR

// Describe sends metric descriptors to the channel
func (m *metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.queueItems
}

// Collect fetches metrics from the database and sends them to the channel
func (m *metrics) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), metricsTimeout)
	defer cancel()

	statuses, err := m.manager.Stats(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(m.queueItems, err)
		return
	}
	for _, status := range statuses {
		ch <- prometheus.MustNewConstMetric(
			m.queueItems,
			prometheus.GaugeValue,
			float64(status.Count),
			status.Queue,
			status.Status,
		)
	}
}
