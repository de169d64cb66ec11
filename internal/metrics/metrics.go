// Package metrics exports gallery store counters in Prometheus format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"gallery-go/internal/gallery"
)

const namespace = "gallery"

// Collector implements gallery.Metrics on its own registry, so each
// instance starts from zero.
type Collector struct {
	registry *prometheus.Registry

	captures         *prometheus.CounterVec
	deletes          *prometheus.CounterVec
	rollbacks        *prometheus.CounterVec
	reconcileDropped prometheus.Counter
	reconcileOrphans *prometheus.CounterVec
	records          prometheus.Gauge
}

// NewCollector creates a Collector with all series registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Capture attempts by result",
		}, []string{"result"}), // result: success, capture_failed, persist_failed
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletes_total",
			Help:      "Delete attempts by result",
		}, []string{"result"}), // result: success, not_found, persist_failed
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Rollbacks of partially applied mutations",
		}, []string{"op", "result"}), // result: success, failed
		reconcileDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_dropped_total",
			Help:      "Index records dropped because their blob was missing",
		}),
		reconcileOrphans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_orphans_total",
			Help:      "Orphan blobs handled by reconciliation",
		}, []string{"result"}), // result: success, failed
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Records in the committed index",
		}),
	}
	c.registry.MustRegister(c.captures, c.deletes, c.rollbacks, c.reconcileDropped, c.reconcileOrphans, c.records)
	return c
}

// Registry exposes the underlying registry for scraping.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) CaptureResult(result string) {
	c.captures.WithLabelValues(result).Inc()
}

func (c *Collector) DeleteResult(result string) {
	c.deletes.WithLabelValues(result).Inc()
}

func (c *Collector) Rollback(op string, ok bool) {
	result := gallery.ResultSuccess
	if !ok {
		result = gallery.ResultFailed
	}
	c.rollbacks.WithLabelValues(op, result).Inc()
}

func (c *Collector) ReconcileDropped(n int) {
	c.reconcileDropped.Add(float64(n))
}

func (c *Collector) ReconcileOrphans(result string, n int) {
	c.reconcileOrphans.WithLabelValues(result).Add(float64(n))
}

func (c *Collector) Records(n int) {
	c.records.Set(float64(n))
}

// WriteTextfile writes the current values in the node_exporter textfile
// format. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

var _ gallery.Metrics = (*Collector)(nil)
