// Package metrics exposes import and catalog measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/catalogo/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalogo"

// Product outcome labels.
const (
	ResultadoCreado      = "creado"
	ResultadoActualizado = "actualizado"
	ResultadoError       = "error"
)

// ImportMetrics implements core.Observer.
type ImportMetrics struct {
	registry *prometheus.Registry

	imports    *prometheus.CounterVec
	products   *prometheus.CounterVec
	duration   prometheus.Histogram
	rows       *prometheus.CounterVec
	rejections *prometheus.CounterVec
	catalog    *prometheus.GaugeVec
}

var _ core.Observer = (*ImportMetrics)(nil)

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *ImportMetrics {
	reg := prometheus.NewRegistry()

	m := &ImportMetrics{
		registry: reg,
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "importaciones_total",
			Help:      "Recorded import runs by outcome.",
		}, []string{"estado"}),
		products: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_productos_total",
			Help:      "Products processed by imports, by result.",
		}, []string{"resultado"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duracion_segundos",
			Help:      "Reconciliation time per import run.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_filas_total",
			Help:      "Workbook rows dropped before reconciliation, by kind.",
		}, []string{"tipo"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rechazos_total",
			Help:      "Imports rejected before reconciliation, by reason.",
		}, []string{"motivo"}),
		catalog: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "productos",
			Help:      "Catalog products by state.",
		}, []string{"estado"}),
	}

	reg.MustRegister(
		m.imports, m.products, m.duration, m.rows, m.rejections, m.catalog,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveImport records one run.
func (m *ImportMetrics) ObserveImport(run core.ImportRun) {
	m.imports.WithLabelValues(string(run.Estado)).Inc()
	m.products.WithLabelValues(ResultadoCreado).Add(float64(run.ProductosCreados))
	m.products.WithLabelValues(ResultadoActualizado).Add(float64(run.ProductosActualizados))
	m.products.WithLabelValues(ResultadoError).Add(float64(run.ErroresCount))
	m.duration.Observe((time.Duration(run.DuracionMs) * time.Millisecond).Seconds())
}

// ObserveRejection counts an import stopped before reconciliation.
func (m *ImportMetrics) ObserveRejection(reason string) {
	m.rejections.WithLabelValues(reason).Inc()
}

// ObserveRows counts rows dropped by the decoder or validator.
func (m *ImportMetrics) ObserveRows(kind string, n int) {
	if n <= 0 {
		return
	}
	m.rows.WithLabelValues(kind).Add(float64(n))
}

// SetCatalogCounts updates the product gauges.
func (m *ImportMetrics) SetCatalogCounts(activos, inactivos int) {
	m.catalog.WithLabelValues("activo").Set(float64(activos))
	m.catalog.WithLabelValues("inactivo").Set(float64(inactivos))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *ImportMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
