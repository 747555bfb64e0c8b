package metrics

import "github.com/prometheus/client_golang/prometheus"

// MaterializerMetrics counts derived line-item writes.
type MaterializerMetrics struct {
	items *prometheus.CounterVec
}

func NewMaterializerMetrics(reg prometheus.Registerer) *MaterializerMetrics {
	if reg == nil {
		return &MaterializerMetrics{}
	}
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "materializer_line_items_total",
		Help: "Derived shopping-list line items written, by operation.",
	}, []string{"op"})
	reg.MustRegister(items)
	return &MaterializerMetrics{items: items}
}

// AddItems records n line items touched by op (create, update, delete).
func (m *MaterializerMetrics) AddItems(op string, n int) {
	if m == nil || m.items == nil || n <= 0 {
		return
	}
	m.items.WithLabelValues(normalizeLabel(op)).Add(float64(n))
}
