package world

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - Prometheus-метрики движка нагрузок. Методы безопасны для nil.
type Metrics struct {
	created   prometheus.Counter
	destroyed *prometheus.CounterVec
	searches  *prometheus.CounterVec
	expanded  prometheus.Histogram
	cascade   prometheus.Histogram
	live      prometheus.Gauge
	opTime    *prometheus.HistogramVec
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// Если reg == nil, используется глобальный регистр Prometheus.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "created_total",
			Help:      "Количество созданных ячеек.",
		}),
		destroyed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "destroyed_total",
			Help:      "Количество разрушенных ячеек по причине.",
		}, []string{"reason"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxel",
			Name:      "support_searches_total",
			Help:      "Поиски пути опоры по результату.",
		}, []string{"result"}),
		expanded: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxel",
			Name:      "support_search_expanded",
			Help:      "Количество раскрытых ячеек за один поиск.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		cascade: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxel",
			Name:      "cascade_size",
			Help:      "Количество разрушенных ячеек за операцию.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxel",
			Name:      "live",
			Help:      "Количество живых ячеек.",
		}),
		opTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voxel",
			Name:      "operation_duration_seconds",
			Help:      "Длительность публичных операций движка.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(m.created, m.destroyed, m.searches, m.expanded, m.cascade, m.live, m.opTime)
	return m
}

func (m *Metrics) onCreated() {
	if m == nil {
		return
	}
	m.created.Inc()
	m.live.Inc()
}

func (m *Metrics) onDestroyed(reason Reason) {
	if m == nil {
		return
	}
	m.destroyed.WithLabelValues(string(reason)).Inc()
	m.live.Dec()
}

func (m *Metrics) onSearch(result string, expanded int) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(result).Inc()
	m.expanded.Observe(float64(expanded))
}

func (m *Metrics) onReport(rep *Report) {
	if m == nil {
		return
	}
	if len(rep.Destroyed) > 0 {
		m.cascade.Observe(float64(len(rep.Destroyed)))
	}
	m.opTime.WithLabelValues(rep.Operation).Observe(rep.Duration.Seconds())
}
