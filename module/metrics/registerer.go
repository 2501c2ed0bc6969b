package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// subsystem creates the collectors of one hotshot subsystem and registers
// them on creation. Registration panics on duplicate names.
type subsystem struct {
	registerer prometheus.Registerer
	name       string
}

func newSubsystem(registerer prometheus.Registerer, name string) subsystem {
	return subsystem{registerer: registerer, name: name}
}

func (s subsystem) gauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceHotshot,
		Subsystem: s.name,
		Name:      name,
		Help:      help,
	})
	s.registerer.MustRegister(g)
	return g
}

func (s subsystem) counter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceHotshot,
		Subsystem: s.name,
		Name:      name,
		Help:      help,
	})
	s.registerer.MustRegister(c)
	return c
}

func (s subsystem) counterVec(name, help string, label string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceHotshot,
		Subsystem: s.name,
		Name:      name,
		Help:      help,
	}, []string{label})
	s.registerer.MustRegister(c)
	return c
}

func (s subsystem) histogram(name, help string, buckets []float64) prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespaceHotshot,
		Subsystem: s.name,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
	s.registerer.MustRegister(h)
	return h
}
