// SPDX-License-Identifier: MPL-2.0

package serviceloader

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/invowk/svcload/pkg/registry"
)

const (
	resultOK          = "ok"
	resultError       = "error"
	resultNotAService = "not_a_service"
	metricsNamespace  = "svcload"
	metricsSubsystem  = "serviceloader"
)

// Metrics counts discovery activity. A nil *Metrics records nothing.
type Metrics struct {
	discoveries    *prometheus.CounterVec
	providers      *prometheus.CounterVec
	instantiations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		discoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "discoveries_total",
				Help:      "Number of provider discovery passes by contract.",
			},
			[]string{"contract"},
		),
		providers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "providers_yielded_total",
				Help:      "Number of provider handles yielded by declaration origin.",
			},
			[]string{"origin"},
		),
		instantiations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "instantiations_total",
				Help:      "Number of provider instantiations by result.",
			},
			[]string{"result"},
		),
	}
	for _, c := range []prometheus.Collector{m.discoveries, m.providers, m.instantiations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) discovery(contract string) {
	if m == nil {
		return
	}
	m.discoveries.WithLabelValues(contract).Inc()
}

func (m *Metrics) yielded(origin registry.Origin) {
	if m == nil {
		return
	}
	m.providers.WithLabelValues(origin.String()).Inc()
}

func (m *Metrics) instantiated(result string) {
	if m == nil {
		return
	}
	m.instantiations.WithLabelValues(result).Inc()
}
