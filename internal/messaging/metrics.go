package messaging

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts publish outcomes. A nil *Metrics records nothing.
type Metrics struct {
	publishTotal  *prometheus.CounterVec
	attemptsTotal *prometheus.CounterVec
}

// NewMetrics creates publisher metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagecollector_publish_total",
				Help: "Total number of publish calls by final result.",
			},
			[]string{"result"},
		),
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagecollector_publish_attempts_total",
				Help: "Total number of failed publish attempts by failure class.",
			},
			[]string{"class"},
		),
	}

	for _, c := range []prometheus.Collector{m.publishTotal, m.attemptsTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) published(result string) {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) attempted(class failureClass) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(class.String()).Inc()
}
