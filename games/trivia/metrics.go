/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the game counters. A nil *Metrics records nothing.
type Metrics struct {
	Sessions         prometheus.Gauge
	Connections      prometheus.Gauge
	Created          prometheus.Counter
	Questions        prometheus.Counter
	Finished         prometheus.Counter
	Rejected         *prometheus.CounterVec
	DeliveryFailures prometheus.Counter
	ProviderFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "quotebattle",
			Name:      "sessions",
			Help:      "Live game sessions.",
		}),
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "quotebattle",
			Name:      "connections",
			Help:      "Connected clients.",
		}),
		Created: f.NewCounter(prometheus.CounterOpts{
			Namespace: "quotebattle",
			Name:      "sessions_created_total",
			Help:      "Game sessions created.",
		}),
		Questions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "quotebattle",
			Name:      "questions_issued_total",
			Help:      "Questions installed into sessions.",
		}),
		Finished: f.NewCounter(prometheus.CounterOpts{
			Namespace: "quotebattle",
			Name:      "games_finished_total",
			Help:      "Games that ran out of rounds.",
		}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quotebattle",
			Name:      "commands_rejected_total",
			Help:      "Commands rejected, by error code.",
		}, []string{"code"}),
		DeliveryFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "quotebattle",
			Name:      "delivery_failures_total",
			Help:      "Messages that could not be queued for a client.",
		}),
		ProviderFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "quotebattle",
			Name:      "provider_failures_total",
			Help:      "Question fetches that failed after retries.",
		}),
	}
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.Created.Inc()
	m.Sessions.Inc()
}

func (m *Metrics) sessionsClosed(n int) {
	if m == nil {
		return
	}
	m.Sessions.Sub(float64(n))
}

func (m *Metrics) connected() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Metrics) disconnected() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

func (m *Metrics) questionIssued() {
	if m == nil {
		return
	}
	m.Questions.Inc()
}

func (m *Metrics) gameFinished() {
	if m == nil {
		return
	}
	m.Finished.Inc()
}

func (m *Metrics) rejected(code Code) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(string(code)).Inc()
}

func (m *Metrics) deliveryFailed() {
	if m == nil {
		return
	}
	m.DeliveryFailures.Inc()
}

func (m *Metrics) providerFailed() {
	if m == nil {
		return
	}
	m.ProviderFailures.Inc()
}
