package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notes"

// Refresh failure reasons used as the "reason" label.
const (
	ReasonNotFound    = "not_found"
	ReasonRevoked     = "revoked"
	ReasonExpired     = "expired"
	ReasonUnavailable = "unavailable"
)

// Sessions counts refresh-session lifecycle events.
type Sessions struct {
	Issued          prometheus.Counter
	Rotated         prometheus.Counter
	Revoked         *prometheus.CounterVec
	RefreshFailures *prometheus.CounterVec
	ReuseDetected   prometheus.Counter
	Swept           prometheus.Counter
}

// NewSessions registers the session counters on reg. A nil registerer yields
// working but unregistered counters.
func NewSessions(reg prometheus.Registerer) *Sessions {
	m := &Sessions{
		Issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "issued_total",
			Help:      "Refresh sessions issued at login or registration.",
		}),
		Rotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "rotated_total",
			Help:      "Refresh sessions successfully rotated.",
		}),
		Revoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "revoked_total",
			Help:      "Refresh sessions revoked, by reason.",
		}, []string{"reason"}),
		RefreshFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "refresh_failures_total",
			Help:      "Refresh attempts rejected, by reason.",
		}, []string{"reason"}),
		ReuseDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "reuse_detected_total",
			Help:      "Presentations of an already revoked refresh token.",
		}),
		Swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "swept_total",
			Help:      "Expired session records removed by the sweeper.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Issued, m.Rotated, m.Revoked, m.RefreshFailures, m.ReuseDetected, m.Swept)
	}
	return m
}

// Handler serves the exposition format for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
