package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/ibdp/core"
	"github.com/trezcool/ibdp/core/access"
)

const metricsNamespace = "ibdp"

type metrics struct {
	logins        *prometheus.CounterVec
	registrations *prometheus.CounterVec
	denials       *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "auth_logins_total",
			Help:      "Sign-in attempts by outcome.",
		}, []string{"outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "auth_registrations_total",
			Help:      "Registration attempts by outcome.",
		}, []string{"outcome"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "access_denials_total",
			Help:      "Requests denied by the route authorizer, by resource and reason.",
		}, []string{"resource", "reason"}),
	}
	reg.MustRegister(m.logins, m.registrations, m.denials)
	return m
}

func (m *metrics) login(outcome string) {
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *metrics) registration(err error) {
	outcome := "created"
	if err != nil {
		switch errors.Cause(err).(type) {
		case *core.ForbiddenError:
			outcome = "forbidden"
		case *core.ConflictError:
			outcome = "conflict"
		case *core.ValidationError, validator.ValidationErrors:
			outcome = "invalid"
		default:
			outcome = "error"
		}
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *metrics) denial(res access.Resource, d access.Decision) {
	m.denials.WithLabelValues(string(res), d.String()).Inc()
}
