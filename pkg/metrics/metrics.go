package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcomes recorded by the flow.
const (
	OutcomeRedirected         = "redirected"
	OutcomeSuccess            = "success"
	OutcomeConfigurationError = "configuration_error"
	OutcomeUserCancelled      = "user_cancelled"
	OutcomeStateMismatch      = "state_mismatch"
	OutcomeProfileFetchError  = "profile_fetch_error"
	OutcomeSessionError       = "session_error"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	LoginOutcomes     *prometheus.CounterVec
	UsersCreated      prometheus.Counter
	ExtraCallFailures prometheus.Counter
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reddit_login_outcomes_total",
			Help: "Login flow steps by outcome",
		}, []string{"outcome"}),
		UsersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "reddit_login_users_created_total",
			Help: "Total number of local accounts created from Reddit logins",
		}),
		ExtraCallFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "reddit_login_extra_call_failures_total",
			Help: "Extra API calls that failed or returned invalid JSON",
		}),
	}
}

// IncrementOutcome counts one login flow outcome. Safe on a nil receiver.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m == nil {
		return
	}
	m.LoginOutcomes.WithLabelValues(outcome).Inc()
}

// IncrementUsersCreated increments the users created counter by 1
func (m *Metrics) IncrementUsersCreated() {
	if m == nil {
		return
	}
	m.UsersCreated.Inc()
}

// IncrementExtraCallFailures counts one failed extra API call.
func (m *Metrics) IncrementExtraCallFailures() {
	if m == nil {
		return
	}
	m.ExtraCallFailures.Inc()
}
