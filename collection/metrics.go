package collection

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts hydration activity. A nil *Metrics records nothing.
type Metrics struct {
	rows        prometheus.Counter
	claims      *prometheus.CounterVec
	initialized *prometheus.CounterVec
	abandoned   prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when reg
// is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ormcoll",
			Name:      "rows_processed_total",
			Help:      "Result rows processed by collection initializers.",
		}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ormcoll",
			Name:      "claims_total",
			Help:      "Collection responsibility claims by outcome.",
		}, []string{"role", "outcome"}),
		initialized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ormcoll",
			Name:      "collections_initialized_total",
			Help:      "Collections finalized at the end of a statement.",
		}, []string{"role", "shape"}),
		abandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ormcoll",
			Name:      "claims_abandoned_total",
			Help:      "Claims released without finalization.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.rows, m.claims, m.initialized, m.abandoned)
	}
	return m
}

func (m *Metrics) addRows(n int) {
	if m == nil || n == 0 {
		return
	}
	m.rows.Add(float64(n))
}

func (m *Metrics) addClaim(role, outcome string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(role, outcome).Inc()
}

func (m *Metrics) addInitialized(role *Role) {
	if m == nil {
		return
	}
	m.initialized.WithLabelValues(role.Name, role.Shape.String()).Inc()
}

func (m *Metrics) addAbandoned(n int) {
	if m == nil || n == 0 {
		return
	}
	m.abandoned.Add(float64(n))
}
