package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks transaction and fragment throughput.
// A nil *Metrics records nothing.
type Metrics struct {
	transactions      *prometheus.CounterVec
	txDuration        prometheus.Histogram
	fragmentsAppended prometheus.Counter
	fragmentsScanned  prometheus.Counter
}

// NewMetrics creates the store collectors and registers them with reg.
// A nil reg leaves them unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fragdb_transactions_total",
			Help: "Transactions finished, by outcome",
		}, []string{"outcome"}),
		txDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fragdb_transaction_duration_seconds",
			Help:    "Wall time from begin to commit or rollback",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		fragmentsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fragdb_fragments_appended_total",
			Help: "Fragments inserted by committed transactions",
		}),
		fragmentsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fragdb_fragments_scanned_total",
			Help: "Fragment rows read by scans",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.transactions, m.txDuration, m.fragmentsAppended, m.fragmentsScanned,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// observeTx records the outcome of one transaction.
func (m *Metrics) observeTx(outcome string, start time.Time, appended, scanned int) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(outcome).Inc()
	m.txDuration.Observe(time.Since(start).Seconds())
	if outcome == outcomeCommit {
		m.fragmentsAppended.Add(float64(appended))
	}
	m.fragmentsScanned.Add(float64(scanned))
}
