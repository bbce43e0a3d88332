// Package metrics exposes prometheus counters for the vote and results
// pipelines. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "electiond"

type Metrics struct {
	votesCast           prometheus.Counter
	voteRejections      *prometheus.CounterVec
	ledgerWriteFailures prometheus.Counter
	ledgerReadRetries   prometheus.Counter
	staleLocksSwept     prometheus.Counter
	confirmLatency      prometheus.Histogram
}

// InitMetrics creates the collectors and registers them in registry.
func InitMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		votesCast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "votes_cast_total",
			Help: "Ballots confirmed on the ledger and recorded",
		}),
		voteRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "vote_rejections_total",
			Help: "Vote requests rejected, by failure kind",
		}, []string{"kind"}),
		ledgerWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ledger_write_failures_total",
			Help: "Vote transactions that failed to submit or confirm",
		}),
		ledgerReadRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ledger_read_retries_total",
			Help: "Ledger reads retried after a rate limit error",
		}),
		staleLocksSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stale_locks_swept_total",
			Help: "Abandoned ballot locks deleted by the janitor",
		}),
		confirmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "ledger_confirm_seconds",
			Help:    "Time from vote submission to ledger confirmation",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	registry.MustRegister(
		m.votesCast,
		m.voteRejections,
		m.ledgerWriteFailures,
		m.ledgerReadRetries,
		m.staleLocksSwept,
		m.confirmLatency,
	)
	return m
}

func (m *Metrics) IncVotesCast() {
	if m != nil {
		m.votesCast.Inc()
	}
}

func (m *Metrics) IncVoteRejections(kind string) {
	if m != nil {
		m.voteRejections.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncLedgerWriteFailures() {
	if m != nil {
		m.ledgerWriteFailures.Inc()
	}
}

func (m *Metrics) IncLedgerReadRetries() {
	if m != nil {
		m.ledgerReadRetries.Inc()
	}
}

func (m *Metrics) AddStaleLocksSwept(n int) {
	if m != nil {
		m.staleLocksSwept.Add(float64(n))
	}
}

func (m *Metrics) ObserveConfirmLatency(d time.Duration) {
	if m != nil {
		m.confirmLatency.Observe(d.Seconds())
	}
}
