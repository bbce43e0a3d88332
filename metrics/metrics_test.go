package metrics

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitMetrics(t *testing.T) {
	c := qt.New(t)
	registry := prometheus.NewRegistry()
	m := InitMetrics(registry)

	m.IncVotesCast()
	m.IncVotesCast()
	m.IncVoteRejections("conflict")
	m.IncVoteRejections("conflict")
	m.IncVoteRejections("timing")
	m.IncLedgerWriteFailures()
	m.IncLedgerReadRetries()
	m.AddStaleLocksSwept(3)
	m.ObserveConfirmLatency(2 * time.Second)

	c.Assert(testutil.ToFloat64(m.votesCast), qt.Equals, float64(2))
	c.Assert(testutil.ToFloat64(m.voteRejections.WithLabelValues("conflict")), qt.Equals, float64(2))
	c.Assert(testutil.ToFloat64(m.voteRejections.WithLabelValues("timing")), qt.Equals, float64(1))
	c.Assert(testutil.ToFloat64(m.ledgerWriteFailures), qt.Equals, float64(1))
	c.Assert(testutil.ToFloat64(m.ledgerReadRetries), qt.Equals, float64(1))
	c.Assert(testutil.ToFloat64(m.staleLocksSwept), qt.Equals, float64(3))

	families, err := registry.Gather()
	c.Assert(err, qt.IsNil)
	c.Assert(families, qt.HasLen, 6)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.IncVotesCast()
	m.IncVoteRejections("conflict")
	m.IncLedgerWriteFailures()
	m.IncLedgerReadRetries()
	m.AddStaleLocksSwept(1)
	m.ObserveConfirmLatency(time.Second)
}
