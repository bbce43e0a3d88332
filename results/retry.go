package results

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vocdoni/electiond/failure"
	"github.com/vocdoni/electiond/ledger"
	"github.com/vocdoni/electiond/log"
)

// newBackOff returns the retry policy of ledger reads: ReadAttempts total
// attempts, starting at ReadBaseDelay and doubling.
func (a *Aggregator) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.conf.ReadBaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = a.conf.ReadBaseDelay << a.conf.ReadAttempts
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(a.conf.ReadAttempts-1)), ctx)
}

// read calls op, retrying only on rate limit errors. The returned error is a
// failure.Error: Transient once the retries are exhausted, Fatal otherwise.
func read[T any](ctx context.Context, a *Aggregator, what string, op func(context.Context) (T, error)) (T, error) {
	attempt := 0
	v, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err != nil && !ledger.IsRateLimited(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, a.newBackOff(ctx), func(err error, d time.Duration) {
		a.metrics.IncLedgerReadRetries()
		log.Debugw("ledger read rate limited, retrying", "read", what, "attempt", attempt, "delay", d.String())
	})
	if err != nil {
		if ledger.IsRateLimited(err) {
			return v, failure.New(failure.Transient, "ledger read %s rate limited after %d attempts: %w", what, attempt, err)
		}
		return v, failure.New(failure.Fatal, "ledger read %s: %w", what, err)
	}
	return v, nil
}
