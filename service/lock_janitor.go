package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/electiond/log"
)

// LockSweeper deletes ballot locks older than maxAge and returns how many
// were deleted.
type LockSweeper interface {
	SweepStaleLocks(ctx context.Context, maxAge time.Duration) (int, error)
}

// LockJanitor represents a service that periodically removes ballot locks
// abandoned by crashed or timed out requests, so their voters can try again.
type LockJanitor struct {
	sweeper  LockSweeper
	maxAge   time.Duration
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewLockJanitor creates a new LockJanitor service.
func NewLockJanitor(sweeper LockSweeper, maxAge, interval time.Duration) *LockJanitor {
	return &LockJanitor{
		sweeper:  sweeper,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Start begins sweeping in the background. It returns an error if the
// service is already running.
func (lj *LockJanitor) Start(ctx context.Context) error {
	lj.mu.Lock()
	defer lj.mu.Unlock()

	if lj.cancel != nil {
		return fmt.Errorf("service already running")
	}
	if lj.interval <= 0 || lj.maxAge <= 0 {
		return fmt.Errorf("invalid sweep interval %s or max lock age %s", lj.interval, lj.maxAge)
	}

	ctx, cancel := context.WithCancel(ctx)
	lj.cancel = cancel
	lj.done = make(chan struct{})
	go lj.run(ctx, lj.done)
	return nil
}

// Stop halts the service and waits for an ongoing sweep to finish.
func (lj *LockJanitor) Stop() {
	lj.mu.Lock()
	defer lj.mu.Unlock()

	if lj.cancel != nil {
		lj.cancel()
		<-lj.done
		lj.cancel = nil
	}
}

func (lj *LockJanitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(lj.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := lj.sweeper.SweepStaleLocks(ctx, lj.maxAge)
			if err != nil {
				log.Warnw("stale lock sweep failed", "error", err.Error())
				continue
			}
			log.Debugw("stale lock sweep done", "deleted", n)
		}
	}
}
