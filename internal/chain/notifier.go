package chain

import (
	"context"
	"sync"
	"time"

	"github.com/OpinNetwork/engage_layer/pkg/logger"
)

// Notifier dispatches chain calls asynchronously so ledger appends and
// social-graph mutations are never gated on the external contract. Failures
// are logged and dropped.
type Notifier struct {
	client  Client
	log     *logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	tasks   chan func(context.Context)
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewNotifier wraps the client. A nil client disables dispatch entirely.
func NewNotifier(client Client, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewDefault("chain-notifier")
	}
	return &Notifier{
		client:  client,
		log:     log,
		timeout: 10 * time.Second,
		tasks:   make(chan func(context.Context), 256),
	}
}

// Name implements system.Service.
func (n *Notifier) Name() string { return "chain-notifier" }

// Start launches the dispatch worker.
func (n *Notifier) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	n.cancel = cancel
	n.running = true

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case task := <-n.tasks:
				taskCtx, done := context.WithTimeout(runCtx, n.timeout)
				task(taskCtx)
				done()
			}
		}
	}()

	n.log.Info("chain notifier started")
	return nil
}

// Stop drains the worker.
func (n *Notifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	cancel := n.cancel
	n.running = false
	n.cancel = nil
	n.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		n.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) enqueue(task func(context.Context)) {
	if n.client == nil {
		return
	}
	n.mu.Lock()
	running := n.running
	n.mu.Unlock()
	if !running {
		// Not started (tests, short-lived tools): run inline, best-effort.
		ctx, done := context.WithTimeout(context.Background(), n.timeout)
		task(ctx)
		done()
		return
	}
	select {
	case n.tasks <- task:
	default:
		n.log.Warn("chain task queue full; dropping notification")
	}
}

// TrackActivity records an activity fire-and-forget.
func (n *Notifier) TrackActivity(userID, kind string, metadata map[string]any) {
	n.enqueue(func(ctx context.Context) {
		if err := n.client.TrackActivity(ctx, userID, kind, metadata); err != nil {
			n.log.WithError(err).WithField("user_id", userID).Warn("track activity failed")
		}
	})
}

// DistributeRewards notifies the contract of a reward distribution
// fire-and-forget.
func (n *Notifier) DistributeRewards(userID string, amount float64, reason string) {
	n.enqueue(func(ctx context.Context) {
		if err := n.client.DistributeRewards(ctx, userID, amount, reason); err != nil {
			n.log.WithError(err).WithField("user_id", userID).Warn("distribute rewards failed")
		}
	})
}
