package rewards

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/reward"
	"github.com/OpinNetwork/engage_layer/internal/app/metrics"
	"github.com/OpinNetwork/engage_layer/internal/app/storage"
	"github.com/OpinNetwork/engage_layer/pkg/logger"
)

// DistributorSchedule is the cron expression for the daily pool run.
const DistributorSchedule = "0 0 * * *"

// Distributor pays out the daily reward pool across active users, weighted
// by engagement score. It runs on a cron schedule and can also be invoked
// directly for tests and admin tooling.
type Distributor struct {
	users  storage.UserStore
	ledger storage.LedgerStore
	log    *logger.Logger

	mu   sync.Mutex
	pool reward.Pool
	cron *cron.Cron
}

// NewDistributor creates a distributor with the default pool state.
func NewDistributor(users storage.UserStore, ledger storage.LedgerStore, log *logger.Logger) *Distributor {
	if log == nil {
		log = logger.NewDefault("reward-distributor")
	}
	return &Distributor{
		users:  users,
		ledger: ledger,
		log:    log,
		pool:   reward.DefaultPool(),
	}
}

// Name implements system.Service.
func (d *Distributor) Name() string { return "reward-distributor" }

// Start schedules the daily distribution.
func (d *Distributor) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(DistributorSchedule, func() {
		if _, err := d.Distribute(context.Background()); err != nil {
			d.log.WithError(err).Error("daily pool distribution failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule distribution: %w", err)
	}
	c.Start()
	d.cron = c

	d.log.WithField("schedule", DistributorSchedule).Info("reward distributor started")
	return nil
}

// Stop halts the schedule and waits for a running distribution to finish.
func (d *Distributor) Stop(ctx context.Context) error {
	d.mu.Lock()
	c := d.cron
	d.cron = nil
	d.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pool returns the current pool bookkeeping.
func (d *Distributor) Pool() reward.Pool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pool
}

// SetPool replaces the pool state, used when hydrating from a snapshot.
func (d *Distributor) SetPool(p reward.Pool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.TotalPool == 0 && p.DailyDistribution == 0 {
		return
	}
	d.pool = p
}

// Distribute pays the daily distribution across users with a positive
// engagement score, each share proportional to that score. It returns the
// updated pool state.
func (d *Distributor) Distribute(ctx context.Context) (reward.Pool, error) {
	users, err := d.users.ListUsers(ctx)
	if err != nil {
		return reward.Pool{}, fmt.Errorf("list users: %w", err)
	}

	totalScore := 0
	for _, u := range users {
		if u.EngagementScore > 0 {
			totalScore += u.EngagementScore
		}
	}

	d.mu.Lock()
	budget := d.pool.DailyDistribution
	if budget > d.pool.TotalPool {
		budget = d.pool.TotalPool
	}
	d.mu.Unlock()

	participants := 0
	distributed := 0.0
	if totalScore > 0 && budget > 0 {
		for _, u := range users {
			if u.EngagementScore <= 0 {
				continue
			}
			share := budget * float64(u.EngagementScore) / float64(totalScore)
			entry := reward.TokenReward{
				ID:     uuid.NewString(),
				UserID: u.ID,
				Type:   reward.TypeEngagement,
				Amount: share,
			}
			if _, err := d.ledger.AppendReward(ctx, entry); err != nil {
				return reward.Pool{}, fmt.Errorf("append pool share for %s: %w", u.ID, err)
			}
			metrics.RewardAwarded(string(reward.TypeEngagement), share)
			participants++
			distributed += share
		}
	}

	d.mu.Lock()
	d.pool.TotalPool -= distributed
	if d.pool.TotalPool < 0 {
		d.pool.TotalPool = 0
	}
	d.pool.LastDistribution = time.Now().UTC()
	d.pool.ParticipantCount = participants
	if participants > 0 {
		d.pool.AverageReward = distributed / float64(participants)
	} else {
		d.pool.AverageReward = 0
	}
	updated := d.pool
	d.mu.Unlock()

	metrics.PoolDistributed()
	d.log.WithField("participants", participants).
		WithField("distributed", distributed).
		Info("daily pool distributed")

	return updated, nil
}
