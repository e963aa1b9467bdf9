package rewards

import (
	"context"
	"math"
	"testing"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/reward"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/user"
	"github.com/OpinNetwork/engage_layer/internal/app/storage/memory"
)

func TestDistribute_SharesProportionalToScore(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	seedUser(t, store, user.User{Username: "idle"})
	active := seedUser(t, store, user.User{Username: "active", EngagementScore: 30})
	star := seedUser(t, store, user.User{Username: "star", EngagementScore: 60})

	d := NewDistributor(store, store, nil)
	pool, err := d.Distribute(ctx)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}

	if pool.ParticipantCount != 2 {
		t.Fatalf("participants: %d", pool.ParticipantCount)
	}
	budget := reward.DefaultPool().DailyDistribution
	if math.Abs(pool.AverageReward-budget/2) > 1e-9 {
		t.Fatalf("average reward: %v", pool.AverageReward)
	}
	if math.Abs(pool.TotalPool-(reward.DailyPool-budget)) > 1e-9 {
		t.Fatalf("remaining pool: %v", pool.TotalPool)
	}

	activeEntries, _ := store.ListUnclaimedRewards(ctx, active.ID)
	starEntries, _ := store.ListUnclaimedRewards(ctx, star.ID)
	if len(activeEntries) != 1 || len(starEntries) != 1 {
		t.Fatalf("entries: %d, %d", len(activeEntries), len(starEntries))
	}
	if math.Abs(starEntries[0].Amount-2*activeEntries[0].Amount) > 1e-9 {
		t.Fatalf("shares not proportional: %v vs %v", starEntries[0].Amount, activeEntries[0].Amount)
	}
	if activeEntries[0].Type != reward.TypeEngagement {
		t.Fatalf("entry type: %s", activeEntries[0].Type)
	}
}

func TestDistribute_NoParticipants(t *testing.T) {
	store := memory.New()
	seedUser(t, store, user.User{Username: "idle"})

	d := NewDistributor(store, store, nil)
	pool, err := d.Distribute(context.Background())
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if pool.ParticipantCount != 0 || pool.AverageReward != 0 {
		t.Fatalf("pool: %+v", pool)
	}
	if pool.TotalPool != reward.DailyPool {
		t.Fatalf("pool drained with no participants: %v", pool.TotalPool)
	}
}

func TestSetPool_IgnoresZeroValue(t *testing.T) {
	d := NewDistributor(memory.New(), memory.New(), nil)

	d.SetPool(reward.Pool{})
	if d.Pool().TotalPool != reward.DailyPool {
		t.Fatalf("zero snapshot replaced pool: %+v", d.Pool())
	}

	d.SetPool(reward.Pool{TotalPool: 500, DailyDistribution: 50})
	if d.Pool().TotalPool != 500 {
		t.Fatalf("pool not restored: %+v", d.Pool())
	}
}
