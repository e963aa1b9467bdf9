package app

import (
	"context"
	"math"
	"testing"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/notification"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/user"
	"github.com/OpinNetwork/engage_layer/internal/app/storage/memory"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()
	application, err := New(Stores{}, Options{ChainNetwork: "test"}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	return application
}

func TestLifecycleScenario(t *testing.T) {
	application := newTestApp(t)
	ctx := context.Background()

	alice, err := application.CreateUser(ctx, user.User{Username: "alice", WalletAddress: "addr-alice"})
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := application.CreateUser(ctx, user.User{Username: "bob"})
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	if alice.TokenBalance != user.StartingBalance {
		t.Fatalf("starting balance: %v", alice.TokenBalance)
	}

	post, err := application.AddPost(ctx, alice.ID, "Hello #world, what do you think?", "")
	if err != nil {
		t.Fatalf("add post: %v", err)
	}

	if _, _, err := application.ToggleLike(ctx, bob.ID, post.ID); err != nil {
		t.Fatalf("like: %v", err)
	}
	if _, _, err := application.AddComment(ctx, bob.ID, post.ID, "", "nice one"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	if _, _, err := application.Repost(ctx, bob.ID, post.ID, ""); err != nil {
		t.Fatalf("repost: %v", err)
	}

	// Alice earned the post reward. Her quality score lands a hair under the
	// 0.8 threshold in float64, so the multiplier does not fire and the post
	// pays the base rate.
	aliceTotal, err := application.ClaimRewards(ctx, alice.ID)
	if err != nil {
		t.Fatalf("alice claim: %v", err)
	}
	if math.Abs(aliceTotal-1.0) > 1e-9 {
		t.Fatalf("alice claim: %v", aliceTotal)
	}

	// Bob: like 0.1 + comment 0.5 ("nice one" quality 0.6) + share 0.3.
	bobTotal, err := application.ClaimRewards(ctx, bob.ID)
	if err != nil {
		t.Fatalf("bob claim: %v", err)
	}
	if math.Abs(bobTotal-0.9) > 1e-9 {
		t.Fatalf("bob claim: %v", bobTotal)
	}

	// Claims are not repeatable.
	again, err := application.ClaimRewards(ctx, alice.ID)
	if err != nil || again != 0 {
		t.Fatalf("repeat claim: %v %v", again, err)
	}

	receipt, err := application.Withdraw(ctx, alice.ID, 5)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if receipt.TxRef == "" {
		t.Fatal("missing tx ref")
	}

	final, err := application.Users.Get(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}
	if math.Abs(final.TokenBalance-(user.StartingBalance+1.0-5)) > 1e-9 {
		t.Fatalf("final balance: %v", final.TokenBalance)
	}
	if math.Abs(final.TotalEarned-1.0) > 1e-9 {
		t.Fatalf("total earned: %v", final.TotalEarned)
	}

	// The claim and the withdrawal each raised a reward notification.
	notifs, err := application.Notifications.List(ctx, alice.ID)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	rewardNotifs := 0
	for _, n := range notifs {
		if n.Type == notification.TypeReward {
			rewardNotifs++
		}
	}
	if rewardNotifs != 2 {
		t.Fatalf("reward notifications: %d", rewardNotifs)
	}
}

func TestSnapshotRestore(t *testing.T) {
	snapshots := memory.New()
	ctx := context.Background()

	first, err := New(Stores{Snapshots: snapshots}, Options{ChainNetwork: "test"}, nil)
	if err != nil {
		t.Fatalf("first app: %v", err)
	}

	alice, err := first.CreateUser(ctx, user.User{Username: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	post, err := first.AddPost(ctx, alice.ID, "persist me #state", "")
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	// A fresh application over the same snapshot store sees the state.
	second, err := New(Stores{Snapshots: snapshots}, Options{ChainNetwork: "test"}, nil)
	if err != nil {
		t.Fatalf("second app: %v", err)
	}

	restored, err := second.Users.Get(ctx, alice.ID)
	if err != nil {
		t.Fatalf("restored user: %v", err)
	}
	if restored.Username != "alice" || restored.TotalPosts != 1 {
		t.Fatalf("restored user state: %+v", restored)
	}

	restoredPost, err := second.Social.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("restored post: %v", err)
	}
	if restoredPost.Content != "persist me #state" {
		t.Fatalf("restored post: %+v", restoredPost)
	}

	unclaimed, err := second.Rewards.Unclaimed(ctx, alice.ID)
	if err != nil {
		t.Fatalf("restored ledger: %v", err)
	}
	if len(unclaimed) != 1 {
		t.Fatalf("restored ledger entries: %+v", unclaimed)
	}

	tag, err := second.Social.Hashtags(ctx)
	if err != nil || len(tag) != 1 {
		t.Fatalf("restored hashtags: %v %+v", err, tag)
	}
}

func TestStartStop(t *testing.T) {
	application := newTestApp(t)
	ctx := context.Background()

	if err := application.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := application.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
