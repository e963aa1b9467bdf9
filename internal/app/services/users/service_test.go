package users

import (
	"context"
	"errors"
	"testing"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/notification"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/user"
	notificationsvc "github.com/OpinNetwork/engage_layer/internal/app/services/notifications"
	"github.com/OpinNetwork/engage_layer/internal/app/storage/memory"
)

func newTestService() (*Service, *memory.Store) {
	store := memory.New()
	return New(store, notificationsvc.New(store, nil), nil), store
}

func TestCreate_GrantsStartingBalance(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, user.User{Username: "alice", TokenBalance: 999, TotalEarned: 999})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.TokenBalance != user.StartingBalance {
		t.Fatalf("balance: %v", created.TokenBalance)
	}
	if created.TotalEarned != 0 {
		t.Fatalf("grant counted as earned: %v", created.TotalEarned)
	}
	if created.DisplayName != "alice" {
		t.Fatalf("display name default: %q", created.DisplayName)
	}

	if _, err := svc.Create(ctx, user.User{Username: "  "}); !errors.Is(err, ErrUsernameRequired) {
		t.Fatalf("blank username: %v", err)
	}
	if _, err := svc.Create(ctx, user.User{Username: "ALICE"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate username: %v", err)
	}
}

func TestUpdate_PreservesBalancesAndCounters(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, user.User{Username: "bob"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Simulate accrued activity.
	stored, _ := store.GetUser(ctx, created.ID)
	stored.TokenBalance = 42
	stored.TotalPosts = 7
	if _, err := store.UpdateUser(ctx, stored); err != nil {
		t.Fatalf("seed activity: %v", err)
	}

	updated, err := svc.Update(ctx, user.User{ID: created.ID, DisplayName: "Bob!", Bio: "hi", WalletAddress: "addr"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DisplayName != "Bob!" || updated.Bio != "hi" || updated.WalletAddress != "addr" {
		t.Fatalf("profile edits lost: %+v", updated)
	}
	if updated.TokenBalance != 42 || updated.TotalPosts != 7 {
		t.Fatalf("update clobbered activity state: %+v", updated)
	}
}

func TestToggleFollow(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	alice, _ := svc.Create(ctx, user.User{Username: "alice"})
	bob, _ := svc.Create(ctx, user.User{Username: "bob"})

	if _, _, err := svc.ToggleFollow(ctx, alice.ID, alice.ID); !errors.Is(err, ErrSelfFollow) {
		t.Fatalf("self follow: %v", err)
	}

	follower, added, err := svc.ToggleFollow(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if !added || !follower.IsFollowing(bob.ID) {
		t.Fatalf("follow edge missing: %+v", follower.Following)
	}

	target, _ := store.GetUser(ctx, bob.ID)
	if len(target.Followers) != 1 || target.Followers[0] != alice.ID {
		t.Fatalf("reverse edge missing: %v", target.Followers)
	}

	notifs, _ := store.ListNotifications(ctx, bob.ID)
	if len(notifs) != 1 || notifs[0].Type != notification.TypeFollow {
		t.Fatalf("follow notification: %+v", notifs)
	}

	// Unfollow removes both edges and stays silent.
	follower, added, err = svc.ToggleFollow(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	if added || follower.IsFollowing(bob.ID) {
		t.Fatalf("unfollow not applied: %+v", follower.Following)
	}
	target, _ = store.GetUser(ctx, bob.ID)
	if len(target.Followers) != 0 {
		t.Fatalf("reverse edge left behind: %v", target.Followers)
	}
	notifs, _ = store.ListNotifications(ctx, bob.ID)
	if len(notifs) != 1 {
		t.Fatalf("unfollow notified: %+v", notifs)
	}
}
