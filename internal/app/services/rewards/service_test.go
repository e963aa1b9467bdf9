package rewards

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/content"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/reward"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/user"
	"github.com/OpinNetwork/engage_layer/internal/app/storage"
	"github.com/OpinNetwork/engage_layer/internal/app/storage/memory"
	"github.com/OpinNetwork/engage_layer/internal/chain"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(store, store, chain.NewSimulator("test"), nil, nil)
	return svc, store
}

func seedUser(t *testing.T, store *memory.Store, u user.User) user.User {
	t.Helper()
	created, err := store.CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return created
}

func TestAwardPostReward_AppendsLedgerEntry(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, store, user.User{Username: "author"})

	post := content.Post{ID: "p1", AuthorID: author.ID, Content: "hello world"}
	calc, err := svc.AwardPostReward(ctx, post, author.ID)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	// quality 0.6 < threshold, zero engagement: base reward only.
	if math.Abs(calc.TotalReward-1.0) > 1e-9 {
		t.Fatalf("total reward: %v", calc.TotalReward)
	}

	entries, err := store.ListUnclaimedRewards(ctx, author.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if entries[0].Type != reward.TypePost || entries[0].PostID != "p1" {
		t.Fatalf("entry: %+v", entries[0])
	}
}

func TestAwardPostReward_ViralBonusIsSeparateEntry(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, store, user.User{Username: "viral"})

	likes := make([]string, 50)
	for i := range likes {
		likes[i] = "fan"
	}
	post := content.Post{ID: "p1", AuthorID: author.ID, Content: "boom", Likes: likes}

	calc, err := svc.AwardPostReward(ctx, post, author.ID)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if calc.ViralBonus != 2.0 {
		t.Fatalf("viral bonus: %v", calc.ViralBonus)
	}

	entries, err := store.ListUnclaimedRewards(ctx, author.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected post + viral entries, got %d", len(entries))
	}
	if entries[0].Type != reward.TypePost || entries[1].Type != reward.TypeViralBonus {
		t.Fatalf("entry types: %s, %s", entries[0].Type, entries[1].Type)
	}
	if entries[1].Amount != 2.0 {
		t.Fatalf("viral entry amount: %v", entries[1].Amount)
	}
}

func TestAwardEngagementReward(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	actor := seedUser(t, store, user.User{Username: "actor"})

	amount, err := svc.AwardEngagementReward(ctx, actor.ID, reward.TypeLike, "p1")
	if err != nil {
		t.Fatalf("award like: %v", err)
	}
	if amount != reward.RateLike {
		t.Fatalf("like amount: %v", amount)
	}

	amount, err = svc.AwardEngagementReward(ctx, actor.ID, reward.TypeShare, "p1")
	if err != nil {
		t.Fatalf("award share: %v", err)
	}
	if amount != reward.RateShare {
		t.Fatalf("share amount: %v", amount)
	}

	if _, err := svc.AwardEngagementReward(ctx, actor.ID, reward.TypePost, "p1"); err == nil {
		t.Fatal("expected error for non-engagement type")
	}
}

func TestClaimAll(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	u := seedUser(t, store, user.User{Username: "claimer", TokenBalance: 10})

	if _, err := svc.AwardEngagementReward(ctx, u.ID, reward.TypeLike, "p1"); err != nil {
		t.Fatalf("award: %v", err)
	}
	if _, err := svc.AwardEngagementReward(ctx, u.ID, reward.TypeShare, "p2"); err != nil {
		t.Fatalf("award: %v", err)
	}

	total, err := svc.ClaimAll(ctx, u.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if math.Abs(total-0.4) > 1e-9 {
		t.Fatalf("claimed: %v", total)
	}

	after, err := store.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if math.Abs(after.TokenBalance-10.4) > 1e-9 {
		t.Fatalf("balance: %v", after.TokenBalance)
	}
	if math.Abs(after.TotalEarned-0.4) > 1e-9 {
		t.Fatalf("total earned: %v", after.TotalEarned)
	}
	if after.LastRewardClaim.IsZero() {
		t.Fatal("last claim not recorded")
	}

	// A second claim releases nothing and mutates nothing.
	total, err = svc.ClaimAll(ctx, u.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if total != 0 {
		t.Fatalf("second claim released %v", total)
	}
	again, _ := store.GetUser(ctx, u.ID)
	if again.LastRewardClaim != after.LastRewardClaim {
		t.Fatal("empty claim moved the claim timestamp")
	}
}

func TestClaimAll_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.ClaimAll(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWithdraw_Validation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	noWallet := seedUser(t, store, user.User{Username: "nowallet", TokenBalance: 5})
	funded := seedUser(t, store, user.User{Username: "funded", TokenBalance: 5, WalletAddress: "addr1"})

	if _, err := svc.Withdraw(ctx, funded.ID, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: %v", err)
	}
	if _, err := svc.Withdraw(ctx, funded.ID, -1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount: %v", err)
	}
	if _, err := svc.Withdraw(ctx, noWallet.ID, 1); !errors.Is(err, ErrMissingWallet) {
		t.Fatalf("missing wallet: %v", err)
	}
	if _, err := svc.Withdraw(ctx, funded.ID, 100); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("over balance: %v", err)
	}

	// Failed withdrawals leave the balance alone.
	u, _ := store.GetUser(ctx, funded.ID)
	if u.TokenBalance != 5 {
		t.Fatalf("balance changed on failed withdrawal: %v", u.TokenBalance)
	}
}

func TestWithdraw_DebitsBalanceWithoutLedgerEntry(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	u := seedUser(t, store, user.User{Username: "rich", TokenBalance: 20, WalletAddress: "addr1"})

	receipt, err := svc.Withdraw(ctx, u.ID, 7.5)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if receipt.Amount != 7.5 || !strings.HasPrefix(receipt.TxRef, "tx_") {
		t.Fatalf("receipt: %+v", receipt)
	}
	if math.Abs(receipt.ChainAmount-7.5*reward.OPINToSOLRate) > 1e-9 || receipt.FeeSOL != reward.WithdrawalFeeSOL {
		t.Fatalf("conversion: %+v", receipt)
	}

	after, _ := store.GetUser(ctx, u.ID)
	if math.Abs(after.TokenBalance-12.5) > 1e-9 {
		t.Fatalf("balance: %v", after.TokenBalance)
	}
	if after.TotalEarned != 0 {
		t.Fatalf("withdrawal changed lifetime earnings: %v", after.TotalEarned)
	}

	entries, err := store.ListRewards(ctx, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("withdrawal wrote ledger entries: %+v", entries)
	}
}

func TestRecomputeEngagementScore(t *testing.T) {
	svc, _ := newTestService(t)

	u := user.User{ID: "u1", Followers: make([]string, 100)}
	posts := []content.Post{
		{AuthorID: "u1", Likes: []string{"a", "b"}},
		{AuthorID: "u1", Likes: []string{"c", "d"}},
		{AuthorID: "someone-else", Likes: make([]string, 500)},
	}

	// Own posts only: avg 2, ratio 2/100, round(4+1)=5.
	got := svc.RecomputeEngagementScore(u, posts)
	if got.EngagementScore != 5 {
		t.Fatalf("score: %d", got.EngagementScore)
	}

	// No posts scores zero regardless of history.
	got = svc.RecomputeEngagementScore(u, nil)
	if got.EngagementScore != 0 {
		t.Fatalf("score without posts: %d", got.EngagementScore)
	}
}
