// Package rewards implements the OPIN reward engine: it turns social actions
// into ledger entries and manages claims and withdrawals.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/content"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/reward"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/user"
	"github.com/OpinNetwork/engage_layer/internal/app/metrics"
	"github.com/OpinNetwork/engage_layer/internal/app/services/scoring"
	"github.com/OpinNetwork/engage_layer/internal/app/storage"
	"github.com/OpinNetwork/engage_layer/internal/chain"
	"github.com/OpinNetwork/engage_layer/pkg/logger"
)

// Errors
var (
	ErrInvalidAmount       = errors.New("withdrawal amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrMissingWallet       = errors.New("no wallet address linked")
)

// Service orchestrates scoring, the ledger and the chain notifier.
type Service struct {
	users    storage.UserStore
	ledger   storage.LedgerStore
	chain    chain.Client
	notifier *chain.Notifier
	log      *logger.Logger
}

// New constructs the reward engine.
func New(users storage.UserStore, ledger storage.LedgerStore, client chain.Client, notifier *chain.Notifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("rewards")
	}
	if notifier == nil {
		notifier = chain.NewNotifier(client, log)
	}
	return &Service{users: users, ledger: ledger, chain: client, notifier: notifier, log: log}
}

// AwardPostReward scores the post content and appends a post-type ledger
// entry for the author, plus a separate viral_bonus entry when the post's
// engagement already crossed the viral threshold. Chain notifications are
// fire-and-forget and never block the append.
func (s *Service) AwardPostReward(ctx context.Context, p content.Post, authorID string) (reward.Calculation, error) {
	qualityScore := scoring.QualityScore(p.Content)
	calc := scoring.PostReward(len(p.Likes), len(p.Comments), len(p.Reposts), qualityScore)

	entry := reward.TokenReward{
		ID:     uuid.NewString(),
		UserID: authorID,
		Type:   reward.TypePost,
		Amount: calc.TotalReward,
		PostID: p.ID,
	}
	if _, err := s.ledger.AppendReward(ctx, entry); err != nil {
		return reward.Calculation{}, fmt.Errorf("append post reward: %w", err)
	}
	metrics.RewardAwarded(string(reward.TypePost), calc.TotalReward)

	if calc.ViralBonus > 0 {
		bonus := reward.TokenReward{
			ID:     uuid.NewString(),
			UserID: authorID,
			Type:   reward.TypeViralBonus,
			Amount: calc.ViralBonus,
			PostID: p.ID,
		}
		if _, err := s.ledger.AppendReward(ctx, bonus); err != nil {
			return reward.Calculation{}, fmt.Errorf("append viral bonus: %w", err)
		}
		metrics.RewardAwarded(string(reward.TypeViralBonus), calc.ViralBonus)
	}

	s.notifier.TrackActivity(authorID, "post", map[string]any{
		"post_id":       p.ID,
		"quality_score": qualityScore,
		"engagement":    p.EngagementTotal(),
	})
	s.notifier.DistributeRewards(authorID, calc.TotalReward, "post_creation")

	s.log.WithField("user_id", authorID).
		WithField("post_id", p.ID).
		WithField("amount", calc.TotalReward).
		Info("post reward awarded")

	return calc, nil
}

// AwardCommentReward appends a comment-type ledger entry for the author.
func (s *Service) AwardCommentReward(ctx context.Context, c content.Comment, authorID string) (float64, error) {
	qualityScore := scoring.QualityScore(c.Content)
	amount := scoring.CommentReward(len(c.Likes), len(c.Dislikes), qualityScore)

	entry := reward.TokenReward{
		ID:        uuid.NewString(),
		UserID:    authorID,
		Type:      reward.TypeComment,
		Amount:    amount,
		CommentID: c.ID,
	}
	if _, err := s.ledger.AppendReward(ctx, entry); err != nil {
		return 0, fmt.Errorf("append comment reward: %w", err)
	}
	metrics.RewardAwarded(string(reward.TypeComment), amount)

	s.notifier.TrackActivity(authorID, "comment", map[string]any{
		"comment_id":    c.ID,
		"quality_score": qualityScore,
		"engagement":    len(c.Likes) - len(c.Dislikes),
	})
	s.notifier.DistributeRewards(authorID, amount, "comment_creation")

	return amount, nil
}

// AwardEngagementReward pays the acting user for a like or share. The actor
// is rewarded, not the content author: engagement itself is incentivized.
func (s *Service) AwardEngagementReward(ctx context.Context, userID string, kind reward.Type, postID string) (float64, error) {
	var amount float64
	switch kind {
	case reward.TypeLike:
		amount = reward.RateLike
	case reward.TypeShare:
		amount = reward.RateShare
	default:
		return 0, fmt.Errorf("unsupported engagement reward type %q", kind)
	}

	entry := reward.TokenReward{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   kind,
		Amount: amount,
		PostID: postID,
	}
	if _, err := s.ledger.AppendReward(ctx, entry); err != nil {
		return 0, fmt.Errorf("append %s reward: %w", kind, err)
	}
	metrics.RewardAwarded(string(kind), amount)

	s.notifier.TrackActivity(userID, string(kind), map[string]any{"target_id": postID})
	s.notifier.DistributeRewards(userID, amount, string(kind)+"_engagement")

	return amount, nil
}

// RecomputeEngagementScore derives a fresh engagement score from the user's
// own posts and returns the updated copy. The caller persists it.
func (s *Service) RecomputeEngagementScore(u user.User, posts []content.Post) user.User {
	totalLikes, totalComments, totalShares := 0, 0, 0
	count := 0
	for _, p := range posts {
		if p.AuthorID != u.ID {
			continue
		}
		count++
		totalLikes += len(p.Likes)
		totalComments += len(p.Comments)
		totalShares += len(p.Reposts)
	}

	u.EngagementScore = scoring.EngagementScore(count, totalLikes, totalComments, totalShares, len(u.Followers))
	return u
}

// ListRewards returns the user's full ledger history in insertion order.
func (s *Service) ListRewards(ctx context.Context, userID string) ([]reward.TokenReward, error) {
	return s.ledger.ListRewards(ctx, userID)
}

// Unclaimed returns the pending entries that a claim would release.
func (s *Service) Unclaimed(ctx context.Context, userID string) ([]reward.TokenReward, error) {
	return s.ledger.ListUnclaimedRewards(ctx, userID)
}

// ClaimAll releases every unclaimed entry for the user, crediting the token
// balance and lifetime earnings. It returns 0 and mutates nothing when no
// rewards are pending.
func (s *Service) ClaimAll(ctx context.Context, userID string) (float64, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	total, err := s.ledger.ClaimRewards(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("claim rewards: %w", err)
	}
	if total == 0 {
		return 0, nil
	}

	u.TokenBalance += total
	u.TotalEarned += total
	u.LastRewardClaim = time.Now().UTC()
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return 0, fmt.Errorf("credit claim: %w", err)
	}
	metrics.ClaimProcessed(total)

	s.notifier.DistributeRewards(userID, total, "reward_claim")

	s.log.WithField("user_id", userID).
		WithField("amount", total).
		Info("rewards claimed")

	return total, nil
}

// Withdraw moves tokens off-platform. Validation failures surface as typed
// errors and leave the balance untouched; a chain failure degrades to a
// synthetic transaction reference since the chain is advisory here.
func (s *Service) Withdraw(ctx context.Context, userID string, amount float64) (reward.WithdrawalReceipt, error) {
	if amount <= 0 {
		return reward.WithdrawalReceipt{}, ErrInvalidAmount
	}

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return reward.WithdrawalReceipt{}, err
	}
	if u.WalletAddress == "" {
		return reward.WithdrawalReceipt{}, ErrMissingWallet
	}
	if amount > u.TokenBalance {
		return reward.WithdrawalReceipt{}, ErrInsufficientBalance
	}

	txRef := fmt.Sprintf("tx_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
	if s.chain != nil {
		result, err := s.chain.ProcessWithdrawal(ctx, userID, amount, u.WalletAddress)
		if err != nil {
			s.log.WithError(err).WithField("user_id", userID).Warn("chain withdrawal failed; proceeding with synthetic reference")
		} else if result.TxRef != "" {
			txRef = result.TxRef
		}
	}

	u.TokenBalance -= amount
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return reward.WithdrawalReceipt{}, fmt.Errorf("debit withdrawal: %w", err)
	}
	metrics.WithdrawalProcessed(amount)

	s.log.WithField("user_id", userID).
		WithField("amount", amount).
		WithField("tx_ref", txRef).
		Info("withdrawal processed")

	return reward.WithdrawalReceipt{
		UserID:      userID,
		Amount:      amount,
		ChainAmount: amount * reward.OPINToSOLRate,
		FeeSOL:      reward.WithdrawalFeeSOL,
		TxRef:       txRef,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
