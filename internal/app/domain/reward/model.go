// Package reward defines the token reward ledger entries and the rate table
// driving the engagement accounting engine.
package reward

import "time"

// Type classifies a ledger entry.
type Type string

const (
	TypePost       Type = "post"
	TypeComment    Type = "comment"
	TypeLike       Type = "like"
	TypeShare      Type = "share"
	TypeEngagement Type = "engagement"
	TypeViralBonus Type = "viral_bonus"
	TypeQuality    Type = "quality_bonus"
)

// TokenReward is a single append-only ledger entry. Entries are immutable
// once written except for the claimed flag.
type TokenReward struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      Type      `json:"type"`
	Amount    float64   `json:"amount"`
	PostID    string    `json:"post_id,omitempty"`
	CommentID string    `json:"comment_id,omitempty"`
	TxRef     string    `json:"tx_ref,omitempty"`
	Claimed   bool      `json:"claimed"`
	CreatedAt time.Time `json:"created_at"`
}

// Calculation breaks a post reward into its components.
type Calculation struct {
	BaseReward           float64 `json:"base_reward"`
	QualityMultiplier    float64 `json:"quality_multiplier"`
	EngagementMultiplier float64 `json:"engagement_multiplier"`
	ViralBonus           float64 `json:"viral_bonus"`
	TotalReward          float64 `json:"total_reward"`
}

// Rate table for the OPIN reward economy.
const (
	RatePost            = 1.0
	RateComment         = 0.5
	RateLike            = 0.1
	RateShare           = 0.3
	RateEngagementBonus = 0.2 // per interaction on the engagement multiplier
	ViralThreshold      = 50  // likes + comments + shares
	ViralMultiplier     = 2.0
	QualityThreshold    = 0.8
	QualityMultiplier   = 1.5
	DailyPool           = 10000.0 // total OPIN distributed daily
	WithdrawalFeeSOL    = 0.2
	OPINToSOLRate       = 0.001
)

// Pool tracks reward distribution bookkeeping across the platform.
type Pool struct {
	TotalPool         float64   `json:"total_pool"`
	DailyDistribution float64   `json:"daily_distribution"`
	LastDistribution  time.Time `json:"last_distribution"`
	ParticipantCount  int       `json:"participant_count"`
	AverageReward     float64   `json:"average_reward"`
}

// DefaultPool returns the initial pool state.
func DefaultPool() Pool {
	return Pool{
		TotalPool:         DailyPool,
		DailyDistribution: 1000,
		LastDistribution:  time.Now().UTC(),
	}
}

// WithdrawalReceipt reports the outcome of a processed withdrawal. ChainAmount
// is the SOL-equivalent delivered on chain; FeeSOL is charged on top of the
// withdrawn amount, not deducted from it.
type WithdrawalReceipt struct {
	UserID      string    `json:"user_id"`
	Amount      float64   `json:"amount"`
	ChainAmount float64   `json:"chain_amount"`
	FeeSOL      float64   `json:"fee_sol"`
	TxRef       string    `json:"tx_ref"`
	CreatedAt   time.Time `json:"created_at"`
}
