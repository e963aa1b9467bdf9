// Package user defines the profile and social-graph model for platform users.
package user

import "time"

// StartingBalance is the OPIN grant issued when a profile is created.
const StartingBalance = 10.0

// User represents a platform member: identity, social graph edges, reward
// balances and lifetime activity counters. Users are never deleted.
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	DisplayName      string    `json:"display_name"`
	Bio              string    `json:"bio,omitempty"`
	Avatar           string    `json:"avatar,omitempty"`
	PublicKey        string    `json:"public_key"`
	WalletAddress    string    `json:"wallet_address,omitempty"` // external chain address; required for withdrawals
	Verified         bool      `json:"verified"`
	Followers        []string  `json:"followers"`
	Following        []string  `json:"following"`
	FollowedHashtags []string  `json:"followed_hashtags"`
	TokenBalance     float64   `json:"token_balance"`    // current spendable OPIN
	TotalEarned      float64   `json:"total_earned"`     // lifetime claimed OPIN, monotonic
	EngagementScore  int       `json:"engagement_score"` // 0-100
	LastRewardClaim  time.Time `json:"last_reward_claim"`
	TotalPosts       int       `json:"total_posts"`
	TotalLikes       int       `json:"total_likes"`
	TotalComments    int       `json:"total_comments"`
	TotalShares      int       `json:"total_shares"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsFollowing reports whether the user follows the target id.
func (u User) IsFollowing(targetID string) bool {
	return contains(u.Following, targetID)
}

// FollowsHashtag reports whether the user follows the tag.
func (u User) FollowsHashtag(tag string) bool {
	return contains(u.FollowedHashtags, tag)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Toggle adds id to the set if absent and removes it if present. It returns
// the updated set and true when the id was added.
func Toggle(ids []string, id string) ([]string, bool) {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...), false
		}
	}
	return append(ids, id), true
}
