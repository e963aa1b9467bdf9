// Package scoring implements the pure reward and quality heuristics of the
// OPIN economy. Functions here have no side effects and no dependencies on
// stores or services.
package scoring

import (
	"math"
	"strings"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/content"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/reward"
)

// spamPhrases is the blocklist checked by QualityScore. Matching is
// case-insensitive substring containment.
var spamPhrases = []string{"buy now", "click here", "free money", "guaranteed"}

// QualityScore rates content in [0,1]. Base 0.5, plus length, hashtag usage,
// question and spam-free bonuses of 0.1 each, clamped to 1.0.
func QualityScore(text string) float64 {
	score := 0.5

	if len(text) > 50 {
		score += 0.1
	}
	if len(text) > 100 {
		score += 0.1
	}

	// 1-3 hashtags signal topical content; more looks like tag stuffing.
	if n := len(content.ParseHashtags(text)); n > 0 && n <= 3 {
		score += 0.1
	}

	if strings.Contains(text, "?") {
		score += 0.1
	}

	lowered := strings.ToLower(text)
	spam := false
	for _, phrase := range spamPhrases {
		if strings.Contains(lowered, phrase) {
			spam = true
			break
		}
	}
	if !spam {
		score += 0.1
	}

	return math.Min(1.0, score)
}

// PostReward computes the reward breakdown for a post with the given
// engagement counts. Callers award posts at creation time when engagement is
// zero, but the function holds for any counts.
func PostReward(likes, comments, shares int, qualityScore float64) reward.Calculation {
	baseReward := reward.RatePost

	qualityMultiplier := 1.0
	if qualityScore >= reward.QualityThreshold {
		qualityMultiplier = reward.QualityMultiplier
	}

	totalEngagement := likes + comments + shares
	engagementMultiplier := 1 + float64(totalEngagement)*reward.RateEngagementBonus

	viralBonus := 0.0
	if totalEngagement >= reward.ViralThreshold {
		viralBonus = baseReward * reward.ViralMultiplier
	}

	return reward.Calculation{
		BaseReward:           baseReward,
		QualityMultiplier:    qualityMultiplier,
		EngagementMultiplier: engagementMultiplier,
		ViralBonus:           viralBonus,
		TotalReward:          baseReward*qualityMultiplier*engagementMultiplier + viralBonus,
	}
}

// CommentReward computes the reward for a comment given its like/dislike
// counts. Net negative comments still earn the base amount.
func CommentReward(likes, dislikes int, qualityScore float64) float64 {
	netLikes := likes - dislikes
	if netLikes < 0 {
		netLikes = 0
	}

	qualityMultiplier := 1.0
	if qualityScore >= reward.QualityThreshold {
		qualityMultiplier = reward.QualityMultiplier
	}

	return reward.RateComment * qualityMultiplier * (1 + float64(netLikes)*0.1)
}

// EngagementScore rates a user 0-100 from average per-post engagement and
// the follower ratio. Users with no posts score zero.
func EngagementScore(postCount, totalLikes, totalComments, totalShares, followerCount int) int {
	if postCount == 0 {
		return 0
	}

	avgEngagement := float64(totalLikes+totalComments+totalShares) / float64(postCount)
	followerRatio := avgEngagement
	if followerCount > 0 {
		followerRatio = avgEngagement / float64(followerCount)
	}

	score := int(math.Round(avgEngagement*2 + followerRatio*50))
	if score > 100 {
		score = 100
	}
	return score
}
