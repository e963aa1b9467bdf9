// Package content defines posts, reposts and the nested comment model.
package content

import (
	"regexp"
	"strings"
	"time"
)

// RepostType distinguishes plain retweets from quote posts.
type RepostType string

const (
	RepostDirect RepostType = "direct"
	RepostQuote  RepostType = "quote"
)

// Post is an authored piece of content together with its engagement state.
// Reward fields are a snapshot taken when the post reward was computed at
// creation time; they are not re-derived as engagement accumulates.
type Post struct {
	ID                   string    `json:"id"`
	AuthorID             string    `json:"author_id"`
	Content              string    `json:"content"`
	MediaURL             string    `json:"media_url,omitempty"`
	Hashtags             []string  `json:"hashtags"`
	Mentions             []string  `json:"mentions"`
	Likes                []string  `json:"likes"` // liker user ids, set semantics
	Reposts              []Repost  `json:"reposts"`
	Comments             []Comment `json:"comments"`
	OriginalPostID       string    `json:"original_post_id,omitempty"` // set on quote posts
	RetweetComment       string    `json:"retweet_comment,omitempty"`
	ContentRef           string    `json:"content_ref,omitempty"` // content-addressed storage reference
	Signature            string    `json:"signature,omitempty"`
	Verified             bool      `json:"verified"`
	RewardPoints         float64   `json:"reward_points"`
	QualityScore         float64   `json:"quality_score"`
	EngagementMultiplier float64   `json:"engagement_multiplier"`
	ViralBonus           float64   `json:"viral_bonus"`
	CreatedAt            time.Time `json:"created_at"`
}

// Repost records a single share of a post.
type Repost struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Comment   string     `json:"comment,omitempty"`
	Type      RepostType `json:"type"`
	CreatedAt time.Time  `json:"created_at"`
}

// Comment is a node in a post's comment forest. Replies embed children
// directly; the tree is owned by the root post. Like and dislike sets are
// independent of each other.
type Comment struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	Content      string    `json:"content"`
	ParentID     string    `json:"parent_id,omitempty"`
	Likes        []string  `json:"likes"`
	Dislikes     []string  `json:"dislikes"`
	Replies      []Comment `json:"replies"`
	ContentRef   string    `json:"content_ref,omitempty"`
	RewardPoints float64   `json:"reward_points"`
	QualityScore float64   `json:"quality_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// HashtagData tracks per-tag usage. Trending is derived from the usage count.
type HashtagData struct {
	Tag       string   `json:"tag"`
	Count     int      `json:"count"`
	Trending  bool     `json:"trending"`
	Followers []string `json:"followers"`
}

// TrendingThreshold is the usage count above which a hashtag trends.
const TrendingThreshold = 3

var (
	hashtagPattern = regexp.MustCompile(`#(\w+)`)
	mentionPattern = regexp.MustCompile(`@(\w+)`)
)

// ParseHashtags extracts hashtag names (without '#') in order of appearance.
func ParseHashtags(text string) []string {
	return parseTokens(hashtagPattern, text)
}

// ParseMentions extracts mentioned usernames (without '@') in order of
// appearance.
func ParseMentions(text string) []string {
	return parseTokens(mentionPattern, text)
}

func parseTokens(pattern *regexp.Regexp, text string) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, m[1])
	}
	return tokens
}

// EngagementTotal returns likes + comments + reposts for the post. Only
// top-level comments count, matching how the post reward is computed.
func (p Post) EngagementTotal() int {
	return len(p.Likes) + len(p.Comments) + len(p.Reposts)
}

// FindComment locates a comment anywhere in the post's comment forest. The
// traversal is depth-first over an explicit stack so nesting depth is
// unbounded.
func (p *Post) FindComment(commentID string) *Comment {
	stack := make([]*Comment, 0, len(p.Comments))
	for i := range p.Comments {
		stack = append(stack, &p.Comments[i])
	}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node.ID == commentID {
			return node
		}
		for i := range node.Replies {
			stack = append(stack, &node.Replies[i])
		}
	}
	return nil
}

// AppendComment attaches the comment under its parent, or as a new top-level
// comment when ParentID is empty. It reports false when the parent does not
// exist in this post.
func (p *Post) AppendComment(c Comment) bool {
	if c.ParentID == "" {
		p.Comments = append(p.Comments, c)
		return true
	}
	parent := p.FindComment(c.ParentID)
	if parent == nil {
		return false
	}
	parent.Replies = append(parent.Replies, c)
	return true
}

// CommentCount returns the flattened number of comments in the forest.
func (p Post) CommentCount() int {
	count := 0
	stack := append([]Comment(nil), p.Comments...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		stack = append(stack, node.Replies...)
	}
	return count
}

// NormalizeTag lowercases and strips a leading '#' from a hashtag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}
