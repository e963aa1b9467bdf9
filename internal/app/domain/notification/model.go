// Package notification defines user-facing notifications emitted by facade
// actions.
package notification

import "time"

// Type classifies a notification.
type Type string

const (
	TypeLike    Type = "like"
	TypeComment Type = "comment"
	TypeFollow  Type = "follow"
	TypeMention Type = "mention"
	TypeHashtag Type = "hashtag"
	TypeReward  Type = "reward"
)

// SystemSender is the from-user id for platform-generated notifications.
const SystemSender = "system"

// Notification is delivered to a single user. The only mutation after
// creation is the read flag.
type Notification struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Type         Type      `json:"type"`
	FromUserID   string    `json:"from_user_id"`
	PostID       string    `json:"post_id,omitempty"`
	CommentID    string    `json:"comment_id,omitempty"`
	Content      string    `json:"content"`
	RewardAmount float64   `json:"reward_amount,omitempty"`
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"created_at"`
}
