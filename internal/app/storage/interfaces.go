// Package storage defines the persistence interfaces consumed by the
// application services. Implementations live in the memory, postgres and
// redis subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/content"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/message"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/notification"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/reward"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/user"
)

// Common store errors. Stores wrap these so services and the HTTP facade can
// classify failures without knowing the backend.
var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicateID = errors.New("duplicate id")
)

// UserStore persists user profiles and their social graph edges.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// PostStore persists posts together with their embedded comment forests.
type PostStore interface {
	CreatePost(ctx context.Context, p content.Post) (content.Post, error)
	UpdatePost(ctx context.Context, p content.Post) (content.Post, error)
	GetPost(ctx context.Context, id string) (content.Post, error)
	ListPosts(ctx context.Context) ([]content.Post, error)
	ListPostsByAuthor(ctx context.Context, authorID string) ([]content.Post, error)
}

// LedgerStore is the append-only reward ledger. AppendReward fails with
// ErrDuplicateID on an id collision. ClaimRewards sums and flips all
// unclaimed entries for the user as one atomic operation so a claim can
// never race-miss an append that precedes it for the same user.
type LedgerStore interface {
	AppendReward(ctx context.Context, entry reward.TokenReward) (reward.TokenReward, error)
	ListRewards(ctx context.Context, userID string) ([]reward.TokenReward, error)
	ListUnclaimedRewards(ctx context.Context, userID string) ([]reward.TokenReward, error)
	ClaimRewards(ctx context.Context, userID string) (float64, error)
}

// HashtagStore persists hashtag usage counters and follower sets.
type HashtagStore interface {
	SaveHashtag(ctx context.Context, tag content.HashtagData) (content.HashtagData, error)
	GetHashtag(ctx context.Context, tag string) (content.HashtagData, error)
	ListHashtags(ctx context.Context) ([]content.HashtagData, error)
}

// NotificationStore persists notifications; the read flag is the only
// mutation after creation.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	ListNotifications(ctx context.Context, userID string) ([]notification.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
}

// ConversationStore persists direct-message conversations. ListConversations
// with an empty user id returns every conversation.
type ConversationStore interface {
	SaveConversation(ctx context.Context, c message.Conversation) (message.Conversation, error)
	GetConversationBetween(ctx context.Context, userA, userB string) (message.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]message.Conversation, error)
}

// Snapshot is the full application state persisted after every facade action
// and loaded once at startup. Loaders must tolerate missing optional fields.
type Snapshot struct {
	Users         []user.User                 `json:"users"`
	Posts         []content.Post              `json:"posts"`
	Hashtags      []content.HashtagData       `json:"hashtags"`
	Rewards       []reward.TokenReward        `json:"rewards"`
	Notifications []notification.Notification `json:"notifications"`
	Conversations []message.Conversation      `json:"conversations"`
	Pool          reward.Pool                 `json:"pool"`
}

// SnapshotStore persists the application snapshot under a fixed key.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	LoadSnapshot(ctx context.Context) (Snapshot, bool, error)
}
