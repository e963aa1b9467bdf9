// Package app wires the stores, domain services and lifecycle-managed
// workers into one application facade. Every mutating operation goes through
// the facade so state, rewards, notifications and the persisted snapshot
// stay consistent.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/content"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/message"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/notification"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/reward"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/user"
	"github.com/OpinNetwork/engage_layer/internal/app/metrics"
	messagesvc "github.com/OpinNetwork/engage_layer/internal/app/services/messages"
	notificationsvc "github.com/OpinNetwork/engage_layer/internal/app/services/notifications"
	rewardsvc "github.com/OpinNetwork/engage_layer/internal/app/services/rewards"
	socialsvc "github.com/OpinNetwork/engage_layer/internal/app/services/social"
	usersvc "github.com/OpinNetwork/engage_layer/internal/app/services/users"
	"github.com/OpinNetwork/engage_layer/internal/app/storage"
	"github.com/OpinNetwork/engage_layer/internal/app/storage/memory"
	"github.com/OpinNetwork/engage_layer/internal/app/system"
	"github.com/OpinNetwork/engage_layer/internal/chain"
	"github.com/OpinNetwork/engage_layer/internal/contentstore"
	"github.com/OpinNetwork/engage_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users         storage.UserStore
	Posts         storage.PostStore
	Ledger        storage.LedgerStore
	Hashtags      storage.HashtagStore
	Notifications storage.NotificationStore
	Conversations storage.ConversationStore
	Snapshots     storage.SnapshotStore
}

// Options carries external wiring the facade cannot derive from stores.
// Empty fields fall back to environment variables.
type Options struct {
	ChainRPCURL   string // CHAIN_RPC_URL
	ChainNetwork  string // CHAIN_NETWORK
	MessageSecret string // MESSAGE_SECRET
}

type hydrator interface {
	Hydrate(storage.Snapshot)
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	stores      Stores
	chainClient chain.Client
	notifier    *chain.Notifier
	pins        contentstore.Store

	Users         *usersvc.Service
	Social        *socialsvc.Service
	Rewards       *rewardsvc.Service
	Messages      *messagesvc.Service
	Notifications *notificationsvc.Service
	Distributor   *rewardsvc.Distributor
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Posts == nil {
		stores.Posts = mem
	}
	if stores.Ledger == nil {
		stores.Ledger = mem
	}
	if stores.Hashtags == nil {
		stores.Hashtags = mem
	}
	if stores.Notifications == nil {
		stores.Notifications = mem
	}
	if stores.Conversations == nil {
		stores.Conversations = mem
	}
	if stores.Snapshots == nil {
		stores.Snapshots = mem
	}

	rpcURL := firstNonEmpty(opts.ChainRPCURL, os.Getenv("CHAIN_RPC_URL"))
	network := firstNonEmpty(opts.ChainNetwork, os.Getenv("CHAIN_NETWORK"))
	var chainClient chain.Client
	if rpcURL == "" {
		log.Warn("CHAIN_RPC_URL not set; using chain simulator")
		chainClient = chain.NewSimulator(network)
	} else {
		client, err := chain.NewRPCClient(chain.RPCConfig{RPCURL: rpcURL, Network: network})
		if err != nil {
			return nil, fmt.Errorf("configure chain client: %w", err)
		}
		chainClient = client
	}
	notifier := chain.NewNotifier(chainClient, log)

	secret := firstNonEmpty(opts.MessageSecret, os.Getenv("MESSAGE_SECRET"))
	if secret == "" {
		log.Warn("MESSAGE_SECRET not set; direct messages stored in plaintext")
	}

	pins := contentstore.NewMemory()

	notificationService := notificationsvc.New(stores.Notifications, log)
	rewardService := rewardsvc.New(stores.Users, stores.Ledger, chainClient, notifier, log)
	userService := usersvc.New(stores.Users, notificationService, log)
	socialService := socialsvc.New(stores.Users, stores.Posts, stores.Hashtags, rewardService, notificationService, pins, chainClient, log)
	messageService := messagesvc.New(stores.Users, stores.Conversations, []byte(secret), log)
	distributor := rewardsvc.NewDistributor(stores.Users, stores.Ledger, log)

	manager := system.NewManager()
	for _, svc := range []system.Service{notifier, distributor} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	a := &Application{
		manager:       manager,
		log:           log,
		stores:        stores,
		chainClient:   chainClient,
		notifier:      notifier,
		pins:          pins,
		Users:         userService,
		Social:        socialService,
		Rewards:       rewardService,
		Messages:      messageService,
		Notifications: notificationService,
		Distributor:   distributor,
	}

	if err := a.restore(context.Background()); err != nil {
		return nil, err
	}
	return a, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// restore loads the persisted snapshot, if any, into hydratable stores.
func (a *Application) restore(ctx context.Context) error {
	snap, ok, err := a.stores.Snapshots.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return nil
	}

	seen := make(map[hydrator]bool)
	for _, store := range []any{
		a.stores.Users, a.stores.Posts, a.stores.Ledger,
		a.stores.Hashtags, a.stores.Notifications, a.stores.Conversations,
	} {
		if h, isHydrator := store.(hydrator); isHydrator && !seen[h] {
			seen[h] = true
			h.Hydrate(snap)
		}
	}
	a.Distributor.SetPool(snap.Pool)

	a.log.WithField("users", len(snap.Users)).WithField("posts", len(snap.Posts)).Info("state restored from snapshot")
	return nil
}

// persist saves the full application state, best-effort. A failed save never
// fails the action that triggered it.
func (a *Application) persist(ctx context.Context) {
	snap, err := a.buildSnapshot(ctx)
	if err != nil {
		a.log.WithError(err).Warn("snapshot build failed")
		return
	}
	if err := a.stores.Snapshots.SaveSnapshot(ctx, snap); err != nil {
		a.log.WithError(err).Warn("snapshot save failed")
	}
}

func (a *Application) buildSnapshot(ctx context.Context) (storage.Snapshot, error) {
	users, err := a.stores.Users.ListUsers(ctx)
	if err != nil {
		return storage.Snapshot{}, err
	}
	posts, err := a.stores.Posts.ListPosts(ctx)
	if err != nil {
		return storage.Snapshot{}, err
	}
	hashtags, err := a.stores.Hashtags.ListHashtags(ctx)
	if err != nil {
		return storage.Snapshot{}, err
	}
	ledger, err := a.stores.Ledger.ListRewards(ctx, "")
	if err != nil {
		return storage.Snapshot{}, err
	}
	notifs, err := a.stores.Notifications.ListNotifications(ctx, "")
	if err != nil {
		return storage.Snapshot{}, err
	}
	convs, err := a.stores.Conversations.ListConversations(ctx, "")
	if err != nil {
		return storage.Snapshot{}, err
	}

	return storage.Snapshot{
		Users:         users,
		Posts:         posts,
		Hashtags:      hashtags,
		Rewards:       ledger,
		Notifications: notifs,
		Conversations: convs,
		Pool:          a.Distributor.Pool(),
	}, nil
}

// Facade actions ---------------------------------------------------------------

// CreateUser registers a profile with the starting OPIN grant.
func (a *Application) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	created, err := a.Users.Create(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	metrics.ActionProcessed("create_user")
	a.persist(ctx)
	return created, nil
}

// UpdateUser applies profile edits.
func (a *Application) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	updated, err := a.Users.Update(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	metrics.ActionProcessed("update_user")
	a.persist(ctx)
	return updated, nil
}

// AddPost creates a post, awards the creation reward and fans out
// notifications.
func (a *Application) AddPost(ctx context.Context, authorID, body, mediaURL string) (content.Post, error) {
	post, err := a.Social.AddPost(ctx, authorID, body, mediaURL)
	if err != nil {
		return content.Post{}, err
	}
	metrics.ActionProcessed("add_post")
	a.persist(ctx)
	return post, nil
}

// ToggleLike flips the user's like on the post.
func (a *Application) ToggleLike(ctx context.Context, userID, postID string) (content.Post, bool, error) {
	post, liked, err := a.Social.ToggleLike(ctx, userID, postID)
	if err != nil {
		return content.Post{}, false, err
	}
	metrics.ActionProcessed("toggle_like")
	a.persist(ctx)
	return post, liked, nil
}

// AddComment appends a comment and awards the comment reward.
func (a *Application) AddComment(ctx context.Context, userID, postID, parentID, body string) (content.Post, content.Comment, error) {
	post, comment, err := a.Social.AddComment(ctx, userID, postID, parentID, body)
	if err != nil {
		return content.Post{}, content.Comment{}, err
	}
	metrics.ActionProcessed("add_comment")
	a.persist(ctx)
	return post, comment, nil
}

// ToggleCommentLike flips the user's like on a comment.
func (a *Application) ToggleCommentLike(ctx context.Context, userID, postID, commentID string) (content.Post, error) {
	post, err := a.Social.ToggleCommentLike(ctx, userID, postID, commentID)
	if err != nil {
		return content.Post{}, err
	}
	metrics.ActionProcessed("toggle_comment_like")
	a.persist(ctx)
	return post, nil
}

// ToggleCommentDislike flips the user's dislike on a comment.
func (a *Application) ToggleCommentDislike(ctx context.Context, userID, postID, commentID string) (content.Post, error) {
	post, err := a.Social.ToggleCommentDislike(ctx, userID, postID, commentID)
	if err != nil {
		return content.Post{}, err
	}
	metrics.ActionProcessed("toggle_comment_dislike")
	a.persist(ctx)
	return post, nil
}

// Repost shares a post, optionally as a quote post.
func (a *Application) Repost(ctx context.Context, userID, postID, comment string) (content.Post, *content.Post, error) {
	post, quote, err := a.Social.Repost(ctx, userID, postID, comment)
	if err != nil {
		return content.Post{}, nil, err
	}
	metrics.ActionProcessed("repost")
	a.persist(ctx)
	return post, quote, nil
}

// ToggleFollow flips the follow edge between two users.
func (a *Application) ToggleFollow(ctx context.Context, followerID, targetID string) (user.User, bool, error) {
	follower, added, err := a.Users.ToggleFollow(ctx, followerID, targetID)
	if err != nil {
		return user.User{}, false, err
	}
	metrics.ActionProcessed("toggle_follow")
	a.persist(ctx)
	return follower, added, nil
}

// ToggleFollowHashtag flips the user's follow on a hashtag.
func (a *Application) ToggleFollowHashtag(ctx context.Context, userID, tag string) (user.User, bool, error) {
	u, added, err := a.Social.ToggleFollowHashtag(ctx, userID, tag)
	if err != nil {
		return user.User{}, false, err
	}
	metrics.ActionProcessed("toggle_follow_hashtag")
	a.persist(ctx)
	return u, added, nil
}

// SendMessage appends a direct message, creating the conversation on first
// contact.
func (a *Application) SendMessage(ctx context.Context, senderID, receiverID, body string) (message.Conversation, error) {
	conv, err := a.Messages.Send(ctx, senderID, receiverID, body)
	if err != nil {
		return message.Conversation{}, err
	}
	metrics.ActionProcessed("send_message")
	a.persist(ctx)
	return conv, nil
}

// MarkNotificationRead flips one notification's read flag.
func (a *Application) MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error) {
	n, err := a.Notifications.MarkRead(ctx, id)
	if err != nil {
		return notification.Notification{}, err
	}
	metrics.ActionProcessed("mark_notification_read")
	a.persist(ctx)
	return n, nil
}

// MarkAllNotificationsRead flips every unread notification for the user.
func (a *Application) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	count, err := a.Notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	metrics.ActionProcessed("mark_all_notifications_read")
	a.persist(ctx)
	return count, nil
}

// ClaimRewards releases every unclaimed ledger entry for the user.
func (a *Application) ClaimRewards(ctx context.Context, userID string) (float64, error) {
	total, err := a.Rewards.ClaimAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	if total > 0 {
		a.Notifications.NotifyBestEffort(ctx, notification.Notification{
			UserID:       userID,
			Type:         notification.TypeReward,
			Content:      fmt.Sprintf("You claimed %.2f OPIN in rewards", total),
			RewardAmount: total,
		})
	}
	metrics.ActionProcessed("claim_rewards")
	a.persist(ctx)
	return total, nil
}

// Withdraw moves tokens off-platform.
func (a *Application) Withdraw(ctx context.Context, userID string, amount float64) (reward.WithdrawalReceipt, error) {
	receipt, err := a.Rewards.Withdraw(ctx, userID, amount)
	if err != nil {
		return reward.WithdrawalReceipt{}, err
	}
	a.Notifications.NotifyBestEffort(ctx, notification.Notification{
		UserID:       userID,
		Type:         notification.TypeReward,
		Content:      fmt.Sprintf("Withdrawal of %.2f OPIN processed (%s)", receipt.Amount, receipt.TxRef),
		RewardAmount: receipt.Amount,
	})
	metrics.ActionProcessed("withdraw")
	a.persist(ctx)
	return receipt, nil
}

// DistributePool runs the daily pool distribution immediately.
func (a *Application) DistributePool(ctx context.Context) (reward.Pool, error) {
	pool, err := a.Distributor.Distribute(ctx)
	if err != nil {
		return reward.Pool{}, err
	}
	metrics.ActionProcessed("distribute_pool")
	a.persist(ctx)
	return pool, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
