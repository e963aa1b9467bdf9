// Package users manages profiles and the follow graph.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/notification"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/user"
	"github.com/OpinNetwork/engage_layer/internal/app/services/notifications"
	"github.com/OpinNetwork/engage_layer/internal/app/storage"
	"github.com/OpinNetwork/engage_layer/pkg/logger"
)

// Errors
var (
	ErrUsernameRequired = errors.New("username required")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrSelfFollow       = errors.New("cannot follow yourself")
)

// Service manages user profiles.
type Service struct {
	store  storage.UserStore
	notifs *notifications.Service
	log    *logger.Logger
}

// New constructs the service.
func New(store storage.UserStore, notifs *notifications.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, notifs: notifs, log: log}
}

// Create registers a new profile with the starting OPIN grant. The grant is
// credited directly to the balance, not through the ledger: it is not
// claimable activity.
func (s *Service) Create(ctx context.Context, u user.User) (user.User, error) {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return user.User{}, ErrUsernameRequired
	}
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	u.Followers = []string{}
	u.Following = []string{}
	u.FollowedHashtags = []string{}
	u.TokenBalance = user.StartingBalance
	u.TotalEarned = 0
	u.EngagementScore = 0
	u.LastRewardClaim = time.Time{}
	u.TotalPosts, u.TotalLikes, u.TotalComments, u.TotalShares = 0, 0, 0, 0

	created, err := s.store.CreateUser(ctx, u)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateID) {
			return user.User{}, ErrUsernameTaken
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	s.log.WithField("user_id", created.ID).WithField("username", created.Username).Info("user created")
	return created, nil
}

// Update applies profile edits. Balances, counters and graph edges are
// owned by other operations and keep their stored values.
func (s *Service) Update(ctx context.Context, u user.User) (user.User, error) {
	current, err := s.store.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	current.DisplayName = u.DisplayName
	current.Bio = u.Bio
	current.Avatar = u.Avatar
	current.WalletAddress = u.WalletAddress
	current.PublicKey = u.PublicKey

	updated, err := s.store.UpdateUser(ctx, current)
	if err != nil {
		return user.User{}, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

// Get returns one user by id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// GetByUsername returns one user by username, case-insensitive.
func (s *Service) GetByUsername(ctx context.Context, username string) (user.User, error) {
	return s.store.GetUserByUsername(ctx, username)
}

// List returns all users in creation order.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}

// ToggleFollow flips the follow edge from follower to target, updating both
// sides of the graph. A new follow notifies the target; an unfollow is
// silent.
func (s *Service) ToggleFollow(ctx context.Context, followerID, targetID string) (user.User, bool, error) {
	if followerID == targetID {
		return user.User{}, false, ErrSelfFollow
	}

	follower, err := s.store.GetUser(ctx, followerID)
	if err != nil {
		return user.User{}, false, err
	}
	target, err := s.store.GetUser(ctx, targetID)
	if err != nil {
		return user.User{}, false, err
	}

	following, added := user.Toggle(follower.Following, targetID)
	follower.Following = following
	if added {
		target.Followers, _ = user.Toggle(removeID(target.Followers, followerID), followerID)
	} else {
		target.Followers = removeID(target.Followers, followerID)
	}

	follower, err = s.store.UpdateUser(ctx, follower)
	if err != nil {
		return user.User{}, false, fmt.Errorf("update follower: %w", err)
	}
	if _, err := s.store.UpdateUser(ctx, target); err != nil {
		return user.User{}, false, fmt.Errorf("update target: %w", err)
	}

	if added && s.notifs != nil {
		s.notifs.NotifyBestEffort(ctx, notification.Notification{
			UserID:     targetID,
			Type:       notification.TypeFollow,
			FromUserID: followerID,
			Content:    "started following you",
		})
	}

	return follower, added, nil
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
