// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is the default backend for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/content"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/message"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/notification"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/reward"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/user"
	"github.com/OpinNetwork/engage_layer/internal/app/storage"
)

// Store is an in-memory implementation of every storage interface. A single
// mutex guards all state, which also makes per-user claim+append
// linearizable.
type Store struct {
	mu            sync.RWMutex
	nextID        int64
	users         map[string]user.User
	usersByName   map[string]string
	posts         map[string]content.Post
	postOrder     []string
	ledger        []reward.TokenReward // insertion order is the causal order
	ledgerIDs     map[string]int
	hashtags      map[string]content.HashtagData
	notifications map[string]notification.Notification
	notifOrder    []string
	conversations map[string]message.Conversation
	snapshot      *storage.Snapshot
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.PostStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)
var _ storage.HashtagStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.ConversationStore = (*Store)(nil)
var _ storage.SnapshotStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:        1,
		users:         make(map[string]user.User),
		usersByName:   make(map[string]string),
		posts:         make(map[string]content.Post),
		ledgerIDs:     make(map[string]int),
		hashtags:      make(map[string]content.HashtagData),
		notifications: make(map[string]notification.Notification),
		conversations: make(map[string]message.Conversation),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrDuplicateID)
	}
	key := strings.ToLower(u.Username)
	if _, exists := s.usersByName[key]; exists {
		return user.User{}, fmt.Errorf("username %s: %w", u.Username, storage.ErrDuplicateID)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = cloneUser(u)
	s.usersByName[key] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}
	if !strings.EqualFold(original.Username, u.Username) {
		delete(s.usersByName, strings.ToLower(original.Username))
		s.usersByName[strings.ToLower(u.Username)] = u.ID
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	s.users[u.ID] = cloneUser(u)
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[strings.ToLower(username)]
	if !ok {
		return user.User{}, fmt.Errorf("username %s: %w", username, storage.ErrNotFound)
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, cloneUser(u))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// PostStore implementation ----------------------------------------------------

func (s *Store) CreatePost(_ context.Context, p content.Post) (content.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.posts[p.ID]; exists {
		return content.Post{}, fmt.Errorf("post %s: %w", p.ID, storage.ErrDuplicateID)
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	s.posts[p.ID] = clonePost(p)
	s.postOrder = append(s.postOrder, p.ID)
	return p, nil
}

func (s *Store) UpdatePost(_ context.Context, p content.Post) (content.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.posts[p.ID]
	if !ok {
		return content.Post{}, fmt.Errorf("post %s: %w", p.ID, storage.ErrNotFound)
	}
	p.CreatedAt = original.CreatedAt

	s.posts[p.ID] = clonePost(p)
	return p, nil
}

func (s *Store) GetPost(_ context.Context, id string) (content.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return content.Post{}, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	return clonePost(p), nil
}

func (s *Store) ListPosts(_ context.Context) ([]content.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]content.Post, 0, len(s.postOrder))
	for _, id := range s.postOrder {
		result = append(result, clonePost(s.posts[id]))
	}
	return result, nil
}

func (s *Store) ListPostsByAuthor(_ context.Context, authorID string) ([]content.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]content.Post, 0)
	for _, id := range s.postOrder {
		if p := s.posts[id]; p.AuthorID == authorID {
			result = append(result, clonePost(p))
		}
	}
	return result, nil
}

// LedgerStore implementation --------------------------------------------------

func (s *Store) AppendReward(_ context.Context, entry reward.TokenReward) (reward.TokenReward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = s.nextIDLocked()
	} else if _, exists := s.ledgerIDs[entry.ID]; exists {
		return reward.TokenReward{}, fmt.Errorf("reward %s: %w", entry.ID, storage.ErrDuplicateID)
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.ledgerIDs[entry.ID] = len(s.ledger)
	s.ledger = append(s.ledger, entry)
	return entry, nil
}

func (s *Store) ListRewards(_ context.Context, userID string) ([]reward.TokenReward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]reward.TokenReward, 0)
	for _, entry := range s.ledger {
		if userID == "" || entry.UserID == userID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (s *Store) ListUnclaimedRewards(_ context.Context, userID string) ([]reward.TokenReward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]reward.TokenReward, 0)
	for _, entry := range s.ledger {
		if entry.UserID == userID && !entry.Claimed {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (s *Store) ClaimRewards(_ context.Context, userID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0.0
	for i := range s.ledger {
		if s.ledger[i].UserID == userID && !s.ledger[i].Claimed {
			total += s.ledger[i].Amount
			s.ledger[i].Claimed = true
		}
	}
	return total, nil
}

// HashtagStore implementation -------------------------------------------------

func (s *Store) SaveHashtag(_ context.Context, tag content.HashtagData) (content.HashtagData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tag.Tag == "" {
		return content.HashtagData{}, fmt.Errorf("hashtag requires a tag")
	}
	s.hashtags[tag.Tag] = cloneHashtag(tag)
	return tag, nil
}

func (s *Store) GetHashtag(_ context.Context, tag string) (content.HashtagData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.hashtags[tag]
	if !ok {
		return content.HashtagData{}, fmt.Errorf("hashtag %s: %w", tag, storage.ErrNotFound)
	}
	return cloneHashtag(data), nil
}

func (s *Store) ListHashtags(_ context.Context) ([]content.HashtagData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]content.HashtagData, 0, len(s.hashtags))
	for _, data := range s.hashtags {
		result = append(result, cloneHashtag(data))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Tag < result[j].Tag })
	return result, nil
}

// NotificationStore implementation --------------------------------------------

func (s *Store) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = s.nextIDLocked()
	} else if _, exists := s.notifications[n.ID]; exists {
		return notification.Notification{}, fmt.Errorf("notification %s: %w", n.ID, storage.ErrDuplicateID)
	}

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	s.notifications[n.ID] = n
	s.notifOrder = append(s.notifOrder, n.ID)
	return n, nil
}

func (s *Store) ListNotifications(_ context.Context, userID string) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]notification.Notification, 0)
	for _, id := range s.notifOrder {
		if n := s.notifications[id]; userID == "" || n.UserID == userID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return notification.Notification{}, fmt.Errorf("notification %s: %w", id, storage.ErrNotFound)
	}
	n.Read = true
	s.notifications[id] = n
	return n, nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			s.notifications[id] = n
			count++
		}
	}
	return count, nil
}

// ConversationStore implementation --------------------------------------------

func (s *Store) SaveConversation(_ context.Context, c message.Conversation) (message.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = s.nextIDLocked()
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	s.conversations[c.ID] = cloneConversation(c)
	return c, nil
}

func (s *Store) GetConversationBetween(_ context.Context, userA, userB string) (message.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.conversations {
		if c.Involves(userA, userB) {
			return cloneConversation(c), nil
		}
	}
	return message.Conversation{}, fmt.Errorf("conversation between %s and %s: %w", userA, userB, storage.ErrNotFound)
}

func (s *Store) ListConversations(_ context.Context, userID string) ([]message.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]message.Conversation, 0)
	for _, c := range s.conversations {
		if userID == "" {
			result = append(result, cloneConversation(c))
			continue
		}
		for _, p := range c.Participants {
			if p == userID {
				result = append(result, cloneConversation(c))
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	return result, nil
}

// SnapshotStore implementation ------------------------------------------------

func (s *Store) SaveSnapshot(_ context.Context, snap storage.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = &snap
	return nil
}

func (s *Store) LoadSnapshot(_ context.Context) (storage.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return storage.Snapshot{}, false, nil
	}
	return *s.snapshot, true, nil
}

// Hydrate seeds the store from a previously persisted snapshot.
func (s *Store) Hydrate(snap storage.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range snap.Users {
		s.users[u.ID] = cloneUser(u)
		s.usersByName[strings.ToLower(u.Username)] = u.ID
	}
	for _, p := range snap.Posts {
		if _, exists := s.posts[p.ID]; !exists {
			s.postOrder = append(s.postOrder, p.ID)
		}
		s.posts[p.ID] = clonePost(p)
	}
	for _, tag := range snap.Hashtags {
		s.hashtags[tag.Tag] = cloneHashtag(tag)
	}
	for _, entry := range snap.Rewards {
		if _, exists := s.ledgerIDs[entry.ID]; exists {
			continue
		}
		s.ledgerIDs[entry.ID] = len(s.ledger)
		s.ledger = append(s.ledger, entry)
	}
	for _, n := range snap.Notifications {
		if _, exists := s.notifications[n.ID]; !exists {
			s.notifOrder = append(s.notifOrder, n.ID)
		}
		s.notifications[n.ID] = n
	}
	for _, c := range snap.Conversations {
		s.conversations[c.ID] = cloneConversation(c)
	}
}

// Helpers ---------------------------------------------------------------------

func cloneIDs(ids []string) []string {
	return append([]string(nil), ids...)
}

func cloneUser(u user.User) user.User {
	u.Followers = cloneIDs(u.Followers)
	u.Following = cloneIDs(u.Following)
	u.FollowedHashtags = cloneIDs(u.FollowedHashtags)
	return u
}

func clonePost(p content.Post) content.Post {
	p.Hashtags = cloneIDs(p.Hashtags)
	p.Mentions = cloneIDs(p.Mentions)
	p.Likes = cloneIDs(p.Likes)
	p.Reposts = append([]content.Repost(nil), p.Reposts...)
	p.Comments = cloneComments(p.Comments)
	return p
}

func cloneComments(comments []content.Comment) []content.Comment {
	if comments == nil {
		return nil
	}
	result := make([]content.Comment, len(comments))
	for i, c := range comments {
		c.Likes = cloneIDs(c.Likes)
		c.Dislikes = cloneIDs(c.Dislikes)
		c.Replies = cloneComments(c.Replies)
		result[i] = c
	}
	return result
}

func cloneHashtag(tag content.HashtagData) content.HashtagData {
	tag.Followers = cloneIDs(tag.Followers)
	return tag
}

func cloneConversation(c message.Conversation) message.Conversation {
	c.Participants = cloneIDs(c.Participants)
	msgs := make([]message.DirectMessage, len(c.Messages))
	for i, m := range c.Messages {
		m.Ciphertext = append([]byte(nil), m.Ciphertext...)
		msgs[i] = m
	}
	c.Messages = msgs
	return c
}
