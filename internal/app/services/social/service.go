// Package social implements the content and engagement operations: posts,
// likes, comments, reposts and hashtag follows. Every mutation that earns
// OPIN routes through the reward engine.
package social

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/content"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/notification"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/reward"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/user"
	"github.com/OpinNetwork/engage_layer/internal/app/services/notifications"
	"github.com/OpinNetwork/engage_layer/internal/app/services/rewards"
	"github.com/OpinNetwork/engage_layer/internal/app/services/scoring"
	"github.com/OpinNetwork/engage_layer/internal/app/storage"
	"github.com/OpinNetwork/engage_layer/internal/chain"
	"github.com/OpinNetwork/engage_layer/internal/contentstore"
	"github.com/OpinNetwork/engage_layer/pkg/logger"
)

// Service coordinates stores, the reward engine and the notification feed
// for content operations.
type Service struct {
	users    storage.UserStore
	posts    storage.PostStore
	hashtags storage.HashtagStore
	rewards  *rewards.Service
	notifs   *notifications.Service
	pins     contentstore.Store
	signer   chain.Client
	log      *logger.Logger
}

// New constructs the service. pins and signer may be nil; provenance is then
// skipped and posts stay unverified.
func New(
	users storage.UserStore,
	posts storage.PostStore,
	hashtags storage.HashtagStore,
	rewardEngine *rewards.Service,
	notifs *notifications.Service,
	pins contentstore.Store,
	signer chain.Client,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.NewDefault("social")
	}
	return &Service{
		users:    users,
		posts:    posts,
		hashtags: hashtags,
		rewards:  rewardEngine,
		notifs:   notifs,
		pins:     pins,
		signer:   signer,
		log:      log,
	}
}

// AddPost creates a post for the author: provenance is attached best-effort,
// the reward snapshot is taken at creation time, hashtag counters and the
// author's activity counters advance, and mention and hashtag-follower
// notifications go out.
func (s *Service) AddPost(ctx context.Context, authorID, body, mediaURL string) (content.Post, error) {
	author, err := s.users.GetUser(ctx, authorID)
	if err != nil {
		return content.Post{}, err
	}

	qualityScore := scoring.QualityScore(body)
	calc := scoring.PostReward(0, 0, 0, qualityScore)

	post := content.Post{
		ID:                   uuid.NewString(),
		AuthorID:             authorID,
		Content:              body,
		MediaURL:             mediaURL,
		Hashtags:             normalizeTags(content.ParseHashtags(body)),
		Mentions:             content.ParseMentions(body),
		Likes:                []string{},
		Reposts:              []content.Repost{},
		Comments:             []content.Comment{},
		RewardPoints:         calc.TotalReward,
		QualityScore:         qualityScore,
		EngagementMultiplier: calc.EngagementMultiplier,
		ViralBonus:           calc.ViralBonus,
		CreatedAt:            time.Now().UTC(),
	}
	s.attachProvenance(ctx, &post)

	post, err = s.posts.CreatePost(ctx, post)
	if err != nil {
		return content.Post{}, fmt.Errorf("create post: %w", err)
	}

	if err := s.recordHashtags(ctx, post.Hashtags); err != nil {
		return content.Post{}, err
	}

	if _, err := s.rewards.AwardPostReward(ctx, post, authorID); err != nil {
		return content.Post{}, err
	}

	author.TotalPosts++
	if err := s.refreshAuthor(ctx, author); err != nil {
		return content.Post{}, err
	}

	s.notifyMentions(ctx, post)
	s.notifyHashtagFollowers(ctx, post)

	s.log.WithField("post_id", post.ID).WithField("author_id", authorID).Info("post created")
	return post, nil
}

// ToggleLike flips the user's like on the post. A new like bumps the liker's
// lifetime like counter; the engagement reward and the author notification
// fire only when the liker is not the author. Removing a like reverses
// nothing: the ledger is append-only.
func (s *Service) ToggleLike(ctx context.Context, userID, postID string) (content.Post, bool, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return content.Post{}, false, err
	}
	liker, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return content.Post{}, false, err
	}

	likes, added := user.Toggle(post.Likes, userID)
	post.Likes = likes
	post, err = s.posts.UpdatePost(ctx, post)
	if err != nil {
		return content.Post{}, false, fmt.Errorf("update post: %w", err)
	}
	if !added {
		return post, false, nil
	}

	liker.TotalLikes++
	if _, err := s.users.UpdateUser(ctx, liker); err != nil {
		return content.Post{}, false, fmt.Errorf("update liker: %w", err)
	}

	if userID != post.AuthorID {
		amount, err := s.rewards.AwardEngagementReward(ctx, userID, reward.TypeLike, post.ID)
		if err != nil {
			return content.Post{}, false, err
		}
		s.notifs.NotifyBestEffort(ctx, notification.Notification{
			UserID:       post.AuthorID,
			Type:         notification.TypeLike,
			FromUserID:   userID,
			PostID:       post.ID,
			Content:      "liked your post",
			RewardAmount: amount,
		})
	}

	return post, true, nil
}

// AddComment appends a comment to the post's comment forest. A non-empty
// parent id must reference an existing comment in the same post. The
// commenter earns the comment reward and the post author is notified unless
// commenting on their own post.
func (s *Service) AddComment(ctx context.Context, userID, postID, parentID, body string) (content.Post, content.Comment, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return content.Post{}, content.Comment{}, err
	}
	commenter, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return content.Post{}, content.Comment{}, err
	}

	qualityScore := scoring.QualityScore(body)
	comment := content.Comment{
		ID:           uuid.NewString(),
		AuthorID:     userID,
		Content:      body,
		ParentID:     parentID,
		Likes:        []string{},
		Dislikes:     []string{},
		RewardPoints: scoring.CommentReward(0, 0, qualityScore),
		QualityScore: qualityScore,
		CreatedAt:    time.Now().UTC(),
	}
	if s.pins != nil {
		if ref, err := s.pins.Store(ctx, contentstore.Content{Body: body, Author: userID, Timestamp: comment.CreatedAt}); err == nil {
			comment.ContentRef = ref
		}
	}

	if !post.AppendComment(comment) {
		return content.Post{}, content.Comment{}, fmt.Errorf("parent comment %s: %w", parentID, storage.ErrNotFound)
	}
	post, err = s.posts.UpdatePost(ctx, post)
	if err != nil {
		return content.Post{}, content.Comment{}, fmt.Errorf("update post: %w", err)
	}

	if _, err := s.rewards.AwardCommentReward(ctx, comment, userID); err != nil {
		return content.Post{}, content.Comment{}, err
	}

	commenter.TotalComments++
	if _, err := s.users.UpdateUser(ctx, commenter); err != nil {
		return content.Post{}, content.Comment{}, fmt.Errorf("update commenter: %w", err)
	}

	if post.AuthorID != userID {
		s.notifs.NotifyBestEffort(ctx, notification.Notification{
			UserID:     post.AuthorID,
			Type:       notification.TypeComment,
			FromUserID: userID,
			PostID:     post.ID,
			CommentID:  comment.ID,
			Content:    "commented on your post",
		})
	}

	return post, comment, nil
}

// ToggleCommentLike flips the user's like on a comment anywhere in the
// post's forest. The like and dislike sets are independent.
func (s *Service) ToggleCommentLike(ctx context.Context, userID, postID, commentID string) (content.Post, error) {
	return s.toggleCommentReaction(ctx, userID, postID, commentID, true)
}

// ToggleCommentDislike flips the user's dislike on a comment.
func (s *Service) ToggleCommentDislike(ctx context.Context, userID, postID, commentID string) (content.Post, error) {
	return s.toggleCommentReaction(ctx, userID, postID, commentID, false)
}

func (s *Service) toggleCommentReaction(ctx context.Context, userID, postID, commentID string, like bool) (content.Post, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return content.Post{}, err
	}

	comment := post.FindComment(commentID)
	if comment == nil {
		return content.Post{}, fmt.Errorf("comment %s: %w", commentID, storage.ErrNotFound)
	}

	if like {
		comment.Likes, _ = user.Toggle(comment.Likes, userID)
	} else {
		comment.Dislikes, _ = user.Toggle(comment.Dislikes, userID)
	}

	post, err = s.posts.UpdatePost(ctx, post)
	if err != nil {
		return content.Post{}, fmt.Errorf("update post: %w", err)
	}
	return post, nil
}

// Repost records a share of the post. An empty comment is a direct repost; a
// non-empty comment additionally creates a quote post referencing the
// original. Repeated reposts stack: each one appends a repost record and
// bumps the sharer's counter. The sharer earns the share reward unless
// sharing their own post. The author notification reuses the like type.
func (s *Service) Repost(ctx context.Context, userID, postID, comment string) (content.Post, *content.Post, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return content.Post{}, nil, err
	}
	actor, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return content.Post{}, nil, err
	}

	repost := content.Repost{
		ID:        uuid.NewString(),
		UserID:    userID,
		Comment:   comment,
		Type:      content.RepostDirect,
		CreatedAt: time.Now().UTC(),
	}
	if comment != "" {
		repost.Type = content.RepostQuote
	}
	post.Reposts = append(post.Reposts, repost)
	post, err = s.posts.UpdatePost(ctx, post)
	if err != nil {
		return content.Post{}, nil, fmt.Errorf("update post: %w", err)
	}

	var quote *content.Post
	if repost.Type == content.RepostQuote {
		q, err := s.createQuotePost(ctx, userID, post, comment)
		if err != nil {
			return content.Post{}, nil, err
		}
		quote = &q
	}

	actor.TotalShares++
	if _, err := s.users.UpdateUser(ctx, actor); err != nil {
		return content.Post{}, nil, fmt.Errorf("update sharer: %w", err)
	}

	if userID != post.AuthorID {
		amount, err := s.rewards.AwardEngagementReward(ctx, userID, reward.TypeShare, post.ID)
		if err != nil {
			return content.Post{}, nil, err
		}
		text := "retweeted your post"
		if repost.Type == content.RepostQuote {
			text = "quoted your post"
		}
		s.notifs.NotifyBestEffort(ctx, notification.Notification{
			UserID:       post.AuthorID,
			Type:         notification.TypeLike,
			FromUserID:   userID,
			PostID:       post.ID,
			Content:      text,
			RewardAmount: amount,
		})
	}

	return post, quote, nil
}

func (s *Service) createQuotePost(ctx context.Context, userID string, original content.Post, body string) (content.Post, error) {
	qualityScore := scoring.QualityScore(body)

	quote := content.Post{
		ID:             uuid.NewString(),
		AuthorID:       userID,
		Content:        body,
		Hashtags:       normalizeTags(content.ParseHashtags(body)),
		Mentions:       content.ParseMentions(body),
		Likes:          []string{},
		Reposts:        []content.Repost{},
		Comments:       []content.Comment{},
		OriginalPostID: original.ID,
		RetweetComment: body,
		QualityScore:   qualityScore,
		CreatedAt:      time.Now().UTC(),
	}
	s.attachProvenance(ctx, &quote)

	quote, err := s.posts.CreatePost(ctx, quote)
	if err != nil {
		return content.Post{}, fmt.Errorf("create quote post: %w", err)
	}
	if err := s.recordHashtags(ctx, quote.Hashtags); err != nil {
		return content.Post{}, err
	}
	return quote, nil
}

// ToggleFollowHashtag flips the user's follow on the tag, keeping the
// per-tag follower set in sync.
func (s *Service) ToggleFollowHashtag(ctx context.Context, userID, tag string) (user.User, bool, error) {
	tag = content.NormalizeTag(tag)
	if tag == "" {
		return user.User{}, false, fmt.Errorf("hashtag required")
	}

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return user.User{}, false, err
	}

	followed, added := user.Toggle(u.FollowedHashtags, tag)
	u.FollowedHashtags = followed
	u, err = s.users.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, false, fmt.Errorf("update user: %w", err)
	}

	data, err := s.hashtags.GetHashtag(ctx, tag)
	if err != nil {
		data = content.HashtagData{Tag: tag}
	}
	if added {
		data.Followers, _ = user.Toggle(remove(data.Followers, userID), userID)
	} else {
		data.Followers = remove(data.Followers, userID)
	}
	if _, err := s.hashtags.SaveHashtag(ctx, data); err != nil {
		return user.User{}, false, fmt.Errorf("save hashtag: %w", err)
	}

	return u, added, nil
}

// Hashtags returns every known tag with its usage count and follower set.
func (s *Service) Hashtags(ctx context.Context) ([]content.HashtagData, error) {
	return s.hashtags.ListHashtags(ctx)
}

// TrendingHashtags returns the tags currently over the trending threshold.
func (s *Service) TrendingHashtags(ctx context.Context) ([]content.HashtagData, error) {
	tags, err := s.hashtags.ListHashtags(ctx)
	if err != nil {
		return nil, err
	}
	trending := make([]content.HashtagData, 0)
	for _, tag := range tags {
		if tag.Trending {
			trending = append(trending, tag)
		}
	}
	return trending, nil
}

// Feed returns posts in creation order, oldest first.
func (s *Service) Feed(ctx context.Context) ([]content.Post, error) {
	return s.posts.ListPosts(ctx)
}

// GetPost returns one post by id.
func (s *Service) GetPost(ctx context.Context, id string) (content.Post, error) {
	return s.posts.GetPost(ctx, id)
}

// recordHashtags bumps usage counters for the given tags and recomputes the
// trending flag across all known tags.
func (s *Service) recordHashtags(ctx context.Context, tags []string) error {
	for _, tag := range uniqueTags(tags) {
		data, err := s.hashtags.GetHashtag(ctx, tag)
		if err != nil {
			data = content.HashtagData{Tag: tag}
		}
		data.Count++
		if _, err := s.hashtags.SaveHashtag(ctx, data); err != nil {
			return fmt.Errorf("save hashtag %s: %w", tag, err)
		}
	}

	all, err := s.hashtags.ListHashtags(ctx)
	if err != nil {
		return fmt.Errorf("list hashtags: %w", err)
	}
	for _, data := range all {
		trending := data.Count > content.TrendingThreshold
		if trending == data.Trending {
			continue
		}
		data.Trending = trending
		if _, err := s.hashtags.SaveHashtag(ctx, data); err != nil {
			return fmt.Errorf("save hashtag %s: %w", data.Tag, err)
		}
	}
	return nil
}

// attachProvenance pins the content and signs it, best-effort. A post is
// verified only when both succeed.
func (s *Service) attachProvenance(ctx context.Context, p *content.Post) {
	if s.pins != nil {
		ref, err := s.pins.Store(ctx, contentstore.Content{Body: p.Content, Author: p.AuthorID, Timestamp: p.CreatedAt})
		if err != nil {
			s.log.WithError(err).WithField("post_id", p.ID).Warn("content pin failed")
		} else {
			p.ContentRef = ref
		}
	}
	if s.signer != nil {
		sig, err := s.signer.SignMessage(ctx, p.Content)
		if err != nil {
			s.log.WithError(err).WithField("post_id", p.ID).Warn("content signing failed")
		} else {
			p.Signature = sig
		}
	}
	p.Verified = p.ContentRef != "" && p.Signature != ""
}

// refreshAuthor recomputes the author's engagement score from their posts
// and persists the result.
func (s *Service) refreshAuthor(ctx context.Context, author user.User) error {
	authored, err := s.posts.ListPostsByAuthor(ctx, author.ID)
	if err != nil {
		return fmt.Errorf("list author posts: %w", err)
	}
	author = s.rewards.RecomputeEngagementScore(author, authored)
	if _, err := s.users.UpdateUser(ctx, author); err != nil {
		return fmt.Errorf("update author: %w", err)
	}
	return nil
}

func (s *Service) notifyMentions(ctx context.Context, p content.Post) {
	for _, username := range p.Mentions {
		mentioned, err := s.users.GetUserByUsername(ctx, username)
		if err != nil || mentioned.ID == p.AuthorID {
			continue
		}
		s.notifs.NotifyBestEffort(ctx, notification.Notification{
			UserID:     mentioned.ID,
			Type:       notification.TypeMention,
			FromUserID: p.AuthorID,
			PostID:     p.ID,
			Content:    "mentioned you in a post",
		})
	}
}

func (s *Service) notifyHashtagFollowers(ctx context.Context, p content.Post) {
	seen := map[string]bool{p.AuthorID: true}
	for _, tag := range p.Hashtags {
		data, err := s.hashtags.GetHashtag(ctx, tag)
		if err != nil {
			continue
		}
		for _, followerID := range data.Followers {
			if seen[followerID] {
				continue
			}
			seen[followerID] = true
			s.notifs.NotifyBestEffort(ctx, notification.Notification{
				UserID:     followerID,
				Type:       notification.TypeHashtag,
				FromUserID: p.AuthorID,
				PostID:     p.ID,
				Content:    "posted in #" + tag,
			})
		}
	}
}

func normalizeTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		result = append(result, content.NormalizeTag(tag))
	}
	return result
}

func uniqueTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		result = append(result, tag)
	}
	return result
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
