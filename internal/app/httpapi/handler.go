// Package httpapi exposes the application facade as a REST API.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	app "github.com/OpinNetwork/engage_layer/internal/app"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/user"
	"github.com/OpinNetwork/engage_layer/internal/app/metrics"
	messagesvc "github.com/OpinNetwork/engage_layer/internal/app/services/messages"
	rewardsvc "github.com/OpinNetwork/engage_layer/internal/app/services/rewards"
	usersvc "github.com/OpinNetwork/engage_layer/internal/app/services/users"
	"github.com/OpinNetwork/engage_layer/internal/app/storage"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the core REST API, instrumented with
// Prometheus metrics and a global rate limit.
func NewHandler(application *app.Application, limit rate.Limit, burst int) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.health)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/users", h.users)
	mux.HandleFunc("/users/", h.userResources)
	mux.HandleFunc("/posts", h.posts)
	mux.HandleFunc("/posts/", h.postResources)
	mux.HandleFunc("/messages", h.messages)
	mux.HandleFunc("/notifications/", h.notificationResources)
	mux.HandleFunc("/hashtags", h.hashtags)
	mux.HandleFunc("/hashtags/", h.hashtags)
	mux.HandleFunc("/pool", h.pool)
	mux.HandleFunc("/pool/distribute", h.poolDistribute)

	var wrapped http.Handler = mux
	if limit > 0 {
		wrapped = rateLimit(wrapped, rate.NewLimiter(limit, burst))
	}
	return metrics.InstrumentHandler(wrapped)
}

func rateLimit(next http.Handler, limiter *rate.Limiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- users ------------------------------------------------------------------

func (h *handler) users(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Username      string `json:"username"`
			DisplayName   string `json:"display_name"`
			Bio           string `json:"bio"`
			Avatar        string `json:"avatar"`
			PublicKey     string `json:"public_key"`
			WalletAddress string `json:"wallet_address"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		created, err := h.app.CreateUser(r.Context(), user.User{
			Username:      payload.Username,
			DisplayName:   payload.DisplayName,
			Bio:           payload.Bio,
			Avatar:        payload.Avatar,
			PublicKey:     payload.PublicKey,
			WalletAddress: payload.WalletAddress,
		})
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		users, err := h.app.Users.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, users)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) userResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/users"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	userID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			u, err := h.app.Users.Get(r.Context(), userID)
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, u)
		case http.MethodPut:
			var payload user.User
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			payload.ID = userID
			updated, err := h.app.UpdateUser(r.Context(), payload)
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, updated)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch parts[1] {
	case "follow":
		h.userFollow(w, r, userID)
	case "hashtags":
		h.userHashtags(w, r, userID)
	case "rewards":
		h.userRewards(w, r, userID, parts[2:])
	case "withdrawals":
		h.userWithdrawals(w, r, userID)
	case "notifications":
		h.userNotifications(w, r, userID, parts[2:])
	case "conversations":
		h.userConversations(w, r, userID, parts[2:])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) userFollow(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		TargetID string `json:"target_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	follower, following, err := h.app.ToggleFollow(r.Context(), userID, payload.TargetID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": follower, "following": following})
}

func (h *handler) userHashtags(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Tag string `json:"tag"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, following, err := h.app.ToggleFollowHashtag(r.Context(), userID, payload.Tag)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "following": following})
}

func (h *handler) userRewards(w http.ResponseWriter, r *http.Request, userID string, rest []string) {
	if len(rest) == 0 || rest[0] == "" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rewards, err := h.app.Rewards.ListRewards(r.Context(), userID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, rewards)
		return
	}

	switch rest[0] {
	case "unclaimed":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rewards, err := h.app.Rewards.Unclaimed(r.Context(), userID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, rewards)
	case "claim":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		total, err := h.app.ClaimRewards(r.Context(), userID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"claimed": total})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) userWithdrawals(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Amount float64 `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	receipt, err := h.app.Withdraw(r.Context(), userID, payload.Amount)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *handler) userNotifications(w http.ResponseWriter, r *http.Request, userID string, rest []string) {
	if len(rest) == 0 || rest[0] == "" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		notifs, err := h.app.Notifications.List(r.Context(), userID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, notifs)
		return
	}

	if rest[0] == "read" && r.Method == http.MethodPost {
		count, err := h.app.MarkAllNotificationsRead(r.Context(), userID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"marked": count})
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *handler) userConversations(w http.ResponseWriter, r *http.Request, userID string, rest []string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if len(rest) == 0 || rest[0] == "" {
		convs, err := h.app.Messages.List(r.Context(), userID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, convs)
		return
	}

	conv, err := h.app.Messages.History(r.Context(), userID, rest[0])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// --- posts ------------------------------------------------------------------

func (h *handler) posts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			AuthorID string `json:"author_id"`
			Content  string `json:"content"`
			MediaURL string `json:"media_url"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		post, err := h.app.AddPost(r.Context(), payload.AuthorID, payload.Content, payload.MediaURL)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, post)

	case http.MethodGet:
		posts, err := h.app.Social.Feed(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, posts)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) postResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/posts"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	postID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		post, err := h.app.Social.GetPost(r.Context(), postID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, post)
		return
	}

	switch parts[1] {
	case "likes":
		h.postLikes(w, r, postID)
	case "comments":
		h.postComments(w, r, postID, parts[2:])
	case "reposts":
		h.postReposts(w, r, postID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) postLikes(w http.ResponseWriter, r *http.Request, postID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	post, liked, err := h.app.ToggleLike(r.Context(), payload.UserID, postID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": post, "liked": liked})
}

func (h *handler) postComments(w http.ResponseWriter, r *http.Request, postID string, rest []string) {
	if len(rest) == 0 || rest[0] == "" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			UserID   string `json:"user_id"`
			ParentID string `json:"parent_id"`
			Content  string `json:"content"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		post, comment, err := h.app.AddComment(r.Context(), payload.UserID, postID, payload.ParentID, payload.Content)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"post": post, "comment": comment})
		return
	}

	if len(rest) < 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	commentID := rest[0]
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch rest[1] {
	case "likes":
		post, err := h.app.ToggleCommentLike(r.Context(), payload.UserID, postID, commentID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, post)
	case "dislikes":
		post, err := h.app.ToggleCommentDislike(r.Context(), payload.UserID, postID, commentID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, post)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) postReposts(w http.ResponseWriter, r *http.Request, postID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		UserID  string `json:"user_id"`
		Comment string `json:"comment"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	post, quote, err := h.app.Repost(r.Context(), payload.UserID, postID, payload.Comment)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": post, "quote": quote})
}

// --- messages and notifications ----------------------------------------------

func (h *handler) messages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		SenderID   string `json:"sender_id"`
		ReceiverID string `json:"receiver_id"`
		Content    string `json:"content"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	conv, err := h.app.SendMessage(r.Context(), payload.SenderID, payload.ReceiverID, payload.Content)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *handler) notificationResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/notifications"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[1] != "read" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	n, err := h.app.MarkNotificationRead(r.Context(), parts[0])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// --- hashtags and pool --------------------------------------------------------

func (h *handler) hashtags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if strings.Trim(strings.TrimPrefix(r.URL.Path, "/hashtags"), "/") == "trending" {
		tags, err := h.app.Social.TrendingHashtags(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, tags)
		return
	}

	tags, err := h.app.Social.Hashtags(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *handler) pool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Distributor.Pool())
}

func (h *handler) poolDistribute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pool, err := h.app.DistributePool(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// --- helpers ------------------------------------------------------------------

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateID), errors.Is(err, usersvc.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, rewardsvc.ErrInvalidAmount),
		errors.Is(err, rewardsvc.ErrInsufficientBalance),
		errors.Is(err, rewardsvc.ErrMissingWallet),
		errors.Is(err, usersvc.ErrUsernameRequired),
		errors.Is(err, usersvc.ErrSelfFollow),
		errors.Is(err, messagesvc.ErrEmptyMessage),
		errors.Is(err, messagesvc.ErrSelfMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
