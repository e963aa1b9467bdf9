// Package postgres implements the user and ledger stores on PostgreSQL.
// Document-shaped state (posts, conversations, the snapshot) stays in the
// snapshot store; the relational backend covers the balances and the
// append-only ledger where durability matters most.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/reward"
	"github.com/OpinNetwork/engage_layer/internal/app/domain/user"
	"github.com/OpinNetwork/engage_layer/internal/app/storage"
)

// Store implements storage.UserStore and storage.LedgerStore backed by
// PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db), nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type userRow struct {
	ID               string         `db:"id"`
	Username         string         `db:"username"`
	DisplayName      string         `db:"display_name"`
	Bio              string         `db:"bio"`
	Avatar           string         `db:"avatar"`
	PublicKey        string         `db:"public_key"`
	WalletAddress    string         `db:"wallet_address"`
	Verified         bool           `db:"verified"`
	Followers        pq.StringArray `db:"followers"`
	Following        pq.StringArray `db:"following"`
	FollowedHashtags pq.StringArray `db:"followed_hashtags"`
	TokenBalance     float64        `db:"token_balance"`
	TotalEarned      float64        `db:"total_earned"`
	EngagementScore  int            `db:"engagement_score"`
	LastRewardClaim  sql.NullTime   `db:"last_reward_claim"`
	TotalPosts       int            `db:"total_posts"`
	TotalLikes       int            `db:"total_likes"`
	TotalComments    int            `db:"total_comments"`
	TotalShares      int            `db:"total_shares"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r userRow) toDomain() user.User {
	u := user.User{
		ID:               r.ID,
		Username:         r.Username,
		DisplayName:      r.DisplayName,
		Bio:              r.Bio,
		Avatar:           r.Avatar,
		PublicKey:        r.PublicKey,
		WalletAddress:    r.WalletAddress,
		Verified:         r.Verified,
		Followers:        []string(r.Followers),
		Following:        []string(r.Following),
		FollowedHashtags: []string(r.FollowedHashtags),
		TokenBalance:     r.TokenBalance,
		TotalEarned:      r.TotalEarned,
		EngagementScore:  r.EngagementScore,
		TotalPosts:       r.TotalPosts,
		TotalLikes:       r.TotalLikes,
		TotalComments:    r.TotalComments,
		TotalShares:      r.TotalShares,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.LastRewardClaim.Valid {
		u.LastRewardClaim = r.LastRewardClaim.Time
	}
	return u
}

const userColumns = `id, username, display_name, bio, avatar, public_key, wallet_address,
	verified, followers, following, followed_hashtags, token_balance, total_earned,
	engagement_score, last_reward_claim, total_posts, total_likes, total_comments,
	total_shares, created_at, updated_at`

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`, u.ID, u.Username, u.DisplayName, u.Bio, u.Avatar, u.PublicKey, u.WalletAddress,
		u.Verified, pq.Array(u.Followers), pq.Array(u.Following), pq.Array(u.FollowedHashtags),
		u.TokenBalance, u.TotalEarned, u.EngagementScore, toNullTime(u.LastRewardClaim),
		u.TotalPosts, u.TotalLikes, u.TotalComments, u.TotalShares, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrDuplicateID)
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET username = $2, display_name = $3, bio = $4, avatar = $5, public_key = $6,
			wallet_address = $7, verified = $8, followers = $9, following = $10,
			followed_hashtags = $11, token_balance = $12, total_earned = $13,
			engagement_score = $14, last_reward_claim = $15, total_posts = $16,
			total_likes = $17, total_comments = $18, total_shares = $19, updated_at = $20
		WHERE id = $1
	`, u.ID, u.Username, u.DisplayName, u.Bio, u.Avatar, u.PublicKey,
		u.WalletAddress, u.Verified, pq.Array(u.Followers), pq.Array(u.Following),
		pq.Array(u.FollowedHashtags), u.TokenBalance, u.TotalEarned,
		u.EngagementScore, toNullTime(u.LastRewardClaim), u.TotalPosts,
		u.TotalLikes, u.TotalComments, u.TotalShares, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+userColumns+` FROM app_users WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
		}
		return user.User{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+userColumns+` FROM app_users WHERE lower(username) = lower($1)
	`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, fmt.Errorf("username %s: %w", username, storage.ErrNotFound)
		}
		return user.User{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+userColumns+` FROM app_users ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	result := make([]user.User, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

// --- LedgerStore ------------------------------------------------------------

type rewardRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	Type      string         `db:"type"`
	Amount    float64        `db:"amount"`
	PostID    sql.NullString `db:"post_id"`
	CommentID sql.NullString `db:"comment_id"`
	TxRef     sql.NullString `db:"tx_ref"`
	Claimed   bool           `db:"claimed"`
	CreatedAt time.Time      `db:"created_at"`
	Seq       int64          `db:"seq"`
}

func (r rewardRow) toDomain() reward.TokenReward {
	return reward.TokenReward{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      reward.Type(r.Type),
		Amount:    r.Amount,
		PostID:    r.PostID.String,
		CommentID: r.CommentID.String,
		TxRef:     r.TxRef.String,
		Claimed:   r.Claimed,
		CreatedAt: r.CreatedAt,
	}
}

const rewardColumns = `id, user_id, type, amount, post_id, comment_id, tx_ref, claimed, created_at, seq`

func (s *Store) AppendReward(ctx context.Context, entry reward.TokenReward) (reward.TokenReward, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_rewards (id, user_id, type, amount, post_id, comment_id, tx_ref, claimed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.UserID, string(entry.Type), entry.Amount,
		toNullString(entry.PostID), toNullString(entry.CommentID), toNullString(entry.TxRef),
		entry.Claimed, entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return reward.TokenReward{}, fmt.Errorf("reward %s: %w", entry.ID, storage.ErrDuplicateID)
		}
		return reward.TokenReward{}, err
	}
	return entry, nil
}

func (s *Store) ListRewards(ctx context.Context, userID string) ([]reward.TokenReward, error) {
	query := `SELECT ` + rewardColumns + ` FROM app_rewards ORDER BY seq`
	args := []any{}
	if userID != "" {
		query = `SELECT ` + rewardColumns + ` FROM app_rewards WHERE user_id = $1 ORDER BY seq`
		args = append(args, userID)
	}

	var rows []rewardRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]reward.TokenReward, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) ListUnclaimedRewards(ctx context.Context, userID string) ([]reward.TokenReward, error) {
	var rows []rewardRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+rewardColumns+` FROM app_rewards
		WHERE user_id = $1 AND NOT claimed
		ORDER BY seq
	`, userID)
	if err != nil {
		return nil, err
	}
	result := make([]reward.TokenReward, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

// ClaimRewards flips every unclaimed entry for the user inside one
// transaction and returns the released sum.
func (s *Store) ClaimRewards(ctx context.Context, userID string) (float64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the rows before summing so a concurrent append for the same user
	// either lands before the sum or stays unclaimed for the next claim.
	var total sql.NullFloat64
	err = tx.GetContext(ctx, &total, `
		WITH locked AS (
			SELECT amount FROM app_rewards
			WHERE user_id = $1 AND NOT claimed
			FOR UPDATE
		)
		SELECT COALESCE(SUM(amount), 0) FROM locked
	`, userID)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE app_rewards SET claimed = TRUE
		WHERE user_id = $1 AND NOT claimed
	`, userID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total.Float64, nil
}

// --- helpers ----------------------------------------------------------------

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
