package postgres

import "context"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS app_users (
		id                TEXT PRIMARY KEY,
		username          TEXT NOT NULL,
		display_name      TEXT NOT NULL DEFAULT '',
		bio               TEXT NOT NULL DEFAULT '',
		avatar            TEXT NOT NULL DEFAULT '',
		public_key        TEXT NOT NULL DEFAULT '',
		wallet_address    TEXT NOT NULL DEFAULT '',
		verified          BOOLEAN NOT NULL DEFAULT FALSE,
		followers         TEXT[] NOT NULL DEFAULT '{}',
		following         TEXT[] NOT NULL DEFAULT '{}',
		followed_hashtags TEXT[] NOT NULL DEFAULT '{}',
		token_balance     DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_earned      DOUBLE PRECISION NOT NULL DEFAULT 0,
		engagement_score  INTEGER NOT NULL DEFAULT 0,
		last_reward_claim TIMESTAMPTZ,
		total_posts       INTEGER NOT NULL DEFAULT 0,
		total_likes       INTEGER NOT NULL DEFAULT 0,
		total_comments    INTEGER NOT NULL DEFAULT 0,
		total_shares      INTEGER NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS app_users_username_idx ON app_users (lower(username))`,
	`CREATE TABLE IF NOT EXISTS app_rewards (
		seq        BIGSERIAL,
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		type       TEXT NOT NULL,
		amount     DOUBLE PRECISION NOT NULL,
		post_id    TEXT,
		comment_id TEXT,
		tx_ref     TEXT,
		claimed    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS app_rewards_user_idx ON app_rewards (user_id, claimed)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
