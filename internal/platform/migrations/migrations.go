// Package migrations applies the relational schema. Statements are
// idempotent so Apply is safe to run on every process start.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		phone TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		is_expert BOOLEAN NOT NULL DEFAULT false,
		daily_request_limit INTEGER NOT NULL DEFAULT 0,
		expertise_areas TEXT[] NOT NULL DEFAULT '{}',
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS requests (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		urgency TEXT NOT NULL,
		status TEXT NOT NULL,
		best_response_id UUID,
		resolved BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS responses (
		id UUID PRIMARY KEY,
		request_id UUID NOT NULL REFERENCES requests(id),
		expert_id UUID NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		helpful_count INTEGER NOT NULL DEFAULT 0,
		is_helpful BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS response_reviews (
		id UUID PRIMARY KEY,
		response_id UUID NOT NULL REFERENCES responses(id),
		request_id UUID NOT NULL REFERENCES requests(id),
		user_id UUID NOT NULL REFERENCES users(id),
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS expert_stats (
		id UUID PRIMARY KEY,
		expert_id UUID NOT NULL UNIQUE REFERENCES users(id),
		total_responses INTEGER NOT NULL DEFAULT 0,
		total_reviews INTEGER NOT NULL DEFAULT 0,
		average_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		helpful_responses INTEGER NOT NULL DEFAULT 0,
		today_responses INTEGER NOT NULL DEFAULT 0,
		last_reset_date TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS otp_verifications (
		id UUID PRIMARY KEY,
		phone TEXT NOT NULL,
		code TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS private_messages (
		id UUID PRIMARY KEY,
		request_id UUID NOT NULL REFERENCES requests(id),
		sender_id UUID NOT NULL REFERENCES users(id),
		receiver_id UUID NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		type TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		entity_type TEXT NOT NULL DEFAULT '',
		entity_id TEXT NOT NULL DEFAULT '',
		action_user_id TEXT NOT NULL DEFAULT '',
		is_read BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_user ON requests (user_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_responses_request ON responses (request_id)`,
	`CREATE INDEX IF NOT EXISTS idx_responses_expert_created ON responses (expert_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_response ON response_reviews (response_id)`,
	`CREATE INDEX IF NOT EXISTS idx_otp_phone_created ON otp_verifications (phone, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_request ON private_messages (request_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, is_read)`,
}

// Count returns how many schema statements Apply executes.
func Count() int {
	return len(statements)
}

// Apply executes all schema statements in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
