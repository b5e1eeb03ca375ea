package pgstore

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		first_name VARCHAR(50) NOT NULL,
		last_name VARCHAR(50) NOT NULL,
		username VARCHAR(50) NOT NULL UNIQUE,
		email VARCHAR(100) NOT NULL UNIQUE,
		phone VARCHAR(20),
		country VARCHAR(50),
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(10) NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
		status VARCHAR(10) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'active', 'suspended')),
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		verification_code VARCHAR(10),
		verification_sent_at TIMESTAMPTZ,
		failed_logins INT NOT NULL DEFAULT 0,
		last_login_at TIMESTAMPTZ,
		last_login_ip VARCHAR(45),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		account_type VARCHAR(10) NOT NULL DEFAULT 'demo' CHECK (account_type IN ('demo', 'live')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS trading_accounts (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		account_number VARCHAR(50) NOT NULL UNIQUE,
		account_type VARCHAR(10) NOT NULL CHECK (account_type IN ('demo', 'live')),
		balance NUMERIC(15,2) NOT NULL DEFAULT 0,
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT trading_accounts_user_type_key UNIQUE (user_id, account_type)
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		account_id BIGINT NOT NULL REFERENCES trading_accounts(id) ON DELETE CASCADE,
		asset VARCHAR(50) NOT NULL,
		asset_name VARCHAR(100),
		quantity NUMERIC(15,8) NOT NULL,
		price NUMERIC(20,8) NOT NULL,
		total_amount NUMERIC(15,2) NOT NULL,
		trade_type VARCHAR(4) NOT NULL CHECK (trade_type IN ('buy', 'sell')),
		status VARCHAR(10) NOT NULL DEFAULT 'completed' CHECK (status IN ('pending', 'completed', 'failed')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS trades_user_created_idx ON trades (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS deposits (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		account_id BIGINT NOT NULL REFERENCES trading_accounts(id) ON DELETE CASCADE,
		amount NUMERIC(15,2) NOT NULL,
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		payment_method VARCHAR(50),
		reference_number VARCHAR(100) NOT NULL UNIQUE,
		status VARCHAR(10) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed', 'failed')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS withdrawals (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		account_id BIGINT NOT NULL REFERENCES trading_accounts(id) ON DELETE CASCADE,
		amount NUMERIC(15,2) NOT NULL,
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		payment_method VARCHAR(50),
		bank_details JSONB,
		reference_number VARCHAR(100) NOT NULL UNIQUE,
		status VARCHAR(10) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed', 'failed')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR(64) PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		account_type VARCHAR(10) NOT NULL DEFAULT 'demo',
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_expires_idx ON sessions (expires_at)`,
	`CREATE TABLE IF NOT EXISTS login_failures (
		email VARCHAR(100) PRIMARY KEY,
		attempts INT NOT NULL DEFAULT 0,
		last_attempt_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS support_tickets (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		subject VARCHAR(200) NOT NULL,
		category VARCHAR(50) NOT NULL DEFAULT 'general',
		priority VARCHAR(10) NOT NULL DEFAULT 'normal',
		status VARCHAR(10) NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'answered', 'closed')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS support_messages (
		id BIGSERIAL PRIMARY KEY,
		ticket_id BIGINT NOT NULL REFERENCES support_tickets(id) ON DELETE CASCADE,
		sender_type VARCHAR(10) NOT NULL CHECK (sender_type IN ('user', 'admin')),
		sender_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		body TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS kb_articles (
		id BIGSERIAL PRIMARY KEY,
		slug VARCHAR(120) NOT NULL UNIQUE,
		title VARCHAR(200) NOT NULL,
		body TEXT NOT NULL,
		category VARCHAR(50) NOT NULL DEFAULT 'general',
		published BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
