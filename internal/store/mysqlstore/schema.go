package mysqlstore

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		first_name VARCHAR(50) NOT NULL,
		last_name VARCHAR(50) NOT NULL,
		username VARCHAR(50) NOT NULL UNIQUE,
		email VARCHAR(100) NOT NULL UNIQUE,
		phone VARCHAR(20),
		country VARCHAR(50),
		password_hash VARCHAR(255) NOT NULL,
		role ENUM('user', 'admin') NOT NULL DEFAULT 'user',
		status ENUM('pending', 'active', 'suspended') NOT NULL DEFAULT 'pending',
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		verification_code VARCHAR(10),
		verification_sent_at DATETIME(6),
		failed_logins INT NOT NULL DEFAULT 0,
		last_login_at DATETIME(6),
		last_login_ip VARCHAR(45),
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		account_type ENUM('demo', 'live') NOT NULL DEFAULT 'demo',
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS trading_accounts (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		account_number VARCHAR(50) NOT NULL UNIQUE,
		account_type ENUM('demo', 'live') NOT NULL,
		balance DECIMAL(15,2) NOT NULL DEFAULT 0,
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY trading_accounts_user_type_key (user_id, account_type),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS trades (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		account_id BIGINT NOT NULL,
		asset VARCHAR(50) NOT NULL,
		asset_name VARCHAR(100),
		quantity DECIMAL(15,8) NOT NULL,
		price DECIMAL(20,8) NOT NULL,
		total_amount DECIMAL(15,2) NOT NULL,
		trade_type ENUM('buy', 'sell') NOT NULL,
		status ENUM('pending', 'completed', 'failed') NOT NULL DEFAULT 'completed',
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		KEY trades_user_created_idx (user_id, created_at),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (account_id) REFERENCES trading_accounts(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS deposits (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		account_id BIGINT NOT NULL,
		amount DECIMAL(15,2) NOT NULL,
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		payment_method VARCHAR(50),
		reference_number VARCHAR(100) NOT NULL UNIQUE,
		status ENUM('pending', 'completed', 'failed') NOT NULL DEFAULT 'pending',
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (account_id) REFERENCES trading_accounts(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS withdrawals (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		account_id BIGINT NOT NULL,
		amount DECIMAL(15,2) NOT NULL,
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		payment_method VARCHAR(50),
		bank_details JSON,
		reference_number VARCHAR(100) NOT NULL UNIQUE,
		status ENUM('pending', 'completed', 'failed') NOT NULL DEFAULT 'pending',
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (account_id) REFERENCES trading_accounts(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR(64) PRIMARY KEY,
		user_id BIGINT NOT NULL,
		account_type ENUM('demo', 'live') NOT NULL DEFAULT 'demo',
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		expires_at DATETIME(6) NOT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		KEY sessions_expires_idx (expires_at),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS login_failures (
		email VARCHAR(100) PRIMARY KEY,
		attempts INT NOT NULL DEFAULT 0,
		last_attempt_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS support_tickets (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		subject VARCHAR(200) NOT NULL,
		category VARCHAR(50) NOT NULL DEFAULT 'general',
		priority VARCHAR(10) NOT NULL DEFAULT 'normal',
		status ENUM('open', 'answered', 'closed') NOT NULL DEFAULT 'open',
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS support_messages (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		ticket_id BIGINT NOT NULL,
		sender_type ENUM('user', 'admin') NOT NULL,
		sender_id BIGINT NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		FOREIGN KEY (ticket_id) REFERENCES support_tickets(id) ON DELETE CASCADE,
		FOREIGN KEY (sender_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS kb_articles (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		slug VARCHAR(120) NOT NULL UNIQUE,
		title VARCHAR(200) NOT NULL,
		body TEXT NOT NULL,
		category VARCHAR(50) NOT NULL DEFAULT 'general',
		published BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
