package store

import (
	"fmt"
	"strings"
)

var migrations = map[Dialect][]string{
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS admin_credentials (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			salt TEXT NOT NULL,
			login_attempts INTEGER NOT NULL DEFAULT 0,
			locked_until INTEGER,
			last_login_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token_hash TEXT UNIQUE NOT NULL,
			user_id INTEGER NOT NULL REFERENCES admin_credentials(id) ON DELETE CASCADE,
			expires_at INTEGER NOT NULL,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,

		// v2: record when the password was last rotated
		`ALTER TABLE admin_credentials ADD COLUMN password_changed_at INTEGER`,
	},

	DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS admin_credentials (
			id BIGINT PRIMARY KEY CHECK (id = 1),
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			salt TEXT NOT NULL,
			login_attempts INTEGER NOT NULL DEFAULT 0,
			locked_until BIGINT,
			last_login_at BIGINT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id BIGSERIAL PRIMARY KEY,
			token_hash TEXT UNIQUE NOT NULL,
			user_id BIGINT NOT NULL REFERENCES admin_credentials(id) ON DELETE CASCADE,
			expires_at BIGINT NOT NULL,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,

		// v2: record when the password was last rotated
		`ALTER TABLE admin_credentials ADD COLUMN IF NOT EXISTS password_changed_at BIGINT`,
	},

	DialectMySQL: {
		`CREATE TABLE IF NOT EXISTS admin_credentials (
			id BIGINT PRIMARY KEY CHECK (id = 1),
			username VARCHAR(64) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			salt VARCHAR(255) NOT NULL,
			login_attempts INT NOT NULL DEFAULT 0,
			locked_until BIGINT NULL,
			last_login_at BIGINT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		) ENGINE=InnoDB`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			token_hash CHAR(64) UNIQUE NOT NULL,
			user_id BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			ip_address VARCHAR(64) NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			INDEX idx_sessions_expires_at (expires_at),
			CONSTRAINT fk_sessions_user FOREIGN KEY (user_id)
				REFERENCES admin_credentials(id) ON DELETE CASCADE
		) ENGINE=InnoDB`,

		// v2: record when the password was last rotated
		`ALTER TABLE admin_credentials ADD COLUMN password_changed_at BIGINT NULL`,
	},
}

func (s *Store) migrate() error {
	steps, ok := migrations[s.dialect]
	if !ok {
		return fmt.Errorf("no migrations for dialect %q", s.dialect)
	}

	for _, m := range steps {
		if _, err := s.db.Exec(m); err != nil {
			// ALTER TABLE ADD COLUMN fails if the column already exists;
			// treat that as a no-op so migrations stay idempotent.
			lower := strings.ToLower(err.Error())
			if strings.Contains(lower, "duplicate column") || strings.Contains(lower, "already exists") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
