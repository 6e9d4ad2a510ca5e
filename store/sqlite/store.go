// Package sqlite provides a SQLite-backed [authgate.UserStore] suited to
// the single-binary proxy-helper deployment model.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrEthical07/authgate"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id       TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS credentials (
	credential_id TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	data          BLOB NOT NULL,
	sign_count    INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	last_used_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_credentials_user ON credentials(user_id);
`

// Store implements [authgate.UserStore] on a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite store at the provided path and applies
// the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	return NewWithDB(sqlDB)
}

// NewWithDB wraps an existing database handle and applies the schema.
// Useful for tests with ":memory:" databases.
func NewWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FindUser(ctx context.Context, username string) (authgate.UserRecord, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT user_id, username, display_name, password_hash, created_at
		 FROM users WHERE username = ?`, username))
}

func (s *Store) FindUserByID(ctx context.Context, userID string) (authgate.UserRecord, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT user_id, username, display_name, password_hash, created_at
		 FROM users WHERE user_id = ?`, userID))
}

func (s *Store) scanUser(row *sql.Row) (authgate.UserRecord, error) {
	var rec authgate.UserRecord
	var createdAt int64

	err := row.Scan(&rec.UserID, &rec.Username, &rec.DisplayName, &rec.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authgate.UserRecord{}, authgate.ErrUserNotFound
		}
		return authgate.UserRecord{}, fmt.Errorf("scan user: %w", err)
	}

	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return rec, nil
}

func (s *Store) CreateUser(ctx context.Context, input authgate.CreateUserInput) (authgate.UserRecord, error) {
	createdAt := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, username, display_name, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		input.UserID, input.Username, input.DisplayName, input.PasswordHash, createdAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return authgate.UserRecord{}, authgate.ErrUserExists
		}
		return authgate.UserRecord{}, fmt.Errorf("insert user: %w", err)
	}

	return authgate.UserRecord{
		UserID:       input.UserID,
		Username:     input.Username,
		DisplayName:  input.DisplayName,
		PasswordHash: input.PasswordHash,
		CreatedAt:    createdAt,
	}, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE user_id = ?`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return authgate.ErrUserNotFound
	}
	return nil
}

func (s *Store) ListCredentials(ctx context.Context, userID string) ([]authgate.CredentialRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT credential_id, user_id, data, sign_count, created_at, last_used_at
		 FROM credentials WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []authgate.CredentialRecord
	for rows.Next() {
		var rec authgate.CredentialRecord
		var createdAt, lastUsedAt int64
		if err := rows.Scan(&rec.CredentialID, &rec.UserID, &rec.Data, &rec.SignCount, &createdAt, &lastUsedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		rec.LastUsedAt = time.Unix(lastUsedAt, 0).UTC()
		out = append(out, rec)
	}

	return out, rows.Err()
}

func (s *Store) UpsertCredential(ctx context.Context, rec authgate.CredentialRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var owner string
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM credentials WHERE credential_id = ?`, rec.CredentialID).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("lookup credential owner: %w", err)
	case owner != rec.UserID:
		return authgate.ErrCredentialBound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO credentials (credential_id, user_id, data, sign_count, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(credential_id) DO UPDATE SET
			data = excluded.data,
			sign_count = excluded.sign_count,
			last_used_at = excluded.last_used_at`,
		rec.CredentialID, rec.UserID, rec.Data, rec.SignCount,
		rec.CreatedAt.Unix(), rec.LastUsedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}

	return tx.Commit()
}

func (s *Store) UpdateSignatureCounter(ctx context.Context, credentialID string, newCount uint32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored uint32
	err = tx.QueryRowContext(ctx,
		`SELECT sign_count FROM credentials WHERE credential_id = ?`, credentialID).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authgate.ErrCredentialNotFound
		}
		return fmt.Errorf("lookup sign count: %w", err)
	}

	if newCount <= stored {
		return authgate.ErrStaleCounter
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE credentials SET sign_count = ?, last_used_at = ? WHERE credential_id = ?`,
		newCount, time.Now().UTC().Unix(), credentialID)
	if err != nil {
		return fmt.Errorf("update sign count: %w", err)
	}

	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
