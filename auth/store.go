package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrUsernameTaken   = errors.New("username already taken")
)

// Account is a stored user record.
type Account struct {
	ID           string
	Name         string
	Username     string
	Email        string
	PasswordHash string
	Role         string
}

// Store persists accounts in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (and if necessary initializes) the account database at
// path. Use ":memory:" for an ephemeral store.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open account database: %w", err)
	}

	st := &Store{db: db}
	if err := st.init(); err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

func (st *Store) init() error {
	_, err := st.db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			name TEXT,
			username TEXT NOT NULL UNIQUE,
			email TEXT,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}
	return nil
}

// Create inserts a new account. Uniqueness is enforced by the database, so
// two concurrent signups for the same username cannot both succeed.
func (st *Store) Create(ctx context.Context, account *Account) error {
	_, err := st.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, username, email, password_hash, role)
		VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID, account.Name, account.Username, account.Email, account.PasswordHash, account.Role,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrUsernameTaken, account.Username)
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// GetByUsername looks up an account by username.
func (st *Store) GetByUsername(ctx context.Context, username string) (*Account, error) {
	row := st.db.QueryRowContext(ctx, `
		SELECT id, name, username, email, password_hash, role
		FROM accounts WHERE username = ?`, username)

	var account Account
	err := row.Scan(&account.ID, &account.Name, &account.Username, &account.Email, &account.PasswordHash, &account.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return &account, nil
}

// Close releases the underlying database handle.
func (st *Store) Close() error {
	return st.db.Close()
}
