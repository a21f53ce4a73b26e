package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gongzuo-server/internal/domain"
	"gongzuo-server/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	salt TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	session_token TEXT NULL,
	is_admin INTEGER NOT NULL DEFAULT 0
);
`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	user.CreatedAt = time.Now().UTC().Truncate(time.Second)

	var id int64
	err := r.db.QueryRowContext(ctx, `
INSERT INTO users (username, password_hash, salt, created_at, is_admin)
VALUES (?, ?, ?, ?, ?)
RETURNING id`,
		user.Username,
		user.PasswordHash,
		user.Salt,
		user.CreatedAt,
		user.IsAdmin,
	).Scan(&id)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return 0, fmt.Errorf("insert user: %w", repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, username, password_hash, salt, created_at, session_token, is_admin
FROM users
WHERE username = ?`,
		username,
	)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, username, password_hash, salt, created_at, session_token, is_admin
FROM users
WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, username, password_hash, salt, created_at, session_token, is_admin
FROM users
WHERE session_token = ?`,
		token,
	)
	return scanUser(row)
}

func (r *UserRepository) SetSessionToken(ctx context.Context, id int64, token string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET session_token = ?
WHERE id = ?`,
		token,
		id,
	)
	if err != nil {
		return fmt.Errorf("set session token: %w", err)
	}
	return requireRowMatched(res, "set session token")
}

func (r *UserRepository) ClearSessionToken(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET session_token = NULL
WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	return requireRowMatched(res, "clear session token")
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, username, password_hash, salt, created_at, session_token, is_admin
FROM users
ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}

	return users, rows.Err()
}

func requireRowMatched(res sql.Result, op string) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if aff == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	return nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user  domain.User
		token sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Salt,
		&user.CreatedAt,
		&token,
		&user.IsAdmin,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if token.Valid {
		user.SessionToken = &token.String
	}
	return &user, nil
}
