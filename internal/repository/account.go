package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"rentloop/internal/model"
)

// uniqueViolation is the Postgres error code for unique constraint breaches.
const uniqueViolation = "23505"

// accountRepository implements AccountRepository using sqlx
type accountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepository{db: db}
}

// Insert writes a new account. Concurrent signups with the same email or
// username race on the UNIQUE constraints; exactly one insert wins and the
// loser gets the matching conflict error.
func (r *accountRepository) Insert(ctx context.Context, a *model.Account) error {
	query := `
		INSERT INTO accounts (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query, a.ID, a.Username, a.Email, a.PasswordHash).Scan(&a.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			switch pqErr.Constraint {
			case "accounts_email_key":
				return model.ErrEmailTaken
			case "accounts_username_key":
				return model.ErrUsernameTaken
			}
			return model.ErrEmailTaken
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

// FindByEmail retrieves an account by email
func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM accounts
		WHERE email = $1
	`

	var a model.Account
	err := r.db.GetContext(ctx, &a, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}

	return &a, nil
}

// FindByEmailOrUsername retrieves the first account matching either field.
func (r *accountRepository) FindByEmailOrUsername(ctx context.Context, email, username string) (*model.Account, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM accounts
		WHERE email = $1 OR username = $2
		LIMIT 1
	`

	var a model.Account
	err := r.db.GetContext(ctx, &a, query, email, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by email or username: %w", err)
	}

	return &a, nil
}
