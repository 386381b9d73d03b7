package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
)

// PasswordResetRepository defines the interface for password reset token data access
type PasswordResetRepository interface {
	Upsert(ctx context.Context, token *domain.PasswordResetToken) error
	FindUsable(ctx context.Context, token string, now time.Time) (*domain.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id int64, usedAt time.Time) error
}

type passwordResetRepository struct {
	db *sql.DB
}

// NewPasswordResetRepository creates a new instance of PasswordResetRepository
func NewPasswordResetRepository(db *sql.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

// Upsert stores the token as the single live token of its user, replacing any previous one
func (r *passwordResetRepository) Upsert(ctx context.Context, token *domain.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token,
		    expires_at = EXCLUDED.expires_at,
		    used_at = NULL,
		    created_at = NOW()
		RETURNING id, created_at
	`

	err := conn(ctx, r.db).QueryRowContext(ctx, query, token.UserID, token.Token, token.ExpiresAt).
		Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to store password reset token: %w", err)
	}

	token.UsedAt = nil
	return nil
}

// FindUsable returns an unused, unexpired token and locks it for the surrounding transaction.
// Expired, used and unknown tokens all report ErrResetTokenNotFound.
func (r *passwordResetRepository) FindUsable(ctx context.Context, token string, now time.Time) (*domain.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, used_at, created_at
		FROM password_reset_tokens
		WHERE token = $1 AND used_at IS NULL AND expires_at > $2
		FOR UPDATE
	`

	resetToken := &domain.PasswordResetToken{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, token, now).Scan(
		&resetToken.ID,
		&resetToken.UserID,
		&resetToken.Token,
		&resetToken.ExpiresAt,
		&resetToken.UsedAt,
		&resetToken.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrResetTokenNotFound
		}
		return nil, fmt.Errorf("failed to find password reset token: %w", err)
	}

	return resetToken, nil
}

// MarkUsed consumes a token so it cannot be redeemed again
func (r *passwordResetRepository) MarkUsed(ctx context.Context, id int64, usedAt time.Time) error {
	query := `
		UPDATE password_reset_tokens
		SET used_at = $2
		WHERE id = $1 AND used_at IS NULL
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, usedAt)
	if err != nil {
		return fmt.Errorf("failed to mark password reset token used: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrResetTokenNotFound
	}

	return nil
}
