package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-identity-api/internal/models"
)

// TokenRepository persists refresh tokens and the single-use verification
// and password-reset tokens of a tenant partition. Like UserRepository it
// is stateless and receives the per-tenant handle on every call.
type TokenRepository struct{}

// NewTokenRepository creates a new instance of TokenRepository.
func NewTokenRepository() *TokenRepository {
	return &TokenRepository{}
}

const refreshColumns = `id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent`

// CreateRefreshToken persists a refresh token entry.
func (r *TokenRepository) CreateRefreshToken(ctx context.Context, db *sqlx.DB, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	err := withRetry(ctx, func() error {
		_, execErr := db.NamedExecContext(ctx, query, token)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by its opaque value.
func (r *TokenRepository) FindRefreshToken(ctx context.Context, db *sqlx.DB, token string) (*models.RefreshToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM refresh_tokens WHERE token = $1 LIMIT 1`, refreshColumns)
	var rt models.RefreshToken
	err := withRetry(ctx, func() error {
		return db.GetContext(ctx, &rt, query, token)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// ClaimRefreshToken atomically revokes the token iff it has not been
// revoked yet, returning whether this caller won. The conditional update is
// the serialization point for rotation: of two concurrent refreshes with
// the same token at most one claims it, and the loser's zero-row result is
// the reuse signal.
func (r *TokenRepository) ClaimRefreshToken(ctx context.Context, db *sqlx.DB, token string, revokedAt time.Time) (bool, error) {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE token = $1 AND revoked = FALSE`
	var claimed bool
	err := withRetry(ctx, func() error {
		res, execErr := db.ExecContext(ctx, query, token, revokedAt)
		if execErr != nil {
			return execErr
		}
		n, execErr := res.RowsAffected()
		if execErr != nil {
			return execErr
		}
		claimed = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("claim refresh token: %w", err)
	}
	return claimed, nil
}

// RevokeUserRefreshTokens revokes all active refresh tokens for a user.
// Used on logout-all, password change, deactivation and reuse detection.
func (r *TokenRepository) RevokeUserRefreshTokens(ctx context.Context, db *sqlx.DB, userID string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	err := withRetry(ctx, func() error {
		_, execErr := db.ExecContext(ctx, query, userID, revokedAt)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// CreateVerificationToken stores a single-use email verification token.
func (r *TokenRepository) CreateVerificationToken(ctx context.Context, db *sqlx.DB, t *models.OneTimeToken) error {
	return r.createOneTime(ctx, db, "verification_tokens", t)
}

// CreatePasswordResetToken stores a single-use password reset token.
func (r *TokenRepository) CreatePasswordResetToken(ctx context.Context, db *sqlx.DB, t *models.OneTimeToken) error {
	return r.createOneTime(ctx, db, "password_reset_tokens", t)
}

func (r *TokenRepository) createOneTime(ctx context.Context, db *sqlx.DB, table string, t *models.OneTimeToken) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, token, expires_at, used_at, created_at) VALUES (:id, :user_id, :token, :expires_at, :used_at, :created_at)`, table)
	if _, err := db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}

// ConsumeVerificationToken marks a verification token used and returns it.
func (r *TokenRepository) ConsumeVerificationToken(ctx context.Context, db *sqlx.DB, token string, usedAt time.Time) (*models.OneTimeToken, error) {
	return r.consumeOneTime(ctx, db, "verification_tokens", token, usedAt)
}

// ConsumePasswordResetToken marks a reset token used and returns it.
func (r *TokenRepository) ConsumePasswordResetToken(ctx context.Context, db *sqlx.DB, token string, usedAt time.Time) (*models.OneTimeToken, error) {
	return r.consumeOneTime(ctx, db, "password_reset_tokens", token, usedAt)
}

// consumeOneTime sets used_at iff it is still null and the token has not
// expired, all in one statement, so a token can be consumed at most once
// even under concurrent presentation. sql.ErrNoRows means invalid, already
// used or expired; callers do not learn which.
func (r *TokenRepository) consumeOneTime(ctx context.Context, db *sqlx.DB, table, token string, usedAt time.Time) (*models.OneTimeToken, error) {
	query := fmt.Sprintf(`UPDATE %s SET used_at = $2 WHERE token = $1 AND used_at IS NULL AND expires_at > $2 RETURNING id, user_id, token, expires_at, used_at, created_at`, table)
	var t models.OneTimeToken
	err := withRetry(ctx, func() error {
		return db.GetContext(ctx, &t, query, token, usedAt)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("consume %s: %w", table, err)
	}
	return &t, nil
}

// DeleteExpired prunes token rows that can no longer be presented: expired
// or revoked refresh tokens and expired or used one-time tokens. Returns
// the number of rows removed across all three tables.
func (r *TokenRepository) DeleteExpired(ctx context.Context, db *sqlx.DB, cutoff time.Time) (int64, error) {
	var total int64

	queries := []string{
		`DELETE FROM refresh_tokens WHERE expires_at < $1 OR revoked = TRUE`,
		`DELETE FROM verification_tokens WHERE expires_at < $1 OR used_at IS NOT NULL`,
		`DELETE FROM password_reset_tokens WHERE expires_at < $1 OR used_at IS NOT NULL`,
	}
	for _, query := range queries {
		res, err := db.ExecContext(ctx, query, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune tokens: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}
