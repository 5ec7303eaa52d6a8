package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-identity-api/internal/models"
)

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTokenRepository()

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), db, &models.RefreshToken{UserID: "u1", Token: "opaque", ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRefreshTokenWinner(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTokenRepository()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE token = $1 AND revoked = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.ClaimRefreshToken(context.Background(), db, "opaque", time.Now())
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRefreshTokenAlreadyRevoked(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTokenRepository()

	mock.ExpectExec("UPDATE refresh_tokens SET revoked").
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.ClaimRefreshToken(context.Background(), db, "opaque", time.Now())
	require.NoError(t, err)
	assert.False(t, claimed, "a second claim of the same token must lose")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeResetTokenSingleUse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTokenRepository()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "used_at", "created_at"}).
		AddRow("pt1", "u1", "reset-token", now.Add(time.Hour), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE password_reset_tokens SET used_at = $2 WHERE token = $1 AND used_at IS NULL AND expires_at > $2 RETURNING")).
		WillReturnRows(rows)

	token, err := repo.ConsumePasswordResetToken(context.Background(), db, "reset-token", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", token.UserID)

	// Second presentation matches zero rows.
	mock.ExpectQuery("UPDATE password_reset_tokens SET used_at").WillReturnError(sql.ErrNoRows)

	_, err = repo.ConsumePasswordResetToken(context.Background(), db, "reset-token", now)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpired(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTokenRepository()

	mock.ExpectExec("DELETE FROM refresh_tokens").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM verification_tokens").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM password_reset_tokens").WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteExpired(context.Background(), db, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
