package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-identity-api/internal/models"
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
)

func issuerUser() *models.User {
	return &models.User{
		ID:       "u1",
		TenantID: "t1",
		Email:    "ada@acme.edu",
		FullName: "Ada Lovelace",
		Role:     models.RoleInstructor,
		Roles:    []string{"STUDENT"},
	}
}

func TestIssueValidateRoundTrip(t *testing.T) {
	i := NewTokenIssuer("secret", "lms-identity", 15*time.Minute, nil)

	raw, expiresAt, err := i.Issue(issuerUser())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)

	claims, err := i.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "t1", claims.TenantID)
	assert.Equal(t, models.RoleInstructor, claims.Role)
	assert.Equal(t, models.RoleInstructor, claims.ActiveRole)
	assert.True(t, claims.HasMultipleRoles)
	assert.Contains(t, claims.Roles, models.RoleStudent)
}

func TestValidateExpiredToken(t *testing.T) {
	past := func() time.Time { return time.Now().Add(-2 * time.Hour) }
	minting := NewTokenIssuer("secret", "lms-identity", time.Minute, past)
	raw, _, err := minting.Issue(issuerUser())
	require.NoError(t, err)

	validating := NewTokenIssuer("secret", "lms-identity", time.Minute, nil)
	_, err = validating.Validate(raw)
	assert.True(t, appErrors.Is(err, appErrors.ErrTokenExpired))
}

func TestValidateForgedSignature(t *testing.T) {
	minting := NewTokenIssuer("attacker-secret", "lms-identity", time.Minute, nil)
	raw, _, err := minting.Issue(issuerUser())
	require.NoError(t, err)

	validating := NewTokenIssuer("secret", "lms-identity", time.Minute, nil)
	_, err = validating.Validate(raw)
	assert.True(t, appErrors.Is(err, appErrors.ErrTokenMalformed))
}

func TestValidateGarbage(t *testing.T) {
	i := NewTokenIssuer("secret", "lms-identity", time.Minute, nil)

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := i.Validate(raw)
		assert.True(t, appErrors.Is(err, appErrors.ErrTokenMalformed), "input %q", raw)
	}
}

func TestValidateRejectsIncompleteClaims(t *testing.T) {
	i := NewTokenIssuer("secret", "lms-identity", time.Minute, nil)

	raw, _, err := i.Issue(&models.User{ID: "u1", TenantID: "", Role: models.RoleStudent})
	require.NoError(t, err)

	_, err = i.Validate(raw)
	assert.True(t, appErrors.Is(err, appErrors.ErrTokenMalformed))
}

func TestOpaqueTokensAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		token, err := NewOpaqueToken()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(token), 43, "32 random bytes base64url encoded")
		assert.False(t, seen[token])
		seen[token] = true
	}
}
