package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/lms-identity-api/internal/models"
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
)

// TokenIssuer mints and validates HS256 access tokens. Validation is purely
// computational: signature plus expiry, no store access.
type TokenIssuer struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokenIssuer constructs an issuer. now may be nil, in which case the
// wall clock is used.
func NewTokenIssuer(secret, issuer string, accessTTL time.Duration, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TokenIssuer{
		secret:    []byte(secret),
		issuer:    issuer,
		accessTTL: accessTTL,
		now:       now,
	}
}

// AccessTTL returns the configured access-token lifetime.
func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// Issue signs an access token for the user. Claims carry the tenant binding
// and the full role assignment.
func (i *TokenIssuer) Issue(user *models.User) (string, time.Time, error) {
	issuedAt := i.now()
	expiresAt := issuedAt.Add(i.accessTTL)
	claims := &models.AccessClaims{
		UserID:           user.ID,
		TenantID:         user.TenantID,
		Email:            user.Email,
		FullName:         user.FullName,
		Role:             user.Role,
		Roles:            user.AllRoles(),
		ActiveRole:       user.Role,
		HasMultipleRoles: user.HasMultipleRoles(),
		Verified:         user.Verified,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate parses and verifies an access token, returning typed errors so
// the gateway can map expired, malformed and forged tokens distinctly.
func (i *TokenIssuer) Validate(raw string) (*models.AccessClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &models.AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, appErrors.Wrap(err, appErrors.ErrTokenExpired.Code, appErrors.ErrTokenExpired.Status, appErrors.ErrTokenExpired.Message)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, appErrors.Wrap(err, appErrors.ErrTokenMalformed.Code, appErrors.ErrTokenMalformed.Status, "invalid token signature")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrTokenMalformed.Code, appErrors.ErrTokenMalformed.Status, appErrors.ErrTokenMalformed.Message)
		}
	}

	claims, ok := token.Claims.(*models.AccessClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrTokenMalformed, "invalid token claims")
	}
	if claims.UserID == "" || claims.TenantID == "" || !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrTokenMalformed, "token claims incomplete")
	}

	return claims, nil
}

// NewOpaqueToken returns a cryptographically random URL-safe value used for
// refresh, verification and password-reset tokens.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
