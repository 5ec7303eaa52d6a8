package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-identity-api/internal/models"
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
)

// fakeUserStore is an in-memory users table. A nil *sqlx.DB is fine here;
// the services never dereference the handle themselves.
type fakeUserStore struct {
	byID    map[string]*models.User
	byEmail map[string]*models.User
	failAll error
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	s := &fakeUserStore{byID: map[string]*models.User{}, byEmail: map[string]*models.User{}}
	for _, u := range users {
		s.byID[u.ID] = u
		s.byEmail[u.Email] = u
	}
	return s
}

func (s *fakeUserStore) FindByEmail(_ context.Context, _ *sqlx.DB, email string) (*models.User, error) {
	if s.failAll != nil {
		return nil, s.failAll
	}
	if u, ok := s.byEmail[email]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (s *fakeUserStore) FindByID(_ context.Context, _ *sqlx.DB, id string) (*models.User, error) {
	if s.failAll != nil {
		return nil, s.failAll
	}
	if u, ok := s.byID[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (s *fakeUserStore) Create(_ context.Context, _ *sqlx.DB, user *models.User) error {
	if s.failAll != nil {
		return s.failAll
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return appErrors.Clone(appErrors.ErrDuplicateEmail, "")
	}
	user.ID = fmt.Sprintf("u%d", len(s.byID)+1)
	clone := *user
	s.byID[user.ID] = &clone
	s.byEmail[user.Email] = &clone
	return nil
}

func (s *fakeUserStore) UpdateLastLogin(_ context.Context, _ *sqlx.DB, id string, ts time.Time) error {
	if u, ok := s.byID[id]; ok {
		u.LastLogin = &ts
		return nil
	}
	return sql.ErrNoRows
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, _ *sqlx.DB, id, hash string, _ time.Time) error {
	if u, ok := s.byID[id]; ok {
		u.PasswordHash = hash
		return nil
	}
	return sql.ErrNoRows
}

func (s *fakeUserStore) UpdateProfile(_ context.Context, _ *sqlx.DB, id, fullName string, _ time.Time) error {
	if u, ok := s.byID[id]; ok {
		u.FullName = fullName
		return nil
	}
	return sql.ErrNoRows
}

func (s *fakeUserStore) SetVerified(_ context.Context, _ *sqlx.DB, id string, _ time.Time) error {
	if u, ok := s.byID[id]; ok {
		u.Verified = true
		return nil
	}
	return sql.ErrNoRows
}

func (s *fakeUserStore) UpdateRole(_ context.Context, _ *sqlx.DB, id string, role models.Role, _ time.Time) error {
	if u, ok := s.byID[id]; ok {
		u.Role = role
		return nil
	}
	return sql.ErrNoRows
}

func (s *fakeUserStore) Deactivate(_ context.Context, _ *sqlx.DB, id string, _ time.Time) error {
	if u, ok := s.byID[id]; ok {
		u.Active = false
		return nil
	}
	return sql.ErrNoRows
}

func (s *fakeUserStore) List(_ context.Context, _ *sqlx.DB, _ models.UserFilter) ([]models.User, int, error) {
	users := make([]models.User, 0, len(s.byID))
	for _, u := range s.byID {
		users = append(users, *u)
	}
	return users, len(users), nil
}

// fakeTokenStore is an in-memory token store with the same rotation
// semantics as the SQL implementation.
type fakeTokenStore struct {
	refresh      map[string]*models.RefreshToken
	verification map[string]*models.OneTimeToken
	reset        map[string]*models.OneTimeToken
	revokeAllHit int
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{
		refresh:      map[string]*models.RefreshToken{},
		verification: map[string]*models.OneTimeToken{},
		reset:        map[string]*models.OneTimeToken{},
	}
}

func (s *fakeTokenStore) CreateRefreshToken(_ context.Context, _ *sqlx.DB, token *models.RefreshToken) error {
	clone := *token
	s.refresh[token.Token] = &clone
	return nil
}

func (s *fakeTokenStore) FindRefreshToken(_ context.Context, _ *sqlx.DB, token string) (*models.RefreshToken, error) {
	if t, ok := s.refresh[token]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (s *fakeTokenStore) ClaimRefreshToken(_ context.Context, _ *sqlx.DB, token string, revokedAt time.Time) (bool, error) {
	t, ok := s.refresh[token]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	t.RevokedAt = &revokedAt
	return true, nil
}

func (s *fakeTokenStore) RevokeUserRefreshTokens(_ context.Context, _ *sqlx.DB, userID string, revokedAt time.Time) error {
	s.revokeAllHit++
	for _, t := range s.refresh {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			t.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (s *fakeTokenStore) CreateVerificationToken(_ context.Context, _ *sqlx.DB, t *models.OneTimeToken) error {
	clone := *t
	s.verification[t.Token] = &clone
	return nil
}

func (s *fakeTokenStore) CreatePasswordResetToken(_ context.Context, _ *sqlx.DB, t *models.OneTimeToken) error {
	clone := *t
	s.reset[t.Token] = &clone
	return nil
}

func (s *fakeTokenStore) ConsumeVerificationToken(_ context.Context, _ *sqlx.DB, token string, usedAt time.Time) (*models.OneTimeToken, error) {
	return consumeFake(s.verification, token, usedAt)
}

func (s *fakeTokenStore) ConsumePasswordResetToken(_ context.Context, _ *sqlx.DB, token string, usedAt time.Time) (*models.OneTimeToken, error) {
	return consumeFake(s.reset, token, usedAt)
}

func consumeFake(m map[string]*models.OneTimeToken, token string, usedAt time.Time) (*models.OneTimeToken, error) {
	t, ok := m[token]
	if !ok || t.UsedAt != nil || !t.ExpiresAt.After(usedAt) {
		return nil, sql.ErrNoRows
	}
	t.UsedAt = &usedAt
	clone := *t
	return &clone, nil
}

func (s *fakeTokenStore) activeCount(userID string) int {
	n := 0
	for _, t := range s.refresh {
		if t.UserID == userID && !t.Revoked {
			n++
		}
	}
	return n
}
