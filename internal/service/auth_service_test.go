package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillcrest-arts/lessons-api/internal/models"
	appErrors "github.com/hillcrest-arts/lessons-api/pkg/errors"
)

type mockAuthRepo struct {
	users         map[string]*models.User
	byLookup      map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	audits        []models.AuditLog
	lastLogin     map[string]time.Time
}

func (m *mockAuthRepo) FindByAccessCodeLookup(ctx context.Context, lookup string) (*models.User, error) {
	if u, ok := m.byLookup[lookup]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if m.lastLogin == nil {
		m.lastLogin = make(map[string]time.Time)
	}
	m.lastLogin[id] = ts
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, t := range m.refreshTokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, *log)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "lessons-api",
	}
}

func newAuthFixture(t *testing.T, code string, active bool) (*mockAuthRepo, *AuthService) {
	t.Helper()
	hash, lookup, err := HashAccessCode(code)
	require.NoError(t, err)

	user := &models.User{
		ID:               "u-1",
		Role:             models.RoleParent,
		FullName:         "Robin Waters",
		AccessCodeHash:   hash,
		AccessCodeLookup: lookup,
		ActorID:          "actor-robin",
		Active:           active,
	}
	repo := &mockAuthRepo{
		users:    map[string]*models.User{"u-1": user},
		byLookup: map[string]*models.User{lookup: user},
	}
	return repo, NewAuthService(repo, nil, nil, testAuthConfig())
}

func TestLoginWithAccessCode(t *testing.T) {
	repo, svc := newAuthFixture(t, "555-867-5309", true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{AccessCode: "5558675309"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "actor-robin", resp.User.ActorID)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionLogin, repo.audits[0].Action)
	assert.Equal(t, "actor-robin", repo.audits[0].ActorID)
}

func TestLoginNormalizesFormatting(t *testing.T) {
	_, svc := newAuthFixture(t, "5558675309", true)

	// Dashes and spaces in the submitted code are ignored.
	resp, err := svc.Login(context.Background(), models.LoginRequest{AccessCode: "555 867-5309"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestLoginWrongCode(t *testing.T) {
	_, svc := newAuthFixture(t, "5558675309", true)

	_, err := svc.Login(context.Background(), models.LoginRequest{AccessCode: "1112223333"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	_, svc := newAuthFixture(t, "5558675309", false)

	_, err := svc.Login(context.Background(), models.LoginRequest{AccessCode: "5558675309"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenCarriesActorIdentity(t *testing.T) {
	_, svc := newAuthFixture(t, "5558675309", true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{AccessCode: "5558675309"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleParent, claims.Role)
	assert.Equal(t, "actor-robin", claims.ActorID)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, svc := newAuthFixture(t, "5558675309", true)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
}

func TestRefreshTokenRotates(t *testing.T) {
	repo, svc := newAuthFixture(t, "5558675309", true)

	login, err := svc.Login(context.Background(), models.LoginRequest{AccessCode: "5558675309"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked and cannot be replayed.
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
}

func TestHashAccessCodeRejectsShortCodes(t *testing.T) {
	_, _, err := HashAccessCode("12345")
	require.Error(t, err)
}
