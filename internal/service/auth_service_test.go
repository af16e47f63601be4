package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/relief-api/internal/models"
	"github.com/noah-isme/relief-api/pkg/config"
	appErrors "github.com/noah-isme/relief-api/pkg/errors"
)

type mockUserStore struct {
	users     map[string]*models.User
	lastLogin []string
	audits    []*models.AuditLog
}

func (m *mockUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLogin = append(m.lastLogin, id)
	return nil
}

func (m *mockUserStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

func newAuthServiceForTest(t *testing.T, users *mockUserStore) *AuthService {
	t.Helper()
	cfg := config.JWTConfig{Secret: "test_secret", Expiration: time.Hour, Issuer: "relief-api"}
	return NewAuthService(users, cfg, validator.New(), zap.NewNop())
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceLogin(t *testing.T) {
	users := &mockUserStore{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "admin@school.test", PasswordHash: hashPassword(t, "secret123"), FullName: "Admin", Role: models.RoleAdmin, Active: true},
	}}
	svc := newAuthServiceForTest(t, users)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "secret123"})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, []string{"u1"}, users.lastLogin)
	require.Len(t, users.audits, 1)
	assert.Equal(t, models.AuditActionLogin, users.audits[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	users := &mockUserStore{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "admin@school.test", PasswordHash: hashPassword(t, "secret123"), Role: models.RoleAdmin, Active: true},
	}}
	svc := newAuthServiceForTest(t, users)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "wrong"})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := newAuthServiceForTest(t, &mockUserStore{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@school.test", Password: "secret123"})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	users := &mockUserStore{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "admin@school.test", PasswordHash: hashPassword(t, "secret123"), Role: models.RoleAdmin, Active: false},
	}}
	svc := newAuthServiceForTest(t, users)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "secret123"})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthServiceForTest(t, &mockUserStore{})

	_, err := svc.ValidateToken("not-a-token")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
