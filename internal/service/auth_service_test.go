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

	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type mockAuthRepo struct {
	users             map[string]*models.User
	findByIDCalls     int
	refreshTokens     map[string]*models.RefreshToken
	createRefreshErr  error
	updatePasswordErr error
	auditLogs         []*models.AuditLog
	lastLoginUpdated  bool
	revokedAll        bool
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{users: make(map[string]*models.User), refreshTokens: make(map[string]*models.RefreshToken)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.findByIDCalls++
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "new-user"
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockAuthRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockAuthRepo) SetPushToken(ctx context.Context, id string, token *string) error {
	if u, ok := m.users[id]; ok {
		u.PushToken = token
	}
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = true
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: 24 * time.Hour, ProfileTTL: time.Hour}
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "123", Email: "admin@school.edu", PasswordHash: hashed(t, "password"), Status: models.AccountActive, Role: models.RoleAdmin, InstitutionName: "Green Valley"})
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.edu", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "Green Valley", res.User.DisplayName)
	assert.Equal(t, "123", res.User.InstitutionID)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "123", Email: "admin@school.edu", PasswordHash: hashed(t, "password"), Status: models.AccountActive, Role: models.RoleAdmin})
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.edu", Password: "nope"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "s1", Email: "kid@school.edu", PasswordHash: hashed(t, "password"), Status: models.AccountInactive, Role: models.RoleStudent})
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "kid@school.edu", Password: "password"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceRegisterAdmin(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:           "Office@School.edu",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Role:            models.RoleAdmin,
		InstitutionName: "Green Valley",
	})
	require.NoError(t, err)
	assert.Equal(t, "office@school.edu", res.User.Email)
	assert.Equal(t, res.User.ID, res.User.InstitutionID)
	assert.Equal(t, models.AuditActionRegister, repo.auditLogs[0].Action)
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	svc := NewAuthService(newMockAuthRepo(), nil, validator.New(), zap.NewNop(), testAuthConfig())

	cases := map[string]models.RegisterRequest{
		"mismatched confirmation": {Email: "a@b.co", Password: "secret1", ConfirmPassword: "secret2", Role: models.RoleAdmin, InstitutionName: "X"},
		"short password":          {Email: "a@b.co", Password: "abc", ConfirmPassword: "abc", Role: models.RoleAdmin, InstitutionName: "X"},
		"admin without name":      {Email: "a@b.co", Password: "secret1", ConfirmPassword: "secret1", Role: models.RoleAdmin},
		"student without school":  {Email: "a@b.co", Password: "secret1", ConfirmPassword: "secret1", Role: models.RoleStudent, StudentName: "Kid"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), req)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestAuthServiceRegisterStudentRequiresAdminInstitution(t *testing.T) {
	repo := newMockAuthRepo(
		&models.User{ID: "adm", Email: "office@school.edu", Role: models.RoleAdmin, InstitutionName: "Green Valley"},
		&models.User{ID: "other", Email: "kid@school.edu", Role: models.RoleStudent},
	)
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())
	base := models.RegisterRequest{Email: "new@school.edu", Password: "secret1", ConfirmPassword: "secret1", Role: models.RoleStudent, StudentName: "Asha"}

	req := base
	req.InstitutionID = "other"
	_, err := svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	req.InstitutionID = "adm"
	res, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "adm", res.User.InstitutionID)
	assert.Equal(t, "Asha", res.User.DisplayName)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "adm", Email: "office@school.edu", Role: models.RoleAdmin})
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "office@school.edu", Password: "secret1", ConfirmPassword: "secret1", Role: models.RoleAdmin, InstitutionName: "X"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestAuthServiceRefreshToken(t *testing.T) {
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: "hash", Status: models.AccountActive, Role: models.RoleAdmin}
	repo := newMockAuthRepo(user)
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(time.Hour)}

	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	repo := newMockAuthRepo()
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.Logout(context.Background(), "token", "u2", models.LoginRequest{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	require.NoError(t, svc.Logout(context.Background(), "token", "u1", models.LoginRequest{}))
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash := hashed(t, "oldpass")
	repo := newMockAuthRepo(&models.User{ID: "u1", PasswordHash: oldHash, Status: models.AccountActive})
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpass", NewPassword: "newpassword", ConfirmPassword: "different"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newpassword", ConfirmPassword: "newpassword"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpass", NewPassword: "newpassword", ConfirmPassword: "newpassword"})
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, repo.users["u1"].PasswordHash)
	assert.True(t, repo.revokedAll)
}

func TestAuthServiceMeUsesCachedProfile(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "kid@school.edu", Role: models.RoleStudent, StudentName: "Asha"})
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, zap.NewNop(), true)
	svc := NewAuthService(repo, cache, validator.New(), zap.NewNop(), testAuthConfig())

	first, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	second, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, first.StudentName, second.StudentName)
	assert.Equal(t, 1, repo.findByIDCalls)

	name := "Asha K"
	_, err = svc.UpdateProfile(context.Background(), "u1", models.UpdateProfileRequest{StudentName: &name})
	require.NoError(t, err)
	third, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Asha K", third.StudentName)
}

func TestAuthServiceRegisterPushToken(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Role: models.RoleStudent})
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	require.NoError(t, svc.RegisterPushToken(context.Background(), "u1", models.PushTokenRequest{Token: " ExponentPushToken[abc] "}))
	require.True(t, repo.users["u1"].HasPushToken())
	assert.Equal(t, "ExponentPushToken[abc]", *repo.users["u1"].PushToken)

	require.NoError(t, svc.RegisterPushToken(context.Background(), "u1", models.PushTokenRequest{}))
	assert.False(t, repo.users["u1"].HasPushToken())
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(newMockAuthRepo(), nil, validator.New(), zap.NewNop(), testAuthConfig())
	institution := "adm"
	user := &models.User{ID: "u1", Email: "kid@school.edu", Role: models.RoleStudent, InstitutionID: &institution, StudentName: "Asha"}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "adm", claims.InstitutionID)
	assert.Equal(t, "Asha", claims.DisplayName)

	_, err = svc.ValidateToken(token + "x")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
