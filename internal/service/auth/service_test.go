package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servease/marketplace-api/internal/model"
	pkgauth "github.com/servease/marketplace-api/pkg/auth"
	apperrors "github.com/servease/marketplace-api/pkg/errors"
	"github.com/servease/marketplace-api/pkg/security"
)

type fakeUserRepo struct {
	users   map[uuid.UUID]*model.User
	byEmail map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:   make(map[uuid.UUID]*model.User),
		byEmail: make(map[string]*model.User),
	}
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	u.ID = uuid.New()
	r.users[u.ID] = u
	r.byEmail[u.Email] = u
	return nil
}

func (r *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (r *fakeUserRepo) GetActive(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := r.Get(ctx, id)
	if err != nil || !u.Active {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (r *fakeUserRepo) Update(_ context.Context, _ *model.User) error { return nil }

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.LastLoginAt = &at
	return nil
}

func (r *fakeUserRepo) AddProviderStatsTx(_ context.Context, _ *sqlx.Tx, _ uuid.UUID, _ int64, _ int) error {
	return nil
}

func newTestService() (*Service, *fakeUserRepo, pkgauth.JWTService) {
	nop := zerolog.Nop()
	repo := newFakeUserRepo()
	tokens := pkgauth.NewJWTService(pkgauth.Config{
		Secret:             "test-secret",
		RefreshSecret:      "test-refresh-secret",
		ExpiryHours:        1,
		RefreshExpiryHours: 24,
	})
	svc := NewService(repo, tokens, security.NewBcryptHasher(4), &nop)
	return svc, repo, tokens
}

func registerReq() *model.RegisterRequest {
	return &model.RegisterRequest{
		Name:     "Asha Rao",
		Email:    "asha@example.com",
		Phone:    "9876543210",
		Password: "hunter2hunter2",
		Role:     model.UserRoleProvider,
	}
}

func TestRegisterIssuesTokens(t *testing.T) {
	svc, _, tokens := newTestService()

	user, pair, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	assert.Equal(t, model.UserRoleProvider, user.Role)
	assert.True(t, user.Active)
	assert.NotEqual(t, "hunter2hunter2", user.PasswordHash)

	claims, err := tokens.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "provider", claims.Role)

	_, err = tokens.ValidateRefreshToken(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRegisterDefaultsToCustomer(t *testing.T) {
	svc, _, _ := newTestService()

	req := registerReq()
	req.Role = ""
	user, _, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.UserRoleCustomer, user.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()

	_, _, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	_, _, err = svc.Register(context.Background(), registerReq())
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestLogin(t *testing.T) {
	svc, repo, _ := newTestService()

	registered, _, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	user, pair, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "asha@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotNil(t, repo.users[user.ID].LastLoginAt)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestService()

	_, _, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), &model.LoginRequest{
		Email:    "asha@example.com",
		Password: "not-the-password",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _ := newTestService()

	_, _, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever1234",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestLoginDisabledAccount(t *testing.T) {
	svc, repo, _ := newTestService()

	user, _, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)
	repo.users[user.ID].Active = false

	_, _, err = svc.Login(context.Background(), &model.LoginRequest{
		Email:    "asha@example.com",
		Password: "hunter2hunter2",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestRefresh(t *testing.T) {
	svc, _, tokens := newTestService()

	user, pair, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	fresh, err := svc.Refresh(context.Background(), &model.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)

	claims, err := tokens.ValidateToken(fresh.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _, _ := newTestService()

	_, pair, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	// An access token is signed with a different secret.
	_, err = svc.Refresh(context.Background(), &model.RefreshRequest{RefreshToken: pair.AccessToken})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestRefreshDisabledAccount(t *testing.T) {
	svc, repo, _ := newTestService()

	user, pair, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)
	repo.users[user.ID].Active = false

	_, err = svc.Refresh(context.Background(), &model.RefreshRequest{RefreshToken: pair.RefreshToken})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}
