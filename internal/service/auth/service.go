package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/servease/marketplace-api/internal/model"
	"github.com/servease/marketplace-api/internal/repository"
	"github.com/servease/marketplace-api/pkg/auth"
	apperrors "github.com/servease/marketplace-api/pkg/errors"
	"github.com/servease/marketplace-api/pkg/security"
)

type Service struct {
	users  repository.UserRepository
	tokens auth.JWTService
	hasher security.PasswordHasher
	logger *zerolog.Logger
}

func NewService(users repository.UserRepository, tokens auth.JWTService, hasher security.PasswordHasher, logger *zerolog.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		logger: logger,
	}
}

// Register creates an account and returns the user with a fresh token pair.
// Duplicate emails surface as Conflict.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, *model.TokenPair, error) {
	if existing, err := s.users.GetByEmail(ctx, req.Email); err == nil && existing != nil {
		return nil, nil, apperrors.Conflict("email already registered", nil)
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, apperrors.Internal(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, nil, apperrors.BadRequest("invalid password", err)
	}

	role := req.Role
	if role == "" {
		role = model.UserRoleCustomer
	}

	user := &model.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, apperrors.Internal(err)
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, apperrors.Internal(err)
	}

	s.logger.Info().
		Str("user_id", user.ID.String()).
		Str("role", string(user.Role)).
		Msg("user registered")
	return user, pair, nil
}

// Login verifies credentials against the stored hash. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.User, *model.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, apperrors.Unauthorized("invalid credentials", nil)
		}
		return nil, nil, apperrors.Internal(err)
	}
	if !user.Active {
		return nil, nil, apperrors.Unauthorized("account disabled", nil)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, nil, apperrors.Unauthorized("invalid credentials", nil)
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, apperrors.Internal(err)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("last login update failed")
	}

	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new pair. The account is
// re-checked so a disabled user cannot keep rotating tokens.
func (s *Service) Refresh(ctx context.Context, req *model.RefreshRequest) (*model.TokenPair, error) {
	claims, err := s.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token", err)
	}

	user, err := s.users.GetActive(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Unauthorized("account disabled", nil)
		}
		return nil, apperrors.Internal(err)
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return pair, nil
}

func (s *Service) issueTokens(user *model.User) (*model.TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
