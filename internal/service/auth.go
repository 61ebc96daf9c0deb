// Package service implements account lifecycle and profile operations.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sharebite/auth-service/internal/models"
	"github.com/sharebite/auth-service/internal/repository"
)

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest accepts either a username or an email address.
type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

// ChangePasswordRequest is the payload for replacing the account password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type LoginResponse struct {
	Token string              `json:"token"`
	User  *models.SessionUser `json:"user"`
}

type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*models.PublicUser, error)
	Login(ctx context.Context, usernameOrEmail, password string) (*LoginResponse, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	DeleteAccount(ctx context.Context, userID string) error
}

type authService struct {
	users  repository.UserRepository
	hasher PasswordHasher
	tokens JWTService
	opts   options

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users repository.UserRepository, hasher PasswordHasher, tokens JWTService, opts ...Option) AuthService {
	return &authService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		opts:   buildOptions(opts),
	}
}

func (s *authService) hash(ctx context.Context, password string) (string, error) {
	type result struct {
		hash string
		err  error
	}
	r, err := runBounded(ctx, func() result {
		h, err := s.hasher.Hash(password)
		return result{h, err}
	})
	if err != nil {
		return "", err
	}
	if r.err != nil {
		return "", errors.Join(ErrInternal, r.err)
	}
	return r.hash, nil
}

func (s *authService) verify(ctx context.Context, password, hash string) (bool, error) {
	return runBounded(ctx, func() bool {
		return s.hasher.Verify(password, hash)
	})
}

// dummy returns a hash compared against when no account matches a login,
// so unknown users cost as much as wrong passwords.
func (s *authService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.opts.logger.Warn("failed to prepare dummy password hash", "error", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *authService) Register(ctx context.Context, req RegisterRequest) (*models.PublicUser, error) {
	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)

	v := &ValidationError{}
	checkUsername(v, username)
	checkEmail(v, email)
	checkPassword(v, "password", req.Password, MinPasswordLength)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	_, err := s.users.FindByEmailOrUsername(ctx, email, username)
	switch {
	case err == nil:
		return nil, ErrConflict
	case !errors.Is(err, repository.ErrNotFound):
		return nil, storeError(err)
	}

	hash, err := s.hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	// The unique indexes decide races the lookup above cannot see.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeError(err)
	}

	s.opts.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user.Public(), nil
}

func (s *authService) Login(ctx context.Context, usernameOrEmail, password string) (*LoginResponse, error) {
	identifier := strings.TrimSpace(usernameOrEmail)
	if identifier == "" || password == "" {
		v := &ValidationError{}
		if identifier == "" {
			v.Add("usernameOrEmail", "usernameOrEmail is required")
		}
		if password == "" {
			v.Add("password", "password is required")
		}
		return nil, v
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	user, err := s.users.FindByEmailOrUsername(ctx, normalizeEmail(identifier), identifier)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, storeError(err)
		}
		if _, err := s.verify(ctx, password, s.dummy()); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	ok, err := s.verify(ctx, password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.opts.logger.InfoContext(ctx, "login rejected", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return nil, errors.Join(ErrInternal, err)
	}

	return &LoginResponse{Token: token, User: user.Session()}, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	v := &ValidationError{}
	if currentPassword == "" {
		v.Add("currentPassword", "currentPassword is required")
	}
	// Only presence and the hashing limit are enforced for the new password.
	checkPassword(v, "newPassword", newPassword, 1)
	if err := v.OrNil(); err != nil {
		return err
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return storeError(err)
	}

	ok, err := s.verify(ctx, currentPassword, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return invalidField("currentPassword", "current password incorrect")
	}

	hash, err := s.hash(ctx, newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return storeError(err)
	}

	s.revoke(ctx, userID)
	s.opts.logger.InfoContext(ctx, "password changed", "user_id", userID)
	return nil
}

func (s *authService) DeleteAccount(ctx context.Context, userID string) error {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return storeError(err)
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return storeError(err)
	}

	if user.Avatar != "" && s.opts.avatars != nil {
		removeAvatar(ctx, s.opts, user.Avatar)
	}

	s.revoke(ctx, userID)
	s.opts.logger.InfoContext(ctx, "account deleted", "user_id", userID)
	return nil
}

// removeAvatar deletes a stored asset whose record no longer points at it.
// Failures are logged only; the caller's deadline does not apply.
func removeAvatar(ctx context.Context, o options, ref string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultOperationTimeout)
	defer cancel()

	if err := o.avatars.Delete(ctx, ref); err != nil {
		o.logger.WarnContext(ctx, "failed to remove avatar asset", "avatar", ref, "error", err)
	}
}

func (s *authService) revoke(ctx context.Context, userID string) {
	if s.opts.revocations == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultOperationTimeout)
	defer cancel()

	if err := s.opts.revocations.Revoke(ctx, userID, time.Now()); err != nil {
		s.opts.logger.ErrorContext(ctx, "failed to revoke tokens", "user_id", userID, "error", err)
	}
}
