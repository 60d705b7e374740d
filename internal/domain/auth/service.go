package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/id"
	"botiquin/internal/core/tx"
	"botiquin/pkg/logger"
)

const passwordMinLength = 8

// TokenResult is a successful login response.
type TokenResult struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        *User     `json:"user"`
}

// Service provides staff authentication.
type Service struct {
	userRepo   UserRepository
	txManager  tx.Manager
	jwtService *JWTService
}

// NewService creates a new auth service.
func NewService(userRepo UserRepository, txManager tx.Manager, jwtService *JWTService) *Service {
	return &Service{
		userRepo:   userRepo,
		txManager:  txManager,
		jwtService: jwtService,
	}
}

// Register creates a new staff account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if len(req.Password) < passwordMinLength {
		return nil, apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", passwordMinLength),
		).WithDetail("field", "password")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := NewUser(req.Username, string(passwordHash), req.Role)
	user.FullName = req.FullName
	if err := user.Validate(ctx); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByUsername(ctx, user.Username); err == nil {
		return nil, apperror.NewDuplicate("user", "username", user.Username)
	} else if !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("check username: %w", err)
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.userRepo.Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login authenticates a staff member and returns an access token.
func (s *Service) Login(ctx context.Context, creds Credentials) (*TokenResult, error) {
	user, err := s.userRepo.GetByUsername(ctx, creds.Username)
	if err != nil {
		// Same response as a bad password so usernames cannot be probed.
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.jwtService.GenerateAccessToken(user.ID.String(), user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	logger.Info(ctx, "user logged in", "user_id", user.ID, "username", user.Username)

	return &TokenResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

// ChangePassword replaces a user's password.
func (s *Service) ChangePassword(ctx context.Context, userID id.ID, current, replacement string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return apperror.NewUnauthorized("invalid credentials")
	}

	if len(replacement) < passwordMinLength {
		return apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", passwordMinLength),
		).WithDetail("field", "password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(replacement), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.Touch()

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.userRepo.Update(ctx, user)
	})
}

// GetByID retrieves a staff account.
func (s *Service) GetByID(ctx context.Context, userID id.ID) (*User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// List retrieves all active staff accounts.
func (s *Service) List(ctx context.Context) ([]*User, error) {
	return s.userRepo.List(ctx)
}

// Deactivate soft-deletes a staff account.
func (s *Service) Deactivate(ctx context.Context, userID id.ID) error {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.userRepo.SetDeletionMark(ctx, userID, true)
	})
}
