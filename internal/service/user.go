package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sffxzzp/northbound-gather/internal/apperror"
	"github.com/sffxzzp/northbound-gather/internal/auth"
	"github.com/sffxzzp/northbound-gather/internal/model"
	"github.com/sffxzzp/northbound-gather/internal/repository"
)

const (
	MinPasswordLength    = 8
	MaxDisplayNameLength = 80
)

// UserService handles sign-in, registration, and profile edits for both the
// Google and password account paths.
type UserService struct {
	repo      repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(repo repository.UserRepository, tokens *auth.TokenService, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	return &UserService{
		repo:      repo,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult is a signed-in user plus the session token issued for them.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginGoogle upserts the account for a completed Google sign-in and issues
// a session token. First login creates the user; later logins refresh the
// profile fields Google reports.
func (s *UserService) LoginGoogle(ctx context.Context, gUser *auth.GoogleUser) (*AuthResult, error) {
	user := &model.User{
		GoogleID:    gUser.Sub,
		Email:       gUser.Email,
		DisplayName: gUser.Name,
		PhotoURL:    gUser.Picture,
	}
	if err := s.repo.UpsertGoogle(ctx, user); err != nil {
		return nil, fmt.Errorf("upserting google user: %w", err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed in", "user_id", user.ID, "method", "google")
	return &AuthResult{User: user, Token: token}, nil
}

// Register creates a password account and signs it in.
func (s *UserService) Register(ctx context.Context, email, password, displayName string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, apperror.ValidationFailed("displayName", "display name is required")
	}
	if len(displayName) > MaxDisplayNameLength {
		return nil, apperror.ValidationFailed("displayName",
			fmt.Sprintf("display name must be at most %d characters", MaxDisplayNameLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
	}
	if err := s.repo.CreateWithPassword(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies email/password credentials and issues a session token.
// Wrong email and wrong password produce the same forbidden error, so the
// response does not reveal which accounts exist.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Forbidden("invalid email or password")
	}
	if user.PasswordHash == "" {
		// Google-only account.
		return nil, apperror.Forbidden("invalid email or password")
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Forbidden("invalid email or password")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed in", "user_id", user.ID, "method", "password")
	return &AuthResult{User: user, Token: token}, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// UpdateProfile changes the caller's display name and photo URL. Attendee
// snapshots already embedded in events keep the identity they were taken
// with; only future joins pick up the new profile.
func (s *UserService) UpdateProfile(ctx context.Context, id, displayName, photoURL string) (*model.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, apperror.ValidationFailed("displayName", "display name is required")
	}
	if len(displayName) > MaxDisplayNameLength {
		return nil, apperror.ValidationFailed("displayName",
			fmt.Sprintf("display name must be at most %d characters", MaxDisplayNameLength))
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.DisplayName = displayName
	user.PhotoURL = photoURL

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", "user_id", id)
	return user, nil
}
