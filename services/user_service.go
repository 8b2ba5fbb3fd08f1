package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/authbridge-io/authbridge/domain"
)

// ErrEmailTaken is returned when registration hits an existing email.
var ErrEmailTaken = errors.New("email already registered")

// UserService handles account registration.
type UserService struct {
	users  domain.UserRepository
	hasher PasswordHasher
}

// NewUserService creates a new UserService.
func NewUserService(users domain.UserRepository, hasher PasswordHasher) *UserService {
	return &UserService{users: users, hasher: hasher}
}

// RegisterInput is the profile and credential payload for a new account.
type RegisterInput struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	PhoneNumber  string
	ProfileImage string
}

// Register creates a new active account with a hashed password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	existing, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PhoneNumber:  in.PhoneNumber,
		ProfileImage: in.ProfileImage,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().Str("userID", user.ID).Msg("User registered")
	return user, nil
}
