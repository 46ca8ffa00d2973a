package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// UserService is the credential store: it owns account records and password hashes
type UserService struct {
	userRepo ports.UserRepository
	logger   *logger.Logger
	cost     int
	now      func() time.Time
}

// NewUserService creates a new user service
func NewUserService(userRepo ports.UserRepository, logger *logger.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger.WithComponent("users"),
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// FindByEmail looks a user up by case-insensitive email
func (s *UserService) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	return s.userRepo.GetByEmail(ctx, email)
}

// FindByID looks a user up by id
func (s *UserService) FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// Create hashes the password and stores a new account. The display name
// defaults to the local part of the email.
func (s *UserService) Create(ctx context.Context, email, password, name string) (*entities.User, error) {
	email = entities.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, entities.NewValidationError("email", "Please provide a valid email")
	}
	if len(password) < entities.MinPasswordLength {
		return nil, entities.NewValidationError("password", "Password must be at least %d characters long", entities.MinPasswordLength)
	}
	if len(password) > entities.MaxPasswordBytes {
		return nil, entities.NewValidationError("password", "Password cannot exceed %d bytes", entities.MaxPasswordBytes)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = entities.NameFromEmail(email)
	}

	now := s.now()
	user := &entities.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		Name:         name,
		Role:         entities.UserRoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, entities.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Infow("User created", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// VerifyPassword compares a candidate password with the stored hash
func (s *UserService) VerifyPassword(user *entities.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// UpdateProfile changes the display name and/or email of an account
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, req ports.UpdateProfileRequest) (*entities.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, entities.NewValidationError("name", "Name cannot be empty")
		}
		user.Name = name
	}
	if req.Email != nil {
		email := entities.NormalizeEmail(*req.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, entities.NewValidationError("email", "Please provide a valid email")
		}
		user.Email = email
	}
	user.UpdatedAt = s.now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.LogUserAction(user.ID.String(), "update_profile", nil)
	return user, nil
}
