package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/metrics"
)

const minPasswordLength = 8

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidInput       = errors.New("invalid input")
)

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	ProfileInput
}

// LoginResult is returned on a successful sign-in.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// AuthService handles accounts, credentials and profiles.
type AuthService struct {
	db     *gorm.DB
	tokens *TokenManager
}

// NewAuthService creates a new AuthService instance
func NewAuthService(db *gorm.DB, tokens *TokenManager) *AuthService {
	return &AuthService{
		db:     db,
		tokens: tokens,
	}
}

// Register creates an applicant account.
func (as *AuthService) Register(ctx context.Context, in RegisterInput) (*User, error) {
	return as.createUser(ctx, in.Email, in.Password, RoleApplicant, in.ProfileInput)
}

// EnsureAdmin creates an admin account for email unless one already exists.
func (as *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	_, err := as.findByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	user, err := as.createUser(ctx, email, password, RoleAdmin, ProfileInput{})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "admin account created", "userID", user.ID, "email", user.Email)
	return nil
}

func (as *AuthService) createUser(ctx context.Context, email, password string, role Role, profile ProfileInput) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	if _, err := as.findByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{Email: email, PasswordHash: string(hash), Role: role}
	user.applyProfile(profile)
	if err := as.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create user", "email", email, "error", err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and issues an access token.
func (as *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := as.findByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidCredentials
		}
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := as.tokens.Issue(user)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.LoginAttemptsTotal.WithLabelValues("ok").Inc()
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// GetUser retrieves a user by ID.
func (as *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	result := as.db.WithContext(ctx).Where("id = ?", id).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		slog.ErrorContext(ctx, "failed to fetch user", "userID", id, "error", result.Error)
		return nil, fmt.Errorf("failed to fetch user: %w", result.Error)
	}
	return &user, nil
}

// UpdateProfile applies a partial profile edit.
func (as *AuthService) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*User, error) {
	user, err := as.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.applyProfile(in)
	if err := as.db.WithContext(ctx).Save(user).Error; err != nil {
		slog.ErrorContext(ctx, "failed to update profile", "userID", id, "error", err)
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// OwnerProfile returns the profile of a user shaped for owner information pre-fill.
func (as *AuthService) OwnerProfile(ctx context.Context, id uuid.UUID) (model.OwnerInformationPatch, error) {
	user, err := as.GetUser(ctx, id)
	if err != nil {
		return model.OwnerInformationPatch{}, err
	}
	return user.OwnerProfile(), nil
}

func (as *AuthService) findByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	result := as.db.WithContext(ctx).Where("email = ?", email).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		slog.ErrorContext(ctx, "failed to fetch user by email", "error", result.Error)
		return nil, fmt.Errorf("failed to fetch user: %w", result.Error)
	}
	return &user, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: %q is not a valid email address", ErrInvalidInput, raw)
	}
	return email, nil
}
