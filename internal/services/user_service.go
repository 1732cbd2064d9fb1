package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/schoolgate/schoolgate/internal/models"
	"github.com/schoolgate/schoolgate/pkg/crypto"
	apperrors "github.com/schoolgate/schoolgate/pkg/errors"
	"github.com/schoolgate/schoolgate/pkg/metrics"
)

const passwordResetTTL = 10 * time.Minute

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrEmailTaken indicates another user already registered the email address.
	ErrEmailTaken = apperrors.New("USER_EMAIL_TAKEN", "Email address is already registered", http.StatusConflict)
	// ErrResetTokenInvalid covers unknown, consumed and expired reset tokens.
	ErrResetTokenInvalid = apperrors.New("USER_RESET_TOKEN_INVALID", "Password reset token is invalid or has expired", http.StatusBadRequest)
)

// CreateUserInput describes the fields accepted when registering a user.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	Avatar   string
}

// UpdateUserInput enumerates mutable user attributes. Nil fields are left untouched.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Role     *string
	Avatar   *string
	IsActive *bool
}

// UserFilters captures listing filters.
type UserFilters struct {
	Role     string
	IsActive *bool
	Query    string
}

// ListUsersOptions controls pagination for user listing.
type ListUsersOptions struct {
	Page     int
	PageSize int
	Filters  UserFilters
}

// UserService manages staff accounts: registration, authentication, device
// registration and password lifecycle.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Create provisions a new user with a hashed password.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	role := strings.ToLower(strings.TrimSpace(input.Role))

	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}
	if !models.ValidRole(role) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown role %q", input.Role))
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hashed,
		Role:     role,
		Avatar:   strings.TrimSpace(input.Avatar),
		IsActive: true,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies credentials and records the login time. Inactive
// accounts fail the same way as wrong credentials to avoid account probing.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if !user.IsActive || !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("user service: record login: %w", err)
	}
	user.LastLoginAt = &now

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &user, nil
}

// Get loads a single user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// List returns a page of users matching the filters together with the total count.
func (s *UserService) List(ctx context.Context, opts ListUsersOptions) ([]models.User, int64, error) {
	ctx = ensureContext(ctx)
	page, pageSize := normalizePagination(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.User{})
	if role := strings.ToLower(strings.TrimSpace(opts.Filters.Role)); role != "" {
		query = query.Where("role = ?", role)
	}
	if opts.Filters.IsActive != nil {
		query = query.Where("is_active = ?", *opts.Filters.IsActive)
	}
	if q := strings.TrimSpace(opts.Filters.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count users: %w", err)
	}

	var users []models.User
	err := query.
		Order("name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("user service: list users: %w", err)
	}

	return users, total, nil
}

// Update applies partial changes to a user.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return nil, apperrors.NewBadRequest("email cannot be empty")
		}
		updates["email"] = email
	}
	if input.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*input.Role))
		if !models.ValidRole(role) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown role %q", *input.Role))
		}
		updates["role"] = role
	}
	if input.Avatar != nil {
		updates["avatar"] = strings.TrimSpace(*input.Avatar)
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("user service: update user: %w", err)
	}

	return s.Get(ctx, id)
}

// Deactivate soft-disables an account. Existing notifications and class
// assignments keep their references for history.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("user service: deactivate user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateDeviceToken stores the push registration for the user's current device.
func (s *UserService) UpdateDeviceToken(ctx context.Context, userID, token, platform string) error {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.NewBadRequest("device token is required")
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"device_token":         token,
			"device_platform":      strings.ToLower(strings.TrimSpace(platform)),
			"device_registered_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("user service: update device token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ClearDeviceToken removes the push registration, typically on logout.
func (s *UserService) ClearDeviceToken(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"device_token":         nil,
			"device_platform":      "",
			"device_registered_at": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("user service: clear device token: %w", err)
	}
	return nil
}

// UpdatePassword verifies the current password before storing a new hash.
func (s *UserService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(newPassword) == "" {
		return apperrors.NewBadRequest("new password is required")
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	if !crypto.VerifyPassword(user.Password, currentPassword) {
		return apperrors.ErrInvalidCredentials
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("user service: hash password: %w", err)
	}

	err = s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"password":               hashed,
		"password_reset_token":   "",
		"password_reset_expires": nil,
	}).Error
	if err != nil {
		return fmt.Errorf("user service: update password: %w", err)
	}
	return nil
}

// ForgotPassword issues a short-lived reset token for the account. Only the
// SHA-256 digest is persisted; the raw token is handed to the caller for
// out-of-band delivery. Unknown or inactive emails return ErrUserNotFound.
func (s *UserService) ForgotPassword(ctx context.Context, email string) (string, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ? AND is_active = ?", email, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("user service: load user: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("user service: generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)

	expires := time.Now().UTC().Add(passwordResetTTL)
	err := s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_reset_token":   hashResetToken(token),
		"password_reset_expires": expires,
	}).Error
	if err != nil {
		return "", fmt.Errorf("user service: store reset token: %w", err)
	}

	return token, nil
}

// ResetPassword consumes a reset token and stores the new password hash.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(token) == "" {
		return ErrResetTokenInvalid
	}
	if strings.TrimSpace(newPassword) == "" {
		return apperrors.NewBadRequest("new password is required")
	}

	digest := hashResetToken(token)

	var user models.User
	err := s.db.WithContext(ctx).
		First(&user, "password_reset_token = ? AND password_reset_expires > ?", digest, time.Now().UTC()).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("user service: load reset token: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(user.PasswordResetToken), []byte(digest)) != 1 {
		return ErrResetTokenInvalid
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("user service: hash password: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password":               hashed,
		"password_reset_token":   "",
		"password_reset_expires": nil,
	}).Error
	if err != nil {
		return fmt.Errorf("user service: reset password: %w", err)
	}
	return nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
