// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"prok/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	DisplayNamesByEmails(ctx context.Context, emails []string) (map[string]string, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByEmail returns nil without an error when no account exists. The
// lookup is case-insensitive so login works with any email casing.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// DisplayNamesByEmails resolves the display name for each email: the profile
// name when set, otherwise the username. Emails without an account are
// absent from the result.
func (r *userRepository) DisplayNamesByEmails(ctx context.Context, emails []string) (map[string]string, error) {
	if len(emails) == 0 {
		return map[string]string{}, nil
	}

	var rows []struct {
		Email       string
		Username    string
		ProfileName string
	}
	err := r.db.WithContext(ctx).
		Table("users").
		Select("users.email AS email, users.username AS username, profiles.name AS profile_name").
		Joins("LEFT JOIN profiles ON profiles.user_email = users.email").
		Where("users.email IN ?", emails).
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	names := make(map[string]string, len(rows))
	for _, row := range rows {
		name := row.ProfileName
		if name == "" {
			name = row.Username
		}
		names[row.Email] = name
	}
	return names, nil
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL unique violation SQLSTATE 23505; SQLite reports "UNIQUE constraint failed"
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}
