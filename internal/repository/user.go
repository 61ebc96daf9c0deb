// Package repository provides data access layer for the account service.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
	"gorm.io/gorm"

	"github.com/sharebite/auth-service/internal/models"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when a write violates the username or email uniqueness constraint.
	ErrDuplicate = errors.New("duplicate user")
	// ErrUnavailable is returned when the store did not answer in time.
	ErrUnavailable = errors.New("user store unavailable")
)

// UserUpdate lists the columns a partial update may touch. Nil fields are left unchanged.
type UserUpdate struct {
	Username *string
	Email    *string
	Phone    *string
	About    *string
	Avatar   *string
}

// IsEmpty reports whether the update touches no column.
func (u UserUpdate) IsEmpty() bool {
	return u.Username == nil && u.Email == nil && u.Phone == nil && u.About == nil && u.Avatar == nil
}

func (u UserUpdate) columns() map[string]any {
	cols := make(map[string]any, 5)
	if u.Username != nil {
		cols["username"] = *u.Username
	}
	if u.Email != nil {
		cols["email"] = *u.Email
	}
	if u.Phone != nil {
		cols["phone"] = *u.Phone
	}
	if u.About != nil {
		cols["about"] = *u.About
	}
	if u.Avatar != nil {
		cols["avatar"] = *u.Avatar
	}
	return cols
}

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	// FindByEmailOrUsername returns the first user whose email equals email
	// or whose username equals username.
	FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id string, update UserUpdate) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, oops.Code("USER_FIND_FAILED").With("id", id).Wrap(translateError(err))
	}
	return &user, nil
}

func (r *userRepository) FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ? OR username = ?", email, username).
		Order("created_at").
		First(&user).Error
	if err != nil {
		return nil, oops.Code("USER_FIND_FAILED").
			With("email", email).
			With("username", username).
			Wrap(translateError(err))
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return oops.Code("USER_CREATE_FAILED").With("username", user.Username).Wrap(translateError(err))
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, id string, update UserUpdate) (*models.User, error) {
	if !update.IsEmpty() {
		result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(update.columns())
		if result.Error != nil {
			return nil, oops.Code("USER_UPDATE_FAILED").With("id", id).Wrap(translateError(result.Error))
		}
		if result.RowsAffected == 0 {
			return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
		}
	}
	return r.FindByID(ctx, id)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if result.Error != nil {
		return oops.Code("USER_UPDATE_FAILED").With("id", id).Wrap(translateError(result.Error))
	}
	if result.RowsAffected == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	if result.Error != nil {
		return oops.Code("USER_DELETE_FAILED").With("id", id).Wrap(translateError(result.Error))
	}
	if result.RowsAffected == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return nil
}

func (r *userRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return oops.Code("DB_PING_FAILED").Wrap(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return oops.Code("DB_PING_FAILED").Wrap(translateError(err))
	}
	return nil
}

// translateError maps driver errors onto the repository sentinels.
func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return oops.With("constraint", pgErr.ConstraintName).Wrap(ErrDuplicate)
	}

	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return oops.With("cause", err.Error()).Wrap(ErrUnavailable)
	}

	return err
}
