package service

import (
	"context"
	stderrors "errors"

	"github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/models"
	"github.com/wfunc/initiative-tracker/internal/repository"
	"github.com/wfunc/initiative-tracker/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// userService UserService implementation
type userService struct {
	db       *gorm.DB
	userRepo repository.UserRepository
	log      *zap.Logger
}

func NewUserService(db *gorm.DB, userRepo repository.UserRepository, log *zap.Logger) UserService {
	return &userService{
		db:       db,
		userRepo: userRepo,
		log:      log,
	}
}

func (s *userService) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, repository.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrNotFound, "User not found.")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *userService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	valid, err := utils.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil || !valid {
		return errors.New(errors.ErrAuthentication, "Current password is incorrect.")
	}
	if len(newPassword) < MinPasswordLength {
		return errors.New(errors.ErrInvalidParam, "Password must be at least 8 characters long.")
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "hash password")
	}

	err = s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", hash).Error
	if err != nil {
		s.log.Error("Failed to update password", zap.Error(err), zap.Uint("userID", userID))
		return errors.Wrap(err, errors.ErrDatabaseUpdate)
	}

	s.log.Info("Password changed", zap.Uint("userID", userID))
	return nil
}
