// Package account manages the saved shipping address of a user.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/storefront/pkg/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrAddressNotFound = errors.New("address not found")
	ErrInvalidAddress  = errors.New("address, city and state are required")
)

type AddressInput struct {
	Line        string `json:"address" binding:"required"`
	City        string `json:"city" binding:"required"`
	State       string `json:"state" binding:"required"`
	PostalCode  string `json:"postal_code"`
	Landmark    string `json:"landmark"`
	Description string `json:"description"`
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// SaveAddress creates the user's address or overwrites the existing one.
func (s *Service) SaveAddress(ctx context.Context, userID string, in AddressInput) (*models.Address, error) {
	in.Line = strings.TrimSpace(in.Line)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	if in.Line == "" || in.City == "" || in.State == "" {
		return nil, ErrInvalidAddress
	}

	var addr models.Address
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id").Where("id = ?", userID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		addr = models.Address{
			ID:          models.NewID(),
			UserID:      userID,
			Line:        in.Line,
			City:        in.City,
			State:       in.State,
			PostalCode:  strings.TrimSpace(in.PostalCode),
			Landmark:    strings.TrimSpace(in.Landmark),
			Description: strings.TrimSpace(in.Description),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"address", "city", "state", "postal_code", "landmark", "description", "updated_at"}),
		}).Create(&addr).Error
		if err != nil {
			return fmt.Errorf("failed to save address: %w", err)
		}
		return tx.Where("user_id = ?", userID).First(&addr).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Address saved", zap.String("user_id", userID))
	return &addr, nil
}

func (s *Service) Address(ctx context.Context, userID string) (*models.Address, error) {
	var addr models.Address
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&addr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load address: %w", err)
	}
	return &addr, nil
}
