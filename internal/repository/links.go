package repository

import (
	"context"
	"errors"
	"fmt"

	"linkgate/internal/models"

	"gorm.io/gorm"
)

type LinkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// FindByShortCode loads a link with its geo rules and experiment variants.
// Returns (nil, nil) when no such short code exists.
func (r *LinkRepository) FindByShortCode(ctx context.Context, shortCode string) (*models.Link, error) {
	var link models.Link
	err := r.db.WithContext(ctx).
		Preload("GeoRules").
		Preload("Experiment").
		Preload("Experiment.Variants").
		Where("short_code = ?", shortCode).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load link %q: %w", shortCode, err)
	}
	return &link, nil
}

// IncrementIfUnderLimit bumps the durable counter with a single conditional
// UPDATE so two requests racing at "9 of 10" cannot both slip past the
// limit. Returns false when the limit is already spent.
func (r *LinkRepository) IncrementIfUnderLimit(ctx context.Context, linkID uint) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Link{}).
		Where("id = ? AND (click_limit IS NULL OR clicks < click_limit)", linkID).
		UpdateColumn("clicks", gorm.Expr("clicks + 1"))
	if tx.Error != nil {
		return false, fmt.Errorf("failed to increment clicks for link %d: %w", linkID, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

// AddClicks applies a net increment, used by the batched flush worker.
func (r *LinkRepository) AddClicks(ctx context.Context, linkID uint, n int64) error {
	if n <= 0 {
		return nil
	}
	tx := r.db.WithContext(ctx).
		Model(&models.Link{}).
		Where("id = ?", linkID).
		UpdateColumn("clicks", gorm.Expr("clicks + ?", n))
	if tx.Error != nil {
		return fmt.Errorf("failed to add %d clicks to link %d: %w", n, linkID, tx.Error)
	}
	return nil
}
