package repository

import (
	"context"
	"fmt"

	"linkgate/internal/models"

	"gorm.io/gorm"
)

type ClickRepository struct {
	db *gorm.DB
}

func NewClickRepository(db *gorm.DB) *ClickRepository {
	return &ClickRepository{db: db}
}

func (r *ClickRepository) Insert(ctx context.Context, click *models.ClickRecord) error {
	if err := r.db.WithContext(ctx).Create(click).Error; err != nil {
		return fmt.Errorf("failed to insert click record: %w", err)
	}
	return nil
}

func (r *ClickRepository) InsertBatch(ctx context.Context, clicks []models.ClickRecord) error {
	if len(clicks) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&clicks).Error; err != nil {
		return fmt.Errorf("failed to insert click batch: %w", err)
	}
	return nil
}

func (r *ClickRepository) AddVariantClicks(ctx context.Context, variantID uint, n int64) error {
	if n <= 0 {
		return nil
	}
	tx := r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ?", variantID).
		UpdateColumn("clicks", gorm.Expr("clicks + ?", n))
	if tx.Error != nil {
		return fmt.Errorf("failed to add %d clicks to variant %d: %w", n, variantID, tx.Error)
	}
	return nil
}
