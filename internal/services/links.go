package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"linkgate/internal/cache"
	"linkgate/internal/models"
	"linkgate/pkg/utils"

	"gorm.io/gorm"
)

type GeoRuleInput struct {
	MatchType   models.GeoMatchType
	MatchValues string
	TargetURL   string
	Priority    int
}

type VariantInput struct {
	Name      string
	TargetURL string
	Weight    int
}

type ExperimentInput struct {
	Name     string
	StartAt  *time.Time
	EndAt    *time.Time
	Variants []VariantInput
}

type CreateLinkDTO struct {
	OwnerID        *uint
	DestinationURL string
	CustomCode     string
	RedirectStatus int
	ClickLimit     *int64
	ExpiryHours    *int
	GeoRules       []GeoRuleInput
	Experiment     *ExperimentInput
}

type UpdateLinkDTO struct {
	DestinationURL *string
	IsActive       *bool
	RedirectStatus *int
	ClickLimit     *int64
	ClearLimit     bool
	ResetClicks    bool
	ExpiresAt      *time.Time
}

// LinkService is the link-creation/administration collaborator. It never
// touches the click counter except for the explicit administrative reset,
// and it invalidates the directory cache on every edit.
type LinkService struct {
	db            *gorm.DB
	cache         cache.LinkCache
	codeGenerator func(int) string
}

func NewLinkService(db *gorm.DB, linkCache cache.LinkCache) *LinkService {
	return &LinkService{
		db:            db,
		cache:         linkCache,
		codeGenerator: utils.GenerateShortCode,
	}
}

func (s *LinkService) CreateLink(ctx context.Context, dto CreateLinkDTO) (*models.Link, error) {
	var shortCode string
	if dto.CustomCode != "" {
		var existing models.Link
		err := s.db.WithContext(ctx).Where("short_code = ?", dto.CustomCode).First(&existing).Error
		if err == nil {
			return nil, errors.New("custom code already taken")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		shortCode = dto.CustomCode
	} else {
		for {
			shortCode = s.codeGenerator(6)
			var existing models.Link
			err := s.db.WithContext(ctx).Where("short_code = ?", shortCode).First(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			if err != nil {
				return nil, err
			}
		}
	}

	status := dto.RedirectStatus
	if status != 301 && status != 302 && status != 308 {
		status = 302
	}

	var expiresAt *time.Time
	if dto.ExpiryHours != nil && *dto.ExpiryHours > 0 {
		t := time.Now().Add(time.Duration(*dto.ExpiryHours) * time.Hour)
		expiresAt = &t
	}

	newLink := models.Link{
		OwnerID:        dto.OwnerID,
		ShortCode:      shortCode,
		DestinationURL: dto.DestinationURL,
		RedirectStatus: status,
		ClickLimit:     dto.ClickLimit,
		ExpiresAt:      expiresAt,
		CreatedAt:      time.Now(),
		IsActive:       true,
	}

	for _, rule := range dto.GeoRules {
		newLink.GeoRules = append(newLink.GeoRules, models.GeoRule{
			MatchType:   rule.MatchType,
			MatchValues: rule.MatchValues,
			TargetURL:   rule.TargetURL,
			Priority:    rule.Priority,
			IsActive:    true,
		})
	}

	if dto.Experiment != nil {
		exp := models.Experiment{
			Name:     dto.Experiment.Name,
			IsActive: true,
			StartAt:  dto.Experiment.StartAt,
			EndAt:    dto.Experiment.EndAt,
		}
		for _, v := range dto.Experiment.Variants {
			exp.Variants = append(exp.Variants, models.Variant{
				Name:      v.Name,
				TargetURL: v.TargetURL,
				Weight:    v.Weight,
			})
		}
		newLink.Experiment = &exp
	}

	if err := s.db.WithContext(ctx).Create(&newLink).Error; err != nil {
		return nil, err
	}

	return &newLink, nil
}

func (s *LinkService) UpdateLink(ctx context.Context, shortCode string, dto UpdateLinkDTO) (*models.Link, error) {
	var link models.Link
	err := s.db.WithContext(ctx).Where("short_code = ?", shortCode).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if dto.DestinationURL != nil {
		updates["destination_url"] = *dto.DestinationURL
	}
	if dto.IsActive != nil {
		updates["is_active"] = *dto.IsActive
	}
	if dto.RedirectStatus != nil {
		status := *dto.RedirectStatus
		if status != 301 && status != 302 && status != 308 {
			return nil, fmt.Errorf("unsupported redirect status: %d", status)
		}
		updates["redirect_status"] = status
	}
	if dto.ClearLimit {
		updates["click_limit"] = nil
	} else if dto.ClickLimit != nil {
		updates["click_limit"] = *dto.ClickLimit
	}
	if dto.ResetClicks {
		updates["clicks"] = 0
	}
	if dto.ExpiresAt != nil {
		updates["expires_at"] = *dto.ExpiresAt
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&link).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	s.cache.Invalidate(ctx, shortCode)

	return s.reload(ctx, shortCode)
}

func (s *LinkService) reload(ctx context.Context, shortCode string) (*models.Link, error) {
	var link models.Link
	err := s.db.WithContext(ctx).
		Preload("GeoRules").
		Preload("Experiment").
		Preload("Experiment.Variants").
		Where("short_code = ?", shortCode).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}
