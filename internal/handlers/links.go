package handlers

import (
	"errors"
	"net/http"
	"time"

	"linkgate/internal/models"
	"linkgate/internal/services"

	"github.com/gin-gonic/gin"
)

type GeoRuleRequest struct {
	MatchType   string `json:"match_type" binding:"required,oneof=country continent region"`
	MatchValues string `json:"match_values" binding:"required"`
	TargetURL   string `json:"target_url" binding:"required,url"`
	Priority    int    `json:"priority"`
}

type VariantRequest struct {
	Name      string `json:"name"`
	TargetURL string `json:"target_url" binding:"required,url"`
	Weight    int    `json:"weight" binding:"required,gt=0"`
}

type ExperimentRequest struct {
	Name     string           `json:"name"`
	StartAt  *time.Time       `json:"start_at,omitempty"`
	EndAt    *time.Time       `json:"end_at,omitempty"`
	Variants []VariantRequest `json:"variants" binding:"required,min=1,dive"`
}

type CreateLinkRequest struct {
	DestinationURL string             `json:"destination_url" binding:"required,url"`
	CustomCode     string             `json:"custom_code,omitempty"`
	RedirectStatus int                `json:"redirect_status,omitempty"`
	ClickLimit     *int64             `json:"click_limit,omitempty"`
	ExpiryHours    *int               `json:"expiry_hours,omitempty"`
	GeoRules       []GeoRuleRequest   `json:"geo_rules,omitempty" binding:"omitempty,dive"`
	Experiment     *ExperimentRequest `json:"experiment,omitempty"`
}

type UpdateLinkRequest struct {
	DestinationURL *string    `json:"destination_url,omitempty"`
	IsActive       *bool      `json:"is_active,omitempty"`
	RedirectStatus *int       `json:"redirect_status,omitempty"`
	ClickLimit     *int64     `json:"click_limit,omitempty"`
	ClearLimit     bool       `json:"clear_limit,omitempty"`
	ResetClicks    bool       `json:"reset_clicks,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// CreateLink handles the collaborator API request to register a link.
func (h *Handler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dto := services.CreateLinkDTO{
		DestinationURL: req.DestinationURL,
		CustomCode:     req.CustomCode,
		RedirectStatus: req.RedirectStatus,
		ClickLimit:     req.ClickLimit,
		ExpiryHours:    req.ExpiryHours,
	}
	for _, rule := range req.GeoRules {
		dto.GeoRules = append(dto.GeoRules, services.GeoRuleInput{
			MatchType:   models.GeoMatchType(rule.MatchType),
			MatchValues: rule.MatchValues,
			TargetURL:   rule.TargetURL,
			Priority:    rule.Priority,
		})
	}
	if req.Experiment != nil {
		exp := services.ExperimentInput{
			Name:    req.Experiment.Name,
			StartAt: req.Experiment.StartAt,
			EndAt:   req.Experiment.EndAt,
		}
		for _, v := range req.Experiment.Variants {
			exp.Variants = append(exp.Variants, services.VariantInput{
				Name:      v.Name,
				TargetURL: v.TargetURL,
				Weight:    v.Weight,
			})
		}
		dto.Experiment = &exp
	}

	newLink, err := h.linkService.CreateLink(c.Request.Context(), dto)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"short_code": newLink.ShortCode,
		"short_url":  c.Request.Host + "/" + newLink.ShortCode,
	})
}

// UpdateLink applies an administrative edit and invalidates the cached
// snapshot so the next redirect sees the change.
func (h *Handler) UpdateLink(c *gin.Context) {
	shortCode := c.Param("short_code")

	var req UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link, err := h.linkService.UpdateLink(c.Request.Context(), shortCode, services.UpdateLinkDTO{
		DestinationURL: req.DestinationURL,
		IsActive:       req.IsActive,
		RedirectStatus: req.RedirectStatus,
		ClickLimit:     req.ClickLimit,
		ClearLimit:     req.ClearLimit,
		ResetClicks:    req.ResetClicks,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, services.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, link)
}
