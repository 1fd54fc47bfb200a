package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"linkgate/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clickChannel = "link_clicked"

// LinkClicked is the fact emitted after a visit is durably accounted.
// Notification and reporting collaborators subscribe to it; this core
// only publishes.
type LinkClicked struct {
	EventID   string    `json:"event_id"`
	LinkID    uint      `json:"link_id"`
	VariantID *uint     `json:"variant_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Country   string `json:"country,omitempty"`
	Continent string `json:"continent,omitempty"`
	Region    string `json:"region,omitempty"`

	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMTerm     string `json:"utm_term,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`
}

// ClickPublisher fans LinkClicked facts out over Redis pub/sub. It is
// fire-and-forget: a nil client or a publish error only costs the event.
type ClickPublisher struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewClickPublisher(rdb *redis.Client, logger *slog.Logger) *ClickPublisher {
	return &ClickPublisher{rdb: rdb, logger: logger}
}

func (p *ClickPublisher) PublishClick(ctx context.Context, rec *models.ClickRecord) {
	if p == nil || p.rdb == nil {
		return
	}

	event := LinkClicked{
		EventID:     uuid.NewString(),
		LinkID:      rec.LinkID,
		VariantID:   rec.VariantID,
		Timestamp:   rec.Timestamp,
		Country:     rec.Country,
		Continent:   rec.Continent,
		Region:      rec.Region,
		UTMSource:   rec.UTMSource,
		UTMMedium:   rec.UTMMedium,
		UTMCampaign: rec.UTMCampaign,
		UTMTerm:     rec.UTMTerm,
		UTMContent:  rec.UTMContent,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := p.rdb.Publish(ctx, clickChannel, data).Err(); err != nil {
		p.logger.Debug("Failed to publish click event", "error", err)
	}
}
