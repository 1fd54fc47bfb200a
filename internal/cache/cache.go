// Package cache holds the link directory cache: an advisory, TTL-bounded
// snapshot of links keyed by short code. Storage stays the source of truth;
// a stale snapshot is acceptable for resolution but never for click-limit
// enforcement.
package cache

import (
	"context"

	"linkgate/internal/models"
)

type LinkCache interface {
	Lookup(ctx context.Context, shortCode string) (*models.Link, bool)
	Fill(ctx context.Context, shortCode string, link *models.Link)
	Invalidate(ctx context.Context, shortCode string)
}
