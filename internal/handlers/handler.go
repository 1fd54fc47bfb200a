package handlers

import (
	"log/slog"

	"linkgate/internal/cache"
	"linkgate/internal/config"
	"linkgate/internal/services"
)

type Handler struct {
	cfg         config.Config
	logger      *slog.Logger
	linkCache   cache.LinkCache
	links       services.LinkStore
	linkService *services.LinkService
	locator     services.Locator
	resolver    *services.Resolver
	accountant  *services.Accountant
	rateLimiter *services.RateLimiter
}

func NewHandler(
	cfg config.Config,
	logger *slog.Logger,
	linkCache cache.LinkCache,
	links services.LinkStore,
	linkService *services.LinkService,
	locator services.Locator,
	resolver *services.Resolver,
	accountant *services.Accountant,
	rateLimiter *services.RateLimiter,
) *Handler {
	return &Handler{
		cfg:         cfg,
		logger:      logger,
		linkCache:   linkCache,
		links:       links,
		linkService: linkService,
		locator:     locator,
		resolver:    resolver,
		accountant:  accountant,
		rateLimiter: rateLimiter,
	}
}
