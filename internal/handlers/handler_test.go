package handlers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"linkgate/internal/cache"
	"linkgate/internal/config"
	"linkgate/internal/models"
	"linkgate/internal/repository"
	"linkgate/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type stubLocator struct {
	loc services.Location
	ok  bool
}

func (s stubLocator) Locate(_ context.Context, _ string) (services.Location, bool) {
	return s.loc, s.ok
}

func setupTestHandler(mode services.AccountingMode) (*Handler, *gorm.DB) {
	db, _ := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	db.AutoMigrate(&models.Link{}, &models.GeoRule{}, &models.Experiment{}, &models.Variant{}, &models.ClickRecord{})

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cfg := config.Config{
		GeoIPTimeoutMS:         100,
		RateLimitWindowSeconds: 60,
		RateLimitBudget:        1000,
		RateLimitPolicy:        "enforce",
		CacheTTLMinutes:        10,
		UTMKeys:                "utm_source,utm_medium,utm_campaign,utm_term,utm_content",
	}

	linkCache := cache.NewMemoryLinkCache(cfg.CacheTTL())
	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickRepository(db)
	queue := services.NewMemoryPendingQueue()
	publisher := services.NewClickPublisher(nil, logger)
	resolver := services.NewResolver(cfg.UTMKeyList())
	accountant := services.NewAccountant(mode, linkRepo, clickRepo, queue, publisher, logger,
		100, time.Second, 100)
	rateLimiter := services.NewRateLimiter(cfg.RateLimitWindow(), cfg.RateLimitBudget, logger)
	linkService := services.NewLinkService(db, linkCache)

	h := NewHandler(cfg, logger, linkCache, linkRepo, linkService, stubLocator{}, resolver, accountant, rateLimiter)
	return h, db
}

func setupTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return h.SetupRouter()
}
