package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"linkgate/internal/models"
	"linkgate/internal/services"

	"github.com/gin-gonic/gin"
)

// Redirect is the orchestrator: rate check, directory lookup, terminal
// gates, resolution, accounting, response. Terminal outcomes (not found,
// inactive, expired, limit reached) never reach accounting, so counters
// only move for requests that actually redirect.
func (h *Handler) Redirect(c *gin.Context) {
	shortCode := c.Param("short_code")
	clientIP := c.ClientIP()
	ctx := c.Request.Context()

	// 1. Rate Check
	if h.rateLimiter != nil {
		allowed, remaining := h.rateLimiter.Allow(shortCode, clientIP)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			if h.cfg.RateLimitPolicy == "enforce" {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Please try again later."})
				return
			}
			h.logger.Warn("Rate limit exceeded, soft policy", "short_code", shortCode, "ip", clientIP)
		}
	}

	// 2. Directory Lookup (cache, then storage)
	link, cacheHit := h.linkCache.Lookup(ctx, shortCode)
	if !cacheHit {
		var err error
		link, err = h.links.FindByShortCode(ctx, shortCode)
		if err != nil {
			h.logger.Error("Link lookup failed", "short_code", shortCode, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Lookup failed"})
			return
		}
		if link != nil {
			h.linkCache.Fill(ctx, shortCode, link)
		}
	}
	if link == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return
	}

	// 3. Terminal Gates
	switch err := services.CheckServeable(link, time.Now()); {
	case err == nil:
	case errors.Is(err, services.ErrLinkInactive):
		c.JSON(http.StatusGone, gin.H{"error": "Link disabled"})
		return
	case errors.Is(err, services.ErrLinkExpired):
		c.JSON(http.StatusGone, gin.H{"error": "Link expired"})
		return
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "Click limit reached"})
		return
	}

	// 4. Geolocation (bounded; unavailable never fails the redirect)
	geoCtx, cancel := context.WithTimeout(ctx, h.cfg.GeoIPTimeout())
	loc, locOK := h.locator.Locate(geoCtx, clientIP)
	cancel()

	// 5. Resolution
	query := c.Request.URL.Query()
	dest := h.resolver.Resolve(link, loc, locOK, query)

	entry := models.PendingClick{
		LinkID:      link.ID,
		Timestamp:   time.Now(),
		IPAddress:   clientIP,
		UserAgent:   c.Request.UserAgent(),
		Referrer:    c.Request.Referer(),
		RawQuery:    c.Request.URL.RawQuery,
		Country:     loc.CountryCode,
		Continent:   loc.ContinentCode,
		Region:      loc.Region,
		UTMSource:   query.Get("utm_source"),
		UTMMedium:   query.Get("utm_medium"),
		UTMCampaign: query.Get("utm_campaign"),
		UTMTerm:     query.Get("utm_term"),
		UTMContent:  query.Get("utm_content"),
	}
	if dest.Variant != nil {
		variantID := dest.Variant.ID
		entry.VariantID = &variantID
	}

	// 6. Accounting
	if err := h.accountant.Account(ctx, link, entry); err != nil {
		if errors.Is(err, services.ErrLimitReached) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Click limit reached"})
			return
		}
		h.logger.Error("Accounting failed", "short_code", shortCode, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Accounting failed"})
		return
	}

	// 7. Redirect
	c.Redirect(link.RedirectStatus, dest.URL)
}
