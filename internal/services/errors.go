package services

import (
	"errors"
	"time"

	"linkgate/internal/models"
)

var (
	// ErrLinkNotFound when the short code does not exist.
	ErrLinkNotFound = errors.New("link not found")

	// ErrLinkInactive when the link has been disabled.
	ErrLinkInactive = errors.New("link is disabled")

	// ErrLinkExpired when the link is past its expiry timestamp.
	ErrLinkExpired = errors.New("link has expired")

	// ErrLimitReached when the click limit is spent. Distinct from
	// not-found so callers can show a different message.
	ErrLimitReached = errors.New("click limit reached")
)

// CheckServeable reports whether a link may redirect right now. The
// limit check here is against the snapshot counter only; the conditional
// increment at accounting time remains authoritative.
func CheckServeable(link *models.Link, now time.Time) error {
	if link == nil {
		return ErrLinkNotFound
	}
	if !link.IsActive {
		return ErrLinkInactive
	}
	if link.IsExpired(now) {
		return ErrLinkExpired
	}
	if link.LimitReached() {
		return ErrLimitReached
	}
	return nil
}
