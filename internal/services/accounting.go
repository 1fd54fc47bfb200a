package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"linkgate/internal/models"

	"github.com/mssola/user_agent"
)

type AccountingMode string

const (
	// ModeImmediate writes the counter and the detail record on the
	// request path. Slowest, strongly consistent.
	ModeImmediate AccountingMode = "immediate"

	// ModeQueued responds first and hands the write to a background
	// worker over a buffered channel. A full buffer drops the visit.
	ModeQueued AccountingMode = "queued"

	// ModeBatched responds first, parks the visit on the pending queue
	// and bumps an in-process live counter; a periodic flush reconciles
	// the queue into records and durable counters.
	ModeBatched AccountingMode = "batched"
)

func ParseAccountingMode(s string) (AccountingMode, error) {
	switch AccountingMode(s) {
	case ModeImmediate, ModeQueued, ModeBatched:
		return AccountingMode(s), nil
	default:
		return "", fmt.Errorf("unknown accounting mode: %q", s)
	}
}

// LinkStore is the durable side of link lookups and counters.
type LinkStore interface {
	FindByShortCode(ctx context.Context, shortCode string) (*models.Link, error)
	IncrementIfUnderLimit(ctx context.Context, linkID uint) (bool, error)
	AddClicks(ctx context.Context, linkID uint, n int64) error
}

// ClickStore persists immutable click records.
type ClickStore interface {
	Insert(ctx context.Context, click *models.ClickRecord) error
	InsertBatch(ctx context.Context, clicks []models.ClickRecord) error
	AddVariantClicks(ctx context.Context, variantID uint, n int64) error
}

// Accountant runs the click accounting pipeline in one of three modes.
// Links with a click limit always take the immediate path so the limit
// check stays atomic, whatever the configured default is.
type Accountant struct {
	mode      AccountingMode
	links     LinkStore
	clicks    ClickStore
	queue     PendingQueue
	publisher *ClickPublisher
	logger    *slog.Logger

	clickChannel  chan models.PendingClick
	flushInterval time.Duration
	batchSize     int

	liveMu sync.Mutex
	live   map[uint]int64
}

func NewAccountant(
	mode AccountingMode,
	links LinkStore,
	clicks ClickStore,
	queue PendingQueue,
	publisher *ClickPublisher,
	logger *slog.Logger,
	bufferSize int,
	flushInterval time.Duration,
	batchSize int,
) *Accountant {
	return &Accountant{
		mode:          mode,
		links:         links,
		clicks:        clicks,
		queue:         queue,
		publisher:     publisher,
		logger:        logger,
		clickChannel:  make(chan models.PendingClick, bufferSize),
		flushInterval: flushInterval,
		batchSize:     batchSize,
		live:          make(map[uint]int64),
	}
}

// Account records one resolved visit. Returns ErrLimitReached when the
// conditional increment refuses; the caller must not redirect then.
func (a *Accountant) Account(ctx context.Context, link *models.Link, entry models.PendingClick) error {
	if link.ClickLimit != nil {
		return a.accountImmediate(ctx, link, entry, true)
	}

	switch a.mode {
	case ModeQueued:
		select {
		case a.clickChannel <- entry:
			// Sent
		default:
			a.logger.Warn("Click channel full, dropping click", "link_id", link.ID)
		}
		return nil
	case ModeBatched:
		if err := a.queue.Append(ctx, entry); err != nil {
			a.logger.Warn("Failed to enqueue pending click, dropping", "link_id", link.ID, "error", err)
			return nil
		}
		a.liveMu.Lock()
		a.live[link.ID]++
		a.liveMu.Unlock()
		return nil
	default:
		return a.accountImmediate(ctx, link, entry, false)
	}
}

func (a *Accountant) accountImmediate(ctx context.Context, link *models.Link, entry models.PendingClick, limited bool) error {
	ok, err := a.links.IncrementIfUnderLimit(ctx, link.ID)
	if err != nil {
		if limited {
			// An unaccounted limited click is a correctness violation:
			// fail closed rather than risk exceeding the limit.
			return fmt.Errorf("click accounting failed: %w", err)
		}
		a.logger.Error("Failed to increment click counter", "link_id", link.ID, "error", err)
		return nil
	}
	if !ok {
		return ErrLimitReached
	}

	rec := a.materialize(entry)
	if err := a.clicks.Insert(ctx, rec); err != nil {
		if limited {
			return fmt.Errorf("click accounting failed: %w", err)
		}
		a.logger.Error("Failed to record click", "link_id", link.ID, "error", err)
		return nil
	}

	if entry.VariantID != nil {
		if err := a.clicks.AddVariantClicks(ctx, *entry.VariantID, 1); err != nil {
			a.logger.Error("Failed to bump variant counter", "variant_id", *entry.VariantID, "error", err)
		}
	}

	a.publisher.PublishClick(ctx, rec)
	return nil
}

// Start runs the queued-mode worker until the context is cancelled.
func (a *Accountant) Start(ctx context.Context) {
	a.logger.Info("Click worker starting")
	for {
		select {
		case entry := <-a.clickChannel:
			a.record(entry)
		case <-ctx.Done():
			a.logger.Info("Click worker stopping")
			return
		}
	}
}

func (a *Accountant) record(entry models.PendingClick) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := a.links.IncrementIfUnderLimit(ctx, entry.LinkID); err != nil {
		a.logger.Error("Failed to increment click counter", "link_id", entry.LinkID, "error", err)
	}

	rec := a.materialize(entry)
	if err := a.clicks.Insert(ctx, rec); err != nil {
		a.logger.Error("Failed to record click", "link_id", entry.LinkID, "error", err)
		return
	}

	if entry.VariantID != nil {
		if err := a.clicks.AddVariantClicks(ctx, *entry.VariantID, 1); err != nil {
			a.logger.Error("Failed to bump variant counter", "variant_id", *entry.VariantID, "error", err)
		}
	}

	a.publisher.PublishClick(ctx, rec)
}

// StartFlusher runs the batched-mode flush loop on a fixed period. One
// final flush runs at shutdown to shorten the accepted-loss window.
func (a *Accountant) StartFlusher(ctx context.Context) {
	a.logger.Info("Flush worker starting", "interval", a.flushInterval)
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := a.Flush(ctx); err != nil {
				a.logger.Error("Flush failed", "error", err)
			}
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := a.Flush(flushCtx); err != nil {
				a.logger.Error("Final flush failed", "error", err)
			}
			cancel()
			a.logger.Info("Flush worker stopping")
			return
		}
	}
}

// Flush drains up to one batch from the pending queue, writes one record
// per entry and applies the net counter increment per link. Drained
// entries are never requeued: a failed write loses them (at-most-once).
func (a *Accountant) Flush(ctx context.Context) (int, error) {
	entries, err := a.queue.DrainBatch(ctx, a.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to drain pending queue: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	records := make([]models.ClickRecord, 0, len(entries))
	linkCounts := make(map[uint]int64)
	variantCounts := make(map[uint]int64)
	for _, entry := range entries {
		records = append(records, *a.materialize(entry))
		linkCounts[entry.LinkID]++
		if entry.VariantID != nil {
			variantCounts[*entry.VariantID]++
		}
	}
	defer a.subtractLive(linkCounts)

	if err := a.clicks.InsertBatch(ctx, records); err != nil {
		a.logger.Error("Failed to write click batch, dropping entries", "count", len(records), "error", err)
		return 0, err
	}

	for linkID, n := range linkCounts {
		if err := a.links.AddClicks(ctx, linkID, n); err != nil {
			a.logger.Error("Failed to apply counter increment", "link_id", linkID, "count", n, "error", err)
		}
	}
	for variantID, n := range variantCounts {
		if err := a.clicks.AddVariantClicks(ctx, variantID, n); err != nil {
			a.logger.Error("Failed to bump variant counter", "variant_id", variantID, "count", n, "error", err)
		}
	}

	for i := range records {
		a.publisher.PublishClick(ctx, &records[i])
	}
	return len(entries), nil
}

// PendingCount returns the not-yet-flushed click count for a link, giving
// batched mode its near-real-time visibility.
func (a *Accountant) PendingCount(linkID uint) int64 {
	a.liveMu.Lock()
	defer a.liveMu.Unlock()
	return a.live[linkID]
}

func (a *Accountant) subtractLive(counts map[uint]int64) {
	a.liveMu.Lock()
	defer a.liveMu.Unlock()
	for linkID, n := range counts {
		a.live[linkID] -= n
		if a.live[linkID] <= 0 {
			delete(a.live, linkID)
		}
	}
}

// materialize turns a raw pending click into the immutable record:
// user-agent parsing, referrer default and IP masking. Geo fields were
// already resolved on the request path.
func (a *Accountant) materialize(entry models.PendingClick) *models.ClickRecord {
	rec := &models.ClickRecord{
		LinkID:      entry.LinkID,
		VariantID:   entry.VariantID,
		Timestamp:   entry.Timestamp,
		IPAddress:   maskIP(entry.IPAddress),
		UserAgent:   entry.UserAgent,
		Referrer:    entry.Referrer,
		RawQuery:    entry.RawQuery,
		Country:     entry.Country,
		Continent:   entry.Continent,
		Region:      entry.Region,
		UTMSource:   entry.UTMSource,
		UTMMedium:   entry.UTMMedium,
		UTMCampaign: entry.UTMCampaign,
		UTMTerm:     entry.UTMTerm,
		UTMContent:  entry.UTMContent,
	}
	if rec.Referrer == "" {
		rec.Referrer = "Direct"
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	ua := user_agent.New(entry.UserAgent)
	browserName, browserVer := ua.Browser()
	rec.Browser = browserName + " " + browserVer
	rec.OS = ua.OS()

	if ua.Mobile() {
		rec.DeviceType = "Mobile"
	} else if ua.Bot() {
		rec.DeviceType = "Bot"
	} else {
		rec.DeviceType = "Desktop"
	}

	return rec
}

// maskIP zeroes the last IPv4 octet for privacy (GDPR).
func maskIP(ip string) string {
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == '.' {
			return ip[:i] + ".0"
		}
		if ip[i] == ':' {
			return "IPv6 (Masked)"
		}
	}
	return ip
}
