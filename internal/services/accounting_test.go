package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"linkgate/internal/models"

	"github.com/stretchr/testify/assert"
)

type fakeLinkStore struct {
	mu    sync.Mutex
	links map[uint]*models.Link
}

func newFakeLinkStore(links ...*models.Link) *fakeLinkStore {
	s := &fakeLinkStore{links: make(map[uint]*models.Link)}
	for _, l := range links {
		s.links[l.ID] = l
	}
	return s
}

func (s *fakeLinkStore) FindByShortCode(_ context.Context, shortCode string) (*models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.ShortCode == shortCode {
			snapshot := *l
			return &snapshot, nil
		}
	}
	return nil, nil
}

func (s *fakeLinkStore) IncrementIfUnderLimit(_ context.Context, linkID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[linkID]
	if !ok {
		return false, nil
	}
	if l.ClickLimit != nil && l.ClickCount >= *l.ClickLimit {
		return false, nil
	}
	l.ClickCount++
	return true, nil
}

func (s *fakeLinkStore) AddClicks(_ context.Context, linkID uint, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.links[linkID]; ok {
		l.ClickCount += n
	}
	return nil
}

func (s *fakeLinkStore) count(linkID uint) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links[linkID].ClickCount
}

type fakeClickStore struct {
	mu            sync.Mutex
	records       []models.ClickRecord
	variantClicks map[uint]int64
	insertErr     error
	batchErr      error
}

func newFakeClickStore() *fakeClickStore {
	return &fakeClickStore{variantClicks: make(map[uint]int64)}
}

func (s *fakeClickStore) Insert(_ context.Context, click *models.ClickRecord) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *click)
	return nil
}

func (s *fakeClickStore) InsertBatch(_ context.Context, clicks []models.ClickRecord) error {
	if s.batchErr != nil {
		return s.batchErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, clicks...)
	return nil
}

func (s *fakeClickStore) AddVariantClicks(_ context.Context, variantID uint, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variantClicks[variantID] += n
	return nil
}

func (s *fakeClickStore) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func newTestAccountant(mode AccountingMode, links LinkStore, clicks ClickStore, queue PendingQueue) *Accountant {
	logger := slog.Default()
	return NewAccountant(mode, links, clicks, queue, NewClickPublisher(nil, logger), logger,
		100, time.Second, 100)
}

func TestAccountant_ImmediateConcurrentNoLimit(t *testing.T) {
	link := &models.Link{ID: 1, ShortCode: "FREE"}
	links := newFakeLinkStore(link)
	clicks := newFakeClickStore()
	a := newTestAccountant(ModeImmediate, links, clicks, NewMemoryPendingQueue())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := a.Account(context.Background(), link, models.PendingClick{LinkID: 1, IPAddress: "1.2.3.4"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(n), links.count(1))
	assert.Equal(t, n, clicks.recordCount())
}

func TestAccountant_ConcurrentLimitNeverExceeded(t *testing.T) {
	limit := int64(5)
	link := &models.Link{ID: 1, ShortCode: "CAPPED", ClickLimit: &limit}
	links := newFakeLinkStore(link)
	clicks := newFakeClickStore()
	// Configured mode is queued, but the limit forces the immediate path.
	a := newTestAccountant(ModeQueued, links, clicks, NewMemoryPendingQueue())

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, refused := 0, 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := a.Account(context.Background(), link, models.PendingClick{LinkID: 1})
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrLimitReached) {
				refused++
			} else if err == nil {
				succeeded++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 15, refused)
	assert.Equal(t, int64(5), links.count(1))
	assert.Equal(t, 5, clicks.recordCount())
}

func TestAccountant_LimitAlreadySpent(t *testing.T) {
	limit := int64(1)
	link := &models.Link{ID: 1, ShortCode: "SPENT", ClickLimit: &limit, ClickCount: 1}
	links := newFakeLinkStore(link)
	clicks := newFakeClickStore()
	a := newTestAccountant(ModeImmediate, links, clicks, NewMemoryPendingQueue())

	err := a.Account(context.Background(), link, models.PendingClick{LinkID: 1})
	assert.ErrorIs(t, err, ErrLimitReached)
	assert.Equal(t, int64(1), links.count(1))
	assert.Equal(t, 0, clicks.recordCount())
}

func TestAccountant_ImmediateFailsClosedWithLimit(t *testing.T) {
	limit := int64(10)
	link := &models.Link{ID: 1, ShortCode: "CAPPED", ClickLimit: &limit}
	links := newFakeLinkStore(link)
	clicks := newFakeClickStore()
	clicks.insertErr = errors.New("disk full")
	a := newTestAccountant(ModeImmediate, links, clicks, NewMemoryPendingQueue())

	err := a.Account(context.Background(), link, models.PendingClick{LinkID: 1})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLimitReached)
}

func TestAccountant_Queued(t *testing.T) {
	link := &models.Link{ID: 1, ShortCode: "ASYNC"}
	links := newFakeLinkStore(link)
	clicks := newFakeClickStore()
	a := newTestAccountant(ModeQueued, links, clicks, NewMemoryPendingQueue())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Start(ctx)

	for i := 0; i < 3; i++ {
		err := a.Account(context.Background(), link, models.PendingClick{LinkID: 1, UserAgent: "test-agent"})
		assert.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		return clicks.recordCount() == 3 && links.count(1) == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAccountant_QueuedDropsWhenFull(t *testing.T) {
	link := &models.Link{ID: 1, ShortCode: "FULL"}
	links := newFakeLinkStore(link)
	clicks := newFakeClickStore()
	logger := slog.Default()
	// Buffer of one and no worker draining it
	a := NewAccountant(ModeQueued, links, clicks, NewMemoryPendingQueue(),
		NewClickPublisher(nil, logger), logger, 1, time.Second, 100)

	assert.NoError(t, a.Account(context.Background(), link, models.PendingClick{LinkID: 1}))
	assert.NoError(t, a.Account(context.Background(), link, models.PendingClick{LinkID: 1}))
}

func TestAccountant_BatchedFlush(t *testing.T) {
	linkX := &models.Link{ID: 1, ShortCode: "X"}
	linkY := &models.Link{ID: 2, ShortCode: "Y"}
	links := newFakeLinkStore(linkX, linkY)
	clicks := newFakeClickStore()
	queue := NewMemoryPendingQueue()
	a := newTestAccountant(ModeBatched, links, clicks, queue)

	for i := 0; i < 3; i++ {
		assert.NoError(t, a.Account(context.Background(), linkX, models.PendingClick{LinkID: 1}))
	}
	assert.NoError(t, a.Account(context.Background(), linkY, models.PendingClick{LinkID: 2}))

	// Durable state untouched until flush; live counter is visible
	assert.Equal(t, int64(0), links.count(1))
	assert.Equal(t, int64(3), a.PendingCount(1))
	assert.Equal(t, 4, queue.Len())

	n, err := a.Flush(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, 4, clicks.recordCount())
	assert.Equal(t, int64(3), links.count(1))
	assert.Equal(t, int64(1), links.count(2))
	assert.Equal(t, 0, queue.Len())
	assert.Equal(t, int64(0), a.PendingCount(1))

	// Empty queue flush is a no-op
	n, err = a.Flush(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAccountant_BatchedFlushFailureDropsEntries(t *testing.T) {
	link := &models.Link{ID: 1, ShortCode: "LOSSY"}
	links := newFakeLinkStore(link)
	clicks := newFakeClickStore()
	clicks.batchErr = errors.New("db down")
	queue := NewMemoryPendingQueue()
	a := newTestAccountant(ModeBatched, links, clicks, queue)

	for i := 0; i < 2; i++ {
		assert.NoError(t, a.Account(context.Background(), link, models.PendingClick{LinkID: 1}))
	}

	_, err := a.Flush(context.Background())
	assert.Error(t, err)

	// Drained entries are never requeued and live counters are released
	assert.Equal(t, 0, queue.Len())
	assert.Equal(t, int64(0), a.PendingCount(1))
	assert.Equal(t, int64(0), links.count(1))
}

func TestAccountant_VariantCounters(t *testing.T) {
	link := &models.Link{ID: 1, ShortCode: "AB"}
	links := newFakeLinkStore(link)
	clicks := newFakeClickStore()
	a := newTestAccountant(ModeImmediate, links, clicks, NewMemoryPendingQueue())

	variantID := uint(9)
	err := a.Account(context.Background(), link, models.PendingClick{LinkID: 1, VariantID: &variantID})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), clicks.variantClicks[9])

	rec := clicks.records[0]
	assert.NotNil(t, rec.VariantID)
	assert.Equal(t, uint(9), *rec.VariantID)
}

func TestAccountant_Materialize(t *testing.T) {
	a := newTestAccountant(ModeImmediate, newFakeLinkStore(), newFakeClickStore(), NewMemoryPendingQueue())

	rec := a.materialize(models.PendingClick{
		LinkID:    1,
		IPAddress: "192.168.1.55",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
		Country:   "US",
	})

	assert.Equal(t, "192.168.1.0", rec.IPAddress) // Masked
	assert.Equal(t, "Mobile", rec.DeviceType)
	assert.Contains(t, rec.Browser, "Safari")
	assert.Equal(t, "Direct", rec.Referrer)
	assert.Equal(t, "US", rec.Country)
	assert.False(t, rec.Timestamp.IsZero())
}

func TestMaskIP(t *testing.T) {
	assert.Equal(t, "192.168.1.0", maskIP("192.168.1.55"))
	assert.Equal(t, "IPv6 (Masked)", maskIP("2001:0db8:85a3:0000:0000:8a2e:0370:7334"))
	assert.Equal(t, "localhost", maskIP("localhost"))
}

func TestParseAccountingMode(t *testing.T) {
	for _, valid := range []string{"immediate", "queued", "batched"} {
		mode, err := ParseAccountingMode(valid)
		assert.NoError(t, err)
		assert.Equal(t, AccountingMode(valid), mode)
	}

	_, err := ParseAccountingMode("eventually")
	assert.Error(t, err)
}
