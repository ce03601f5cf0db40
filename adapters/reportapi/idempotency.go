package reportapi

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-report/report"
)

// IdempotencyStore remembers receipts for retried handle requests.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (report.Receipt, bool, error)
	Set(ctx context.Context, key string, receipt report.Receipt, ttl time.Duration) error
}

// MemoryIdempotencyStore stores receipts in memory.
type MemoryIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]idempotencyEntry
	clock   func() time.Time
}

type idempotencyEntry struct {
	receipt   report.Receipt
	expiresAt time.Time
}

// NewMemoryIdempotencyStore creates an in-memory store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries: make(map[string]idempotencyEntry),
		clock:   time.Now,
	}
}

// Get returns the receipt stored for key.
func (s *MemoryIdempotencyStore) Get(ctx context.Context, key string) (report.Receipt, bool, error) {
	_ = ctx
	if s == nil {
		return report.Receipt{}, false, report.NewError(report.KindInternal, "idempotency store is nil", nil)
	}
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return report.Receipt{}, false, nil
	}
	now := s.now()
	if (!entry.expiresAt.IsZero() && now.After(entry.expiresAt)) ||
		(!entry.receipt.ExpiresAt.IsZero() && now.After(entry.receipt.ExpiresAt)) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return report.Receipt{}, false, nil
	}
	return entry.receipt, true, nil
}

// Set stores receipt under key. A non-positive ttl keeps the entry until the
// receipt itself expires.
func (s *MemoryIdempotencyStore) Set(ctx context.Context, key string, receipt report.Receipt, ttl time.Duration) error {
	_ = ctx
	if s == nil {
		return report.NewError(report.KindInternal, "idempotency store is nil", nil)
	}
	if key == "" {
		return report.NewError(report.KindValidation, "idempotency key is required", nil)
	}
	if receipt.Handle == "" && !receipt.Failed() {
		return report.NewError(report.KindValidation, "receipt handle is required", nil)
	}
	var expires time.Time
	if ttl > 0 {
		expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = idempotencyEntry{receipt: receipt, expiresAt: expires}
	s.mu.Unlock()
	return nil
}

func (s *MemoryIdempotencyStore) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock()
}

// buildIdempotencyKey binds a client key to the request payload so a reused
// key with a different report does not return a stale handle.
func buildIdempotencyKey(key string, req ExportRequest) string {
	payload := idempotencyPayload{
		Key:         key,
		Title:       req.Report.Title,
		Body:        req.Report.Body,
		GeneratedAt: req.Report.GeneratedAt.UTC(),
		Format:      req.Format,
		Options:     req.Options,
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("report:%x", sum[:])
}

type idempotencyPayload struct {
	Key         string               `json:"key"`
	Title       string               `json:"title"`
	Body        string               `json:"body"`
	GeneratedAt time.Time            `json:"generated_at"`
	Format      report.Format        `json:"format"`
	Options     report.RenderOptions `json:"options"`
}
