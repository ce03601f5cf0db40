package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHandleTTL is how long a published document stays downloadable.
const DefaultHandleTTL = 15 * time.Minute

// Receipt describes a published document.
type Receipt struct {
	Handle      string    `json:"handle"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	ExpiresAt   time.Time `json:"expires_at"`
	// Set instead of Handle when a background job ended without a document.
	FailureKind    ErrorKind `json:"failure_kind,omitempty"`
	FailureMessage string    `json:"failure_message,omitempty"`
}

// FailedReceipt records a job that ended with err. The message is safe to
// show to end users.
func FailedReceipt(err error) Receipt {
	kind := KindFromError(err)
	return Receipt{FailureKind: kind, FailureMessage: UserMessage(kind)}
}

// Failed reports whether the receipt records a failed job.
func (r Receipt) Failed() bool { return r.FailureKind != "" }

// Download is an opened, single-use document. Closing Reader deletes it.
type Download struct {
	Handle string
	Reader io.ReadCloser
	Meta   ArtifactMeta
}

// Service exports reports and hands finished documents off for download.
type Service interface {
	Export(ctx context.Context, format Format, rep Report, opts RenderOptions) ExportResult
	Publish(ctx context.Context, doc Success) (Receipt, error)
	Download(ctx context.Context, handle string) (Download, error)
	Cleanup(ctx context.Context, now time.Time) (int, error)
}

// ServiceConfig supplies dependencies for Service.
type ServiceConfig struct {
	Exporter    *Exporter
	Store       ArtifactStore
	TTL         time.Duration
	KeyPrefix   string
	Logger      Logger
	Emitter     ChangeEmitter
	Now         func() time.Time
	IDGenerator func() string
}

type handleEntry struct {
	key     string
	meta    ArtifactMeta
	claimed bool
}

type service struct {
	exporter    *Exporter
	store       ArtifactStore
	ttl         time.Duration
	keyPrefix   string
	logger      Logger
	emitter     ChangeEmitter
	now         func() time.Time
	idGenerator func() string

	mu      sync.Mutex
	handles map[string]*handleEntry
}

// NewService creates a Service with the provided configuration.
func NewService(cfg ServiceConfig) Service {
	exporter := cfg.Exporter
	if exporter == nil {
		exporter = NewExporter(ExporterConfig{Logger: cfg.Logger, Now: cfg.Now})
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultHandleTTL
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "reports"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}

	return &service{
		exporter:    exporter,
		store:       store,
		ttl:         ttl,
		keyPrefix:   prefix,
		logger:      logger,
		emitter:     cfg.Emitter,
		now:         nowFn,
		idGenerator: idGen,
		handles:     make(map[string]*handleEntry),
	}
}

// Export delegates to the exporter.
func (s *service) Export(ctx context.Context, format Format, rep Report, opts RenderOptions) ExportResult {
	if s == nil {
		return Failed(NewError(KindInternal, "service is nil", nil))
	}
	return s.exporter.ExportAs(ctx, format, rep, opts)
}

// Publish stores a finished document under a fresh handle.
func (s *service) Publish(ctx context.Context, doc Success) (Receipt, error) {
	if s == nil {
		return Receipt{}, AsGoError(NewError(KindInternal, "service is nil", nil))
	}
	if len(doc.Document) == 0 {
		return Receipt{}, AsGoError(NewError(KindValidation, "document is empty", nil))
	}
	if err := ctx.Err(); err != nil {
		return Receipt{}, AsGoError(err)
	}

	handle := s.idGenerator()
	if handle == "" {
		return Receipt{}, AsGoError(NewError(KindInternal, "handle generator returned an empty handle", nil))
	}
	contentType := doc.ContentType
	if contentType == "" {
		contentType = ContentTypeFor(FormatPDF)
	}

	now := s.now()
	key := s.artifactKey(handle)
	ref, err := s.store.Put(ctx, key, bytes.NewReader(doc.Document), ArtifactMeta{
		ContentType: contentType,
		Filename:    doc.SuggestedFilename,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	})
	if err != nil {
		return Receipt{}, AsGoError(NewError(KindInternal, "failed to store document", err))
	}
	meta := ref.Meta
	if meta.ExpiresAt.IsZero() {
		meta.ExpiresAt = now.Add(s.ttl)
	}

	s.mu.Lock()
	s.handles[handle] = &handleEntry{key: ref.Key, meta: meta}
	s.mu.Unlock()

	s.logger.Debugf("report published: handle=%s bytes=%d expires=%s", handle, meta.Size, meta.ExpiresAt.Format(time.RFC3339))
	s.emit(ctx, eventFor(EventPublished, handle, meta, now))

	return Receipt{
		Handle:      handle,
		Filename:    meta.Filename,
		ContentType: meta.ContentType,
		Size:        meta.Size,
		ExpiresAt:   meta.ExpiresAt,
	}, nil
}

// Download opens a published document. The handle is claimed immediately and
// the artifact is deleted when the returned reader is closed.
func (s *service) Download(ctx context.Context, handle string) (Download, error) {
	if s == nil {
		return Download{}, AsGoError(NewError(KindInternal, "service is nil", nil))
	}
	if handle == "" {
		return Download{}, AsGoError(NewError(KindValidation, "download handle is required", nil))
	}

	now := s.now()
	s.mu.Lock()
	entry, ok := s.handles[handle]
	if !ok || entry.claimed {
		s.mu.Unlock()
		return Download{}, AsGoError(NewError(KindNotFound, fmt.Sprintf("download %q not found", handle), nil))
	}
	if expired(entry.meta, now) {
		delete(s.handles, handle)
		s.mu.Unlock()
		_ = s.store.Delete(ctx, entry.key)
		return Download{}, AsGoError(NewError(KindNotFound, fmt.Sprintf("download %q expired", handle), nil))
	}
	entry.claimed = true
	s.mu.Unlock()

	reader, meta, err := s.store.Open(ctx, entry.key)
	if err != nil {
		s.mu.Lock()
		delete(s.handles, handle)
		s.mu.Unlock()
		if KindFromError(err) == KindNotFound {
			return Download{}, AsGoError(err)
		}
		return Download{}, AsGoError(NewError(KindInternal, "failed to open document", err))
	}
	if meta.ContentType == "" {
		meta.ContentType = entry.meta.ContentType
	}
	if meta.Filename == "" {
		meta.Filename = entry.meta.Filename
	}

	s.emit(ctx, eventFor(EventDownloaded, handle, meta, now))

	key := entry.key
	return Download{
		Handle: handle,
		Meta:   meta,
		Reader: &oneTimeReader{
			ReadCloser: reader,
			release: func() error {
				s.mu.Lock()
				delete(s.handles, handle)
				s.mu.Unlock()
				return s.store.Delete(context.Background(), key)
			},
		},
	}, nil
}

// Cleanup deletes expired, unclaimed documents and returns the count removed.
func (s *service) Cleanup(ctx context.Context, now time.Time) (int, error) {
	if s == nil {
		return 0, AsGoError(NewError(KindInternal, "service is nil", nil))
	}
	if now.IsZero() {
		now = s.now()
	}

	// Expiring entries are claimed so no download can open them while the
	// store deletes run. A failed delete releases the claim for the next pass.
	s.mu.Lock()
	var handles []string
	for handle, entry := range s.handles {
		if entry.claimed || !expired(entry.meta, now) {
			continue
		}
		entry.claimed = true
		handles = append(handles, handle)
	}
	sort.Strings(handles)
	entries := make([]*handleEntry, 0, len(handles))
	for _, handle := range handles {
		entries = append(entries, s.handles[handle])
	}
	s.mu.Unlock()

	deleted := 0
	var firstErr error
	for i, entry := range entries {
		if err := s.store.Delete(ctx, entry.key); err != nil && KindFromError(err) != KindNotFound {
			s.mu.Lock()
			entry.claimed = false
			s.mu.Unlock()
			s.logger.Errorf("report cleanup of %s failed: %v", handles[i], err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.mu.Lock()
		delete(s.handles, handles[i])
		s.mu.Unlock()
		deleted++
		s.emit(ctx, eventFor(EventExpired, handles[i], entry.meta, now))
	}
	if deleted > 0 {
		s.logger.Infof("report cleanup removed %d expired documents", deleted)
	}
	if firstErr != nil {
		return deleted, AsGoError(firstErr)
	}
	return deleted, nil
}

func (s *service) emit(ctx context.Context, evt ChangeEvent) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(ctx, evt); err != nil {
		s.logger.Errorf("report event %s for %s failed: %v", evt.Name, evt.Handle, err)
	}
}

func (s *service) artifactKey(handle string) string {
	return fmt.Sprintf("%s/%s", s.keyPrefix, handle)
}

func expired(meta ArtifactMeta, now time.Time) bool {
	return !meta.ExpiresAt.IsZero() && !meta.ExpiresAt.After(now)
}

type oneTimeReader struct {
	io.ReadCloser
	once    sync.Once
	release func() error
	err     error
}

func (r *oneTimeReader) Close() error {
	closeErr := r.ReadCloser.Close()
	r.once.Do(func() {
		r.err = r.release()
	})
	if closeErr != nil {
		return closeErr
	}
	return r.err
}
