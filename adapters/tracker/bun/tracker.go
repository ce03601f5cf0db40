package trackerbun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-report/adapters/reportapi"
	"github.com/goliatone/go-report/report"
	"github.com/uptrace/bun"
)

// Tracker stores publish receipts in a Bun-backed database. It serves as a
// durable reportapi.IdempotencyStore, so retried handle requests survive a
// restart, and keeps a log of published documents.
type Tracker struct {
	DB  *bun.DB
	Now func() time.Time
}

var _ reportapi.IdempotencyStore = (*Tracker)(nil)

// NewTracker creates a Bun-backed tracker.
func NewTracker(db *bun.DB) *Tracker {
	return &Tracker{DB: db, Now: time.Now}
}

// CreateTable creates the receipts table when it does not exist.
func (t *Tracker) CreateTable(ctx context.Context) error {
	if t == nil || t.DB == nil {
		return report.NewError(report.KindInternal, "tracker database not configured", nil)
	}
	_, err := t.DB.NewCreateTable().Model((*receiptModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Get returns the receipt stored for key. Expired rows are treated as absent.
func (t *Tracker) Get(ctx context.Context, key string) (report.Receipt, bool, error) {
	if t == nil || t.DB == nil {
		return report.Receipt{}, false, report.NewError(report.KindInternal, "tracker database not configured", nil)
	}
	if key == "" {
		return report.Receipt{}, false, nil
	}

	var model receiptModel
	err := t.DB.NewSelect().Model(&model).Where("idempotency_key = ?", key).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return report.Receipt{}, false, nil
		}
		return report.Receipt{}, false, err
	}
	if model.expired(t.now()) {
		return report.Receipt{}, false, nil
	}
	return model.toReceipt(), true, nil
}

// Set stores receipt under key, replacing any previous row. A non-positive ttl
// keeps the row until the receipt itself expires.
func (t *Tracker) Set(ctx context.Context, key string, receipt report.Receipt, ttl time.Duration) error {
	if t == nil || t.DB == nil {
		return report.NewError(report.KindInternal, "tracker database not configured", nil)
	}
	if key == "" {
		return report.NewError(report.KindValidation, "idempotency key is required", nil)
	}
	if receipt.Handle == "" && !receipt.Failed() {
		return report.NewError(report.KindValidation, "receipt handle is required", nil)
	}

	now := t.now().UTC()
	model := modelFromReceipt(key, receipt)
	model.CreatedAt = now
	if ttl > 0 {
		model.KeyExpiresAt = now.Add(ttl)
	}

	_, err := t.DB.NewInsert().Model(&model).
		On("CONFLICT (idempotency_key) DO UPDATE").
		Set("handle = EXCLUDED.handle").
		Set("filename = EXCLUDED.filename").
		Set("content_type = EXCLUDED.content_type").
		Set("size = EXCLUDED.size").
		Set("created_at = EXCLUDED.created_at").
		Set("expires_at = EXCLUDED.expires_at").
		Set("failure_kind = EXCLUDED.failure_kind").
		Set("failure_message = EXCLUDED.failure_message").
		Set("key_expires_at = EXCLUDED.key_expires_at").
		Exec(ctx)
	return err
}

// List returns receipts published at or after since, newest first. A
// non-positive limit returns every row.
func (t *Tracker) List(ctx context.Context, since time.Time, limit int) ([]report.Receipt, error) {
	if t == nil || t.DB == nil {
		return nil, report.NewError(report.KindInternal, "tracker database not configured", nil)
	}

	var models []receiptModel
	query := t.DB.NewSelect().Model(&models).Order("created_at DESC", "idempotency_key ASC")
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since.UTC())
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	receipts := make([]report.Receipt, 0, len(models))
	for _, model := range models {
		receipts = append(receipts, model.toReceipt())
	}
	return receipts, nil
}

// Prune deletes rows whose key or receipt expired at or before now.
func (t *Tracker) Prune(ctx context.Context, now time.Time) (int, error) {
	if t == nil || t.DB == nil {
		return 0, report.NewError(report.KindInternal, "tracker database not configured", nil)
	}
	if now.IsZero() {
		now = t.now()
	}

	res, err := t.DB.NewDelete().Model((*receiptModel)(nil)).
		Where("(key_expires_at IS NOT NULL AND key_expires_at <= ?) OR (expires_at IS NOT NULL AND expires_at <= ?)", now.UTC(), now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// Delete removes the row stored for key.
func (t *Tracker) Delete(ctx context.Context, key string) error {
	if t == nil || t.DB == nil {
		return report.NewError(report.KindInternal, "tracker database not configured", nil)
	}
	if key == "" {
		return report.NewError(report.KindValidation, "idempotency key is required", nil)
	}

	res, err := t.DB.NewDelete().Model((*receiptModel)(nil)).Where("idempotency_key = ?", key).Exec(ctx)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return report.NewError(report.KindNotFound, fmt.Sprintf("receipt %q not found", key), nil)
	}
	return nil
}

type receiptModel struct {
	bun.BaseModel `bun:"table:report_receipts,alias:report_receipts"`

	Key          string    `bun:"idempotency_key,pk"`
	Handle       string    `bun:",notnull"`
	Filename     string    `bun:"filename"`
	ContentType  string    `bun:"content_type"`
	Size         int64     `bun:"size"`
	CreatedAt    time.Time `bun:"created_at"`
	ExpiresAt    time.Time `bun:"expires_at,nullzero"`
	KeyExpiresAt time.Time `bun:"key_expires_at,nullzero"`
	FailureKind  string    `bun:"failure_kind"`
	FailureMsg   string    `bun:"failure_message"`
}

func modelFromReceipt(key string, receipt report.Receipt) receiptModel {
	return receiptModel{
		Key:         key,
		Handle:      receipt.Handle,
		Filename:    receipt.Filename,
		ContentType: receipt.ContentType,
		Size:        receipt.Size,
		ExpiresAt:   receipt.ExpiresAt.UTC(),
		FailureKind: string(receipt.FailureKind),
		FailureMsg:  receipt.FailureMessage,
	}
}

func (m receiptModel) toReceipt() report.Receipt {
	return report.Receipt{
		Handle:         m.Handle,
		Filename:       m.Filename,
		ContentType:    m.ContentType,
		Size:           m.Size,
		ExpiresAt:      m.ExpiresAt,
		FailureKind:    report.ErrorKind(m.FailureKind),
		FailureMessage: m.FailureMsg,
	}
}

func (m receiptModel) expired(now time.Time) bool {
	if !m.KeyExpiresAt.IsZero() && now.After(m.KeyExpiresAt) {
		return true
	}
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}
