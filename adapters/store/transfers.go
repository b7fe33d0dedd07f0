package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/ports"
)

// Transfers persists transfer records and their batch tasks.
type Transfers struct {
	db *gorm.DB
}

// NewTransfers creates the transfer store.
func NewTransfers(db *gorm.DB) *Transfers {
	return &Transfers{db: db}
}

var _ ports.TransferStore = (*Transfers)(nil)

// CreateRecord inserts a transfer record.
func (s *Transfers) CreateRecord(ctx context.Context, rec *core.TransferRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

// Record fetches one transfer record, scoped to the owner.
func (s *Transfers) Record(ctx context.Context, owner string, id uuid.UUID) (*core.TransferRecord, error) {
	var rec core.TransferRecord
	err := s.db.WithContext(ctx).
		Where("owner = ? AND id = ?", owner, id).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// RecordBySignature fetches the transfer record a signature was reported for,
// scoped to the owner.
func (s *Transfers) RecordBySignature(ctx context.Context, owner, signature string) (*core.TransferRecord, error) {
	var rec core.TransferRecord
	err := s.db.WithContext(ctx).
		Where("owner = ? AND signature = ?", owner, signature).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// RecordsByOwner lists the owner's transfer records, newest first, capped at
// limit.
func (s *Transfers) RecordsByOwner(ctx context.Context, owner string, limit int) ([]core.TransferRecord, error) {
	var recs []core.TransferRecord
	err := s.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// UpdateRecord persists the full state of a transfer record.
func (s *Transfers) UpdateRecord(ctx context.Context, rec *core.TransferRecord) error {
	return s.db.WithContext(ctx).Save(rec).Error
}

// CreateBatch inserts a batch task.
func (s *Transfers) CreateBatch(ctx context.Context, task *core.BatchTask) error {
	return s.db.WithContext(ctx).Create(task).Error
}

// Batch fetches one batch task, scoped to the owner.
func (s *Transfers) Batch(ctx context.Context, owner, id string) (*core.BatchTask, error) {
	var task core.BatchTask
	err := s.db.WithContext(ctx).
		Where("owner = ? AND id = ?", owner, id).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrBatchNotFound
		}
		return nil, err
	}
	return &task, nil
}

// BatchRecords lists the child records of a batch in creation order.
func (s *Transfers) BatchRecords(ctx context.Context, batchID string) ([]core.TransferRecord, error) {
	var recs []core.TransferRecord
	err := s.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// UpdateBatch persists the full state of a batch task.
func (s *Transfers) UpdateBatch(ctx context.Context, task *core.BatchTask) error {
	return s.db.WithContext(ctx).Save(task).Error
}
