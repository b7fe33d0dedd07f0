package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/ports"
)

// Jobs persists wallet-generation jobs.
type Jobs struct {
	db *gorm.DB
}

// NewJobs creates the job store.
func NewJobs(db *gorm.DB) *Jobs {
	return &Jobs{db: db}
}

var _ ports.JobStore = (*Jobs)(nil)

// Create inserts a generation job.
func (s *Jobs) Create(ctx context.Context, job *core.Job) error {
	return s.db.WithContext(ctx).Create(job).Error
}

// ByOwner lists the owner's jobs, newest first.
func (s *Jobs) ByOwner(ctx context.Context, owner string) ([]core.Job, error) {
	var jobs []core.Job
	err := s.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Get fetches one job, scoped to the owner.
func (s *Jobs) Get(ctx context.Context, owner, id string) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).
		Where("owner = ? AND id = ?", owner, id).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// UpdateArchive records the outcome of the asynchronous archive step.
func (s *Jobs) UpdateArchive(ctx context.Context, id string, status core.JobArchiveStatus, path string) error {
	return s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{"archive_status": status, "archive_path": path}).Error
}
