package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"csv_stream_backend/models"
	"csv_stream_backend/pkg/errs"
	"csv_stream_backend/pkg/logging"
	"csv_stream_backend/platform/cache"
)

const (
	jobKeyPrefix    = "job:"
	resultKeyPrefix = "result:"

	DefaultJobTTL = 24 * time.Hour
)

type jobRepository struct {
	cache   *cache.Service
	jobs    *cache.TypedCache[models.Job]
	results *cache.TypedCache[string]
	db      *gorm.DB
	ttl     time.Duration
}

// NewJobRepository keeps live jobs in the cache for ttl. When db is non-nil,
// jobs reaching a terminal status are archived there and read back on a miss.
func NewJobRepository(cs *cache.Service, db *gorm.DB, ttl time.Duration) JobRepository {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &jobRepository{
		cache:   cs,
		jobs:    cache.NewTypedCache[models.Job](cs),
		results: cache.NewTypedCache[string](cs),
		db:      db,
		ttl:     ttl,
	}
}

func (r *jobRepository) Create(ctx context.Context, job *models.Job) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if err := r.jobs.Set(jobKeyPrefix+job.JobID, *job, r.ttl); err != nil {
		return errs.Wrap(err, errs.CodeStorage, "JobRepository.Create", "cache job")
	}
	return nil
}

func (r *jobRepository) Update(ctx context.Context, job *models.Job) error {
	job.UpdatedAt = time.Now().UTC()
	if err := r.jobs.Set(jobKeyPrefix+job.JobID, *job, r.ttl); err != nil {
		return errs.Wrap(err, errs.CodeStorage, "JobRepository.Update", "cache job")
	}
	if job.ResultFileName != "" {
		if err := r.results.Set(resultKeyPrefix+job.ResultFileName, job.JobID, r.ttl); err != nil {
			logging.Logger.Warn("fail indexing result file", "job_id", job.JobID, "error", err)
		}
	}
	if r.db != nil && job.Status.Terminal() {
		err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "job_id"}},
				UpdateAll: true,
			}).
			Create(models.NewJobRecord(job)).Error
		if err != nil {
			logging.Logger.Error("fail archiving job", "job_id", job.JobID, "error", err)
			return errs.Wrap(err, errs.CodeStorage, "JobRepository.Update", "archive job")
		}
	}
	return nil
}

func (r *jobRepository) Get(ctx context.Context, jobID string) (*models.Job, error) {
	job, ok, err := r.jobs.Get(jobKeyPrefix + jobID)
	if err != nil {
		logging.Logger.Warn("fail decoding cached job", "job_id", jobID, "error", err)
	}
	if ok && err == nil {
		return &job, nil
	}
	if r.db == nil {
		return nil, errs.ErrJobNotFound
	}

	v, err := r.cache.Load(jobKeyPrefix+jobID, func() (interface{}, error) {
		var rec models.JobRecord
		if err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&rec).Error; err != nil {
			return nil, err
		}
		archived := rec.ToJob()
		_ = r.jobs.Set(jobKeyPrefix+jobID, *archived, r.ttl)
		return archived, nil
	})
	if err != nil {
		return nil, r.notFound(err, "JobRepository.Get")
	}
	found := *v.(*models.Job)
	return &found, nil
}

func (r *jobRepository) FindByResultFile(ctx context.Context, fileName string) (*models.Job, error) {
	jobID, ok, err := r.results.Get(resultKeyPrefix + fileName)
	if ok && err == nil {
		return r.Get(ctx, jobID)
	}
	if r.db == nil {
		return nil, errs.ErrJobNotFound
	}
	var rec models.JobRecord
	if err := r.db.WithContext(ctx).Where("result_file_name = ?", fileName).First(&rec).Error; err != nil {
		return nil, r.notFound(err, "JobRepository.FindByResultFile")
	}
	return rec.ToJob(), nil
}

func (r *jobRepository) notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.ErrJobNotFound
	}
	return errs.Wrap(err, errs.CodeStorage, op, "load archived job")
}
