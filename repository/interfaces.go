package repository

import (
	"context"

	"csv_stream_backend/models"
)

type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, jobID string) (*models.Job, error)
	Update(ctx context.Context, job *models.Job) error

	// FindByResultFile maps a result file name back to the job that produced it.
	FindByResultFile(ctx context.Context, fileName string) (*models.Job, error)
}
