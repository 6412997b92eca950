package bootstrap

import (
	"gorm.io/gorm"

	"csv_stream_backend/config"
	"csv_stream_backend/repository"
)

type Repositories struct {
	JobRepository repository.JobRepository
}

func NewRepositories(cfg *config.Config, infra *Infrastructure) *Repositories {
	var db *gorm.DB
	if infra.DB != nil {
		db = infra.DB.GetDatabase()
	}
	return &Repositories{
		JobRepository: repository.NewJobRepository(infra.Cache, db, cfg.JobTTL),
	}
}
