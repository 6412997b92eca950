package bootstrap

import (
	"csv_stream_backend/config"
	"csv_stream_backend/services"
)

type Services struct {
	JobService *services.JobService
}

func NewServices(cfg *config.Config, repos *Repositories, infra *Infrastructure) *Services {
	return &Services{
		JobService: services.NewJobService(repos.JobRepository, infra.EventPublisher, infra.GrpcClients, services.JobServiceConfig{
			ChunkSize: cfg.ChunkSize,
			MaxJobs:   cfg.GatewayMaxJobs,
			Timeout:   cfg.ProcessorTimeout,
		}),
	}
}
