package bootstrap

import (
	"os"

	"csv_stream_backend/config"
	"csv_stream_backend/handlers"
	"csv_stream_backend/platform/storage"
)

type Handlers struct {
	JobHandler *handlers.JobHandler
	WSHandler  *handlers.WSHandler
}

func NewHandlers(cfg *config.Config, services *Services, infra *Infrastructure) *Handlers {
	resultsDir := cfg.ResultsDir
	if local, ok := infra.Storage.(*storage.LocalBackend); ok {
		resultsDir = local.Root()
	}
	return &Handlers{
		JobHandler: handlers.NewJobHandler(services.JobService, handlers.JobHandlerConfig{
			ResultsDir:    resultsDir,
			UploadDir:     os.TempDir(),
			MaxUploadSize: cfg.MaxUploadSize,
			Storage:       infra.Storage,
		}),
		WSHandler: handlers.NewWSHandler(infra.EventPublisher, services.JobService),
	}
}
